// Package diag implements the error taxonomy of spec.md §7: analysis
// violations are collected per-site and reported together at driver exit;
// unsupported constructs and internal inconsistencies fail the current
// translation immediately. The shape follows the teacher's
// pkg/parsing error types: one exported struct per condition, each with its
// own Error() string, rather than a single generic error value carrying a
// free-text reason.
package diag

import (
	"fmt"

	"github.com/pkg/errors"
)

// Violation is an analysis violation: non-fatal at its own call site, but
// fatal at driver-exit once collected (spec.md §7).
type Violation interface {
	error
	violation()
}

// base is embedded by every Violation implementation.
type base struct{}

func (base) violation() {}

// ErrEscapingAllocation: a `new T(...)` outside a constructor, or whose
// result is not assigned to a state variable within the constructor's
// dataflow (spec.md §4.1).
type ErrEscapingAllocation struct {
	base
	Contract, Function, Type string
}

func (e *ErrEscapingAllocation) Error() string {
	return fmt.Sprintf("allocation of %s escapes constructor %s.%s", e.Type, e.Contract, e.Function)
}

// ErrAllocationCycle: the allocation graph has a cycle (spec.md §4.1,
// "cycles = error").
type ErrAllocationCycle struct {
	base
	Cycle []string
}

func (e *ErrAllocationCycle) Error() string {
	return fmt.Sprintf("allocation cycle: %v", e.Cycle)
}

// ErrUnresolvedRv: the contract-rv resolver could not resolve an expression
// of contract type (spec.md §4.3, rule v).
type ErrUnresolvedRv struct {
	base
	Reason string
}

func (e *ErrUnresolvedRv) Error() string {
	return fmt.Sprintf("could not resolve contract return value: %s", e.Reason)
}

// ErrAddressMutate: arithmetic/member access applied to an address value
// (spec.md §4.6, "Mutate").
type ErrAddressMutate struct {
	base
	Op string
}

func (e *ErrAddressMutate) Error() string {
	return fmt.Sprintf("address value mutated via %q", e.Op)
}

// ErrAddressCompare: ordered comparison applied to an address value
// (spec.md §4.6, "Compare").
type ErrAddressCompare struct {
	base
	Op string
}

func (e *ErrAddressCompare) Error() string {
	return fmt.Sprintf("address value compared via %q; only == and != are allowed", e.Op)
}

// ErrAddressCast: an address cast to/from a disallowed type (spec.md §4.6,
// "Cast").
type ErrAddressCast struct {
	base
	Target string
}

func (e *ErrAddressCast) Error() string {
	return fmt.Sprintf("address cast to/from unsupported type %s", e.Target)
}

// ErrMapKeyType: a mapping with a non-address key type holds addresses
// (spec.md §4.6, "KeyType").
type ErrMapKeyType struct {
	base
}

func (e *ErrMapKeyType) Error() string {
	return "map with non-address key holds address values"
}

// ErrMapValueType: a mapping's value (or a struct value's field) is an
// address (spec.md §4.6, "ValueType").
type ErrMapValueType struct {
	base
}

func (e *ErrMapValueType) Error() string {
	return "map value (or nested struct field) is an address"
}

// ErrInvalidAddressLiteral: an `address(n)` literal failed to parse as a
// canonical hex address.
type ErrInvalidAddressLiteral struct {
	base
	Literal string
}

func (e *ErrInvalidAddressLiteral) Error() string {
	return fmt.Sprintf("invalid address literal %q", e.Literal)
}

// ErrMultiReturn: a function has more than one return parameter outside a
// tuple-assignment context (spec.md §4.7).
type ErrMultiReturn struct {
	base
	Function string
}

func (e *ErrMultiReturn) Error() string {
	return fmt.Sprintf("function %s has multiple return parameters outside tuple-assignment", e.Function)
}

// Unsupported is a fatal diagnostic naming a construct the core does not
// model (spec.md §7, "Unsupported constructs"): delegatecall family,
// selfdestruct, inline assembly, throw, exponent, shift-right, dynamic
// arrays/strings, multi-return tuples outside tuple-assignment, enum casts,
// and the other constructs spec.md §1/§4.9 explicitly rejects.
type Unsupported struct {
	Construct string
	Detail    string
}

func (e *Unsupported) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("unsupported construct: %s", e.Construct)
	}
	return fmt.Sprintf("unsupported construct: %s: %s", e.Construct, e.Detail)
}

// Internal wraps a fatal internal inconsistency (missing type annotation,
// unknown AST node) with a stack trace, matching the teacher's use of
// github.com/pkg/errors for its own unrecoverable paths.
func Internal(format string, args ...interface{}) error {
	return errors.Errorf("internal inconsistency: "+format, args...)
}

// Collector accumulates non-fatal Violations across a pass, to be reported
// together once the pass completes (spec.md §7, "Propagation").
type Collector struct {
	violations []Violation
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add records a violation. A nil v is ignored, so call sites can write
// `c.Add(checkSomething())` unconditionally.
func (c *Collector) Add(v Violation) {
	if v == nil {
		return
	}
	c.violations = append(c.violations, v)
}

// Violations returns every violation recorded so far, in recording order.
func (c *Collector) Violations() []Violation {
	return c.violations
}

// HasViolations reports whether any violation has been recorded.
func (c *Collector) HasViolations() bool {
	return len(c.violations) > 0
}

// Error renders every collected violation as a single "<kind>: <detail>"
// report (spec.md §7, "a non-zero exit and a stderr message").
func (c *Collector) Error() string {
	if len(c.violations) == 0 {
		return ""
	}
	s := fmt.Sprintf("%d violation(s):", len(c.violations))
	for _, v := range c.violations {
		s += fmt.Sprintf("\n  %T: %s", v, v.Error())
	}
	return s
}
