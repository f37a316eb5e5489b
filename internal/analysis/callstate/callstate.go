// Package callstate defines the ordered auxiliary-parameter tuple threaded
// through every mutable call (spec.md §4.8): sender, value, blocknum,
// timestamp, paid, origin.
package callstate

import "github.com/contract-ace/smartace/internal/ast"

// Param names the call-state parameters in their fixed emission order
// (spec.md §6, "Call-state parameters in order").
var Param = []string{"sender", "value", "blocknum", "timestamp", "paid", "origin"}

// CTypes gives the C type of each Param entry, in the same order.
var CTypes = []string{
	"sol_address_t",
	"sol_uint256_t",
	"sol_uint256_t",
	"sol_uint256_t",
	"sol_bool_t",
	"sol_address_t",
}

// Threading describes whether a callable receives `self` and/or the call
// state tuple: pure library functions receive neither, pure member
// functions receive `self` only.
type Threading int

// Threading values.
const (
	// Full: self + full call-state tuple (ordinary state-mutating methods).
	Full Threading = iota
	// SelfOnly: self, no call-state (pure member functions).
	SelfOnly
	// None: neither self nor call-state (pure library functions).
	None
)

// ThreadingFor returns how call-state is threaded for a function with the
// given mutability and "is a library/free function" flag.
func ThreadingFor(mut ast.Mutability, isLibraryFn bool) Threading {
	if mut != ast.MutPure {
		return Full
	}
	if isLibraryFn {
		return None
	}
	return SelfOnly
}

// State is the call-state a callee receives. NextExternal and NextInternal
// compute it from the caller's current call-state, depending on whether the
// call crosses a contract boundary (external) or stays within the same
// contract (internal).
//
// On an external call: sender <- current self's address; value <- the
// user-supplied amount (0 if absent); paid <- true; blocknum, timestamp,
// origin are forwarded unchanged (spec.md §4.8).
//
// On an internal call: sender, value, origin are forwarded unchanged;
// paid <- false.
type State struct {
	Sender, Value, Blocknum, Timestamp, Origin string // emitted C expressions
	Paid                                        bool
}

// NextExternal computes the callee's call-state for an external call from a
// contract whose own address-emission expression is selfAddress, with the
// caller's current state cur and a user-supplied value expression
// (valueExpr == "" means absent, i.e. 0).
func NextExternal(cur State, selfAddress, valueExpr string) State {
	next := State{
		Sender:    selfAddress,
		Blocknum:  cur.Blocknum,
		Timestamp: cur.Timestamp,
		Origin:    cur.Origin,
		Paid:      true,
	}
	if valueExpr == "" {
		next.Value = "0"
	} else {
		next.Value = valueExpr
	}
	return next
}

// NextInternal computes the callee's call-state for an internal call: the
// whole tuple is forwarded except paid, which is cleared.
func NextInternal(cur State) State {
	next := cur
	next.Paid = false
	return next
}
