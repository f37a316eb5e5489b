// Package address implements the abstract address domain of spec.md §4.6:
// a finite symbolic space of contract slots, literals, auxiliary addresses,
// roles, and clients, plus the disallowed-operation checks that keep
// address values out of ordinary arithmetic.
package address

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/atomic"

	"github.com/contract-ace/smartace/internal/analysis/flatmodel"
	"github.com/contract-ace/smartace/internal/ast"
	"github.com/contract-ace/smartace/internal/diag"
)

// Domain is the address domain of one translation run (spec.md §4.6).
type Domain struct {
	Concrete bool
	Aux      int

	literals     map[string]int64 // canonical hex -> g_literal_address_<n>
	literalOrder []string
	literalSeq   atomic.Int64

	contractCount int
	roles         int
	clients       int
}

// NewDomain returns an empty domain seeded with literal 0, always present
// (spec.md §3, "Literal 0 always present").
func NewDomain(concrete bool, aux int) *Domain {
	d := &Domain{Concrete: concrete, Aux: aux, literals: map[string]int64{}}
	d.registerLiteral("0")
	return d
}

// RegisterLiteral canonicalizes and registers an address literal's numeric
// text, returning its assigned g_literal_address_<n> index. Exposed for the
// expression lowerer, which re-registers the same literals the
// LiteralExtractor pass already validated.
func (d *Domain) RegisterLiteral(hex string) int64 {
	return d.registerLiteral(hex)
}

func (d *Domain) registerLiteral(hex string) int64 {
	canon := common.HexToAddress(hex).Hex()
	if n, ok := d.literals[canon]; ok {
		return n
	}
	n := d.literalSeq.Inc() - 1
	d.literals[canon] = n
	d.literalOrder = append(d.literalOrder, canon)
	return n
}

// Size is PTGBuilder.size(): contract_count + |literals| + aux +
// (concrete ? 0 : roles + clients).
func (d *Domain) Size() int {
	size := d.contractCount + len(d.literals) + d.Aux
	if !d.Concrete {
		size += d.roles + d.clients
	}
	return size
}

// LiteralExtractor walks declarations, executed functions, and applied
// modifiers of flat, registering each explicit `address(n)` literal it
// finds into the domain (spec.md §4.6). Per spec.md §9's open question, only
// modifiers applied to executed functions are visited — callers pass
// exactly the set of executed functions (from the call graph), not the raw
// AST's full function list.
type LiteralExtractor struct {
	Domain *Domain
	Coll   *diag.Collector
}

// Extract scans body for address-cast numeric literals and registers them.
func (e *LiteralExtractor) Extract(body *ast.Block) {
	if body == nil {
		return
	}
	e.scanStmts(body.Statements)
}

func (e *LiteralExtractor) scanStmts(stmts []ast.Statement) {
	for _, s := range stmts {
		e.scanStmt(s)
	}
}

func (e *LiteralExtractor) scanStmt(s ast.Statement) {
	switch n := s.(type) {
	case *ast.Block:
		e.scanStmts(n.Statements)
	case *ast.VarDeclStatement:
		if n.Initial != nil {
			e.scanExpr(n.Initial)
		}
	case *ast.ExprStatement:
		e.scanExpr(n.Expr)
	case *ast.IfStatement:
		e.scanExpr(n.Cond)
		e.scanStmt(n.True)
		if n.False != nil {
			e.scanStmt(n.False)
		}
	case *ast.WhileStatement:
		e.scanExpr(n.Cond)
		e.scanStmt(n.Body)
	case *ast.DoWhileStatement:
		e.scanStmt(n.Body)
		e.scanExpr(n.Cond)
	case *ast.ForStatement:
		if n.Init != nil {
			e.scanStmt(n.Init)
		}
		if n.Cond != nil {
			e.scanExpr(n.Cond)
		}
		if n.Post != nil {
			e.scanStmt(n.Post)
		}
		e.scanStmt(n.Body)
	case *ast.ReturnStatement:
		if n.Value != nil {
			e.scanExpr(n.Value)
		}
	}
}

func (e *LiteralExtractor) scanExpr(expr ast.Expression) {
	switch n := expr.(type) {
	case *ast.FunctionCallExpr:
		if n.Kind == ast.CallTypeConversion && n.CreatedType != nil && n.CreatedType.Kind == ast.TypeAddress && len(n.Args) == 1 {
			if lit, ok := n.Args[0].(*ast.Literal); ok && lit.Kind == ast.LitNumber {
				if !common.IsHexAddress(lit.Text) && !isDecimal(lit.Text) {
					e.Coll.Add(&diag.ErrInvalidAddressLiteral{Literal: lit.Text})
					return
				}
				e.Domain.registerLiteral(lit.Text)
				return
			}
		}
		if n.Callee != nil {
			e.scanExpr(n.Callee)
		}
		for _, a := range n.Args {
			e.scanExpr(a)
		}
	case *ast.MemberAccess:
		e.scanExpr(n.Base)
	case *ast.IndexAccess:
		e.scanExpr(n.Base)
		e.scanExpr(n.Index)
	case *ast.Conditional:
		e.scanExpr(n.Cond)
		e.scanExpr(n.True)
		e.scanExpr(n.False)
	case *ast.UnaryOp:
		e.scanExpr(n.Operand)
	case *ast.BinaryOp:
		e.scanExpr(n.Left)
		e.scanExpr(n.Right)
	case *ast.Assignment:
		e.scanExpr(n.Lhs)
		e.scanExpr(n.Rhs)
	case *ast.TupleExpr:
		for _, el := range n.Elements {
			if el != nil {
				e.scanExpr(el)
			}
		}
	}
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// RoleExtractor counts address-typed state-variable slots of a flat
// contract, unrolling structs by path (spec.md §4.6). Per spec.md §9's open
// question, it assumes every role is in use — no liveness pruning.
type RoleExtractor struct {
	Domain *Domain
}

// Count adds flat's address-typed state variables (and address-typed struct
// fields at any nesting depth) to the domain's role count and returns how
// many were added.
func (e *RoleExtractor) Count(flat *flatmodel.FlatContract, structsByName map[string]*ast.StructDef) int {
	n := 0
	for _, v := range flat.StateVars {
		n += countAddressSlots(v.Type, structsByName)
	}
	e.Domain.roles += n
	return n
}

func countAddressSlots(t *ast.TypeName, structs map[string]*ast.StructDef) int {
	if t == nil {
		return 0
	}
	switch t.Kind {
	case ast.TypeAddress:
		return 1
	case ast.TypeStruct:
		s := structs[t.StructName]
		if s == nil {
			return 0
		}
		n := 0
		for _, f := range s.Fields {
			n += countAddressSlots(f.Type, structs)
		}
		return n
	default:
		return 0
	}
}

// ClientExtractor computes the max number of address parameters over any
// externally-callable function (sender counts as 1, spec.md §4.6).
type ClientExtractor struct {
	Domain *Domain
}

// Count scans flat's interface, updating the domain's client count to the
// maximum parameter-address-count seen (plus the implicit sender slot).
func (e *ClientExtractor) Count(flat *flatmodel.FlatContract) {
	max := 1 // sender always counts as 1
	for _, fn := range flat.Interface {
		n := 1
		for _, p := range fn.Params {
			if p.Type != nil && p.Type.Kind == ast.TypeAddress {
				n++
			}
		}
		if n > max {
			max = n
		}
	}
	if max > e.Domain.clients {
		e.Domain.clients = max
	}
}

// SetContractCount records the number of distinct contracts in the flat
// model (each a candidate address slot).
func (d *Domain) SetContractCount(n int) {
	d.contractCount = n
}

// checkOp rejects disallowed operations on address-typed subexpressions,
// per spec.md §4.6's Mutate/Compare/Cast rules.
func checkOp(isAddress func(ast.Expression) bool, c *diag.Collector, op string, left, right ast.Expression) {
	switch op {
	case "+", "-", "~", "++", "--":
		if isAddress(left) || (right != nil && isAddress(right)) {
			c.Add(&diag.ErrAddressMutate{Op: op})
		}
	case "<", ">", "<=", ">=":
		if isAddress(left) || (right != nil && isAddress(right)) {
			c.Add(&diag.ErrAddressCompare{Op: op})
		}
	}
}

// CheckUnary rejects Mutate violations on unary operators (spec.md §4.6).
func CheckUnary(u *ast.UnaryOp, isAddress func(ast.Expression) bool, c *diag.Collector) {
	if u.Op == "delete" {
		return
	}
	checkOp(isAddress, c, u.Op, u.Operand, nil)
}

// CheckBinary rejects Mutate/Compare violations on binary operators.
func CheckBinary(b *ast.BinaryOp, isAddress func(ast.Expression) bool, c *diag.Collector) {
	checkOp(isAddress, c, b.Op, b.Left, b.Right)
}

// CheckCast rejects narrowing/widening an address to any non-address,
// non-contract type (spec.md §4.6, "Cast").
func CheckCast(targetKind ast.TypeKind, targetName string, c *diag.Collector) {
	if targetKind != ast.TypeAddress && targetKind != ast.TypeContract {
		c.Add(&diag.ErrAddressCast{Target: targetName})
	}
}

// CheckMapKeyType rejects a mapping with a non-address key whose value is
// an address (spec.md §4.6, "KeyType"). Only a direct address value is
// examined here; a struct value holding addresses is reported by
// CheckMapValueType.
func CheckMapKeyType(keys []*ast.TypeName, value *ast.TypeName, c *diag.Collector) {
	if value == nil || value.Kind != ast.TypeAddress {
		return
	}
	for _, k := range keys {
		if k.Kind != ast.TypeAddress {
			c.Add(&diag.ErrMapKeyType{})
			return
		}
	}
}

// CheckMapValueType rejects a mapping whose value (or nested struct value
// field) is an address (spec.md §4.6, "ValueType"). containsAddress should
// report whether t is, or (for a struct) contains, an address field.
func CheckMapValueType(value *ast.TypeName, containsAddress func(*ast.TypeName) bool, c *diag.Collector) {
	if value == nil {
		return
	}
	if value.Kind == ast.TypeAddress || (value.Kind == ast.TypeStruct && containsAddress(value)) {
		c.Add(&diag.ErrMapValueType{})
	}
}

// LiteralName returns the emitted identifier "g_literal_address_<n>" for a
// registered literal.
func LiteralName(n int64) string {
	return "g_literal_address_" + strconv.FormatInt(n, 10)
}
