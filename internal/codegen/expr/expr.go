// Package expr is the expression lowerer of spec.md §4.9: a recursive
// visitor converting one Solidity expression into one C expression tree,
// honoring wrapped integer types, map read/write rewriting, storage-vs-
// memory pointer discipline, and the function-call taxonomy.
package expr

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/contract-ace/smartace/internal/analysis/address"
	"github.com/contract-ace/smartace/internal/analysis/callstate"
	"github.com/contract-ace/smartace/internal/analysis/contractrv"
	"github.com/contract-ace/smartace/internal/analysis/flatmodel"
	"github.com/contract-ace/smartace/internal/analysis/types"
	"github.com/contract-ace/smartace/internal/ast"
	"github.com/contract-ace/smartace/internal/cast"
	"github.com/contract-ace/smartace/internal/diag"
)

// Lowerer converts one Solidity expression into one C expression tree
// (spec.md §4.9). It is configured per call site with the scope in which
// the expression appears and whether it is being lowered as an assignment
// LHS (FindRef) or inside a constructor's initializer phase (Initializer).
type Lowerer struct {
	Scope       string // enclosing flat contract
	Model       *flatmodel.Model
	Types       *types.Table
	RV          *contractrv.Resolver
	Domain      *address.Domain
	Bundle      *ast.Bundle // whole parsed bundle, used to look up a callee's threading
	Diags       *diag.Collector
	CallState   callstate.State // the enclosing function's own incoming call-state, set when it is Full-threaded
	FindRef     bool
	Initializer bool
}

var subdenominations = map[string]*big.Int{
	"":       big.NewInt(1),
	"wei":    big.NewInt(1),
	"seconds": big.NewInt(1),
	"gwei":   big.NewInt(1_000_000_000),
	"minutes": big.NewInt(60),
	"hours":  big.NewInt(3600),
	"days":   big.NewInt(86400),
	"weeks":  big.NewInt(604800),
	"ether":  new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
}

// Lower converts e to a C expression.
func (l *Lowerer) Lower(e ast.Expression) (cast.Expr, error) {
	switch n := e.(type) {
	case *ast.Literal:
		return l.lowerLiteral(n)
	case *ast.Identifier:
		return l.lowerIdentifier(n)
	case *ast.MemberAccess:
		return l.lowerMemberAccess(n)
	case *ast.IndexAccess:
		return l.lowerIndexAccess(n, nil)
	case *ast.Conditional:
		return l.lowerConditional(n)
	case *ast.UnaryOp:
		return l.lowerUnary(n)
	case *ast.BinaryOp:
		return l.lowerBinary(n)
	case *ast.Assignment:
		return l.lowerAssignment(n)
	case *ast.FunctionCallExpr:
		return l.lowerCall(n)
	case *ast.TupleExpr:
		if len(n.Elements) == 1 {
			return l.Lower(n.Elements[0])
		}
		return nil, &diag.Unsupported{Construct: "multi-element tuple expression", Detail: "only legal as RHS of a tuple assignment"}
	default:
		return nil, diag.Internal("unknown expression node %T", e)
	}
}

func (l *Lowerer) lowerLiteral(n *ast.Literal) (cast.Expr, error) {
	switch n.Kind {
	case ast.LitBool:
		if n.Bool {
			return &cast.IntLit{Value: "1"}, nil
		}
		return &cast.IntLit{Value: "0"}, nil
	case ast.LitNumber:
		mult, ok := subdenominations[n.Subdenomination]
		if !ok {
			return nil, &diag.Unsupported{Construct: "numeric subdenomination", Detail: n.Subdenomination}
		}
		v, ok := new(big.Int).SetString(n.Text, 10)
		if !ok {
			return nil, diag.Internal("malformed numeric literal %q", n.Text)
		}
		v.Mul(v, mult)
		return &cast.IntLit{Value: v.String()}, nil
	case ast.LitString, ast.LitHexString:
		h := types.HashStringLiteral(n.Str)
		return &cast.IntLit{Value: fmt.Sprintf("0x%x", h)}, nil
	default:
		return nil, diag.Internal("unknown literal kind")
	}
}

// lowerAddressLiteral handles the special case of a numeric literal
// appearing directly inside an address(...) cast: it becomes the
// identifier g_literal_address_<n> (spec.md §4.9), registered with the
// address domain.
func (l *Lowerer) lowerAddressLiteral(n ast.Expression) (cast.Expr, bool) {
	lit, ok := n.(*ast.Literal)
	if !ok || lit.Kind != ast.LitNumber {
		return nil, false
	}
	idx := l.Domain.RegisterLiteral(lit.Text)
	return &cast.Ident{Name: address.LiteralName(idx)}, true
}

func (l *Lowerer) lowerIdentifier(n *ast.Identifier) (cast.Expr, error) {
	if n.Magic != ast.NotMagic {
		return l.lowerMagic(n)
	}
	switch n.Kind {
	case ast.IdentStateVar:
		field := &cast.Member{
			Base: &cast.Ident{Name: "self", Pointer: true},
			Name: "user_" + types.Escape(n.Name),
			Ptr:  types.IsPointer(n.ResolvedType(), true),
		}
		return l.unwrapIfValue(field, n.ResolvedType()), nil
	case ast.IdentParam, ast.IdentLocal:
		id := &cast.Ident{Name: "func_user_" + types.Escape(n.Name), Pointer: types.IsPointer(n.ResolvedType(), true)}
		return l.unwrapIfValue(id, n.ResolvedType()), nil
	case ast.IdentContract:
		return &cast.Ident{Name: types.ContractSymbol(n.Name)}, nil
	default:
		id := &cast.Ident{Name: "user_" + types.Escape(n.Name)}
		return l.unwrapIfValue(id, n.ResolvedType()), nil
	}
}

func (l *Lowerer) lowerMagic(n *ast.Identifier) (cast.Expr, error) {
	switch n.Magic {
	case ast.MagicThis, ast.MagicSuper:
		return &cast.Ident{Name: "self", Pointer: true}, nil
	default:
		return nil, diag.Internal("bare magic identifier %v lowered without member access", n.Magic)
	}
}

// unwrapIfValue applies ".v" to a wrapped-scalar identifier used in
// expression (non-reference) context (spec.md §4.9: "Wrapped integer types
// unwrap to .v when used in an expression context").
func (l *Lowerer) unwrapIfValue(e cast.Expr, t *ast.TypeName) cast.Expr {
	if t != nil && t.IsWrapped() && !l.FindRef {
		return &cast.Member{Base: e, Name: "v"}
	}
	return e
}

func (l *Lowerer) lowerMemberAccess(n *ast.MemberAccess) (cast.Expr, error) {
	if magic, ok := n.Base.(*ast.Identifier); ok && magic.Magic != ast.NotMagic {
		return l.lowerMagicMember(magic, n.Member)
	}

	baseType := n.Base.ResolvedType()
	if baseType != nil && baseType.Kind == ast.TypeAddress {
		if n.Member != "balance" {
			return nil, &diag.Unsupported{Construct: "address member", Detail: n.Member}
		}
		base, err := l.lowerRef(n.Base)
		if err != nil {
			return nil, err
		}
		return &cast.Member{Base: base, Name: "model_balance"}, nil
	}
	if baseType != nil && baseType.Kind == ast.TypeArray {
		return nil, &diag.Unsupported{Construct: "array member access", Detail: n.Member}
	}
	if enumID, ok := n.Base.(*ast.Identifier); ok && n.ResolvedType() != nil && n.ResolvedType().Kind == ast.TypeEnum {
		if ord, ok := l.enumOrdinal(enumID.Name, n.Member); ok {
			return &cast.IntLit{Value: fmt.Sprintf("%d", ord)}, nil
		}
		return nil, diag.Internal("unknown enum member %s.%s", enumID.Name, n.Member)
	}

	base, err := l.Lower(n.Base)
	if err != nil {
		return nil, err
	}
	ptr := types.IsPointer(n.ResolvedType(), true)
	field := &cast.Member{Base: base, Name: "user_" + types.Escape(n.Member), Ptr: ptr}
	return l.unwrapIfValue(field, n.ResolvedType()), nil
}

// enumOrdinal looks up member's declaration-order index within the enum
// named enumName, searching every flat contract in scope (enums are
// inherited alongside state variables, spec.md §4.2).
func (l *Lowerer) enumOrdinal(enumName, member string) (int, bool) {
	flat := l.Model.Get(l.Scope)
	if flat != nil {
		if ord, ok := ordinalIn(flat.Enums, enumName, member); ok {
			return ord, true
		}
	}
	for _, f := range l.Model.View() {
		if ord, ok := ordinalIn(f.Enums, enumName, member); ok {
			return ord, true
		}
	}
	return 0, false
}

func ordinalIn(enums []*ast.EnumDef, enumName, member string) (int, bool) {
	for _, e := range enums {
		if e.Name != enumName {
			continue
		}
		for i, v := range e.Values {
			if v == member {
				return i, true
			}
		}
	}
	return 0, false
}

func (l *Lowerer) lowerMagicMember(base *ast.Identifier, member string) (cast.Expr, error) {
	name, ok := callStateMember(base.Magic, member)
	if !ok {
		return nil, &diag.Unsupported{Construct: "magic member", Detail: member}
	}
	return &cast.Ident{Name: name}, nil
}

func callStateMember(magic ast.MagicKind, member string) (string, bool) {
	switch magic {
	case ast.MagicBlock:
		switch member {
		case "number":
			return "blocknum", true
		case "timestamp":
			return "timestamp", true
		}
	case ast.MagicMsg:
		switch member {
		case "sender":
			return "sender", true
		case "value":
			return "value", true
		}
	case ast.MagicTx:
		if member == "origin" {
			return "origin", true
		}
	}
	return "", false
}

func (l *Lowerer) lowerIndexAccess(n *ast.IndexAccess, assignRHS cast.Expr) (cast.Expr, error) {
	var keys []ast.Expression
	base := ast.Expression(n)
	for {
		ia, ok := base.(*ast.IndexAccess)
		if !ok {
			break
		}
		keys = append([]ast.Expression{ia.Index}, keys...)
		base = ia.Base
	}

	baseType := base.ResolvedType()
	if baseType == nil || baseType.Kind != ast.TypeMapping {
		return nil, &diag.Unsupported{Construct: "index access on non-mapping type"}
	}
	rec := l.Types.Maps.Query(baseType)
	if len(keys) != len(rec.Keys) {
		return nil, &diag.Unsupported{Construct: "partial map lookup", Detail: rec.Name}
	}

	baseExpr, err := l.Lower(base)
	if err != nil {
		return nil, err
	}
	args := []cast.Expr{&cast.Unary{Op: "&", Operand: baseExpr, Ptr: true}}
	for i, k := range keys {
		ke, err := l.lowerAsKey(k, rec.Keys[i])
		if err != nil {
			return nil, err
		}
		args = append(args, ke)
	}

	if assignRHS != nil {
		if rec.Value != nil && rec.Value.IsWrapped() {
			assignRHS = &cast.Call{Callee: "Init_" + l.Types.CType(rec.Value), Args: []cast.Expr{assignRHS}}
		}
		args = append(args, assignRHS)
		return &cast.Call{Callee: "Write_" + rec.Name, Args: args}, nil
	}
	read := &cast.Call{Callee: "Read_" + rec.Name, Args: args}
	return l.unwrapIfValue(read, n.ResolvedType()), nil
}

// lowerAsKey lowers a map-key subexpression, wrapping it through its
// Init_<type> constructor, matching the scenario-6 form
// `Init_sol_address_t((func_user_i).v)`.
func (l *Lowerer) lowerAsKey(k ast.Expression, keyType *ast.TypeName) (cast.Expr, error) {
	inner, err := l.Lower(k)
	if err != nil {
		return nil, err
	}
	return &cast.Call{Callee: "Init_" + l.Types.CType(keyType), Args: []cast.Expr{inner}}, nil
}

func (l *Lowerer) lowerConditional(n *ast.Conditional) (cast.Expr, error) {
	c, err := l.Lower(n.Cond)
	if err != nil {
		return nil, err
	}
	tExpr, err := l.Lower(n.True)
	if err != nil {
		return nil, err
	}
	fExpr, err := l.Lower(n.False)
	if err != nil {
		return nil, err
	}
	return &cast.Cond{C: c, T: tExpr, F: fExpr}, nil
}

func (l *Lowerer) lowerUnary(n *ast.UnaryOp) (cast.Expr, error) {
	if n.Op == "delete" {
		return nil, &diag.Unsupported{Construct: "delete"}
	}
	address.CheckUnary(n, isAddressExpr, l.Diags)
	operand, err := l.Lower(n.Operand)
	if err != nil {
		return nil, err
	}
	return &cast.Unary{Op: n.Op, Operand: operand, Postfix: !n.Prefix}, nil
}

func (l *Lowerer) lowerBinary(n *ast.BinaryOp) (cast.Expr, error) {
	switch n.Op {
	case "**":
		return nil, &diag.Unsupported{Construct: "exponentiation"}
	case ">>":
		return nil, &diag.Unsupported{Construct: "shift-right"}
	}
	address.CheckBinary(n, isAddressExpr, l.Diags)
	left, err := l.Lower(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := l.Lower(n.Right)
	if err != nil {
		return nil, err
	}
	return &cast.Binary{Op: normalizeOp(n.Op), Left: left, Right: right}, nil
}

func isAddressExpr(e ast.Expression) bool {
	t := e.ResolvedType()
	return t != nil && t.Kind == ast.TypeAddress
}

func normalizeOp(op string) string {
	return strings.TrimSuffix(op, "=")
}

func (l *Lowerer) lowerAssignment(n *ast.Assignment) (cast.Expr, error) {
	if ia, ok := n.Lhs.(*ast.IndexAccess); ok {
		rhs, err := l.Lower(n.Rhs)
		if err != nil {
			return nil, err
		}
		return l.lowerIndexAccess(ia, rhs)
	}

	if n.Op != "=" {
		// a op= b  ->  a = a op b  (spec.md §4.9, rule ii)
		plain := &ast.BinaryOp{Op: normalizeOp(n.Op), Left: n.Lhs, Right: n.Rhs}
		rhs, err := l.lowerBinary(plain)
		if err != nil {
			return nil, err
		}
		return l.assignValue(n.Lhs, rhs)
	}

	lType := n.Lhs.ResolvedType()
	if lType != nil && (lType.Kind == ast.TypeStruct || lType.Kind == ast.TypeContract) &&
		types.IsPointer(lType, true) {
		lhs, err := l.lowerRef(n.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := l.lowerRef(n.Rhs)
		if err != nil {
			return nil, err
		}
		return &cast.Assign{Lhs: lhs, Rhs: rhs}, nil
	}

	rhs, err := l.Lower(n.Rhs)
	if err != nil {
		return nil, err
	}
	return l.assignValue(n.Lhs, rhs)
}

// assignValue lowers lhs as a `.v`-unwrapped scalar assignment target.
func (l *Lowerer) assignValue(lhs ast.Expression, rhs cast.Expr) (cast.Expr, error) {
	lhsExpr, err := l.Lower(lhs)
	if err != nil {
		return nil, err
	}
	return &cast.Assign{Lhs: lhsExpr, Rhs: rhs}, nil
}

// lowerRef lowers e as a storage reference (pointer), used for whole-struct
// or whole-contract assignment.
func (l *Lowerer) lowerRef(e ast.Expression) (cast.Expr, error) {
	prev := l.FindRef
	l.FindRef = true
	defer func() { l.FindRef = prev }()
	return l.Lower(e)
}

// LowerRef is the exported form of lowerRef, used by the block lowerer to
// obtain a pointer to a tuple-assignment's non-primary destinations.
func (l *Lowerer) LowerRef(e ast.Expression) (cast.Expr, error) {
	return l.lowerRef(e)
}

// AssignValueTo is the exported form of assignValue, used by the block
// lowerer to assign a precomputed RHS (e.g. a multi-return call's primary
// result) to a tuple-assignment's first element.
func (l *Lowerer) AssignValueTo(lhs ast.Expression, rhs cast.Expr) (cast.Expr, error) {
	return l.assignValue(lhs, rhs)
}

// LowerCallWithExtraArgs lowers call normally, then appends extra to its
// emitted argument list (spec.md §4.10's tuple-return convention: the
// primary return comes back by value, every other tuple element is written
// through a trailing output-pointer argument).
func (l *Lowerer) LowerCallWithExtraArgs(call *ast.FunctionCallExpr, extra []cast.Expr) (cast.Expr, error) {
	e, err := l.lowerCall(call)
	if err != nil {
		return nil, err
	}
	c, ok := e.(*cast.Call)
	if !ok {
		return nil, diag.Internal("tuple-returning expression did not lower to a call")
	}
	c.Args = append(c.Args, extra...)
	return c, nil
}

func (l *Lowerer) lowerCall(n *ast.FunctionCallExpr) (cast.Expr, error) {
	switch n.Kind {
	case ast.CallDelegate:
		return nil, &diag.Unsupported{Construct: "delegatecall"}
	case ast.CallBare, ast.CallBareStatic:
		return l.lowerBareCall(n)
	case ast.CallAddMod, ast.CallMulMod, ast.CallPush, ast.CallPop, ast.CallNewArray:
		return nil, &diag.Unsupported{Construct: "call kind", Detail: fmt.Sprintf("%d", n.Kind)}
	case ast.CallBlockHash, ast.CallGasLeft, ast.CallSelfdestruct:
		return nil, &diag.Unsupported{Construct: "call kind", Detail: fmt.Sprintf("%d", n.Kind)}
	case ast.CallMetaType:
		return &cast.IntLit{Value: "0"}, nil
	case ast.CallLogging:
		return &cast.IntLit{Value: "0"}, nil
	case ast.CallCrypto:
		return l.lowerArgCall("sol_crypto", n.Args)
	case ast.CallAssert:
		return l.lowerCondCall("sol_assert", n.Args, "0")
	case ast.CallRequire:
		return l.lowerRequire(n.Args)
	case ast.CallRevert:
		return &cast.Call{Callee: "sol_require", Args: []cast.Expr{&cast.IntLit{Value: "0"}, &cast.IntLit{Value: "0"}}}, nil
	case ast.CallTransfer:
		return l.lowerPayment("sol_transfer", n)
	case ast.CallSend:
		return l.lowerPayment("sol_send", n)
	case ast.CallCreation:
		return l.lowerCreation(n)
	case ast.CallTypeConversion:
		return l.lowerTypeConversion(n)
	case ast.CallStructConstructor:
		return l.lowerStructConstructor(n)
	default:
		return l.lowerMethodCall(n)
	}
}

func (l *Lowerer) lowerArgCall(callee string, args []ast.Expression) (cast.Expr, error) {
	var out []cast.Expr
	for _, a := range args {
		e, err := l.Lower(a)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return &cast.Call{Callee: callee, Args: out}, nil
}

func (l *Lowerer) lowerCondCall(callee string, args []ast.Expression, fallback string) (cast.Expr, error) {
	if len(args) == 0 {
		return nil, diag.Internal("%s called with no arguments", callee)
	}
	cond, err := l.Lower(args[0])
	if err != nil {
		return nil, err
	}
	return &cast.Call{Callee: callee, Args: []cast.Expr{cond, &cast.IntLit{Value: fallback}}}, nil
}

func (l *Lowerer) lowerRequire(args []ast.Expression) (cast.Expr, error) {
	if len(args) == 0 {
		return nil, diag.Internal("require called with no arguments")
	}
	cond, err := l.Lower(args[0])
	if err != nil {
		return nil, err
	}
	if len(args) > 1 {
		msg, err := l.Lower(args[1])
		if err != nil {
			return nil, err
		}
		return &cast.Call{Callee: "sol_require", Args: []cast.Expr{cond, msg}}, nil
	}
	return &cast.Call{Callee: "sol_require", Args: []cast.Expr{cond, &cast.IntLit{Value: "0"}}}, nil
}

// lowerPayment lowers `x.transfer(v)`/`x.send(v)` (spec.md §4.9, "Payment").
func (l *Lowerer) lowerPayment(callee string, n *ast.FunctionCallExpr) (cast.Expr, error) {
	member, ok := n.Callee.(*ast.MemberAccess)
	if !ok || len(n.Args) != 1 {
		return nil, diag.Internal("malformed %s call", callee)
	}
	target, err := l.Lower(member.Base)
	if err != nil {
		return nil, err
	}
	value, err := l.Lower(n.Args[0])
	if err != nil {
		return nil, err
	}
	return l.paymentCall(callee, target, value), nil
}

// lowerBareCall lowers a low-level `.call{value: v}("")`/`.call.value(v)("")`
// invocation. spec.md §4.9's Payment rule lowers this "likewise" to
// sol_send when a value option is present; with no value option the call
// target's effect isn't statically known and is rejected.
func (l *Lowerer) lowerBareCall(n *ast.FunctionCallExpr) (cast.Expr, error) {
	valueArg, ok := n.NamedArgs["value"]
	if !ok {
		return nil, &diag.Unsupported{Construct: "low-level call", Detail: "target contract is not statically known"}
	}
	member, ok := n.Callee.(*ast.MemberAccess)
	if !ok {
		return nil, diag.Internal("malformed low-level call")
	}
	target, err := l.Lower(member.Base)
	if err != nil {
		return nil, err
	}
	value, err := l.Lower(valueArg)
	if err != nil {
		return nil, err
	}
	return l.paymentCall("sol_send", target, value), nil
}

func (l *Lowerer) paymentCall(callee string, target, value cast.Expr) cast.Expr {
	return &cast.Call{Callee: callee, Args: []cast.Expr{
		&cast.Unary{Op: "&", Operand: &cast.Member{Base: &cast.Ident{Name: "self", Pointer: true}, Name: "model_balance"}, Ptr: true},
		&cast.Call{Callee: "Init_sol_address_t", Args: []cast.Expr{target}},
		&cast.Call{Callee: "Init_sol_uint256_t", Args: []cast.Expr{value}},
	}}
}

// lowerCreation lowers `new T(args)` (spec.md §4.9, "Creation"). dest is
// supplied by the block lowerer (constructor-initializer phase or threaded
// dest parameter); here it is left as a placeholder identifier `dest` for
// the caller (internal/codegen/block) to splice the real destination into.
func (l *Lowerer) lowerCreation(n *ast.FunctionCallExpr) (cast.Expr, error) {
	if n.CreatedType == nil {
		return nil, diag.Internal("new-expression without a created type")
	}
	args := []cast.Expr{&cast.Ident{Name: "dest"}}
	for _, s := range callstate.Param {
		args = append(args, &cast.Ident{Name: s})
	}
	for _, a := range n.Args {
		e, err := l.Lower(a)
		if err != nil {
			return nil, err
		}
		args = append(args, e)
	}
	return &cast.Call{Callee: "Init_" + types.ContractSymbol(n.CreatedType.ContractName), Args: args}, nil
}

func (l *Lowerer) lowerTypeConversion(n *ast.FunctionCallExpr) (cast.Expr, error) {
	if n.CreatedType != nil && n.CreatedType.Kind == ast.TypeAddress && len(n.Args) == 1 {
		if e, ok := l.lowerAddressLiteral(n.Args[0]); ok {
			return e, nil
		}
	}
	if n.CreatedType != nil {
		address.CheckCast(n.CreatedType.Kind, l.Types.CType(n.CreatedType), l.Diags)
	}
	if len(n.Args) != 1 {
		return nil, diag.Internal("type conversion with %d arguments", len(n.Args))
	}
	inner, err := l.Lower(n.Args[0])
	if err != nil {
		return nil, err
	}
	if n.CreatedType == nil {
		return inner, nil
	}
	return &cast.Cast{Type: l.Types.CType(n.CreatedType), Operand: inner}, nil
}

func (l *Lowerer) lowerStructConstructor(n *ast.FunctionCallExpr) (cast.Expr, error) {
	if n.CreatedType == nil {
		return nil, diag.Internal("struct constructor without a created type")
	}
	var args []cast.Expr
	for _, a := range n.Args {
		e, err := l.Lower(a)
		if err != nil {
			return nil, err
		}
		args = append(args, e)
	}
	return &cast.Call{Callee: "Init_" + types.StructSymbol(n.CreatedType.DeclaringContract, n.CreatedType.StructName), Args: args}, nil
}

// callKind classifies a method call site the same way
// internal/analysis/callgraph classifies call-graph edges, mirrored here
// locally so the expression lowerer doesn't need to import that package.
type callKind int

const (
	kindInternal callKind = iota
	kindSuper
	kindLibrary
	kindExternal
)

// lowerMethodCall lowers an Internal/External/Super/Library call to a
// method specialization invocation (spec.md §4.9, "Method emission"). The
// emitted argument list is shaped by the callee's own callstate.Threading
// (spec.md §4.8): a pure callee's signature omits self and/or the
// call-state tuple, and the call site must match it exactly.
func (l *Lowerer) lowerMethodCall(n *ast.FunctionCallExpr) (cast.Expr, error) {
	member, isMember := n.Callee.(*ast.MemberAccess)
	var calleeName string
	var calleeContract string
	var baseExpr cast.Expr
	var kind callKind
	var err error

	switch {
	case isMember:
		calleeName = member.Member
		if magicID, ok := member.Base.(*ast.Identifier); ok && magicID.Magic == ast.MagicSuper {
			calleeContract = l.superTarget(magicID)
			baseExpr = &cast.Ident{Name: "self", Pointer: true}
			kind = kindSuper
		} else if id, ok := member.Base.(*ast.Identifier); ok && id.Kind == ast.IdentContract {
			calleeContract = id.Name
			baseExpr = nil
			kind = kindLibrary
		} else {
			calleeContract, err = l.RV.Resolve(member.Base, l.Scope)
			if err != nil {
				return nil, err
			}
			baseExpr, err = l.lowerRef(member.Base)
			if err != nil {
				return nil, err
			}
			kind = kindExternal
		}
	default:
		id, ok := n.Callee.(*ast.Identifier)
		if !ok {
			return nil, diag.Internal("malformed call callee")
		}
		calleeName = id.Name
		calleeContract = l.Scope
		baseExpr = &cast.Ident{Name: "self", Pointer: true}
		kind = kindInternal
	}

	callee := types.ContractSymbol(calleeContract) + "_Method_" + types.Escape(calleeName)
	threading := l.calleeThreading(calleeContract, calleeName)

	var args []cast.Expr
	if baseExpr != nil && threading != callstate.None {
		args = append(args, baseExpr)
	}
	if threading == callstate.Full {
		csArgs, csErr := l.nextCallStateArgs(kind, n)
		if csErr != nil {
			return nil, csErr
		}
		args = append(args, csArgs...)
	}
	for _, a := range n.Args {
		e, lowerErr := l.Lower(a)
		if lowerErr != nil {
			return nil, lowerErr
		}
		args = append(args, e)
	}
	return &cast.Call{Callee: callee, Args: args}, nil
}

// calleeThreading looks up contract.name's callstate.Threading, replicating
// the isLibraryFn computation internal/driver uses when it first emits that
// method (a library/free function is a contract with no constructor and no
// state variables). An unresolvable callee conservatively threads Full,
// matching every non-pure function's signature.
func (l *Lowerer) calleeThreading(contract, name string) callstate.Threading {
	if l.Bundle == nil {
		return callstate.Full
	}
	c := l.Bundle.ByName(contract)
	if c == nil {
		return callstate.Full
	}
	isLibraryFn := c.Constructor == nil && len(c.StateVars) == 0
	for _, fn := range c.Functions {
		if fn.Name == name {
			return callstate.ThreadingFor(fn.Mutability, isLibraryFn)
		}
	}
	return callstate.Full
}

// nextCallStateArgs computes the call-state tuple actually passed to a
// Full-threaded callee (spec.md §4.8). Internal/Super/Library calls stay
// within the same trace step: callstate.NextInternal forwards the caller's
// own state and clears paid. An External call crosses a contract boundary:
// callstate.NextExternal rewrites sender to this contract's own address and
// value to the (possibly absent) user-supplied payment, and forces paid.
func (l *Lowerer) nextCallStateArgs(kind callKind, n *ast.FunctionCallExpr) ([]cast.Expr, error) {
	if kind != kindExternal {
		next := callstate.NextInternal(l.CallState)
		return callStateArgsOf(next), nil
	}

	selfAddress := cast.Print(&cast.Member{Base: &cast.Ident{Name: "self", Pointer: true}, Name: "model_address"})

	valueExpr := ""
	if raw, ok := n.NamedArgs["value"]; ok {
		v, err := l.Lower(raw)
		if err != nil {
			return nil, err
		}
		valueExpr = cast.Print(&cast.Call{Callee: "Init_sol_uint256_t", Args: []cast.Expr{v}})
	}
	next := callstate.NextExternal(l.CallState, selfAddress, valueExpr)
	if next.Value == "0" {
		next.Value = cast.Print(&cast.Call{Callee: "ZeroInit_sol_uint256_t"})
	}
	return callStateArgsOf(next), nil
}

func callStateArgsOf(s callstate.State) []cast.Expr {
	return []cast.Expr{
		&cast.Ident{Name: s.Sender},
		&cast.Ident{Name: s.Value},
		&cast.Ident{Name: s.Blocknum},
		&cast.Ident{Name: s.Timestamp},
		paidArg(s.Paid),
		&cast.Ident{Name: s.Origin},
	}
}

func paidArg(paid bool) cast.Expr {
	v := "0"
	if paid {
		v = "1"
	}
	return &cast.Call{Callee: "Init_sol_bool_t", Args: []cast.Expr{&cast.IntLit{Value: v}}}
}

func (l *Lowerer) superTarget(magicID *ast.Identifier) string {
	flat := l.Model.Get(l.Scope)
	if flat == nil {
		return l.Scope
	}
	pastSelf := false
	for _, base := range flat.Bases {
		if !pastSelf {
			if base == l.Scope {
				pastSelf = true
			}
			continue
		}
		return base
	}
	return l.Scope
}
