package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contract-ace/smartace/internal/analysis/address"
	"github.com/contract-ace/smartace/internal/analysis/alloc"
	"github.com/contract-ace/smartace/internal/analysis/callstate"
	"github.com/contract-ace/smartace/internal/analysis/contractrv"
	"github.com/contract-ace/smartace/internal/analysis/types"
	"github.com/contract-ace/smartace/internal/ast"
	"github.com/contract-ace/smartace/internal/cast"
	"github.com/contract-ace/smartace/internal/diag"
)

func newLowerer() *Lowerer {
	return &Lowerer{
		Scope:  "A",
		Types:  types.NewTable(),
		Domain: address.NewDomain(true, 0),
		Diags:  diag.NewCollector(),
	}
}

// typedIdent builds an Identifier annotated with a resolved type. Typ is a
// promoted field from ast's unexported `typed` embed; promoted exported
// fields remain settable from outside the declaring package.
func typedIdent(kind ast.IdentKind, name string, t *ast.TypeName) *ast.Identifier {
	id := &ast.Identifier{Kind: kind, Name: name}
	id.Typ = t
	return id
}

func typedLit(lit *ast.Literal, t *ast.TypeName) *ast.Literal {
	lit.Typ = t
	return lit
}

func TestLowerLiteral_Bool(t *testing.T) {
	l := newLowerer()
	e, err := l.Lower(&ast.Literal{Kind: ast.LitBool, Bool: true})
	require.NoError(t, err)
	assert.Equal(t, "1", cast.Print(e))
}

func TestLowerLiteral_NumberWithSubdenomination(t *testing.T) {
	l := newLowerer()
	e, err := l.Lower(&ast.Literal{Kind: ast.LitNumber, Text: "2", Subdenomination: "ether"})
	require.NoError(t, err)
	assert.Equal(t, "2000000000000000000", cast.Print(e))
}

func TestLowerBinary_RejectsOrderedAddressCompare(t *testing.T) {
	l := newLowerer()
	addrType := &ast.TypeName{Kind: ast.TypeAddress}
	left := typedIdent(ast.IdentLocal, "a", addrType)
	right := typedIdent(ast.IdentLocal, "b", addrType)
	bin := &ast.BinaryOp{Op: "<", Left: left, Right: right}
	_, err := l.Lower(bin)
	require.NoError(t, err)
	require.Len(t, l.Diags.Violations(), 1)
	_, ok := l.Diags.Violations()[0].(*diag.ErrAddressCompare)
	assert.True(t, ok)
}

func TestLowerAssignment_CompoundOperatorExpands(t *testing.T) {
	l := newLowerer()
	uintType := &ast.TypeName{Kind: ast.TypeUint, Bits: 256}
	lhs := typedIdent(ast.IdentLocal, "x", uintType)
	rhs := typedLit(&ast.Literal{Kind: ast.LitNumber, Text: "1"}, uintType)
	asg := &ast.Assignment{Op: "+=", Lhs: lhs, Rhs: rhs}
	e, err := l.Lower(asg)
	require.NoError(t, err)
	out := cast.Print(e)
	assert.Contains(t, out, "+")
	assert.Contains(t, out, ".v")
}

func TestLowerTypeConversion_AddressLiteralRegistersWithDomain(t *testing.T) {
	l := newLowerer()
	call := &ast.FunctionCallExpr{
		Kind:        ast.CallTypeConversion,
		CreatedType: &ast.TypeName{Kind: ast.TypeAddress},
		Args:        []ast.Expression{&ast.Literal{Kind: ast.LitNumber, Text: "0"}},
	}
	e, err := l.Lower(call)
	require.NoError(t, err)
	assert.Equal(t, "g_literal_address_0", cast.Print(e))
}

func TestLowerRequire_NoMessage(t *testing.T) {
	l := newLowerer()
	call := &ast.FunctionCallExpr{
		Kind: ast.CallRequire,
		Args: []ast.Expression{&ast.Literal{Kind: ast.LitBool, Bool: true}},
	}
	e, err := l.Lower(call)
	require.NoError(t, err)
	assert.Equal(t, "sol_require(1,0)", cast.Print(e))
}

func TestLowerCall_DelegateIsUnsupported(t *testing.T) {
	l := newLowerer()
	_, err := l.Lower(&ast.FunctionCallExpr{Kind: ast.CallDelegate})
	require.Error(t, err)
	var unsupported *diag.Unsupported
	require.ErrorAs(t, err, &unsupported)
}

// contract A { uint x; function f() public pure {} function g() { f(); } }
func TestLowerMethodCall_PureCalleeOmitsCallStateButKeepsSelf(t *testing.T) {
	bundle := &ast.Bundle{Contracts: []*ast.Contract{{
		Name: "A",
		StateVars: []*ast.VariableDeclaration{
			{Name: "x", Type: &ast.TypeName{Kind: ast.TypeUint, Bits: 256}, StateVariable: true},
		},
		Functions: []*ast.FunctionDef{{Name: "f", Mutability: ast.MutPure}},
	}}}
	l := newLowerer()
	l.Bundle = bundle

	call := &ast.FunctionCallExpr{Callee: &ast.Identifier{Kind: ast.IdentLocal, Name: "f"}}
	e, err := l.Lower(call)
	require.NoError(t, err)
	assert.Equal(t, "A_Method_f(self)", cast.Print(e))
}

// library Lib { function f() internal pure {} } ... Lib.f();
func TestLowerMethodCall_PureLibraryCalleeOmitsSelfAndCallState(t *testing.T) {
	bundle := &ast.Bundle{Contracts: []*ast.Contract{{
		Name:      "Lib",
		Functions: []*ast.FunctionDef{{Name: "f", Mutability: ast.MutPure}},
	}}}
	l := newLowerer()
	l.Bundle = bundle

	call := &ast.FunctionCallExpr{Callee: &ast.MemberAccess{
		Base:   typedIdent(ast.IdentContract, "Lib", nil),
		Member: "f",
	}}
	e, err := l.Lower(call)
	require.NoError(t, err)
	assert.Equal(t, "Lib_Method_f()", cast.Print(e))
}

// contract B { function g() public {} } contract A { B b; function h() public { b.g.value(5)(); } }
func TestLowerMethodCall_ExternalCallRewritesSenderAndValue(t *testing.T) {
	bundle := &ast.Bundle{Contracts: []*ast.Contract{
		{Name: "A"},
		{Name: "B", Functions: []*ast.FunctionDef{{Name: "g", Mutability: ast.MutNonpayable}}},
	}}
	graph, _ := alloc.Build(bundle, nil)

	l := newLowerer()
	l.Bundle = bundle
	l.RV = contractrv.New(nil, graph)
	l.CallState = callstate.State{Sender: "sender", Value: "value", Blocknum: "blocknum", Timestamp: "timestamp", Origin: "origin"}

	target := typedIdent(ast.IdentStateVar, "b", &ast.TypeName{Kind: ast.TypeContract, ContractName: "B"})
	call := &ast.FunctionCallExpr{
		Callee:    &ast.MemberAccess{Base: target, Member: "g"},
		NamedArgs: map[string]ast.Expression{"value": &ast.Literal{Kind: ast.LitNumber, Text: "5"}},
	}
	e, err := l.Lower(call)
	require.NoError(t, err)
	out := cast.Print(e)
	assert.Contains(t, out, "B_Method_g(")
	assert.Contains(t, out, "model_address") // sender rewritten to this contract's own address
	assert.Contains(t, out, "Init_sol_uint256_t(5)")
	assert.Contains(t, out, "Init_sol_bool_t(1)") // paid forced true on an external call
}

// x.call.value(3)("")
func TestLowerCall_BareCallWithValueLowersLikeSend(t *testing.T) {
	l := newLowerer()
	target := typedIdent(ast.IdentLocal, "target", &ast.TypeName{Kind: ast.TypeAddress})
	call := &ast.FunctionCallExpr{
		Kind:      ast.CallBare,
		Callee:    &ast.MemberAccess{Base: target, Member: "call"},
		NamedArgs: map[string]ast.Expression{"value": &ast.Literal{Kind: ast.LitNumber, Text: "3"}},
	}
	e, err := l.Lower(call)
	require.NoError(t, err)
	out := cast.Print(e)
	assert.Contains(t, out, "sol_send(")
	assert.Contains(t, out, "model_balance")
	assert.Contains(t, out, "Init_sol_uint256_t(3)")
}

func TestLowerCall_BareCallWithoutValueIsUnsupported(t *testing.T) {
	l := newLowerer()
	target := typedIdent(ast.IdentLocal, "target", &ast.TypeName{Kind: ast.TypeAddress})
	call := &ast.FunctionCallExpr{Kind: ast.CallBareStatic, Callee: &ast.MemberAccess{Base: target, Member: "call"}}
	_, err := l.Lower(call)
	require.Error(t, err)
	var unsupported *diag.Unsupported
	require.ErrorAs(t, err, &unsupported)
}
