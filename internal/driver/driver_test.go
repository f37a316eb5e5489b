package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contract-ace/smartace/internal/ast"
)

func uintType(bits int) *ast.TypeName { return &ast.TypeName{Kind: ast.TypeUint, Bits: bits} }

// contract A { uint a; uint b; }
func TestRun_SimpleContractEmitsStructAndInit(t *testing.T) {
	bundle := &ast.Bundle{Contracts: []*ast.Contract{
		{
			Name:          "A",
			Linearization: []string{"A"},
			StateVars: []*ast.VariableDeclaration{
				{Name: "a", Type: uintType(256), StateVariable: true},
				{Name: "b", Type: uintType(256), StateVariable: true},
			},
		},
	}}

	res, err := Run(bundle, []string{"A"}, Config{})
	require.NoError(t, err)
	require.Empty(t, res.Violations)
	assert.Contains(t, res.Output, "struct A;")
	assert.Contains(t, res.Output, "void Init_A(struct A *self,sol_address_t sender,sol_uint256_t value,sol_uint256_t blocknum,sol_uint256_t timestamp,sol_bool_t paid,sol_address_t origin)")
}

// contract A { mapping(address=>uint) a; }
func TestRun_SimpleMapEmitsMapFamily(t *testing.T) {
	bundle := &ast.Bundle{Contracts: []*ast.Contract{
		{
			Name:          "A",
			Linearization: []string{"A"},
			StateVars: []*ast.VariableDeclaration{
				{Name: "a", StateVariable: true, Type: &ast.TypeName{
					Kind:  ast.TypeMapping,
					Key:   []*ast.TypeName{{Kind: ast.TypeAddress}},
					Value: uintType(256),
				}},
			},
		},
	}}

	res, err := Run(bundle, []string{"A"}, Config{})
	require.NoError(t, err)
	require.Empty(t, res.Violations)
	assert.Contains(t, res.Output, "struct Map_1;")
	assert.Contains(t, res.Output, "Read_Map_1")
	assert.Contains(t, res.Output, "Write_Map_1")
	assert.Contains(t, res.Output, "Set_Map_1")
}

// contract A{function f() public pure{}} contract B is A{function f() public pure{super.f();}}
func TestRun_InheritanceEmitsBothMethodSpecializations(t *testing.T) {
	bundle := &ast.Bundle{Contracts: []*ast.Contract{
		{
			Name:          "A",
			Linearization: []string{"A"},
			Functions: []*ast.FunctionDef{
				{Name: "f", Contract: "A", Visibility: ast.VisPublic, Mutability: ast.MutPure, Body: &ast.Block{}},
			},
		},
		{
			Name:          "B",
			Linearization: []string{"B", "A"},
			Functions: []*ast.FunctionDef{
				{Name: "f", Contract: "B", Visibility: ast.VisPublic, Mutability: ast.MutPure, Body: &ast.Block{
					Statements: []ast.Statement{
						&ast.ExprStatement{Expr: &ast.FunctionCallExpr{
							Kind: ast.CallSuper,
							Callee: &ast.MemberAccess{
								Base:   &ast.Identifier{Name: "super", Magic: ast.MagicSuper},
								Member: "f",
							},
						}},
					},
				}},
			},
		},
	}}

	res, err := Run(bundle, []string{"B"}, Config{})
	require.NoError(t, err)
	require.Empty(t, res.Violations)
	assert.Contains(t, res.Output, "A_Method_f")
	assert.Contains(t, res.Output, "B_Method_f")
	// Both f()s are pure library-shaped functions (no constructor, no state
	// vars), so threading is None: the call site must carry neither self
	// nor the call-state tuple, matching A_Method_f's own declared params.
	assert.Contains(t, res.Output, "A_Method_f()")
	assert.NotContains(t, res.Output, "A_Method_f(self")
}

// contract A { modifier m(){_; _; return;} function f() public m(){ } }
func TestRun_ModifierChainInlinesPlaceholderTwice(t *testing.T) {
	bundle := &ast.Bundle{Contracts: []*ast.Contract{
		{
			Name:          "A",
			Linearization: []string{"A"},
			Modifiers: []*ast.ModifierDef{
				{Name: "m", Body: &ast.Block{Statements: []ast.Statement{
					&ast.ExprStatement{Expr: &ast.Identifier{Name: "_"}},
					&ast.ExprStatement{Expr: &ast.Identifier{Name: "_"}},
					&ast.ReturnStatement{},
				}}},
			},
			Functions: []*ast.FunctionDef{
				{
					Name:       "f",
					Contract:   "A",
					Visibility: ast.VisPublic,
					Mutability: ast.MutPure,
					Modifiers:  []*ast.ModifierInvocation{{Name: "m"}},
					Body:       &ast.Block{},
				},
			},
		},
	}}

	res, err := Run(bundle, []string{"A"}, Config{})
	require.NoError(t, err)
	require.Empty(t, res.Violations)
	assert.Contains(t, res.Output, "A_Method_f")
	assert.Contains(t, res.Output, "return;")
}

// dst.transfer(5) inside a payable function.
func TestRun_PayableTransferEmitsSolTransferCall(t *testing.T) {
	addrType := &ast.TypeName{Kind: ast.TypeAddress}
	dst := &ast.Identifier{Kind: ast.IdentParam, Name: "dst"}
	dst.Typ = addrType
	amount := &ast.Literal{Kind: ast.LitNumber, Text: "5"}
	amount.Typ = uintType(256)

	bundle := &ast.Bundle{Contracts: []*ast.Contract{
		{
			Name:          "A",
			Linearization: []string{"A"},
			Functions: []*ast.FunctionDef{
				{
					Name:       "pay",
					Contract:   "A",
					Visibility: ast.VisPublic,
					Mutability: ast.MutPayable,
					Params:     []*ast.VariableDeclaration{{Name: "dst", Type: addrType}},
					Body: &ast.Block{Statements: []ast.Statement{
						&ast.ExprStatement{Expr: &ast.FunctionCallExpr{
							Kind:   ast.CallTransfer,
							Callee: &ast.MemberAccess{Base: dst, Member: "transfer"},
							Args:   []ast.Expression{amount},
						}},
					}},
				},
			},
		},
	}}

	res, err := Run(bundle, []string{"A"}, Config{})
	require.NoError(t, err)
	require.Empty(t, res.Violations)
	assert.Contains(t, res.Output, "sol_transfer(&((self)->model_balance),Init_sol_address_t((func_user_dst).v),Init_sol_uint256_t(5))")
}

// a[i] = 2; a[i]; with mapping(address=>uint) a.
func TestRun_MapWriteThenReadEmitsWriteAndReadCalls(t *testing.T) {
	addrType := &ast.TypeName{Kind: ast.TypeAddress}
	mapType := &ast.TypeName{Kind: ast.TypeMapping, Key: []*ast.TypeName{addrType}, Value: uintType(256)}
	idx := &ast.Identifier{Kind: ast.IdentParam, Name: "i"}
	idx.Typ = addrType
	two := &ast.Literal{Kind: ast.LitNumber, Text: "2"}
	two.Typ = uintType(256)

	mapVar := &ast.Identifier{Kind: ast.IdentStateVar, Name: "a"}
	mapVar.Typ = mapType
	indexLHS := &ast.IndexAccess{Base: mapVar, Index: idx}
	indexLHS.Typ = uintType(256)
	indexRHS := &ast.IndexAccess{Base: mapVar, Index: idx}
	indexRHS.Typ = uintType(256)

	bundle := &ast.Bundle{Contracts: []*ast.Contract{
		{
			Name:          "A",
			Linearization: []string{"A"},
			StateVars: []*ast.VariableDeclaration{
				{Name: "a", StateVariable: true, Type: &ast.TypeName{
					Kind:  ast.TypeMapping,
					Key:   []*ast.TypeName{addrType},
					Value: uintType(256),
				}},
			},
			Functions: []*ast.FunctionDef{
				{
					Name:       "g",
					Contract:   "A",
					Visibility: ast.VisPublic,
					Mutability: ast.MutNonpayable,
					Params:     []*ast.VariableDeclaration{{Name: "i", Type: addrType}},
					Body: &ast.Block{Statements: []ast.Statement{
						&ast.ExprStatement{Expr: &ast.Assignment{Op: "=", Lhs: indexLHS, Rhs: two}},
						&ast.ExprStatement{Expr: indexRHS},
					}},
				},
			},
		},
	}}

	res, err := Run(bundle, []string{"A"}, Config{})
	require.NoError(t, err)
	require.Empty(t, res.Violations)
	assert.Contains(t, res.Output, "Write_Map_1(&((self)->user_a),Init_sol_address_t((func_user_i).v),Init_sol_uint256_t(2))")
	assert.Contains(t, res.Output, "Read_Map_1(&((self)->user_a),Init_sol_address_t((func_user_i).v))")
}
