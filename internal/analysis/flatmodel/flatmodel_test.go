package flatmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contract-ace/smartace/internal/analysis/alloc"
	"github.com/contract-ace/smartace/internal/ast"
)

// contract A { function f() public pure {} }
// contract B is A { function f() public pure { super.f(); } }
func TestBuild_OverrideResolution(t *testing.T) {
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
				{Name: "f", Contract: "B", Visibility: ast.VisPublic, Mutability: ast.MutPure, Body: &ast.Block{}},
			},
		},
	}}

	flat, err := Build(bundle, "B")
	require.NoError(t, err)
	require.Len(t, flat.Interface, 1)
	assert.Equal(t, "B", flat.Interface[0].Contract)
	require.Len(t, flat.Constructors, 2)
	assert.Equal(t, "B", flat.Constructors[0].Contract)
	assert.Equal(t, "A", flat.Constructors[1].Contract)
}

// contract A {} contract B { A a; constructor(){ a = new A(); } }
func TestBuildModel_AllocationClosure(t *testing.T) {
	bundle := &ast.Bundle{Contracts: []*ast.Contract{
		{Name: "A", Linearization: []string{"A"}},
		{
			Name:          "B",
			Linearization: []string{"B"},
			StateVars: []*ast.VariableDeclaration{
				{Name: "a", Type: &ast.TypeName{Kind: ast.TypeContract, ContractName: "A"}, StateVariable: true},
			},
			Constructor: &ast.FunctionDef{
				IsConstructor: true,
				Body: &ast.Block{Statements: []ast.Statement{
					&ast.ExprStatement{Expr: &ast.Assignment{
						Lhs: &ast.Identifier{Name: "a", Kind: ast.IdentStateVar},
						Rhs: &ast.FunctionCallExpr{Kind: ast.CallCreation, CreatedType: &ast.TypeName{Kind: ast.TypeContract, ContractName: "A"}},
						Op:  "=",
					}},
				}},
			},
		},
	}}

	g, c := alloc.Build(bundle, []string{"B"})
	require.False(t, c.HasViolations())

	m, err := BuildModel(bundle, []string{"B"}, g)
	require.NoError(t, err)
	assert.NotNil(t, m.Get("B"))
	assert.NotNil(t, m.Get("A"))
	assert.Len(t, m.View(), 2)
}
