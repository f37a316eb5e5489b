package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contract-ace/smartace/internal/ast"
	"github.com/contract-ace/smartace/internal/diag"
)

func contractType(name string) *ast.TypeName {
	return &ast.TypeName{Kind: ast.TypeContract, ContractName: name}
}

// contract B { A a; constructor() { a = new A(); } }
func TestBuild_SimpleAllocation(t *testing.T) {
	bundle := &ast.Bundle{Contracts: []*ast.Contract{
		{Name: "A", Linearization: []string{"A"}},
		{
			Name:          "B",
			Linearization: []string{"B"},
			StateVars: []*ast.VariableDeclaration{
				{Name: "a", Type: contractType("A"), StateVariable: true},
			},
			Constructor: &ast.FunctionDef{
				IsConstructor: true,
				Body: &ast.Block{Statements: []ast.Statement{
					&ast.ExprStatement{Expr: &ast.Assignment{
						Lhs: &ast.Identifier{Name: "a", Kind: ast.IdentStateVar},
						Rhs: &ast.FunctionCallExpr{Kind: ast.CallCreation, CreatedType: contractType("A")},
						Op:  "=",
					}},
				}},
			},
		},
	}}

	g, c := Build(bundle, []string{"B"})
	require.False(t, c.HasViolations(), c.Error())

	edges := g.Children("B")
	require.Len(t, edges, 1)
	assert.Equal(t, "A", edges[0].Child)
	assert.Equal(t, "a", edges[0].Slot)
	assert.Equal(t, 2, g.Cost("B"))
	assert.Equal(t, 1, g.Cost("A"))
}

// new A() appearing in a plain (non-constructor) function escapes.
func TestBuild_EscapingAllocation(t *testing.T) {
	bundle := &ast.Bundle{Contracts: []*ast.Contract{
		{Name: "A", Linearization: []string{"A"}},
		{
			Name:          "B",
			Linearization: []string{"B"},
			Functions: []*ast.FunctionDef{
				{
					Name:       "make",
					Visibility: ast.VisPublic,
					Body: &ast.Block{Statements: []ast.Statement{
						&ast.ExprStatement{Expr: &ast.FunctionCallExpr{Kind: ast.CallCreation, CreatedType: contractType("A")}},
					}},
				},
			},
		},
	}}

	_, c := Build(bundle, []string{"B"})
	require.True(t, c.HasViolations())
	_, ok := c.Violations()[0].(*diag.ErrEscapingAllocation)
	assert.True(t, ok)
}

// cyclic allocation: A allocates B, B allocates A.
func TestBuild_Cycle(t *testing.T) {
	bundle := &ast.Bundle{Contracts: []*ast.Contract{
		{
			Name:          "A",
			Linearization: []string{"A"},
			StateVars: []*ast.VariableDeclaration{
				{Name: "b", Type: contractType("B"), StateVariable: true},
			},
			Constructor: &ast.FunctionDef{
				IsConstructor: true,
				Body: &ast.Block{Statements: []ast.Statement{
					&ast.ExprStatement{Expr: &ast.Assignment{
						Lhs: &ast.Identifier{Name: "b", Kind: ast.IdentStateVar},
						Rhs: &ast.FunctionCallExpr{Kind: ast.CallCreation, CreatedType: contractType("B")},
						Op:  "=",
					}},
				}},
			},
		},
		{
			Name:          "B",
			Linearization: []string{"B"},
			StateVars: []*ast.VariableDeclaration{
				{Name: "a", Type: contractType("A"), StateVariable: true},
			},
			Constructor: &ast.FunctionDef{
				IsConstructor: true,
				Body: &ast.Block{Statements: []ast.Statement{
					&ast.ExprStatement{Expr: &ast.Assignment{
						Lhs: &ast.Identifier{Name: "a", Kind: ast.IdentStateVar},
						Rhs: &ast.FunctionCallExpr{Kind: ast.CallCreation, CreatedType: contractType("A")},
						Op:  "=",
					}},
				}},
			},
		},
	}}

	_, c := Build(bundle, []string{"A"})
	require.True(t, c.HasViolations())
}
