package callgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contract-ace/smartace/internal/analysis/alloc"
	"github.com/contract-ace/smartace/internal/analysis/contractrv"
	"github.com/contract-ace/smartace/internal/analysis/flatmodel"
	"github.com/contract-ace/smartace/internal/ast"
)

// contract A { function f() public pure {} }
// contract B is A { function f() public pure { super.f(); } }
func TestBuild_SuperEdge(t *testing.T) {
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
				{
					Name: "f", Contract: "B", Visibility: ast.VisPublic, Mutability: ast.MutPure,
					Body: &ast.Block{Statements: []ast.Statement{
						&ast.ExprStatement{Expr: &ast.FunctionCallExpr{
							Kind:   ast.CallSuper,
							Callee: &ast.MemberAccess{Base: &ast.Identifier{Magic: ast.MagicSuper}, Member: "f"},
						}},
					}},
				},
			},
		},
	}}

	g, c := alloc.Build(bundle, []string{"B"})
	require.False(t, c.HasViolations())
	model, err := flatmodel.BuildModel(bundle, []string{"B"}, g)
	require.NoError(t, err)
	rv := contractrv.New(model, g)

	flatB := model.Get("B")
	require.NotNil(t, flatB)
	cg := Build(flatB, model, rv, bundle)

	vB := Vertex{Contract: "B", Name: "f"}
	edges := cg.Edges(vB)
	require.Len(t, edges, 1)
	assert.Equal(t, Super, edges[0].Kind)
	assert.Equal(t, Vertex{Contract: "A", Name: "f"}, edges[0].To)
}
