package contractrv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contract-ace/smartace/internal/analysis/alloc"
	"github.com/contract-ace/smartace/internal/analysis/flatmodel"
	"github.com/contract-ace/smartace/internal/ast"
)

func contractType(name string) *ast.TypeName {
	return &ast.TypeName{Kind: ast.TypeContract, ContractName: name}
}

// contract A {} contract B { A a; constructor(){ a = new A(); } function get() public returns (A) { return a; } }
func TestResolve_StateVarAndCall(t *testing.T) {
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
			Functions: []*ast.FunctionDef{
				{
					Name:       "get",
					Contract:   "B",
					Visibility: ast.VisPublic,
					Body: &ast.Block{Statements: []ast.Statement{
						&ast.ReturnStatement{Value: &ast.Identifier{Name: "a", Kind: ast.IdentStateVar}},
					}},
				},
			},
		},
	}}

	g, c := alloc.Build(bundle, []string{"B"})
	require.False(t, c.HasViolations())
	model, err := flatmodel.BuildModel(bundle, []string{"B"}, g)
	require.NoError(t, err)

	r := New(model, g)

	rv, err := r.Resolve(&ast.Identifier{Name: "a", Kind: ast.IdentStateVar}, "B")
	require.NoError(t, err)
	assert.Equal(t, "A", rv)

	call := &ast.FunctionCallExpr{Kind: ast.CallInternal, Callee: &ast.Identifier{Name: "get"}}
	rv, err = r.Resolve(call, "B")
	require.NoError(t, err)
	assert.Equal(t, "A", rv)
}
