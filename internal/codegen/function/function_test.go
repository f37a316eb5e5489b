package function

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contract-ace/smartace/internal/analysis/address"
	"github.com/contract-ace/smartace/internal/analysis/callstate"
	"github.com/contract-ace/smartace/internal/analysis/flatmodel"
	"github.com/contract-ace/smartace/internal/analysis/mapdb"
	"github.com/contract-ace/smartace/internal/analysis/types"
	"github.com/contract-ace/smartace/internal/ast"
	"github.com/contract-ace/smartace/internal/cast"
	"github.com/contract-ace/smartace/internal/diag"
)

func newConverter() *Converter {
	return New(&flatmodel.Model{}, nil, types.NewTable(), address.NewDomain(true, 0), &ast.Bundle{}, diag.NewCollector())
}

func uintType(bits int) *ast.TypeName { return &ast.TypeName{Kind: ast.TypeUint, Bits: bits} }

func TestStructDecls_EmitsForwardDeclDefAndFamily(t *testing.T) {
	c := newConverter()
	s := &ast.StructDef{Name: "Item", Fields: []*ast.VariableDeclaration{
		{Name: "amount", Type: uintType(256)},
	}}
	decls := c.StructDecls("A", s)
	require.Len(t, decls, 5)

	fwd, ok := decls[0].(*cast.StructForwardDecl)
	require.True(t, ok)
	assert.Equal(t, "A_Struct_Item", fwd.Name)

	def, ok := decls[1].(*cast.StructDef)
	require.True(t, ok)
	assert.Equal(t, "A_Struct_Item", def.Name)
	require.Len(t, def.Fields, 1)
	assert.Equal(t, "user_amount", def.Fields[0].Name)

	zero, ok := decls[2].(*cast.FuncDef)
	require.True(t, ok)
	assert.Equal(t, "ZeroInit_A_Struct_Item", zero.Name)
	assert.Contains(t, zero.Body.Stmts[0].(*cast.VarDecl).Type, "A_Struct_Item")

	init, ok := decls[3].(*cast.FuncDef)
	require.True(t, ok)
	assert.Equal(t, "Init_A_Struct_Item", init.Name)
	require.Len(t, init.Params, 1)

	nd, ok := decls[4].(*cast.FuncDef)
	require.True(t, ok)
	assert.Equal(t, "ND_A_Struct_Item", nd.Name)
}

func TestMapDecls_EmitsReadAndWrite(t *testing.T) {
	c := newConverter()
	rec := &mapdb.Record{Name: "Map_1", Keys: []*ast.TypeName{{Kind: ast.TypeAddress}}, Value: uintType(256)}
	decls := c.MapDecls(rec)
	require.Len(t, decls, 6)

	read, ok := decls[3].(*cast.FuncDef)
	require.True(t, ok)
	assert.Equal(t, "Read_Map_1", read.Name)
	assert.Equal(t, "sol_uint256_t", read.ReturnType)

	write, ok := decls[4].(*cast.FuncDef)
	require.True(t, ok)
	assert.Equal(t, "Write_Map_1", write.Name)
	require.Len(t, write.Params, 3) // m, k_0, v

	set, ok := decls[5].(*cast.FuncDef)
	require.True(t, ok)
	assert.Equal(t, "Set_Map_1", set.Name)
}

func TestContractStruct_ZeroInitsEveryStateVar(t *testing.T) {
	c := newConverter()
	flat := &flatmodel.FlatContract{
		Name: "Token",
		StateVars: []*ast.VariableDeclaration{
			{Name: "owner", Type: &ast.TypeName{Kind: ast.TypeAddress}},
		},
	}
	decls := c.ContractStruct(flat)
	require.Len(t, decls, 3)
	def := decls[1].(*cast.StructDef)
	assert.Equal(t, "Token", def.Name)
	require.Len(t, def.Fields, 3) // model_balance + model_address + owner

	zero := decls[2].(*cast.FuncDef)
	assert.Equal(t, "ZeroInit_Token", zero.Name)
	assert.Len(t, zero.Body.Stmts, 3)
}

func TestConstructorChain_SingleContractEmitsEntryPoint(t *testing.T) {
	c := newConverter()
	flat := &flatmodel.FlatContract{
		Name:         "A",
		Bases:        []string{"A"},
		Constructors: []flatmodel.ConstructorLink{{Contract: "A", Fn: nil}},
	}
	decls, err := c.ConstructorChain(flat)
	require.NoError(t, err)
	require.Len(t, decls, 2)

	base := decls[0].(*cast.FuncDef)
	assert.Equal(t, "Init_A_For_A", base.Name)
	assert.Contains(t, cast.Print(base.Body.Stmts[0].(*cast.ExprStmt).Expr), "ZeroInit_A")

	entry := decls[1].(*cast.FuncDef)
	assert.Equal(t, "Init_A", entry.Name)
	assert.Contains(t, cast.Print(entry.Body.Stmts[0].(*cast.ExprStmt).Expr), "Init_A_For_A")
}

func TestMethod_NilBodyProducesForwardDeclaration(t *testing.T) {
	c := newConverter()
	fn := &ast.FunctionDef{Name: "f", Mutability: ast.MutNonpayable}
	decl, err := c.Method("A", "A", fn, callstate.Full)
	require.NoError(t, err)
	fd := decl.(*cast.FuncDef)
	assert.Equal(t, "A_Method_f", fd.Name)
	assert.Nil(t, fd.Body)
}

func TestMethod_FullThreadingIncludesSelfAndCallState(t *testing.T) {
	c := newConverter()
	fn := &ast.FunctionDef{Name: "f", Mutability: ast.MutNonpayable, Body: &ast.Block{}}
	decl, err := c.Method("A", "A", fn, callstate.Full)
	require.NoError(t, err)
	fd := decl.(*cast.FuncDef)
	require.True(t, len(fd.Params) >= 1+len(callstate.Param))
	assert.Equal(t, "self", fd.Params[0].Name)
	assert.Equal(t, "sender", fd.Params[1].Name)
}

func TestMethod_NoneThreadingOmitsSelf(t *testing.T) {
	c := newConverter()
	fn := &ast.FunctionDef{Name: "pureHelper", Mutability: ast.MutPure, Body: &ast.Block{}}
	decl, err := c.Method("Lib", "Lib", fn, callstate.None)
	require.NoError(t, err)
	fd := decl.(*cast.FuncDef)
	assert.Equal(t, "Lib_Method_pureHelper", fd.Name)
	assert.Len(t, fd.Params, 0)
}

func TestIsPlaceholder_DetectsUnderscoreExprStatement(t *testing.T) {
	stmt := &ast.ExprStatement{Expr: &ast.Identifier{Name: "_"}}
	assert.True(t, isPlaceholder(stmt))
	other := &ast.ExprStatement{Expr: &ast.Identifier{Name: "x"}}
	assert.False(t, isPlaceholder(other))
}

func TestExpandPlaceholder_SubstitutesInsideIf(t *testing.T) {
	placeholder := &ast.ExprStatement{Expr: &ast.Identifier{Name: "_"}}
	modBody := []ast.Statement{
		&ast.IfStatement{Cond: &ast.Identifier{Name: "cond"}, True: placeholder},
	}
	inner := []ast.Statement{&ast.ReturnStatement{}}
	out := expandPlaceholder(modBody, inner)
	require.Len(t, out, 1)
	ifs := out[0].(*ast.IfStatement)
	blk := ifs.True.(*ast.Block)
	assert.Equal(t, inner, blk.Statements)
}
