package types

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/contract-ace/smartace/internal/ast"
)

func TestCType_FixedTable(t *testing.T) {
	tb := NewTable()
	assert.Equal(t, "sol_bool_t", tb.CType(&ast.TypeName{Kind: ast.TypeBool}))
	assert.Equal(t, "sol_address_t", tb.CType(&ast.TypeName{Kind: ast.TypeAddress}))
	assert.Equal(t, "sol_uint256_t", tb.CType(&ast.TypeName{Kind: ast.TypeUint, Bits: 256}))
	assert.Equal(t, "sol_int8_t", tb.CType(&ast.TypeName{Kind: ast.TypeInt, Bits: 8}))
	assert.Equal(t, "sol_uint256_t", tb.CType(&ast.TypeName{Kind: ast.TypeBytesN, Bits: 32}))
	assert.Equal(t, "sol_uint256_t", tb.CType(&ast.TypeName{Kind: ast.TypeString}))
}

func TestCType_MapDelegatesToSharedDatabase(t *testing.T) {
	tb := NewTable()
	m := &ast.TypeName{Kind: ast.TypeMapping,
		Key:   []*ast.TypeName{{Kind: ast.TypeAddress}},
		Value: &ast.TypeName{Kind: ast.TypeUint, Bits: 256},
	}
	assert.Equal(t, "struct Map_1", tb.CType(m))
	assert.Equal(t, "struct Map_1", tb.CType(m)) // same shape, same record
}

func TestEscape_DoublesUnderscores(t *testing.T) {
	assert.Equal(t, "My__Contract", Escape("My_Contract"))
}

func TestStructSymbol(t *testing.T) {
	assert.Equal(t, "A_Struct_Foo", StructSymbol("A", "Foo"))
}
