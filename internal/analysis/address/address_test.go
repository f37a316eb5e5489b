package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contract-ace/smartace/internal/ast"
	"github.com/contract-ace/smartace/internal/diag"
)

func TestLiteralExtractor_RegistersAddressCast(t *testing.T) {
	d := NewDomain(false, 0)
	c := diag.NewCollector()
	e := &LiteralExtractor{Domain: d, Coll: c}

	body := &ast.Block{Statements: []ast.Statement{
		&ast.ExprStatement{Expr: &ast.FunctionCallExpr{
			Kind:        ast.CallTypeConversion,
			CreatedType: &ast.TypeName{Kind: ast.TypeAddress},
			Args:        []ast.Expression{&ast.Literal{Kind: ast.LitNumber, Text: "7"}},
		}},
	}}
	e.Extract(body)
	require.False(t, c.HasViolations())
	assert.Equal(t, 2, d.Size()) // literal 0 + literal 7
}

func TestLiteralExtractor_RejectsMalformedLiteral(t *testing.T) {
	d := NewDomain(false, 0)
	c := diag.NewCollector()
	e := &LiteralExtractor{Domain: d, Coll: c}

	body := &ast.Block{Statements: []ast.Statement{
		&ast.ExprStatement{Expr: &ast.FunctionCallExpr{
			Kind:        ast.CallTypeConversion,
			CreatedType: &ast.TypeName{Kind: ast.TypeAddress},
			Args:        []ast.Expression{&ast.Literal{Kind: ast.LitNumber, Text: "not-a-number"}},
		}},
	}}
	e.Extract(body)
	require.True(t, c.HasViolations())
	_, ok := c.Violations()[0].(*diag.ErrInvalidAddressLiteral)
	assert.True(t, ok)
}

func TestDomain_Size_ConcreteElidesRolesAndClients(t *testing.T) {
	d := NewDomain(true, 2)
	d.SetContractCount(3)
	d.roles = 5
	d.clients = 4
	assert.Equal(t, 3+1+2, d.Size())
}

func TestCheckBinary_RejectsOrderedComparisonOnAddress(t *testing.T) {
	c := diag.NewCollector()
	isAddr := func(e ast.Expression) bool { return true }
	CheckBinary(&ast.BinaryOp{Op: "<"}, isAddr, c)
	require.True(t, c.HasViolations())
	_, ok := c.Violations()[0].(*diag.ErrAddressCompare)
	assert.True(t, ok)
}

// mapping(uint => uint): no address anywhere, no violation.
func TestCheckMapKeyType_AllowsNonAddressKeyWithNonAddressValue(t *testing.T) {
	c := diag.NewCollector()
	keys := []*ast.TypeName{{Kind: ast.TypeUint, Bits: 256}}
	value := &ast.TypeName{Kind: ast.TypeUint, Bits: 256}
	CheckMapKeyType(keys, value, c)
	assert.False(t, c.HasViolations())
}

// mapping(uint => mapping(bool => address)): non-address keys on a map
// that holds addresses are rejected.
func TestCheckMapKeyType_RejectsNonAddressKeyWithAddressValue(t *testing.T) {
	c := diag.NewCollector()
	keys := []*ast.TypeName{{Kind: ast.TypeUint, Bits: 256}, {Kind: ast.TypeBool}}
	value := &ast.TypeName{Kind: ast.TypeAddress}
	CheckMapKeyType(keys, value, c)
	require.True(t, c.HasViolations())
	_, ok := c.Violations()[0].(*diag.ErrMapKeyType)
	assert.True(t, ok)
}

// mapping(address => uint): every key is an address, no violation.
func TestCheckMapKeyType_AllowsAllAddressKeys(t *testing.T) {
	c := diag.NewCollector()
	keys := []*ast.TypeName{{Kind: ast.TypeAddress}}
	value := &ast.TypeName{Kind: ast.TypeUint, Bits: 256}
	CheckMapKeyType(keys, value, c)
	assert.False(t, c.HasViolations())
}

func TestCheckMapValueType_RejectsAddressValue(t *testing.T) {
	c := diag.NewCollector()
	CheckMapValueType(&ast.TypeName{Kind: ast.TypeAddress}, func(*ast.TypeName) bool { return false }, c)
	require.True(t, c.HasViolations())
	_, ok := c.Violations()[0].(*diag.ErrMapValueType)
	assert.True(t, ok)
}
