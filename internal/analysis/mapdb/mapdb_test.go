package mapdb

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/contract-ace/smartace/internal/ast"
)

func TestQuery_DeduplicatesIdenticalShapes(t *testing.T) {
	d := New()
	a := &ast.TypeName{Kind: ast.TypeMapping,
		Key:   []*ast.TypeName{{Kind: ast.TypeAddress}},
		Value: &ast.TypeName{Kind: ast.TypeUint, Bits: 256},
	}
	b := &ast.TypeName{Kind: ast.TypeMapping,
		Key:   []*ast.TypeName{{Kind: ast.TypeAddress}},
		Value: &ast.TypeName{Kind: ast.TypeUint, Bits: 256},
	}

	ra := d.Query(a)
	rb := d.Query(b)
	assert.Same(t, ra, rb)
	assert.Equal(t, "Map_1", ra.Name)
}

func TestQuery_FlattensNestedMappings(t *testing.T) {
	d := New()
	nested := &ast.TypeName{Kind: ast.TypeMapping,
		Key: []*ast.TypeName{{Kind: ast.TypeAddress}},
		Value: &ast.TypeName{Kind: ast.TypeMapping,
			Key:   []*ast.TypeName{{Kind: ast.TypeUint, Bits: 256}},
			Value: &ast.TypeName{Kind: ast.TypeBool},
		},
	}
	r := d.Query(nested)
	assert.Len(t, r.Keys, 2)
	assert.Equal(t, ast.TypeBool, r.Value.Kind)
}

func TestQuery_DistinctShapesGetDistinctNames(t *testing.T) {
	d := New()
	r1 := d.Query(&ast.TypeName{Kind: ast.TypeMapping,
		Key: []*ast.TypeName{{Kind: ast.TypeAddress}}, Value: &ast.TypeName{Kind: ast.TypeUint, Bits: 256}})
	r2 := d.Query(&ast.TypeName{Kind: ast.TypeMapping,
		Key: []*ast.TypeName{{Kind: ast.TypeUint, Bits: 256}}, Value: &ast.TypeName{Kind: ast.TypeBool}})
	assert.NotEqual(t, r1.Name, r2.Name)
}
