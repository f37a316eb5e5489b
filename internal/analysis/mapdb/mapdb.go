// Package mapdb canonicalizes every distinct mapping shape encountered in a
// bundle to a numbered record Map_N, assigned in first-seen order
// (spec.md §4.5).
package mapdb

import (
	"strconv"
	"strings"

	"go.uber.org/atomic"

	"github.com/contract-ace/smartace/internal/ast"
)

// Record is one canonicalized map shape.
type Record struct {
	Name  string // "Map_N"
	Keys  []*ast.TypeName
	Value *ast.TypeName
}

// Database assigns and looks up Map_N records. The counter is an
// atomic.Int64 (SPEC_FULL.md §11.3) because the database is populated from
// multiple analysis passes (type analyzer's three passes, plus the
// expression lowerer's recursive descent) over the same run.
type Database struct {
	counter atomic.Int64
	byShape map[string]*Record
	order   []*Record
}

// New returns an empty map database.
func New() *Database {
	return &Database{byShape: map[string]*Record{}}
}

// Resolve returns the record for the mapping declared by decl, assigning a
// new Map_N if this shape has not been seen before.
func (d *Database) Resolve(decl *ast.VariableDeclaration) *Record {
	return d.Query(decl.Type)
}

// Query returns the record for a mapping type node, flattening nested
// mappings (`mapping(K1 => mapping(K2 => V))` -> keys (K1, K2), value V).
func (d *Database) Query(t *ast.TypeName) *Record {
	keys, value := flatten(t)
	shape := shapeKey(keys, value)
	if r, ok := d.byShape[shape]; ok {
		return r
	}
	n := d.counter.Inc()
	r := &Record{Name: "Map_" + strconv.FormatInt(n, 10), Keys: keys, Value: value}
	d.byShape[shape] = r
	d.order = append(d.order, r)
	return r
}

// Records returns every record in first-seen (Map_N) order.
func (d *Database) Records() []*Record {
	return d.order
}

func flatten(t *ast.TypeName) ([]*ast.TypeName, *ast.TypeName) {
	var keys []*ast.TypeName
	cur := t
	for cur != nil && cur.Kind == ast.TypeMapping {
		keys = append(keys, cur.Key...)
		cur = cur.Value
	}
	return keys, cur
}

func shapeKey(keys []*ast.TypeName, value *ast.TypeName) string {
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(typeKey(k))
		b.WriteByte(',')
	}
	b.WriteByte('|')
	b.WriteString(typeKey(value))
	return b.String()
}

// typeKey renders a structural equality key for t: two types are the same
// map shape iff their flattened key tuple and value type produce the same
// key string (spec.md §4.5, "Two maps share a record iff their flattened
// key/value types are structurally equal").
func typeKey(t *ast.TypeName) string {
	if t == nil {
		return "nil"
	}
	switch t.Kind {
	case ast.TypeInt:
		return "int" + strconv.Itoa(t.Bits)
	case ast.TypeUint:
		return "uint" + strconv.Itoa(t.Bits)
	case ast.TypeBytesN:
		return "bytes" + strconv.Itoa(t.Bits)
	case ast.TypeBool:
		return "bool"
	case ast.TypeAddress:
		return "address"
	case ast.TypeString:
		return "string"
	case ast.TypeContract:
		return "contract:" + t.ContractName
	case ast.TypeStruct:
		return "struct:" + t.DeclaringContract + ":" + t.StructName
	case ast.TypeEnum:
		return "enum:" + t.DeclaringContract + ":" + t.EnumName
	case ast.TypeMapping:
		keys, value := flatten(t)
		return shapeKey(keys, value)
	case ast.TypeArray:
		elem := typeKey(t.Elem)
		if t.Dynamic {
			return "array:dyn:" + elem
		}
		return "array:" + elem
	case ast.TypeTuple:
		var parts []string
		for _, e := range t.Elements {
			parts = append(parts, typeKey(e))
		}
		return "tuple:" + strings.Join(parts, ",")
	default:
		return "unknown"
	}
}
