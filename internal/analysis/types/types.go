// Package types assigns C type names and C symbol names to AST nodes
// (spec.md §4.7): the fixed simple-type table, contract/struct/enum symbol
// naming with `_` escaping, and map-record dispatch through
// internal/analysis/mapdb.
package types

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/contract-ace/smartace/internal/analysis/mapdb"
	"github.com/contract-ace/smartace/internal/ast"
)

// Escape replaces `_` with `__` so `_`-joined qualified names stay
// unambiguous (spec.md §4.7).
func Escape(name string) string {
	return strings.ReplaceAll(name, "_", "__")
}

// ContractSymbol is the C symbol for contract name: `escape(name)`.
func ContractSymbol(name string) string {
	return Escape(name)
}

// ContractCType is the C type for contract name: `struct <symbol>`.
func ContractCType(name string) string {
	return "struct " + ContractSymbol(name)
}

// StructSymbol is the C symbol for struct s declared in contract: `<C>_Struct_<S>`.
func StructSymbol(contract, s string) string {
	return Escape(contract) + "_Struct_" + Escape(s)
}

// EnumCType returns the narrowest unsigned wrapper type able to hold
// numValues distinct enum members.
func EnumCType(numValues int) string {
	switch {
	case numValues <= 1<<8:
		return "sol_uint8_t"
	case numValues <= 1<<16:
		return "sol_uint16_t"
	case numValues <= 1<<32:
		return "sol_uint32_t"
	default:
		return "sol_uint64_t"
	}
}

// Table assigns C type names to AST type nodes, delegating mapping shapes
// to a shared mapdb.Database.
type Table struct {
	Maps *mapdb.Database
}

// NewTable returns a Table backed by a fresh map database.
func NewTable() *Table {
	return &Table{Maps: mapdb.New()}
}

// CType returns the C type name for t, per spec.md §4.7's fixed table:
// bool -> sol_bool_t; address -> sol_address_t; intN -> sol_intN_t;
// uintN -> sol_uintN_t; bytesN -> sol_uintN*8_t; string -> sol_uint256_t
// (hashed).
func (tb *Table) CType(t *ast.TypeName) string {
	if t == nil {
		return "void"
	}
	switch t.Kind {
	case ast.TypeBool:
		return "sol_bool_t"
	case ast.TypeAddress:
		return "sol_address_t"
	case ast.TypeInt:
		return "sol_int" + strconv.Itoa(t.Bits) + "_t"
	case ast.TypeUint:
		return "sol_uint" + strconv.Itoa(t.Bits) + "_t"
	case ast.TypeBytesN:
		return "sol_uint" + strconv.Itoa(t.Bits*8) + "_t"
	case ast.TypeString:
		return "sol_uint256_t"
	case ast.TypeContract:
		return ContractCType(t.ContractName)
	case ast.TypeStruct:
		return "struct " + StructSymbol(t.DeclaringContract, t.StructName)
	case ast.TypeEnum:
		return "sol_uint8_t" // every enum, whatever its member count; EnumCType is not consulted
	case ast.TypeMapping:
		r := tb.Maps.Query(t)
		return "struct " + r.Name
	default:
		return "void"
	}
}

// Symbol returns the bare C symbol for t, stripping the leading "struct "
// that CType adds for struct/contract/mapping types — the form needed to
// build a `ZeroInit_`/`Init_`/`ND_` *function name* rather than declare a
// variable of the type.
func (tb *Table) Symbol(t *ast.TypeName) string {
	return strings.TrimPrefix(tb.CType(t), "struct ")
}

// IsPointer reports whether a value of type t is represented in C as a
// pointer in storage-reference position (structs, contracts and mappings,
// when accessed by reference; scalars are accessed by value or by explicit
// `&` at the call site — see internal/codegen/expr).
func IsPointer(t *ast.TypeName, storageRef bool) bool {
	if !storageRef {
		return false
	}
	switch t.Kind {
	case ast.TypeStruct, ast.TypeContract, ast.TypeMapping:
		return true
	default:
		return false
	}
}

// HashStringLiteral computes the deterministic hash used for string
// literals (spec.md §4.9), matching Solidity's own keccak256 so the result
// is stable and traceable to the source literal.
func HashStringLiteral(s string) [32]byte {
	return crypto.Keccak256Hash([]byte(s))
}

