// Package ast defines the borrowed, immutable AST that the core operates
// on. The front-end that produces it (lexer, parser, type-checker) is out
// of scope; this package only fixes the shape the core consumes, node kinds
// expressed as a tagged union of concrete Go types behind the Statement and
// Expression interfaces so that downstream passes walk them with ordinary
// type switches instead of double-dispatch visitors.
package ast

// TypeKind enumerates the C-relevant shapes of a Solidity type.
type TypeKind int

// TypeKind values.
const (
	TypeUnknown TypeKind = iota
	TypeBool
	TypeInt
	TypeUint
	TypeBytesN
	TypeString
	TypeAddress
	TypeContract
	TypeStruct
	TypeEnum
	TypeMapping
	TypeArray
	TypeTuple
	TypeFunction
)

// TypeName is a resolved Solidity type, as the front-end would have
// annotated every typed AST node.
type TypeName struct {
	Kind TypeKind

	// Bits is the width for Int/Uint/BytesN (e.g. 256, 8, 160).
	Bits int

	// ContractName/StructName/EnumName qualify Contract/Struct/Enum kinds.
	// DeclaringContract is the contract a Struct/Enum is nested in, or ""
	// for a free-standing declaration.
	ContractName      string
	StructName        string
	EnumName          string
	DeclaringContract string

	// Key/Value describe a Mapping type. Nested mappings are represented
	// with len(Key) > 1 after flattening by the map database, but the AST
	// itself carries the literal nesting as Value.Kind == TypeMapping.
	Key   []*TypeName
	Value *TypeName

	// Elem/Dynamic describe an Array type (rejected by the address/type
	// analysis unless explicitly permitted; kept so the rejection has a
	// concrete node to point at).
	Elem    *TypeName
	Dynamic bool

	// Elements describes a Tuple type (multi-return).
	Elements []*TypeName
}

// IsWrapped reports whether values of this type are represented in C as a
// single-field wrapper struct with a ".v" member (every scalar type).
func (t *TypeName) IsWrapped() bool {
	switch t.Kind {
	case TypeBool, TypeInt, TypeUint, TypeBytesN, TypeAddress, TypeString:
		return true
	default:
		return false
	}
}

// Visibility of a function or state variable.
type Visibility int

// Visibility values.
const (
	VisPublic Visibility = iota
	VisExternal
	VisInternal
	VisPrivate
)

// Mutability of a function.
type Mutability int

// Mutability values.
const (
	MutNonpayable Mutability = iota
	MutPure
	MutView
	MutPayable
)

// StorageLocation of a variable declaration.
type StorageLocation int

// StorageLocation values.
const (
	LocDefault StorageLocation = iota
	LocStorage
	LocMemory
	LocCalldata
)

// VariableDeclaration is a state variable, struct field, or function
// parameter/local/return-parameter.
type VariableDeclaration struct {
	Name            string
	Type            *TypeName
	Visibility      Visibility
	StateVariable   bool
	StorageLocation StorageLocation
	InitialValue    Expression // state-variable initializer, or nil
}

// EnumDef is a Solidity enum declaration.
type EnumDef struct {
	Name   string
	Values []string
}

// StructDef is a Solidity struct declaration.
type StructDef struct {
	Name   string
	Fields []*VariableDeclaration
}

// ModifierInvocation is a single `m(args)` applied to a function or
// constructor.
type ModifierInvocation struct {
	Name string
	Args []Expression
}

// ModifierDef is a Solidity modifier declaration.
type ModifierDef struct {
	Name   string
	Params []*VariableDeclaration
	Body   *Block
}

// FunctionDef is a function, constructor, or fallback declaration.
type FunctionDef struct {
	Name         string // "" for constructor and fallback
	Contract     string // enclosing contract, set when attached to a Contract
	IsConstructor bool
	IsFallback   bool
	Visibility   Visibility
	Mutability   Mutability
	Params       []*VariableDeclaration
	ReturnParams []*VariableDeclaration
	Modifiers    []*ModifierInvocation
	Body         *Block // nil for an interface-only declaration
}

// IsExecutableInterface reports whether f is reachable purely from being
// public or external (i.e. a candidate call-graph root).
func (f *FunctionDef) IsExecutableInterface() bool {
	return f.Visibility == VisPublic || f.Visibility == VisExternal
}

// UsingFor records a `using Lib for T` directive.
type UsingFor struct {
	TypeName string
	Library  string
}

// Contract is one Solidity `contract` declaration, as the front-end parsed
// it (not yet flattened — that is FlatContract, built by
// internal/analysis/flatmodel).
type Contract struct {
	Name string

	// Linearization is the C3-linearized base list, most-derived first,
	// with Name itself as the first element. The front-end computes this;
	// the core only consumes it.
	Linearization []string

	StateVars   []*VariableDeclaration
	Enums       []*EnumDef
	Structs     []*StructDef
	Modifiers   []*ModifierDef
	Constructor *FunctionDef // nil if the contract has no explicit constructor
	Functions   []*FunctionDef
	Fallback    *FunctionDef
	UsingFor    []*UsingFor
}

// Bundle is the whole parsed AST: every contract visible to the front-end,
// regardless of whether it is in the user's model set.
type Bundle struct {
	Contracts []*Contract
}

// ByName returns the contract named n, or nil.
func (b *Bundle) ByName(n string) *Contract {
	for _, c := range b.Contracts {
		if c.Name == n {
			return c
		}
	}
	return nil
}
