package ast

// Expression is the common interface of every expression node kind. Each
// concrete type carries its own resolved type, as the front-end's
// type-checker would have annotated it.
type Expression interface {
	isExpression()
	ResolvedType() *TypeName
}

// typed is embedded by every expression node to provide ResolvedType.
type typed struct {
	Typ *TypeName
}

// ResolvedType returns the node's front-end-assigned type.
func (t *typed) ResolvedType() *TypeName { return t.Typ }

// LiteralKind distinguishes the Literal subtypes.
type LiteralKind int

// LiteralKind values.
const (
	LitBool LiteralKind = iota
	LitNumber
	LitString
	LitHexString
)

// Literal is a Solidity literal: true/false, a numeric literal (possibly
// with a time/ether subdenomination), or a string/hex-string literal.
type Literal struct {
	typed
	Kind            LiteralKind
	Bool            bool
	Text            string // numeric text, in base 10, no subdenomination applied
	Subdenomination string // "", "wei", "gwei", "ether", "seconds", "minutes", "hours", "days", "weeks"
	Str             string
}

func (*Literal) isExpression() {}

// MagicKind enumerates the global identifiers with fixed meaning.
type MagicKind int

// MagicKind values.
const (
	NotMagic MagicKind = iota
	MagicBlock
	MagicMsg
	MagicTx
	MagicThis
	MagicSuper
	MagicNow
)

// IdentKind classifies what an Identifier refers to.
type IdentKind int

// IdentKind values.
const (
	IdentStateVar IdentKind = iota
	IdentParam
	IdentLocal
	IdentContract
	IdentMagic
)

// Identifier is a bare name reference, resolved to a declaration kind.
// Kind/Magic arrive with the input tree: the loader decodes them from each
// identifier's "refKind" and "magic" fields, and no later pass reassigns
// them.
type Identifier struct {
	typed
	Name  string
	Kind  IdentKind
	Magic MagicKind
}

func (*Identifier) isExpression() {}

// MemberAccess is `Base.Member`.
type MemberAccess struct {
	typed
	Base   Expression
	Member string
}

func (*MemberAccess) isExpression() {}

// IndexAccess is `Base[Index]`, used here exclusively for mapping reads
// (arrays are rejected by the address/type analysis).
type IndexAccess struct {
	typed
	Base  Expression
	Index Expression
}

func (*IndexAccess) isExpression() {}

// Conditional is `Cond ? True : False`.
type Conditional struct {
	typed
	Cond, True, False Expression
}

func (*Conditional) isExpression() {}

// UnaryOp is a prefix or postfix unary operator.
type UnaryOp struct {
	typed
	Op      string // "!", "-", "~", "++", "--", "delete"
	Operand Expression
	Prefix  bool
}

func (*UnaryOp) isExpression() {}

// BinaryOp is an infix binary operator (excluding assignment).
type BinaryOp struct {
	typed
	Op          string
	Left, Right Expression
}

func (*BinaryOp) isExpression() {}

// Assignment is `Lhs Op Rhs`, where Op is "=" or a compound assignment
// operator ("+=", "-=", ...).
type Assignment struct {
	typed
	Lhs, Rhs Expression
	Op       string
}

func (*Assignment) isExpression() {}

// TupleExpr is `(a, b, ...)`. A nil element represents a hole
// (`(a, , c)`) in a tuple-assignment LHS.
type TupleExpr struct {
	typed
	Elements []Expression
}

func (*TupleExpr) isExpression() {}

// CallKind classifies a FunctionCallExpr for dispatch in the expression
// lowerer (spec.md §4.9).
type CallKind int

// CallKind values.
const (
	CallInternal CallKind = iota
	CallExternal
	CallSuper
	CallLibrary
	CallBare
	CallBareStatic
	CallDelegate // rejected
	CallCreation
	CallSend
	CallTransfer
	CallCrypto // keccak256/sha256/ripemd160
	CallLogging
	CallAssert
	CallRequire
	CallRevert
	CallAddMod // rejected
	CallMulMod // rejected
	CallPush   // rejected
	CallPop    // rejected
	CallNewArray // rejected
	CallBlockHash // rejected
	CallGasLeft   // rejected
	CallSelfdestruct // rejected
	CallMetaType     // elided
	CallTypeConversion
	CallStructConstructor
)

// FunctionCallExpr is any call-shaped expression: a user function call, a
// payment primitive, a crypto summary, an assert/require/revert, a `new`
// allocation, a type conversion, or a struct constructor call.
type FunctionCallExpr struct {
	typed
	Kind CallKind

	// Callee is the called expression for Internal/External/Super/Library
	// calls: an Identifier (bare function name) or a MemberAccess
	// (`e.f`/`super.f`/`this.f`).
	Callee Expression

	Args []Expression

	// NamedArgs holds `{value: v}`-style call options for Send/Transfer/
	// BareCall and for `.call{value: v}(...)`.
	NamedArgs map[string]Expression

	// CreatedType is the target type for CallCreation/CallTypeConversion/
	// CallStructConstructor.
	CreatedType *TypeName

	// EventSignature is set for CallLogging ("Transfer(address,address,uint256)").
	EventSignature string
}

func (*FunctionCallExpr) isExpression() {}
