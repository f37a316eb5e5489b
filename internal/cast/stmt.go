package cast

import (
	"fmt"
	"strings"
)

// Stmt is any C statement node.
type Stmt interface {
	print(b *strings.Builder, indent int)
}

func writeIndent(b *strings.Builder, indent int) {
	for i := 0; i < indent; i++ {
		b.WriteByte('\t')
	}
}

// VarDecl declares a local variable, optionally with an initializer.
type VarDecl struct {
	Type    string
	Name    string
	Pointer bool
	Init    Expr // nil if uninitialized
}

func (d *VarDecl) print(b *strings.Builder, indent int) {
	writeIndent(b, indent)
	b.WriteString(d.Type)
	b.WriteByte(' ')
	if d.Pointer {
		b.WriteByte('*')
	}
	b.WriteString(d.Name)
	if d.Init != nil {
		b.WriteByte('=')
		d.Init.print(b)
	}
	b.WriteString(";\n")
}

// ExprStmt is a bare expression evaluated for effect.
type ExprStmt struct {
	Expr Expr
}

func (s *ExprStmt) print(b *strings.Builder, indent int) {
	writeIndent(b, indent)
	s.Expr.print(b)
	b.WriteString(";\n")
}

// Block is a brace-delimited statement sequence.
type Block struct {
	Stmts []Stmt
}

func (blk *Block) print(b *strings.Builder, indent int) {
	writeIndent(b, indent)
	b.WriteString("{\n")
	for _, s := range blk.Stmts {
		s.print(b, indent+1)
	}
	writeIndent(b, indent)
	b.WriteString("}\n")
}

// If is `if (Cond) Then [else Else]`.
type If struct {
	Cond       Expr
	Then, Else Stmt
}

func (s *If) print(b *strings.Builder, indent int) {
	writeIndent(b, indent)
	b.WriteString("if(")
	s.Cond.print(b)
	b.WriteString(")\n")
	printAsBlock(s.Then, b, indent)
	if s.Else != nil {
		writeIndent(b, indent)
		b.WriteString("else\n")
		printAsBlock(s.Else, b, indent)
	}
}

func printAsBlock(s Stmt, b *strings.Builder, indent int) {
	if blk, ok := s.(*Block); ok {
		blk.print(b, indent)
		return
	}
	writeIndent(b, indent)
	b.WriteString("{\n")
	s.print(b, indent+1)
	writeIndent(b, indent)
	b.WriteString("}\n")
}

// While is `while (Cond) Body`.
type While struct {
	Cond Expr
	Body Stmt
}

func (s *While) print(b *strings.Builder, indent int) {
	writeIndent(b, indent)
	b.WriteString("while(")
	s.Cond.print(b)
	b.WriteString(")\n")
	printAsBlock(s.Body, b, indent)
}

// DoWhile is `do Body while (Cond);`.
type DoWhile struct {
	Body Stmt
	Cond Expr
}

func (s *DoWhile) print(b *strings.Builder, indent int) {
	writeIndent(b, indent)
	b.WriteString("do\n")
	printAsBlock(s.Body, b, indent)
	writeIndent(b, indent)
	b.WriteString("while(")
	s.Cond.print(b)
	b.WriteString(");\n")
}

// For is a C for-loop; Init/Cond/Post may each be nil.
type For struct {
	Init       Stmt
	Cond       Expr
	Post       Stmt
	Body       Stmt
}

func (s *For) print(b *strings.Builder, indent int) {
	writeIndent(b, indent)
	b.WriteString("for(")
	if s.Init != nil {
		var ib strings.Builder
		s.Init.print(&ib, 0)
		b.WriteString(strings.TrimSuffix(strings.TrimSuffix(ib.String(), "\n"), ";"))
	}
	b.WriteByte(';')
	if s.Cond != nil {
		s.Cond.print(b)
	}
	b.WriteByte(';')
	if s.Post != nil {
		var pb strings.Builder
		s.Post.print(&pb, 0)
		b.WriteString(strings.TrimSuffix(strings.TrimSuffix(pb.String(), "\n"), ";"))
	}
	b.WriteString(")\n")
	printAsBlock(s.Body, b, indent)
}

// Break is `break;`.
type Break struct{}

func (*Break) print(b *strings.Builder, indent int) {
	writeIndent(b, indent)
	b.WriteString("break;\n")
}

// Continue is `continue;`.
type Continue struct{}

func (*Continue) print(b *strings.Builder, indent int) {
	writeIndent(b, indent)
	b.WriteString("continue;\n")
}

// Return is `return [Value];`.
type Return struct {
	Value Expr // nil for a bare return
}

func (s *Return) print(b *strings.Builder, indent int) {
	writeIndent(b, indent)
	b.WriteString("return")
	if s.Value != nil {
		b.WriteByte(' ')
		s.Value.print(b)
	}
	b.WriteString(";\n")
}

// Case is one labelled arm of a Switch.
type Case struct {
	Value Expr // nil marks `default:`
	Body  []Stmt
}

// Switch is a C switch statement over an integral expression.
type Switch struct {
	Expr  Expr
	Cases []*Case
}

func (s *Switch) print(b *strings.Builder, indent int) {
	writeIndent(b, indent)
	b.WriteString("switch(")
	s.Expr.print(b)
	b.WriteString("){\n")
	for _, c := range s.Cases {
		writeIndent(b, indent+1)
		if c.Value == nil {
			b.WriteString("default:\n")
		} else {
			b.WriteString("case ")
			c.Value.print(b)
			b.WriteString(":\n")
		}
		for _, st := range c.Body {
			st.print(b, indent+2)
		}
	}
	writeIndent(b, indent)
	b.WriteString("}\n")
}

// Param is a function parameter or struct field declaration.
type Param struct {
	Type    string
	Name    string
	Pointer bool
}

func (p Param) render() string {
	if p.Pointer {
		return fmt.Sprintf("%s *%s", p.Type, p.Name)
	}
	return fmt.Sprintf("%s %s", p.Type, p.Name)
}

// FuncDef is a top-level C function definition or, when Body is nil, a
// forward declaration (spec.md §4.13's two-wave output).
type FuncDef struct {
	ReturnType    string
	ReturnPointer bool
	Name          string
	Params        []Param
	Body          *Block // nil => forward declaration
	Static        bool
	Inline        bool
}

// PrintTop renders a top-level declaration.
func (f *FuncDef) PrintTop() string {
	var b strings.Builder
	if f.Static {
		b.WriteString("static ")
	}
	if f.Inline {
		b.WriteString("inline ")
	}
	b.WriteString(f.ReturnType)
	b.WriteByte(' ')
	if f.ReturnPointer {
		b.WriteByte('*')
	}
	b.WriteString(f.Name)
	b.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.render())
	}
	if len(f.Params) == 0 {
		b.WriteString("void")
	}
	b.WriteByte(')')
	if f.Body == nil {
		b.WriteString(";\n")
		return b.String()
	}
	b.WriteByte('\n')
	f.Body.print(&b, 0)
	return b.String()
}

// StructDef is a top-level C struct definition.
type StructDef struct {
	Name   string
	Fields []Param
}

// PrintTop renders the struct definition and its typedef.
func (s *StructDef) PrintTop() string {
	var b strings.Builder
	fmt.Fprintf(&b, "struct %s{\n", s.Name)
	for _, f := range s.Fields {
		b.WriteByte('\t')
		b.WriteString(f.render())
		b.WriteString(";\n")
	}
	fmt.Fprintf(&b, "};\ntypedef struct %s %s;\n", s.Name, s.Name)
	return b.String()
}

// StructForwardDecl renders a bare `struct X;` forward declaration (spec.md
// §4.13 wave one); the `typedef struct X X;` follows the full definition.
type StructForwardDecl struct {
	Name string
}

// PrintTop renders the forward declaration.
func (s *StructForwardDecl) PrintTop() string {
	return fmt.Sprintf("struct %s;\n", s.Name)
}

// TypeDef is a plain C typedef, used for wrapped scalar types
// (spec.md §4.7's fixed simple-type table).
type TypeDef struct {
	Underlying string
	Name       string
}

// PrintTop renders the typedef.
func (t *TypeDef) PrintTop() string {
	return fmt.Sprintf("typedef %s %s;\n", t.Underlying, t.Name)
}

// TopLevel is any declaration emitted by the driver's two waves.
type TopLevel interface {
	PrintTop() string
}

// PrintUnit renders a sequence of top-level declarations into one
// translation unit, each on its own declaration boundary.
func PrintUnit(decls []TopLevel) string {
	var b strings.Builder
	for _, d := range decls {
		b.WriteString(d.PrintTop())
	}
	return b.String()
}
