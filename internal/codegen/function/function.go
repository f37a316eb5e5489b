// Package function is the function converter of spec.md §4.11: it emits the
// per-struct Zero/Init/ND family, the per-map-record accessor family, each
// flat contract's constructor chain, and one C function per reachable
// method, wiring together every analysis package built so far.
package function

import (
	"fmt"

	"github.com/contract-ace/smartace/internal/analysis/address"
	"github.com/contract-ace/smartace/internal/analysis/callstate"
	"github.com/contract-ace/smartace/internal/analysis/contractrv"
	"github.com/contract-ace/smartace/internal/analysis/flatmodel"
	"github.com/contract-ace/smartace/internal/analysis/mapdb"
	"github.com/contract-ace/smartace/internal/analysis/types"
	"github.com/contract-ace/smartace/internal/ast"
	"github.com/contract-ace/smartace/internal/cast"
	blockpkg "github.com/contract-ace/smartace/internal/codegen/block"
	exprpkg "github.com/contract-ace/smartace/internal/codegen/expr"
	"github.com/contract-ace/smartace/internal/diag"
)

// mapCapacity bounds every Map_N's backing storage. Every mapping key in
// Solidity is an elementary (always-wrapped) type, so a flat linear-scan
// table keyed on wrapped-scalar equality is sufficient to model every map
// shape uniformly; spec.md §4.6's address domain already bounds the
// interesting (address-keyed) case, and this repo generalizes the same
// finite-table idea to every key shape for a single, uniform Map_N
// implementation rather than one shape per key kind.
const mapCapacity = 16

// Converter builds the C declarations for struct helpers, map helpers, a
// flat contract's constructor chain, and its methods.
type Converter struct {
	Model  *flatmodel.Model
	RV     *contractrv.Resolver
	Types  *types.Table
	Domain *address.Domain
	Bundle *ast.Bundle
	Diags  *diag.Collector

	// Capacity overrides mapCapacity (spec.md §6's map-depth bound k) when
	// positive; zero keeps the default.
	Capacity int
}

// New builds a Converter over an already-computed analysis stack.
func New(model *flatmodel.Model, rv *contractrv.Resolver, tb *types.Table, domain *address.Domain, bundle *ast.Bundle, diags *diag.Collector) *Converter {
	return &Converter{Model: model, RV: rv, Types: tb, Domain: domain, Bundle: bundle, Diags: diags}
}

func (c *Converter) capacity() int {
	if c.Capacity > 0 {
		return c.Capacity
	}
	return mapCapacity
}

func fieldIsPointer(t *ast.TypeName) bool {
	return t != nil && t.Kind == ast.TypeContract
}

func structField(name string, t *ast.TypeName, tb *types.Table) cast.Param {
	return cast.Param{Type: tb.CType(t), Name: "user_" + types.Escape(name), Pointer: fieldIsPointer(t)}
}

// StructDecls emits the forward declaration, struct definition, and the
// ZeroInit_/Init_/ND_ family for one struct declared in contract.
func (c *Converter) StructDecls(contract string, s *ast.StructDef) []cast.TopLevel {
	sym := types.StructSymbol(contract, s.Name)
	var fields []cast.Param
	for _, f := range s.Fields {
		fields = append(fields, structField(f.Name, f.Type, c.Types))
	}
	def := &cast.StructDef{Name: sym, Fields: fields}

	return []cast.TopLevel{
		&cast.StructForwardDecl{Name: sym},
		def,
		c.structZeroInit(sym, s),
		c.structInit(sym, s),
		c.structND(sym, s),
	}
}

// structZeroInit builds `struct <Sym> ZeroInit_<Sym>(void)`: every scalar
// field is zero-initialized through its own wrapper type's ZeroInit_, every
// nested struct field recurses into its own ZeroInit_, and every contract
// (pointer) field is left NULL (spec.md §12's supplemented recursive
// zero-init rule).
func (c *Converter) structZeroInit(sym string, s *ast.StructDef) *cast.FuncDef {
	blk := &cast.Block{}
	for _, f := range s.Fields {
		blk.Stmts = append(blk.Stmts, zeroField(f, c.Types))
	}
	blk.Stmts = append(blk.Stmts, &cast.Return{Value: &cast.Ident{Name: "out"}})
	body := &cast.Block{Stmts: append([]cast.Stmt{
		&cast.VarDecl{Type: "struct " + sym, Name: "out"},
	}, blk.Stmts...)}
	return &cast.FuncDef{ReturnType: "struct " + sym, Name: "ZeroInit_" + sym, Body: body}
}

func zeroField(f *ast.VariableDeclaration, tb *types.Table) cast.Stmt {
	name := "user_" + types.Escape(f.Name)
	if fieldIsPointer(f.Type) {
		return &cast.ExprStmt{Expr: &cast.Assign{
			Lhs: &cast.Member{Base: &cast.Ident{Name: "out"}, Name: name},
			Rhs: &cast.Cast{Type: tb.CType(f.Type), Operand: &cast.IntLit{Value: "0"}, Ptr: true},
		}}
	}
	return &cast.ExprStmt{Expr: &cast.Assign{
		Lhs: &cast.Member{Base: &cast.Ident{Name: "out"}, Name: name},
		Rhs: &cast.Call{Callee: "ZeroInit_" + tb.Symbol(f.Type)},
	}}
}

// structInit builds `struct <Sym> Init_<Sym>(<field0>, <field1>, ...)`: one
// by-value parameter per field, copied straight across (nested struct
// fields arrive pre-built by the caller, e.g. the expression lowerer's own
// struct-constructor lowering).
func (c *Converter) structInit(sym string, s *ast.StructDef) *cast.FuncDef {
	var params []cast.Param
	stmts := []cast.Stmt{&cast.VarDecl{Type: "struct " + sym, Name: "out"}}
	for _, f := range s.Fields {
		pname := "in_" + types.Escape(f.Name)
		params = append(params, cast.Param{Type: c.Types.CType(f.Type), Name: pname, Pointer: fieldIsPointer(f.Type)})
		stmts = append(stmts, &cast.ExprStmt{Expr: &cast.Assign{
			Lhs: &cast.Member{Base: &cast.Ident{Name: "out"}, Name: "user_" + types.Escape(f.Name)},
			Rhs: &cast.Ident{Name: pname, Pointer: fieldIsPointer(f.Type)},
		}})
	}
	stmts = append(stmts, &cast.Return{Value: &cast.Ident{Name: "out"}})
	return &cast.FuncDef{ReturnType: "struct " + sym, Name: "Init_" + sym, Params: params, Body: &cast.Block{Stmts: stmts}}
}

// structND builds `struct <Sym> ND_<Sym>(void)`: every scalar field takes a
// non-deterministic value through its own wrapper's ND_, nested structs
// recurse, and contract fields stay NULL (a fresh instance owns no
// allocation yet).
func (c *Converter) structND(sym string, s *ast.StructDef) *cast.FuncDef {
	stmts := []cast.Stmt{&cast.VarDecl{Type: "struct " + sym, Name: "out"}}
	for _, f := range s.Fields {
		name := "user_" + types.Escape(f.Name)
		if fieldIsPointer(f.Type) {
			stmts = append(stmts, &cast.ExprStmt{Expr: &cast.Assign{
				Lhs: &cast.Member{Base: &cast.Ident{Name: "out"}, Name: name},
				Rhs: &cast.Cast{Type: c.Types.CType(f.Type), Operand: &cast.IntLit{Value: "0"}, Ptr: true},
			}})
			continue
		}
		stmts = append(stmts, &cast.ExprStmt{Expr: &cast.Assign{
			Lhs: &cast.Member{Base: &cast.Ident{Name: "out"}, Name: name},
			Rhs: &cast.Call{Callee: "ND_" + c.Types.Symbol(f.Type)},
		}})
	}
	stmts = append(stmts, &cast.Return{Value: &cast.Ident{Name: "out"}})
	return &cast.FuncDef{ReturnType: "struct " + sym, Name: "ND_" + sym, Body: &cast.Block{Stmts: stmts}}
}

// MapDecls emits the struct definition and ZeroInit_/Read_/Write_ family
// for one canonicalized map shape (spec.md §4.5).
func (c *Converter) MapDecls(rec *mapdb.Record) []cast.TopLevel {
	sym := rec.Name
	var fields []cast.Param
	for i, k := range rec.Keys {
		fields = append(fields, cast.Param{Type: fmt.Sprintf("%s[%d]", c.Types.CType(k), c.capacity()), Name: fmt.Sprintf("key_%d", i)})
	}
	fields = append(fields, cast.Param{Type: fmt.Sprintf("%s[%d]", c.Types.CType(rec.Value), c.capacity()), Name: "val"})
	fields = append(fields, cast.Param{Type: "int", Name: "len"})
	def := &cast.StructDef{Name: sym, Fields: fields}

	write := c.mapWrite(rec)
	set := *write
	set.Name = "Set_" + rec.Name

	return []cast.TopLevel{
		&cast.StructForwardDecl{Name: sym},
		def,
		c.mapZeroInit(sym),
		c.mapRead(rec),
		write,
		&set,
	}
}

func (c *Converter) mapZeroInit(sym string) *cast.FuncDef {
	body := &cast.Block{Stmts: []cast.Stmt{
		&cast.ExprStmt{Expr: &cast.Assign{
			Lhs: &cast.Member{Base: &cast.Ident{Name: "m", Pointer: true}, Name: "len"},
			Rhs: &cast.IntLit{Value: "0"},
		}},
	}}
	return &cast.FuncDef{
		ReturnType: "void",
		Name:       "ZeroInit_" + sym,
		Params:     []cast.Param{{Type: "struct " + sym, Name: "m", Pointer: true}},
		Body:       body,
	}
}

func (c *Converter) mapRead(rec *mapdb.Record) *cast.FuncDef {
	params := []cast.Param{{Type: "struct " + rec.Name, Name: "m", Pointer: true}}
	for i, k := range rec.Keys {
		params = append(params, cast.Param{Type: c.Types.CType(k), Name: fmt.Sprintf("k_%d", i)})
	}
	cond := keyEquality(rec, "i")
	loopBody := &cast.Block{Stmts: []cast.Stmt{
		&cast.If{Cond: cond, Then: &cast.Return{Value: indexExpr("m", "val", "i")}},
	}}
	forLoop := &cast.For{
		Init: &cast.ExprStmt{Expr: &cast.Assign{Lhs: &cast.Ident{Name: "i"}, Rhs: &cast.IntLit{Value: "0"}}},
		Cond: &cast.Binary{Op: "<", Left: &cast.Ident{Name: "i"}, Right: &cast.Member{Base: &cast.Ident{Name: "m", Pointer: true}, Name: "len"}},
		Post: &cast.ExprStmt{Expr: &cast.Unary{Op: "++", Operand: &cast.Ident{Name: "i"}, Postfix: true}},
		Body: loopBody,
	}
	body := &cast.Block{Stmts: []cast.Stmt{
		&cast.VarDecl{Type: "int", Name: "i"},
		forLoop,
		&cast.Return{Value: &cast.Call{Callee: "ZeroInit_" + c.Types.Symbol(rec.Value)}},
	}}
	return &cast.FuncDef{ReturnType: c.Types.CType(rec.Value), Name: "Read_" + rec.Name, Params: params, Body: body}
}

func (c *Converter) mapWrite(rec *mapdb.Record) *cast.FuncDef {
	params := []cast.Param{{Type: "struct " + rec.Name, Name: "m", Pointer: true}}
	for i, k := range rec.Keys {
		params = append(params, cast.Param{Type: c.Types.CType(k), Name: fmt.Sprintf("k_%d", i)})
	}
	params = append(params, cast.Param{Type: c.Types.CType(rec.Value), Name: "v"})

	cond := keyEquality(rec, "i")
	updateExisting := &cast.Block{Stmts: []cast.Stmt{
		&cast.ExprStmt{Expr: &cast.Assign{Lhs: indexExpr("m", "val", "i"), Rhs: &cast.Ident{Name: "v"}}},
		&cast.Return{},
	}}
	forLoop := &cast.For{
		Init: &cast.ExprStmt{Expr: &cast.Assign{Lhs: &cast.Ident{Name: "i"}, Rhs: &cast.IntLit{Value: "0"}}},
		Cond: &cast.Binary{Op: "<", Left: &cast.Ident{Name: "i"}, Right: &cast.Member{Base: &cast.Ident{Name: "m", Pointer: true}, Name: "len"}},
		Post: &cast.ExprStmt{Expr: &cast.Unary{Op: "++", Operand: &cast.Ident{Name: "i"}, Postfix: true}},
		Body: &cast.Block{Stmts: []cast.Stmt{&cast.If{Cond: cond, Then: updateExisting}}},
	}

	var insertStmts []cast.Stmt
	for i := range rec.Keys {
		insertStmts = append(insertStmts, &cast.ExprStmt{Expr: &cast.Assign{
			Lhs: indexExpr("m", fmt.Sprintf("key_%d", i), "m->len"),
			Rhs: &cast.Ident{Name: fmt.Sprintf("k_%d", i)},
		}})
	}
	insertStmts = append(insertStmts,
		&cast.ExprStmt{Expr: &cast.Assign{Lhs: indexExpr("m", "val", "m->len"), Rhs: &cast.Ident{Name: "v"}}},
		&cast.ExprStmt{Expr: &cast.Assign{
			Lhs: &cast.Member{Base: &cast.Ident{Name: "m", Pointer: true}, Name: "len"},
			Rhs: &cast.Binary{Op: "+", Left: &cast.Member{Base: &cast.Ident{Name: "m", Pointer: true}, Name: "len"}, Right: &cast.IntLit{Value: "1"}},
		}},
	)

	body := &cast.Block{Stmts: append([]cast.Stmt{
		&cast.VarDecl{Type: "int", Name: "i"},
		forLoop,
	}, insertStmts...)}
	return &cast.FuncDef{ReturnType: "void", Name: "Write_" + rec.Name, Params: params, Body: body}
}

// indexExpr renders `base-><field>[<idxExpr>]`; internal/cast has no dedicated array-index node, so it is rendered with a
// raw identifier carrying the subscript text. This keeps the map accessor
// bodies within the existing Expr vocabulary instead of growing the IR for
// one synthetic use site.
func indexExpr(base, field, idxExpr string) cast.Expr {
	return &cast.Ident{Name: fmt.Sprintf("%s->%s[%s]", base, field, idxExpr)}
}

func keyEquality(rec *mapdb.Record, idx string) cast.Expr {
	var acc cast.Expr = &cast.IntLit{Value: "1"}
	for i := range rec.Keys {
		cmp := &cast.Binary{
			Op:    "==",
			Left:  &cast.Member{Base: indexExpr("m", fmt.Sprintf("key_%d", i), idx), Name: "v"},
			Right: &cast.Member{Base: &cast.Ident{Name: fmt.Sprintf("k_%d", i)}, Name: "v"},
		}
		acc = &cast.Binary{Op: "&&", Left: acc, Right: cmp}
	}
	return acc
}

// ContractStruct emits the forward declaration, struct definition, and
// ZeroInit_ for flat's flattened representation: one field per merged
// state variable plus the model_balance and model_address fields every
// contract carries.
func (c *Converter) ContractStruct(flat *flatmodel.FlatContract) []cast.TopLevel {
	sym := types.ContractSymbol(flat.Name)
	fields := []cast.Param{
		{Type: "sol_uint256_t", Name: "model_balance"},
		{Type: "sol_address_t", Name: "model_address"},
	}
	for _, v := range flat.StateVars {
		fields = append(fields, structField(v.Name, v.Type, c.Types))
	}
	def := &cast.StructDef{Name: sym, Fields: fields}

	zeroBody := &cast.Block{Stmts: []cast.Stmt{
		&cast.ExprStmt{Expr: &cast.Assign{
			Lhs: &cast.Member{Base: &cast.Ident{Name: "self", Pointer: true}, Name: "model_balance"},
			Rhs: &cast.Call{Callee: "ZeroInit_sol_uint256_t"},
		}},
		&cast.ExprStmt{Expr: &cast.Assign{
			Lhs: &cast.Member{Base: &cast.Ident{Name: "self", Pointer: true}, Name: "model_address"},
			Rhs: &cast.Call{Callee: "ZeroInit_sol_address_t"},
		}},
	}}
	for _, v := range flat.StateVars {
		zeroBody.Stmts = append(zeroBody.Stmts, zeroStateVar(v, c.Types))
	}
	zeroFn := &cast.FuncDef{
		ReturnType: "void",
		Name:       "ZeroInit_" + sym,
		Params:     []cast.Param{{Type: "struct " + sym, Name: "self", Pointer: true}},
		Body:       zeroBody,
	}
	return []cast.TopLevel{&cast.StructForwardDecl{Name: sym}, def, zeroFn}
}

func zeroStateVar(v *ast.VariableDeclaration, tb *types.Table) cast.Stmt {
	name := "user_" + types.Escape(v.Name)
	if fieldIsPointer(v.Type) {
		return &cast.ExprStmt{Expr: &cast.Assign{
			Lhs: &cast.Member{Base: &cast.Ident{Name: "self", Pointer: true}, Name: name},
			Rhs: &cast.Cast{Type: tb.CType(v.Type), Operand: &cast.IntLit{Value: "0"}, Ptr: true},
		}}
	}
	return &cast.ExprStmt{Expr: &cast.Assign{
		Lhs: &cast.Member{Base: &cast.Ident{Name: "self", Pointer: true}, Name: name},
		Rhs: &cast.Call{Callee: "ZeroInit_" + tb.Symbol(v.Type)},
	}}
}

// isPlaceholder reports whether s is a modifier's `_` placeholder
// statement, represented in the borrowed AST as a bare identifier
// expression statement.
func isPlaceholder(s ast.Statement) bool {
	es, ok := s.(*ast.ExprStatement)
	if !ok {
		return false
	}
	id, ok := es.Expr.(*ast.Identifier)
	return ok && id.Name == "_"
}

// expandPlaceholder substitutes every `_` occurrence in modBody with a copy
// of inner, recursing through control-flow statements (spec.md §12's
// supplemented placeholder-counting rule: a modifier may invoke `_` more
// than once, each invocation running the wrapped body independently).
func expandPlaceholder(modBody []ast.Statement, inner []ast.Statement) []ast.Statement {
	var out []ast.Statement
	for _, s := range modBody {
		out = append(out, expandPlaceholderStmt(s, inner))
	}
	return out
}

func expandPlaceholderStmt(s ast.Statement, inner []ast.Statement) ast.Statement {
	if isPlaceholder(s) {
		return &ast.Block{Statements: inner}
	}
	switch n := s.(type) {
	case *ast.Block:
		return &ast.Block{Statements: expandPlaceholder(n.Statements, inner)}
	case *ast.IfStatement:
		out := &ast.IfStatement{Cond: n.Cond, True: expandPlaceholderStmt(n.True, inner)}
		if n.False != nil {
			out.False = expandPlaceholderStmt(n.False, inner)
		}
		return out
	case *ast.WhileStatement:
		return &ast.WhileStatement{Cond: n.Cond, Body: expandPlaceholderStmt(n.Body, inner)}
	case *ast.DoWhileStatement:
		return &ast.DoWhileStatement{Body: expandPlaceholderStmt(n.Body, inner), Cond: n.Cond}
	case *ast.ForStatement:
		return &ast.ForStatement{Init: n.Init, Cond: n.Cond, Post: n.Post, Body: expandPlaceholderStmt(n.Body, inner)}
	default:
		return s
	}
}

// methodName derives the emitted method-name suffix for fn.
func methodName(fn *ast.FunctionDef) string {
	if fn.IsFallback {
		return "fallback"
	}
	return fn.Name
}

// Method emits one method specialization (spec.md §4.11): `owner` names the
// emitted symbol's contract prefix and is always the flattened contract
// (or library) name, never an overridden base; `scope` is the flat
// contract name used to resolve internal calls/state-variable access
// during lowering (normally == owner). A nil Body produces a wave-one
// forward declaration.
func (c *Converter) Method(owner, scope string, fn *ast.FunctionDef, threading callstate.Threading) (cast.TopLevel, error) {
	name := types.ContractSymbol(owner) + "_Method_" + types.Escape(methodName(fn))

	var params []cast.Param
	if threading != callstate.None {
		params = append(params, cast.Param{Type: types.ContractCType(owner), Name: "self", Pointer: true})
	}
	if threading == callstate.Full {
		for i, p := range callstate.Param {
			params = append(params, cast.Param{Type: callstate.CTypes[i], Name: p})
		}
	}
	for _, p := range fn.Params {
		params = append(params, cast.Param{Type: c.Types.CType(p.Type), Name: "func_user_" + types.Escape(p.Name), Pointer: types.IsPointer(p.Type, p.StorageLocation == ast.LocStorage)})
	}

	retType := "void"
	var returnParams []*ast.VariableDeclaration
	if len(fn.ReturnParams) > 0 {
		retType = c.Types.CType(fn.ReturnParams[0].Type)
		returnParams = fn.ReturnParams[:1]
		for _, rp := range fn.ReturnParams[1:] {
			params = append(params, cast.Param{Type: c.Types.CType(rp.Type), Name: "func_user_" + types.Escape(rp.Name), Pointer: true})
		}
	}

	if fn.Body == nil {
		return &cast.FuncDef{ReturnType: retType, Name: name, Params: params}, nil
	}

	own := fn.Body.Statements
	if len(fn.Modifiers) > 0 {
		if flat := c.flatByName(owner); flat != nil {
			for _, mi := range fn.Modifiers {
				modDef := findModifier(flat, mi.Name)
				if modDef == nil {
					continue
				}
				own = expandPlaceholder(modDef.Body.Statements, own)
			}
		}
	}

	exprLowerer := &exprpkg.Lowerer{
		Scope:  scope,
		Model:  c.Model,
		Types:  c.Types,
		RV:     c.RV,
		Domain: c.Domain,
		Bundle: c.Bundle,
		Diags:  c.Diags,
	}
	if threading == callstate.Full {
		exprLowerer.CallState = ownCallState()
	}
	bl := &blockpkg.Lowerer{
		Expr:         exprLowerer,
		Types:        c.Types,
		ReturnParams: returnParams,
	}
	body, err := bl.LowerBlock(&ast.Block{Statements: own})
	if err != nil {
		return nil, err
	}
	if fn.Mutability == ast.MutPayable {
		body.Stmts = append([]cast.Stmt{blockpkg.PayablePrologue()}, body.Stmts...)
	}
	return &cast.FuncDef{ReturnType: retType, Name: name, Params: params, Body: body}, nil
}

// ConstructorChain emits flat's `Init_<Base>_For_<Flat>` chain (one function
// per linearization entry, root-most first in execution order) plus the
// `Init_<Flat>` entry point alias the expression lowerer's `new` lowering
// calls (spec.md §4.13's forward-declare/define ordering supplement).
func (c *Converter) ConstructorChain(flat *flatmodel.FlatContract) ([]cast.TopLevel, error) {
	flatSym := types.ContractSymbol(flat.Name)
	var out []cast.TopLevel

	byContract := map[string]flatmodel.ConstructorLink{}
	for _, link := range flat.Constructors {
		byContract[link.Contract] = link
	}

	for i := len(flat.Bases) - 1; i >= 0; i-- {
		baseName := flat.Bases[i]
		link := byContract[baseName]
		fnName := "Init_" + types.ContractSymbol(baseName) + "_For_" + flatSym

		params := []cast.Param{{Type: "struct " + flatSym, Name: "self", Pointer: true}}
		for j, p := range callstate.Param {
			params = append(params, cast.Param{Type: callstate.CTypes[j], Name: p})
		}
		var ownParams []*ast.VariableDeclaration
		if link.Fn != nil {
			ownParams = link.Fn.Params
			for _, p := range ownParams {
				params = append(params, cast.Param{Type: c.Types.CType(p.Type), Name: "func_user_" + types.Escape(p.Name), Pointer: types.IsPointer(p.Type, p.StorageLocation == ast.LocStorage)})
			}
		}

		var stmts []cast.Stmt
		if i == len(flat.Bases)-1 {
			stmts = append(stmts, &cast.ExprStmt{Expr: &cast.Call{Callee: "ZeroInit_" + flatSym, Args: []cast.Expr{&cast.Ident{Name: "self", Pointer: true}}}})
		} else {
			nextBase := flat.Bases[i+1]
			callArgs, err := c.nextBaseArgs(flat, link, nextBase)
			if err != nil {
				return nil, err
			}
			args := append([]cast.Expr{&cast.Ident{Name: "self", Pointer: true}}, callstateArgs()...)
			args = append(args, callArgs...)
			stmts = append(stmts, &cast.ExprStmt{Expr: &cast.Call{Callee: "Init_" + types.ContractSymbol(nextBase) + "_For_" + flatSym, Args: args}})
		}

		if link.Fn != nil && link.Fn.Body != nil {
			own := link.Fn.Body.Statements
			for _, mi := range link.Fn.Modifiers {
				if isBaseName(mi.Name, flat.Bases) {
					continue // handled by nextBaseArgs above
				}
				modDef := findModifier(flat, mi.Name)
				if modDef == nil {
					continue
				}
				own = expandPlaceholder(modDef.Body.Statements, own)
			}
			bl := &blockpkg.Lowerer{
				Expr: &exprpkg.Lowerer{
					Scope: flat.Name, Model: c.Model, Types: c.Types, RV: c.RV, Domain: c.Domain, Bundle: c.Bundle, Diags: c.Diags,
					CallState: ownCallState(),
				},
				Types: c.Types,
			}
			lowered, err := bl.LowerBlock(&ast.Block{Statements: own})
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, lowered.Stmts...)
		}

		out = append(out, &cast.FuncDef{ReturnType: "void", Name: fnName, Params: params, Body: &cast.Block{Stmts: stmts}})
	}

	// Init_<Flat> is the public entry point: forwards straight into the
	// most-derived link of the chain just built.
	entryParams := []cast.Param{{Type: "struct " + flatSym, Name: "self", Pointer: true}}
	for j, p := range callstate.Param {
		entryParams = append(entryParams, cast.Param{Type: callstate.CTypes[j], Name: p})
	}
	args := append([]cast.Expr{&cast.Ident{Name: "self", Pointer: true}}, callstateArgs()...)
	if link, ok := byContract[flat.Name]; ok && link.Fn != nil {
		for _, p := range link.Fn.Params {
			entryParams = append(entryParams, cast.Param{Type: c.Types.CType(p.Type), Name: "func_user_" + types.Escape(p.Name), Pointer: types.IsPointer(p.Type, p.StorageLocation == ast.LocStorage)})
			args = append(args, &cast.Ident{Name: "func_user_" + types.Escape(p.Name)})
		}
	}
	entry := &cast.FuncDef{
		ReturnType: "void",
		Name:       "Init_" + flatSym,
		Params:     entryParams,
		Body: &cast.Block{Stmts: []cast.Stmt{
			&cast.ExprStmt{Expr: &cast.Call{Callee: "Init_" + flatSym + "_For_" + flatSym, Args: args}},
		}},
	}
	out = append(out, entry)
	return out, nil
}

func callstateArgs() []cast.Expr {
	var out []cast.Expr
	for _, p := range callstate.Param {
		out = append(out, &cast.Ident{Name: p})
	}
	return out
}

// ownCallState is the call-state of a Full-threaded function as seen from
// inside its own body: its own incoming parameters, named exactly as
// callstate.Param declares them. Paid is left unset: callstate.NextInternal
// and callstate.NextExternal always recompute it and never read it.
func ownCallState() callstate.State {
	return callstate.State{
		Sender:    "sender",
		Value:     "value",
		Blocknum:  "blocknum",
		Timestamp: "timestamp",
		Origin:    "origin",
	}
}

func isBaseName(name string, bases []string) bool {
	for _, b := range bases {
		if b == name {
			return true
		}
	}
	return false
}

// flatByName looks up name in the converter's model set. Returns nil for a
// library or any other owner the model-set closure never included, in which
// case callers simply skip modifier expansion (a library function with
// modifiers attached has nothing to resolve them against).
func (c *Converter) flatByName(name string) *flatmodel.FlatContract {
	for _, f := range c.Model.View() {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func findModifier(flat *flatmodel.FlatContract, name string) *ast.ModifierDef {
	for _, m := range flat.Modifiers {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// nextBaseArgs resolves the argument expressions passed to nextBase's
// constructor from link's own explicit base-invocation (`Base(args)` in a
// constructor header), lowering each through the expression lowerer in the
// defining contract's own scope. A base with no explicit invocation and a
// parameterized constructor is filled with non-deterministic placeholders,
// since no argument expression is available to lower — this is a
// deliberate simplification, recorded in DESIGN.md.
func (c *Converter) nextBaseArgs(flat *flatmodel.FlatContract, link flatmodel.ConstructorLink, nextBase string) ([]cast.Expr, error) {
	nextLink, ok := findConstructorLink(flat, nextBase)
	if !ok || nextLink.Fn == nil || len(nextLink.Fn.Params) == 0 {
		return nil, nil
	}
	if link.Fn != nil {
		for _, mi := range link.Fn.Modifiers {
			if mi.Name != nextBase {
				continue
			}
			lowerer := &exprpkg.Lowerer{
				Scope: link.Contract, Model: c.Model, Types: c.Types, RV: c.RV, Domain: c.Domain, Bundle: c.Bundle, Diags: c.Diags,
				CallState: ownCallState(),
			}
			var out []cast.Expr
			for _, a := range mi.Args {
				e, err := lowerer.Lower(a)
				if err != nil {
					return nil, err
				}
				out = append(out, e)
			}
			return out, nil
		}
	}
	var out []cast.Expr
	for _, p := range nextLink.Fn.Params {
		out = append(out, &cast.Call{Callee: "ND_" + c.Types.Symbol(p.Type)})
	}
	return out, nil
}

func findConstructorLink(flat *flatmodel.FlatContract, contract string) (flatmodel.ConstructorLink, bool) {
	for _, l := range flat.Constructors {
		if l.Contract == contract {
			return l, true
		}
	}
	return flatmodel.ConstructorLink{}, false
}
