// Package block is the block lowerer of spec.md §4.10: it converts a
// Solidity statement sequence into a C statement sequence, handling scope,
// the payable prologue, tuple-assignment expansion, and loop/control-flow
// statements one-to-one.
package block

import (
	"fmt"

	"github.com/contract-ace/smartace/internal/analysis/types"
	"github.com/contract-ace/smartace/internal/ast"
	"github.com/contract-ace/smartace/internal/cast"
	"github.com/contract-ace/smartace/internal/codegen/expr"
	"github.com/contract-ace/smartace/internal/diag"
)

// Lowerer converts one function/modifier body into a C statement sequence.
type Lowerer struct {
	Expr  *expr.Lowerer
	Types *types.Table

	// ReturnParams names the function's return parameters. With exactly
	// one, `return expr;` returns the value directly (wrapped through
	// `Init_<type>` for a wrapped scalar); with more than one, `return
	// expr;` is rejected.
	ReturnParams []*ast.VariableDeclaration

	tmp int
}

// LowerBlock converts b into a C Block.
func (l *Lowerer) LowerBlock(b *ast.Block) (*cast.Block, error) {
	if b == nil {
		return &cast.Block{}, nil
	}
	out := &cast.Block{}
	for _, s := range b.Statements {
		cs, err := l.LowerStmt(s)
		if err != nil {
			return nil, err
		}
		if cs != nil {
			out.Stmts = append(out.Stmts, cs)
		}
	}
	return out, nil
}

// LowerStmt converts one statement.
func (l *Lowerer) LowerStmt(s ast.Statement) (cast.Stmt, error) {
	switch n := s.(type) {
	case *ast.Block:
		return l.LowerBlock(n)
	case *ast.VarDeclStatement:
		return l.lowerVarDecl(n)
	case *ast.ExprStatement:
		return l.lowerExprStmt(n)
	case *ast.IfStatement:
		return l.lowerIf(n)
	case *ast.WhileStatement:
		return l.lowerWhile(n)
	case *ast.DoWhileStatement:
		return l.lowerDoWhile(n)
	case *ast.ForStatement:
		return l.lowerFor(n)
	case *ast.ContinueStatement:
		return &cast.Continue{}, nil
	case *ast.BreakStatement:
		return &cast.Break{}, nil
	case *ast.ReturnStatement:
		return l.lowerReturn(n)
	case *ast.EmitStatement:
		return l.lowerEmit(n)
	case *ast.ThrowStatement:
		return nil, &diag.Unsupported{Construct: "throw"}
	case *ast.InlineAssemblyStatement:
		return nil, &diag.Unsupported{Construct: "inline assembly"}
	default:
		return nil, diag.Internal("unknown statement node %T", s)
	}
}

func (l *Lowerer) lowerVarDecl(n *ast.VarDeclStatement) (cast.Stmt, error) {
	if len(n.Declarations) != 1 {
		return nil, &diag.Unsupported{Construct: "tuple-destructuring variable declaration"}
	}
	decl := n.Declarations[0]
	if decl == nil {
		return nil, diag.Internal("single-slot variable declaration with a hole")
	}
	ctype := l.Types.CType(decl.Type)
	name := "func_user_" + types.Escape(decl.Name)
	ptr := types.IsPointer(decl.Type, decl.StorageLocation == ast.LocStorage)

	if n.Initial == nil {
		return &cast.VarDecl{Type: ctype, Name: name, Pointer: ptr, Init: &cast.Call{Callee: "ZeroInit_" + l.Types.Symbol(decl.Type)}}, nil
	}

	if decl.Type != nil && decl.Type.IsWrapped() {
		raw, err := l.Expr.Lower(n.Initial)
		if err != nil {
			return nil, err
		}
		return &cast.VarDecl{Type: ctype, Name: name, Init: &cast.Call{Callee: "Init_" + ctype, Args: []cast.Expr{raw}}}, nil
	}

	init, err := l.Expr.LowerRef(n.Initial)
	if err != nil {
		return nil, err
	}
	return &cast.VarDecl{Type: ctype, Name: name, Pointer: ptr, Init: init}, nil
}

func (l *Lowerer) lowerExprStmt(n *ast.ExprStatement) (cast.Stmt, error) {
	if asg, ok := n.Expr.(*ast.Assignment); ok {
		if tup, ok := asg.Lhs.(*ast.TupleExpr); ok {
			return l.lowerTupleAssign(tup, asg.Rhs)
		}
	}
	e, err := l.Expr.Lower(n.Expr)
	if err != nil {
		return nil, err
	}
	return &cast.ExprStmt{Expr: e}, nil
}

// lowerTupleAssign expands `(a, b, c) = f(...)` into a single call whose
// primary return is assigned to a, with b and c threaded through trailing
// output-pointer arguments (spec.md §4.10's decided tuple convention).
func (l *Lowerer) lowerTupleAssign(tup *ast.TupleExpr, rhs ast.Expression) (cast.Stmt, error) {
	call, ok := rhs.(*ast.FunctionCallExpr)
	if !ok {
		return nil, &diag.Unsupported{Construct: "tuple assignment", Detail: "right-hand side is not a direct call"}
	}
	if len(tup.Elements) == 0 {
		return nil, diag.Internal("empty tuple assignment")
	}

	var extra []cast.Expr
	for _, el := range tup.Elements[1:] {
		if el == nil {
			extra = append(extra, &cast.Ident{Name: "(void*)0"})
			continue
		}
		ref, err := l.Expr.LowerRef(el)
		if err != nil {
			return nil, err
		}
		extra = append(extra, &cast.Unary{Op: "&", Operand: ref, Ptr: true})
	}

	callExpr, err := l.Expr.LowerCallWithExtraArgs(call, extra)
	if err != nil {
		return nil, err
	}
	if tup.Elements[0] == nil {
		return &cast.ExprStmt{Expr: callExpr}, nil
	}
	assign, err := l.Expr.AssignValueTo(tup.Elements[0], callExpr)
	if err != nil {
		return nil, err
	}
	return &cast.ExprStmt{Expr: assign}, nil
}

func (l *Lowerer) lowerIf(n *ast.IfStatement) (cast.Stmt, error) {
	cond, err := l.Expr.Lower(n.Cond)
	if err != nil {
		return nil, err
	}
	then, err := l.LowerStmt(n.True)
	if err != nil {
		return nil, err
	}
	out := &cast.If{Cond: cond, Then: then}
	if n.False != nil {
		els, err := l.LowerStmt(n.False)
		if err != nil {
			return nil, err
		}
		out.Else = els
	}
	return out, nil
}

func (l *Lowerer) lowerWhile(n *ast.WhileStatement) (cast.Stmt, error) {
	cond, err := l.Expr.Lower(n.Cond)
	if err != nil {
		return nil, err
	}
	body, err := l.LowerStmt(n.Body)
	if err != nil {
		return nil, err
	}
	return &cast.While{Cond: cond, Body: body}, nil
}

func (l *Lowerer) lowerDoWhile(n *ast.DoWhileStatement) (cast.Stmt, error) {
	body, err := l.LowerStmt(n.Body)
	if err != nil {
		return nil, err
	}
	cond, err := l.Expr.Lower(n.Cond)
	if err != nil {
		return nil, err
	}
	return &cast.DoWhile{Body: body, Cond: cond}, nil
}

func (l *Lowerer) lowerFor(n *ast.ForStatement) (cast.Stmt, error) {
	var init cast.Stmt
	var err error
	if n.Init != nil {
		init, err = l.LowerStmt(n.Init)
		if err != nil {
			return nil, err
		}
	}
	var cond cast.Expr
	if n.Cond != nil {
		cond, err = l.Expr.Lower(n.Cond)
		if err != nil {
			return nil, err
		}
	}
	var post cast.Stmt
	if n.Post != nil {
		post, err = l.LowerStmt(n.Post)
		if err != nil {
			return nil, err
		}
	}
	body, err := l.LowerStmt(n.Body)
	if err != nil {
		return nil, err
	}
	return &cast.For{Init: init, Cond: cond, Post: post, Body: body}, nil
}

// lowerReturn lowers `return [Value];`. A single-return-parameter function
// returns the value directly, wrapped through `Init_<type>` when the
// parameter's type is a wrapped scalar and lowered as a reference otherwise;
// a multi-parameter ReturnParams set is rejected as an unsupported
// multi-value return.
func (l *Lowerer) lowerReturn(n *ast.ReturnStatement) (cast.Stmt, error) {
	if n.Value == nil {
		return &cast.Return{}, nil
	}
	if len(l.ReturnParams) > 1 {
		return nil, &diag.Unsupported{Construct: "multi-value return", Detail: "use named return parameters"}
	}
	if len(l.ReturnParams) == 1 {
		rp := l.ReturnParams[0]
		ctype := l.Types.CType(rp.Type)
		var val cast.Expr
		var err error
		if rp.Type != nil && rp.Type.IsWrapped() {
			raw, lowerErr := l.Expr.Lower(n.Value)
			if lowerErr != nil {
				return nil, lowerErr
			}
			val = &cast.Call{Callee: "Init_" + ctype, Args: []cast.Expr{raw}}
		} else {
			val, err = l.Expr.LowerRef(n.Value)
			if err != nil {
				return nil, err
			}
		}
		return &cast.Return{Value: val}, nil
	}
	val, err := l.Expr.Lower(n.Value)
	if err != nil {
		return nil, err
	}
	return &cast.Return{Value: val}, nil
}

// lowerEmit elides logging entirely (spec.md §4.10, "Emit has no observable
// effect on state and is dropped").
func (l *Lowerer) lowerEmit(n *ast.EmitStatement) (cast.Stmt, error) {
	return &cast.ExprStmt{Expr: &cast.IntLit{Value: "0"}}, nil
}

// PayablePrologue returns the prologue statement every payable function
// emits before its body: crediting the contract's model balance with the
// call's value when paid (spec.md §4.10, "Payable prologue").
func PayablePrologue() cast.Stmt {
	return &cast.If{
		Cond: &cast.Binary{Op: "==", Left: &cast.Member{Base: &cast.Ident{Name: "paid"}, Name: "v"}, Right: &cast.IntLit{Value: "1"}},
		Then: &cast.ExprStmt{Expr: &cast.Assign{
			Lhs: &cast.Member{Base: &cast.Member{Base: &cast.Ident{Name: "self", Pointer: true}, Name: "model_balance"}, Name: "v"},
			Rhs: &cast.Binary{Op: "+",
				Left:  &cast.Member{Base: &cast.Member{Base: &cast.Ident{Name: "self", Pointer: true}, Name: "model_balance"}, Name: "v"},
				Right: &cast.Member{Base: &cast.Ident{Name: "value"}, Name: "v"},
			},
		}},
	}
}

// NextTemp allocates a fresh `tmp_<n>` local name, numbered per Lowerer.
func (l *Lowerer) NextTemp() string {
	name := fmt.Sprintf("tmp_%d", l.tmp)
	l.tmp++
	return name
}
