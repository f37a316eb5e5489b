// Package callgraph computes, over a flattened model, every function
// actually executable and the labeled edges between them (spec.md §4.4).
package callgraph

import (
	"github.com/contract-ace/smartace/internal/analysis/contractrv"
	"github.com/contract-ace/smartace/internal/analysis/flatmodel"
	"github.com/contract-ace/smartace/internal/ast"
)

// EdgeKind labels a call-graph edge.
type EdgeKind int

// EdgeKind values.
const (
	Internal EdgeKind = iota
	External
	Super
	Library
	Alloc
)

// Vertex identifies one function by its defining contract and name ("" name
// marks the constructor, "~fallback" the fallback).
type Vertex struct {
	Contract string
	Name     string
}

// Edge is one labeled call-graph edge.
type Edge struct {
	From, To Vertex
	Kind     EdgeKind
}

// Graph is the call graph: executable vertex set plus labeled edges.
type Graph struct {
	model *flatmodel.Model
	rv    *contractrv.Resolver

	fns   map[Vertex]*ast.FunctionDef
	edges map[Vertex][]Edge
	order []Vertex
}

// Vertices returns every executable function, in discovery order.
func (g *Graph) Vertices() []Vertex { return g.order }

// Func returns the FunctionDef for v.
func (g *Graph) Func(v Vertex) *ast.FunctionDef { return g.fns[v] }

// Edges returns the outgoing edges of v.
func (g *Graph) Edges(v Vertex) []Edge { return g.edges[v] }

// Internals returns the callees of flat that are reachable from its
// interface/fallback but are not themselves part of flat's interface
// (spec.md §4.4, "internals(flat)").
func (g *Graph) Internals(flat *flatmodel.FlatContract) []Vertex {
	iface := map[string]bool{}
	for _, fn := range flat.Interface {
		iface[fn.Name] = true
	}
	seen := map[Vertex]bool{}
	var out []Vertex
	var visit func(v Vertex)
	visit = func(v Vertex) {
		for _, e := range g.edges[v] {
			if e.Kind == Alloc {
				continue // spec.md §12: Alloc edges do not recurse into the callee's own graph
			}
			if seen[e.To] {
				continue
			}
			seen[e.To] = true
			if e.To.Contract == flat.Name && !iface[e.To.Name] {
				out = append(out, e.To)
			}
			visit(e.To)
		}
	}
	for _, fn := range flat.Interface {
		visit(Vertex{Contract: fn.Contract, Name: fn.Name})
	}
	if flat.Fallback != nil {
		visit(Vertex{Contract: flat.Fallback.Contract, Name: "~fallback"})
	}
	return out
}

// SuperCalls returns the linearization-ordered super overrides that f
// dispatches to from within flat (spec.md §4.4, "super_calls(flat, f)"):
// the set of bases, nearer-to-farther, that redefine f.Name after the
// most-derived definer.
func SuperCalls(flat *flatmodel.FlatContract, f *ast.FunctionDef, bundle *ast.Bundle) []string {
	var out []string
	for _, base := range SuperCallsFromScope(flat, f.Contract) {
		c := bundle.ByName(base)
		if c == nil {
			continue
		}
		for _, fn := range c.Functions {
			if fn.Name == f.Name {
				out = append(out, base)
				break
			}
		}
	}
	return out
}

// Build computes the call graph of flat's interface and fallback, resolving
// callee vertices via model/rv/bundle.
func Build(flat *flatmodel.FlatContract, model *flatmodel.Model, rv *contractrv.Resolver, bundle *ast.Bundle) *Graph {
	g := &Graph{
		model: model,
		rv:    rv,
		fns:   map[Vertex]*ast.FunctionDef{},
		edges: map[Vertex][]Edge{},
	}

	var roots []Vertex
	for _, fn := range flat.Interface {
		v := Vertex{Contract: fn.Contract, Name: fn.Name}
		g.addVertex(v, fn)
		roots = append(roots, v)
	}
	if flat.Fallback != nil {
		v := Vertex{Contract: flat.Fallback.Contract, Name: "~fallback"}
		g.addVertex(v, flat.Fallback)
		roots = append(roots, v)
	}

	visited := map[Vertex]bool{}
	var visit func(v Vertex, scope string)
	visit = func(v Vertex, scope string) {
		if visited[v] {
			return
		}
		visited[v] = true
		fn := g.fns[v]
		if fn == nil || fn.Body == nil {
			return
		}
		for _, call := range collectCalls(fn.Body) {
			to, kind, ok := g.resolveCallee(call, scope)
			if !ok {
				continue
			}
			g.edges[v] = append(g.edges[v], Edge{From: v, To: to, Kind: kind})
			if _, known := g.fns[to]; !known {
				g.addVertex(to, lookupFn(bundle, to))
			}
			if kind != Alloc {
				nextScope := to.Contract
				visit(to, nextScope)
			}
		}
	}
	for _, v := range roots {
		visit(v, v.Contract)
	}
	return g
}

func (g *Graph) addVertex(v Vertex, fn *ast.FunctionDef) {
	if _, ok := g.fns[v]; ok {
		return
	}
	g.fns[v] = fn
	g.order = append(g.order, v)
}

func lookupFn(bundle *ast.Bundle, v Vertex) *ast.FunctionDef {
	c := bundle.ByName(v.Contract)
	if c == nil {
		return nil
	}
	if v.Name == "~fallback" {
		return c.Fallback
	}
	if v.Name == "" {
		return c.Constructor
	}
	for _, fn := range c.Functions {
		if fn.Name == v.Name {
			return fn
		}
	}
	return nil
}

// resolveCallee classifies one FunctionCallExpr into a callee vertex and
// edge kind, per spec.md §4.4.
func (g *Graph) resolveCallee(call *ast.FunctionCallExpr, scope string) (Vertex, EdgeKind, bool) {
	if call.Kind == ast.CallCreation && call.CreatedType != nil {
		return Vertex{Contract: call.CreatedType.ContractName, Name: ""}, Alloc, true
	}

	switch callee := call.Callee.(type) {
	case *ast.Identifier:
		// Bare name: internal call within the current scope's flat contract.
		flat := g.model.Get(scope)
		if flat == nil {
			return Vertex{}, 0, false
		}
		for _, fn := range flat.Interface {
			if fn.Name == callee.Name {
				return Vertex{Contract: fn.Contract, Name: fn.Name}, Internal, true
			}
		}
		return Vertex{Contract: scope, Name: callee.Name}, Internal, true

	case *ast.MemberAccess:
		if id, ok := callee.Base.(*ast.Identifier); ok {
			if id.Magic == ast.MagicSuper {
				flat := g.model.Get(scope)
				if flat == nil {
					return Vertex{}, 0, false
				}
				bases := SuperCallsFromScope(flat, scope)
				if len(bases) == 0 {
					return Vertex{}, 0, false
				}
				return Vertex{Contract: bases[0], Name: callee.Member}, Super, true
			}
			if id.Kind == ast.IdentContract {
				return Vertex{Contract: id.Name, Name: callee.Member}, Library, true
			}
		}
		rvType, err := g.rv.Resolve(callee.Base, scope)
		if err != nil || rvType == "" {
			return Vertex{}, 0, false
		}
		return Vertex{Contract: rvType, Name: callee.Member}, External, true
	}
	return Vertex{}, 0, false
}

// SuperCallsFromScope returns the bases (nearer-to-farther) after scope in
// flat's linearization, used to find where `super.g()` dispatches from
// scope.
func SuperCallsFromScope(flat *flatmodel.FlatContract, scope string) []string {
	var out []string
	pastSelf := false
	for _, base := range flat.Bases {
		if !pastSelf {
			if base == scope {
				pastSelf = true
			}
			continue
		}
		out = append(out, base)
	}
	return out
}

// collectCalls walks a function body collecting every FunctionCallExpr.
func collectCalls(body *ast.Block) []*ast.FunctionCallExpr {
	var out []*ast.FunctionCallExpr
	var scanExpr func(e ast.Expression)
	scanExpr = func(e ast.Expression) {
		switch n := e.(type) {
		case *ast.FunctionCallExpr:
			out = append(out, n)
			if n.Callee != nil {
				scanExpr(n.Callee)
			}
			for _, a := range n.Args {
				scanExpr(a)
			}
			for _, a := range n.NamedArgs {
				scanExpr(a)
			}
		case *ast.MemberAccess:
			scanExpr(n.Base)
		case *ast.IndexAccess:
			scanExpr(n.Base)
			scanExpr(n.Index)
		case *ast.Conditional:
			scanExpr(n.Cond)
			scanExpr(n.True)
			scanExpr(n.False)
		case *ast.UnaryOp:
			scanExpr(n.Operand)
		case *ast.BinaryOp:
			scanExpr(n.Left)
			scanExpr(n.Right)
		case *ast.Assignment:
			scanExpr(n.Lhs)
			scanExpr(n.Rhs)
		case *ast.TupleExpr:
			for _, el := range n.Elements {
				if el != nil {
					scanExpr(el)
				}
			}
		}
	}
	var scanStmt func(s ast.Statement)
	scanStmt = func(s ast.Statement) {
		switch n := s.(type) {
		case *ast.Block:
			for _, st := range n.Statements {
				scanStmt(st)
			}
		case *ast.VarDeclStatement:
			if n.Initial != nil {
				scanExpr(n.Initial)
			}
		case *ast.ExprStatement:
			scanExpr(n.Expr)
		case *ast.IfStatement:
			scanExpr(n.Cond)
			scanStmt(n.True)
			if n.False != nil {
				scanStmt(n.False)
			}
		case *ast.WhileStatement:
			scanExpr(n.Cond)
			scanStmt(n.Body)
		case *ast.DoWhileStatement:
			scanStmt(n.Body)
			scanExpr(n.Cond)
		case *ast.ForStatement:
			if n.Init != nil {
				scanStmt(n.Init)
			}
			if n.Cond != nil {
				scanExpr(n.Cond)
			}
			if n.Post != nil {
				scanStmt(n.Post)
			}
			scanStmt(n.Body)
		case *ast.ReturnStatement:
			if n.Value != nil {
				scanExpr(n.Value)
			}
		case *ast.EmitStatement:
			for _, a := range n.Args {
				scanExpr(a)
			}
		}
	}
	scanStmt(body)
	return out
}
