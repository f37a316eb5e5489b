// Package alloc builds the allocation graph of spec.md §4.1: the directed
// graph of contracts created by other contracts via `new`, used to extend
// the model set into its allocation closure (internal/analysis/flatmodel)
// and to supply Alloc edges to the call graph (internal/analysis/callgraph).
package alloc

import (
	"github.com/contract-ace/smartace/internal/ast"
	"github.com/contract-ace/smartace/internal/diag"
)

// Edge is one child relationship: contract Child was allocated into state
// variable Slot of the owning contract, at the constructor or modifier named
// Site.
type Edge struct {
	Child string
	Slot  string
	Site  string
}

// Graph is the allocation graph: contract name -> outgoing edges.
type Graph struct {
	children map[string][]Edge
	cost     map[string]int
}

// Children returns the direct allocation edges of contract name.
func (g *Graph) Children(name string) []Edge {
	return g.children[name]
}

// Cost returns cost(C) = 1 + Σ cost(children), computed once during Build.
func (g *Graph) Cost(name string) int {
	return g.cost[name]
}

// taint tracks, within one constructor/modifier body, which local
// identifiers currently hold the result of a `new` expression not yet
// assigned to a state variable — the "tuple returns from internal helpers
// tracked by taint propagation along identifier flow" rule of spec.md §4.1.
type taint struct {
	byLocal map[string]string // local name -> created contract type
}

// Build walks every constructor and modifier body of bundle's contracts,
// collecting child edges, and computes cost() for every contract in the
// bundle (roots is not consulted). Escaping allocations and allocation cycles are recorded on the
// returned Collector.
func Build(bundle *ast.Bundle, roots []string) (*Graph, *diag.Collector) {
	g := &Graph{children: map[string][]Edge{}, cost: map[string]int{}}
	c := diag.NewCollector()
	for _, contract := range bundle.Contracts {
		walkContract(g, contract, c)
	}
	computeCosts(g, bundle, c)
	return g, c
}

func walkContract(g *Graph, contract *ast.Contract, c *diag.Collector) {
	if contract.Constructor != nil {
		walkAllocSite(g, contract, "constructor", contract.Constructor.Body, c)
	}
	for _, m := range contract.Modifiers {
		walkAllocSite(g, contract, m.Name, m.Body, c)
	}
	for _, f := range contract.Functions {
		walkEscaping(f.Name, f.Body, c)
	}
	if contract.Fallback != nil {
		walkEscaping(contract.Fallback.Name, contract.Fallback.Body, c)
	}
}

// walkAllocSite walks a constructor or modifier body (a legal allocation
// site) recording child edges for `new` results assigned to state variables,
// directly or through one level of local-variable taint.
func walkAllocSite(g *Graph, contract *ast.Contract, site string, body *ast.Block, c *diag.Collector) {
	if body == nil {
		return
	}
	t := &taint{byLocal: map[string]string{}}
	walkStmts(g, contract, site, body.Statements, t, c)
}

func walkStmts(g *Graph, contract *ast.Contract, site string, stmts []ast.Statement, t *taint, c *diag.Collector) {
	for _, s := range stmts {
		walkStmt(g, contract, site, s, t, c)
	}
}

func walkStmt(g *Graph, contract *ast.Contract, site string, s ast.Statement, t *taint, c *diag.Collector) {
	switch n := s.(type) {
	case *ast.Block:
		walkStmts(g, contract, site, n.Statements, t, c)
	case *ast.VarDeclStatement:
		if n.Initial != nil {
			if created, ok := newExprType(n.Initial); ok && len(n.Declarations) == 1 && n.Declarations[0] != nil {
				t.byLocal[n.Declarations[0].Name] = created
			}
		}
	case *ast.ExprStatement:
		walkExprStmt(g, contract, site, n.Expr, t, c)
	case *ast.IfStatement:
		walkStmt(g, contract, site, n.True, t, c)
		if n.False != nil {
			walkStmt(g, contract, site, n.False, t, c)
		}
	case *ast.WhileStatement:
		walkStmt(g, contract, site, n.Body, t, c)
	case *ast.DoWhileStatement:
		walkStmt(g, contract, site, n.Body, t, c)
	case *ast.ForStatement:
		if n.Init != nil {
			walkStmt(g, contract, site, n.Init, t, c)
		}
		if n.Post != nil {
			walkStmt(g, contract, site, n.Post, t, c)
		}
		walkStmt(g, contract, site, n.Body, t, c)
	}
}

func walkExprStmt(g *Graph, contract *ast.Contract, site string, e ast.Expression, t *taint, c *diag.Collector) {
	assign, ok := e.(*ast.Assignment)
	if !ok {
		if created, ok := newExprType(e); ok {
			c.Add(&diag.ErrEscapingAllocation{Contract: contract.Name, Function: site, Type: created})
		}
		return
	}
	id, ok := assign.Lhs.(*ast.Identifier)
	if !ok || id.Kind != ast.IdentStateVar {
		if created, ok := newExprType(assign.Rhs); ok {
			c.Add(&diag.ErrEscapingAllocation{Contract: contract.Name, Function: site, Type: created})
		}
		return
	}
	if created, ok := newExprType(assign.Rhs); ok {
		g.children[contract.Name] = append(g.children[contract.Name], Edge{Child: created, Slot: id.Name, Site: site})
		return
	}
	if rhsID, ok := assign.Rhs.(*ast.Identifier); ok {
		if created, tainted := t.byLocal[rhsID.Name]; tainted {
			g.children[contract.Name] = append(g.children[contract.Name], Edge{Child: created, Slot: id.Name, Site: site})
		}
	}
}

// newExprType reports whether e is (transparently through a single-element
// tuple) a `new T(...)` call, returning T's name.
func newExprType(e ast.Expression) (string, bool) {
	if tup, ok := e.(*ast.TupleExpr); ok && len(tup.Elements) == 1 {
		e = tup.Elements[0]
	}
	call, ok := e.(*ast.FunctionCallExpr)
	if !ok || call.Kind != ast.CallCreation || call.CreatedType == nil {
		return "", false
	}
	return call.CreatedType.ContractName, true
}

// walkEscaping checks plain (non-constructor, non-modifier) function bodies
// for `new` expressions, which always escape (spec.md §4.1).
func walkEscaping(fn string, body *ast.Block, c *diag.Collector) {
	if body == nil {
		return
	}
	var scan func(stmts []ast.Statement)
	scan = func(stmts []ast.Statement) {
		for _, s := range stmts {
			switch n := s.(type) {
			case *ast.Block:
				scan(n.Statements)
			case *ast.ExprStatement:
				if created, ok := newExprType(n.Expr); ok {
					c.Add(&diag.ErrEscapingAllocation{Function: fn, Type: created})
				}
			case *ast.IfStatement:
				scan([]ast.Statement{n.True})
				if n.False != nil {
					scan([]ast.Statement{n.False})
				}
			case *ast.WhileStatement:
				scan([]ast.Statement{n.Body})
			case *ast.DoWhileStatement:
				scan([]ast.Statement{n.Body})
			case *ast.ForStatement:
				scan([]ast.Statement{n.Body})
			}
		}
	}
	scan(body.Statements)
}

// computeCosts runs depth-first post-order cost accumulation over g,
// detecting cycles (spec.md §4.1, "cycles = error").
func computeCosts(g *Graph, bundle *ast.Bundle, c *diag.Collector) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var path []string
	var visit func(name string) int
	visit = func(name string) int {
		switch color[name] {
		case black:
			return g.cost[name]
		case gray:
			cycle := append(append([]string{}, path...), name)
			c.Add(&diag.ErrAllocationCycle{Cycle: cycle})
			return 1
		}
		color[name] = gray
		path = append(path, name)
		total := 1
		for _, e := range g.children[name] {
			total += visit(e.Child)
		}
		path = path[:len(path)-1]
		color[name] = black
		g.cost[name] = total
		return total
	}
	for _, contract := range bundle.Contracts {
		if color[contract.Name] == white {
			visit(contract.Name)
		}
	}
}

// Specialize returns the first type assigned to a state variable across
// every constructor/modifier allocation site observed for owner, together
// with the number of distinct types assigned to it. When that number is
// greater than one, callers use the slot's declared type instead, since the
// graph alone cannot see it; no warning is recorded for that case.
func Specialize(g *Graph, owner, slot string) (string, int) {
	seen := map[string]bool{}
	var types []string
	for _, e := range g.children[owner] {
		if e.Slot != slot {
			continue
		}
		if !seen[e.Child] {
			seen[e.Child] = true
			types = append(types, e.Child)
		}
	}
	if len(types) == 0 {
		return "", 0
	}
	return types[0], len(types)
}
