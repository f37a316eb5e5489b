// Package contractrv resolves the concrete contract type that an expression
// of contract type holds at runtime (spec.md §4.3), supporting the call
// graph in the presence of polymorphism.
package contractrv

import (
	"github.com/contract-ace/smartace/internal/analysis/alloc"
	"github.com/contract-ace/smartace/internal/analysis/flatmodel"
	"github.com/contract-ace/smartace/internal/ast"
	"github.com/contract-ace/smartace/internal/diag"
)

// Resolver resolves contract-typed expressions to their most-derived
// runtime type, memoizing per-function results so cyclic call chains are
// resolved by fixpoint (spec.md §4.3).
type Resolver struct {
	model *flatmodel.Model
	graph *alloc.Graph

	// fnRV caches the rv of "<contract>.<function>" once computed ("" for a
	// function with no determinable contract-typed return); busy marks the
	// entries still being computed (an in-progress cycle).
	fnRV map[string]string
	busy map[string]bool
}

// New builds a Resolver over a flattened model and its allocation graph.
func New(model *flatmodel.Model, graph *alloc.Graph) *Resolver {
	return &Resolver{model: model, graph: graph, fnRV: map[string]string{}, busy: map[string]bool{}}
}

// Resolve returns the most-derived contract that expr, evaluated within
// flat contract scope, can hold at runtime.
func (r *Resolver) Resolve(expr ast.Expression, scope string) (string, error) {
	switch e := expr.(type) {
	case *ast.Identifier:
		if e.Kind == ast.IdentStateVar {
			if t, n := alloc.Specialize(r.graph, scope, e.Name); n > 0 {
				if n > 1 {
					return e.ResolvedType().ContractName, nil
				}
				return t, nil
			}
		}
		if e.ResolvedType() != nil && e.ResolvedType().Kind == ast.TypeContract {
			return e.ResolvedType().ContractName, nil
		}
		return "", &diag.ErrUnresolvedRv{Reason: "identifier " + e.Name + " has no known allocation"}

	case *ast.MemberAccess:
		ownerType, err := r.Resolve(e.Base, scope)
		if err != nil {
			return "", err
		}
		if t, n := alloc.Specialize(r.graph, ownerType, e.Member); n > 0 {
			if n > 1 && e.ResolvedType() != nil && e.ResolvedType().Kind == ast.TypeContract {
				return e.ResolvedType().ContractName, nil
			}
			return t, nil
		}
		return "", &diag.ErrUnresolvedRv{Reason: "member " + e.Member + " of " + ownerType + " has no known allocation"}

	case *ast.FunctionCallExpr:
		if e.Kind == ast.CallCreation && e.CreatedType != nil {
			return e.CreatedType.ContractName, nil
		}
		return r.resolveCallRV(e, scope)

	case *ast.TupleExpr:
		if len(e.Elements) == 1 {
			return r.Resolve(e.Elements[0], scope)
		}
		return "", &diag.ErrUnresolvedRv{Reason: "multi-element tuple has no single contract rv"}

	default:
		return "", &diag.ErrUnresolvedRv{Reason: "unsupported rv expression shape"}
	}
}

// resolveCallRV resolves the rv of an Internal/External/Super/Library call
// by locating the callee's FunctionDef and computing its own rv, cached per
// function so recursive call chains terminate (spec.md §4.3, "fixpoint").
func (r *Resolver) resolveCallRV(call *ast.FunctionCallExpr, scope string) (string, error) {
	calleeContract, fn, ok := r.lookupCallee(call, scope)
	if !ok || fn == nil {
		return "", &diag.ErrUnresolvedRv{Reason: "could not locate callee declaration"}
	}
	key := calleeContract + "." + fn.Name
	if v, done := r.fnRV[key]; done {
		return v, nil
	}
	if r.busy[key] {
		// Cyclic dependence: fixpoint iteration stops here with the
		// currently-best-known (possibly empty) answer.
		return r.fnRV[key], nil
	}
	r.busy[key] = true
	defer delete(r.busy, key)

	rv := r.rvOfFunctionBody(fn, calleeContract)
	r.fnRV[key] = rv
	return rv, nil
}

// rvOfFunctionBody scans fn's body for a contract-typed return expression
// and resolves it in fn's own defining contract's scope.
func (r *Resolver) rvOfFunctionBody(fn *ast.FunctionDef, scope string) string {
	if fn.Body == nil {
		return ""
	}
	var found string
	var scan func(stmts []ast.Statement)
	scan = func(stmts []ast.Statement) {
		for _, s := range stmts {
			if found != "" {
				return
			}
			switch n := s.(type) {
			case *ast.Block:
				scan(n.Statements)
			case *ast.ReturnStatement:
				if n.Value != nil {
					if t, err := r.Resolve(n.Value, scope); err == nil {
						found = t
					}
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
	scan(fn.Body.Statements)
	return found
}

// lookupCallee resolves call's callee to a (defining contract, FunctionDef)
// pair, handling Internal (bare name, current scope), External (member
// access on a contract-typed base), and Super (dispatch to the next
// linearization successor from scope).
func (r *Resolver) lookupCallee(call *ast.FunctionCallExpr, scope string) (string, *ast.FunctionDef, bool) {
	switch e := call.Callee.(type) {
	case *ast.Identifier:
		flat := r.model.Get(scope)
		if flat == nil {
			return "", nil, false
		}
		for _, fn := range flat.Interface {
			if fn.Name == e.Name {
				return fn.Contract, fn, true
			}
		}
		return "", nil, false

	case *ast.MemberAccess:
		if id, ok := e.Base.(*ast.Identifier); ok && id.Magic == ast.MagicSuper {
			return r.lookupSuper(e.Member, scope)
		}
		ownerType, err := r.Resolve(e.Base, scope)
		if err != nil {
			return "", nil, false
		}
		flat := r.model.Get(ownerType)
		if flat == nil {
			return "", nil, false
		}
		for _, fn := range flat.Interface {
			if fn.Name == e.Member {
				return fn.Contract, fn, true
			}
		}
		return "", nil, false
	}
	return "", nil, false
}

// lookupSuper finds the next linearization successor of scope that defines
// member, per spec.md §4.4's super-dispatch rule.
func (r *Resolver) lookupSuper(member, scope string) (string, *ast.FunctionDef, bool) {
	flat := r.model.Get(scope)
	if flat == nil {
		return "", nil, false
	}
	skippedSelf := false
	for _, base := range flat.Bases {
		if !skippedSelf {
			skippedSelf = true
			continue
		}
		baseFlat := r.model.Get(base)
		if baseFlat == nil {
			continue
		}
		for _, fn := range baseFlat.Interface {
			if fn.Name == member && fn.Contract == base {
				return base, fn, true
			}
		}
	}
	return "", nil, false
}
