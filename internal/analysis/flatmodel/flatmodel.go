// Package flatmodel collapses a contract's C3-linearized inheritance chain
// into a single addressable view (spec.md §4.2) and extends a user-chosen
// model set into its full allocation-and-inheritance closure.
package flatmodel

import (
	"fmt"

	"github.com/contract-ace/smartace/internal/analysis/alloc"
	"github.com/contract-ace/smartace/internal/ast"
)

// ConstructorLink is one base contract's constructor as seen from a
// FlatContract's merge chain.
type ConstructorLink struct {
	Contract string
	Fn       *ast.FunctionDef // nil if the base has no explicit constructor
}

// FlatContract is the linearized view of one contract: merged state
// variables, modifiers, enums, structs, interface, and fallback, with
// name-shadowing resolved in C3 order (spec.md §4.2).
type FlatContract struct {
	Name  string
	Bases []string // C3 linearization, most-derived first, Name included

	StateVars []*ast.VariableDeclaration
	Enums     []*ast.EnumDef
	Structs   []*ast.StructDef
	Modifiers []*ast.ModifierDef

	// Interface is the set of public/external functions after override
	// resolution: one entry per distinct name, the most-derived definition.
	Interface []*ast.FunctionDef

	// Constructors lists every base's constructor in linearization order
	// (nil Fn for bases without an explicit constructor), used by the
	// function converter to emit the Init_<Base>_For_<C> chain.
	Constructors []ConstructorLink

	Fallback *ast.FunctionDef
}

// IsPayable reports whether any constructor in the chain or the fallback is
// payable.
func (f *FlatContract) IsPayable() bool {
	if f.Fallback != nil && f.Fallback.Mutability == ast.MutPayable {
		return true
	}
	for _, c := range f.Constructors {
		if c.Fn != nil && c.Fn.Mutability == ast.MutPayable {
			return true
		}
	}
	return false
}

// Mappings returns the state variables whose own type is a Mapping; mappings
// nested inside struct-typed state variables are not included.
func (f *FlatContract) Mappings() []*ast.VariableDeclaration {
	var out []*ast.VariableDeclaration
	for _, v := range f.StateVars {
		if v.Type != nil && v.Type.Kind == ast.TypeMapping {
			out = append(out, v)
		}
	}
	return out
}

// Build flattens contract name using bundle's linearization data.
func Build(bundle *ast.Bundle, name string) (*FlatContract, error) {
	root := bundle.ByName(name)
	if root == nil {
		return nil, fmt.Errorf("flatmodel: unknown contract %q", name)
	}
	f := &FlatContract{Name: name, Bases: root.Linearization}

	seenVars := map[string]bool{}
	seenMods := map[string]bool{}
	seenFns := map[string]bool{}
	var fallbackSet bool

	for _, baseName := range root.Linearization {
		base := bundle.ByName(baseName)
		if base == nil {
			return nil, fmt.Errorf("flatmodel: %s: unknown base %q", name, baseName)
		}
		for _, v := range base.StateVars {
			if seenVars[v.Name] {
				continue
			}
			seenVars[v.Name] = true
			f.StateVars = append(f.StateVars, v)
		}
		for _, m := range base.Modifiers {
			if seenMods[m.Name] {
				continue
			}
			seenMods[m.Name] = true
			f.Modifiers = append(f.Modifiers, m)
		}
		f.Enums = append(f.Enums, base.Enums...)
		f.Structs = append(f.Structs, base.Structs...)

		for _, fn := range base.Functions {
			if !fn.IsExecutableInterface() {
				continue
			}
			if seenFns[fn.Name] {
				continue
			}
			seenFns[fn.Name] = true
			f.Interface = append(f.Interface, fn)
		}

		f.Constructors = append(f.Constructors, ConstructorLink{Contract: baseName, Fn: base.Constructor})

		if !fallbackSet && base.Fallback != nil {
			f.Fallback = base.Fallback
			fallbackSet = true
		}
	}
	return f, nil
}

// Model is the set of FlatContract reachable from the user's model roots via
// the allocation graph's child relation, plus every base of each (spec.md
// §4.2, FlatModel).
type Model struct {
	flats map[string]*FlatContract
	roots []string // preserves root multiplicity, for bundle()
}

// BuildModel computes the allocation-and-inheritance closure of roots over
// bundle, using g for allocation edges.
func BuildModel(bundle *ast.Bundle, roots []string, g *alloc.Graph) (*Model, error) {
	m := &Model{flats: map[string]*FlatContract{}, roots: roots}

	included := map[string]bool{}
	var queue []string
	for _, r := range roots {
		if !included[r] {
			included[r] = true
			queue = append(queue, r)
		}
	}
	for i := 0; i < len(queue); i++ {
		for _, e := range g.Children(queue[i]) {
			if !included[e.Child] {
				included[e.Child] = true
				queue = append(queue, e.Child)
			}
		}
	}

	// Add every base of every included contract (spec.md §4.2: "plus every
	// base contract of each"), fixpoint over Linearization.
	for i := 0; i < len(queue); i++ {
		c := bundle.ByName(queue[i])
		if c == nil {
			continue
		}
		for _, base := range c.Linearization {
			if !included[base] {
				included[base] = true
				queue = append(queue, base)
			}
		}
	}

	for _, name := range queue {
		flat, err := Build(bundle, name)
		if err != nil {
			return nil, err
		}
		m.flats[name] = flat
	}
	return m, nil
}

// View returns the deduplicated set of flat contracts in the model.
func (m *Model) View() []*FlatContract {
	out := make([]*FlatContract, 0, len(m.flats))
	for _, f := range m.flats {
		out = append(out, f)
	}
	return out
}

// Bundle returns the root contracts (with multiplicity), for the test
// harness's per-instance enumeration.
func (m *Model) Bundle() []*FlatContract {
	out := make([]*FlatContract, 0, len(m.roots))
	for _, r := range m.roots {
		out = append(out, m.flats[r])
	}
	return out
}

// Get returns the flat contract named name, or nil if it is not part of the
// model's closure.
func (m *Model) Get(name string) *FlatContract {
	return m.flats[name]
}
