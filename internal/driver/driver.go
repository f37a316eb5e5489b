// Package driver is the orchestrator of spec.md §4.13: it runs every
// analysis pass in its fixed dependency order, collects violations across
// all of them, and — if the input is clean — renders the two-wave C
// translation unit (all forward declarations, then all definitions) that
// internal/cast prints byte-identically for identical input.
package driver

import (
	"sort"

	"github.com/contract-ace/smartace/internal/analysis/address"
	"github.com/contract-ace/smartace/internal/analysis/alloc"
	"github.com/contract-ace/smartace/internal/analysis/callgraph"
	"github.com/contract-ace/smartace/internal/analysis/callstate"
	"github.com/contract-ace/smartace/internal/analysis/contractrv"
	"github.com/contract-ace/smartace/internal/analysis/flatmodel"
	"github.com/contract-ace/smartace/internal/analysis/mapdb"
	"github.com/contract-ace/smartace/internal/analysis/types"
	"github.com/contract-ace/smartace/internal/ast"
	"github.com/contract-ace/smartace/internal/cast"
	"github.com/contract-ace/smartace/internal/codegen/function"
	"github.com/contract-ace/smartace/internal/diag"
)

// Config is the driver's external configuration: spec.md §6's input tuple,
// minus the AST bundle and model-set roots (passed separately to Run).
type Config struct {
	// MapDepth is the per-map-record backing-array capacity k. Zero selects
	// the function converter's own default (spec.md §9's open question:
	// "per-map k customization is absent in the observed code", so a single
	// bundle-wide k is all this config carries).
	MapDepth int

	// PersistentUsers is folded into the address domain's auxiliary count:
	// a persistent user is an auxiliary address slot that outlives any
	// single call, as opposed to a Client slot reserved per external entry
	// point. Recorded in DESIGN.md as the Open Question decision.
	PersistentUsers int

	// ConcreteUsers selects a concrete (vs. symbolic role/client) address
	// domain (spec.md §4.6).
	ConcreteUsers bool

	// GlobalContracts counts every contract in the bundle toward the
	// address domain's contract-slot count, rather than only those reached
	// by the model set's allocation-and-inheritance closure.
	GlobalContracts bool

	// EscalateRequires mirrors spec.md §6's input tuple. cmd/smartace never
	// sets it and no pass reads it: the core's require/assert lowering has
	// the one observed behavior the source exhibits (§9's open question
	// declines to specify a second mode).
	EscalateRequires bool

	// AuxAddresses is the domain's plain auxiliary-address count.
	AuxAddresses int
}

// Result is the outcome of one translation run.
type Result struct {
	// Output is the emitted C translation unit. Empty when Violations is
	// non-empty (spec.md §4.13 step 6: any violation emits no C).
	Output string

	// Violations lists every analysis violation collected across every
	// pass, in pass order. A non-empty Violations means the caller must
	// exit non-zero and print these to stderr (spec.md §6, §7); Run itself
	// never writes to stderr or calls os.Exit.
	Violations []diag.Violation

	// ContractCount, MapRecordCount and AddressDomainSize are run-level
	// counts reported alongside Output/Violations so callers (cmd/smartace)
	// can attach them to a RunSummary metric without re-deriving the model.
	ContractCount     int
	MapRecordCount    int
	AddressDomainSize int
}

// Run executes the fixed pipeline of spec.md §4.13 over bundle, rooted at
// the contracts named by roots, and returns either the emitted C unit or
// the violations that blocked emission. A non-nil error means an internal
// inconsistency or unknown root, not an analysis violation.
func Run(bundle *ast.Bundle, roots []string, cfg Config) (*Result, error) {
	diags := diag.NewCollector()

	g, allocDiags := alloc.Build(bundle, roots)
	for _, v := range allocDiags.Violations() {
		diags.Add(v)
	}

	model, err := flatmodel.BuildModel(bundle, roots, g)
	if err != nil {
		return nil, err
	}

	flats := sortedFlats(model)
	rv := contractrv.New(model, g)
	domain := address.NewDomain(cfg.ConcreteUsers, cfg.AuxAddresses+cfg.PersistentUsers)
	tb := types.NewTable()

	structsByName := map[string]*ast.StructDef{}
	for _, c := range bundle.Contracts {
		for _, s := range c.Structs {
			structsByName[s.Name] = s
		}
	}

	contractCount := len(flats)
	if cfg.GlobalContracts {
		contractCount = len(bundle.Contracts)
	}
	domain.SetContractCount(contractCount)

	graphs := make(map[string]*callgraph.Graph, len(flats))
	for _, flat := range flats {
		cg := callgraph.Build(flat, model, rv, bundle)
		graphs[flat.Name] = cg
		analyzeFlat(flat, cg, bundle, tb, domain, structsByName, diags)
	}

	if diags.HasViolations() {
		return &Result{
			Violations:        diags.Violations(),
			ContractCount:     contractCount,
			MapRecordCount:    len(tb.Maps.Records()),
			AddressDomainSize: domain.Size(),
		}, nil
	}

	conv := function.New(model, rv, tb, domain, bundle, diags)
	conv.Capacity = cfg.MapDepth

	asm := &assembler{conv: conv, bundle: bundle}
	for _, site := range collectStructSites(bundle, flats) {
		if err := asm.addStruct(site.Contract, site.Struct); err != nil {
			return nil, err
		}
	}
	for _, rec := range tb.Maps.Records() {
		asm.addMap(rec)
	}
	for _, flat := range flats {
		if err := asm.addContract(flat, graphs[flat.Name]); err != nil {
			return nil, err
		}
	}

	if diags.HasViolations() {
		return &Result{
			Violations:        diags.Violations(),
			ContractCount:     contractCount,
			MapRecordCount:    len(tb.Maps.Records()),
			AddressDomainSize: domain.Size(),
		}, nil
	}

	var all []cast.TopLevel
	all = append(all, asm.wave1...)
	all = append(all, asm.wave2StructDefs...)
	all = append(all, asm.wave2MapBodies...)
	all = append(all, asm.wave2Methods...)
	all = append(all, asm.wave2Constructors...)
	all = append(all, asm.wave2Initializers...)

	return &Result{
		Output:            cast.PrintUnit(all),
		ContractCount:     contractCount,
		MapRecordCount:    len(tb.Maps.Records()),
		AddressDomainSize: domain.Size(),
	}, nil
}

// sortedFlats returns the model's flat contracts ordered by name, so that
// struct/map numbering and emission order do not depend on Go map iteration
// (spec.md §5, "the emitter is deterministic").
func sortedFlats(model *flatmodel.Model) []*flatmodel.FlatContract {
	out := model.View()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type structSite struct {
	Contract string
	Struct   *ast.StructDef
}

// collectStructSites walks each flat's linearization (root-most base's
// contract last, matching the order structs are already merged in
// flatmodel.Build) gathering every distinct (declaring contract, struct)
// pair exactly once, so a struct shared by several flats through a common
// base is only emitted once.
func collectStructSites(bundle *ast.Bundle, flats []*flatmodel.FlatContract) []structSite {
	seen := map[string]bool{}
	var out []structSite
	for _, flat := range flats {
		for _, base := range flat.Bases {
			c := bundle.ByName(base)
			if c == nil {
				continue
			}
			for _, s := range c.Structs {
				sym := types.StructSymbol(base, s.Name)
				if seen[sym] {
					continue
				}
				seen[sym] = true
				out = append(out, structSite{Contract: base, Struct: s})
			}
		}
	}
	return out
}

// analyzeFlat runs every per-flat violation check (address-literal
// extraction, role/client counting, map key/value type checks) over flat's
// executable surface, accumulating into diags. Per spec.md §9's open
// questions this only visits code the call graph actually reaches: flat's
// interface, its own internals, its fallback, and its constructor chain.
func analyzeFlat(flat *flatmodel.FlatContract, cg *callgraph.Graph, bundle *ast.Bundle, tb *types.Table, domain *address.Domain, structsByName map[string]*ast.StructDef, diags *diag.Collector) {
	(&address.RoleExtractor{Domain: domain}).Count(flat, structsByName)
	(&address.ClientExtractor{Domain: domain}).Count(flat)

	le := &address.LiteralExtractor{Domain: domain, Coll: diags}
	for _, fn := range flat.Interface {
		le.Extract(fn.Body)
	}
	for _, v := range cg.Internals(flat) {
		if fn := cg.Func(v); fn != nil {
			le.Extract(fn.Body)
		}
	}
	if flat.Fallback != nil {
		le.Extract(flat.Fallback.Body)
	}
	for _, link := range flat.Constructors {
		if link.Fn != nil {
			le.Extract(link.Fn.Body)
		}
	}

	for _, v := range flat.Mappings() {
		rec := tb.Maps.Resolve(v)
		address.CheckMapKeyType(rec.Keys, rec.Value, diags)
		address.CheckMapValueType(rec.Value, func(t *ast.TypeName) bool {
			return typeContainsAddress(t, structsByName)
		}, diags)
	}
}

func typeContainsAddress(t *ast.TypeName, structs map[string]*ast.StructDef) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case ast.TypeAddress:
		return true
	case ast.TypeStruct:
		s := structs[t.StructName]
		if s == nil {
			return false
		}
		for _, f := range s.Fields {
			if typeContainsAddress(f.Type, structs) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// assembler partitions every emitted cast.TopLevel into the driver's six
// ordered buckets (spec.md §4.13 steps 7–8): one forward-declaration wave,
// then five definition waves in the specified order.
type assembler struct {
	conv   *function.Converter
	bundle *ast.Bundle

	wave1             []cast.TopLevel
	wave2StructDefs   []cast.TopLevel
	wave2MapBodies    []cast.TopLevel
	wave2Methods      []cast.TopLevel
	wave2Constructors []cast.TopLevel
	wave2Initializers []cast.TopLevel
}

func (a *assembler) addStruct(contract string, s *ast.StructDef) error {
	decls := a.conv.StructDecls(contract, s)
	a.wave1 = append(a.wave1, decls[0])
	a.wave2StructDefs = append(a.wave2StructDefs, decls[1])
	a.wave2Initializers = append(a.wave2Initializers, decls[2], decls[3], decls[4])
	return nil
}

func (a *assembler) addMap(rec *mapdb.Record) {
	decls := a.conv.MapDecls(rec)
	a.wave1 = append(a.wave1, decls[0])
	a.wave2StructDefs = append(a.wave2StructDefs, decls[1])
	a.wave2MapBodies = append(a.wave2MapBodies, decls[2], decls[3], decls[4], decls[5])
}

func (a *assembler) addContract(flat *flatmodel.FlatContract, cg *callgraph.Graph) error {
	decls := a.conv.ContractStruct(flat)
	a.wave1 = append(a.wave1, decls[0])
	a.wave2StructDefs = append(a.wave2StructDefs, decls[1])
	a.wave2Initializers = append(a.wave2Initializers, decls[2])

	for _, fn := range flat.Interface {
		if err := a.addMethod(flat, fn); err != nil {
			return err
		}
	}
	for _, v := range cg.Internals(flat) {
		fn := cg.Func(v)
		if fn == nil {
			continue
		}
		if err := a.addMethod(flat, fn); err != nil {
			return err
		}
	}
	if flat.Fallback != nil {
		if err := a.addMethod(flat, flat.Fallback); err != nil {
			return err
		}
	}

	chain, err := a.conv.ConstructorChain(flat)
	if err != nil {
		return err
	}
	for _, fd := range chain {
		a.wave1 = append(a.wave1, fwdDeclOf(fd.(*cast.FuncDef)))
		a.wave2Constructors = append(a.wave2Constructors, fd)
	}
	return nil
}

func (a *assembler) addMethod(flat *flatmodel.FlatContract, fn *ast.FunctionDef) error {
	isLibraryFn := false
	if c := a.bundle.ByName(fn.Contract); c != nil {
		isLibraryFn = c.Constructor == nil && len(c.StateVars) == 0
	}
	threading := callstate.ThreadingFor(fn.Mutability, isLibraryFn)
	decl, err := a.conv.Method(flat.Name, flat.Name, fn, threading)
	if err != nil {
		return err
	}
	a.wave1 = append(a.wave1, fwdDeclOf(decl.(*cast.FuncDef)))
	a.wave2Methods = append(a.wave2Methods, decl)
	return nil
}

func fwdDeclOf(fd *cast.FuncDef) cast.TopLevel {
	clone := *fd
	clone.Body = nil
	return &clone
}
