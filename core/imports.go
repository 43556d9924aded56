package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/signalsfoundry/scenario-engine/internal/logging"
)

// ImportSource identifies what an import symbol binds to: a whole module, or
// one attribute of a module.
type ImportSource struct {
	Module string
	Attr   string // empty imports the module itself
}

func (s ImportSource) String() string {
	if s.Attr == "" {
		return s.Module
	}
	return s.Module + "." + s.Attr
}

// MissingReason explains why an import symbol has no value.
type MissingReason int

const (
	MissingModule MissingReason = iota
	MissingAttr
)

// SymbolError reports an import that could not be resolved.
type SymbolError struct {
	Msg string
}

func (e *SymbolError) Error() string { return e.Msg }

// ImportRegistry resolves import sources to values, scenario-wide. All
// scripted parts of a scenario share one registry, so a module is resolved
// (and a failure warned about) at most once per scenario.
type ImportRegistry struct {
	log            logging.Logger
	resolved       map[ImportSource]any
	missingModules map[string]bool
	missingAttrs   map[ImportSource]bool
}

func NewImportRegistry(log logging.Logger) *ImportRegistry {
	if log == nil {
		log = logging.Noop()
	}
	return &ImportRegistry{
		log:            log,
		resolved:       map[ImportSource]any{},
		missingModules: map[string]bool{},
		missingAttrs:   map[ImportSource]bool{},
	}
}

// AddImport registers an import source, resolving it through the module
// table. Resolution failures are cached negatively: the first failure warns
// and returns a SymbolError, repeats return nil silently. Re-adding a
// resolved source is a no-op.
func (r *ImportRegistry) AddImport(module, attr string) error {
	src := ImportSource{Module: module, Attr: attr}
	if _, ok := r.resolved[src]; ok {
		return nil
	}
	if r.missingAttrs[src] || r.missingModules[module] {
		return nil
	}

	values, ok := LookupModule(module)
	if !ok {
		msg := fmt.Sprintf("module %q not found", module)
		r.log.Warn(context.Background(), msg)
		r.missingModules[module] = true
		return &SymbolError{Msg: msg}
	}

	if attr == "" {
		r.resolved[src] = values
		return nil
	}
	if v, ok := values[attr]; ok {
		r.resolved[src] = v
		return nil
	}

	msg := fmt.Sprintf("object named %q not found in module %q", attr, module)
	r.log.Warn(context.Background(), msg)
	r.missingAttrs[src] = true
	return &SymbolError{Msg: msg}
}

// ResolvedImports filters a symbol map down to the sources that resolved.
func (r *ImportRegistry) ResolvedImports(syms map[string]ImportSource) map[string]ImportSource {
	out := map[string]ImportSource{}
	for name, src := range syms {
		if _, ok := r.resolved[src]; ok {
			out[name] = src
		}
	}
	return out
}

// MissingImports maps each unresolvable symbol to the reason.
func (r *ImportRegistry) MissingImports(syms map[string]ImportSource) map[string]MissingReason {
	out := map[string]MissingReason{}
	for name, src := range syms {
		switch {
		case r.missingModules[src.Module]:
			out[name] = MissingModule
		case r.missingAttrs[src]:
			out[name] = MissingAttr
		}
	}
	return out
}

// SymbolValues maps each resolvable symbol to its value; unresolvable
// symbols are absent.
func (r *ImportRegistry) SymbolValues(syms map[string]ImportSource) map[string]any {
	out := map[string]any{}
	for name, src := range syms {
		if v, ok := r.resolved[src]; ok {
			out[name] = v
		}
	}
	return out
}

// ImportSet is one scripted part's import symbols, resolved through the
// scenario's shared registry.
type ImportSet struct {
	registry *ImportRegistry
	log      logging.Logger
	symbols  map[string]ImportSource
}

func NewImportSet(registry *ImportRegistry, log logging.Logger) *ImportSet {
	if log == nil {
		log = logging.Noop()
	}
	return &ImportSet{
		registry: registry,
		log:      log,
		symbols:  map[string]ImportSource{},
	}
}

// AddSymbol registers a symbol for this part. alias overrides the default
// symbol name (the attribute name, or the module name for whole-module
// imports). Resolution failure does not remove the symbol: it stays,
// reported as missing, and resolves later if the module table gains the
// module.
func (s *ImportSet) AddSymbol(src ImportSource, alias string) {
	name := alias
	if name == "" {
		name = src.Attr
	}
	if name == "" {
		name = src.Module
	}
	if err := s.registry.AddImport(src.Module, src.Attr); err != nil {
		s.log.Warn(context.Background(), "could not resolve import symbol",
			logging.String("symbol", name), logging.Err(err))
	}
	s.symbols[name] = src
}

// ReplaceSymbol re-registers a symbol under a (possibly new) alias.
func (s *ImportSet) ReplaceSymbol(src ImportSource, alias string) {
	s.AddSymbol(src, alias)
}

func (s *ImportSet) RemoveSymbol(name string) {
	delete(s.symbols, name)
}

func (s *ImportSet) ClearAllSymbols() {
	s.symbols = map[string]ImportSource{}
}

func (s *ImportSet) ResolvedSymbols() map[string]ImportSource {
	return s.registry.ResolvedImports(s.symbols)
}

func (s *ImportSet) MissingSymbols() map[string]MissingReason {
	return s.registry.MissingImports(s.symbols)
}

// AllSymbols returns every registered symbol, resolved or not.
func (s *ImportSet) AllSymbols() map[string]ImportSource {
	out := make(map[string]ImportSource, len(s.symbols))
	for k, v := range s.symbols {
		out[k] = v
	}
	return out
}

func (s *ImportSet) SymbolValues() map[string]any {
	return s.registry.SymbolValues(s.symbols)
}

// SymbolNames lists the registered symbol names, sorted.
func (s *ImportSet) SymbolNames() []string {
	names := make([]string, 0, len(s.symbols))
	for name := range s.symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
