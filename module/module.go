// Package module defines the in-memory, front-end-supplied input contract
// the VM and scheduler are built against, grounded on barn/db.Store (the
// object/verb database a front-end-equivalent populates before barn's VM
// runs) but with no persistence layer at all: spec.md §6 is explicit that
// Eople's runtime never owns storage, so Module is assembled once by
// whatever produced the bytecode (a compiler, or a hand-built test fixture)
// and handed to scheduler.New.
package module

import (
	"fmt"

	"eople/bytecode"
	"eople/builtins"
	"eople/value"
)

// Module is the complete, immutable-at-load input a front-end hands the
// runtime: every compiled Function keyed by the int64 id its Function
// Values carry, a name index for symbolic lookups (REPL redefinition,
// diagnostics), the builtin registry, and the shared type interner every
// compiled Layout's types were built against.
type Module struct {
	Functions map[int64]*bytecode.Function
	Names     map[string]int64
	Builtins  *builtins.Registry
	Interner  *value.TypeInterner
}

// Load assembles a Module from a front-end's output: a flat function list
// (assigned sequential ids in slice order, matching the order a compiler
// would have minted Function Value handles) and a builtin registry. A nil
// registry defaults to builtins.NewRegistry(), mirroring barn's db
// package defaulting to an empty object store when none is supplied.
func Load(functions []*bytecode.Function, reg *builtins.Registry) *Module {
	if reg == nil {
		reg = builtins.NewRegistry()
	}
	m := &Module{
		Functions: make(map[int64]*bytecode.Function, len(functions)),
		Names:     make(map[string]int64, len(functions)),
		Builtins:  reg,
		Interner:  value.NewTypeInterner(),
	}
	for i, fn := range functions {
		id := int64(i + 1)
		m.Functions[id] = fn
		m.Names[fn.Name] = id
	}
	return m
}

// Lookup resolves a function by its symbolic name, as a REPL does before
// compiling a redefinition against the existing function's id.
func (m *Module) Lookup(name string) (*bytecode.Function, int64, bool) {
	id, ok := m.Names[name]
	if !ok {
		return nil, 0, false
	}
	return m.Functions[id], id, true
}

// FunctionValue returns the Function-tagged Value a caller uses to name fn
// in a ProcessMessage/SpawnProcess/FunctionCall operand, or an error if fn
// was never registered under this Module.
func (m *Module) FunctionValue(name string) (value.Value, error) {
	_, id, ok := m.Lookup(name)
	if !ok {
		return value.Nil(), fmt.Errorf("module: unknown function %q", name)
	}
	return value.Function(id), nil
}

// Registry wraps a Module with the bounded hot-swap history SPEC_FULL.md
// §4.13 adds: a REPL front-end calls Replace after compiling a new body for
// an existing name, and the prior body is kept (up to historyCapacity
// versions) for later inspection rather than discarded outright.
type Registry struct {
	*Module
	history *history
}

// NewRegistry wraps m with an empty hot-swap history.
func NewRegistry(m *Module) *Registry {
	return &Registry{Module: m, history: newHistory()}
}

// Replace installs newFn as the running replacement for the function
// currently registered under name, per spec.md §4.8's hot-swap contract,
// and records the superseded body in the bounded history. It returns the
// old function (the caller needs it to drive
// scheduler.Scheduler.ExecuteFunctionIncremental's layout comparison) or an
// error if name was never loaded.
func (r *Registry) Replace(name string, newFn *bytecode.Function) (*bytecode.Function, error) {
	old, _, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("module: cannot hot-swap unknown function %q", name)
	}
	old.SetReplacement(newFn)
	r.history.record(name, old)
	return old, nil
}

// History returns every prior body recorded for name, oldest first.
func (r *Registry) History(name string) []*bytecode.Function {
	return r.history.versions(name)
}
