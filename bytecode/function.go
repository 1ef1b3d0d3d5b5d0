package bytecode

import (
	"sync/atomic"

	"eople/value"
)

// Layout describes a frame's stack region boundaries, published by the
// front-end and never recomputed by the VM (per spec.md §3: "the front-end
// must publish these counts; the VM never computes them").
//
//	[receiver?][parameters][constants][locals][temporaries]
//	temp_end - parameters_start = storage_requirement
type Layout struct {
	ParametersStart   int
	ConstantsStart    int
	LocalsStart       int
	TempStart         int
	TempEnd           int
	StorageRequirement int
}

// Flags bundles the boolean attributes a Function descriptor carries.
type Flags struct {
	ReuseContext bool // true for methods and when-eval blocks
	IsConstructor bool
	IsWhenEval   bool
	IsREPL       bool
}

// Function is an immutable compiled function descriptor. The only mutable
// field is Replacement, an atomically-updatable hot-swap slot the REPL
// front-end fills when it recompiles a previously-loaded function; every
// call site and every when/whenever re-evaluation consults it before
// running the function's own Code.
type Function struct {
	Name      string
	Code      []Instruction
	Constants []value.Value
	Layout    Layout
	ReturnType *value.Type
	Flags     Flags

	replacement atomic.Pointer[Function]
}

// New constructs a Function descriptor. Constants are copied so the
// descriptor owns them, per the data model's "constant pool (owned)".
func New(name string, code []Instruction, constants []value.Value, layout Layout, returnType *value.Type, flags Flags) *Function {
	cp := make([]value.Value, len(constants))
	copy(cp, constants)
	return &Function{
		Name:       name,
		Code:       code,
		Constants:  cp,
		Layout:     layout,
		ReturnType: returnType,
		Flags:      flags,
	}
}

// Resolve returns the function to actually execute: the hot-swapped
// replacement if one has been installed, otherwise f itself. Replacement
// chains are followed to their end so repeated REPL redefinitions never
// leave a stale link.
func (f *Function) Resolve() *Function {
	cur := f
	for {
		next := cur.replacement.Load()
		if next == nil {
			return cur
		}
		cur = next
	}
}

// SetReplacement installs repl as the function to run in place of f for
// every subsequent call and when/whenever re-evaluation. Filled by the
// REPL code generator when it recompiles a previously-loaded function.
func (f *Function) SetReplacement(repl *Function) {
	f.replacement.Store(repl)
}

// HasReplacement reports whether a hot-swap has been installed.
func (f *Function) HasReplacement() bool {
	return f.replacement.Load() != nil
}
