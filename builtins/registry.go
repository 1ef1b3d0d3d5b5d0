// Package builtins implements Eople's c-call surface: functions reachable
// from bytecode via CallBuiltin, grounded on barn/builtins/registry.go's
// Registry shape (name/id-indexed function tables with VerbCaller-style
// callback injection) and on the builtin surface original_source's
// inc/eople_stdlib.h actually declares, which is richer than spec.md's
// illustrative examples.
package builtins

import (
	"io"
	"os"

	"eople/bytecode"
	"eople/process"
	"eople/procstack"
	"eople/value"
)

// Context is everything a c-call handler needs: the frame it was invoked
// from (for reading operand slots and writing ccall_return_val), the owning
// process (for registering promises against), and a Dispatcher for builtins
// that reach into the scheduler (after, spawn-adjacent calls).
//
// spec.md §4.4/§6: "A handler receives the current process, reads operand
// slots via offsets in the current instruction, writes its result to
// ccall_return_val ... and returns true."
type Context struct {
	Proc       *process.Process
	Stack      *procstack.ProcessStack
	Instr      bytecode.Instruction
	Extra      []bytecode.Instruction
	Dispatcher process.Dispatcher
	Out        io.Writer
}

// Operand returns the value at the frame-relative slot named by the i'th
// argument operand of Instr (0=A, 1=B, 2=C). D carries the builtin's
// registry id, so builtins that take more than three arguments read the
// rest from trailing NOPs, four operands per NOP, matching PushArgs'
// operand walk in procstack.
func (c *Context) Operand(i int) value.Value {
	operands := [3]int16{c.Instr.A, c.Instr.B, c.Instr.C}
	if i < len(operands) {
		return c.Stack.Get(c.Stack.Base + int(operands[i]))
	}
	i -= len(operands)
	for _, nop := range c.Extra {
		nopOperands := [4]int16{nop.A, nop.B, nop.C, nop.D}
		if i < len(nopOperands) {
			return c.Stack.Get(c.Stack.Base + int(nopOperands[i]))
		}
		i -= len(nopOperands)
	}
	return value.Nil()
}

// Return writes v to ccall_return_val, the slot aliasing the frame's top.
func (c *Context) Return(v value.Value) {
	c.Stack.Set(c.Stack.CCallReturnSlot(), v)
}

// Func is a c-call handler: spec.md's `fn(process) -> bool` signature,
// generalized to receive a Context instead of a bare process reference
// since Go handlers need the frame and dispatcher explicitly rather than
// reaching through a global.
type Func func(ctx *Context) bool

// Registry holds every builtin indexed by name and by the small integer id
// the bytecode's CallBuiltin instruction actually carries, mirroring
// barn/builtins/registry.go's funcs/byID/nameToID trio.
type Registry struct {
	funcs    map[string]Func
	byID     map[int]Func
	nameToID map[string]int
	nextID   int
	Out      io.Writer
}

// NewRegistry builds a registry with every standard builtin
// pre-registered, in the order original_source/inc/eople_stdlib.h declares
// them, writing Print* output to os.Stdout by default.
func NewRegistry() *Registry {
	r := &Registry{
		funcs:    make(map[string]Func),
		byID:     make(map[int]Func),
		nameToID: make(map[string]int),
		Out:      os.Stdout,
	}
	registerStandardLibrary(r)
	return r
}

// Register adds fn under name, assigning it the next sequential id.
func (r *Registry) Register(name string, fn Func) {
	id := r.nextID
	r.nextID++
	r.funcs[name] = fn
	r.byID[id] = fn
	r.nameToID[name] = id
}

// Lookup resolves a builtin by name, as module loading does when binding a
// CallBuiltin instruction's symbolic target to an id.
func (r *Registry) Lookup(name string) (Func, int, bool) {
	fn, ok := r.funcs[name]
	if !ok {
		return nil, 0, false
	}
	return fn, r.nameToID[name], true
}

// Call invokes the builtin registered under id, injecting r.Out into ctx if
// the caller left it nil.
func (r *Registry) Call(id int, ctx *Context) bool {
	fn, ok := r.byID[id]
	if !ok {
		return false
	}
	if ctx.Out == nil {
		ctx.Out = r.Out
	}
	return fn(ctx)
}
