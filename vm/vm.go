// Package vm implements Eople's dispatch loop and instruction handlers,
// grounded on barn/vm/vm.go's VM.Run (a switch-dispatched per-opcode loop
// over a single Program) and barn/vm/operations.go/eval_stmt.go/verbs.go's
// per-category handler organization, restructured per spec.md §4.1 into a
// flat {handler,a,b,c,d} table with bool-returning handlers operating
// directly on a process.Process's ProcessStack rather than on a per-call
// Program+environment pair.
package vm

import (
	"eople/bytecode"
	"eople/builtins"
	"eople/errors"
	"eople/process"
	"eople/procstack"
	"eople/runtimelog"
	"eople/value"
)

// handler implements one opcode. ip addresses the instruction currently
// executing within fn.Code; handlers that jump or consume trailing
// operands (Jump family, For*, While, When/Whenever, calls) advance *ip
// themselves, leaving it pointing at the last instruction they consumed —
// the driving loop's unconditional post-increment then lands on the right
// next instruction, per spec.md §4.1's dispatch tie-break rule.
type handler func(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError)

// VM is a stateless (beyond its two collaborator tables) instruction
// interpreter, shared by every worker — grounded on barn/vm/vm.go's single
// VM instance reused across Program executions. Functions resolves a
// function-handle Value's id to its descriptor; it is owned by the
// loaded module and handed to the VM at construction.
type VM struct {
	Builtins   *builtins.Registry
	Functions  map[int64]*bytecode.Function
	Dispatcher process.Dispatcher
	table      [256]handler
}

// New builds a VM wired to a builtin registry and function table, grounded
// on barn/vm/vm.go's NewVM(program) constructor generalized to a
// module-wide function table rather than one compiled program. Dispatcher
// is nil until the scheduler that owns this VM calls SetDispatcher —
// ProcessMessage/SpawnProcess/builtin calls into after()/is_ready() are
// the only handlers that need it, and a VM used solely for vm.Call-driven
// unit tests may never touch it.
func New(reg *builtins.Registry, functions map[int64]*bytecode.Function) *VM {
	vm := &VM{Builtins: reg, Functions: functions}
	vm.installHandlers()
	return vm
}

// SetDispatcher wires the scheduler a VM's ProcessMessage/SpawnProcess/
// builtin-c-call handlers reach into. Called once, after both the
// scheduler and its VM are constructed, to break the construction cycle
// (the scheduler owns the VM; the VM's handlers need the scheduler).
func (vm *VM) SetDispatcher(d process.Dispatcher) {
	vm.Dispatcher = d
}

func (vm *VM) installHandlers() {
	t := &vm.table
	t[bytecode.OpAddI] = arithI(func(a, b int64) int64 { return a + b })
	t[bytecode.OpSubI] = arithI(func(a, b int64) int64 { return a - b })
	t[bytecode.OpMulI] = arithI(func(a, b int64) int64 { return a * b })
	t[bytecode.OpDivI] = arithI(func(a, b int64) int64 { return a / b })
	t[bytecode.OpModI] = arithI(func(a, b int64) int64 { return a % b })
	t[bytecode.OpAddF] = arithF(func(a, b float64) float64 { return a + b })
	t[bytecode.OpSubF] = arithF(func(a, b float64) float64 { return a - b })
	t[bytecode.OpMulF] = arithF(func(a, b float64) float64 { return a * b })
	t[bytecode.OpDivF] = arithF(func(a, b float64) float64 { return a / b })
	t[bytecode.OpShl] = arithI(func(a, b int64) int64 { return a << uint(b) })
	t[bytecode.OpShr] = arithI(func(a, b int64) int64 { return a >> uint(b) })
	t[bytecode.OpAnd] = arithI(func(a, b int64) int64 { return a & b })
	t[bytecode.OpXor] = arithI(func(a, b int64) int64 { return a ^ b })
	t[bytecode.OpOr] = arithI(func(a, b int64) int64 { return a | b })
	t[bytecode.OpBoolAnd] = boolOp(func(a, b bool) bool { return a && b })
	t[bytecode.OpBoolOr] = boolOp(func(a, b bool) bool { return a || b })

	t[bytecode.OpGT] = compareOp(func(c int) bool { return c > 0 })
	t[bytecode.OpLT] = compareOp(func(c int) bool { return c < 0 })
	t[bytecode.OpEQ] = compareOp(func(c int) bool { return c == 0 })
	t[bytecode.OpNEQ] = compareOp(func(c int) bool { return c != 0 })
	t[bytecode.OpLEQ] = compareOp(func(c int) bool { return c <= 0 })
	t[bytecode.OpGEQ] = compareOp(func(c int) bool { return c >= 0 })
	t[bytecode.OpStrEQ] = strCompare(true)
	t[bytecode.OpStrNEQ] = strCompare(false)

	t[bytecode.OpConcat] = opConcat
	t[bytecode.OpStringCopy] = opStringCopy
	t[bytecode.OpStore] = opStore
	t[bytecode.OpStoreArrayElement] = opStoreArrayElement
	t[bytecode.OpStoreArrayStringElement] = opStoreArrayElement
	t[bytecode.OpArraySubscript] = opArraySubscript

	t[bytecode.OpJump] = opJump
	t[bytecode.OpJumpIf] = opJumpIf
	t[bytecode.OpJumpGT] = jumpCompare(func(c int) bool { return c > 0 })
	t[bytecode.OpJumpLT] = jumpCompare(func(c int) bool { return c < 0 })
	t[bytecode.OpJumpEQ] = jumpCompare(func(c int) bool { return c == 0 })
	t[bytecode.OpJumpNEQ] = jumpCompare(func(c int) bool { return c != 0 })
	t[bytecode.OpJumpLEQ] = jumpCompare(func(c int) bool { return c <= 0 })
	t[bytecode.OpJumpGEQ] = jumpCompare(func(c int) bool { return c >= 0 })

	t[bytecode.OpForI] = opForI
	t[bytecode.OpForF] = opForF
	t[bytecode.OpForA] = opForA
	t[bytecode.OpWhile] = opWhile

	t[bytecode.OpWhenRegister] = opWhenRegister
	t[bytecode.OpWheneverRegister] = opWheneverRegister
	t[bytecode.OpWhen] = opWhen
	t[bytecode.OpWhenever] = opWhenever

	t[bytecode.OpFunctionCall] = opFunctionCall
	t[bytecode.OpProcessMessage] = opProcessMessage
	t[bytecode.OpSpawnProcess] = opSpawnProcess
	t[bytecode.OpCallBuiltin] = opCallBuiltin

	t[bytecode.OpReturn] = opReturn
	t[bytecode.OpReturnValue] = opReturnValue
	t[bytecode.OpNOP] = opNOP
}

// runRange dispatches count instructions of fn.Code starting at start, used
// both for whole-function execution and for the self-contained body/
// condition segments For*/While/When/Whenever inline after themselves
// (spec.md §4.5/§4.6: "interpreting N instructions starting at IP+1").
// Returns false the instant a handler signals termination (Return,
// ReturnValue, or a When predicate that did not fire), matching spec.md
// §4.1's "all handlers return true to continue, false to exit".
func (vm *VM) runRange(proc *process.Process, fn *bytecode.Function, start, count int) (bool, *errors.RuntimeError) {
	code := fn.Code
	end := start + count
	ip := start
	for ip < end {
		instr := code[ip]
		h := vm.table[instr.Op]
		if h == nil {
			return false, errors.New(errors.TypeMismatch, instr.Line)
		}
		cont, err := h(vm, proc, fn, &ip, instr)
		if err != nil {
			return false, err
		}
		if !cont {
			return false, nil
		}
		ip++
	}
	return true, nil
}

// Call executes fn on proc from a freshly set-up frame: push frame, copy
// args, push constants, zero locals, run to completion, pop frame. Used
// both for a top-level CallData dispatch and for local function calls made
// from within another call's body. Returns the value left at the callee's
// base+0 (spec.md §4.4's return-value contract).
func (vm *VM) Call(proc *process.Process, fn *bytecode.Function, args []value.Value) (value.Value, *errors.RuntimeError) {
	fn = fn.Resolve()
	s := proc.Stack
	s.SetupFrame(fn)
	base := s.Base
	s.PushConstants(fn)
	s.InitializeLocals(fn)
	for i, a := range args {
		if base+fn.Layout.ParametersStart+i >= base+fn.Layout.ConstantsStart {
			break
		}
		s.Set(base+fn.Layout.ParametersStart+i, a)
	}
	_, err := vm.runRange(proc, fn, 0, len(fn.Code))
	result := s.Get(s.ReturnValueSlot())
	s.PopFrame()
	return result, err
}

// EvaluatePending walks both pending-block vectors after a message has
// been fully processed, per spec.md §4.6. One-shot when blocks that fire
// are removed; whenever blocks are removed only when their body executes
// a Return, otherwise their closure is re-captured to reflect mutations
// and the block stays pending.
func (vm *VM) EvaluatePending(proc *process.Process) *errors.RuntimeError {
	if err := vm.evaluateWhen(proc); err != nil {
		return err
	}
	return vm.evaluateWhenever(proc)
}

func (vm *VM) evaluateWhen(proc *process.Process) *errors.RuntimeError {
	i := 0
	for i < len(proc.When) {
		block := proc.When[i]
		evalFn := block.Eval.Resolve()
		fired, err := vm.runWhenBlock(proc, evalFn, block)
		if err != nil {
			return err
		}
		if fired {
			runtimelog.TemporalFired("WHEN", proc.ID, true)
			proc.RemoveWhen(i)
			continue
		}
		i++
	}
	return nil
}

func (vm *VM) evaluateWhenever(proc *process.Process) *errors.RuntimeError {
	i := 0
	for i < len(proc.Whenever) {
		block := proc.Whenever[i]
		evalFn := block.Eval.Resolve()
		stop, refreshed, err := vm.runWheneverBlock(proc, evalFn, block)
		if err != nil {
			return err
		}
		runtimelog.TemporalFired("WHENEVER", proc.ID, stop)
		if stop {
			proc.RemoveWhenever(i)
			continue
		}
		proc.Whenever[i].State = refreshed
		i++
	}
	return nil
}

// runWhenBlock sets up evalFn's frame, restores the captured closure, runs
// its single When instruction, and reports whether it fired.
func (vm *VM) runWhenBlock(proc *process.Process, evalFn *bytecode.Function, block process.PendingBlock) (bool, *errors.RuntimeError) {
	s := proc.Stack
	s.SetupFrame(evalFn)
	s.ApplyClosureState(evalFn, block.State)
	_, err := vm.runRange(proc, evalFn, 0, 1)
	fired := s.Get(s.CCallReturnSlot()).AsBool()
	s.PopFrame()
	return fired, err
}

// runWheneverBlock runs evalFn's When/Whenever instruction and, when the
// body did not stop the loop, re-captures the closure before popping the
// frame (spec.md §4.6: "updates the captured closure to reflect any
// mutations") — capture must happen while the frame is still live.
func (vm *VM) runWheneverBlock(proc *process.Process, evalFn *bytecode.Function, block process.PendingBlock) (stop bool, refreshed procstack.ClosureState, err *errors.RuntimeError) {
	s := proc.Stack
	s.SetupFrame(evalFn)
	s.ApplyClosureState(evalFn, block.State)
	_, err = vm.runRange(proc, evalFn, 0, 1)
	stop = s.Get(s.CCallReturnSlot()).AsBool()
	if !stop {
		refreshed = s.CaptureClosure(evalFn)
	}
	s.PopFrame()
	return stop, refreshed, err
}
