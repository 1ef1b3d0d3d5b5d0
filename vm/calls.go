package vm

import (
	"eople/bytecode"
	"eople/builtins"
	"eople/errors"
	"eople/process"
	"eople/promise"
	"eople/value"
)

// opFunctionCall implements the local-call instruction family: FunctionCall
// (function_slot, args...). Operand A names the function handle; args
// follow starting at B, per spec.md §4.2's PushArgs contract for
// non-constructor calls. The callee runs nested in the same goroutine; its
// return value (left at the callee's base+0 by Return/ReturnValue) ends up
// at the absolute slot PopFrame restores as the caller's new top — no
// explicit destination operand is needed, per spec.md §4.4.
func opFunctionCall(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	s := proc.Stack
	callerBase := s.Base
	fnVal := s.Get(callerBase + int(instr.A))
	callee := vm.Functions[fnVal.FunctionID()].Resolve()
	extra := consumeNOPs(fn, ip)

	s.SetupFrame(callee)
	s.PushConstants(callee)
	s.InitializeLocals(callee)
	s.PushArgs(callee, callerBase, instr.B, extra)

	_, err := vm.runRange(proc, callee, 0, len(callee.Code))
	s.PopFrame()
	if err != nil {
		return false, err
	}
	return true, nil
}

// opProcessMessage implements ProcessMessage (target_slot, function_slot,
// args...): an async call to another process. It allocates an owned args
// buffer, mints a reply promise unless the callee's return type is the nil
// type (a callee with no ReturnType set gets one), and enqueues a CallData
// to the target — spec.md §4.4. The
// resulting promise (or nil) is written to the implicit destination slot
// at the caller's current top, the same convention opFunctionCall relies
// on, since no new frame is pushed here for the caller to address through.
func opProcessMessage(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	s := proc.Stack
	base := s.Base
	targetVal := s.Get(base + int(instr.A))
	fnVal := s.Get(base + int(instr.B))
	callee := vm.Functions[fnVal.FunctionID()]
	extra := consumeNOPs(fn, ip)
	args := gatherArgs(s, base, instr.C, extra)

	target := vm.Dispatcher.Lookup(targetVal.ProcessID())

	var reply *promise.Promise
	if callee != nil && (callee.ReturnType == nil || callee.ReturnType.Kind() != value.KindNil) {
		reply = vm.Dispatcher.NewPromise(proc.ID, false)
	}

	vm.Dispatcher.Enqueue(process.CallData{
		Function: callee,
		Target:   target,
		Args:     args,
		Reply:    reply,
	})

	dest := s.Top
	if reply != nil {
		s.Set(dest, value.Promise(reply.ID))
	} else {
		s.Set(dest, value.Nil())
	}
	return true, nil
}

// opSpawnProcess implements SpawnProcess (dest_slot, constructor_slot,
// args...): allocates a new process and runs its constructor inline on
// the spawning worker, per spec.md §4.4, recording the new process handle
// at the explicit destination operand A.
func opSpawnProcess(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	s := proc.Stack
	callerBase := s.Base
	ctorVal := s.Get(callerBase + int(instr.B))
	ctor := vm.Functions[ctorVal.FunctionID()].Resolve()
	extra := consumeNOPs(fn, ip)
	args := gatherArgs(s, callerBase, instr.C, extra)

	newProc := vm.Dispatcher.Spawn()
	if _, err := vm.Call(newProc, ctor, args); err != nil {
		return false, err
	}
	s.Set(callerBase+int(instr.A), value.Process(newProc.ID))
	return true, nil
}

// opCallBuiltin implements the c-call dispatch instruction: operand D
// carries the builtin's registry id (a compile-time constant, not a stack
// offset); A, B, C carry up to three direct argument operands, with any
// further arguments streaming through trailing NOPs exactly as the other
// call families do. spec.md §4.4/§6: "A handler receives the current
// process, reads operand slots via offsets in the current instruction ...
// and returns true."
func opCallBuiltin(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	extra := consumeNOPs(fn, ip)
	ctx := &builtins.Context{
		Proc:       proc,
		Stack:      proc.Stack,
		Instr:      instr,
		Extra:      extra,
		Dispatcher: vm.Dispatcher,
	}
	vm.Builtins.Call(int(instr.D), ctx)
	return true, nil
}

// opReturn implements Return: no value, base+0 left nil.
func opReturn(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	s := proc.Stack
	s.Set(s.ReturnValueSlot(), value.Nil())
	return false, nil
}

// opReturnValue implements ReturnValue(value_slot): copies the value at
// the named slot into base+0, the callee's return-value slot.
func opReturnValue(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	s := proc.Stack
	v := s.Get(s.Base + int(instr.A))
	s.Set(s.ReturnValueSlot(), v)
	return false, nil
}

// opNOP is a no-op when reached directly; its only real role is as an
// overflow-operand carrier consumed in advance by consumeNOPs.
func opNOP(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	return true, nil
}
