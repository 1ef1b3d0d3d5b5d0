package vm

import (
	"eople/bytecode"
	"eople/errors"
	"eople/process"
	"eople/value"
)

// opJump implements the unconditional Jump(delta): operand A is a signed
// instruction-count delta relative to the jump instruction itself.
func opJump(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	landAt(ip, *ip+int(instr.A))
	return true, nil
}

// opJumpIf implements JumpIf(delta, cond): jump by A if the value at slot
// B is truthy, otherwise fall through to the next instruction.
func opJumpIf(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	s := proc.Stack
	if s.Get(s.Base + int(instr.B)).Truthy() {
		landAt(ip, *ip+int(instr.A))
	}
	return true, nil
}

// opForI implements ForI(counter, stop, step, body_len): spec.md §4.5 —
// loop while counter < stop (step >= 0) or counter > stop (step < 0),
// writing counter back each iteration, interpreting body_len instructions
// starting at ip+1 on each pass. A Return inside the body terminates the
// whole dispatch loop, not just the loop.
func opForI(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	s := proc.Stack
	base := s.Base
	counterSlot := base + int(instr.A)
	stopSlot := base + int(instr.B)
	stepSlot := base + int(instr.C)
	bodyLen := int(instr.D)
	bodyStart := *ip + 1

	for {
		counter := s.Get(counterSlot).AsInt()
		stop := s.Get(stopSlot).AsInt()
		step := s.Get(stepSlot).AsInt()
		if step >= 0 {
			if !(counter < stop) {
				break
			}
		} else if !(counter > stop) {
			break
		}
		ok, err := vm.runRange(proc, fn, bodyStart, bodyLen)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		s.Set(counterSlot, value.Int(counter+step))
	}
	landAt(ip, bodyStart+bodyLen)
	return true, nil
}

// opForF is ForI's float-counter twin: ForF(counter, stop, step, body_len).
func opForF(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	s := proc.Stack
	base := s.Base
	counterSlot := base + int(instr.A)
	stopSlot := base + int(instr.B)
	stepSlot := base + int(instr.C)
	bodyLen := int(instr.D)
	bodyStart := *ip + 1

	for {
		counter := s.Get(counterSlot).AsFloat()
		stop := s.Get(stopSlot).AsFloat()
		step := s.Get(stepSlot).AsFloat()
		if step >= 0 {
			if !(counter < stop) {
				break
			}
		} else if !(counter > stop) {
			break
		}
		ok, err := vm.runRange(proc, fn, bodyStart, bodyLen)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		s.Set(counterSlot, value.Float(counter+step))
	}
	landAt(ip, bodyStart+bodyLen)
	return true, nil
}

// opForA implements ForA(element_slot, array_slot, body_len): binds each
// element of the array at array_slot to element_slot in turn.
func opForA(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	s := proc.Stack
	base := s.Base
	elemSlot := base + int(instr.A)
	arr := s.Get(base + int(instr.B))
	bodyLen := int(instr.C)
	bodyStart := *ip + 1

	for _, elem := range arr.ArrayElements() {
		s.Set(elemSlot, elem)
		ok, err := vm.runRange(proc, fn, bodyStart, bodyLen)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	landAt(ip, bodyStart+bodyLen)
	return true, nil
}

// opWhile implements While(cond_slot, cond_len, body_len): the condition
// is itself a segment of cond_len instructions, re-evaluated before every
// iteration and expected to leave its result at cond_slot, per spec.md
// §4.5: "Re-evaluates the condition segment between iterations."
func opWhile(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	s := proc.Stack
	condSlot := s.Base + int(instr.A)
	condLen := int(instr.B)
	bodyLen := int(instr.C)
	condStart := *ip + 1
	bodyStart := condStart + condLen

	for {
		ok, err := vm.runRange(proc, fn, condStart, condLen)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		if !s.Get(condSlot).Truthy() {
			break
		}
		ok, err = vm.runRange(proc, fn, bodyStart, bodyLen)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	landAt(ip, bodyStart+bodyLen)
	return true, nil
}

// opWhenRegister implements WhenRegister: operand A names the slot holding
// the closure-evaluation function handle for a one-shot when block.
func opWhenRegister(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	fnVal := proc.Stack.Get(proc.Stack.Base + int(instr.A))
	evalFn := vm.Functions[fnVal.FunctionID()]
	proc.RegisterWhen(evalFn)
	return true, nil
}

// opWheneverRegister is WhenRegister's repeating-block twin.
func opWheneverRegister(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	fnVal := proc.Stack.Get(proc.Stack.Base + int(instr.A))
	evalFn := vm.Functions[fnVal.FunctionID()]
	proc.RegisterWhenever(evalFn)
	return true, nil
}

// opWhen and opWhenever are the leading instruction of a when/whenever
// eval function's body. Each carries (cond_slot, cond_len, body_len):
// execute the condition segment, and if its result (left at cond_slot) is
// false, skip the body. spec.md §4.6 routes the fired/stop verdict through
// ccall_return_val since these run inside a 1-instruction runRange whose
// own bool return is not separately observed by the caller (vm.go's
// runWhenBlock/runWheneverBlock read it from the stack instead).
func opWhen(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	return evalTemporal(vm, proc, fn, ip, instr, false)
}

func opWhenever(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	return evalTemporal(vm, proc, fn, ip, instr, true)
}

func evalTemporal(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction, whenever bool) (bool, *errors.RuntimeError) {
	s := proc.Stack
	condSlot := s.Base + int(instr.A)
	condLen := int(instr.B)
	bodyLen := int(instr.C)
	condStart := *ip + 1
	bodyStart := condStart + condLen

	ok, err := vm.runRange(proc, fn, condStart, condLen)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, err
	}
	if !s.Get(condSlot).Truthy() {
		landAt(ip, bodyStart+bodyLen)
		s.Set(s.CCallReturnSlot(), value.Bool(false))
		return false, nil
	}

	ok, err = vm.runRange(proc, fn, bodyStart, bodyLen)
	if err != nil {
		return false, err
	}
	landAt(ip, bodyStart+bodyLen)

	if !whenever {
		s.Set(s.CCallReturnSlot(), value.Bool(true))
		return true, nil
	}
	stop := !ok // body ran a Return
	s.Set(s.CCallReturnSlot(), value.Bool(stop))
	return !stop, nil
}
