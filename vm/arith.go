package vm

import (
	"eople/bytecode"
	"eople/errors"
	"eople/process"
	"eople/value"
)

// arithI/arithF/boolOp build a handler for the fixed-shape A = B op C
// instructions spec.md §4.1 groups as arithmetic/bitwise/boolean: three
// stack-offset operands, no jumps, no trailing NOPs.

func arithI(op func(a, b int64) int64) handler {
	return func(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
		s := proc.Stack
		base := s.Base
		a := s.Get(base + int(instr.B)).AsInt()
		b := s.Get(base + int(instr.C)).AsInt()
		s.Set(base+int(instr.A), value.Int(op(a, b)))
		return true, nil
	}
}

func arithF(op func(a, b float64) float64) handler {
	return func(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
		s := proc.Stack
		base := s.Base
		a := s.Get(base + int(instr.B)).AsFloat()
		b := s.Get(base + int(instr.C)).AsFloat()
		s.Set(base+int(instr.A), value.Float(op(a, b)))
		return true, nil
	}
}

func boolOp(op func(a, b bool) bool) handler {
	return func(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
		s := proc.Stack
		base := s.Base
		a := s.Get(base + int(instr.B)).Truthy()
		b := s.Get(base + int(instr.C)).Truthy()
		s.Set(base+int(instr.A), value.Bool(op(a, b)))
		return true, nil
	}
}
