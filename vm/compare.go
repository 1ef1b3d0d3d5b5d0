package vm

import (
	"eople/bytecode"
	"eople/errors"
	"eople/process"
	"eople/value"
)

// compareOp builds a handler for A = (B cmp C), the non-branching
// comparison family spec.md §4.1 lists: ">,<,==,!=,<=,>=" over i64/f64.
func compareOp(pred func(c int) bool) handler {
	return func(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
		s := proc.Stack
		base := s.Base
		a := s.Get(base + int(instr.B))
		b := s.Get(base + int(instr.C))
		s.Set(base+int(instr.A), value.Bool(pred(numCompare(a, b))))
		return true, nil
	}
}

// strCompare builds the == and != handlers over strings, comparing the
// shared pointer first and falling back to content, per spec.md §4.1:
// "equality compares pointers first, then contents" — Value.Equal already
// implements exactly that ordering for TagString.
func strCompare(wantEqual bool) handler {
	return func(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
		s := proc.Stack
		base := s.Base
		a := s.Get(base + int(instr.B))
		b := s.Get(base + int(instr.C))
		eq := a.Equal(b)
		s.Set(base+int(instr.A), value.Bool(eq == wantEqual))
		return true, nil
	}
}

// jumpCompare builds the combined compare-and-branch family
// JumpGT/LT/EQ/NEQ/LEQ/GEQ(delta, a, b): operand A is the signed
// instruction-count delta, B and C are the compared slots.
func jumpCompare(pred func(c int) bool) handler {
	return func(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
		s := proc.Stack
		base := s.Base
		a := s.Get(base + int(instr.B))
		b := s.Get(base + int(instr.C))
		if pred(numCompare(a, b)) {
			landAt(ip, *ip+int(instr.A))
		}
		return true, nil
	}
}
