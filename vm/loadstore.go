package vm

import (
	"eople/bytecode"
	"eople/errors"
	"eople/process"
	"eople/value"
)

// opConcat implements Concat: C = A (+) B, the one opcode in the ISA whose
// destination operand is C rather than A, per spec.md §4.1's explicit
// callout: "Concat (C = A ⧺ B with temp-aware aliasing)".
func opConcat(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	s := proc.Stack
	base := s.Base
	a := s.Get(base + int(instr.A)).AsString()
	b := s.Get(base + int(instr.B)).AsString()
	s.Set(base+int(instr.C), value.String(a+b))
	return true, nil
}

// opStringCopy implements StringCopy: A = B, moving (aliasing) the source
// box when it lives in the temporaries region — it is dead scratch space
// after this instruction regardless — and cloning otherwise, per spec.md
// §4.1's "move-if-temp, copy otherwise".
func opStringCopy(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	s := proc.Stack
	base := s.Base
	srcIdx := base + int(instr.B)
	src := s.Get(srcIdx)
	dst := base + int(instr.A)
	if srcIdx >= s.Temporaries {
		s.Set(dst, src)
	} else {
		s.Set(dst, src.Clone())
	}
	return true, nil
}

// opStore implements Store: a bitwise copy of B into A, aliasing
// container payloads rather than cloning them (spec.md §4.1: "Store
// (bitwise copy)").
func opStore(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	s := proc.Stack
	base := s.Base
	s.Set(base+int(instr.A), s.Get(base+int(instr.B)))
	return true, nil
}

// opStoreArrayElement backs both StoreArrayElement and
// StoreArrayStringElement: A names the array, B the index, C the value.
// StoreArrayStringElement additionally moves (rather than clones) the
// value when its slot lives in the temporaries region, matching
// StringCopy's move-if-temp discipline.
func opStoreArrayElement(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	s := proc.Stack
	base := s.Base
	arr := s.Get(base + int(instr.A))
	idx := int(s.Get(base + int(instr.B)).AsInt())
	valIdx := base + int(instr.C)
	val := s.Get(valIdx)
	if instr.Op == bytecode.OpStoreArrayStringElement && valIdx < s.Temporaries {
		val = val.Clone()
	}
	if !arr.ArraySet(idx, val) {
		return false, errors.New(errors.IndexOutOfBounds, instr.Line)
	}
	return true, nil
}

// opArraySubscript implements ArraySubscript: A = B[C], supporting array
// indexing by int and dict indexing by string, per spec.md §4.1.
func opArraySubscript(vm *VM, proc *process.Process, fn *bytecode.Function, ip *int, instr bytecode.Instruction) (bool, *errors.RuntimeError) {
	s := proc.Stack
	base := s.Base
	container := s.Get(base + int(instr.B))
	key := s.Get(base + int(instr.C))
	dst := base + int(instr.A)

	switch container.Tag() {
	case value.TagArray:
		elem, ok := container.ArrayGet(int(key.AsInt()))
		if !ok {
			return false, errors.New(errors.IndexOutOfBounds, instr.Line)
		}
		s.Set(dst, elem)
	case value.TagDict:
		elem, ok := container.DictGet(key.AsString())
		if !ok {
			return false, errors.New(errors.KeyNotFound, instr.Line)
		}
		s.Set(dst, elem)
	default:
		return false, errors.New(errors.TypeMismatch, instr.Line)
	}
	return true, nil
}
