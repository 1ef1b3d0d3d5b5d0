package bytecode

import (
	"testing"

	"eople/value"
)

func plainLayout() Layout {
	return Layout{ParametersStart: 0, ConstantsStart: 0, LocalsStart: 0, TempStart: 0, TempEnd: 4, StorageRequirement: 4}
}

func TestHotSwapResolve(t *testing.T) {
	f1 := New("f", []Instruction{NewInstruction(OpReturnValue, 0, 0, 0, 0)}, nil, plainLayout(), value.IntType, Flags{})
	if f1.Resolve() != f1 {
		t.Fatal("with no replacement, Resolve should return the function itself")
	}
	f2 := New("f", []Instruction{NewInstruction(OpReturnValue, 0, 0, 0, 0)}, nil, plainLayout(), value.IntType, Flags{})
	f1.SetReplacement(f2)
	if f1.Resolve() != f2 {
		t.Fatal("Resolve should follow the replacement slot")
	}
	f3 := New("f", nil, nil, plainLayout(), value.IntType, Flags{})
	f2.SetReplacement(f3)
	if f1.Resolve() != f3 {
		t.Fatal("Resolve should follow a chain of replacements to its end")
	}
}

func TestConstantsAreOwnedCopies(t *testing.T) {
	consts := []value.Value{value.Int(1)}
	f := New("f", nil, consts, plainLayout(), nil, Flags{})
	consts[0] = value.Int(99)
	if f.Constants[0].AsInt() != 1 {
		t.Fatal("Function should own a copy of its constant pool")
	}
}
