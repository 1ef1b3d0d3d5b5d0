package module

import "testing"

import (
	"eople/bytecode"
	"eople/value"
)

func trivialFunction(name string) *bytecode.Function {
	return bytecode.New(name, nil, nil, bytecode.Layout{}, nil, bytecode.Flags{})
}

func TestLoadAssignsSequentialIDs(t *testing.T) {
	m := Load([]*bytecode.Function{trivialFunction("a"), trivialFunction("b")}, nil)
	fn, id, ok := m.Lookup("b")
	if !ok {
		t.Fatal("expected b to be found")
	}
	if id != 2 || fn.Name != "b" {
		t.Fatalf("got id=%d fn=%v, want id=2 name=b", id, fn.Name)
	}
}

func TestFunctionValueRoundTrips(t *testing.T) {
	m := Load([]*bytecode.Function{trivialFunction("ctor")}, nil)
	v, err := m.FunctionValue("ctor")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Tag() != value.TagFunction || v.FunctionID() != 1 {
		t.Fatalf("got %v, want function id 1", v)
	}
	if _, err := m.FunctionValue("missing"); err == nil {
		t.Fatal("expected error for unknown function")
	}
}

func TestRegistryReplaceRecordsHistory(t *testing.T) {
	m := Load([]*bytecode.Function{trivialFunction("greet")}, nil)
	reg := NewRegistry(m)

	v2 := trivialFunction("greet")
	old, err := reg.Replace("greet", v2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !old.HasReplacement() || old.Resolve() != v2 {
		t.Fatal("Replace did not install the hot-swap")
	}

	history := reg.History("greet")
	if len(history) != 1 || history[0] != old {
		t.Fatalf("expected history to contain the superseded version, got %v", history)
	}

	if _, err := reg.Replace("nope", v2); err == nil {
		t.Fatal("expected error replacing an unknown function")
	}
}
