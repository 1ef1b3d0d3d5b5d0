package errors

import "testing"

func TestRuntimeErrorMessage(t *testing.T) {
	err := New(IndexOutOfBounds, 12)
	if err.Kind != IndexOutOfBounds {
		t.Fatalf("unexpected kind: %v", err.Kind)
	}
	if got := err.Error(); got == "" {
		t.Fatal("expected non-empty error string")
	}
}

func TestFatalKinds(t *testing.T) {
	if !StackAllocationFailed.Fatal() {
		t.Error("StackAllocationFailed must be fatal")
	}
	if !TypeMismatch.Fatal() {
		t.Error("TypeMismatch at type-graph construction must be fatal")
	}
	if IndexOutOfBounds.Fatal() {
		t.Error("IndexOutOfBounds must be recoverable, not fatal")
	}
	if KeyNotFound.Fatal() {
		t.Error("KeyNotFound must be recoverable, not fatal")
	}
	if UndeliverableMessage.Fatal() {
		t.Error("UndeliverableMessage is reported, not fatal")
	}
}
