package process

import (
	"testing"

	"eople/bytecode"
	"eople/value"
)

func evalFn(tempEnd int) *bytecode.Function {
	return bytecode.New("evalblock", nil, nil, bytecode.Layout{
		ParametersStart:    0,
		ConstantsStart:     0,
		LocalsStart:        0,
		TempStart:          0,
		TempEnd:            tempEnd,
		StorageRequirement: tempEnd,
	}, nil, bytecode.Flags{IsWhenEval: true})
}

func TestTryLockExclusive(t *testing.T) {
	p := New(1)
	if !p.TryLock() {
		t.Fatal("first try-lock should succeed")
	}
	if p.TryLock() {
		t.Fatal("second try-lock should fail while held")
	}
	p.Unlock()
	if !p.TryLock() {
		t.Fatal("try-lock should succeed again after unlock")
	}
}

func TestRegisterAndRemoveWhen(t *testing.T) {
	p := New(1)
	f := evalFn(4)
	p.Stack.SetupFrame(f)
	p.RegisterWhen(f)
	if len(p.When) != 1 {
		t.Fatalf("expected 1 pending when, got %d", len(p.When))
	}
	p.RemoveWhen(0)
	if len(p.When) != 0 {
		t.Fatalf("expected when removed, got %d remaining", len(p.When))
	}
}

func TestRegisterAndRemoveWhenever(t *testing.T) {
	p := New(1)
	f := evalFn(4)
	p.Stack.SetupFrame(f)
	p.RegisterWhenever(f)
	if len(p.Whenever) != 1 {
		t.Fatalf("expected 1 pending whenever, got %d", len(p.Whenever))
	}
	// Registration alone never removes a whenever; only RemoveWhenever does.
	if len(p.Whenever) != 1 {
		t.Fatal("whenever should remain pending until its body returns")
	}
	p.RemoveWhenever(0)
	if len(p.Whenever) != 0 {
		t.Fatal("expected whenever removed after simulated Return")
	}
}

func TestRebaseClosuresAfterHotSwap(t *testing.T) {
	p := New(1)

	// An outer frame stands in for the process's mailbox-loop caller; the
	// when block is registered one frame deeper, so its captured base sits
	// away from 0.
	outer := evalFn(2)
	p.Stack.SetupFrame(outer)

	old := bytecode.New("evalblock", nil, nil, bytecode.Layout{
		ParametersStart: 0, ConstantsStart: 1, LocalsStart: 3, TempStart: 4, TempEnd: 4, StorageRequirement: 4,
	}, nil, bytecode.Flags{IsWhenEval: true})
	p.Stack.SetupFrame(old)
	innerBase := p.Stack.Base
	p.Stack.Set(innerBase+0, value.Int(9))
	p.Stack.Set(innerBase+1, value.Int(11))
	p.Stack.Set(innerBase+2, value.Int(22))
	p.Stack.Set(innerBase+3, value.Int(33))
	p.RegisterWhen(old)

	// Return all the way back to the mailbox loop: the live stack's Base
	// moves away from the block's BaseAtCapture, the way it does once the
	// registering call actually finishes.
	p.Stack.PopFrame()
	p.Stack.PopFrame()
	if p.When[0].State.BaseAtCapture == p.Stack.Base {
		t.Fatal("test setup invalid: capture base should differ from the current live base")
	}

	grown := bytecode.New("evalblock",
		nil,
		[]value.Value{value.Nil(), value.Nil(), value.Int(99)},
		bytecode.Layout{
			ParametersStart: 0, ConstantsStart: 1, LocalsStart: 4, TempStart: 5, TempEnd: 5, StorageRequirement: 5,
		}, nil, bytecode.Flags{IsWhenEval: true})
	old.SetReplacement(grown)

	wantBase := p.When[0].State.BaseAtCapture
	p.RebaseClosures(old, grown)

	if p.When[0].State.BaseAtCapture != wantBase {
		t.Fatalf("rebase must preserve BaseAtCapture, got %d want %d",
			p.When[0].State.BaseAtCapture, wantBase)
	}
	slice := p.When[0].State.Slice
	if slice[0].AsInt() != 9 {
		t.Fatalf("captured parameter slot should survive rebase unchanged, got %v", slice[0])
	}
	if slice[1].AsInt() != 11 || slice[2].AsInt() != 22 {
		t.Fatalf("originally captured constants should survive rebase at their offsets, got %v %v", slice[1], slice[2])
	}
	if slice[3].AsInt() != 99 {
		t.Fatalf("newly added constant should be filled in from the replacement's constant pool, got %v", slice[3])
	}
	if slice[4].AsInt() != 33 {
		t.Fatalf("local should be relocated to its new offset while keeping its captured value, got %v", slice[4])
	}
}
