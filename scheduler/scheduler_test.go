package scheduler

import (
	"testing"
	"time"

	"eople/bytecode"
	"eople/builtins"
	"eople/process"
	"eople/value"
)

// returnsConstant builds a zero-argument Function whose body is a single
// ReturnValue(0) reading a constant folded into slot 0, used throughout
// these tests as the simplest possible scheduled call.
func returnsConstant(name string, v value.Value) *bytecode.Function {
	layout := bytecode.Layout{
		ParametersStart:    0,
		ConstantsStart:     0,
		LocalsStart:        1,
		TempStart:          1,
		TempEnd:            2,
		StorageRequirement: 2,
	}
	code := []bytecode.Instruction{
		{Op: bytecode.OpReturnValue, A: 0},
	}
	return bytecode.New(name, code, []value.Value{v}, layout, nil, bytecode.Flags{})
}

func newTestScheduler() (*Scheduler, map[int64]*bytecode.Function, *bytecode.Function) {
	fn := returnsConstant("answer", value.Int(42))
	functions := map[int64]*bytecode.Function{1: fn}
	s := New(builtins.NewRegistry(), functions, 2, 2)
	return s, functions, fn
}

func TestSchedulerDeliversMessageAndFulfillsReply(t *testing.T) {
	s, _, fn := newTestScheduler()
	s.Start()
	defer s.Shutdown()

	target := s.Spawn()
	reply := s.NewPromise(target.ID, false)
	s.Submit(process.CallData{Function: fn, Target: target, Reply: reply})

	deadline := time.Now().Add(2 * time.Second)
	for !s.IsReady(reply.ID) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !s.IsReady(reply.ID) {
		t.Fatal("reply promise never became ready")
	}
	if got := s.GetValue(reply.ID); got.AsInt() != 42 {
		t.Fatalf("got %v, want 42", got)
	}
}

func TestSchedulerSpawnAssignsDistinctIDs(t *testing.T) {
	s, _, _ := newTestScheduler()
	a := s.Spawn()
	b := s.Spawn()
	if a.ID == b.ID {
		t.Fatalf("expected distinct ids, got %d twice", a.ID)
	}
	if s.Lookup(a.ID) != a || s.Lookup(b.ID) != b {
		t.Fatal("Lookup did not round-trip spawned processes")
	}
}

func TestSchedulerExecuteFunctionSynchronous(t *testing.T) {
	s, _, fn := newTestScheduler()
	target := s.Spawn()
	got, err := s.ExecuteFunction(process.CallData{Function: fn, Target: target})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AsInt() != 42 {
		t.Fatalf("got %v, want 42", got)
	}
}

func TestSchedulerShutdownIsIdempotentAndReturns(t *testing.T) {
	s, _, _ := newTestScheduler()
	s.Start()
	done := make(chan error, 1)
	go func() {
		if err := s.Shutdown(); err != nil {
			done <- err
			return
		}
		done <- s.Shutdown()
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected shutdown error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not return")
	}
}
