package vm

import (
	"bytes"
	"testing"

	"eople/builtins"
	"eople/bytecode"
	"eople/errors"
	"eople/process"
	"eople/promise"
	"eople/value"
)

// fakeDispatcher is a minimal in-process stand-in for scheduler.Scheduler,
// enough to exercise ProcessMessage/SpawnProcess/builtin handlers without
// importing the scheduler package (which itself imports vm).
type fakeDispatcher struct {
	vm        *VM
	processes map[int64]*process.Process
	nextProc  int64
	promises  *promise.Table
	enqueued  []process.CallData
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		processes: make(map[int64]*process.Process),
		promises:  promise.NewTable(),
	}
}

func (d *fakeDispatcher) Enqueue(cd process.CallData) { d.enqueued = append(d.enqueued, cd) }

func (d *fakeDispatcher) Spawn() *process.Process {
	d.nextProc++
	p := process.New(d.nextProc)
	d.processes[p.ID] = p
	return p
}

func (d *fakeDispatcher) Lookup(id int64) *process.Process { return d.processes[id] }

func (d *fakeDispatcher) NewPromise(ownerID int64, isTimer bool) *promise.Promise {
	if isTimer {
		return d.promises.NewTimer(ownerID)
	}
	return d.promises.New(ownerID)
}

func (d *fakeDispatcher) IsReady(promiseID int64) bool { return d.promises.IsReady(promiseID) }

func (d *fakeDispatcher) GetValue(promiseID int64) value.Value { return d.promises.GetValue(promiseID) }

func newVM(functions map[int64]*bytecode.Function) *VM {
	return New(builtins.NewRegistry(), functions)
}

func simpleLayout(constantsStart, localsStart, tempStart, tempEnd int) bytecode.Layout {
	return bytecode.Layout{
		ParametersStart: 0, ConstantsStart: constantsStart, LocalsStart: localsStart,
		TempStart: tempStart, TempEnd: tempEnd, StorageRequirement: tempEnd,
	}
}

func TestCallReturnsConstant(t *testing.T) {
	layout := simpleLayout(1, 2, 2, 2)
	fn := bytecode.New("const42", []bytecode.Instruction{
		{Op: bytecode.OpReturnValue, A: 1},
	}, []value.Value{value.Int(42)}, layout, nil, bytecode.Flags{})

	vm := newVM(map[int64]*bytecode.Function{1: fn})
	proc := process.New(1)

	got, err := vm.Call(proc, fn, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AsInt() != 42 {
		t.Fatalf("got %v, want 42", got)
	}
}

func TestForILoopSum(t *testing.T) {
	// sum = 0; for i = 1 to 11 step 1: sum = sum + i end; return sum
	layout := simpleLayout(1, 4, 6, 6)
	fn := bytecode.New("sum_loop", []bytecode.Instruction{
		{Op: bytecode.OpStore, A: 4, B: 1},
		{Op: bytecode.OpStore, A: 5, B: 2},
		{Op: bytecode.OpForI, A: 5, B: 3, C: 2, D: 1},
		{Op: bytecode.OpAddI, A: 4, B: 4, C: 5},
		{Op: bytecode.OpReturnValue, A: 4},
	}, []value.Value{value.Int(0), value.Int(1), value.Int(11)}, layout, nil, bytecode.Flags{})

	vm := newVM(map[int64]*bytecode.Function{1: fn})
	proc := process.New(1)

	got, err := vm.Call(proc, fn, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AsInt() != 55 {
		t.Fatalf("got %v, want 55", got)
	}
}

func TestForIReturnInsideBodyStopsDispatch(t *testing.T) {
	// i = 0; for i < 10 (step slot holds 0): return 7 end
	layout := simpleLayout(1, 4, 6, 6)
	fn := bytecode.New("early_return", []bytecode.Instruction{
		{Op: bytecode.OpStore, A: 4, B: 1}, // i = 0
		{Op: bytecode.OpForI, A: 4, B: 2, C: 1, D: 1},
		{Op: bytecode.OpReturnValue, A: 3},
	}, []value.Value{value.Int(0), value.Int(10), value.Int(7)}, layout, nil, bytecode.Flags{})

	vm := newVM(map[int64]*bytecode.Function{1: fn})
	proc := process.New(1)

	got, err := vm.Call(proc, fn, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AsInt() != 7 {
		t.Fatalf("a Return inside a for body should terminate the whole call, got %v want 7", got)
	}
}

func TestConcatDestinationIsOperandC(t *testing.T) {
	layout := simpleLayout(1, 3, 3, 3)
	fn := bytecode.New("greet", []bytecode.Instruction{
		{Op: bytecode.OpConcat, A: 1, B: 2, C: 0},
		{Op: bytecode.OpReturnValue, A: 0},
	}, []value.Value{value.String("hello "), value.String("world")}, layout, nil, bytecode.Flags{})

	vm := newVM(map[int64]*bytecode.Function{1: fn})
	proc := process.New(1)

	got, err := vm.Call(proc, fn, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AsString() != "hello world" {
		t.Fatalf("got %q, want %q", got.AsString(), "hello world")
	}
}

func TestArraySubscriptOutOfBounds(t *testing.T) {
	layout := simpleLayout(1, 3, 3, 3)
	fn := bytecode.New("index_bad", []bytecode.Instruction{
		{Op: bytecode.OpArraySubscript, A: 0, B: 1, C: 2},
		{Op: bytecode.OpReturnValue, A: 0},
	}, []value.Value{value.Array([]value.Value{value.Int(1), value.Int(2)}), value.Int(5)}, layout, nil, bytecode.Flags{})

	vm := newVM(map[int64]*bytecode.Function{1: fn})
	proc := process.New(1)

	_, err := vm.Call(proc, fn, nil)
	if err == nil {
		t.Fatal("expected an out-of-bounds runtime error")
	}
	if err.Kind != errors.IndexOutOfBounds {
		t.Fatalf("got error kind %v, want IndexOutOfBounds", err.Kind)
	}
}

func TestFunctionCallNested(t *testing.T) {
	inner := bytecode.New("inner", []bytecode.Instruction{
		{Op: bytecode.OpReturnValue, A: 1},
	}, []value.Value{value.Int(9)}, simpleLayout(1, 2, 2, 2), nil, bytecode.Flags{})

	outerLayout := simpleLayout(1, 3, 3, 3)
	outer := bytecode.New("outer", []bytecode.Instruction{
		{Op: bytecode.OpFunctionCall, A: 1, B: 1},
		{Op: bytecode.OpReturnValue, A: 3}, // FunctionCall leaves its result at the caller's former top
	}, []value.Value{value.Function(1)}, outerLayout, nil, bytecode.Flags{})

	vm := newVM(map[int64]*bytecode.Function{1: inner, 2: outer})
	proc := process.New(1)

	got, err := vm.Call(proc, outer, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AsInt() != 9 {
		t.Fatalf("got %v, want 9", got)
	}
}

func TestSpawnProcessRunsConstructor(t *testing.T) {
	ctor := bytecode.New("Ctor", []bytecode.Instruction{
		{Op: bytecode.OpReturn},
	}, nil, bytecode.Layout{}, nil, bytecode.Flags{IsConstructor: true})

	layout := simpleLayout(1, 3, 3, 3)
	spawner := bytecode.New("spawner", []bytecode.Instruction{
		{Op: bytecode.OpSpawnProcess, A: 2, B: 1, C: 1},
		{Op: bytecode.OpReturnValue, A: 2},
	}, []value.Value{value.Function(1)}, layout, nil, bytecode.Flags{})

	vm := newVM(map[int64]*bytecode.Function{1: ctor, 2: spawner})
	d := newFakeDispatcher()
	vm.SetDispatcher(d)
	proc := process.New(1)

	got, err := vm.Call(proc, spawner, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ProcessID() != 1 {
		t.Fatalf("got process id %d, want 1 (the first spawned process)", got.ProcessID())
	}
	if len(d.processes) != 1 {
		t.Fatalf("expected exactly one process spawned, got %d", len(d.processes))
	}
}

func TestProcessMessageMintsReplyForNonNilReturn(t *testing.T) {
	callee := bytecode.New("callee", []bytecode.Instruction{
		{Op: bytecode.OpReturnValue, A: 1},
	}, []value.Value{value.Int(3)}, simpleLayout(1, 2, 2, 2), nil, bytecode.Flags{})

	layout := simpleLayout(1, 3, 3, 3)
	sender := bytecode.New("sender", []bytecode.Instruction{
		{Op: bytecode.OpProcessMessage, A: 1, B: 2, C: 1},
		{Op: bytecode.OpReturnValue, A: 3},
	}, []value.Value{value.Process(7), value.Function(1)}, layout, nil, bytecode.Flags{})

	vm := newVM(map[int64]*bytecode.Function{1: callee, 2: sender})
	d := newFakeDispatcher()
	vm.SetDispatcher(d)
	target := process.New(7)
	d.processes[7] = target

	proc := process.New(1)
	got, err := vm.Call(proc, sender, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Tag() != value.TagPromise {
		t.Fatalf("expected a promise value, got tag %v", got.Tag())
	}
	if len(d.enqueued) != 1 {
		t.Fatalf("expected exactly one enqueued message, got %d", len(d.enqueued))
	}
	if d.enqueued[0].Target != target {
		t.Fatal("message should target the process named by operand A")
	}
}

func TestCallBuiltinWritesCCallReturnSlot(t *testing.T) {
	reg := builtins.NewRegistry()
	reg.Out = new(bytes.Buffer)
	_, printID, ok := reg.Lookup("print_s")
	if !ok {
		t.Fatal("print_s should be registered")
	}

	layout := simpleLayout(1, 2, 2, 2)
	fn := bytecode.New("printer", []bytecode.Instruction{
		{Op: bytecode.OpCallBuiltin, A: 1, D: int16(printID)},
		{Op: bytecode.OpReturnValue, A: 2},
	}, []value.Value{value.String("hi")}, layout, nil, bytecode.Flags{})

	vm := New(reg, map[int64]*bytecode.Function{1: fn})
	proc := process.New(1)

	got, err := vm.Call(proc, fn, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AsString() != "hi" {
		t.Fatalf("print_s should return its argument, got %v", got)
	}
}

func TestHotSwapAffectsSubsequentCalls(t *testing.T) {
	layout := simpleLayout(1, 2, 2, 2)
	v1 := bytecode.New("f", []bytecode.Instruction{{Op: bytecode.OpReturnValue, A: 1}}, []value.Value{value.Int(1)}, layout, nil, bytecode.Flags{})
	v2 := bytecode.New("f", []bytecode.Instruction{{Op: bytecode.OpReturnValue, A: 1}}, []value.Value{value.Int(2)}, layout, nil, bytecode.Flags{})

	vm := newVM(map[int64]*bytecode.Function{1: v1})
	proc := process.New(1)

	first, err := vm.Call(proc, v1, nil)
	if err != nil || first.AsInt() != 1 {
		t.Fatalf("first call: got %v, err %v", first, err)
	}

	v1.SetReplacement(v2)

	second, err := vm.Call(proc, v1, nil)
	if err != nil || second.AsInt() != 2 {
		t.Fatalf("second call should resolve to the hot-swapped version: got %v, err %v", second, err)
	}
}
