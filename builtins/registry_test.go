package builtins

import (
	"bytes"
	"testing"

	"eople/bytecode"
	"eople/process"
	"eople/promise"
	"eople/value"
)

type fakeDispatcher struct {
	table *promise.Table
}

func newFakeDispatcher() *fakeDispatcher { return &fakeDispatcher{table: promise.NewTable()} }

func (f *fakeDispatcher) Enqueue(process.CallData)                       {}
func (f *fakeDispatcher) Spawn() *process.Process                        { return process.New(2) }
func (f *fakeDispatcher) Lookup(int64) *process.Process                  { return nil }
func (f *fakeDispatcher) NewPromise(owner int64, timer bool) *promise.Promise {
	if timer {
		return f.table.NewTimer(owner)
	}
	return f.table.New(owner)
}
func (f *fakeDispatcher) IsReady(id int64) bool          { return f.table.IsReady(id) }
func (f *fakeDispatcher) GetValue(id int64) value.Value  { return f.table.GetValue(id) }

func testContext(t *testing.T, a, b int16, out *bytes.Buffer) (*Context, *process.Process) {
	t.Helper()
	p := process.New(1)
	fn := bytecode.New("f", nil, nil, bytecode.Layout{
		ParametersStart: 0, ConstantsStart: 4, LocalsStart: 4, TempStart: 4, TempEnd: 8, StorageRequirement: 8,
	}, nil, bytecode.Flags{})
	p.Stack.SetupFrame(fn)
	return &Context{
		Proc:       p,
		Stack:      p.Stack,
		Instr:      bytecode.Instruction{A: a, B: b},
		Dispatcher: newFakeDispatcher(),
		Out:        out,
	}, p
}

func TestPrintScalarWritesAndReturnsValue(t *testing.T) {
	var out bytes.Buffer
	ctx, p := testContext(t, 0, 0, &out)
	p.Stack.Set(p.Stack.Base, value.Int(42))
	if !printScalar(ctx) {
		t.Fatal("printScalar must return true")
	}
	if out.String() != "42\n" {
		t.Fatalf("unexpected output: %q", out.String())
	}
	if got := p.Stack.Get(p.Stack.CCallReturnSlot()); got.AsInt() != 42 {
		t.Fatalf("expected return slot to echo printed value, got %v", got)
	}
}

func TestArrayPushSizePopClear(t *testing.T) {
	var out bytes.Buffer
	ctx, p := testContext(t, 0, 1, &out)
	arr := value.Array(nil)
	p.Stack.Set(p.Stack.Base, arr)
	p.Stack.Set(p.Stack.Base+1, value.Int(7))

	arrayPush(ctx)
	if arr.Len() != 1 {
		t.Fatalf("expected array length 1 after push, got %d", arr.Len())
	}
	arraySize(ctx)
	if p.Stack.Get(p.Stack.CCallReturnSlot()).AsInt() != 1 {
		t.Fatal("array_size should report 1")
	}
	arrayPop(ctx)
	if got := p.Stack.Get(p.Stack.CCallReturnSlot()); got.AsInt() != 7 {
		t.Fatalf("expected popped value 7, got %v", got)
	}
	if arr.Len() != 0 {
		t.Fatal("array should be empty after pop")
	}

	arrayPush(ctx)
	arrayClear(ctx)
	if arr.Len() != 0 {
		t.Fatalf("array should be empty after clear, got length %d", arr.Len())
	}
}

func TestIsReadyAndGetValueRouteThroughDispatcher(t *testing.T) {
	var out bytes.Buffer
	ctx, p := testContext(t, 0, 0, &out)
	pr := ctx.Dispatcher.NewPromise(p.ID, false)
	p.Stack.Set(p.Stack.Base, value.Promise(pr.ID))

	isReady(ctx)
	if p.Stack.Get(p.Stack.CCallReturnSlot()).AsBool() {
		t.Fatal("unfulfilled promise should not be ready")
	}

	pr.Fulfill(value.Int(5))
	isReady(ctx)
	if !p.Stack.Get(p.Stack.CCallReturnSlot()).AsBool() {
		t.Fatal("fulfilled promise should be ready")
	}
	getValue(ctx)
	if got := p.Stack.Get(p.Stack.CCallReturnSlot()); got.AsInt() != 5 {
		t.Fatalf("expected get_value to yield 5, got %v", got)
	}
}

func TestConversions(t *testing.T) {
	var out bytes.Buffer
	ctx, p := testContext(t, 0, 0, &out)
	p.Stack.Set(p.Stack.Base, value.Int(3))
	intToFloat(ctx)
	if p.Stack.Get(p.Stack.CCallReturnSlot()).AsFloat() != 3.0 {
		t.Fatal("int_to_float should yield 3.0")
	}
	p.Stack.Set(p.Stack.Base, value.Int(12))
	intToString(ctx)
	if p.Stack.Get(p.Stack.CCallReturnSlot()).AsString() != "12" {
		t.Fatal("int_to_string should yield \"12\"")
	}
}
