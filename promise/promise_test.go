package promise

import (
	"testing"

	"eople/value"
)

func TestMonotonicReady(t *testing.T) {
	p := New(1, 10)
	if p.rawReady() {
		t.Fatal("fresh promise must not be ready")
	}
	p.Fulfill(value.Int(5))
	if !p.rawReady() {
		t.Fatal("promise should be ready after Fulfill")
	}
	p.Fulfill(value.Int(999))
	if p.rawValue().AsInt() != 5 {
		t.Fatal("a second Fulfill must not change the value once ready")
	}
}

func TestTableChainResolution(t *testing.T) {
	tbl := NewTable()
	inner := tbl.New(1)
	outer := tbl.New(1)

	inner.Fulfill(value.Int(42))
	outer.Fulfill(value.Promise(inner.ID))

	if !tbl.IsReady(outer.ID) {
		t.Fatal("outer promise chained to a ready inner promise should be ready")
	}
	got := tbl.GetValue(outer.ID)
	if got.Tag() != value.TagInt || got.AsInt() != 42 {
		t.Fatalf("chained get_value should yield the inner integer, not a promise: got %v", got)
	}
}

func TestChainNotReadyUntilInnerFulfilled(t *testing.T) {
	tbl := NewTable()
	inner := tbl.New(1)
	outer := tbl.New(1)
	outer.Fulfill(value.Promise(inner.ID))

	if tbl.IsReady(outer.ID) {
		t.Fatal("chain should not be ready while the inner promise is unfulfilled")
	}

	inner.Fulfill(value.Int(7))
	if !tbl.IsReady(outer.ID) {
		t.Fatal("chain should become ready once the inner promise is fulfilled")
	}
}

func TestTimerPromise(t *testing.T) {
	tbl := NewTable()
	p := tbl.NewTimer(3)
	if !p.IsTimer {
		t.Fatal("expected timer flag set")
	}
	if tbl.IsReady(p.ID) {
		t.Fatal("timer promise should start pending")
	}
	p.Fulfill(value.Nil())
	if !tbl.IsReady(p.ID) {
		t.Fatal("matured timer delivery should flip ready even with a nil payload signal")
	}
}
