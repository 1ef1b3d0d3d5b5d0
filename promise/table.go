package promise

import (
	"sync"
	"sync/atomic"

	"eople/value"
)

// Table owns every live Promise and resolves chains by ID, grounded on
// barn/task/manager.go's Manager (a mutex-guarded map keyed by an
// atomically-allocated id). Unlike barn's package-level singleton
// Manager, a Table is instance-owned by the scheduler, per spec.md
// Design Notes' preference for explicit state over global mutable state.
type Table struct {
	mu      sync.RWMutex
	next    int64
	promises map[int64]*Promise
}

func NewTable() *Table {
	return &Table{promises: make(map[int64]*Promise)}
}

// New allocates a fresh non-timer promise owned by ownerID and registers
// it.
func (t *Table) New(ownerID int64) *Promise {
	id := atomic.AddInt64(&t.next, 1)
	p := New(id, ownerID)
	t.mu.Lock()
	t.promises[id] = p
	t.mu.Unlock()
	return p
}

// NewTimer allocates a fresh timer promise owned by ownerID and registers
// it.
func (t *Table) NewTimer(ownerID int64) *Promise {
	id := atomic.AddInt64(&t.next, 1)
	p := NewTimer(id, ownerID)
	t.mu.Lock()
	t.promises[id] = p
	t.mu.Unlock()
	return p
}

// Get looks a promise up by id.
func (t *Table) Get(id int64) *Promise {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.promises[id]
}

// IsReady walks the chain starting at id: while the current promise's
// value is itself a promise, descend. Ready iff every link along the
// chain is ready. spec.md §9 flags that the original implementation's
// get_value sometimes observed an intermediate nil payload on a
// supposedly-ready link; here that race cannot occur because Fulfill sets
// value and ready together under a single lock, so the ready flag alone
// is authoritative and a final nil payload (e.g. a timer's wake with no
// result) is a legitimate ready value, not a signal to keep waiting.
func (t *Table) IsReady(id int64) bool {
	p := t.Get(id)
	for {
		if p == nil {
			return false
		}
		if !p.rawReady() {
			return false
		}
		v := p.rawValue()
		if v.Tag() != value.TagPromise {
			return true
		}
		p = t.Get(v.PromiseID())
	}
}

// GetValue walks the chain starting at id and deep-copies the final
// payload to preserve single-writer semantics, per spec.md §4.7.
func (t *Table) GetValue(id int64) value.Value {
	p := t.Get(id)
	for {
		if p == nil {
			return value.Nil()
		}
		v := p.rawValue()
		if v.IsNil() || v.Tag() != value.TagPromise {
			return v.Clone()
		}
		p = t.Get(v.PromiseID())
	}
}
