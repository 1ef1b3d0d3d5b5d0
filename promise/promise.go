// Package promise implements Eople's single-assignment, optionally-chained,
// optionally-timer promise values, grounded on barn/task/task.go's
// suspend/resume/WakeTime/WakeValue pattern (a task's own one-shot wake
// value) generalized into a standalone, reusable handle per spec.md §3/§4.7.
package promise

import (
	"sync"

	"eople/value"
)

// Promise is a pending/ready cell, optionally a timer, optionally chained
// (its value is itself a promise). OwnerID is the process that owns it —
// stored as a bare id rather than a pointer so this package never needs to
// import the process package.
type Promise struct {
	ID      int64
	OwnerID int64
	IsTimer bool

	mu    sync.Mutex
	val   value.Value
	ready bool
}

// New creates a pending, non-timer promise.
func New(id, ownerID int64) *Promise {
	return &Promise{ID: id, OwnerID: ownerID}
}

// NewTimer creates a pending timer promise, created by the after(ms)
// builtin; its IsTimer flag tells the scheduler to flip it ready on
// matured delivery rather than waiting for a producing function to return.
func NewTimer(id, ownerID int64) *Promise {
	return &Promise{ID: id, OwnerID: ownerID, IsTimer: true}
}

// Fulfill sets the promise's value and flips it ready. Monotonic: once
// ready, a promise's ready flag never reverts and its value never changes
// (testable property #6) — a second Fulfill is a no-op.
func (p *Promise) Fulfill(v value.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready {
		return
	}
	p.val = v
	p.ready = true
}

// rawReady/rawValue read this promise's own state without chain-walking.
func (p *Promise) rawReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

func (p *Promise) rawValue() value.Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.val
}
