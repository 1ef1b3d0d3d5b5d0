// Package process implements the actor-style Process: a private stack, a
// pair of pending when/whenever vectors, and a try-lock, grounded on
// barn/task/task.go's Task (a single in-flight call's id/verb/this/player
// state bundle) generalized per spec.md §3/§4 into a long-lived owner of a
// ProcessStack that outlives any single call.
package process

import (
	"sync/atomic"

	"github.com/google/uuid"

	"eople/bytecode"
	"eople/procstack"
)

// Kind distinguishes a one-shot when block from a repeating whenever block.
type Kind uint8

const (
	KindWhen Kind = iota
	KindWhenever
)

// PendingBlock is a registered when/whenever block awaiting re-evaluation at
// the next message boundary, grounded on spec.md §4.6's WhenRegister/
// WheneverRegister contract: a closure-evaluation function plus the
// enclosing scope it closed over at registration time.
type PendingBlock struct {
	Kind  Kind
	Eval  *bytecode.Function
	State procstack.ClosureState
}

// Process is a long-lived actor: a stable identity, a private stack, and
// the two pending-block vectors When/Whenever re-evaluate against after
// every delivered message. Diag is a human-readable identity for logs and
// scenario output; it plays no role in scheduling, which addresses
// processes purely by ID.
type Process struct {
	ID   int64
	Diag uuid.UUID

	Stack *procstack.ProcessStack

	When     []PendingBlock
	Whenever []PendingBlock

	locked int32 // try-lock state: 0 free, 1 held (spec.md §4.5)
}

// New allocates a fresh process with an empty stack sized for typical
// frame depth; the scheduler assigns id.
func New(id int64) *Process {
	return &Process{
		ID:    id,
		Diag:  uuid.New(),
		Stack: procstack.New(256),
	}
}

// TryLock attempts to acquire the process's exclusive lock with the same
// compare-and-swap try-lock the scheduler's queues use: the first
// caller to transition the counter 0->1 holds it, everyone else backs off.
func (p *Process) TryLock() bool {
	return atomic.CompareAndSwapInt32(&p.locked, 0, 1)
}

// Unlock releases the process's exclusive lock.
func (p *Process) Unlock() {
	atomic.StoreInt32(&p.locked, 0)
}

// RegisterWhen appends a one-shot pending block, capturing eval's closure
// state from the currently active frame.
func (p *Process) RegisterWhen(eval *bytecode.Function) {
	p.When = append(p.When, PendingBlock{
		Kind:  KindWhen,
		Eval:  eval,
		State: p.Stack.CaptureClosure(eval),
	})
}

// RegisterWhenever appends a repeating pending block, capturing eval's
// closure state from the currently active frame.
func (p *Process) RegisterWhenever(eval *bytecode.Function) {
	p.Whenever = append(p.Whenever, PendingBlock{
		Kind:  KindWhenever,
		Eval:  eval,
		State: p.Stack.CaptureClosure(eval),
	})
}

// RemoveWhen drops the pending when block at index i — called once its
// predicate has fired (testable property #7: a fired when is never
// re-evaluated).
func (p *Process) RemoveWhen(i int) {
	p.When = append(p.When[:i], p.When[i+1:]...)
}

// RemoveWhenever drops the pending whenever block at index i — called when
// a Return inside its body has run (testable property #8).
func (p *Process) RemoveWhenever(i int) {
	p.Whenever = append(p.Whenever[:i], p.Whenever[i+1:]...)
}

// RebaseClosures re-slices every pending block's already-captured
// ClosureState from oldFn's layout to newFn's, after an
// incremental_stack_shift has moved the underlying frame's locals, per
// spec.md §4.8 and the Open Question decision recorded in DESIGN.md. A
// pending block belongs to whatever frame it closed over at registration
// time, which the process may long since have returned from, so this
// re-slices the existing snapshot in place (procstack.RebaseClosureState)
// rather than re-capturing from wherever the live stack currently sits.
func (p *Process) RebaseClosures(oldFn, newFn *bytecode.Function) {
	rebase := func(blocks []PendingBlock) {
		for i := range blocks {
			if blocks[i].Eval == oldFn || blocks[i].Eval.Resolve() == newFn {
				blocks[i].State = p.Stack.RebaseClosureState(oldFn, newFn, blocks[i].State)
			}
		}
	}
	rebase(p.When)
	rebase(p.Whenever)
}
