package process

import (
	"time"

	"eople/bytecode"
	"eople/promise"
	"eople/value"
)

// CallData is the sole currency between callers and the scheduler, grounded
// on barn/server/scheduler.go's queued-task record and generalized per
// spec.md §3/§4.5. Function is nil for a timer wake-up message: processing
// it is a no-op beyond when/whenever re-evaluation. Args ownership transfers
// to the receiving process, which copies into its own stack and never
// retains the slice.
type CallData struct {
	Function    *bytecode.Function
	Target      *Process
	Args        []value.Value
	Reply       *promise.Promise
	EarliestRun time.Time
}

// Dispatcher is the subset of scheduler behavior a process or instruction
// handler needs to reach: enqueueing a call, spawning a new process, and
// minting a promise. Defined here rather than imported from a scheduler
// package so process has no dependency on scheduler, keeping the package
// graph acyclic (process sits below scheduler, not beside it).
type Dispatcher interface {
	Enqueue(CallData)
	Spawn() *Process
	Lookup(id int64) *Process
	NewPromise(ownerID int64, isTimer bool) *promise.Promise
	IsReady(promiseID int64) bool
	GetValue(promiseID int64) value.Value
}
