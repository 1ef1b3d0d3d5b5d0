package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	metrics "github.com/rcrowley/go-metrics"
	"golang.org/x/sync/errgroup"

	"eople/bytecode"
	"eople/builtins"
	"eople/errors"
	"eople/process"
	"eople/promise"
	"eople/runtimelog"
	"eople/value"
	"eople/vm"
)

// maxDrain bounds how many consecutive matured messages for one process a
// worker buffers in a single pass, per spec.md §4.3 step 2.
const maxDrain = 16

// backoffSleep is the micro-sleep a worker takes between failed try-lock
// sweeps before retrying, per spec.md §4.3's "spin with bounded retries,
// then micro-sleep 500us. No fairness."
const backoffSleep = 500 * time.Microsecond

// retriesBeforeIdle is the number of full queue sweeps a worker makes
// without finding work before it parks, per spec.md §4.3 step 5.
const retriesBeforeIdle = 8

// Scheduler is the N-worker, M-mailbox-queue runtime core, grounded on
// barn/server/scheduler.go's Scheduler (one goroutine draining a
// container/heap-ordered TaskQueue against a shared *vm.VM) generalized per
// spec.md §4.3 into many worker goroutines, each with cooperative affinity
// to one queue but stealing round-robin across all of them, coordinating
// through per-queue and per-process try-locks rather than a single mutex.
//
// message_count and idle_count are the two global atomics spec.md §4.3
// names; DESIGN.md records the Open Question decision to keep message_count
// as a single atomic counter per scheduler (not per queue) since the drain
// step already holds the only queue lock that can race it.
type Scheduler struct {
	core      *vm.VM
	functions map[int64]*bytecode.Function
	queues    []*queue

	mu        sync.RWMutex
	processes map[int64]*process.Process
	nextProc  int64

	promises *promise.Table

	messageCount int64
	idleCount    int64
	readyToExit  int32
	workerCount  int64

	idleMu   sync.Mutex
	idleCond *sync.Cond

	group *errgroup.Group

	registry     metrics.Registry
	messagesSent metrics.Counter
	messagesDone metrics.Counter
	queueDepths  []metrics.Gauge
}

// New builds a scheduler with workerCount workers over queueCount mailbox
// queues, wiring a fresh *vm.VM to reg/functions and closing the
// scheduler<->VM construction cycle via vm.SetDispatcher. queueCount is
// taken as an explicit parameter rather than read from runtime.NumCPU so
// tests and the embedder's -queues flag can pin a deterministic topology,
// per spec.md §4.3's "queue_count = core_count; one mailbox queue per core."
func New(reg *builtins.Registry, functions map[int64]*bytecode.Function, workerCount, queueCount int) *Scheduler {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueCount < 1 {
		queueCount = 1
	}

	s := &Scheduler{
		functions:   functions,
		processes:   make(map[int64]*process.Process),
		promises:    promise.NewTable(),
		workerCount: int64(workerCount),
		registry:    metrics.NewRegistry(),
	}
	s.idleCond = sync.NewCond(&s.idleMu)

	s.messagesSent = metrics.NewCounter()
	s.messagesDone = metrics.NewCounter()
	s.registry.Register("eople.messages.sent", s.messagesSent)
	s.registry.Register("eople.messages.done", s.messagesDone)

	s.queues = make([]*queue, queueCount)
	for i := range s.queues {
		s.queues[i] = newQueue()
		g := metrics.NewGauge()
		s.registry.Register("eople.queue.depth."+itoa(i), g)
		s.queueDepths = append(s.queueDepths, g)
	}

	s.core = vm.New(reg, functions)
	s.core.SetDispatcher(s)
	return s
}

// itoa avoids importing strconv solely for metric label suffixes used only
// at registration time.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// Metrics exposes the scheduler's go-metrics registry, e.g. for a hosting
// process to periodically log.WriteJSONOnce against.
func (s *Scheduler) Metrics() metrics.Registry {
	return s.registry
}

// Start launches workerCount worker goroutines under an errgroup, per
// SPEC_FULL.md's NEW "Worker lifecycle" section: one errgroup.Group.Go call
// per worker in place of the teacher's raw go statements, so Shutdown can
// Wait for every worker to return. Workers always return nil, so Wait
// reports no error; a fatal runtime error sets readyToExit instead.
func (s *Scheduler) Start() {
	var g errgroup.Group
	s.group = &g
	for w := 0; w < int(s.workerCount); w++ {
		worker := w
		g.Go(func() error {
			s.runWorker(worker)
			return nil
		})
	}
}

// Shutdown requests every worker park and exit, then waits for them. Per
// spec.md §4.3 step 5: a parking worker that finds idle_count==workerCount
// and readyToExit set broadcasts and returns; Shutdown sets readyToExit and
// wakes every waiter so that handoff begins immediately rather than waiting
// for the next idle timeout.
func (s *Scheduler) Shutdown() error {
	atomic.StoreInt32(&s.readyToExit, 1)
	s.idleMu.Lock()
	s.idleCond.Broadcast()
	s.idleMu.Unlock()
	if s.group == nil {
		return nil
	}
	return s.group.Wait()
}

// Spawn allocates a fresh process under the next sequential id and registers
// it in the scheduler's process table, implementing process.Dispatcher.
func (s *Scheduler) Spawn() *process.Process {
	id := atomic.AddInt64(&s.nextProc, 1)
	p := process.New(id)
	s.mu.Lock()
	s.processes[id] = p
	s.mu.Unlock()
	runtimelog.Spawn(id, "")
	return p
}

// Lookup resolves a process id to its live *process.Process, or nil if the
// id is unknown (e.g. a stale handle after shutdown).
func (s *Scheduler) Lookup(id int64) *process.Process {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processes[id]
}

// NewPromise mints a promise owned by ownerID, timer or reply, implementing
// process.Dispatcher.
func (s *Scheduler) NewPromise(ownerID int64, isTimer bool) *promise.Promise {
	if isTimer {
		return s.promises.NewTimer(ownerID)
	}
	return s.promises.New(ownerID)
}

// IsReady and GetValue delegate to the scheduler's promise table, completing
// process.Dispatcher.
func (s *Scheduler) IsReady(promiseID int64) bool       { return s.promises.IsReady(promiseID) }
func (s *Scheduler) GetValue(promiseID int64) value.Value { return s.promises.GetValue(promiseID) }

// Enqueue implements process.Dispatcher's send_message(CallData): selects
// the mailbox queue by process_id mod queue_count, try-locks with bounded
// spin and a micro-sleep backoff, pushes, releases, and wakes one idle
// waiter if there is now more outstanding work than awake workers, per
// spec.md §4.3.
func (s *Scheduler) Enqueue(cd process.CallData) {
	if cd.Target == nil {
		return
	}
	q := s.queues[int(cd.Target.ID)%len(s.queues)]
	for !q.tryLock() {
		time.Sleep(backoffSleep)
	}
	q.push(cd)
	q.unlock()

	functionName := "<wake>"
	if cd.Function != nil {
		functionName = cd.Function.Name
	}
	runtimelog.Send(functionName, cd.Target.ID)

	s.messagesSent.Inc(1)
	n := atomic.AddInt64(&s.messageCount, 1)

	awake := s.workerCount - atomic.LoadInt64(&s.idleCount)
	if n > awake {
		s.idleMu.Lock()
		s.idleCond.Signal()
		s.idleMu.Unlock()
	}
}

// Submit is the embedder-facing entry point for injecting the first
// CallData into an otherwise-idle scheduler (spawning the root process and
// sending it its first message), exposed distinctly from Enqueue so
// cmd/eoplevm's flag-driven driver never needs to reach into internals.
func (s *Scheduler) Submit(cd process.CallData) {
	s.Enqueue(cd)
}

// runWorker is one worker's main loop, implementing spec.md §4.3's five
// numbered steps verbatim.
func (s *Scheduler) runWorker(w int) {
	retries := 0
	for {
		if atomic.LoadInt32(&s.readyToExit) == 1 && s.allIdle() {
			return
		}

		cd, target, q, found := s.tryDrainOne(w)
		if !found {
			retries++
			if retries < retriesBeforeIdle {
				time.Sleep(backoffSleep)
				continue
			}
			if s.parkIfIdle() {
				return
			}
			retries = 0
			continue
		}
		retries = 0

		batch := q.drain(target.ID, time.Now(), maxDrain)
		batch = append([]process.CallData{cd}, batch...)
		q.unlock()

		// spec.md §4.3 step 3: "-drain_count + 1 on the first drain so idle
		// accounting stays tight (the final -1 happens after processing)".
		atomic.AddInt64(&s.messageCount, int64(-len(batch)+1))

		queueIndex := indexOfQueue(s.queues, q)
		runtimelog.Drain(queueIndex, target.ID, len(batch))
		s.queueDepths[queueIndex].Update(int64(q.len()))

		for _, item := range batch {
			s.executeProcessMessage(target, item)
		}

		target.Unlock()
		atomic.AddInt64(&s.messageCount, -1)
	}
}

func indexOfQueue(qs []*queue, target *queue) int {
	for i, q := range qs {
		if q == target {
			return i
		}
	}
	return 0
}

// tryDrainOne implements step 1: scanning queues (j+w) mod queue_count for
// j in [0, queue_count), trying to hold both the queue's lock and the
// target process's lock simultaneously, returning the first message found
// (still queue-locked, for the caller to finish draining) or found=false
// after a full unsuccessful sweep.
func (s *Scheduler) tryDrainOne(w int) (cd process.CallData, target *process.Process, q *queue, found bool) {
	n := len(s.queues)
	for j := 0; j < n; j++ {
		idx := (j + w) % n
		candidate := s.queues[idx]
		if !candidate.tryLock() {
			continue
		}
		targetID, ok := candidate.peekTargetID()
		if !ok {
			candidate.unlock()
			continue
		}
		proc := s.Lookup(targetID)
		if proc == nil || !proc.TryLock() {
			candidate.unlock()
			continue
		}
		drained := candidate.drain(targetID, time.Now(), 1)
		if len(drained) == 0 {
			proc.Unlock()
			candidate.unlock()
			continue
		}
		return drained[0], proc, candidate, true
	}
	return process.CallData{}, nil, nil, false
}

// allIdle reports whether every worker is currently parked, used by a
// waking worker to decide whether shutdown can complete.
func (s *Scheduler) allIdle() bool {
	return atomic.LoadInt64(&s.idleCount) >= s.workerCount
}

// parkIfIdle implements step 5: takes the idle mutex, re-checks
// message_count under the lock to avoid a lost wakeup, and parks on the
// condition variable if no work has appeared. Returns true if the worker
// should exit (shutdown requested and every worker now parked).
func (s *Scheduler) parkIfIdle() bool {
	s.idleMu.Lock()
	defer s.idleMu.Unlock()

	if atomic.LoadInt64(&s.messageCount) >= s.workerCount-atomic.LoadInt64(&s.idleCount) {
		return false
	}

	atomic.AddInt64(&s.idleCount, 1)
	defer atomic.AddInt64(&s.idleCount, -1)

	if atomic.LoadInt32(&s.readyToExit) == 1 && atomic.LoadInt64(&s.idleCount) >= s.workerCount {
		s.idleCond.Broadcast()
		return true
	}

	s.idleCond.Wait()

	if atomic.LoadInt32(&s.readyToExit) == 1 {
		return true
	}
	return false
}

// ExecuteFunction implements spec.md §6's execute_function(CallData): a
// synchronous call on the current (embedder's) goroutine, reusing the
// caller-supplied target process rather than routing through a mailbox
// queue. The target process is locked for the duration exactly as a
// worker-driven message would lock it, so it can never run concurrently
// with a scheduled message to the same process. Used for a REPL's
// immediate-mode expression evaluation and for tests wanting a
// deterministic, non-scheduled call.
func (s *Scheduler) ExecuteFunction(cd process.CallData) (value.Value, *errors.RuntimeError) {
	for !cd.Target.TryLock() {
		time.Sleep(backoffSleep)
	}
	defer cd.Target.Unlock()

	result, err := s.core.Call(cd.Target, cd.Function, cd.Args)
	if err != nil {
		return value.Nil(), err
	}
	if cd.Reply != nil {
		cd.Reply.Fulfill(result)
		runtimelog.PromiseResolved(cd.Reply.ID, cd.Reply.OwnerID)
	}
	if evalErr := s.core.EvaluatePending(cd.Target); evalErr != nil {
		return result, evalErr
	}
	return result, nil
}

// ExecuteFunctionIncremental implements spec.md §6/§4.8's
// execute_function_incremental(CallData): a REPL-path synchronous call that,
// before running, relocates the target process's live locals and appends
// newly added constants via IncrementalStackShift whenever newFn differs
// from oldFn, then rebases every pending when/whenever closure
// the process holds so their captured base offsets and internal regions
// still address the right slots, per spec.md §4.8's closing sentence.
func (s *Scheduler) ExecuteFunctionIncremental(cd process.CallData, oldFn, newFn *bytecode.Function) (value.Value, *errors.RuntimeError) {
	for !cd.Target.TryLock() {
		time.Sleep(backoffSleep)
	}
	defer cd.Target.Unlock()

	if oldFn != nil && newFn != oldFn {
		cd.Target.Stack.IncrementalStackShift(oldFn, newFn)
		cd.Target.RebaseClosures(oldFn, newFn)
	}

	result, err := s.core.Call(cd.Target, newFn, cd.Args)
	if err != nil {
		return value.Nil(), err
	}
	if cd.Reply != nil {
		cd.Reply.Fulfill(result)
		runtimelog.PromiseResolved(cd.Reply.ID, cd.Reply.OwnerID)
	}
	if evalErr := s.core.EvaluatePending(cd.Target); evalErr != nil {
		return result, evalErr
	}
	return result, nil
}

// HotSwap installs repl as oldFn's replacement. Per spec.md §4.6, "updating
// a function via hot-swap replaces the eval function pointer in each
// pending block before its next evaluation" is satisfied lazily:
// evaluateWhen/evaluateWhenever resolve block.Eval through the replacement
// chain immediately before running it, so no pending block needs touching
// here. Only execute_function_incremental's layout-changing path (spec.md
// §4.8) requires re-slicing captured closures, and that already happens in
// ExecuteFunctionIncremental.
func (s *Scheduler) HotSwap(oldFn, repl *bytecode.Function) {
	oldFn.SetReplacement(repl)
	runtimelog.HotSwap(repl.Name)
}

// executeProcessMessage runs one CallData against target: a timer message
// first has its promise flipped ready; a nil Function is then a timer/wake
// no-op beyond that flip; otherwise it calls the function,
// fulfills cd.Reply and enqueues a wake CallData to the reply's owner, and
// always re-evaluates target's pending when/whenever blocks afterward, per
// spec.md §4.2's closing sentence and §4.6.
func (s *Scheduler) executeProcessMessage(target *process.Process, cd process.CallData) {
	if cd.Reply != nil && cd.Reply.IsTimer {
		cd.Reply.Fulfill(value.Nil())
		runtimelog.PromiseResolved(cd.Reply.ID, cd.Reply.OwnerID)
	}

	if cd.Function != nil {
		result, err := s.core.Call(target, cd.Function, cd.Args)
		if err != nil {
			if err.Kind.Fatal() {
				atomic.StoreInt32(&s.readyToExit, 1)
			}
		} else if cd.Reply != nil && !cd.Reply.IsTimer {
			cd.Reply.Fulfill(result)
			runtimelog.PromiseResolved(cd.Reply.ID, cd.Reply.OwnerID)
			s.Enqueue(process.CallData{Function: nil, Target: s.Lookup(cd.Reply.OwnerID)})
		}
	}

	s.messagesDone.Inc(1)

	if err := s.core.EvaluatePending(target); err != nil && err.Kind.Fatal() {
		atomic.StoreInt32(&s.readyToExit, 1)
	}
}
