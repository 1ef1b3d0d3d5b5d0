package scenarios

import (
	"bytes"
	"fmt"
	"time"

	"eople/builtins"
	"eople/bytecode"
	"eople/process"
	"eople/scheduler"
	"eople/value"
)

// pollTimeout bounds how long a builder waits on a promise or pending-block
// drain before giving up, generous enough for scenario C's up-to-500ms
// window with headroom for a loaded test machine.
const pollTimeout = 3 * time.Second
const pollInterval = time.Millisecond

// observation is what a builder reports back to Result for comparison
// against a Scenario's Expectation.
type observation struct {
	Value    value.Value
	HasValue bool
	Stdout   string
	Elapsed  time.Duration
}

// builder assembles and runs one scenario's bytecode against a fresh
// scheduler, returning what it observed or an error if the run itself
// failed (as opposed to producing the wrong result, which Result.Passed
// reports separately).
type builder func() (observation, error)

var builders = map[string]builder{
	"arithmetic_and_loops":     buildArithmeticAndLoops,
	"process_round_trip":       buildProcessRoundTrip,
	"timer":                    buildTimer,
	"when_fires_at_most_once":  buildWhenFiresAtMostOnce,
	"promise_chaining":         buildPromiseChaining,
	"hot_swap":                 buildHotSwap,
}

// Result is one scenario's outcome, grounded on barn/conformance's
// TestResult shape.
type Result struct {
	Name    string
	Passed  bool
	Skipped bool
	Reason  string
	Error   error
}

// Runner executes scenarios, grounded on barn/conformance's Runner.
type Runner struct{}

func NewRunner() *Runner { return &Runner{} }

// Run executes one scenario and checks its observation against its
// expectation.
func (r *Runner) Run(s Scenario) Result {
	build, ok := builders[s.Name]
	if !ok {
		return Result{Name: s.Name, Skipped: true, Reason: fmt.Sprintf("no builder registered for scenario %q", s.Name)}
	}
	obs, err := build()
	if err != nil {
		return Result{Name: s.Name, Error: err}
	}
	if err := checkExpectation(s.Expect, obs); err != nil {
		return Result{Name: s.Name, Error: err}
	}
	return Result{Name: s.Name, Passed: true}
}

// RunAll runs every scenario in ss.
func (r *Runner) RunAll(ss []Scenario) []Result {
	results := make([]Result, 0, len(ss))
	for _, s := range ss {
		results = append(results, r.Run(s))
	}
	return results
}

func checkExpectation(e Expectation, obs observation) error {
	if e.Value != nil {
		want := fmt.Sprintf("%v", e.Value)
		got := fmt.Sprintf("%v", obs.Value)
		if !obs.HasValue || got != want {
			return fmt.Errorf("value: got %q, want %q", got, want)
		}
	}
	if e.Stdout != "" && obs.Stdout != e.Stdout {
		return fmt.Errorf("stdout: got %q, want %q", obs.Stdout, e.Stdout)
	}
	for _, substr := range e.StdoutContains {
		if !bytes.Contains([]byte(obs.Stdout), []byte(substr)) {
			return fmt.Errorf("stdout %q does not contain %q", obs.Stdout, substr)
		}
	}
	if e.MinMillis > 0 && obs.Elapsed < time.Duration(e.MinMillis)*time.Millisecond {
		return fmt.Errorf("elapsed %v is below min %dms", obs.Elapsed, e.MinMillis)
	}
	if e.MaxMillis > 0 && obs.Elapsed > time.Duration(e.MaxMillis)*time.Millisecond {
		return fmt.Errorf("elapsed %v exceeds max %dms", obs.Elapsed, e.MaxMillis)
	}
	return nil
}

func waitUntil(cond func() bool) bool {
	deadline := time.Now().Add(pollTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
	return true
}

// buildArithmeticAndLoops implements scenario A entirely within one
// function's body: no messages, no scheduler workers needed beyond a
// single synchronous ExecuteFunction call.
func buildArithmeticAndLoops() (observation, error) {
	layout := bytecode.Layout{
		ParametersStart: 0, ConstantsStart: 1, LocalsStart: 4, TempStart: 6, TempEnd: 6, StorageRequirement: 6,
	}
	code := []bytecode.Instruction{
		{Op: bytecode.OpStore, A: 4, B: 1},                     // sum = 0
		{Op: bytecode.OpStore, A: 5, B: 2},                     // i = 1
		{Op: bytecode.OpForI, A: 5, B: 3, C: 2, D: 1},          // for i, i<11, step 1
		{Op: bytecode.OpAddI, A: 4, B: 4, C: 5},                // sum = sum + i
		{Op: bytecode.OpReturnValue, A: 4},
	}
	constants := []value.Value{value.Int(0), value.Int(1), value.Int(11)}
	fn := bytecode.New("sum_loop", code, constants, layout, nil, bytecode.Flags{})

	functions := map[int64]*bytecode.Function{1: fn}
	sched := scheduler.New(builtins.NewRegistry(), functions, 2, 2)
	proc := sched.Spawn()

	got, err := sched.ExecuteFunction(process.CallData{Function: fn, Target: proc})
	if err != nil {
		return observation{}, fmt.Errorf("scenario A: runtime error: %v", err)
	}
	return observation{Value: got, HasValue: true}, nil
}

// buildProcessRoundTrip implements scenario B: a say(s) method returning
// s (+) "!", invoked on a spawned process, its promise awaited and the
// result printed.
func buildProcessRoundTrip() (observation, error) {
	sayLayout := bytecode.Layout{
		ParametersStart: 0, ConstantsStart: 1, LocalsStart: 2, TempStart: 2, TempEnd: 2, StorageRequirement: 2,
	}
	sayCode := []bytecode.Instruction{
		{Op: bytecode.OpConcat, A: 0, B: 1, C: 2}, // slot2 = s (+) "!"
		{Op: bytecode.OpReturnValue, A: 2},
	}
	sayFn := bytecode.New("say", sayCode, []value.Value{value.String("!")}, sayLayout, nil, bytecode.Flags{})

	ctorFn := bytecode.New("Echo", []bytecode.Instruction{{Op: bytecode.OpReturn}}, nil, bytecode.Layout{}, nil, bytecode.Flags{IsConstructor: true})

	functions := map[int64]*bytecode.Function{1: ctorFn, 2: sayFn}
	reg := builtins.NewRegistry()
	var out bytes.Buffer
	reg.Out = &out

	sched := scheduler.New(reg, functions, 2, 2)
	echo := sched.Spawn()
	if _, err := sched.ExecuteFunction(process.CallData{Function: ctorFn, Target: echo}); err != nil {
		return observation{}, fmt.Errorf("scenario B: constructor error: %v", err)
	}

	sched.Start()
	defer sched.Shutdown()

	reply := sched.NewPromise(echo.ID, false)
	sched.Submit(process.CallData{Function: sayFn, Target: echo, Args: []value.Value{value.String("hi")}, Reply: reply})

	if !waitUntil(func() bool { return sched.IsReady(reply.ID) }) {
		return observation{}, fmt.Errorf("scenario B: reply promise never became ready")
	}
	got := sched.GetValue(reply.ID)
	fmt.Fprintln(&out, got.String())

	return observation{Value: got, HasValue: true, Stdout: out.String()}, nil
}

// buildTimer implements scenario C: a single whenever block guarding on
// is_ready(after(50)), firing exactly once and removing itself.
func buildTimer() (observation, error) {
	evalLayout := bytecode.Layout{
		ParametersStart: 0, ConstantsStart: 0, LocalsStart: 4, TempStart: 4, TempEnd: 6, StorageRequirement: 6,
	}
	evalCode := []bytecode.Instruction{
		{Op: bytecode.OpWhenever, A: 4, B: 2, C: 1},
		{Op: bytecode.OpCallBuiltin, A: 3, D: 0}, // filled in below with is_ready's id
		{Op: bytecode.OpStore, A: 4, B: 6},
		{Op: bytecode.OpReturn},
	}
	evalFn := bytecode.New("timer_whenever", evalCode, nil, evalLayout, nil, bytecode.Flags{IsWhenEval: true, ReuseContext: true})

	mainLayout := bytecode.Layout{
		ParametersStart: 0, ConstantsStart: 1, LocalsStart: 3, TempStart: 4, TempEnd: 4, StorageRequirement: 4,
	}
	mainCode := []bytecode.Instruction{
		{Op: bytecode.OpCallBuiltin, A: 1, D: 0}, // filled in below with after's id
		{Op: bytecode.OpStore, A: 3, B: 4},
		{Op: bytecode.OpWheneverRegister, A: 2},
		{Op: bytecode.OpReturn},
	}
	mainFn := bytecode.New("timer_main", mainCode, []value.Value{value.Int(50), value.Function(1)}, mainLayout, nil, bytecode.Flags{})

	functions := map[int64]*bytecode.Function{1: evalFn, 2: mainFn}
	reg := builtins.NewRegistry()
	_, afterID, _ := reg.Lookup("after")
	_, isReadyID, _ := reg.Lookup("is_ready")
	mainCode[0].D = int16(afterID)
	evalCode[1].D = int16(isReadyID)

	sched := scheduler.New(reg, functions, 2, 2)
	sched.Start()
	defer sched.Shutdown()

	proc := sched.Spawn()
	start := time.Now()
	sched.Submit(process.CallData{Function: mainFn, Target: proc})

	if !waitUntil(func() bool { return len(proc.Whenever) == 1 }) {
		return observation{}, fmt.Errorf("scenario C: whenever was never registered")
	}
	if !waitUntil(func() bool { return len(proc.Whenever) == 0 }) {
		return observation{}, fmt.Errorf("scenario C: whenever never fired")
	}
	return observation{Elapsed: time.Since(start)}, nil
}

// buildWhenFiresAtMostOnce implements scenario D: two independent one-shot
// when blocks, each guarding its own 10ms timer and printing a single
// letter once fired. Each eval closes over main's frame (ReuseContext),
// so its captured range [0, TempStart) must reach far enough into main's
// slots to see its own promise handle and string constant; eval A and
// eval B therefore carry different TempStart/TempEnd boundaries even
// though they share the same underlying process stack.
func buildWhenFiresAtMostOnce() (observation, error) {
	evalALayout := bytecode.Layout{
		ParametersStart: 0, ConstantsStart: 0, LocalsStart: 7, TempStart: 7, TempEnd: 8, StorageRequirement: 8,
	}
	evalACode := []bytecode.Instruction{
		{Op: bytecode.OpWhen, A: 7, B: 2, C: 1},
		{Op: bytecode.OpCallBuiltin, A: 6, D: 0}, // is_ready(p1@slot6), filled below
		{Op: bytecode.OpStore, A: 7, B: 8},
		{Op: bytecode.OpCallBuiltin, A: 4, D: 0}, // print_s("a"@slot4), filled below
	}
	evalA := bytecode.New("when_a", evalACode, nil, evalALayout, nil, bytecode.Flags{IsWhenEval: true, ReuseContext: true})

	evalBLayout := bytecode.Layout{
		ParametersStart: 0, ConstantsStart: 0, LocalsStart: 8, TempStart: 8, TempEnd: 9, StorageRequirement: 9,
	}
	evalBCode := []bytecode.Instruction{
		{Op: bytecode.OpWhen, A: 8, B: 2, C: 1},
		{Op: bytecode.OpCallBuiltin, A: 7, D: 0}, // is_ready(p2@slot7), filled below
		{Op: bytecode.OpStore, A: 8, B: 9},
		{Op: bytecode.OpCallBuiltin, A: 5, D: 0}, // print_s("b"@slot5), filled below
	}
	evalB := bytecode.New("when_b", evalBCode, nil, evalBLayout, nil, bytecode.Flags{IsWhenEval: true, ReuseContext: true})

	mainLayout := bytecode.Layout{
		ParametersStart: 0, ConstantsStart: 1, LocalsStart: 6, TempStart: 8, TempEnd: 8, StorageRequirement: 8,
	}
	mainCode := []bytecode.Instruction{
		{Op: bytecode.OpCallBuiltin, A: 1, D: 0}, // after(10) -> slot8
		{Op: bytecode.OpStore, A: 6, B: 8},        // p1
		{Op: bytecode.OpCallBuiltin, A: 1, D: 0}, // after(10) -> slot8
		{Op: bytecode.OpStore, A: 7, B: 8},        // p2
		{Op: bytecode.OpWhenRegister, A: 2},       // register eval A
		{Op: bytecode.OpWhenRegister, A: 3},       // register eval B
		{Op: bytecode.OpReturn},
	}
	mainFn := bytecode.New("when_main", mainCode,
		[]value.Value{value.Int(10), value.Function(1), value.Function(2), value.String("a"), value.String("b")},
		mainLayout, nil, bytecode.Flags{})

	functions := map[int64]*bytecode.Function{1: evalA, 2: evalB, 3: mainFn}
	reg := builtins.NewRegistry()
	var out bytes.Buffer
	reg.Out = &out

	_, afterID, _ := reg.Lookup("after")
	_, isReadyID, _ := reg.Lookup("is_ready")
	_, printID, _ := reg.Lookup("print_s")
	mainCode[0].D = int16(afterID)
	mainCode[2].D = int16(afterID)
	evalACode[1].D = int16(isReadyID)
	evalACode[3].D = int16(printID)
	evalBCode[1].D = int16(isReadyID)
	evalBCode[3].D = int16(printID)

	sched := scheduler.New(reg, functions, 2, 2)
	sched.Start()
	defer sched.Shutdown()

	proc := sched.Spawn()
	sched.Submit(process.CallData{Function: mainFn, Target: proc})

	if !waitUntil(func() bool { return len(proc.When) == 2 }) {
		return observation{}, fmt.Errorf("scenario D: when blocks were never registered")
	}
	if !waitUntil(func() bool { return len(proc.When) == 0 }) {
		return observation{}, fmt.Errorf("scenario D: not every when block fired")
	}
	return observation{Stdout: out.String()}, nil
}

// buildPromiseChaining implements scenario E: outer sends inner() to its
// own process and returns the resulting promise unmodified, producing a
// promise whose value is itself a promise; GetValue must chain through it.
func buildPromiseChaining() (observation, error) {
	innerLayout := bytecode.Layout{
		ParametersStart: 0, ConstantsStart: 1, LocalsStart: 2, TempStart: 2, TempEnd: 2, StorageRequirement: 2,
	}
	innerCode := []bytecode.Instruction{{Op: bytecode.OpReturnValue, A: 1}}
	innerFn := bytecode.New("inner", innerCode, []value.Value{value.Int(7)}, innerLayout, nil, bytecode.Flags{})

	functions := map[int64]*bytecode.Function{1: innerFn}
	reg := builtins.NewRegistry()
	sched := scheduler.New(reg, functions, 2, 2)
	sched.Start()
	defer sched.Shutdown()

	proc := sched.Spawn()

	outerLayout := bytecode.Layout{
		ParametersStart: 0, ConstantsStart: 1, LocalsStart: 3, TempStart: 3, TempEnd: 3, StorageRequirement: 3,
	}
	outerCode := []bytecode.Instruction{
		{Op: bytecode.OpProcessMessage, A: 1, B: 2, C: 1},
		{Op: bytecode.OpReturnValue, A: 3},
	}
	outerFn := bytecode.New("outer", outerCode,
		[]value.Value{value.Process(proc.ID), value.Function(1)}, outerLayout, nil, bytecode.Flags{})
	functions[2] = outerFn

	outerReply := sched.NewPromise(proc.ID, false)
	sched.Submit(process.CallData{Function: outerFn, Target: proc, Reply: outerReply})

	if !waitUntil(func() bool { return sched.IsReady(outerReply.ID) }) {
		return observation{}, fmt.Errorf("scenario E: outer promise chain never resolved")
	}
	got := sched.GetValue(outerReply.ID)
	return observation{Value: got, HasValue: true}, nil
}

// buildHotSwap implements scenario F: define f() returning 1, call it,
// hot-swap its body to return 2, call the same function handle again on
// the same process without recreating it.
func buildHotSwap() (observation, error) {
	layout := bytecode.Layout{ParametersStart: 0, ConstantsStart: 1, LocalsStart: 2, TempStart: 2, TempEnd: 2, StorageRequirement: 2}
	fV1 := bytecode.New("f", []bytecode.Instruction{{Op: bytecode.OpReturnValue, A: 1}}, []value.Value{value.Int(1)}, layout, nil, bytecode.Flags{})
	fV2 := bytecode.New("f", []bytecode.Instruction{{Op: bytecode.OpReturnValue, A: 1}}, []value.Value{value.Int(2)}, layout, nil, bytecode.Flags{})

	functions := map[int64]*bytecode.Function{1: fV1}
	sched := scheduler.New(builtins.NewRegistry(), functions, 2, 2)
	proc := sched.Spawn()

	first, err := sched.ExecuteFunction(process.CallData{Function: fV1, Target: proc})
	if err != nil {
		return observation{}, fmt.Errorf("scenario F: first call error: %v", err)
	}
	if first.AsInt() != 1 {
		return observation{}, fmt.Errorf("scenario F: first call returned %v, want 1", first)
	}

	sched.HotSwap(fV1, fV2)

	second, err := sched.ExecuteFunction(process.CallData{Function: fV1, Target: proc})
	if err != nil {
		return observation{}, fmt.Errorf("scenario F: second call error: %v", err)
	}
	return observation{Value: second, HasValue: true}, nil
}
