// Command eoplevm is a minimal embedder for the Eople runtime, grounded on
// barn/cmd/barn/main.go's flag + log startup shape: parse flags, configure
// tracing, boot the runtime, spawn a root process, run its constructor to
// completion, and exit. It exists to exercise scheduler.Scheduler end to
// end against a hand-assembled demo Module rather than to be a real
// front-end — a real compiler feeding module.Load is out of scope
// (spec.md §1's "front-end is an external collaborator").
package main

import (
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"eople/builtins"
	"eople/bytecode"
	"eople/module"
	"eople/process"
	"eople/runtimelog"
	"eople/scheduler"
	"eople/value"
)

func main() {
	workers := flag.Int("workers", 4, "Number of scheduler worker goroutines")
	queues := flag.Int("queues", 4, "Number of mailbox queues")
	tickLimit := flag.Duration("tick-limit", 5*time.Second, "Maximum time to wait for the demo run to finish before forcing shutdown")
	traceEnabled := flag.Bool("trace", false, "Enable runtime diagnostic logging")
	traceFilter := flag.String("trace-filter", "", "Trace filter pattern (comma-separated globs, e.g. 'spawn_*,greet')")
	flag.Parse()

	if *traceEnabled {
		var filters []string
		if *traceFilter != "" {
			filters = strings.Split(*traceFilter, ",")
			for i := range filters {
				filters[i] = strings.TrimSpace(filters[i])
			}
		}
		runtimelog.Init(true, filters, os.Stderr)
		log.Printf("Tracing enabled (filters: %v)", filters)
	} else {
		runtimelog.Init(false, nil, nil)
	}

	log.Printf("eoplevm: workers=%d queues=%d", *workers, *queues)

	mod := module.Load(demoFunctions(), builtins.NewRegistry())
	sched := scheduler.New(mod.Builtins, mod.Functions, *workers, *queues)
	sched.Start()

	root := sched.Spawn()
	ctorFn, _, ok := mod.Lookup("main")
	if !ok {
		log.Fatalf("eoplevm: demo module has no \"main\" function")
	}
	reply := sched.NewPromise(root.ID, false)
	sched.Submit(process.CallData{Function: ctorFn, Target: root, Reply: reply})

	deadline := time.Now().Add(*tickLimit)
	for !sched.IsReady(reply.ID) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if sched.IsReady(reply.ID) {
		log.Printf("eoplevm: main returned %v", sched.GetValue(reply.ID))
	} else {
		log.Printf("eoplevm: timed out waiting for main to return")
	}

	if err := sched.Shutdown(); err != nil {
		log.Fatalf("eoplevm: shutdown error: %v", err)
	}
}

// demoFunctions builds a tiny hand-assembled "main" function returning the
// integer 1, standing in for what a real compiler's module.Load input would
// look like — this binary's purpose is exercising the scheduler plumbing,
// not demonstrating language surface.
func demoFunctions() []*bytecode.Function {
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
	main := bytecode.New("main", code, []value.Value{value.Int(1)}, layout, nil, bytecode.Flags{IsConstructor: true})
	return []*bytecode.Function{main}
}
