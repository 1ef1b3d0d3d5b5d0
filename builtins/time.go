package builtins

import (
	"time"

	"eople/process"
	"eople/value"
)

// get_time, timer(ms), sleep_milliseconds(ms), grounded on
// original_source/inc/eople_stdlib.h's GetTime/Timer/SleepMilliseconds.
//
// spec.md §5: sleep is "a deliberate simplification and the only handler
// that blocks" the worker thread; timer instead mints a timer promise and
// lets the scheduler deliver a matured wake-up, never blocking the worker.

func getTime(ctx *Context) bool {
	ctx.Return(value.Int(time.Now().UnixMilli()))
	return true
}

func timer(ctx *Context) bool {
	ms := ctx.Operand(0).AsInt()
	p := ctx.Dispatcher.NewPromise(ctx.Proc.ID, true)
	ctx.Dispatcher.Enqueue(process.CallData{
		Target:      ctx.Proc,
		Reply:       p,
		EarliestRun: time.Now().Add(time.Duration(ms) * time.Millisecond),
	})
	ctx.Return(value.Promise(p.ID))
	return true
}

func sleepMilliseconds(ctx *Context) bool {
	ms := ctx.Operand(0).AsInt()
	time.Sleep(time.Duration(ms) * time.Millisecond)
	ctx.Return(value.Nil())
	return true
}
