package builtins

import "eople/value"

// is_ready(promise) and get_value(promise) are not c-calls in
// original_source's stdlib — there they are VM opcodes closing over the
// task's own promise table directly. Routed through the Dispatcher here
// instead of a dedicated opcode since Eople's promise table is owned by
// the scheduler rather than the process, and the c-call contract already
// gives handlers a Dispatcher; adding two opcodes to reach the same table
// would only duplicate this lookup.

func isReady(ctx *Context) bool {
	id := ctx.Operand(0).PromiseID()
	ctx.Return(value.Bool(ctx.Dispatcher.IsReady(id)))
	return true
}

func getValue(ctx *Context) bool {
	id := ctx.Operand(0).PromiseID()
	ctx.Return(ctx.Dispatcher.GetValue(id))
	return true
}
