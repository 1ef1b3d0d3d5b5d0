package builtins

import (
	"strconv"

	"eople/value"
)

// int_to_float, float_to_int, int_to_string, float_to_string,
// promise_to_string, grounded on original_source/inc/eople_stdlib.h's
// IntToFloat/FloatToInt/IntToString/FloatToString/PromiseToString —
// exercised by testable property #10's to_int/to_float/to_string
// round-trips.

func intToFloat(ctx *Context) bool {
	ctx.Return(value.Float(float64(ctx.Operand(0).AsInt())))
	return true
}

func floatToInt(ctx *Context) bool {
	ctx.Return(value.Int(int64(ctx.Operand(0).AsFloat())))
	return true
}

func intToString(ctx *Context) bool {
	ctx.Return(value.String(strconv.FormatInt(ctx.Operand(0).AsInt(), 10)))
	return true
}

func floatToString(ctx *Context) bool {
	ctx.Return(value.String(strconv.FormatFloat(ctx.Operand(0).AsFloat(), 'g', -1, 64)))
	return true
}

func promiseToString(ctx *Context) bool {
	ctx.Return(value.String(ctx.Operand(0).String()))
	return true
}
