package builtins

import "eople/value"

// Array builtins grounded on original_source/inc/eople_stdlib.h's
// ArrayConstructor/ArrayPush*/ArraySize/ArrayTop*/ArrayPop/ArrayClear/
// ArrayDeref. ArrayPush, ArrayPushArray and ArrayPushString are one
// overload family in the original (push an int/float, an array, or a
// string element); Eople's tagged Value makes them a single handler.

func arrayConstructor(ctx *Context) bool {
	ctx.Return(value.Array(nil))
	return true
}

func arrayPush(ctx *Context) bool {
	arr := ctx.Operand(0)
	elem := ctx.Operand(1)
	arr.ArrayPush(elem.Clone())
	ctx.Return(arr)
	return true
}

func arraySize(ctx *Context) bool {
	arr := ctx.Operand(0)
	ctx.Return(value.Int(int64(arr.Len())))
	return true
}

func arrayTop(ctx *Context) bool {
	arr := ctx.Operand(0)
	if arr.Len() == 0 {
		ctx.Return(value.Nil())
		return true
	}
	elem, _ := arr.ArrayGet(arr.Len() - 1)
	ctx.Return(elem)
	return true
}

func arrayPop(ctx *Context) bool {
	arr := ctx.Operand(0)
	last, ok := arr.ArrayPop()
	if !ok {
		ctx.Return(value.Nil())
		return true
	}
	ctx.Return(last)
	return true
}

func arrayClear(ctx *Context) bool {
	arr := ctx.Operand(0)
	arr.ArrayClear()
	ctx.Return(arr)
	return true
}

func arrayDeref(ctx *Context) bool {
	arr := ctx.Operand(0)
	idx := ctx.Operand(1)
	elem, ok := arr.ArrayGet(int(idx.AsInt()))
	if !ok {
		ctx.Return(value.Nil())
		return true
	}
	ctx.Return(elem)
	return true
}
