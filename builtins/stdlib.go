package builtins

// registerStandardLibrary binds every builtin name this runtime ships, in
// the declaration order of original_source/inc/eople_stdlib.h. get_line and
// get_url are omitted: get_line has no owning process concept worth
// blocking a worker for under this scheduler, and get_url falls under
// spec.md's explicit HTTP-builtins non-goal.
func registerStandardLibrary(r *Registry) {
	r.Register("print_i", printScalar)
	r.Register("print_f", printScalar)
	r.Register("print_s", printScalar)
	r.Register("print_i_arr", printArray)
	r.Register("print_f_arr", printArray)
	r.Register("print_s_arr", printArray)

	r.Register("array_constructor", arrayConstructor)
	r.Register("array_push", arrayPush)
	r.Register("array_push_array", arrayPush)
	r.Register("array_push_string", arrayPush)
	r.Register("array_size", arraySize)
	r.Register("array_top", arrayTop)
	r.Register("array_top_array", arrayTop)
	r.Register("array_top_string", arrayTop)
	r.Register("array_pop", arrayPop)
	r.Register("array_clear", arrayClear)
	r.Register("array_deref", arrayDeref)

	r.Register("get_time", getTime)
	r.Register("after", timer)
	r.Register("sleep_milliseconds", sleepMilliseconds)
	r.Register("is_ready", isReady)
	r.Register("get_value", getValue)

	r.Register("int_to_float", intToFloat)
	r.Register("float_to_int", floatToInt)
	r.Register("int_to_string", intToString)
	r.Register("float_to_string", floatToString)
	r.Register("promise_to_string", promiseToString)
}
