package builtins

import "fmt"

// print_i/print_f/print_s/print_i_arr/print_f_arr/print_s_arr: write a
// single value or an array of values to the process's output sink,
// grounded on original_source/inc/eople_stdlib.h's PrintI/PrintF/PrintS/
// PrintIArr/PrintFArr/PrintSArr. Eople has no distinct int/float/string
// print opcode family at the Value level (the tag carries that), so all
// six collapse onto the same formatting path; they are kept as separate
// registry entries to preserve the original stdlib's call surface.

func printScalar(ctx *Context) bool {
	v := ctx.Operand(0)
	fmt.Fprintln(ctx.Out, v.String())
	ctx.Return(v)
	return true
}

func printArray(ctx *Context) bool {
	v := ctx.Operand(0)
	for _, elem := range v.ArrayElements() {
		fmt.Fprintln(ctx.Out, elem.String())
	}
	ctx.Return(v)
	return true
}
