package vm

import (
	"eople/bytecode"
	"eople/procstack"
	"eople/value"
)

// landAt positions *ip so that runRange's unconditional post-increment
// lands exactly at target, per spec.md §4.1's dispatch tie-break rule:
// "handlers that perform their own jumps leave IP pointing at the last
// consumed instruction".
func landAt(ip *int, target int) {
	*ip = target - 1
}

// consumeNOPs scans forward from ip+1 over the run of OpNOP instructions
// that immediately follow a call instruction, per spec.md §4.1: "NOP —
// carries overflow operands for calls with > 4 arguments." It advances ip
// past them so the driving loop's post-increment lands on the first real
// instruction afterward.
func consumeNOPs(fn *bytecode.Function, ip *int) []bytecode.Instruction {
	var extra []bytecode.Instruction
	i := *ip + 1
	for i < len(fn.Code) && fn.Code[i].Op == bytecode.OpNOP {
		extra = append(extra, fn.Code[i])
		i++
	}
	*ip = i - 1
	return extra
}

// gatherArgs collects a call's argument values from the caller's frame,
// cloning each so the receiving process (or, for a constructor, the
// callee's own parameter region) owns an independent copy rather than
// aliasing the caller's slot — spec.md §3's CallData: "Args ownership
// transfers to the receiving process."
func gatherArgs(s *procstack.ProcessStack, callerBase int, first int16, extra []bytecode.Instruction) []value.Value {
	args := []value.Value{s.Get(callerBase + int(first)).Clone()}
	for _, nop := range extra {
		for _, operand := range [4]int16{nop.A, nop.B, nop.C, nop.D} {
			args = append(args, s.Get(callerBase+int(operand)).Clone())
		}
	}
	return args
}

// numCompare orders a and b, promoting to float64 if either operand is a
// float, per spec.md §4.1's "Comparison ... on i64 and f64".
func numCompare(a, b value.Value) int {
	if a.Tag() == value.TagFloat || b.Tag() == value.TagFloat {
		af, bf := a.AsFloat(), b.AsFloat()
		if a.Tag() != value.TagFloat {
			af = float64(a.AsInt())
		}
		if b.Tag() != value.TagFloat {
			bf = float64(b.AsInt())
		}
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	ai, bi := a.AsInt(), b.AsInt()
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	default:
		return 0
	}
}
