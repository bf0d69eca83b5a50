package bytecode

import (
	"fmt"

	"github.com/chazu/dora/pkg/ty"
	"github.com/chazu/dora/vm"
)

// Build decodes fn into a list of instructions with every constant
// inlined and every jump distance turned into an instruction index.
//
// Backward jumps resolve immediately since their target has been seen.
// Forward jumps are collected and patched once the whole stream has been
// read; a jump to the very end of the code resolves to len(result).
func Build(fn *Function) []Inst {
	b := builder{
		fn:            fn,
		offsetToIndex: make(map[int]int),
	}
	Walk(fn.Code, &b)
	b.resolveJumps()
	return b.insts
}

type unresolvedJump struct {
	inst   int // index of the jump in insts
	target int // target byte offset
}

type builder struct {
	fn            *Function
	insts         []Inst
	offsetToIndex map[int]int
	forward       []unresolvedJump
}

func (b *builder) Visit(raw Instruction) {
	b.offsetToIndex[raw.Offset] = len(b.insts)
	b.insts = append(b.insts, b.convert(raw))
}

func (b *builder) resolveJumps() {
	b.offsetToIndex[len(b.fn.Code)] = len(b.insts)

	for _, j := range b.forward {
		idx, ok := b.offsetToIndex[j.target]
		if !ok {
			panic(fmt.Sprintf("jump target offset %d not visited", j.target))
		}
		b.insts[j.inst].Target = idx
	}
}

func (b *builder) deferJump(raw Instruction, dist uint32) {
	b.forward = append(b.forward, unresolvedJump{
		inst:   len(b.insts),
		target: raw.Offset + int(dist),
	})
}

func (b *builder) convert(raw Instruction) Inst {
	op := raw.Op
	o := raw.Operands
	in := Inst{Op: op}

	switch op.Format() {
	case FmtNone:
	case FmtR:
		in.Regs[0] = Register(o[0])
	case FmtRR:
		in.Regs = [3]Register{Register(o[0]), Register(o[1])}
	case FmtRRR:
		in.Regs = [3]Register{Register(o[0]), Register(o[1]), Register(o[2])}
	case FmtRImm:
		in.Regs[0] = Register(o[0])
		in.Lit.Int = int64(o[1])
	case FmtRConst:
		in.Regs[0] = Register(o[0])
		in.Lit = b.literal(op, o[1])
	case FmtRClass:
		in.Regs[0] = Register(o[0])
		in.Class = vm.ClassID(o[1])
	case FmtRRClass:
		in.Regs = [3]Register{Register(o[0]), Register(o[1])}
		in.Class = vm.ClassID(o[2])
	case FmtRClassR:
		in.Regs = [3]Register{Register(o[0]), Register(o[2])}
		in.Class = vm.ClassID(o[1])
	case FmtRRClassField:
		in.Regs = [3]Register{Register(o[0]), Register(o[1])}
		in.Class = vm.ClassID(o[2])
		in.Field = vm.FieldID(o[3])
	case FmtRGlobal:
		in.Regs[0] = Register(o[0])
		in.Global = vm.GlobalID(o[1])
	case FmtRRTuple:
		in.Regs = [3]Register{Register(o[0]), Register(o[1])}
		in.Tuple = ty.TupleID(o[2])
	case FmtRRTupleIdx:
		in.Regs = [3]Register{Register(o[0]), Register(o[1])}
		in.Tuple = ty.TupleID(o[2])
		in.Idx = o[3]
	case FmtFctArgs:
		in.Fct = vm.FctID(o[0])
		in.Idx = o[1]
	case FmtRFctArgs:
		in.Regs[0] = Register(o[0])
		in.Fct = vm.FctID(o[1])
		in.Idx = o[2]
	case FmtJump:
		if op == OpJumpLoop {
			target := raw.Offset - int(o[0])
			idx, ok := b.offsetToIndex[target]
			if !ok {
				panic(fmt.Sprintf("JumpLoop target offset %d not visited", target))
			}
			in.Target = idx
		} else {
			b.deferJump(raw, o[0])
		}
	case FmtRJump:
		in.Regs[0] = Register(o[0])
		b.deferJump(raw, o[1])
	case FmtJumpConst:
		in.Op = OpJump
		b.deferJump(raw, uint32(b.fn.LookupInt(o[0])))
	case FmtRJumpConst:
		in.Regs[0] = Register(o[0])
		if op == OpJumpIfFalseConst {
			in.Op = OpJumpIfFalse
		} else {
			in.Op = OpJumpIfTrue
		}
		b.deferJump(raw, uint32(b.fn.LookupInt(o[1])))
	default:
		panic(fmt.Sprintf("cannot build %s", op))
	}
	return in
}

func (b *builder) literal(op Opcode, idx uint32) Literal {
	switch op {
	case OpConstChar:
		return Literal{Int: int64(b.fn.LookupChar(idx))}
	case OpConstInt:
		return Literal{Int: int64(b.fn.LookupInt(idx))}
	case OpConstInt64:
		return Literal{Int: b.fn.LookupInt64(idx)}
	case OpConstFloat:
		return Literal{Float: float64(b.fn.LookupFloat(idx))}
	case OpConstDouble:
		return Literal{Float: b.fn.LookupDouble(idx)}
	case OpConstString:
		return Literal{Str: b.fn.LookupString(idx)}
	}
	panic(fmt.Sprintf("%s has no pool operand", op))
}
