package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of fn: a header, the
// register file, the constant pool and one line per instruction.
func Disassemble(fn *Function) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("; === %s ===\n", fn.Name))
	sb.WriteString(fmt.Sprintf("; Dora Bytecode v%d\n", FormatVersion))
	sb.WriteString(fmt.Sprintf("; Arguments: %d\n", fn.Arguments))

	// Registers
	if len(fn.Registers) > 0 {
		sb.WriteString("; Registers:\n")
		for i, t := range fn.Registers {
			sb.WriteString(fmt.Sprintf(";   %-4s %s\n", Register(i), t))
		}
	}

	// Constants
	if len(fn.Consts) > 0 {
		sb.WriteString("; Constants:\n")
		for i, c := range fn.Consts {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, c))
		}
	}
	sb.WriteString("\n")

	// Code
	sb.WriteString("; Code:\n")
	r := NewReader(fn.Code)
	for r.HasMore() {
		in := r.Next()
		line := disassembleInstruction(fn, in)
		if pos, ok := fn.PositionAt(uint32(in.Offset)); ok {
			sb.WriteString(fmt.Sprintf("%04X  %-40s ; %s\n", in.Offset, line, pos))
		} else {
			sb.WriteString(fmt.Sprintf("%04X  %s\n", in.Offset, line))
		}
	}

	return sb.String()
}

// disassembleInstruction formats one raw instruction. Pool operands are
// shown with their value and jumps with their absolute target offset.
func disassembleInstruction(fn *Function, in Instruction) string {
	o := in.Operands
	r := func(i int) string { return Register(o[i]).String() }
	name := in.Op.String()
	if in.Wide {
		name = "Wide " + name
	}

	var ops []string
	switch in.Op.Format() {
	case FmtNone, FmtPrefix:
	case FmtR:
		ops = []string{r(0)}
	case FmtRR:
		ops = []string{r(0), r(1)}
	case FmtRRR:
		ops = []string{r(0), r(1), r(2)}
	case FmtRImm:
		ops = []string{r(0), fmt.Sprintf("%d", o[1])}
	case FmtRConst:
		ops = []string{r(0), fmt.Sprintf("#%d ; %s", o[1], constString(fn, o[1]))}
	case FmtRClass:
		ops = []string{r(0), fmt.Sprintf("class %d", o[1])}
	case FmtRRClass:
		ops = []string{r(0), r(1), fmt.Sprintf("class %d", o[2])}
	case FmtRClassR:
		ops = []string{r(0), fmt.Sprintf("class %d", o[1]), r(2)}
	case FmtRRClassField:
		ops = []string{r(0), r(1), fmt.Sprintf("class %d", o[2]), fmt.Sprintf("field %d", o[3])}
	case FmtRGlobal:
		ops = []string{r(0), fmt.Sprintf("global %d", o[1])}
	case FmtRRTuple:
		ops = []string{r(0), r(1), fmt.Sprintf("tuple %d", o[2])}
	case FmtRRTupleIdx:
		ops = []string{r(0), r(1), fmt.Sprintf("tuple %d", o[2]), fmt.Sprintf("%d", o[3])}
	case FmtFctArgs:
		ops = []string{fmt.Sprintf("fct %d", o[0]), fmt.Sprintf("%d", o[1])}
	case FmtRFctArgs:
		ops = []string{r(0), fmt.Sprintf("fct %d", o[1]), fmt.Sprintf("%d", o[2])}
	case FmtJump:
		if in.Op == OpJumpLoop {
			ops = []string{fmt.Sprintf("-> %04X", in.Offset-int(o[0]))}
		} else {
			ops = []string{fmt.Sprintf("-> %04X", in.Offset+int(o[0]))}
		}
	case FmtRJump:
		ops = []string{r(0), fmt.Sprintf("-> %04X", in.Offset+int(o[1]))}
	case FmtJumpConst:
		ops = []string{fmt.Sprintf("-> %04X", in.Offset+int(fn.LookupInt(o[0])))}
	case FmtRJumpConst:
		ops = []string{r(0), fmt.Sprintf("-> %04X", in.Offset+int(fn.LookupInt(o[1])))}
	}

	if len(ops) == 0 {
		return name
	}
	return name + " " + strings.Join(ops, ", ")
}

func constString(fn *Function, idx uint32) string {
	if int(idx) >= len(fn.Consts) {
		return "<invalid>"
	}
	return fn.Consts[idx].String()
}
