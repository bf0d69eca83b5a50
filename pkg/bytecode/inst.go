package bytecode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/dora/pkg/ty"
	"github.com/chazu/dora/vm"
)

// Register indexes the virtual register file of a function.
type Register uint32

// String formats the register as r<n>.
func (r Register) String() string {
	return "r" + strconv.FormatUint(uint64(r), 10)
}

// Literal is the inlined value of a constant instruction.
type Literal struct {
	Int   int64
	Float float64
	Str   string
}

// Inst is one decoded instruction with every operand resolved: constant
// pool literals are inlined and jump targets are instruction indices.
// Which fields are meaningful depends on the opcode's Format.
type Inst struct {
	Op     Opcode
	Regs   [3]Register
	Class  vm.ClassID
	Field  vm.FieldID
	Global vm.GlobalID
	Fct    vm.FctID
	Tuple  ty.TupleID
	Idx    uint32 // tuple element index or argument count
	Target int    // instruction index of a jump target
	Lit    Literal
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// Plain builds an instruction whose operands are registers only.
func Plain(op Opcode, regs ...Register) Inst {
	in := Inst{Op: op}
	copy(in.Regs[:], regs)
	return in
}

// ConstUInt8 loads an inline byte.
func ConstUInt8(r Register, v uint8) Inst {
	return Inst{Op: OpConstUInt8, Regs: [3]Register{r}, Lit: Literal{Int: int64(v)}}
}

// ConstChar loads a character.
func ConstChar(r Register, v rune) Inst {
	return Inst{Op: OpConstChar, Regs: [3]Register{r}, Lit: Literal{Int: int64(v)}}
}

// ConstInt loads a 32-bit integer.
func ConstInt(r Register, v int32) Inst {
	return Inst{Op: OpConstInt, Regs: [3]Register{r}, Lit: Literal{Int: int64(v)}}
}

// ConstInt64 loads a 64-bit integer.
func ConstInt64(r Register, v int64) Inst {
	return Inst{Op: OpConstInt64, Regs: [3]Register{r}, Lit: Literal{Int: v}}
}

// ConstFloat loads a 32-bit float.
func ConstFloat(r Register, v float32) Inst {
	return Inst{Op: OpConstFloat, Regs: [3]Register{r}, Lit: Literal{Float: float64(v)}}
}

// ConstDouble loads a 64-bit float.
func ConstDouble(r Register, v float64) Inst {
	return Inst{Op: OpConstDouble, Regs: [3]Register{r}, Lit: Literal{Float: v}}
}

// ConstString loads a string.
func ConstString(r Register, v string) Inst {
	return Inst{Op: OpConstString, Regs: [3]Register{r}, Lit: Literal{Str: v}}
}

// Jump transfers control to instruction index target.
func Jump(target int) Inst {
	return Inst{Op: OpJump, Target: target}
}

// JumpLoop transfers control back to instruction index target.
func JumpLoop(target int) Inst {
	return Inst{Op: OpJumpLoop, Target: target}
}

// JumpIfFalse jumps to target when r is false.
func JumpIfFalse(r Register, target int) Inst {
	return Inst{Op: OpJumpIfFalse, Regs: [3]Register{r}, Target: target}
}

// JumpIfTrue jumps to target when r is true.
func JumpIfTrue(r Register, target int) Inst {
	return Inst{Op: OpJumpIfTrue, Regs: [3]Register{r}, Target: target}
}

// FieldOp loads or stores field of the object in obj.
func FieldOp(op Opcode, r, obj Register, cls vm.ClassID, field vm.FieldID) Inst {
	return Inst{Op: op, Regs: [3]Register{r, obj}, Class: cls, Field: field}
}

// GlobalOp loads or stores a global.
func GlobalOp(op Opcode, r Register, g vm.GlobalID) Inst {
	return Inst{Op: op, Regs: [3]Register{r}, Global: g}
}

// InvokeVoid calls fct discarding its result.
func InvokeVoid(op Opcode, fct vm.FctID, argc uint32) Inst {
	return Inst{Op: op, Fct: fct, Idx: argc}
}

// Invoke calls fct storing its result in dest.
func Invoke(op Opcode, dest Register, fct vm.FctID, argc uint32) Inst {
	return Inst{Op: op, Regs: [3]Register{dest}, Fct: fct, Idx: argc}
}

// NewObject allocates an instance of cls.
func NewObject(dest Register, cls vm.ClassID) Inst {
	return Inst{Op: OpNewObject, Regs: [3]Register{dest}, Class: cls}
}

// NewArray allocates an array of cls with length elements.
func NewArray(dest Register, cls vm.ClassID, length Register) Inst {
	return Inst{Op: OpNewArray, Regs: [3]Register{dest, length}, Class: cls}
}

// InstanceOf tests src against cls.
func InstanceOf(dest, src Register, cls vm.ClassID) Inst {
	return Inst{Op: OpInstanceOf, Regs: [3]Register{dest, src}, Class: cls}
}

// CheckedCast traps unless r holds an instance of cls.
func CheckedCast(r Register, cls vm.ClassID) Inst {
	return Inst{Op: OpCheckedCast, Regs: [3]Register{r}, Class: cls}
}

// MovTuple copies a tuple value.
func MovTuple(dest, src Register, tuple ty.TupleID) Inst {
	return Inst{Op: OpMovTuple, Regs: [3]Register{dest, src}, Tuple: tuple}
}

// TupleElement loads or stores element idx of the tuple in t.
func TupleElement(op Opcode, r, t Register, tuple ty.TupleID, idx uint32) Inst {
	return Inst{Op: op, Regs: [3]Register{r, t}, Tuple: tuple, Idx: idx}
}

// ---------------------------------------------------------------------------
// Formatting
// ---------------------------------------------------------------------------

// String formats the instruction like "SubInt r2, r0, r1".
func (in Inst) String() string {
	var ops []string
	regs := func(n int) {
		for i := 0; i < n; i++ {
			ops = append(ops, in.Regs[i].String())
		}
	}

	switch in.Op.Format() {
	case FmtNone, FmtPrefix:
	case FmtR:
		regs(1)
	case FmtRR:
		regs(2)
	case FmtRRR:
		regs(3)
	case FmtRImm, FmtRConst:
		regs(1)
		ops = append(ops, in.literalString())
	case FmtRClass:
		regs(1)
		ops = append(ops, fmt.Sprintf("class %d", in.Class))
	case FmtRRClass:
		regs(2)
		ops = append(ops, fmt.Sprintf("class %d", in.Class))
	case FmtRClassR:
		ops = append(ops, in.Regs[0].String(), fmt.Sprintf("class %d", in.Class), in.Regs[1].String())
	case FmtRRClassField:
		regs(2)
		ops = append(ops, fmt.Sprintf("class %d", in.Class), fmt.Sprintf("field %d", in.Field))
	case FmtRGlobal:
		regs(1)
		ops = append(ops, fmt.Sprintf("global %d", in.Global))
	case FmtRRTuple:
		regs(2)
		ops = append(ops, fmt.Sprintf("tuple %d", in.Tuple))
	case FmtRRTupleIdx:
		regs(2)
		ops = append(ops, fmt.Sprintf("tuple %d", in.Tuple), strconv.FormatUint(uint64(in.Idx), 10))
	case FmtFctArgs:
		ops = append(ops, fmt.Sprintf("fct %d", in.Fct), strconv.FormatUint(uint64(in.Idx), 10))
	case FmtRFctArgs:
		regs(1)
		ops = append(ops, fmt.Sprintf("fct %d", in.Fct), strconv.FormatUint(uint64(in.Idx), 10))
	case FmtJump, FmtJumpConst:
		ops = append(ops, fmt.Sprintf("@%d", in.Target))
	case FmtRJump, FmtRJumpConst:
		regs(1)
		ops = append(ops, fmt.Sprintf("@%d", in.Target))
	}

	if len(ops) == 0 {
		return in.Op.String()
	}
	return in.Op.String() + " " + strings.Join(ops, ", ")
}

func (in Inst) literalString() string {
	switch in.Op {
	case OpConstChar:
		return strconv.QuoteRune(rune(in.Lit.Int))
	case OpConstFloat:
		return strconv.FormatFloat(in.Lit.Float, 'g', -1, 32)
	case OpConstDouble:
		return strconv.FormatFloat(in.Lit.Float, 'g', -1, 64)
	case OpConstString:
		return strconv.Quote(in.Lit.Str)
	}
	return strconv.FormatInt(in.Lit.Int, 10)
}
