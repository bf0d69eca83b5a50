package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/dora/pkg/bytecode"
	"github.com/chazu/dora/pkg/ty"
	"github.com/chazu/dora/vm"
)

// Kind identifies a macro-assembler operation.
type Kind uint8

const (
	OpPrologue Kind = iota
	OpEpilogue
	OpRet
	OpLoadImm
	OpLoadFImm
	OpLoadString
	OpCopy
	OpLoad
	OpStore
	OpLea
	OpCompute
	OpJump
	OpJumpIfZero
	OpJumpIfNonZero
	OpBind
	OpCall
	OpVirtualCall
	OpAlloc
	OpAllocArray
	OpLoadGlobal
	OpStoreGlobal
	OpNilCheck
	OpBoundsCheck
	OpDivZeroCheck
	OpAssert
	OpInstanceOf
	OpCheckedCast
	OpStoreArg
)

var kindNames = [...]string{
	OpPrologue:      "prologue",
	OpEpilogue:      "epilogue",
	OpRet:           "ret",
	OpLoadImm:       "load_imm",
	OpLoadFImm:      "load_fimm",
	OpLoadString:    "load_string",
	OpCopy:          "copy",
	OpLoad:          "load",
	OpStore:         "store",
	OpLea:           "lea",
	OpCompute:       "compute",
	OpJump:          "jump",
	OpJumpIfZero:    "jump_if_zero",
	OpJumpIfNonZero: "jump_if_nonzero",
	OpBind:          "bind",
	OpCall:          "call",
	OpVirtualCall:   "call_virtual",
	OpAlloc:         "alloc",
	OpAllocArray:    "alloc_array",
	OpLoadGlobal:    "load_global",
	OpStoreGlobal:   "store_global",
	OpNilCheck:      "nil_check",
	OpBoundsCheck:   "bounds_check",
	OpDivZeroCheck:  "div_zero_check",
	OpAssert:        "assert",
	OpInstanceOf:    "instance_of",
	OpCheckedCast:   "checked_cast",
	OpStoreArg:      "store_arg",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Mem is a memory operand: Base + Index*Scale + Disp.
type Mem struct {
	Base     Reg
	Index    Reg
	HasIndex bool
	Scale    uint32
	Disp     int32
}

// Local addresses a frame-pointer-relative stack slot.
func Local(arch *Arch, offset int32) Mem {
	return Mem{Base: arch.FP, Disp: offset}
}

// Offset addresses base+disp.
func Offset(base Reg, disp int32) Mem {
	return Mem{Base: base, Disp: disp}
}

// Indexed addresses base + index*scale + disp.
func Indexed(base, index Reg, scale uint32, disp int32) Mem {
	return Mem{Base: base, Index: index, HasIndex: true, Scale: scale, Disp: disp}
}

// Op is one recorded operation. Which fields are meaningful depends on Kind.
type Op struct {
	Kind Kind
	Type ty.Type // operand width

	Dst AnyReg
	Src AnyReg
	Rhs AnyReg
	Mem Mem

	Imm  int64
	FImm float64
	Str  string

	Compute bytecode.Opcode
	Label   Label

	Fct    vm.FctID
	Class  vm.ClassID
	Global vm.GlobalID
	Index  uint32 // vtable index, argument slot or allocation size
}

// Format renders op with arch's register names.
func (a *Arch) Format(op Op) string {
	r := a.AnyRegName
	var sb strings.Builder
	sb.WriteString(op.Kind.String())

	args := func(parts ...string) {
		sb.WriteByte(' ')
		sb.WriteString(strings.Join(parts, ", "))
	}

	switch op.Kind {
	case OpPrologue, OpEpilogue:
		args("frame " + strconv.FormatUint(uint64(op.Index), 10))
	case OpRet:
	case OpLoadImm:
		args(op.Type.String(), r(op.Dst), strconv.FormatInt(op.Imm, 10))
	case OpLoadFImm:
		args(op.Type.String(), r(op.Dst), strconv.FormatFloat(op.FImm, 'g', -1, 64))
	case OpLoadString:
		args(r(op.Dst), strconv.Quote(op.Str))
	case OpCopy:
		args(op.Type.String(), r(op.Dst), r(op.Src))
	case OpLoad:
		args(op.Type.String(), r(op.Dst), a.FormatMem(op.Mem))
	case OpStore:
		args(op.Type.String(), a.FormatMem(op.Mem), r(op.Src))
	case OpLea:
		args(r(op.Dst), a.FormatMem(op.Mem))
	case OpCompute:
		args(op.Compute.String(), r(op.Dst), r(op.Src), r(op.Rhs))
	case OpJump, OpBind:
		args(op.Label.String())
	case OpJumpIfZero, OpJumpIfNonZero:
		args(r(op.Src), op.Label.String())
	case OpCall:
		args(fmt.Sprintf("fct %d", op.Fct))
	case OpVirtualCall:
		args(fmt.Sprintf("fct %d", op.Fct), fmt.Sprintf("vtable %d", op.Index))
	case OpAlloc:
		args(r(op.Dst), fmt.Sprintf("class %d", op.Class), fmt.Sprintf("size %d", op.Index))
	case OpAllocArray:
		args(r(op.Dst), fmt.Sprintf("class %d", op.Class), r(op.Src))
	case OpLoadGlobal:
		args(op.Type.String(), r(op.Dst), fmt.Sprintf("global %d", op.Global))
	case OpStoreGlobal:
		args(op.Type.String(), fmt.Sprintf("global %d", op.Global), r(op.Src))
	case OpNilCheck, OpDivZeroCheck, OpAssert:
		args(r(op.Src))
	case OpBoundsCheck:
		args(r(op.Src), r(op.Rhs))
	case OpInstanceOf:
		args(r(op.Dst), r(op.Src), fmt.Sprintf("class %d", op.Class))
	case OpCheckedCast:
		args(r(op.Src), fmt.Sprintf("class %d", op.Class))
	case OpStoreArg:
		args(op.Type.String(), fmt.Sprintf("arg %d", op.Index), r(op.Src))
	}
	return sb.String()
}

// FormatMem renders a memory operand as [base+index*scale+disp].
func (a *Arch) FormatMem(m Mem) string {
	var sb strings.Builder
	sb.WriteByte('[')
	sb.WriteString(a.RegName(m.Base))
	if m.HasIndex {
		fmt.Fprintf(&sb, "+%s*%d", a.RegName(m.Index), m.Scale)
	}
	if m.Disp > 0 {
		fmt.Fprintf(&sb, "+%d", m.Disp)
	} else if m.Disp < 0 {
		fmt.Fprintf(&sb, "%d", m.Disp)
	}
	sb.WriteByte(']')
	return sb.String()
}
