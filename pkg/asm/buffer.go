package asm

import (
	"fmt"
	"strings"

	"github.com/chazu/dora/pkg/bytecode"
	"github.com/chazu/dora/pkg/ty"
	"github.com/chazu/dora/vm"
)

// Label names a position in a Buffer.
type Label int

func (l Label) String() string { return fmt.Sprintf("L%d", int(l)) }

// labelState tracks where a label was bound and which ops jump to it.
type labelState struct {
	bound bool
	op    int
	refs  []int
}

// Buffer records the operations of one function.
type Buffer struct {
	arch   *Arch
	ops    []Op
	labels []labelState
	frame  []int // prologue and epilogue ops awaiting the frame size
}

// NewBuffer creates an empty buffer for arch.
func NewBuffer(arch *Arch) *Buffer {
	return &Buffer{arch: arch}
}

// Arch returns the target architecture.
func (b *Buffer) Arch() *Arch { return b.arch }

// Len returns the number of recorded ops; it is the index of the next op.
func (b *Buffer) Len() int { return len(b.ops) }

// Emit appends op and returns its index.
func (b *Buffer) Emit(op Op) int {
	idx := len(b.ops)
	switch op.Kind {
	case OpPrologue, OpEpilogue:
		b.frame = append(b.frame, idx)
	case OpJump, OpJumpIfZero, OpJumpIfNonZero:
		st := b.label(op.Label)
		st.refs = append(st.refs, idx)
	}
	b.ops = append(b.ops, op)
	return idx
}

func (b *Buffer) label(l Label) *labelState {
	if l < 0 || int(l) >= len(b.labels) {
		panic(fmt.Sprintf("unknown label %d", l))
	}
	return &b.labels[l]
}

// CreateLabel allocates an unbound label.
func (b *Buffer) CreateLabel() Label {
	b.labels = append(b.labels, labelState{})
	return Label(len(b.labels) - 1)
}

// BindLabel binds l to the current position.
func (b *Buffer) BindLabel(l Label) {
	st := b.label(l)
	if st.bound {
		panic(fmt.Sprintf("label %s already bound", l))
	}
	st.bound = true
	st.op = b.Emit(Op{Kind: OpBind, Label: l})
}

// LabelOp returns the index of the bind op of l.
func (b *Buffer) LabelOp(l Label) (int, bool) {
	st := b.label(l)
	return st.op, st.bound
}

// PatchFrameSize stores size in every prologue and epilogue.
func (b *Buffer) PatchFrameSize(size uint32) {
	for _, idx := range b.frame {
		b.ops[idx].Index = size
	}
}

// Finish checks that every referenced label is bound and returns the ops.
func (b *Buffer) Finish() []Op {
	for i, st := range b.labels {
		if !st.bound && len(st.refs) > 0 {
			panic(fmt.Sprintf("label %s used at op %d but never bound", Label(i), st.refs[0]))
		}
	}
	return b.ops
}

// Listing prints the recorded ops, one per line.
func (b *Buffer) Listing() string {
	var sb strings.Builder
	for i, op := range b.ops {
		fmt.Fprintf(&sb, "%04d  %s\n", i, b.arch.Format(op))
	}
	return sb.String()
}

// ---------------------------------------------------------------------------
// Emitters
// ---------------------------------------------------------------------------

func (b *Buffer) Prologue() int { return b.Emit(Op{Kind: OpPrologue}) }
func (b *Buffer) Epilogue() int { return b.Emit(Op{Kind: OpEpilogue}) }
func (b *Buffer) Ret() int      { return b.Emit(Op{Kind: OpRet}) }

// LoadImm loads an integer, boolean, char or null constant.
func (b *Buffer) LoadImm(t ty.Type, dst Reg, v int64) int {
	return b.Emit(Op{Kind: OpLoadImm, Type: t, Dst: dst.Any(), Imm: v})
}

// LoadFImm loads a floating point constant.
func (b *Buffer) LoadFImm(t ty.Type, dst FReg, v float64) int {
	return b.Emit(Op{Kind: OpLoadFImm, Type: t, Dst: dst.Any(), FImm: v})
}

// LoadString loads a reference to an interned string.
func (b *Buffer) LoadString(dst Reg, s string) int {
	return b.Emit(Op{Kind: OpLoadString, Type: ty.StringType, Dst: dst.Any(), Str: s})
}

// Copy moves src into dst. Copies of a register onto itself are dropped.
func (b *Buffer) Copy(t ty.Type, dst, src AnyReg) {
	if dst == src {
		return
	}
	b.Emit(Op{Kind: OpCopy, Type: t, Dst: dst, Src: src})
}

func (b *Buffer) Load(t ty.Type, dst AnyReg, m Mem) int {
	return b.Emit(Op{Kind: OpLoad, Type: t, Dst: dst, Mem: m})
}

func (b *Buffer) Store(t ty.Type, m Mem, src AnyReg) int {
	return b.Emit(Op{Kind: OpStore, Type: t, Src: src, Mem: m})
}

func (b *Buffer) Lea(dst Reg, m Mem) int {
	return b.Emit(Op{Kind: OpLea, Type: ty.PtrType, Dst: dst.Any(), Mem: m})
}

// Compute applies a typed bytecode operation: dst = lhs op rhs. Unary
// operations and conversions ignore rhs.
func (b *Buffer) Compute(op bytecode.Opcode, t ty.Type, dst, lhs, rhs AnyReg) int {
	return b.Emit(Op{Kind: OpCompute, Type: t, Compute: op, Dst: dst, Src: lhs, Rhs: rhs})
}

func (b *Buffer) Jump(l Label) int {
	return b.Emit(Op{Kind: OpJump, Label: l})
}

func (b *Buffer) JumpIfZero(r Reg, l Label) int {
	return b.Emit(Op{Kind: OpJumpIfZero, Type: ty.BoolType, Src: r.Any(), Label: l})
}

func (b *Buffer) JumpIfNonZero(r Reg, l Label) int {
	return b.Emit(Op{Kind: OpJumpIfNonZero, Type: ty.BoolType, Src: r.Any(), Label: l})
}

func (b *Buffer) Call(fct vm.FctID) int {
	return b.Emit(Op{Kind: OpCall, Fct: fct})
}

// VirtualCall dispatches through the vtable of the receiver in the first
// parameter register.
func (b *Buffer) VirtualCall(fct vm.FctID, vtableIndex uint32) int {
	return b.Emit(Op{Kind: OpVirtualCall, Fct: fct, Index: vtableIndex})
}

func (b *Buffer) Alloc(dst Reg, cls vm.ClassID, size uint32) int {
	return b.Emit(Op{Kind: OpAlloc, Type: ty.PtrType, Dst: dst.Any(), Class: cls, Index: size})
}

func (b *Buffer) AllocArray(dst Reg, cls vm.ClassID, length Reg) int {
	return b.Emit(Op{Kind: OpAllocArray, Type: ty.PtrType, Dst: dst.Any(), Class: cls, Src: length.Any()})
}

func (b *Buffer) LoadGlobal(t ty.Type, dst AnyReg, g vm.GlobalID) int {
	return b.Emit(Op{Kind: OpLoadGlobal, Type: t, Dst: dst, Global: g})
}

func (b *Buffer) StoreGlobal(t ty.Type, g vm.GlobalID, src AnyReg) int {
	return b.Emit(Op{Kind: OpStoreGlobal, Type: t, Src: src, Global: g})
}

func (b *Buffer) NilCheck(r Reg) int {
	return b.Emit(Op{Kind: OpNilCheck, Type: ty.PtrType, Src: r.Any()})
}

func (b *Buffer) BoundsCheck(array, index Reg) int {
	return b.Emit(Op{Kind: OpBoundsCheck, Type: ty.IntType, Src: array.Any(), Rhs: index.Any()})
}

func (b *Buffer) DivZeroCheck(t ty.Type, r Reg) int {
	return b.Emit(Op{Kind: OpDivZeroCheck, Type: t, Src: r.Any()})
}

func (b *Buffer) Assert(r Reg) int {
	return b.Emit(Op{Kind: OpAssert, Type: ty.BoolType, Src: r.Any()})
}

func (b *Buffer) InstanceOf(dst, obj Reg, cls vm.ClassID) int {
	return b.Emit(Op{Kind: OpInstanceOf, Type: ty.BoolType, Dst: dst.Any(), Src: obj.Any(), Class: cls})
}

func (b *Buffer) CheckedCast(obj Reg, cls vm.ClassID) int {
	return b.Emit(Op{Kind: OpCheckedCast, Type: ty.PtrType, Src: obj.Any(), Class: cls})
}

// StoreArg writes an outgoing argument that did not fit into registers to
// the idx-th stack argument slot.
func (b *Buffer) StoreArg(t ty.Type, idx uint32, src AnyReg) int {
	return b.Emit(Op{Kind: OpStoreArg, Type: t, Src: src, Index: idx})
}
