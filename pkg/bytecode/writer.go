package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chazu/dora/pkg/ast"
	"github.com/chazu/dora/pkg/ty"
	"github.com/chazu/dora/vm"
)

// Label is a jump target inside a Writer.
type Label int

type jumpRef struct {
	start   int // offset of the jump instruction
	operand int // offset of the distance operand
	wide    bool
}

type labelState struct {
	bound  bool
	offset int
	refs   []jumpRef
}

// Writer encodes instructions into a Function. Operands are single bytes
// unless one of them exceeds 255, in which case the instruction is
// prefixed with OpWide and every operand takes four little-endian bytes.
type Writer struct {
	name      string
	code      []byte
	consts    []ConstEntry
	constIdx  map[ConstEntry]uint32
	registers []ty.Type
	arguments uint32
	labels    []labelState
	positions []PositionEntry

	pendingPos *ast.Position
}

// NewWriter creates an empty writer for the named function.
func NewWriter(name string) *Writer {
	return &Writer{
		name:     name,
		code:     make([]byte, 0, 64),
		constIdx: make(map[ConstEntry]uint32),
	}
}

// AddRegister appends a register of type t and returns it.
func (w *Writer) AddRegister(t ty.Type) Register {
	w.registers = append(w.registers, t)
	return Register(len(w.registers) - 1)
}

// SetArguments records how many leading registers hold parameters.
func (w *Writer) SetArguments(n uint32) {
	w.arguments = n
}

// Offset returns the offset the next instruction will be written at.
func (w *Writer) Offset() int {
	return len(w.code)
}

// SetPosition attaches pos to the next emitted instruction.
func (w *Writer) SetPosition(pos ast.Position) {
	w.pendingPos = &pos
}

// AddConst adds an entry to the constant pool and returns its index.
// If the entry already exists, returns the existing index.
func (w *Writer) AddConst(c ConstEntry) uint32 {
	if idx, ok := w.constIdx[c]; ok {
		return idx
	}
	idx := uint32(len(w.consts))
	w.consts = append(w.consts, c)
	w.constIdx[c] = idx
	return idx
}

// emit appends op with its operands and returns the instruction offset.
func (w *Writer) emit(op Opcode, operands ...uint32) int {
	if len(operands) != op.Format().Operands() {
		panic(fmt.Sprintf("%s takes %d operands, got %d", op, op.Format().Operands(), len(operands)))
	}

	start := len(w.code)
	if w.pendingPos != nil {
		w.positions = append(w.positions, PositionEntry{Offset: uint32(start), Pos: *w.pendingPos})
		w.pendingPos = nil
	}

	wide := false
	for _, v := range operands {
		if v > math.MaxUint8 {
			wide = true
			break
		}
	}

	if wide {
		w.code = append(w.code, byte(OpWide), byte(op))
		for _, v := range operands {
			w.code = binary.LittleEndian.AppendUint32(w.code, v)
		}
	} else {
		w.code = append(w.code, byte(op))
		for _, v := range operands {
			w.code = append(w.code, byte(v))
		}
	}
	return start
}

// ---------------------------------------------------------------------------
// Typed emitters
// ---------------------------------------------------------------------------

// EmitRegs emits an instruction whose operands are registers only.
func (w *Writer) EmitRegs(op Opcode, regs ...Register) {
	switch op.Format() {
	case FmtNone, FmtR, FmtRR, FmtRRR:
	default:
		panic(fmt.Sprintf("%s does not take register-only operands", op))
	}
	operands := make([]uint32, len(regs))
	for i, r := range regs {
		operands[i] = uint32(r)
	}
	w.emit(op, operands...)
}

// EmitConstUInt8 loads an inline byte.
func (w *Writer) EmitConstUInt8(r Register, v uint8) {
	w.emit(OpConstUInt8, uint32(r), uint32(v))
}

// EmitConstChar loads a character from the pool.
func (w *Writer) EmitConstChar(r Register, v rune) {
	idx := w.AddConst(ConstEntry{Kind: ConstKindChar, Int: int64(v)})
	w.emit(OpConstChar, uint32(r), idx)
}

// EmitConstInt loads a 32-bit integer from the pool.
func (w *Writer) EmitConstInt(r Register, v int32) {
	idx := w.AddConst(ConstEntry{Kind: ConstKindInt, Int: int64(v)})
	w.emit(OpConstInt, uint32(r), idx)
}

// EmitConstInt64 loads a 64-bit integer from the pool.
func (w *Writer) EmitConstInt64(r Register, v int64) {
	idx := w.AddConst(ConstEntry{Kind: ConstKindInt64, Int: v})
	w.emit(OpConstInt64, uint32(r), idx)
}

// EmitConstFloat loads a 32-bit float from the pool.
func (w *Writer) EmitConstFloat(r Register, v float32) {
	idx := w.AddConst(ConstEntry{Kind: ConstKindFloat, Float: float64(v)})
	w.emit(OpConstFloat, uint32(r), idx)
}

// EmitConstDouble loads a 64-bit float from the pool.
func (w *Writer) EmitConstDouble(r Register, v float64) {
	idx := w.AddConst(ConstEntry{Kind: ConstKindDouble, Float: v})
	w.emit(OpConstDouble, uint32(r), idx)
}

// EmitConstString loads a string from the pool.
func (w *Writer) EmitConstString(r Register, v string) {
	idx := w.AddConst(ConstEntry{Kind: ConstKindString, Str: v})
	w.emit(OpConstString, uint32(r), idx)
}

// EmitField emits a field load or store.
func (w *Writer) EmitField(op Opcode, r, obj Register, cls vm.ClassID, field vm.FieldID) {
	w.emit(op, uint32(r), uint32(obj), uint32(cls), uint32(field))
}

// EmitGlobal emits a global load or store.
func (w *Writer) EmitGlobal(op Opcode, r Register, g vm.GlobalID) {
	w.emit(op, uint32(r), uint32(g))
}

// EmitNewObject allocates an instance of cls into dest.
func (w *Writer) EmitNewObject(dest Register, cls vm.ClassID) {
	w.emit(OpNewObject, uint32(dest), uint32(cls))
}

// EmitNewArray allocates an array of cls with length elements.
func (w *Writer) EmitNewArray(dest Register, cls vm.ClassID, length Register) {
	w.emit(OpNewArray, uint32(dest), uint32(cls), uint32(length))
}

// EmitInstanceOf tests src against cls.
func (w *Writer) EmitInstanceOf(dest, src Register, cls vm.ClassID) {
	w.emit(OpInstanceOf, uint32(dest), uint32(src), uint32(cls))
}

// EmitCheckedCast traps unless r holds an instance of cls.
func (w *Writer) EmitCheckedCast(r Register, cls vm.ClassID) {
	w.emit(OpCheckedCast, uint32(r), uint32(cls))
}

// EmitMovTuple copies a tuple value.
func (w *Writer) EmitMovTuple(dest, src Register, tuple ty.TupleID) {
	w.emit(OpMovTuple, uint32(dest), uint32(src), uint32(tuple))
}

// EmitTupleElement loads or stores element idx of the tuple in t.
func (w *Writer) EmitTupleElement(op Opcode, r, t Register, tuple ty.TupleID, idx uint32) {
	w.emit(op, uint32(r), uint32(t), uint32(tuple), idx)
}

// EmitInvoke calls fct with argc pushed registers, storing the result.
func (w *Writer) EmitInvoke(op Opcode, dest Register, fct vm.FctID, argc uint32) {
	w.emit(op, uint32(dest), uint32(fct), argc)
}

// EmitInvokeVoid calls fct with argc pushed registers.
func (w *Writer) EmitInvokeVoid(op Opcode, fct vm.FctID, argc uint32) {
	w.emit(op, uint32(fct), argc)
}

// ---------------------------------------------------------------------------
// Labels and jumps
// ---------------------------------------------------------------------------

// NewLabel creates an unbound label.
func (w *Writer) NewLabel() Label {
	w.labels = append(w.labels, labelState{})
	return Label(len(w.labels) - 1)
}

// DefineLabel creates a label bound to the current offset.
func (w *Writer) DefineLabel() Label {
	l := w.NewLabel()
	w.BindLabel(l)
	return l
}

// BindLabel binds l to the current offset and patches every forward jump
// to it. A narrow jump whose distance does not fit a byte is rewritten to
// its constant-pool variant.
func (w *Writer) BindLabel(l Label) {
	st := &w.labels[l]
	if st.bound {
		panic("label already bound")
	}
	st.bound = true
	st.offset = len(w.code)

	for _, ref := range st.refs {
		dist := uint32(st.offset - ref.start)
		switch {
		case ref.wide:
			binary.LittleEndian.PutUint32(w.code[ref.operand:], dist)
		case dist <= math.MaxUint8:
			w.code[ref.operand] = byte(dist)
		default:
			idx := w.AddConst(ConstEntry{Kind: ConstKindInt, Int: int64(dist)})
			if idx > math.MaxUint8 {
				panic(fmt.Sprintf("constant pool index %d does not fit a narrow jump", idx))
			}
			op := Opcode(w.code[ref.start])
			w.code[ref.start] = byte(op.ConstVariant())
			w.code[ref.operand] = byte(idx)
		}
	}
	st.refs = nil
}

func (w *Writer) emitForward(op Opcode, l Label, operands ...uint32) {
	if w.labels[l].bound {
		panic(fmt.Sprintf("%s to already bound label %d", op, l))
	}
	start := w.emit(op, append(operands, 0)...)
	wide := w.code[start] == byte(OpWide)
	operand := len(w.code) - 1
	if wide {
		operand = len(w.code) - 4
	}
	w.labels[l].refs = append(w.labels[l].refs, jumpRef{start: start, operand: operand, wide: wide})
}

// EmitJump emits a forward jump to l.
func (w *Writer) EmitJump(l Label) {
	w.emitForward(OpJump, l)
}

// EmitJumpIfFalse emits a forward jump to l taken when cond is false.
func (w *Writer) EmitJumpIfFalse(cond Register, l Label) {
	w.emitForward(OpJumpIfFalse, l, uint32(cond))
}

// EmitJumpIfTrue emits a forward jump to l taken when cond is true.
func (w *Writer) EmitJumpIfTrue(cond Register, l Label) {
	w.emitForward(OpJumpIfTrue, l, uint32(cond))
}

// EmitJumpLoop emits a backward jump to the bound label l.
func (w *Writer) EmitJumpLoop(l Label) {
	st := w.labels[l]
	if !st.bound {
		panic(fmt.Sprintf("JumpLoop to unbound label %d", l))
	}
	w.emit(OpJumpLoop, uint32(len(w.code)-st.offset))
}

// ---------------------------------------------------------------------------
// Result
// ---------------------------------------------------------------------------

// Generate returns the finished function. Every label with pending jumps
// must have been bound.
func (w *Writer) Generate() *Function {
	for i, st := range w.labels {
		if !st.bound && len(st.refs) > 0 {
			panic(fmt.Sprintf("label %d used but never bound", i))
		}
	}
	return &Function{
		Name:      w.name,
		Code:      w.code,
		Consts:    w.consts,
		Registers: w.registers,
		Arguments: w.arguments,
		Positions: w.positions,
	}
}
