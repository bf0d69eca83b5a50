package bytecode

import (
	"encoding/binary"
	"fmt"
)

// Instruction is one raw decoded instruction: its opcode, the offset of
// its first byte (the wide prefix, if any) and its operands in order.
type Instruction struct {
	Op       Opcode
	Offset   int
	Wide     bool
	Operands [4]uint32
}

// Decode reads the instruction at pos and returns it together with the
// offset of the next one. Truncated input and unknown opcodes panic.
func Decode(code []byte, pos int) (Instruction, int) {
	in := Instruction{Offset: pos}
	if pos >= len(code) {
		panic(fmt.Sprintf("bytecode underflow at offset %d", pos))
	}

	op := Opcode(code[pos])
	pos++
	if op == OpWide {
		in.Wide = true
		if pos >= len(code) {
			panic(fmt.Sprintf("bytecode underflow at offset %d", pos))
		}
		op = Opcode(code[pos])
		pos++
	}
	if !op.IsValid() || op == OpWide {
		panic(fmt.Sprintf("unknown opcode 0x%02X at offset %d", byte(op), in.Offset))
	}
	in.Op = op

	n := op.Format().Operands()
	for i := 0; i < n; i++ {
		if in.Wide {
			if pos+4 > len(code) {
				panic(fmt.Sprintf("bytecode underflow at offset %d", pos))
			}
			in.Operands[i] = binary.LittleEndian.Uint32(code[pos:])
			pos += 4
		} else {
			if pos >= len(code) {
				panic(fmt.Sprintf("bytecode underflow at offset %d", pos))
			}
			in.Operands[i] = uint32(code[pos])
			pos++
		}
	}
	return in, pos
}

// Reader walks an encoded instruction stream front to back.
type Reader struct {
	code []byte
	pos  int
}

// NewReader creates a reader over code.
func NewReader(code []byte) *Reader {
	return &Reader{code: code}
}

// HasMore reports whether instructions remain.
func (r *Reader) HasMore() bool {
	return r.pos < len(r.code)
}

// Offset returns the offset of the next instruction.
func (r *Reader) Offset() int {
	return r.pos
}

// Next decodes the next instruction.
func (r *Reader) Next() Instruction {
	in, next := Decode(r.code, r.pos)
	r.pos = next
	return in
}

// Visitor receives decoded instructions in stream order.
type Visitor interface {
	Visit(in Instruction)
}

// Walk decodes code and hands every instruction to v.
func Walk(code []byte, v Visitor) {
	r := NewReader(code)
	for r.HasMore() {
		v.Visit(r.Next())
	}
}

// Instructions decodes every instruction in code.
func Instructions(code []byte) []Instruction {
	var out []Instruction
	r := NewReader(code)
	for r.HasMore() {
		out = append(out, r.Next())
	}
	return out
}
