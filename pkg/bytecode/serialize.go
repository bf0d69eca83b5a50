package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chazu/dora/pkg/ast"
	"github.com/chazu/dora/pkg/ty"
)

// FormatVersion is the current encoded function format version.
// Increment when making incompatible changes to the format.
const FormatVersion uint16 = 1

// Magic bytes for encoded functions: "DRBC" (DoRa ByteCode)
var Magic = []byte{'D', 'R', 'B', 'C'}

// Marshal encodes fn into the portable DRBC container:
//
//	magic[4] version[2] name
//	registers: count[4] (kind[1] id[4] elem[1])...
//	arguments[4]
//	code: len[4] bytes
//	consts: count[4] (kind[1] payload)...
//	positions: count[4] (offset[4] line[4] column[4])...
//
// Strings are a 4-byte length followed by their bytes. Multi-byte
// integers are big-endian.
func Marshal(fn *Function) []byte {
	buf := make([]byte, 0, 16+len(fn.Name)+len(fn.Code)+6*len(fn.Registers)+16*len(fn.Consts))

	buf = append(buf, Magic...)
	buf = binary.BigEndian.AppendUint16(buf, FormatVersion)
	buf = appendString(buf, fn.Name)

	// Registers
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(fn.Registers)))
	for _, t := range fn.Registers {
		buf = append(buf, byte(t.Kind))
		buf = binary.BigEndian.AppendUint32(buf, t.ID)
		buf = append(buf, byte(t.Elem))
	}
	buf = binary.BigEndian.AppendUint32(buf, fn.Arguments)

	// Code
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(fn.Code)))
	buf = append(buf, fn.Code...)

	// Constants
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(fn.Consts)))
	for _, c := range fn.Consts {
		buf = append(buf, byte(c.Kind))
		switch c.Kind {
		case ConstKindFloat, ConstKindDouble:
			buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(c.Float))
		case ConstKindString:
			buf = appendString(buf, c.Str)
		default:
			buf = binary.BigEndian.AppendUint64(buf, uint64(c.Int))
		}
	}

	// Positions
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(fn.Positions)))
	for _, p := range fn.Positions {
		buf = binary.BigEndian.AppendUint32(buf, p.Offset)
		buf = binary.BigEndian.AppendUint32(buf, uint32(p.Pos.Line))
		buf = binary.BigEndian.AppendUint32(buf, uint32(p.Pos.Column))
	}

	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// decoder tracks the read position while unmarshaling.
type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) need(n int, what string) error {
	if d.pos+n > len(d.data) {
		return fmt.Errorf("unexpected end of bytecode reading %s at pos %d", what, d.pos)
	}
	return nil
}

func (d *decoder) u8(what string) (byte, error) {
	if err := d.need(1, what); err != nil {
		return 0, err
	}
	v := d.data[d.pos]
	d.pos++
	return v, nil
}

func (d *decoder) u32(what string) (uint32, error) {
	if err := d.need(4, what); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.data[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) u64(what string) (uint64, error) {
	if err := d.need(8, what); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.data[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *decoder) bytes(what string) ([]byte, error) {
	n, err := d.u32(what + " length")
	if err != nil {
		return nil, err
	}
	if err := d.need(int(n), what); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, d.data[d.pos:])
	d.pos += int(n)
	return b, nil
}

// Unmarshal decodes a function encoded by Marshal.
func Unmarshal(data []byte) (*Function, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("bytecode too short: need at least 6 bytes, got %d", len(data))
	}
	if string(data[0:4]) != string(Magic) {
		return nil, fmt.Errorf("invalid bytecode magic: expected %q, got %q", Magic, data[0:4])
	}
	if v := binary.BigEndian.Uint16(data[4:6]); v > FormatVersion {
		return nil, fmt.Errorf("bytecode version %d is newer than supported version %d", v, FormatVersion)
	}

	d := &decoder{data: data, pos: 6}
	fn := &Function{}

	name, err := d.bytes("function name")
	if err != nil {
		return nil, err
	}
	fn.Name = string(name)

	// Registers
	regCount, err := d.u32("register count")
	if err != nil {
		return nil, err
	}
	if err := d.need(int(regCount)*6, "registers"); err != nil {
		return nil, err
	}
	fn.Registers = make([]ty.Type, regCount)
	for i := range fn.Registers {
		kind, _ := d.u8("register kind")
		id, _ := d.u32("register id")
		elem, _ := d.u8("register element kind")
		fn.Registers[i] = ty.Type{Kind: ty.Kind(kind), ID: id, Elem: ty.Kind(elem)}
	}
	if fn.Arguments, err = d.u32("argument count"); err != nil {
		return nil, err
	}
	if fn.Arguments > regCount {
		return nil, fmt.Errorf("argument count %d exceeds register count %d", fn.Arguments, regCount)
	}

	// Code
	if fn.Code, err = d.bytes("code section"); err != nil {
		return nil, err
	}

	// Constants
	constCount, err := d.u32("constant count")
	if err != nil {
		return nil, err
	}
	fn.Consts = make([]ConstEntry, 0, min(int(constCount), len(data)))
	for i := uint32(0); i < constCount; i++ {
		what := fmt.Sprintf("constant %d", i)
		kind, err := d.u8(what)
		if err != nil {
			return nil, err
		}
		c := ConstEntry{Kind: ConstKind(kind)}
		switch c.Kind {
		case ConstKindFloat, ConstKindDouble:
			bits, err := d.u64(what)
			if err != nil {
				return nil, err
			}
			c.Float = math.Float64frombits(bits)
		case ConstKindString:
			s, err := d.bytes(what)
			if err != nil {
				return nil, err
			}
			c.Str = string(s)
		case ConstKindChar, ConstKindInt, ConstKindInt64:
			v, err := d.u64(what)
			if err != nil {
				return nil, err
			}
			c.Int = int64(v)
		default:
			return nil, fmt.Errorf("unknown constant kind %d for constant %d", kind, i)
		}
		fn.Consts = append(fn.Consts, c)
	}

	// Positions
	posCount, err := d.u32("position count")
	if err != nil {
		return nil, err
	}
	if err := d.need(int(posCount)*12, "positions"); err != nil {
		return nil, err
	}
	fn.Positions = make([]PositionEntry, posCount)
	for i := range fn.Positions {
		off, _ := d.u32("position offset")
		line, _ := d.u32("position line")
		col, _ := d.u32("position column")
		fn.Positions[i] = PositionEntry{Offset: off, Pos: ast.Position{Line: int(line), Column: int(col)}}
	}

	if d.pos != len(data) {
		return nil, fmt.Errorf("%d trailing bytes after function %q", len(data)-d.pos, fn.Name)
	}
	return fn, nil
}
