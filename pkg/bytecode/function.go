package bytecode

import (
	"fmt"
	"sort"

	"github.com/chazu/dora/pkg/ast"
	"github.com/chazu/dora/pkg/ty"
)

// ConstKind tags a constant pool entry.
type ConstKind uint8

const (
	ConstKindChar ConstKind = iota
	ConstKindInt
	ConstKindInt64
	ConstKindFloat
	ConstKindDouble
	ConstKindString
)

var constKindNames = [...]string{
	ConstKindChar:   "Char",
	ConstKindInt:    "Int",
	ConstKindInt64:  "Int64",
	ConstKindFloat:  "Float",
	ConstKindDouble: "Double",
	ConstKindString: "String",
}

// String returns the tag name.
func (k ConstKind) String() string {
	if int(k) < len(constKindNames) {
		return constKindNames[k]
	}
	return fmt.Sprintf("ConstKind(%d)", k)
}

// ConstEntry is one tagged constant pool entry. Integer kinds (Char, Int,
// Int64) use Int; Float and Double use Float.
type ConstEntry struct {
	Kind  ConstKind
	Int   int64
	Float float64
	Str   string
}

// String formats the entry for listings.
func (c ConstEntry) String() string {
	switch c.Kind {
	case ConstKindChar:
		return fmt.Sprintf("Char %q", rune(c.Int))
	case ConstKindFloat, ConstKindDouble:
		return fmt.Sprintf("%s %g", c.Kind, c.Float)
	case ConstKindString:
		return fmt.Sprintf("String %q", c.Str)
	}
	return fmt.Sprintf("%s %d", c.Kind, c.Int)
}

// PositionEntry maps the offset of a trapping or calling instruction to
// its source position.
type PositionEntry struct {
	Offset uint32
	Pos    ast.Position
}

// Function is the encoded, self-contained bytecode of one function: the
// portable unit that is cached and replayed by Build.
type Function struct {
	Name      string
	Code      []byte
	Consts    []ConstEntry
	Registers []ty.Type // type of each register
	Arguments uint32    // registers r0..Arguments-1 hold the parameters
	Positions []PositionEntry
}

// RegisterCount returns the size of the register file.
func (f *Function) RegisterCount() int {
	return len(f.Registers)
}

// Const returns the constant pool entry at idx.
func (f *Function) Const(idx uint32) ConstEntry {
	if int(idx) >= len(f.Consts) {
		panic(fmt.Sprintf("constant pool index %d out of range (%d entries)", idx, len(f.Consts)))
	}
	return f.Consts[idx]
}

func (f *Function) constOf(idx uint32, kind ConstKind) ConstEntry {
	c := f.Const(idx)
	if c.Kind != kind {
		panic(fmt.Sprintf("constant pool entry %d is %s, not %s", idx, c.Kind, kind))
	}
	return c
}

// LookupChar returns the Char constant at idx.
func (f *Function) LookupChar(idx uint32) rune { return rune(f.constOf(idx, ConstKindChar).Int) }

// LookupInt returns the Int constant at idx.
func (f *Function) LookupInt(idx uint32) int32 { return int32(f.constOf(idx, ConstKindInt).Int) }

// LookupInt64 returns the Int64 constant at idx.
func (f *Function) LookupInt64(idx uint32) int64 { return f.constOf(idx, ConstKindInt64).Int }

// LookupFloat returns the Float constant at idx.
func (f *Function) LookupFloat(idx uint32) float32 {
	return float32(f.constOf(idx, ConstKindFloat).Float)
}

// LookupDouble returns the Double constant at idx.
func (f *Function) LookupDouble(idx uint32) float64 { return f.constOf(idx, ConstKindDouble).Float }

// LookupString returns the String constant at idx.
func (f *Function) LookupString(idx uint32) string { return f.constOf(idx, ConstKindString).Str }

// PositionAt returns the source position recorded for the instruction at
// offset.
func (f *Function) PositionAt(offset uint32) (ast.Position, bool) {
	i := sort.Search(len(f.Positions), func(i int) bool {
		return f.Positions[i].Offset >= offset
	})
	if i < len(f.Positions) && f.Positions[i].Offset == offset {
		return f.Positions[i].Pos, true
	}
	return ast.Position{}, false
}
