// Package ty describes the semantic types the code generators consume:
// their kind, their storage size and alignment, and whether the garbage
// collector has to see them.
package ty

import "fmt"

// PtrSize is the width of a managed reference in bytes.
const PtrSize = 8

// Kind identifies the representation of a value.
type Kind uint8

const (
	Unit Kind = iota
	Bool
	UInt8
	Char
	Int
	Int64
	Float
	Double
	Nil
	Ptr
	String
	Class
	Array
	Enum
	Tuple
)

var kindNames = [...]string{
	Unit:   "Unit",
	Bool:   "Bool",
	UInt8:  "UInt8",
	Char:   "Char",
	Int:    "Int",
	Int64:  "Int64",
	Float:  "Float",
	Double: "Double",
	Nil:    "Nil",
	Ptr:    "Ptr",
	String: "String",
	Class:  "Class",
	Array:  "Array",
	Enum:   "Enum",
	Tuple:  "Tuple",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// TupleID names an interned tuple shape.
type TupleID uint32

// Layouts answers size queries for composite shapes that are only known
// to the runtime registry.
type Layouts interface {
	TupleSize(id TupleID) uint32
	TupleAlign(id TupleID) uint32
}

// Type is a resolved semantic type. ID holds the class, enum or tuple id
// for those kinds; Elem holds the element kind of an array.
type Type struct {
	Kind Kind
	ID   uint32
	Elem Kind
}

// Predeclared scalar types.
var (
	UnitType   = Type{Kind: Unit}
	BoolType   = Type{Kind: Bool}
	UInt8Type  = Type{Kind: UInt8}
	CharType   = Type{Kind: Char}
	IntType    = Type{Kind: Int}
	Int64Type  = Type{Kind: Int64}
	FloatType  = Type{Kind: Float}
	DoubleType = Type{Kind: Double}
	NilType    = Type{Kind: Nil}
	PtrType    = Type{Kind: Ptr}
	StringType = Type{Kind: String}
)

// ClassOf returns the reference type of instances of a class.
func ClassOf(id uint32) Type { return Type{Kind: Class, ID: id} }

// EnumOf returns the type of an enum's values.
func EnumOf(id uint32) Type { return Type{Kind: Enum, ID: id} }

// TupleOf returns the type of an interned tuple shape.
func TupleOf(id TupleID) Type { return Type{Kind: Tuple, ID: uint32(id)} }

// ArrayOf returns the array type whose elements have elem's representation.
func ArrayOf(elem Type) Type {
	k := elem.Kind
	if elem.IsReference() {
		k = Ptr
	}
	return Type{Kind: Array, Elem: k}
}

// ElemType returns the element representation of an array type.
func (t Type) ElemType() Type {
	if t.Kind != Array {
		panic(fmt.Sprintf("ElemType on non-array type %s", t))
	}
	return Type{Kind: t.Elem}
}

// IsUnit reports whether t carries no value.
func (t Type) IsUnit() bool { return t.Kind == Unit }

// IsFloat reports whether t lives in floating point registers.
func (t Type) IsFloat() bool { return t.Kind == Float || t.Kind == Double }

// IsTuple reports whether t is a tuple shape.
func (t Type) IsTuple() bool { return t.Kind == Tuple }

// IsReference reports whether a value of t is a pointer the collector
// must visit.
func (t Type) IsReference() bool {
	switch t.Kind {
	case Nil, Ptr, String, Class, Array:
		return true
	}
	return false
}

// TupleID returns the shape id of a tuple type.
func (t Type) TupleID() (TupleID, bool) {
	if t.Kind != Tuple {
		return 0, false
	}
	return TupleID(t.ID), true
}

// Size returns the storage size of t in bytes.
func (t Type) Size(l Layouts) uint32 {
	switch t.Kind {
	case Unit:
		return 0
	case Bool, UInt8:
		return 1
	case Char, Int, Float, Enum:
		return 4
	case Int64, Double:
		return 8
	case Nil, Ptr, String, Class, Array:
		return PtrSize
	case Tuple:
		return l.TupleSize(TupleID(t.ID))
	}
	panic(fmt.Sprintf("size of unknown kind %s", t.Kind))
}

// Align returns the required alignment of t in bytes.
func (t Type) Align(l Layouts) uint32 {
	switch t.Kind {
	case Unit:
		return 1
	case Tuple:
		return l.TupleAlign(TupleID(t.ID))
	}
	return t.Size(l)
}

// String returns a readable name for t.
func (t Type) String() string {
	switch t.Kind {
	case Class, Enum, Tuple:
		return fmt.Sprintf("%s#%d", t.Kind, t.ID)
	case Array:
		return fmt.Sprintf("Array[%s]", t.Elem)
	}
	return t.Kind.String()
}

// AlignUp rounds v up to the next multiple of a.
func AlignUp(v, a uint32) uint32 {
	if a <= 1 {
		return v
	}
	return ((v + a - 1) / a) * a
}

// IsAligned reports whether v is a multiple of a.
func IsAligned(v, a uint32) bool {
	return a <= 1 || v%a == 0
}
