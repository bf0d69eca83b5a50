package bytecode

import (
	"fmt"

	"github.com/chazu/dora/pkg/ast"
	"github.com/chazu/dora/pkg/ty"
)

// Typed opcode families are laid out in the same order of widths:
// Bool, UInt8, Char, Int, Int64, Float, Double, Ptr.
const (
	widthBool = iota
	widthUInt8
	widthChar
	widthInt
	widthInt64
	widthFloat
	widthDouble
	widthPtr
)

func width(t ty.Type) int {
	switch t.Kind {
	case ty.Bool:
		return widthBool
	case ty.UInt8:
		return widthUInt8
	case ty.Char:
		return widthChar
	case ty.Int, ty.Enum:
		return widthInt
	case ty.Int64:
		return widthInt64
	case ty.Float:
		return widthFloat
	case ty.Double:
		return widthDouble
	}
	if t.IsReference() {
		return widthPtr
	}
	panic(fmt.Sprintf("no typed opcode for %s", t))
}

// MovOp returns the move for values of t.
func MovOp(t ty.Type) Opcode { return OpMovBool + Opcode(width(t)) }

// RetOp returns the return for values of t; Unit returns RetVoid.
func RetOp(t ty.Type) Opcode {
	if t.IsUnit() {
		return OpRetVoid
	}
	return OpRetBool + Opcode(width(t))
}

// LoadFieldOp returns the field load for t.
func LoadFieldOp(t ty.Type) Opcode { return OpLoadFieldBool + Opcode(width(t)) }

// StoreFieldOp returns the field store for t.
func StoreFieldOp(t ty.Type) Opcode { return OpStoreFieldBool + Opcode(width(t)) }

// LoadGlobalOp returns the global load for t.
func LoadGlobalOp(t ty.Type) Opcode { return OpLoadGlobalBool + Opcode(width(t)) }

// StoreGlobalOp returns the global store for t.
func StoreGlobalOp(t ty.Type) Opcode { return OpStoreGlobalBool + Opcode(width(t)) }

// LoadArrayOp returns the element load for t.
func LoadArrayOp(t ty.Type) Opcode { return OpLoadArrayBool + Opcode(width(t)) }

// StoreArrayOp returns the element store for t.
func StoreArrayOp(t ty.Type) Opcode { return OpStoreArrayBool + Opcode(width(t)) }

// InvokeOp returns the call opcode for the dispatch kind and result type.
// A Unit result selects the Void variant.
func InvokeOp(kind ast.CallKind, ret ty.Type) Opcode {
	var base Opcode
	switch kind {
	case ast.CallStatic:
		base = OpInvokeStaticVoid
	case ast.CallDirect:
		base = OpInvokeDirectVoid
	case ast.CallVirtual:
		base = OpInvokeVirtualVoid
	default:
		panic(fmt.Sprintf("unknown call kind %d", kind))
	}
	if ret.IsUnit() {
		return base
	}
	return base + 1 + Opcode(width(ret))
}

var arithOps = map[ast.BinOp][4]Opcode{ // Int, Int64, Float, Double
	ast.Add: {OpAddInt, OpAddInt64, OpAddFloat, OpAddDouble},
	ast.Sub: {OpSubInt, OpSubInt64, OpSubFloat, OpSubDouble},
	ast.Mul: {OpMulInt, OpMulInt64, OpMulFloat, OpMulDouble},
	ast.Div: {OpDivInt, OpDivInt64, OpDivFloat, OpDivDouble},
}

var intOps = map[ast.BinOp][2]Opcode{ // Int, Int64
	ast.Mod:    {OpModInt, OpModInt64},
	ast.BitAnd: {OpAndInt, OpAndInt64},
	ast.BitOr:  {OpOrInt, OpOrInt64},
	ast.BitXor: {OpXorInt, OpXorInt64},
	ast.Shl:    {OpShlInt, OpShlInt64},
	ast.Shr:    {OpShrInt, OpShrInt64},
	ast.Sar:    {OpSarInt, OpSarInt64},
	ast.Rol:    {OpRolInt, OpRolInt64},
	ast.Ror:    {OpRorInt, OpRorInt64},
}

// Comparison families, each ordered Eq, Ne, Gt, Ge, Lt, Le.
var cmpBase = map[ty.Kind]Opcode{
	ty.UInt8:  OpTestEqUInt8,
	ty.Char:   OpTestEqChar,
	ty.Int:    OpTestEqInt,
	ty.Int64:  OpTestEqInt64,
	ty.Float:  OpTestEqFloat,
	ty.Double: OpTestEqDouble,
}

var cmpOffset = map[ast.BinOp]Opcode{
	ast.Eq: 0, ast.Ne: 1, ast.Gt: 2, ast.Ge: 3, ast.Lt: 4, ast.Le: 5,
}

// BinaryOp returns the opcode computing op on operands of type t. The
// short-circuit operators have no opcode.
func BinaryOp(op ast.BinOp, t ty.Type) Opcode {
	switch {
	case op == ast.Is:
		return OpTestEqPtr
	case op == ast.IsNot:
		return OpTestNePtr
	case op.IsComparison():
		return compareOp(op, t)
	}

	if ops, ok := arithOps[op]; ok {
		switch t.Kind {
		case ty.Int:
			return ops[0]
		case ty.Int64:
			return ops[1]
		case ty.Float:
			return ops[2]
		case ty.Double:
			return ops[3]
		}
	}
	if ops, ok := intOps[op]; ok {
		switch t.Kind {
		case ty.Int:
			return ops[0]
		case ty.Int64:
			return ops[1]
		}
	}
	panic(fmt.Sprintf("no opcode for %s on %s", op, t))
}

func compareOp(op ast.BinOp, t ty.Type) Opcode {
	eqOnly := func(eq, ne Opcode) Opcode {
		switch op {
		case ast.Eq:
			return eq
		case ast.Ne:
			return ne
		}
		panic(fmt.Sprintf("no ordering on %s", t))
	}

	switch {
	case t.Kind == ty.Bool:
		return eqOnly(OpTestEqBool, OpTestNeBool)
	case t.Kind == ty.Enum:
		return eqOnly(OpTestEqEnum, OpTestNeEnum)
	case t.IsReference():
		return eqOnly(OpTestEqPtr, OpTestNePtr)
	}
	base, ok := cmpBase[t.Kind]
	if !ok {
		panic(fmt.Sprintf("no comparison on %s", t))
	}
	return base + cmpOffset[op]
}

// UnaryOp returns the opcode applying op to a value of type t.
func UnaryOp(op ast.UnOp, t ty.Type) Opcode {
	switch op {
	case ast.Neg:
		switch t.Kind {
		case ty.Int:
			return OpNegInt
		case ty.Int64:
			return OpNegInt64
		case ty.Float:
			return OpNegFloat
		case ty.Double:
			return OpNegDouble
		}
	case ast.Not:
		switch t.Kind {
		case ty.Bool:
			return OpNotBool
		case ty.Int:
			return OpNotInt
		case ty.Int64:
			return OpNotInt64
		}
	}
	panic(fmt.Sprintf("no unary opcode for %d on %s", op, t))
}

type convKey struct {
	mode     ast.ConvMode
	from, to ty.Kind
}

var convOps = map[convKey]Opcode{
	{ast.Reinterpret, ty.Float, ty.Int}:    OpReinterpretFloatAsInt,
	{ast.Reinterpret, ty.Int, ty.Float}:    OpReinterpretIntAsFloat,
	{ast.Reinterpret, ty.Double, ty.Int64}: OpReinterpretDoubleAsInt64,
	{ast.Reinterpret, ty.Int64, ty.Double}: OpReinterpretInt64AsDouble,

	{ast.Numeric, ty.UInt8, ty.Char}:   OpExtendByteToChar,
	{ast.Numeric, ty.UInt8, ty.Int}:    OpExtendByteToInt,
	{ast.Numeric, ty.UInt8, ty.Int64}:  OpExtendByteToInt64,
	{ast.Numeric, ty.Int, ty.Int64}:    OpExtendIntToInt64,
	{ast.Numeric, ty.Char, ty.Int64}:   OpExtendCharToInt64,
	{ast.Numeric, ty.Char, ty.Int}:     OpCastCharToInt,
	{ast.Numeric, ty.Int, ty.UInt8}:    OpCastIntToUInt8,
	{ast.Numeric, ty.Int, ty.Char}:     OpCastIntToChar,
	{ast.Numeric, ty.Int64, ty.UInt8}:  OpCastInt64ToUInt8,
	{ast.Numeric, ty.Int64, ty.Char}:   OpCastInt64ToChar,
	{ast.Numeric, ty.Int64, ty.Int}:    OpCastInt64ToInt,
	{ast.Numeric, ty.Int, ty.Float}:    OpConvertIntToFloat,
	{ast.Numeric, ty.Int, ty.Double}:   OpConvertIntToDouble,
	{ast.Numeric, ty.Int64, ty.Float}:  OpConvertInt64ToFloat,
	{ast.Numeric, ty.Int64, ty.Double}: OpConvertInt64ToDouble,
	{ast.Numeric, ty.Float, ty.Int}:    OpTruncateFloatToInt,
	{ast.Numeric, ty.Float, ty.Int64}:  OpTruncateFloatToInt64,
	{ast.Numeric, ty.Double, ty.Int}:   OpTruncateDoubleToInt,
	{ast.Numeric, ty.Double, ty.Int64}: OpTruncateDoubleToInt64,
}

// ConvOp returns the conversion opcode from one type to another.
func ConvOp(mode ast.ConvMode, from, to ty.Type) Opcode {
	op, ok := convOps[convKey{mode, from.Kind, to.Kind}]
	if !ok {
		panic(fmt.Sprintf("no conversion from %s to %s", from, to))
	}
	return op
}
