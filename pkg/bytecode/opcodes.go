package bytecode

import "fmt"

// Opcode represents a register-based bytecode instruction. Every opcode
// that produces a value is typed by its suffix; the generator picks the
// typed variant from static type information.
type Opcode byte

const (
	// ========================================================================
	// Arithmetic
	// ========================================================================

	OpAddInt Opcode = iota
	OpAddInt64
	OpAddFloat
	OpAddDouble
	OpSubInt
	OpSubInt64
	OpSubFloat
	OpSubDouble
	OpNegInt
	OpNegInt64
	OpNegFloat
	OpNegDouble
	OpMulInt
	OpMulInt64
	OpMulFloat
	OpMulDouble
	OpDivInt // traps on zero divisor
	OpDivInt64
	OpDivFloat
	OpDivDouble
	OpModInt // traps on zero divisor
	OpModInt64

	// ========================================================================
	// Bitwise and logical
	// ========================================================================

	OpAndInt
	OpAndInt64
	OpOrInt
	OpOrInt64
	OpXorInt
	OpXorInt64
	OpNotBool
	OpNotInt
	OpNotInt64
	OpShlInt
	OpShrInt
	OpSarInt
	OpShlInt64
	OpShrInt64
	OpSarInt64
	OpRolInt
	OpRorInt
	OpRolInt64
	OpRorInt64

	// ========================================================================
	// Conversions
	// ========================================================================

	OpReinterpretFloatAsInt
	OpReinterpretIntAsFloat
	OpReinterpretDoubleAsInt64
	OpReinterpretInt64AsDouble
	OpExtendByteToChar
	OpExtendByteToInt
	OpExtendByteToInt64
	OpExtendIntToInt64
	OpExtendCharToInt64
	OpCastCharToInt
	OpCastIntToUInt8
	OpCastIntToChar
	OpCastInt64ToUInt8
	OpCastInt64ToChar
	OpCastInt64ToInt
	OpConvertIntToFloat
	OpConvertIntToDouble
	OpConvertInt64ToFloat
	OpConvertInt64ToDouble
	OpTruncateFloatToInt
	OpTruncateFloatToInt64
	OpTruncateDoubleToInt
	OpTruncateDoubleToInt64

	// ========================================================================
	// Type tests
	// ========================================================================

	OpInstanceOf  // dest, src, class
	OpCheckedCast // reg, class; traps on failure

	// ========================================================================
	// Moves
	// ========================================================================

	OpMovBool
	OpMovUInt8
	OpMovChar
	OpMovInt
	OpMovInt64
	OpMovFloat
	OpMovDouble
	OpMovPtr
	OpMovTuple // dest, src, tuple

	// ========================================================================
	// Tuples
	// ========================================================================

	OpLoadTupleElement  // dest, tuple reg, tuple, idx
	OpStoreTupleElement // src, tuple reg, tuple, idx

	// ========================================================================
	// Fields: reg, obj, class, field
	// ========================================================================

	OpLoadFieldBool
	OpLoadFieldUInt8
	OpLoadFieldChar
	OpLoadFieldInt
	OpLoadFieldInt64
	OpLoadFieldFloat
	OpLoadFieldDouble
	OpLoadFieldPtr
	OpStoreFieldBool
	OpStoreFieldUInt8
	OpStoreFieldChar
	OpStoreFieldInt
	OpStoreFieldInt64
	OpStoreFieldFloat
	OpStoreFieldDouble
	OpStoreFieldPtr

	// ========================================================================
	// Globals: reg, global
	// ========================================================================

	OpLoadGlobalBool
	OpLoadGlobalUInt8
	OpLoadGlobalChar
	OpLoadGlobalInt
	OpLoadGlobalInt64
	OpLoadGlobalFloat
	OpLoadGlobalDouble
	OpLoadGlobalPtr
	OpStoreGlobalBool
	OpStoreGlobalUInt8
	OpStoreGlobalChar
	OpStoreGlobalInt
	OpStoreGlobalInt64
	OpStoreGlobalFloat
	OpStoreGlobalDouble
	OpStoreGlobalPtr

	// ========================================================================
	// Constants
	// ========================================================================

	OpPushRegister
	OpConstNil
	OpConstTrue
	OpConstFalse
	OpConstZeroUInt8
	OpConstZeroChar
	OpConstZeroInt
	OpConstZeroInt64
	OpConstZeroFloat
	OpConstZeroDouble
	OpConstUInt8 // reg, inline byte
	OpConstChar  // reg, pool index
	OpConstInt
	OpConstInt64
	OpConstFloat
	OpConstDouble
	OpConstString

	// ========================================================================
	// Comparisons: dest, lhs, rhs
	// ========================================================================

	OpTestEqPtr
	OpTestNePtr
	OpTestEqBool
	OpTestNeBool
	OpTestEqUInt8
	OpTestNeUInt8
	OpTestGtUInt8
	OpTestGeUInt8
	OpTestLtUInt8
	OpTestLeUInt8
	OpTestEqChar
	OpTestNeChar
	OpTestGtChar
	OpTestGeChar
	OpTestLtChar
	OpTestLeChar
	OpTestEqEnum
	OpTestNeEnum
	OpTestEqInt
	OpTestNeInt
	OpTestGtInt
	OpTestGeInt
	OpTestLtInt
	OpTestLeInt
	OpTestEqInt64
	OpTestNeInt64
	OpTestGtInt64
	OpTestGeInt64
	OpTestLtInt64
	OpTestLeInt64
	OpTestEqFloat
	OpTestNeFloat
	OpTestGtFloat
	OpTestGeFloat
	OpTestLtFloat
	OpTestLeFloat
	OpTestEqDouble
	OpTestNeDouble
	OpTestGtDouble
	OpTestGeDouble
	OpTestLtDouble
	OpTestLeDouble

	// ========================================================================
	// Control flow
	// ========================================================================

	OpAssert
	OpJumpLoop         // backward distance
	OpJump             // forward distance
	OpJumpConst        // pool index of the forward distance
	OpJumpIfFalse      // reg, forward distance
	OpJumpIfFalseConst // reg, pool index
	OpJumpIfTrue
	OpJumpIfTrueConst

	// ========================================================================
	// Calls: [dest,] fct, argument count
	// ========================================================================

	OpInvokeDirectVoid
	OpInvokeDirectBool
	OpInvokeDirectUInt8
	OpInvokeDirectChar
	OpInvokeDirectInt
	OpInvokeDirectInt64
	OpInvokeDirectFloat
	OpInvokeDirectDouble
	OpInvokeDirectPtr
	OpInvokeVirtualVoid
	OpInvokeVirtualBool
	OpInvokeVirtualUInt8
	OpInvokeVirtualChar
	OpInvokeVirtualInt
	OpInvokeVirtualInt64
	OpInvokeVirtualFloat
	OpInvokeVirtualDouble
	OpInvokeVirtualPtr
	OpInvokeStaticVoid
	OpInvokeStaticBool
	OpInvokeStaticUInt8
	OpInvokeStaticChar
	OpInvokeStaticInt
	OpInvokeStaticInt64
	OpInvokeStaticFloat
	OpInvokeStaticDouble
	OpInvokeStaticPtr

	// ========================================================================
	// Allocation and arrays
	// ========================================================================

	OpNewObject // dest, class
	OpNewArray  // dest, class, length
	OpNilCheck
	OpArrayLength     // dest, array
	OpArrayBoundCheck // array, index
	OpLoadArrayBool   // dest, array, index
	OpLoadArrayUInt8
	OpLoadArrayChar
	OpLoadArrayInt
	OpLoadArrayInt64
	OpLoadArrayFloat
	OpLoadArrayDouble
	OpLoadArrayPtr
	OpStoreArrayBool // src, array, index
	OpStoreArrayUInt8
	OpStoreArrayChar
	OpStoreArrayInt
	OpStoreArrayInt64
	OpStoreArrayFloat
	OpStoreArrayDouble
	OpStoreArrayPtr

	// ========================================================================
	// Return
	// ========================================================================

	OpRetVoid
	OpRetBool
	OpRetUInt8
	OpRetChar
	OpRetInt
	OpRetInt64
	OpRetFloat
	OpRetDouble
	OpRetPtr

	// OpWide widens every operand of the following instruction to 32 bits.
	OpWide
)

// Format describes the operand layout of an opcode.
type Format uint8

const (
	FmtNone         Format = iota // no operands
	FmtR                          // reg
	FmtRR                         // reg, reg
	FmtRRR                        // reg, reg, reg
	FmtRImm                       // reg, inline value
	FmtRConst                     // reg, pool index
	FmtRClass                     // reg, class
	FmtRRClass                    // reg, reg, class
	FmtRClassR                    // reg, class, reg
	FmtRRClassField               // reg, reg, class, field
	FmtRGlobal                    // reg, global
	FmtRRTuple                    // reg, reg, tuple
	FmtRRTupleIdx                 // reg, reg, tuple, idx
	FmtFctArgs                    // fct, argument count
	FmtRFctArgs                   // reg, fct, argument count
	FmtJump                       // distance
	FmtRJump                      // reg, distance
	FmtJumpConst                  // pool index
	FmtRJumpConst                 // reg, pool index
	FmtPrefix                     // modifies the next instruction
)

var formatOperands = [...]int{
	FmtNone:         0,
	FmtR:            1,
	FmtRR:           2,
	FmtRRR:          3,
	FmtRImm:         2,
	FmtRConst:       2,
	FmtRClass:       2,
	FmtRRClass:      3,
	FmtRClassR:      3,
	FmtRRClassField: 4,
	FmtRGlobal:      2,
	FmtRRTuple:      3,
	FmtRRTupleIdx:   4,
	FmtFctArgs:      2,
	FmtRFctArgs:     3,
	FmtJump:         1,
	FmtRJump:        2,
	FmtJumpConst:    1,
	FmtRJumpConst:   2,
	FmtPrefix:       0,
}

// Operands returns the number of operands of the format.
func (f Format) Operands() int {
	return formatOperands[f]
}

// OpcodeInfo provides metadata about each opcode for decoding and listing.
type OpcodeInfo struct {
	Name   string // Human-readable name
	Format Format // Operand layout
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Arithmetic
	OpAddInt:    {"AddInt", FmtRRR},
	OpAddInt64:  {"AddInt64", FmtRRR},
	OpAddFloat:  {"AddFloat", FmtRRR},
	OpAddDouble: {"AddDouble", FmtRRR},
	OpSubInt:    {"SubInt", FmtRRR},
	OpSubInt64:  {"SubInt64", FmtRRR},
	OpSubFloat:  {"SubFloat", FmtRRR},
	OpSubDouble: {"SubDouble", FmtRRR},
	OpNegInt:    {"NegInt", FmtRR},
	OpNegInt64:  {"NegInt64", FmtRR},
	OpNegFloat:  {"NegFloat", FmtRR},
	OpNegDouble: {"NegDouble", FmtRR},
	OpMulInt:    {"MulInt", FmtRRR},
	OpMulInt64:  {"MulInt64", FmtRRR},
	OpMulFloat:  {"MulFloat", FmtRRR},
	OpMulDouble: {"MulDouble", FmtRRR},
	OpDivInt:    {"DivInt", FmtRRR},
	OpDivInt64:  {"DivInt64", FmtRRR},
	OpDivFloat:  {"DivFloat", FmtRRR},
	OpDivDouble: {"DivDouble", FmtRRR},
	OpModInt:    {"ModInt", FmtRRR},
	OpModInt64:  {"ModInt64", FmtRRR},

	// Bitwise and logical
	OpAndInt:   {"AndInt", FmtRRR},
	OpAndInt64: {"AndInt64", FmtRRR},
	OpOrInt:    {"OrInt", FmtRRR},
	OpOrInt64:  {"OrInt64", FmtRRR},
	OpXorInt:   {"XorInt", FmtRRR},
	OpXorInt64: {"XorInt64", FmtRRR},
	OpNotBool:  {"NotBool", FmtRR},
	OpNotInt:   {"NotInt", FmtRR},
	OpNotInt64: {"NotInt64", FmtRR},
	OpShlInt:   {"ShlInt", FmtRRR},
	OpShrInt:   {"ShrInt", FmtRRR},
	OpSarInt:   {"SarInt", FmtRRR},
	OpShlInt64: {"ShlInt64", FmtRRR},
	OpShrInt64: {"ShrInt64", FmtRRR},
	OpSarInt64: {"SarInt64", FmtRRR},
	OpRolInt:   {"RolInt", FmtRRR},
	OpRorInt:   {"RorInt", FmtRRR},
	OpRolInt64: {"RolInt64", FmtRRR},
	OpRorInt64: {"RorInt64", FmtRRR},

	// Conversions
	OpReinterpretFloatAsInt:    {"ReinterpretFloatAsInt", FmtRR},
	OpReinterpretIntAsFloat:    {"ReinterpretIntAsFloat", FmtRR},
	OpReinterpretDoubleAsInt64: {"ReinterpretDoubleAsInt64", FmtRR},
	OpReinterpretInt64AsDouble: {"ReinterpretInt64AsDouble", FmtRR},
	OpExtendByteToChar:         {"ExtendByteToChar", FmtRR},
	OpExtendByteToInt:          {"ExtendByteToInt", FmtRR},
	OpExtendByteToInt64:        {"ExtendByteToInt64", FmtRR},
	OpExtendIntToInt64:         {"ExtendIntToInt64", FmtRR},
	OpExtendCharToInt64:        {"ExtendCharToInt64", FmtRR},
	OpCastCharToInt:            {"CastCharToInt", FmtRR},
	OpCastIntToUInt8:           {"CastIntToUInt8", FmtRR},
	OpCastIntToChar:            {"CastIntToChar", FmtRR},
	OpCastInt64ToUInt8:         {"CastInt64ToUInt8", FmtRR},
	OpCastInt64ToChar:          {"CastInt64ToChar", FmtRR},
	OpCastInt64ToInt:           {"CastInt64ToInt", FmtRR},
	OpConvertIntToFloat:        {"ConvertIntToFloat", FmtRR},
	OpConvertIntToDouble:       {"ConvertIntToDouble", FmtRR},
	OpConvertInt64ToFloat:      {"ConvertInt64ToFloat", FmtRR},
	OpConvertInt64ToDouble:     {"ConvertInt64ToDouble", FmtRR},
	OpTruncateFloatToInt:       {"TruncateFloatToInt", FmtRR},
	OpTruncateFloatToInt64:     {"TruncateFloatToInt64", FmtRR},
	OpTruncateDoubleToInt:      {"TruncateDoubleToInt", FmtRR},
	OpTruncateDoubleToInt64:    {"TruncateDoubleToInt64", FmtRR},

	// Type tests
	OpInstanceOf:  {"InstanceOf", FmtRRClass},
	OpCheckedCast: {"CheckedCast", FmtRClass},

	// Moves
	OpMovBool:   {"MovBool", FmtRR},
	OpMovUInt8:  {"MovUInt8", FmtRR},
	OpMovChar:   {"MovChar", FmtRR},
	OpMovInt:    {"MovInt", FmtRR},
	OpMovInt64:  {"MovInt64", FmtRR},
	OpMovFloat:  {"MovFloat", FmtRR},
	OpMovDouble: {"MovDouble", FmtRR},
	OpMovPtr:    {"MovPtr", FmtRR},
	OpMovTuple:  {"MovTuple", FmtRRTuple},

	// Tuples
	OpLoadTupleElement:  {"LoadTupleElement", FmtRRTupleIdx},
	OpStoreTupleElement: {"StoreTupleElement", FmtRRTupleIdx},

	// Fields
	OpLoadFieldBool:    {"LoadFieldBool", FmtRRClassField},
	OpLoadFieldUInt8:   {"LoadFieldUInt8", FmtRRClassField},
	OpLoadFieldChar:    {"LoadFieldChar", FmtRRClassField},
	OpLoadFieldInt:     {"LoadFieldInt", FmtRRClassField},
	OpLoadFieldInt64:   {"LoadFieldInt64", FmtRRClassField},
	OpLoadFieldFloat:   {"LoadFieldFloat", FmtRRClassField},
	OpLoadFieldDouble:  {"LoadFieldDouble", FmtRRClassField},
	OpLoadFieldPtr:     {"LoadFieldPtr", FmtRRClassField},
	OpStoreFieldBool:   {"StoreFieldBool", FmtRRClassField},
	OpStoreFieldUInt8:  {"StoreFieldUInt8", FmtRRClassField},
	OpStoreFieldChar:   {"StoreFieldChar", FmtRRClassField},
	OpStoreFieldInt:    {"StoreFieldInt", FmtRRClassField},
	OpStoreFieldInt64:  {"StoreFieldInt64", FmtRRClassField},
	OpStoreFieldFloat:  {"StoreFieldFloat", FmtRRClassField},
	OpStoreFieldDouble: {"StoreFieldDouble", FmtRRClassField},
	OpStoreFieldPtr:    {"StoreFieldPtr", FmtRRClassField},

	// Globals
	OpLoadGlobalBool:    {"LoadGlobalBool", FmtRGlobal},
	OpLoadGlobalUInt8:   {"LoadGlobalUInt8", FmtRGlobal},
	OpLoadGlobalChar:    {"LoadGlobalChar", FmtRGlobal},
	OpLoadGlobalInt:     {"LoadGlobalInt", FmtRGlobal},
	OpLoadGlobalInt64:   {"LoadGlobalInt64", FmtRGlobal},
	OpLoadGlobalFloat:   {"LoadGlobalFloat", FmtRGlobal},
	OpLoadGlobalDouble:  {"LoadGlobalDouble", FmtRGlobal},
	OpLoadGlobalPtr:     {"LoadGlobalPtr", FmtRGlobal},
	OpStoreGlobalBool:   {"StoreGlobalBool", FmtRGlobal},
	OpStoreGlobalUInt8:  {"StoreGlobalUInt8", FmtRGlobal},
	OpStoreGlobalChar:   {"StoreGlobalChar", FmtRGlobal},
	OpStoreGlobalInt:    {"StoreGlobalInt", FmtRGlobal},
	OpStoreGlobalInt64:  {"StoreGlobalInt64", FmtRGlobal},
	OpStoreGlobalFloat:  {"StoreGlobalFloat", FmtRGlobal},
	OpStoreGlobalDouble: {"StoreGlobalDouble", FmtRGlobal},
	OpStoreGlobalPtr:    {"StoreGlobalPtr", FmtRGlobal},

	// Constants
	OpPushRegister:    {"PushRegister", FmtR},
	OpConstNil:        {"ConstNil", FmtR},
	OpConstTrue:       {"ConstTrue", FmtR},
	OpConstFalse:      {"ConstFalse", FmtR},
	OpConstZeroUInt8:  {"ConstZeroUInt8", FmtR},
	OpConstZeroChar:   {"ConstZeroChar", FmtR},
	OpConstZeroInt:    {"ConstZeroInt", FmtR},
	OpConstZeroInt64:  {"ConstZeroInt64", FmtR},
	OpConstZeroFloat:  {"ConstZeroFloat", FmtR},
	OpConstZeroDouble: {"ConstZeroDouble", FmtR},
	OpConstUInt8:      {"ConstUInt8", FmtRImm},
	OpConstChar:       {"ConstChar", FmtRConst},
	OpConstInt:        {"ConstInt", FmtRConst},
	OpConstInt64:      {"ConstInt64", FmtRConst},
	OpConstFloat:      {"ConstFloat", FmtRConst},
	OpConstDouble:     {"ConstDouble", FmtRConst},
	OpConstString:     {"ConstString", FmtRConst},

	// Comparisons
	OpTestEqPtr:    {"TestEqPtr", FmtRRR},
	OpTestNePtr:    {"TestNePtr", FmtRRR},
	OpTestEqBool:   {"TestEqBool", FmtRRR},
	OpTestNeBool:   {"TestNeBool", FmtRRR},
	OpTestEqUInt8:  {"TestEqUInt8", FmtRRR},
	OpTestNeUInt8:  {"TestNeUInt8", FmtRRR},
	OpTestGtUInt8:  {"TestGtUInt8", FmtRRR},
	OpTestGeUInt8:  {"TestGeUInt8", FmtRRR},
	OpTestLtUInt8:  {"TestLtUInt8", FmtRRR},
	OpTestLeUInt8:  {"TestLeUInt8", FmtRRR},
	OpTestEqChar:   {"TestEqChar", FmtRRR},
	OpTestNeChar:   {"TestNeChar", FmtRRR},
	OpTestGtChar:   {"TestGtChar", FmtRRR},
	OpTestGeChar:   {"TestGeChar", FmtRRR},
	OpTestLtChar:   {"TestLtChar", FmtRRR},
	OpTestLeChar:   {"TestLeChar", FmtRRR},
	OpTestEqEnum:   {"TestEqEnum", FmtRRR},
	OpTestNeEnum:   {"TestNeEnum", FmtRRR},
	OpTestEqInt:    {"TestEqInt", FmtRRR},
	OpTestNeInt:    {"TestNeInt", FmtRRR},
	OpTestGtInt:    {"TestGtInt", FmtRRR},
	OpTestGeInt:    {"TestGeInt", FmtRRR},
	OpTestLtInt:    {"TestLtInt", FmtRRR},
	OpTestLeInt:    {"TestLeInt", FmtRRR},
	OpTestEqInt64:  {"TestEqInt64", FmtRRR},
	OpTestNeInt64:  {"TestNeInt64", FmtRRR},
	OpTestGtInt64:  {"TestGtInt64", FmtRRR},
	OpTestGeInt64:  {"TestGeInt64", FmtRRR},
	OpTestLtInt64:  {"TestLtInt64", FmtRRR},
	OpTestLeInt64:  {"TestLeInt64", FmtRRR},
	OpTestEqFloat:  {"TestEqFloat", FmtRRR},
	OpTestNeFloat:  {"TestNeFloat", FmtRRR},
	OpTestGtFloat:  {"TestGtFloat", FmtRRR},
	OpTestGeFloat:  {"TestGeFloat", FmtRRR},
	OpTestLtFloat:  {"TestLtFloat", FmtRRR},
	OpTestLeFloat:  {"TestLeFloat", FmtRRR},
	OpTestEqDouble: {"TestEqDouble", FmtRRR},
	OpTestNeDouble: {"TestNeDouble", FmtRRR},
	OpTestGtDouble: {"TestGtDouble", FmtRRR},
	OpTestGeDouble: {"TestGeDouble", FmtRRR},
	OpTestLtDouble: {"TestLtDouble", FmtRRR},
	OpTestLeDouble: {"TestLeDouble", FmtRRR},

	// Control flow
	OpAssert:           {"Assert", FmtR},
	OpJumpLoop:         {"JumpLoop", FmtJump},
	OpJump:             {"Jump", FmtJump},
	OpJumpConst:        {"JumpConst", FmtJumpConst},
	OpJumpIfFalse:      {"JumpIfFalse", FmtRJump},
	OpJumpIfFalseConst: {"JumpIfFalseConst", FmtRJumpConst},
	OpJumpIfTrue:       {"JumpIfTrue", FmtRJump},
	OpJumpIfTrueConst:  {"JumpIfTrueConst", FmtRJumpConst},

	// Calls
	OpInvokeDirectVoid:    {"InvokeDirectVoid", FmtFctArgs},
	OpInvokeDirectBool:    {"InvokeDirectBool", FmtRFctArgs},
	OpInvokeDirectUInt8:   {"InvokeDirectUInt8", FmtRFctArgs},
	OpInvokeDirectChar:    {"InvokeDirectChar", FmtRFctArgs},
	OpInvokeDirectInt:     {"InvokeDirectInt", FmtRFctArgs},
	OpInvokeDirectInt64:   {"InvokeDirectInt64", FmtRFctArgs},
	OpInvokeDirectFloat:   {"InvokeDirectFloat", FmtRFctArgs},
	OpInvokeDirectDouble:  {"InvokeDirectDouble", FmtRFctArgs},
	OpInvokeDirectPtr:     {"InvokeDirectPtr", FmtRFctArgs},
	OpInvokeVirtualVoid:   {"InvokeVirtualVoid", FmtFctArgs},
	OpInvokeVirtualBool:   {"InvokeVirtualBool", FmtRFctArgs},
	OpInvokeVirtualUInt8:  {"InvokeVirtualUInt8", FmtRFctArgs},
	OpInvokeVirtualChar:   {"InvokeVirtualChar", FmtRFctArgs},
	OpInvokeVirtualInt:    {"InvokeVirtualInt", FmtRFctArgs},
	OpInvokeVirtualInt64:  {"InvokeVirtualInt64", FmtRFctArgs},
	OpInvokeVirtualFloat:  {"InvokeVirtualFloat", FmtRFctArgs},
	OpInvokeVirtualDouble: {"InvokeVirtualDouble", FmtRFctArgs},
	OpInvokeVirtualPtr:    {"InvokeVirtualPtr", FmtRFctArgs},
	OpInvokeStaticVoid:    {"InvokeStaticVoid", FmtFctArgs},
	OpInvokeStaticBool:    {"InvokeStaticBool", FmtRFctArgs},
	OpInvokeStaticUInt8:   {"InvokeStaticUInt8", FmtRFctArgs},
	OpInvokeStaticChar:    {"InvokeStaticChar", FmtRFctArgs},
	OpInvokeStaticInt:     {"InvokeStaticInt", FmtRFctArgs},
	OpInvokeStaticInt64:   {"InvokeStaticInt64", FmtRFctArgs},
	OpInvokeStaticFloat:   {"InvokeStaticFloat", FmtRFctArgs},
	OpInvokeStaticDouble:  {"InvokeStaticDouble", FmtRFctArgs},
	OpInvokeStaticPtr:     {"InvokeStaticPtr", FmtRFctArgs},

	// Allocation and arrays
	OpNewObject:        {"NewObject", FmtRClass},
	OpNewArray:         {"NewArray", FmtRClassR},
	OpNilCheck:         {"NilCheck", FmtR},
	OpArrayLength:      {"ArrayLength", FmtRR},
	OpArrayBoundCheck:  {"ArrayBoundCheck", FmtRR},
	OpLoadArrayBool:    {"LoadArrayBool", FmtRRR},
	OpLoadArrayUInt8:   {"LoadArrayUInt8", FmtRRR},
	OpLoadArrayChar:    {"LoadArrayChar", FmtRRR},
	OpLoadArrayInt:     {"LoadArrayInt", FmtRRR},
	OpLoadArrayInt64:   {"LoadArrayInt64", FmtRRR},
	OpLoadArrayFloat:   {"LoadArrayFloat", FmtRRR},
	OpLoadArrayDouble:  {"LoadArrayDouble", FmtRRR},
	OpLoadArrayPtr:     {"LoadArrayPtr", FmtRRR},
	OpStoreArrayBool:   {"StoreArrayBool", FmtRRR},
	OpStoreArrayUInt8:  {"StoreArrayUInt8", FmtRRR},
	OpStoreArrayChar:   {"StoreArrayChar", FmtRRR},
	OpStoreArrayInt:    {"StoreArrayInt", FmtRRR},
	OpStoreArrayInt64:  {"StoreArrayInt64", FmtRRR},
	OpStoreArrayFloat:  {"StoreArrayFloat", FmtRRR},
	OpStoreArrayDouble: {"StoreArrayDouble", FmtRRR},
	OpStoreArrayPtr:    {"StoreArrayPtr", FmtRRR},

	// Return
	OpRetVoid:   {"RetVoid", FmtNone},
	OpRetBool:   {"RetBool", FmtR},
	OpRetUInt8:  {"RetUInt8", FmtR},
	OpRetChar:   {"RetChar", FmtR},
	OpRetInt:    {"RetInt", FmtR},
	OpRetInt64:  {"RetInt64", FmtR},
	OpRetFloat:  {"RetFloat", FmtR},
	OpRetDouble: {"RetDouble", FmtR},
	OpRetPtr:    {"RetPtr", FmtR},

	OpWide: {"Wide", FmtPrefix},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// IsValid reports whether op is a defined opcode.
func (op Opcode) IsValid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Format returns the operand layout of the opcode.
func (op Opcode) Format() Format {
	return GetOpcodeInfo(op).Format
}

// InstructionLen returns the encoded length of an instruction, including
// the wide prefix when wide is set.
func (op Opcode) InstructionLen(wide bool) int {
	n := op.Format().Operands()
	if wide {
		return 2 + 4*n
	}
	return 1 + n
}

// IsJump returns true if this opcode transfers control.
func (op Opcode) IsJump() bool {
	return op >= OpJumpLoop && op <= OpJumpIfTrueConst
}

// IsForwardJump returns true for jumps whose target lies after them.
func (op Opcode) IsForwardJump() bool {
	return op.IsJump() && op != OpJumpLoop
}

// IsReturn returns true if this opcode leaves the function.
func (op Opcode) IsReturn() bool {
	return op >= OpRetVoid && op <= OpRetPtr
}

// IsInvoke returns true if this opcode calls a function.
func (op Opcode) IsInvoke() bool {
	return op >= OpInvokeDirectVoid && op <= OpInvokeStaticPtr
}

// ConstVariant returns the pool-indexed form of a forward jump.
func (op Opcode) ConstVariant() Opcode {
	switch op {
	case OpJump:
		return OpJumpConst
	case OpJumpIfFalse:
		return OpJumpIfFalseConst
	case OpJumpIfTrue:
		return OpJumpIfTrueConst
	}
	panic(fmt.Sprintf("%s has no constant-pool variant", op))
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
