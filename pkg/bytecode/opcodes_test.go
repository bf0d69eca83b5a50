package bytecode

import (
	"strings"
	"testing"

	"github.com/chazu/dora/pkg/ast"
	"github.com/chazu/dora/pkg/ty"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
	}
}

func TestOpcodeTableIsDense(t *testing.T) {
	// Every value below OpWide is defined, so the table can be indexed.
	if got, want := OpcodeCount(), int(OpWide)+1; got != want {
		t.Errorf("OpcodeCount() = %d, want %d", got, want)
	}
	for op := Opcode(0); op <= OpWide; op++ {
		if !op.IsValid() {
			t.Errorf("Opcode 0x%02X is not defined", byte(op))
		}
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpAddInt, "AddInt"},
		{OpSubDouble, "SubDouble"},
		{OpReinterpretFloatAsInt, "ReinterpretFloatAsInt"},
		{OpMovPtr, "MovPtr"},
		{OpLoadFieldInt64, "LoadFieldInt64"},
		{OpConstZeroInt, "ConstZeroInt"},
		{OpTestNeEnum, "TestNeEnum"},
		{OpJumpIfFalseConst, "JumpIfFalseConst"},
		{OpInvokeVirtualPtr, "InvokeVirtualPtr"},
		{OpStoreArrayChar, "StoreArrayChar"},
		{OpRetVoid, "RetVoid"},
	}

	for _, tt := range tests {
		got := tt.op.String()
		if got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestUnknownOpcodeString(t *testing.T) {
	op := Opcode(0xEE)
	got := op.String()
	if got[:7] != "UNKNOWN" {
		t.Errorf("Unknown opcode should return UNKNOWN, got %q", got)
	}
}

func TestOpcodeInstructionLen(t *testing.T) {
	tests := []struct {
		op   Opcode
		wide bool
		want int
	}{
		{OpRetVoid, false, 1},
		{OpRetInt, false, 2},
		{OpAddInt, false, 4},
		{OpAddInt, true, 14},
		{OpLoadFieldInt, false, 5},
		{OpLoadFieldInt, true, 18},
		{OpJump, false, 2},
		{OpJumpIfTrue, true, 10},
	}

	for _, tt := range tests {
		got := tt.op.InstructionLen(tt.wide)
		if got != tt.want {
			t.Errorf("%s.InstructionLen(%v) = %d, want %d", tt.op, tt.wide, got, tt.want)
		}
	}
}

func TestOpcodeClassification(t *testing.T) {
	for _, op := range []Opcode{OpJumpLoop, OpJump, OpJumpConst, OpJumpIfFalse, OpJumpIfTrueConst} {
		if !op.IsJump() {
			t.Errorf("%s.IsJump() = false, want true", op)
		}
	}
	for _, op := range []Opcode{OpAssert, OpInvokeDirectVoid, OpRetVoid} {
		if op.IsJump() {
			t.Errorf("%s.IsJump() = true, want false", op)
		}
	}
	if OpJumpLoop.IsForwardJump() {
		t.Error("JumpLoop.IsForwardJump() = true, want false")
	}
	if !OpRetPtr.IsReturn() || OpRetVoid.IsInvoke() {
		t.Error("return classification is wrong")
	}
	if !OpInvokeStaticPtr.IsInvoke() || !OpInvokeDirectVoid.IsInvoke() {
		t.Error("invoke classification is wrong")
	}
}

func TestConstVariant(t *testing.T) {
	tests := []struct {
		op   Opcode
		want Opcode
	}{
		{OpJump, OpJumpConst},
		{OpJumpIfFalse, OpJumpIfFalseConst},
		{OpJumpIfTrue, OpJumpIfTrueConst},
	}
	for _, tt := range tests {
		if got := tt.op.ConstVariant(); got != tt.want {
			t.Errorf("%s.ConstVariant() = %s, want %s", tt.op, got, tt.want)
		}
	}

	defer func() {
		if recover() == nil {
			t.Error("JumpLoop.ConstVariant() did not panic")
		}
	}()
	OpJumpLoop.ConstVariant()
}

func TestOpcodeSelection(t *testing.T) {
	tests := []struct {
		name string
		got  Opcode
		want Opcode
	}{
		{"mov enum", MovOp(ty.EnumOf(0)), OpMovInt},
		{"mov class", MovOp(ty.ClassOf(3)), OpMovPtr},
		{"ret unit", RetOp(ty.UnitType), OpRetVoid},
		{"ret double", RetOp(ty.DoubleType), OpRetDouble},
		{"load field char", LoadFieldOp(ty.CharType), OpLoadFieldChar},
		{"store global string", StoreGlobalOp(ty.StringType), OpStoreGlobalPtr},
		{"load array uint8", LoadArrayOp(ty.UInt8Type), OpLoadArrayUInt8},
		{"store array float", StoreArrayOp(ty.FloatType), OpStoreArrayFloat},
		{"invoke static int", InvokeOp(ast.CallStatic, ty.IntType), OpInvokeStaticInt},
		{"invoke direct unit", InvokeOp(ast.CallDirect, ty.UnitType), OpInvokeDirectVoid},
		{"invoke virtual bool", InvokeOp(ast.CallVirtual, ty.BoolType), OpInvokeVirtualBool},
		{"sub int64", BinaryOp(ast.Sub, ty.Int64Type), OpSubInt64},
		{"mod int", BinaryOp(ast.Mod, ty.IntType), OpModInt},
		{"ror int64", BinaryOp(ast.Ror, ty.Int64Type), OpRorInt64},
		{"lt uint8", BinaryOp(ast.Lt, ty.UInt8Type), OpTestLtUInt8},
		{"ge double", BinaryOp(ast.Ge, ty.DoubleType), OpTestGeDouble},
		{"eq bool", BinaryOp(ast.Eq, ty.BoolType), OpTestEqBool},
		{"ne enum", BinaryOp(ast.Ne, ty.EnumOf(1)), OpTestNeEnum},
		{"is", BinaryOp(ast.Is, ty.ClassOf(0)), OpTestEqPtr},
		{"eq string", BinaryOp(ast.Eq, ty.StringType), OpTestEqPtr},
		{"neg float", UnaryOp(ast.Neg, ty.FloatType), OpNegFloat},
		{"not bool", UnaryOp(ast.Not, ty.BoolType), OpNotBool},
		{"int to double", ConvOp(ast.Numeric, ty.IntType, ty.DoubleType), OpConvertIntToDouble},
		{"double to int64", ConvOp(ast.Numeric, ty.DoubleType, ty.Int64Type), OpTruncateDoubleToInt64},
		{"reinterpret", ConvOp(ast.Reinterpret, ty.Int64Type, ty.DoubleType), OpReinterpretInt64AsDouble},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestOpcodeSelectionRejects(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"mod float", func() { BinaryOp(ast.Mod, ty.FloatType) }},
		{"lt bool", func() { BinaryOp(ast.Lt, ty.BoolType) }},
		{"mov tuple", func() { MovOp(ty.TupleOf(0)) }},
		{"conv bool", func() { ConvOp(ast.Numeric, ty.BoolType, ty.IntType) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("did not panic")
				}
			}()
			tt.fn()
		})
	}
}
