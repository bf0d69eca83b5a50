package ast

import (
	"testing"

	"github.com/chazu/dora/pkg/ty"
)

func TestBinaryType(t *testing.T) {
	b := NewFunction(0, "f", ty.IntType)
	x := b.Param("x", ty.Int64Type)

	tests := []struct {
		op   BinOp
		want ty.Type
	}{
		{Add, ty.Int64Type},
		{Shl, ty.Int64Type},
		{Eq, ty.BoolType},
		{Ge, ty.BoolType},
		{Is, ty.BoolType},
		{And, ty.BoolType},
	}

	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			e := Bin(tt.op, Use(x), Use(x))
			if e.Type() != tt.want {
				t.Errorf("Type() = %s, want %s", e.Type(), tt.want)
			}
		})
	}
}

func TestFunctionBuilder(t *testing.T) {
	b := NewMethod(4, "m", ty.ClassOf(1), ty.UnitType)
	a := b.Param("a", ty.IntType)
	fn := b.Body(Ret(nil))

	params := fn.AllParams()
	if len(params) != 2 || params[0] != b.Self() || params[1] != a {
		t.Fatalf("AllParams() = %v", params)
	}
	if params[0].ID == params[1].ID {
		t.Error("variables share an id")
	}
	if !fn.Body.EndsWithReturn() {
		t.Error("EndsWithReturn() = false, want true")
	}
}

func TestIsSimple(t *testing.T) {
	v := &Var{Type: ty.IntType}
	if !IsSimple(Use(v)) || !IsSimple(&LitString{Value: "x"}) {
		t.Error("identifier or literal reported as not simple")
	}
	if IsSimple(Bin(Add, Use(v), Use(v))) {
		t.Error("binary expression reported as simple")
	}
}

func TestIndexType(t *testing.T) {
	arr := &Var{Type: ty.ArrayOf(ty.DoubleType)}
	e := &Index{Array: Use(arr), Index: &LitInt{Value: 0}}
	if e.Type() != ty.DoubleType {
		t.Errorf("Type() = %s, want Double", e.Type())
	}
}
