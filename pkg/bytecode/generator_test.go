package bytecode

import (
	"testing"

	"github.com/chazu/dora/pkg/ast"
	"github.com/chazu/dora/pkg/ty"
	"github.com/chazu/dora/vm"
)

func lit(v int32) *ast.LitInt { return &ast.LitInt{Value: v} }

func genInsts(reg *vm.Registry, fn *ast.Function) []Inst {
	return Build(Generate(reg, fn))
}

func TestGenerateArithmetic(t *testing.T) {
	reg := vm.NewRegistry()

	t.Run("literal sum", func(t *testing.T) {
		fn := ast.NewFunction(0, "f", ty.IntType).Body(
			ast.Ret(ast.Bin(ast.Add, lit(1), lit(2))),
		)
		checkInsts(t, genInsts(reg, fn), []Inst{
			ConstInt(1, 1),
			ConstInt(2, 2),
			Plain(OpAddInt, 0, 1, 2),
			Plain(OpRetInt, 0),
		})
	})

	t.Run("params", func(t *testing.T) {
		b := ast.NewFunction(0, "f", ty.IntType)
		x, y := b.Param("a", ty.IntType), b.Param("b", ty.IntType)
		fn := b.Body(ast.Ret(ast.Bin(ast.Sub, ast.Use(x), ast.Use(y))))
		checkInsts(t, genInsts(reg, fn), []Inst{
			Plain(OpSubInt, 2, 0, 1),
			Plain(OpRetInt, 2),
		})
	})

	t.Run("is nan", func(t *testing.T) {
		b := ast.NewFunction(0, "f", ty.BoolType)
		x := b.Param("x", ty.FloatType)
		fn := b.Body(ast.Ret(ast.Bin(ast.Ne, ast.Use(x), ast.Use(x))))
		checkInsts(t, genInsts(reg, fn), []Inst{
			Plain(OpTestNeFloat, 1, 0, 0),
			Plain(OpRetBool, 1),
		})
	})

	t.Run("negate", func(t *testing.T) {
		b := ast.NewFunction(0, "f", ty.Int64Type)
		x := b.Param("x", ty.Int64Type)
		fn := b.Body(ast.Ret(&ast.Unary{Op: ast.Neg, Operand: ast.Use(x)}))
		checkInsts(t, genInsts(reg, fn), []Inst{
			Plain(OpNegInt64, 1, 0),
			Plain(OpRetInt64, 1),
		})
	})

	t.Run("conversion", func(t *testing.T) {
		b := ast.NewFunction(0, "f", ty.FloatType)
		x := b.Param("x", ty.IntType)
		fn := b.Body(ast.Ret(&ast.Conv{Mode: ast.Numeric, Expr: ast.Use(x), To: ty.FloatType}))
		checkInsts(t, genInsts(reg, fn), []Inst{
			Plain(OpConvertIntToFloat, 1, 0),
			Plain(OpRetFloat, 1),
		})
	})

	t.Run("division in effect position keeps its trap", func(t *testing.T) {
		b := ast.NewFunction(0, "f", ty.UnitType)
		x, y := b.Param("a", ty.IntType), b.Param("b", ty.IntType)
		div := ast.Bin(ast.Div, ast.Use(x), ast.Use(y))
		div.PosVal = ast.Position{Line: 2, Column: 3}
		fn := b.Body(ast.Do(div))

		out := Generate(reg, fn)
		checkInsts(t, Build(out), []Inst{
			Plain(OpDivInt, 2, 0, 1),
			Plain(OpRetVoid),
		})
		if pos, ok := out.PositionAt(0); !ok || pos.Line != 2 {
			t.Errorf("PositionAt(0) = %v, %v, want 2:3", pos, ok)
		}
	})
}

func TestGenerateVariables(t *testing.T) {
	reg := vm.NewRegistry()
	cls := reg.AddClass("Foo", nil)

	t.Run("let self", func(t *testing.T) {
		b := ast.NewMethod(0, "m", ty.ClassOf(uint32(cls)), ty.UnitType)
		x := b.Var("x", ty.ClassOf(uint32(cls)))
		fn := b.Body(&ast.Let{Var: x, Init: &ast.Self{Var: b.Self()}})
		checkInsts(t, genInsts(reg, fn), []Inst{
			Plain(OpMovPtr, 1, 0),
			Plain(OpRetVoid),
		})
	})

	t.Run("side-effect free statements", func(t *testing.T) {
		b := ast.NewFunction(0, "f", ty.UnitType)
		a := b.Param("a", ty.IntType)
		fn := b.Body(
			ast.Do(lit(1)),
			ast.Do(ast.Use(a)),
			ast.Do(ast.Bin(ast.Add, ast.Use(a), lit(3))),
		)
		checkInsts(t, genInsts(reg, fn), []Inst{
			Plain(OpRetVoid),
		})
	})

	t.Run("assign local", func(t *testing.T) {
		b := ast.NewFunction(0, "f", ty.IntType)
		a := b.Param("a", ty.IntType)
		fn := b.Body(
			ast.Do(&ast.Assign{Target: ast.Use(a), Value: ast.Bin(ast.Mul, ast.Use(a), lit(4))}),
			ast.Ret(ast.Use(a)),
		)
		checkInsts(t, genInsts(reg, fn), []Inst{
			ConstInt(1, 4),
			Plain(OpMulInt, 0, 0, 1),
			Plain(OpRetInt, 0),
		})
	})

	t.Run("enum value", func(t *testing.T) {
		e := reg.AddEnum("Color", "Red", "Green")
		fn := ast.NewFunction(0, "f", ty.EnumOf(uint32(e))).Body(
			ast.Ret(&ast.LitEnum{Enum: e, Variant: 0}),
		)
		checkInsts(t, genInsts(reg, fn), []Inst{
			ConstInt(0, 0),
			Plain(OpRetInt, 0),
		})
	})

	t.Run("globals", func(t *testing.T) {
		g := reg.AddGlobal("counter", ty.IntType)
		ref := &ast.GlobalRef{Global: g, GlobalType: ty.IntType}
		fn := ast.NewFunction(0, "f", ty.IntType).Body(
			ast.Do(&ast.Assign{Target: ref, Value: lit(1)}),
			ast.Ret(ref),
		)
		checkInsts(t, genInsts(reg, fn), []Inst{
			ConstInt(0, 1),
			GlobalOp(OpStoreGlobalInt, 0, g),
			GlobalOp(OpLoadGlobalInt, 1, g),
			Plain(OpRetInt, 1),
		})
	})

	t.Run("tuple literal", func(t *testing.T) {
		tup := reg.EnsureTuple(ty.IntType, ty.IntType)
		b := ast.NewFunction(0, "f", ty.UnitType)
		x := b.Var("x", ty.TupleOf(tup))
		fn := b.Body(&ast.Let{Var: x, Init: &ast.TupleLit{Tuple: tup, Elems: []ast.Expr{lit(1), lit(2)}}})
		checkInsts(t, genInsts(reg, fn), []Inst{
			ConstInt(1, 1),
			ConstInt(2, 2),
			TupleElement(OpStoreTupleElement, 1, 0, tup, 0),
			TupleElement(OpStoreTupleElement, 2, 0, tup, 1),
			Plain(OpRetVoid),
		})
	})

	t.Run("tuple element", func(t *testing.T) {
		tup := reg.EnsureTuple(ty.IntType, ty.DoubleType)
		b := ast.NewFunction(0, "f", ty.DoubleType)
		x := b.Param("x", ty.TupleOf(tup))
		fn := b.Body(ast.Ret(&ast.TupleElem{Tuple: ast.Use(x), Index: 1, ElemType: ty.DoubleType}))
		checkInsts(t, genInsts(reg, fn), []Inst{
			TupleElement(OpLoadTupleElement, 1, 0, tup, 1),
			Plain(OpRetDouble, 1),
		})
	})
}

func TestGenerateControlFlow(t *testing.T) {
	reg := vm.NewRegistry()

	t.Run("while true", func(t *testing.T) {
		fn := ast.NewFunction(0, "f", ty.UnitType).Body(
			&ast.While{Cond: &ast.LitBool{Value: true}, Body: ast.Blk(ast.Do(lit(0)))},
		)
		checkInsts(t, genInsts(reg, fn), []Inst{
			Plain(OpConstTrue, 0),
			JumpIfFalse(0, 3),
			JumpLoop(0),
			Plain(OpRetVoid),
		})
	})

	t.Run("while break", func(t *testing.T) {
		b := ast.NewFunction(0, "f", ty.UnitType)
		x := b.Param("x", ty.BoolType)
		fn := b.Body(&ast.While{Cond: ast.Use(x), Body: ast.Blk(&ast.Break{})})
		checkInsts(t, genInsts(reg, fn), []Inst{
			JumpIfFalse(0, 3),
			Jump(3),
			JumpLoop(0),
			Plain(OpRetVoid),
		})
	})

	t.Run("while continue", func(t *testing.T) {
		b := ast.NewFunction(0, "f", ty.UnitType)
		x := b.Param("x", ty.BoolType)
		fn := b.Body(&ast.While{Cond: ast.Use(x), Body: ast.Blk(&ast.Continue{})})
		checkInsts(t, genInsts(reg, fn), []Inst{
			JumpIfFalse(0, 3),
			JumpLoop(0),
			JumpLoop(0),
			Plain(OpRetVoid),
		})
	})

	t.Run("if with return", func(t *testing.T) {
		b := ast.NewFunction(0, "f", ty.IntType)
		a := b.Param("a", ty.BoolType)
		fn := b.Body(
			&ast.If{Cond: ast.Use(a), Then: ast.Blk(ast.Ret(lit(1)))},
			ast.Ret(lit(0)),
		)
		checkInsts(t, genInsts(reg, fn), []Inst{
			JumpIfFalse(0, 3),
			ConstInt(1, 1),
			Plain(OpRetInt, 1),
			Plain(OpConstZeroInt, 2),
			Plain(OpRetInt, 2),
		})
	})

	t.Run("if else", func(t *testing.T) {
		b := ast.NewFunction(0, "f", ty.BoolType)
		a := b.Param("a", ty.BoolType)
		fn := b.Body(
			&ast.If{
				Cond: ast.Use(a),
				Then: ast.Blk(ast.Do(&ast.Assign{Target: ast.Use(a), Value: &ast.LitBool{Value: false}})),
				Else: ast.Blk(ast.Do(&ast.Assign{Target: ast.Use(a), Value: &ast.LitBool{Value: true}})),
			},
			ast.Ret(ast.Use(a)),
		)
		checkInsts(t, genInsts(reg, fn), []Inst{
			JumpIfFalse(0, 3),
			Plain(OpConstFalse, 0),
			Jump(4),
			Plain(OpConstTrue, 0),
			Plain(OpRetBool, 0),
		})
	})

	t.Run("short-circuit or", func(t *testing.T) {
		b := ast.NewFunction(0, "f", ty.BoolType)
		x, y := b.Param("a", ty.BoolType), b.Param("b", ty.BoolType)
		fn := b.Body(ast.Ret(ast.Bin(ast.Or, ast.Use(x), ast.Use(y))))
		checkInsts(t, genInsts(reg, fn), []Inst{
			Plain(OpMovBool, 2, 0),
			JumpIfTrue(2, 3),
			Plain(OpMovBool, 2, 1),
			Plain(OpRetBool, 2),
		})
	})

	t.Run("short-circuit and", func(t *testing.T) {
		b := ast.NewFunction(0, "f", ty.BoolType)
		x, y := b.Param("a", ty.BoolType), b.Param("b", ty.BoolType)
		fn := b.Body(ast.Ret(ast.Bin(ast.And, ast.Use(x), ast.Use(y))))
		checkInsts(t, genInsts(reg, fn), []Inst{
			Plain(OpMovBool, 2, 0),
			JumpIfFalse(2, 3),
			Plain(OpMovBool, 2, 1),
			Plain(OpRetBool, 2),
		})
	})

	t.Run("assert", func(t *testing.T) {
		fn := ast.NewFunction(0, "f", ty.UnitType).Body(
			&ast.Assert{PosVal: ast.Position{Line: 4, Column: 2}, Cond: &ast.LitBool{Value: true}},
		)
		out := Generate(reg, fn)
		checkInsts(t, Build(out), []Inst{
			Plain(OpConstTrue, 0),
			Plain(OpAssert, 0),
			Plain(OpRetVoid),
		})
		if pos, ok := out.PositionAt(2); !ok || pos != (ast.Position{Line: 4, Column: 2}) {
			t.Errorf("PositionAt(2) = %v, %v, want 4:2", pos, ok)
		}
	})

	t.Run("break outside loop", func(t *testing.T) {
		fn := ast.NewFunction(0, "f", ty.UnitType).Body(&ast.Break{})
		expectPanic(t, "Generate", func() { Generate(reg, fn) })
	})
}

func TestGenerateCalls(t *testing.T) {
	reg := vm.NewRegistry()
	cls := reg.AddClass("Foo", nil)
	fooType := ty.ClassOf(uint32(cls))
	g := reg.AddFct("g", []ty.Type{ty.IntType, ty.IntType, ty.IntType}, ty.IntType)
	m := reg.AddMethod(cls, "g", []ty.Type{ty.IntType}, ty.IntType, false)

	t.Run("static", func(t *testing.T) {
		fn := ast.NewFunction(10, "f", ty.IntType).Body(ast.Ret(&ast.Call{
			Kind: ast.CallStatic, Fct: g, Args: []ast.Expr{lit(1), lit(2), lit(3)}, Ret: ty.IntType,
		}))
		checkInsts(t, genInsts(reg, fn), []Inst{
			ConstInt(1, 1),
			ConstInt(2, 2),
			ConstInt(3, 3),
			Plain(OpPushRegister, 1),
			Plain(OpPushRegister, 2),
			Plain(OpPushRegister, 3),
			Invoke(OpInvokeStaticInt, 0, g, 3),
			Plain(OpRetInt, 0),
		})
	})

	t.Run("unused result", func(t *testing.T) {
		fn := ast.NewFunction(10, "f", ty.UnitType).Body(ast.Do(&ast.Call{
			Kind: ast.CallStatic, Fct: g, Args: []ast.Expr{lit(1), lit(2), lit(3)}, Ret: ty.IntType,
		}))
		checkInsts(t, genInsts(reg, fn), []Inst{
			ConstInt(0, 1),
			ConstInt(1, 2),
			ConstInt(2, 3),
			Plain(OpPushRegister, 0),
			Plain(OpPushRegister, 1),
			Plain(OpPushRegister, 2),
			InvokeVoid(OpInvokeStaticVoid, g, 3),
			Plain(OpRetVoid),
		})
	})

	t.Run("method", func(t *testing.T) {
		b := ast.NewMethod(10, "f", fooType, ty.IntType)
		fn := b.Body(ast.Ret(&ast.Call{
			Kind: ast.CallDirect, Fct: m, Receiver: &ast.Self{Var: b.Self()},
			Args: []ast.Expr{lit(1)}, Ret: ty.IntType,
		}))
		checkInsts(t, genInsts(reg, fn), []Inst{
			ConstInt(2, 1),
			Plain(OpPushRegister, 0),
			Plain(OpPushRegister, 2),
			Invoke(OpInvokeDirectInt, 1, m, 2),
			Plain(OpRetInt, 1),
		})
	})

	t.Run("call position", func(t *testing.T) {
		call := &ast.Call{PosVal: ast.Position{Line: 9, Column: 1}, Kind: ast.CallStatic, Fct: g,
			Args: []ast.Expr{lit(1), lit(1), lit(1)}, Ret: ty.IntType}
		fn := ast.NewFunction(10, "f", ty.IntType).Body(ast.Ret(call))
		out := Generate(reg, fn)
		// three ConstInt and three PushRegister instructions precede the call
		if pos, ok := out.PositionAt(3*3 + 3*2); !ok || pos.Line != 9 {
			t.Errorf("PositionAt = %v, %v, want line 9", pos, ok)
		}
	})
}

func TestGenerateObjects(t *testing.T) {
	reg := vm.NewRegistry()
	foo := reg.AddClass("Foo", nil, vm.FieldDef{Name: "x", Type: ty.IntType})
	bar := reg.AddClass("Bar", &foo)
	fooType := ty.ClassOf(uint32(foo))
	barType := ty.ClassOf(uint32(bar))
	ctor := reg.AddMethod(foo, "init", []ty.Type{ty.IntType, ty.IntType, ty.IntType}, ty.UnitType, false)
	arrCls := reg.AddClass("Array", nil)
	arrCtor := reg.AddMethod(arrCls, "init", []ty.Type{ty.IntType}, ty.UnitType, false)
	bytes := ty.ArrayOf(ty.UInt8Type)

	t.Run("new object", func(t *testing.T) {
		fn := ast.NewFunction(0, "f", fooType).Body(ast.Ret(&ast.NewObject{
			PosVal: ast.Position{Line: 1, Column: 5},
			Class:  foo, Ctor: ctor, Args: []ast.Expr{lit(1), lit(2), lit(3)},
		}))
		out := Generate(reg, fn)
		checkInsts(t, Build(out), []Inst{
			ConstInt(1, 1),
			ConstInt(2, 2),
			ConstInt(3, 3),
			NewObject(0, foo),
			Plain(OpPushRegister, 0),
			Plain(OpPushRegister, 1),
			Plain(OpPushRegister, 2),
			Plain(OpPushRegister, 3),
			InvokeVoid(OpInvokeDirectVoid, ctor, 4),
			Plain(OpRetPtr, 0),
		})
		if len(out.Positions) != 1 || out.Positions[0].Offset != 9 {
			t.Errorf("Positions = %v, want one entry at offset 9", out.Positions)
		}
	})

	t.Run("let new object", func(t *testing.T) {
		b := ast.NewFunction(0, "f", ty.UnitType)
		obj := b.Var("obj", fooType)
		fn := b.Body(&ast.Let{Var: obj, Init: &ast.NewObject{Class: foo, Ctor: vm.NoFct}})
		checkInsts(t, genInsts(reg, fn), []Inst{
			NewObject(0, foo),
			Plain(OpRetVoid),
		})
	})

	t.Run("new array", func(t *testing.T) {
		fn := ast.NewFunction(0, "f", bytes).Body(ast.Ret(&ast.NewArray{
			PosVal: ast.Position{Line: 1, Column: 1},
			Class:  arrCls, Ctor: arrCtor, Length: lit(1), ArrayType: bytes,
		}))
		out := Generate(reg, fn)
		checkInsts(t, Build(out), []Inst{
			ConstInt(1, 1),
			NewArray(0, arrCls, 1),
			Plain(OpPushRegister, 0),
			Plain(OpPushRegister, 1),
			InvokeVoid(OpInvokeDirectVoid, arrCtor, 2),
			Plain(OpRetPtr, 0),
		})
		if _, ok := out.PositionAt(3); !ok {
			t.Error("no position recorded for NewArray")
		}
	})

	t.Run("array length", func(t *testing.T) {
		b := ast.NewFunction(0, "f", ty.IntType)
		a := b.Param("a", bytes)
		fn := b.Body(ast.Ret(&ast.ArrayLen{Array: ast.Use(a)}))
		checkInsts(t, genInsts(reg, fn), []Inst{
			Plain(OpArrayLength, 1, 0),
			Plain(OpRetInt, 1),
		})
	})

	t.Run("array length in effect position", func(t *testing.T) {
		b := ast.NewFunction(0, "f", ty.UnitType)
		a := b.Param("a", bytes)
		fn := b.Body(ast.Do(&ast.ArrayLen{Array: ast.Use(a)}))
		checkInsts(t, genInsts(reg, fn), []Inst{
			Plain(OpNilCheck, 0),
			Plain(OpRetVoid),
		})
	})

	t.Run("load array", func(t *testing.T) {
		b := ast.NewFunction(0, "f", ty.UInt8Type)
		a := b.Param("a", bytes)
		fn := b.Body(ast.Ret(&ast.Index{Array: ast.Use(a), Index: lit(0)}))
		checkInsts(t, genInsts(reg, fn), []Inst{
			Plain(OpConstZeroInt, 2),
			Plain(OpLoadArrayUInt8, 1, 0, 2),
			Plain(OpRetUInt8, 1),
		})
	})

	t.Run("store array", func(t *testing.T) {
		b := ast.NewFunction(0, "f", ty.UnitType)
		a := b.Param("a", bytes)
		v := b.Param("b", ty.UInt8Type)
		fn := b.Body(ast.Do(&ast.Assign{
			Target: &ast.Index{Array: ast.Use(a), Index: lit(0)},
			Value:  ast.Use(v),
		}))
		checkInsts(t, genInsts(reg, fn), []Inst{
			Plain(OpConstZeroInt, 2),
			Plain(OpStoreArrayUInt8, 1, 0, 2),
			Plain(OpRetVoid),
		})
	})

	t.Run("field", func(t *testing.T) {
		b := ast.NewMethod(0, "x", fooType, ty.IntType)
		fn := b.Body(ast.Ret(&ast.FieldAccess{
			Object: &ast.Self{Var: b.Self()}, Class: foo, Field: 0, FieldType: ty.IntType,
		}))
		checkInsts(t, genInsts(reg, fn), []Inst{
			FieldOp(OpLoadFieldInt, 1, 0, foo, 0),
			Plain(OpRetInt, 1),
		})
	})

	t.Run("field in effect position", func(t *testing.T) {
		b := ast.NewMethod(0, "x", fooType, ty.UnitType)
		fn := b.Body(ast.Do(&ast.FieldAccess{
			Object: &ast.Self{Var: b.Self()}, Class: foo, Field: 0, FieldType: ty.IntType,
		}))
		checkInsts(t, genInsts(reg, fn), []Inst{
			Plain(OpNilCheck, 0),
			Plain(OpRetVoid),
		})
	})

	t.Run("store field", func(t *testing.T) {
		b := ast.NewMethod(0, "setX", fooType, ty.UnitType)
		v := b.Param("v", ty.IntType)
		fn := b.Body(ast.Do(&ast.Assign{
			Target: &ast.FieldAccess{Object: &ast.Self{Var: b.Self()}, Class: foo, Field: 0, FieldType: ty.IntType},
			Value:  ast.Use(v),
		}))
		checkInsts(t, genInsts(reg, fn), []Inst{
			FieldOp(OpStoreFieldInt, 1, 0, foo, 0),
			Plain(OpRetVoid),
		})
	})

	t.Run("checked cast", func(t *testing.T) {
		b := ast.NewFunction(0, "f", barType)
		a := b.Param("a", fooType)
		fn := b.Body(ast.Ret(&ast.CheckedCast{Expr: ast.Use(a), Class: bar}))
		checkInsts(t, genInsts(reg, fn), []Inst{
			CheckedCast(0, bar),
			Plain(OpRetPtr, 0),
		})
	})

	t.Run("let checked cast", func(t *testing.T) {
		b := ast.NewFunction(0, "f", ty.UnitType)
		a := b.Param("a", fooType)
		x := b.Var("b", barType)
		fn := b.Body(&ast.Let{Var: x, Init: &ast.CheckedCast{Expr: ast.Use(a), Class: bar}})
		checkInsts(t, genInsts(reg, fn), []Inst{
			Plain(OpMovPtr, 1, 0),
			CheckedCast(1, bar),
			Plain(OpRetVoid),
		})
	})

	t.Run("instance of", func(t *testing.T) {
		b := ast.NewFunction(0, "f", ty.BoolType)
		a := b.Param("a", fooType)
		fn := b.Body(ast.Ret(&ast.InstanceOf{Expr: ast.Use(a), Class: bar}))
		checkInsts(t, genInsts(reg, fn), []Inst{
			InstanceOf(1, 0, bar),
			Plain(OpRetBool, 1),
		})
	})

	t.Run("unknown field", func(t *testing.T) {
		b := ast.NewMethod(0, "x", fooType, ty.IntType)
		fn := b.Body(ast.Ret(&ast.FieldAccess{
			Object: &ast.Self{Var: b.Self()}, Class: foo, Field: 7, FieldType: ty.IntType,
		}))
		expectPanic(t, "Generate", func() { Generate(reg, fn) })
	})
}

func TestGenerateSurvivesMarshal(t *testing.T) {
	reg := vm.NewRegistry()
	b := ast.NewFunction(0, "loop", ty.IntType)
	n := b.Param("n", ty.IntType)
	i := b.Var("i", ty.IntType)
	fn := b.Body(
		&ast.Let{Var: i, Init: lit(0)},
		&ast.While{
			Cond: ast.Bin(ast.Lt, ast.Use(i), ast.Use(n)),
			Body: ast.Blk(ast.Do(&ast.Assign{Target: ast.Use(i), Value: ast.Bin(ast.Add, ast.Use(i), lit(1))})),
		},
		ast.Ret(ast.Use(i)),
	)

	out := Generate(reg, fn)
	back, err := Unmarshal(Marshal(out))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	checkInsts(t, Build(back), Build(out))
}
