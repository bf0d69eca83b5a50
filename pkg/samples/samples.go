// Package samples holds small built-in programs, already resolved and
// typed, that exercise both code generators end to end.
package samples

import (
	"github.com/chazu/dora/pkg/ast"
	"github.com/chazu/dora/pkg/ty"
	"github.com/chazu/dora/vm"
)

// Program is a set of functions sharing one registry.
type Program struct {
	Registry  *vm.Registry
	Functions []*ast.Function
}

// Function returns the function with the given name, or nil.
func (p *Program) Function(name string) *ast.Function {
	for _, fn := range p.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

func at(line, col int) ast.Position { return ast.Position{Line: line, Column: col} }

func i32(v int32) *ast.LitInt { return &ast.LitInt{Value: v} }

func assign(v *ast.Var, e ast.Expr) *ast.ExprStmt {
	return ast.Do(&ast.Assign{Target: ast.Use(v), Value: e})
}

// Load builds every sample into a fresh registry.
func Load() *Program {
	reg := vm.NewRegistry()
	p := &Program{Registry: reg}

	p.Functions = append(p.Functions,
		sub(reg),
		fib(reg),
		fact(reg),
		sumArray(reg),
		swapSum(reg),
		bump(reg),
		clamp(reg),
	)
	p.Functions = append(p.Functions, shapes(reg)...)
	return p
}

// sub(a: Int, b: Int): Int = a - b
func sub(reg *vm.Registry) *ast.Function {
	id := reg.AddFct("sub", []ty.Type{ty.IntType, ty.IntType}, ty.IntType)
	b := ast.NewFunction(id, "sub", ty.IntType)
	x, y := b.Param("a", ty.IntType), b.Param("b", ty.IntType)
	return b.Body(ast.Ret(ast.Bin(ast.Sub, ast.Use(x), ast.Use(y))))
}

// fib(n: Int): Int, iteratively.
func fib(reg *vm.Registry) *ast.Function {
	id := reg.AddFct("fib", []ty.Type{ty.IntType}, ty.IntType)
	b := ast.NewFunction(id, "fib", ty.IntType)
	n := b.Param("n", ty.IntType)
	a, c, i, t := b.Var("a", ty.IntType), b.Var("b", ty.IntType), b.Var("i", ty.IntType), b.Var("t", ty.IntType)
	return b.Body(
		&ast.Let{Var: a, Init: i32(0)},
		&ast.Let{Var: c, Init: i32(1)},
		&ast.Let{Var: i, Init: i32(0)},
		&ast.While{
			Cond: ast.Bin(ast.Lt, ast.Use(i), ast.Use(n)),
			Body: ast.Blk(
				&ast.Let{Var: t, Init: ast.Bin(ast.Add, ast.Use(a), ast.Use(c))},
				assign(a, ast.Use(c)),
				assign(c, ast.Use(t)),
				assign(i, ast.Bin(ast.Add, ast.Use(i), i32(1))),
			),
		},
		ast.Ret(ast.Use(a)),
	)
}

// fact(n: Int64): Int64, recursively.
func fact(reg *vm.Registry) *ast.Function {
	id := reg.AddFct("fact", []ty.Type{ty.Int64Type}, ty.Int64Type)
	b := ast.NewFunction(id, "fact", ty.Int64Type)
	n := b.Param("n", ty.Int64Type)
	one := func() ast.Expr { return &ast.LitInt64{Value: 1} }
	return b.Body(
		&ast.If{
			Cond: ast.Bin(ast.Le, ast.Use(n), one()),
			Then: ast.Blk(ast.Ret(one())),
		},
		ast.Ret(ast.Bin(ast.Mul, ast.Use(n), &ast.Call{
			PosVal: at(3, 16),
			Kind:   ast.CallStatic,
			Fct:    id,
			Args:   []ast.Expr{ast.Bin(ast.Sub, ast.Use(n), one())},
			Ret:    ty.Int64Type,
		})),
	)
}

// sumArray(xs: Array[Int]): Int sums the elements, bounds-checked.
func sumArray(reg *vm.Registry) *ast.Function {
	arr := ty.ArrayOf(ty.IntType)
	id := reg.AddFct("sumArray", []ty.Type{arr}, ty.IntType)
	b := ast.NewFunction(id, "sumArray", ty.IntType)
	xs := b.Param("xs", arr)
	s, i := b.Var("s", ty.IntType), b.Var("i", ty.IntType)
	return b.Body(
		&ast.Let{Var: s, Init: i32(0)},
		&ast.Let{Var: i, Init: i32(0)},
		&ast.While{
			Cond: ast.Bin(ast.Lt, ast.Use(i), &ast.ArrayLen{PosVal: at(3, 15), Array: ast.Use(xs)}),
			Body: ast.Blk(
				assign(s, ast.Bin(ast.Add, ast.Use(s), &ast.Index{PosVal: at(4, 15), Array: ast.Use(xs), Index: ast.Use(i)})),
				assign(i, ast.Bin(ast.Add, ast.Use(i), i32(1))),
			),
		},
		ast.Ret(ast.Use(s)),
	)
}

// swapSum(a: Int, b: Int): Int packs (b, a) into a tuple and adds the
// elements back up.
func swapSum(reg *vm.Registry) *ast.Function {
	pair := reg.EnsureTuple(ty.IntType, ty.IntType)
	id := reg.AddFct("swapSum", []ty.Type{ty.IntType, ty.IntType}, ty.IntType)
	b := ast.NewFunction(id, "swapSum", ty.IntType)
	x, y := b.Param("a", ty.IntType), b.Param("b", ty.IntType)
	t := b.Var("t", ty.TupleOf(pair))
	elem := func(i int) ast.Expr {
		return &ast.TupleElem{Tuple: ast.Use(t), Index: i, ElemType: ty.IntType}
	}
	return b.Body(
		&ast.Let{Var: t, Init: &ast.TupleLit{Tuple: pair, Elems: []ast.Expr{ast.Use(y), ast.Use(x)}}},
		ast.Ret(ast.Bin(ast.Add, elem(0), elem(1))),
	)
}

// bump() increments the global counter.
func bump(reg *vm.Registry) *ast.Function {
	g := reg.AddGlobal("counter", ty.IntType)
	ref := func() ast.Expr { return &ast.GlobalRef{Global: g, GlobalType: ty.IntType} }
	id := reg.AddFct("bump", nil, ty.UnitType)
	return ast.NewFunction(id, "bump", ty.UnitType).Body(
		ast.Do(&ast.Assign{Target: ref(), Value: ast.Bin(ast.Add, ref(), i32(1))}),
	)
}

// clamp(x: Int, lo: Int, hi: Int): Int uses short-circuit conditions and
// an assertion.
func clamp(reg *vm.Registry) *ast.Function {
	id := reg.AddFct("clamp", []ty.Type{ty.IntType, ty.IntType, ty.IntType}, ty.IntType)
	b := ast.NewFunction(id, "clamp", ty.IntType)
	x, lo, hi := b.Param("x", ty.IntType), b.Param("lo", ty.IntType), b.Param("hi", ty.IntType)
	return b.Body(
		&ast.Assert{PosVal: at(2, 3), Cond: ast.Bin(ast.Le, ast.Use(lo), ast.Use(hi))},
		&ast.If{
			Cond: ast.Bin(ast.And, ast.Bin(ast.Ge, ast.Use(x), ast.Use(lo)), ast.Bin(ast.Le, ast.Use(x), ast.Use(hi))),
			Then: ast.Blk(ast.Ret(ast.Use(x))),
		},
		&ast.If{
			Cond: ast.Bin(ast.Lt, ast.Use(x), ast.Use(lo)),
			Then: ast.Blk(ast.Ret(ast.Use(lo))),
			Else: ast.Blk(ast.Ret(ast.Use(hi))),
		},
	)
}

// shapes builds a small class hierarchy: Rect(w, h) with a constructor,
// a virtual area method, and free functions that allocate and dispatch.
func shapes(reg *vm.Registry) []*ast.Function {
	rect := reg.AddClass("Rect", nil,
		vm.FieldDef{Name: "w", Type: ty.IntType},
		vm.FieldDef{Name: "h", Type: ty.IntType},
	)
	rectType := ty.ClassOf(uint32(rect))
	cls := reg.Class(rect)
	w, _ := cls.FieldByName("w")
	h, _ := cls.FieldByName("h")
	field := func(obj ast.Expr, f vm.Field, pos ast.Position) *ast.FieldAccess {
		return &ast.FieldAccess{PosVal: pos, Object: obj, Class: rect, Field: f.ID, FieldType: f.Type}
	}

	initID := reg.AddMethod(rect, "init", []ty.Type{ty.IntType, ty.IntType}, ty.UnitType, false)
	ib := ast.NewMethod(initID, "Rect.init", rectType, ty.UnitType)
	iw, ih := ib.Param("w", ty.IntType), ib.Param("h", ty.IntType)
	self := func() ast.Expr { return &ast.Self{Var: ib.Self()} }
	init := ib.Body(
		ast.Do(&ast.Assign{PosVal: at(2, 5), Target: field(self(), w, at(2, 5)), Value: ast.Use(iw)}),
		ast.Do(&ast.Assign{PosVal: at(3, 5), Target: field(self(), h, at(3, 5)), Value: ast.Use(ih)}),
	)

	areaID := reg.AddMethod(rect, "area", nil, ty.IntType, true)
	ab := ast.NewMethod(areaID, "Rect.area", rectType, ty.IntType)
	aself := func() ast.Expr { return &ast.Self{Var: ab.Self()} }
	area := ab.Body(ast.Ret(ast.Bin(ast.Mul,
		field(aself(), w, at(2, 10)),
		field(aself(), h, at(2, 19)),
	)))

	mkID := reg.AddFct("makeRect", []ty.Type{ty.IntType, ty.IntType}, rectType)
	mb := ast.NewFunction(mkID, "makeRect", rectType)
	mw, mh := mb.Param("w", ty.IntType), mb.Param("h", ty.IntType)
	makeRect := mb.Body(ast.Ret(&ast.NewObject{
		PosVal: at(2, 10),
		Class:  rect,
		Ctor:   initID,
		Args:   []ast.Expr{ast.Use(mw), ast.Use(mh)},
	}))

	totalID := reg.AddFct("totalArea", []ty.Type{rectType, rectType}, ty.IntType)
	tb := ast.NewFunction(totalID, "totalArea", ty.IntType)
	r1, r2 := tb.Param("a", rectType), tb.Param("b", rectType)
	areaOf := func(r *ast.Var, col int) ast.Expr {
		return &ast.Call{PosVal: at(2, col), Kind: ast.CallVirtual, Fct: areaID, Receiver: ast.Use(r), Ret: ty.IntType}
	}
	totalArea := tb.Body(ast.Ret(ast.Bin(ast.Add, areaOf(r1, 10), areaOf(r2, 21))))

	return []*ast.Function{init, area, makeRect, totalArea}
}
