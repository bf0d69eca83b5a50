package bytecode

import (
	"fmt"
	"math"

	"github.com/chazu/dora/pkg/ast"
	"github.com/chazu/dora/pkg/ty"
	"github.com/chazu/dora/vm"
)

// destKind says where the value of an expression has to end up.
type destKind uint8

const (
	destEffect destKind = iota // value unused, only side effects matter
	destAlloc                  // any register, allocating one if needed
	destReg                    // exactly the given register
)

type dest struct {
	kind destKind
	reg  Register
}

var (
	effect = dest{kind: destEffect}
	alloc  = dest{kind: destAlloc}
)

func into(r Register) dest { return dest{kind: destReg, reg: r} }

type loopLabels struct {
	start Label
	end   Label
}

// Generate lowers a type-checked function body to bytecode.
//
// Parameters occupy the first registers, self first. Every other value
// gets a fresh register; registers are never reused within a function.
func Generate(reg *vm.Registry, fn *ast.Function) *Function {
	g := &generator{
		reg:  reg,
		fn:   fn,
		w:    NewWriter(fn.Name),
		vars: make(map[*ast.Var]Register),
	}

	params := fn.AllParams()
	for _, p := range params {
		g.vars[p] = g.w.AddRegister(p.Type)
	}
	g.w.SetArguments(uint32(len(params)))

	g.visitBlock(fn.Body)
	if fn.Ret.IsUnit() && !fn.Body.EndsWithReturn() {
		g.w.EmitRegs(OpRetVoid)
	}
	return g.w.Generate()
}

type generator struct {
	reg   *vm.Registry
	fn    *ast.Function
	w     *Writer
	vars  map[*ast.Var]Register
	loops []loopLabels
}

// ensure returns the register a value of type t is written to.
func (g *generator) ensure(d dest, t ty.Type) Register {
	if d.kind == destReg {
		return d.reg
	}
	return g.w.AddRegister(t)
}

func (g *generator) varReg(v *ast.Var) Register {
	r, ok := g.vars[v]
	if !ok {
		panic(fmt.Sprintf("variable %s used before declaration", v.Name))
	}
	return r
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *generator) visitBlock(b *ast.Block) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		g.visitStmt(s)
	}
}

func (g *generator) visitStmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.Let:
		r := g.w.AddRegister(s.Var.Type)
		g.vars[s.Var] = r
		if s.Init != nil {
			g.visitExpr(s.Init, into(r))
		}

	case *ast.ExprStmt:
		g.visitExpr(s.Expr, effect)

	case *ast.Return:
		if s.Value == nil || s.Value.Type().IsUnit() {
			if s.Value != nil {
				g.visitExpr(s.Value, effect)
			}
			g.w.EmitRegs(OpRetVoid)
			return
		}
		r := g.visitExpr(s.Value, alloc)
		g.w.EmitRegs(RetOp(s.Value.Type()), r)

	case *ast.If:
		cond := g.visitExpr(s.Cond, alloc)
		elseLbl := g.w.NewLabel()
		g.w.EmitJumpIfFalse(cond, elseLbl)
		g.visitBlock(s.Then)
		if s.Else == nil {
			g.w.BindLabel(elseLbl)
			return
		}
		endLbl := g.w.NewLabel()
		if !s.Then.EndsWithReturn() {
			g.w.EmitJump(endLbl)
		}
		g.w.BindLabel(elseLbl)
		g.visitBlock(s.Else)
		g.w.BindLabel(endLbl)

	case *ast.While:
		start := g.w.DefineLabel()
		end := g.w.NewLabel()
		cond := g.visitExpr(s.Cond, alloc)
		g.w.EmitJumpIfFalse(cond, end)
		g.loops = append(g.loops, loopLabels{start: start, end: end})
		g.visitBlock(s.Body)
		g.loops = g.loops[:len(g.loops)-1]
		g.w.EmitJumpLoop(start)
		g.w.BindLabel(end)

	case *ast.Break:
		g.w.EmitJump(g.innermostLoop().end)

	case *ast.Continue:
		g.w.EmitJumpLoop(g.innermostLoop().start)

	case *ast.Block:
		g.visitBlock(s)

	case *ast.Assert:
		cond := g.visitExpr(s.Cond, alloc)
		g.w.SetPosition(s.Pos())
		g.w.EmitRegs(OpAssert, cond)

	default:
		panic(fmt.Sprintf("unsupported statement %T", s))
	}
}

func (g *generator) innermostLoop() loopLabels {
	if len(g.loops) == 0 {
		panic("break or continue outside of loop")
	}
	return g.loops[len(g.loops)-1]
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// visitExpr emits e and returns the register holding its value. In effect
// position the returned register is meaningless.
func (g *generator) visitExpr(e ast.Expr, d dest) Register {
	switch e := e.(type) {
	case *ast.LitInt, *ast.LitInt64, *ast.LitUInt8, *ast.LitChar, *ast.LitFloat,
		*ast.LitDouble, *ast.LitBool, *ast.LitString, *ast.LitNil, *ast.LitEnum:
		if d.kind == destEffect {
			return 0
		}
		r := g.ensure(d, e.Type())
		g.emitLiteral(e, r)
		return r

	case *ast.Ident:
		return g.visitVar(e.Var, d)
	case *ast.Self:
		return g.visitVar(e.Var, d)

	case *ast.Unary:
		if d.kind == destEffect {
			g.visitExpr(e.Operand, effect)
			return 0
		}
		r := g.ensure(d, e.Type())
		src := g.visitExpr(e.Operand, alloc)
		g.w.EmitRegs(UnaryOp(e.Op, e.Type()), r, src)
		return r

	case *ast.Binary:
		return g.visitBinary(e, d)

	case *ast.Assign:
		g.visitAssign(e)
		return 0

	case *ast.FieldAccess:
		g.reg.Field(e.Class, e.Field)
		if d.kind == destEffect {
			obj := g.visitExpr(e.Object, alloc)
			g.w.SetPosition(e.Pos())
			g.w.EmitRegs(OpNilCheck, obj)
			return 0
		}
		r := g.ensure(d, e.Type())
		obj := g.visitExpr(e.Object, alloc)
		g.w.SetPosition(e.Pos())
		g.w.EmitField(LoadFieldOp(e.Type()), r, obj, e.Class, e.Field)
		return r

	case *ast.GlobalRef:
		if d.kind == destEffect {
			return 0
		}
		r := g.ensure(d, e.Type())
		g.w.EmitGlobal(LoadGlobalOp(e.Type()), r, e.Global)
		return r

	case *ast.Index:
		if d.kind == destEffect {
			arr := g.visitExpr(e.Array, alloc)
			idx := g.visitExpr(e.Index, alloc)
			g.w.SetPosition(e.Pos())
			g.w.EmitRegs(OpArrayBoundCheck, arr, idx)
			return 0
		}
		r := g.ensure(d, e.Type())
		arr := g.visitExpr(e.Array, alloc)
		idx := g.visitExpr(e.Index, alloc)
		g.w.SetPosition(e.Pos())
		g.w.EmitRegs(LoadArrayOp(e.Type()), r, arr, idx)
		return r

	case *ast.ArrayLen:
		if d.kind == destEffect {
			arr := g.visitExpr(e.Array, alloc)
			g.w.SetPosition(e.Pos())
			g.w.EmitRegs(OpNilCheck, arr)
			return 0
		}
		r := g.ensure(d, ty.IntType)
		arr := g.visitExpr(e.Array, alloc)
		g.w.SetPosition(e.Pos())
		g.w.EmitRegs(OpArrayLength, r, arr)
		return r

	case *ast.Call:
		return g.visitCall(e, d)

	case *ast.NewObject:
		g.reg.Class(e.Class)
		r := g.ensure(d, e.Type())
		args := make([]Register, 0, len(e.Args)+1)
		args = append(args, r)
		for _, a := range e.Args {
			args = append(args, g.visitExpr(a, alloc))
		}
		g.w.SetPosition(e.Pos())
		g.w.EmitNewObject(r, e.Class)
		if e.Ctor != vm.NoFct {
			g.pushAndInvokeVoid(e.Ctor, args)
		}
		return r

	case *ast.NewArray:
		r := g.ensure(d, e.Type())
		length := g.visitExpr(e.Length, alloc)
		g.w.SetPosition(e.Pos())
		g.w.EmitNewArray(r, e.Class, length)
		if e.Ctor != vm.NoFct {
			g.pushAndInvokeVoid(e.Ctor, []Register{r, length})
		}
		return r

	case *ast.Conv:
		from := e.Expr.Type()
		if from.Kind == e.To.Kind {
			return g.visitExpr(e.Expr, d)
		}
		if d.kind == destEffect {
			g.visitExpr(e.Expr, effect)
			return 0
		}
		r := g.ensure(d, e.To)
		src := g.visitExpr(e.Expr, alloc)
		g.w.EmitRegs(ConvOp(e.Mode, from, e.To), r, src)
		return r

	case *ast.InstanceOf:
		if d.kind == destEffect {
			g.visitExpr(e.Expr, effect)
			return 0
		}
		r := g.ensure(d, ty.BoolType)
		src := g.visitExpr(e.Expr, alloc)
		g.w.EmitInstanceOf(r, src, e.Class)
		return r

	case *ast.CheckedCast:
		// The cast happens in place on the register holding the value.
		if d.kind == destEffect {
			d = alloc
		}
		r := g.visitExpr(e.Expr, d)
		g.w.SetPosition(e.Pos())
		g.w.EmitCheckedCast(r, e.Class)
		return r

	case *ast.TupleLit:
		g.reg.Tuple(e.Tuple)
		if d.kind == destEffect {
			for _, el := range e.Elems {
				g.visitExpr(el, effect)
			}
			return 0
		}
		r := g.ensure(d, e.Type())
		elems := make([]Register, len(e.Elems))
		for i, el := range e.Elems {
			elems[i] = g.visitExpr(el, alloc)
		}
		for i, el := range elems {
			g.w.EmitTupleElement(OpStoreTupleElement, el, r, e.Tuple, uint32(i))
		}
		return r

	case *ast.TupleElem:
		if d.kind == destEffect {
			g.visitExpr(e.Tuple, effect)
			return 0
		}
		id, ok := e.Tuple.Type().TupleID()
		if !ok {
			panic(fmt.Sprintf("tuple element of non-tuple %s", e.Tuple.Type()))
		}
		r := g.ensure(d, e.Type())
		t := g.visitExpr(e.Tuple, alloc)
		g.w.EmitTupleElement(OpLoadTupleElement, r, t, id, uint32(e.Index))
		return r
	}

	panic(fmt.Sprintf("unsupported expression %T", e))
}

// visitVar reads a variable. The variable's own register is the result
// unless a specific register was requested, which costs a move.
func (g *generator) visitVar(v *ast.Var, d dest) Register {
	src := g.varReg(v)
	switch d.kind {
	case destEffect:
		return 0
	case destReg:
		if d.reg != src {
			g.emitMov(v.Type, d.reg, src)
		}
		return d.reg
	}
	return src
}

func (g *generator) emitMov(t ty.Type, dst, src Register) {
	if id, ok := t.TupleID(); ok {
		g.w.EmitMovTuple(dst, src, id)
		return
	}
	g.w.EmitRegs(MovOp(t), dst, src)
}

func (g *generator) emitLiteral(e ast.Expr, r Register) {
	switch e := e.(type) {
	case *ast.LitInt:
		if e.Value == 0 {
			g.w.EmitRegs(OpConstZeroInt, r)
		} else {
			g.w.EmitConstInt(r, e.Value)
		}
	case *ast.LitInt64:
		if e.Value == 0 {
			g.w.EmitRegs(OpConstZeroInt64, r)
		} else {
			g.w.EmitConstInt64(r, e.Value)
		}
	case *ast.LitUInt8:
		if e.Value == 0 {
			g.w.EmitRegs(OpConstZeroUInt8, r)
		} else {
			g.w.EmitConstUInt8(r, e.Value)
		}
	case *ast.LitChar:
		if e.Value == 0 {
			g.w.EmitRegs(OpConstZeroChar, r)
		} else {
			g.w.EmitConstChar(r, e.Value)
		}
	case *ast.LitFloat:
		if math.Float32bits(e.Value) == 0 {
			g.w.EmitRegs(OpConstZeroFloat, r)
		} else {
			g.w.EmitConstFloat(r, e.Value)
		}
	case *ast.LitDouble:
		if math.Float64bits(e.Value) == 0 {
			g.w.EmitRegs(OpConstZeroDouble, r)
		} else {
			g.w.EmitConstDouble(r, e.Value)
		}
	case *ast.LitBool:
		if e.Value {
			g.w.EmitRegs(OpConstTrue, r)
		} else {
			g.w.EmitRegs(OpConstFalse, r)
		}
	case *ast.LitString:
		g.w.EmitConstString(r, e.Value)
	case *ast.LitNil:
		g.w.EmitRegs(OpConstNil, r)
	case *ast.LitEnum:
		g.w.EmitConstInt(r, e.Variant)
	}
}

func (g *generator) visitBinary(e *ast.Binary, d dest) Register {
	if e.Op == ast.And || e.Op == ast.Or {
		r := g.ensure(d, ty.BoolType)
		end := g.w.NewLabel()
		g.visitExpr(e.Lhs, into(r))
		if e.Op == ast.And {
			g.w.EmitJumpIfFalse(r, end)
		} else {
			g.w.EmitJumpIfTrue(r, end)
		}
		g.visitExpr(e.Rhs, into(r))
		g.w.BindLabel(end)
		return r
	}

	operand := e.Lhs.Type()
	traps := (e.Op == ast.Div || e.Op == ast.Mod) && !operand.IsFloat()

	if d.kind == destEffect && !traps {
		g.visitExpr(e.Lhs, effect)
		g.visitExpr(e.Rhs, effect)
		return 0
	}

	r := g.ensure(d, e.Type())
	lhs := g.visitExpr(e.Lhs, alloc)
	rhs := g.visitExpr(e.Rhs, alloc)
	if traps {
		g.w.SetPosition(e.Pos())
	}
	g.w.EmitRegs(BinaryOp(e.Op, operand), r, lhs, rhs)
	return r
}

func (g *generator) visitAssign(e *ast.Assign) {
	switch t := e.Target.(type) {
	case *ast.Ident:
		g.visitExpr(e.Value, into(g.varReg(t.Var)))

	case *ast.FieldAccess:
		g.reg.Field(t.Class, t.Field)
		obj := g.visitExpr(t.Object, alloc)
		val := g.visitExpr(e.Value, alloc)
		g.w.SetPosition(e.Pos())
		g.w.EmitField(StoreFieldOp(t.Type()), val, obj, t.Class, t.Field)

	case *ast.GlobalRef:
		val := g.visitExpr(e.Value, alloc)
		g.w.EmitGlobal(StoreGlobalOp(t.Type()), val, t.Global)

	case *ast.Index:
		arr := g.visitExpr(t.Array, alloc)
		idx := g.visitExpr(t.Index, alloc)
		val := g.visitExpr(e.Value, alloc)
		g.w.SetPosition(e.Pos())
		g.w.EmitRegs(StoreArrayOp(t.Type()), val, arr, idx)

	default:
		panic(fmt.Sprintf("cannot assign to %T", e.Target))
	}
}

func (g *generator) visitCall(e *ast.Call, d dest) Register {
	// An unused result selects the Void variant.
	ret := e.Ret
	if d.kind == destEffect {
		ret = ty.UnitType
	}
	op := InvokeOp(e.Kind, ret)

	var r Register
	if !ret.IsUnit() {
		r = g.ensure(d, ret)
	}

	args := make([]Register, 0, len(e.Args)+1)
	if e.Receiver != nil {
		args = append(args, g.visitExpr(e.Receiver, alloc))
	}
	for _, a := range e.Args {
		args = append(args, g.visitExpr(a, alloc))
	}
	for _, a := range args {
		g.w.EmitRegs(OpPushRegister, a)
	}

	g.w.SetPosition(e.Pos())
	if ret.IsUnit() {
		g.w.EmitInvokeVoid(op, e.Fct, uint32(len(args)))
		return 0
	}
	g.w.EmitInvoke(op, r, e.Fct, uint32(len(args)))
	return r
}

func (g *generator) pushAndInvokeVoid(fct vm.FctID, args []Register) {
	for _, a := range args {
		g.w.EmitRegs(OpPushRegister, a)
	}
	g.w.EmitInvokeVoid(OpInvokeDirectVoid, fct, uint32(len(args)))
}
