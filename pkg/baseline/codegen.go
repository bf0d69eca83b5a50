package baseline

import (
	"fmt"

	"github.com/chazu/dora/pkg/asm"
	"github.com/chazu/dora/pkg/ast"
	"github.com/chazu/dora/pkg/bytecode"
	"github.com/chazu/dora/pkg/ty"
	"github.com/chazu/dora/vm"
)

// StoreKind says where an expression leaves its value.
type StoreKind uint8

const (
	StoreNone StoreKind = iota
	StoreReg
	StoreFReg
	StoreStack
)

// ExprStore is the destination of an expression: a register, a stack slot
// for tuple values, or nothing when only the side effects matter.
type ExprStore struct {
	Kind StoreKind
	reg  asm.AnyReg
	slot ManagedStackSlot
}

// NoStore discards the value.
var NoStore = ExprStore{}

func RegStore(r asm.Reg) ExprStore            { return ExprStore{Kind: StoreReg, reg: r.Any()} }
func FRegStore(f asm.FReg) ExprStore          { return ExprStore{Kind: StoreFReg, reg: f.Any()} }
func StackStore(s ManagedStackSlot) ExprStore { return ExprStore{Kind: StoreStack, slot: s} }

// IsNone reports whether the value is discarded.
func (s ExprStore) IsNone() bool { return s.Kind == StoreNone }

// AnyReg returns the register of a register store.
func (s ExprStore) AnyReg() asm.AnyReg {
	if s.Kind != StoreReg && s.Kind != StoreFReg {
		panic(fmt.Sprintf("store kind %d has no register", s.Kind))
	}
	return s.reg
}

// Reg returns the general-purpose register of a register store.
func (s ExprStore) Reg() asm.Reg { return s.AnyReg().Reg() }

// Slot returns the stack slot of a stack store.
func (s ExprStore) Slot() ManagedStackSlot {
	if s.Kind != StoreStack {
		panic(fmt.Sprintf("store kind %d has no stack slot", s.Kind))
	}
	return s.slot
}

type loopLabels struct {
	start, end asm.Label
}

// Generate compiles fn for arch. Internal inconsistencies panic.
func Generate(reg *vm.Registry, fn *ast.Function, arch *asm.Arch) *Code {
	g := &codegen{
		reg:   reg,
		fn:    fn,
		arch:  arch,
		buf:   asm.NewBuffer(arch),
		frame: NewManagedStackFrame(reg),
		vars:  make(map[*ast.Var]ManagedStackSlot),
	}

	g.buf.Prologue()
	g.frame.PushScope()
	g.storeParams()
	g.visitBlock(fn.Body)
	if fn.Ret.IsUnit() && !fn.Body.EndsWithReturn() {
		g.emitReturn()
	}
	g.frame.PopScope()
	if !g.frame.IsEmpty() {
		panic(fmt.Sprintf("%s: stack slots still live after code generation", fn.Name))
	}

	size := g.frame.StackSize()
	g.buf.PatchFrameSize(size)
	return &Code{
		Name:      fn.Name,
		Arch:      arch,
		Ops:       g.buf.Finish(),
		FrameSize: size,
		GcPoints:  g.gcPoints,
		Positions: g.positions,
	}
}

type codegen struct {
	reg   *vm.Registry
	fn    *ast.Function
	arch  *asm.Arch
	buf   *asm.Buffer
	frame *ManagedStackFrame
	vars  map[*ast.Var]ManagedStackSlot
	loops []loopLabels

	gcPoints  []GcPointEntry
	positions []PositionEntry
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (g *codegen) resultStore(t ty.Type) ExprStore {
	switch {
	case t.IsUnit():
		return NoStore
	case t.IsFloat():
		return FRegStore(g.arch.FResult)
	case t.IsTuple():
		panic(fmt.Sprintf("%s value needs a stack slot", t))
	}
	return RegStore(g.arch.Result)
}

func (g *codegen) tmpStore(t ty.Type) ExprStore {
	if t.IsFloat() {
		return FRegStore(g.arch.FTmp1)
	}
	return RegStore(g.arch.Tmp1)
}

func (g *codegen) result() asm.Reg { return g.arch.Result }

func (g *codegen) local(offset int32) asm.Mem { return asm.Local(g.arch, offset) }

func (g *codegen) loadLocal(t ty.Type, dst asm.AnyReg, offset int32) {
	if !t.IsUnit() {
		g.buf.Load(t, dst, g.local(offset))
	}
}

func (g *codegen) storeLocal(t ty.Type, offset int32, src asm.AnyReg) {
	if !t.IsUnit() {
		g.buf.Store(t, g.local(offset), src)
	}
}

// spill parks a register value in a fresh temporary. The slot becomes
// visible to the collector only once the store has been emitted.
func (g *codegen) spill(t ty.Type, src asm.AnyReg) ManagedStackSlot {
	temp := g.frame.AddTempUninitialized(t)
	g.storeLocal(t, temp.Offset, src)
	g.frame.MarkInitialized(temp.Var)
	return temp
}

func (g *codegen) trap(op int, pos ast.Position) {
	g.positions = append(g.positions, PositionEntry{Op: op, Pos: pos})
}

func (g *codegen) safepoint(op int) {
	g.gcPoints = append(g.gcPoints, GcPointEntry{Op: op, Point: g.frame.GcPoint()})
}

func (g *codegen) varSlot(v *ast.Var) ManagedStackSlot {
	slot, ok := g.vars[v]
	if !ok {
		panic(fmt.Sprintf("variable %s used before declaration", v.Name))
	}
	return slot
}

func isSimple(e ast.Expr) bool {
	switch e.(type) {
	case *ast.LitInt, *ast.LitInt64, *ast.LitUInt8, *ast.LitChar,
		*ast.LitFloat, *ast.LitDouble, *ast.LitBool, *ast.LitString,
		*ast.LitNil, *ast.LitEnum, *ast.Ident, *ast.Self, *ast.GlobalRef:
		return true
	}
	return false
}

// storeParams copies every incoming argument into its home slot.
func (g *codegen) storeParams() {
	var ints, floats int
	var stack int32
	for _, p := range g.fn.AllParams() {
		if p.Type.IsTuple() {
			panic(fmt.Sprintf("%s: tuple parameter %s is not supported", g.fn.Name, p.Name))
		}
		slot := g.frame.AddScope(p.Type)
		g.vars[p] = slot

		switch {
		case p.Type.IsUnit():
		case p.Type.IsFloat() && floats < len(g.arch.FParams):
			g.storeLocal(p.Type, slot.Offset, g.arch.FParams[floats].Any())
			floats++
		case !p.Type.IsFloat() && ints < len(g.arch.Params):
			g.storeLocal(p.Type, slot.Offset, g.arch.Params[ints].Any())
			ints++
		default:
			// Above the saved frame pointer and return address.
			disp := int32(2*g.arch.PtrSize) + stack*int32(g.arch.PtrSize)
			tmp := g.tmpStore(p.Type).AnyReg()
			g.buf.Load(p.Type, tmp, asm.Offset(g.arch.FP, disp))
			g.storeLocal(p.Type, slot.Offset, tmp)
			stack++
		}
	}
}

func (g *codegen) emitReturn() {
	g.buf.Epilogue()
	g.buf.Ret()
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *codegen) visitBlock(b *ast.Block) {
	g.frame.PushScope()
	for _, s := range b.Stmts {
		g.visitStmt(s)
	}
	g.frame.PopScope()
}

func (g *codegen) visitStmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.Let:
		g.visitLet(s)

	case *ast.ExprStmt:
		g.visitExpr(s.Expr, NoStore)

	case *ast.Return:
		if s.Value != nil {
			t := s.Value.Type()
			if t.IsTuple() {
				panic(fmt.Sprintf("%s: returning %s is not supported", g.fn.Name, t))
			}
			g.visitExpr(s.Value, g.resultStore(t))
		}
		g.emitReturn()

	case *ast.If:
		elseLabel := g.buf.CreateLabel()
		g.visitExpr(s.Cond, RegStore(g.result()))
		g.buf.JumpIfZero(g.result(), elseLabel)
		g.visitBlock(s.Then)
		if s.Else == nil {
			g.buf.BindLabel(elseLabel)
			return
		}
		end := g.buf.CreateLabel()
		if !s.Then.EndsWithReturn() {
			g.buf.Jump(end)
		}
		g.buf.BindLabel(elseLabel)
		g.visitBlock(s.Else)
		g.buf.BindLabel(end)

	case *ast.While:
		loop := loopLabels{start: g.buf.CreateLabel(), end: g.buf.CreateLabel()}
		g.buf.BindLabel(loop.start)
		g.visitExpr(s.Cond, RegStore(g.result()))
		g.buf.JumpIfZero(g.result(), loop.end)
		g.loops = append(g.loops, loop)
		g.visitBlock(s.Body)
		g.loops = g.loops[:len(g.loops)-1]
		g.buf.Jump(loop.start)
		g.buf.BindLabel(loop.end)

	case *ast.Break:
		g.buf.Jump(g.innermostLoop().end)

	case *ast.Continue:
		g.buf.Jump(g.innermostLoop().start)

	case *ast.Block:
		g.visitBlock(s)

	case *ast.Assert:
		g.visitExpr(s.Cond, RegStore(g.result()))
		g.trap(g.buf.Assert(g.result()), s.PosVal)

	default:
		panic(fmt.Sprintf("unknown statement %T", s))
	}
}

func (g *codegen) innermostLoop() loopLabels {
	if len(g.loops) == 0 {
		panic("break or continue outside of loop")
	}
	return g.loops[len(g.loops)-1]
}

// visitLet evaluates the initializer before the variable's slot exists, so
// the slot is only ever seen by the collector holding a stored value.
// Variables without initializer are zeroed.
func (g *codegen) visitLet(s *ast.Let) {
	t := s.Var.Type

	if t.IsTuple() {
		slot := g.frame.AddScopeUninitialized(t)
		if s.Init != nil {
			g.visitExpr(s.Init, StackStore(slot))
		} else {
			g.zero(t, slot.Offset)
		}
		g.frame.MarkInitialized(slot.Var)
		g.vars[s.Var] = slot
		return
	}

	var src asm.AnyReg
	if s.Init != nil {
		store := g.resultStore(t)
		g.visitExpr(s.Init, store)
		if !store.IsNone() {
			src = store.AnyReg()
		}
	}
	slot := g.frame.AddScopeUninitialized(t)
	if s.Init != nil {
		g.storeLocal(t, slot.Offset, src)
	} else {
		g.zero(t, slot.Offset)
	}
	g.frame.MarkInitialized(slot.Var)
	g.vars[s.Var] = slot
}

// zero clears the value of type t at offset.
func (g *codegen) zero(t ty.Type, offset int32) {
	switch {
	case t.IsUnit():
	case t.IsTuple():
		id, _ := t.TupleID()
		layout := g.reg.Tuple(id)
		for i, elem := range layout.Elems {
			g.zero(elem, offset+layout.Offsets[i])
		}
	case t.IsFloat():
		g.buf.LoadFImm(t, g.arch.FTmp1, 0)
		g.storeLocal(t, offset, g.arch.FTmp1.Any())
	default:
		g.buf.LoadImm(t, g.arch.Tmp1, 0)
		g.storeLocal(t, offset, g.arch.Tmp1.Any())
	}
}

// copyValue copies a value of type t between two stack locations.
func (g *codegen) copyValue(t ty.Type, dst, src int32) {
	switch {
	case t.IsUnit():
	case t.IsTuple():
		id, _ := t.TupleID()
		layout := g.reg.Tuple(id)
		for i, elem := range layout.Elems {
			g.copyValue(elem, dst+layout.Offsets[i], src+layout.Offsets[i])
		}
	default:
		tmp := g.tmpStore(t).AnyReg()
		g.loadLocal(t, tmp, src)
		g.storeLocal(t, dst, tmp)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (g *codegen) visitExpr(e ast.Expr, dest ExprStore) {
	if dest.IsNone() {
		t := e.Type()
		switch {
		case isSimple(e):
			return
		case t.IsTuple():
			temp := g.frame.AddTempUninitialized(t)
			g.visitExpr(e, StackStore(temp))
			g.frame.FreeTemp(temp)
			return
		case !t.IsUnit():
			dest = g.resultStore(t)
		}
	}

	switch e := e.(type) {
	case *ast.LitInt, *ast.LitInt64, *ast.LitUInt8, *ast.LitChar, *ast.LitBool,
		*ast.LitFloat, *ast.LitDouble, *ast.LitString, *ast.LitNil, *ast.LitEnum:
		g.emitLiteral(e, dest)

	case *ast.Ident:
		g.visitVar(e.Var, dest)

	case *ast.Self:
		g.visitVar(e.Var, dest)

	case *ast.Unary:
		t := e.Operand.Type()
		g.visitExpr(e.Operand, dest)
		r := dest.AnyReg()
		g.buf.Compute(bytecode.UnaryOp(e.Op, t), t, r, r, r)

	case *ast.Binary:
		g.visitBinary(e, dest)

	case *ast.Assign:
		g.visitAssign(e)

	case *ast.FieldAccess:
		field := g.reg.Field(e.Class, e.Field)
		g.visitExpr(e.Object, RegStore(g.result()))
		g.trap(g.buf.NilCheck(g.result()), e.PosVal)
		g.buf.Load(field.Type, dest.AnyReg(), asm.Offset(g.result(), field.Offset))

	case *ast.GlobalRef:
		g.buf.LoadGlobal(e.GlobalType, dest.AnyReg(), e.Global)

	case *ast.Index:
		g.visitIndex(e, dest)

	case *ast.ArrayLen:
		g.visitExpr(e.Array, RegStore(g.result()))
		g.trap(g.buf.NilCheck(g.result()), e.PosVal)
		g.buf.Load(ty.IntType, dest.AnyReg(), asm.Offset(g.result(), vm.ArrayLengthOffset))

	case *ast.Call:
		g.visitCall(e, dest)

	case *ast.NewObject:
		g.visitNewObject(e, dest)

	case *ast.NewArray:
		g.visitNewArray(e, dest)

	case *ast.Conv:
		from := e.Expr.Type()
		src := g.resultStore(from)
		g.visitExpr(e.Expr, src)
		g.buf.Compute(bytecode.ConvOp(e.Mode, from, e.To), e.To, dest.AnyReg(), src.AnyReg(), src.AnyReg())

	case *ast.InstanceOf:
		g.reg.Class(e.Class)
		g.visitExpr(e.Expr, RegStore(g.result()))
		g.buf.InstanceOf(dest.Reg(), g.result(), e.Class)

	case *ast.CheckedCast:
		g.reg.Class(e.Class)
		g.visitExpr(e.Expr, dest)
		g.trap(g.buf.CheckedCast(dest.Reg(), e.Class), e.PosVal)

	case *ast.TupleLit:
		g.visitTupleLit(e, dest)

	case *ast.TupleElem:
		g.visitTupleElem(e, dest)

	default:
		panic(fmt.Sprintf("unknown expression %T", e))
	}
}

func (g *codegen) emitLiteral(e ast.Expr, dest ExprStore) {
	t := e.Type()
	switch e := e.(type) {
	case *ast.LitInt:
		g.buf.LoadImm(t, dest.Reg(), int64(e.Value))
	case *ast.LitInt64:
		g.buf.LoadImm(t, dest.Reg(), e.Value)
	case *ast.LitUInt8:
		g.buf.LoadImm(t, dest.Reg(), int64(e.Value))
	case *ast.LitChar:
		g.buf.LoadImm(t, dest.Reg(), int64(e.Value))
	case *ast.LitBool:
		var v int64
		if e.Value {
			v = 1
		}
		g.buf.LoadImm(t, dest.Reg(), v)
	case *ast.LitEnum:
		g.reg.Enum(e.Enum)
		g.buf.LoadImm(t, dest.Reg(), int64(e.Variant))
	case *ast.LitNil:
		g.buf.LoadImm(ty.PtrType, dest.Reg(), 0)
	case *ast.LitString:
		g.buf.LoadString(dest.Reg(), e.Value)
	case *ast.LitFloat:
		g.buf.LoadFImm(t, dest.AnyReg().FReg(), float64(e.Value))
	case *ast.LitDouble:
		g.buf.LoadFImm(t, dest.AnyReg().FReg(), e.Value)
	}
}

func (g *codegen) visitVar(v *ast.Var, dest ExprStore) {
	slot := g.varSlot(v)
	if v.Type.IsTuple() {
		g.copyValue(v.Type, dest.Slot().Offset, slot.Offset)
		return
	}
	if dest.IsNone() {
		return
	}
	g.loadLocal(v.Type, dest.AnyReg(), slot.Offset)
}

// visitBinary evaluates the left operand into the result register and the
// right one into the scratch register. A right operand that is not simple
// could clobber the result register, so the left value waits in a
// temporary meanwhile.
func (g *codegen) visitBinary(e *ast.Binary, dest ExprStore) {
	if e.Op == ast.And || e.Op == ast.Or {
		end := g.buf.CreateLabel()
		g.visitExpr(e.Lhs, dest)
		if e.Op == ast.And {
			g.buf.JumpIfZero(dest.Reg(), end)
		} else {
			g.buf.JumpIfNonZero(dest.Reg(), end)
		}
		g.visitExpr(e.Rhs, dest)
		g.buf.BindLabel(end)
		return
	}

	t := e.Lhs.Type()
	op := bytecode.BinaryOp(e.Op, t)
	lhs := g.resultStore(t)
	rhs := g.tmpStore(t)

	g.visitExpr(e.Lhs, lhs)
	if isSimple(e.Rhs) {
		g.visitExpr(e.Rhs, rhs)
	} else {
		temp := g.spill(t, lhs.AnyReg())
		g.visitExpr(e.Rhs, lhs)
		g.buf.Copy(t, rhs.AnyReg(), lhs.AnyReg())
		g.loadLocal(t, lhs.AnyReg(), temp.Offset)
		g.frame.FreeTemp(temp)
	}

	if (e.Op == ast.Div || e.Op == ast.Mod) && !t.IsFloat() {
		g.trap(g.buf.DivZeroCheck(t, rhs.Reg()), e.PosVal)
	}
	g.buf.Compute(op, t, dest.AnyReg(), lhs.AnyReg(), rhs.AnyReg())
}

func (g *codegen) visitAssign(e *ast.Assign) {
	switch target := e.Target.(type) {
	case *ast.Ident:
		slot := g.varSlot(target.Var)
		t := target.Var.Type
		if t.IsTuple() {
			g.visitExpr(e.Value, StackStore(slot))
		} else if store := g.resultStore(t); !store.IsNone() {
			g.visitExpr(e.Value, store)
			g.storeLocal(t, slot.Offset, store.AnyReg())
		} else {
			g.visitExpr(e.Value, NoStore)
		}
		g.frame.MarkInitialized(slot.Var)

	case *ast.GlobalRef:
		store := g.resultStore(target.GlobalType)
		g.visitExpr(e.Value, store)
		g.buf.StoreGlobal(target.GlobalType, target.Global, store.AnyReg())

	case *ast.FieldAccess:
		field := g.reg.Field(target.Class, target.Field)
		g.visitExpr(target.Object, RegStore(g.result()))
		obj := g.spill(ty.PtrType, g.result().Any())

		value := g.resultStore(field.Type)
		g.visitExpr(e.Value, value)
		g.loadLocal(ty.PtrType, g.arch.Tmp1.Any(), obj.Offset)
		g.frame.FreeTemp(obj)

		g.trap(g.buf.NilCheck(g.arch.Tmp1), target.PosVal)
		g.buf.Store(field.Type, asm.Offset(g.arch.Tmp1, field.Offset), value.AnyReg())

	case *ast.Index:
		elem := target.Type()
		g.visitExpr(target.Array, RegStore(g.result()))
		array := g.spill(ty.PtrType, g.result().Any())
		g.visitExpr(target.Index, RegStore(g.result()))
		index := g.spill(ty.IntType, g.result().Any())

		value := g.resultStore(elem)
		g.visitExpr(e.Value, value)
		g.loadLocal(ty.PtrType, g.arch.Tmp1.Any(), array.Offset)
		g.loadLocal(ty.IntType, g.arch.Tmp2.Any(), index.Offset)
		g.frame.FreeTemp(index)
		g.frame.FreeTemp(array)

		g.trap(g.buf.BoundsCheck(g.arch.Tmp1, g.arch.Tmp2), target.PosVal)
		g.buf.Store(elem, g.element(g.arch.Tmp1, g.arch.Tmp2, elem), value.AnyReg())

	default:
		panic(fmt.Sprintf("cannot assign to %T", e.Target))
	}
}

func (g *codegen) element(array, index asm.Reg, elem ty.Type) asm.Mem {
	return asm.Indexed(array, index, elem.Size(g.reg), vm.ArrayDataOffset)
}

func (g *codegen) visitIndex(e *ast.Index, dest ExprStore) {
	elem := e.Type()
	g.visitExpr(e.Array, RegStore(g.result()))
	if isSimple(e.Index) {
		g.visitExpr(e.Index, RegStore(g.arch.Tmp1))
	} else {
		array := g.spill(ty.PtrType, g.result().Any())
		g.visitExpr(e.Index, RegStore(g.result()))
		g.buf.Copy(ty.IntType, g.arch.Tmp1.Any(), g.result().Any())
		g.loadLocal(ty.PtrType, g.result().Any(), array.Offset)
		g.frame.FreeTemp(array)
	}
	g.trap(g.buf.BoundsCheck(g.result(), g.arch.Tmp1), e.PosVal)
	g.buf.Load(elem, dest.AnyReg(), g.element(g.result(), g.arch.Tmp1, elem))
}

// ---------------------------------------------------------------------------
// Calls and allocation
// ---------------------------------------------------------------------------

// callArg is either an expression still to evaluate or a value already
// parked in a stack slot.
type callArg struct {
	expr ast.Expr
	slot ManagedStackSlot
	t    ty.Type
}

func exprArgs(exprs ...ast.Expr) []callArg {
	args := make([]callArg, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			args = append(args, callArg{expr: e, t: e.Type()})
		}
	}
	return args
}

// emitCall evaluates the arguments into temporaries, loads them into the
// argument registers, frees the temporaries and calls. The GC point of the
// call holds whatever is still live in the frame. pos is nil for calls
// that cannot trap on their own.
func (g *codegen) emitCall(kind ast.CallKind, fct *vm.Fct, args []callArg, pos *ast.Position) int {
	slots := make([]ManagedStackSlot, len(args))
	owned := make([]bool, len(args))
	for i, a := range args {
		if a.t.IsTuple() {
			panic(fmt.Sprintf("call to %s: tuple arguments are not supported", fct.Name))
		}
		if a.expr == nil {
			slots[i] = a.slot
			continue
		}
		store := g.resultStore(a.t)
		g.visitExpr(a.expr, store)
		if a.t.IsUnit() {
			continue
		}
		slots[i] = g.spill(a.t, store.AnyReg())
		owned[i] = true
	}

	var ints, floats int
	var stack uint32
	for i, a := range args {
		switch {
		case a.t.IsUnit():
		case a.t.IsFloat() && floats < len(g.arch.FParams):
			g.loadLocal(a.t, g.arch.FParams[floats].Any(), slots[i].Offset)
			floats++
		case !a.t.IsFloat() && ints < len(g.arch.Params):
			g.loadLocal(a.t, g.arch.Params[ints].Any(), slots[i].Offset)
			ints++
		default:
			tmp := g.tmpStore(a.t).AnyReg()
			g.loadLocal(a.t, tmp, slots[i].Offset)
			g.buf.StoreArg(a.t, stack, tmp)
			stack++
		}
	}
	for i := len(args) - 1; i >= 0; i-- {
		if owned[i] {
			g.frame.FreeTemp(slots[i])
		}
	}

	if kind != ast.CallStatic && pos != nil {
		g.trap(g.buf.NilCheck(g.arch.Params[0]), *pos)
	}

	var idx int
	if kind == ast.CallVirtual {
		idx = g.buf.VirtualCall(fct.ID, fct.VTableIndex)
	} else {
		idx = g.buf.Call(fct.ID)
	}
	if pos != nil {
		g.trap(idx, *pos)
	}
	g.safepoint(idx)
	return idx
}

func (g *codegen) visitCall(e *ast.Call, dest ExprStore) {
	if e.Ret.IsTuple() {
		panic(fmt.Sprintf("call returning %s is not supported", e.Ret))
	}
	fct := g.reg.Fct(e.Fct)
	args := exprArgs(append([]ast.Expr{e.Receiver}, e.Args...)...)
	g.emitCall(e.Kind, fct, args, &e.PosVal)

	if !e.Ret.IsUnit() && !dest.IsNone() {
		g.buf.Copy(e.Ret, dest.AnyReg(), g.resultStore(e.Ret).AnyReg())
	}
}

// visitNewObject allocates the instance and keeps it in a temporary while
// the constructor arguments are evaluated, so a collection triggered by
// them still sees the object.
func (g *codegen) visitNewObject(e *ast.NewObject, dest ExprStore) {
	cls := g.reg.Class(e.Class)
	t := ty.ClassOf(uint32(e.Class))

	idx := g.buf.Alloc(g.result(), e.Class, cls.InstanceSize)
	g.trap(idx, e.PosVal)
	g.safepoint(idx)

	if e.Ctor == vm.NoFct {
		g.buf.Copy(t, dest.AnyReg(), g.result().Any())
		return
	}

	obj := g.spill(t, g.result().Any())
	args := append([]callArg{{slot: obj, t: t}}, exprArgs(e.Args...)...)
	g.emitCall(ast.CallStatic, g.reg.Fct(e.Ctor), args, nil)
	g.loadLocal(t, dest.AnyReg(), obj.Offset)
	g.frame.FreeTemp(obj)
}

func (g *codegen) visitNewArray(e *ast.NewArray, dest ExprStore) {
	g.reg.Class(e.Class)

	g.visitExpr(e.Length, RegStore(g.result()))
	length := g.spill(ty.IntType, g.result().Any())
	g.loadLocal(ty.IntType, g.arch.Tmp1.Any(), length.Offset)

	idx := g.buf.AllocArray(g.result(), e.Class, g.arch.Tmp1)
	g.trap(idx, e.PosVal)
	g.safepoint(idx)

	if e.Ctor == vm.NoFct {
		g.frame.FreeTemp(length)
		g.buf.Copy(e.ArrayType, dest.AnyReg(), g.result().Any())
		return
	}

	array := g.spill(e.ArrayType, g.result().Any())
	args := []callArg{{slot: array, t: e.ArrayType}, {slot: length, t: ty.IntType}}
	g.emitCall(ast.CallStatic, g.reg.Fct(e.Ctor), args, nil)
	g.loadLocal(e.ArrayType, dest.AnyReg(), array.Offset)
	g.frame.FreeTemp(array)
	g.frame.FreeTemp(length)
}

// ---------------------------------------------------------------------------
// Tuples
// ---------------------------------------------------------------------------

// visitTupleLit evaluates every element into its own temporary before
// writing the destination, which may be a variable the elements read.
func (g *codegen) visitTupleLit(e *ast.TupleLit, dest ExprStore) {
	layout := g.reg.Tuple(e.Tuple)
	if len(e.Elems) != len(layout.Elems) {
		panic(fmt.Sprintf("tuple literal has %d elements, shape %d has %d", len(e.Elems), e.Tuple, len(layout.Elems)))
	}

	temps := make([]ManagedStackSlot, len(e.Elems))
	for i, elem := range e.Elems {
		t := layout.Elems[i]
		if t.IsTuple() {
			temps[i] = g.frame.AddTempUninitialized(t)
			g.visitExpr(elem, StackStore(temps[i]))
			g.frame.MarkInitialized(temps[i].Var)
			continue
		}
		store := g.resultStore(t)
		g.visitExpr(elem, store)
		if t.IsUnit() {
			temps[i] = g.frame.AddTemp(t)
			continue
		}
		temps[i] = g.spill(t, store.AnyReg())
	}

	base := dest.Slot().Offset
	for i, t := range layout.Elems {
		g.copyValue(t, base+layout.Offsets[i], temps[i].Offset)
	}
	for i := len(temps) - 1; i >= 0; i-- {
		g.frame.FreeTemp(temps[i])
	}
}

func (g *codegen) visitTupleElem(e *ast.TupleElem, dest ExprStore) {
	tt := e.Tuple.Type()
	id, ok := tt.TupleID()
	if !ok {
		panic(fmt.Sprintf("element access on %s", tt))
	}
	layout := g.reg.Tuple(id)

	var base int32
	var temp *ManagedStackSlot
	if ident, ok := e.Tuple.(*ast.Ident); ok {
		base = g.varSlot(ident.Var).Offset
	} else {
		slot := g.frame.AddTempUninitialized(tt)
		g.visitExpr(e.Tuple, StackStore(slot))
		g.frame.MarkInitialized(slot.Var)
		base = slot.Offset
		temp = &slot
	}

	offset := base + layout.Offsets[e.Index]
	if e.ElemType.IsTuple() {
		g.copyValue(e.ElemType, dest.Slot().Offset, offset)
	} else if !dest.IsNone() {
		g.loadLocal(e.ElemType, dest.AnyReg(), offset)
	}

	if temp != nil {
		g.frame.FreeTemp(*temp)
	}
}
