package ast

import (
	"github.com/chazu/dora/pkg/ty"
	"github.com/chazu/dora/vm"
)

// FunctionBuilder assembles a Function by hand. The semantic checker
// produces the same shapes; tests and the sample programs use this.
type FunctionBuilder struct {
	fn      *Function
	nextVar int
}

// NewFunction starts a free function.
func NewFunction(id vm.FctID, name string, ret ty.Type) *FunctionBuilder {
	return &FunctionBuilder{fn: &Function{ID: id, Name: name, Ret: ret}}
}

// NewMethod starts a method whose receiver has type self.
func NewMethod(id vm.FctID, name string, self ty.Type, ret ty.Type) *FunctionBuilder {
	b := NewFunction(id, name, ret)
	b.fn.Self = b.Var("self", self)
	return b
}

// Var creates a variable with a fresh id.
func (b *FunctionBuilder) Var(name string, t ty.Type) *Var {
	v := &Var{ID: b.nextVar, Name: name, Type: t}
	b.nextVar++
	return v
}

// Param appends a parameter.
func (b *FunctionBuilder) Param(name string, t ty.Type) *Var {
	v := b.Var(name, t)
	b.fn.Params = append(b.fn.Params, v)
	return v
}

// Self returns the receiver variable of a method.
func (b *FunctionBuilder) Self() *Var {
	return b.fn.Self
}

// Body sets the function body and returns the finished function.
func (b *FunctionBuilder) Body(stmts ...Stmt) *Function {
	b.fn.Body = &Block{Stmts: stmts}
	return b.fn
}

// Use reads a variable.
func Use(v *Var) *Ident {
	return &Ident{Var: v}
}

// Bin builds a binary expression.
func Bin(op BinOp, lhs, rhs Expr) *Binary {
	return &Binary{Op: op, Lhs: lhs, Rhs: rhs}
}

// Ret builds a return statement; value may be nil.
func Ret(value Expr) *Return {
	return &Return{Value: value}
}

// Do builds an expression statement.
func Do(e Expr) *ExprStmt {
	return &ExprStmt{Expr: e}
}

// Blk builds a block.
func Blk(stmts ...Stmt) *Block {
	return &Block{Stmts: stmts}
}
