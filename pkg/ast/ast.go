// Package ast is the typed syntax tree handed to the code generators by the
// semantic checker. Every expression already carries its resolved type and
// every call, field and global reference its resolved id.
package ast

import (
	"fmt"

	"github.com/chazu/dora/pkg/ty"
	"github.com/chazu/dora/vm"
)

// ---------------------------------------------------------------------------
// Nodes
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number
}

// String formats the position as line:column.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Pos() Position
	node() // marker method
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	Type() ty.Type
	expr() // marker method
}

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// Var is a resolved local variable or parameter.
type Var struct {
	ID   int
	Name string
	Type ty.Type
}

// Function is a type-checked function body.
type Function struct {
	ID     vm.FctID
	Name   string
	Self   *Var // nil for free functions
	Params []*Var
	Ret    ty.Type
	Body   *Block
}

// AllParams returns self (if any) followed by the declared parameters.
func (f *Function) AllParams() []*Var {
	if f.Self == nil {
		return f.Params
	}
	return append([]*Var{f.Self}, f.Params...)
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

// LitInt is a 32-bit integer literal.
type LitInt struct {
	PosVal Position
	Value  int32
}

// LitInt64 is a 64-bit integer literal.
type LitInt64 struct {
	PosVal Position
	Value  int64
}

// LitUInt8 is a byte literal.
type LitUInt8 struct {
	PosVal Position
	Value  uint8
}

// LitChar is a character literal.
type LitChar struct {
	PosVal Position
	Value  rune
}

// LitFloat is a 32-bit float literal.
type LitFloat struct {
	PosVal Position
	Value  float32
}

// LitDouble is a 64-bit float literal.
type LitDouble struct {
	PosVal Position
	Value  float64
}

// LitBool is true or false.
type LitBool struct {
	PosVal Position
	Value  bool
}

// LitString is a string literal.
type LitString struct {
	PosVal Position
	Value  string
}

// LitNil is the nil reference.
type LitNil struct {
	PosVal Position
}

// LitEnum is an enum variant.
type LitEnum struct {
	PosVal  Position
	Enum    vm.EnumID
	Variant int32
}

func (n *LitInt) Pos() Position    { return n.PosVal }
func (n *LitInt64) Pos() Position  { return n.PosVal }
func (n *LitUInt8) Pos() Position  { return n.PosVal }
func (n *LitChar) Pos() Position   { return n.PosVal }
func (n *LitFloat) Pos() Position  { return n.PosVal }
func (n *LitDouble) Pos() Position { return n.PosVal }
func (n *LitBool) Pos() Position   { return n.PosVal }
func (n *LitString) Pos() Position { return n.PosVal }
func (n *LitNil) Pos() Position    { return n.PosVal }
func (n *LitEnum) Pos() Position   { return n.PosVal }

func (n *LitInt) Type() ty.Type    { return ty.IntType }
func (n *LitInt64) Type() ty.Type  { return ty.Int64Type }
func (n *LitUInt8) Type() ty.Type  { return ty.UInt8Type }
func (n *LitChar) Type() ty.Type   { return ty.CharType }
func (n *LitFloat) Type() ty.Type  { return ty.FloatType }
func (n *LitDouble) Type() ty.Type { return ty.DoubleType }
func (n *LitBool) Type() ty.Type   { return ty.BoolType }
func (n *LitString) Type() ty.Type { return ty.StringType }
func (n *LitNil) Type() ty.Type    { return ty.NilType }
func (n *LitEnum) Type() ty.Type   { return ty.EnumOf(uint32(n.Enum)) }

// ---------------------------------------------------------------------------
// Variables and operators
// ---------------------------------------------------------------------------

// Ident reads a local variable or parameter.
type Ident struct {
	PosVal Position
	Var    *Var
}

// Self reads the receiver of a method.
type Self struct {
	PosVal Position
	Var    *Var
}

// UnOp is a unary operator.
type UnOp uint8

const (
	Neg UnOp = iota
	Not
)

// Unary applies a unary operator.
type Unary struct {
	PosVal  Position
	Op      UnOp
	Operand Expr
}

// BinOp is a binary operator.
type BinOp uint8

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Mod
	BitAnd
	BitOr
	BitXor
	Shl
	Shr
	Sar
	Rol
	Ror
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
	Is    // reference identity
	IsNot // negated reference identity
	And   // short-circuit
	Or    // short-circuit
)

var binOpNames = [...]string{
	Add: "+", Sub: "-", Mul: "*", Div: "/", Mod: "%",
	BitAnd: "&", BitOr: "|", BitXor: "^",
	Shl: "<<", Shr: ">>>", Sar: ">>", Rol: "rotateLeft", Ror: "rotateRight",
	Eq: "==", Ne: "!=", Lt: "<", Le: "<=", Gt: ">", Ge: ">=",
	Is: "===", IsNot: "!==", And: "&&", Or: "||",
}

// String returns the operator's source spelling.
func (op BinOp) String() string {
	if int(op) < len(binOpNames) {
		return binOpNames[op]
	}
	return fmt.Sprintf("BinOp(%d)", op)
}

// IsComparison reports whether op produces a Bool from two operands.
func (op BinOp) IsComparison() bool {
	return op >= Eq && op <= IsNot
}

// Binary applies a binary operator. Comparisons have type Bool; the
// operand type is taken from Lhs.
type Binary struct {
	PosVal Position
	Op     BinOp
	Lhs    Expr
	Rhs    Expr
}

// Assign stores Value into Target, which is an Ident, FieldAccess,
// GlobalRef or Index.
type Assign struct {
	PosVal Position
	Target Expr
	Value  Expr
}

func (n *Ident) Pos() Position  { return n.PosVal }
func (n *Self) Pos() Position   { return n.PosVal }
func (n *Unary) Pos() Position  { return n.PosVal }
func (n *Binary) Pos() Position { return n.PosVal }
func (n *Assign) Pos() Position { return n.PosVal }

func (n *Ident) Type() ty.Type  { return n.Var.Type }
func (n *Self) Type() ty.Type   { return n.Var.Type }
func (n *Unary) Type() ty.Type  { return n.Operand.Type() }
func (n *Assign) Type() ty.Type { return ty.UnitType }

func (n *Binary) Type() ty.Type {
	if n.Op.IsComparison() || n.Op == And || n.Op == Or {
		return ty.BoolType
	}
	return n.Lhs.Type()
}

// ---------------------------------------------------------------------------
// Memory access
// ---------------------------------------------------------------------------

// FieldAccess reads a field of an object.
type FieldAccess struct {
	PosVal    Position
	Object    Expr
	Class     vm.ClassID
	Field     vm.FieldID
	FieldType ty.Type
}

// GlobalRef reads a global variable.
type GlobalRef struct {
	PosVal     Position
	Global     vm.GlobalID
	GlobalType ty.Type
}

// Index reads an array element.
type Index struct {
	PosVal Position
	Array  Expr
	Index  Expr
}

// ArrayLen reads the length of an array.
type ArrayLen struct {
	PosVal Position
	Array  Expr
}

func (n *FieldAccess) Pos() Position { return n.PosVal }
func (n *GlobalRef) Pos() Position   { return n.PosVal }
func (n *Index) Pos() Position       { return n.PosVal }
func (n *ArrayLen) Pos() Position    { return n.PosVal }

func (n *FieldAccess) Type() ty.Type { return n.FieldType }
func (n *GlobalRef) Type() ty.Type   { return n.GlobalType }
func (n *Index) Type() ty.Type       { return n.Array.Type().ElemType() }
func (n *ArrayLen) Type() ty.Type    { return ty.IntType }

// ---------------------------------------------------------------------------
// Calls and allocation
// ---------------------------------------------------------------------------

// CallKind selects the dispatch of a call.
type CallKind uint8

const (
	CallStatic  CallKind = iota // free function
	CallDirect                  // non-virtual method, receiver passed first
	CallVirtual                 // vtable dispatch on the receiver
)

// Call invokes a resolved function.
type Call struct {
	PosVal   Position
	Kind     CallKind
	Fct      vm.FctID
	Receiver Expr // nil for CallStatic
	Args     []Expr
	Ret      ty.Type
}

// NewObject allocates an instance and runs its constructor (if Ctor is not
// vm.NoFct) with the new object as receiver.
type NewObject struct {
	PosVal Position
	Class  vm.ClassID
	Ctor   vm.FctID
	Args   []Expr
}

// NewArray allocates an array of Length elements.
type NewArray struct {
	PosVal    Position
	Class     vm.ClassID
	Ctor      vm.FctID
	Length    Expr
	ArrayType ty.Type
}

func (n *Call) Pos() Position      { return n.PosVal }
func (n *NewObject) Pos() Position { return n.PosVal }
func (n *NewArray) Pos() Position  { return n.PosVal }

func (n *Call) Type() ty.Type      { return n.Ret }
func (n *NewObject) Type() ty.Type { return ty.ClassOf(uint32(n.Class)) }
func (n *NewArray) Type() ty.Type  { return n.ArrayType }

// ---------------------------------------------------------------------------
// Conversions and type tests
// ---------------------------------------------------------------------------

// ConvMode distinguishes value-preserving conversions from bit casts.
type ConvMode uint8

const (
	Numeric     ConvMode = iota // extend, narrow, convert or truncate
	Reinterpret                 // same bits, other type
)

// Conv converts Expr to To.
type Conv struct {
	PosVal Position
	Mode   ConvMode
	Expr   Expr
	To     ty.Type
}

// InstanceOf tests whether Expr is an instance of Class.
type InstanceOf struct {
	PosVal Position
	Expr   Expr
	Class  vm.ClassID
}

// CheckedCast traps unless Expr is an instance of Class.
type CheckedCast struct {
	PosVal Position
	Expr   Expr
	Class  vm.ClassID
}

func (n *Conv) Pos() Position        { return n.PosVal }
func (n *InstanceOf) Pos() Position  { return n.PosVal }
func (n *CheckedCast) Pos() Position { return n.PosVal }

func (n *Conv) Type() ty.Type        { return n.To }
func (n *InstanceOf) Type() ty.Type  { return ty.BoolType }
func (n *CheckedCast) Type() ty.Type { return ty.ClassOf(uint32(n.Class)) }

// ---------------------------------------------------------------------------
// Tuples
// ---------------------------------------------------------------------------

// TupleLit builds a tuple value.
type TupleLit struct {
	PosVal Position
	Tuple  ty.TupleID
	Elems  []Expr
}

// TupleElem reads one element of a tuple value.
type TupleElem struct {
	PosVal   Position
	Tuple    Expr
	Index    int
	ElemType ty.Type
}

func (n *TupleLit) Pos() Position  { return n.PosVal }
func (n *TupleElem) Pos() Position { return n.PosVal }

func (n *TupleLit) Type() ty.Type  { return ty.TupleOf(n.Tuple) }
func (n *TupleElem) Type() ty.Type { return n.ElemType }

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// Let declares a variable, optionally initialized.
type Let struct {
	PosVal Position
	Var    *Var
	Init   Expr
}

// ExprStmt evaluates an expression for its side effects.
type ExprStmt struct {
	PosVal Position
	Expr   Expr
}

// Return leaves the function, with a value unless Value is nil.
type Return struct {
	PosVal Position
	Value  Expr
}

// If branches on a Bool condition. Else may be nil.
type If struct {
	PosVal Position
	Cond   Expr
	Then   *Block
	Else   *Block
}

// While loops while Cond holds.
type While struct {
	PosVal Position
	Cond   Expr
	Body   *Block
}

// Break leaves the innermost loop.
type Break struct {
	PosVal Position
}

// Continue restarts the innermost loop.
type Continue struct {
	PosVal Position
}

// Block is a lexical scope.
type Block struct {
	PosVal Position
	Stmts  []Stmt
}

// Assert traps when Cond is false.
type Assert struct {
	PosVal Position
	Cond   Expr
}

func (n *Let) Pos() Position      { return n.PosVal }
func (n *ExprStmt) Pos() Position { return n.PosVal }
func (n *Return) Pos() Position   { return n.PosVal }
func (n *If) Pos() Position       { return n.PosVal }
func (n *While) Pos() Position    { return n.PosVal }
func (n *Break) Pos() Position    { return n.PosVal }
func (n *Continue) Pos() Position { return n.PosVal }
func (n *Block) Pos() Position    { return n.PosVal }
func (n *Assert) Pos() Position   { return n.PosVal }

// EndsWithReturn reports whether the last statement of b is a return.
func (b *Block) EndsWithReturn() bool {
	if b == nil || len(b.Stmts) == 0 {
		return false
	}
	_, ok := b.Stmts[len(b.Stmts)-1].(*Return)
	return ok
}

// ---------------------------------------------------------------------------
// Marker methods
// ---------------------------------------------------------------------------

func (*LitInt) node()      {}
func (*LitInt64) node()    {}
func (*LitUInt8) node()    {}
func (*LitChar) node()     {}
func (*LitFloat) node()    {}
func (*LitDouble) node()   {}
func (*LitBool) node()     {}
func (*LitString) node()   {}
func (*LitNil) node()      {}
func (*LitEnum) node()     {}
func (*Ident) node()       {}
func (*Self) node()        {}
func (*Unary) node()       {}
func (*Binary) node()      {}
func (*Assign) node()      {}
func (*FieldAccess) node() {}
func (*GlobalRef) node()   {}
func (*Index) node()       {}
func (*ArrayLen) node()    {}
func (*Call) node()        {}
func (*NewObject) node()   {}
func (*NewArray) node()    {}
func (*Conv) node()        {}
func (*InstanceOf) node()  {}
func (*CheckedCast) node() {}
func (*TupleLit) node()    {}
func (*TupleElem) node()   {}
func (*Let) node()         {}
func (*ExprStmt) node()    {}
func (*Return) node()      {}
func (*If) node()          {}
func (*While) node()       {}
func (*Break) node()       {}
func (*Continue) node()    {}
func (*Block) node()       {}
func (*Assert) node()      {}

func (*LitInt) expr()      {}
func (*LitInt64) expr()    {}
func (*LitUInt8) expr()    {}
func (*LitChar) expr()     {}
func (*LitFloat) expr()    {}
func (*LitDouble) expr()   {}
func (*LitBool) expr()     {}
func (*LitString) expr()   {}
func (*LitNil) expr()      {}
func (*LitEnum) expr()     {}
func (*Ident) expr()       {}
func (*Self) expr()        {}
func (*Unary) expr()       {}
func (*Binary) expr()      {}
func (*Assign) expr()      {}
func (*FieldAccess) expr() {}
func (*GlobalRef) expr()   {}
func (*Index) expr()       {}
func (*ArrayLen) expr()    {}
func (*Call) expr()        {}
func (*NewObject) expr()   {}
func (*NewArray) expr()    {}
func (*Conv) expr()        {}
func (*InstanceOf) expr()  {}
func (*CheckedCast) expr() {}
func (*TupleLit) expr()    {}
func (*TupleElem) expr()   {}

func (*Let) stmt()      {}
func (*ExprStmt) stmt() {}
func (*Return) stmt()   {}
func (*If) stmt()       {}
func (*While) stmt()    {}
func (*Break) stmt()    {}
func (*Continue) stmt() {}
func (*Block) stmt()    {}
func (*Assert) stmt()   {}

// IsSimple reports whether evaluating e needs no scratch storage: a
// variable read or a literal.
func IsSimple(e Expr) bool {
	switch e.(type) {
	case *Ident, *Self, *LitInt, *LitInt64, *LitUInt8, *LitChar, *LitFloat,
		*LitDouble, *LitBool, *LitString, *LitNil, *LitEnum:
		return true
	}
	return false
}
