// Package ast defines the Abstract Syntax Tree for the Rust-subset source
// language: one Go interface per node category (Decl/TypeNode/Expr/Stmt)
// with an unexported marker method sealing the set of concrete
// implementations, so each analysis pass is a switch over the node kinds.
//
// Every expression carries per-node metadata filled in progressively by the
// semantic passes and the lowerer: ResolvedType and Category during type
// inference, IRValue/IRAddr during lowering. The fields live inline on
// ExprMeta rather than in a side table keyed by node identity, since the
// concrete structs behind the Expr interface are freely mutable.
package ast

import "github.com/rustlite/rlc/internal/types"

// ----------------------------------------------------------------------------
// Source location
// ----------------------------------------------------------------------------

// Loc is a source position, carried on every node that a diagnostic might
// need to point at.
type Loc struct {
	Offset, Line, Col int
}

// ----------------------------------------------------------------------------
// Scope attachment
// ----------------------------------------------------------------------------

// ScopeRef is the minimal surface every AST node needs from *scope.Scope,
// kept as an interface so this package does not import internal/scope
// (which would create an import cycle: scope's FunctionScope/LoopScope
// fields are typed in terms of types.Type, not ast nodes, precisely to
// avoid that cycle; ast nodes instead hold the concrete *scope.Scope
// through this narrow interface, satisfied trivially since *scope.Scope
// needs no methods here beyond existing).
type ScopeRef interface{}

// ----------------------------------------------------------------------------
// Expression categories: Place / MutPlace / Value
// ----------------------------------------------------------------------------

type ExprCategory uint8

const (
	ValueCategory ExprCategory = iota
	PlaceCategory
	MutPlaceCategory
)

// ExprMeta holds the metadata every Expr carries.
type ExprMeta struct {
	Loc          Loc
	Scope        ScopeRef
	ResolvedType types.Type
	Category     ExprCategory

	// Set during lowering (internal/lower): IRValue is the ir.Value the
	// expression lowered to (its storage address for an aggregate), IRAddr
	// the address it lowered to when evaluated as a place. Typed `any` to
	// avoid an import cycle with internal/ir.
	IRValue any
	IRAddr  any
}

func (m *ExprMeta) Meta() *ExprMeta { return m }

// ----------------------------------------------------------------------------
// Module
// ----------------------------------------------------------------------------

// Module is the root of a parsed compilation unit.
type Module struct {
	Decls []Decl
}

// ----------------------------------------------------------------------------
// Type nodes (pre-resolution syntax, distinct from types.Type)
// ----------------------------------------------------------------------------

// TypeNode is the syntactic type-annotation AST, resolved against the scope
// tree by pass 2 into a types.Type.
type TypeNode interface {
	isTypeNode()
	NodeLoc() Loc
}

type typeMeta struct{ Loc Loc }

func (t typeMeta) NodeLoc() Loc { return t.Loc }

// PrimitiveTypeNode names one of i32/u32/isize/usize/bool/char.
type PrimitiveTypeNode struct {
	typeMeta
	Name string
}

func (*PrimitiveTypeNode) isTypeNode() {}

// UnitTypeNode is ().
type UnitTypeNode struct{ typeMeta }

func (*UnitTypeNode) isTypeNode() {}

// RefTypeNode is &T or &mut T.
type RefTypeNode struct {
	typeMeta
	Inner TypeNode
	IsMut bool
}

func (*RefTypeNode) isTypeNode() {}

// ArrayTypeNode is [T; N] where N is a constant-expression length.
type ArrayTypeNode struct {
	typeMeta
	Element TypeNode
	Length  Expr
}

func (*ArrayTypeNode) isTypeNode() {}

// NamedTypeNode is a reference to a user-defined struct or enum by name.
type NamedTypeNode struct {
	typeMeta
	Name string
}

func (*NamedTypeNode) isTypeNode() {}

// ----------------------------------------------------------------------------
// Declarations
// ----------------------------------------------------------------------------

type Decl interface {
	isDecl()
	NodeLoc() Loc
}

type declMeta struct {
	Loc   Loc
	Scope ScopeRef
}

func (d declMeta) NodeLoc() Loc { return d.Loc }

// Param is one function/method parameter.
type Param struct {
	Name string
	Type TypeNode
}

// SelfParam describes `self`, `&self`, or `&mut self` in a method signature.
type SelfParam struct {
	IsRef bool
	IsMut bool
	Loc   Loc
}

// FnDecl is `fn name(params) -> ret { body }`, either free-standing,
// associated (inside an impl with no self), or a method (with self).
type FnDecl struct {
	declMeta
	Name       string
	Self       *SelfParam
	Params     []Param
	ReturnType TypeNode // nil means ()
	Body       *BlockExpr

	// Filled by the scope/sema passes.
	ResolvedParamTypes []types.Type
	ResolvedReturnType types.Type
	FuncScope          ScopeRef
}

func (*FnDecl) isDecl() {}

// StructField is one member of a struct declaration.
type StructField struct {
	Name string
	Type TypeNode
}

// StructDecl is `struct Name { fields }` plus any associated items attached
// through `impl Name { ... }` blocks, discovered by pass 1/2 and recorded on
// the *scope.Symbol, not duplicated here.
type StructDecl struct {
	declMeta
	Name   string
	Fields []StructField
}

func (*StructDecl) isDecl() {}

// EnumDecl is `enum Name { Variant, Variant, ... }`; variants carry no
// associated data in this subset.
type EnumDecl struct {
	declMeta
	Name     string
	Variants []string
}

func (*EnumDecl) isDecl() {}

// TraitDecl is `trait Name { fn required(...) -> T; ... }`.
type TraitDecl struct {
	declMeta
	Name          string
	RequiredFuncs []FnSignature
}

func (*TraitDecl) isDecl() {}

// FnSignature is a trait-required function's signature (no body).
type FnSignature struct {
	Name       string
	Self       *SelfParam
	Params     []Param
	ReturnType TypeNode
	Loc        Loc
}

// ImplDecl is `impl Type { ... }` or `impl Trait for Type { ... }`.
type ImplDecl struct {
	declMeta
	TraitName *string // nil for an inherent impl
	TypeName  string
	Consts    []*ConstDecl
	Functions []*FnDecl
}

func (*ImplDecl) isDecl() {}

// ConstDecl is `const NAME: T = expr;`, at module scope or inside an impl.
type ConstDecl struct {
	declMeta
	Name  string
	Type  TypeNode
	Value Expr
}

func (*ConstDecl) isDecl() {}

// ----------------------------------------------------------------------------
// Statements
// ----------------------------------------------------------------------------

type Stmt interface {
	isStmt()
	NodeLoc() Loc
}

type stmtMeta struct{ Loc Loc }

func (s stmtMeta) NodeLoc() Loc { return s.Loc }

// Pattern is a let-binding pattern. This subset supports plain identifier
// bindings only, no destructuring.
type Pattern struct {
	Name  string
	IsMut bool
}

// LetStmt is `let pat: T = expr;` (the type annotation is optional and, if
// omitted, inferred from the initializer in pass 3).
type LetStmt struct {
	stmtMeta
	Pattern Pattern
	Type    TypeNode // nil if omitted
	Value   Expr

	ResolvedType types.Type
	IRSlot       any // *ir.Value, set during lowering
}

func (*LetStmt) isStmt() {}

// ExprStmt is an expression used as a statement; HasSemi distinguishes
// `expr;` (discards the value, yields ()) from a block-like expression
// (block, if, loop, while) written without `;` before further statements.
// A block's trailing result expression is kept in BlockExpr.Tail instead.
type ExprStmt struct {
	stmtMeta
	Value   Expr
	HasSemi bool
}

func (*ExprStmt) isStmt() {}

// ----------------------------------------------------------------------------
// Expressions
// ----------------------------------------------------------------------------

type Expr interface {
	isExpr()
	Meta() *ExprMeta
	NodeLoc() Loc
}

// IntLitExpr is an integer literal, with its type suffix (if any) already
// split out by the lexer.
type IntLitExpr struct {
	ExprMeta
	Value  uint64
	Suffix string // "", "i32", "u32", "isize", "usize"
}

func (*IntLitExpr) isExpr()        {}
func (e *IntLitExpr) NodeLoc() Loc { return e.Loc }

// BoolLitExpr is `true`/`false`.
type BoolLitExpr struct {
	ExprMeta
	Value bool
}

func (*BoolLitExpr) isExpr()        {}
func (e *BoolLitExpr) NodeLoc() Loc { return e.Loc }

// CharLitExpr is a character literal.
type CharLitExpr struct {
	ExprMeta
	Value rune
}

func (*CharLitExpr) isExpr()        {}
func (e *CharLitExpr) NodeLoc() Loc { return e.Loc }

// PathSegment is one `::`-separated segment of a path expression.
type PathSegment struct {
	Name string
	Loc  Loc
}

// PathExpr is a name or `Type::item`/`self`/`Self` reference, resolved to a
// target symbol by the path-finalization pass.
type PathExpr struct {
	ExprMeta
	Segments []PathSegment
	Symbol   any // *scope.Symbol once resolved; any to avoid an import cycle
}

func (*PathExpr) isExpr()        {}
func (e *PathExpr) NodeLoc() Loc { return e.Loc }

// UnaryOp enumerates the unary operator forms.
type UnaryOp uint8

const (
	OpNeg UnaryOp = iota
	OpNot
	OpBorrow
	OpBorrowMut
	OpDeref
)

// UnaryExpr covers `-e`, `!e`, `&e`, `&mut e`, `*e`.
type UnaryExpr struct {
	ExprMeta
	Op      UnaryOp
	Operand Expr
}

func (*UnaryExpr) isExpr()        {}
func (e *UnaryExpr) NodeLoc() Loc { return e.Loc }

// BinaryOp enumerates the arithmetic, bitwise, shift, and comparison
// operators.
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd // bitwise &
	OpOr  // bitwise |
	OpXor
	OpShl
	OpShr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

// BinaryExpr is a strict (always both-sides-evaluated) binary operation.
type BinaryExpr struct {
	ExprMeta
	Op          BinaryOp
	Left, Right Expr
}

func (*BinaryExpr) isExpr()        {}
func (e *BinaryExpr) NodeLoc() Loc { return e.Loc }

// LogicalOp distinguishes && from ||.
type LogicalOp uint8

const (
	LogicalAnd LogicalOp = iota
	LogicalOr
)

// LogicalExpr is `&&`/`||`, lowered with short-circuit control flow.
type LogicalExpr struct {
	ExprMeta
	Op          LogicalOp
	Left, Right Expr
}

func (*LogicalExpr) isExpr()        {}
func (e *LogicalExpr) NodeLoc() Loc { return e.Loc }

// CastExpr is `e as T`.
type CastExpr struct {
	ExprMeta
	Value        Expr
	Type         TypeNode
	ResolvedCast types.Type
}

func (*CastExpr) isExpr()        {}
func (e *CastExpr) NodeLoc() Loc { return e.Loc }

// AssignExpr is `lhs = rhs`.
type AssignExpr struct {
	ExprMeta
	Left, Right Expr
}

func (*AssignExpr) isExpr()        {}
func (e *AssignExpr) NodeLoc() Loc { return e.Loc }

// CompoundAssignExpr is `lhs op= rhs`.
type CompoundAssignExpr struct {
	ExprMeta
	Op          BinaryOp
	Left, Right Expr
}

func (*CompoundAssignExpr) isExpr()        {}
func (e *CompoundAssignExpr) NodeLoc() Loc { return e.Loc }

// FieldExpr is `base.field`.
type FieldExpr struct {
	ExprMeta
	Base  Expr
	Field string
}

func (*FieldExpr) isExpr()        {}
func (e *FieldExpr) NodeLoc() Loc { return e.Loc }

// IndexExpr is `base[index]`.
type IndexExpr struct {
	ExprMeta
	Base, Index Expr
}

func (*IndexExpr) isExpr()        {}
func (e *IndexExpr) NodeLoc() Loc { return e.Loc }

// CallExpr is `callee(args)`, where callee is a PathExpr (function or
// associated-function reference) or a FieldExpr (method call sugar is
// desugared by the parser into callee=FieldExpr, IsMethodCall=true).
type CallExpr struct {
	ExprMeta
	Callee       Expr
	Args         []Expr
	IsMethodCall bool
}

func (*CallExpr) isExpr()        {}
func (e *CallExpr) NodeLoc() Loc { return e.Loc }

// StructLitField is one `name: value` entry of a struct literal.
type StructLitField struct {
	Name  string
	Value Expr
}

// StructLitExpr is `Type { field: value, ... }`.
type StructLitExpr struct {
	ExprMeta
	TypeName string
	Fields   []StructLitField
}

func (*StructLitExpr) isExpr()        {}
func (e *StructLitExpr) NodeLoc() Loc { return e.Loc }

// ArrayLitExpr is `[e1, e2, ...]`.
type ArrayLitExpr struct {
	ExprMeta
	Elements []Expr
}

func (*ArrayLitExpr) isExpr()        {}
func (e *ArrayLitExpr) NodeLoc() Loc { return e.Loc }

// RepeatArrayLitExpr is `[e; N]`.
type RepeatArrayLitExpr struct {
	ExprMeta
	Value  Expr
	Length Expr
}

func (*RepeatArrayLitExpr) isExpr()        {}
func (e *RepeatArrayLitExpr) NodeLoc() Loc { return e.Loc }

// BlockExpr is `{ stmts... }`, optionally ending in a tail expression.
type BlockExpr struct {
	ExprMeta
	Stmts []Stmt
	Tail  Expr // nil if the block has no trailing value expression
}

func (*BlockExpr) isExpr()        {}
func (e *BlockExpr) NodeLoc() Loc { return e.Loc }

// IfExpr is `if cond { then } else { else }` (the else branch is itself a
// BlockExpr, or for else-if sugar the nested IfExpr held directly).
type IfExpr struct {
	ExprMeta
	Cond Expr
	Then *BlockExpr
	Else Expr // nil, *BlockExpr, or *IfExpr
}

func (*IfExpr) isExpr()        {}
func (e *IfExpr) NodeLoc() Loc { return e.Loc }

// LoopExpr is `loop { body }`.
type LoopExpr struct {
	ExprMeta
	Body *BlockExpr
}

func (*LoopExpr) isExpr()        {}
func (e *LoopExpr) NodeLoc() Loc { return e.Loc }

// WhileExpr is `while cond { body }`.
type WhileExpr struct {
	ExprMeta
	Cond Expr
	Body *BlockExpr
}

func (*WhileExpr) isExpr()        {}
func (e *WhileExpr) NodeLoc() Loc { return e.Loc }

// BreakExpr is `break;` or `break value;`.
type BreakExpr struct {
	ExprMeta
	Value Expr // nil for a valueless break
}

func (*BreakExpr) isExpr()        {}
func (e *BreakExpr) NodeLoc() Loc { return e.Loc }

// ContinueExpr is `continue;`.
type ContinueExpr struct{ ExprMeta }

func (*ContinueExpr) isExpr()        {}
func (e *ContinueExpr) NodeLoc() Loc { return e.Loc }

// ReturnExpr is `return;` or `return value;`.
type ReturnExpr struct {
	ExprMeta
	Value Expr // nil for a valueless return
}

func (*ReturnExpr) isExpr()        {}
func (e *ReturnExpr) NodeLoc() Loc { return e.Loc }
