// Package ir is the typed SSA value/instruction object model: every
// operand is a Value, every Value records the instructions that consume it
// (a use-def back-edge), and constants are uniqued per module the same way
// internal/irtype uniques types.
//
// One sealed Value interface with an unexported isValue() marker and one
// concrete struct per value kind; the back-edge list exists so a transform
// pass could rewrite operands, even though none does yet.
package ir

import "github.com/rustlite/rlc/internal/irtype"

// Value is anything usable as an instruction operand: a constant, a
// function parameter, a global variable's address, or another
// instruction's result.
type Value interface {
	Type() irtype.Type
	Users() []*Instruction
	addUser(i *Instruction)
	isValue()
}

// useTracked implements the use-def back-edge bookkeeping shared by every
// concrete Value. Embedding it gives a type the Users()/addUser() half of
// the Value interface for free.
type useTracked struct {
	users []*Instruction
}

func (u *useTracked) Users() []*Instruction {
	return append([]*Instruction(nil), u.users...)
}

func (u *useTracked) addUser(i *Instruction) {
	u.users = append(u.users, i)
}

// ConstantInt is an integer constant of a given IR type, uniqued per module
// by (Typ, Val) so `add i32 1, 1` and a separately-built literal `1` share
// one ConstantInt.
type ConstantInt struct {
	useTracked
	Typ irtype.Type
	Val uint64
}

func (c *ConstantInt) Type() irtype.Type { return c.Typ }
func (c *ConstantInt) isValue()          {}

// ConstantAggregateZero is LLVM's `zeroinitializer`, used for a struct or
// array value with no explicit field initializers.
type ConstantAggregateZero struct {
	useTracked
	Typ irtype.Type
}

func (c *ConstantAggregateZero) Type() irtype.Type { return c.Typ }
func (c *ConstantAggregateZero) isValue()           {}

// ConstantPointerNull is LLVM's `null`, the sole inhabitant of the opaque
// pointer type with no valid address. Every module has at most one.
type ConstantPointerNull struct {
	useTracked
	ctx *irtype.Context
}

func (c *ConstantPointerNull) Type() irtype.Type { return c.ctx.Ptr() }
func (c *ConstantPointerNull) isValue()           {}

// Param is one of a Function's formal parameters, addressable as an SSA
// value starting from the function's entry block.
type Param struct {
	useTracked
	Name string
	Typ  irtype.Type
}

func (p *Param) Type() irtype.Type { return p.Typ }
func (p *Param) isValue()          {}

// GlobalVariable is a module-level address. Under the opaque-pointer
// model its Value Type is always `ptr`; ElemType records what it points to,
// needed by the printer to emit `@name = global <ElemType> <Initializer>`.
type GlobalVariable struct {
	useTracked
	ctx         *irtype.Context
	Name        string
	ElemType    irtype.Type
	Initializer Value
	IsConstant  bool
}

func (g *GlobalVariable) Type() irtype.Type { return g.ctx.Ptr() }
func (g *GlobalVariable) isValue()          {}

// Opcode discriminates the instruction forms the lowerer emits.
type Opcode uint8

const (
	OpAdd Opcode = iota
	OpSub
	OpMul
	OpSDiv
	OpUDiv
	OpSRem
	OpURem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpLShr
	OpAShr
	OpICmp
	OpTrunc
	OpZExt
	OpSExt
	OpAlloca
	OpLoad
	OpStore
	OpGEP
	OpPtrToInt
	OpCall
	OpBr
	OpCondBr
	OpRet
	OpRetVoid
	OpPhi
	OpUnreachable
)

// ICmpPredicate is the comparison kind of an OpICmp instruction.
type ICmpPredicate uint8

const (
	PredEQ ICmpPredicate = iota
	PredNE
	PredSGT
	PredSGE
	PredSLT
	PredSLE
	PredUGT
	PredUGE
	PredULT
	PredULE
)

// Instruction is one IR operation. Every field below Operands is only
// meaningful for a subset of opcodes, documented per field; this single
// struct (rather than one Go type per opcode) keeps the printer and any
// rewriting code to a single switch over Opcode.
type Instruction struct {
	useTracked
	Opcode Opcode
	Typ    irtype.Type // result type; ctx.Void() for non-value instructions
	Name   string       // SSA register name, e.g. "tmp.3"; empty when Typ is void
	Block  *BasicBlock  // owning block, set when appended

	Operands []Value

	Predicate ICmpPredicate // OpICmp

	// OpAlloca: the allocated type. OpLoad: the loaded type. OpGEP: the
	// aggregate type being indexed into (the pointee of Operands[0]).
	SourceType irtype.Type

	// OpCall: direct-call target name and signature (no function values in
	// this source language, so calls are always to a known name).
	Callee     string
	CalleeType *irtype.FunctionType

	// OpPhi: IncomingBlocks[i] is the predecessor block Operands[i] flows
	// in from.
	IncomingBlocks []*BasicBlock

	// OpBr
	Target *BasicBlock
	// OpCondBr
	TrueTarget, FalseTarget *BasicBlock
}

func (i *Instruction) Type() irtype.Type { return i.Typ }
func (i *Instruction) isValue()          {}

// IsTerminator reports whether i ends its basic block.
func (i *Instruction) IsTerminator() bool {
	switch i.Opcode {
	case OpBr, OpCondBr, OpRet, OpRetVoid, OpUnreachable:
		return true
	default:
		return false
	}
}

// AddOperand appends v to i's operand list and records the use-def
// back-edge from v to i.
func (i *Instruction) AddOperand(v Value) {
	i.Operands = append(i.Operands, v)
	v.addUser(i)
}

// AddIncoming appends one (value, predecessor) pair to an OpPhi
// instruction.
func (i *Instruction) AddIncoming(v Value, pred *BasicBlock) {
	i.AddOperand(v)
	i.IncomingBlocks = append(i.IncomingBlocks, pred)
}
