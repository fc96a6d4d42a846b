// Package irbuild is the stateful instruction builder: a cursor positioned
// at one basic block, minting fresh SSA names as it goes, used by
// internal/lower to turn AST nodes into ir.Instructions without every call
// site re-deriving a GEP's zero-index boilerplate or a fresh "tmp.N" name
// by hand.
//
// internal/lower owns the type-checking judgment of which instruction to
// emit for a given AST node; this package only knows how to emit a
// well-formed instruction once told which one.
package irbuild

import (
	"fmt"

	"github.com/rustlite/rlc/internal/builtins"
	"github.com/rustlite/rlc/internal/ir"
	"github.com/rustlite/rlc/internal/irtype"
)

// Builder is the instruction-emission cursor for one function at a time.
type Builder struct {
	Mod   *ir.Module
	Func  *ir.Function
	block *ir.BasicBlock

	nameCounter  int
	blockCounter int
	loops        []*LoopContext
}

// New creates a builder over mod. Call SetFunction before emitting anything.
func New(mod *ir.Module) *Builder {
	return &Builder{Mod: mod}
}

// SetFunction points the builder at fn and resets its per-function naming
// counters; names are fresh per function, not per module.
func (b *Builder) SetFunction(fn *ir.Function) {
	b.Func = fn
	b.block = nil
	b.nameCounter = 0
	b.blockCounter = 0
	b.loops = nil
}

// NewBlock creates a new block on the current function with a name derived
// from label and a per-function counter, and does NOT move the insertion
// point there — callers call SetInsertPoint explicitly once they are ready
// to emit into it, so a block can be created ahead of where it is filled in
// (needed for forward branch targets in if/while/loop lowering).
func (b *Builder) NewBlock(label string) *ir.BasicBlock {
	name := fmt.Sprintf("%s.%d", label, b.blockCounter)
	b.blockCounter++
	return b.Func.AddBlock(name)
}

// SetInsertPoint moves the cursor to blk; subsequent Create* calls append
// there.
func (b *Builder) SetInsertPoint(blk *ir.BasicBlock) { b.block = blk }

// InsertBlock returns the block instructions are currently appended to.
func (b *Builder) InsertBlock() *ir.BasicBlock { return b.block }

// Terminated reports whether the current block already ends in a
// terminator — the lowerer checks this before emitting a fallthrough branch
// after a diverging `if`/`return`/`break` so it never appends dead code
// past a terminator.
func (b *Builder) Terminated() bool {
	return b.block != nil && b.block.IsTerminated()
}

func (b *Builder) freshName() string {
	name := fmt.Sprintf("tmp.%d", b.nameCounter)
	b.nameCounter++
	return name
}

func (b *Builder) emit(instr *ir.Instruction) *ir.Instruction {
	return b.block.Append(instr)
}

// ----------------------------------------------------------------------------
// Memory
// ----------------------------------------------------------------------------

// CreateAlloca reserves stack space for a value of elemType and returns the
// `ptr`-typed instruction naming its address.
func (b *Builder) CreateAlloca(elemType irtype.Type) *ir.Instruction {
	instr := &ir.Instruction{Opcode: ir.OpAlloca, Typ: b.Mod.Ctx.Ptr(), SourceType: elemType, Name: b.freshName()}
	return b.emit(instr)
}

// CreateLoad reads elemType through ptr.
func (b *Builder) CreateLoad(ptr ir.Value, elemType irtype.Type) *ir.Instruction {
	instr := &ir.Instruction{Opcode: ir.OpLoad, Typ: elemType, SourceType: elemType, Name: b.freshName()}
	instr.AddOperand(ptr)
	return b.emit(instr)
}

// CreateStore writes val through ptr.
func (b *Builder) CreateStore(val, ptr ir.Value) *ir.Instruction {
	instr := &ir.Instruction{Opcode: ir.OpStore, Typ: b.Mod.Ctx.Void()}
	instr.AddOperand(val)
	instr.AddOperand(ptr)
	return b.emit(instr)
}

// CreateStructGEP computes the address of structType's fieldIndex-th field
// within the aggregate pointed to by base, via the `gep T, ptr base, i32 0,
// i32 fieldIndex` idiom.
func (b *Builder) CreateStructGEP(base ir.Value, structType *irtype.StructType, fieldIndex int) *ir.Instruction {
	instr := &ir.Instruction{Opcode: ir.OpGEP, Typ: b.Mod.Ctx.Ptr(), SourceType: structType, Name: b.freshName()}
	instr.AddOperand(base)
	instr.AddOperand(b.Mod.ConstInt(b.Mod.Ctx.I32(), 0))
	instr.AddOperand(b.Mod.ConstInt(b.Mod.Ctx.I32(), uint64(fieldIndex)))
	return b.emit(instr)
}

// CreateArrayGEP computes the address of element index within the array
// pointed to by base, with index left as a Value so a runtime-computed
// index lowers the same way as a literal one.
func (b *Builder) CreateArrayGEP(base ir.Value, arrType *irtype.ArrayType, index ir.Value) *ir.Instruction {
	instr := &ir.Instruction{Opcode: ir.OpGEP, Typ: b.Mod.Ctx.Ptr(), SourceType: arrType, Name: b.freshName()}
	instr.AddOperand(base)
	instr.AddOperand(b.Mod.ConstInt(b.Mod.Ctx.I32(), 0))
	instr.AddOperand(index)
	return b.emit(instr)
}

// CreateMemcpySize computes the runtime byte size of a type for a
// value-semantic copy, via the canonical "gep null, 1; ptrtoint" idiom the
// `S.size` functions also use: a GEP one element past a null pointer of the
// type, converted to an integer, yields the type's size without any
// target-specific sizeof.
func (b *Builder) CreateMemcpySize(elemType irtype.Type) *ir.Instruction {
	gep := &ir.Instruction{Opcode: ir.OpGEP, Typ: b.Mod.Ctx.Ptr(), SourceType: elemType, Name: b.freshName()}
	gep.AddOperand(b.Mod.ConstNullPtr())
	gep.AddOperand(b.Mod.ConstInt(b.Mod.Ctx.I32(), 1))
	b.emit(gep)

	toInt := &ir.Instruction{Opcode: ir.OpPtrToInt, Typ: b.Mod.Ctx.I32(), Name: b.freshName()}
	toInt.AddOperand(gep)
	return b.emit(toInt)
}

// CreatePtrToInt converts an opaque pointer to an integer of type to.
func (b *Builder) CreatePtrToInt(v ir.Value, to irtype.Type) *ir.Instruction {
	return b.createCast(ir.OpPtrToInt, v, to)
}

// CreateMemcpy emits a value-semantic aggregate copy of size bytes from src
// to dst, looking up or declaring the `llvm.memcpy.p0.p0.i32` intrinsic on
// first use. Every copy in this source language is a fixed compile-time
// size with no aliasing concerns the source language could observe, so
// isVolatile is always false.
func (b *Builder) CreateMemcpy(dst, src ir.Value, size ir.Value) *ir.Instruction {
	sig := b.Mod.Ctx.Function(
		[]irtype.Type{b.Mod.Ctx.Ptr(), b.Mod.Ctx.Ptr(), b.Mod.Ctx.I32(), b.Mod.Ctx.I1()},
		b.Mod.Ctx.Void(), false,
	)
	if b.Mod.FindFunction(builtins.MemcpyName) == nil {
		b.Mod.DeclareFunction(builtins.MemcpyName, sig)
	}
	notVolatile := b.Mod.ConstInt(b.Mod.Ctx.I1(), 0)
	return b.CreateCall(builtins.MemcpyName, sig, []ir.Value{dst, src, size, notVolatile})
}

// ----------------------------------------------------------------------------
// Arithmetic, bitwise, comparison
// ----------------------------------------------------------------------------

func (b *Builder) createBinary(op ir.Opcode, l, r ir.Value, resultType irtype.Type) *ir.Instruction {
	instr := &ir.Instruction{Opcode: op, Typ: resultType, Name: b.freshName()}
	instr.AddOperand(l)
	instr.AddOperand(r)
	return b.emit(instr)
}

func (b *Builder) CreateAdd(l, r ir.Value) *ir.Instruction { return b.createBinary(ir.OpAdd, l, r, l.Type()) }
func (b *Builder) CreateSub(l, r ir.Value) *ir.Instruction { return b.createBinary(ir.OpSub, l, r, l.Type()) }
func (b *Builder) CreateMul(l, r ir.Value) *ir.Instruction { return b.createBinary(ir.OpMul, l, r, l.Type()) }
func (b *Builder) CreateAnd(l, r ir.Value) *ir.Instruction { return b.createBinary(ir.OpAnd, l, r, l.Type()) }
func (b *Builder) CreateOr(l, r ir.Value) *ir.Instruction  { return b.createBinary(ir.OpOr, l, r, l.Type()) }
func (b *Builder) CreateXor(l, r ir.Value) *ir.Instruction { return b.createBinary(ir.OpXor, l, r, l.Type()) }
func (b *Builder) CreateShl(l, r ir.Value) *ir.Instruction { return b.createBinary(ir.OpShl, l, r, l.Type()) }

// CreateDiv picks sdiv or udiv per the source-level signedness of the
// operation; the IR type alone never carries signedness, so lowering
// decides.
func (b *Builder) CreateDiv(signed bool, l, r ir.Value) *ir.Instruction {
	op := ir.OpUDiv
	if signed {
		op = ir.OpSDiv
	}
	return b.createBinary(op, l, r, l.Type())
}

// CreateRem picks srem or urem, mirroring CreateDiv.
func (b *Builder) CreateRem(signed bool, l, r ir.Value) *ir.Instruction {
	op := ir.OpURem
	if signed {
		op = ir.OpSRem
	}
	return b.createBinary(op, l, r, l.Type())
}

// CreateShr picks an arithmetic (sign-extending) or logical shift per
// signedness.
func (b *Builder) CreateShr(signed bool, l, r ir.Value) *ir.Instruction {
	op := ir.OpLShr
	if signed {
		op = ir.OpAShr
	}
	return b.createBinary(op, l, r, l.Type())
}

// CreateICmp emits a comparison, always producing i1.
func (b *Builder) CreateICmp(pred ir.ICmpPredicate, l, r ir.Value) *ir.Instruction {
	instr := &ir.Instruction{Opcode: ir.OpICmp, Typ: b.Mod.Ctx.I1(), Predicate: pred, Name: b.freshName()}
	instr.AddOperand(l)
	instr.AddOperand(r)
	return b.emit(instr)
}

// ----------------------------------------------------------------------------
// Casts
// ----------------------------------------------------------------------------

func (b *Builder) createCast(op ir.Opcode, v ir.Value, to irtype.Type) *ir.Instruction {
	instr := &ir.Instruction{Opcode: op, Typ: to, Name: b.freshName()}
	instr.AddOperand(v)
	return b.emit(instr)
}

// CreateTrunc narrows an integer, discarding high bits (`i32 -> i8`, etc).
func (b *Builder) CreateTrunc(v ir.Value, to irtype.Type) *ir.Instruction {
	return b.createCast(ir.OpTrunc, v, to)
}

// CreateZExt widens an unsigned integer with zero bits.
func (b *Builder) CreateZExt(v ir.Value, to irtype.Type) *ir.Instruction {
	return b.createCast(ir.OpZExt, v, to)
}

// CreateSExt widens a signed integer, replicating the sign bit.
func (b *Builder) CreateSExt(v ir.Value, to irtype.Type) *ir.Instruction {
	return b.createCast(ir.OpSExt, v, to)
}

// ----------------------------------------------------------------------------
// Calls and control flow
// ----------------------------------------------------------------------------

// CreateCall emits a direct call (the source language has no function
// pointers or closures, so every callee is a known name by the time
// lowering reaches a CallExpr).
func (b *Builder) CreateCall(callee string, sig *irtype.FunctionType, args []ir.Value) *ir.Instruction {
	name := ""
	if _, void := sig.Ret.(*irtype.VoidType); !void {
		name = b.freshName()
	}
	instr := &ir.Instruction{Opcode: ir.OpCall, Typ: sig.Ret, Callee: callee, CalleeType: sig, Name: name}
	for _, a := range args {
		instr.AddOperand(a)
	}
	return b.emit(instr)
}

// CreateBr emits an unconditional branch.
func (b *Builder) CreateBr(target *ir.BasicBlock) *ir.Instruction {
	instr := &ir.Instruction{Opcode: ir.OpBr, Typ: b.Mod.Ctx.Void(), Target: target}
	return b.emit(instr)
}

// CreateCondBr emits a two-way conditional branch.
func (b *Builder) CreateCondBr(cond ir.Value, whenTrue, whenFalse *ir.BasicBlock) *ir.Instruction {
	instr := &ir.Instruction{Opcode: ir.OpCondBr, Typ: b.Mod.Ctx.Void(), TrueTarget: whenTrue, FalseTarget: whenFalse}
	instr.AddOperand(cond)
	return b.emit(instr)
}

// CreateRetVoid emits `ret void`, the terminator every ABI-rewritten
// function epilogue uses: every non-main function returns void and writes
// its result through a pointer param.
func (b *Builder) CreateRetVoid() *ir.Instruction {
	instr := &ir.Instruction{Opcode: ir.OpRetVoid, Typ: b.Mod.Ctx.Void()}
	return b.emit(instr)
}

// CreateRet emits a value-carrying return, used by `main`, which is
// exempt from the aggregate-return rewrite since it is the process entry
// point, not an ordinary callee, and by the `S.size` functions that
// internal/predefine builds.
func (b *Builder) CreateRet(val ir.Value) *ir.Instruction {
	instr := &ir.Instruction{Opcode: ir.OpRet, Typ: b.Mod.Ctx.Void()}
	instr.AddOperand(val)
	return b.emit(instr)
}

// CreateUnreachable marks a point lowering has proven is never reached
// (e.g. the synthetic block after a `loop` with no reachable `break`).
func (b *Builder) CreateUnreachable() *ir.Instruction {
	instr := &ir.Instruction{Opcode: ir.OpUnreachable, Typ: b.Mod.Ctx.Void()}
	return b.emit(instr)
}

// CreatePhi emits an empty phi node of the given type; callers fill it in
// with AddIncoming once every predecessor is known.
func (b *Builder) CreatePhi(typ irtype.Type) *ir.Instruction {
	instr := &ir.Instruction{Opcode: ir.OpPhi, Typ: typ, Name: b.freshName()}
	return b.emit(instr)
}
