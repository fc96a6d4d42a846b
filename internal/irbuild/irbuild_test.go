package irbuild

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rustlite/rlc/internal/ir"
	"github.com/rustlite/rlc/internal/irtype"
)

func newFunc(t *testing.T, mod *ir.Module, name string) (*Builder, *ir.Function) {
	t.Helper()
	sig := mod.Ctx.Function(nil, mod.Ctx.Void(), false)
	fn := mod.DefineFunction(name, sig, nil)
	b := New(mod)
	b.SetFunction(fn)
	return b, fn
}

func TestFreshNamesAreSequentialPerFunction(t *testing.T) {
	mod := ir.NewModule()
	b, fn := newFunc(t, mod, "f")
	entry := b.NewBlock("entry")
	b.SetInsertPoint(entry)

	a := b.CreateAlloca(mod.Ctx.I32())
	c := b.CreateAlloca(mod.Ctx.I32())
	require.Equal(t, "tmp.0", a.Name)
	require.Equal(t, "tmp.1", c.Name)
	require.Same(t, entry, fn.EntryBlock())
}

func TestFreshNamesResetOnSetFunction(t *testing.T) {
	mod := ir.NewModule()
	b, _ := newFunc(t, mod, "f")
	blk := b.NewBlock("entry")
	b.SetInsertPoint(blk)
	b.CreateAlloca(mod.Ctx.I32())

	_, fn2 := newFunc(t, mod, "g")
	b.SetFunction(fn2)
	blk2 := b.NewBlock("entry")
	b.SetInsertPoint(blk2)
	first := b.CreateAlloca(mod.Ctx.I32())
	require.Equal(t, "tmp.0", first.Name)
}

func TestCreateLoadStoreRoundTrip(t *testing.T) {
	mod := ir.NewModule()
	b, _ := newFunc(t, mod, "f")
	blk := b.NewBlock("entry")
	b.SetInsertPoint(blk)

	slot := b.CreateAlloca(mod.Ctx.I32())
	val := mod.ConstInt(mod.Ctx.I32(), 9)
	store := b.CreateStore(val, slot)
	load := b.CreateLoad(slot, mod.Ctx.I32())

	require.Same(t, mod.Ctx.Void(), store.Typ)
	require.Same(t, irtype.Type(mod.Ctx.I32()), load.Type())
	require.Contains(t, slot.Users(), store)
	require.Contains(t, slot.Users(), load)
}

func TestCreateDivAndRemPickSignedness(t *testing.T) {
	mod := ir.NewModule()
	b, _ := newFunc(t, mod, "f")
	blk := b.NewBlock("entry")
	b.SetInsertPoint(blk)

	l := mod.ConstInt(mod.Ctx.I32(), 10)
	r := mod.ConstInt(mod.Ctx.I32(), 3)

	require.Equal(t, ir.OpSDiv, b.CreateDiv(true, l, r).Opcode)
	require.Equal(t, ir.OpUDiv, b.CreateDiv(false, l, r).Opcode)
	require.Equal(t, ir.OpSRem, b.CreateRem(true, l, r).Opcode)
	require.Equal(t, ir.OpURem, b.CreateRem(false, l, r).Opcode)
	require.Equal(t, ir.OpAShr, b.CreateShr(true, l, r).Opcode)
	require.Equal(t, ir.OpLShr, b.CreateShr(false, l, r).Opcode)
}

func TestCreateICmpAlwaysProducesI1(t *testing.T) {
	mod := ir.NewModule()
	b, _ := newFunc(t, mod, "f")
	blk := b.NewBlock("entry")
	b.SetInsertPoint(blk)

	l := mod.ConstInt(mod.Ctx.I32(), 1)
	r := mod.ConstInt(mod.Ctx.I32(), 2)
	cmp := b.CreateICmp(ir.PredSLT, l, r)
	require.Same(t, irtype.Type(mod.Ctx.I1()), cmp.Type())
	require.Equal(t, ir.PredSLT, cmp.Predicate)
}

func TestCreateStructGEPUsesZeroThenFieldIndex(t *testing.T) {
	mod := ir.NewModule()
	b, _ := newFunc(t, mod, "f")
	blk := b.NewBlock("entry")
	b.SetInsertPoint(blk)

	point := mod.DeclareStruct("Point")
	point.SetBody([]irtype.Type{mod.Ctx.I32(), mod.Ctx.I32()})
	base := b.CreateAlloca(point)
	gep := b.CreateStructGEP(base, point, 1)

	require.Len(t, gep.Operands, 3)
	require.Same(t, base, gep.Operands[0])
	zero := gep.Operands[1].(*ir.ConstantInt)
	idx := gep.Operands[2].(*ir.ConstantInt)
	require.Equal(t, uint64(0), zero.Val)
	require.Equal(t, uint64(1), idx.Val)
	require.Same(t, irtype.Type(mod.Ctx.Ptr()), gep.Type())
}

func TestCreateCallOmitsNameForVoidReturn(t *testing.T) {
	mod := ir.NewModule()
	b, _ := newFunc(t, mod, "f")
	blk := b.NewBlock("entry")
	b.SetInsertPoint(blk)

	voidSig := mod.Ctx.Function([]irtype.Type{mod.Ctx.I32()}, mod.Ctx.Void(), false)
	call := b.CreateCall("printInt", voidSig, []ir.Value{mod.ConstInt(mod.Ctx.I32(), 5)})
	require.Empty(t, call.Name)

	intSig := mod.Ctx.Function(nil, mod.Ctx.I32(), false)
	call2 := b.CreateCall("getInt", intSig, nil)
	require.NotEmpty(t, call2.Name)
}

func TestTerminatedReflectsBlockState(t *testing.T) {
	mod := ir.NewModule()
	b, _ := newFunc(t, mod, "f")
	blk := b.NewBlock("entry")
	b.SetInsertPoint(blk)
	require.False(t, b.Terminated())

	b.CreateRetVoid()
	require.True(t, b.Terminated())
}

func TestPhiCollectsIncomingFromBothPredecessors(t *testing.T) {
	mod := ir.NewModule()
	b, _ := newFunc(t, mod, "f")
	left := b.NewBlock("then")
	right := b.NewBlock("else")
	join := b.NewBlock("join")

	b.SetInsertPoint(left)
	b.CreateBr(join)
	b.SetInsertPoint(right)
	b.CreateBr(join)

	b.SetInsertPoint(join)
	phi := b.CreatePhi(mod.Ctx.I32())
	phi.AddIncoming(mod.ConstInt(mod.Ctx.I32(), 1), left)
	phi.AddIncoming(mod.ConstInt(mod.Ctx.I32(), 2), right)

	require.Len(t, phi.Operands, 2)
	require.Len(t, phi.IncomingBlocks, 2)
}

func TestLoopContextStackTracksBreaksAndNests(t *testing.T) {
	mod := ir.NewModule()
	b, _ := newFunc(t, mod, "f")
	require.Nil(t, b.CurrentLoop())

	body := b.NewBlock("loop.body")
	after := b.NewBlock("loop.after")
	outer := b.PushLoop(body, after)
	require.Same(t, outer, b.CurrentLoop())
	require.Same(t, body, outer.ContinueTarget())

	innerBody := b.NewBlock("inner.body")
	innerAfter := b.NewBlock("inner.after")
	inner := b.PushLoop(innerBody, innerAfter)
	require.Same(t, inner, b.CurrentLoop())

	val := mod.ConstInt(mod.Ctx.I32(), 7)
	inner.RecordBreak(val, innerBody)
	require.Len(t, inner.BreakValues, 1)
	require.Same(t, innerBody, inner.BreakPreds[0])
	require.Same(t, irtype.Type(mod.Ctx.I32()), inner.BreakType)

	b.PopLoop()
	require.Same(t, outer, b.CurrentLoop())
	b.PopLoop()
	require.Nil(t, b.CurrentLoop())
}

func TestWhileLoopContinueTargetIsCondBlock(t *testing.T) {
	mod := ir.NewModule()
	b, _ := newFunc(t, mod, "f")
	cond := b.NewBlock("while.cond")
	body := b.NewBlock("while.body")
	after := b.NewBlock("while.after")
	lc := b.PushWhileLoop(cond, body, after)
	require.Same(t, cond, lc.ContinueTarget())
}

func TestRecordBreakIgnoresNilValue(t *testing.T) {
	lc := &LoopContext{}
	lc.RecordBreak(nil, nil)
	require.Empty(t, lc.BreakValues)
}

func TestCreateMemcpySizeEmitsGepThenPtrToInt(t *testing.T) {
	mod := ir.NewModule()
	b, _ := newFunc(t, mod, "f")
	blk := b.NewBlock("entry")
	b.SetInsertPoint(blk)

	arr := mod.Ctx.Array(mod.Ctx.I32(), 4)
	size := b.CreateMemcpySize(arr)
	require.Equal(t, ir.OpPtrToInt, size.Opcode)
	require.Same(t, irtype.Type(mod.Ctx.I32()), size.Type())
	require.Len(t, blk.Instrs, 2)
	require.Equal(t, ir.OpGEP, blk.Instrs[0].Opcode)
}
