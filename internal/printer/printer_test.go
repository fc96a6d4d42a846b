package printer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rustlite/rlc/internal/ir"
	"github.com/rustlite/rlc/internal/irtype"
)

func TestPrintStructDecl(t *testing.T) {
	m := ir.NewModule()
	st := m.DeclareStruct("Point")
	st.SetBody([]irtype.Type{m.Ctx.I32(), m.Ctx.I32()})

	out := Print(m)
	require.Contains(t, out, "%struct.Point = type { i32, i32 }")
}

func TestPrintGlobalConstant(t *testing.T) {
	m := ir.NewModule()
	m.AddGlobal("MAX", m.Ctx.I32(), m.ConstInt(m.Ctx.I32(), 42), true)

	out := Print(m)
	require.Contains(t, out, "@MAX = constant i32 42")
}

func TestPrintFunctionDeclaration(t *testing.T) {
	m := ir.NewModule()
	sig := m.Ctx.Function([]irtype.Type{m.Ctx.I32()}, m.Ctx.Void(), false)
	m.DeclareFunction("printInt", sig)

	out := Print(m)
	require.Contains(t, out, "declare void @printInt(i32)")
}

func TestPrintSimpleFunctionBody(t *testing.T) {
	m := ir.NewModule()
	sig := m.Ctx.Function([]irtype.Type{m.Ctx.I32(), m.Ctx.I32()}, m.Ctx.I32(), false)
	fn := m.DefineFunction("add", sig, []string{"a", "b"})
	entry := fn.AddBlock("entry")

	add := &ir.Instruction{Opcode: ir.OpAdd, Typ: m.Ctx.I32(), Name: "tmp.0"}
	add.AddOperand(fn.Params[0])
	add.AddOperand(fn.Params[1])
	entry.Append(add)
	ret := &ir.Instruction{Opcode: ir.OpRet}
	ret.AddOperand(add)
	entry.Append(ret)

	out := Print(m)
	require.Contains(t, out, "define i32 @add(i32 %a, i32 %b) {")
	require.Contains(t, out, "entry:")
	require.Contains(t, out, "%tmp.0 = add i32 %a, %b")
	require.Contains(t, out, "ret i32 %tmp.0")
}

func TestPrintCondBrAndPhi(t *testing.T) {
	m := ir.NewModule()
	sig := m.Ctx.Function(nil, m.Ctx.I32(), false)
	fn := m.DefineFunction("f", sig, nil)
	entry := fn.AddBlock("entry")
	thenB := fn.AddBlock("if.then.0")
	elseB := fn.AddBlock("if.else.0")
	merge := fn.AddBlock("if.merge.0")

	cond := m.ConstInt(m.Ctx.I1(), 1)
	cbr := &ir.Instruction{Opcode: ir.OpCondBr, TrueTarget: thenB, FalseTarget: elseB}
	cbr.AddOperand(cond)
	entry.Append(cbr)

	thenB.Append(&ir.Instruction{Opcode: ir.OpBr, Target: merge})
	elseB.Append(&ir.Instruction{Opcode: ir.OpBr, Target: merge})

	phi := &ir.Instruction{Opcode: ir.OpPhi, Typ: m.Ctx.I32(), Name: "tmp.1"}
	phi.AddIncoming(m.ConstInt(m.Ctx.I32(), 1), thenB)
	phi.AddIncoming(m.ConstInt(m.Ctx.I32(), 0), elseB)
	merge.Append(phi)
	ret := &ir.Instruction{Opcode: ir.OpRet}
	ret.AddOperand(phi)
	merge.Append(ret)

	out := Print(m)
	require.Contains(t, out, "br i1 1, label %if.then.0, label %if.else.0")
	require.Contains(t, out, "%tmp.1 = phi i32 [ 1, %if.then.0 ], [ 0, %if.else.0 ]")
}

func TestPrintGEPAndLoadStore(t *testing.T) {
	m := ir.NewModule()
	st := m.DeclareStruct("P")
	st.SetBody([]irtype.Type{m.Ctx.I32(), m.Ctx.I32()})
	sig := m.Ctx.Function(nil, m.Ctx.Void(), false)
	fn := m.DefineFunction("f", sig, nil)
	entry := fn.AddBlock("entry")

	alloca := &ir.Instruction{Opcode: ir.OpAlloca, Typ: m.Ctx.Ptr(), SourceType: st, Name: "tmp.0"}
	entry.Append(alloca)

	gep := &ir.Instruction{Opcode: ir.OpGEP, Typ: m.Ctx.Ptr(), SourceType: st, Name: "tmp.1"}
	gep.AddOperand(alloca)
	gep.AddOperand(m.ConstInt(m.Ctx.I32(), 0))
	gep.AddOperand(m.ConstInt(m.Ctx.I32(), 1))
	entry.Append(gep)

	store := &ir.Instruction{Opcode: ir.OpStore}
	store.AddOperand(m.ConstInt(m.Ctx.I32(), 7))
	store.AddOperand(gep)
	entry.Append(store)

	load := &ir.Instruction{Opcode: ir.OpLoad, Typ: m.Ctx.I32(), SourceType: m.Ctx.I32(), Name: "tmp.2"}
	load.AddOperand(gep)
	entry.Append(load)

	entry.Append(&ir.Instruction{Opcode: ir.OpRetVoid})

	out := Print(m)
	require.Contains(t, out, "%tmp.1 = getelementptr %struct.P, ptr %tmp.0, i32 0, i32 1")
	require.Contains(t, out, "store i32 7, ptr %tmp.1")
	require.Contains(t, out, "%tmp.2 = load i32, ptr %tmp.1")
}

func TestPrintCallAndPtrToInt(t *testing.T) {
	m := ir.NewModule()
	printSig := m.Ctx.Function([]irtype.Type{m.Ctx.I32()}, m.Ctx.Void(), false)
	m.DeclareFunction("printInt", printSig)

	sig := m.Ctx.Function(nil, m.Ctx.Void(), false)
	fn := m.DefineFunction("main", sig, nil)
	entry := fn.AddBlock("entry")

	call := &ir.Instruction{Opcode: ir.OpCall, Typ: m.Ctx.Void(), Callee: "printInt", CalleeType: printSig}
	call.AddOperand(m.ConstInt(m.Ctx.I32(), 5))
	entry.Append(call)

	gep := &ir.Instruction{Opcode: ir.OpGEP, Typ: m.Ctx.Ptr(), SourceType: m.Ctx.I32(), Name: "tmp.0"}
	gep.AddOperand(m.ConstNullPtr())
	gep.AddOperand(m.ConstInt(m.Ctx.I32(), 1))
	entry.Append(gep)
	p2i := &ir.Instruction{Opcode: ir.OpPtrToInt, Typ: m.Ctx.I32(), Name: "tmp.1"}
	p2i.AddOperand(gep)
	entry.Append(p2i)

	entry.Append(&ir.Instruction{Opcode: ir.OpRetVoid})

	out := Print(m)
	require.Contains(t, out, "call void @printInt(i32 5)")
	require.Contains(t, out, "%tmp.1 = ptrtoint ptr %tmp.0 to i32")
}

func TestPrintOutputOrderStructsGlobalsFunctions(t *testing.T) {
	m := ir.NewModule()
	st := m.DeclareStruct("P")
	st.SetBody([]irtype.Type{m.Ctx.I32()})
	m.AddGlobal("C", m.Ctx.I32(), m.ConstInt(m.Ctx.I32(), 1), true)
	sig := m.Ctx.Function(nil, m.Ctx.Void(), false)
	fn := m.DefineFunction("f", sig, nil)
	fn.AddBlock("entry").Append(&ir.Instruction{Opcode: ir.OpRetVoid})

	out := Print(m)
	structIdx := strings.Index(out, "%struct.P")
	globalIdx := strings.Index(out, "@C")
	fnIdx := strings.Index(out, "define void @f")
	require.True(t, structIdx >= 0 && globalIdx > structIdx && fnIdx > globalIdx)
}
