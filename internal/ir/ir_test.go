package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rustlite/rlc/internal/irtype"
)

func TestConstIntIsUniquedAcrossCalls(t *testing.T) {
	m := NewModule()
	a := m.ConstInt(m.Ctx.I32(), 42)
	b := m.ConstInt(m.Ctx.I32(), 42)
	c := m.ConstInt(m.Ctx.I32(), 7)
	require.Same(t, a, b)
	require.NotSame(t, a, c)
}

func TestConstIntDistinguishesType(t *testing.T) {
	m := NewModule()
	a := m.ConstInt(m.Ctx.I32(), 1)
	b := m.ConstInt(m.Ctx.I64(), 1)
	require.NotSame(t, a, b)
}

func TestAddOperandRecordsUseDefBackEdge(t *testing.T) {
	m := NewModule()
	one := m.ConstInt(m.Ctx.I32(), 1)
	add := &Instruction{Opcode: OpAdd, Typ: m.Ctx.I32(), Name: "tmp.0"}
	add.AddOperand(one)
	add.AddOperand(one)

	users := one.Users()
	require.Len(t, users, 2)
	require.Same(t, add, users[0])
	require.Same(t, add, users[1])
}

func TestBasicBlockTerminatorDetection(t *testing.T) {
	f := &Function{Name: "f"}
	b := f.AddBlock("entry")
	require.False(t, b.IsTerminated())

	alloca := &Instruction{Opcode: OpAlloca, Typ: m(t).Ctx.Ptr(), Name: "tmp.0"}
	b.Append(alloca)
	require.False(t, b.IsTerminated())

	ret := &Instruction{Opcode: OpRetVoid}
	b.Append(ret)
	require.True(t, b.IsTerminated())
	require.Same(t, ret, b.Terminator())
}

func TestPhiAddIncomingKeepsOperandsAndBlocksParallel(t *testing.T) {
	mod := NewModule()
	f := &Function{Name: "f"}
	left := f.AddBlock("left")
	right := f.AddBlock("right")

	phi := &Instruction{Opcode: OpPhi, Typ: mod.Ctx.I32()}
	phi.AddIncoming(mod.ConstInt(mod.Ctx.I32(), 1), left)
	phi.AddIncoming(mod.ConstInt(mod.Ctx.I32(), 2), right)

	require.Len(t, phi.Operands, 2)
	require.Len(t, phi.IncomingBlocks, 2)
	require.Same(t, left, phi.IncomingBlocks[0])
	require.Same(t, right, phi.IncomingBlocks[1])
}

func TestDefineFunctionCreatesParamsFromSignature(t *testing.T) {
	mod := NewModule()
	sig := mod.Ctx.Function([]irtype.Type{mod.Ctx.I32(), mod.Ctx.I32()}, mod.Ctx.I32(), false)
	fn := mod.DefineFunction("add", sig, []string{"a", "b"})
	require.Len(t, fn.Params, 2)
	require.Equal(t, "a", fn.Params[0].Name)
	require.Equal(t, "b", fn.Params[1].Name)
	require.Same(t, mod.Ctx.I32(), fn.Params[0].Type())
}

func TestDeclareStructIsIdempotentByName(t *testing.T) {
	mod := NewModule()
	a := mod.DeclareStruct("Point")
	b := mod.DeclareStruct("Point")
	require.Same(t, a, b)
	require.Len(t, mod.Structs, 1)
}

func TestConstNullPtrIsASingleton(t *testing.T) {
	mod := NewModule()
	require.Same(t, mod.ConstNullPtr(), mod.ConstNullPtr())
}

// m is a tiny helper so TestBasicBlockTerminatorDetection can build a
// throwaway module just for its type context.
func m(t *testing.T) *Module {
	t.Helper()
	return NewModule()
}
