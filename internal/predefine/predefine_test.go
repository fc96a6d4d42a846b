package predefine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rustlite/rlc/internal/ast"
	"github.com/rustlite/rlc/internal/ir"
	"github.com/rustlite/rlc/internal/irtype"
	"github.com/rustlite/rlc/internal/parser"
	"github.com/rustlite/rlc/internal/predefine"
	"github.com/rustlite/rlc/internal/sema"
)

func predefineSource(t *testing.T, src string) (*predefine.Predefiner, *ast.Module) {
	t.Helper()
	p, err := parser.New(src)
	require.NoError(t, err)
	mod, errs := p.Parse()
	require.Empty(t, errs, "unexpected parse errors: %v", errs)
	an, err := sema.Analyze(mod)
	require.NoError(t, err)
	pre := predefine.New(mod, an.Root)
	require.NoError(t, pre.Run())
	return pre, mod
}

func TestStructBodyFilledInDeclarationOrder(t *testing.T) {
	pre, _ := predefineSource(t, `
		struct Point { x: i32, y: i32 }
		fn main() -> i32 { 0 }
	`)
	st := pre.Mod.Ctx.NamedStruct("Point")
	require.False(t, st.IsOpaque())
	require.Len(t, st.Fields, 2)
	require.Same(t, irtype.Type(pre.Mod.Ctx.I32()), st.Fields[0])
}

func TestNestedByValueStructResolvesAfterItsField(t *testing.T) {
	// Outer is declared first but holds Inner by value; the fixed-point
	// ordering must complete Inner before Outer's body is filled in.
	pre, _ := predefineSource(t, `
		struct Outer { first: Inner, tag: i32 }
		struct Inner { v: i32 }
		fn main() -> i32 { 0 }
	`)
	outer := pre.Mod.Ctx.NamedStruct("Outer")
	inner := pre.Mod.Ctx.NamedStruct("Inner")
	require.False(t, outer.IsOpaque())
	require.False(t, inner.IsOpaque())
	require.Same(t, irtype.Type(inner), outer.Fields[0])
}

func TestSizeFunctionUsesNullGepPtrToInt(t *testing.T) {
	pre, _ := predefineSource(t, `
		struct P { x: i32 }
		fn main() -> i32 { 0 }
	`)
	fn := pre.Mod.FindFunction("P.size")
	require.NotNil(t, fn)
	require.False(t, fn.IsDeclaration)
	require.Same(t, irtype.Type(pre.Mod.Ctx.I32()), fn.Sig.Ret)

	entry := fn.EntryBlock()
	require.NotNil(t, entry)
	require.Len(t, entry.Instrs, 3)
	gep := entry.Instrs[0]
	require.Equal(t, ir.OpGEP, gep.Opcode)
	require.IsType(t, &ir.ConstantPointerNull{}, gep.Operands[0])
	one := gep.Operands[1].(*ir.ConstantInt)
	require.Equal(t, uint64(1), one.Val)
	require.Equal(t, ir.OpPtrToInt, entry.Instrs[1].Opcode)
	require.Equal(t, ir.OpRet, entry.Instrs[2].Opcode)
}

func TestConstantGlobalsEvaluateCrossReferences(t *testing.T) {
	pre, _ := predefineSource(t, `
		const BASE: i32 = 2;
		const SCALED: i32 = BASE * 3 + 1;
		fn main() -> i32 { SCALED }
	`)
	var scaled *ir.GlobalVariable
	for _, g := range pre.Mod.Globals {
		if g.Name == "SCALED" {
			scaled = g
		}
	}
	require.NotNil(t, scaled)
	require.True(t, scaled.IsConstant)
	init := scaled.Initializer.(*ir.ConstantInt)
	require.Equal(t, uint64(7), init.Val)
}

func TestNonIntegerConstantIsRejected(t *testing.T) {
	p, err := parser.New(`
		const FLAG: bool = true;
		fn main() -> i32 { 0 }
	`)
	require.NoError(t, err)
	mod, errs := p.Parse()
	require.Empty(t, errs)
	an, err := sema.Analyze(mod)
	require.NoError(t, err)
	pre := predefine.New(mod, an.Root)
	require.Error(t, pre.Run())
}

func TestAggregateReturnABIRewritesNonMainFunctions(t *testing.T) {
	pre, _ := predefineSource(t, `
		struct P { x: i32, y: i32 }
		fn make(seed: i32) -> P { P { x: seed, y: seed } }
		fn main() -> i32 { 0 }
	`)
	make := pre.Mod.FindFunction("make")
	require.NotNil(t, make)
	require.IsType(t, &irtype.VoidType{}, make.Sig.Ret)
	require.Len(t, make.Sig.Params, 2)
	require.True(t, irtype.IsPointer(make.Sig.Params[0]))
	require.Equal(t, "ret", make.Params[0].Name)
	require.Same(t, irtype.Type(pre.Mod.Ctx.I32()), make.Sig.Params[1])
}

func TestMainKeepsItsDeclaredSignature(t *testing.T) {
	pre, _ := predefineSource(t, `fn main() -> i32 { 0 }`)
	main := pre.Mod.FindFunction("main")
	require.NotNil(t, main)
	require.Same(t, irtype.Type(pre.Mod.Ctx.I32()), main.Sig.Ret)
	require.Empty(t, main.Sig.Params)
}

func TestMethodSignatureInsertsSelfPointer(t *testing.T) {
	pre, _ := predefineSource(t, `
		struct Counter { value: i32 }
		impl Counter {
			fn get(&self) -> i32 { self.value }
		}
		fn main() -> i32 { 0 }
	`)
	get := pre.Mod.FindFunction("Counter.get")
	require.NotNil(t, get)
	require.Len(t, get.Sig.Params, 2)
	require.True(t, irtype.IsPointer(get.Sig.Params[0]))
	require.True(t, irtype.IsPointer(get.Sig.Params[1]))
	require.Equal(t, "ret", get.Params[0].Name)
	require.Equal(t, "self", get.Params[1].Name)
}

func TestAggregateParameterPassedByPointer(t *testing.T) {
	pre, _ := predefineSource(t, `
		struct P { x: i32, y: i32 }
		fn sum(p: P) -> i32 { p.x + p.y }
		fn main() -> i32 { 0 }
	`)
	sum := pre.Mod.FindFunction("sum")
	require.NotNil(t, sum)
	require.Len(t, sum.Sig.Params, 2)
	require.True(t, irtype.IsPointer(sum.Sig.Params[1]))
}

func TestRuntimeFunctionsDeclaredWithNativeSignatures(t *testing.T) {
	pre, _ := predefineSource(t, `fn main() -> i32 { printlnInt(1); 0 }`)
	for _, name := range []string{"printInt", "printlnInt", "getInt"} {
		fn := pre.Mod.FindFunction(name)
		require.NotNil(t, fn, "runtime function %q must be declared", name)
		require.True(t, fn.IsDeclaration)
	}
	println := pre.Mod.FindFunction("printlnInt")
	require.IsType(t, &irtype.VoidType{}, println.Sig.Ret)
	require.Len(t, println.Sig.Params, 1)
	getInt := pre.Mod.FindFunction("getInt")
	require.Same(t, irtype.Type(pre.Mod.Ctx.I32()), getInt.Sig.Ret)
}

func TestUnitReturningFunctionStillTakesReturnPointer(t *testing.T) {
	pre, _ := predefineSource(t, `
		fn side(v: i32) { printInt(v); }
		fn main() -> i32 { side(1); 0 }
	`)
	side := pre.Mod.FindFunction("side")
	require.NotNil(t, side)
	require.IsType(t, &irtype.VoidType{}, side.Sig.Ret)
	require.True(t, irtype.IsPointer(side.Sig.Params[0]))
}
