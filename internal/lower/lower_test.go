package lower_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rustlite/rlc/internal/ir"
	"github.com/rustlite/rlc/internal/irtype"
	"github.com/rustlite/rlc/internal/lower"
	"github.com/rustlite/rlc/internal/parser"
	"github.com/rustlite/rlc/internal/predefine"
	"github.com/rustlite/rlc/internal/sema"
)

func lowerSource(t *testing.T, src string) *ir.Module {
	t.Helper()
	p, err := parser.New(src)
	require.NoError(t, err)
	mod, errs := p.Parse()
	require.Empty(t, errs, "unexpected parse errors: %v", errs)
	an, err := sema.Analyze(mod)
	require.NoError(t, err)
	pre := predefine.New(mod, an.Root)
	require.NoError(t, pre.Run())
	low := lower.New(mod, an.Root, pre)
	require.NoError(t, low.Run())
	return pre.Mod
}

func definedFunction(t *testing.T, m *ir.Module, name string) *ir.Function {
	t.Helper()
	fn := m.FindFunction(name)
	require.NotNil(t, fn, "function %q not found", name)
	require.False(t, fn.IsDeclaration)
	return fn
}

func instructions(fn *ir.Function) []*ir.Instruction {
	var all []*ir.Instruction
	for _, b := range fn.Blocks {
		all = append(all, b.Instrs...)
	}
	return all
}

// Every non-empty block ends with exactly one terminator once lowering has
// completed a function.
func requireWellTerminated(t *testing.T, m *ir.Module) {
	t.Helper()
	for _, fn := range m.Functions {
		if fn.IsDeclaration {
			continue
		}
		for _, b := range fn.Blocks {
			require.NotEmpty(t, b.Instrs, "%s: block %s is empty", fn.Name, b.Name)
			count := 0
			for _, ins := range b.Instrs {
				if ins.IsTerminator() {
					count++
				}
			}
			require.Equal(t, 1, count, "%s: block %s has %d terminators", fn.Name, b.Name, count)
			require.True(t, b.Instrs[len(b.Instrs)-1].IsTerminator(),
				"%s: block %s does not end with its terminator", fn.Name, b.Name)
		}
	}
}

func TestLoopBreakValueProducesSingleIncomingPhi(t *testing.T) {
	m := lowerSource(t, `fn main() -> i32 { let r: i32 = loop { break 42; }; r }`)
	main := definedFunction(t, m, "main")

	var phi *ir.Instruction
	for _, ins := range instructions(main) {
		if ins.Opcode == ir.OpPhi {
			require.Nil(t, phi, "expected exactly one phi")
			phi = ins
		}
	}
	require.NotNil(t, phi)
	require.Len(t, phi.Operands, 1)
	require.Len(t, phi.IncomingBlocks, 1)
	fortyTwo := phi.Operands[0].(*ir.ConstantInt)
	require.Equal(t, uint64(42), fortyTwo.Val)
	requireWellTerminated(t, m)
}

func TestShortCircuitRightSideStaysOffTheFastPath(t *testing.T) {
	m := lowerSource(t, `
		fn main() -> i32 {
			let a: bool = true;
			if a && (getInt() > 0) { 1 } else { 0 }
		}
	`)
	main := definedFunction(t, m, "main")

	var call *ir.Instruction
	for _, ins := range instructions(main) {
		if ins.Opcode == ir.OpCall && ins.Callee == "getInt" {
			call = ins
		}
	}
	require.NotNil(t, call)
	require.True(t, strings.HasPrefix(call.Block.Name, "logical.rhs"),
		"getInt() must be evaluated only in the right-hand-side block, found in %s", call.Block.Name)
	require.NotSame(t, main.EntryBlock(), call.Block)
	requireWellTerminated(t, m)
}

func TestIfBranchesMergeThroughPhi(t *testing.T) {
	m := lowerSource(t, `
		fn main() -> i32 {
			let flag: bool = false;
			if flag { 1 } else { 2 }
		}
	`)
	main := definedFunction(t, m, "main")

	var phi *ir.Instruction
	for _, ins := range instructions(main) {
		if ins.Opcode == ir.OpPhi {
			phi = ins
		}
	}
	require.NotNil(t, phi)
	require.Len(t, phi.Operands, 2)
	require.Same(t, irtype.Type(m.Ctx.I32()), phi.Typ)
	requireWellTerminated(t, m)
}

func TestEarlyReturnInsideBranchEmitsNoDoubleTerminator(t *testing.T) {
	m := lowerSource(t, `
		fn main() -> i32 {
			let n: i32 = 3;
			if n > 0 {
				return 1;
			}
			0
		}
	`)
	requireWellTerminated(t, m)
}

func TestAggregateReturnWritesThroughPointerBeforeRetVoid(t *testing.T) {
	m := lowerSource(t, `
		struct P { x: i32, y: i32 }
		fn make() -> P { P { x: 3, y: 4 } }
		fn main() -> i32 { let p: P = make(); p.x + p.y }
	`)
	make := definedFunction(t, m, "make")
	require.IsType(t, &irtype.VoidType{}, make.Sig.Ret)

	var sawRetCopy bool
	for _, ins := range instructions(make) {
		if ins.Opcode == ir.OpCall && ins.Callee == "llvm.memcpy.p0.p0.i32" {
			if ins.Operands[0] == ir.Value(make.Params[0]) {
				sawRetCopy = true
			}
		}
	}
	require.True(t, sawRetCopy, "make must memcpy its result into the return buffer")
	last := make.Blocks[len(make.Blocks)-1]
	require.Equal(t, ir.OpRetVoid, last.Terminator().Opcode)
	requireWellTerminated(t, m)
}

func TestScalarReturnStoresThroughReturnPointer(t *testing.T) {
	m := lowerSource(t, `
		fn add(a: i32, b: i32) -> i32 { a + b }
		fn main() -> i32 { add(1, 2) }
	`)
	add := definedFunction(t, m, "add")

	var sawRetStore bool
	for _, ins := range instructions(add) {
		if ins.Opcode == ir.OpStore && ins.Operands[1] == ir.Value(add.Params[0]) {
			sawRetStore = true
		}
	}
	require.True(t, sawRetStore, "add must store its result through the return pointer")

	// The caller allocates the buffer, passes it first, and loads the result.
	main := definedFunction(t, m, "main")
	var call *ir.Instruction
	for _, ins := range instructions(main) {
		if ins.Opcode == ir.OpCall && ins.Callee == "add" {
			call = ins
		}
	}
	require.NotNil(t, call)
	buf := call.Operands[0].(*ir.Instruction)
	require.Equal(t, ir.OpAlloca, buf.Opcode)
	requireWellTerminated(t, m)
}

func TestWhileLoopShapesCondBodyAfterBlocks(t *testing.T) {
	m := lowerSource(t, `
		fn main() -> i32 {
			let mut s: i32 = 0;
			let mut i: i32 = 1;
			while i <= 3 {
				s = s + i;
				i = i + 1;
			}
			s
		}
	`)
	main := definedFunction(t, m, "main")

	names := make([]string, len(main.Blocks))
	for i, b := range main.Blocks {
		names[i] = b.Name
	}
	joined := strings.Join(names, " ")
	require.Contains(t, joined, "while.cond")
	require.Contains(t, joined, "while.body")
	require.Contains(t, joined, "while.end")

	// The body's back-edge targets the condition block, not the body itself.
	var bodyBlock *ir.BasicBlock
	for _, b := range main.Blocks {
		if strings.HasPrefix(b.Name, "while.body") {
			bodyBlock = b
		}
	}
	require.NotNil(t, bodyBlock)
	back := bodyBlock.Terminator()
	require.Equal(t, ir.OpBr, back.Opcode)
	require.True(t, strings.HasPrefix(back.Target.Name, "while.cond"))
	requireWellTerminated(t, m)
}

func TestArrayLetCopiesWithConstantByteCount(t *testing.T) {
	m := lowerSource(t, `
		fn main() -> i32 {
			let a: [i32; 4] = [1, 2, 3, 4];
			let b: [i32; 4] = a;
			b[2]
		}
	`)
	main := definedFunction(t, m, "main")

	var sizes []uint64
	for _, ins := range instructions(main) {
		if ins.Opcode == ir.OpCall && ins.Callee == "llvm.memcpy.p0.p0.i32" {
			c, ok := ins.Operands[2].(*ir.ConstantInt)
			require.True(t, ok, "array memcpy size must fold to a constant")
			sizes = append(sizes, c.Val)
		}
	}
	require.NotEmpty(t, sizes)
	for _, s := range sizes {
		require.Equal(t, uint64(16), s)
	}
	requireWellTerminated(t, m)
}

func TestRepeatArrayLiteralEvaluatesElementOnce(t *testing.T) {
	m := lowerSource(t, `
		fn main() -> i32 {
			let a: [i32; 3] = [getInt(); 3];
			a[0]
		}
	`)
	main := definedFunction(t, m, "main")

	calls := 0
	stores := 0
	for _, ins := range instructions(main) {
		if ins.Opcode == ir.OpCall && ins.Callee == "getInt" {
			calls++
		}
		if ins.Opcode == ir.OpStore {
			stores++
		}
	}
	require.Equal(t, 1, calls, "the repeated element must be evaluated exactly once")
	require.GreaterOrEqual(t, stores, 3, "each element slot receives its own copy")
	requireWellTerminated(t, m)
}

func TestMethodCallPassesReceiverAfterReturnBuffer(t *testing.T) {
	m := lowerSource(t, `
		struct Counter { value: i32 }
		impl Counter {
			fn get(&self) -> i32 { self.value }
		}
		fn main() -> i32 {
			let c: Counter = Counter { value: 7 };
			c.get()
		}
	`)
	main := definedFunction(t, m, "main")

	var call *ir.Instruction
	for _, ins := range instructions(main) {
		if ins.Opcode == ir.OpCall && ins.Callee == "Counter.get" {
			call = ins
		}
	}
	require.NotNil(t, call)
	require.Len(t, call.Operands, 2)
	buf := call.Operands[0].(*ir.Instruction)
	require.Equal(t, ir.OpAlloca, buf.Opcode)
	recv := call.Operands[1].(*ir.Instruction)
	require.Equal(t, ir.OpAlloca, recv.Opcode, "the receiver argument is the struct's stack slot")
	requireWellTerminated(t, m)
}

func TestUnsignedOperationsPickUnsignedOpcodes(t *testing.T) {
	m := lowerSource(t, `
		fn main() -> i32 {
			let x: u32 = 10u32;
			let y: u32 = 3u32;
			if x / y > x % y && x < y { 1 } else { 0 }
		}
	`)
	main := definedFunction(t, m, "main")

	var sawUDiv, sawURem, sawULT bool
	for _, ins := range instructions(main) {
		switch ins.Opcode {
		case ir.OpUDiv:
			sawUDiv = true
		case ir.OpURem:
			sawURem = true
		case ir.OpICmp:
			if ins.Predicate == ir.PredULT {
				sawULT = true
			}
		}
	}
	require.True(t, sawUDiv)
	require.True(t, sawURem)
	require.True(t, sawULT)
	requireWellTerminated(t, m)
}

func TestEnumVariantLowersToItsTagConstant(t *testing.T) {
	m := lowerSource(t, `
		enum Direction { North, South, East, West }
		fn main() -> i32 {
			let d: Direction = Direction::South;
			d as i32
		}
	`)
	main := definedFunction(t, m, "main")

	var stored *ir.ConstantInt
	for _, ins := range instructions(main) {
		if ins.Opcode == ir.OpStore {
			if c, ok := ins.Operands[0].(*ir.ConstantInt); ok {
				stored = c
			}
		}
	}
	require.NotNil(t, stored)
	require.Equal(t, uint64(1), stored.Val, "South is the second declared variant")
	requireWellTerminated(t, m)
}

func TestDerefAssignmentStoresThroughTheReference(t *testing.T) {
	m := lowerSource(t, `
		fn main() -> i32 {
			let mut x: i32 = 1;
			let r: &mut i32 = &mut x;
			*r = 5;
			x
		}
	`)
	requireWellTerminated(t, m)
	main := definedFunction(t, m, "main")

	// At least one store writes a 5 through a loaded pointer, not directly
	// into x's alloca.
	var sawIndirect bool
	for _, ins := range instructions(main) {
		if ins.Opcode != ir.OpStore {
			continue
		}
		c, ok := ins.Operands[0].(*ir.ConstantInt)
		if !ok || c.Val != 5 {
			continue
		}
		if dst, ok := ins.Operands[1].(*ir.Instruction); ok && dst.Opcode == ir.OpLoad {
			sawIndirect = true
		}
	}
	require.True(t, sawIndirect, "*r = 5 must store through the pointer loaded from r")
}
