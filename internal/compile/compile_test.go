package compile_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rustlite/rlc/internal/compile"
)

// End-to-end checks over small programs. Exact SSA temp numbering is an
// implementation detail of internal/irbuild's monotonic counter, so
// assertions check opcodes, types, and signedness rather than literal
// instruction text.

func TestCompileArithmetic(t *testing.T) {
	src := `fn main() -> i32 { let x: i32 = 1; let y: i32 = 2; x + y }`
	res, err := compile.Compile(src, compile.Options{}, nil)
	require.NoError(t, err)
	require.Contains(t, res.IR, "define i32 @main()")
	require.Contains(t, res.IR, "add i32")
	require.Contains(t, res.IR, "ret i32")
}

func TestCompileWhileLoop(t *testing.T) {
	src := `fn main() -> i32 {
		let mut s: i32 = 0;
		let mut i: i32 = 1;
		while (i <= 10) {
			s = s + i;
			i = i + 1;
		}
		s
	}`
	res, err := compile.Compile(src, compile.Options{}, nil)
	require.NoError(t, err)
	require.Contains(t, res.IR, "icmp sle i32")
	require.Contains(t, res.IR, "br i1")
}

func TestCompileUnsignedComparison(t *testing.T) {
	src := `fn main() -> i32 {
		let x: u32 = 2147483648u32;
		let y: u32 = 2147483647u32;
		if (x < y) { 1 } else { 0 }
	}`
	res, err := compile.Compile(src, compile.Options{}, nil)
	require.NoError(t, err)
	require.Contains(t, res.IR, "icmp ult i32")
}

func TestCompileUnsignedDivide(t *testing.T) {
	src := `fn main() -> i32 {
		let x: u32 = 0xFFFFFFF6u32;
		let y: u32 = 3u32;
		(x / y) as i32
	}`
	res, err := compile.Compile(src, compile.Options{}, nil)
	require.NoError(t, err)
	require.Contains(t, res.IR, "udiv i32")
}

func TestCompileStructAggregateABI(t *testing.T) {
	src := `struct P { x: i32, y: i32 }
	fn make() -> P { P { x: 3, y: 4 } }
	fn main() -> i32 { let p: P = make(); p.x + p.y }`
	res, err := compile.Compile(src, compile.Options{}, nil)
	require.NoError(t, err)
	require.Contains(t, res.IR, "%struct.P = type { i32, i32 }")
	require.Contains(t, res.IR, "define i32 @P.size()")
	require.Contains(t, res.IR, "define void @make(ptr")
	require.Contains(t, res.IR, "define i32 @main()")
}

func TestCompileLoopBreakValue(t *testing.T) {
	src := `fn main() -> i32 { let r: i32 = loop { break 42; }; r }`
	res, err := compile.Compile(src, compile.Options{}, nil)
	require.NoError(t, err)
	require.Contains(t, res.IR, "phi i32")
	// exactly one incoming on the loop's merge PHI
	idx := strings.Index(res.IR, "phi i32")
	line := res.IR[idx:]
	end := strings.IndexByte(line, '\n')
	if end > 0 {
		line = line[:end]
	}
	require.Equal(t, 1, strings.Count(line, "["))
}

func TestCompileSyntaxError(t *testing.T) {
	_, err := compile.Compile(`fn main() -> i32 { let x = ; }`, compile.Options{}, nil)
	require.Error(t, err)
}

func TestCompileSemanticError(t *testing.T) {
	_, err := compile.Compile(`fn main() -> i32 { undefined_name }`, compile.Options{}, nil)
	require.Error(t, err)
}

func TestCompileRuntimeCalls(t *testing.T) {
	src := `fn main() -> i32 { printInt(getInt()); printlnInt(7); 0 }`
	res, err := compile.Compile(src, compile.Options{}, nil)
	require.NoError(t, err)
	require.Contains(t, res.IR, "declare void @printInt(i32)")
	require.Contains(t, res.IR, "declare i32 @getInt()")
	require.Contains(t, res.IR, "call i32 @getInt()")
	require.Contains(t, res.IR, "call void @printlnInt(i32 7)")
}

func TestCompileInvalidCharCast(t *testing.T) {
	_, err := compile.Compile(`fn main() -> i32 { 'a' as i32 }`, compile.Options{}, nil)
	require.Error(t, err)
}
