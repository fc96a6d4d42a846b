package sema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rustlite/rlc/internal/ast"
	"github.com/rustlite/rlc/internal/types"
)

func i32Type() ast.TypeNode { return &ast.PrimitiveTypeNode{Name: "i32"} }

func intLit(v uint64) *ast.IntLitExpr { return &ast.IntLitExpr{Value: v} }

func block(stmts []ast.Stmt, tail ast.Expr) *ast.BlockExpr {
	return &ast.BlockExpr{Stmts: stmts, Tail: tail}
}

func TestAnalyzeSimpleFunctionConfirmsLiteralType(t *testing.T) {
	// fn add(a: i32, b: i32) -> i32 { a + b }
	fn := &ast.FnDecl{
		Name: "add",
		Params: []ast.Param{
			{Name: "a", Type: i32Type()},
			{Name: "b", Type: i32Type()},
		},
		ReturnType: i32Type(),
		Body: block(nil, &ast.BinaryExpr{
			Op:    ast.OpAdd,
			Left:  &ast.PathExpr{Segments: []ast.PathSegment{{Name: "a"}}},
			Right: &ast.PathExpr{Segments: []ast.PathSegment{{Name: "b"}}},
		}),
	}
	mod := &ast.Module{Decls: []ast.Decl{fn}}

	_, err := Analyze(mod)
	require.NoError(t, err)
	require.True(t, types.I32Type.Equals(fn.Body.Tail.Meta().ResolvedType))
}

func TestAnalyzeRedeclarationFails(t *testing.T) {
	mod := &ast.Module{Decls: []ast.Decl{
		&ast.StructDecl{Name: "Point"},
		&ast.StructDecl{Name: "Point"},
	}}
	_, err := Analyze(mod)
	require.Error(t, err)
}

func TestAnalyzeUnresolvedTypeFails(t *testing.T) {
	fn := &ast.FnDecl{
		Name: "f",
		Params: []ast.Param{
			{Name: "x", Type: &ast.NamedTypeNode{Name: "Missing"}},
		},
		Body: block(nil, nil),
	}
	mod := &ast.Module{Decls: []ast.Decl{fn}}
	_, err := Analyze(mod)
	require.Error(t, err)
}

func TestAnalyzeLetBindingAndUse(t *testing.T) {
	// fn f() -> i32 { let x = 5; x }
	letStmt := &ast.LetStmt{
		Pattern: ast.Pattern{Name: "x"},
		Value:   intLit(5),
	}
	fn := &ast.FnDecl{
		Name:       "f",
		ReturnType: i32Type(),
		Body: block([]ast.Stmt{letStmt}, &ast.PathExpr{
			Segments: []ast.PathSegment{{Name: "x"}},
		}),
	}
	mod := &ast.Module{Decls: []ast.Decl{fn}}

	_, err := Analyze(mod)
	require.NoError(t, err)
	require.True(t, types.I32Type.Equals(fn.Body.Tail.Meta().ResolvedType))
}

func TestAnalyzeStructFieldAccess(t *testing.T) {
	st := &ast.StructDecl{Name: "Point", Fields: []ast.StructField{
		{Name: "x", Type: i32Type()},
		{Name: "y", Type: i32Type()},
	}}
	fn := &ast.FnDecl{
		Name:       "f",
		ReturnType: i32Type(),
		Body: block(nil, &ast.FieldExpr{
			Base: &ast.StructLitExpr{
				TypeName: "Point",
				Fields: []ast.StructLitField{
					{Name: "x", Value: intLit(1)},
					{Name: "y", Value: intLit(2)},
				},
			},
			Field: "x",
		}),
	}
	mod := &ast.Module{Decls: []ast.Decl{st, fn}}

	_, err := Analyze(mod)
	require.NoError(t, err)
	require.True(t, types.I32Type.Equals(fn.Body.Tail.Meta().ResolvedType))
}

func TestAnalyzeBreakOutsideLoopFails(t *testing.T) {
	fn := &ast.FnDecl{
		Name: "f",
		Body: block(nil, &ast.BreakExpr{}),
	}
	mod := &ast.Module{Decls: []ast.Decl{fn}}
	_, err := Analyze(mod)
	require.Error(t, err)
}

func TestAnalyzeAssignToImmutableFails(t *testing.T) {
	// fn f() { let x = 1; x = 2; }
	letStmt := &ast.LetStmt{Pattern: ast.Pattern{Name: "x"}, Value: intLit(1)}
	assign := &ast.ExprStmt{Value: &ast.AssignExpr{
		Left:  &ast.PathExpr{Segments: []ast.PathSegment{{Name: "x"}}},
		Right: intLit(2),
	}, HasSemi: true}
	fn := &ast.FnDecl{Name: "f", Body: block([]ast.Stmt{letStmt, assign}, nil)}
	mod := &ast.Module{Decls: []ast.Decl{fn}}
	_, err := Analyze(mod)
	require.Error(t, err)
}

func TestAnalyzeAssignToMutableSucceeds(t *testing.T) {
	letStmt := &ast.LetStmt{Pattern: ast.Pattern{Name: "x", IsMut: true}, Type: i32Type(), Value: intLit(1)}
	assign := &ast.ExprStmt{Value: &ast.AssignExpr{
		Left:  &ast.PathExpr{Segments: []ast.PathSegment{{Name: "x"}}},
		Right: intLit(2),
	}, HasSemi: true}
	fn := &ast.FnDecl{Name: "f", Body: block([]ast.Stmt{letStmt, assign}, nil)}
	mod := &ast.Module{Decls: []ast.Decl{fn}}
	_, err := Analyze(mod)
	require.NoError(t, err)
}

func TestAnalyzeRuntimeFunctionsResolve(t *testing.T) {
	// fn main() { printInt(1); }
	call := &ast.ExprStmt{Value: &ast.CallExpr{
		Callee: &ast.PathExpr{Segments: []ast.PathSegment{{Name: "printInt"}}},
		Args:   []ast.Expr{intLit(1)},
	}, HasSemi: true}
	fn := &ast.FnDecl{Name: "main", Body: block([]ast.Stmt{call}, nil)}
	mod := &ast.Module{Decls: []ast.Decl{fn}}
	_, err := Analyze(mod)
	require.NoError(t, err)
}

func TestAnalyzeRuntimeCallArityChecked(t *testing.T) {
	call := &ast.ExprStmt{Value: &ast.CallExpr{
		Callee: &ast.PathExpr{Segments: []ast.PathSegment{{Name: "printInt"}}},
		Args:   []ast.Expr{intLit(1), intLit(2)},
	}, HasSemi: true}
	fn := &ast.FnDecl{Name: "main", Body: block([]ast.Stmt{call}, nil)}
	mod := &ast.Module{Decls: []ast.Decl{fn}}
	_, err := Analyze(mod)
	require.Error(t, err)
}

func TestAnalyzeInvalidCastToNonInteger(t *testing.T) {
	// fn f() -> bool { 1 as bool }
	fn := &ast.FnDecl{
		Name:       "f",
		ReturnType: &ast.PrimitiveTypeNode{Name: "bool"},
		Body: block(nil, &ast.CastExpr{
			Value: intLit(1),
			Type:  &ast.PrimitiveTypeNode{Name: "bool"},
		}),
	}
	mod := &ast.Module{Decls: []ast.Decl{fn}}
	_, err := Analyze(mod)
	require.Error(t, err)
}

func TestAnalyzeLoopBreakLiteralConfirmedFromReturnType(t *testing.T) {
	// fn f() -> i32 { loop { break 42; } }
	brk := &ast.ExprStmt{Value: &ast.BreakExpr{Value: intLit(42)}, HasSemi: true}
	loop := &ast.LoopExpr{Body: block([]ast.Stmt{brk}, nil)}
	fn := &ast.FnDecl{Name: "f", ReturnType: i32Type(), Body: block(nil, loop)}
	mod := &ast.Module{Decls: []ast.Decl{fn}}

	_, err := Analyze(mod)
	require.NoError(t, err)
	breakValue := brk.Value.(*ast.BreakExpr).Value
	require.True(t, types.I32Type.Equals(breakValue.Meta().ResolvedType))
	require.True(t, types.I32Type.Equals(loop.ResolvedType))
}

func mutMethodFixture(receiverIsMut bool) *ast.Module {
	st := &ast.StructDecl{Name: "Counter", Fields: []ast.StructField{{Name: "v", Type: i32Type()}}}
	impl := &ast.ImplDecl{TypeName: "Counter", Functions: []*ast.FnDecl{{
		Name: "bump",
		Self: &ast.SelfParam{IsRef: true, IsMut: true},
		Body: block(nil, nil),
	}}}
	letC := &ast.LetStmt{
		Pattern: ast.Pattern{Name: "c", IsMut: receiverIsMut},
		Value: &ast.StructLitExpr{TypeName: "Counter", Fields: []ast.StructLitField{
			{Name: "v", Value: intLit(1)},
		}},
	}
	call := &ast.ExprStmt{Value: &ast.CallExpr{
		Callee: &ast.FieldExpr{
			Base:  &ast.PathExpr{Segments: []ast.PathSegment{{Name: "c"}}},
			Field: "bump",
		},
		IsMethodCall: true,
	}, HasSemi: true}
	fn := &ast.FnDecl{Name: "f", Body: block([]ast.Stmt{letC, call}, nil)}
	return &ast.Module{Decls: []ast.Decl{st, impl, fn}}
}

func TestAnalyzeMutMethodOnImmutableReceiverFails(t *testing.T) {
	_, err := Analyze(mutMethodFixture(false))
	require.Error(t, err)
}

func TestAnalyzeMutMethodOnMutableReceiverSucceeds(t *testing.T) {
	_, err := Analyze(mutMethodFixture(true))
	require.NoError(t, err)
}
