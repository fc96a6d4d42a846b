package sema

import (
	"github.com/rustlite/rlc/internal/ast"
	"github.com/rustlite/rlc/internal/diagnostic"
	"github.com/rustlite/rlc/internal/scope"
	"github.com/rustlite/rlc/internal/types"
)

// confirmIntegerLiterals is the analyzer's sixth step: a top-down push of concrete
// integer types onto the placeholder types left on literal leaves by
// unsuffixed integer literals, now that pass 3 has resolved every other
// expression's type. The rules: a binary arithmetic node propagates its own
// (by now concrete) type to both operands; a shift propagates only to the
// left operand; a cast propagates its destination type to the value being
// cast; a comparison unifies both sides first and propagates the unified
// type to both; a call propagates each formal parameter's type to the
// matching argument; a struct/array literal propagates each field/element's
// declared type to its value.
//
// A `let` binding without a type annotation takes its declared type from
// whatever pass 3 inferred for the initializer, which may itself still be a
// placeholder the first time the declaring statement is visited — confirmed
// only once a later use in the same body supplies a concrete type (e.g. a
// call argument). Rather than a full cross-statement constraint solver, this
// runs the top-down push twice per function/const body: the first pass is
// best-effort and leaves still-ambiguous leaves untouched instead of
// failing, the second treats anything still unresolved as a hard error.
// This resolves the common declare-then-use-with-constraint shape without
// the complexity of a real solver.
func (a *Analyzer) confirmIntegerLiterals() error {
	for _, d := range a.mod.Decls {
		switch decl := d.(type) {
		case *ast.ConstDecl:
			sym, _ := a.Root.LookupLocal(decl.Name)
			if err := a.confirmBody(decl.Value, constExpected(sym)); err != nil {
				return err
			}
		case *ast.FnDecl:
			if decl.Body != nil {
				if err := a.confirmBody(decl.Body, decl.ResolvedReturnType); err != nil {
					return err
				}
			}
		case *ast.ImplDecl:
			target, _ := a.Root.LookupLocal(decl.TypeName)
			for _, c := range decl.Consts {
				var sym *scope.Symbol
				if target != nil {
					sym = target.AssocConsts[c.Name]
				}
				if err := a.confirmBody(c.Value, constExpected(sym)); err != nil {
					return err
				}
			}
			for _, fn := range decl.Functions {
				if fn.Body == nil {
					continue
				}
				if err := a.confirmBody(fn.Body, fn.ResolvedReturnType); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func constExpected(sym *scope.Symbol) types.Type {
	if sym == nil {
		return nil
	}
	return sym.ConstType
}

func (a *Analyzer) confirmBody(e ast.Expr, expected types.Type) error {
	if _, err := a.confirmExpr(e, expected, false); err != nil {
		return err
	}
	_, err := a.confirmExpr(e, expected, true)
	return err
}

// strengthen merges expected into current, replacing any placeholder it
// finds (recursively through Array/Reference) with the matching concrete
// type from expected, honoring a signed/unsigned placeholder's constraint.
func strengthen(current, expected types.Type) types.Type {
	if expected == nil || current == nil {
		return current
	}
	switch c := current.(type) {
	case *types.Primitive:
		if !c.Kind.IsPlaceholder() {
			return current
		}
		e, ok := expected.(*types.Primitive)
		if !ok || !e.Kind.IsInteger() {
			return current
		}
		if c.Kind == types.SignedIntPlaceholder && !e.Kind.IsSigned() {
			return current
		}
		if c.Kind == types.UnsignedIntPlaceholder && e.Kind.IsSigned() {
			return current
		}
		return expected
	case *types.Array:
		ea, ok := expected.(*types.Array)
		if !ok {
			return current
		}
		return &types.Array{Element: strengthen(c.Element, ea.Element), Length: c.Length}
	case *types.Reference:
		er, ok := expected.(*types.Reference)
		if !ok {
			return current
		}
		return &types.Reference{Inner: strengthen(c.Inner, er.Inner), IsMut: c.IsMut}
	default:
		return current
	}
}

func isPlaceholderType(t types.Type) bool {
	p, ok := t.(*types.Primitive)
	return ok && p.Kind.IsPlaceholder()
}

// confirmExpr pushes expected down into e, returning e's (possibly
// now-confirmed) type. On the final pass, a literal leaf left with a
// placeholder type is a hard AmbiguousIntegerLiteral error.
func (a *Analyzer) confirmExpr(e ast.Expr, expected types.Type, final bool) (types.Type, error) {
	if e == nil {
		return nil, nil
	}
	e.Meta().ResolvedType = strengthen(e.Meta().ResolvedType, expected)
	self := e.Meta().ResolvedType

	switch ex := e.(type) {
	case *ast.IntLitExpr:
		if final && isPlaceholderType(self) {
			return nil, diagnostic.New(diagnostic.CodeAmbiguousIntLiteral, posOf(ex.Loc), "cannot infer a concrete type for this integer literal")
		}
		return self, nil

	case *ast.BoolLitExpr, *ast.CharLitExpr:
		return self, nil

	case *ast.PathExpr:
		sym, _ := ex.Symbol.(*scope.Symbol)
		if sym == nil {
			return self, nil
		}
		switch sym.Kind {
		case scope.VariableSym:
			sym.VarType = strengthen(sym.VarType, expected)
			self = sym.VarType
		case scope.ConstantSym:
			sym.ConstType = strengthen(sym.ConstType, expected)
			self = sym.ConstType
		}
		if final && isPlaceholderType(self) {
			return nil, diagnostic.New(diagnostic.CodeAmbiguousIntLiteral, posOf(ex.Loc), "cannot infer a concrete type for %q", sym.Name)
		}
		ex.ResolvedType = self
		return self, nil

	case *ast.UnaryExpr:
		childExpected := expected
		notOnBool := ex.Op == ast.OpNot && !types.IsInteger(ex.Operand.Meta().ResolvedType)
		if notOnBool {
			childExpected = nil
		}
		if _, err := a.confirmExpr(ex.Operand, childExpected, final); err != nil {
			return nil, err
		}
		if ex.Op == ast.OpNeg || (ex.Op == ast.OpNot && !notOnBool) {
			self = strengthen(self, ex.Operand.Meta().ResolvedType)
			ex.ResolvedType = self
		}
		return self, nil

	case *ast.BinaryExpr:
		switch ex.Op {
		case ast.OpShl, ast.OpShr:
			if _, err := a.confirmExpr(ex.Left, self, final); err != nil {
				return nil, err
			}
			if _, err := a.confirmExpr(ex.Right, nil, final); err != nil {
				return nil, err
			}
			self = ex.Left.Meta().ResolvedType
			ex.ResolvedType = self
		case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
			leftT, err := a.confirmExpr(ex.Left, nil, false)
			if err != nil {
				return nil, err
			}
			rightT, err := a.confirmExpr(ex.Right, nil, false)
			if err != nil {
				return nil, err
			}
			unified := leftT
			if !isPlaceholderType(leftT) {
				unified = leftT
			} else if !isPlaceholderType(rightT) {
				unified = rightT
			}
			if _, err := a.confirmExpr(ex.Left, unified, final); err != nil {
				return nil, err
			}
			if _, err := a.confirmExpr(ex.Right, unified, final); err != nil {
				return nil, err
			}
		default:
			if _, err := a.confirmExpr(ex.Left, self, final); err != nil {
				return nil, err
			}
			if _, err := a.confirmExpr(ex.Right, self, final); err != nil {
				return nil, err
			}
			self = strengthen(self, ex.Left.Meta().ResolvedType)
			self = strengthen(self, ex.Right.Meta().ResolvedType)
			ex.ResolvedType = self
		}
		return self, nil

	case *ast.LogicalExpr:
		if _, err := a.confirmExpr(ex.Left, nil, final); err != nil {
			return nil, err
		}
		if _, err := a.confirmExpr(ex.Right, nil, final); err != nil {
			return nil, err
		}
		return self, nil

	case *ast.CastExpr:
		if _, err := a.confirmExpr(ex.Value, ex.ResolvedCast, final); err != nil {
			return nil, err
		}
		return self, nil

	case *ast.AssignExpr:
		leftT, err := a.confirmExpr(ex.Left, nil, final)
		if err != nil {
			return nil, err
		}
		if _, err := a.confirmExpr(ex.Right, leftT, final); err != nil {
			return nil, err
		}
		return self, nil

	case *ast.CompoundAssignExpr:
		leftT, err := a.confirmExpr(ex.Left, nil, final)
		if err != nil {
			return nil, err
		}
		if _, err := a.confirmExpr(ex.Right, leftT, final); err != nil {
			return nil, err
		}
		return self, nil

	case *ast.FieldExpr:
		if _, err := a.confirmExpr(ex.Base, nil, final); err != nil {
			return nil, err
		}
		return self, nil

	case *ast.IndexExpr:
		if _, err := a.confirmExpr(ex.Base, nil, final); err != nil {
			return nil, err
		}
		if _, err := a.confirmExpr(ex.Index, types.UsizeType, final); err != nil {
			return nil, err
		}
		return self, nil

	case *ast.CallExpr:
		paramTypes, baseErr := a.callParamTypes(ex)
		if baseErr == nil {
			if ex.IsMethodCall {
				if fe, ok := ex.Callee.(*ast.FieldExpr); ok {
					if _, err := a.confirmExpr(fe.Base, nil, final); err != nil {
						return nil, err
					}
				}
			} else {
				if _, err := a.confirmExpr(ex.Callee, nil, final); err != nil {
					return nil, err
				}
			}
			for i, arg := range ex.Args {
				var want types.Type
				if i < len(paramTypes) {
					want = paramTypes[i]
				}
				if _, err := a.confirmExpr(arg, want, final); err != nil {
					return nil, err
				}
			}
		} else {
			for _, arg := range ex.Args {
				if _, err := a.confirmExpr(arg, nil, final); err != nil {
					return nil, err
				}
			}
		}
		return self, nil

	case *ast.StructLitExpr:
		sym, _ := a.Root.LookupLocal(ex.TypeName)
		for i := range ex.Fields {
			var want types.Type
			if sym != nil {
				want = sym.FieldTypes[ex.Fields[i].Name]
			}
			if _, err := a.confirmExpr(ex.Fields[i].Value, want, final); err != nil {
				return nil, err
			}
		}
		return self, nil

	case *ast.ArrayLitExpr:
		var elemExpected types.Type
		if arr, ok := self.(*types.Array); ok {
			elemExpected = arr.Element
		}
		for _, el := range ex.Elements {
			if _, err := a.confirmExpr(el, elemExpected, final); err != nil {
				return nil, err
			}
		}
		return self, nil

	case *ast.RepeatArrayLitExpr:
		var elemExpected types.Type
		if arr, ok := self.(*types.Array); ok {
			elemExpected = arr.Element
		}
		if _, err := a.confirmExpr(ex.Value, elemExpected, final); err != nil {
			return nil, err
		}
		if _, err := a.confirmExpr(ex.Length, types.UsizeType, final); err != nil {
			return nil, err
		}
		return self, nil

	case *ast.BlockExpr:
		for _, stmt := range ex.Stmts {
			if err := a.confirmStmt(stmt, final); err != nil {
				return nil, err
			}
		}
		if ex.Tail != nil {
			t, err := a.confirmExpr(ex.Tail, expected, final)
			if err != nil {
				return nil, err
			}
			ex.ResolvedType = t
			return t, nil
		}
		return self, nil

	case *ast.IfExpr:
		if _, err := a.confirmExpr(ex.Cond, types.BoolType, final); err != nil {
			return nil, err
		}
		if _, err := a.confirmExpr(ex.Then, self, final); err != nil {
			return nil, err
		}
		if ex.Else != nil {
			if _, err := a.confirmExpr(ex.Else, self, final); err != nil {
				return nil, err
			}
		}
		return self, nil

	case *ast.LoopExpr:
		// The loop's own confirmed type is what every `break value` inside
		// must converge to; record it on the loop scope so the BreakExpr
		// case below can push it down without re-finding this node.
		if ls, ok := ex.Scope.(*scope.Scope); ok && ls.BreakType != nil {
			ls.BreakType = strengthen(ls.BreakType, self)
		}
		if _, err := a.confirmExpr(ex.Body, nil, final); err != nil {
			return nil, err
		}
		return self, nil

	case *ast.WhileExpr:
		if _, err := a.confirmExpr(ex.Cond, types.BoolType, final); err != nil {
			return nil, err
		}
		if _, err := a.confirmExpr(ex.Body, nil, final); err != nil {
			return nil, err
		}
		return self, nil

	case *ast.BreakExpr:
		want := expected
		if ls := enclosingLoopScope(ex.Scope); ls != nil && ls.BreakType != nil {
			want = ls.BreakType
		}
		if _, err := a.confirmExpr(ex.Value, want, final); err != nil {
			return nil, err
		}
		return self, nil

	case *ast.ReturnExpr:
		s, _ := ex.Scope.(*scope.Scope)
		var want types.Type
		if fs := s.EnclosingFunction(); fs != nil {
			want = fs.ReturnType
		}
		if _, err := a.confirmExpr(ex.Value, want, final); err != nil {
			return nil, err
		}
		return self, nil

	case *ast.ContinueExpr:
		return self, nil
	}
	return self, nil
}

func (a *Analyzer) confirmStmt(s ast.Stmt, final bool) error {
	switch stmt := s.(type) {
	case *ast.LetStmt:
		// An unannotated let's declared type may still be a placeholder on
		// the first visit; a later use in the same body strengthens the
		// binding symbol, and the second visit picks that up from the scope.
		expected := stmt.ResolvedType
		var sym *scope.Symbol
		if sc, ok := stmt.Value.Meta().Scope.(*scope.Scope); ok {
			if found, ok := sc.Lookup(stmt.Pattern.Name); ok && found.Kind == scope.VariableSym {
				sym = found
				expected = strengthen(expected, sym.VarType)
			}
		}
		t, err := a.confirmExpr(stmt.Value, expected, final)
		if err != nil {
			return err
		}
		stmt.ResolvedType = strengthen(expected, t)
		if sym != nil {
			sym.VarType = strengthen(sym.VarType, stmt.ResolvedType)
		}
		return nil
	case *ast.ExprStmt:
		_, err := a.confirmExpr(stmt.Value, nil, final)
		return err
	}
	return nil
}

// callParamTypes recovers the formal parameter types of a call's target,
// using the symbol pass 5 already bound (for a plain function call) or a
// fresh struct-method lookup off the receiver's already-confirmed type (for
// method-call sugar).
func (a *Analyzer) callParamTypes(ex *ast.CallExpr) ([]types.Type, error) {
	if ex.IsMethodCall {
		fe, ok := ex.Callee.(*ast.FieldExpr)
		if !ok {
			return nil, diagnostic.New(diagnostic.CodeUnresolvedName, posOf(ex.Loc), "malformed method call")
		}
		sym, ok := namedStructSymbol(fe.Base.Meta().ResolvedType)
		if !ok {
			return nil, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Loc), "not a struct")
		}
		m, ok := sym.Methods[fe.Field]
		if !ok {
			return nil, diagnostic.New(diagnostic.CodeUnresolvedName, posOf(ex.Loc), "no method %q", fe.Field)
		}
		return m.ParamTypes, nil
	}
	pe, ok := ex.Callee.(*ast.PathExpr)
	if !ok {
		return nil, diagnostic.New(diagnostic.CodeUnresolvedName, posOf(ex.Loc), "malformed call target")
	}
	sym, ok := pe.Symbol.(*scope.Symbol)
	if !ok || sym == nil {
		return nil, diagnostic.New(diagnostic.CodeUnresolvedName, posOf(ex.Loc), "unresolved call target")
	}
	return sym.ParamTypes, nil
}
