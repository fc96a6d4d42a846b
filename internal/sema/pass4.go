package sema

import (
	"github.com/rustlite/rlc/internal/ast"
	"github.com/rustlite/rlc/internal/diagnostic"
)

// pass4PlaceMutability is pass 4: a second walk, now that every
// expression carries a ResolvedType/Category from pass 3, that enforces the
// place-legality rules pass 3 deliberately deferred — assignment and
// compound-assignment targets must be MutPlace, `&mut e` already checked its
// operand in pass 3 (kept there since it also decides the resulting type),
// so this pass is left with the remaining three: plain assignment,
// compound assignment, and the receiver of a `&mut self` method call.
func (a *Analyzer) pass4PlaceMutability() error {
	for _, d := range a.mod.Decls {
		switch decl := d.(type) {
		case *ast.ConstDecl:
			if err := a.pass4Expr(decl.Value); err != nil {
				return err
			}
		case *ast.FnDecl:
			if err := a.pass4Fn(decl); err != nil {
				return err
			}
		case *ast.ImplDecl:
			for _, c := range decl.Consts {
				if err := a.pass4Expr(c.Value); err != nil {
					return err
				}
			}
			for _, fn := range decl.Functions {
				if err := a.pass4Fn(fn); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (a *Analyzer) pass4Fn(decl *ast.FnDecl) error {
	if decl.Body == nil {
		return nil
	}
	return a.pass4Expr(decl.Body)
}

// pass4Expr walks e checking any assignment target it contains, without
// re-deriving types (pass 3 already recorded them on every node).
func (a *Analyzer) pass4Expr(e ast.Expr) error {
	if e == nil {
		return nil
	}
	switch ex := e.(type) {
	case *ast.AssignExpr:
		if err := a.requireMutPlace(ex.Left); err != nil {
			return err
		}
		return a.pass4Expr(ex.Right)
	case *ast.CompoundAssignExpr:
		if err := a.requireMutPlace(ex.Left); err != nil {
			return err
		}
		return a.pass4Expr(ex.Right)
	case *ast.UnaryExpr:
		return a.pass4Expr(ex.Operand)
	case *ast.BinaryExpr:
		if err := a.pass4Expr(ex.Left); err != nil {
			return err
		}
		return a.pass4Expr(ex.Right)
	case *ast.LogicalExpr:
		if err := a.pass4Expr(ex.Left); err != nil {
			return err
		}
		return a.pass4Expr(ex.Right)
	case *ast.CastExpr:
		return a.pass4Expr(ex.Value)
	case *ast.FieldExpr:
		return a.pass4Expr(ex.Base)
	case *ast.IndexExpr:
		if err := a.pass4Expr(ex.Base); err != nil {
			return err
		}
		return a.pass4Expr(ex.Index)
	case *ast.CallExpr:
		if !ex.IsMethodCall {
			if err := a.pass4Expr(ex.Callee); err != nil {
				return err
			}
		} else if fe, ok := ex.Callee.(*ast.FieldExpr); ok {
			if err := a.pass4Expr(fe.Base); err != nil {
				return err
			}
			if err := a.checkReceiverMutability(fe); err != nil {
				return err
			}
		}
		for _, arg := range ex.Args {
			if err := a.pass4Expr(arg); err != nil {
				return err
			}
		}
		return nil
	case *ast.StructLitExpr:
		for _, f := range ex.Fields {
			if err := a.pass4Expr(f.Value); err != nil {
				return err
			}
		}
		return nil
	case *ast.ArrayLitExpr:
		for _, el := range ex.Elements {
			if err := a.pass4Expr(el); err != nil {
				return err
			}
		}
		return nil
	case *ast.RepeatArrayLitExpr:
		return a.pass4Expr(ex.Value)
	case *ast.BlockExpr:
		for _, stmt := range ex.Stmts {
			if err := a.pass4Stmt(stmt); err != nil {
				return err
			}
		}
		return a.pass4Expr(ex.Tail)
	case *ast.IfExpr:
		if err := a.pass4Expr(ex.Cond); err != nil {
			return err
		}
		if err := a.pass4Expr(ex.Then); err != nil {
			return err
		}
		return a.pass4Expr(ex.Else)
	case *ast.LoopExpr:
		return a.pass4Expr(ex.Body)
	case *ast.WhileExpr:
		if err := a.pass4Expr(ex.Cond); err != nil {
			return err
		}
		return a.pass4Expr(ex.Body)
	case *ast.BreakExpr:
		return a.pass4Expr(ex.Value)
	case *ast.ReturnExpr:
		return a.pass4Expr(ex.Value)
	}
	return nil
}

func (a *Analyzer) pass4Stmt(s ast.Stmt) error {
	switch stmt := s.(type) {
	case *ast.LetStmt:
		return a.pass4Expr(stmt.Value)
	case *ast.ExprStmt:
		return a.pass4Expr(stmt.Value)
	}
	return nil
}

// checkReceiverMutability enforces that a `&mut self` method is only invoked
// on a receiver the caller could themselves mutate — the self-parameter's
// reference kind half of this pass's checks. The receiver's category was
// computed by pass 3 with the same auto-deref rule field access uses.
func (a *Analyzer) checkReceiverMutability(fe *ast.FieldExpr) error {
	sym, ok := namedStructSymbol(fe.Base.Meta().ResolvedType)
	if !ok {
		return nil
	}
	m := sym.Methods[fe.Field]
	if m == nil || m.SelfParam == nil || !m.SelfParam.IsMut {
		return nil
	}
	if fe.Meta().Category != ast.MutPlaceCategory {
		return diagnostic.New(diagnostic.CodeNotMutable, posOf(fe.Loc),
			"method %q requires a mutable receiver", fe.Field)
	}
	return nil
}

func (a *Analyzer) requireMutPlace(target ast.Expr) error {
	if err := a.pass4Expr(target); err != nil {
		return err
	}
	switch target.Meta().Category {
	case ast.MutPlaceCategory:
		return nil
	case ast.PlaceCategory:
		return diagnostic.New(diagnostic.CodeNotMutable, posOf(target.NodeLoc()), "cannot assign to an immutable place")
	default:
		return diagnostic.New(diagnostic.CodeNotAPlace, posOf(target.NodeLoc()), "left-hand side of assignment is not a place")
	}
}
