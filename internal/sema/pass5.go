package sema

import "github.com/rustlite/rlc/internal/ast"

// pass5PathFinalization is pass 5: an idempotent final walk that binds
// every PathExpr.Symbol using the same two-segment resolution rule pass 3
// already exercised to type paths, now writing the result back onto the
// node so lowering never has to re-resolve a name against the scope tree.
func (a *Analyzer) pass5PathFinalization() error {
	for _, d := range a.mod.Decls {
		switch decl := d.(type) {
		case *ast.ConstDecl:
			if err := a.pass5Expr(decl.Value); err != nil {
				return err
			}
		case *ast.FnDecl:
			if err := a.pass5Fn(decl); err != nil {
				return err
			}
		case *ast.ImplDecl:
			for _, c := range decl.Consts {
				if err := a.pass5Expr(c.Value); err != nil {
					return err
				}
			}
			for _, fn := range decl.Functions {
				if err := a.pass5Fn(fn); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (a *Analyzer) pass5Fn(decl *ast.FnDecl) error {
	if decl.Body == nil {
		return nil
	}
	return a.pass5Expr(decl.Body)
}

func (a *Analyzer) pass5Expr(e ast.Expr) error {
	if e == nil {
		return nil
	}
	switch ex := e.(type) {
	case *ast.PathExpr:
		sym, err := a.resolvePathSymbol(ex)
		if err != nil {
			return err
		}
		ex.Symbol = sym
		return nil
	case *ast.UnaryExpr:
		return a.pass5Expr(ex.Operand)
	case *ast.BinaryExpr:
		if err := a.pass5Expr(ex.Left); err != nil {
			return err
		}
		return a.pass5Expr(ex.Right)
	case *ast.LogicalExpr:
		if err := a.pass5Expr(ex.Left); err != nil {
			return err
		}
		return a.pass5Expr(ex.Right)
	case *ast.CastExpr:
		return a.pass5Expr(ex.Value)
	case *ast.AssignExpr:
		if err := a.pass5Expr(ex.Left); err != nil {
			return err
		}
		return a.pass5Expr(ex.Right)
	case *ast.CompoundAssignExpr:
		if err := a.pass5Expr(ex.Left); err != nil {
			return err
		}
		return a.pass5Expr(ex.Right)
	case *ast.FieldExpr:
		return a.pass5Expr(ex.Base)
	case *ast.IndexExpr:
		if err := a.pass5Expr(ex.Base); err != nil {
			return err
		}
		return a.pass5Expr(ex.Index)
	case *ast.CallExpr:
		if !ex.IsMethodCall {
			if err := a.pass5Expr(ex.Callee); err != nil {
				return err
			}
		} else if fe, ok := ex.Callee.(*ast.FieldExpr); ok {
			if err := a.pass5Expr(fe.Base); err != nil {
				return err
			}
		}
		for _, arg := range ex.Args {
			if err := a.pass5Expr(arg); err != nil {
				return err
			}
		}
		return nil
	case *ast.StructLitExpr:
		for _, f := range ex.Fields {
			if err := a.pass5Expr(f.Value); err != nil {
				return err
			}
		}
		return nil
	case *ast.ArrayLitExpr:
		for _, el := range ex.Elements {
			if err := a.pass5Expr(el); err != nil {
				return err
			}
		}
		return nil
	case *ast.RepeatArrayLitExpr:
		if err := a.pass5Expr(ex.Value); err != nil {
			return err
		}
		return a.pass5Expr(ex.Length)
	case *ast.BlockExpr:
		for _, stmt := range ex.Stmts {
			if err := a.pass5Stmt(stmt); err != nil {
				return err
			}
		}
		return a.pass5Expr(ex.Tail)
	case *ast.IfExpr:
		if err := a.pass5Expr(ex.Cond); err != nil {
			return err
		}
		if err := a.pass5Expr(ex.Then); err != nil {
			return err
		}
		return a.pass5Expr(ex.Else)
	case *ast.LoopExpr:
		return a.pass5Expr(ex.Body)
	case *ast.WhileExpr:
		if err := a.pass5Expr(ex.Cond); err != nil {
			return err
		}
		return a.pass5Expr(ex.Body)
	case *ast.BreakExpr:
		return a.pass5Expr(ex.Value)
	case *ast.ReturnExpr:
		return a.pass5Expr(ex.Value)
	}
	return nil
}

func (a *Analyzer) pass5Stmt(s ast.Stmt) error {
	switch stmt := s.(type) {
	case *ast.LetStmt:
		return a.pass5Expr(stmt.Value)
	case *ast.ExprStmt:
		return a.pass5Expr(stmt.Value)
	}
	return nil
}
