package sema

import (
	"github.com/rustlite/rlc/internal/ast"
	"github.com/rustlite/rlc/internal/builtins"
	"github.com/rustlite/rlc/internal/diagnostic"
	"github.com/rustlite/rlc/internal/scope"
	"github.com/rustlite/rlc/internal/types"
)

// pass1ItemDeclaration is pass 1: one traversal that creates every
// scope the program needs (crate/block/function/loop/impl/trait), declares
// top-level symbol shells, and records a Scope pointer on every Decl and
// Expr node so later passes can re-enter the right place in the tree
// without re-deriving it.
//
// Two sub-passes: first declare every struct/enum/trait/const/fn shell at
// crate scope (so an impl block appearing before its target type, or a
// function calling one declared later in the file, both resolve), then
// walk every declaration's body, attaching impl members to their target
// type's symbol and assigning scopes throughout.
func (a *Analyzer) pass1ItemDeclaration() error {
	a.declareRuntime()
	for _, d := range a.mod.Decls {
		if err := a.declareTopLevelShell(d); err != nil {
			return err
		}
	}
	for _, d := range a.mod.Decls {
		if err := a.pass1WalkDecl(d); err != nil {
			return err
		}
	}
	return nil
}

// declareRuntime seeds the crate scope with the external C runtime's
// callable surface so `printInt(x)` resolves like any
// other function call. The memcpy intrinsic is not nameable from source and
// is deliberately absent; lowering declares it on first aggregate copy.
func (a *Analyzer) declareRuntime() {
	printFn := func(name string) *scope.Symbol {
		s := scope.NewFunctionSymbol(name)
		s.ParamNames = []string{"value"}
		s.ParamTypes = []types.Type{types.I32Type}
		s.ReturnType = types.UnitType
		return s
	}
	a.Root.DeclareLocal(builtins.PrintInt, printFn(builtins.PrintInt))
	a.Root.DeclareLocal(builtins.PrintlnInt, printFn(builtins.PrintlnInt))
	getInt := scope.NewFunctionSymbol(builtins.GetInt)
	getInt.ReturnType = types.I32Type
	a.Root.DeclareLocal(builtins.GetInt, getInt)
}

func (a *Analyzer) declareTopLevelShell(d ast.Decl) error {
	switch decl := d.(type) {
	case *ast.StructDecl:
		return a.declareLocal(a.Root, decl.Name, scope.NewStructSymbol(decl.Name), decl.Loc)
	case *ast.EnumDecl:
		return a.declareLocal(a.Root, decl.Name, scope.NewEnumSymbol(decl.Name), decl.Loc)
	case *ast.TraitDecl:
		return a.declareLocal(a.Root, decl.Name, scope.NewTraitSymbol(decl.Name), decl.Loc)
	case *ast.FnDecl:
		return a.declareLocal(a.Root, decl.Name, scope.NewFunctionSymbol(decl.Name), decl.Loc)
	case *ast.ConstDecl:
		return a.declareLocal(a.Root, decl.Name, &scope.Symbol{Kind: scope.ConstantSym, Name: decl.Name}, decl.Loc)
	case *ast.ImplDecl:
		// impl blocks contribute no top-level name of their own; their
		// members attach to an existing struct/enum symbol in the second
		// sub-pass, once every type name above is guaranteed to exist.
		return nil
	}
	return nil
}

func (a *Analyzer) declareLocal(s *scope.Scope, name string, sym *scope.Symbol, loc ast.Loc) error {
	if err := s.DeclareLocal(name, sym); err != nil {
		return diagnostic.New(diagnostic.CodeRedeclaration, posOf(loc), "%q is already declared", name)
	}
	return nil
}

func (a *Analyzer) pass1WalkDecl(d ast.Decl) error {
	switch decl := d.(type) {
	case *ast.StructDecl:
		decl.Scope = a.cursor.Current
		return nil
	case *ast.EnumDecl:
		decl.Scope = a.cursor.Current
		return nil
	case *ast.TraitDecl:
		return a.pass1WalkTrait(decl)
	case *ast.ConstDecl:
		decl.Scope = a.cursor.Current
		return a.pass1WalkExpr(decl.Value)
	case *ast.FnDecl:
		return a.pass1WalkFn(decl)
	case *ast.ImplDecl:
		return a.pass1WalkImpl(decl)
	}
	return nil
}

func (a *Analyzer) pass1WalkTrait(decl *ast.TraitDecl) error {
	s, restore := a.enter(scope.Trait, func(s *scope.Scope) { decl.Scope = s })
	defer restore()
	sym, _ := a.Root.LookupLocal(decl.Name)
	s.TraitSymbol = sym
	return nil
}

func (a *Analyzer) pass1WalkFn(decl *ast.FnDecl) error {
	sym, _ := a.Root.LookupLocal(decl.Name)
	_, restore := a.enter(scope.Function, func(s *scope.Scope) {
		decl.Scope = s
		decl.FuncScope = s
		s.OwnerFunc = sym
	})
	defer restore()
	if decl.Body != nil {
		return a.pass1WalkBlock(decl.Body)
	}
	return nil
}

func (a *Analyzer) pass1WalkImpl(decl *ast.ImplDecl) error {
	targetSym, ok := a.Root.LookupLocal(decl.TypeName)
	if !ok {
		return diagnostic.New(diagnostic.CodeUnresolvedType, posOf(decl.Loc), "unknown type %q in impl", decl.TypeName)
	}

	s, restore := a.enter(scope.Impl, func(s *scope.Scope) { decl.Scope = s })
	defer restore()
	_ = s

	for _, c := range decl.Consts {
		shell := &scope.Symbol{Kind: scope.ConstantSym, Name: c.Name}
		if targetSym.AssocConsts == nil {
			targetSym.AssocConsts = make(map[string]*scope.Symbol)
		}
		if _, exists := targetSym.AssocConsts[c.Name]; exists {
			return diagnostic.New(diagnostic.CodeRedeclaration, posOf(c.Loc), "%q is already declared", c.Name)
		}
		targetSym.AssocConsts[c.Name] = shell
		c.Scope = a.cursor.Current
		if err := a.pass1WalkExpr(c.Value); err != nil {
			return err
		}
	}

	for _, fn := range decl.Functions {
		shell := scope.NewFunctionSymbol(fn.Name)
		shell.IsMethod = fn.Self != nil
		shell.IsAssociated = fn.Self == nil
		if fn.Self != nil {
			if targetSym.Methods == nil {
				targetSym.Methods = make(map[string]*scope.Symbol)
			}
			if _, exists := targetSym.Methods[fn.Name]; exists {
				return diagnostic.New(diagnostic.CodeRedeclaration, posOf(fn.Loc), "%q is already declared", fn.Name)
			}
			targetSym.Methods[fn.Name] = shell
		} else {
			if targetSym.AssocFuncs == nil {
				targetSym.AssocFuncs = make(map[string]*scope.Symbol)
			}
			if _, exists := targetSym.AssocFuncs[fn.Name]; exists {
				return diagnostic.New(diagnostic.CodeRedeclaration, posOf(fn.Loc), "%q is already declared", fn.Name)
			}
			targetSym.AssocFuncs[fn.Name] = shell
		}

		fnScope, restoreFn := a.enter(scope.Function, func(s *scope.Scope) {
			fn.Scope = s
			fn.FuncScope = s
			s.OwnerFunc = shell
		})
		if fn.Body != nil {
			if err := a.pass1WalkBlock(fn.Body); err != nil {
				restoreFn()
				return err
			}
		}
		restoreFn()
		_ = fnScope
	}
	return nil
}

func (a *Analyzer) pass1WalkBlock(b *ast.BlockExpr) error {
	_, restore := a.enter(scope.Block, func(s *scope.Scope) { b.Scope = s })
	defer restore()

	for _, stmt := range b.Stmts {
		if err := a.pass1WalkStmt(stmt); err != nil {
			return err
		}
	}
	if b.Tail != nil {
		return a.pass1WalkExpr(b.Tail)
	}
	return nil
}

func (a *Analyzer) pass1WalkStmt(s ast.Stmt) error {
	switch stmt := s.(type) {
	case *ast.LetStmt:
		return a.pass1WalkExpr(stmt.Value)
	case *ast.ExprStmt:
		return a.pass1WalkExpr(stmt.Value)
	}
	return nil
}

// pass1WalkExpr records the current cursor scope on e and recurses,
// opening a fresh scope for any construct that introduces one.
func (a *Analyzer) pass1WalkExpr(e ast.Expr) error {
	if e == nil {
		return nil
	}
	e.Meta().Scope = a.cursor.Current

	switch ex := e.(type) {
	case *ast.IntLitExpr, *ast.BoolLitExpr, *ast.CharLitExpr, *ast.PathExpr, *ast.ContinueExpr:
		return nil
	case *ast.UnaryExpr:
		return a.pass1WalkExpr(ex.Operand)
	case *ast.BinaryExpr:
		if err := a.pass1WalkExpr(ex.Left); err != nil {
			return err
		}
		return a.pass1WalkExpr(ex.Right)
	case *ast.LogicalExpr:
		if err := a.pass1WalkExpr(ex.Left); err != nil {
			return err
		}
		return a.pass1WalkExpr(ex.Right)
	case *ast.CastExpr:
		return a.pass1WalkExpr(ex.Value)
	case *ast.AssignExpr:
		if err := a.pass1WalkExpr(ex.Left); err != nil {
			return err
		}
		return a.pass1WalkExpr(ex.Right)
	case *ast.CompoundAssignExpr:
		if err := a.pass1WalkExpr(ex.Left); err != nil {
			return err
		}
		return a.pass1WalkExpr(ex.Right)
	case *ast.FieldExpr:
		return a.pass1WalkExpr(ex.Base)
	case *ast.IndexExpr:
		if err := a.pass1WalkExpr(ex.Base); err != nil {
			return err
		}
		return a.pass1WalkExpr(ex.Index)
	case *ast.CallExpr:
		if err := a.pass1WalkExpr(ex.Callee); err != nil {
			return err
		}
		for _, arg := range ex.Args {
			if err := a.pass1WalkExpr(arg); err != nil {
				return err
			}
		}
		return nil
	case *ast.StructLitExpr:
		for _, f := range ex.Fields {
			if err := a.pass1WalkExpr(f.Value); err != nil {
				return err
			}
		}
		return nil
	case *ast.ArrayLitExpr:
		for _, el := range ex.Elements {
			if err := a.pass1WalkExpr(el); err != nil {
				return err
			}
		}
		return nil
	case *ast.RepeatArrayLitExpr:
		if err := a.pass1WalkExpr(ex.Value); err != nil {
			return err
		}
		return a.pass1WalkExpr(ex.Length)
	case *ast.BlockExpr:
		return a.pass1WalkBlock(ex)
	case *ast.IfExpr:
		if err := a.pass1WalkExpr(ex.Cond); err != nil {
			return err
		}
		if err := a.pass1WalkBlock(ex.Then); err != nil {
			return err
		}
		if ex.Else != nil {
			return a.pass1WalkExpr(ex.Else)
		}
		return nil
	case *ast.LoopExpr:
		_, restore := a.enter(scope.Loop, func(s *scope.Scope) { ex.Scope = s })
		defer restore()
		return a.pass1WalkBlock(ex.Body)
	case *ast.WhileExpr:
		_, restore := a.enter(scope.Loop, func(s *scope.Scope) { ex.Scope = s })
		defer restore()
		if err := a.pass1WalkExpr(ex.Cond); err != nil {
			return err
		}
		return a.pass1WalkBlock(ex.Body)
	case *ast.BreakExpr:
		if ex.Value != nil {
			return a.pass1WalkExpr(ex.Value)
		}
		return nil
	case *ast.ReturnExpr:
		if ex.Value != nil {
			return a.pass1WalkExpr(ex.Value)
		}
		return nil
	}
	return nil
}
