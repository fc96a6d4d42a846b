package sema

import (
	"github.com/rustlite/rlc/internal/ast"
	"github.com/rustlite/rlc/internal/diagnostic"
	"github.com/rustlite/rlc/internal/scope"
	"github.com/rustlite/rlc/internal/types"
)

// pass2TypeResolution is pass 2: every TypeNode reachable from a
// declaration — struct fields, const/let annotations, function
// parameter/return types, trait/impl member signatures — is resolved against
// the scopes pass 1 built, filling in each Symbol's VarType/FieldTypes/
// ParamTypes/ReturnType. No expression body is inspected here beyond the
// TypeNodes it carries; expression type inference is pass 3's job.
func (a *Analyzer) pass2TypeResolution() error {
	for _, d := range a.mod.Decls {
		if err := a.pass2Decl(d); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) pass2Decl(d ast.Decl) error {
	switch decl := d.(type) {
	case *ast.StructDecl:
		return a.pass2Struct(decl)
	case *ast.EnumDecl:
		return a.pass2Enum(decl)
	case *ast.TraitDecl:
		return a.pass2Trait(decl)
	case *ast.ConstDecl:
		return a.pass2Const(decl, a.Root)
	case *ast.FnDecl:
		return a.pass2Fn(decl, nil)
	case *ast.ImplDecl:
		return a.pass2Impl(decl)
	}
	return nil
}

func (a *Analyzer) pass2Struct(decl *ast.StructDecl) error {
	sym, _ := a.Root.LookupLocal(decl.Name)
	sym.FieldNames = nil
	for _, f := range decl.Fields {
		ft, err := a.resolveType(f.Type)
		if err != nil {
			return err
		}
		sym.FieldNames = append(sym.FieldNames, f.Name)
		sym.FieldTypes[f.Name] = ft
	}
	return nil
}

func (a *Analyzer) pass2Enum(decl *ast.EnumDecl) error {
	sym, _ := a.Root.LookupLocal(decl.Name)
	owning := &types.Named{Name: decl.Name, Symbol: sym}
	for _, v := range decl.Variants {
		if _, exists := sym.VariantSymbols[v]; exists {
			continue
		}
		sym.Variants = append(sym.Variants, v)
		sym.VariantSymbols[v] = &scope.Symbol{Kind: scope.VariantSym, Name: v, OwningEnum: owning}
	}
	return nil
}

func (a *Analyzer) pass2Trait(decl *ast.TraitDecl) error {
	sym, _ := a.Root.LookupLocal(decl.Name)
	for _, sig := range decl.RequiredFuncs {
		shell := scope.NewFunctionSymbol(sig.Name)
		shell.SelfParam = selfParamOf(sig.Self)
		for _, p := range sig.Params {
			t, err := a.resolveType(p.Type)
			if err != nil {
				return err
			}
			shell.ParamNames = append(shell.ParamNames, p.Name)
			shell.ParamTypes = append(shell.ParamTypes, t)
		}
		ret, err := a.resolveOptionalType(sig.ReturnType)
		if err != nil {
			return err
		}
		shell.ReturnType = ret
		sym.RequiredItems[sig.Name] = shell
	}
	return nil
}

func (a *Analyzer) pass2Const(decl *ast.ConstDecl, _ *scope.Scope) error {
	sym, _ := a.Root.LookupLocal(decl.Name)
	t, err := a.resolveType(decl.Type)
	if err != nil {
		return err
	}
	sym.ConstType = t
	return nil
}

func (a *Analyzer) pass2Fn(decl *ast.FnDecl, owner *scope.Symbol) error {
	var sym *scope.Symbol
	if owner == nil {
		sym, _ = a.Root.LookupLocal(decl.Name)
	} else {
		sym = lookupAttachedFn(owner, decl.Name, decl.Self != nil)
	}
	if sym == nil {
		return diagnostic.New(diagnostic.CodeUnresolvedName, posOf(decl.Loc), "missing symbol shell for %q", decl.Name)
	}

	sym.SelfParam = selfParamOf(decl.Self)
	if owner != nil {
		sym.OwnerType = &types.Named{Name: owner.Name, Symbol: owner}
	}

	for _, p := range decl.Params {
		t, err := a.resolveType(p.Type)
		if err != nil {
			return err
		}
		sym.ParamNames = append(sym.ParamNames, p.Name)
		sym.ParamTypes = append(sym.ParamTypes, t)
		decl.ResolvedParamTypes = append(decl.ResolvedParamTypes, t)
	}
	ret, err := a.resolveOptionalType(decl.ReturnType)
	if err != nil {
		return err
	}
	sym.ReturnType = ret
	decl.ResolvedReturnType = ret

	if fs, ok := decl.FuncScope.(*scope.Scope); ok {
		fs.ReturnType = ret
	}
	return nil
}

func (a *Analyzer) pass2Impl(decl *ast.ImplDecl) error {
	targetSym, ok := a.Root.LookupLocal(decl.TypeName)
	if !ok {
		return diagnostic.New(diagnostic.CodeUnresolvedType, posOf(decl.Loc), "unknown type %q in impl", decl.TypeName)
	}
	implType := &types.Named{Name: decl.TypeName, Symbol: targetSym}
	if s, ok := decl.Scope.(*scope.Scope); ok {
		s.ImplType = implType
	}

	for _, c := range decl.Consts {
		shell, ok := targetSym.AssocConsts[c.Name]
		if !ok {
			return diagnostic.New(diagnostic.CodeUnresolvedName, posOf(c.Loc), "missing symbol shell for %q", c.Name)
		}
		t, err := a.resolveType(c.Type)
		if err != nil {
			return err
		}
		shell.ConstType = t
	}

	for _, fn := range decl.Functions {
		if err := a.pass2Fn(fn, targetSym); err != nil {
			return err
		}
	}
	return nil
}

func lookupAttachedFn(owner *scope.Symbol, name string, isMethod bool) *scope.Symbol {
	if isMethod {
		return owner.Methods[name]
	}
	return owner.AssocFuncs[name]
}

func selfParamOf(s *ast.SelfParam) *scope.SelfParam {
	if s == nil {
		return nil
	}
	return &scope.SelfParam{IsRef: s.IsRef, IsMut: s.IsMut}
}

// resolveOptionalType resolves n, treating a nil TypeNode as ().
func (a *Analyzer) resolveOptionalType(n ast.TypeNode) (types.Type, error) {
	if n == nil {
		return types.UnitType, nil
	}
	return a.resolveType(n)
}

// resolveType resolves a syntactic TypeNode into a types.Type against the
// crate scope. Array lengths are constant expressions;
// this subset only admits an integer literal there, so a non-literal length
// resolves to a symbolic (-1) array, left for the confirmer/lowering to
// reject if it is never pinned down.
func (a *Analyzer) resolveType(n ast.TypeNode) (types.Type, error) {
	switch tn := n.(type) {
	case *ast.PrimitiveTypeNode:
		return primitiveType(tn.Name)
	case *ast.UnitTypeNode:
		return types.UnitType, nil
	case *ast.RefTypeNode:
		inner, err := a.resolveType(tn.Inner)
		if err != nil {
			return nil, err
		}
		return &types.Reference{Inner: inner, IsMut: tn.IsMut}, nil
	case *ast.ArrayTypeNode:
		elem, err := a.resolveType(tn.Element)
		if err != nil {
			return nil, err
		}
		length := -1
		if lit, ok := tn.Length.(*ast.IntLitExpr); ok {
			length = int(lit.Value)
		}
		return &types.Array{Element: elem, Length: length}, nil
	case *ast.NamedTypeNode:
		sym, ok := a.Root.LookupLocal(tn.Name)
		if !ok {
			return nil, diagnostic.New(diagnostic.CodeUnresolvedType, posOf(tn.Loc), "unknown type %q", tn.Name)
		}
		return &types.Named{Name: tn.Name, Symbol: sym}, nil
	}
	return nil, diagnostic.New(diagnostic.CodeUnresolvedType, posOf(n.NodeLoc()), "unresolved type node")
}

func primitiveType(name string) (types.Type, error) {
	switch name {
	case "i32":
		return types.I32Type, nil
	case "u32":
		return types.U32Type, nil
	case "isize":
		return types.IsizeType, nil
	case "usize":
		return types.UsizeType, nil
	case "bool":
		return types.BoolType, nil
	case "char":
		return types.CharType, nil
	case "str":
		return types.StrType, nil
	}
	return nil, diagnostic.New(diagnostic.CodeUnresolvedType, diagnostic.Position{}, "unknown primitive type %q", name)
}
