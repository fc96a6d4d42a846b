package sema

import (
	"github.com/rustlite/rlc/internal/ast"
	"github.com/rustlite/rlc/internal/diagnostic"
	"github.com/rustlite/rlc/internal/scope"
	"github.com/rustlite/rlc/internal/types"
)

// pass3TypeInference is pass 3: a recursive walk over every function
// and const-initializer body that assigns ResolvedType and ExprCategory to
// every expression node — binary/shift/comparison unification,
// short-circuit booleans, if/loop/while result types, break/continue/return
// producing Never, assignment/field/index typing with auto-deref, and call
// arity and argument checking.
//
// Name resolution needed to type a PathExpr happens here too (pass 3 has to
// know a variable's declared type to type-check its uses) but the result is
// not written back to PathExpr.Symbol — binding the symbol pointer is
// deferred to pass 5, which re-walks idempotently and finalizes paths using
// the same resolution rule, keeping the two passes' contracts distinct even
// though pass 3 necessarily performs the lookup already.
func (a *Analyzer) pass3TypeInference() error {
	for _, d := range a.mod.Decls {
		switch decl := d.(type) {
		case *ast.ConstDecl:
			if err := a.pass3Const(decl, nil); err != nil {
				return err
			}
		case *ast.FnDecl:
			if err := a.pass3Fn(decl); err != nil {
				return err
			}
		case *ast.ImplDecl:
			targetSym, _ := a.Root.LookupLocal(decl.TypeName)
			for _, c := range decl.Consts {
				if err := a.pass3Const(c, targetSym); err != nil {
					return err
				}
			}
			for _, fn := range decl.Functions {
				if err := a.pass3Fn(fn); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// pass3Const infers a const initializer's type and unifies it against the
// declared type pass2 recorded. owner is nil for a top-level const (whose
// symbol lives directly in the crate scope) or the struct/enum symbol whose
// AssocConsts holds an impl-attached const's shell.
func (a *Analyzer) pass3Const(decl *ast.ConstDecl, owner *scope.Symbol) error {
	s, _ := decl.Scope.(*scope.Scope)
	restore := a.cursor.EnterExisting(s)
	defer restore()

	t, err := a.inferExpr(decl.Value)
	if err != nil {
		return err
	}
	var sym *scope.Symbol
	if owner == nil {
		sym, _ = a.Root.LookupLocal(decl.Name)
	} else {
		sym = owner.AssocConsts[decl.Name]
	}
	unified, err := types.Unify(sym.ConstType, t)
	if err != nil {
		return diagnostic.New(diagnostic.CodeTypeMismatch, posOf(decl.Loc), "const %q: %v", decl.Name, err)
	}
	sym.ConstType = unified
	return nil
}

func (a *Analyzer) pass3Fn(decl *ast.FnDecl) error {
	fnScope, _ := decl.FuncScope.(*scope.Scope)
	if fnScope == nil || decl.Body == nil {
		return nil
	}
	restore := a.cursor.EnterExisting(fnScope)
	defer restore()

	if decl.Self != nil {
		fnScope.DeclareLocal("self", &scope.Symbol{
			Kind:    scope.VariableSym,
			Name:    "self",
			VarType: selfType(fnScope, decl.Self),
			IsMut:   decl.Self.IsMut && !decl.Self.IsRef,
		})
	}
	for i, p := range decl.Params {
		fnScope.DeclareLocal(p.Name, &scope.Symbol{
			Kind:    scope.VariableSym,
			Name:    p.Name,
			VarType: decl.ResolvedParamTypes[i],
		})
	}

	bodyT, err := a.inferBlock(decl.Body)
	if err != nil {
		return err
	}
	if _, err := types.Unify(decl.ResolvedReturnType, bodyT); err != nil {
		return diagnostic.New(diagnostic.CodeTypeMismatch, posOf(decl.Body.Loc), "function %q body: %v", decl.Name, err)
	}
	return nil
}

// selfType resolves the implicit receiver's type from the enclosing impl
// scope's ImplType, wrapped in a reference per the self-parameter's
// ref/mut markers.
func selfType(fnScope *scope.Scope, self *ast.SelfParam) types.Type {
	implScope := fnScope.Parent
	for implScope != nil && implScope.Kind != scope.Impl {
		implScope = implScope.Parent
	}
	var owner types.Type = types.UnknownType
	if implScope != nil && implScope.ImplType != nil {
		owner = implScope.ImplType
	}
	if self.IsRef {
		return &types.Reference{Inner: owner, IsMut: self.IsMut}
	}
	return owner
}

func (a *Analyzer) inferBlock(b *ast.BlockExpr) (types.Type, error) {
	s, _ := b.Scope.(*scope.Scope)
	restore := a.cursor.EnterExisting(s)
	defer restore()

	for _, stmt := range b.Stmts {
		if err := a.inferStmt(stmt, s); err != nil {
			return nil, err
		}
	}
	if b.Tail == nil {
		b.ResolvedType = types.UnitType
		b.Category = ast.ValueCategory
		return types.UnitType, nil
	}
	t, err := a.inferExpr(b.Tail)
	if err != nil {
		return nil, err
	}
	b.ResolvedType = t
	b.Category = ast.ValueCategory
	return t, nil
}

func (a *Analyzer) inferStmt(stmt ast.Stmt, blockScope *scope.Scope) error {
	switch s := stmt.(type) {
	case *ast.LetStmt:
		valT, err := a.inferExpr(s.Value)
		if err != nil {
			return err
		}
		declared := valT
		if s.Type != nil {
			t, err := a.resolveType(s.Type)
			if err != nil {
				return err
			}
			unified, err := types.Unify(t, valT)
			if err != nil {
				return diagnostic.New(diagnostic.CodeTypeMismatch, posOf(s.Loc), "let %q: %v", s.Pattern.Name, err)
			}
			declared = unified
		}
		s.ResolvedType = declared
		blockScope.DeclareLocal(s.Pattern.Name, &scope.Symbol{
			Kind:    scope.VariableSym,
			Name:    s.Pattern.Name,
			VarType: declared,
			IsMut:   s.Pattern.IsMut,
		})
		return nil
	case *ast.ExprStmt:
		_, err := a.inferExpr(s.Value)
		return err
	}
	return nil
}

// inferExpr assigns ResolvedType/Category to e and every subexpression.
func (a *Analyzer) inferExpr(e ast.Expr) (types.Type, error) {
	if e == nil {
		return types.UnitType, nil
	}
	t, cat, err := a.inferExprKind(e)
	if err != nil {
		return nil, err
	}
	e.Meta().ResolvedType = t
	e.Meta().Category = cat
	return t, nil
}

func (a *Analyzer) inferExprKind(e ast.Expr) (types.Type, ast.ExprCategory, error) {
	switch ex := e.(type) {
	case *ast.IntLitExpr:
		return intLitType(ex.Suffix), ast.ValueCategory, nil
	case *ast.BoolLitExpr:
		return types.BoolType, ast.ValueCategory, nil
	case *ast.CharLitExpr:
		return types.CharType, ast.ValueCategory, nil
	case *ast.PathExpr:
		return a.inferPath(ex)
	case *ast.UnaryExpr:
		return a.inferUnary(ex)
	case *ast.BinaryExpr:
		return a.inferBinary(ex)
	case *ast.LogicalExpr:
		if _, err := a.inferExpr(ex.Left); err != nil {
			return nil, 0, err
		}
		if _, err := a.inferExpr(ex.Right); err != nil {
			return nil, 0, err
		}
		return types.BoolType, ast.ValueCategory, nil
	case *ast.CastExpr:
		srcT, err := a.inferExpr(ex.Value)
		if err != nil {
			return nil, 0, err
		}
		target, err := a.resolveType(ex.Type)
		if err != nil {
			return nil, 0, err
		}
		if !castPermitted(srcT, target) {
			return nil, 0, diagnostic.New(diagnostic.CodeInvalidCast, posOf(ex.Loc),
				"cannot cast %s to %s", srcT.String(), target.String())
		}
		ex.ResolvedCast = target
		return target, ast.ValueCategory, nil
	case *ast.AssignExpr:
		if _, err := a.inferExpr(ex.Left); err != nil {
			return nil, 0, err
		}
		if _, err := a.inferExpr(ex.Right); err != nil {
			return nil, 0, err
		}
		if _, err := types.Unify(ex.Left.Meta().ResolvedType, ex.Right.Meta().ResolvedType); err != nil {
			return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Loc), "assignment: %v", err)
		}
		return types.UnitType, ast.ValueCategory, nil
	case *ast.CompoundAssignExpr:
		if _, err := a.inferExpr(ex.Left); err != nil {
			return nil, 0, err
		}
		if _, err := a.inferExpr(ex.Right); err != nil {
			return nil, 0, err
		}
		unified, err := types.Unify(ex.Left.Meta().ResolvedType, ex.Right.Meta().ResolvedType)
		if err != nil {
			return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Loc), "compound assignment: %v", err)
		}
		if !types.IsInteger(unified) {
			return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Loc), "compound assignment requires integer operands, got %s", unified.String())
		}
		return types.UnitType, ast.ValueCategory, nil
	case *ast.FieldExpr:
		return a.inferField(ex)
	case *ast.IndexExpr:
		return a.inferIndex(ex)
	case *ast.CallExpr:
		return a.inferCall(ex)
	case *ast.StructLitExpr:
		return a.inferStructLit(ex)
	case *ast.ArrayLitExpr:
		return a.inferArrayLit(ex)
	case *ast.RepeatArrayLitExpr:
		return a.inferRepeatArrayLit(ex)
	case *ast.BlockExpr:
		t, err := a.inferBlock(ex)
		return t, ast.ValueCategory, err
	case *ast.IfExpr:
		return a.inferIf(ex)
	case *ast.LoopExpr:
		return a.inferLoop(ex)
	case *ast.WhileExpr:
		return a.inferWhile(ex)
	case *ast.BreakExpr:
		return a.inferBreak(ex)
	case *ast.ContinueExpr:
		ls := enclosingLoopScope(ex.Scope)
		if ls == nil {
			return nil, 0, diagnostic.New(diagnostic.CodeBreakOutsideLoop, posOf(ex.Loc), "continue outside loop")
		}
		return types.NeverType, ast.ValueCategory, nil
	case *ast.ReturnExpr:
		return a.inferReturn(ex)
	}
	return types.UnknownType, ast.ValueCategory, nil
}

func intLitType(suffix string) types.Type {
	switch suffix {
	case "i32":
		return types.I32Type
	case "u32":
		return types.U32Type
	case "isize":
		return types.IsizeType
	case "usize":
		return types.UsizeType
	}
	return types.IntPlaceholderType
}

func (a *Analyzer) inferPath(pe *ast.PathExpr) (types.Type, ast.ExprCategory, error) {
	sym, err := a.resolvePathSymbol(pe)
	if err != nil {
		return nil, 0, err
	}
	switch sym.Kind {
	case scope.VariableSym:
		cat := ast.PlaceCategory
		if sym.IsMut {
			cat = ast.MutPlaceCategory
		}
		return sym.VarType, cat, nil
	case scope.ConstantSym:
		return sym.ConstType, ast.ValueCategory, nil
	case scope.VariantSym:
		return sym.OwningEnum, ast.ValueCategory, nil
	case scope.FunctionSym:
		return nil, 0, diagnostic.New(diagnostic.CodeUnresolvedName, posOf(pe.Loc), "function %q cannot be used as a value", sym.Name)
	}
	return nil, 0, diagnostic.New(diagnostic.CodeUnresolvedName, posOf(pe.Loc), "unresolved path")
}

// resolvePathSymbol implements the two-segment path grammar: a single
// segment resolves through the lexical scope chain (locals, then crate-level
// items); two segments are `Type::item` (or `self`/`Self::item`), resolved
// by looking up the named type's associated consts/functions or an enum's
// variant table.
func (a *Analyzer) resolvePathSymbol(pe *ast.PathExpr) (*scope.Symbol, error) {
	segs := pe.Segments
	nodeScope, _ := pe.Scope.(*scope.Scope)
	if nodeScope == nil {
		nodeScope = a.cursor.Current
	}

	if len(segs) == 1 {
		name := segs[0].Name
		sym, ok := nodeScope.Lookup(name)
		if !ok {
			return nil, diagnostic.New(diagnostic.CodeUnresolvedName, posOf(pe.Loc), "unresolved name %q", name)
		}
		return sym, nil
	}
	if len(segs) == 2 {
		typeName := segs[0].Name
		item := segs[1].Name

		var targetSym *scope.Symbol
		if typeName == "Self" {
			implScope := nodeScope.EnclosingFunction()
			for implScope != nil && implScope.Kind != scope.Impl {
				implScope = implScope.Parent
			}
			if implScope == nil || implScope.ImplType == nil {
				return nil, diagnostic.New(diagnostic.CodeUnresolvedType, posOf(pe.Loc), "Self outside impl")
			}
			named, ok := implScope.ImplType.(*types.Named)
			if !ok {
				return nil, diagnostic.New(diagnostic.CodeUnresolvedType, posOf(pe.Loc), "Self does not name a type")
			}
			targetSym, _ = named.Symbol.(*scope.Symbol)
		} else {
			sym, ok := a.Root.LookupLocal(typeName)
			if !ok {
				return nil, diagnostic.New(diagnostic.CodeUnresolvedType, posOf(pe.Loc), "unknown type %q", typeName)
			}
			targetSym = sym
		}

		switch targetSym.Kind {
		case scope.StructSym:
			if c, ok := targetSym.AssocConsts[item]; ok {
				return c, nil
			}
			if f, ok := targetSym.AssocFuncs[item]; ok {
				return f, nil
			}
			if f, ok := targetSym.Methods[item]; ok {
				return f, nil
			}
		case scope.EnumSym:
			if v, ok := targetSym.VariantSymbols[item]; ok {
				return v, nil
			}
		}
		return nil, diagnostic.New(diagnostic.CodeUnresolvedName, posOf(pe.Loc), "%s::%s not found", typeName, item)
	}
	return nil, diagnostic.New(diagnostic.CodeUnresolvedName, posOf(pe.Loc), "malformed path")
}

// castPermitted decides cast legality: integer to integer and
// bool to integer only, plus an enum's tag value read out as an integer.
// Everything else, char in particular, is an InvalidCast.
func castPermitted(src, dst types.Type) bool {
	if !types.IsInteger(dst) {
		return false
	}
	if types.IsInteger(src) {
		return true
	}
	if p, ok := src.(*types.Primitive); ok && p.Kind == types.Bool {
		return true
	}
	if n, ok := src.(*types.Named); ok {
		if sym, ok := n.Symbol.(*scope.Symbol); ok && sym.Kind == scope.EnumSym {
			return true
		}
	}
	return false
}

func (a *Analyzer) inferUnary(ex *ast.UnaryExpr) (types.Type, ast.ExprCategory, error) {
	operandT, err := a.inferExpr(ex.Operand)
	if err != nil {
		return nil, 0, err
	}
	operandCat := ex.Operand.Meta().Category

	switch ex.Op {
	case ast.OpNeg:
		if !types.IsInteger(operandT) {
			return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Loc), "negation requires an integer operand, got %s", operandT.String())
		}
		return operandT, ast.ValueCategory, nil
	case ast.OpNot:
		if p, ok := operandT.(*types.Primitive); ok && p.Kind == types.Bool {
			return types.BoolType, ast.ValueCategory, nil
		}
		if types.IsInteger(operandT) {
			return operandT, ast.ValueCategory, nil
		}
		return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Loc), "cannot apply `!` to %s", operandT.String())
	case ast.OpBorrow, ast.OpBorrowMut:
		if operandCat == ast.ValueCategory {
			return nil, 0, diagnostic.New(diagnostic.CodeNotAddressable, posOf(ex.Loc), "cannot borrow a temporary value")
		}
		if ex.Op == ast.OpBorrowMut && operandCat != ast.MutPlaceCategory {
			return nil, 0, diagnostic.New(diagnostic.CodeNotMutable, posOf(ex.Loc), "cannot borrow as mutable")
		}
		return &types.Reference{Inner: operandT, IsMut: ex.Op == ast.OpBorrowMut}, ast.ValueCategory, nil
	case ast.OpDeref:
		ref, ok := operandT.(*types.Reference)
		if !ok {
			return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Loc), "cannot dereference non-reference type %s", operandT.String())
		}
		cat := ast.PlaceCategory
		if ref.IsMut {
			cat = ast.MutPlaceCategory
		}
		return ref.Inner, cat, nil
	}
	return types.UnknownType, ast.ValueCategory, nil
}

func (a *Analyzer) inferBinary(ex *ast.BinaryExpr) (types.Type, ast.ExprCategory, error) {
	leftT, err := a.inferExpr(ex.Left)
	if err != nil {
		return nil, 0, err
	}
	rightT, err := a.inferExpr(ex.Right)
	if err != nil {
		return nil, 0, err
	}

	switch ex.Op {
	case ast.OpShl, ast.OpShr:
		// A shift takes its type from the left-hand operand; the
		// right-hand side merely needs to be some integer type.
		if !types.IsInteger(leftT) || !types.IsInteger(rightT) {
			return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Loc), "shift operands must be integers")
		}
		return leftT, ast.ValueCategory, nil
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		unified, err := types.Unify(leftT, rightT)
		if err != nil {
			return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Loc), "comparison: %v", err)
		}
		if !scalarComparable(unified) {
			return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Loc), "cannot compare values of type %s", unified.String())
		}
		return types.BoolType, ast.ValueCategory, nil
	default:
		unified, err := types.Unify(leftT, rightT)
		if err != nil {
			return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Loc), "binary operator: %v", err)
		}
		if !types.IsInteger(unified) {
			return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Loc), "operator requires integer operands, got %s", unified.String())
		}
		return unified, ast.ValueCategory, nil
	}
}

// scalarComparable reports whether ordering/equality comparison is defined
// for t: integers, bool, and char all compare as their underlying scalar.
func scalarComparable(t types.Type) bool {
	if types.IsInteger(t) {
		return true
	}
	p, ok := t.(*types.Primitive)
	return ok && (p.Kind == types.Bool || p.Kind == types.Char)
}

// namedStructSymbol unwraps any number of references to find the struct
// symbol a field/index access auto-derefs through (one implicit deref of a
// reference receiver).
func namedStructSymbol(t types.Type) (*scope.Symbol, bool) {
	for {
		switch tt := t.(type) {
		case *types.Reference:
			t = tt.Inner
		case *types.Named:
			sym, ok := tt.Symbol.(*scope.Symbol)
			return sym, ok
		default:
			return nil, false
		}
	}
}

// placeCategoryThroughDeref computes the category of a derived place that
// reaches through zero or more references from base.
func placeCategoryThroughDeref(baseT types.Type, baseCat ast.ExprCategory) ast.ExprCategory {
	if ref, ok := baseT.(*types.Reference); ok {
		if ref.IsMut {
			return ast.MutPlaceCategory
		}
		return ast.PlaceCategory
	}
	return baseCat
}

func (a *Analyzer) inferField(ex *ast.FieldExpr) (types.Type, ast.ExprCategory, error) {
	baseT, err := a.inferExpr(ex.Base)
	if err != nil {
		return nil, 0, err
	}
	sym, ok := namedStructSymbol(baseT)
	if !ok || sym.Kind != scope.StructSym {
		return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Loc), "%s has no fields", baseT.String())
	}
	ft, ok := sym.FieldTypes[ex.Field]
	if !ok {
		return nil, 0, diagnostic.New(diagnostic.CodeUnresolvedName, posOf(ex.Loc), "no field %q on %s", ex.Field, sym.Name)
	}
	return ft, placeCategoryThroughDeref(baseT, ex.Base.Meta().Category), nil
}

func (a *Analyzer) inferIndex(ex *ast.IndexExpr) (types.Type, ast.ExprCategory, error) {
	baseT, err := a.inferExpr(ex.Base)
	if err != nil {
		return nil, 0, err
	}
	idxT, err := a.inferExpr(ex.Index)
	if err != nil {
		return nil, 0, err
	}
	if !types.IsInteger(idxT) {
		return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Loc), "array index must be an integer")
	}
	arr := baseT
	if ref, ok := arr.(*types.Reference); ok {
		arr = ref.Inner
	}
	arrT, ok := arr.(*types.Array)
	if !ok {
		return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Loc), "cannot index non-array type %s", baseT.String())
	}
	return arrT.Element, placeCategoryThroughDeref(baseT, ex.Base.Meta().Category), nil
}

func (a *Analyzer) inferCall(ex *ast.CallExpr) (types.Type, ast.ExprCategory, error) {
	var sym *scope.Symbol

	if ex.IsMethodCall {
		fe, ok := ex.Callee.(*ast.FieldExpr)
		if !ok {
			return nil, 0, diagnostic.New(diagnostic.CodeUnresolvedName, posOf(ex.Loc), "malformed method call")
		}
		baseT, err := a.inferExpr(fe.Base)
		if err != nil {
			return nil, 0, err
		}
		fe.Meta().ResolvedType = baseT
		structSym, ok := namedStructSymbol(baseT)
		if !ok {
			return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Loc), "%s has no methods", baseT.String())
		}
		m, ok := structSym.Methods[fe.Field]
		if !ok {
			return nil, 0, diagnostic.New(diagnostic.CodeUnresolvedName, posOf(ex.Loc), "no method %q on %s", fe.Field, structSym.Name)
		}
		sym = m
		fe.Meta().Category = placeCategoryThroughDeref(baseT, fe.Base.Meta().Category)
	} else {
		pe, ok := ex.Callee.(*ast.PathExpr)
		if !ok {
			return nil, 0, diagnostic.New(diagnostic.CodeUnresolvedName, posOf(ex.Loc), "malformed call target")
		}
		resolved, err := a.resolvePathSymbol(pe)
		if err != nil {
			return nil, 0, err
		}
		if resolved.Kind != scope.FunctionSym {
			return nil, 0, diagnostic.New(diagnostic.CodeUnresolvedName, posOf(ex.Loc), "%q is not callable", resolved.Name)
		}
		sym = resolved
		pe.Meta().ResolvedType = types.UnitType
		pe.Meta().Category = ast.ValueCategory
	}

	if len(ex.Args) != len(sym.ParamTypes) {
		return nil, 0, diagnostic.New(diagnostic.CodeArityMismatch, posOf(ex.Loc), "%q expects %d argument(s), got %d", sym.Name, len(sym.ParamTypes), len(ex.Args))
	}
	for i, arg := range ex.Args {
		argT, err := a.inferExpr(arg)
		if err != nil {
			return nil, 0, err
		}
		if _, err := types.Unify(sym.ParamTypes[i], argT); err != nil {
			return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(arg.NodeLoc()), "argument %d to %q: %v", i+1, sym.Name, err)
		}
	}
	return sym.ReturnType, ast.ValueCategory, nil
}

func (a *Analyzer) inferStructLit(ex *ast.StructLitExpr) (types.Type, ast.ExprCategory, error) {
	sym, ok := a.Root.LookupLocal(ex.TypeName)
	if !ok || sym.Kind != scope.StructSym {
		return nil, 0, diagnostic.New(diagnostic.CodeUnresolvedType, posOf(ex.Loc), "unknown struct %q", ex.TypeName)
	}
	if len(ex.Fields) != len(sym.FieldNames) {
		return nil, 0, diagnostic.New(diagnostic.CodeArityMismatch, posOf(ex.Loc), "%q has %d field(s), %d given", ex.TypeName, len(sym.FieldNames), len(ex.Fields))
	}
	for _, f := range ex.Fields {
		ft, ok := sym.FieldTypes[f.Name]
		if !ok {
			return nil, 0, diagnostic.New(diagnostic.CodeUnresolvedName, posOf(ex.Loc), "no field %q on %s", f.Name, ex.TypeName)
		}
		valT, err := a.inferExpr(f.Value)
		if err != nil {
			return nil, 0, err
		}
		if _, err := types.Unify(ft, valT); err != nil {
			return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(f.Value.NodeLoc()), "field %q: %v", f.Name, err)
		}
	}
	return &types.Named{Name: ex.TypeName, Symbol: sym}, ast.ValueCategory, nil
}

func (a *Analyzer) inferArrayLit(ex *ast.ArrayLitExpr) (types.Type, ast.ExprCategory, error) {
	if len(ex.Elements) == 0 {
		return &types.Array{Element: types.UnknownType, Length: 0}, ast.ValueCategory, nil
	}
	var elemT types.Type
	for _, el := range ex.Elements {
		t, err := a.inferExpr(el)
		if err != nil {
			return nil, 0, err
		}
		if elemT == nil {
			elemT = t
			continue
		}
		unified, err := types.Unify(elemT, t)
		if err != nil {
			return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(el.NodeLoc()), "array literal: %v", err)
		}
		elemT = unified
	}
	return &types.Array{Element: elemT, Length: len(ex.Elements)}, ast.ValueCategory, nil
}

func (a *Analyzer) inferRepeatArrayLit(ex *ast.RepeatArrayLitExpr) (types.Type, ast.ExprCategory, error) {
	elemT, err := a.inferExpr(ex.Value)
	if err != nil {
		return nil, 0, err
	}
	lit, ok := ex.Length.(*ast.IntLitExpr)
	length := -1
	if ok {
		length = int(lit.Value)
	}
	if _, err := a.inferExpr(ex.Length); err != nil {
		return nil, 0, err
	}
	return &types.Array{Element: elemT, Length: length}, ast.ValueCategory, nil
}

func (a *Analyzer) inferIf(ex *ast.IfExpr) (types.Type, ast.ExprCategory, error) {
	condT, err := a.inferExpr(ex.Cond)
	if err != nil {
		return nil, 0, err
	}
	if _, err := types.Unify(condT, types.BoolType); err != nil {
		return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Cond.NodeLoc()), "if condition must be bool")
	}
	thenT, err := a.inferBlock(ex.Then)
	if err != nil {
		return nil, 0, err
	}
	if ex.Else == nil {
		if _, err := types.Unify(thenT, types.UnitType); err != nil {
			return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Loc), "if without else must produce ()")
		}
		return types.UnitType, ast.ValueCategory, nil
	}
	elseT, err := a.inferExpr(ex.Else)
	if err != nil {
		return nil, 0, err
	}
	unified, err := types.Unify(thenT, elseT)
	if err != nil {
		return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Loc), "if/else branches: %v", err)
	}
	return unified, ast.ValueCategory, nil
}

func (a *Analyzer) inferLoop(ex *ast.LoopExpr) (types.Type, ast.ExprCategory, error) {
	s, _ := ex.Scope.(*scope.Scope)
	restore := a.cursor.EnterExisting(s)
	defer restore()

	if _, err := a.inferBlock(ex.Body); err != nil {
		return nil, 0, err
	}
	if s != nil && s.BreakType != nil {
		return s.BreakType, ast.ValueCategory, nil
	}
	return types.NeverType, ast.ValueCategory, nil
}

func (a *Analyzer) inferWhile(ex *ast.WhileExpr) (types.Type, ast.ExprCategory, error) {
	s, _ := ex.Scope.(*scope.Scope)
	restore := a.cursor.EnterExisting(s)
	defer restore()

	condT, err := a.inferExpr(ex.Cond)
	if err != nil {
		return nil, 0, err
	}
	if _, err := types.Unify(condT, types.BoolType); err != nil {
		return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Cond.NodeLoc()), "while condition must be bool")
	}
	if _, err := a.inferBlock(ex.Body); err != nil {
		return nil, 0, err
	}
	return types.UnitType, ast.ValueCategory, nil
}

func (a *Analyzer) inferBreak(ex *ast.BreakExpr) (types.Type, ast.ExprCategory, error) {
	ls := enclosingLoopScope(ex.Scope)
	if ls == nil {
		return nil, 0, diagnostic.New(diagnostic.CodeBreakOutsideLoop, posOf(ex.Loc), "break outside loop")
	}
	var valT types.Type = types.UnitType
	if ex.Value != nil {
		t, err := a.inferExpr(ex.Value)
		if err != nil {
			return nil, 0, err
		}
		valT = t
	}
	if ls.BreakType == nil {
		ls.BreakType = valT
	} else {
		unified, err := types.Unify(ls.BreakType, valT)
		if err != nil {
			return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Loc), "break value: %v", err)
		}
		ls.BreakType = unified
	}
	return types.NeverType, ast.ValueCategory, nil
}

func (a *Analyzer) inferReturn(ex *ast.ReturnExpr) (types.Type, ast.ExprCategory, error) {
	s, _ := ex.Scope.(*scope.Scope)
	fs := s.EnclosingFunction()
	if fs == nil {
		return nil, 0, diagnostic.New(diagnostic.CodeReturnOutsideFunction, posOf(ex.Loc), "return outside function")
	}
	var valT types.Type = types.UnitType
	if ex.Value != nil {
		t, err := a.inferExpr(ex.Value)
		if err != nil {
			return nil, 0, err
		}
		valT = t
	}
	if _, err := types.Unify(fs.ReturnType, valT); err != nil {
		return nil, 0, diagnostic.New(diagnostic.CodeTypeMismatch, posOf(ex.Loc), "return value: %v", err)
	}
	return types.NeverType, ast.ValueCategory, nil
}

func enclosingLoopScope(ref ast.ScopeRef) *scope.Scope {
	s, _ := ref.(*scope.Scope)
	if s == nil {
		return nil
	}
	return s.EnclosingLoop()
}
