// Package lower implements the AST lowerer: it walks a module whose
// declarations have already been through all five semantic passes plus the
// integer-type confirmer (every expression carries a concrete ResolvedType
// and ExprCategory, every PathExpr.Symbol is bound) and a completed
// internal/predefine pass (every struct has an IR body and every function
// has an *ir.Function shell with the aggregate-return ABI already applied),
// and emits instructions into that IR through an internal/irbuild.Builder.
//
// Unlike the sema passes, the lowerer never walks the scope tree itself —
// everything it needs (a variable's storage slot, a path's target symbol, a
// call's callee) was already resolved and hung off the AST or its symbols by
// earlier stages, the same "consult what pass N-1 already computed" shape
// internal/sema's own passes use between each other. It reads a
// *scope.Scope directly only through single-table LookupLocal calls: the
// crate scope (functions, impl targets, struct literals), a function's own
// scope (the symbols pass 3 declared for its parameters and `self`), and a
// let-binding's block scope (the fresh variable symbol pass 3 declared for
// it), in the last two cases to attach the symbol's slot.
//
// Aggregates (structs and fixed-size arrays) are never materialized as SSA
// values in this IR — every aggregate-typed expression evaluates to the
// *address* of its storage, and callers that need to copy it (struct-literal
// fields, array elements, assignment, let, returns) do so with a memcpy —
// sized by the runtime gep-null idiom for structs and by a host-side
// internal/layout constant for arrays. An aggregate call argument is passed
// as that address itself, without a copy. Scalars evaluate to ordinary SSA
// registers as usual.
package lower

import (
	"strings"

	"github.com/rustlite/rlc/internal/ast"
	"github.com/rustlite/rlc/internal/builtins"
	"github.com/rustlite/rlc/internal/diagnostic"
	"github.com/rustlite/rlc/internal/ir"
	"github.com/rustlite/rlc/internal/irbuild"
	"github.com/rustlite/rlc/internal/irtype"
	"github.com/rustlite/rlc/internal/predefine"
	"github.com/rustlite/rlc/internal/scope"
	"github.com/rustlite/rlc/internal/types"
)

// Lowerer drives AST-to-IR translation for an entire module.
type Lowerer struct {
	AST  *ast.Module
	Root *scope.Scope
	Pre  *predefine.Predefiner
	B    *irbuild.Builder
}

// New creates a Lowerer over an already predefined module.
func New(astMod *ast.Module, root *scope.Scope, pre *predefine.Predefiner) *Lowerer {
	return &Lowerer{AST: astMod, Root: root, Pre: pre, B: irbuild.New(pre.Mod)}
}

// funcCtx carries the per-function state lowering needs at every return
// site: where the aggregate-return ABI's return buffer lives, the source
// return type (to tell a real value apart from Unit), and whether this is
// `main`, which is exempt from the ABI rewrite entirely.
type funcCtx struct {
	retPtr  ir.Value
	retType types.Type
	isMain  bool

	// retBlock is the function's shared epilogue, created lazily at the
	// first return site; every `return` writes the result through retPtr
	// and branches here, and the epilogue alone carries the `ret void`.
	retBlock *ir.BasicBlock
}

// Run lowers every top-level function and impl member in AST order.
func (l *Lowerer) Run() error {
	for _, d := range l.AST.Decls {
		switch decl := d.(type) {
		case *ast.FnDecl:
			if err := l.lowerFunction(decl, nil); err != nil {
				return err
			}
		case *ast.ImplDecl:
			targetSym, ok := l.Root.LookupLocal(decl.TypeName)
			if !ok {
				return diagnostic.NewIRException(diagnostic.CodeMissingSymbol,
					"impl target %q has no declared symbol", decl.TypeName)
			}
			for _, fn := range decl.Functions {
				if err := l.lowerFunction(fn, targetSym); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (l *Lowerer) lowerFunction(fn *ast.FnDecl, owner *scope.Symbol) error {
	var sym *scope.Symbol
	if owner == nil {
		s, ok := l.Root.LookupLocal(fn.Name)
		if !ok {
			return diagnostic.NewIRException(diagnostic.CodeMissingSymbol, "function %q has no declared symbol", fn.Name)
		}
		sym = s
	} else if fn.Self != nil {
		sym = owner.Methods[fn.Name]
	} else {
		sym = owner.AssocFuncs[fn.Name]
	}
	if sym == nil {
		return diagnostic.NewIRException(diagnostic.CodeMissingSymbol, "function %q has no declared symbol", fn.Name)
	}

	irFn, ok := sym.IRFunc.(*ir.Function)
	if !ok {
		return diagnostic.NewIRException(diagnostic.CodeMissingSymbol, "function %q has no IR definition", fn.Name)
	}

	isMain := owner == nil && fn.Name == "main"
	l.B.SetFunction(irFn)
	entry := l.B.NewBlock("entry")
	l.B.SetInsertPoint(entry)

	fnScope, _ := fn.FuncScope.(*scope.Scope)

	paramIdx := 0
	var retPtr ir.Value
	if !isMain {
		retPtr = irFn.Params[0]
		paramIdx = 1
	}
	if fn.Self != nil {
		p := irFn.Params[paramIdx]
		slot := l.B.CreateAlloca(p.Type())
		l.B.CreateStore(p, slot)
		if selfSym, ok := fnScope.LookupLocal("self"); ok {
			selfSym.IRSlot = ir.Value(slot)
		}
		paramIdx++
	}
	for _, prm := range fn.Params {
		paramSym, ok := fnScope.LookupLocal(prm.Name)
		if !ok {
			return diagnostic.NewIRException(diagnostic.CodeMissingSymbol, "parameter %q has no declared symbol", prm.Name)
		}
		p := irFn.Params[paramIdx]
		irT := l.Pre.IRType(paramSym.VarType)
		if irtype.IsAggregate(irT) {
			// The incoming parameter already is the aggregate's address.
			paramSym.IRSlot = ir.Value(p)
		} else {
			slot := l.B.CreateAlloca(irT)
			l.B.CreateStore(p, slot)
			paramSym.IRSlot = ir.Value(slot)
		}
		paramIdx++
	}

	fc := &funcCtx{retPtr: retPtr, retType: sym.ReturnType, isMain: isMain}
	val, err := l.lowerBlockValue(fn.Body, fc)
	if err != nil {
		return err
	}
	if !l.B.Terminated() {
		l.emitReturn(val, fc)
	}
	if fc.retBlock != nil {
		l.B.SetInsertPoint(fc.retBlock)
		l.B.CreateRetVoid()
	}
	return nil
}

func (l *Lowerer) emitReturn(val ir.Value, fc *funcCtx) {
	if fc.isMain {
		if _, isUnit := fc.retType.(*types.Unit); isUnit {
			l.B.CreateRetVoid()
		} else {
			l.B.CreateRet(val)
		}
		return
	}
	l.writeReturnValue(val, fc.retType, fc.retPtr)
	if fc.retBlock == nil {
		fc.retBlock = l.B.NewBlock("return")
	}
	l.B.CreateBr(fc.retBlock)
}

func (l *Lowerer) writeReturnValue(val ir.Value, t types.Type, ptr ir.Value) {
	if _, isUnit := t.(*types.Unit); isUnit {
		l.B.CreateStore(l.Pre.Mod.ConstInt(l.Pre.Mod.Ctx.I8(), 0), ptr)
		return
	}
	irT := l.Pre.IRType(t)
	if irtype.IsAggregate(irT) {
		size := l.aggregateSize(irT)
		l.B.CreateMemcpy(ptr, val, size)
		return
	}
	l.B.CreateStore(val, ptr)
}

// aggregateSize yields the byte count a memcpy of irT needs: a struct's size
// comes from the same gep-null-1 idiom its `S.size` function uses, while an
// array's is element stride times length, folded to a constant through the
// host-side layout computation.
func (l *Lowerer) aggregateSize(irT irtype.Type) ir.Value {
	if arr, ok := irT.(*irtype.ArrayType); ok {
		total := l.Pre.Layout.Stride(arr.Elem) * arr.Count
		return l.Pre.Mod.ConstInt(l.Pre.Mod.Ctx.I32(), uint64(total))
	}
	return l.B.CreateMemcpySize(irT)
}

// unitValue is the placeholder SSA value standing in for `()`, so that every
// value-producing lowering function can return a concrete ir.Value uniformly
// instead of special-casing Unit with a nil.
func (l *Lowerer) unitValue() ir.Value {
	return l.Pre.Mod.ConstInt(l.Pre.Mod.Ctx.I8(), 0)
}

// --- statements and blocks ---

func (l *Lowerer) lowerBlockValue(b *ast.BlockExpr, fc *funcCtx) (ir.Value, error) {
	bScope, _ := b.Scope.(*scope.Scope)
	for _, stmt := range b.Stmts {
		if l.B.Terminated() {
			break
		}
		if err := l.lowerStmt(stmt, bScope, fc); err != nil {
			return nil, err
		}
	}
	if l.B.Terminated() {
		return l.unitValue(), nil
	}
	if b.Tail != nil {
		return l.lowerExpr(b.Tail, fc)
	}
	return l.unitValue(), nil
}

func (l *Lowerer) lowerStmt(s ast.Stmt, bScope *scope.Scope, fc *funcCtx) error {
	switch stmt := s.(type) {
	case *ast.LetStmt:
		return l.lowerLet(stmt, bScope, fc)
	case *ast.ExprStmt:
		_, err := l.lowerExpr(stmt.Value, fc)
		return err
	}
	return nil
}

func (l *Lowerer) lowerLet(s *ast.LetStmt, bScope *scope.Scope, fc *funcCtx) error {
	irT := l.Pre.IRType(s.ResolvedType)
	slot := l.B.CreateAlloca(irT)
	if irtype.IsAggregate(irT) {
		src, err := l.lowerExpr(s.Value, fc)
		if err != nil {
			return err
		}
		size := l.aggregateSize(irT)
		l.B.CreateMemcpy(slot, src, size)
	} else {
		v, err := l.lowerExpr(s.Value, fc)
		if err != nil {
			return err
		}
		l.B.CreateStore(v, slot)
	}
	s.IRSlot = ir.Value(slot)
	if bScope != nil {
		if sym, ok := bScope.LookupLocal(s.Pattern.Name); ok {
			sym.IRSlot = ir.Value(slot)
		}
	}
	return nil
}

// --- expressions: value context ---

func (l *Lowerer) lowerExpr(e ast.Expr, fc *funcCtx) (out ir.Value, outErr error) {
	defer func() {
		if outErr == nil && out != nil && e != nil {
			e.Meta().IRValue = out
		}
	}()
	switch ex := e.(type) {
	case *ast.IntLitExpr:
		irT := l.Pre.IRType(ex.Meta().ResolvedType)
		return l.Pre.Mod.ConstInt(irT, ex.Value), nil
	case *ast.BoolLitExpr:
		v := uint64(0)
		if ex.Value {
			v = 1
		}
		return l.Pre.Mod.ConstInt(l.Pre.Mod.Ctx.I1(), v), nil
	case *ast.CharLitExpr:
		return l.Pre.Mod.ConstInt(l.Pre.Mod.Ctx.I8(), uint64(ex.Value)), nil
	case *ast.PathExpr:
		return l.lowerPath(ex)
	case *ast.UnaryExpr:
		return l.lowerUnary(ex, fc)
	case *ast.BinaryExpr:
		return l.lowerBinary(ex, fc)
	case *ast.LogicalExpr:
		return l.lowerLogical(ex, fc)
	case *ast.CastExpr:
		return l.lowerCast(ex, fc)
	case *ast.AssignExpr:
		return l.lowerAssign(ex, fc)
	case *ast.CompoundAssignExpr:
		return l.lowerCompoundAssign(ex, fc)
	case *ast.FieldExpr:
		return l.lowerFieldValue(ex, fc)
	case *ast.IndexExpr:
		return l.lowerIndexValue(ex, fc)
	case *ast.CallExpr:
		return l.lowerCall(ex, fc)
	case *ast.StructLitExpr:
		return l.lowerStructLit(ex, fc)
	case *ast.ArrayLitExpr:
		return l.lowerArrayLit(ex, fc)
	case *ast.RepeatArrayLitExpr:
		return l.lowerRepeatArrayLit(ex, fc)
	case *ast.BlockExpr:
		return l.lowerBlockValue(ex, fc)
	case *ast.IfExpr:
		return l.lowerIf(ex, fc)
	case *ast.LoopExpr:
		return l.lowerLoop(ex, fc)
	case *ast.WhileExpr:
		return l.lowerWhile(ex, fc)
	case *ast.BreakExpr:
		return l.lowerBreak(ex, fc)
	case *ast.ContinueExpr:
		return l.lowerContinue()
	case *ast.ReturnExpr:
		return l.lowerReturn(ex, fc)
	}
	return nil, diagnostic.NewIRException(diagnostic.CodeInvalidIR, "no lowering for this expression kind")
}

func (l *Lowerer) lowerPath(ex *ast.PathExpr) (ir.Value, error) {
	sym, ok := ex.Symbol.(*scope.Symbol)
	if !ok || sym == nil {
		return nil, diagnostic.NewIRException(diagnostic.CodeMissingSymbol, "path %q has no resolved symbol", pathName(ex))
	}
	switch sym.Kind {
	case scope.VariableSym:
		addr, ok := sym.IRSlot.(ir.Value)
		if !ok {
			return nil, diagnostic.NewIRException(diagnostic.CodeMissingSymbol, "variable %q has no storage slot", sym.Name)
		}
		irT := l.Pre.IRType(sym.VarType)
		if irtype.IsAggregate(irT) {
			return addr, nil
		}
		return l.B.CreateLoad(addr, irT), nil
	case scope.ConstantSym:
		g, ok := sym.IRGlobal.(*ir.GlobalVariable)
		if !ok {
			return nil, diagnostic.NewIRException(diagnostic.CodeMissingSymbol, "constant %q has no IR definition", sym.Name)
		}
		return l.B.CreateLoad(g, g.ElemType), nil
	case scope.VariantSym:
		return l.Pre.Mod.ConstInt(l.Pre.Mod.Ctx.I32(), uint64(variantIndex(sym))), nil
	}
	return nil, diagnostic.NewIRException(diagnostic.CodeInvalidIR, "path %q does not resolve to a value", sym.Name)
}

func variantIndex(sym *scope.Symbol) int {
	named, ok := sym.OwningEnum.(*types.Named)
	if !ok || named == nil {
		return 0
	}
	enumSym, ok := named.Symbol.(*scope.Symbol)
	if !ok || enumSym == nil {
		return 0
	}
	for i, name := range enumSym.Variants {
		if name == sym.Name {
			return i
		}
	}
	return 0
}

func (l *Lowerer) lowerUnary(ex *ast.UnaryExpr, fc *funcCtx) (ir.Value, error) {
	switch ex.Op {
	case ast.OpBorrow, ast.OpBorrowMut:
		return l.lowerPlace(ex.Operand, fc)
	case ast.OpDeref:
		ptr, err := l.lowerExpr(ex.Operand, fc)
		if err != nil {
			return nil, err
		}
		irT := l.Pre.IRType(ex.Meta().ResolvedType)
		if irtype.IsAggregate(irT) {
			return ptr, nil
		}
		return l.B.CreateLoad(ptr, irT), nil
	case ast.OpNeg:
		v, err := l.lowerExpr(ex.Operand, fc)
		if err != nil {
			return nil, err
		}
		zero := l.Pre.Mod.ConstInt(v.Type(), 0)
		return l.B.CreateSub(zero, v), nil
	case ast.OpNot:
		v, err := l.lowerExpr(ex.Operand, fc)
		if err != nil {
			return nil, err
		}
		// `xor 1` flips an i1; wider integers flip every bit of the width.
		mask := uint64(1)
		if it, ok := v.Type().(*irtype.IntType); ok && it.BitWidth > 1 {
			mask = (uint64(1) << it.BitWidth) - 1
		}
		return l.B.CreateXor(v, l.Pre.Mod.ConstInt(v.Type(), mask)), nil
	}
	return nil, diagnostic.NewIRException(diagnostic.CodeInvalidIR, "unsupported unary operator")
}

func isSignedType(t types.Type) bool {
	p, ok := t.(*types.Primitive)
	return ok && p.Kind.IsSigned()
}

func cmpPred(signed bool, s, u ir.ICmpPredicate) ir.ICmpPredicate {
	if signed {
		return s
	}
	return u
}

func (l *Lowerer) lowerBinary(ex *ast.BinaryExpr, fc *funcCtx) (ir.Value, error) {
	lv, err := l.lowerExpr(ex.Left, fc)
	if err != nil {
		return nil, err
	}
	rv, err := l.lowerExpr(ex.Right, fc)
	if err != nil {
		return nil, err
	}
	signed := isSignedType(ex.Left.Meta().ResolvedType)
	switch ex.Op {
	case ast.OpEq:
		return l.B.CreateICmp(ir.PredEQ, lv, rv), nil
	case ast.OpNe:
		return l.B.CreateICmp(ir.PredNE, lv, rv), nil
	case ast.OpLt:
		return l.B.CreateICmp(cmpPred(signed, ir.PredSLT, ir.PredULT), lv, rv), nil
	case ast.OpLe:
		return l.B.CreateICmp(cmpPred(signed, ir.PredSLE, ir.PredULE), lv, rv), nil
	case ast.OpGt:
		return l.B.CreateICmp(cmpPred(signed, ir.PredSGT, ir.PredUGT), lv, rv), nil
	case ast.OpGe:
		return l.B.CreateICmp(cmpPred(signed, ir.PredSGE, ir.PredUGE), lv, rv), nil
	}
	return l.applyBinOp(ex.Op, lv, rv, signed)
}

func (l *Lowerer) applyBinOp(op ast.BinaryOp, lv, rv ir.Value, signed bool) (ir.Value, error) {
	switch op {
	case ast.OpAdd:
		return l.B.CreateAdd(lv, rv), nil
	case ast.OpSub:
		return l.B.CreateSub(lv, rv), nil
	case ast.OpMul:
		return l.B.CreateMul(lv, rv), nil
	case ast.OpDiv:
		return l.B.CreateDiv(signed, lv, rv), nil
	case ast.OpRem:
		return l.B.CreateRem(signed, lv, rv), nil
	case ast.OpAnd:
		return l.B.CreateAnd(lv, rv), nil
	case ast.OpOr:
		return l.B.CreateOr(lv, rv), nil
	case ast.OpXor:
		return l.B.CreateXor(lv, rv), nil
	case ast.OpShl:
		return l.B.CreateShl(lv, rv), nil
	case ast.OpShr:
		return l.B.CreateShr(signed, lv, rv), nil
	}
	return nil, diagnostic.NewIRException(diagnostic.CodeInvalidIR, "operator is not valid here")
}

// lowerLogical implements short-circuit `&&`/`||` by branching to a block
// that only runs when the left side doesn't already decide the answer, then
// merging both outcomes with a phi.
func (l *Lowerer) lowerLogical(ex *ast.LogicalExpr, fc *funcCtx) (ir.Value, error) {
	lv, err := l.lowerExpr(ex.Left, fc)
	if err != nil {
		return nil, err
	}
	entryBlock := l.B.InsertBlock()
	rhsBlock := l.B.NewBlock("logical.rhs")
	contBlock := l.B.NewBlock("logical.end")

	var shortCircuit uint64
	trueTarget, falseTarget := rhsBlock, contBlock
	if ex.Op == ast.LogicalOr {
		shortCircuit = 1
		trueTarget, falseTarget = contBlock, rhsBlock
	}
	l.B.CreateCondBr(lv, trueTarget, falseTarget)

	l.B.SetInsertPoint(rhsBlock)
	rv, err := l.lowerExpr(ex.Right, fc)
	if err != nil {
		return nil, err
	}
	rhsEndBlock := l.B.InsertBlock()
	rhsReaches := !l.B.Terminated()
	if rhsReaches {
		l.B.CreateBr(contBlock)
	}

	l.B.SetInsertPoint(contBlock)
	i1 := l.Pre.Mod.Ctx.I1()
	phi := l.B.CreatePhi(i1)
	phi.AddIncoming(l.Pre.Mod.ConstInt(i1, shortCircuit), entryBlock)
	if rhsReaches {
		phi.AddIncoming(rv, rhsEndBlock)
	}
	return phi, nil
}

func (l *Lowerer) lowerCast(ex *ast.CastExpr, fc *funcCtx) (ir.Value, error) {
	v, err := l.lowerExpr(ex.Value, fc)
	if err != nil {
		return nil, err
	}
	srcT := l.Pre.IRType(ex.Value.Meta().ResolvedType)
	dstT := l.Pre.IRType(ex.ResolvedCast)
	srcInt, srcOK := srcT.(*irtype.IntType)
	dstInt, dstOK := dstT.(*irtype.IntType)
	if !srcOK || !dstOK {
		return nil, diagnostic.NewIRException(diagnostic.CodeInvalidCast, "cast between non-integer IR types")
	}
	if srcInt.BitWidth == dstInt.BitWidth {
		return v, nil
	}
	if srcInt.BitWidth > dstInt.BitWidth {
		return l.B.CreateTrunc(v, dstT), nil
	}
	if isSignedType(ex.Value.Meta().ResolvedType) {
		return l.B.CreateSExt(v, dstT), nil
	}
	return l.B.CreateZExt(v, dstT), nil
}

func (l *Lowerer) lowerAssign(ex *ast.AssignExpr, fc *funcCtx) (ir.Value, error) {
	place, err := l.lowerPlace(ex.Left, fc)
	if err != nil {
		return nil, err
	}
	irT := l.Pre.IRType(ex.Left.Meta().ResolvedType)
	if irtype.IsAggregate(irT) {
		src, err := l.lowerExpr(ex.Right, fc)
		if err != nil {
			return nil, err
		}
		size := l.aggregateSize(irT)
		l.B.CreateMemcpy(place, src, size)
	} else {
		v, err := l.lowerExpr(ex.Right, fc)
		if err != nil {
			return nil, err
		}
		l.B.CreateStore(v, place)
	}
	return l.unitValue(), nil
}

func (l *Lowerer) lowerCompoundAssign(ex *ast.CompoundAssignExpr, fc *funcCtx) (ir.Value, error) {
	place, err := l.lowerPlace(ex.Left, fc)
	if err != nil {
		return nil, err
	}
	irT := l.Pre.IRType(ex.Left.Meta().ResolvedType)
	cur := l.B.CreateLoad(place, irT)
	rv, err := l.lowerExpr(ex.Right, fc)
	if err != nil {
		return nil, err
	}
	result, err := l.applyBinOp(ex.Op, cur, rv, isSignedType(ex.Left.Meta().ResolvedType))
	if err != nil {
		return nil, err
	}
	l.B.CreateStore(result, place)
	return l.unitValue(), nil
}

func (l *Lowerer) lowerFieldValue(ex *ast.FieldExpr, fc *funcCtx) (ir.Value, error) {
	addr, err := l.lowerFieldPlace(ex, fc)
	if err != nil {
		return nil, err
	}
	irT := l.Pre.IRType(ex.Meta().ResolvedType)
	if irtype.IsAggregate(irT) {
		return addr, nil
	}
	return l.B.CreateLoad(addr, irT), nil
}

func (l *Lowerer) lowerIndexValue(ex *ast.IndexExpr, fc *funcCtx) (ir.Value, error) {
	addr, err := l.lowerIndexPlace(ex, fc)
	if err != nil {
		return nil, err
	}
	irT := l.Pre.IRType(ex.Meta().ResolvedType)
	if irtype.IsAggregate(irT) {
		return addr, nil
	}
	return l.B.CreateLoad(addr, irT), nil
}

// --- expressions: place (addressable) context ---

func (l *Lowerer) lowerPlace(e ast.Expr, fc *funcCtx) (out ir.Value, outErr error) {
	defer func() {
		if outErr == nil && out != nil && e != nil {
			e.Meta().IRAddr = out
		}
	}()
	switch ex := e.(type) {
	case *ast.PathExpr:
		sym, ok := ex.Symbol.(*scope.Symbol)
		if !ok || sym.Kind != scope.VariableSym {
			return nil, diagnostic.NewIRException(diagnostic.CodeNotAPlace, "path is not an addressable place")
		}
		addr, ok := sym.IRSlot.(ir.Value)
		if !ok {
			return nil, diagnostic.NewIRException(diagnostic.CodeMissingSymbol, "variable %q has no storage slot", sym.Name)
		}
		return addr, nil
	case *ast.FieldExpr:
		return l.lowerFieldPlace(ex, fc)
	case *ast.IndexExpr:
		return l.lowerIndexPlace(ex, fc)
	case *ast.UnaryExpr:
		if ex.Op == ast.OpDeref {
			return l.lowerExpr(ex.Operand, fc)
		}
	}
	return nil, diagnostic.NewIRException(diagnostic.CodeNotAPlace, "expression is not an addressable place")
}

// lowerBasePointer resolves the address of a method/field receiver,
// auto-deref'ing through a reference the same way pass 3's
// placeCategoryThroughDeref does, and returns the struct symbol backing it
// (nil if the base isn't a named struct at all).
func (l *Lowerer) lowerBasePointer(e ast.Expr, fc *funcCtx) (ir.Value, *scope.Symbol, error) {
	t := e.Meta().ResolvedType
	if ref, ok := t.(*types.Reference); ok {
		ptr, err := l.lowerExpr(e, fc)
		if err != nil {
			return nil, nil, err
		}
		sym, _ := namedStructSymbolOf(ref.Inner)
		return ptr, sym, nil
	}
	addr, err := l.lowerPlace(e, fc)
	if err != nil {
		return nil, nil, err
	}
	sym, _ := namedStructSymbolOf(t)
	return addr, sym, nil
}

func namedStructSymbolOf(t types.Type) (*scope.Symbol, bool) {
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

func fieldIndex(sym *scope.Symbol, field string) int {
	for i, n := range sym.FieldNames {
		if n == field {
			return i
		}
	}
	return 0
}

func (l *Lowerer) lowerFieldPlace(ex *ast.FieldExpr, fc *funcCtx) (ir.Value, error) {
	basePtr, structSym, err := l.lowerBasePointer(ex.Base, fc)
	if err != nil {
		return nil, err
	}
	if structSym == nil {
		return nil, diagnostic.NewIRException(diagnostic.CodeInvalidIR, "field access on a non-struct base")
	}
	structType := l.Pre.Mod.Ctx.NamedStruct(structSym.Name)
	return l.B.CreateStructGEP(basePtr, structType, fieldIndex(structSym, ex.Field)), nil
}

func (l *Lowerer) lowerIndexPlace(ex *ast.IndexExpr, fc *funcCtx) (ir.Value, error) {
	baseT := ex.Base.Meta().ResolvedType
	elemT := baseT
	var basePtr ir.Value
	var err error
	if ref, ok := baseT.(*types.Reference); ok {
		basePtr, err = l.lowerExpr(ex.Base, fc)
		elemT = ref.Inner
	} else {
		basePtr, err = l.lowerPlace(ex.Base, fc)
	}
	if err != nil {
		return nil, err
	}
	arr, ok := elemT.(*types.Array)
	if !ok {
		return nil, diagnostic.NewIRException(diagnostic.CodeInvalidIR, "index base is not an array")
	}
	idxVal, err := l.lowerExpr(ex.Index, fc)
	if err != nil {
		return nil, err
	}
	irArrType, ok := l.Pre.IRType(arr).(*irtype.ArrayType)
	if !ok {
		return nil, diagnostic.NewIRException(diagnostic.CodeInvalidIR, "array type has no IR array representation")
	}
	return l.B.CreateArrayGEP(basePtr, irArrType, idxVal), nil
}

// --- calls ---

func (l *Lowerer) lowerCall(ex *ast.CallExpr, fc *funcCtx) (ir.Value, error) {
	if ex.IsMethodCall {
		return l.lowerMethodCall(ex, fc)
	}
	pe, ok := ex.Callee.(*ast.PathExpr)
	if !ok {
		return nil, diagnostic.NewIRException(diagnostic.CodeInvalidIR, "call target is not a path")
	}
	sym, ok := pe.Symbol.(*scope.Symbol)
	if !ok || sym == nil {
		return nil, diagnostic.NewIRException(diagnostic.CodeMissingSymbol, "call target %q has no resolved symbol", pathName(pe))
	}
	if b, ok := l.Pre.Builtins.Lookup(sym.Name); ok {
		return l.lowerBuiltinCall(b, ex, fc)
	}
	return l.lowerUserCall(sym, nil, ex.Args, fc)
}

func (l *Lowerer) lowerMethodCall(ex *ast.CallExpr, fc *funcCtx) (ir.Value, error) {
	fe, ok := ex.Callee.(*ast.FieldExpr)
	if !ok {
		return nil, diagnostic.NewIRException(diagnostic.CodeInvalidIR, "method call target is not a field access")
	}
	basePtr, structSym, err := l.lowerBasePointer(fe.Base, fc)
	if err != nil {
		return nil, err
	}
	if structSym == nil {
		return nil, diagnostic.NewIRException(diagnostic.CodeMissingSymbol, "method call on a non-struct receiver")
	}
	sym := structSym.Methods[fe.Field]
	if sym == nil {
		return nil, diagnostic.NewIRException(diagnostic.CodeMissingSymbol, "method %q not found on %q", fe.Field, structSym.Name)
	}
	return l.lowerUserCall(sym, basePtr, ex.Args, fc)
}

func (l *Lowerer) lowerBuiltinCall(b *builtins.Builtin, ex *ast.CallExpr, fc *funcCtx) (ir.Value, error) {
	irFn := l.Pre.Mod.FindFunction(b.Name)
	if irFn == nil {
		return nil, diagnostic.NewIRException(diagnostic.CodeMissingSymbol, "builtin %q was not declared", b.Name)
	}
	args := make([]ir.Value, 0, len(ex.Args))
	for _, a := range ex.Args {
		v, err := l.lowerExpr(a, fc)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	call := l.B.CreateCall(b.Name, irFn.Sig, args)
	if _, void := b.Ret.(*irtype.VoidType); void {
		return l.unitValue(), nil
	}
	return call, nil
}

// lowerUserCall emits a call against the aggregate-return ABI: a
// caller-allocated return slot goes in first, then the receiver pointer (if
// any), then the arguments in source order.
func (l *Lowerer) lowerUserCall(sym *scope.Symbol, selfArg ir.Value, argExprs []ast.Expr, fc *funcCtx) (ir.Value, error) {
	irFn, ok := sym.IRFunc.(*ir.Function)
	if !ok {
		return nil, diagnostic.NewIRException(diagnostic.CodeMissingSymbol, "function %q has no IR definition", sym.Name)
	}
	retIRT := l.Pre.IRType(sym.ReturnType)
	retSlot := l.B.CreateAlloca(retIRT)
	args := []ir.Value{retSlot}
	if selfArg != nil {
		args = append(args, selfArg)
	}
	for _, a := range argExprs {
		v, err := l.lowerExpr(a, fc)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	l.B.CreateCall(irFn.Name, irFn.Sig, args)
	if irtype.IsAggregate(retIRT) {
		return retSlot, nil
	}
	if _, isUnit := sym.ReturnType.(*types.Unit); isUnit {
		return l.unitValue(), nil
	}
	return l.B.CreateLoad(retSlot, retIRT), nil
}

// --- constructors ---

// storeFieldOrElement lowers valueExpr into dst, either by storing a scalar
// value directly or by memcpying an aggregate's address, matching however
// the field/element's own IR type classifies.
func (l *Lowerer) storeFieldOrElement(dst ir.Value, valueExpr ast.Expr, irT irtype.Type, fc *funcCtx) error {
	v, err := l.lowerExpr(valueExpr, fc)
	if err != nil {
		return err
	}
	if irtype.IsAggregate(irT) {
		size := l.aggregateSize(irT)
		l.B.CreateMemcpy(dst, v, size)
		return nil
	}
	l.B.CreateStore(v, dst)
	return nil
}

func (l *Lowerer) lowerStructLit(ex *ast.StructLitExpr, fc *funcCtx) (ir.Value, error) {
	sym, ok := l.Root.LookupLocal(ex.TypeName)
	if !ok {
		return nil, diagnostic.NewIRException(diagnostic.CodeMissingSymbol, "struct %q has no declared symbol", ex.TypeName)
	}
	structType := l.Pre.Mod.Ctx.NamedStruct(ex.TypeName)
	addr := l.B.CreateAlloca(structType)
	for i, fname := range sym.FieldNames {
		var fieldExpr ast.Expr
		for _, f := range ex.Fields {
			if f.Name == fname {
				fieldExpr = f.Value
				break
			}
		}
		fieldPtr := l.B.CreateStructGEP(addr, structType, i)
		fieldIRT := l.Pre.IRType(sym.FieldTypes[fname])
		if err := l.storeFieldOrElement(fieldPtr, fieldExpr, fieldIRT, fc); err != nil {
			return nil, err
		}
	}
	return addr, nil
}

func (l *Lowerer) lowerArrayLit(ex *ast.ArrayLitExpr, fc *funcCtx) (ir.Value, error) {
	arrT, ok := ex.Meta().ResolvedType.(*types.Array)
	if !ok {
		return nil, diagnostic.NewIRException(diagnostic.CodeInvalidIR, "array literal has non-array resolved type")
	}
	irArrType, ok := l.Pre.IRType(arrT).(*irtype.ArrayType)
	if !ok {
		return nil, diagnostic.NewIRException(diagnostic.CodeInvalidIR, "array type has no IR array representation")
	}
	addr := l.B.CreateAlloca(irArrType)
	for i, el := range ex.Elements {
		idx := l.Pre.Mod.ConstInt(l.Pre.Mod.Ctx.I32(), uint64(i))
		elPtr := l.B.CreateArrayGEP(addr, irArrType, idx)
		if err := l.storeFieldOrElement(elPtr, el, irArrType.Elem, fc); err != nil {
			return nil, err
		}
	}
	return addr, nil
}

func (l *Lowerer) lowerRepeatArrayLit(ex *ast.RepeatArrayLitExpr, fc *funcCtx) (ir.Value, error) {
	arrT, ok := ex.Meta().ResolvedType.(*types.Array)
	if !ok || arrT.Length < 0 {
		return nil, diagnostic.NewIRException(diagnostic.CodeInvalidIR, "repeated array literal has no fixed length")
	}
	irArrType, ok := l.Pre.IRType(arrT).(*irtype.ArrayType)
	if !ok {
		return nil, diagnostic.NewIRException(diagnostic.CodeInvalidIR, "array type has no IR array representation")
	}
	addr := l.B.CreateAlloca(irArrType)
	elemIRT := irArrType.Elem
	aggregate := irtype.IsAggregate(elemIRT)

	elemVal, err := l.lowerExpr(ex.Value, fc)
	if err != nil {
		return nil, err
	}
	var size ir.Value
	if aggregate {
		size = l.aggregateSize(elemIRT)
	}
	for i := 0; i < arrT.Length; i++ {
		idx := l.Pre.Mod.ConstInt(l.Pre.Mod.Ctx.I32(), uint64(i))
		elPtr := l.B.CreateArrayGEP(addr, irArrType, idx)
		if aggregate {
			l.B.CreateMemcpy(elPtr, elemVal, size)
		} else {
			l.B.CreateStore(elemVal, elPtr)
		}
	}
	return addr, nil
}

// --- control flow ---

// lowerIf merges both branches with a phi whether the result is scalar or
// an aggregate address — an address is itself just an opaque ptr value, so
// the same merge mechanism serves both without a separate aggregate path.
func (l *Lowerer) lowerIf(ex *ast.IfExpr, fc *funcCtx) (ir.Value, error) {
	resultType := ex.Meta().ResolvedType
	irT := l.Pre.IRType(resultType)
	_, never := resultType.(*types.Never)
	phiType := irT
	if irtype.IsAggregate(irT) {
		phiType = l.Pre.Mod.Ctx.Ptr()
	}

	condVal, err := l.lowerExpr(ex.Cond, fc)
	if err != nil {
		return nil, err
	}
	condEndBlock := l.B.InsertBlock()

	thenBlock := l.B.NewBlock("if.then")
	contBlock := l.B.NewBlock("if.end")
	hasElse := ex.Else != nil
	elseTarget := contBlock
	var elseBlock *ir.BasicBlock
	if hasElse {
		elseBlock = l.B.NewBlock("if.else")
		elseTarget = elseBlock
	}
	l.B.CreateCondBr(condVal, thenBlock, elseTarget)

	type incomingEdge struct {
		val   ir.Value
		block *ir.BasicBlock
	}
	var incoming []incomingEdge

	l.B.SetInsertPoint(thenBlock)
	thenVal, err := l.lowerBlockValue(ex.Then, fc)
	if err != nil {
		return nil, err
	}
	if !l.B.Terminated() {
		incoming = append(incoming, incomingEdge{thenVal, l.B.InsertBlock()})
		l.B.CreateBr(contBlock)
	}

	if hasElse {
		l.B.SetInsertPoint(elseBlock)
		elseVal, err := l.lowerElseBranch(ex.Else, fc)
		if err != nil {
			return nil, err
		}
		if !l.B.Terminated() {
			incoming = append(incoming, incomingEdge{elseVal, l.B.InsertBlock()})
			l.B.CreateBr(contBlock)
		}
	} else {
		incoming = append(incoming, incomingEdge{l.unitValue(), condEndBlock})
	}

	l.B.SetInsertPoint(contBlock)
	if never && len(incoming) == 0 {
		l.B.CreateUnreachable()
		return l.unitValue(), nil
	}
	if len(incoming) == 1 {
		return incoming[0].val, nil
	}
	phi := l.B.CreatePhi(phiType)
	for _, e := range incoming {
		phi.AddIncoming(e.val, e.block)
	}
	return phi, nil
}

func (l *Lowerer) lowerElseBranch(e ast.Expr, fc *funcCtx) (ir.Value, error) {
	if be, ok := e.(*ast.BlockExpr); ok {
		return l.lowerBlockValue(be, fc)
	}
	return l.lowerExpr(e, fc)
}

func (l *Lowerer) lowerLoop(ex *ast.LoopExpr, fc *funcCtx) (ir.Value, error) {
	bodyBlock := l.B.NewBlock("loop.body")
	afterBlock := l.B.NewBlock("loop.end")
	l.B.CreateBr(bodyBlock)
	l.B.SetInsertPoint(bodyBlock)

	lc := l.B.PushLoop(bodyBlock, afterBlock)
	if _, err := l.lowerBlockValue(ex.Body, fc); err != nil {
		l.B.PopLoop()
		return nil, err
	}
	if !l.B.Terminated() {
		l.B.CreateBr(bodyBlock)
	}
	l.B.PopLoop()
	l.B.SetInsertPoint(afterBlock)

	resultType := ex.Meta().ResolvedType
	if _, never := resultType.(*types.Never); never && len(lc.BreakValues) == 0 {
		l.B.CreateUnreachable()
		return l.unitValue(), nil
	}
	if len(lc.BreakValues) == 0 {
		return l.unitValue(), nil
	}
	// Always a phi, even for a single break edge: the merge point's value
	// selection stays uniform no matter how many breaks feed it.
	irT := l.Pre.IRType(resultType)
	if irtype.IsAggregate(irT) {
		irT = l.Pre.Mod.Ctx.Ptr()
	}
	phi := l.B.CreatePhi(irT)
	for i, v := range lc.BreakValues {
		phi.AddIncoming(v, lc.BreakPreds[i])
	}
	return phi, nil
}

// lowerWhile always yields Unit — this grammar, like Rust's, only lets a
// bare `loop` carry a break value out; pass 3's inferWhile types every
// while-loop Unit regardless of what its break statements carry.
func (l *Lowerer) lowerWhile(ex *ast.WhileExpr, fc *funcCtx) (ir.Value, error) {
	condBlock := l.B.NewBlock("while.cond")
	bodyBlock := l.B.NewBlock("while.body")
	afterBlock := l.B.NewBlock("while.end")

	l.B.CreateBr(condBlock)
	l.B.SetInsertPoint(condBlock)
	condVal, err := l.lowerExpr(ex.Cond, fc)
	if err != nil {
		return nil, err
	}
	l.B.CreateCondBr(condVal, bodyBlock, afterBlock)

	l.B.SetInsertPoint(bodyBlock)
	l.B.PushWhileLoop(condBlock, bodyBlock, afterBlock)
	if _, err := l.lowerBlockValue(ex.Body, fc); err != nil {
		l.B.PopLoop()
		return nil, err
	}
	if !l.B.Terminated() {
		l.B.CreateBr(condBlock)
	}
	l.B.PopLoop()
	l.B.SetInsertPoint(afterBlock)
	return l.unitValue(), nil
}

func (l *Lowerer) lowerBreak(ex *ast.BreakExpr, fc *funcCtx) (ir.Value, error) {
	lc := l.B.CurrentLoop()
	var val ir.Value
	if ex.Value != nil {
		v, err := l.lowerExpr(ex.Value, fc)
		if err != nil {
			return nil, err
		}
		val = v
	}
	pred := l.B.InsertBlock()
	if lc != nil {
		lc.RecordBreak(val, pred)
		l.B.CreateBr(lc.AfterBlock)
	}
	return l.unitValue(), nil
}

func (l *Lowerer) lowerContinue() (ir.Value, error) {
	lc := l.B.CurrentLoop()
	if lc != nil {
		l.B.CreateBr(lc.ContinueTarget())
	}
	return l.unitValue(), nil
}

func (l *Lowerer) lowerReturn(ex *ast.ReturnExpr, fc *funcCtx) (ir.Value, error) {
	val := l.unitValue()
	if ex.Value != nil {
		v, err := l.lowerExpr(ex.Value, fc)
		if err != nil {
			return nil, err
		}
		val = v
	}
	l.emitReturn(val, fc)
	return l.unitValue(), nil
}

func pathName(pe *ast.PathExpr) string {
	parts := make([]string, len(pe.Segments))
	for i, s := range pe.Segments {
		parts[i] = s.Name
	}
	return strings.Join(parts, "::")
}
