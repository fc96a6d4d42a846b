// Package predefine is the pipeline stage that runs after the five
// semantic passes and the integer-type confirmer, and before internal/lower
// ever touches a function body. It turns the fully-resolved scope tree into
// the skeleton of an ir.Module — struct bodies and their `S.size` helper
// functions, integer constant globals, and every function's ABI-rewritten
// signature — so that by the time lowering walks a function body, every
// name it needs (a struct's IR type, a constant's value, a callee's
// *ir.Function) already exists.
//
// Struct bodies need a fixed-point ordering because SetBody must run
// exactly once per struct and only after every by-value nested struct is
// already complete.
package predefine

import (
	"fmt"

	"github.com/rustlite/rlc/internal/ast"
	"github.com/rustlite/rlc/internal/builtins"
	"github.com/rustlite/rlc/internal/diagnostic"
	"github.com/rustlite/rlc/internal/ir"
	"github.com/rustlite/rlc/internal/irbuild"
	"github.com/rustlite/rlc/internal/irtype"
	"github.com/rustlite/rlc/internal/layout"
	"github.com/rustlite/rlc/internal/scope"
	"github.com/rustlite/rlc/internal/types"
)

// Predefiner owns the ir.Module being built and the already-resolved crate
// scope it reads types and symbols from.
type Predefiner struct {
	AST  *ast.Module
	Root *scope.Scope

	Mod      *ir.Module
	Layout   *layout.Computer
	Builtins *builtins.Table

	constDeclOf map[*scope.Symbol]*ast.ConstDecl
}

// New creates a Predefiner over a fresh, empty module, ready to run against
// a fully analyzed AST.
func New(mod *ast.Module, root *scope.Scope) *Predefiner {
	m := ir.NewModule()
	return &Predefiner{
		AST:         mod,
		Root:        root,
		Mod:         m,
		Layout:      layout.NewComputer(),
		Builtins:    builtins.New(m.Ctx),
		constDeclOf: make(map[*scope.Symbol]*ast.ConstDecl),
	}
}

// Run executes every step in dependency order: struct bodies and size
// functions, then constant globals (which may themselves reference other
// constants), then the external runtime declarations, then every function's
// ABI-rewritten signature.
func (p *Predefiner) Run() error {
	p.collectConstDecls()
	if err := p.DefineStructs(); err != nil {
		return err
	}
	if err := p.DefineConstants(); err != nil {
		return err
	}
	p.DeclareBuiltins()
	if err := p.DeclareFunctions(); err != nil {
		return err
	}
	return nil
}

// ----------------------------------------------------------------------------
// Resolved-type -> IR-type conversion
// ----------------------------------------------------------------------------

// IRType converts a resolved source-level type to its IR representation:
// booleans to i1, char to i8, every concrete
// integer width to i32 (the source language has no 64-bit integer type),
// references to the opaque pointer type, arrays to the matching ArrayType,
// struct names to the module's named struct type, enums to a plain i32 tag,
// and () to i8 — a one-byte placeholder so a Unit-returning function still
// has a real type to write through its return pointer, uniformly with
// every other function (the aggregate-return ABI has no exceptions for
// the payload type).
func (p *Predefiner) IRType(t types.Type) irtype.Type {
	switch tt := t.(type) {
	case *types.Primitive:
		switch tt.Kind {
		case types.Bool:
			return p.Mod.Ctx.I1()
		case types.Char:
			return p.Mod.Ctx.I8()
		case types.I32, types.U32, types.Isize, types.Usize:
			return p.Mod.Ctx.I32()
		default:
			panic(fmt.Sprintf("predefine: placeholder type %s reached IR lowering", tt.Kind))
		}
	case *types.Reference:
		return p.Mod.Ctx.Ptr()
	case *types.Array:
		return p.Mod.Ctx.Array(p.IRType(tt.Element), tt.Length)
	case *types.Named:
		if sym, ok := tt.Symbol.(*scope.Symbol); ok && sym.Kind == scope.EnumSym {
			return p.Mod.Ctx.I32()
		}
		return p.Mod.DeclareStruct(tt.Name)
	case *types.Unit:
		return p.Mod.Ctx.I8()
	default:
		panic(fmt.Sprintf("predefine: type %s has no IR representation", t.String()))
	}
}

// ----------------------------------------------------------------------------
// Structs
// ----------------------------------------------------------------------------

// DefineStructs forward-declares every struct name, then fills in bodies in
// a fixed-point order so a struct can hold another struct by value as long
// as that nested struct's body is already complete. No sema pass checks for
// a struct that contains itself by value, directly or through other
// structs; such a cycle shows up here as a round that makes no progress at
// all, which is reported as an InvalidIR exception.
// Every completed struct gets its `S.size` function, built on the
// `gep null, 1; ptrtoint` idiom.
func (p *Predefiner) DefineStructs() error {
	var order []string
	var pending []*scope.Symbol
	for _, d := range p.AST.Decls {
		sd, ok := d.(*ast.StructDecl)
		if !ok {
			continue
		}
		sym, ok := p.Root.LookupLocal(sd.Name)
		if !ok {
			return diagnostic.NewIRException(diagnostic.CodeMissingSymbol, "struct %q has no declared symbol", sd.Name)
		}
		p.Mod.DeclareStruct(sd.Name)
		order = append(order, sd.Name)
		pending = append(pending, sym)
	}

	for len(pending) > 0 {
		var next []*scope.Symbol
		progressed := false
		for _, sym := range pending {
			if p.structFieldsReady(sym) {
				p.fillStructBody(sym)
				progressed = true
			} else {
				next = append(next, sym)
			}
		}
		if !progressed {
			names := make([]string, len(next))
			for i, s := range next {
				names[i] = s.Name
			}
			return diagnostic.NewIRException(diagnostic.CodeInvalidIR, "unresolvable by-value struct cycle among %v", names)
		}
		pending = next
	}

	for _, name := range order {
		p.defineSizeFunction(name)
	}
	return nil
}

func (p *Predefiner) structFieldsReady(sym *scope.Symbol) bool {
	for _, fname := range sym.FieldNames {
		named, ok := sym.FieldTypes[fname].(*types.Named)
		if !ok {
			continue
		}
		fsym, ok := named.Symbol.(*scope.Symbol)
		if !ok || fsym.Kind != scope.StructSym {
			continue
		}
		if p.Mod.Ctx.NamedStruct(fsym.Name).IsOpaque() {
			return false
		}
	}
	return true
}

func (p *Predefiner) fillStructBody(sym *scope.Symbol) {
	fields := make([]irtype.Type, len(sym.FieldNames))
	for i, fname := range sym.FieldNames {
		fields[i] = p.IRType(sym.FieldTypes[fname])
	}
	p.Mod.Ctx.NamedStruct(sym.Name).SetBody(fields)
}

// defineSizeFunction emits `define i32 @S.size() { ... }`, computing the
// struct's byte size through the canonical null-GEP idiom rather than any
// target-specific sizeof.
func (p *Predefiner) defineSizeFunction(structName string) {
	st := p.Mod.Ctx.NamedStruct(structName)
	sig := p.Mod.Ctx.Function(nil, p.Mod.Ctx.I32(), false)
	fn := p.Mod.DefineFunction(structName+".size", sig, nil)

	b := irbuild.New(p.Mod)
	b.SetFunction(fn)
	b.SetInsertPoint(fn.AddBlock("entry"))
	size := b.CreateMemcpySize(st)
	b.CreateRet(size)
}

// ----------------------------------------------------------------------------
// Constants
// ----------------------------------------------------------------------------

// collectConstDecls indexes every ConstDecl (crate-level and per-impl) by
// the symbol pass 1 created for it, so the constant evaluator can find a
// referenced constant's defining expression starting only from its symbol.
func (p *Predefiner) collectConstDecls() {
	for _, d := range p.AST.Decls {
		switch decl := d.(type) {
		case *ast.ConstDecl:
			if sym, ok := p.Root.LookupLocal(decl.Name); ok {
				p.constDeclOf[sym] = decl
			}
		case *ast.ImplDecl:
			targetSym, ok := p.Root.LookupLocal(decl.TypeName)
			if !ok {
				continue
			}
			for _, c := range decl.Consts {
				if sym := targetSym.AssocConsts[c.Name]; sym != nil {
					p.constDeclOf[sym] = c
				}
			}
		}
	}
}

// DefineConstants evaluates and emits every module-level and associated
// constant as `@Name = constant i32 V`; only integer constants are
// admitted at IR time, any other type is rejected with an IRException.
// Constants may reference other constants in any declaration order; the
// evaluator resolves each lazily and memoizes the result on its symbol.
func (p *Predefiner) DefineConstants() error {
	visiting := make(map[*scope.Symbol]bool)
	for _, d := range p.AST.Decls {
		switch decl := d.(type) {
		case *ast.ConstDecl:
			sym, ok := p.Root.LookupLocal(decl.Name)
			if !ok {
				return diagnostic.NewIRException(diagnostic.CodeMissingSymbol, "constant %q has no declared symbol", decl.Name)
			}
			if err := p.defineConstantGlobal(decl.Name, sym, visiting); err != nil {
				return err
			}
		case *ast.ImplDecl:
			targetSym, ok := p.Root.LookupLocal(decl.TypeName)
			if !ok {
				continue
			}
			for _, c := range decl.Consts {
				sym := targetSym.AssocConsts[c.Name]
				if sym == nil {
					continue
				}
				if err := p.defineConstantGlobal(targetSym.Name+"."+c.Name, sym, visiting); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (p *Predefiner) defineConstantGlobal(globalName string, sym *scope.Symbol, visiting map[*scope.Symbol]bool) error {
	if !types.IsConcreteInteger(sym.ConstType) {
		return diagnostic.NewIRException(diagnostic.CodeNonIntegerConstant,
			"constant %q has type %s, which has no IR-time representation", sym.Name, sym.ConstType.String())
	}
	val, err := p.evalConstSymbol(sym, visiting)
	if err != nil {
		return err
	}
	irT := p.IRType(sym.ConstType)
	g := p.Mod.AddGlobal(globalName, irT, p.Mod.ConstInt(irT, val), true)
	sym.IRGlobal = g
	return nil
}

// evalConstSymbol resolves sym's compile-time value, memoizing onto
// sym.ConstValue/HasValue so a constant referenced from several places is
// evaluated once.
func (p *Predefiner) evalConstSymbol(sym *scope.Symbol, visiting map[*scope.Symbol]bool) (uint64, error) {
	if sym.HasValue {
		return sym.ConstValue, nil
	}
	if visiting[sym] {
		return 0, diagnostic.NewIRException(diagnostic.CodeInvalidIR, "constant %q has a circular definition", sym.Name)
	}
	decl, ok := p.constDeclOf[sym]
	if !ok {
		return 0, diagnostic.NewIRException(diagnostic.CodeMissingSymbol, "constant %q has no recorded definition", sym.Name)
	}
	visiting[sym] = true
	val, err := p.evalConstExpr(decl.Value, visiting)
	delete(visiting, sym)
	if err != nil {
		return 0, err
	}
	sym.ConstValue = val
	sym.HasValue = true
	return val, nil
}

// evalConstExpr is a minimal compile-time evaluator over the small subset
// of expressions admissible in a `const` initializer: integer literals,
// unary negation/bitwise-not, strict binary arithmetic, and references to
// other constants — one case per operator the AST already names.
func (p *Predefiner) evalConstExpr(e ast.Expr, visiting map[*scope.Symbol]bool) (uint64, error) {
	switch ex := e.(type) {
	case *ast.IntLitExpr:
		return ex.Value, nil
	case *ast.UnaryExpr:
		v, err := p.evalConstExpr(ex.Operand, visiting)
		if err != nil {
			return 0, err
		}
		switch ex.Op {
		case ast.OpNeg:
			return uint64(-int64(v)), nil
		case ast.OpNot:
			return ^v, nil
		}
		return 0, diagnostic.NewIRException(diagnostic.CodeNonIntegerConstant, "operator not permitted in a compile-time constant expression")
	case *ast.BinaryExpr:
		l, err := p.evalConstExpr(ex.Left, visiting)
		if err != nil {
			return 0, err
		}
		r, err := p.evalConstExpr(ex.Right, visiting)
		if err != nil {
			return 0, err
		}
		return evalIntOp(ex.Op, l, r, isSignedExpr(ex.Left))
	case *ast.PathExpr:
		sym, ok := ex.Symbol.(*scope.Symbol)
		if !ok || sym.Kind != scope.ConstantSym {
			return 0, diagnostic.NewIRException(diagnostic.CodeNonIntegerConstant, "only another constant may appear in a compile-time constant expression")
		}
		return p.evalConstSymbol(sym, visiting)
	default:
		return 0, diagnostic.NewIRException(diagnostic.CodeNonIntegerConstant, "expression is not a compile-time constant")
	}
}

func isSignedExpr(e ast.Expr) bool {
	p, ok := e.Meta().ResolvedType.(*types.Primitive)
	return ok && p.Kind.IsSigned()
}

func evalIntOp(op ast.BinaryOp, l, r uint64, signed bool) (uint64, error) {
	switch op {
	case ast.OpAdd:
		return l + r, nil
	case ast.OpSub:
		return l - r, nil
	case ast.OpMul:
		return l * r, nil
	case ast.OpDiv:
		if r == 0 {
			return 0, diagnostic.NewIRException(diagnostic.CodeInvalidIR, "division by zero in constant expression")
		}
		if signed {
			return uint64(int64(l) / int64(r)), nil
		}
		return l / r, nil
	case ast.OpRem:
		if r == 0 {
			return 0, diagnostic.NewIRException(diagnostic.CodeInvalidIR, "division by zero in constant expression")
		}
		if signed {
			return uint64(int64(l) % int64(r)), nil
		}
		return l % r, nil
	case ast.OpAnd:
		return l & r, nil
	case ast.OpOr:
		return l | r, nil
	case ast.OpXor:
		return l ^ r, nil
	case ast.OpShl:
		return l << r, nil
	case ast.OpShr:
		if signed {
			return uint64(int64(l) >> r), nil
		}
		return l >> r, nil
	default:
		return 0, diagnostic.NewIRException(diagnostic.CodeNonIntegerConstant, "operator not permitted in a compile-time constant expression")
	}
}

// ----------------------------------------------------------------------------
// External runtime functions
// ----------------------------------------------------------------------------

// DeclareBuiltins declares printInt/printlnInt/getInt on the module.
// llvm.memcpy.p0.p0.i32 is deliberately
// left out here — irbuild.CreateMemcpy declares it lazily on first use, so
// a module with no aggregate copies never carries an unused intrinsic
// declaration.
func (p *Predefiner) DeclareBuiltins() {
	for _, name := range []string{builtins.PrintInt, builtins.PrintlnInt, builtins.GetInt} {
		b, ok := p.Builtins.Lookup(name)
		if !ok {
			continue
		}
		if p.Mod.FindFunction(name) == nil {
			p.Mod.DeclareFunction(name, b.Signature(p.Mod.Ctx))
		}
	}
}

// ----------------------------------------------------------------------------
// Functions
// ----------------------------------------------------------------------------

// DeclareFunctions builds every user function's ABI-rewritten signature:
// a void-returning function taking a leading return-pointer
// parameter (every non-main function, regardless of whether its source
// return type is scalar, aggregate, or unit), then a self pointer for
// methods, then its ordinary parameters — aggregate-typed parameters
// passed by pointer like everything else at this ABI boundary. `main` is
// exempt, keeping its natural scalar or void return so the process entry
// point still has a signature a C runtime's _start expects.
func (p *Predefiner) DeclareFunctions() error {
	for _, d := range p.AST.Decls {
		switch decl := d.(type) {
		case *ast.FnDecl:
			if err := p.declareFunction(decl, nil); err != nil {
				return err
			}
		case *ast.ImplDecl:
			targetSym, ok := p.Root.LookupLocal(decl.TypeName)
			if !ok {
				return diagnostic.NewIRException(diagnostic.CodeMissingSymbol, "impl target %q not found", decl.TypeName)
			}
			for _, fn := range decl.Functions {
				if err := p.declareFunction(fn, targetSym); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (p *Predefiner) declareFunction(fn *ast.FnDecl, owner *scope.Symbol) error {
	name := fn.Name
	var sym *scope.Symbol
	if owner == nil {
		s, ok := p.Root.LookupLocal(fn.Name)
		if !ok {
			return diagnostic.NewIRException(diagnostic.CodeMissingSymbol, "function %q has no declared symbol", fn.Name)
		}
		sym = s
	} else {
		name = owner.Name + "." + fn.Name
		if fn.Self != nil {
			sym = owner.Methods[fn.Name]
		} else {
			sym = owner.AssocFuncs[fn.Name]
		}
		if sym == nil {
			return diagnostic.NewIRException(diagnostic.CodeMissingSymbol, "function %q has no declared symbol", name)
		}
	}

	isMain := owner == nil && fn.Name == "main"

	var paramTypes []irtype.Type
	var paramNames []string

	if !isMain {
		paramTypes = append(paramTypes, p.Mod.Ctx.Ptr())
		paramNames = append(paramNames, "ret")
	}
	if fn.Self != nil {
		paramTypes = append(paramTypes, p.Mod.Ctx.Ptr())
		paramNames = append(paramNames, "self")
	}
	for i, pt := range sym.ParamTypes {
		irT := p.IRType(pt)
		if irtype.IsAggregate(irT) {
			paramTypes = append(paramTypes, p.Mod.Ctx.Ptr())
		} else {
			paramTypes = append(paramTypes, irT)
		}
		if i < len(sym.ParamNames) {
			paramNames = append(paramNames, sym.ParamNames[i])
		} else {
			paramNames = append(paramNames, fmt.Sprintf("arg%d", i))
		}
	}

	var ret irtype.Type = p.Mod.Ctx.Void()
	if isMain {
		if _, isUnit := sym.ReturnType.(*types.Unit); !isUnit {
			ret = p.IRType(sym.ReturnType)
		}
	}

	sig := p.Mod.Ctx.Function(paramTypes, ret, false)
	irFn := p.Mod.DefineFunction(name, sig, paramNames)
	sym.IRFunc = irFn
	return nil
}
