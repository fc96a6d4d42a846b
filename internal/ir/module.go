package ir

import "github.com/rustlite/rlc/internal/irtype"

// BasicBlock is a maximal straight-line instruction sequence ending in
// exactly one terminator. Blocks are values only in the sense that
// branch/phi instructions reference them directly by pointer; they do not
// implement Value themselves since nothing ever loads or stores "a block".
type BasicBlock struct {
	Name   string
	Instrs []*Instruction
	Func   *Function
}

// Append adds instr to b, sets its owning block, and returns it. If b
// already ends with a terminator, instr is spliced in just before it rather
// than appended after: every non-empty block must end with exactly one
// terminator, so an instruction created after one (the memcpy size
// computation a `return` needs, say) must land ahead of it, never after.
func (b *BasicBlock) Append(instr *Instruction) *Instruction {
	instr.Block = b
	if term := b.Terminator(); term != nil {
		last := len(b.Instrs) - 1
		b.Instrs = append(b.Instrs, nil)
		copy(b.Instrs[last+1:], b.Instrs[last:])
		b.Instrs[last] = instr
	} else {
		b.Instrs = append(b.Instrs, instr)
	}
	return instr
}

// Terminator returns b's final instruction, or nil if b is still open.
func (b *BasicBlock) Terminator() *Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if !last.IsTerminator() {
		return nil
	}
	return last
}

// IsTerminated reports whether b already ends in a terminator, the
// condition the builder checks before emitting unreachable fallthrough
// code for something like a diverging `if` branch.
func (b *BasicBlock) IsTerminated() bool {
	return b.Terminator() != nil
}

// Function is a defined or externally declared function. Under the
// aggregate-return ABI, every user function other than `main` has a real IR
// signature that already reflects the rewritten calling convention (void-returning with a leading return
// pointer) by the time internal/predefine hands a *Function to the lowerer
// — this package itself has no ABI opinion, it just stores whatever
// irtype.FunctionType it is given.
type Function struct {
	Name          string
	Sig           *irtype.FunctionType
	Params        []*Param
	Blocks        []*BasicBlock
	IsDeclaration bool
}

// AddBlock creates, appends, and returns a new basic block named name.
// Name collisions are the caller's responsibility to avoid (irbuild keeps a
// per-function name counter for this).
func (f *Function) AddBlock(name string) *BasicBlock {
	b := &BasicBlock{Name: name, Func: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

// EntryBlock returns f's first block, or nil for a declaration.
func (f *Function) EntryBlock() *BasicBlock {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// Module is one compiled unit: a type context, named struct types in
// declaration order (so the printer can emit them before any function that
// references them), global variables, and functions.
type Module struct {
	Ctx       *irtype.Context
	Structs   []*irtype.StructType
	Globals   []*GlobalVariable
	Functions []*Function

	intConsts  map[constIntKey]*ConstantInt
	zeroConsts map[irtype.Type]*ConstantAggregateZero
	nullConst  *ConstantPointerNull
}

type constIntKey struct {
	typ irtype.Type
	val uint64
}

// NewModule creates an empty module backed by a fresh type context.
func NewModule() *Module {
	return &Module{
		Ctx:        irtype.NewContext(),
		intConsts:  make(map[constIntKey]*ConstantInt),
		zeroConsts: make(map[irtype.Type]*ConstantAggregateZero),
	}
}

// ConstInt returns the uniqued ConstantInt for (typ, val).
func (m *Module) ConstInt(typ irtype.Type, val uint64) *ConstantInt {
	key := constIntKey{typ: typ, val: val}
	if c, ok := m.intConsts[key]; ok {
		return c
	}
	c := &ConstantInt{Typ: typ, Val: val}
	m.intConsts[key] = c
	return c
}

// ConstZero returns the uniqued zeroinitializer constant for typ.
func (m *Module) ConstZero(typ irtype.Type) *ConstantAggregateZero {
	if c, ok := m.zeroConsts[typ]; ok {
		return c
	}
	c := &ConstantAggregateZero{Typ: typ}
	m.zeroConsts[typ] = c
	return c
}

// ConstNullPtr returns the module's single `null` pointer constant.
func (m *Module) ConstNullPtr() *ConstantPointerNull {
	if m.nullConst == nil {
		m.nullConst = &ConstantPointerNull{ctx: m.Ctx}
	}
	return m.nullConst
}

// DeclareStruct registers (or returns the existing) named struct type on
// the module in first-seen order, so the printer can emit type definitions
// in a stable, deterministic sequence.
func (m *Module) DeclareStruct(name string) *irtype.StructType {
	for _, s := range m.Structs {
		if s.Name == name {
			return s
		}
	}
	s := m.Ctx.NamedStruct(name)
	m.Structs = append(m.Structs, s)
	return s
}

// AddGlobal creates, registers, and returns a new global variable.
func (m *Module) AddGlobal(name string, elemType irtype.Type, init Value, isConstant bool) *GlobalVariable {
	g := &GlobalVariable{ctx: m.Ctx, Name: name, ElemType: elemType, Initializer: init, IsConstant: isConstant}
	m.Globals = append(m.Globals, g)
	return g
}

// DeclareFunction registers an external function declaration (no body).
func (m *Module) DeclareFunction(name string, sig *irtype.FunctionType) *Function {
	f := &Function{Name: name, Sig: sig, IsDeclaration: true}
	m.Functions = append(m.Functions, f)
	return f
}

// DefineFunction registers a function with a body, creating its Param
// values from sig's parameter types and the given names (which must be the
// same length as sig.Params).
func (m *Module) DefineFunction(name string, sig *irtype.FunctionType, paramNames []string) *Function {
	f := &Function{Name: name, Sig: sig}
	for i, pt := range sig.Params {
		pname := ""
		if i < len(paramNames) {
			pname = paramNames[i]
		}
		f.Params = append(f.Params, &Param{Name: pname, Typ: pt})
	}
	m.Functions = append(m.Functions, f)
	return f
}

// FindFunction returns the function named name, or nil if none is
// registered yet.
func (m *Module) FindFunction(name string) *Function {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}
