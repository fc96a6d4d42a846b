// Package builtins defines the external C-runtime surface the generated
// module declares and calls: a name-indexed Table populated once, looked
// up by name at call-lowering time. The surface is exactly four fixed
// signatures with no overloading, so Lookup returns one signature per
// name, never a set to resolve against.
package builtins

import "github.com/rustlite/rlc/internal/irtype"

// Builtin is one external runtime function's call signature, expressed in
// IR types so internal/predefine can declare it and internal/lower can
// type-check a call against it without re-deriving the signature.
type Builtin struct {
	Name   string
	Params []irtype.Type
	Ret    irtype.Type // ctx.Void() for a void-returning builtin
}

// Names of the four runtime entry points.
const (
	PrintInt   = "printInt"
	PrintlnInt = "printlnInt"
	GetInt     = "getInt"
	MemcpyName = "llvm.memcpy.p0.p0.i32"
)

// Table maps each external runtime function's name to its declared
// signature. Built once per irtype.Context since the signatures reference
// that context's uniqued types.
type Table struct {
	entries map[string]*Builtin
}

// New builds the fixed four-entry builtin table over ctx.
func New(ctx *irtype.Context) *Table {
	t := &Table{entries: make(map[string]*Builtin)}
	t.register(&Builtin{Name: PrintInt, Params: []irtype.Type{ctx.I32()}, Ret: ctx.Void()})
	t.register(&Builtin{Name: PrintlnInt, Params: []irtype.Type{ctx.I32()}, Ret: ctx.Void()})
	t.register(&Builtin{Name: GetInt, Params: nil, Ret: ctx.I32()})
	t.register(&Builtin{
		Name:   MemcpyName,
		Params: []irtype.Type{ctx.Ptr(), ctx.Ptr(), ctx.I32(), ctx.I1()},
		Ret:    ctx.Void(),
	})
	return t
}

func (t *Table) register(b *Builtin) { t.entries[b.Name] = b }

// Lookup returns the builtin registered under name, or (nil, false) if name
// is not one of the four external runtime functions.
func (t *Table) Lookup(name string) (*Builtin, bool) {
	b, ok := t.entries[name]
	return b, ok
}

// IsBuiltin reports whether name names one of the external runtime
// functions (printInt/printlnInt/getInt).
func (t *Table) IsBuiltin(name string) bool {
	_, ok := t.entries[name]
	return ok
}

// Signature returns a FunctionType for b, as internal/predefine needs when
// declaring it on the module.
func (b *Builtin) Signature(ctx *irtype.Context) *irtype.FunctionType {
	return ctx.Function(b.Params, b.Ret, false)
}
