// Package irtype implements the identity-uniqued IR type system: every
// request for "i32" or "[4 x i32]" returns the same *Type value, so two
// types can be compared with == instead of a structural Equals call — the
// opposite design from internal/types, whose resolved source-level types
// compare structurally because they are never interned.
//
// The shape is one sealed interface (Type) with an unexported marker
// method and one concrete struct per type kind, switched on by lowering
// and the printer.
package irtype

import (
	"fmt"
	"strings"
)

// Type is the sealed interface every IR type implements.
type Type interface {
	String() string
	isType()
}

// VoidType is the nullary result type of every non-returning instruction and
// of aggregate-return functions, whose real result goes out through a
// pointer parameter instead under the aggregate-return ABI.
type VoidType struct{}

func (*VoidType) isType()        {}
func (*VoidType) String() string { return "void" }

// IntType is an N-bit two's-complement integer. Signedness is not part of
// the IR type, exactly as LLVM itself does it — the lowerer picks
// signed or unsigned opcodes per operation from the source-level type it is
// lowering, and the IR type only ever records the width.
type IntType struct{ BitWidth uint }

func (*IntType) isType()        {}
func (t *IntType) String() string { return fmt.Sprintf("i%d", t.BitWidth) }

// PointerType is LLVM's opaque pointer: it carries no pointee type at all
// at all, so there is exactly one PointerType value per
// context, unlike pre-opaque-pointer LLVM's T* family.
type PointerType struct{}

func (*PointerType) isType()        {}
func (*PointerType) String() string { return "ptr" }

// ArrayType is a fixed-length homogeneous aggregate, `[N x T]`.
type ArrayType struct {
	Elem  Type
	Count int
}

func (*ArrayType) isType() {}
func (t *ArrayType) String() string {
	return fmt.Sprintf("[%d x %s]", t.Count, t.Elem.String())
}

// StructType is a named aggregate. Structs are created forward-declared
// (Fields == nil) so a type can reference itself or a not-yet-seen sibling
// through a pointer field, then completed once with SetBody — mirroring how
// LLVM itself requires a named %struct.Foo to exist as a handle before its
// body is known.
type StructType struct {
	Name   string
	Fields []Type
}

func (*StructType) isType() {}
func (t *StructType) String() string { return "%struct." + t.Name }

// IsOpaque reports whether SetBody has not yet been called.
func (t *StructType) IsOpaque() bool { return t.Fields == nil }

// FunctionType is a function signature, `Ret (Params...)`. It is never a
// first-class value in this IR (there are no function pointers in the
// source language), but the object model still needs it to describe a
// declared or defined Function's signature uniformly.
type FunctionType struct {
	Params   []Type
	Ret      Type
	Variadic bool
}

func (*FunctionType) isType() {}
func (t *FunctionType) String() string {
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.String()
	}
	if t.Variadic {
		parts = append(parts, "...")
	}
	return fmt.Sprintf("%s (%s)", t.Ret.String(), strings.Join(parts, ", "))
}

// Context interns every IR type so that structurally identical requests
//(two calls asking for `i32`, or for `[4 x i32]` built from the same Elem
// and Count) return the same pointer.
type Context struct {
	voidType *VoidType
	ptrType  *PointerType
	intTypes map[uint]*IntType
	arrTypes map[arrayKey]*ArrayType
	fnTypes  map[string]*FunctionType
	structs  map[string]*StructType
}

type arrayKey struct {
	elem  Type
	count int
}

// NewContext creates an empty, ready-to-use type context.
func NewContext() *Context {
	return &Context{
		voidType: &VoidType{},
		ptrType:  &PointerType{},
		intTypes: make(map[uint]*IntType),
		arrTypes: make(map[arrayKey]*ArrayType),
		fnTypes:  make(map[string]*FunctionType),
		structs:  make(map[string]*StructType),
	}
}

// Void returns the context's single VoidType.
func (c *Context) Void() *VoidType { return c.voidType }

// Ptr returns the context's single opaque PointerType.
func (c *Context) Ptr() *PointerType { return c.ptrType }

// Int returns the unique IntType of the given bit width.
func (c *Context) Int(bitWidth uint) *IntType {
	if t, ok := c.intTypes[bitWidth]; ok {
		return t
	}
	t := &IntType{BitWidth: bitWidth}
	c.intTypes[bitWidth] = t
	return t
}

// I1, I8, I32, I64 name the bit widths this IR actually uses: i1 for booleans
// and comparison results, i8 for bytes and chars, i32/i64 for the source
// language's concrete integer types and pointer-sized arithmetic.
func (c *Context) I1() *IntType  { return c.Int(1) }
func (c *Context) I8() *IntType  { return c.Int(8) }
func (c *Context) I32() *IntType { return c.Int(32) }
func (c *Context) I64() *IntType { return c.Int(64) }

// Array returns the unique ArrayType of elem and count.
func (c *Context) Array(elem Type, count int) *ArrayType {
	key := arrayKey{elem: elem, count: count}
	if t, ok := c.arrTypes[key]; ok {
		return t
	}
	t := &ArrayType{Elem: elem, Count: count}
	c.arrTypes[key] = t
	return t
}

// Function returns the unique FunctionType for the given signature.
func (c *Context) Function(params []Type, ret Type, variadic bool) *FunctionType {
	key := functionKey(params, ret, variadic)
	if t, ok := c.fnTypes[key]; ok {
		return t
	}
	t := &FunctionType{Params: append([]Type(nil), params...), Ret: ret, Variadic: variadic}
	c.fnTypes[key] = t
	return t
}

func functionKey(params []Type, ret Type, variadic bool) string {
	var b strings.Builder
	b.WriteString(ret.String())
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.String())
	}
	if variadic {
		b.WriteString(",...")
	}
	b.WriteByte(')')
	return b.String()
}

// NamedStruct returns the named struct type for name, creating a forward
// declaration (IsOpaque() == true) on first use. Every later call with the
// same name returns the same *StructType, whether or not its body has been
// filled in yet — the identity is the name.
func (c *Context) NamedStruct(name string) *StructType {
	if t, ok := c.structs[name]; ok {
		return t
	}
	t := &StructType{Name: name}
	c.structs[name] = t
	return t
}

// SetBody completes a forward-declared struct type. Calling it twice on the
// same type is a programmer error in the lowering pipeline — structs are
// defined exactly once — so it panics rather than silently overwriting.
func (t *StructType) SetBody(fields []Type) {
	if t.Fields != nil {
		panic(fmt.Sprintf("irtype: struct %q body already set", t.Name))
	}
	t.Fields = fields
}

// IsAggregate reports whether t is a struct or array type, used by
// internal/predefine and internal/lower to decide between a scalar
// load/store and a pointer-passing/memcpy ABI.
func IsAggregate(t Type) bool {
	switch t.(type) {
	case *StructType, *ArrayType:
		return true
	default:
		return false
	}
}

// IsPointer reports whether t is the opaque pointer type.
func IsPointer(t Type) bool {
	_, ok := t.(*PointerType)
	return ok
}
