// Package layout computes the size and alignment of IR types, feeding the
// AST lowerer's `memcpy` byte count for value-semantic array copies
// (array assignment, `[e; N]` repeated array literals).
//
// The computer recurses over a type tree, caches completed struct layouts
// by name to short-circuit recursive field references, and rounds offsets
// up to each field's alignment as it goes, following the C-struct layout of
// LLVM's default data layout: every field packed at its natural alignment,
// struct size rounded up to its own alignment.
package layout

import "github.com/rustlite/rlc/internal/irtype"

// Layout is a type's size and alignment in bytes.
type Layout struct {
	Size  int
	Align int
}

// Computer memoizes struct layouts by name so a self-referential or
// mutually-referential set of structs (reached only through a pointer
// field) never recurses unboundedly — every aggregate field in this
// language is either a scalar, a fixed-size array, or a nested struct by
// value, and the type-check passes reject a struct containing itself by
// value before layout ever runs.
type Computer struct {
	cache map[string]Layout
}

// NewComputer creates an empty layout computer.
func NewComputer() *Computer {
	return &Computer{cache: make(map[string]Layout)}
}

// Of computes the layout of t, recursing into array element types and
// struct fields as needed.
func (c *Computer) Of(t irtype.Type) Layout {
	switch tt := t.(type) {
	case *irtype.IntType:
		return intLayout(tt.BitWidth)
	case *irtype.PointerType:
		return Layout{Size: 8, Align: 8}
	case *irtype.VoidType:
		return Layout{Size: 0, Align: 1}
	case *irtype.ArrayType:
		elem := c.Of(tt.Elem)
		stride := roundUp(elem.Size, elem.Align)
		return Layout{Size: stride * tt.Count, Align: elem.Align}
	case *irtype.StructType:
		return c.structLayout(tt)
	default:
		return Layout{Size: 0, Align: 1}
	}
}

// Stride returns the per-element byte stride of an array type — the size
// each element occupies including its own trailing alignment padding, used
// by the lowerer to compute an array copy's per-element byte count.
func (c *Computer) Stride(elem irtype.Type) int {
	l := c.Of(elem)
	return roundUp(l.Size, l.Align)
}

// FieldOffset returns the byte offset of fieldIndex within st, recomputing
// the same packing Of(st) used to arrive at st's total size. Exposed
// separately from Of because the Pre-definer only ever needs the whole
// struct's size (via the gep-null-1 idiom, not a hand-computed offset
// table) while the lowerer's GEP-based field access needs no offsets at
// all — GEP addresses fields structurally — so this is kept for tests and
// any future consumer wanting a host-side offset table.
func (c *Computer) FieldOffset(st *irtype.StructType, fieldIndex int) int {
	offset := 0
	maxAlign := 1
	for i, f := range st.Fields {
		fl := c.Of(f)
		if fl.Align > maxAlign {
			maxAlign = fl.Align
		}
		offset = roundUp(offset, fl.Align)
		if i == fieldIndex {
			return offset
		}
		offset += fl.Size
	}
	return offset
}

func (c *Computer) structLayout(st *irtype.StructType) Layout {
	if l, ok := c.cache[st.Name]; ok {
		return l
	}
	// Placeholder while computing: a struct referencing itself only
	// through a pointer field (opaque, sized 8/8) never reaches back into
	// this branch.
	c.cache[st.Name] = Layout{}

	offset := 0
	maxAlign := 1
	for _, f := range st.Fields {
		fl := c.Of(f)
		if fl.Align == 0 {
			fl.Align = 1
		}
		offset = roundUp(offset, fl.Align)
		offset += fl.Size
		if fl.Align > maxAlign {
			maxAlign = fl.Align
		}
	}
	result := Layout{Size: roundUp(offset, maxAlign), Align: maxAlign}
	c.cache[st.Name] = result
	return result
}

// intLayout follows LLVM's default data layout: i1/i8 occupy one byte,
// wider integers occupy bitWidth/8 bytes, both sized and aligned the same
// (this language's only integer widths are 1, 8, and 32, none of which hit
// a platform ABI's larger alignment-vs-size split).
func intLayout(bitWidth uint) Layout {
	if bitWidth <= 8 {
		return Layout{Size: 1, Align: 1}
	}
	bytes := int((bitWidth + 7) / 8)
	return Layout{Size: bytes, Align: bytes}
}

func roundUp(x, align int) int {
	if align <= 0 {
		return x
	}
	return ((x + align - 1) / align) * align
}
