package layout

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rustlite/rlc/internal/irtype"
)

func TestIntLayoutSizes(t *testing.T) {
	c := NewComputer()
	ctx := irtype.NewContext()

	require.Equal(t, Layout{Size: 1, Align: 1}, c.Of(ctx.I1()))
	require.Equal(t, Layout{Size: 1, Align: 1}, c.Of(ctx.I8()))
	require.Equal(t, Layout{Size: 4, Align: 4}, c.Of(ctx.I32()))
}

func TestPointerLayout(t *testing.T) {
	c := NewComputer()
	ctx := irtype.NewContext()
	require.Equal(t, Layout{Size: 8, Align: 8}, c.Of(ctx.Ptr()))
}

func TestArrayLayoutMultipliesByStride(t *testing.T) {
	c := NewComputer()
	ctx := irtype.NewContext()
	arr := ctx.Array(ctx.I32(), 4)
	require.Equal(t, Layout{Size: 16, Align: 4}, c.Of(arr))
}

func TestStructLayoutPacksAndAlignsFields(t *testing.T) {
	c := NewComputer()
	ctx := irtype.NewContext()
	st := ctx.NamedStruct("P")
	st.SetBody([]irtype.Type{ctx.I32(), ctx.I32()})

	l := c.Of(st)
	require.Equal(t, 8, l.Size)
	require.Equal(t, 4, l.Align)
}

func TestStructLayoutIsCachedByName(t *testing.T) {
	c := NewComputer()
	ctx := irtype.NewContext()
	st := ctx.NamedStruct("P")
	st.SetBody([]irtype.Type{ctx.I8(), ctx.I32()})

	first := c.Of(st)
	second := c.Of(st)
	require.Equal(t, first, second)
	// a leading i8 followed by an i32 pads the i8 field out to 4-byte
	// alignment before the i32, for a total size of 8.
	require.Equal(t, 8, first.Size)
}

func TestFieldOffsetAccountsForPadding(t *testing.T) {
	c := NewComputer()
	ctx := irtype.NewContext()
	st := ctx.NamedStruct("Mixed")
	st.SetBody([]irtype.Type{ctx.I8(), ctx.I32()})

	require.Equal(t, 0, c.FieldOffset(st, 0))
	require.Equal(t, 4, c.FieldOffset(st, 1))
}

func TestStrideMatchesRoundedElementSize(t *testing.T) {
	c := NewComputer()
	ctx := irtype.NewContext()
	require.Equal(t, 4, c.Stride(ctx.I32()))
	require.Equal(t, 1, c.Stride(ctx.I8()))
}
