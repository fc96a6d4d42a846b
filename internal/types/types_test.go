package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnifyEqualTypes(t *testing.T) {
	got, err := Unify(I32Type, I32Type)
	require.NoError(t, err)
	require.True(t, got.Equals(I32Type))
}

func TestUnifyNeverYieldsOther(t *testing.T) {
	got, err := Unify(NeverType, BoolType)
	require.NoError(t, err)
	require.True(t, got.Equals(BoolType))

	got, err = Unify(I32Type, NeverType)
	require.NoError(t, err)
	require.True(t, got.Equals(I32Type))
}

func TestUnifyIntPlaceholderWithConcrete(t *testing.T) {
	got, err := Unify(IntPlaceholderType, U32Type)
	require.NoError(t, err)
	require.True(t, got.Equals(U32Type))
}

func TestUnifySignedPlaceholderRejectsUnsigned(t *testing.T) {
	_, err := Unify(SignedIntPlaceholderType, U32Type)
	require.Error(t, err)
	var mismatch *Mismatch
	require.ErrorAs(t, err, &mismatch)
}

func TestUnifyUnsignedPlaceholderAcceptsUnsigned(t *testing.T) {
	got, err := Unify(UnsignedIntPlaceholderType, UsizeType)
	require.NoError(t, err)
	require.True(t, got.Equals(UsizeType))
}

func TestUnifyMismatchIsCommutative(t *testing.T) {
	_, err1 := Unify(BoolType, I32Type)
	_, err2 := Unify(I32Type, BoolType)
	require.Error(t, err1)
	require.Error(t, err2)
}

func TestUnifyReferences(t *testing.T) {
	a := &Reference{Inner: I32Type, IsMut: true}
	b := &Reference{Inner: I32Type, IsMut: true}
	got, err := Unify(a, b)
	require.NoError(t, err)
	require.True(t, got.Equals(a))
}

func TestUnifyArraysWithSymbolicLength(t *testing.T) {
	a := &Array{Element: I32Type, Length: -1}
	b := &Array{Element: I32Type, Length: 4}
	got, err := Unify(a, b)
	require.NoError(t, err)
	require.Equal(t, 4, got.(*Array).Length)
}

func TestNamedEquality(t *testing.T) {
	a := &Named{Name: "Point"}
	b := &Named{Name: "Point"}
	require.True(t, a.Equals(b))
	require.False(t, a.Equals(&Named{Name: "Other"}))
}
