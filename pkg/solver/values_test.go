package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSet_Basics(t *testing.T) {
	vs := NewValueSet(9, true)
	require.Equal(t, 9, vs.Size())
	require.Equal(t, 9, vs.Count())
	require.False(t, vs.IsEmpty())
	require.False(t, vs.IsSingleton())
	require.Equal(t, 0, vs.FirstSet())
	require.Equal(t, 8, vs.LastSet())

	empty := NewValueSet(9, false)
	require.True(t, empty.IsEmpty())
	require.Equal(t, -1, empty.FirstSet())
	require.Equal(t, -1, empty.LastSet())

	single := NewValueSetFromIndices(9, 4)
	require.True(t, single.IsSingleton())
	require.Equal(t, 4, single.SingletonIndex())
}

func TestValueSet_SetOperations(t *testing.T) {
	a := NewValueSetFromIndices(10, 0, 2, 4, 6, 8)
	b := NewValueSetFromIndices(10, 4, 5, 6, 7)

	require.Equal(t, []int{4, 6}, a.Intersect(b).ToIndices())
	require.Equal(t, []int{0, 2, 4, 5, 6, 7, 8}, a.Union(b).ToIndices())
	require.Equal(t, []int{0, 2, 8}, a.Exclude(b).ToIndices())
	require.True(t, a.AnyCommon(b))
	require.False(t, a.AnyCommon(NewValueSetFromIndices(10, 1, 3)))
	require.True(t, NewValueSetFromIndices(10, 4, 6).IsSubsetOf(a))
	require.False(t, b.IsSubsetOf(a))
}

// Bitset algebra invariants: double inversion is the identity,
// include-then-exclude keeps the original values, and cardinality respects
// inclusion–exclusion.
func TestValueSet_AlgebraInvariants(t *testing.T) {
	cases := [][]int{
		{},
		{0},
		{0, 63, 64, 127},
		{1, 2, 3, 60, 70, 99},
	}
	for _, indices := range cases {
		s := NewValueSetFromIndices(130, indices...)
		tset := NewValueSetFromIndices(130, 2, 60, 128)

		assert.True(t, s.Invert().Invert().Equals(s), "double inversion")

		roundTrip := s.Include(tset).Exclude(tset)
		assert.True(t, s.Exclude(tset).IsSubsetOf(roundTrip), "include/exclude keeps originals outside t")

		union := s.Union(tset).Count()
		inter := s.Intersect(tset).Count()
		assert.Equal(t, s.Count()+tset.Count(), union+inter, "inclusion-exclusion")
	}
}

func TestValueSet_WordBoundaries(t *testing.T) {
	vs := NewValueSet(64, true)
	require.Equal(t, 64, vs.Count())
	require.Equal(t, 63, vs.LastSet())

	vs65 := NewValueSet(65, true)
	require.Equal(t, 65, vs65.Count())
	require.Equal(t, 64, vs65.LastSet())
	require.True(t, vs65.Invert().IsEmpty())
}

func TestValueSet_SerializationRoundTrip(t *testing.T) {
	orig := NewValueSetFromIndices(70, 0, 1, 5, 63, 64, 69)
	text, err := orig.MarshalText()
	require.NoError(t, err)

	var back ValueSet
	require.NoError(t, back.UnmarshalText(text))
	require.True(t, orig.Equals(back))

	var bad ValueSet
	require.Error(t, bad.UnmarshalText([]byte("10x")))
}

func TestValueSet_SizeMismatchPanics(t *testing.T) {
	a := NewValueSet(5, true)
	b := NewValueSet(6, true)
	require.Panics(t, func() { a.Intersect(b) })
	require.False(t, a.Equals(b))
}

func TestDomain_Translation(t *testing.T) {
	d := NewDomain(-3, 5)
	require.Equal(t, 9, d.Size())
	ix, ok := d.IndexFor(-3)
	require.True(t, ok)
	require.Equal(t, 0, ix)
	ix, ok = d.IndexFor(5)
	require.True(t, ok)
	require.Equal(t, 8, ix)
	_, ok = d.IndexFor(6)
	require.False(t, ok)
	require.Equal(t, -3, d.ValueFor(0))
	require.Equal(t, 5, d.Clamp(99))
	require.Equal(t, -3, d.Clamp(-99))

	set, ok := d.SetForValue(0)
	require.True(t, ok)
	require.Equal(t, []int{3}, set.ToIndices())

	other := NewDomain(0, 10)
	moved := d.TranslateTo(d.SetForValues(-3, 0, 5), other)
	require.Equal(t, []int{0, 5}, moved.ToIndices())
}
