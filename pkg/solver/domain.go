// Package solver: VariableDomain maps between the contiguous integer range a
// variable can take and the zero-based indices its ValueSet is expressed in.
package solver

// VariableDomain represents the contiguous range [Min, Max] of integer
// values that a variable can be assigned. Value sets are expressed over
// indices 0..Size()-1; the domain provides the translation in both
// directions.
type VariableDomain struct {
	min int
	max int
}

// NewDomain creates a domain covering [min, max] inclusive. It panics if
// max < min; an empty domain is never valid.
func NewDomain(min, max int) VariableDomain {
	if max < min {
		panic("solver: domain max < min")
	}
	return VariableDomain{min: min, max: max}
}

// BooleanDomain is the two-value domain used for rule atoms and other
// boolean variables. Index 0 is false, index 1 is true.
func BooleanDomain() VariableDomain { return VariableDomain{min: 0, max: 1} }

// Min returns the smallest value in the domain.
func (d VariableDomain) Min() int { return d.min }

// Max returns the largest value in the domain.
func (d VariableDomain) Max() int { return d.max }

// Size returns the number of values in the domain.
func (d VariableDomain) Size() int { return d.max - d.min + 1 }

// Contains reports whether value lies within the domain.
func (d VariableDomain) Contains(value int) bool {
	return value >= d.min && value <= d.max
}

// Clamp returns value limited to the domain's range.
func (d VariableDomain) Clamp(value int) int {
	if value < d.min {
		return d.min
	}
	if value > d.max {
		return d.max
	}
	return value
}

// IndexFor returns the zero-based index for a value within the domain. The
// second result is false if the value is outside the domain.
func (d VariableDomain) IndexFor(value int) (int, bool) {
	if !d.Contains(value) {
		return 0, false
	}
	return value - d.min, true
}

// ValueFor returns the value corresponding to a zero-based index. It panics
// on out-of-range indices.
func (d VariableDomain) ValueFor(index int) int {
	if index < 0 || index >= d.Size() {
		panic("solver: domain index out of range")
	}
	return d.min + index
}

// FullSet returns a ValueSet over the domain with every value present.
func (d VariableDomain) FullSet() ValueSet { return NewValueSet(d.Size(), true) }

// EmptySet returns a ValueSet over the domain with no values present.
func (d VariableDomain) EmptySet() ValueSet { return NewValueSet(d.Size(), false) }

// SetForValue returns a singleton ValueSet containing only the given value.
// The second result is false if the value is outside the domain.
func (d VariableDomain) SetForValue(value int) (ValueSet, bool) {
	ix, ok := d.IndexFor(value)
	if !ok {
		return ValueSet{}, false
	}
	return NewValueSetFromIndices(d.Size(), ix), true
}

// SetForValues returns a ValueSet containing the listed values. Values
// outside the domain are ignored.
func (d VariableDomain) SetForValues(values ...int) ValueSet {
	out := d.EmptySet()
	for _, v := range values {
		if ix, ok := d.IndexFor(v); ok {
			out.words[ix/64] |= 1 << uint(ix%64)
		}
	}
	return out
}

// SetWithoutValue returns a ValueSet containing every value except the given
// one. If the value is outside the domain the full set is returned.
func (d VariableDomain) SetWithoutValue(value int) ValueSet {
	out := d.FullSet()
	if ix, ok := d.IndexFor(value); ok {
		out.words[ix/64] &^= 1 << uint(ix%64)
	}
	return out
}

// TranslateTo re-expresses a ValueSet from this domain in another domain.
// Values that fall outside the destination domain are dropped.
func (d VariableDomain) TranslateTo(in ValueSet, dest VariableDomain) ValueSet {
	out := dest.EmptySet()
	in.ForEachSet(func(ix int) {
		if destIx, ok := dest.IndexFor(d.ValueFor(ix)); ok {
			out.words[destIx/64] |= 1 << uint(destIx%64)
		}
	})
	return out
}
