// Package solver: ValueSet is the compact bitset over a variable's domain
// that every narrowing operation works in terms of. Propagation never sets a
// single value directly; it intersects with (or excludes) a mask.
package solver

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/pkg/errors"
)

// ValueSet is a fixed-size bitset over the indices of a variable's domain.
// Bit i corresponds to domain index i (see VariableDomain for the mapping
// between indices and user-facing values).
//
// The size is fixed at construction. Binary operations (Intersect, Union,
// Exclude, IsSubsetOf, AnyCommon) require both operands to have the same
// size; mixing sizes is a programmer error and panics. Equals instead
// reports sets of different sizes as unequal.
//
// ValueSet operations are non-mutating: they return a new set, leaving the
// receiver untouched. This keeps trail entries cheap to record, since the
// previous value set can be retained by reference.
type ValueSet struct {
	size  int
	words []uint64
}

// NewValueSet creates a ValueSet of the given size with every bit set to
// the initial value.
func NewValueSet(size int, initial bool) ValueSet {
	if size < 0 {
		panic("solver: negative ValueSet size")
	}
	vs := ValueSet{size: size, words: make([]uint64, (size+63)/64)}
	if initial {
		for i := range vs.words {
			vs.words[i] = ^uint64(0)
		}
		vs.maskTail()
	}
	return vs
}

// NewValueSetFromIndices creates a ValueSet of the given size with exactly
// the listed indices set. Indices outside [0, size) panic.
func NewValueSetFromIndices(size int, indices ...int) ValueSet {
	vs := NewValueSet(size, false)
	for _, ix := range indices {
		if ix < 0 || ix >= size {
			panic(fmt.Sprintf("solver: value index %d outside domain of size %d", ix, size))
		}
		vs.words[ix/64] |= 1 << uint(ix%64)
	}
	return vs
}

// maskTail clears any bits beyond size in the last word.
func (vs *ValueSet) maskTail() {
	if rem := vs.size % 64; rem != 0 && len(vs.words) > 0 {
		vs.words[len(vs.words)-1] &= (uint64(1) << uint(rem)) - 1
	}
}

func (vs ValueSet) checkSameSize(other ValueSet) {
	if vs.size != other.size {
		panic(fmt.Sprintf("solver: ValueSet size mismatch: %d vs %d", vs.size, other.size))
	}
}

// Size returns the number of bits in the set (the domain size).
func (vs ValueSet) Size() int { return vs.size }

// IsValid reports whether the set has been initialized.
func (vs ValueSet) IsValid() bool { return vs.words != nil || vs.size == 0 }

// Test reports whether the bit at index ix is set.
func (vs ValueSet) Test(ix int) bool {
	if ix < 0 || ix >= vs.size {
		return false
	}
	return (vs.words[ix/64]>>uint(ix%64))&1 == 1
}

// Count returns the number of set bits.
func (vs ValueSet) Count() int {
	n := 0
	for _, w := range vs.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// IsEmpty reports whether no bits are set.
func (vs ValueSet) IsEmpty() bool {
	for _, w := range vs.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// IsSingleton reports whether exactly one bit is set.
func (vs ValueSet) IsSingleton() bool { return vs.Count() == 1 }

// SingletonIndex returns the index of the single set bit. It panics if the
// set is not a singleton.
func (vs ValueSet) SingletonIndex() int {
	if !vs.IsSingleton() {
		panic("solver: SingletonIndex on non-singleton ValueSet")
	}
	return vs.FirstSet()
}

// FirstSet returns the lowest set bit index, or -1 if the set is empty.
func (vs ValueSet) FirstSet() int {
	for i, w := range vs.words {
		if w != 0 {
			return i*64 + bits.TrailingZeros64(w)
		}
	}
	return -1
}

// LastSet returns the highest set bit index, or -1 if the set is empty.
func (vs ValueSet) LastSet() int {
	for i := len(vs.words) - 1; i >= 0; i-- {
		if w := vs.words[i]; w != 0 {
			return i*64 + 63 - bits.LeadingZeros64(w)
		}
	}
	return -1
}

// ForEachSet calls f for every set bit index in ascending order.
func (vs ValueSet) ForEachSet(f func(ix int)) {
	for i, w := range vs.words {
		for w != 0 {
			f(i*64 + bits.TrailingZeros64(w))
			w &= w - 1
		}
	}
}

// ToIndices returns the set bit indices in ascending order.
func (vs ValueSet) ToIndices() []int {
	out := make([]int, 0, vs.Count())
	vs.ForEachSet(func(ix int) { out = append(out, ix) })
	return out
}

// Clone returns a copy of the set.
func (vs ValueSet) Clone() ValueSet {
	words := make([]uint64, len(vs.words))
	copy(words, vs.words)
	return ValueSet{size: vs.size, words: words}
}

// Intersect returns the set of bits present in both sets.
func (vs ValueSet) Intersect(other ValueSet) ValueSet {
	vs.checkSameSize(other)
	out := ValueSet{size: vs.size, words: make([]uint64, len(vs.words))}
	for i := range vs.words {
		out.words[i] = vs.words[i] & other.words[i]
	}
	return out
}

// Union returns the set of bits present in either set. Include is the
// narrowing-API name for the same operation.
func (vs ValueSet) Union(other ValueSet) ValueSet {
	vs.checkSameSize(other)
	out := ValueSet{size: vs.size, words: make([]uint64, len(vs.words))}
	for i := range vs.words {
		out.words[i] = vs.words[i] | other.words[i]
	}
	return out
}

// Include is Union under the name used by the narrowing API.
func (vs ValueSet) Include(other ValueSet) ValueSet { return vs.Union(other) }

// Exclude returns the set of bits in the receiver that are not in other.
func (vs ValueSet) Exclude(other ValueSet) ValueSet {
	vs.checkSameSize(other)
	out := ValueSet{size: vs.size, words: make([]uint64, len(vs.words))}
	for i := range vs.words {
		out.words[i] = vs.words[i] &^ other.words[i]
	}
	return out
}

// Invert returns the complement of the set within its size.
func (vs ValueSet) Invert() ValueSet {
	out := ValueSet{size: vs.size, words: make([]uint64, len(vs.words))}
	for i := range vs.words {
		out.words[i] = ^vs.words[i]
	}
	out.maskTail()
	return out
}

// Equals reports whether both sets have the same size and the same bits.
func (vs ValueSet) Equals(other ValueSet) bool {
	if vs.size != other.size {
		return false
	}
	for i := range vs.words {
		if vs.words[i] != other.words[i] {
			return false
		}
	}
	return true
}

// IsSubsetOf reports whether every bit in the receiver is also set in other.
func (vs ValueSet) IsSubsetOf(other ValueSet) bool {
	vs.checkSameSize(other)
	for i := range vs.words {
		if vs.words[i]&^other.words[i] != 0 {
			return false
		}
	}
	return true
}

// AnyCommon reports whether the two sets share at least one set bit.
func (vs ValueSet) AnyCommon(other ValueSet) bool {
	vs.checkSameSize(other)
	for i := range vs.words {
		if vs.words[i]&other.words[i] != 0 {
			return true
		}
	}
	return false
}

// Hash returns a stable hash of the set contents, used for clause
// deduplication.
func (vs ValueSet) Hash() uint64 {
	// FNV-1a over the words.
	h := uint64(14695981039346656037)
	for _, w := range vs.words {
		for s := 0; s < 64; s += 8 {
			h ^= (w >> uint(s)) & 0xff
			h *= 1099511628211
		}
	}
	return h ^ uint64(vs.size)
}

// String renders the set as a bit string, most significant index last, e.g.
// "10110" for bits {0, 2, 3} of a size-5 set.
func (vs ValueSet) String() string {
	var b strings.Builder
	for i := 0; i < vs.size; i++ {
		if vs.Test(i) {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// MarshalText encodes the set in the same form String produces.
func (vs ValueSet) MarshalText() ([]byte, error) {
	return []byte(vs.String()), nil
}

// UnmarshalText decodes a bit string produced by MarshalText.
func (vs *ValueSet) UnmarshalText(text []byte) error {
	out := NewValueSet(len(text), false)
	for i, c := range text {
		switch c {
		case '1':
			out.words[i/64] |= 1 << uint(i%64)
		case '0':
		default:
			return errors.Errorf("invalid value set character %q at offset %d", c, i)
		}
	}
	*vs = out
	return nil
}
