package primitives

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var arches = map[string]Arch{
	"bits":  BitsArch{},
	"table": TableArch{},
}

func TestArch_Log2Agrees(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := uint(0); i < 64; i++ {
		x := uint64(1) << i
		assert.Equal(t, i, BitsArch{}.Log2(x))
		assert.Equal(t, i, TableArch{}.Log2(x))
		assert.Equal(t, x, TableArch{}.Exp2(i))
		y := x | r.Uint64()&(x-1)
		assert.Equal(t, BitsArch{}.Log2(y), TableArch{}.Log2(y), "x=%#x", y)
	}
}

// reference keeps a plain bool slice to check a PrioritySet against.
type reference []bool

func (r reference) highest() (uint, bool) {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] {
			return uint(i), true
		}
	}
	return 0, false
}

func TestPrioritySet_HighestMatchesReference(t *testing.T) {
	for name, arch := range arches {
		for _, n := range []int{1, 8, 63, 64, 65, 200, 4096} {
			t.Run(name, func(t *testing.T) {
				s := NewPrioritySet(n, arch)
				require.Equal(t, n, s.Len())
				ref := make(reference, n)
				r := rand.New(rand.NewPCG(uint64(n), 7))
				for i := 0; i < 2000; i++ {
					p := uint(r.IntN(n))
					if r.IntN(3) == 0 {
						s.Clear(p)
						ref[p] = false
					} else {
						s.Set(p)
						ref[p] = true
					}
					want, ok := ref.highest()
					require.Equal(t, !ok, s.IsEmpty())
					if ok {
						require.Equal(t, want, s.Highest(), "n=%d step=%d", n, i)
					}
				}
			})
		}
	}
}

func TestPrioritySet_RoundTrip(t *testing.T) {
	for _, n := range []int{32, 64, 130} {
		s := NewPrioritySet(n, nil)
		for p := uint(0); p < uint(n); p++ {
			s.Set(p)
			assert.True(t, s.IsSet(p))
			s.Clear(p)
			assert.False(t, s.IsSet(p))
		}
		assert.True(t, s.IsEmpty())
	}
}

func TestPrioritySet_ClearKeepsGroupSummary(t *testing.T) {
	s := NewPrioritySet(256, nil)
	s.Set(70)
	s.Set(71)
	s.Set(3)
	s.Clear(71)
	assert.Equal(t, uint(70), s.Highest())
	s.Clear(70)
	assert.Equal(t, uint(3), s.Highest())
}

func TestPrioritySet_Contracts(t *testing.T) {
	if !AssertEnabled() {
		t.Skip("contract checks compiled out")
	}
	for _, n := range []int{16, 100} {
		s := NewPrioritySet(n, nil)
		assert.Panics(t, func() { s.Highest() })
		assert.Panics(t, func() { s.Set(uint(n)) })
	}
	assert.Panics(t, func() { NewPrioritySet(0, nil) })
	assert.Panics(t, func() { NewPrioritySet(MaxPriorities+1, nil) })
}
