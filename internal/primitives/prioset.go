package primitives

// Priority set limits. One machine word covers 64 priorities; the two-level
// form covers 64 groups of 64.
const (
	wordBits      = 64
	MaxPriorities = wordBits * wordBits
	maxSingleWord = wordBits
)

// PrioritySet is the bit-indexed set of ready priorities. Highest is O(1),
// bounded by the word width regardless of the configured size.
//
// Highest must only be called on a non-empty set.
type PrioritySet interface {
	Set(p uint)
	Clear(p uint)
	IsSet(p uint) bool
	IsEmpty() bool
	Highest() uint
	Len() int
}

// NewPrioritySet returns a set for priorities [0, n). Sizes that fit one
// machine word skip the group level entirely.
func NewPrioritySet(n int, arch Arch) PrioritySet {
	Assert(n >= 1 && n <= MaxPriorities, "prioset: size %d out of range [1,%d]", n, MaxPriorities)
	if arch == nil {
		arch = DefaultArch
	}
	if n <= maxSingleWord {
		return &wordSet{n: uint(n), arch: arch}
	}
	return &groupSet{
		n:      uint(n),
		arch:   arch,
		groups: make([]uint64, (n+wordBits-1)/wordBits),
	}
}

// wordSet is the single-word specialization.
type wordSet struct {
	word uint64
	n    uint
	arch Arch
}

func (s *wordSet) check(p uint) {
	Assert(p < s.n, "prioset: priority %d out of range [0,%d)", p, s.n)
}

func (s *wordSet) Set(p uint) {
	s.check(p)
	s.word |= s.arch.Exp2(p)
}

func (s *wordSet) Clear(p uint) {
	s.check(p)
	s.word &^= s.arch.Exp2(p)
}

func (s *wordSet) IsSet(p uint) bool {
	s.check(p)
	return s.word&s.arch.Exp2(p) != 0
}

func (s *wordSet) IsEmpty() bool { return s.word == 0 }

func (s *wordSet) Highest() uint {
	Assert(s.word != 0, "prioset: highest of empty set")
	return s.arch.Log2(s.word)
}

func (s *wordSet) Len() int { return int(s.n) }

// groupSet keeps a summary word with one bit per non-empty group word.
type groupSet struct {
	summary uint64
	groups  []uint64
	n       uint
	arch    Arch
}

func (s *groupSet) check(p uint) {
	Assert(p < s.n, "prioset: priority %d out of range [0,%d)", p, s.n)
}

func (s *groupSet) Set(p uint) {
	s.check(p)
	g := p / wordBits
	s.groups[g] |= s.arch.Exp2(p % wordBits)
	s.summary |= s.arch.Exp2(g)
}

func (s *groupSet) Clear(p uint) {
	s.check(p)
	g := p / wordBits
	s.groups[g] &^= s.arch.Exp2(p % wordBits)
	if s.groups[g] == 0 {
		s.summary &^= s.arch.Exp2(g)
	}
}

func (s *groupSet) IsSet(p uint) bool {
	s.check(p)
	return s.groups[p/wordBits]&s.arch.Exp2(p%wordBits) != 0
}

func (s *groupSet) IsEmpty() bool { return s.summary == 0 }

func (s *groupSet) Highest() uint {
	Assert(s.summary != 0, "prioset: highest of empty set")
	g := s.arch.Log2(s.summary)
	return g*wordBits + s.arch.Log2(s.groups[g])
}

func (s *groupSet) Len() int { return int(s.n) }
