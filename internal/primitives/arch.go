package primitives

import "math/bits"

// Arch is the per-target bit capability the priority set is built on.
//
// Log2 returns the position of the highest set bit of x. The result is
// undefined when x is zero.
type Arch interface {
	Exp2(n uint) uint64
	Log2(x uint64) uint
}

// BitsArch uses math/bits, which lowers to a count-leading-zeros instruction
// on most targets.
type BitsArch struct{}

func (BitsArch) Exp2(n uint) uint64 { return 1 << n }

func (BitsArch) Log2(x uint64) uint { return uint(63 - bits.LeadingZeros64(x)) }

// TableArch resolves Log2 with a 256-entry lookup table, for targets without
// a usable CLZ instruction.
type TableArch struct{}

var log2Table = func() (t [256]uint8) {
	for i := 2; i < len(t); i++ {
		t[i] = t[i/2] + 1
	}
	return
}()

func (TableArch) Exp2(n uint) uint64 { return 1 << n }

func (TableArch) Log2(x uint64) uint {
	var n uint
	if x >= 1<<32 {
		x >>= 32
		n += 32
	}
	if x >= 1<<16 {
		x >>= 16
		n += 16
	}
	if x >= 1<<8 {
		x >>= 8
		n += 8
	}
	return n + uint(log2Table[x])
}

// DefaultArch is the capability used when none is injected.
var DefaultArch Arch = BitsArch{}
