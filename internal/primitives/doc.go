// Package primitives provides the foundational, allocation-free data structures
// of the kernel: the index-addressed circular list, the power-of-two ring
// queue, the bit-indexed priority set and the architecture capability they
// lean on.
//
// Core invariants:
//   - All storage is sized once at construction; no operation allocates.
//   - Every operation is O(1), except list length walks.
//   - Precondition violations (popping an empty ring, Highest on an empty set,
//     out-of-range handles) are contract violations, reported through Assert,
//     never through error returns.
package primitives
