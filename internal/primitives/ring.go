package primitives

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"
)

// ErrCapacity is returned when a ring capacity is not a power of two >= 2.
var ErrCapacity = errors.New("rtkernel: ring capacity must be a power of two >= 2")

// RingIndex is the cursor state of a fixed-capacity circular buffer,
// independent of the element type. Indices wrap with a bitwise AND against
// the capacity mask.
//
// Head is the slot the next Get reads; tail is the slot the next FIFO push
// writes. Pushing into a full ring or reading an empty one is a contract
// violation: callers check IsFull/IsEmpty first.
type RingIndex[I constraints.Unsigned] struct {
	head I
	tail I
	free I
	mask I
}

// NewRingIndex validates capacity and returns an empty index.
func NewRingIndex[I constraints.Unsigned](capacity int) (RingIndex[I], error) {
	limit := uint64(^I(0))
	if capacity < 2 || capacity&(capacity-1) != 0 || uint64(capacity) > limit {
		return RingIndex[I]{}, fmt.Errorf("capacity %d: %w", capacity, ErrCapacity)
	}
	return RingIndex[I]{free: I(capacity), mask: I(capacity - 1)}, nil
}

// Cap returns the number of slots.
func (r *RingIndex[I]) Cap() int { return int(r.mask) + 1 }

// Free returns the number of unused slots.
func (r *RingIndex[I]) Free() int { return int(r.free) }

// Len returns the number of occupied slots.
func (r *RingIndex[I]) Len() int { return r.Cap() - int(r.free) }

func (r *RingIndex[I]) IsEmpty() bool { return int(r.free) == r.Cap() }

func (r *RingIndex[I]) IsFull() bool { return r.free == 0 }

// PushFIFO claims the slot at the tail and returns it.
func (r *RingIndex[I]) PushFIFO() I {
	Assert(r.free != 0, "ring: push into full ring")
	slot := r.tail
	r.tail = (r.tail + 1) & r.mask
	r.free--
	return slot
}

// PushLIFO claims the slot in front of the head and returns it; the value
// written there is the next one returned by Get.
func (r *RingIndex[I]) PushLIFO() I {
	Assert(r.free != 0, "ring: push into full ring")
	r.head = (r.head - 1) & r.mask
	r.free--
	return r.head
}

// Get releases the slot at the head and returns it for reading.
func (r *RingIndex[I]) Get() I {
	Assert(!r.IsEmpty(), "ring: get from empty ring")
	slot := r.head
	r.head = (r.head + 1) & r.mask
	r.free++
	return slot
}

// Head returns the slot the next Get would read, without consuming it.
func (r *RingIndex[I]) Head() I {
	Assert(!r.IsEmpty(), "ring: head of empty ring")
	return r.head
}

// Tail returns the slot of the most recent FIFO push, without consuming it.
func (r *RingIndex[I]) Tail() I {
	Assert(!r.IsEmpty(), "ring: tail of empty ring")
	return (r.tail - 1) & r.mask
}

// Reset empties the index.
func (r *RingIndex[I]) Reset() {
	r.head, r.tail = 0, 0
	r.free = r.mask + 1
}

// Ring is a fixed-capacity circular queue of T. Storage is allocated once by
// NewRing.
type Ring[T any] struct {
	idx RingIndex[uint32]
	buf []T
}

// NewRing returns an empty ring, rejecting capacities that are not a power of
// two >= 2.
func NewRing[T any](capacity int) (*Ring[T], error) {
	idx, err := NewRingIndex[uint32](capacity)
	if err != nil {
		return nil, err
	}
	return &Ring[T]{idx: idx, buf: make([]T, capacity)}, nil
}

func (r *Ring[T]) Cap() int      { return r.idx.Cap() }
func (r *Ring[T]) Len() int      { return r.idx.Len() }
func (r *Ring[T]) Free() int     { return r.idx.Free() }
func (r *Ring[T]) IsEmpty() bool { return r.idx.IsEmpty() }
func (r *Ring[T]) IsFull() bool  { return r.idx.IsFull() }

func (r *Ring[T]) PushFIFO(v T) { r.buf[r.idx.PushFIFO()] = v }

func (r *Ring[T]) PushLIFO(v T) { r.buf[r.idx.PushLIFO()] = v }

// Get removes and returns the value at the head. The slot is zeroed so the
// ring does not pin references.
func (r *Ring[T]) Get() T {
	slot := r.idx.Get()
	v := r.buf[slot]
	var zero T
	r.buf[slot] = zero
	return v
}

func (r *Ring[T]) PeekHead() T { return r.buf[r.idx.Head()] }

func (r *Ring[T]) PeekTail() T { return r.buf[r.idx.Tail()] }

// Reset drops every element.
func (r *Ring[T]) Reset() {
	clear(r.buf)
	r.idx.Reset()
}
