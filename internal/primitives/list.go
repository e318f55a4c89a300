package primitives

import "iter"

// Handle addresses a node inside a Links arena.
type Handle int32

// Nil is never a valid handle.
const Nil Handle = -1

// Links is an arena of doubly-linked circular list nodes addressed by Handle.
// Objects that participate in a list keep their handle, and the owner keeps a
// parallel object store indexed by the same handle, so no node ever has to be
// recovered from an enclosing struct.
//
// A sentinel is an ordinary node that marks the boundary of a collection. It
// is never inserted into another list and never counted as an element. A
// freshly initialized or fully unlinked node points to itself.
//
// The caller must not insert a node that is already linked, nor remove one
// that is not; doing so corrupts the lists silently.
type Links struct {
	next []Handle
	prev []Handle
}

// NewLinks allocates n nodes, each initialized as a singleton list.
func NewLinks(n int) *Links {
	Assert(n > 0, "links: size %d must be positive", n)
	l := &Links{
		next: make([]Handle, n),
		prev: make([]Handle, n),
	}
	for i := range l.next {
		l.next[i] = Handle(i)
		l.prev[i] = Handle(i)
	}
	return l
}

// Size returns the number of nodes in the arena.
func (l *Links) Size() int { return len(l.next) }

func (l *Links) check(h Handle) {
	Assert(h >= 0 && int(h) < len(l.next), "links: handle %d out of range [0,%d)", h, len(l.next))
}

// Init turns h into a singleton list.
func (l *Links) Init(h Handle) {
	l.check(h)
	l.next[h] = h
	l.prev[h] = h
}

// IsEmpty reports whether the list demarcated by sentinel holds no elements.
func (l *Links) IsEmpty(sentinel Handle) bool {
	l.check(sentinel)
	return l.next[sentinel] == sentinel
}

// IsLinked reports whether h is currently part of a list other than itself.
func (l *Links) IsLinked(h Handle) bool {
	l.check(h)
	return l.next[h] != h
}

func (l *Links) Next(h Handle) Handle {
	l.check(h)
	return l.next[h]
}

func (l *Links) Prev(h Handle) Handle {
	l.check(h)
	return l.prev[h]
}

// AddAfter links h immediately after ref.
func (l *Links) AddAfter(ref, h Handle) {
	l.check(ref)
	l.check(h)
	n := l.next[ref]
	l.next[h] = n
	l.prev[h] = ref
	l.prev[n] = h
	l.next[ref] = h
}

// AddBefore links h immediately before ref. With ref being a sentinel this
// appends to the tail of the list.
func (l *Links) AddBefore(ref, h Handle) {
	l.check(ref)
	l.check(h)
	p := l.prev[ref]
	l.next[h] = ref
	l.prev[h] = p
	l.next[p] = h
	l.prev[ref] = h
}

// Remove unlinks h from its list and re-initializes it as a singleton.
func (l *Links) Remove(h Handle) {
	l.check(h)
	n, p := l.next[h], l.prev[h]
	l.next[p] = n
	l.prev[n] = p
	l.next[h] = h
	l.prev[h] = h
}

// Len counts the elements of the list demarcated by sentinel.
func (l *Links) Len(sentinel Handle) int {
	var n int
	for h := l.Next(sentinel); h != sentinel; h = l.next[h] {
		n++
	}
	return n
}

// All iterates the list from head to tail. The successor is read before each
// element is yielded, so the current element may be removed during iteration.
func (l *Links) All(sentinel Handle) iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		for h := l.Next(sentinel); h != sentinel; {
			next := l.next[h]
			if !yield(h) {
				return
			}
			h = next
		}
	}
}

// Backward iterates the list from tail to head, removal-safe like All.
func (l *Links) Backward(sentinel Handle) iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		for h := l.Prev(sentinel); h != sentinel; {
			prev := l.prev[h]
			if !yield(h) {
				return
			}
			h = prev
		}
	}
}
