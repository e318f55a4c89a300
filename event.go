package rtkernel

import (
	"fmt"

	"github.com/comalice/rtkernel/internal/primitives"
)

// Signal identifies the kind of an Event.
type Signal uint16

// Reserved signals. User signals start at SigUser.
const (
	SigNull Signal = iota
	SigSuper
	SigEntry
	SigExit
	SigInit
	// SigCancel is delivered to an actor that is being stopped while blocked.
	SigCancel

	SigUser Signal = 8
)

func (s Signal) String() string {
	switch s {
	case SigNull:
		return "NULL"
	case SigSuper:
		return "SUPER"
	case SigEntry:
		return "ENTRY"
	case SigExit:
		return "EXIT"
	case SigInit:
		return "INIT"
	case SigCancel:
		return "CANCEL"
	default:
		return fmt.Sprintf("SIG(%d)", uint16(s))
	}
}

// Event is the unit of communication between producers and actors.
//
// Static events are shared and immutable. Dynamic events come from a Pool and
// carry a reference count: it is incremented for every queue the event is
// posted to and decremented when the event has been dispatched. A dynamic
// event returns to its pool once the count drops to zero.
type Event struct {
	Signal  Signal
	Payload any

	refs   int32
	pool   *Pool
	handle primitives.Handle
}

// IsDynamic reports whether e was allocated from a Pool.
func (e *Event) IsDynamic() bool { return e.pool != nil }

// Refs returns the number of queues currently holding e.
func (e *Event) Refs() int32 { return e.refs }

// reserved events handed to state handlers by the dispatcher itself
var (
	superEvent  = &Event{Signal: SigSuper}
	entryEvent  = &Event{Signal: SigEntry}
	exitEvent   = &Event{Signal: SigExit}
	initEvent   = &Event{Signal: SigInit}
	cancelEvent = &Event{Signal: SigCancel}
)

// staticEvents is the table SendSignal resolves signals against.
type staticEvents []Event

func newStaticEvents(n int) staticEvents {
	t := make(staticEvents, n)
	for i := range t {
		t[i].Signal = Signal(i)
	}
	return t
}

func (t staticEvents) lookup(sig Signal) (*Event, error) {
	if int(sig) >= len(t) {
		return nil, fmt.Errorf("signal %d outside static table [0,%d): %w", sig, len(t), ErrOutOfRange)
	}
	return &t[sig], nil
}

// Pool is a fixed-capacity store of dynamic events. The free list is kept in
// an index-addressed circular list, slot 0 being its sentinel.
//
// Pool is not safe for concurrent use by itself; the scheduler serializes
// access through its critical section when events are posted or consumed, and
// producers running concurrently must hold the same guard (see
// Scheduler.NewEvent).
type Pool struct {
	events []Event
	links  *primitives.Links
	free   int
}

const poolSentinel primitives.Handle = 0

// NewPool allocates n events.
func NewPool(n int) (*Pool, error) {
	if n < 1 {
		return nil, fmt.Errorf("pool size %d: %w", n, ErrOutOfRange)
	}
	p := &Pool{
		events: make([]Event, n+1),
		links:  primitives.NewLinks(n + 1),
		free:   n,
	}
	for h := primitives.Handle(1); int(h) <= n; h++ {
		p.events[h].pool = p
		p.events[h].handle = h
		p.links.AddBefore(poolSentinel, h)
	}
	return p, nil
}

// Cap returns the number of events the pool was created with.
func (p *Pool) Cap() int { return len(p.events) - 1 }

// Free returns the number of events available.
func (p *Pool) Free() int { return p.free }

// Get takes an event from the pool. Its reference count starts at zero.
func (p *Pool) Get(sig Signal, payload any) (*Event, error) {
	if p.links.IsEmpty(poolSentinel) {
		return nil, ErrPoolExhausted
	}
	h := p.links.Next(poolSentinel)
	p.links.Remove(h)
	p.free--
	e := &p.events[h]
	e.Signal = sig
	e.Payload = payload
	e.refs = 0
	return e, nil
}

// Release returns e to its pool if no queue holds it. It reports whether the
// event was recycled. Static events are never recycled.
func (p *Pool) Release(e *Event) bool {
	if e == nil || e.pool != p || e.refs > 0 {
		return false
	}
	primitives.Assert(!p.links.IsLinked(e.handle), "pool: double release of event %d", e.handle)
	e.Payload = nil
	p.links.AddBefore(poolSentinel, e.handle)
	p.free++
	return true
}

// retain and release implement the enqueue/consume halves of the reference
// count. Both must be called inside the scheduler's critical section.
func retain(e *Event) {
	if e.pool != nil {
		e.refs++
	}
}

func release(e *Event) {
	if e.pool == nil {
		return
	}
	primitives.Assert(e.refs > 0, "event %s: reference count underflow", e.Signal)
	e.refs--
	if e.refs == 0 {
		e.pool.Release(e)
	}
}
