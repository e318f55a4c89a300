// Package fiber implements stackless cooperative coroutines.
//
// A Fiber keeps a single integer: the location its body resumes at. The body
// is an ordinary function that switches on Resume and returns at every
// suspension point, so nothing survives a suspension except that location.
// Values that must outlive a suspension belong in caller-owned storage, for
// example the struct the body is a method of.
//
//	func (w *worker) run(f *fiber.Fiber) fiber.Status {
//		switch f.Resume() {
//		case 0:
//			w.n = 0
//			fallthrough
//		case 1:
//			if st, ok := f.WaitUntil(1, w.ready()); !ok {
//				return st
//			}
//			w.n++
//			return f.Yield(2)
//		case 2:
//		}
//		return f.Exit()
//	}
//
// Location 0 is the start of the body. Every other location is chosen by the
// body and names the point just after the suspension that saved it.
package fiber

import (
	"fmt"

	"github.com/comalice/rtkernel/internal/primitives"
)

// Status is what a body reports each time it returns.
type Status uint8

const (
	// Yielded means more work is pending; dispatch again soon.
	Yielded Status = iota
	// Waiting means the body is blocked on a condition; retry later.
	Waiting
	// Terminated is final until the fiber is initialized again.
	Terminated
)

func (s Status) String() string {
	switch s {
	case Yielded:
		return "YIELDED"
	case Waiting:
		return "WAITING"
	case Terminated:
		return "TERMINATED"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// MarshalText lets statuses render by name in traces and snapshots.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Body is the code of a fiber.
type Body func(f *Fiber) Status

// terminal is the location saved by Exit. Bodies never use it.
const terminal = ^uint32(0)

// Fiber is the continuation of one body. The zero value is initialized.
type Fiber struct {
	loc uint32
}

// Init rewinds the fiber to the start of its body.
func (f *Fiber) Init() { f.loc = 0 }

// Resume returns the location for the body to switch on.
func (f *Fiber) Resume() uint32 { return f.loc }

// Done reports whether the body has exited.
func (f *Fiber) Done() bool { return f.loc == terminal }

// Dispatch runs body once from the saved location. A terminated fiber is not
// run again; Dispatch keeps reporting Terminated until Init.
func (f *Fiber) Dispatch(body Body) Status {
	if f.loc == terminal {
		return Terminated
	}
	return body(f)
}

// Yield saves loc and reports Yielded. The body returns the result.
func (f *Fiber) Yield(loc uint32) Status {
	f.mark(loc)
	return Yielded
}

// WaitUntil saves loc and reports whether cond holds. When it does not, the
// body returns the Waiting status; the next dispatch resumes at loc and must
// evaluate the condition again.
func (f *Fiber) WaitUntil(loc uint32, cond bool) (Status, bool) {
	f.mark(loc)
	if !cond {
		return Waiting, false
	}
	return Yielded, true
}

// WaitWhile is WaitUntil with the condition inverted.
func (f *Fiber) WaitWhile(loc uint32, cond bool) (Status, bool) {
	return f.WaitUntil(loc, !cond)
}

// Exit terminates the fiber.
func (f *Fiber) Exit() Status {
	f.loc = terminal
	return Terminated
}

// Wait saves loc and dispatches child once. It reports true once the child
// has terminated; until then the body returns the child's status, so a
// yielding child keeps the whole tree runnable.
func (f *Fiber) Wait(loc uint32, child *Fiber, body Body) (Status, bool) {
	f.mark(loc)
	st := child.Dispatch(body)
	if st != Terminated {
		return st, false
	}
	return Terminated, true
}

// Spawn is Wait that initializes child on first arrival at loc.
func (f *Fiber) Spawn(loc uint32, child *Fiber, body Body) (Status, bool) {
	if f.loc != loc {
		child.Init()
	}
	return f.Wait(loc, child, body)
}

func (f *Fiber) mark(loc uint32) {
	primitives.Assert(loc != 0 && loc != terminal, "fiber: location %d is reserved", loc)
	f.loc = loc
}
