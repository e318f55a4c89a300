package rtkernel

import (
	"fmt"

	"github.com/comalice/rtkernel/internal/primitives"
)

// ActorSpec registers an actor: a queue and a state machine at a priority.
type ActorSpec struct {
	Name     string
	Priority int
	Kind     Kind
	Initial  *State
	// Workspace is handed to the machine, see Machine.Workspace.
	Workspace any
	// QueueCapacity overrides Config.QueueCapacity when non-zero.
	QueueCapacity int
	// InitEvent is delivered with the initial transition.
	InitEvent *Event
}

// Actor is an event processing agent. Producers post events with SendEvent
// or SendSignal from any goroutine; the scheduler dispatches them one at a
// time into the actor's machine.
type Actor struct {
	task      *Task
	queue     *primitives.Ring[*Event]
	machine   *Machine
	initEvent *Event
}

func (a *Actor) Name() string { return a.task.name }

func (a *Actor) Priority() int { return a.task.prio }

func (a *Actor) Machine() *Machine { return a.machine }

func (a *Actor) Task() *Task { return a.task }

func (a *Actor) QueueCap() int { return a.queue.Cap() }

func (a *Actor) QueueLen() int {
	s := a.task.sched
	s.mu.Lock()
	defer s.mu.Unlock()
	return a.queue.Len()
}

// SendEvent appends e to the actor's queue and marks the actor ready. When
// the queue is full it returns ErrQueueFull and e is not delivered; a dynamic
// event then stays with the caller.
func (a *Actor) SendEvent(e *Event) error {
	return a.task.sched.post(a.task, a.queue, e, false)
}

// SendEventLIFO puts e at the front of the queue, to be dispatched next.
func (a *Actor) SendEventLIFO(e *Event) error {
	return a.task.sched.post(a.task, a.queue, e, true)
}

// SendSignal sends the shared static event for sig.
func (a *Actor) SendSignal(sig Signal) error {
	e, err := a.task.sched.statics.lookup(sig)
	if err != nil {
		return fmt.Errorf("actor %s: %w", a.task.name, err)
	}
	return a.SendEvent(e)
}
