package rtkernel

import (
	"fmt"

	"github.com/comalice/rtkernel/fiber"
	"github.com/comalice/rtkernel/internal/primitives"
)

// TaskState is the lifecycle state of a task slot.
type TaskState uint8

const (
	Uninitialized TaskState = iota
	Dormant
	Ready
	Blocked
	Cancelled
)

func (s TaskState) String() string {
	switch s {
	case Uninitialized:
		return "UNINITIALIZED"
	case Dormant:
		return "DORMANT"
	case Ready:
		return "READY"
	case Blocked:
		return "BLOCKED"
	case Cancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("TaskState(%d)", uint8(s))
	}
}

type taskKind uint8

const (
	taskNone taskKind = iota
	taskIdle
	taskActor
	taskFiber
)

func (k taskKind) String() string {
	switch k {
	case taskIdle:
		return "idle"
	case taskActor:
		return "actor"
	case taskFiber:
		return "fiber"
	default:
		return "none"
	}
}

// TaskBody is the code of a fiber task. It is dispatched with the task's own
// fiber and may use the task for its mailbox and cancellation status.
type TaskBody func(f *fiber.Fiber, t *Task) fiber.Status

// FiberSpec registers a fiber task.
type FiberSpec struct {
	Name     string
	Priority int
	Body     TaskBody
	// MailboxCapacity enables a mailbox when non-zero. It must be a power
	// of two.
	MailboxCapacity int
}

// Task is one slot of the scheduler's arena. Its priority is also its index.
type Task struct {
	sched *Scheduler
	name  string
	prio  int
	kind  taskKind
	state TaskState

	actor *Actor
	// current is the actor's state name as of its last dispatch, kept
	// under the lock for snapshots.
	current string

	fib     fiber.Fiber
	body    fiber.Body
	mailbox *primitives.Ring[*Event]

	// starting is set while an actor runs its initial transition; posts
	// queue up but do not make the task ready.
	starting bool
	// woken records a post or Wake that arrived while the fiber was running.
	woken bool
	// cancelling is true for the single dispatch a cancelled fiber gets. It
	// is only touched by the dispatching goroutine.
	cancelling bool
}

func (t *Task) Name() string { return t.name }

func (t *Task) Priority() int { return t.prio }

// State returns the lifecycle state.
func (t *Task) State() TaskState {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return t.state
}

// Cancelled reports, from inside a fiber body, that the task was stopped
// while blocked and this is its last dispatch.
func (t *Task) Cancelled() bool { return t.cancelling }

// Post delivers e to the fiber's mailbox and makes a blocked fiber ready.
func (t *Task) Post(e *Event) error {
	if t.mailbox == nil {
		return fmt.Errorf("task %s has no mailbox: %w", t.name, ErrInvalidObject)
	}
	return t.sched.post(t, t.mailbox, e, false)
}

// PostSignal posts the static event for sig.
func (t *Task) PostSignal(sig Signal) error {
	e, err := t.sched.statics.lookup(sig)
	if err != nil {
		return err
	}
	return t.Post(e)
}

// Recv takes the oldest event from the mailbox. The caller holds a reference
// to it until Release.
func (t *Task) Recv() (*Event, bool) {
	if t.mailbox == nil {
		return nil, false
	}
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	if t.mailbox.IsEmpty() {
		return nil, false
	}
	return t.mailbox.Get(), true
}

// Release gives back a reference obtained from Recv.
func (t *Task) Release(e *Event) {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	release(e)
}

// Pending returns the number of events in the mailbox.
func (t *Task) Pending() int {
	if t.mailbox == nil {
		return 0
	}
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	return t.mailbox.Len()
}
