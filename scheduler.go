package rtkernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/comalice/rtkernel/fiber"
	"github.com/comalice/rtkernel/internal/primitives"
	"github.com/joeycumines/go-catrate"
)

// ContractError is the panic value of a violated precondition. The scheduler
// recovers it at the dispatch boundary and hands it to the Halter.
type ContractError = primitives.ContractError

// IdlePriority is the slot dispatched when nothing else is ready.
const IdlePriority = 0

// Scheduler owns a fixed arena of task slots indexed by priority and runs
// the highest ready one, one unit of work at a time.
//
// Producers may post from any goroutine. A mutex guards the ready set, the
// queues, the wait list and the event pool; handlers and fiber bodies run
// outside it, on the goroutine calling Step or Run.
type Scheduler struct {
	cfg    Config
	log    *Logger
	arch   primitives.Arch
	halter Halter
	idle   IdleFunc
	tracer Tracer
	drops  *catrate.Limiter

	mu      sync.Mutex
	ready   primitives.PrioritySet
	tasks   []Task
	waits   *primitives.Links
	statics staticEvents
	pool    *Pool
	err     error

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	halted   atomic.Bool
	seq      atomic.Uint64
}

// NewScheduler validates cfg and allocates every slot, queue and table the
// scheduler will use.
func NewScheduler(cfg Config, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scheduler{
		cfg:     cfg,
		tasks:   make([]Task, cfg.Priorities),
		waits:   primitives.NewLinks(cfg.Priorities + 1),
		statics: newStaticEvents(cfg.MaxSignals),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	s.halter = HalterFunc(s.fail)
	s.idle = s.waitForWork
	for _, opt := range opts {
		opt(s)
	}
	s.ready = primitives.NewPrioritySet(cfg.Priorities, s.arch)
	s.drops = newDropLimiter()
	if cfg.PoolSize > 0 {
		pool, err := NewPool(cfg.PoolSize)
		if err != nil {
			return nil, err
		}
		s.pool = pool
	}

	for p := range s.tasks {
		s.tasks[p] = Task{sched: s, prio: p}
	}
	idle := &s.tasks[IdlePriority]
	idle.name = "idle"
	idle.kind = taskIdle
	idle.state = Ready
	s.ready.Set(IdlePriority)

	s.log.Debug().
		Int("priorities", cfg.Priorities).
		Int("queue_capacity", cfg.QueueCapacity).
		Int("pool_size", cfg.PoolSize).
		Log("scheduler created")
	return s, nil
}

func (s *Scheduler) Config() Config { return s.cfg }

// waitSentinel is the wait list's boundary node, one past the last slot.
func (s *Scheduler) waitSentinel() primitives.Handle {
	return primitives.Handle(len(s.tasks))
}

func (s *Scheduler) checkPriority(prio int) error {
	if prio <= IdlePriority || prio >= len(s.tasks) {
		return fmt.Errorf("priority %d outside [1,%d): %w", prio, len(s.tasks), ErrOutOfRange)
	}
	return nil
}

// claim reserves a slot for registration. Callers hold s.mu.
func (s *Scheduler) claim(prio int, name string) (*Task, error) {
	if err := s.checkPriority(prio); err != nil {
		return nil, err
	}
	t := &s.tasks[prio]
	if t.kind != taskNone {
		return nil, fmt.Errorf("priority %d held by %s: %w", prio, t.name, ErrPriorityTaken)
	}
	if name == "" {
		name = fmt.Sprintf("task-%d", prio)
	}
	t.name = name
	return t, nil
}

// RegisterActor allocates an actor at spec.Priority. The actor stays dormant
// until Start.
func (s *Scheduler) RegisterActor(spec ActorSpec) (*Actor, error) {
	if spec.Initial == nil || spec.Initial.Handler == nil {
		return nil, fmt.Errorf("actor %q: initial state required: %w", spec.Name, ErrInvalidObject)
	}
	capacity := spec.QueueCapacity
	if capacity == 0 {
		capacity = s.cfg.QueueCapacity
	}
	queue, err := primitives.NewRing[*Event](capacity)
	if err != nil {
		return nil, fmt.Errorf("actor %q: %w: %w", spec.Name, ErrOutOfRange, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.claim(spec.Priority, spec.Name)
	if err != nil {
		return nil, err
	}
	a := &Actor{
		task:      t,
		queue:     queue,
		machine:   NewMachine(spec.Kind, spec.Initial, spec.Workspace, s.cfg.MaxNesting),
		initEvent: spec.InitEvent,
	}
	t.kind = taskActor
	t.actor = a
	t.state = Dormant
	s.log.Debug().Int("priority", t.prio).Str("task", t.name).Str("machine", spec.Kind.String()).Log("actor registered")
	return a, nil
}

// RegisterFiber allocates a fiber task at spec.Priority. The task stays
// dormant until Start.
func (s *Scheduler) RegisterFiber(spec FiberSpec) (*Task, error) {
	if spec.Body == nil {
		return nil, fmt.Errorf("fiber %q: body required: %w", spec.Name, ErrInvalidObject)
	}
	var mailbox *primitives.Ring[*Event]
	if spec.MailboxCapacity != 0 {
		var err error
		if mailbox, err = primitives.NewRing[*Event](spec.MailboxCapacity); err != nil {
			return nil, fmt.Errorf("fiber %q: %w: %w", spec.Name, ErrOutOfRange, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.claim(spec.Priority, spec.Name)
	if err != nil {
		return nil, err
	}
	body := spec.Body
	t.kind = taskFiber
	t.mailbox = mailbox
	t.body = func(f *fiber.Fiber) fiber.Status { return body(f, t) }
	t.state = Dormant
	s.log.Debug().Int("priority", t.prio).Str("task", t.name).Bool("mailbox", mailbox != nil).Log("fiber registered")
	return t, nil
}

// Task returns the slot at prio, or nil outside the configured range.
func (s *Scheduler) Task(prio int) *Task {
	if prio < 0 || prio >= len(s.tasks) {
		return nil
	}
	return &s.tasks[prio]
}

// Actor returns the actor registered at prio, or nil.
func (s *Scheduler) Actor(prio int) *Actor {
	t := s.Task(prio)
	if t == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.actor
}

// State returns the lifecycle state of the slot at prio.
func (s *Scheduler) State(prio int) TaskState {
	t := s.Task(prio)
	if t == nil {
		return Uninitialized
	}
	return t.State()
}

// IsReady reports whether prio's bit is set in the ready set.
func (s *Scheduler) IsReady(prio int) bool {
	if prio < 0 || prio >= len(s.tasks) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready.IsSet(uint(prio))
}

// StaticEvent returns the shared immutable event for sig.
func (s *Scheduler) StaticEvent(sig Signal) (*Event, error) {
	return s.statics.lookup(sig)
}

// NewEvent takes a dynamic event from the pool. It returns to the pool on its
// own once every queue it was posted to has consumed it; an event that is
// never posted must be handed back with FreeEvent.
func (s *Scheduler) NewEvent(sig Signal, payload any) (*Event, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("no pool configured: %w", ErrPoolExhausted)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.Get(sig, payload)
}

// FreeEvent returns an unposted dynamic event to the pool.
func (s *Scheduler) FreeEvent(e *Event) bool {
	if s.pool == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.Release(e)
}

// PoolStats reports dynamic event usage.
func (s *Scheduler) PoolStats() PoolStats {
	if s.pool == nil {
		return PoolStats{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return PoolStats{Cap: s.pool.Cap(), Free: s.pool.Free()}
}

// post is the producer path shared by actors and fiber mailboxes.
func (s *Scheduler) post(t *Task, q *primitives.Ring[*Event], e *Event, lifo bool) error {
	primitives.Assert(e != nil, "post: nil event")
	if err := s.push(t, q, e, lifo); err != nil {
		if errors.Is(err, ErrQueueFull) {
			s.logDrop(t, e)
		}
		return err
	}
	s.notify()
	return nil
}

func (s *Scheduler) push(t *Task, q *primitives.Ring[*Event], e *Event, lifo bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch t.state {
	case Ready, Blocked:
	default:
		return fmt.Errorf("post to %s in state %s: %w", t.name, t.state, ErrInvalidObject)
	}
	// the reference is taken once a slot is known to be free, so a
	// rejected event leaves its count untouched
	if q.IsFull() {
		return ErrQueueFull
	}
	retain(e)
	if lifo {
		q.PushLIFO(e)
	} else {
		q.PushFIFO(e)
	}
	switch {
	case t.starting:
	case t.state == Blocked:
		s.unblock(t)
	default:
		t.woken = true
		s.ready.Set(uint(t.prio))
	}
	return nil
}

func (s *Scheduler) logDrop(t *Task, e *Event) {
	if _, ok := s.drops.Allow(t.prio); !ok {
		return
	}
	s.log.Warning().
		Int("priority", t.prio).
		Str("task", t.name).
		Str("signal", e.Signal.String()).
		Log("queue full, event dropped")
}

// notify wakes the idle wait without blocking.
func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// block moves a running task to the wait list. Callers hold s.mu.
func (s *Scheduler) block(t *Task) {
	t.state = Blocked
	s.ready.Clear(uint(t.prio))
	s.waits.AddBefore(s.waitSentinel(), primitives.Handle(t.prio))
}

// unblock is the reverse of block. Callers hold s.mu.
func (s *Scheduler) unblock(t *Task) {
	s.waits.Remove(primitives.Handle(t.prio))
	t.state = Ready
	s.ready.Set(uint(t.prio))
}

// retire forces a task dormant, releasing whatever it still has queued.
// Callers hold s.mu.
func (s *Scheduler) retire(t *Task) {
	h := primitives.Handle(t.prio)
	if s.waits.IsLinked(h) {
		s.waits.Remove(h)
	}
	s.ready.Clear(uint(t.prio))
	t.state = Dormant
	t.starting = false
	t.woken = false
	var q *primitives.Ring[*Event]
	if t.actor != nil {
		q = t.actor.queue
	} else {
		q = t.mailbox
	}
	for q != nil && !q.IsEmpty() {
		release(q.Get())
	}
}

// Start moves a dormant task to ready. An actor first runs its initial
// transition, on the calling goroutine, and is then ready only if events
// are already queued for it; otherwise it blocks waiting for one.
func (s *Scheduler) Start(prio int) error {
	if err := s.checkPriority(prio); err != nil {
		return err
	}
	t := &s.tasks[prio]

	s.mu.Lock()
	if t.state != Dormant {
		state := t.state
		s.mu.Unlock()
		return fmt.Errorf("start %d in state %s: %w", prio, state, ErrInvalidObject)
	}
	t.state = Ready
	if t.kind == taskFiber {
		t.fib.Init()
		t.woken = false
		s.ready.Set(uint(prio))
		s.mu.Unlock()
		s.notify()
		s.log.Debug().Int("priority", prio).Str("task", t.name).Log("fiber started")
		return nil
	}
	t.starting = true
	s.mu.Unlock()

	a := t.actor
	a.machine.Init(a.initEvent)
	current := a.machine.Current().Name

	s.mu.Lock()
	t.current = current
	wasStarting := t.starting
	t.starting = false
	if wasStarting && t.state == Ready {
		if a.queue.IsEmpty() {
			s.block(t)
		} else {
			s.ready.Set(uint(prio))
		}
	}
	s.mu.Unlock()
	s.notify()
	s.log.Debug().Int("priority", prio).Str("task", t.name).Str("state", current).Log("actor started")
	return nil
}

// StartAll starts every registered dormant task, lowest priority first.
func (s *Scheduler) StartAll() error {
	for p := IdlePriority + 1; p < len(s.tasks); p++ {
		if s.State(p) != Dormant {
			continue
		}
		if err := s.Start(p); err != nil {
			return err
		}
	}
	return nil
}

// Stop takes a task out of scheduling. A ready task becomes dormant at once,
// dropping what it has queued. A blocked task is cancelled: it is dispatched
// one last time so it can unwind, then forced dormant. Stopping a dormant or
// cancelled task does nothing.
func (s *Scheduler) Stop(prio int) error {
	if err := s.checkPriority(prio); err != nil {
		return err
	}
	t := &s.tasks[prio]

	s.mu.Lock()
	defer s.mu.Unlock()
	switch t.state {
	case Uninitialized:
		return fmt.Errorf("stop %d: %w", prio, ErrInvalidObject)
	case Dormant, Cancelled:
		return nil
	case Ready:
		s.retire(t)
		s.log.Debug().Int("priority", prio).Str("task", t.name).Log("task stopped")
	case Blocked:
		s.waits.Remove(primitives.Handle(prio))
		t.state = Cancelled
		s.ready.Set(uint(prio))
		s.notify()
		s.log.Debug().Int("priority", prio).Str("task", t.name).Log("task cancelled")
	}
	return nil
}

// Wake makes a blocked fiber task ready without posting to it. Waking a
// fiber that is already running makes its next Waiting result retry instead
// of blocking.
func (s *Scheduler) Wake(prio int) error {
	if err := s.checkPriority(prio); err != nil {
		return err
	}
	t := &s.tasks[prio]

	s.mu.Lock()
	defer s.mu.Unlock()
	if t.kind != taskFiber {
		return fmt.Errorf("wake %d: not a fiber task: %w", prio, ErrInvalidObject)
	}
	switch t.state {
	case Blocked:
		s.unblock(t)
		s.notify()
	case Ready:
		t.woken = true
	case Cancelled:
	default:
		return fmt.Errorf("wake %d in state %s: %w", prio, t.state, ErrInvalidObject)
	}
	return nil
}

// Step makes one scheduling decision and runs one unit of work: a single
// event for an actor, a single dispatch for a fiber. It returns the priority
// that ran, or IdlePriority when nothing was ready. Step never blocks and
// does not invoke the idle function.
func (s *Scheduler) Step() int {
	if s.halted.Load() {
		return IdlePriority
	}
	s.mu.Lock()
	prio := int(s.ready.Highest())
	s.mu.Unlock()
	if prio == IdlePriority {
		return IdlePriority
	}

	t := &s.tasks[prio]
	defer s.recoverViolation(t)
	switch t.kind {
	case taskActor:
		s.stepActor(t)
	case taskFiber:
		s.stepFiber(t)
	default:
		primitives.Violation("step: ready bit set for empty slot %d", prio)
	}
	return prio
}

func (s *Scheduler) stepActor(t *Task) {
	a := t.actor

	s.mu.Lock()
	if t.state == Cancelled {
		s.mu.Unlock()
		s.cancelActor(t)
		return
	}
	e := a.queue.Get()
	s.mu.Unlock()

	sig := e.Signal
	r := a.machine.Dispatch(e)
	current := a.machine.Current().Name

	s.mu.Lock()
	t.current = current
	if t.state == Ready && a.queue.IsEmpty() {
		s.block(t)
	}
	release(e)
	s.mu.Unlock()

	s.trace(TraceRecord{
		Priority: t.prio,
		Task:     t.name,
		Signal:   sig,
		Result:   r.Kind(),
		State:    current,
	})
}

func (s *Scheduler) cancelActor(t *Task) {
	a := t.actor
	r := a.machine.Dispatch(cancelEvent)
	a.machine.ExitAll()
	current := a.machine.Current().Name

	s.mu.Lock()
	t.current = current
	s.retire(t)
	s.mu.Unlock()

	s.log.Debug().Int("priority", t.prio).Str("task", t.name).Log("actor unwound")
	s.trace(TraceRecord{
		Priority:  t.prio,
		Task:      t.name,
		Signal:    SigCancel,
		Result:    r.Kind(),
		State:     current,
		Cancelled: true,
	})
}

func (s *Scheduler) stepFiber(t *Task) {
	s.mu.Lock()
	t.cancelling = t.state == Cancelled
	t.woken = false
	s.mu.Unlock()

	st := t.fib.Dispatch(t.body)

	s.mu.Lock()
	cancelled := t.cancelling
	t.cancelling = false
	switch {
	case cancelled:
		s.retire(t)
	case t.state != Ready:
		// stopped from inside its own body
	case st == fiber.Terminated:
		s.retire(t)
	case st == fiber.Waiting:
		if !t.woken && (t.mailbox == nil || t.mailbox.IsEmpty()) {
			s.block(t)
		}
	}
	s.mu.Unlock()

	if st == fiber.Terminated || cancelled {
		s.log.Debug().Int("priority", t.prio).Str("task", t.name).Bool("cancelled", cancelled).Log("fiber finished")
	}
	s.trace(TraceRecord{
		Priority:  t.prio,
		Task:      t.name,
		Status:    st,
		Fiber:     true,
		Cancelled: cancelled,
	})
}

func (s *Scheduler) trace(rec TraceRecord) {
	rec.Seq = s.seq.Add(1)
	if s.tracer != nil {
		s.tracer.Trace(rec)
	}
}

// recoverViolation turns a contract violation raised during a dispatch into
// a halt. Other panics propagate.
func (s *Scheduler) recoverViolation(t *Task) {
	r := recover()
	if r == nil {
		return
	}
	err, ok := r.(error)
	var ce *ContractError
	if !ok || !errors.As(err, &ce) {
		panic(r)
	}
	s.halted.Store(true)
	s.log.Crit().Int("priority", t.prio).Str("task", t.name).Err(err).Log("contract violation, halting")
	s.halter.Halt(err)
}

// Halted reports whether a contract violation stopped dispatching.
func (s *Scheduler) Halted() bool { return s.halted.Load() }

func (s *Scheduler) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.Shutdown()
}

// Err returns the violation that halted the scheduler, if any.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Run dispatches until ctx is done or Shutdown is called, checking both once
// per iteration. Whenever nothing is ready the idle function runs. Run
// returns ctx.Err(), or the halting violation, or nil after Shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Debug().Log("scheduler running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return s.Err()
		default:
		}
		if s.Step() == IdlePriority {
			s.idle(ctx)
		}
	}
}

func (s *Scheduler) waitForWork(ctx context.Context) {
	select {
	case <-s.wake:
	case <-s.done:
	case <-ctx.Done():
	}
}

// Shutdown asks Run to return. It is safe to call more than once.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// Done is closed by Shutdown.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// Snapshot captures the registered slots, the wait list and pool usage.
func (s *Scheduler) Snapshot(name string) Snapshot {
	snap := Snapshot{
		Name:        name,
		Fingerprint: s.cfg.Fingerprint(),
		Config:      s.cfg,
		Taken:       time.Now().UTC(),
		Halted:      s.halted.Load(),
		Dispatch:    s.seq.Load(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for p := range s.tasks {
		t := &s.tasks[p]
		if t.kind == taskNone {
			continue
		}
		ts := TaskSnapshot{
			Priority: p,
			Name:     t.name,
			Kind:     t.kind.String(),
			State:    t.state.String(),
			Ready:    s.ready.IsSet(uint(p)),
		}
		switch {
		case t.actor != nil:
			ts.QueueLen = t.actor.queue.Len()
			ts.QueueCap = t.actor.queue.Cap()
			ts.Machine = t.actor.machine.Kind().String()
			ts.Current = t.current
		case t.mailbox != nil:
			ts.QueueLen = t.mailbox.Len()
			ts.QueueCap = t.mailbox.Cap()
		}
		snap.Tasks = append(snap.Tasks, ts)
	}
	for h := range s.waits.All(s.waitSentinel()) {
		snap.Waiting = append(snap.Waiting, int(h))
	}
	if s.pool != nil {
		snap.Pool = PoolStats{Cap: s.pool.Cap(), Free: s.pool.Free()}
	}
	return snap
}
