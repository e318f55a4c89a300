package realtime

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/comalice/rtkernel"
)

// ErrStarted is returned by Start on a runtime that is already running.
var ErrStarted = errors.New("realtime: runtime already started")

// Config configures a Runtime.
type Config struct {
	// Pin locks the dispatch thread to CPU. Ignored where unsupported.
	Pin bool
	CPU int
	// Logger receives runtime lifecycle messages; nil disables them.
	Logger *rtkernel.Logger
}

// Runtime runs a Scheduler's dispatch loop on its own locked OS thread.
type Runtime struct {
	sched *rtkernel.Scheduler
	cfg   Config

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
	err     error
}

func NewRuntime(s *rtkernel.Scheduler, cfg Config) *Runtime {
	return &Runtime{sched: s, cfg: cfg}
}

func (rt *Runtime) Scheduler() *rtkernel.Scheduler { return rt.sched }

// Start launches the dispatch loop. It returns once the loop's goroutine
// exists; the loop runs until ctx is done, Stop is called, or the scheduler
// halts.
func (rt *Runtime) Start(ctx context.Context) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.stopped != nil {
		return ErrStarted
	}
	loopCtx, cancel := context.WithCancel(ctx)
	rt.cancel = cancel
	rt.stopped = make(chan struct{})
	go rt.loop(loopCtx, rt.stopped)
	return nil
}

func (rt *Runtime) loop(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)
	defer func() {
		if r := recover(); r != nil {
			rt.setErr(fmt.Errorf("realtime: dispatch loop panicked: %v", r))
			rt.cfg.Logger.Crit().Any("panic", r).Log("dispatch loop panicked")
		}
	}()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if rt.cfg.Pin {
		if err := setAffinity(rt.cfg.CPU); err != nil {
			rt.cfg.Logger.Warning().Int("cpu", rt.cfg.CPU).Err(err).Log("cpu pinning failed, running unpinned")
		} else {
			rt.cfg.Logger.Debug().Int("cpu", rt.cfg.CPU).Log("dispatch thread pinned")
		}
	}

	err := rt.sched.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	rt.setErr(err)
	rt.cfg.Logger.Debug().Log("dispatch loop stopped")
}

func (rt *Runtime) setErr(err error) {
	if err == nil {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.err == nil {
		rt.err = err
	}
}

// Stop ends the dispatch loop and waits for it, returning Err. Stopping a
// runtime that never started does nothing.
func (rt *Runtime) Stop() error {
	rt.mu.Lock()
	cancel, stopped := rt.cancel, rt.stopped
	rt.mu.Unlock()
	if stopped == nil {
		return nil
	}
	cancel()
	<-stopped
	return rt.Err()
}

// Done is closed once the dispatch loop has returned. It is nil before Start.
func (rt *Runtime) Done() <-chan struct{} {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.stopped
}

// Err returns why the loop ended abnormally: a scheduler halt, an expired
// parent context, or a panic.
func (rt *Runtime) Err() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.err
}
