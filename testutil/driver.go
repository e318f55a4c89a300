package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/comalice/rtkernel"
	"github.com/comalice/rtkernel/realtime"
)

// Driver runs a scheduler either by explicit stepping or on a realtime
// runtime, so the same scenario can be checked against both.
type Driver interface {
	Start(ctx context.Context) error
	Stop() error
	// Settle returns once nothing but idle is ready, or fails after timeout.
	Settle(timeout time.Duration) error
}

// Drain steps s until only idle is ready and returns the number of steps.
// It gives up after limit steps.
func Drain(s *rtkernel.Scheduler, limit int) (int, error) {
	for n := 0; n < limit; n++ {
		if s.Step() == rtkernel.IdlePriority {
			return n, nil
		}
	}
	return limit, fmt.Errorf("testutil: scheduler still busy after %d steps", limit)
}

// StepDriver dispatches on the calling goroutine inside Settle.
type StepDriver struct {
	S *rtkernel.Scheduler
}

func (d *StepDriver) Start(context.Context) error { return nil }

func (d *StepDriver) Stop() error { return d.S.Err() }

func (d *StepDriver) Settle(time.Duration) error {
	_, err := Drain(d.S, 1<<16)
	return err
}

// RuntimeDriver dispatches on a realtime.Runtime.
type RuntimeDriver struct {
	RT *realtime.Runtime
}

func NewRuntimeDriver(s *rtkernel.Scheduler) *RuntimeDriver {
	return &RuntimeDriver{RT: realtime.NewRuntime(s, realtime.Config{})}
}

func (d *RuntimeDriver) Start(ctx context.Context) error { return d.RT.Start(ctx) }

func (d *RuntimeDriver) Stop() error { return d.RT.Stop() }

func (d *RuntimeDriver) Settle(timeout time.Duration) error {
	s := d.RT.Scheduler()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if idleOnly(s) {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return fmt.Errorf("testutil: scheduler not idle after %v", timeout)
}

func idleOnly(s *rtkernel.Scheduler) bool {
	for p := rtkernel.IdlePriority + 1; p < s.Config().Priorities; p++ {
		if s.IsReady(p) {
			return false
		}
	}
	return true
}
