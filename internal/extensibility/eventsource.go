// Package extensibility connects a scheduler to the outside world: event
// sources feeding actors, expression guards and logging hooks for
// hierarchies built with rtkernel.HierarchyBuilder, and a logging tracer.
package extensibility

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/comalice/rtkernel"
)

// Target receives pumped events. *rtkernel.Actor implements it.
type Target interface {
	SendEvent(e *rtkernel.Event) error
}

type recycler interface {
	FreeEvent(e *rtkernel.Event) bool
}

// poolTarget returns rejected dynamic events to the scheduler's pool.
type poolTarget struct {
	s    *rtkernel.Scheduler
	post func(e *rtkernel.Event) error
}

func (t poolTarget) SendEvent(e *rtkernel.Event) error { return t.post(e) }

func (t poolTarget) FreeEvent(e *rtkernel.Event) bool { return t.s.FreeEvent(e) }

// ActorTarget delivers to a, recycling dynamic events a rejects.
func ActorTarget(s *rtkernel.Scheduler, a *rtkernel.Actor) Target {
	return poolTarget{s: s, post: a.SendEvent}
}

// TaskTarget delivers to the mailbox of a fiber task.
func TaskTarget(s *rtkernel.Scheduler, t *rtkernel.Task) Target {
	return poolTarget{s: s, post: t.Post}
}

// PumpStats counts what a Pump did with the events it received.
type PumpStats struct {
	Delivered uint64
	Dropped   uint64
}

// Pump forwards events from ch to target until ch is closed or ctx is done.
// It plays the part of an interrupt handler: it never waits for the target,
// so an event the target rejects is dropped, and returned to its pool when
// target can recycle it. Pump returns nil once ch is closed, ctx.Err()
// otherwise.
func Pump(ctx context.Context, ch <-chan *rtkernel.Event, target Target) (PumpStats, error) {
	var stats PumpStats
	r, _ := target.(recycler)
	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case e, ok := <-ch:
			if !ok {
				return stats, nil
			}
			if err := target.SendEvent(e); err != nil {
				stats.Dropped++
				if r != nil && e.IsDynamic() {
					r.FreeEvent(e)
				}
				continue
			}
			stats.Delivered++
		}
	}
}

// PeriodicSource posts one static signal to a target every period.
type PeriodicSource struct {
	target Target
	event  *rtkernel.Event
	period time.Duration

	ticks   atomic.Uint64
	dropped atomic.Uint64

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// ErrSourceRunning is returned by Start on a source that is already running.
var ErrSourceRunning = errors.New("extensibility: source already running")

// NewPeriodicSource resolves sig to its static event on s.
func NewPeriodicSource(s *rtkernel.Scheduler, target Target, sig rtkernel.Signal, period time.Duration) (*PeriodicSource, error) {
	if period <= 0 {
		return nil, rtkernel.ErrOutOfRange
	}
	e, err := s.StaticEvent(sig)
	if err != nil {
		return nil, err
	}
	return &PeriodicSource{target: target, event: e, period: period}, nil
}

// Start launches the ticker. It stops on Stop or when ctx is done.
func (p *PeriodicSource) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return ErrSourceRunning
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(ctx, p.stop, p.done)
	return nil
}

func (p *PeriodicSource) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.ticks.Add(1)
			if err := p.target.SendEvent(p.event); err != nil {
				p.dropped.Add(1)
			}
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the ticker and waits for it. The source may be started again.
func (p *PeriodicSource) Stop() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Ticks is the number of periods elapsed while running.
func (p *PeriodicSource) Ticks() uint64 { return p.ticks.Load() }

// Dropped is the number of ticks the target rejected.
func (p *PeriodicSource) Dropped() uint64 { return p.dropped.Load() }
