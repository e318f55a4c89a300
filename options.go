package rtkernel

import (
	"context"

	"github.com/comalice/rtkernel/internal/primitives"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// Halter is invoked once a contract violation has been recovered at the
// dispatch boundary. The scheduler does not dispatch again after a halt.
type Halter interface {
	Halt(err error)
}

// HalterFunc adapts a function to Halter.
type HalterFunc func(err error)

func (f HalterFunc) Halt(err error) { f(err) }

// IdleFunc runs whenever Run finds no task ready. It should block until new
// work may be available or ctx is done.
type IdleFunc func(ctx context.Context)

// WithLogger sets the logger; nil disables logging.
func WithLogger(l *Logger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

// WithArch selects the exp2/log2 back-end of the ready set.
func WithArch(a primitives.Arch) Option {
	return func(s *Scheduler) {
		s.arch = a
	}
}

// WithHalter replaces the default halt, which stops Run and makes it return
// the violation.
func WithHalter(h Halter) Option {
	return func(s *Scheduler) {
		s.halter = h
	}
}

// WithIdle replaces the default idle, which waits for the next post.
func WithIdle(fn IdleFunc) Option {
	return func(s *Scheduler) {
		s.idle = fn
	}
}

// WithTracer receives a record after every dispatch.
func WithTracer(t Tracer) Option {
	return func(s *Scheduler) {
		s.tracer = t
	}
}
