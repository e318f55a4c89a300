package extensibility

import (
	"time"

	"github.com/comalice/rtkernel"
)

// LoggingAction wraps inner so every run is logged at debug level with its
// duration. A nil inner is logged and otherwise does nothing.
func LoggingAction(l *rtkernel.Logger, name string, inner rtkernel.Action) rtkernel.Action {
	return func(m *rtkernel.Machine, e *rtkernel.Event) {
		start := time.Now()
		if inner != nil {
			inner(m, e)
		}
		l.Debug().
			Str("action", name).
			Str("state", m.Current().Name).
			Str("signal", e.Signal.String()).
			Dur("took", time.Since(start)).
			Log("action ran")
	}
}

// LoggingTracer logs every dispatch record, then hands it to the next
// tracer, if any. Unwinds are logged at info level; everything else at
// debug.
type LoggingTracer struct {
	log  *rtkernel.Logger
	next rtkernel.Tracer
}

var _ rtkernel.Tracer = (*LoggingTracer)(nil)

func NewLoggingTracer(l *rtkernel.Logger, next rtkernel.Tracer) *LoggingTracer {
	return &LoggingTracer{log: l, next: next}
}

func (t *LoggingTracer) Trace(rec rtkernel.TraceRecord) {
	b := t.log.Debug()
	if rec.Cancelled {
		b = t.log.Info()
	}
	b = b.
		Uint64("seq", rec.Seq).
		Int("priority", rec.Priority).
		Str("task", rec.Task)
	if rec.Fiber {
		b = b.Str("status", rec.Status.String())
	} else {
		b = b.
			Str("signal", rec.Signal.String()).
			Str("result", rec.Result.String()).
			Str("state", rec.State)
	}
	b.Bool("cancelled", rec.Cancelled).Log("dispatch")
	if t.next != nil {
		t.next.Trace(rec)
	}
}
