package rtkernel

import (
	"io"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logger used throughout the kernel.
type Logger = logiface.Logger[logiface.Event]

// NewLogger returns a JSON logger writing to w at the given level. A nil
// *Logger is valid and discards everything; it is the scheduler's default.
func NewLogger(w io.Writer, level logiface.Level) *Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w), stumpy.WithTimeField("")),
		stumpy.L.WithLevel(level),
	).Logger()
}

// dropRates bounds how often a QUEUE_FULL warning is repeated per actor.
var dropRates = map[time.Duration]int{
	time.Second: 5,
	time.Minute: 60,
}

func newDropLimiter() *catrate.Limiter {
	return catrate.NewLimiter(dropRates)
}
