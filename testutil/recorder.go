// Package testutil provides state machine fixtures and scheduler drivers
// shared by the kernel's tests and benchmarks.
package testutil

import (
	"fmt"
	"sync"
)

// Recorder collects handler activity as "state:SIGNAL" lines.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *Recorder) Record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

// Lines returns a copy of everything recorded so far.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Take returns everything recorded and resets the recorder.
func (r *Recorder) Take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := r.lines
	r.lines = nil
	return lines
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}
