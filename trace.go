package rtkernel

import (
	"time"

	"github.com/comalice/rtkernel/fiber"
)

// Tracer observes dispatches. Trace is called on the scheduler goroutine,
// outside the critical section, after each unit of work completes; it must
// not block.
type Tracer interface {
	Trace(rec TraceRecord)
}

// TracerFunc adapts a function to Tracer.
type TracerFunc func(rec TraceRecord)

func (f TracerFunc) Trace(rec TraceRecord) { f(rec) }

// TraceRecord describes one dispatch step.
type TraceRecord struct {
	Seq      uint64     `json:"seq" yaml:"seq"`
	Priority int        `json:"priority" yaml:"priority"`
	Task     string     `json:"task" yaml:"task"`
	Signal   Signal     `json:"signal" yaml:"signal"`
	Result   ResultKind `json:"result" yaml:"result"`
	// State is the actor's current state after the dispatch.
	State string `json:"state,omitempty" yaml:"state,omitempty"`
	// Status is the fiber status, for fiber tasks.
	Status    fiber.Status `json:"status" yaml:"status"`
	Fiber     bool         `json:"fiber,omitempty" yaml:"fiber,omitempty"`
	Cancelled bool         `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
}

// TaskSnapshot is the observable state of one task slot.
type TaskSnapshot struct {
	Priority int    `json:"priority" yaml:"priority"`
	Name     string `json:"name" yaml:"name"`
	Kind     string `json:"kind" yaml:"kind"`
	State    string `json:"state" yaml:"state"`
	Ready    bool   `json:"ready" yaml:"ready"`
	QueueLen int    `json:"queueLen" yaml:"queueLen"`
	QueueCap int    `json:"queueCap" yaml:"queueCap"`
	Machine  string `json:"machine,omitempty" yaml:"machine,omitempty"`
	Current  string `json:"current,omitempty" yaml:"current,omitempty"`
}

// Snapshot is a point-in-time view of a scheduler, suitable for persisting
// and rendering. Only registered slots are listed, in priority order.
type Snapshot struct {
	Name        string         `json:"name" yaml:"name"`
	Fingerprint string         `json:"fingerprint" yaml:"fingerprint"`
	Config      Config         `json:"config" yaml:"config"`
	Taken       time.Time      `json:"taken" yaml:"taken"`
	Tasks       []TaskSnapshot `json:"tasks" yaml:"tasks"`
	// Waiting lists the priorities of blocked tasks in the order they blocked.
	Waiting  []int     `json:"waiting,omitempty" yaml:"waiting,omitempty"`
	Pool     PoolStats `json:"pool" yaml:"pool"`
	Halted   bool      `json:"halted,omitempty" yaml:"halted,omitempty"`
	Dispatch uint64    `json:"dispatch" yaml:"dispatch"`
}

// PoolStats reports dynamic event usage.
type PoolStats struct {
	Cap  int `json:"cap" yaml:"cap"`
	Free int `json:"free" yaml:"free"`
}
