package production

import (
	"sync"
	"sync/atomic"

	"github.com/comalice/rtkernel"
)

// ChannelPublisher is a rtkernel.Tracer that forwards every dispatch record
// to a channel. Publishing never blocks the scheduler: a record that does not
// fit is dropped and counted.
type ChannelPublisher struct {
	mu      sync.RWMutex
	ch      chan rtkernel.TraceRecord
	closed  bool
	dropped atomic.Uint64
}

var _ rtkernel.Tracer = (*ChannelPublisher)(nil)

// NewChannelPublisher creates a ChannelPublisher with a buffer of size.
func NewChannelPublisher(size int) *ChannelPublisher {
	return &ChannelPublisher{ch: make(chan rtkernel.TraceRecord, size)}
}

// Records is the channel records are delivered on. It is closed by Close.
func (p *ChannelPublisher) Records() <-chan rtkernel.TraceRecord { return p.ch }

func (p *ChannelPublisher) Trace(rec rtkernel.TraceRecord) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		return
	}
	select {
	case p.ch <- rec:
	default:
		p.dropped.Add(1)
	}
}

// Dropped returns the number of records discarded so far.
func (p *ChannelPublisher) Dropped() uint64 { return p.dropped.Load() }

// Close closes Records. Records traced afterwards are dropped.
func (p *ChannelPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	return nil
}
