package extensibility

import (
	"sync/atomic"
	"testing"

	"github.com/comalice/rtkernel"
)

const sigTick = rtkernel.SigUser

type counter struct{ n atomic.Int32 }

var countingState = &rtkernel.State{Name: "counting", Handler: func(m *rtkernel.Machine, e *rtkernel.Event) rtkernel.Result {
	if e.Signal == sigTick {
		m.Workspace().(*counter).n.Add(1)
		return m.Handled()
	}
	return m.Ignored()
}}

func newCounter(t *testing.T, s *rtkernel.Scheduler, prio, capacity int) (*rtkernel.Actor, *counter) {
	t.Helper()
	c := &counter{}
	a, err := s.RegisterActor(rtkernel.ActorSpec{
		Name:          "counter",
		Priority:      prio,
		Kind:          rtkernel.FSM,
		Initial:       countingState,
		Workspace:     c,
		QueueCapacity: capacity,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(prio); err != nil {
		t.Fatal(err)
	}
	return a, c
}

func newScheduler(t *testing.T, opts ...rtkernel.Option) *rtkernel.Scheduler {
	t.Helper()
	s, err := rtkernel.NewScheduler(rtkernel.DefaultConfig(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return s
}
