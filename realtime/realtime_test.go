package realtime_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/logiface"

	"github.com/comalice/rtkernel"
	"github.com/comalice/rtkernel/internal/primitives"
	"github.com/comalice/rtkernel/realtime"
	"github.com/comalice/rtkernel/testutil"
)

const (
	sigCount = rtkernel.SigUser + iota
	sigFault
)

type tally struct{ n atomic.Int32 }

var countState = &rtkernel.State{Name: "count", Handler: func(m *rtkernel.Machine, e *rtkernel.Event) rtkernel.Result {
	switch e.Signal {
	case sigCount:
		m.Workspace().(*tally).n.Add(1)
		return m.Handled()
	case sigFault:
		primitives.Violation("fault requested")
	}
	return m.Ignored()
}}

func newCounter(t *testing.T) (*rtkernel.Scheduler, *rtkernel.Actor, *tally) {
	t.Helper()
	s, err := rtkernel.NewScheduler(rtkernel.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	w := &tally{}
	a, err := s.RegisterActor(rtkernel.ActorSpec{
		Name:      "counter",
		Priority:  3,
		Kind:      rtkernel.FSM,
		Initial:   countState,
		Workspace: w,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.StartAll(); err != nil {
		t.Fatal(err)
	}
	return s, a, w
}

func TestRuntimeDispatchesPosts(t *testing.T) {
	s, a, w := newCounter(t)
	d := testutil.NewRuntimeDriver(s)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start runtime: %v", err)
	}

	const posts = 100
	for sent := 0; sent < posts; {
		if err := a.SendSignal(sigCount); err != nil {
			if !errors.Is(err, rtkernel.ErrQueueFull) {
				t.Fatal(err)
			}
			time.Sleep(time.Millisecond)
			continue
		}
		sent++
	}
	deadline := time.Now().Add(2 * time.Second)
	for w.n.Load() < posts && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := d.Settle(time.Second); err != nil {
		t.Fatal(err)
	}
	if got := w.n.Load(); got != posts {
		t.Errorf("expected %d dispatches, got %d", posts, got)
	}
	if err := d.Stop(); err != nil {
		t.Errorf("expected clean stop, got %v", err)
	}
}

func TestRuntimeStartTwice(t *testing.T) {
	s, _, _ := newCounter(t)
	rt := realtime.NewRuntime(s, realtime.Config{})
	if err := rt.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer rt.Stop()

	if err := rt.Start(context.Background()); !errors.Is(err, realtime.ErrStarted) {
		t.Errorf("expected ErrStarted, got %v", err)
	}
}

func TestRuntimeStopBeforeStart(t *testing.T) {
	s, _, _ := newCounter(t)
	rt := realtime.NewRuntime(s, realtime.Config{})
	if rt.Done() != nil {
		t.Error("expected no done channel before start")
	}
	if err := rt.Stop(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestRuntimeSurfacesHalt(t *testing.T) {
	s, a, _ := newCounter(t)
	rt := realtime.NewRuntime(s, realtime.Config{})
	if err := rt.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := a.SendSignal(sigFault); err != nil {
		t.Fatal(err)
	}

	select {
	case <-rt.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("runtime did not stop after a violation")
	}
	var ce *rtkernel.ContractError
	if err := rt.Err(); !errors.As(err, &ce) {
		t.Fatalf("expected contract error, got %v", err)
	}
	if !s.Halted() {
		t.Error("scheduler should report halted")
	}
	if err := rt.Stop(); err == nil {
		t.Error("Stop should return the halt error")
	}
}

func TestRuntimeParentContext(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		s, _, _ := newCounter(t)
		rt := realtime.NewRuntime(s, realtime.Config{})
		ctx, cancel := context.WithCancel(context.Background())
		if err := rt.Start(ctx); err != nil {
			t.Fatal(err)
		}
		cancel()
		<-rt.Done()
		if err := rt.Err(); err != nil {
			t.Errorf("cancellation is a clean stop, got %v", err)
		}
	})

	t.Run("deadline", func(t *testing.T) {
		s, _, _ := newCounter(t)
		rt := realtime.NewRuntime(s, realtime.Config{})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := rt.Start(ctx); err != nil {
			t.Fatal(err)
		}
		<-rt.Done()
		if err := rt.Err(); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})
}

func TestRuntimePinned(t *testing.T) {
	s, a, w := newCounter(t)
	rt := realtime.NewRuntime(s, realtime.Config{
		Pin:    true,
		CPU:    0,
		Logger: rtkernel.NewLogger(testWriter{t}, logiface.LevelDebug),
	})
	if err := rt.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := a.SendSignal(sigCount); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for w.n.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if w.n.Load() != 1 {
		t.Error("pinned runtime did not dispatch")
	}
	if err := rt.Stop(); err != nil {
		t.Error(err)
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}
