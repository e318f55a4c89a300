// Command demo runs a small kernel on a realtime runtime: two actors rally
// a ball between them, a fiber task reports on a timer and collects sensor
// samples, and a snapshot is persisted and rendered on exit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeycumines/logiface"

	"github.com/comalice/rtkernel"
	"github.com/comalice/rtkernel/fiber"
	"github.com/comalice/rtkernel/internal/extensibility"
	"github.com/comalice/rtkernel/internal/production"
	"github.com/comalice/rtkernel/realtime"
)

const (
	sigBall = rtkernel.SigUser + iota
	sigReport
	sigSample
)

const (
	prioMonitor = 1
	prioPong    = 2
	prioPing    = 3
)

func main() {
	configPath := flag.String("config", "", "YAML scheduler configuration (defaults when empty)")
	duration := flag.Duration("duration", 2*time.Second, "how long to run")
	rally := flag.Int("rally", 20, "hits per player before the rally ends")
	cpu := flag.Int("cpu", -1, "pin the dispatch thread to this CPU (-1 leaves it unpinned)")
	snapshotDir := flag.String("snapshot", "", "directory to persist the final snapshot into")
	verbose := flag.Bool("v", false, "log every dispatch")
	flag.Parse()

	if err := run(*configPath, *duration, *rally, *cpu, *snapshotDir, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "demo:", err)
		os.Exit(1)
	}
}

func run(configPath string, duration time.Duration, rally, cpu int, snapshotDir string, verbose bool) error {
	cfg := rtkernel.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = rtkernel.LoadConfig(configPath); err != nil {
			return err
		}
	}

	level := logiface.LevelInformational
	if verbose {
		level = logiface.LevelDebug
	}
	log := rtkernel.NewLogger(os.Stderr, level)

	pub := production.NewChannelPublisher(256)
	s, err := rtkernel.NewScheduler(cfg,
		rtkernel.WithLogger(log),
		rtkernel.WithTracer(extensibility.NewLoggingTracer(log, pub)),
	)
	if err != nil {
		return err
	}

	players, err := buildPlayers(log, rally)
	if err != nil {
		return err
	}
	ping, err := addPlayer(s, players, "ping", prioPing)
	if err != nil {
		return err
	}
	pong, err := addPlayer(s, players, "pong", prioPong)
	if err != nil {
		return err
	}
	ping.Machine().Workspace().(extensibility.Vars)["peer"] = pong
	pong.Machine().Workspace().(extensibility.Vars)["peer"] = ping

	mon := &monitor{sched: s, log: log}
	task, err := s.RegisterFiber(rtkernel.FiberSpec{
		Name:            "monitor",
		Priority:        prioMonitor,
		Body:            mon.run,
		MailboxCapacity: 16,
	})
	if err != nil {
		return err
	}
	if err := s.StartAll(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	rt := realtime.NewRuntime(s, realtime.Config{Pin: cpu >= 0, CPU: cpu, Logger: log})
	if err := rt.Start(ctx); err != nil {
		return err
	}

	reports, err := extensibility.NewPeriodicSource(s, extensibility.TaskTarget(s, task), sigReport, duration/4)
	if err != nil {
		return err
	}
	if err := reports.Start(ctx); err != nil {
		return err
	}
	samples := make(chan *rtkernel.Event, 8)
	go produceSamples(ctx, s, samples)
	pumped := make(chan extensibility.PumpStats, 1)
	go func() {
		stats, _ := extensibility.Pump(ctx, samples, extensibility.TaskTarget(s, task))
		pumped <- stats
	}()

	if err := ping.SendSignal(sigBall); err != nil {
		return err
	}

	<-ctx.Done()
	reports.Stop()
	stats := <-pumped
	runErr := rt.Stop()
	if errors.Is(runErr, context.DeadlineExceeded) {
		runErr = nil
	}
	_ = pub.Close()
	var traced int
	for range pub.Records() {
		traced++
	}

	snap := s.Snapshot("demo")
	log.Info().
		Int("traced", traced).
		Uint64("trace_dropped", pub.Dropped()).
		Uint64("samples", stats.Delivered).
		Uint64("samples_dropped", stats.Dropped).
		Uint64("dispatches", snap.Dispatch).
		Log("demo finished")

	if snapshotDir != "" {
		if err := persist(snapshotDir, snap); err != nil {
			return err
		}
	}
	v := &production.DefaultVisualizer{}
	fmt.Print(v.ExportDOT(snap))
	fmt.Print(v.ExportActive(ping.Machine(), players.Get("player.rallying"), players.Get("player.done")))
	return runErr
}

// buildPlayers declares the shared hierarchy of both players: rallying
// returns the ball until the player has hit it rally times, then the player
// is done.
func buildPlayers(log *rtkernel.Logger, rally int) (*rtkernel.Hierarchy, error) {
	keepGoing, err := extensibility.ParseGuard(fmt.Sprintf("hits < %d", rally))
	if err != nil {
		return nil, err
	}
	hit := func(m *rtkernel.Machine, e *rtkernel.Event) {
		vars := m.Workspace().(extensibility.Vars)
		vars["hits"] = vars["hits"].(int) + 1
		if peer, ok := vars["peer"].(*rtkernel.Actor); ok {
			_ = peer.SendSignal(sigBall)
		}
	}

	b := rtkernel.NewHierarchyBuilder()
	b.State("player").Initial("player.rallying")
	b.State("player.rallying").
		OnInternal(sigBall, keepGoing, extensibility.LoggingAction(log, "hit", hit)).
		On(sigBall, "player.done", nil, nil)
	b.State("player.done").Entry(func(m *rtkernel.Machine, e *rtkernel.Event) {
		log.Info().Int("hits", m.Workspace().(extensibility.Vars)["hits"].(int)).Log("rally over")
	})
	return b.Build()
}

func addPlayer(s *rtkernel.Scheduler, h *rtkernel.Hierarchy, name string, prio int) (*rtkernel.Actor, error) {
	return s.RegisterActor(rtkernel.ActorSpec{
		Name:      name,
		Priority:  prio,
		Kind:      rtkernel.HSM,
		Initial:   h.MustGet("player"),
		Workspace: extensibility.Vars{"hits": 0},
	})
}

// monitor is the body of the lowest priority task. It sleeps until its
// mailbox has something, then logs reports and sums samples.
type monitor struct {
	sched *rtkernel.Scheduler
	log   *rtkernel.Logger
	sum   int
	n     int
}

func (mon *monitor) run(f *fiber.Fiber, t *rtkernel.Task) fiber.Status {
	switch f.Resume() {
	case 0:
		mon.sum, mon.n = 0, 0
		fallthrough
	case 1:
		for {
			if st, ok := f.WaitUntil(1, t.Pending() > 0 || t.Cancelled()); !ok {
				return st
			}
			if t.Cancelled() {
				return f.Exit()
			}
			e, _ := t.Recv()
			switch e.Signal {
			case sigReport:
				ps := mon.sched.PoolStats()
				mon.log.Info().
					Int("samples", mon.n).
					Int("sample_sum", mon.sum).
					Int("pool_free", ps.Free).
					Int("pool_cap", ps.Cap).
					Log("report")
			case sigSample:
				mon.sum += e.Payload.(int)
				mon.n++
			}
			t.Release(e)
		}
	}
	return f.Exit()
}

// produceSamples stands in for an interrupt source. Samples the pool cannot
// supply are skipped.
func produceSamples(ctx context.Context, s *rtkernel.Scheduler, out chan<- *rtkernel.Event) {
	defer close(out)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		e, err := s.NewEvent(sigSample, i)
		if err != nil {
			continue
		}
		select {
		case out <- e:
		case <-ctx.Done():
			s.FreeEvent(e)
			return
		}
	}
}

func persist(dir string, snap rtkernel.Snapshot) error {
	ctx := context.Background()
	jp, err := production.NewJSONPersister(dir)
	if err != nil {
		return err
	}
	yp, err := production.NewYAMLPersister(dir)
	if err != nil {
		return err
	}
	for _, p := range []production.Persister{jp, yp} {
		if err := p.Save(ctx, snap); err != nil {
			return err
		}
	}
	if _, err := yp.Load(ctx, snap.Name); err != nil {
		return fmt.Errorf("verify snapshot: %w", err)
	}
	return nil
}
