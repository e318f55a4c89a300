// Package benchmarks provides shared helpers for benchmark tests.
package benchmarks

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/comalice/rtkernel"
)

// SigTick drives every generated machine.
const SigTick = rtkernel.SigUser

// GenFlat creates n flat states cycling on SigTick.
func GenFlat(n int) []*rtkernel.State {
	if n < 1 {
		n = 1
	}
	states := make([]*rtkernel.State, n)
	for i := range states {
		states[i] = &rtkernel.State{Name: fmt.Sprintf("s%d", i)}
	}
	for i, s := range states {
		next := states[(i+1)%n]
		s.Handler = func(m *rtkernel.Machine, e *rtkernel.Event) rtkernel.Result {
			if e.Signal == SigTick {
				return m.Tran(next)
			}
			return m.Handled()
		}
	}
	return states
}

// GenDeep creates a chain of depth compound states, c0 outermost, with two
// leaves at the bottom flipping on SigTick. It returns the hierarchy and
// the path of the outermost state.
func GenDeep(depth int) (*rtkernel.Hierarchy, string) {
	if depth < 1 {
		depth = 1
	}
	b := rtkernel.NewHierarchyBuilder()
	names := make([]string, depth)
	for i := range names {
		names[i] = fmt.Sprintf("c%d", i)
	}
	for i := range names {
		path := strings.Join(names[:i+1], ".")
		if i+1 < depth {
			b.State(path).Initial(strings.Join(names[:i+2], "."))
		}
	}
	bottom := strings.Join(names, ".")
	b.State(bottom).Initial(bottom + ".leaf1")
	b.State(bottom+".leaf1").On(SigTick, bottom+".leaf2", nil, nil)
	b.State(bottom+".leaf2").On(SigTick, bottom+".leaf1", nil, nil)
	h, err := b.Build()
	if err != nil {
		panic(err)
	}
	return h, names[0]
}

// GenCross creates two chains of depth compound states under a common root
// whose leaves transition to each other, so every SigTick exits and enters
// depth levels.
func GenCross(depth int) (*rtkernel.Hierarchy, string) {
	if depth < 1 {
		depth = 1
	}
	b := rtkernel.NewHierarchyBuilder()
	leaf := func(branch string) string {
		parts := []string{"root", branch}
		for i := 1; i < depth; i++ {
			parts = append(parts, fmt.Sprintf("%s%d", branch, i))
		}
		return strings.Join(parts, ".")
	}
	left, right := leaf("l"), leaf("r")
	b.State("root").Initial("root.l")
	for _, path := range []string{left, right} {
		parts := strings.Split(path, ".")
		for i := 2; i < len(parts); i++ {
			b.State(strings.Join(parts[:i], ".")).Initial(strings.Join(parts[:i+1], "."))
		}
	}
	b.State(left).On(SigTick, right, nil, nil)
	b.State(right).On(SigTick, left, nil, nil)
	h, err := b.Build()
	if err != nil {
		panic(err)
	}
	return h, "root"
}

var sinkState = &rtkernel.State{Name: "sink", Handler: func(m *rtkernel.Machine, e *rtkernel.Event) rtkernel.Result {
	return m.Handled()
}}

// NewSinkScheduler returns a scheduler with actors at priorities 1..n that
// consume everything.
func NewSinkScheduler(n int, opts ...rtkernel.Option) *rtkernel.Scheduler {
	cfg := rtkernel.DefaultConfig()
	cfg.QueueCapacity = 1024
	if n+1 > cfg.Priorities {
		cfg.Priorities = n + 1
	}
	s, err := rtkernel.NewScheduler(cfg, opts...)
	if err != nil {
		panic(err)
	}
	for p := 1; p <= n; p++ {
		if _, err := s.RegisterActor(rtkernel.ActorSpec{
			Name:     fmt.Sprintf("sink%d", p),
			Priority: p,
			Kind:     rtkernel.FSM,
			Initial:  sinkState,
		}); err != nil {
			panic(err)
		}
	}
	if err := s.StartAll(); err != nil {
		panic(err)
	}
	return s
}

// GenSnapshotYAML marshals the snapshot of a scheduler with n actors.
func GenSnapshotYAML(n int) []byte {
	data, err := yaml.Marshal(NewSinkScheduler(n).Snapshot("bench"))
	if err != nil {
		panic(err)
	}
	return data
}
