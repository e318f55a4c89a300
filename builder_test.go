package rtkernel_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	. "github.com/comalice/rtkernel"
	"github.com/comalice/rtkernel/testutil"
)

const (
	sigTimer = SigUser + iota
	sigFault
	sigReset
	sigPing
)

func TestBuilderTrafficLight(t *testing.T) {
	var log []string
	record := func(s string) Action {
		return func(*Machine, *Event) { log = append(log, s) }
	}

	b := NewHierarchyBuilder()
	b.State("light").Initial("light.green").On(sigFault, "fault", nil, record("fault"))
	b.State("light.green").Entry(record("green")).On(sigTimer, "light.yellow", nil, nil)
	b.State("light.yellow").Entry(record("yellow")).On(sigTimer, "light.red", nil, nil)
	b.State("light.red").Entry(record("red")).On(sigTimer, "light.green", nil, nil)
	b.State("fault").Entry(record("blink")).Exit(record("unblink")).On(sigReset, "light", nil, nil)

	h, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	m := NewMachine(HSM, h.MustGet("light"), nil, 4)
	m.Init(nil)
	if m.Current() != h.MustGet("light.green") {
		t.Fatalf("should start in green, got %s", m.Current())
	}

	for range 3 {
		m.Dispatch(&Event{Signal: sigTimer})
	}
	if m.Current() != h.MustGet("light.green") {
		t.Errorf("should cycle back to green, got %s", m.Current())
	}

	m.Dispatch(&Event{Signal: sigFault})
	if !m.IsIn(h.MustGet("fault")) {
		t.Errorf("fault handled by the parent should leave the light, got %s", m.Current())
	}
	m.Dispatch(&Event{Signal: sigReset})

	want := []string{"green", "yellow", "red", "green", "fault", "blink", "unblink", "green"}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Errorf("action order mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilderGuardsAndInternal(t *testing.T) {
	var pings, armed int
	b := NewHierarchyBuilder()
	b.State("idle").
		OnInternal(sigPing, nil, func(*Machine, *Event) { pings++ }).
		On(sigTimer, "busy", func(m *Machine, e *Event) bool { return armed > 0 }, nil)
	b.State("busy")

	h, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	m := NewMachine(HSM, h.MustGet("idle"), nil, 2)
	m.Init(nil)

	if r := m.Dispatch(&Event{Signal: sigPing}); r.Kind() != ResultHandled {
		t.Errorf("internal transition should be handled, got %s", r.Kind())
	}
	if r := m.Dispatch(&Event{Signal: sigTimer}); r.Kind() != ResultIgnored {
		t.Errorf("guarded transition should fall through to top, got %s", r.Kind())
	}
	armed = 1
	m.Dispatch(&Event{Signal: sigTimer})
	if m.Current() != h.MustGet("busy") || pings != 1 {
		t.Errorf("expected busy after 1 ping, got %s after %d", m.Current(), pings)
	}
}

func TestBuilderCreatesAncestors(t *testing.T) {
	b := NewHierarchyBuilder()
	b.State("a.b.c")
	h, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "a.b", "a.b.c"}, h.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if Parent(h.MustGet("a.b.c")) != h.MustGet("a.b") || Parent(h.MustGet("a")) != Top {
		t.Error("generated parents do not follow the paths")
	}
	if h.Get("missing") != nil {
		t.Error("unknown path should be nil")
	}
}

func TestBuilderValidation(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *HierarchyBuilder)
		want  string
	}{
		{"unknown target", func(b *HierarchyBuilder) { b.State("a").On(testutil.SigA, "nowhere", nil, nil) }, "unknown state nowhere"},
		{"unknown initial", func(b *HierarchyBuilder) { b.State("a").Initial("a.x") }, "unknown initial state a.x"},
		{"initial outside subtree", func(b *HierarchyBuilder) { b.State("a").Initial("b"); b.State("b") }, "outside its subtree"},
		{"malformed path", func(b *HierarchyBuilder) { b.State("a.") }, "malformed path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewHierarchyBuilder()
			tt.build(b)
			_, err := b.Build()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
