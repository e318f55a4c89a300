package testutil

import "github.com/comalice/rtkernel"

// Fixture signals.
const (
	SigA rtkernel.Signal = rtkernel.SigUser + iota
	SigB
	SigC
	SigD
	SigE
	SigF
	SigG
	SigH
)

// SignalName renders fixture signals as letters and others as the kernel
// names them.
func SignalName(sig rtkernel.Signal) string {
	if sig >= SigA && sig <= SigH {
		return string(rune('A' + sig - SigA))
	}
	return sig.String()
}

// Tree is a nested fixture:
//
//	Top
//	└── s
//	    ├── s1
//	    │   └── s11
//	    └── s2
//	        └── s21
//	            └── s211
//
// The initial leaf is s11. Every state records ENTRY, EXIT, INIT (when it
// drills into a child) and the user signals it consumes. Transitions are
// added with On; signals with no transition bubble up to the parent.
type Tree struct {
	S, S1, S11, S2, S21, S211 *rtkernel.State
	Rec                       *Recorder

	states  []*rtkernel.State
	parents map[*rtkernel.State]*rtkernel.State
	initial map[*rtkernel.State]*rtkernel.State
	moves   map[*rtkernel.State]map[rtkernel.Signal]*rtkernel.State
}

func NewTree() *Tree {
	t := &Tree{
		Rec:     &Recorder{},
		parents: make(map[*rtkernel.State]*rtkernel.State),
		initial: make(map[*rtkernel.State]*rtkernel.State),
		moves:   make(map[*rtkernel.State]map[rtkernel.Signal]*rtkernel.State),
	}
	t.S = t.add("s", rtkernel.Top)
	t.S1 = t.add("s1", t.S)
	t.S11 = t.add("s11", t.S1)
	t.S2 = t.add("s2", t.S)
	t.S21 = t.add("s21", t.S2)
	t.S211 = t.add("s211", t.S21)
	t.initial[t.S] = t.S1
	t.initial[t.S1] = t.S11
	t.initial[t.S2] = t.S21
	t.initial[t.S21] = t.S211
	return t
}

func (t *Tree) add(name string, parent *rtkernel.State) *rtkernel.State {
	s := &rtkernel.State{Name: name}
	s.Handler = t.handler(s)
	t.parents[s] = parent
	t.states = append(t.states, s)
	return s
}

// On makes from transition to to on sig. to == nil consumes sig in place.
func (t *Tree) On(from *rtkernel.State, sig rtkernel.Signal, to *rtkernel.State) *Tree {
	if t.moves[from] == nil {
		t.moves[from] = make(map[rtkernel.Signal]*rtkernel.State)
	}
	t.moves[from][sig] = to
	return t
}

// Initial overrides the child a state drills into on INIT; nil removes it.
func (t *Tree) Initial(s, child *rtkernel.State) *Tree {
	if child == nil {
		delete(t.initial, s)
	} else {
		t.initial[s] = child
	}
	return t
}

func (t *Tree) States() []*rtkernel.State { return append([]*rtkernel.State(nil), t.states...) }

func (t *Tree) handler(s *rtkernel.State) rtkernel.Handler {
	return func(m *rtkernel.Machine, e *rtkernel.Event) rtkernel.Result {
		switch e.Signal {
		case rtkernel.SigSuper:
			return rtkernel.Super(t.parents[s])
		case rtkernel.SigEntry, rtkernel.SigExit:
			t.Rec.Record("%s:%s", s.Name, SignalName(e.Signal))
			return rtkernel.Handled()
		case rtkernel.SigInit:
			if child := t.initial[s]; child != nil {
				t.Rec.Record("%s:%s", s.Name, SignalName(e.Signal))
				return rtkernel.TransitTo(child)
			}
			return rtkernel.Handled()
		}
		if to, ok := t.moves[s][e.Signal]; ok {
			t.Rec.Record("%s:%s", s.Name, SignalName(e.Signal))
			if to == nil {
				return rtkernel.Handled()
			}
			return rtkernel.TransitTo(to)
		}
		return rtkernel.Super(t.parents[s])
	}
}

// Flat is a flat FSM fixture with the same recording conventions as Tree.
type Flat struct {
	States map[string]*rtkernel.State
	Rec    *Recorder

	moves map[*rtkernel.State]map[rtkernel.Signal]*rtkernel.State
}

func NewFlat(names ...string) *Flat {
	f := &Flat{
		States: make(map[string]*rtkernel.State, len(names)),
		Rec:    &Recorder{},
		moves:  make(map[*rtkernel.State]map[rtkernel.Signal]*rtkernel.State),
	}
	for _, name := range names {
		s := &rtkernel.State{Name: name}
		s.Handler = f.handler(s)
		f.States[name] = s
	}
	return f
}

func (f *Flat) On(from string, sig rtkernel.Signal, to string) *Flat {
	src := f.States[from]
	if f.moves[src] == nil {
		f.moves[src] = make(map[rtkernel.Signal]*rtkernel.State)
	}
	f.moves[src][sig] = f.States[to]
	return f
}

func (f *Flat) handler(s *rtkernel.State) rtkernel.Handler {
	return func(m *rtkernel.Machine, e *rtkernel.Event) rtkernel.Result {
		switch e.Signal {
		case rtkernel.SigEntry, rtkernel.SigExit:
			f.Rec.Record("%s:%s", s.Name, SignalName(e.Signal))
			return rtkernel.Handled()
		case rtkernel.SigInit:
			if to, ok := f.moves[s][rtkernel.SigInit]; ok && to != nil {
				f.Rec.Record("%s:%s", s.Name, SignalName(e.Signal))
				return rtkernel.TransitTo(to)
			}
			return rtkernel.Handled()
		}
		if to, ok := f.moves[s][e.Signal]; ok {
			f.Rec.Record("%s:%s", s.Name, SignalName(e.Signal))
			if to == nil {
				return rtkernel.Handled()
			}
			return rtkernel.TransitTo(to)
		}
		return rtkernel.Ignored()
	}
}
