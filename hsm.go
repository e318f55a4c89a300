package rtkernel

import (
	"fmt"

	"github.com/comalice/rtkernel/internal/primitives"
)

// Kind selects the dispatch algorithm of a Machine.
type Kind uint8

const (
	// FSM machines are flat: SUPER is not a valid handler result.
	FSM Kind = iota
	// HSM machines nest states under Top through SUPER results.
	HSM
)

func (k Kind) String() string {
	switch k {
	case FSM:
		return "FSM"
	case HSM:
		return "HSM"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ResultKind is the outcome a state handler reports for one event.
type ResultKind uint8

const (
	ResultHandled ResultKind = iota
	ResultIgnored
	ResultSuper
	ResultTransit
)

func (k ResultKind) String() string {
	switch k {
	case ResultHandled:
		return "HANDLED"
	case ResultIgnored:
		return "IGNORED"
	case ResultSuper:
		return "SUPER"
	case ResultTransit:
		return "TRANSIT_TO"
	default:
		return fmt.Sprintf("ResultKind(%d)", uint8(k))
	}
}

// Result is returned by every state handler. Construct it with Handled,
// Ignored, Super or TransitTo.
type Result struct {
	kind   ResultKind
	target *State
}

func (r Result) Kind() ResultKind { return r.kind }

// Target is the parent state for SUPER and the destination for TRANSIT_TO.
func (r Result) Target() *State { return r.target }

func Handled() Result { return Result{kind: ResultHandled} }

func Ignored() Result { return Result{kind: ResultIgnored} }

// Super declares parent as the superstate of the handler's state. HSM
// handlers return it for every event they do not consume, including the
// SUPER probe itself.
func Super(parent *State) Result { return Result{kind: ResultSuper, target: parent} }

func TransitTo(target *State) Result { return Result{kind: ResultTransit, target: target} }

// Handler processes one event on behalf of a state.
//
// HSM handlers must answer the SUPER probe without side effects and without
// touching the workspace; Parent relies on it.
type Handler func(m *Machine, e *Event) Result

// State is a node of a state machine. States are compared by identity, so
// they are normally declared as package level variables.
type State struct {
	Name    string
	Handler Handler
}

func (s *State) String() string {
	if s == nil {
		return "<nil>"
	}
	return s.Name
}

// Top is the root of every hierarchy. It ignores all events.
var Top = &State{Name: "TOP", Handler: func(*Machine, *Event) Result { return Ignored() }}

var probe Machine

// Parent returns the superstate s declares, or nil for Top and for states
// that do not answer the SUPER probe.
func Parent(s *State) *State {
	r := s.Handler(&probe, superEvent)
	if r.kind != ResultSuper {
		return nil
	}
	return r.target
}

// Machine is a state machine instance: the current state, the initial state
// and an opaque workspace shared by the handlers. Transition bookkeeping uses
// scratch storage sized at construction, so Init and Dispatch never allocate.
type Machine struct {
	kind      Kind
	current   *State
	initial   *State
	workspace any
	maxDepth  int
	path      []*State
}

// NewMachine returns a machine parked at Top. maxDepth bounds the number of
// nesting levels beneath Top; exceeding it during a transition is a contract
// violation.
func NewMachine(kind Kind, initial *State, workspace any, maxDepth int) *Machine {
	primitives.Assert(initial != nil && initial.Handler != nil, "hsm: initial state must have a handler")
	primitives.Assert(maxDepth >= 1, "hsm: max depth %d must be positive", maxDepth)
	return &Machine{
		kind:      kind,
		current:   Top,
		initial:   initial,
		workspace: workspace,
		maxDepth:  maxDepth,
		path:      make([]*State, maxDepth+1),
	}
}

func (m *Machine) Kind() Kind { return m.kind }

func (m *Machine) Current() *State { return m.current }

func (m *Machine) Initial() *State { return m.initial }

func (m *Machine) Workspace() any { return m.workspace }

func (m *Machine) Handled() Result { return Handled() }

func (m *Machine) Ignored() Result { return Ignored() }

func (m *Machine) Super(parent *State) Result { return Super(parent) }

func (m *Machine) Tran(target *State) Result { return TransitTo(target) }

// Init performs the top-most initial transition. e is delivered to the
// initial state as its first INIT event; nil selects the reserved one.
func (m *Machine) Init(e *Event) {
	if e == nil {
		e = initEvent
	}
	primitives.Assert(e.Signal == SigInit, "hsm: init event carries signal %s", e.Signal)
	switch m.kind {
	case FSM:
		m.current = m.initial
		m.trigger(m.current, entryEvent)
		m.settleFSM(m.trigger(m.current, e))
	default:
		m.enter(Top, m.initial)
		m.current = m.initial
		m.drill(e)
	}
}

// Dispatch delivers e to the current state and runs every transition it
// causes to completion. The returned result is the one reported by the state
// that consumed the event.
func (m *Machine) Dispatch(e *Event) Result {
	if m.kind == FSM {
		r := m.trigger(m.current, e)
		primitives.Assert(r.kind != ResultSuper, "fsm: state %s returned SUPER", m.current)
		m.settleFSM(r)
		return r
	}

	s := m.current
	r := m.trigger(s, e)
	for depth := 0; r.kind == ResultSuper; depth++ {
		primitives.Assert(depth <= m.maxDepth, "hsm: nesting deeper than %d", m.maxDepth)
		s = r.target
		r = m.trigger(s, e)
	}
	if r.kind == ResultTransit {
		m.transit(s, r.target)
	}
	return r
}

// IsIn reports whether s is the current state or, for HSM machines, one of
// its ancestors.
func (m *Machine) IsIn(s *State) bool {
	if m.kind == FSM {
		return m.current == s
	}
	for a, depth := m.current, 0; a != nil; a, depth = m.parent(a), depth+1 {
		primitives.Assert(depth <= m.maxDepth+1, "hsm: nesting deeper than %d", m.maxDepth)
		if a == s {
			return true
		}
	}
	return false
}

// ExitAll exits every active state from the leaf up to, but excluding, Top
// and parks the machine at Top. Init must run again before the next Dispatch.
func (m *Machine) ExitAll() {
	if m.kind == FSM {
		if m.current != Top {
			m.trigger(m.current, exitEvent)
		}
		m.current = Top
		return
	}
	m.exitUpTo(Top)
	m.current = Top
}

func (m *Machine) trigger(s *State, e *Event) Result {
	return s.Handler(m, e)
}

func (m *Machine) parent(s *State) *State {
	r := s.Handler(m, superEvent)
	if r.kind != ResultSuper {
		return nil
	}
	return r.target
}

// settleFSM follows TRANSIT_TO results: EXIT the old state, ENTRY the new one,
// then give it INIT, until something else comes back.
func (m *Machine) settleFSM(r Result) {
	for r.kind == ResultTransit {
		primitives.Assert(r.target != nil, "fsm: transition from %s to nil", m.current)
		m.trigger(m.current, exitEvent)
		m.current = r.target
		m.trigger(m.current, entryEvent)
		r = m.trigger(m.current, initEvent)
		primitives.Assert(r.kind != ResultSuper, "fsm: state %s returned SUPER", m.current)
	}
}

// transit runs the transition from source to target. The least common
// ancestor is the first state of source's chain, source included, that is
// also on target's chain; a self-transition uses source's parent instead, so
// source is exited and entered again.
func (m *Machine) transit(source, target *State) {
	primitives.Assert(target != nil, "hsm: transition from %s to nil", source)
	n := m.chain(target)
	var lca *State
	if source == target {
		lca = m.parent(source)
		primitives.Assert(lca != nil, "hsm: self-transition on %s", source)
	} else {
	search:
		for a := source; a != nil; a = m.parent(a) {
			for _, b := range m.path[:n] {
				if a == b {
					lca = a
					break search
				}
			}
		}
		primitives.Assert(lca != nil, "hsm: %s and %s share no ancestor", source, target)
	}

	m.exitUpTo(lca)
	m.enter(lca, target)
	m.current = target
	m.drill(initEvent)
}

// chain fills m.path with s and its ancestors up to Top, leaf first, and
// returns the number of entries.
func (m *Machine) chain(s *State) int {
	n := 0
	for a := s; a != nil; a = m.parent(a) {
		primitives.Assert(n < len(m.path), "hsm: nesting deeper than %d", m.maxDepth)
		m.path[n] = a
		n++
	}
	return n
}

// exitUpTo exits the active states from the leaf up to, excluding, lca.
func (m *Machine) exitUpTo(lca *State) {
	for s, depth := m.current, 0; s != lca && s != nil; s, depth = m.parent(s), depth+1 {
		primitives.Assert(depth <= m.maxDepth, "hsm: nesting deeper than %d", m.maxDepth)
		m.trigger(s, exitEvent)
	}
}

// enter sends ENTRY to the states strictly below from down to target,
// root first.
func (m *Machine) enter(from, target *State) {
	n := 0
	for a := target; a != from; a = m.parent(a) {
		primitives.Assert(a != nil, "hsm: %s is not below %s", target, from)
		primitives.Assert(n < len(m.path), "hsm: nesting deeper than %d", m.maxDepth)
		m.path[n] = a
		n++
	}
	for i := n - 1; i >= 0; i-- {
		m.trigger(m.path[i], entryEvent)
	}
}

// drill feeds INIT to the current state and follows initial transitions into
// its children until a state declines.
func (m *Machine) drill(e *Event) {
	for {
		r := m.trigger(m.current, e)
		if r.kind != ResultTransit {
			return
		}
		m.enter(m.current, r.target)
		m.current = r.target
		e = initEvent
	}
}
