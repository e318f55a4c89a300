package rtkernel

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Action runs on entry, exit, or as the effect of a transition.
type Action func(m *Machine, e *Event)

// Guard enables a transition.
type Guard func(m *Machine, e *Event) bool

// HierarchyBuilder declares states by dotted path instead of hand-written
// handlers. "door.open" is a child of "door", which is a child of Top. Build
// generates one Handler per state that answers SUPER with its parent, runs
// entry and exit actions, follows the declared initial child on INIT, and
// matches transitions by signal, first declared first tried. Unmatched
// events go to the parent, so the generated states are for HSM machines.
type HierarchyBuilder struct {
	states map[string]*stateDecl
	order  []string
}

type stateDecl struct {
	name        string
	parent      string
	initial     string
	entry       Action
	exit        Action
	transitions []transitionDecl
	state       *State
}

type transitionDecl struct {
	signal Signal
	target string
	guard  Guard
	action Action
}

// StateBuilder configures one declared state.
type StateBuilder struct {
	b    *HierarchyBuilder
	decl *stateDecl
}

// Hierarchy is the result of HierarchyBuilder.Build.
type Hierarchy struct {
	states map[string]*State
}

func NewHierarchyBuilder() *HierarchyBuilder {
	return &HierarchyBuilder{states: make(map[string]*stateDecl)}
}

// State creates or retrieves a state by path. Missing ancestors are created.
func (b *HierarchyBuilder) State(path string) *StateBuilder {
	return &StateBuilder{b: b, decl: b.declare(path)}
}

func (b *HierarchyBuilder) declare(path string) *stateDecl {
	if d, ok := b.states[path]; ok {
		return d
	}
	parent, _ := splitPath(path)
	d := &stateDecl{name: path, parent: parent}
	d.state = &State{Name: path}
	b.states[path] = d
	b.order = append(b.order, path)
	if parent != "" {
		b.declare(parent)
	}
	return d
}

// Build validates the declarations and returns the generated states.
func (b *HierarchyBuilder) Build() (*Hierarchy, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	h := &Hierarchy{states: make(map[string]*State, len(b.states))}
	for _, d := range b.states {
		d.state.Handler = b.handler(d)
		h.states[d.name] = d.state
	}
	return h, nil
}

func (b *HierarchyBuilder) validate() error {
	var errs []error
	for _, name := range b.order {
		d := b.states[name]
		if name == "" || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
			errs = append(errs, fmt.Errorf("state %q: malformed path", name))
		}
		if d.initial != "" {
			child, ok := b.states[d.initial]
			switch {
			case !ok:
				errs = append(errs, fmt.Errorf("state %s has unknown initial state %s", name, d.initial))
			case !isBelow(child.name, name):
				errs = append(errs, fmt.Errorf("state %s has initial state %s outside its subtree", name, d.initial))
			}
		}
		for _, tr := range d.transitions {
			if tr.target == "" {
				continue
			}
			if _, ok := b.states[tr.target]; !ok {
				errs = append(errs, fmt.Errorf("state %s has transition on %s to unknown state %s", name, tr.signal, tr.target))
			}
		}
	}
	return errors.Join(errs...)
}

func (b *HierarchyBuilder) handler(d *stateDecl) Handler {
	parent := Top
	if d.parent != "" {
		parent = b.states[d.parent].state
	}
	var initial *State
	if d.initial != "" {
		initial = b.states[d.initial].state
	}
	type resolved struct {
		transitionDecl
		dest *State
	}
	transitions := make([]resolved, len(d.transitions))
	for i, tr := range d.transitions {
		transitions[i].transitionDecl = tr
		if tr.target != "" {
			transitions[i].dest = b.states[tr.target].state
		}
	}

	return func(m *Machine, e *Event) Result {
		switch e.Signal {
		case SigSuper:
			return Super(parent)
		case SigEntry:
			if d.entry != nil {
				d.entry(m, e)
			}
			return Handled()
		case SigExit:
			if d.exit != nil {
				d.exit(m, e)
			}
			return Handled()
		case SigInit:
			if initial != nil {
				return TransitTo(initial)
			}
			return Handled()
		}
		for i := range transitions {
			tr := &transitions[i]
			if tr.signal != e.Signal || (tr.guard != nil && !tr.guard(m, e)) {
				continue
			}
			if tr.action != nil {
				tr.action(m, e)
			}
			if tr.dest == nil {
				return Handled()
			}
			return TransitTo(tr.dest)
		}
		return Super(parent)
	}
}

// Get returns the state at path, or nil.
func (h *Hierarchy) Get(path string) *State { return h.states[path] }

// MustGet is Get for paths known to exist.
func (h *Hierarchy) MustGet(path string) *State {
	s := h.states[path]
	if s == nil {
		panic(fmt.Sprintf("rtkernel: no state %q in hierarchy", path))
	}
	return s
}

// Names lists every state path in lexical order.
func (h *Hierarchy) Names() []string {
	names := make([]string, 0, len(h.states))
	for name := range h.states {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Initial sets the child entered when this state receives INIT.
func (sb *StateBuilder) Initial(path string) *StateBuilder {
	sb.decl.initial = path
	return sb
}

// Entry sets the entry action.
func (sb *StateBuilder) Entry(action Action) *StateBuilder {
	sb.decl.entry = action
	return sb
}

// Exit sets the exit action.
func (sb *StateBuilder) Exit(action Action) *StateBuilder {
	sb.decl.exit = action
	return sb
}

// On adds a transition to target on sig. guard and action may be nil.
func (sb *StateBuilder) On(sig Signal, target string, guard Guard, action Action) *StateBuilder {
	sb.decl.transitions = append(sb.decl.transitions, transitionDecl{signal: sig, target: target, guard: guard, action: action})
	return sb
}

// OnInternal handles sig without leaving the state.
func (sb *StateBuilder) OnInternal(sig Signal, guard Guard, action Action) *StateBuilder {
	return sb.On(sig, "", guard, action)
}

// State continues declaring at another path.
func (sb *StateBuilder) State(path string) *StateBuilder {
	return sb.b.State(path)
}

// splitPath splits "parent.child" into ("parent", "child") and "child" into
// ("", "child").
func splitPath(path string) (parent, name string) {
	idx := strings.LastIndex(path, ".")
	if idx == -1 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}

func isBelow(path, ancestor string) bool {
	return strings.HasPrefix(path, ancestor+".")
}
