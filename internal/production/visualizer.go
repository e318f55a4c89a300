package production

import (
	"bytes"
	"fmt"

	"github.com/comalice/rtkernel"
)

// DefaultVisualizer renders snapshots and state hierarchies as Graphviz DOT.
type DefaultVisualizer struct{}

// ExportDOT draws one node per registered task, highest priority first, with
// the ready ones filled and blocked ones dashed. The wait list is drawn as a
// chain hanging off a "waiting" node, in blocking order.
func (v *DefaultVisualizer) ExportDOT(snap rtkernel.Snapshot) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %q {\n", snap.Name)
	buf.WriteString("  rankdir=TB;\n  node [shape=box, fontsize=10, style=rounded];\n  edge [fontsize=9];\n")

	var prev string
	for i := len(snap.Tasks) - 1; i >= 0; i-- {
		ts := snap.Tasks[i]
		id := taskNode(ts.Priority)
		label := fmt.Sprintf("%d: %s\n%s %s", ts.Priority, ts.Name, ts.Kind, ts.State)
		if ts.Current != "" {
			label += "\n" + ts.Current
		}
		if ts.QueueCap > 0 {
			label += fmt.Sprintf("\nqueue %d/%d", ts.QueueLen, ts.QueueCap)
		}
		style := ""
		switch {
		case ts.Ready:
			style = ` style="rounded,filled" fillcolor=lightgreen`
		case ts.State == rtkernel.Blocked.String():
			style = ` style="rounded,dashed"`
		}
		fmt.Fprintf(&buf, "  %q [label=%q%s];\n", id, label, style)
		if prev != "" {
			fmt.Fprintf(&buf, "  %q -> %q [style=invis];\n", prev, id)
		}
		prev = id
	}

	if len(snap.Waiting) > 0 {
		buf.WriteString("  \"waiting\" [shape=ellipse];\n")
		from := "waiting"
		for _, p := range snap.Waiting {
			to := taskNode(p)
			fmt.Fprintf(&buf, "  %q -> %q;\n", from, to)
			from = to
		}
	}
	buf.WriteString("}\n")
	return buf.String()
}

func taskNode(prio int) string { return fmt.Sprintf("p%d", prio) }

// ExportHierarchy draws the tree formed by states and all their ancestors,
// discovered by probing each with SUPER.
func (v *DefaultVisualizer) ExportHierarchy(states ...*rtkernel.State) string {
	return exportHierarchy(nil, states)
}

// ExportActive is ExportHierarchy with the states m is currently in filled.
func (v *DefaultVisualizer) ExportActive(m *rtkernel.Machine, states ...*rtkernel.State) string {
	return exportHierarchy(m, states)
}

func exportHierarchy(m *rtkernel.Machine, states []*rtkernel.State) string {
	var (
		nodes []*rtkernel.State
		edges [][2]*rtkernel.State
		seen  = make(map[*rtkernel.State]bool)
	)
	for _, s := range states {
		for child := s; child != nil && !seen[child]; {
			seen[child] = true
			nodes = append(nodes, child)
			parent := rtkernel.Parent(child)
			if parent != nil {
				edges = append(edges, [2]*rtkernel.State{parent, child})
			}
			child = parent
		}
	}

	var buf bytes.Buffer
	buf.WriteString("digraph Hierarchy {\n  node [shape=box, fontsize=10, style=rounded];\n")
	for _, s := range nodes {
		style := ""
		if m != nil && m.IsIn(s) {
			style = ` style="rounded,filled" fillcolor=orange`
		}
		fmt.Fprintf(&buf, "  %q [label=%q%s];\n", s.Name, s.Name, style)
	}
	for _, e := range edges {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e[0].Name, e[1].Name)
	}
	buf.WriteString("}\n")
	return buf.String()
}
