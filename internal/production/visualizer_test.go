package production

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/rtkernel"
	"github.com/comalice/rtkernel/testutil"
)

func TestDefaultVisualizer_ExportDOT(t *testing.T) {
	v := &DefaultVisualizer{}
	dot := v.ExportDOT(newScheduler(t).Snapshot("kernel"))

	assert.True(t, strings.HasPrefix(dot, `digraph "kernel" {`), dot)
	assert.Contains(t, dot, `"p5" [label="5: control\nactor READY\nsink\nqueue 1/4" style="rounded,filled" fillcolor=lightgreen];`)
	assert.Contains(t, dot, `"p3" [label="3: logger\nactor BLOCKED\nsink\nqueue 0/16" style="rounded,dashed"];`)
	assert.Contains(t, dot, `"p5" -> "p3" [style=invis];`)
	assert.Contains(t, dot, `"waiting" -> "p3";`)
	assert.True(t, strings.HasSuffix(dot, "}\n"))

	// Higher priorities come first.
	assert.Less(t, strings.Index(dot, `"p5" [`), strings.Index(dot, `"p3" [`))
}

func TestDefaultVisualizer_ExportDOTWithoutWaiters(t *testing.T) {
	v := &DefaultVisualizer{}
	dot := v.ExportDOT(rtkernel.Snapshot{Name: "empty"})
	assert.NotContains(t, dot, "waiting")
}

func TestDefaultVisualizer_ExportHierarchy(t *testing.T) {
	v := &DefaultVisualizer{}
	tree := testutil.NewTree()
	dot := v.ExportHierarchy(tree.S211, tree.S11)

	for _, edge := range []string{
		`"TOP" -> "s";`,
		`"s" -> "s1";`,
		`"s1" -> "s11";`,
		`"s" -> "s2";`,
		`"s2" -> "s21";`,
		`"s21" -> "s211";`,
	} {
		assert.Contains(t, dot, edge)
	}
	assert.Equal(t, 1, strings.Count(dot, `"s" -> "s1";`))
	assert.Equal(t, 1, strings.Count(dot, `"s" [label`), "shared ancestors are drawn once")
	assert.NotContains(t, dot, "orange")
}

func TestDefaultVisualizer_ExportActive(t *testing.T) {
	v := &DefaultVisualizer{}
	tree := testutil.NewTree()
	m := rtkernel.NewMachine(rtkernel.HSM, tree.S, nil, 8)
	m.Init(nil)
	require.Equal(t, tree.S11, m.Current())

	dot := v.ExportActive(m, tree.States()...)
	for _, name := range []string{"s", "s1", "s11"} {
		assert.Contains(t, dot, `"`+name+`" [label="`+name+`" style="rounded,filled" fillcolor=orange];`)
	}
	assert.Contains(t, dot, `"s211" [label="s211"];`)
}
