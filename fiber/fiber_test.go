package fiber_test

import (
	"testing"

	"github.com/comalice/rtkernel/fiber"
)

// counter waits until limit has been raised, then counts to it, yielding
// after each increment.
type counter struct {
	n, limit int
	ready    bool
}

func (c *counter) run(f *fiber.Fiber) fiber.Status {
	switch f.Resume() {
	case 0:
		c.n = 0
		fallthrough
	case 1:
		if st, ok := f.WaitUntil(1, c.ready); !ok {
			return st
		}
		fallthrough
	case 2:
		if c.n < c.limit {
			c.n++
			return f.Yield(2)
		}
	}
	return f.Exit()
}

func TestFiberReachesTerminated(t *testing.T) {
	c := &counter{limit: 3}
	var f fiber.Fiber

	for i := range 4 {
		if st := f.Dispatch(c.run); st != fiber.Waiting {
			t.Fatalf("dispatch %d: expected WAITING, got %s", i, st)
		}
	}
	c.ready = true

	var statuses []fiber.Status
	for range 10 {
		st := f.Dispatch(c.run)
		statuses = append(statuses, st)
		if st == fiber.Terminated {
			break
		}
	}
	want := []fiber.Status{fiber.Yielded, fiber.Yielded, fiber.Yielded, fiber.Terminated}
	if len(statuses) != len(want) {
		t.Fatalf("expected %v, got %v", want, statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("dispatch %d: expected %s, got %s", i, want[i], statuses[i])
		}
	}
	if c.n != 3 || !f.Done() {
		t.Errorf("expected n=3 and done, got n=%d done=%v", c.n, f.Done())
	}
}

func TestTerminatedFiberIsNotRerun(t *testing.T) {
	var runs int
	body := func(f *fiber.Fiber) fiber.Status {
		runs++
		return f.Exit()
	}
	var f fiber.Fiber
	for range 3 {
		if st := f.Dispatch(body); st != fiber.Terminated {
			t.Fatalf("expected TERMINATED, got %s", st)
		}
	}
	if runs != 1 {
		t.Errorf("body ran %d times after exit", runs)
	}

	f.Init()
	if f.Resume() != 0 || f.Done() {
		t.Error("init should rewind to the start")
	}
	f.Dispatch(body)
	if runs != 2 {
		t.Errorf("expected a second run after init, got %d", runs)
	}
}

func TestWaitWhile(t *testing.T) {
	busy := true
	body := func(f *fiber.Fiber) fiber.Status {
		switch f.Resume() {
		case 0, 1:
			if st, ok := f.WaitWhile(1, busy); !ok {
				return st
			}
		}
		return f.Exit()
	}
	var f fiber.Fiber
	if st := f.Dispatch(body); st != fiber.Waiting {
		t.Fatalf("expected WAITING, got %s", st)
	}
	if f.Resume() != 1 {
		t.Errorf("expected saved location 1, got %d", f.Resume())
	}
	busy = false
	if st := f.Dispatch(body); st != fiber.Terminated {
		t.Errorf("expected TERMINATED, got %s", st)
	}
}

// parent runs two children in sequence through Spawn.
type parent struct {
	child    fiber.Fiber
	children []*counter
	spawned  int
}

func (p *parent) childBody(i int) fiber.Body {
	return p.children[i].run
}

func (p *parent) run(f *fiber.Fiber) fiber.Status {
	switch f.Resume() {
	case 0, 1:
		if st, ok := f.Spawn(1, &p.child, p.childBody(0)); !ok {
			return st
		}
		p.spawned++
		fallthrough
	case 2:
		if st, ok := f.Spawn(2, &p.child, p.childBody(1)); !ok {
			return st
		}
		p.spawned++
	}
	return f.Exit()
}

func TestSpawnRunsChildrenToCompletion(t *testing.T) {
	p := &parent{children: []*counter{{limit: 2, ready: true}, {limit: 1, ready: true}}}
	var f fiber.Fiber

	var steps int
	for st := f.Dispatch(p.run); st != fiber.Terminated; st = f.Dispatch(p.run) {
		if st != fiber.Yielded {
			t.Fatalf("children never wait, got %s", st)
		}
		steps++
		if steps > 10 {
			t.Fatal("parent did not terminate")
		}
	}
	if p.spawned != 2 {
		t.Errorf("expected both children to finish, got %d", p.spawned)
	}
	if p.children[0].n != 2 || p.children[1].n != 1 {
		t.Errorf("unexpected child progress %d, %d", p.children[0].n, p.children[1].n)
	}
}

func TestWaitPropagatesChildStatus(t *testing.T) {
	c := &counter{limit: 1}
	var child, f fiber.Fiber
	body := func(f *fiber.Fiber) fiber.Status {
		switch f.Resume() {
		case 0, 3:
			if st, ok := f.Wait(3, &child, c.run); !ok {
				return st
			}
		}
		return f.Exit()
	}
	if st := f.Dispatch(body); st != fiber.Waiting {
		t.Errorf("expected the child's WAITING, got %s", st)
	}
	c.ready = true
	if st := f.Dispatch(body); st != fiber.Yielded {
		t.Errorf("expected the child's YIELDED, got %s", st)
	}
	if st := f.Dispatch(body); st != fiber.Terminated {
		t.Errorf("expected TERMINATED once the child exits, got %s", st)
	}
}

func TestStatusString(t *testing.T) {
	for st, want := range map[fiber.Status]string{
		fiber.Yielded:    "YIELDED",
		fiber.Waiting:    "WAITING",
		fiber.Terminated: "TERMINATED",
		fiber.Status(9):  "Status(9)",
	} {
		if got := st.String(); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}

func BenchmarkDispatch(b *testing.B) {
	c := &counter{limit: 1 << 30, ready: true}
	var f fiber.Fiber
	b.ReportAllocs()
	for b.Loop() {
		f.Dispatch(c.run)
	}
}
