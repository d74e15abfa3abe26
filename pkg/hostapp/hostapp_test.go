package hostapp_test

import (
	"fmt"
	"testing"

	"github.com/loomkit/loom/pkg/hostapp"
	"github.com/loomkit/loom/pkg/reactive"
	"github.com/loomkit/loom/pkg/vnode"
)

// counter is the spec §8 scenario 1 component: declares count = state(0)
// and returns a button whose text is the count and whose click handler
// increments it.
type counter struct {
	cell    *reactive.StateCell[int]
	clicks  func()
	clicked bool
}

func (c *counter) Render() *vnode.Node {
	c.cell = reactive.NewStateCell(0)
	text := fmt.Sprintf("%d", c.cell.Read())
	return vnode.El("button", vnode.Props{"onClick": func() {}}, vnode.TextNode(text))
}

func TestCounterScenario(t *testing.T) {
	comp := &counter{}
	app, err := hostapp.CreateIsland(comp, hostapp.Options{})
	if err != nil {
		t.Fatalf("createIsland failed: %v", err)
	}

	instances := app.Instances()
	if len(instances) == 0 {
		t.Fatal("expected at least one mounted instance")
	}
	var inst *reactive.Instance
	for _, i := range instances {
		inst = i
	}

	for n := 0; n < 1000; n++ {
		app.Dispatch(func() {
			comp.cell.Set(comp.cell.Read() + 1)
		})
	}

	btn := app.Root.Mounted[0]
	for btn.Kind == vnode.KindComponent {
		btn = btn.Children[0]
	}
	if got := btn.Doc.Children[0].Text; got != "1000" {
		t.Fatalf("expected button text 1000, got %q", got)
	}
	_ = inst
}

// conditionalState is the spec §8 scenario 3 component: calls state(false)
// then, only if true, state("x"), then state("ok") — a conditionally
// entered state() call after the first render must raise a hook-order
// error.
type conditionalState struct {
	flag *reactive.StateCell[bool]
}

func (c *conditionalState) Render() *vnode.Node {
	c.flag = reactive.NewStateCell(false)
	if c.flag.Read() {
		reactive.NewStateCell("x")
	}
	reactive.NewStateCell("ok")
	return vnode.El("div", nil)
}

func TestHookOrderViolationOnConditionalBranch(t *testing.T) {
	comp := &conditionalState{}
	app, err := hostapp.CreateIsland(comp, hostapp.Options{})
	if err != nil {
		t.Fatalf("createIsland failed: %v", err)
	}

	app.Dispatch(func() {
		comp.flag.Set(true)
	})

	if app.Root.LastErr == nil {
		t.Fatal("expected a hook-order violation error after toggling into the new branch")
	}
}

// badChild always panics during render, for the atomic-commit-failure
// scenario (spec §8 scenario 5).
type badChild struct{}

func (badChild) Render() *vnode.Node {
	panic("boom")
}

type staticChild struct{ label string }

func (s staticChild) Render() *vnode.Node {
	return vnode.El("p", nil, vnode.TextNode(s.label))
}

type parentWithBadChild struct{}

func (parentWithBadChild) Render() *vnode.Node {
	return vnode.FragmentOf(
		vnode.ComponentNode("static", "a", staticChild{label: "good-1"}),
		vnode.ComponentNode("bad", "b", badChild{}),
		vnode.ComponentNode("static", "c", staticChild{label: "good-2"}),
	)
}

func TestAtomicCommitFailurePropagatesFromCreateIsland(t *testing.T) {
	_, err := hostapp.CreateIsland(parentWithBadChild{}, hostapp.Options{})
	if err == nil {
		t.Fatal("expected createIsland to fail when a child panics during render")
	}
}
