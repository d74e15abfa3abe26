package reconcile_test

import (
	"testing"

	"github.com/loomkit/loom/pkg/document"
	"github.com/loomkit/loom/pkg/reconcile"
	"github.com/loomkit/loom/pkg/vnode"
)

func listItem(id string, text string) *vnode.Node {
	return vnode.WithKey(vnode.El("li", nil, vnode.TextNode(text)), id)
}

func TestKeyedReorderPreservesNodeIdentity(t *testing.T) {
	container := document.NewElement("ul", nil, nil, "")

	initial := []*vnode.Node{listItem("1", "A"), listItem("2", "B"), listItem("3", "C")}
	result, err := reconcile.DiffChildren(container, initial, nil, nil, nil)
	if err != nil {
		t.Fatalf("initial mount failed: %v", err)
	}
	for _, p := range result.Patches {
		p.Apply()
	}

	var key2Doc *document.Node
	for _, m := range result.Children {
		if m.Key == "2" {
			key2Doc = m.Doc
		}
	}
	if key2Doc == nil {
		t.Fatal("expected to find mounted node for key 2")
	}

	reordered := []*vnode.Node{listItem("3", "C"), listItem("1", "A"), listItem("2", "B")}
	result2, err := reconcile.DiffChildren(container, reordered, result.Children, nil, nil)
	if err != nil {
		t.Fatalf("reorder diff failed: %v", err)
	}
	for _, p := range result2.Patches {
		p.Apply()
	}

	var key2DocAfter *document.Node
	for _, m := range result2.Children {
		if m.Key == "2" {
			key2DocAfter = m.Doc
		}
	}
	if key2DocAfter != key2Doc {
		t.Fatal("expected key 2's document node identity to survive the reorder")
	}

	wantOrder := []string{"C", "A", "B"}
	if len(container.Children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(container.Children))
	}
	for idx, child := range container.Children {
		if child.Children[0].Text != wantOrder[idx] {
			t.Fatalf("position %d: want text %q, got %q", idx, wantOrder[idx], child.Children[0].Text)
		}
	}
}

func TestInitialMountOfMultipleSiblingsPreservesOrder(t *testing.T) {
	container := document.NewElement("ul", nil, nil, "")

	initial := []*vnode.Node{listItem("1", "A"), listItem("2", "B"), listItem("3", "C")}
	result, err := reconcile.DiffChildren(container, initial, nil, nil, nil)
	if err != nil {
		t.Fatalf("initial mount failed: %v", err)
	}
	for _, p := range result.Patches {
		p.Apply()
	}

	wantOrder := []string{"A", "B", "C"}
	if len(container.Children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(container.Children))
	}
	for idx, child := range container.Children {
		if child.Children[0].Text != wantOrder[idx] {
			t.Fatalf("position %d: want text %q, got %q (siblings mounted out of order on first pass)", idx, wantOrder[idx], child.Children[0].Text)
		}
	}
}

func TestUnchangedSubtreeProducesNoPatches(t *testing.T) {
	container := document.NewElement("div", nil, nil, "")

	tree := []*vnode.Node{vnode.El("span", vnode.Props{"class": "x"}, vnode.TextNode("hi"))}
	result, err := reconcile.DiffChildren(container, tree, nil, nil, nil)
	if err != nil {
		t.Fatalf("mount failed: %v", err)
	}
	for _, p := range result.Patches {
		p.Apply()
	}

	sameTree := []*vnode.Node{vnode.El("span", vnode.Props{"class": "x"}, vnode.TextNode("hi"))}
	result2, err := reconcile.DiffChildren(container, sameTree, result.Children, nil, nil)
	if err != nil {
		t.Fatalf("second diff failed: %v", err)
	}
	if len(result2.Patches) != 0 {
		t.Fatalf("expected zero patches for a structurally identical re-render, got %d", len(result2.Patches))
	}
}

func TestDuplicateKeysReuseBothPriorSlotsInOrder(t *testing.T) {
	container := document.NewElement("ul", nil, nil, "")

	initial := []*vnode.Node{listItem("x", "first"), listItem("x", "second")}
	result, err := reconcile.DiffChildren(container, initial, nil, nil, nil)
	if err != nil {
		t.Fatalf("initial mount failed: %v", err)
	}
	for _, p := range result.Patches {
		p.Apply()
	}
	if len(result.Children) != 2 {
		t.Fatalf("expected 2 mounted children for duplicate keys, got %d", len(result.Children))
	}
	firstDoc := result.Children[0].Doc
	secondDoc := result.Children[1].Doc

	next := []*vnode.Node{listItem("x", "first-updated"), listItem("x", "second-updated")}
	result2, err := reconcile.DiffChildren(container, next, result.Children, nil, nil)
	if err != nil {
		t.Fatalf("second diff failed: %v", err)
	}
	for _, p := range result2.Patches {
		p.Apply()
	}

	if result2.Children[0].Doc != firstDoc || result2.Children[1].Doc != secondDoc {
		t.Fatal("expected duplicate-key slots to be reused in first-seen order")
	}
}
