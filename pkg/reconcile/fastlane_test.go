package reconcile_test

import (
	"fmt"
	"testing"

	"github.com/loomkit/loom/pkg/document"
	"github.com/loomkit/loom/pkg/reconcile"
	"github.com/loomkit/loom/pkg/vnode"
)

func mountedRows(t *testing.T, container *document.Node, n int) []*reconcile.Mounted {
	t.Helper()
	rows := make([]*vnode.Node, n)
	for i := 0; i < n; i++ {
		rows[i] = listItem(fmt.Sprintf("%d", i), fmt.Sprintf("row-%d", i))
	}
	result, err := reconcile.DiffChildren(container, rows, nil, nil, nil)
	if err != nil {
		t.Fatalf("initial mount failed: %v", err)
	}
	for _, p := range result.Patches {
		p.Apply()
	}
	return result.Children
}

// TestTryFastlaneAcceptsPureReorderAboveThreshold verifies a same-type,
// same-key, reordered list above the threshold is eligible and preserves
// each row's document-node identity (spec §4.6 conditions a–d).
func TestTryFastlaneAcceptsPureReorderAboveThreshold(t *testing.T) {
	container := document.NewElement("ul", nil, nil, "")
	prev := mountedRows(t, container, 6)

	docByKey := make(map[any]*document.Node, len(prev))
	for _, m := range prev {
		docByKey[m.Key] = m.Doc
	}

	reordered := make([]*vnode.Node, len(prev))
	for i, m := range prev {
		src := len(prev) - 1 - i
		reordered[i] = listItem(fmt.Sprintf("%d", src), fmt.Sprintf("row-%d", src))
		_ = m
	}

	plan, ok := reconcile.TryFastlane(container, reordered, prev, 4, 100)
	if !ok {
		t.Fatal("expected the reordered list to be fast-lane eligible")
	}
	if len(plan.Order) != len(prev) {
		t.Fatalf("expected %d ordered entries, got %d", len(prev), len(plan.Order))
	}
	for i, m := range plan.Order {
		wantKey := fmt.Sprintf("%d", len(prev)-1-i)
		if m.Key != wantKey {
			t.Fatalf("position %d: want key %q, got %v", i, wantKey, m.Key)
		}
		if m.Doc != docByKey[m.Key] {
			t.Fatalf("position %d: expected document-node identity preserved for key %v", i, m.Key)
		}
	}
}

// TestTryFastlaneRejectsBelowThreshold verifies the pre-pass declines (and
// thus leaves the caller to fall back to DiffChildren) when the list is
// smaller than the configured threshold.
func TestTryFastlaneRejectsBelowThreshold(t *testing.T) {
	container := document.NewElement("ul", nil, nil, "")
	prev := mountedRows(t, container, 2)

	reordered := []*vnode.Node{listItem("1", "row-1"), listItem("0", "row-0")}
	if _, ok := reconcile.TryFastlane(container, reordered, prev, 10, 100); ok {
		t.Fatal("expected a below-threshold list to be fast-lane ineligible")
	}
}

// TestTryFastlaneRejectsInsertedKey verifies a genuine insert (a key absent
// from the prior mount) disqualifies the bulk path (spec §4.6 condition d).
func TestTryFastlaneRejectsInsertedKey(t *testing.T) {
	container := document.NewElement("ul", nil, nil, "")
	prev := mountedRows(t, container, 5)

	withInsert := make([]*vnode.Node, 0, len(prev)+1)
	for i := range prev {
		withInsert = append(withInsert, listItem(fmt.Sprintf("%d", i), fmt.Sprintf("row-%d", i)))
	}
	withInsert = append(withInsert, listItem("new", "row-new"))

	if _, ok := reconcile.TryFastlane(container, withInsert, prev, 4, 100); ok {
		t.Fatal("expected a list with a genuinely new key to be fast-lane ineligible")
	}
}
