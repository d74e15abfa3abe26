package reactive

import (
	"context"
	"testing"
)

// TestResourceStalenessDiscardsSupersededGeneration drives spec §8 scenario
// 4: two overlapping resource completions race, and only the later
// generation's result may commit (spec I7).
func TestResourceStalenessDiscardsSupersededGeneration(t *testing.T) {
	i := newTestInstance(nil)

	var calls int
	producer := func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}

	restore := pushInstance(i)
	i.stateIndexCheck = 0
	i.rendering = true
	rc := Resource(producer, "dep-a")
	i.rendering = false
	restore()

	gen1 := rc.generation

	rc.Refresh()
	gen2 := rc.generation
	if gen2 == gen1 {
		t.Fatal("expected Refresh to start a new generation")
	}

	// Generation 1's completion arrives late, after generation 2 already
	// started: it must be discarded rather than overwrite the snapshot.
	rc.run(context.Background(), i, gen1)
	if rc.snapshot.Value != 0 || !rc.snapshot.Pending {
		t.Fatalf("stale generation must not commit, got value=%d pending=%v", rc.snapshot.Value, rc.snapshot.Pending)
	}

	// Generation 2's completion is current and must commit.
	rc.run(context.Background(), i, gen2)
	if rc.snapshot.Pending {
		t.Fatal("current generation's completion should clear Pending")
	}
	if rc.snapshot.Value != 2 {
		t.Fatalf("expected the current generation's producer result (2), got %d", rc.snapshot.Value)
	}
}

// TestResourceDepsUnchangedDoesNotRestart verifies identical deps across
// renders reuse the same generation rather than superseding it (spec §4.4
// "Dependency change detection").
func TestResourceDepsUnchangedDoesNotRestart(t *testing.T) {
	i := newTestInstance(nil)
	producer := func(ctx context.Context) (string, error) { return "v", nil }

	restore := pushInstance(i)
	i.stateIndexCheck = 0
	i.rendering = true
	rc := Resource(producer, "same")
	i.rendering = false
	restore()

	gen1 := rc.generation

	restore = pushInstance(i)
	i.stateIndexCheck = 0
	i.rendering = true
	rc2 := Resource(producer, "same")
	i.rendering = false
	restore()

	if rc != rc2 {
		t.Fatal("expected the same resource cell to be reused by hook slot")
	}
	if rc.generation != gen1 {
		t.Fatal("expected unchanged deps to leave the generation untouched")
	}
}
