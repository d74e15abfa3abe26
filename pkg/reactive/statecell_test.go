package reactive

import "testing"

func newTestInstance(render RenderFunc) *Instance {
	return NewInstance(render, nil, nil)
}

func TestStateCellCreatedDuringRenderOnly(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic calling NewStateCell outside a render")
		}
	}()
	NewStateCell(0)
}

func TestStateCellReusedByIndexAcrossRenders(t *testing.T) {
	var first, second *StateCell[int]

	i := newTestInstance(nil)

	// drive two renders manually via the lower-level hooks rather than
	// RenderOnce, so we can inspect slot identity directly.
	restore := pushInstance(i)
	i.stateIndexCheck = 0
	first = NewStateCell(0)
	restore()

	restore = pushInstance(i)
	i.stateIndexCheck = 0
	second = NewStateCell(0)
	restore()

	if first != second {
		t.Fatal("expected the same cell to be returned by index on the second render")
	}
}

func TestStateCellSetCoalescesNoOpOnEqualValue(t *testing.T) {
	i := newTestInstance(nil)
	restore := pushInstance(i)
	i.stateIndexCheck = 0
	cell := NewStateCell(5)
	restore()

	cell.Set(5)
	if len(cell.readers) != 0 {
		t.Fatalf("no-op set should not touch readers, got %d", len(cell.readers))
	}

	// With a reader subscribed, an equal-value Set must not notify it.
	recording := &recordingScheduler{}
	reader := NewInstance(nil, nil, recording)
	cell.readers[reader.ID] = reader
	cell.Set(5)
	if recording.calls != 0 {
		t.Fatalf("equal-value set should not schedule a reader render, got %d", recording.calls)
	}
}

func TestStateCellSetDuringRenderPanicsInStrictMode(t *testing.T) {
	SetStrictMode(true)
	defer SetStrictMode(true)

	i := newTestInstance(nil)
	restore := pushInstance(i)
	i.stateIndexCheck = 0
	cell := NewStateCell(0)
	i.rendering = true
	restore2 := pushInstance(i)

	defer func() {
		restore2()
		restore()
		if recover() == nil {
			t.Fatal("expected ErrRenderTimeMutation panic")
		}
	}()
	cell.Set(1)
}
