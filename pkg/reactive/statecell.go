package reactive

import (
	"log/slog"
)

// StateCell is a read-tracked, set-enqueued value owned by exactly one
// Instance (spec §3/§4.2). Grounded on the teacher's Signal[T]
// (pkg/vango/signal.go) — loom keeps the base/subscriber split but drops
// the reflection-driven convenience-method surface (Inc/Dec/Append/...)
// that has no counterpart in the spec, and routes notifySubscribers through
// pkg/scheduler instead of the teacher's ad hoc batch-depth global.
type StateCell[T any] struct {
	owner   *Instance
	value   T
	readers map[string]*Instance // instance id -> instance, spec I5
	equal   func(a, b T) bool
}

// NewStateCell must be called during an active render; it records the
// active instance as the permanent owner (spec I4). Returns the cell at
// the next hook slot, creating it on first render and reusing it by index
// thereafter (spec §4.3 step 3).
func NewStateCell[T any](initial T) *StateCell[T] {
	i := activeInstance()
	if i == nil {
		panic("loom: state() called outside an active render")
	}

	idx := i.stateIndexCheck
	i.stateIndexCheck++

	if idx < len(i.slots) {
		cell, ok := i.slots[idx].cell.(*StateCell[T])
		if !ok {
			panic(&HookOrderError{InstanceID: i.ID, Index: idx, Expected: i.expectedStateIndices})
		}
		return cell
	}

	cell := &StateCell[T]{
		owner:   i,
		value:   initial,
		readers: make(map[string]*Instance),
		equal:   defaultEqual[T],
	}
	i.slots = append(i.slots, &cellSlot{cell: cell})
	return cell
}

func defaultEqual[T any](a, b T) bool {
	// best-effort Object.is-style comparison: interface comparison for
	// comparable T, reflect.DeepEqual for non-comparable T (see isEqual).
	return isEqual(a, b)
}

// Read returns the current value and, if a render is active, registers the
// active instance as a reader (spec §4.2 "Read").
func (c *StateCell[T]) Read() T {
	if i := activeInstance(); i != nil && i.rendering {
		c.readers[i.ID] = i
		i.lastReadStates[c] = struct{}{}
	}
	return c.value
}

// Set updates the value, notifying readers (spec §4.2 "Write"). A write
// during an active render is a render-time mutation: in dev mode it panics
// with ErrRenderTimeMutation (I6); in production it is silently dropped.
func (c *StateCell[T]) Set(v T) {
	if c.equal(c.value, v) {
		return
	}

	if writer := activeInstance(); writer != nil && writer.rendering {
		if devStrict() {
			panic(ErrRenderTimeMutation)
		}
		slog.Warn("loom: state mutated during render, dropped", "instance", writer.ID)
		return
	}

	c.value = v
	for _, reader := range c.readers {
		reader.RequestUpdate()
	}
}

// Update applies fn to the current value and sets the result; a convenience
// wrapper the teacher's Signal.Update provides.
func (c *StateCell[T]) Update(fn func(T) T) {
	c.Set(fn(c.value))
}

// removeReader implements cellReader for subscription pruning on unmount
// and on re-render when a cell drops out of the read set.
func (c *StateCell[T]) removeReader(instanceID string) {
	delete(c.readers, instanceID)
}

// Readers exposes the reader-id set for test assertions against I5.
func (c *StateCell[T]) Readers() []string {
	ids := make([]string, 0, len(c.readers))
	for id := range c.readers {
		ids = append(ids, id)
	}
	return ids
}

// devStrict reports whether the process-wide config calls for panic-level
// render-time-mutation enforcement. Set through SetStrictMode below rather
// than a direct internal/config import, to avoid a dependency cycle with
// the host's config wiring.
var devStrict = func() bool { return true }

// SetStrictMode lets the host app (which owns internal/config) configure
// whether render-time mutation panics or is silently dropped.
func SetStrictMode(panicOnViolation bool) {
	devStrict = func() bool { return panicOnViolation }
}
