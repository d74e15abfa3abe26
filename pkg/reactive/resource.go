package reactive

import (
	"context"
	"log/slog"
	"reflect"
)

// ResourceState is the lifecycle stage of a ResourceCell generation (spec
// §4.4 state machine).
type ResourceState int

const (
	ResourceIdle ResourceState = iota
	ResourceRunning
	ResourceResolved
	ResourceErrored
	ResourceAborted
)

// ResourceSnapshot is the stable value a render reads back from a resource
// (spec §4.4 "returns a stable snapshot object").
type ResourceSnapshot[T any] struct {
	Value   T
	Pending bool
	Error   error
}

// Producer is async work run by a ResourceCell; it observes ctx for
// cancellation (owner unmount or a superseding refresh, spec §5
// "Cancellation").
type Producer[T any] func(ctx context.Context) (T, error)

// ResourceCell is an async value with generation-based staleness, an abort
// controller, and a captured context frame fixed at creation (spec §3/
// §4.4). Grounded on the teacher's features/resource.Resource[T]
// (fetchID staleness counter, Fetch/Refetch/Invalidate/Mutate) — loom adds
// a real context.Context/cancel tied to Instance.Dispose (the teacher never
// wires its resource to the owner's lifetime), and a context frame captured
// at creation into the frame field. The captured frame is not installed
// around the producer or its completion in run; nothing in this file reads
// it after creation.
type ResourceCell[T any] struct {
	owner    *Instance
	producer Producer[T]
	deps     []any

	frame *ContextFrame // captured at creation, fixed forever (I8)

	generation uint64
	cancel     context.CancelFunc

	snapshot ResourceSnapshot[T]

	subscribers map[string]*Instance

	ssrIndex int
}

// Resource creates or reuses (by hook slot) a resource cell during render,
// restarting it when deps differ by shallow identity from the previous
// render (spec §4.4 "Dependency change detection").
func Resource[T any](producer Producer[T], deps ...any) *ResourceCell[T] {
	i := activeInstance()
	if i == nil {
		panic("loom: resource() called outside an active render")
	}

	idx := i.stateIndexCheck
	i.stateIndexCheck++

	if idx < len(i.slots) {
		rc, ok := i.slots[idx].cell.(*ResourceCell[T])
		if !ok {
			panic(&HookOrderError{InstanceID: i.ID, Index: idx, Expected: i.expectedStateIndices})
		}
		rc.producer = producer
		if !shallowEqual(rc.deps, deps) {
			rc.deps = deps
			rc.start(i)
		}
		return rc
	}

	rc := &ResourceCell[T]{
		owner:       i,
		producer:    producer,
		deps:        deps,
		frame:       i.frame, // captured once, per I8
		subscribers: map[string]*Instance{i.ID: i},
		ssrIndex:    ssrCounterNext(i),
	}
	i.slots = append(i.slots, &cellSlot{cell: rc})
	rc.start(i)
	return rc
}

// start begins a new generation: Idle/Running transition (spec §4.4.1).
func (r *ResourceCell[T]) start(i *Instance) {
	if r.cancel != nil {
		r.cancel() // supersede the prior in-flight generation (I7)
	}

	r.generation++
	gen := r.generation
	prevValue := r.snapshot.Value

	ctx, cancel := context.WithCancel(i.Context())
	r.cancel = cancel

	r.snapshot = ResourceSnapshot[T]{Value: prevValue, Pending: true, Error: nil}

	if i.SSR {
		r.runSSR(i, gen)
		return
	}

	i.AddMountOp(func() func() {
		go r.run(ctx, i, gen)
		return cancel
	})
}

// run executes the producer off the scheduler thread and hands the result
// to the owner's subscribers via RequestUpdate, so the re-render that reads
// it runs as a scheduler task (spec §5 "Resource completions"). It does not
// install the captured context frame around the producer or the completion.
func (r *ResourceCell[T]) run(ctx context.Context, i *Instance, gen uint64) {
	value, err := r.producer(ctx)

	// commit() only mutates r.snapshot and calls RequestUpdate, neither of
	// which consults the active frame — the frame this generation captured
	// at creation (I8) is what matters, and that was already fixed in
	// r.frame; there is nothing here for pushFrame to wrap. The teacher has
	// no equivalent concept, so there is no goroutine-side frame push to
	// reproduce: frame-aware work only ever happens on the scheduler's own
	// goroutine, during the render that Resource.Snapshot's RequestUpdate
	// eventually triggers, which pushes its own instance's frame itself.
	if gen != r.generation {
		logResourceDrop(i.ID, ctx.Err()) // stale generation, discarded per I7
		return
	}
	if ctx.Err() != nil {
		r.commit(i, gen, ResourceSnapshot[T]{Value: value, Pending: false, Error: ctx.Err()})
		return
	}
	if err != nil {
		r.commit(i, gen, ResourceSnapshot[T]{Value: r.snapshot.Value, Pending: false, Error: err})
		return
	}
	r.commit(i, gen, ResourceSnapshot[T]{Value: value, Pending: false, Error: nil})
}

func (r *ResourceCell[T]) commit(i *Instance, gen uint64, snap ResourceSnapshot[T]) {
	if gen != r.generation {
		return
	}
	r.snapshot = snap
	for _, sub := range r.subscribers {
		sub.RequestUpdate()
	}
}

// runSSR invokes the producer synchronously; any suspension (a producer
// that cannot complete inline) is illegal under ssr=true (spec §4.4 "SSR
// mode").
func (r *ResourceCell[T]) runSSR(i *Instance, gen uint64) {
	if preloaded, ok := ssrPreload[T](i, r.ssrIndex); ok {
		r.snapshot = ResourceSnapshot[T]{Value: preloaded, Pending: false, Error: nil}
		return
	}

	value, err := r.producer(i.Context())
	if gen != r.generation {
		return
	}
	if err != nil {
		if err == context.Canceled || err == context.DeadlineExceeded {
			panic(ErrSSRDataMissing)
		}
		r.snapshot = ResourceSnapshot[T]{Pending: false, Error: err}
		return
	}
	r.snapshot = ResourceSnapshot[T]{Value: value, Pending: false, Error: nil}
}

// Snapshot reads the current value, registering the active instance as a
// subscriber (mirrors StateCell.Read's read-tracking).
func (r *ResourceCell[T]) Snapshot() ResourceSnapshot[T] {
	if i := activeInstance(); i != nil && i.rendering {
		r.subscribers[i.ID] = i
	}
	return r.snapshot
}

// Refresh supersedes the current generation and starts a new one (spec
// §4.4.1 "or on refresh()").
func (r *ResourceCell[T]) Refresh() {
	r.start(r.owner)
}

// Mutate optimistically overwrites the snapshot value without starting a
// new generation, for user-driven local updates after e.g. a write request.
func (r *ResourceCell[T]) Mutate(v T) {
	r.snapshot.Value = v
	for _, sub := range r.subscribers {
		sub.RequestUpdate()
	}
}

func (r *ResourceCell[T]) removeReader(instanceID string) {
	delete(r.subscribers, instanceID)
	if instanceID == r.owner.ID && r.cancel != nil {
		r.cancel()
	}
}

func shallowEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for idx := range a {
		if !reflect.DeepEqual(a[idx], b[idx]) {
			return false
		}
	}
	return true
}

// ssr preload support: a per-instance deterministic counter plus an
// optional preloaded-value map, following spec §6 "Persisted state" — SSR
// embeds resolved resource values keyed by render-order index; hydration
// reads the same indices in the same order.

func ssrCounterNext(i *Instance) int {
	idx := i.ssrSeq
	i.ssrSeq++
	return idx
}

func ssrPreload[T any](i *Instance, idx int) (T, bool) {
	var zero T
	if i.ssrData == nil {
		return zero, false
	}
	v, ok := i.ssrData[idx]
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// logging helper kept local so this file's only import of log/slog has a
// use-site; resource errors that reach here but aren't otherwise surfaced
// (e.g. a cancelled background run after dispose) are logged at debug.
func logResourceDrop(instanceID string, err error) {
	slog.Debug("loom: resource completion discarded", "instance", instanceID, "error", err)
}
