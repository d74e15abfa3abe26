package reactive

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/loomkit/loom/pkg/vnode"
)

var instanceSeq uint64

func nextInstanceID() string {
	n := atomic.AddUint64(&instanceSeq, 1)
	return fmt.Sprintf("i%d", n)
}

// Scheduler is the narrow surface Instance needs from pkg/scheduler,
// expressed as an interface so pkg/reactive does not import pkg/scheduler
// (which in turn depends on Instance to drive renders). Concretely
// implemented by *scheduler.Scheduler.
type Scheduler interface {
	EnqueueRender(instanceID string, render func())
}

// RenderFunc is the user-supplied component body. It runs with the owning
// Instance pushed as active; it must be a pure function of props and state
// reads — no state mutation (I3).
type RenderFunc func(i *Instance) *vnode.Node

// MountOp is a side effect deferred from BUILD to COMMIT (spec §4.7):
// listener attachment, timer start, task start, resource start. It runs
// only if its owning subtree's commit succeeds, and may return a cleanup
// callback appended to the instance's cleanup stack.
type MountOp func() (cleanup func())

// Instance is the persistent identity of a mounted component — the spec's
// ComponentInstance, merging what the teacher splits into Owner
// (pkg/vango/owner.go, the reactive scope: hook slots, cleanups, context
// map, dispose) and ComponentInstance (pkg/server/component.go, the render
// driver: component ref, last tree, parent/child graph). Spec's single
// ComponentInstance type has no use for that split once the session-specific
// machinery is stripped out, so loom keeps one Instance carrying both.
type Instance struct {
	ID     string
	Render RenderFunc
	IsRoot bool
	SSR    bool

	Parent   *Instance
	Children []*Instance

	Tree *vnode.Node // last-rendered VNode output

	// hook slots, array+cursor model (spec §9): a render increments a
	// cursor; each state() call consumes the next slot by index, not by
	// call-site identity. Mirrors the teacher's hookSlots/hookSlotIdx.
	slots []*cellSlot

	expectedStateIndices int  // set on first render, spec I1
	stateIndexCheck       int // cursor reset to 0 at each render start
	firstRenderDone       bool

	lastReadStates map[cellReader]struct{}

	cleanups []func()

	mountOps []MountOp

	deriveCache map[any]any

	hasPendingUpdate bool
	rendering        bool
	renderCount      int

	ctx    context.Context
	cancel context.CancelFunc

	frame *ContextFrame // frame captured at mount time, reinstalled each render

	sched Scheduler

	// onDirty, when set, asks the owning Root to rebuild and commit the
	// whole mounted tree; every instance in a mount shares its root's
	// closure (installed on every mounted instance by pkg/commit.Root.Commit
	// after each successful commit; NewInstance also copies the parent's
	// closure into a new child), since loom's BUILD phase always re-renders from the
	// document root rather than tracking a per-instance dirty list (a
	// simplification over the teacher's targeted Session.renderDirty).
	onDirty func()

	// ssrData, when set, primes resource() calls from a preloaded map
	// instead of running the producer (spec §6 "Persisted state"); ssrSeq
	// is the deterministic per-render counter indexing into it.
	ssrData map[int]any
	ssrSeq  int
}

// SetSSRData primes this instance (and its SSR-mode resources) with
// previously-resolved values keyed by deterministic render-order index.
func (i *Instance) SetSSRData(data map[int]any) {
	i.ssrData = data
}

type cellSlot struct {
	cell any // *StateCell[T], type-erased
}

// NewInstance constructs an unmounted instance. Callers (pkg/commit,
// pkg/ssr) invoke Render via RenderOnce during BUILD.
func NewInstance(render RenderFunc, parent *Instance, sched Scheduler) *Instance {
	var parentCtx context.Context = context.Background()
	var parentFrame *ContextFrame
	var onDirty func()
	if parent != nil {
		parentCtx = parent.ctx
		parentFrame = parent.frame
		onDirty = parent.onDirty
	}
	ctx, cancel := context.WithCancel(parentCtx)
	inst := &Instance{
		ID:      nextInstanceID(),
		Render:  render,
		Parent:  parent,
		ctx:     ctx,
		cancel:  cancel,
		frame:   parentFrame,
		sched:   sched,
		onDirty: onDirty,
	}
	if parent != nil {
		parent.Children = append(parent.Children, inst)
	}
	return inst
}

// SetOnDirty installs the root-rebuild callback (spec §4.1: a dirty instance
// schedules a render; BUILD re-renders the whole mounted tree from the
// document root). pkg/commit.Root.Commit calls this on every mounted
// instance after each successful commit; NewInstance copies the parent's
// closure into each child it creates.
func (i *Instance) SetOnDirty(fn func()) {
	i.onDirty = fn
}

// Context returns the instance's cancellation context, aborted on Dispose.
func (i *Instance) Context() context.Context { return i.ctx }

// Frame returns the context frame active for this instance's renders.
func (i *Instance) Frame() *ContextFrame { return i.frame }

// WithFrame replaces the instance's active context frame, e.g. after a
// parent's Provider wraps it during reconciliation.
func (i *Instance) WithFrame(f *ContextFrame) { i.frame = f }

// RenderOnce executes the render protocol (spec §4.3) once and returns the
// resulting tree. Panics from the component function are recovered and
// returned as *RenderError so BUILD can abort cleanly.
func (i *Instance) RenderOnce() (tree *vnode.Node, err error) {
	restoreInstance := pushInstance(i)
	restoreFrame := pushFrame(i.frame)
	prevReadStates := i.lastReadStates
	i.stateIndexCheck = 0
	i.ssrSeq = 0
	i.lastReadStates = make(map[cellReader]struct{})
	i.rendering = true
	i.hasPendingUpdate = false

	defer func() {
		i.rendering = false
		restoreFrame()
		restoreInstance()
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = &RenderError{InstanceID: i.ID, Err: e}
			} else {
				err = &RenderError{InstanceID: i.ID, Err: fmt.Errorf("%v", r)}
			}
		}
	}()

	tree = i.Render(i)
	i.renderCount++
	i.syncReaders(prevReadStates)

	if !i.firstRenderDone {
		i.expectedStateIndices = i.stateIndexCheck
		i.firstRenderDone = true
	} else if i.stateIndexCheck > i.expectedStateIndices {
		err = &HookOrderError{InstanceID: i.ID, Index: i.stateIndexCheck - 1, Expected: i.expectedStateIndices}
		return nil, err
	}

	return tree, err
}

// syncReaders drops this instance from any cell it no longer reads (spec
// §4.2 "subscription maintenance", I5): prev holds the cells read during the
// previous render; any of those absent from the render just finished
// (i.lastReadStates) have this instance removed as a reader, so a cell that
// drops out of a conditional branch stops waking this instance up.
func (i *Instance) syncReaders(prev map[cellReader]struct{}) {
	for cr := range prev {
		if _, stillRead := i.lastReadStates[cr]; !stillRead {
			cr.removeReader(i.ID)
		}
	}
}

// RequestUpdate marks the instance dirty and enqueues exactly one render
// task per flush (spec's coalescing rule, the stricter per-instance
// reading per Open Question 1). Safe to call multiple times before the
// task runs.
func (i *Instance) RequestUpdate() {
	if i.hasPendingUpdate {
		return
	}
	i.hasPendingUpdate = true
	if i.sched != nil {
		i.sched.EnqueueRender(i.ID, func() {
			i.hasPendingUpdate = false
			if i.onDirty != nil {
				i.onDirty()
			}
		})
	}
}

// IsRendering reports whether this instance's render is currently on the
// call stack (spec I3).
func (i *Instance) IsRendering() bool { return i.rendering }

// AddCleanup pushes a cleanup callback, run LIFO on Dispose.
func (i *Instance) AddCleanup(fn func()) {
	if fn != nil {
		i.cleanups = append(i.cleanups, fn)
	}
}

// AddMountOp defers a side effect to the commit phase (spec §4.7).
func (i *Instance) AddMountOp(op MountOp) {
	i.mountOps = append(i.mountOps, op)
}

// TakeMountOps returns and clears the deferred mount operations staged
// during the most recent BUILD.
func (i *Instance) TakeMountOps() []MountOp {
	ops := i.mountOps
	i.mountOps = nil
	return ops
}

// RunMountOps executes staged mount ops (called only after a successful
// COMMIT, per I13) and appends returned cleanups.
func (i *Instance) RunMountOps(ops []MountOp) {
	for _, op := range ops {
		if cleanup := op(); cleanup != nil {
			i.AddCleanup(cleanup)
		}
	}
}

// Dispose unmounts the instance: runs cleanups LIFO, aborts its context,
// removes it from all state cells' readers, and recurses into children
// (spec §4.3 "Unmount").
func (i *Instance) Dispose() {
	for idx := len(i.cleanups) - 1; idx >= 0; idx-- {
		i.cleanups[idx]()
	}
	i.cleanups = nil
	i.cancel()
	for _, slot := range i.slots {
		if rc, ok := slot.cell.(cellReader); ok {
			rc.removeReader(i.ID)
		}
	}
	for cr := range i.lastReadStates {
		cr.removeReader(i.ID)
	}
	for _, child := range i.Children {
		child.Dispose()
	}
	i.Children = nil
}

// cellReader is the type-erased surface Instance needs from a StateCell[T]
// of any T: enough to prune subscriptions without pkg/reactive's Instance
// type being generic itself.
type cellReader interface {
	removeReader(id string)
}

// Derive is the function form of derive (Open Question 2): it calls compute
// on every call and caches nothing. DeriveKeyed is the identity-keyed cached
// form over a source value.
func Derive[T any](i *Instance, compute func() T) T {
	return compute()
}

// DeriveKeyed caches map(source) by the identity of source across renders,
// per spec's documented secondary derive(source, map) form.
func DeriveKeyed[S comparable, T any](i *Instance, source S, mapFn func(S) T) T {
	if i.deriveCache == nil {
		i.deriveCache = make(map[any]any)
	}
	if v, ok := i.deriveCache[source]; ok {
		return v.(T)
	}
	v := mapFn(source)
	i.deriveCache[source] = v
	return v
}
