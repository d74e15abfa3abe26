// Package commit implements the two-phase BUILD/COMMIT apply of spec §4.7:
// stage a mutation plan entirely in memory, then apply it in a single
// synchronous pass and run deferred mount operations. A panic while patches
// are being applied leaves the patches already applied in the document;
// only the Root's Mounted snapshot is kept at its prior value. Grounded on
// Session.renderComponent + Session.flush (pkg/server/session.go in the
// teacher), generalized out of the WebSocket-patch-sending specifics into
// explicit Root.Build/Root.Commit methods operating on pkg/document nodes.
package commit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loomkit/loom/pkg/document"
	"github.com/loomkit/loom/pkg/obs"
	"github.com/loomkit/loom/pkg/reactive"
	"github.com/loomkit/loom/pkg/reconcile"
	"github.com/loomkit/loom/pkg/vnode"
)

// ErrCommitFailed reports a failure during the COMMIT phase itself (as
// opposed to a BUILD failure, which never reaches commit at all).
type ErrCommitFailed struct {
	InstanceID string
	Err        error
}

func (e *ErrCommitFailed) Error() string {
	return fmt.Sprintf("loom: commit failed for instance %s: %v", e.InstanceID, e.Err)
}

func (e *ErrCommitFailed) Unwrap() error { return e.Err }

// Root is the top of one mounted tree: a single virtual root document node
// (a detached container element the host app owns) plus the reconciler's
// logical mount-tree snapshot from the previous successful commit.
type Root struct {
	Container *document.Node
	Mounted   []*reconcile.Mounted
	Owner     *reactive.Instance // the root Instance, or nil if Container hosts a bare component tree with its own owners
	Sched     reactive.Scheduler

	// Metrics, when set, has commit_failures_total incremented for every
	// failed Commit; every Commit runs inside an otel span either way
	// (spec §7's commit-failure path is
	// the one place the spec requires observability survive Non-goal
	// trimming of the rest of the metrics surface).
	Metrics *obs.Metrics

	lastNodes []*vnode.Node // most recent BuildAndCommit input, replayed by Rebuild

	// LastErr is the error (if any) from the most recent Rebuild, for hosts
	// that trigger rebuilds indirectly (a descendant instance's onDirty) and
	// have no call-stack return path to observe it directly — e.g. a render
	// that raises a HookOrderError after a state change made deep in the
	// tree (spec §7 "Hook order violations ... surfaced to the developer").
	LastErr error

	log *slog.Logger
}

// NewRoot wraps a detached container document node as a mount root.
func NewRoot(container *document.Node, sched reactive.Scheduler, log *slog.Logger) *Root {
	if log == nil {
		log = slog.Default()
	}
	return &Root{Container: container, Sched: sched, log: log}
}

// Build runs BUILD: stage the mutation plan for a new top-level child list
// (a single root component's output, or a flat list for createIsland-style
// mounts) against the previous Mounted snapshot. No document writes happen
// here (spec §4.7 "No document writes").
func (r *Root) Build(newNodes []*vnode.Node) (*reconcile.Result, error) {
	return reconcile.DiffChildren(r.Container, newNodes, r.Mounted, r.Owner, r.Sched)
}

// Commit applies a successfully-built Result: patches in tree order, then
// runs pending mount operations and disposes anything staged for removal
// (spec §4.7 "COMMIT", I13 "no listener ... unless its owning subtree's
// commit succeeded"). On a panic during patch application r.Mounted is
// left unchanged and the panic is converted to ErrCommitFailed; patches
// applied before the panic are not undone, so the document nodes they
// touched keep those writes — the teacher's session applies patches through a
// plain loop with no recovery; loom adds the recover because the spec
// requires propagating a typed commit error rather than crashing the
// scheduler's flush loop.
func (r *Root) Commit(result *reconcile.Result) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			instID := ""
			if r.Owner != nil {
				instID = r.Owner.ID
			}
			err = &ErrCommitFailed{InstanceID: instID, Err: fmt.Errorf("%v", rec)}
			r.log.Error("loom: commit panicked, mount snapshot left unchanged", "error", err)
		}
	}()

	for _, p := range result.Patches {
		p.Apply()
	}

	for _, inst := range result.Disposals {
		inst.Dispose()
	}

	r.Mounted = result.Children

	for _, inst := range reconcile.AllInstances(result.Children) {
		ops := inst.TakeMountOps()
		inst.RunMountOps(ops)
		// Every instance in the mount shares one root-rebuild trigger: loom
		// re-renders the whole document root on any dirty instance rather
		// than tracking a per-component dirty list (see Instance.onDirty).
		inst.SetOnDirty(r.Rebuild)
	}

	return nil
}

// BuildAndCommit runs BUILD then, only on success, COMMIT — the ordinary
// per-flush-iteration entry point pkg/scheduler's render tasks call. It
// remembers newNodes so a later Rebuild (triggered by a descendant
// instance's RequestUpdate) can replay the same top-level input.
func (r *Root) BuildAndCommit(newNodes []*vnode.Node) error {
	r.lastNodes = newNodes
	result, err := r.Build(newNodes)
	if err != nil {
		// BUILD failure: buffer discarded, r.Mounted (prior mount-tree
		// mapping) untouched, no listener/timer/resource started (I13).
		return err
	}

	instID := ""
	if r.Owner != nil {
		instID = r.Owner.ID
	}
	return obs.TraceCommit(context.Background(), r.Metrics, instID, func() error {
		return r.Commit(result)
	})
}

// Rebuild replays the most recent BuildAndCommit input — the callback
// installed as every mounted instance's onDirty, since a cell's Set call
// only knows which Instance went dirty, not the original top-level vnode
// list a router or createIsland call supplied.
func (r *Root) Rebuild() {
	if r.lastNodes == nil {
		return
	}
	err := r.BuildAndCommit(r.lastNodes)
	r.LastErr = err
	if err != nil {
		r.log.Error("loom: rebuild failed", "error", err)
	}
}
