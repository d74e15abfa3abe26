// Package hostapp exposes the core's mount entry points to a host
// application: createIsland, createSPA, hydrate/hydrateSPA (spec §6). It is
// transport-agnostic — pkg/transport layers a live WebSocket session over
// the same Root/Scheduler pair for non-SSR sessions, and pkg/ssr renders a
// Root synchronously for a single response.
//
// Grounded on Session.MountRoot (pkg/server/session.go) and the teacher's
// features/islands package, generalized to not require a WebSocket.
package hostapp

import (
	"fmt"
	"log/slog"

	"github.com/loomkit/loom/pkg/commit"
	"github.com/loomkit/loom/pkg/document"
	"github.com/loomkit/loom/pkg/obs"
	"github.com/loomkit/loom/pkg/reactive"
	"github.com/loomkit/loom/pkg/reconcile"
	"github.com/loomkit/loom/pkg/scheduler"
	"github.com/loomkit/loom/pkg/vnode"
)

// App is a mounted application: one scheduler, one commit root, and the
// container document node the host owns.
type App struct {
	Scheduler *scheduler.Scheduler
	Root      *commit.Root
	Container *document.Node

	log *slog.Logger
}

// Options configures a mount.
type Options struct {
	MaxNestedRenders int
	Logger           *slog.Logger

	// Metrics, when set, wires commit-phase tracing/counters (pkg/obs) into
	// this mount's commit root.
	Metrics *obs.Metrics
}

// CreateIsland mounts component inside a fresh container, installing a
// single ComponentInstance owning that root (spec §6 "createIsland").
// Errors during initial mount propagate to the caller (spec §7
// "User-visible behavior").
func CreateIsland(component vnode.Component, opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	sched := scheduler.New(opts.MaxNestedRenders, log)
	container := document.NewElement("#root", nil, nil, "")
	root := commit.NewRoot(container, sched, log)
	root.Metrics = opts.Metrics

	app := &App{Scheduler: sched, Root: root, Container: container, log: log}

	rootVNode := vnode.ComponentNode("island-root", nil, component)
	if err := root.BuildAndCommit([]*vnode.Node{rootVNode}); err != nil {
		return nil, fmt.Errorf("loom: createIsland mount failed: %w", err)
	}
	return app, nil
}

// RouteTable is the minimal surface CreateSPA needs from pkg/router without
// importing it directly, avoiding a hostapp<->router dependency cycle
// (pkg/router imports pkg/reactive and pkg/vnode, not pkg/hostapp).
type RouteTable interface {
	Root() vnode.Component
}

// locker is the optional surface a RouteTable may additionally implement to
// have its registration locked once CreateSPA has mounted it (spec Open
// Question 3, production-only enforcement); *router.Router satisfies it.
type locker interface {
	Lock()
}

// CreateSPA mounts with the router collaborator as root component (spec §6
// "createSPA"). It returns an error for a nil route table; a non-nil table
// with no registered routes is not rejected. After the initial mount
// succeeds, a route table that also implements locker is locked against
// further registration.
func CreateSPA(routes RouteTable, opts Options) (*App, error) {
	if routes == nil {
		return nil, fmt.Errorf("loom: createSPA requires a non-empty route table")
	}
	app, err := CreateIsland(routes.Root(), opts)
	if err != nil {
		return nil, err
	}
	if l, ok := routes.(locker); ok {
		l.Lock()
	}
	return app, nil
}

// Dispatch runs fn (typically an event handler) wrapped so its effects are
// observed immediately and exactly one coalesced flush is scheduled after
// (spec §4.1 "wrap_event_handler"). Any panic inside fn is recovered,
// logged, and does not abort the flush (spec §7 "Event handler itself
// throwing is caught, logged, and the flush continues").
func (a *App) Dispatch(fn func()) {
	wrapped := a.Scheduler.WrapEventHandler(func() {
		defer func() {
			if r := recover(); r != nil {
				a.log.Error("loom: event handler panicked", "error", r)
			}
		}()
		fn()
	})
	wrapped()
}

// Rerender re-invokes BuildAndCommit with a freshly produced root tree —
// used by the router collaborator on navigation and by tests that drive a
// mount without a live instance triggering its own RequestUpdate.
func (a *App) Rerender(newRoot *vnode.Node) error {
	return a.Root.BuildAndCommit([]*vnode.Node{newRoot})
}

// Instances exposes every live component Instance in the mounted tree, for
// diagnostics and tests.
func (a *App) Instances() []*reactive.Instance {
	return reconcile.AllInstances(a.Root.Mounted)
}
