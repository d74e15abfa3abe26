package hostapp

import (
	"log/slog"

	"github.com/loomkit/loom/pkg/commit"
	"github.com/loomkit/loom/pkg/document"
	"github.com/loomkit/loom/pkg/reactive"
	"github.com/loomkit/loom/pkg/reconcile"
	"github.com/loomkit/loom/pkg/scheduler"
	"github.com/loomkit/loom/pkg/vnode"
)

// Hydrate adopts an existing document subtree (typically produced by
// pkg/ssr and re-parsed into document.Node form by the host's DOM adapter)
// for component: it walks the live tree and the component's VNode output
// in lockstep, attaching listeners and state cells without moving document
// nodes (spec §6 "hydrate"). A structural mismatch raises
// *reactive.HydrationMismatchError; dev mode logs and falls back to a
// client re-render instead of raising (spec §7 "Hydration mismatch").
func Hydrate(existing *document.Node, component vnode.Component, opts Options, strict bool) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	sched := scheduler.New(opts.MaxNestedRenders, log)
	root := commit.NewRoot(existing, sched, log)

	app := &App{Scheduler: sched, Root: root, Container: existing, log: log}

	rootVNode := vnode.ComponentNode("island-root", nil, component)
	mounted, err := hydrateOne(existing, rootVNode, nil, sched)
	if err != nil {
		if strict {
			return nil, err
		}
		log.Warn("loom: hydration mismatch, falling back to client re-render", "error", err)
		if e2 := root.BuildAndCommit([]*vnode.Node{rootVNode}); e2 != nil {
			return nil, e2
		}
		return app, nil
	}

	root.Mounted = []*reconcile.Mounted{mounted}
	for _, inst := range reconcile.AllInstances(root.Mounted) {
		inst.RunMountOps(inst.TakeMountOps())
	}
	return app, nil
}

// HydrateSPA hydrates with the router collaborator as root component.
func HydrateSPA(existing *document.Node, routes RouteTable, opts Options, strict bool) (*App, error) {
	return Hydrate(existing, routes.Root(), opts, strict)
}

// hydrateOne recursively matches a live document.Node subtree against a
// freshly-produced vnode, without ever mutating the document, per spec §6
// "listeners and state cells are attached without moving document nodes".
func hydrateOne(live *document.Node, n *vnode.Node, owner *reactive.Instance, sched reactive.Scheduler) (*reconcile.Mounted, error) {
	switch n.Kind {
	case vnode.KindText:
		if live == nil || live.Kind != document.NodeText {
			return nil, &reactive.HydrationMismatchError{Path: "text", Reason: "server node missing or not text"}
		}
		return &reconcile.Mounted{Kind: n.Kind, VNode: n, Doc: live}, nil

	case vnode.KindElement:
		if live == nil || live.Kind != document.NodeElement || live.Tag != n.Type {
			return nil, &reactive.HydrationMismatchError{Path: n.Type, Reason: "tag mismatch"}
		}
		children := make([]*reconcile.Mounted, 0, len(n.Children))
		for idx, child := range n.Children {
			var liveChild *document.Node
			if idx < len(live.Children) {
				liveChild = live.Children[idx]
			}
			m, err := hydrateOne(liveChild, child, owner, sched)
			if err != nil {
				return nil, err
			}
			children = append(children, m)
		}
		return &reconcile.Mounted{Kind: n.Kind, Type: n.Type, Key: n.Key, VNode: n, Doc: live, Children: children}, nil

	case vnode.KindComponent:
		inst := reactive.NewInstance(func(i *reactive.Instance) *vnode.Node { return n.Comp.Render() }, owner, sched)
		output, err := inst.RenderOnce()
		if err != nil {
			return nil, err
		}
		inst.Tree = output
		var m *reconcile.Mounted
		if output != nil {
			m, err = hydrateOne(live, output, inst, sched)
			if err != nil {
				return nil, err
			}
		}
		var kids []*reconcile.Mounted
		if m != nil {
			kids = []*reconcile.Mounted{m}
		}
		return &reconcile.Mounted{Kind: n.Kind, Type: n.Type, Key: n.Key, VNode: n, Inst: inst, Children: kids}, nil

	default:
		return &reconcile.Mounted{Kind: n.Kind, VNode: n}, nil
	}
}
