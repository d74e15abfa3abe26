// Package router is the router collaborator (spec §6): an ordinary
// component consuming state cells, exposing Navigate(path) and Route() to
// read the current route snapshot. The core only supplies scheduling and
// mount services; this package owns path matching.
//
// Grounded on the teacher's pkg/router route-tree matcher (router.go,
// tree.go, params.go), trimmed to the matching/param-extraction core the
// spec's router collaborator needs and re-exposed over pkg/reactive's
// StateCell instead of the teacher's session-bound dispatch.
package router

import (
	"strings"
	"sync/atomic"

	"github.com/loomkit/loom/pkg/reactive"
	"github.com/loomkit/loom/pkg/vnode"
)

// Route is the current navigation snapshot the router exposes to Route().
type Route struct {
	Path    string
	Params  map[string]string
	Matched bool
}

// PageComponent builds a page's VNode tree for a matched Route.
type PageComponent func(Route) *vnode.Node

type routeEntry struct {
	segments []segment
	page     PageComponent
}

type segment struct {
	literal string
	param   string // non-empty for a ":name" segment
	isSplat bool
}

// Router holds the registered route table. It is safe to register routes
// only before the first mount; Lock (called by hostapp.CreateSPA) enforces
// that in production (spec Open Question 3).
type Router struct {
	routes []routeEntry
	locked atomic.Bool

	notFound PageComponent
}

// New constructs an empty router.
func New() *Router {
	return &Router{}
}

// AddPage registers a path pattern (e.g. "/users/:id" or "/files/*rest")
// with its page component. Panics if called after Lock.
func (r *Router) AddPage(pattern string, page PageComponent) {
	if r.locked.Load() {
		panic("loom: router registration is locked after app startup")
	}
	r.routes = append(r.routes, routeEntry{segments: parsePattern(pattern), page: page})
}

// SetNotFound registers the fallback page for unmatched paths.
func (r *Router) SetNotFound(page PageComponent) {
	r.notFound = page
}

// Lock prevents further route registration; called once by CreateSPA after
// first mount (CreateIsland does not call it) (spec Open Question 3,
// production-only enforcement).
func (r *Router) Lock() {
	r.locked.Store(true)
}

// unlockForTest is intentionally unexported: whether it is a public
// contract is an open question the spec leaves unresolved, so loom does
// not export it — only this package's own tests may reach past the lock.
func (r *Router) unlockForTest() {
	r.locked.Store(false)
}

func parsePattern(pattern string) []segment {
	parts := strings.Split(strings.Trim(pattern, "/"), "/")
	segs := make([]segment, 0, len(parts))
	for _, p := range parts {
		switch {
		case strings.HasPrefix(p, ":"):
			segs = append(segs, segment{param: p[1:]})
		case strings.HasPrefix(p, "*"):
			segs = append(segs, segment{param: p[1:], isSplat: true})
		default:
			segs = append(segs, segment{literal: p})
		}
	}
	return segs
}

// Match resolves path against the registered routes, first-registered-wins
// on ambiguity (mirrors the teacher's route-tree precedence).
func (r *Router) Match(path string) (PageComponent, map[string]string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 1 && parts[0] == "" {
		parts = nil
	}

	for _, entry := range r.routes {
		if params, ok := matchSegments(entry.segments, parts); ok {
			return entry.page, params, true
		}
	}
	return r.notFound, nil, r.notFound != nil
}

func matchSegments(segs []segment, parts []string) (map[string]string, bool) {
	params := map[string]string{}
	for idx, seg := range segs {
		if seg.isSplat {
			params[seg.param] = strings.Join(parts[idx:], "/")
			return params, true
		}
		if idx >= len(parts) {
			return nil, false
		}
		if seg.param != "" {
			params[seg.param] = parts[idx]
			continue
		}
		if seg.literal != parts[idx] {
			return nil, false
		}
	}
	if len(parts) != len(segs) {
		return nil, false
	}
	return params, true
}

// Collaborator binds a Router to a live StateCell holding the current
// Route, constructed during the root component's first render.
type Collaborator struct {
	router *Router
	state  *reactive.StateCell[Route]
}

// Use installs (or reuses) the router collaborator's state cell for the
// active render; call this from the root component's render function.
func Use(r *Router, initialPath string) *Collaborator {
	_, params, matched := r.Match(initialPath)
	cell := reactive.NewStateCell(Route{Path: initialPath, Params: params, Matched: matched})
	return &Collaborator{router: r, state: cell}
}

// Route returns the current route snapshot, read-tracked like any state
// cell read (spec §6 "route() to read the current route snapshot").
func (c *Collaborator) Route() Route {
	return c.state.Read()
}

// Navigate updates the current route, matching path against the router's
// table and scheduling exactly one coalesced re-render (spec §6
// "navigate(path)").
func (c *Collaborator) Navigate(path string) {
	_, params, matched := c.router.Match(path)
	c.state.Set(Route{Path: path, Params: params, Matched: matched})
}

// Page resolves the PageComponent for the current route, or the
// not-found page if unmatched.
func (c *Collaborator) Page() (PageComponent, Route) {
	route := c.Route()
	page, _, _ := c.router.Match(route.Path)
	return page, route
}

// rootComponent adapts a Router into the vnode.Component hostapp.CreateSPA
// mounts as the application root (spec §6 "implemented as an ordinary
// component consuming a StateCell"). Use's NewStateCell call is hook-slot
// indexed, so every re-render gets a fresh Collaborator over the same state
// cell, and the current Route survives rather than being rebuilt from
// initialPath each time.
type rootComponent struct {
	router      *Router
	initialPath string
}

func (rc *rootComponent) Render() *vnode.Node {
	c := Use(rc.router, rc.initialPath)
	page, route := c.Page()
	if page == nil {
		return nil
	}
	return page(route)
}

// Root implements hostapp.RouteTable: the vnode.Component CreateSPA mounts,
// resolving the initial route against "/". The Collaborator that the
// returned component's Render creates is not exposed to the caller, and
// Root takes no initial path, so the mounted route always starts at "/".
func (r *Router) Root() vnode.Component {
	return &rootComponent{router: r, initialPath: "/"}
}
