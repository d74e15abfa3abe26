package router

import (
	"testing"

	"github.com/loomkit/loom/pkg/reactive"
	"github.com/loomkit/loom/pkg/vnode"
)

func page(label string) PageComponent {
	return func(Route) *vnode.Node { return vnode.TextNode(label) }
}

func TestMatchLiteralAndParamSegments(t *testing.T) {
	r := New()
	r.AddPage("/users/:id", page("user"))
	r.AddPage("/settings", page("settings"))

	_, params, matched := r.Match("/users/42")
	if !matched {
		t.Fatal("expected /users/42 to match /users/:id")
	}
	if params["id"] != "42" {
		t.Fatalf("expected id param 42, got %q", params["id"])
	}

	if _, _, matched := r.Match("/settings"); !matched {
		t.Fatal("expected /settings to match")
	}

	if _, _, matched := r.Match("/nope"); matched {
		t.Fatal("expected an unregistered path with no notFound page to not match")
	}
}

func TestSplatSegmentCapturesRemainder(t *testing.T) {
	r := New()
	r.AddPage("/files/*rest", page("files"))

	_, params, matched := r.Match("/files/a/b/c")
	if !matched {
		t.Fatal("expected splat route to match")
	}
	if params["rest"] != "a/b/c" {
		t.Fatalf("expected rest=a/b/c, got %q", params["rest"])
	}
}

func TestNotFoundFallback(t *testing.T) {
	r := New()
	r.SetNotFound(page("404"))

	got, _, matched := r.Match("/anything")
	if !matched {
		t.Fatal("expected notFound fallback to match")
	}
	if got == nil {
		t.Fatal("expected a non-nil notFound page component")
	}
}

func TestLockPreventsFurtherRegistration(t *testing.T) {
	r := New()
	r.Lock()
	defer func() {
		r.unlockForTest()
		if recover() == nil {
			t.Fatal("expected AddPage after Lock to panic")
		}
	}()
	r.AddPage("/late", page("late"))
}

// TestCollaboratorNavigateUpdatesRoute drives the router collaborator
// through a real render (reactive.Instance.RenderOnce), since Use/Navigate
// depend on an active render for the underlying state cell (spec §6
// "route() to read the current route snapshot").
func TestCollaboratorNavigateUpdatesRoute(t *testing.T) {
	r := New()
	r.AddPage("/a", page("a"))
	r.AddPage("/b", page("b"))

	var collab *Collaborator
	i := reactive.NewInstance(func(inst *reactive.Instance) *vnode.Node {
		collab = Use(r, "/a")
		return vnode.TextNode("root")
	}, nil, nil)

	if _, err := i.RenderOnce(); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	if collab.Route().Path != "/a" {
		t.Fatalf("expected initial route /a, got %q", collab.Route().Path)
	}

	collab.Navigate("/b")
	if collab.Route().Path != "/b" || !collab.Route().Matched {
		t.Fatalf("expected route /b matched after Navigate, got %+v", collab.Route())
	}

	gotPage, route := collab.Page()
	if gotPage == nil {
		t.Fatal("expected Page to resolve a page component for the current route")
	}
	if route.Path != "/b" {
		t.Fatalf("expected Page's route to be /b, got %q", route.Path)
	}
}
