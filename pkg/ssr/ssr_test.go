package ssr

import (
	"strings"
	"testing"

	"github.com/loomkit/loom/pkg/vnode"
)

type staticPage struct{}

func (staticPage) Render() *vnode.Node {
	return vnode.El("div", vnode.Props{"class": "a&b", "disabled": true},
		vnode.TextNode("<hi>"),
		vnode.El("img", vnode.Props{"src": "x.png"}),
	)
}

func TestRenderComponentEscapesAndSelfClosesVoidElements(t *testing.T) {
	r := New(RendererConfig{})
	out, err := r.RenderComponent(staticPage{}, nil)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	if !strings.Contains(out, `class="a&amp;b"`) {
		t.Fatalf("expected escaped class attribute, got %q", out)
	}
	if !strings.Contains(out, "disabled") {
		t.Fatalf("expected boolean attribute rendered bare, got %q", out)
	}
	if !strings.Contains(out, "&lt;hi&gt;") {
		t.Fatalf("expected escaped text content, got %q", out)
	}
	if !strings.Contains(out, `<img src="x.png">`) {
		t.Fatalf("expected a self-closed void element with no closing tag, got %q", out)
	}
	if strings.Contains(out, "</img>") {
		t.Fatalf("void elements must not get a closing tag, got %q", out)
	}
}

type handlerPage struct{}

func (handlerPage) Render() *vnode.Node {
	return vnode.El("button", vnode.Props{"onClick": func() {}}, vnode.TextNode("go"))
}

func TestRenderComponentOmitsEventHandlerProps(t *testing.T) {
	r := New(RendererConfig{})
	out, err := r.RenderComponent(handlerPage{}, nil)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Contains(out, "onClick") {
		t.Fatalf("expected onClick handler prop to be omitted from SSR output, got %q", out)
	}
}

type rawPage struct{}

func (rawPage) Render() *vnode.Node {
	return vnode.El("div", vnode.Props{"dangerouslySetInnerHTML": "<b>bold</b>"})
}

func TestRenderComponentInnerHTMLBypassesEscaping(t *testing.T) {
	r := New(RendererConfig{})
	out, err := r.RenderComponent(rawPage{}, nil)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(out, "<b>bold</b>") {
		t.Fatalf("expected raw innerHTML passthrough, got %q", out)
	}
}
