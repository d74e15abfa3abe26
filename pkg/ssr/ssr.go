// Package ssr is the synchronous HTML serializer collaborator (spec §6).
// It renders a VNode tree with every Instance it drives marked ssr=true; an
// async resource under it raises ErrSSRDataMissing. Grounded on
// pkg/render/renderer.go + the teacher's escape.go helpers — loom drops the
// renderer's stray fmt.Printf HID trace (a teacher wart, not its idiom).
// RendererConfig carries a RandomSource, but rendering never draws from it
// (see RandomSource).
package ssr

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"sort"
	"strings"

	"github.com/loomkit/loom/pkg/reactive"
	"github.com/loomkit/loom/pkg/vnode"
)

// RandomSource is the deterministic substitute for math/rand a caller can
// set in RendererConfig. The Renderer stores it but never calls it and does
// not hand it to components; math/rand calls made by a component during
// SSR are not intercepted.
type RandomSource interface {
	Float64() float64
}

// PanicRandomSource is the default RendererConfig.Rand: its Float64 panics.
// Because the Renderer never draws from cfg.Rand, setting it has no effect
// on rendering.
type PanicRandomSource struct{}

// Float64 implements RandomSource by panicking.
func (PanicRandomSource) Float64() float64 {
	panic("loom: Math.random-equivalent called during SSR render without a deterministic source")
}

// RendererConfig configures the HTML renderer (mirrors the teacher's
// render.RendererConfig).
type RendererConfig struct {
	Pretty bool
	Indent string
	Rand   RandomSource
}

// Renderer renders a VNode tree produced under ssr=true to an HTML string.
type Renderer struct {
	cfg RendererConfig
}

// New constructs a Renderer with defaults filled in.
func New(cfg RendererConfig) *Renderer {
	if cfg.Indent == "" {
		cfg.Indent = "  "
	}
	if cfg.Rand == nil {
		cfg.Rand = PanicRandomSource{}
	}
	return &Renderer{cfg: cfg}
}

// RenderComponent drives component synchronously under ssr=true and
// renders its output to a string. An async resource it reaches raises
// ErrSSRDataMissing (propagated as-is, since SSR render is itself
// synchronous end to end per spec §1 Non-goals).
func (r *Renderer) RenderComponent(component vnode.Component, ssrData map[int]any) (string, error) {
	inst := reactive.NewInstance(func(i *reactive.Instance) *vnode.Node { return component.Render() }, nil, nil)
	inst.SSR = true
	if ssrData != nil {
		inst.SetSSRData(ssrData)
	}

	tree, err := inst.RenderOnce()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := r.renderNode(&buf, tree, 0); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *Renderer) renderNode(w io.Writer, n *vnode.Node, depth int) error {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case vnode.KindElement:
		return r.renderElement(w, n, depth)
	case vnode.KindText:
		_, err := w.Write([]byte(html.EscapeString(n.Text)))
		return err
	case vnode.KindRaw:
		_, err := w.Write([]byte(n.Text))
		return err
	case vnode.KindFragment:
		for _, c := range n.Children {
			if err := r.renderNode(w, c, depth); err != nil {
				return err
			}
		}
		return nil
	case vnode.KindComponent:
		if n.Comp == nil {
			return nil
		}
		return r.renderNode(w, n.Comp.Render(), depth)
	default:
		return fmt.Errorf("loom: unknown vnode kind %v during SSR", n.Kind)
	}
}

func (r *Renderer) renderElement(w io.Writer, n *vnode.Node, depth int) error {
	if r.cfg.Pretty && depth > 0 {
		for i := 0; i < depth; i++ {
			w.Write([]byte(r.cfg.Indent))
		}
	}

	fmt.Fprintf(w, "<%s", n.Type)
	r.renderAttrs(w, n.Props)
	if isVoidElement(n.Type) {
		w.Write([]byte{'>'})
		if r.cfg.Pretty {
			w.Write([]byte{'\n'})
		}
		return nil
	}
	w.Write([]byte{'>'})

	if raw, ok := n.Props["dangerouslySetInnerHTML"].(string); ok {
		w.Write([]byte(raw))
	} else {
		for _, c := range n.Children {
			if err := r.renderNode(w, c, depth+1); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(w, "</%s>", n.Type)
	if r.cfg.Pretty {
		w.Write([]byte{'\n'})
	}
	return nil
}

func (r *Renderer) renderAttrs(w io.Writer, props vnode.Props) {
	if len(props) == 0 {
		return
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k == "key" || k == "dangerouslySetInnerHTML" {
			continue
		}
		v := props[k]
		if isHandlerKey(k) {
			continue
		}
		name := k
		switch k {
		case "className":
			name = "class"
		case "htmlFor":
			name = "for"
		}
		if b, ok := v.(bool); ok {
			if b {
				fmt.Fprintf(w, " %s", name)
			}
			continue
		}
		fmt.Fprintf(w, ` %s="%s"`, name, html.EscapeString(fmt.Sprintf("%v", v)))
	}
}

func isHandlerKey(key string) bool {
	return strings.HasPrefix(key, "on") || strings.HasPrefix(key, "On")
}

func isVoidElement(tag string) bool {
	switch tag {
	case "area", "base", "br", "col", "embed", "hr", "img", "input", "link", "meta", "param", "source", "track", "wbr":
		return true
	}
	return false
}
