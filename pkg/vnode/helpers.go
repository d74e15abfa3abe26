package vnode

// El constructs an intrinsic element node, mirroring the teacher's
// vdom/elements.go factory style (one constructor per tag delegates to a
// shared helper taking tag/props/children).
func El(tag string, props Props, children ...*Node) *Node {
	return &Node{Kind: KindElement, Type: tag, Props: props, Children: children}
}

// TextNode constructs a text leaf.
func TextNode(text string) *Node {
	return &Node{Kind: KindText, Text: text}
}

// RawHTML constructs a pre-escaped HTML leaf (KindRaw), which the SSR
// serializer writes unescaped. The serializer's dangerouslySetInnerHTML
// prop is handled separately and does not go through this node kind.
func RawHTML(html string) *Node {
	return &Node{Kind: KindRaw, Text: html}
}

// FragmentOf groups children with no document node of their own; a
// fragment's children are spliced into its parent's list (spec §6).
func FragmentOf(children ...*Node) *Node {
	return &Node{Kind: KindFragment, Children: children}
}

// WithKey returns a shallow copy of n carrying the given reconciliation
// key, so producers can write `vnode.WithKey(El(...), id)`.
func WithKey(n *Node, key any) *Node {
	cp := *n
	cp.Key = key
	return &cp
}

// ComponentNode wraps a Component value into a vnode carrying a stable type
// tag (used for same-shape checks across renders) and an optional key.
func ComponentNode(typeTag string, key any, comp Component) *Node {
	return &Node{Kind: KindComponent, Type: typeTag, Key: key, Comp: comp}
}
