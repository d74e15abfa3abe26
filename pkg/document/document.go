// Package document is the in-process live tree the reconciler diffs
// against and the commit engine mutates. Because loom's core runs inside
// the host Go process rather than a browser, this tree is the canonical
// mounted state — analogous to the teacher's HID-addressed node set built
// by vdom.AssignHIDs/CollectHIDs (pkg/vdom/hydration.go) — rather than a
// remote DOM mirrored over a wire protocol.
package document

import "github.com/loomkit/loom/pkg/vnode"

// NodeKind mirrors vnode.Kind for the subset that has a document
// representation; fragments and components never get a Node of their own.
type NodeKind uint8

const (
	NodeElement NodeKind = iota
	NodeText
	NodeRaw
)

// Node is a single mounted element or text node (single-owner DOM, spec
// I12: exactly one Instance owns a Node at a time, tracked by OwnerID).
type Node struct {
	ID      string
	Kind    NodeKind
	Tag     string
	Props   vnode.Props
	Text    string
	Parent  *Node
	Children []*Node

	OwnerID string // id of the Instance that owns this node

	// Key addressing for the parent's child list, used by the reconciler
	// to build oldKeyMap (spec §4.5).
	Key any
}

var nodeSeq uint64

func nextNodeID() string {
	nodeSeq++
	return itoa(nodeSeq)
}

func itoa(n uint64) string {
	if n == 0 {
		return "n0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return "n" + string(digits)
}

// NewElement constructs a detached element node; the commit engine attaches
// it to a parent during COMMIT.
func NewElement(tag string, props vnode.Props, key any, owner string) *Node {
	return &Node{ID: nextNodeID(), Kind: NodeElement, Tag: tag, Props: props, Key: key, OwnerID: owner}
}

// NewText constructs a detached text node.
func NewText(text string, owner string) *Node {
	return &Node{ID: nextNodeID(), Kind: NodeText, Text: text, OwnerID: owner}
}

// SetProp stages an attribute write. The commit engine is the only caller
// that invokes this outside of node construction (spec §5 "Shared-resource
// policy": only the commit phase mutates the document).
func (n *Node) SetProp(key string, value any) {
	if n.Props == nil {
		n.Props = vnode.Props{}
	}
	n.Props[key] = value
}

// RemoveProp stages an attribute removal.
func (n *Node) RemoveProp(key string) {
	delete(n.Props, key)
}

// SetText updates a text node's character data in place, reusing the node
// (spec §4.5 "Text child ... emit a character-data update reusing the
// existing text node").
func (n *Node) SetText(text string) {
	n.Text = text
}

// InsertChildAt inserts child at index idx, reparenting it.
func (n *Node) InsertChildAt(idx int, child *Node) {
	child.Parent = n
	if idx >= len(n.Children) {
		n.Children = append(n.Children, child)
		return
	}
	n.Children = append(n.Children, nil)
	copy(n.Children[idx+1:], n.Children[idx:])
	n.Children[idx] = child
}

// RemoveChild detaches child from n's children list.
func (n *Node) RemoveChild(child *Node) {
	for idx, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:idx], n.Children[idx+1:]...)
			child.Parent = nil
			return
		}
	}
}

// MoveChildTo relocates an already-present child to index idx without
// constructing a new Node, preserving object identity (spec §4.5
// "Ordering is stable" / §4.6 fast-lane's "DOM node identity is preserved").
func (n *Node) MoveChildTo(child *Node, idx int) {
	n.RemoveChild(child)
	n.InsertChildAt(idx, child)
}

// ReplaceChildren swaps in an entirely new ordered list in a single
// operation, used by the fast-lane bulk-commit path (spec §4.6).
func (n *Node) ReplaceChildren(children []*Node) {
	for _, c := range children {
		c.Parent = n
	}
	n.Children = children
}

// IndexOf returns the current position of child in n's children, or -1.
func (n *Node) IndexOf(child *Node) int {
	for idx, c := range n.Children {
		if c == child {
			return idx
		}
	}
	return -1
}

// Clone produces a copy of n's own fields with its own Props map and
// Children slice; the child nodes themselves are shared, not copied.
// Nothing in this module calls it; pkg/commit does not snapshot or restore
// nodes on a failed commit.
func (n *Node) Clone() *Node {
	cp := *n
	cp.Children = append([]*Node(nil), n.Children...)
	propsCopy := make(vnode.Props, len(n.Props))
	for k, v := range n.Props {
		propsCopy[k] = v
	}
	cp.Props = propsCopy
	return &cp
}
