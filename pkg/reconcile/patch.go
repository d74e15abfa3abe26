// Package reconcile diffs a new VNode tree against the previous one and
// produces an ordered mutation plan against pkg/document (spec §4.5).
// Grounded on the teacher's vdom/diff.go (Diff, diffElement,
// diffKeyedChildren, diffUnkeyedChildren) and vdom/patch.go (Patch,
// PatchOp), ported near-verbatim in algorithm shape and retargeted at
// pkg/document's abstract tree instead of directly emitting wire patches.
package reconcile

import "github.com/loomkit/loom/pkg/document"

// PatchOp names the kind of document mutation a Patch stages.
type PatchOp uint8

const (
	PatchSetText PatchOp = iota
	PatchSetProp
	PatchRemoveProp
	PatchInsert
	PatchMove
	PatchRemove
	PatchReplaceChildren // fast-lane bulk op, spec §4.6
)

// Patch is one staged mutation. Which of Parent/Node/Index/PropKey/
// PropValue/Text/Children are populated depends on Op. Patches are produced during BUILD and applied in tree
// order during COMMIT (spec §4.7) — nothing here touches *document.Node
// fields directly; Apply does, and only the commit engine calls Apply.
type Patch struct {
	Op     PatchOp
	Parent *document.Node
	Node   *document.Node // node being inserted/moved/removed/updated
	Index  int            // target index for Insert/Move

	PropKey   string
	PropValue any

	Text string

	Children []*document.Node // PatchReplaceChildren payload
}

// Apply performs the single mutation described by p. Called only by the
// commit engine's COMMIT phase, never during BUILD (spec §4.7 "No document
// writes" during BUILD).
func (p Patch) Apply() {
	switch p.Op {
	case PatchSetText:
		p.Node.SetText(p.Text)
	case PatchSetProp:
		p.Node.SetProp(p.PropKey, p.PropValue)
	case PatchRemoveProp:
		p.Node.RemoveProp(p.PropKey)
	case PatchInsert:
		p.Parent.InsertChildAt(p.Index, p.Node)
	case PatchMove:
		p.Parent.MoveChildTo(p.Node, p.Index)
	case PatchRemove:
		p.Parent.RemoveChild(p.Node)
	case PatchReplaceChildren:
		p.Parent.ReplaceChildren(p.Children)
	}
}
