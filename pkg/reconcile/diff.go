package reconcile

import (
	"reflect"

	"github.com/loomkit/loom/pkg/document"
	"github.com/loomkit/loom/pkg/reactive"
	"github.com/loomkit/loom/pkg/vnode"
)

// Mounted is one entry in the reconciler's logical mount tree (spec §3
// "Mount tree"): the record the next diff needs to recognize what a
// document node or component instance used to be. Fragments never appear
// here — their children are flattened into the surrounding logical list,
// the same transparency a KindFragment vnode has in the document (spec §6:
// "A fragment's children are spliced into its parent's list").
type Mounted struct {
	Kind  vnode.Kind
	Key   any
	Type  string
	VNode *vnode.Node

	Doc *document.Node // set for Element/Text; nil for Component (delegates)

	Inst *reactive.Instance // set for Component only

	Children []*Mounted // Element: its own children; Component: its instance's flattened rendered output
}

// Result is what Diff returns to the commit engine: the staged patches, the
// updated mount-tree entries to install, and the instances to dispose — all
// only acted on if COMMIT succeeds (spec I13: nothing is torn down, and no
// mount op runs, unless the subtree's commit succeeds).
type Result struct {
	Patches   []Patch
	Children  []*Mounted
	Disposals []*reactive.Instance
}

// flatten inlines fragment children into the surrounding list and drops nil
// entries, mirroring the teacher's diffFragment transparency.
func flatten(nodes []*vnode.Node) []*vnode.Node {
	out := make([]*vnode.Node, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if n.Kind == vnode.KindFragment {
			out = append(out, flatten(n.Children)...)
			continue
		}
		out = append(out, n)
	}
	return out
}

// DiffChildren reconciles a parent's new (possibly fragment-nested) child
// list against its previous flattened Mounted list, staging Patches against
// parentDoc and returning the new Mounted list to install on success (spec
// §4.5 "Child-list reconciliation with keys").
//
// owner is the Instance new Component children should be parented under
// (their render-time active instance and cleanup-tree parent); sched is
// threaded through to newly created Instances.
func DiffChildren(parentDoc *document.Node, newNodes []*vnode.Node, prevMounted []*Mounted, owner *reactive.Instance, sched reactive.Scheduler) (*Result, error) {
	flat := flatten(newNodes)

	if len(flat) > 0 && len(prevMounted) > 0 {
		if plan, ok := TryFastlane(parentDoc, newNodes, prevMounted, fastlaneThreshold, fastlaneBulkTextThreshold); ok {
			if FastlaneObserver != nil {
				FastlaneObserver(true)
			}
			return &Result{Patches: plan.Apply(parentDoc), Children: plan.Order}, nil
		}
		if FastlaneObserver != nil {
			FastlaneObserver(false)
		}
	}

	oldKeyMap := make(map[any][]int)
	oldUnkeyed := make([]int, 0, len(prevMounted))
	consumed := make([]bool, len(prevMounted))

	for idx, m := range prevMounted {
		if m.Key != nil {
			oldKeyMap[m.Key] = append(oldKeyMap[m.Key], idx)
		} else {
			oldUnkeyed = append(oldUnkeyed, idx)
		}
	}
	unkeyedCursor := 0

	var patches []Patch
	var disposals []*reactive.Instance
	result := make([]*Mounted, 0, len(flat))

	for _, n := range flat {
		var matchIdx = -1

		if n.Key != nil {
			if list := oldKeyMap[n.Key]; len(list) > 0 {
				matchIdx = list[0]
				oldKeyMap[n.Key] = list[1:]
			}
		} else {
			for unkeyedCursor < len(oldUnkeyed) {
				candidate := oldUnkeyed[unkeyedCursor]
				unkeyedCursor++
				if !consumed[candidate] {
					matchIdx = candidate
					break
				}
			}
		}

		targetIdx := len(result) // this item's position in the final ordered list, for a fresh Insert's patch

		if matchIdx >= 0 {
			consumed[matchIdx] = true
			prev := prevMounted[matchIdx]
			mounted, sub, err := diffOne(parentDoc, n, prev, owner, sched, targetIdx)
			if err != nil {
				return nil, err
			}
			patches = append(patches, sub.Patches...)
			disposals = append(disposals, sub.Disposals...)
			result = append(result, mounted)
			continue
		}

		mounted, sub, err := mountOne(parentDoc, n, owner, sched, targetIdx)
		if err != nil {
			return nil, err
		}
		patches = append(patches, sub.Patches...)
		disposals = append(disposals, sub.Disposals...)
		result = append(result, mounted)
	}

	for idx, m := range prevMounted {
		if !consumed[idx] {
			ps, ds := unmountOne(parentDoc, m)
			patches = append(patches, ps...)
			disposals = append(disposals, ds...)
		}
	}

	patches = append(patches, reorderPatches(parentDoc, result)...)

	return &Result{Patches: patches, Children: result, Disposals: disposals}, nil
}

// sameShape mirrors vnode.SameShape but also requires the stable Type tag
// match for components (spec §3 "same shape iff type and key are equal").
func sameShape(a *Mounted, b *vnode.Node) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == vnode.KindElement && a.Type != b.Type {
		return false
	}
	if a.Kind == vnode.KindComponent && componentTypeTag(b) != a.Type {
		return false
	}
	return keyEq(a.Key, b.Key)
}

func keyEq(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a == b
}

func componentTypeTag(n *vnode.Node) string {
	if n.Type != "" {
		return n.Type
	}
	if n.Comp != nil {
		return reflect.TypeOf(n.Comp).String()
	}
	return ""
}

// diffOne updates a reused slot (same shape) or replaces it in place
// (different shape at the same list position) — spec §4.5 "Element against
// element with different type ... mount new subtree, unmount old, splice".
func diffOne(parentDoc *document.Node, n *vnode.Node, prev *Mounted, owner *reactive.Instance, sched reactive.Scheduler, targetIdx int) (*Mounted, *Result, error) {
	if !sameShape(prev, n) {
		ps, ds := unmountOne(parentDoc, prev)
		mounted, sub, err := mountOne(parentDoc, n, owner, sched, targetIdx)
		if sub == nil {
			sub = &Result{}
		}
		sub.Patches = append(ps, sub.Patches...)
		sub.Disposals = append(ds, sub.Disposals...)
		return mounted, sub, err
	}

	switch n.Kind {
	case vnode.KindText:
		var patches []Patch
		if n.Text != prev.VNode.Text {
			patches = append(patches, Patch{Op: PatchSetText, Node: prev.Doc, Text: n.Text})
		}
		return &Mounted{Kind: vnode.KindText, Key: n.Key, VNode: n, Doc: prev.Doc}, &Result{Patches: patches}, nil

	case vnode.KindRaw:
		var patches []Patch
		if n.Text != prev.VNode.Text {
			patches = append(patches, Patch{Op: PatchSetText, Node: prev.Doc, Text: n.Text})
		}
		return &Mounted{Kind: vnode.KindRaw, Key: n.Key, VNode: n, Doc: prev.Doc}, &Result{Patches: patches}, nil

	case vnode.KindElement:
		doc := prev.Doc
		patches := diffProps(doc, prev.VNode.Props, n.Props)

		childResult, err := DiffChildren(doc, n.Children, prev.Children, owner, sched)
		if err != nil {
			return nil, nil, err
		}
		patches = append(patches, childResult.Patches...)

		mounted := &Mounted{
			Kind: vnode.KindElement, Type: n.Type, Key: n.Key, VNode: n,
			Doc: doc, Children: childResult.Children,
		}
		return mounted, &Result{Patches: patches, Disposals: childResult.Disposals}, nil

	case vnode.KindComponent:
		inst := prev.Inst
		inst.Render = func(i *reactive.Instance) *vnode.Node { return n.Comp.Render() }
		output, err := inst.RenderOnce()
		if err != nil {
			return nil, nil, err
		}
		var outputs []*vnode.Node
		if output != nil {
			outputs = []*vnode.Node{output}
		}
		childResult, err := DiffChildren(parentDoc, outputs, prev.Children, inst, sched)
		if err != nil {
			return nil, nil, err
		}
		inst.Tree = output

		mounted := &Mounted{
			Kind: vnode.KindComponent, Type: componentTypeTag(n), Key: n.Key, VNode: n,
			Inst: inst, Children: childResult.Children,
		}
		return mounted, &Result{Patches: childResult.Patches, Disposals: childResult.Disposals}, nil

	default:
		return &Mounted{Kind: n.Kind, Key: n.Key, VNode: n}, &Result{}, nil
	}
}

// mountOne creates a fresh Mounted entry (and document nodes / Instances)
// for n, with no prior counterpart — a full mount (spec §4.5 "create").
func mountOne(parentDoc *document.Node, n *vnode.Node, owner *reactive.Instance, sched reactive.Scheduler, targetIdx int) (*Mounted, *Result, error) {
	ownerID := ""
	if owner != nil {
		ownerID = owner.ID
	}

	switch n.Kind {
	case vnode.KindText:
		doc := document.NewText(n.Text, ownerID)
		return &Mounted{Kind: vnode.KindText, Key: n.Key, VNode: n, Doc: doc},
			&Result{Patches: []Patch{{Op: PatchInsert, Parent: parentDoc, Node: doc, Index: targetIdx}}}, nil

	case vnode.KindRaw:
		doc := document.NewText(n.Text, ownerID)
		return &Mounted{Kind: vnode.KindRaw, Key: n.Key, VNode: n, Doc: doc},
			&Result{Patches: []Patch{{Op: PatchInsert, Parent: parentDoc, Node: doc, Index: targetIdx}}}, nil

	case vnode.KindElement:
		doc := document.NewElement(n.Type, nil, n.Key, ownerID)
		var patches []Patch
		patches = append(patches, Patch{Op: PatchInsert, Parent: parentDoc, Node: doc, Index: targetIdx})
		patches = append(patches, diffProps(doc, nil, n.Props)...)

		childResult, err := DiffChildren(doc, n.Children, nil, owner, sched)
		if err != nil {
			return nil, nil, err
		}
		patches = append(patches, childResult.Patches...)

		mounted := &Mounted{
			Kind: vnode.KindElement, Type: n.Type, Key: n.Key, VNode: n,
			Doc: doc, Children: childResult.Children,
		}
		return mounted, &Result{Patches: patches, Disposals: childResult.Disposals}, nil

	case vnode.KindComponent:
		renderFn := func(i *reactive.Instance) *vnode.Node { return n.Comp.Render() }
		inst := reactive.NewInstance(renderFn, owner, sched)
		output, err := inst.RenderOnce()
		if err != nil {
			return nil, nil, err
		}
		var outputs []*vnode.Node
		if output != nil {
			outputs = []*vnode.Node{output}
		}
		childResult, err := DiffChildren(parentDoc, outputs, nil, inst, sched)
		if err != nil {
			return nil, nil, err
		}
		inst.Tree = output

		mounted := &Mounted{
			Kind: vnode.KindComponent, Type: componentTypeTag(n), Key: n.Key, VNode: n,
			Inst: inst, Children: childResult.Children,
		}
		return mounted, &Result{Patches: childResult.Patches, Disposals: childResult.Disposals}, nil

	default:
		return &Mounted{Kind: n.Kind, Key: n.Key, VNode: n}, &Result{}, nil
	}
}

// unmountOne stages removal of m's document nodes and queues disposal of
// any component instance it (or its descendants) own. The caller only acts
// on these after a successful COMMIT (spec I13).
func unmountOne(parentDoc *document.Node, m *Mounted) ([]Patch, []*reactive.Instance) {
	var patches []Patch
	for _, doc := range collectDocNodes(m) {
		patches = append(patches, Patch{Op: PatchRemove, Parent: doc.Parent, Node: doc})
	}
	disposals := collectInstances(m)
	return patches, disposals
}

// AllInstances walks a Mounted list (typically a Result.Children) for every
// component Instance reachable, new or reused — the commit engine uses this
// after a successful COMMIT to run each instance's staged mount ops (spec
// I13: only after commit succeeds).
func AllInstances(children []*Mounted) []*reactive.Instance {
	var out []*reactive.Instance
	for _, c := range children {
		if c.Inst != nil {
			out = append(out, c.Inst)
		}
		out = append(out, AllInstances(c.Children)...)
	}
	return out
}

// collectInstances returns the outermost component Instances under m: it
// stops descending at the first Instance on each path, because
// Instance.Dispose already recurses into its own Children and listing
// nested instances too would dispose them twice.
func collectInstances(m *Mounted) []*reactive.Instance {
	if m.Inst != nil {
		return []*reactive.Instance{m.Inst}
	}
	var out []*reactive.Instance
	for _, c := range m.Children {
		out = append(out, collectInstances(c)...)
	}
	return out
}

// collectDocNodes walks a Mounted entry to the document nodes it
// ultimately contributes, unwrapping transparent Component layers (spec §3
// "delegates to a child instance").
func collectDocNodes(m *Mounted) []*document.Node {
	if m.Doc != nil {
		return []*document.Node{m.Doc}
	}
	var out []*document.Node
	for _, c := range m.Children {
		out = append(out, collectDocNodes(c)...)
	}
	return out
}

// reorderPatches emits Move patches for any doc node whose position in
// parentDoc's live children differs from its target position in the final
// ordering (spec §4.5 "if its position differs from the running cursor,
// emit a move"). This is the authoritative positioning pass: a doc node
// transitively contributed by a nested Component's own DiffChildren call
// (delegating transparently into this same parentDoc) was inserted by a
// recursion that has no visibility into this level's sibling positions, so
// its own Insert patch's index may be wrong — the Move computed here, over
// the fully flattened target order, corrects it regardless. IndexOf
// returning -1 for a node whose Insert patch hasn't applied yet (BUILD runs
// before any document write) still produces a correct Move once COMMIT
// applies patches in order: the node is attached by its Insert, then
// repositioned by this Move.
func reorderPatches(parentDoc *document.Node, mounted []*Mounted) []Patch {
	var target []*document.Node
	for _, m := range mounted {
		target = append(target, collectDocNodes(m)...)
	}

	var patches []Patch
	for idx, doc := range target {
		if parentDoc.IndexOf(doc) == idx {
			continue // already correctly positioned, no-op
		}
		patches = append(patches, Patch{Op: PatchMove, Parent: parentDoc, Node: doc, Index: idx})
	}
	return patches
}

// diffProps emits SetProp/RemoveProp patches for attributes that changed
// (spec §4.5 "diff attributes (add/remove/update on inequality)"), and
// emits nothing for equal values (spec §4.5 "Minimal-mutation guarantee").
func diffProps(doc *document.Node, oldProps, newProps vnode.Props) []Patch {
	var patches []Patch
	for k, v := range newProps {
		old, existed := oldProps[k]
		if !existed || !reflect.DeepEqual(old, v) {
			patches = append(patches, Patch{Op: PatchSetProp, Node: doc, PropKey: k, PropValue: v})
		}
	}
	for k := range oldProps {
		if _, stillPresent := newProps[k]; !stillPresent {
			patches = append(patches, Patch{Op: PatchRemoveProp, Node: doc, PropKey: k})
		}
	}
	return patches
}
