package reconcile

import (
	"reflect"

	"github.com/loomkit/loom/pkg/document"
	"github.com/loomkit/loom/pkg/vnode"
)

// FastlaneStats are the dev-mode diagnostics counters spec §4.6 requires:
// items processed, items reused, commit count per pass.
type FastlaneStats struct {
	ItemsProcessed int
	ItemsReused    int
	Commits        int
}

// Plan is a precomputed bulk-commit move plan returned when the fast-lane
// pre-pass finds a new keyed child list eligible (spec §4.6/§9 "a separate
// pre-pass ... that either returns 'eligible' with a precomputed move plan
// or 'ineligible'"). Not present in the teacher at all (confirmed absent
// from the whole retrieved corpus) — authored fresh, generalizing the
// keyed-match loop DiffChildren already performs into a single
// eligibility check ahead of time.
type Plan struct {
	Order []*Mounted // final document-node order, by reused/created Mounted entry
	Stats FastlaneStats
}

// fastlaneThreshold and fastlaneBulkTextThreshold gate DiffChildren's
// fast-lane pre-pass (spec §4.6). These defaults match
// internal/config.Default()'s FastlaneThreshold/BulkTextThreshold so the
// documented ~100/~10 thresholds hold for every caller of this package —
// not only hosts that run through cmd/loom serve, which additionally
// applies any FASTLANE_THRESHOLD/BULK_TEXT_THRESHOLD environment overrides via
// SetFastlaneThresholds, mirroring pkg/reactive's devStrict package-level
// configuration hook rather than threading the values through every
// DiffChildren call site.
var (
	fastlaneThreshold         = 100
	fastlaneBulkTextThreshold = 10
)

// SetFastlaneThresholds configures the fast-lane pre-pass gating (spec §4.6
// conditions a/d); non-positive values are ignored and keep the prior
// setting.
func SetFastlaneThresholds(threshold, bulkText int) {
	if threshold > 0 {
		fastlaneThreshold = threshold
	}
	if bulkText > 0 {
		fastlaneBulkTextThreshold = bulkText
	}
}

// FastlaneObserver, when set, is called once per DiffChildren invocation
// that attempted the fast-lane pre-pass, reporting whether it took the bulk
// path — pkg/obs wires this to the fastlane_hits_total/fastlane_misses_total
// counters.
var FastlaneObserver func(hit bool)

// TryFastlane attempts the bulk path for a keyed child list. It returns
// (nil, false) if any gating condition (spec §4.6 a–d) is violated, in
// which case the caller must fall back to DiffChildren untouched — the
// pre-pass here never mutates parentDoc or prevMounted itself, so a partial
// attempt can never leave a half-applied mutation (spec §4.6 "fall back ...
// without partial mutation").
func TryFastlane(parentDoc *document.Node, newNodes []*vnode.Node, prevMounted []*Mounted, threshold, bulkTextThreshold int) (*Plan, bool) {
	flat := flatten(newNodes)

	if len(flat) < threshold || len(prevMounted) < threshold {
		return nil, false
	}

	if !allSameKeyedElementType(flat) || !allSameKeyedElementType(mountedVNodes(prevMounted)) {
		return nil, false
	}

	oldByKey := make(map[any]*Mounted, len(prevMounted))
	for _, m := range prevMounted {
		if m.Key == nil {
			return nil, false // mixed keyed/unkeyed: not a pure reorder, bail
		}
		if _, dup := oldByKey[m.Key]; dup {
			return nil, false // duplicate keys need first-seen-order handling DiffChildren already does
		}
		oldByKey[m.Key] = m
	}

	order := make([]*Mounted, 0, len(flat))
	reused := 0
	textShiftCount := 0

	for _, n := range flat {
		if n.Key == nil {
			return nil, false
		}
		prev, ok := oldByKey[n.Key]
		if !ok {
			return nil, false // a true insert disqualifies the bulk reorder fast path
		}
		if !eligibleProps(prev.VNode.Props, n.Props) {
			return nil, false // structural/handler attribute diffs need the general path
		}
		reused++
		if textOnlyContentChanged(prev, n) {
			textShiftCount++
		}
		order = append(order, &Mounted{
			Kind: vnode.KindElement, Type: n.Type, Key: n.Key, VNode: n, Doc: prev.Doc, Children: prev.Children,
		})
	}

	if len(order) != len(prevMounted) {
		return nil, false // an old key dropped: not a pure reorder/shift
	}
	if textShiftCount > 0 && textShiftCount < bulkTextThreshold {
		// a handful of text changes amid a reorder is cheaper through the
		// general per-node diff than a bulk replace-children.
		return nil, false
	}

	return &Plan{Order: order, Stats: FastlaneStats{ItemsProcessed: len(flat), ItemsReused: reused, Commits: 1}}, true
}

// Apply stages the single bulk document mutation the plan describes (spec
// §4.6 "a single document-level replace-children ... rather than per-child
// mutations"). It must run inside the same BUILD/COMMIT envelope as the
// general path: zero mount callbacks, zero new cleanups, one commit.
func (p *Plan) Apply(parentDoc *document.Node) []Patch {
	docs := make([]*document.Node, 0, len(p.Order))
	for _, m := range p.Order {
		docs = append(docs, m.Doc)
	}

	patches := []Patch{{Op: PatchReplaceChildren, Parent: parentDoc, Children: docs}}
	for _, m := range p.Order {
		if m.VNode.Kind == vnode.KindElement && len(m.VNode.Children) == 1 && m.VNode.Children[0].Kind == vnode.KindText {
			if len(m.Children) == 1 && m.Children[0].Doc != nil && m.Children[0].Doc.Text != m.VNode.Children[0].Text {
				patches = append(patches, Patch{Op: PatchSetText, Node: m.Children[0].Doc, Text: m.VNode.Children[0].Text})
			}
		}
	}
	return patches
}

func allSameKeyedElementType(nodes []*vnode.Node) bool {
	if len(nodes) == 0 {
		return true
	}
	first := ""
	for idx, n := range nodes {
		if n.Kind != vnode.KindElement {
			return false
		}
		if idx == 0 {
			first = n.Type
		} else if n.Type != first {
			return false
		}
	}
	return true
}

func mountedVNodes(ms []*Mounted) []*vnode.Node {
	out := make([]*vnode.Node, len(ms))
	for i, m := range ms {
		out[i] = m.VNode
	}
	return out
}

// eligibleProps allows only data-* and plain text-content differences — no
// handler-binding or structural-attribute changes (spec §4.6 condition c).
func eligibleProps(oldProps, newProps vnode.Props) bool {
	keys := make(map[string]struct{}, len(oldProps)+len(newProps))
	for k := range oldProps {
		keys[k] = struct{}{}
	}
	for k := range newProps {
		keys[k] = struct{}{}
	}
	for k := range keys {
		ov, oOk := oldProps[k]
		nv, nOk := newProps[k]
		if oOk != nOk {
			if !isBulkSafeKey(k) {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(ov, nv) && !isBulkSafeKey(k) {
			return false
		}
	}
	return true
}

func isBulkSafeKey(key string) bool {
	if len(key) >= 5 && key[:5] == "data-" {
		return true
	}
	return false
}

func textOnlyContentChanged(prev *Mounted, n *vnode.Node) bool {
	if len(prev.Children) != 1 || len(n.Children) != 1 {
		return false
	}
	if prev.Children[0].Kind != vnode.KindText || n.Children[0].Kind != vnode.KindText {
		return false
	}
	return prev.Children[0].VNode.Text != n.Children[0].Text
}
