// Package expand implements spec.md §4.5-§4.10: transcendental expansion,
// Threefry PRNG lowering, EXPAND/CONTRACT fusion, REDUCE lowering to
// DEFINE_ACC+ASSIGN, float4/image memory-op folding, and gating. Each
// concern is expressed as one or more pattern.Rule sets run through the
// same rewrite.GraphRewrite fixpoint engine internal/rules uses, so a
// program's middle-end lowering stays a single uniform kind of pass instead
// of a second bespoke tree-walker per concern.
package expand

import (
	"uopc/internal/backend"
	"uopc/internal/pattern"
	"uopc/internal/rewrite"
	"uopc/internal/uop"
)

// Run applies the full expand pipeline to root in spec order: gate
// propagation first (so a store's gate still reaches the loads that feed
// it even after they're rewritten), then transcendental and Threefry
// lowering, then EXPAND/CONTRACT/BARRIER fusion, then the reduce-before-
// expand push-through (which must see the REDUCE/EXPAND shape before
// REDUCE lowering destroys it), then REDUCE lowering itself (each pass runs
// to a fixed point before the next begins, since do_expand must finish
// widening before do_reduce partitions ranges against the widened body),
// then float4 folding, and finally redundant-gate cleanup now that
// gate-carrying loads have settled into their final shape.
func Run(root *uop.UOp, d *backend.Descriptor) *uop.UOp {
	root = GateLoads(root)

	pre := pattern.Merge(TranscendentalMatcher(d), ThreefryMatcher())
	root = rewrite.GraphRewrite(root, pre)

	widen := pattern.Merge(pattern.Merge(ExpanderMatcher(), ContractMatcher()), BarrierMatcher())
	root = rewrite.GraphRewrite(root, widen)

	root = rewrite.GraphRewrite(root, ReduceBeforeExpandMatcher())

	root = rewrite.GraphRewrite(root, ReducerMatcher())

	if d.SupportsFloat4 {
		root = rewrite.GraphRewrite(root, LoadVectorizeFold(d))
		root = FoldFloat4Stores(root, d)
	}

	root = StripRedundantGates(root)
	return root
}
