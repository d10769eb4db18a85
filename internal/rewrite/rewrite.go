// Package rewrite implements the bottom-up fixed-point rewrite engine of
// spec.md §4.2 ("Fixpoint discipline").
package rewrite

import (
	"uopc/internal/pattern"
	"uopc/internal/uop"
)

// memo caches, per UOp identity, the final rewritten form. A node already
// in normal form is cached as itself, which prevents revisiting it
// (spec.md §4.2 "a None memoization prevents revisiting").
type memo struct {
	done map[*uop.UOp]*uop.UOp
}

func newMemo() *memo { return &memo{done: map[*uop.UOp]*uop.UOp{}} }

// GraphRewrite applies pm to root and every node transitively reachable
// from it, children first, repeatedly rewriting any replacement until a
// fixed point, and returns the rewritten graph (spec.md §4.2).
func GraphRewrite(root *uop.UOp, pm *pattern.Matcher) *uop.UOp {
	m := newMemo()
	return m.rewrite(root, pm)
}

func (m *memo) rewrite(u *uop.UOp, pm *pattern.Matcher) *uop.UOp {
	if done, ok := m.done[u]; ok {
		return done
	}
	// Children first.
	newSrc := make([]*uop.UOp, len(u.Src))
	childChanged := false
	for i, c := range u.Src {
		rc := m.rewrite(c, pm)
		newSrc[i] = rc
		if rc != c {
			childChanged = true
		}
	}
	node := u
	if childChanged {
		node = u.WithSrc(newSrc)
	}
	for {
		replaced := pm.Rewrite(node)
		if replaced == nil {
			break
		}
		// The callback's output is itself rewritten recursively before
		// being returned (spec.md §4.2); it may introduce new children
		// that also need bottom-up treatment.
		replaced = m.rewrite(replaced, pm)
		node = replaced
	}
	m.done[u] = node
	return node
}
