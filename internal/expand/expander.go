package expand

import (
	"uopc/internal/pattern"
	"uopc/internal/uop"
)

// isExpand reports whether u is an EXPAND node.
func isExpand(u *uop.UOp) bool { return u.Op == uop.EXPAND }

func expandAxes(u *uop.UOp) []uop.AxisExtent {
	return u.Arg.(uop.ExpandArg).Axes
}

func sameAxes(a, b []uop.AxisExtent) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func prodExtents(axes []uop.AxisExtent) int {
	n := 1
	for _, a := range axes {
		n *= a.Extent
	}
	return n
}

// broadcast repeats a scalar-valued node n times into a width-n vector,
// matching spec.md §4.7's "non-EXPAND sources are vector-broadcast by a
// VECTORIZE-repeat".
func broadcast(s *uop.Store, x *uop.UOp, n int) *uop.UOp {
	if n == 1 {
		return x
	}
	elems := make([]*uop.UOp, n)
	for i := range elems {
		elems[i] = x
	}
	return s.Vectorize(elems...)
}

// ExpanderMatcher implements spec.md §4.7 "do_expand": for any op with at
// least one EXPAND source, fuses the combined axis set into a single
// vector-typed consumer, wrapped in a fresh EXPAND carrying the combined
// axes. LOAD/STORE's buffer operand and REDUCE's range operands bypass
// fusion, matching the spec's "special cases" carve-out.
func ExpanderMatcher() *pattern.Matcher {
	anyOp := &pattern.Pat{}
	return pattern.New(pattern.Rule{Name: "do-expand", Pat: anyOp, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		if u.Op == uop.EXPAND || u.Op == uop.CONTRACT || u.Op == uop.BARRIER || u.Op == uop.REDUCE {
			return nil // handled by their own rules
		}
		bypassIdx := bypassIndices(u)

		var axes []uop.AxisExtent
		found := false
		for i, c := range u.Src {
			if bypassIdx[i] {
				continue
			}
			if isExpand(c) {
				if !found {
					axes = expandAxes(c)
					found = true
				} else if !sameAxes(axes, expandAxes(c)) {
					return nil // mismatched axis orders: leave for a future pass
				}
			}
		}
		if !found {
			return nil
		}

		n := prodExtents(axes)
		s := u.StoreOf()
		newSrc := make([]*uop.UOp, len(u.Src))
		for i, c := range u.Src {
			switch {
			case bypassIdx[i]:
				newSrc[i] = c
			case isExpand(c) && sameAxes(expandAxes(c), axes):
				newSrc[i] = c.Src[0]
			default:
				newSrc[i] = broadcast(s, c, n)
			}
		}

		var dtype *uop.DType
		if u.DType != nil {
			dtype = u.DType.Vectorized(n * u.DType.Count)
		}
		var widened *uop.UOp
		if u.Op == uop.GEP {
			idx := u.Arg.(uop.GEPArg).Indices
			widened = s.New(uop.GEP, dtype, newSrc, uop.GEPArg{Indices: widenGEPIndices(idx, n)})
		} else {
			widened = s.New(u.Op, dtype, newSrc, u.Arg)
		}
		return s.Expand(axes, widened)
	}})
}

// bypassIndices returns the set of child indices that do not participate in
// expand-axis broadcasting: a LOAD/STORE's buffer (index 0) and a REDUCE's
// ranges (indices ≥1), per spec.md §4.7.
func bypassIndices(u *uop.UOp) map[int]bool {
	m := map[int]bool{}
	switch u.Op {
	case uop.LOAD, uop.STORE:
		m[0] = true
	case uop.REDUCE:
		for i := 1; i < len(u.Src); i++ {
			m[i] = true
		}
	}
	return m
}

func widenGEPIndices(idx []int, n int) []int {
	out := make([]int, 0, len(idx)*n)
	for _, i := range idx {
		for k := 0; k < n; k++ {
			out = append(out, i*n+k)
		}
	}
	return out
}

// ContractMatcher implements spec.md §4.7 "Contract": CONTRACT(EXPAND(x,
// axes)) drops a subset of axes by selecting the GEP permutation over x's
// flattened lane space that matches the surviving axis combinations.
func ContractMatcher() *pattern.Matcher {
	p := pattern.Op(uop.CONTRACT).WithSrc(pattern.Op(uop.EXPAND).WithName("exp"))
	return pattern.New(pattern.Rule{Name: "contract-of-expand", Pat: p, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		expandNode := b.Get("exp")
		fullAxes := expandAxes(expandNode)
		contractAxes := u.Arg.(uop.ContractArg).Axes

		strides := axisStrides(fullAxes)
		contractIdx := map[int]uop.AxisExtent{}
		for _, ca := range contractAxes {
			contractIdx[ca.Axis] = ca
		}

		var freeAxes []uop.AxisExtent
		for _, a := range fullAxes {
			if _, ok := contractIdx[a.Axis]; !ok {
				freeAxes = append(freeAxes, a)
			}
		}

		lanes := laneIndicesFor(fullAxes, freeAxes, contractAxes, strides)
		s := u.StoreOf()
		return s.Gep(expandNode.Src[0], lanes...)
	}})
}

// axisStrides computes a row-major stride for each axis in order.
func axisStrides(axes []uop.AxisExtent) map[int]int {
	strides := map[int]int{}
	stride := 1
	for i := len(axes) - 1; i >= 0; i-- {
		strides[axes[i].Axis] = stride
		stride *= axes[i].Extent
	}
	return strides
}

// laneIndicesFor enumerates flattened lane indices for every combination of
// the surviving free axes crossed with the contracted axes, in row-major
// order consistent with axisStrides.
func laneIndicesFor(fullAxes, freeAxes, contractAxes []uop.AxisExtent, strides map[int]int) []int {
	var out []int
	var rec func(axes []uop.AxisExtent, base int)
	rec = func(axes []uop.AxisExtent, base int) {
		if len(axes) == 0 {
			out = append(out, base)
			return
		}
		a := axes[0]
		for v := 0; v < a.Extent; v++ {
			rec(axes[1:], base+v*strides[a.Axis])
		}
	}
	// Walk free axes outermost, contract axes innermost, so contiguous
	// contracted lanes land next to each other in the output vector.
	var walk func(axes []uop.AxisExtent, base int)
	walk = func(axes []uop.AxisExtent, base int) {
		if len(axes) == 0 {
			rec(contractAxes, base)
			return
		}
		a := axes[0]
		for v := 0; v < a.Extent; v++ {
			walk(axes[1:], base+v*strides[a.Axis])
		}
	}
	walk(freeAxes, 0)
	return out
}

// BarrierMatcher implements spec.md §4.7 "Barrier": BARRIER(EXPAND(x,
// axes)) becomes EXPAND(per-lane BARRIER), since a barrier is a
// synchronization point and must not itself be vectorized.
func BarrierMatcher() *pattern.Matcher {
	p := pattern.Op(uop.BARRIER).WithSrc(pattern.Op(uop.EXPAND).WithName("exp"))
	return pattern.New(pattern.Rule{Name: "barrier-of-expand", Pat: p, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		exp := b.Get("exp")
		axes := expandAxes(exp)
		n := prodExtents(axes)
		s := u.StoreOf()
		lanes := make([]*uop.UOp, n)
		for i := 0; i < n; i++ {
			lanes[i] = s.Barrier(s.Gep(exp.Src[0], i))
		}
		return s.Expand(axes, s.Vectorize(lanes...))
	}})
}
