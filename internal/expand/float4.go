package expand

import (
	"sort"

	"uopc/internal/backend"
	"uopc/internal/pattern"
	"uopc/internal/uop"
)

// LoadVectorizeFold implements the LOAD half of spec.md §4.9: a
// VECTORIZE of k (2, 4, 8, or 16) scalar LOADs on the same buffer whose
// indices form an arithmetic progression `o, o+1, ..., o+k-1` with
// `o.divides(k)` folds into a single width-k LOAD followed by per-lane GEPs.
func LoadVectorizeFold(d *backend.Descriptor) *pattern.Matcher {
	if !d.SupportsFloat4 {
		return pattern.New()
	}
	anyOp := pattern.Op(uop.VECTORIZE)
	return pattern.New(pattern.Rule{Name: "float4-load-fold", Pat: anyOp, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		k := len(u.Src)
		if !foldableWidth(k) {
			return nil
		}
		buf := u.Src[0]
		if buf.Op != uop.LOAD || len(buf.Src) != 2 {
			return nil
		}
		base := buf.Src[0]
		offsets := make([]*uop.UOp, k)
		for i, c := range u.Src {
			if c.Op != uop.LOAD || len(c.Src) != 2 || c.Src[0] != base {
				return nil
			}
			offsets[i] = c.Src[1]
		}
		o := offsets[0]
		for i := 1; i < k; i++ {
			if !isOffsetBy(offsets[i], o, int64(i)) {
				return nil
			}
		}
		if !o.Divides(int64(k)) {
			return nil
		}
		s := u.StoreOf()
		wide := s.Load(buf.DType.Vectorized(k), base, o)
		lanes := make([]*uop.UOp, k)
		for i := range lanes {
			lanes[i] = s.Gep(wide, i)
		}
		return s.Vectorize(lanes...)
	}})
}

func foldableWidth(k int) bool {
	switch k {
	case 2, 4, 8, 16:
		return true
	}
	return false
}

// isOffsetBy reports whether candidate == base + delta, recognizing the
// common ADD(base, CONST) and ADD(CONST, base) shapes the rewriter's
// two-stage ordering has already canonicalized CONST to the right of.
func isOffsetBy(candidate, base *uop.UOp, delta int64) bool {
	if delta == 0 {
		return candidate == base
	}
	if candidate.Op != uop.ALU {
		return false
	}
	a, ok := candidate.Arg.(uop.ALUArg)
	if !ok || a.Op != uop.ADD || len(candidate.Src) != 2 {
		return false
	}
	var other *uop.UOp
	switch {
	case candidate.Src[0] == base:
		other = candidate.Src[1]
	case candidate.Src[1] == base:
		other = candidate.Src[0]
	default:
		return false
	}
	c, ok := intConstOf(other)
	return ok && c == delta
}

func intConstOf(u *uop.UOp) (int64, bool) {
	if u.Op != uop.CONST {
		return 0, false
	}
	ca, ok := u.Arg.(uop.ConstArg)
	if !ok || len(ca.Vals) != 1 || ca.Vals[0].Kind.IsFloat() || ca.Vals[0].Kind == uop.Bool {
		return 0, false
	}
	return ca.Vals[0].I, true
}

// storeGroup is one buffer's worth of scalar STOREs being considered for
// width-k folding.
type storeGroup struct {
	offset *uop.UOp
	value  *uop.UOp
	node   *uop.UOp
}

// FoldFloat4Stores implements the STORE half of spec.md §4.9: groups of
// scalar STOREs to the same buffer whose indices form an arithmetic
// progression `o, o+1, ..., o+k-1` with `o.divides(k)` fold into one
// width-k STORE of a VECTORIZE of the values; the other k-1 stores become
// NOOP. Unlike the LOAD fold this must look across SINK's sibling
// statements rather than within one expression tree, so it walks SINK's
// children directly instead of going through pattern.Matcher.
func FoldFloat4Stores(sink *uop.UOp, d *backend.Descriptor) *uop.UOp {
	if !d.SupportsFloat4 || sink.Op != uop.SINK {
		return sink
	}
	s := sink.StoreOf()

	byBuffer := map[*uop.UOp][]storeGroup{}
	var order []*uop.UOp
	for _, c := range sink.Src {
		if c.Op != uop.STORE || len(c.Src) != 3 {
			continue
		}
		buf := c.Src[0]
		if _, ok := byBuffer[buf]; !ok {
			order = append(order, buf)
		}
		byBuffer[buf] = append(byBuffer[buf], storeGroup{offset: c.Src[1], value: c.Src[2], node: c})
	}

	replacements := map[*uop.UOp]*uop.UOp{}
	for _, buf := range order {
		group := byBuffer[buf]
		sort.Slice(group, func(i, j int) bool { return group[i].offset.VMin() < group[j].offset.VMin() })
		used := make([]bool, len(group))
		for i := range group {
			if used[i] {
				continue
			}
			for _, k := range []int{16, 8, 4, 2} {
				if i+k > len(group) {
					continue
				}
				run := group[i : i+k]
				if !consecutive(run) || !run[0].offset.Divides(int64(k)) {
					continue
				}
				values := make([]*uop.UOp, k)
				for j, g := range run {
					values[j] = g.value
				}
				wide := s.StoreOp(buf, run[0].offset, s.Vectorize(values...))
				replacements[run[0].node] = wide
				for j := 1; j < k; j++ {
					replacements[run[j].node] = s.Noop()
				}
				for j := 0; j < k; j++ {
					used[i+j] = true
				}
				break
			}
		}
	}
	if len(replacements) == 0 {
		return sink
	}
	newSrc := make([]*uop.UOp, len(sink.Src))
	for i, c := range sink.Src {
		if r, ok := replacements[c]; ok {
			newSrc[i] = r
		} else {
			newSrc[i] = c
		}
	}
	return s.Sink(sink.Arg.(uop.SinkArg).Meta, newSrc...)
}

func consecutive(run []storeGroup) bool {
	for i := 1; i < len(run); i++ {
		if !isOffsetBy(run[i].offset, run[0].offset, int64(i)) {
			return false
		}
	}
	return true
}
