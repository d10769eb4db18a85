package expand

import "uopc/internal/uop"

// GateLoads implements spec.md §4.10 "Gating", run before expansion: a
// STORE carrying a 4th argument (its gate) propagates that gate onto every
// ungated LOAD reachable from the stored value, so a false gate also
// suppresses the loads that fed it rather than just the write. This mirrors
// the store/load alt+gate operand shape spec.md §4.3's dedup rules already
// assume (`load(buf, i, alt, TRUE) → load(buf, i)`).
func GateLoads(root *uop.UOp) *uop.UOp {
	cache := map[*uop.UOp]*uop.UOp{}
	return gateWalk(root, nil, cache)
}

func gateWalk(u *uop.UOp, gate *uop.UOp, cache map[*uop.UOp]*uop.UOp) *uop.UOp {
	key := u
	if gate == nil {
		if done, ok := cache[key]; ok {
			return done
		}
	}

	effectiveGate := gate
	if u.Op == uop.STORE && len(u.Src) == 4 {
		effectiveGate = u.Src[3]
	}

	newSrc := make([]*uop.UOp, len(u.Src))
	changed := false
	for i, c := range u.Src {
		childGate := effectiveGate
		if u.Op == uop.STORE && i == 0 {
			childGate = nil // never gate the buffer pointer itself
		}
		if u.Op == uop.LOAD && i == 0 {
			childGate = nil
		}
		rc := gateWalk(c, childGate, cache)
		newSrc[i] = rc
		if rc != c {
			changed = true
		}
	}

	node := u
	if changed {
		node = u.WithSrc(newSrc)
	}
	if u.Op == uop.LOAD && gate != nil && len(u.Src) == 2 {
		s := u.StoreOf()
		alt := s.ConstLike(u.DType, defaultAlt(u.DType))
		node = s.Load(u.DType, node.Src[0], node.Src[1], alt, gate)
	}

	if gate == nil {
		cache[key] = node
	}
	return node
}

func defaultAlt(dt *uop.DType) uop.Scalar {
	if dt != nil && dt.Kind.IsFloat() {
		return uop.FloatScalar(dt.Kind, 0)
	}
	if dt != nil && dt.Kind == uop.Bool {
		return uop.BoolScalar(false)
	}
	k := uop.Int32
	if dt != nil {
		k = dt.Kind
	}
	return uop.IntScalar(k, 0)
}

// StripRedundantGates implements the second half of spec.md §4.10: after
// expansion, a STORE's own gate is redundant once the value it stores
// already carries that exact gate on its LOAD, so drop it.
func StripRedundantGates(root *uop.UOp) *uop.UOp {
	cache := map[*uop.UOp]*uop.UOp{}
	var walk func(*uop.UOp) *uop.UOp
	walk = func(u *uop.UOp) *uop.UOp {
		if done, ok := cache[u]; ok {
			return done
		}
		newSrc := make([]*uop.UOp, len(u.Src))
		changed := false
		for i, c := range u.Src {
			rc := walk(c)
			newSrc[i] = rc
			if rc != c {
				changed = true
			}
		}
		node := u
		if changed {
			node = u.WithSrc(newSrc)
		}
		if node.Op == uop.STORE && len(node.Src) == 4 {
			gate := node.Src[3]
			if v := node.Src[2]; v.Op == uop.LOAD && len(v.Src) == 4 && v.Src[3] == gate {
				node = node.StoreOf().StoreOp(node.Src[0], node.Src[1], node.Src[2])
			}
		}
		cache[u] = node
		return node
	}
	return walk(root)
}
