package rules

import (
	"math"

	"uopc/internal/pattern"
	"uopc/internal/uop"
)

// whereFolding implements spec.md §4.3 "where folding".
func whereFolding() []pattern.Rule {
	p := pattern.Op(uop.ALU).WithArg(isALUOp(uop.WHERE)).WithSrc(pattern.Var("g"), pattern.Var("t"), pattern.Var("f"))
	return []pattern.Rule{{Name: "where-fold", Pat: p, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		g, t, f := b.Get("g"), b.Get("t"), b.Get("f")
		if t == f {
			return t
		}
		if gate, ok := constOf(g); ok {
			if gate.B || gate.I != 0 {
				return t
			}
			return f
		}
		return nil
	}}}
}

// rangeAnalysisCollapse implements spec.md §4.3 "Range analysis collapse".
func rangeAnalysisCollapse() []pattern.Rule {
	var rs []pattern.Rule

	anyOp := &pattern.Pat{}
	rs = append(rs, pattern.Rule{Name: "point-interval-to-const", Pat: anyOp, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		if u.Op == uop.CONST || u.DType == nil || u.DType.Kind.IsFloat() || u.DType.Kind == uop.Bool || u.DType.Count != 1 {
			return nil
		}
		if u.Op == uop.RANGE || u.Op == uop.DEFINE_VAR || u.Op == uop.DEFINE_ACC {
			return nil
		}
		lo, hi := u.VMin(), u.VMax()
		if lo == hi && !isUnboundedSentinel(lo) {
			return u.StoreOf().ConstInt(u.DType, lo)
		}
		return nil
	}})

	maxP := binALU(uop.MAX)
	rs = append(rs, pattern.Rule{Name: "max-dominated", Pat: maxP, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		x, y := b.Get("x"), b.Get("y")
		if x.VMin() >= y.VMax() {
			return x
		}
		if y.VMin() >= x.VMax() {
			return y
		}
		return nil
	}})

	return rs
}

func isUnboundedSentinel(v int64) bool {
	return v == math.MinInt64 || v == math.MaxInt64
}
