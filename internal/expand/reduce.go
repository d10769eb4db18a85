// Package expand implements spec.md §4.5–§4.10: transcendental expansion,
// Threefry PRNG lowering, EXPAND/CONTRACT fusion, REDUCE lowering to
// DEFINE_ACC+ASSIGN, float4/image memory-op folding, and gating. Each
// concern is expressed as one or more pattern.Rule sets run through the
// same rewrite.GraphRewrite fixpoint engine internal/rules uses, so a
// single bottom-up pass handles nested EXPAND/REDUCE nodes without a
// bespoke traversal per pass.
package expand

import (
	"math"

	"uopc/internal/pattern"
	"uopc/internal/uop"
)

// ReducerMatcher implements spec.md §4.8 "do_reduce": lowers REDUCE to an
// accumulator pattern. Ranges are partitioned into parented (appear in the
// body's transitive source set) and unparented; a parented reduction gets a
// fresh DEFINE_ACC and an ASSIGN recurrence, while every unparented range
// contributes a multiply-by-extent for ADD only.
func ReducerMatcher() *pattern.Matcher {
	p := pattern.Op(uop.REDUCE)
	return pattern.New(pattern.Rule{Name: "do-reduce", Pat: p, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		s := u.StoreOf()
		op := u.Arg.(uop.ALUArg).Op
		body := u.Src[0]
		ranges := u.Src[1:]
		if len(ranges) == 0 {
			return body
		}

		var parented, unparented []*uop.UOp
		bodyDeps := body.Sparents()
		for _, r := range ranges {
			if r == body {
				parented = append(parented, r)
				continue
			}
			if _, ok := bodyDeps[r]; ok {
				parented = append(parented, r)
			} else {
				unparented = append(unparented, r)
			}
		}

		result := body
		if len(parented) > 0 {
			id := reduceIdentity(s, op, body.DType)
			acc := s.DefineAcc(id, parented...)
			updated := s.Alu(op, body.DType, acc, body)
			result = s.Assign(acc, updated)
		}

		if op == uop.ADD {
			for _, r := range unparented {
				extent := s.Sub(r.Src[1], r.Src[0])
				result = s.Mul(result, extent)
			}
		}

		return result
	}})
}

// ReduceBeforeExpandMatcher implements spec.md §4.4 "Reduce-before-expand
// push-through": REDUCE(EXPAND(axes, x), ranges...) becomes EXPAND(axes,
// REDUCE(x, ranges...)), letting the reduction run once over the pre-widened
// value instead of once per lane. Grounded on the reference engine's
// reduce_before_expand, adapted to this module's single-combined-source
// EXPAND representation: the reference fans the result back out across one
// GEP per lane because its EXPAND carries one source per lane; here EXPAND
// always carries exactly one vector-typed source (ExpanderMatcher's
// widening always combines lanes into one node), so the push-through needs
// no GEP reconstruction.
//
// Must run before ReducerMatcher lowers REDUCE to an accumulator, since that
// lowering destroys the REDUCE/EXPAND shape this rule looks for.
func ReduceBeforeExpandMatcher() *pattern.Matcher {
	p := pattern.Op(uop.REDUCE)
	return pattern.New(pattern.Rule{Name: "reduce-before-expand", Pat: p, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		if len(u.Src) < 2 {
			return nil
		}
		body := u.Src[0]
		if body.Op != uop.EXPAND || len(body.Src) != 1 {
			return nil
		}
		s := u.StoreOf()
		op := u.Arg.(uop.ALUArg).Op
		axes := body.Arg.(uop.ExpandArg).Axes
		red := s.Reduce(op, body.Src[0], u.Src[1:]...)
		return s.Expand(axes, red)
	}})
}

// reduceIdentity returns the identity element for a reduction ALUOp over dt
// (spec.md §4.8 step 2): 0 for ADD, 1 for MUL, ±infinity for MAX/MIN.
func reduceIdentity(s *uop.Store, op uop.ALUOp, dt *uop.DType) *uop.UOp {
	isFloat := dt != nil && dt.Kind.IsFloat()
	switch op {
	case uop.ADD:
		if isFloat {
			return s.ConstFloat(dt, 0)
		}
		return s.ConstInt(dt, 0)
	case uop.MUL:
		if isFloat {
			return s.ConstFloat(dt, 1)
		}
		return s.ConstInt(dt, 1)
	case uop.MAX:
		if isFloat {
			return s.ConstFloat(dt, math.Inf(-1))
		}
		return s.ConstInt(dt, math.MinInt64)
	case uop.MIN:
		if isFloat {
			return s.ConstFloat(dt, math.Inf(1))
		}
		return s.ConstInt(dt, math.MaxInt64)
	default:
		if isFloat {
			return s.ConstFloat(dt, 0)
		}
		return s.ConstInt(dt, 0)
	}
}
