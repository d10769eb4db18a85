// Package rules implements the constant_folder algebraic rule catalogue of
// spec.md §4.3–§4.4.
package rules

import (
	"uopc/internal/pattern"
	"uopc/internal/uop"
)

func isBoolDType(d *uop.DType) bool { return d != nil && d.Kind == uop.Bool }

// booleanNormalization rewrites ALU(ADD,bool)->OR and ALU(MUL,bool)->AND
// before any other boolean rule fires (spec.md §3 invariant, §4.3).
func booleanNormalization() []pattern.Rule {
	addP := pattern.Op(uop.ALU).WithArg(isALUOp(uop.ADD)).WithSrc(pattern.Var("a"), pattern.Var("b"))
	mulP := pattern.Op(uop.ALU).WithArg(isALUOp(uop.MUL)).WithSrc(pattern.Var("a"), pattern.Var("b"))
	return []pattern.Rule{
		{Name: "bool-add-to-or", Pat: addP, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
			if !isBoolDType(u.DType) {
				return nil
			}
			a, c := b.Get("a"), b.Get("b")
			return a.StoreOf().Or(a, c)
		}},
		{Name: "bool-mul-to-and", Pat: mulP, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
			if !isBoolDType(u.DType) {
				return nil
			}
			a, c := b.Get("a"), b.Get("b")
			return a.StoreOf().And(a, c)
		}},
	}
}

// gepVectorizeCancellation implements spec.md §4.3 "GEP/VECTORIZE
// cancellation".
func gepVectorizeCancellation() []pattern.Rule {
	foldableLanes := map[int]bool{2: true, 4: true, 8: true, 16: true, 256: true}
	gepOfVectorize := pattern.Op(uop.GEP).WithSrc(pattern.Op(uop.VECTORIZE).WithName("v"))
	vectorizeOfGep := pattern.Op(uop.VECTORIZE).WithName("vec")
	return []pattern.Rule{
		{Name: "gep-of-vectorize", Pat: gepOfVectorize, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
			v := b.Get("v")
			idx := u.Arg.(uop.GEPArg).Indices
			if len(idx) == 1 {
				return v.Src[idx[0]]
			}
			elems := make([]*uop.UOp, len(idx))
			for i, ix := range idx {
				elems[i] = v.Src[ix]
			}
			return v.StoreOf().Vectorize(elems...)
		}},
		{Name: "vectorize-of-gep", Pat: vectorizeOfGep, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
			if !foldableLanes[len(u.Src)] {
				return nil
			}
			var base *uop.UOp
			for i, c := range u.Src {
				if c.Op != uop.GEP {
					return nil
				}
				idx := c.Arg.(uop.GEPArg).Indices
				if len(idx) != 1 || idx[0] != i {
					return nil
				}
				if base == nil {
					base = c.Src[0]
				} else if base != c.Src[0] {
					return nil
				}
			}
			if base == nil || base.DType.Count != len(u.Src) {
				return nil
			}
			return base
		}},
	}
}

// castIdentity implements spec.md §4.3 "CAST identity".
func castIdentity() []pattern.Rule {
	p := pattern.Op(uop.CAST).WithSrc(pattern.Var("x"))
	return []pattern.Rule{
		{Name: "cast-identity", Pat: p, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
			x := b.Get("x")
			if u.DType.Equal(x.DType) {
				return x
			}
			return nil
		}},
	}
}

func isALUOp(op uop.ALUOp) func(uop.Arg) bool {
	return func(a uop.Arg) bool {
		aa, ok := a.(uop.ALUArg)
		return ok && aa.Op == op
	}
}

func isALUOpAny(ops ...uop.ALUOp) func(uop.Arg) bool {
	set := map[uop.ALUOp]bool{}
	for _, o := range ops {
		set[o] = true
	}
	return func(a uop.Arg) bool {
		aa, ok := a.(uop.ALUArg)
		return ok && set[aa.Op]
	}
}
