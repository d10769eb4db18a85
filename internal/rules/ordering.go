package rules

import (
	"uopc/internal/pattern"
	"uopc/internal/uop"
)

// twoStageOrdering implements spec.md §4.3 "Two-stage ordering": a
// commutative ADD keeps CONST as its right operand, and a CONST nested on
// the left of an ADD chain is hoisted past a non-constant right operand.
// Both rules only fire when the node is not already canonical, which is
// what keeps the "move constant right" family from looping against
// itself (spec.md §4.2 "rules that would loop ... guard themselves
// against their own output").
func twoStageOrdering() []pattern.Rule {
	var rs []pattern.Rule

	for _, op := range []uop.ALUOp{uop.ADD, uop.MUL, uop.AND, uop.OR, uop.MAX, uop.MIN} {
		op := op
		p := pattern.Op(uop.ALU).WithArg(isALUOp(op)).WithSrc(pattern.Var("x"), pattern.Var("y"))
		rs = append(rs, pattern.Rule{Name: "const-right-" + op.String(), Pat: p, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
			x, y := b.Get("x"), b.Get("y")
			if x.Op == uop.CONST && y.Op != uop.CONST {
				return u.StoreOf().Alu(op, u.DType, y, x)
			}
			return nil
		}})
	}

	// (x+c1)+y -> (x+y)+c1, keeping the constant outermost-right.
	p := pattern.Op(uop.ALU).WithArg(isALUOp(uop.ADD)).WithSrc(
		pattern.Op(uop.ALU).WithArg(isALUOp(uop.ADD)).WithName("inner"), pattern.Var("y"))
	rs = append(rs, pattern.Rule{Name: "add-hoist-const", Pat: p, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		inner, y := b.Get("inner"), b.Get("y")
		if y.Op == uop.CONST {
			return nil
		}
		c1 := inner.Src[1]
		if c1.Op != uop.CONST {
			return nil
		}
		x := inner.Src[0]
		s := u.StoreOf()
		return s.Add(s.Add(x, y), c1)
	}})

	return rs
}
