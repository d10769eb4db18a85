package rules

import (
	"uopc/internal/pattern"
	"uopc/internal/uop"
)

func binALU(op uop.ALUOp) *pattern.Pat {
	return pattern.Op(uop.ALU).WithArg(isALUOp(op)).WithSrc(pattern.Var("x"), pattern.Var("y"))
}

func isZero(u *uop.UOp) bool {
	c, ok := constOf(u)
	return ok && !c.Kind.IsFloat() && c.I == 0
}

func isOne(u *uop.UOp) bool {
	c, ok := constOf(u)
	return ok && !c.Kind.IsFloat() && c.I == 1
}

func isNegOne(u *uop.UOp) bool {
	c, ok := constOf(u)
	return ok && !c.Kind.IsFloat() && c.I == -1
}

func isNanOrInf(u *uop.UOp) bool {
	c, ok := constOf(u)
	if !ok || !c.Kind.IsFloat() {
		return false
	}
	return c.F != c.F || c.F > 1e308*10 || c.F < -1e308*10
}

func intConstOf(u *uop.UOp) (int64, bool) {
	c, ok := constOf(u)
	if !ok || c.Kind.IsFloat() || c.Kind == uop.Bool {
		return 0, false
	}
	return c.I, true
}

// algebraicIdentities implements the non-folding identities of spec.md
// §4.3 "Algebraic identities".
func algebraicIdentities() []pattern.Rule {
	var rs []pattern.Rule

	// x+0 -> x
	rs = append(rs, pattern.Rule{Name: "add-zero", Pat: binALU(uop.ADD).AsCommutative(), Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		x, y := b.Get("x"), b.Get("y")
		if isZero(y) {
			return x
		}
		return nil
	}})

	// x*1 -> x ; x*0 -> 0 (unless x is CONST nan/inf -> nan)
	rs = append(rs, pattern.Rule{Name: "mul-one-zero", Pat: binALU(uop.MUL).AsCommutative(), Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		x, y := b.Get("x"), b.Get("y")
		if isOne(y) {
			return x
		}
		if isZero(y) {
			if isNanOrInf(x) {
				return u.StoreOf().ConstFloat(u.DType, nanValue())
			}
			return u.StoreOf().ConstInt(u.DType, 0)
		}
		return nil
	}})

	// x // x -> 1 ; x // 1 -> x ; x // -1 -> -x
	rs = append(rs, pattern.Rule{Name: "idiv-identities", Pat: binALU(uop.IDIV), Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		x, y := b.Get("x"), b.Get("y")
		if x == y {
			return u.StoreOf().ConstInt(u.DType, 1)
		}
		if isOne(y) {
			return x
		}
		if isNegOne(y) {
			return u.StoreOf().Neg(x)
		}
		return nil
	}})

	// x / x -> 1 (float divide)
	rs = append(rs, pattern.Rule{Name: "fdiv-self", Pat: binALU(uop.FDIV), Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		x, y := b.Get("x"), b.Get("y")
		if x == y {
			return u.StoreOf().ConstFloat(u.DType, 1)
		}
		return nil
	}})

	// (x*y)/y -> x
	mulDivP := pattern.Op(uop.ALU).WithArg(isALUOp(uop.FDIV)).WithSrc(
		pattern.Op(uop.ALU).WithArg(isALUOp(uop.MUL)).WithName("mul"), pattern.Var("y"))
	rs = append(rs, pattern.Rule{Name: "mul-div-cancel", Pat: mulDivP, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		mul, y := b.Get("mul"), b.Get("y")
		if mul.Src[0] == y {
			return mul.Src[1]
		}
		if mul.Src[1] == y {
			return mul.Src[0]
		}
		return nil
	}})

	// x&x -> x ; x|x -> x
	rs = append(rs, pattern.Rule{Name: "and-self", Pat: binALU(uop.AND), Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		if b.Get("x") == b.Get("y") {
			return b.Get("x")
		}
		return nil
	}})
	rs = append(rs, pattern.Rule{Name: "or-self", Pat: binALU(uop.OR), Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		if b.Get("x") == b.Get("y") {
			return b.Get("x")
		}
		return nil
	}})

	// -(x+y) -> (-x)+(-y)
	negAddP := pattern.Op(uop.ALU).WithArg(isALUOp(uop.NEG)).WithSrc(
		pattern.Op(uop.ALU).WithArg(isALUOp(uop.ADD)).WithName("add"))
	rs = append(rs, pattern.Rule{Name: "neg-distributes-add", Pat: negAddP, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		add := b.Get("add")
		s := add.StoreOf()
		return s.Add(s.Neg(add.Src[0]), s.Neg(add.Src[1]))
	}})

	// x+x -> x*2
	rs = append(rs, pattern.Rule{Name: "add-self", Pat: binALU(uop.ADD), Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		x, y := b.Get("x"), b.Get("y")
		if x == y {
			s := x.StoreOf()
			return s.Mul(x, s.ConstInt(u.DType, 2))
		}
		return nil
	}})

	// x+x*c -> x*(c+1) ; x*c1+x*c2 -> x*(c1+c2)
	rs = append(rs, pattern.Rule{Name: "add-scaled-self", Pat: binALU(uop.ADD).AsCommutative(), Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		x, y := b.Get("x"), b.Get("y")
		s := u.StoreOf()
		xBase, xc, xOk := scaledFactor(x)
		yBase, yc, yOk := scaledFactor(y)
		if xOk && yOk && xBase == yBase {
			return s.Mul(xBase, s.ConstInt(u.DType, xc+yc))
		}
		return nil
	}})

	// (x//c0)//c1 -> x//(c0*c1)
	idivChainP := pattern.Op(uop.ALU).WithArg(isALUOp(uop.IDIV)).WithSrc(
		pattern.Op(uop.ALU).WithArg(isALUOp(uop.IDIV)).WithName("inner"), pattern.CVar("c1"))
	rs = append(rs, pattern.Rule{Name: "idiv-chain", Pat: idivChainP, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		inner, c1n := b.Get("inner"), b.Get("c1")
		c0, ok0 := intConstOf(inner.Src[1])
		c1, ok1 := intConstOf(c1n)
		if !ok0 || !ok1 {
			return nil
		}
		s := u.StoreOf()
		return s.IDiv(inner.Src[0], s.ConstInt(u.DType, c0*c1))
	}})

	// (x/y)/z -> x/(y*z)
	fdivChainP := pattern.Op(uop.ALU).WithArg(isALUOp(uop.FDIV)).WithSrc(
		pattern.Op(uop.ALU).WithArg(isALUOp(uop.FDIV)).WithName("inner"), pattern.Var("z"))
	rs = append(rs, pattern.Rule{Name: "fdiv-chain", Pat: fdivChainP, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		inner, z := b.Get("inner"), b.Get("z")
		s := u.StoreOf()
		return s.FDiv(inner.Src[0], s.Mul(inner.Src[1], z))
	}})

	// (x+c1)+c2 -> x+(c1+c2)
	addChainP := pattern.Op(uop.ALU).WithArg(isALUOp(uop.ADD)).WithSrc(
		pattern.Op(uop.ALU).WithArg(isALUOp(uop.ADD)).WithName("inner"), pattern.CVar("c2"))
	rs = append(rs, pattern.Rule{Name: "add-chain-const", Pat: addChainP, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		inner, c2n := b.Get("inner"), b.Get("c2")
		c1, ok := intConstOf(inner.Src[1])
		c2, ok2 := intConstOf(c2n)
		if !ok || !ok2 {
			return nil
		}
		s := u.StoreOf()
		return s.Add(inner.Src[0], s.ConstInt(u.DType, c1+c2))
	}})

	// (x*c1)*c2 -> x*(c1*c2)
	mulChainP := pattern.Op(uop.ALU).WithArg(isALUOp(uop.MUL)).WithSrc(
		pattern.Op(uop.ALU).WithArg(isALUOp(uop.MUL)).WithName("inner"), pattern.CVar("c2"))
	rs = append(rs, pattern.Rule{Name: "mul-chain-const", Pat: mulChainP, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		inner, c2n := b.Get("inner"), b.Get("c2")
		c1, ok := intConstOf(inner.Src[1])
		c2, ok2 := intConstOf(c2n)
		if !ok || !ok2 {
			return nil
		}
		s := u.StoreOf()
		return s.Mul(inner.Src[0], s.ConstInt(u.DType, c1*c2))
	}})

	return rs
}

// scaledFactor recognizes x or x*c and returns (x, c, true).
func scaledFactor(u *uop.UOp) (*uop.UOp, int64, bool) {
	if u.Op == uop.ALU {
		if a, ok := u.Arg.(uop.ALUArg); ok && a.Op == uop.MUL {
			if c, ok := intConstOf(u.Src[1]); ok {
				return u.Src[0], c, true
			}
			if c, ok := intConstOf(u.Src[0]); ok {
				return u.Src[1], c, true
			}
		}
	}
	return u, 1, true
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}
