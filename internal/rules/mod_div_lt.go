package rules

import (
	"uopc/internal/pattern"
	"uopc/internal/uop"
)

func isAddOp(u *uop.UOp) bool { return isALU(u, uop.ADD) }
func isSubOp(u *uop.UOp) bool { return isALU(u, uop.SUB) }
func isMulOp(u *uop.UOp) bool { return isALU(u, uop.MUL) }
func isNegOp(u *uop.UOp) bool { return isALU(u, uop.NEG) }

func isALU(u *uop.UOp, op uop.ALUOp) bool {
	if u.Op != uop.ALU {
		return false
	}
	a, ok := u.Arg.(uop.ALUArg)
	return ok && a.Op == op
}

// addChain flattens the ADD tree rooted at x into its summands, mirroring
// the teacher corpus' habit of walking a left-leaning binary chain (spec.md
// §4.3 mod/div folding, "walk the ADD chain of x").
func addChain(x *uop.UOp) []*uop.UOp {
	if isAddOp(x) {
		return append(addChain(x.Src[0]), addChain(x.Src[1])...)
	}
	return []*uop.UOp{x}
}

func sumOf(s *uop.Store, dt *uop.DType, terms []*uop.UOp) *uop.UOp {
	if len(terms) == 0 {
		return s.ConstInt(dt, 0)
	}
	acc := terms[0]
	for _, t := range terms[1:] {
		acc = s.Add(acc, t)
	}
	return acc
}

func absI64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// divideExact returns u with the known integer factor divided out; it is
// only ever called with a factor known to evenly divide u structurally.
func divideExact(u *uop.UOp, factor int64) *uop.UOp {
	if factor == 1 {
		return u
	}
	s := u.StoreOf()
	switch {
	case u.Op == uop.CONST:
		c, _ := constOf(u)
		return s.ConstInt(u.DType, c.I/factor)
	case isMulOp(u):
		if c, ok := intConstOf(u.Src[1]); ok && c%factor == 0 {
			return s.Mul(u.Src[0], s.ConstInt(u.DType, c/factor))
		}
		if c, ok := intConstOf(u.Src[0]); ok && c%factor == 0 {
			return s.Mul(u.Src[1], s.ConstInt(u.DType, c/factor))
		}
	case isAddOp(u):
		return s.Add(divideExact(u.Src[0], factor), divideExact(u.Src[1], factor))
	case isSubOp(u):
		return s.Sub(divideExact(u.Src[0], factor), divideExact(u.Src[1], factor))
	case isNegOp(u):
		return s.Neg(divideExact(u.Src[0], factor))
	}
	return u
}

// modFolding implements spec.md §4.3 "Mod folding".
func modFolding(x *uop.UOp, c int64) *uop.UOp {
	s := x.StoreOf()
	if c > 0 && x.VMin() >= 0 && x.VMin()/c == x.VMax()/c {
		quotient := x.VMin() / c
		return s.Sub(x, s.Mul(s.ConstInt(x.DType, quotient), s.ConstInt(x.DType, c)))
	}
	var remainder []*uop.UOp
	changed := false
	for _, u := range addChain(x) {
		factor := u.ConstFactor()
		if factor%c != factor {
			remainder = append(remainder, s.Mul(divideExact(u, factor), s.ConstInt(x.DType, factor%c)))
			changed = true
		} else if isALU(u, uop.MOD) {
			if cst, ok := intConstOf(u.Src[1]); ok && cst%c == 0 {
				remainder = append(remainder, u.Src[0])
				changed = true
				continue
			}
			remainder = append(remainder, u)
		} else {
			remainder = append(remainder, u)
		}
	}
	if !changed {
		return nil
	}
	if len(remainder) == 0 {
		return s.ConstInt(x.DType, 0)
	}
	return s.Mod(sumOf(s, x.DType, remainder), s.ConstInt(x.DType, c))
}

// divFolding implements spec.md §4.3 "Div folding".
func divFolding(x *uop.UOp, c int64) *uop.UOp {
	s := x.StoreOf()
	if x.VMin() >= 0 && x.VMax() < c {
		return s.ConstInt(x.DType, 0)
	}

	var quotient, remainder []*uop.UOp
	var remConst int64
	changed := false
	gcd := c
	divisor := int64(1)

	for _, u := range addChain(x) {
		if u.Op == uop.CONST {
			if remConst != 0 {
				changed = true
			}
			cv, ok := intConstOf(u)
			if !ok {
				return nil
			}
			remConst += cv
			continue
		}
		factor := u.ConstFactor()
		if factor%c == 0 {
			if factor != 0 {
				quotient = append(quotient, divideExact(u, c))
			}
			changed = true
			continue
		}
		if isMulOp(u) && factor > 1 && c%factor == 0 && (divisor == 1 || divisor > factor) {
			divisor = factor
		}
		remainder = append(remainder, u)
		gcd = gcdI64(gcd, factor)
	}

	if remConst%c != remConst {
		changed = true
		quotient = append(quotient, s.ConstInt(x.DType, remConst/c))
		remConst %= c
	}
	if remConst != 0 {
		remainder = append(remainder, s.ConstInt(x.DType, remConst))
	}

	div := divisor
	if gcd > 1 {
		div = gcd
	}

	if !changed {
		if div > 1 && div < c {
			if newx := divFolding(x, div); newx != nil {
				return s.IDiv(newx, s.ConstInt(x.DType, c/div))
			}
		}
		return nil
	}

	var rem *uop.UOp
	if len(remainder) > 0 {
		rem = sumOf(s, x.DType, remainder)
		if folded := divFolding(rem, div); folded != nil {
			rem = folded
		} else {
			rem = s.IDiv(rem, s.ConstInt(x.DType, div))
		}
		if div != c {
			rem = s.IDiv(rem, s.ConstInt(x.DType, c/div))
		}
	}
	var quo *uop.UOp
	if len(quotient) > 0 {
		quo = sumOf(s, x.DType, quotient)
	}
	switch {
	case quo == nil && rem == nil:
		return s.ConstInt(x.DType, 0)
	case quo == nil:
		return rem
	case rem == nil:
		return quo
	default:
		return s.Add(rem, quo)
	}
}

func gcdI64(a, b int64) int64 {
	a, b = absI64(a), absI64(b)
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// modDivLtFolding registers the MOD/IDIV/CMPLT entry points into the
// catalogue (spec.md §4.3 "Mod folding", "Div folding", "Lt folding").
func modDivLtFolding() []pattern.Rule {
	var rs []pattern.Rule

	modP := pattern.Op(uop.ALU).WithArg(isALUOp(uop.MOD)).WithSrc(pattern.Var("x"), pattern.CVar("c"))
	rs = append(rs, pattern.Rule{Name: "mod-folding", Pat: modP, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		c, ok := intConstOf(b.Get("c"))
		if !ok || c <= 0 {
			return nil
		}
		return modFolding(b.Get("x"), c)
	}})

	idivP := pattern.Op(uop.ALU).WithArg(isALUOp(uop.IDIV)).WithSrc(pattern.Var("x"), pattern.CVar("c"))
	rs = append(rs, pattern.Rule{Name: "div-folding", Pat: idivP, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		c, ok := intConstOf(b.Get("c"))
		if !ok || c <= 0 {
			return nil
		}
		return divFolding(b.Get("x"), c)
	}})

	ltP := pattern.Op(uop.ALU).WithArg(isALUOp(uop.CMPLT)).WithSrc(pattern.Var("x"), pattern.CVar("c"))
	rs = append(rs, pattern.Rule{Name: "lt-folding", Pat: ltP, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		c, ok := intConstOf(b.Get("c"))
		if !ok || c <= 0 {
			return nil
		}
		x := b.Get("x")
		newx := divFolding(x, c)
		if newx != nil && isALU(newx, uop.IDIV) {
			return newx.StoreOf().Lt(newx.Src[0], newx.Src[1])
		}
		return nil
	}})

	rs = append(rs, inequalityCanonicalization()...)
	return rs
}

// inequalityCanonicalization implements spec.md §4.3 "Inequality
// canonicalization".
func inequalityCanonicalization() []pattern.Rule {
	var rs []pattern.Rule
	s := func(u *uop.UOp) *uop.Store { return u.StoreOf() }

	// c0*x < c1, c0>0 -> x < ceil(c1/c0) ; c0<0 -> (-x) < floor(-c1/-c0)
	mulLtP := pattern.Op(uop.ALU).WithArg(isALUOp(uop.CMPLT)).WithSrc(
		pattern.Op(uop.ALU).WithArg(isALUOp(uop.MUL)).WithName("lhs"), pattern.CVar("c1"))
	rs = append(rs, pattern.Rule{Name: "lt-mul-canon", Pat: mulLtP, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		lhs, c1n := b.Get("lhs"), b.Get("c1")
		c1, ok := intConstOf(c1n)
		if !ok {
			return nil
		}
		x, c0, ok2 := scaledFactorStrict(lhs)
		if !ok2 || c0 == 0 {
			return nil
		}
		st := s(u)
		if c0 > 0 {
			return st.Lt(x, st.ConstInt(x.DType, ceilDiv(c1, c0)))
		}
		return st.Lt(st.Neg(x), st.ConstInt(x.DType, floorDivI64(-c1, -c0)))
	}})

	// (c0+x) < c1 -> x < (c1-c0)
	addLtP := pattern.Op(uop.ALU).WithArg(isALUOp(uop.CMPLT)).WithSrc(
		pattern.Op(uop.ALU).WithArg(isALUOp(uop.ADD)).WithName("lhs"), pattern.CVar("c1"))
	rs = append(rs, pattern.Rule{Name: "lt-add-const-canon", Pat: addLtP, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		lhs, c1n := b.Get("lhs"), b.Get("c1")
		c1, ok := intConstOf(c1n)
		if !ok {
			return nil
		}
		var x, c0n *uop.UOp
		if lhs.Src[0].Op == uop.CONST {
			c0n, x = lhs.Src[0], lhs.Src[1]
		} else if lhs.Src[1].Op == uop.CONST {
			c0n, x = lhs.Src[1], lhs.Src[0]
		} else {
			return nil
		}
		c0, ok2 := intConstOf(c0n)
		if !ok2 {
			return nil
		}
		st := s(u)
		return st.Lt(x, st.ConstInt(x.DType, c1-c0))
	}})

	return rs
}

// scaledFactorStrict recognizes CONST*x or x*CONST (but not plain x) and
// returns (x, c0, true).
func scaledFactorStrict(u *uop.UOp) (*uop.UOp, int64, bool) {
	if !isMulOp(u) {
		return nil, 0, false
	}
	if c, ok := intConstOf(u.Src[1]); ok {
		return u.Src[0], c, true
	}
	if c, ok := intConstOf(u.Src[0]); ok {
		return u.Src[1], c, true
	}
	return nil, 0, false
}

func ceilDiv(a, b int64) int64 {
	return floorDivI64(a+b-1, b)
}

func floorDivI64(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
