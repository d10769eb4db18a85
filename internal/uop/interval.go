package uop

import "math"

// Interval is a closed integer interval, using math.MinInt64/MaxInt64 as
// the -infinity/+infinity sentinels of spec.md §3 ("otherwise (-∞, +∞)").
type Interval struct {
	Lo, Hi int64
}

var unknownInterval = Interval{Lo: math.MinInt64, Hi: math.MaxInt64}

func point(v int64) Interval { return Interval{Lo: v, Hi: v} }

func (iv Interval) IsPoint() bool { return iv.Lo == iv.Hi }

func saturateAdd(a, b int64) int64 {
	if a == math.MinInt64 || b == math.MinInt64 {
		return math.MinInt64
	}
	if a == math.MaxInt64 || b == math.MaxInt64 {
		return math.MaxInt64
	}
	sum := a + b
	// overflow check
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		if b > 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return sum
}

func saturateNeg(a int64) int64 {
	if a == math.MinInt64 {
		return math.MaxInt64
	}
	if a == math.MaxInt64 {
		return math.MinInt64
	}
	return -a
}

func saturateMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a == math.MinInt64 || a == math.MaxInt64 || b == math.MinInt64 || b == math.MaxInt64 {
		neg := (a < 0) != (b < 0)
		if neg {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	hi, lo := bitsMulOverflows(a, b)
	if hi {
		if (a < 0) != (b < 0) {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return lo
}

func bitsMulOverflows(a, b int64) (bool, int64) {
	r := a * b
	if a != 0 && r/a != b {
		return true, 0
	}
	return false, r
}

// VMin and VMax return the node's cached closed interval (spec.md §3
// "Derived properties"): recursively computed once, never invalidated
// because UOps are immutable.
func (u *UOp) VMin() int64 { return u.interval().Lo }
func (u *UOp) VMax() int64 { return u.interval().Hi }

func (u *UOp) interval() Interval {
	u.ivOnce.Do(func() { u.iv = computeInterval(u) })
	return u.iv
}

func computeInterval(u *UOp) Interval {
	switch u.Op {
	case CONST:
		if ca, ok := u.Arg.(ConstArg); ok && len(ca.Vals) == 1 && !ca.Vals[0].Kind.IsFloat() && ca.Vals[0].Kind != Bool {
			return point(ca.Vals[0].I)
		}
		return unknownInterval
	case DEFINE_VAR:
		if dv, ok := u.Arg.(DefineVarArg); ok {
			return Interval{Lo: dv.Min, Hi: dv.Max}
		}
		return unknownInterval
	case RANGE:
		start, end := u.Src[0].interval(), u.Src[1].interval()
		return Interval{Lo: start.Lo, Hi: saturateAdd(end.Hi, -1)}
	case SPECIAL:
		if sp, ok := u.Arg.(SpecialArg); ok {
			return Interval{Lo: 0, Hi: int64(sp.Size) - 1}
		}
		return unknownInterval
	case CAST:
		return u.Src[0].interval()
	case ALU:
		return aluInterval(u)
	default:
		return unknownInterval
	}
}

func aluInterval(u *UOp) Interval {
	a, ok := u.Arg.(ALUArg)
	if !ok {
		return unknownInterval
	}
	if u.DType != nil && (u.DType.Kind.IsFloat()) {
		return unknownInterval
	}
	switch a.Op {
	case ADD:
		x, y := u.Src[0].interval(), u.Src[1].interval()
		return Interval{Lo: saturateAdd(x.Lo, y.Lo), Hi: saturateAdd(x.Hi, y.Hi)}
	case SUB:
		x, y := u.Src[0].interval(), u.Src[1].interval()
		return Interval{Lo: saturateAdd(x.Lo, saturateNeg(y.Hi)), Hi: saturateAdd(x.Hi, saturateNeg(y.Lo))}
	case NEG:
		x := u.Src[0].interval()
		return Interval{Lo: saturateNeg(x.Hi), Hi: saturateNeg(x.Lo)}
	case MUL:
		x, y := u.Src[0].interval(), u.Src[1].interval()
		candidates := []int64{
			saturateMul(x.Lo, y.Lo), saturateMul(x.Lo, y.Hi),
			saturateMul(x.Hi, y.Lo), saturateMul(x.Hi, y.Hi),
		}
		return minMaxOf(candidates)
	case MAX:
		x, y := u.Src[0].interval(), u.Src[1].interval()
		return Interval{Lo: maxI(x.Lo, y.Lo), Hi: maxI(x.Hi, y.Hi)}
	case MIN:
		x, y := u.Src[0].interval(), u.Src[1].interval()
		return Interval{Lo: minI(x.Lo, y.Lo), Hi: minI(x.Hi, y.Hi)}
	case IDIV:
		x, y := u.Src[0].interval(), u.Src[1].interval()
		if y.Lo > 0 {
			return Interval{Lo: floorDiv(x.Lo, y.Hi), Hi: floorDiv(x.Hi, y.Lo)}
		}
		return unknownInterval
	case MOD:
		y := u.Src[1].interval()
		if y.Lo > 0 {
			return Interval{Lo: 0, Hi: y.Hi - 1}
		}
		return unknownInterval
	case CMPLT, CMPNE, CMPEQ:
		return Interval{Lo: 0, Hi: 1}
	case WHERE:
		t, f := u.Src[1].interval(), u.Src[2].interval()
		return Interval{Lo: minI(t.Lo, f.Lo), Hi: maxI(t.Hi, f.Hi)}
	default:
		return unknownInterval
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func minMaxOf(xs []int64) Interval {
	iv := Interval{Lo: xs[0], Hi: xs[0]}
	for _, x := range xs[1:] {
		iv.Lo = minI(iv.Lo, x)
		iv.Hi = maxI(iv.Hi, x)
	}
	return iv
}

func minI(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxI(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// ConstFactor returns the largest integer known to divide u (1 if unknown),
// spec.md §3 "const_factor()".
func (u *UOp) ConstFactor() int64 {
	u.cfOnce.Do(func() { u.constFac = computeConstFactor(u) })
	return u.constFac
}

func computeConstFactor(u *UOp) int64 {
	switch u.Op {
	case CONST:
		if ca, ok := u.Arg.(ConstArg); ok && len(ca.Vals) == 1 && ca.Vals[0].Kind.IsInt() {
			if ca.Vals[0].I == 0 {
				return 1
			}
			return absI(ca.Vals[0].I)
		}
		return 1
	case ALU:
		a, ok := u.Arg.(ALUArg)
		if !ok {
			return 1
		}
		switch a.Op {
		case MUL:
			return u.Src[0].ConstFactor() * u.Src[1].ConstFactor()
		case ADD, SUB:
			return gcdI(u.Src[0].ConstFactor(), u.Src[1].ConstFactor())
		case NEG:
			return u.Src[0].ConstFactor()
		}
	}
	return 1
}

func absI(a int64) int64 {
	if a < 0 {
		return -a
	}
	return a
}

func gcdI(a, b int64) int64 {
	a, b = absI(a), absI(b)
	if a == 0 {
		return maxI(b, 1)
	}
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

// Divides reports whether u is known divisible by n (spec.md §3 "divides(n)").
func (u *UOp) Divides(n int64) bool {
	if n == 0 {
		return true
	}
	if u.VMin() == 0 && u.VMax() == 0 {
		return true
	}
	return u.ConstFactor()%n == 0
}

// Sparents returns the transitive source set of u, used to distinguish the
// ranges a reduce body actually depends on (spec.md §3 "sparents").
func (u *UOp) Sparents() map[*UOp]struct{} {
	u.spOnce.Do(func() {
		seen := map[*UOp]struct{}{}
		var walk func(*UOp)
		walk = func(n *UOp) {
			if _, ok := seen[n]; ok {
				return
			}
			seen[n] = struct{}{}
			for _, c := range n.Src {
				walk(c)
			}
		}
		for _, c := range u.Src {
			walk(c)
		}
		u.sparents = seen
	})
	return u.sparents
}
