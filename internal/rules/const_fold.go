package rules

import (
	"math"

	"uopc/internal/pattern"
	"uopc/internal/uop"
)

// constantFolding implements spec.md §4.3 "CONST folding": an ALU whose
// operands are all CONST is evaluated and replaced by a CONST of the ALU's
// result dtype, honoring target-width integer overflow and IEEE-754 float
// semantics.
func constantFolding() []pattern.Rule {
	p := pattern.Op(uop.ALU)
	return []pattern.Rule{{Name: "const-fold", Pat: p, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		vals := make([]uop.Scalar, len(u.Src))
		for i, c := range u.Src {
			ca, ok := constOf(c)
			if !ok {
				return nil
			}
			vals[i] = ca
		}
		aluOp := u.Arg.(uop.ALUArg).Op
		res, ok := evalALU(aluOp, u.DType, vals)
		if !ok {
			return nil
		}
		return u.StoreOf().ConstLike(u.DType, res)
	}}}
}

func constOf(u *uop.UOp) (uop.Scalar, bool) {
	if u.Op != uop.CONST {
		return uop.Scalar{}, false
	}
	ca, ok := u.Arg.(uop.ConstArg)
	if !ok || len(ca.Vals) != 1 {
		return uop.Scalar{}, false
	}
	return ca.Vals[0], true
}

func wrapInt(dt *uop.DType, v int64) int64 {
	width := dt.Kind.BitWidth()
	if width == 0 || width >= 64 {
		return v
	}
	mask := int64(1)<<uint(width) - 1
	v &= mask
	if !dt.Kind.IsUnsigned() && v&(int64(1)<<uint(width-1)) != 0 {
		v -= int64(1) << uint(width)
	}
	return v
}

func evalALU(op uop.ALUOp, dt *uop.DType, vals []uop.Scalar) (uop.Scalar, bool) {
	isFloat := dt != nil && dt.Kind.IsFloat()
	isBool := dt != nil && dt.Kind == uop.Bool
	if isFloat {
		fs := make([]float64, len(vals))
		for i, v := range vals {
			if v.Kind.IsFloat() {
				fs[i] = v.F
			} else {
				fs[i] = float64(v.I)
			}
		}
		r, ok := evalFloat(op, fs)
		if !ok {
			return uop.Scalar{}, false
		}
		return uop.FloatScalar(dt.Kind, r), true
	}
	if isBool {
		bs := make([]bool, len(vals))
		for i, v := range vals {
			bs[i] = v.B || v.I != 0
		}
		r, ok := evalBool(op, bs)
		if !ok {
			return uop.Scalar{}, false
		}
		return uop.BoolScalar(r), true
	}
	is := make([]int64, len(vals))
	for i, v := range vals {
		is[i] = v.I
	}
	r, resultBool, ok := evalInt(op, is)
	if !ok {
		return uop.Scalar{}, false
	}
	if resultBool {
		return uop.BoolScalar(r != 0), true
	}
	return uop.IntScalar(dt.Kind, wrapInt(dt, r)), true
}

func evalFloat(op uop.ALUOp, x []float64) (float64, bool) {
	switch op {
	case uop.NEG:
		return -x[0], true
	case uop.SQRT:
		return math.Sqrt(x[0]), true
	case uop.RECIP:
		return 1 / x[0], true
	case uop.EXP2:
		return math.Exp2(x[0]), true
	case uop.LOG2:
		return math.Log2(x[0]), true
	case uop.SIN:
		return math.Sin(x[0]), true
	case uop.ADD:
		return x[0] + x[1], true
	case uop.SUB:
		return x[0] - x[1], true
	case uop.MUL:
		return x[0] * x[1], true
	case uop.FDIV:
		return x[0] / x[1], true
	case uop.MAX:
		return math.Max(x[0], x[1]), true
	case uop.MIN:
		return math.Min(x[0], x[1]), true
	case uop.WHERE:
		if x[0] != 0 {
			return x[1], true
		}
		return x[2], true
	}
	return 0, false
}

func evalBool(op uop.ALUOp, x []bool) (bool, bool) {
	switch op {
	case uop.AND:
		return x[0] && x[1], true
	case uop.OR:
		return x[0] || x[1], true
	case uop.XOR:
		return x[0] != x[1], true
	case uop.CMPEQ:
		return x[0] == x[1], true
	case uop.CMPNE:
		return x[0] != x[1], true
	case uop.WHERE:
		if x[0] {
			return x[1], true
		}
		return x[2], true
	}
	return false, false
}

// evalInt returns (value, isBoolResult, ok).
func evalInt(op uop.ALUOp, x []int64) (int64, bool, bool) {
	switch op {
	case uop.NEG:
		return -x[0], false, true
	case uop.ADD:
		return x[0] + x[1], false, true
	case uop.SUB:
		return x[0] - x[1], false, true
	case uop.MUL:
		return x[0] * x[1], false, true
	case uop.IDIV:
		if x[1] == 0 {
			return 0, false, false
		}
		return floorDivInt(x[0], x[1]), false, true
	case uop.MOD:
		if x[1] == 0 {
			return 0, false, false
		}
		m := x[0] % x[1]
		if m != 0 && (m < 0) != (x[1] < 0) {
			m += x[1]
		}
		return m, false, true
	case uop.AND:
		return x[0] & x[1], false, true
	case uop.OR:
		return x[0] | x[1], false, true
	case uop.XOR:
		return x[0] ^ x[1], false, true
	case uop.SHL:
		return x[0] << uint(x[1]), false, true
	case uop.SHR:
		return x[0] >> uint(x[1]), false, true
	case uop.MAX:
		if x[0] > x[1] {
			return x[0], false, true
		}
		return x[1], false, true
	case uop.MIN:
		if x[0] < x[1] {
			return x[0], false, true
		}
		return x[1], false, true
	case uop.CMPLT:
		return b2i(x[0] < x[1]), true, true
	case uop.CMPEQ:
		return b2i(x[0] == x[1]), true, true
	case uop.CMPNE:
		return b2i(x[0] != x[1]), true, true
	case uop.WHERE:
		if x[0] != 0 {
			return x[1], false, true
		}
		return x[2], false, true
	}
	return 0, false, false
}

func floorDivInt(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func b2i(v bool) int64 {
	if v {
		return 1
	}
	return 0
}
