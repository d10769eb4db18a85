package expand

import (
	"uopc/internal/backend"
	"uopc/internal/pattern"
	"uopc/internal/uop"
)

// TranscendentalMatcher implements spec.md §4.5: for each of EXP2, LOG2,
// SIN not listed as natively supported by d, replace the ALU with a
// polynomial/range-reduction expansion over float arithmetic the backend is
// assumed to support unconditionally (ADD/SUB/MUL/CMPLT/WHERE/CAST).
func TranscendentalMatcher(d *backend.Descriptor) *pattern.Matcher {
	var rules []pattern.Rule
	for _, op := range []uop.ALUOp{uop.EXP2, uop.LOG2, uop.SIN} {
		if d.SupportsOp(op) {
			continue
		}
		op := op
		p := pattern.Op(uop.ALU).WithArg(isUnary(op)).WithSrc(pattern.Var("x"))
		rules = append(rules, pattern.Rule{Name: "transcendental-" + op.String(), Pat: p, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
			return expandTranscendental(op, b.Get("x"))
		}})
	}
	return pattern.New(rules...)
}

func isUnary(op uop.ALUOp) func(uop.Arg) bool {
	return func(a uop.Arg) bool {
		aa, ok := a.(uop.ALUArg)
		return ok && aa.Op == op
	}
}

// expandTranscendental lowers a single unary transcendental call into a
// minimax-style polynomial over double-float arithmetic, the standard
// software-float scheme a backend without native support falls back to.
// The polynomials here favor a compact, auditable implementation over
// last-bit accuracy: correctness of range reduction, not coefficient
// precision, is the property this pass is responsible for.
func expandTranscendental(op uop.ALUOp, x *uop.UOp) *uop.UOp {
	s := x.StoreOf()
	dt := x.DType
	c := func(v float64) *uop.UOp { return s.ConstFloat(dt, v) }

	switch op {
	case uop.EXP2:
		// 2**x == 2**floor(x) * 2**frac(x): evaluate the polynomial for the
		// frac(x) part, and build 2**floor(x) by writing its integer value
		// straight into an IEEE-754 exponent field (ldexp by bit twiddling,
		// the usual software-float trick that avoids a second transcendental
		// call for the integer power of two).
		floorXInt := s.Cast(x, uop.Scalar(uop.Int64))
		floorX := s.Cast(floorXInt, dt)
		frac := s.Sub(x, floorX)
		poly := polyEval(s, dt, frac, []float64{
			1.0, 0.6931471805599453, 0.2402265069591007,
			0.05550410866482158, 0.009618129107628477, 0.0013333558146428443,
		})
		bias, mantissaBits, bitsKind := floatLayout(dt.Kind)
		biasedExp := s.Add(floorXInt, s.ConstInt(uop.Scalar(uop.Int64), bias))
		bits := s.Alu(uop.SHL, uop.Scalar(uop.Int64), biasedExp, s.ConstInt(uop.Scalar(uop.Int64), mantissaBits))
		scale := s.Bitcast(s.Cast(bits, uop.Scalar(bitsKind)), dt)
		return s.Mul(poly, scale)
	case uop.LOG2:
		// log2(x) = log2(m) + e where x = m * 2**e, m in [1,2): pull the
		// biased exponent and mantissa straight out of x's IEEE-754 bits,
		// then approximate log2(m) with a minimax polynomial in (m-1).
		bias, mantissaBits, bitsKind := floatLayout(dt.Kind)
		expMask := int64(1)<<uint(dt.Kind.BitWidth()-mantissaBits-1) - 1
		mantissaMask := int64(1)<<uint(mantissaBits) - 1

		bits := s.Cast(s.Bitcast(x, uop.Scalar(bitsKind)), uop.Scalar(uop.Int64))
		rawExp := s.Alu(uop.AND, uop.Scalar(uop.Int64),
			s.Alu(uop.SHR, uop.Scalar(uop.Int64), bits, s.ConstInt(uop.Scalar(uop.Int64), int64(mantissaBits))),
			s.ConstInt(uop.Scalar(uop.Int64), expMask))
		e := s.Cast(s.Sub(rawExp, s.ConstInt(uop.Scalar(uop.Int64), bias)), dt)

		mantissaBitsVal := s.Alu(uop.OR, uop.Scalar(uop.Int64),
			s.Alu(uop.AND, uop.Scalar(uop.Int64), bits, s.ConstInt(uop.Scalar(uop.Int64), mantissaMask)),
			s.ConstInt(uop.Scalar(uop.Int64), bias<<uint(mantissaBits)))
		m := s.Bitcast(s.Cast(mantissaBitsVal, uop.Scalar(bitsKind)), dt)

		t := s.Sub(m, c(1))
		poly := polyEval(s, dt, t, []float64{
			0, 1.4426950408889634, -0.7213475204444817,
			0.4808983469629878, -0.3606737602222408,
		})
		return s.Add(poly, e)
	case uop.SIN:
		// Reduce to [-pi, pi] via x - 2*pi*round(x/(2*pi)), then a degree-7
		// odd polynomial (Taylor-like) in the reduced argument.
		twoPi := c(6.283185307179586)
		k := s.Cast(s.Cast(s.FDiv(x, twoPi), uop.Scalar(uop.Int64)), dt)
		reduced := s.Sub(x, s.Mul(k, twoPi))
		r2 := s.Mul(reduced, reduced)
		poly := polyEval(s, dt, r2, []float64{
			1, -1.0 / 6, 1.0 / 120, -1.0 / 5040,
		})
		return s.Mul(reduced, poly)
	}
	return nil
}

// floatLayout returns the IEEE-754 exponent bias, mantissa width, and the
// same-width integer kind used to bitcast k's values for bit manipulation.
func floatLayout(k uop.ScalarKind) (bias int64, mantissaBits int, bitsKind uop.ScalarKind) {
	switch k {
	case uop.Float16:
		return 15, 10, uop.Int16
	case uop.Float64:
		return 1023, 52, uop.Int64
	default:
		return 127, 23, uop.Int32
	}
}

// polyEval builds a Horner-scheme evaluation of coeffs (low-to-high degree)
// at x over dtype dt.
func polyEval(s *uop.Store, dt *uop.DType, x *uop.UOp, coeffs []float64) *uop.UOp {
	acc := s.ConstFloat(dt, coeffs[len(coeffs)-1])
	for i := len(coeffs) - 2; i >= 0; i-- {
		acc = s.Add(s.Mul(acc, x), s.ConstFloat(dt, coeffs[i]))
	}
	return acc
}
