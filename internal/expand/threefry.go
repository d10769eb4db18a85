package expand

import (
	"uopc/internal/pattern"
	"uopc/internal/uop"
)

// threefryRotations is the fixed rotation schedule of spec.md §4.6,
// alternating by round parity.
var threefryRotations = [2][4]int64{
	{13, 15, 26, 6},
	{17, 29, 16, 24},
}

// ThreefryMatcher implements spec.md §4.6: ALU(THREEFRY, x:u64, seed:u64)
// lowers to the Threefry-2x32 block cipher used as a counter-based PRNG.
func ThreefryMatcher() *pattern.Matcher {
	p := pattern.Op(uop.ALU).WithArg(isUnaryThreefry()).WithSrc(pattern.Var("x"), pattern.Var("seed"))
	return pattern.New(pattern.Rule{Name: "threefry-lowering", Pat: p, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		return lowerThreefry(b.Get("x"), b.Get("seed"))
	}})
}

func isUnaryThreefry() func(uop.Arg) bool {
	return func(a uop.Arg) bool {
		aa, ok := a.(uop.ALUArg)
		return ok && aa.Op == uop.THREEFRY
	}
}

func lowerThreefry(x, seed *uop.UOp) *uop.UOp {
	s := x.StoreOf()
	u32 := uop.Scalar(uop.Uint32)
	u64 := uop.Scalar(uop.Uint64)

	c32 := func(v int64) *uop.UOp { return s.ConstInt(u32, v) }
	rotl := func(v *uop.UOp, r int64) *uop.UOp {
		left := s.Alu(uop.SHL, u32, v, c32(r))
		right := s.Alu(uop.SHR, u32, v, c32(32-r))
		return s.Alu(uop.OR, u32, left, right)
	}

	x0 := s.Cast(s.Alu(uop.AND, u64, x, s.ConstInt(u64, 0xFFFFFFFF)), u32)
	x1 := s.Cast(s.Alu(uop.SHR, u64, x, s.ConstInt(u64, 32)), u32)
	seed32 := s.Cast(s.Alu(uop.AND, u64, seed, s.ConstInt(u64, 0xFFFFFFFF)), u32)

	ks := [3]*uop.UOp{
		c32(0),
		s.Alu(uop.XOR, u32, seed32, c32(0x1BD11BDA)),
		seed32,
	}

	xr := [2]*uop.UOp{
		s.Alu(uop.ADD, u32, x0, ks[0]),
		s.Alu(uop.ADD, u32, x1, ks[1]),
	}

	for i := 0; i < 5; i++ {
		rot := threefryRotations[i%2]
		for _, r := range rot {
			xr[0] = s.Alu(uop.ADD, u32, xr[0], xr[1])
			xr[1] = s.Alu(uop.XOR, u32, rotl(xr[1], r), xr[0])
		}
		xr[0] = s.Alu(uop.ADD, u32, xr[0], ks[i%3])
		xr[1] = s.Alu(uop.ADD, u32, s.Alu(uop.ADD, u32, xr[1], ks[(i+1)%3]), c32(int64(i+1)))
	}

	hi := s.Alu(uop.SHL, u64, s.Cast(xr[1], u64), s.ConstInt(u64, 32))
	lo := s.Cast(xr[0], u64)
	return s.Alu(uop.OR, u64, hi, lo)
}
