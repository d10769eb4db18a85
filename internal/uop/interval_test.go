package uop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntervalConstIsAPoint(t *testing.T) {
	s := NewStore()
	c := s.ConstInt(Scalar(Int32), 5)
	assert.Equal(t, int64(5), c.VMin())
	assert.Equal(t, int64(5), c.VMax())
}

func TestIntervalRangeExcludesEnd(t *testing.T) {
	s := NewStore()
	start := s.ConstInt(Scalar(Int32), 0)
	end := s.ConstInt(Scalar(Int32), 10)
	r := s.Range(Scalar(Int32), start, end, 0, false)
	assert.Equal(t, int64(0), r.VMin())
	assert.Equal(t, int64(9), r.VMax())
}

func TestIntervalAddPropagates(t *testing.T) {
	s := NewStore()
	a := s.DefineVar("a", Scalar(Int32), 0, 10)
	b := s.DefineVar("b", Scalar(Int32), 0, 10)
	sum := s.Add(a, b)
	assert.Equal(t, int64(0), sum.VMin())
	assert.Equal(t, int64(20), sum.VMax())
}

func TestIntervalCastPassesThrough(t *testing.T) {
	s := NewStore()
	a := s.DefineVar("a", Scalar(Int32), 3, 7)
	cast := s.Cast(a, Scalar(Int64))
	assert.Equal(t, int64(3), cast.VMin())
	assert.Equal(t, int64(7), cast.VMax())
}

func TestConstFactorOfConstIsItsAbsoluteValue(t *testing.T) {
	s := NewStore()
	c := s.ConstInt(Scalar(Int32), -12)
	assert.Equal(t, int64(12), c.ConstFactor())
}

func TestConstFactorOfMulMultiplies(t *testing.T) {
	s := NewStore()
	a := s.ConstInt(Scalar(Int32), 4)
	b := s.ConstInt(Scalar(Int32), 6)
	mul := s.Mul(a, b)
	assert.Equal(t, int64(24), mul.ConstFactor())
}

func TestDividesUsesConstFactor(t *testing.T) {
	s := NewStore()
	a := s.ConstInt(Scalar(Int32), 4)
	b := s.DefineVar("i", Scalar(Int32), 0, 100)
	mul := s.Mul(a, b)
	assert.True(t, mul.Divides(4))
	assert.False(t, mul.Divides(8))
}

func TestDividesZeroWidthIntervalAlwaysDivides(t *testing.T) {
	s := NewStore()
	zero := s.ConstInt(Scalar(Int32), 0)
	assert.True(t, zero.Divides(7))
}

func TestSparentsIsTransitiveSourceSet(t *testing.T) {
	s := NewStore()
	a := s.ConstInt(Scalar(Int32), 1)
	b := s.ConstInt(Scalar(Int32), 2)
	add := s.Add(a, b)
	mul := s.Mul(add, a)

	sp := mul.Sparents()
	assert.Contains(t, sp, a)
	assert.Contains(t, sp, b)
	assert.Contains(t, sp, add)
	assert.NotContains(t, sp, mul, "a node is not its own sparent")
}
