package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uopc/internal/pattern"
	"uopc/internal/rewrite"
	"uopc/internal/uop"
)

func TestConstantFoldingEvaluatesIntAdd(t *testing.T) {
	s := uop.NewStore()
	a := s.ConstInt(uop.Scalar(uop.Int32), 2)
	b := s.ConstInt(uop.Scalar(uop.Int32), 3)
	add := s.Add(a, b)

	result := rewrite.GraphRewrite(add, New())
	assert.Equal(t, uop.CONST, result.Op)
	assert.Equal(t, int64(5), result.Arg.(uop.ConstArg).Scalar().I)
}

func TestConstantFoldingWrapsToTargetWidth(t *testing.T) {
	s := uop.NewStore()
	a := s.ConstInt(uop.Scalar(uop.Int8), 127)
	b := s.ConstInt(uop.Scalar(uop.Int8), 1)
	add := s.Add(a, b)

	result := rewrite.GraphRewrite(add, New())
	assert.Equal(t, uop.CONST, result.Op)
	assert.Equal(t, int64(-128), result.Arg.(uop.ConstArg).Scalar().I, "int8 127+1 must wrap to -128")
}

func TestConstantFoldingLeavesNonConstAlone(t *testing.T) {
	s := uop.NewStore()
	a := s.DefineVar("a", uop.Scalar(uop.Int32), 0, 10)
	b := s.ConstInt(uop.Scalar(uop.Int32), 3)
	add := s.Add(a, b)

	rs := pattern.New(constantFolding()...)
	result := rewrite.GraphRewrite(add, rs)
	assert.Same(t, add, result)
}

func TestAddZeroIdentity(t *testing.T) {
	s := uop.NewStore()
	a := s.DefineVar("a", uop.Scalar(uop.Int32), 0, 10)
	zero := s.ConstInt(uop.Scalar(uop.Int32), 0)
	add := s.Add(a, zero)

	result := rewrite.GraphRewrite(add, New())
	assert.Same(t, a, result)
}

func TestMulZeroIdentity(t *testing.T) {
	s := uop.NewStore()
	a := s.DefineVar("a", uop.Scalar(uop.Int32), 0, 10)
	zero := s.ConstInt(uop.Scalar(uop.Int32), 0)
	mul := s.Mul(a, zero)

	result := rewrite.GraphRewrite(mul, New())
	assert.Equal(t, uop.CONST, result.Op)
	assert.Equal(t, int64(0), result.Arg.(uop.ConstArg).Scalar().I)
}

func TestIdivSelfIsOne(t *testing.T) {
	s := uop.NewStore()
	a := s.DefineVar("a", uop.Scalar(uop.Int32), 1, 10)
	div := s.IDiv(a, a)

	result := rewrite.GraphRewrite(div, New())
	assert.Equal(t, uop.CONST, result.Op)
	assert.Equal(t, int64(1), result.Arg.(uop.ConstArg).Scalar().I)
}

func TestAddSelfBecomesMulTwo(t *testing.T) {
	s := uop.NewStore()
	a := s.DefineVar("a", uop.Scalar(uop.Int32), 0, 10)
	add := s.Add(a, a)

	result := rewrite.GraphRewrite(add, New())
	assert.Equal(t, uop.ALU, result.Op)
	assert.Equal(t, uop.MUL, result.Arg.(uop.ALUArg).Op)
}

func TestBooleanAddNormalizesToOr(t *testing.T) {
	s := uop.NewStore()
	a := s.DefineVar("a", uop.Scalar(uop.Bool), 0, 1)
	b := s.DefineVar("b", uop.Scalar(uop.Bool), 0, 1)
	add := s.Alu(uop.ADD, uop.Scalar(uop.Bool), a, b)

	result := rewrite.GraphRewrite(add, New())
	assert.Equal(t, uop.ALU, result.Op)
	assert.Equal(t, uop.OR, result.Arg.(uop.ALUArg).Op)
}

func TestCastIdentityDropsNoOpCast(t *testing.T) {
	s := uop.NewStore()
	a := s.DefineVar("a", uop.Scalar(uop.Int32), 0, 10)
	cast := s.Cast(a, uop.Scalar(uop.Int32))

	result := rewrite.GraphRewrite(cast, New())
	assert.Same(t, a, result)
}

func TestCastToDifferentDTypeSurvives(t *testing.T) {
	s := uop.NewStore()
	a := s.DefineVar("a", uop.Scalar(uop.Int32), 0, 10)
	cast := s.Cast(a, uop.Scalar(uop.Int64))

	result := rewrite.GraphRewrite(cast, New())
	assert.Equal(t, uop.CAST, result.Op)
}

func TestStoreOfJustLoadedValueIsNoop(t *testing.T) {
	s := uop.NewStore()
	buf := s.DefineLocal("buf", uop.Scalar(uop.Float32), 16)
	idx := s.ConstInt(uop.Scalar(uop.Int32), 0)
	ld := s.Load(uop.Scalar(uop.Float32), buf, idx)
	st := s.StoreOp(buf, idx, ld)

	rs := pattern.New(storeLoadDedup()...)
	result := rewrite.GraphRewrite(st, rs)
	assert.Equal(t, uop.NOOP, result.Op)
}

func TestGatedLoadWithAlwaysTrueGateDropsGate(t *testing.T) {
	s := uop.NewStore()
	buf := s.DefineLocal("buf", uop.Scalar(uop.Float32), 16)
	idx := s.ConstInt(uop.Scalar(uop.Int32), 0)
	alt := s.ConstFloat(uop.Scalar(uop.Float32), 0)
	gate := s.ConstBool(true)
	ld := s.Load(uop.Scalar(uop.Float32), buf, idx, alt, gate)

	rs := pattern.New(storeLoadDedup()...)
	result := rewrite.GraphRewrite(ld, rs)
	assert.Equal(t, uop.LOAD, result.Op)
	assert.Len(t, result.Src, 2, "an always-true gate collapses LOAD to its 2-arg ungated form")
}

func TestReduceLoopCollapseFoldsIndicatorPredicateSum(t *testing.T) {
	s := uop.NewStore()
	dt := uop.Scalar(uop.Int32)

	idx := s.DefineVar("idx", dt, 0, 100)
	lo := s.ConstInt(dt, 0)
	hi := s.DefineVar("N", dt, 1, 100)
	rng := s.Range(dt, lo, hi, 0, true)
	mval := s.ConstInt(dt, -1)
	lhs := s.Add(idx, s.Mul(mval, rng))
	cond := s.Lt(lhs, s.ConstInt(dt, 0))
	where := s.Where(cond, s.ConstInt(dt, 1), s.ConstInt(dt, 0))
	reduce := s.Reduce(uop.ADD, where, rng)

	rs := pattern.New(reduceLoopCollapse()...)
	result := rewrite.GraphRewrite(reduce, rs)
	assert.NotSame(t, reduce, result, "an indicator-predicate sum over a descending-stride affine range must collapse")
	require.Equal(t, uop.REDUCE, result.Op)
	assert.Len(t, result.Src, 1, "the folded RANGE must be dropped from the REDUCE's source list")
}

func TestReduceLoopCollapseLeavesAscendingStrideAlone(t *testing.T) {
	s := uop.NewStore()
	dt := uop.Scalar(uop.Int32)

	idx := s.DefineVar("idx", dt, 0, 100)
	lo := s.ConstInt(dt, 0)
	hi := s.DefineVar("N", dt, 1, 100)
	rng := s.Range(dt, lo, hi, 0, true)
	mval := s.ConstInt(dt, 1) // mval >= 0: the reference engine explicitly declines to fold this case
	lhs := s.Add(idx, s.Mul(mval, rng))
	cond := s.Lt(lhs, s.ConstInt(dt, 0))
	where := s.Where(cond, s.ConstInt(dt, 1), s.ConstInt(dt, 0))
	reduce := s.Reduce(uop.ADD, where, rng)

	rs := pattern.New(reduceLoopCollapse()...)
	result := rewrite.GraphRewrite(reduce, rs)
	assert.Same(t, reduce, result)
}

func TestReduceIndexCollapseFoldsToGatedLoadAtIndex(t *testing.T) {
	s := uop.NewStore()
	dt := uop.Scalar(uop.Int32)
	fdt := uop.Scalar(uop.Float32)

	idx := s.DefineVar("idx", dt, 0, 16)
	lo := s.ConstInt(dt, 0)
	hi := s.ConstInt(dt, 16)
	rng := s.Range(dt, lo, hi, 0, true)
	buf := s.DefineLocal("buf", fdt, 16)
	ld := s.Load(fdt, buf, rng)
	eq := s.Eq(idx, rng)
	mul := s.Mul(s.Cast(eq, fdt), ld)
	reduce := s.Reduce(uop.ADD, mul, rng)

	rs := pattern.New(reduceIndexCollapse()...)
	result := rewrite.GraphRewrite(reduce, rs)
	assert.NotSame(t, reduce, result, "a one-hot indexing sum must collapse to a single gated load")
	require.Equal(t, uop.REDUCE, result.Op)
	require.Len(t, result.Src, 1, "the folded RANGE must be dropped from the REDUCE's source list")
	newLoad := result.Src[0]
	require.Equal(t, uop.LOAD, newLoad.Op)
	assert.Len(t, newLoad.Src, 4, "the collapsed load must carry an explicit bounds gate")
}

func TestFullCatalogueIsIdempotentOnNormalForm(t *testing.T) {
	s := uop.NewStore()
	a := s.DefineVar("a", uop.Scalar(uop.Int32), 0, 10)
	b := s.ConstInt(uop.Scalar(uop.Int32), 7)
	add := s.Add(a, b)

	once := rewrite.GraphRewrite(add, New())
	twice := rewrite.GraphRewrite(once, New())
	assert.Same(t, once, twice)
}
