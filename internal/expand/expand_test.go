package expand

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"uopc/internal/backend"
	"uopc/internal/rewrite"
	"uopc/internal/uop"
)

func TestGateLoadsPropagatesStoreGateOntoFeedingLoad(t *testing.T) {
	s := uop.NewStore()
	buf := s.DefineLocal("buf", uop.Scalar(uop.Float32), 16)
	idx := s.ConstInt(uop.Scalar(uop.Int32), 0)
	ld := s.Load(uop.Scalar(uop.Float32), buf, idx)
	gate := s.DefineVar("g", uop.Scalar(uop.Bool), 0, 1)
	st := s.StoreOp(buf, idx, ld, gate)

	gated := GateLoads(st)
	assert.Equal(t, uop.STORE, gated.Op)
	value := gated.Src[2]
	assert.Equal(t, uop.LOAD, value.Op)
	assert.Len(t, value.Src, 4, "an ungated load feeding a gated store must pick up that gate")
	assert.Same(t, gate, value.Src[3])
}

func TestGateLoadsLeavesUngatedStoreAlone(t *testing.T) {
	s := uop.NewStore()
	buf := s.DefineLocal("buf", uop.Scalar(uop.Float32), 16)
	idx := s.ConstInt(uop.Scalar(uop.Int32), 0)
	ld := s.Load(uop.Scalar(uop.Float32), buf, idx)
	st := s.StoreOp(buf, idx, ld)

	gated := GateLoads(st)
	assert.Len(t, gated.Src[2].Src, 2, "no gate on the store means no gate propagated to its load")
}

func TestStripRedundantGatesDropsMatchingStoreGate(t *testing.T) {
	s := uop.NewStore()
	buf := s.DefineLocal("buf", uop.Scalar(uop.Float32), 16)
	idx := s.ConstInt(uop.Scalar(uop.Int32), 0)
	alt := s.ConstFloat(uop.Scalar(uop.Float32), 0)
	gate := s.DefineVar("g", uop.Scalar(uop.Bool), 0, 1)
	ld := s.Load(uop.Scalar(uop.Float32), buf, idx, alt, gate)
	st := s.StoreOp(buf, idx, ld, gate)

	stripped := StripRedundantGates(st)
	assert.Len(t, stripped.Src, 3, "a store gate matching its value's load gate is redundant")
}

func TestExpanderFusesExpandSourceIntoVectorConsumer(t *testing.T) {
	s := uop.NewStore()
	x := s.DefineVar("x", uop.Scalar(uop.Float32), 0, 10)
	axes := []uop.AxisExtent{{Axis: 0, Extent: 4}}
	exp := s.Expand(axes, x)
	neg := s.Neg(exp)

	result := rewrite.GraphRewrite(neg, ExpanderMatcher())
	assert.Equal(t, uop.EXPAND, result.Op)
	inner := result.Src[0]
	assert.Equal(t, uop.ALU, inner.Op)
	assert.Equal(t, 4, inner.DType.Count, "the fused ALU must widen to the expand's lane count")
}

func TestExpanderBypassesLoadBuffer(t *testing.T) {
	s := uop.NewStore()
	buf := s.DefineLocal("buf", uop.Scalar(uop.Float32), 16)
	axes := []uop.AxisExtent{{Axis: 0, Extent: 4}}
	idxBase := s.DefineVar("i", uop.Scalar(uop.Int32), 0, 16)
	idxExp := s.Expand(axes, idxBase)
	ld := s.Load(uop.Scalar(uop.Float32), buf, idxExp)

	result := rewrite.GraphRewrite(ld, ExpanderMatcher())
	assert.Equal(t, uop.EXPAND, result.Op)
	inner := result.Src[0]
	assert.Equal(t, uop.LOAD, inner.Op)
	assert.Same(t, buf, inner.Src[0], "a LOAD's buffer operand must never be widened")
}

func TestContractOfExpandSelectsLanePermutation(t *testing.T) {
	s := uop.NewStore()
	x := s.DefineVar("x", uop.Scalar(uop.Float32), 0, 10)
	axes := []uop.AxisExtent{{Axis: 0, Extent: 2}, {Axis: 1, Extent: 3}}
	exp := s.Expand(axes, x)
	contracted := s.Contract([]uop.AxisExtent{{Axis: 1, Extent: 3}}, exp)

	result := rewrite.GraphRewrite(contracted, ContractMatcher())
	assert.Equal(t, uop.GEP, result.Op)
	assert.Len(t, result.Arg.(uop.GEPArg).Indices, 2*3)
}

func TestBarrierOfExpandDistributesPerLane(t *testing.T) {
	s := uop.NewStore()
	x := s.DefineVar("x", uop.Scalar(uop.Float32), 0, 10)
	axes := []uop.AxisExtent{{Axis: 0, Extent: 2}}
	exp := s.Expand(axes, x)
	barrier := s.Barrier(exp)

	result := rewrite.GraphRewrite(barrier, BarrierMatcher())
	assert.Equal(t, uop.EXPAND, result.Op)
	assert.Equal(t, uop.VECTORIZE, result.Src[0].Op)
	assert.Len(t, result.Src[0].Src, 2)
}

func TestReduceBeforeExpandPushesReduceInsideExpand(t *testing.T) {
	s := uop.NewStore()
	lo := s.ConstInt(uop.Scalar(uop.Int32), 0)
	hi := s.ConstInt(uop.Scalar(uop.Int32), 8)
	rng := s.Range(uop.Scalar(uop.Int32), lo, hi, 0, true)
	x := s.DefineVar("x", uop.Scalar(uop.Float32), 0, 10)
	axes := []uop.AxisExtent{{Axis: 0, Extent: 4}}
	exp := s.Expand(axes, x)
	reduce := s.Reduce(uop.ADD, exp, rng)

	result := rewrite.GraphRewrite(reduce, ReduceBeforeExpandMatcher())
	assert.Equal(t, uop.EXPAND, result.Op, "the EXPAND must end up outermost so per-lane reduction never happens")
	inner := result.Src[0]
	assert.Equal(t, uop.REDUCE, inner.Op)
	assert.Same(t, x, inner.Src[0], "the REDUCE must now reduce the pre-widened value directly")
	assert.Same(t, rng, inner.Src[1])
}

func TestReducerLowersParentedRangeToAccumulator(t *testing.T) {
	s := uop.NewStore()
	lo := s.ConstInt(uop.Scalar(uop.Int32), 0)
	hi := s.ConstInt(uop.Scalar(uop.Int32), 8)
	rng := s.Range(uop.Scalar(uop.Int32), lo, hi, 0, true)
	body := s.Cast(rng, uop.Scalar(uop.Float32))
	reduce := s.Reduce(uop.ADD, body, rng)

	result := rewrite.GraphRewrite(reduce, ReducerMatcher())
	assert.Equal(t, uop.ASSIGN, result.Op)
	assert.Equal(t, uop.DEFINE_ACC, result.Src[0].Op)
}

func TestReducerMultipliesUnparentedRangeExtentForAdd(t *testing.T) {
	s := uop.NewStore()
	lo := s.ConstInt(uop.Scalar(uop.Int32), 0)
	hi := s.ConstInt(uop.Scalar(uop.Int32), 8)
	rng := s.Range(uop.Scalar(uop.Int32), lo, hi, 0, true)
	body := s.ConstFloat(uop.Scalar(uop.Float32), 1)
	reduce := s.Reduce(uop.ADD, body, rng)

	result := rewrite.GraphRewrite(reduce, ReducerMatcher())
	assert.Equal(t, uop.ALU, result.Op)
	assert.Equal(t, uop.MUL, result.Arg.(uop.ALUArg).Op)
}

func TestRunPipelineLowersReduceAndGating(t *testing.T) {
	s := uop.NewStore()
	buf := s.DefineLocal("out", uop.Scalar(uop.Float32), 1)
	idx := s.ConstInt(uop.Scalar(uop.Int32), 0)
	lo := s.ConstInt(uop.Scalar(uop.Int32), 0)
	hi := s.ConstInt(uop.Scalar(uop.Int32), 4)
	rng := s.Range(uop.Scalar(uop.Int32), lo, hi, 0, true)
	body := s.Cast(rng, uop.Scalar(uop.Float32))
	reduce := s.Reduce(uop.ADD, body, rng)
	st := s.StoreOp(buf, idx, reduce)
	sink := s.Sink(nil, st)

	result := Run(sink, backend.Generic())
	assert.Equal(t, uop.SINK, result.Op)
}
