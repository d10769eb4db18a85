package linearize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uopc/internal/uop"
)

func posOf(out []*uop.UOp, n *uop.UOp) int {
	for i, u := range out {
		if u == n {
			return i
		}
	}
	return -1
}

func TestLinearizeRejectsNonSinkRoot(t *testing.T) {
	s := uop.NewStore()
	c := s.ConstInt(uop.Scalar(uop.Int32), 1)
	_, err := Linearize(c)
	assert.Error(t, err)
}

func TestLinearizeFlatStoreNoScopes(t *testing.T) {
	s := uop.NewStore()
	buf := s.DefineLocal("buf", uop.Scalar(uop.Float32), 4)
	idx := s.ConstInt(uop.Scalar(uop.Int32), 0)
	val := s.ConstFloat(uop.Scalar(uop.Float32), 1)
	st := s.StoreOp(buf, idx, val)
	sink := s.Sink(nil, st)

	out, err := Linearize(sink)
	require.NoError(t, err)

	for _, n := range out {
		assert.NotEqual(t, uop.SINK, n.Op, "SINK must be stripped")
		assert.NotEqual(t, uop.ENDRANGE, n.Op)
		assert.NotEqual(t, uop.ENDIF, n.Op)
	}
	assert.Less(t, posOf(out, buf), posOf(out, st))
	assert.Less(t, posOf(out, idx), posOf(out, st))
	assert.Less(t, posOf(out, val), posOf(out, st))
	assert.Equal(t, st, out[len(out)-1])
}

func TestLinearizeLoopClosesAfterLastUse(t *testing.T) {
	s := uop.NewStore()
	buf := s.DefineLocal("buf", uop.Scalar(uop.Float32), 8)
	lo := s.ConstInt(uop.Scalar(uop.Int32), 0)
	hi := s.ConstInt(uop.Scalar(uop.Int32), 8)
	rng := s.Range(uop.Scalar(uop.Int32), lo, hi, 0, false)
	val := s.Cast(rng, uop.Scalar(uop.Float32))
	st := s.StoreOp(buf, rng, val)
	sink := s.Sink(nil, st)

	out, err := Linearize(sink)
	require.NoError(t, err)

	rPos, stPos := posOf(out, rng), posOf(out, st)
	require.NotEqual(t, -1, rPos)
	require.NotEqual(t, -1, stPos)
	assert.Less(t, rPos, stPos, "RANGE must be scheduled before the body that uses it")

	endIdx := -1
	for i, n := range out {
		if n.Op == uop.ENDRANGE && n.Src[0] == rng {
			endIdx = i
		}
	}
	require.NotEqual(t, -1, endIdx, "an ENDRANGE for rng must be inserted")
	assert.Greater(t, endIdx, stPos, "ENDRANGE must close after the last statement in its scope")
}

func TestLinearizeNestedLoopsCloseInnermostFirst(t *testing.T) {
	s := uop.NewStore()
	buf := s.DefineLocal("buf", uop.Scalar(uop.Float32), 64)
	lo := s.ConstInt(uop.Scalar(uop.Int32), 0)
	hiOuter := s.ConstInt(uop.Scalar(uop.Int32), 8)
	hiInner := s.ConstInt(uop.Scalar(uop.Int32), 8)
	outer := s.Range(uop.Scalar(uop.Int32), lo, hiOuter, 0, false)
	inner := s.Range(uop.Scalar(uop.Int32), lo, hiInner, 1, false)
	idx := s.Add(s.Mul(outer, hiInner), inner)
	val := s.Cast(inner, uop.Scalar(uop.Float32))
	st := s.StoreOp(buf, idx, val)
	sink := s.Sink(nil, st)

	out, err := Linearize(sink)
	require.NoError(t, err)

	outerPos, innerPos := posOf(out, outer), posOf(out, inner)
	assert.Less(t, outerPos, innerPos, "outer loop must be entered before the inner loop")

	var outerEnd, innerEnd int = -1, -1
	for i, n := range out {
		if n.Op == uop.ENDRANGE {
			if n.Src[0] == outer {
				outerEnd = i
			}
			if n.Src[0] == inner {
				innerEnd = i
			}
		}
	}
	require.NotEqual(t, -1, outerEnd)
	require.NotEqual(t, -1, innerEnd)
	assert.Less(t, innerEnd, outerEnd, "the inner loop's ENDRANGE must precede the outer loop's")
}

func TestLinearizeDefineAccSchedulesBeforeItsRange(t *testing.T) {
	s := uop.NewStore()
	buf := s.DefineLocal("out", uop.Scalar(uop.Float32), 1)
	outIdx := s.ConstInt(uop.Scalar(uop.Int32), 0)
	lo := s.ConstInt(uop.Scalar(uop.Int32), 0)
	hi := s.ConstInt(uop.Scalar(uop.Int32), 16)
	rng := s.Range(uop.Scalar(uop.Int32), lo, hi, 0, true)
	identity := s.ConstFloat(uop.Scalar(uop.Float32), 0)
	acc := s.DefineAcc(identity, rng)
	body := s.Cast(rng, uop.Scalar(uop.Float32))
	updated := s.Add(acc, body)
	assign := s.Assign(acc, updated)
	st := s.StoreOp(buf, outIdx, assign)
	sink := s.Sink(nil, st)

	out, err := Linearize(sink)
	require.NoError(t, err)

	accPos, rngPos := posOf(out, acc), posOf(out, rng)
	require.NotEqual(t, -1, accPos)
	require.NotEqual(t, -1, rngPos)
	assert.Less(t, accPos, rngPos, "DEFINE_ACC must be spliced before the RANGE it accumulates over")
}

func TestLinearizeIfScopeClosesAfterGatedStore(t *testing.T) {
	s := uop.NewStore()
	buf := s.DefineLocal("buf", uop.Scalar(uop.Float32), 4)
	idx := s.ConstInt(uop.Scalar(uop.Int32), 0)
	cond := s.DefineVar("c", uop.Scalar(uop.Bool), 0, 1)
	iff := s.If(cond)
	val := s.ConstFloat(uop.Scalar(uop.Float32), 2)
	st := s.StoreOp(buf, idx, val, iff)
	sink := s.Sink(nil, st)

	out, err := Linearize(sink)
	require.NoError(t, err)

	ifPos, stPos := posOf(out, iff), posOf(out, st)
	assert.Less(t, ifPos, stPos)

	endIfPos := -1
	for i, n := range out {
		if n.Op == uop.ENDIF && n.Src[0] == iff {
			endIfPos = i
		}
	}
	require.NotEqual(t, -1, endIfPos)
	assert.Greater(t, endIfPos, stPos)
}

func TestLinearizeRejectsDuplicateStoreToSameSlot(t *testing.T) {
	s := uop.NewStore()
	buf := s.DefineLocal("buf", uop.Scalar(uop.Float32), 4)
	idx := s.ConstInt(uop.Scalar(uop.Int32), 0)
	v1 := s.ConstFloat(uop.Scalar(uop.Float32), 1)
	v2 := s.ConstFloat(uop.Scalar(uop.Float32), 2)
	st1 := s.StoreOp(buf, idx, v1)
	st2 := s.StoreOp(buf, idx, v2)
	sink := s.Sink(nil, st1, st2)

	_, err := Linearize(sink)
	assert.Error(t, err, "two stores to the identical (buf, idx) slot must fail the sanity check")
}

func TestTypeVerifyRejectsWrongArityALU(t *testing.T) {
	s := uop.NewStore()
	a := s.ConstInt(uop.Scalar(uop.Int32), 1)
	add := s.Add(a, a)
	malformed := s.New(uop.ALU, add.DType, []*uop.UOp{a}, uop.ALUArg{Op: uop.ADD})

	err := typeVerify([]*uop.UOp{a, malformed})
	assert.Error(t, err, "a binary ALU op with one source must fail type_verify")
}

func TestTypeVerifyRejectsNonBoolComparisonResult(t *testing.T) {
	s := uop.NewStore()
	a := s.ConstInt(uop.Scalar(uop.Int32), 1)
	b := s.ConstInt(uop.Scalar(uop.Int32), 2)
	malformed := s.New(uop.ALU, uop.Scalar(uop.Int32), []*uop.UOp{a, b}, uop.ALUArg{Op: uop.CMPLT})

	err := typeVerify([]*uop.UOp{a, b, malformed})
	assert.Error(t, err, "CMPLT producing a non-bool dtype must fail type_verify")
}

func TestTypeVerifyRejectsWhereWithNonBoolCondition(t *testing.T) {
	s := uop.NewStore()
	cond := s.ConstInt(uop.Scalar(uop.Int32), 1)
	t1 := s.ConstFloat(uop.Scalar(uop.Float32), 1)
	f1 := s.ConstFloat(uop.Scalar(uop.Float32), 0)
	where := s.Alu(uop.WHERE, uop.Scalar(uop.Float32), cond, t1, f1)

	err := typeVerify([]*uop.UOp{cond, t1, f1, where})
	assert.Error(t, err, "a WHERE whose condition is not bool-typed must fail type_verify")
}

func TestTypeVerifyRejectsShapetracker(t *testing.T) {
	s := uop.NewStore()
	st := s.New(uop.SHAPETRACKER, nil, nil, nil)

	err := typeVerify([]*uop.UOp{st})
	assert.Error(t, err, "a SHAPETRACKER node must never reach the linearizer")
}

func TestTypeVerifyAcceptsWellFormedProgram(t *testing.T) {
	s := uop.NewStore()
	buf := s.DefineLocal("buf", uop.Scalar(uop.Float32), 4)
	idx := s.ConstInt(uop.Scalar(uop.Int32), 0)
	val := s.ConstFloat(uop.Scalar(uop.Float32), 1)
	st := s.StoreOp(buf, idx, val)

	assert.NoError(t, typeVerify([]*uop.UOp{buf, idx, val, st}))
}
