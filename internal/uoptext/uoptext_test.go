package uoptext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uopc/internal/uop"
)

func TestParseAndLowerConst(t *testing.T) {
	expr, err := Parse(`(CONST i32 42)`)
	require.NoError(t, err)

	s := uop.NewStore()
	u, err := Lower(s, expr)
	require.NoError(t, err)
	assert.Equal(t, uop.CONST, u.Op)
	assert.Equal(t, int64(42), u.Arg.(uop.ConstArg).Scalar().I)
}

func TestParseAndLowerFloatConst(t *testing.T) {
	expr, err := Parse(`(CONST f32 1.5)`)
	require.NoError(t, err)

	s := uop.NewStore()
	u, err := Lower(s, expr)
	require.NoError(t, err)
	assert.Equal(t, 1.5, u.Arg.(uop.ConstArg).Scalar().F)
}

func TestParseAndLowerBoolConst(t *testing.T) {
	expr, err := Parse(`(CONST bool true)`)
	require.NoError(t, err)

	s := uop.NewStore()
	u, err := Lower(s, expr)
	require.NoError(t, err)
	assert.True(t, u.Arg.(uop.ConstArg).Scalar().B)
}

func TestLowerSharesRepeatedSubexpressionsViaHashConsing(t *testing.T) {
	expr, err := Parse(`(ALU ADD i32 (CONST i32 1) (CONST i32 1))`)
	require.NoError(t, err)

	s := uop.NewStore()
	u, err := Lower(s, expr)
	require.NoError(t, err)
	require.Len(t, u.Src, 2)
	assert.Same(t, u.Src[0], u.Src[1], "two identical leaf s-expressions must lower to the same interned node")
}

func TestLowerAluBuildsCorrectOpcode(t *testing.T) {
	expr, err := Parse(`(ALU MUL f32 (CONST f32 2.0) (CONST f32 3.0))`)
	require.NoError(t, err)

	s := uop.NewStore()
	u, err := Lower(s, expr)
	require.NoError(t, err)
	assert.Equal(t, uop.ALU, u.Op)
	assert.Equal(t, uop.MUL, u.Arg.(uop.ALUArg).Op)
}

func TestLowerDefineVar(t *testing.T) {
	expr, err := Parse(`(DEFINE_VAR x i32 0 10)`)
	require.NoError(t, err)

	s := uop.NewStore()
	u, err := Lower(s, expr)
	require.NoError(t, err)
	assert.Equal(t, uop.DEFINE_VAR, u.Op)
	a := u.Arg.(uop.DefineVarArg)
	assert.Equal(t, "x", a.Name)
	assert.Equal(t, int64(0), a.Min)
	assert.Equal(t, int64(10), a.Max)
}

func TestLowerRangeAndLoad(t *testing.T) {
	expr, err := Parse(`(LOAD f32 (DEFINE_LOCAL buf f32 16) (RANGE i32 (CONST i32 0) (CONST i32 16) 0 false))`)
	require.NoError(t, err)

	s := uop.NewStore()
	u, err := Lower(s, expr)
	require.NoError(t, err)
	assert.Equal(t, uop.LOAD, u.Op)
	require.Len(t, u.Src, 2)
	assert.Equal(t, uop.DEFINE_LOCAL, u.Src[0].Op)
	assert.Equal(t, uop.RANGE, u.Src[1].Op)
	assert.False(t, u.Src[1].Arg.(uop.RangeArg).IsReduce)
}

func TestLowerUnknownOpReportsDiagnostic(t *testing.T) {
	expr, err := Parse(`(BOGUS 1 2)`)
	require.NoError(t, err)

	s := uop.NewStore()
	_, err = Lower(s, expr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOGUS")
}

func TestLowerAtomAtTopLevelIsAnError(t *testing.T) {
	expr, err := Parse(`42`)
	require.NoError(t, err)

	s := uop.NewStore()
	_, err = Lower(s, expr)
	assert.Error(t, err)
}

func TestParseRejectsMalformedSource(t *testing.T) {
	_, err := Parse(`(CONST i32 42`)
	assert.Error(t, err)
}

func TestPrintRendersOneLinePerInstruction(t *testing.T) {
	s := uop.NewStore()
	buf := s.DefineLocal("buf", uop.Scalar(uop.Float32), 4)
	idx := s.ConstInt(uop.Scalar(uop.Int32), 0)
	val := s.ConstFloat(uop.Scalar(uop.Float32), 1)
	st := s.StoreOp(buf, idx, val)

	out := Print([]*uop.UOp{buf, idx, val, st})
	assert.Contains(t, out, "%0 = (DEFINE_LOCAL buf")
	assert.Contains(t, out, "%3 = (STORE %0 %1 %2)")
}

func TestPrintReferencesEarlierTempsByName(t *testing.T) {
	s := uop.NewStore()
	a := s.ConstInt(uop.Scalar(uop.Int32), 1)
	b := s.ConstInt(uop.Scalar(uop.Int32), 2)
	add := s.Add(a, b)

	out := Print([]*uop.UOp{a, b, add})
	assert.Contains(t, out, "%2 = (ALU ADD i32 %0 %1)")
}

func TestLowerThenPrintRoundTripsOpShape(t *testing.T) {
	expr, err := Parse(`(ALU ADD i32 (CONST i32 1) (CONST i32 2))`)
	require.NoError(t, err)

	s := uop.NewStore()
	u, err := Lower(s, expr)
	require.NoError(t, err)

	out := Print([]*uop.UOp{u.Src[0], u.Src[1], u})
	assert.Contains(t, out, "(ALU ADD i32 %0 %1)")
}
