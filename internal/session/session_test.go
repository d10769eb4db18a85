package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uopc/internal/backend"
	"uopc/internal/uop"
)

func buildFlatStoreProgram(s *uop.Store) *uop.UOp {
	buf := s.DefineLocal("buf", uop.Scalar(uop.Float32), 4)
	idx := s.ConstInt(uop.Scalar(uop.Int32), 0)
	a := s.ConstFloat(uop.Scalar(uop.Float32), 1)
	b := s.ConstFloat(uop.Scalar(uop.Float32), 2)
	val := s.Add(a, b)
	st := s.StoreOp(buf, idx, val)
	return s.Sink(nil, st)
}

func TestCompileProducesFoldedInstructions(t *testing.T) {
	sess := New()
	sink := buildFlatStoreProgram(sess.Store)

	instrs, err := sess.Compile(sink, backend.Generic())
	require.NoError(t, err)
	require.NotEmpty(t, instrs)

	for _, n := range instrs {
		assert.NotEqual(t, uop.SINK, n.Op)
	}
	foundFoldedConst := false
	for _, n := range instrs {
		if n.Op == uop.CONST {
			if c, ok := n.Arg.(uop.ConstArg); ok && c.Scalar().F == 3 {
				foundFoldedConst = true
			}
		}
	}
	assert.True(t, foundFoldedConst, "1.0+2.0 must fold to a single CONST 3 before linearization")
}

func TestCompilePropagatesLinearizeErrors(t *testing.T) {
	sess := New()
	notASink := sess.Store.ConstInt(uop.Scalar(uop.Int32), 1)

	_, err := sess.Compile(notASink, backend.Generic())
	assert.Error(t, err)
}

func TestCompileAllRunsEachProgramInIsolation(t *testing.T) {
	s1, s2 := uop.NewStore(), uop.NewStore()
	programs := []Program{
		{Name: "p1", Sink: buildFlatStoreProgram(s1)},
		{Name: "p2", Sink: buildFlatStoreProgram(s2)},
	}

	results, err := CompileAll(context.Background(), programs, backend.Generic())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "p1", results[0].Name)
	assert.Equal(t, "p2", results[1].Name)
	assert.NotEmpty(t, results[0].Instrs)
	assert.NotEmpty(t, results[1].Instrs)
}

func TestCompileAllSurfacesPerProgramCompileError(t *testing.T) {
	s1 := uop.NewStore()
	badSink := s1.ConstInt(uop.Scalar(uop.Int32), 1) // not a SINK, Compile will error
	programs := []Program{{Name: "bad", Sink: badSink}}

	_, err := CompileAll(context.Background(), programs, backend.Generic())
	assert.ErrorContains(t, err, "bad")
}

func TestCompileAllRecoversPanicFromNilSink(t *testing.T) {
	programs := []Program{{Name: "nilsink", Sink: nil}}

	_, err := CompileAll(context.Background(), programs, backend.Generic())
	assert.Error(t, err)
	assert.ErrorContains(t, err, "nilsink")
}

func TestNewSessionsAreIndependent(t *testing.T) {
	a := New()
	b := New()
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotSame(t, a.Store, b.Store)
}
