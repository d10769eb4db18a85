package uop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreHashConsing(t *testing.T) {
	s := NewStore()
	a := s.ConstInt(Scalar(Int32), 7)
	b := s.ConstInt(Scalar(Int32), 7)
	assert.Same(t, a, b, "two identical CONST nodes must intern to the same pointer")

	c := s.ConstInt(Scalar(Int32), 8)
	assert.NotSame(t, a, c)

	add1 := s.Add(a, c)
	add2 := s.Add(a, c)
	assert.Same(t, add1, add2)
}

func TestStoreSizeCountsDistinctNodes(t *testing.T) {
	s := NewStore()
	assert.Equal(t, 0, s.Size())
	a := s.ConstInt(Scalar(Int32), 1)
	assert.Equal(t, 1, s.Size())
	s.ConstInt(Scalar(Int32), 1)
	assert.Equal(t, 1, s.Size(), "re-requesting the same node must not grow the table")
	s.Add(a, a)
	assert.Equal(t, 2, s.Size())
}

func TestWithSrcReinterns(t *testing.T) {
	s := NewStore()
	a := s.ConstInt(Scalar(Int32), 1)
	b := s.ConstInt(Scalar(Int32), 2)
	c := s.ConstInt(Scalar(Int32), 3)

	add := s.Add(a, b)
	replaced := add.WithSrc([]*UOp{a, c})
	assert.Equal(t, ADD, replaced.Arg.(ALUArg).Op)
	assert.Same(t, c, replaced.Src[1])
	assert.Same(t, replaced, s.Add(a, c))
}

func TestIDIsCreationOrderStable(t *testing.T) {
	s := NewStore()
	a := s.ConstInt(Scalar(Int32), 1)
	b := s.ConstInt(Scalar(Int32), 2)
	assert.Less(t, a.ID(), b.ID())
}

func TestNextAccNumberMonotone(t *testing.T) {
	s := NewStore()
	n0 := s.NextAccNumber()
	n1 := s.NextAccNumber()
	assert.Equal(t, n0+1, n1)
}

func TestDifferentStoresDoNotShareIdentity(t *testing.T) {
	s1, s2 := NewStore(), NewStore()
	a := s1.ConstInt(Scalar(Int32), 1)
	b := s2.ConstInt(Scalar(Int32), 1)
	assert.NotSame(t, a, b, "separate Stores must never intern to the same node")
}
