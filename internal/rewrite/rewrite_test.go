package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"uopc/internal/pattern"
	"uopc/internal/uop"
)

// foldAdd is a tiny constant-folder: ADD(CONST, CONST) -> CONST(sum).
func foldAdd() *pattern.Matcher {
	isAdd := func(a uop.Arg) bool { aa, ok := a.(uop.ALUArg); return ok && aa.Op == uop.ADD }
	p := pattern.Op(uop.ALU).WithArg(isAdd).WithSrc(pattern.CVar("a"), pattern.CVar("b"))
	return pattern.New(pattern.Rule{Name: "fold-add", Pat: p, Fn: func(b *pattern.Bindings, u *uop.UOp) *uop.UOp {
		a, c := b.Get("a"), b.Get("b")
		av, cok := a.Arg.(uop.ConstArg)
		cv, bok := c.Arg.(uop.ConstArg)
		if !cok || !bok {
			return nil
		}
		return u.StoreOf().ConstInt(u.DType, av.Scalar().I+cv.Scalar().I)
	}})
}

func TestGraphRewriteFoldsBottomUp(t *testing.T) {
	s := uop.NewStore()
	a := s.ConstInt(uop.Scalar(uop.Int32), 2)
	b := s.ConstInt(uop.Scalar(uop.Int32), 3)
	c := s.ConstInt(uop.Scalar(uop.Int32), 4)
	inner := s.Add(a, b)  // folds to 5
	outer := s.Add(inner, c) // folds to 5+4=9, but only after inner is folded first

	result := GraphRewrite(outer, foldAdd())
	assert.Equal(t, uop.CONST, result.Op)
	assert.Equal(t, int64(9), result.Arg.(uop.ConstArg).Scalar().I)
}

func TestGraphRewriteIsIdempotent(t *testing.T) {
	s := uop.NewStore()
	a := s.ConstInt(uop.Scalar(uop.Int32), 2)
	b := s.ConstInt(uop.Scalar(uop.Int32), 3)
	add := s.Add(a, b)

	once := GraphRewrite(add, foldAdd())
	twice := GraphRewrite(once, foldAdd())
	assert.Same(t, once, twice, "rewriting an already-normal-form graph must be a no-op")
}

func TestGraphRewriteLeavesUnmatchedNodesAlone(t *testing.T) {
	s := uop.NewStore()
	a := s.DefineVar("a", uop.Scalar(uop.Int32), 0, 10)
	b := s.ConstInt(uop.Scalar(uop.Int32), 3)
	add := s.Add(a, b)

	result := GraphRewrite(add, foldAdd())
	assert.Same(t, add, result)
}
