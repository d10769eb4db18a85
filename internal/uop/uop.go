package uop

import (
	"fmt"
	"strings"
	"sync"
)

// UOp is the structurally-hashed, immutable node of the expression graph
// (spec.md §3). Two UOps built from equal (op, dtype, src, arg) through the
// same Store are the same pointer; identity equality therefore implies
// semantic equality.
type UOp struct {
	Op    Op
	DType *DType
	Src   []*UOp
	Arg   Arg

	id    uint64
	store *Store

	ivOnce     sync.Once
	iv         Interval
	cfOnce     sync.Once
	constFac   int64
	spOnce     sync.Once
	sparents   map[*UOp]struct{}
}

// ID returns the Store-assigned creation order of this node. It is stable
// only within one Store and exists to give the linearizer and debug
// printer a deterministic tie-break.
func (u *UOp) ID() uint64 { return u.id }

// StoreOf returns the intern table this node was built from.
func (u *UOp) StoreOf() *Store { return u.store }

// WithSrc returns the canonical node sharing u's (op, dtype, arg) but with
// newSrc in place of u.Src, reinterning through u's own Store.
func (u *UOp) WithSrc(newSrc []*UOp) *UOp {
	return u.store.New(u.Op, u.DType, newSrc, u.Arg)
}

// Store is the per-compilation intern table keyed by (op, dtype, src, arg);
// see spec.md §9 "Hash-consing". It is a plain map holding strong
// references: an interned node stays in the table for the Store's lifetime
// and is never reclaimed.
type Store struct {
	mu          sync.Mutex
	table       map[string]*UOp
	nextID      uint64
	accNumber   int
	linearizeCt int
}

// NewStore returns a fresh, empty intern table. Callers must not share a
// Store, or UOps built from it, across goroutines (spec.md §5).
func NewStore() *Store {
	return &Store{table: make(map[string]*UOp)}
}

// NextAccNumber returns a fresh, monotone identifier for a DEFINE_ACC,
// reset only by constructing a new Store (spec.md §5).
func (s *Store) NextAccNumber() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.accNumber
	s.accNumber++
	return n
}

// NextLinearizeCount bumps the debug-only linearize_cnt counter.
func (s *Store) NextLinearizeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.linearizeCt
	s.linearizeCt++
	return n
}

func srcKey(src []*UOp) string {
	var b strings.Builder
	for i, c := range src {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", c.id)
	}
	return b.String()
}

// New returns the canonical UOp for (op, dtype, src, arg), constructing it
// if this exact shape has not been interned yet.
func (s *Store) New(op Op, dtype *DType, src []*UOp, arg Arg) *UOp {
	key := fmt.Sprintf("%d|%s|[%s]|%s", op, dtype.key(), srcKey(src), argKey(arg))
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.table[key]; ok {
		return existing
	}
	u := &UOp{Op: op, DType: dtype, Src: append([]*UOp(nil), src...), Arg: arg, id: s.nextID, store: s}
	s.nextID++
	s.table[key] = u
	return u
}

// Size returns the number of distinct UOps interned so far.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.table)
}

func (u *UOp) String() string {
	var argStr string
	switch a := u.Arg.(type) {
	case nil:
		argStr = ""
	case ConstArg:
		vs := make([]string, len(a.Vals))
		for i, v := range a.Vals {
			vs[i] = v.String()
		}
		argStr = fmt.Sprintf(" %s", strings.Join(vs, ","))
	case ALUArg:
		argStr = fmt.Sprintf(" %s", a.Op)
	default:
		argStr = fmt.Sprintf(" %v", u.Arg)
	}
	return fmt.Sprintf("%s#%d%s(%s)", u.Op, u.id, argStr, u.DType)
}
