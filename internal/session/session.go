// Package session provides per-compilation isolation: one hash-cons intern
// table, one acc_number/linearize_cnt counter pair, and a correlation id for
// log output, matching spec.md §5's requirement that intern tables are
// isolated per compilation and in-progress UOps are never shared across
// goroutines.
package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"uopc/internal/backend"
	"uopc/internal/debuglog"
	"uopc/internal/expand"
	"uopc/internal/linearize"
	"uopc/internal/rewrite"
	"uopc/internal/rules"
	"uopc/internal/uop"
)

// Session owns one Store end to end; callers must not share a Session, or
// any UOp built from it, across goroutines.
type Session struct {
	ID    uuid.UUID
	Store *uop.Store
	Log   *debuglog.Logger
}

// New returns a fresh Session with its own intern table.
func New() *Session {
	return &Session{ID: uuid.New(), Store: uop.NewStore(), Log: debuglog.New()}
}

// Compile runs the full rewrite + linearize pipeline over sink using d as
// the backend descriptor, returning the stripped instruction list.
func (s *Session) Compile(sink *uop.UOp, d *backend.Descriptor) ([]*uop.UOp, error) {
	start := s.Log.PassStart("rewrite")
	rewritten := rewrite.GraphRewrite(sink, rules.New())
	s.Log.PassDone("rewrite", start, s.Store.Size(), 0)

	start = s.Log.PassStart("expand")
	expanded := expand.Run(rewritten, d)
	if d.ExtraMatcher != nil {
		expanded = rewrite.GraphRewrite(expanded, d.ExtraMatcher)
	}
	s.Log.PassDone("expand", start, s.Store.Size(), 0)

	start = s.Log.PassStart("linearize")
	instrs, err := linearize.Linearize(expanded)
	s.Log.PassDone("linearize", start, len(instrs), 0)
	if err != nil {
		return nil, err
	}
	return instrs, nil
}

// Program is one independent compilation unit submitted to CompileAll.
type Program struct {
	Name string
	Sink *uop.UOp
}

// Result is one Program's outcome.
type Result struct {
	Name   string
	Instrs []*uop.UOp
}

// CompileAll compiles every program concurrently, each in its own Session
// so that no intern table or in-progress UOp crosses a goroutine boundary
// (spec.md §5). A panic inside one compilation is recovered and surfaced as
// a returned error rather than crashing the process, since an unrecovered
// panic in one goroutine of an errgroup.Group would otherwise take down the
// whole run (spec.md §7).
func CompileAll(ctx context.Context, programs []Program, d *backend.Descriptor) ([]Result, error) {
	results := make([]Result, len(programs))
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range programs {
		i, p := i, p
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("uopc: compiling %q panicked: %v", p.Name, r)
				}
			}()
			if err := ctx.Err(); err != nil {
				return err
			}
			s := New()
			instrs, cerr := s.Compile(p.Sink, d)
			if cerr != nil {
				return fmt.Errorf("uopc: compiling %q: %w", p.Name, cerr)
			}
			results[i] = Result{Name: p.Name, Instrs: instrs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
