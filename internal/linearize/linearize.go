// Package linearize implements spec.md §4.11: scheduling a SINK graph into
// a flat, topologically-ordered instruction list with explicit loop/branch
// scope markers.
package linearize

import (
	"container/heap"
	"fmt"
	"sort"

	"uopc/internal/uop"
)

// Linearize schedules root (a SINK UOp) into a flat instruction list with
// SINK itself stripped, per spec.md §4.11.
func Linearize(root *uop.UOp) ([]*uop.UOp, error) {
	if root.Op != uop.SINK {
		return nil, fmt.Errorf("linearize: root must be SINK, got %s", root.Op)
	}

	g := build(root)
	out := g.schedule()
	out = g.insertScopeEnds(out)
	out = stripSink(out)

	if err := sanityCheck(out); err != nil {
		return nil, err
	}
	return out, nil
}

// stripSink drops the root SINK node itself: downstream consumers only want
// its ordered statement list (spec.md §6 "SINK stripped").
func stripSink(out []*uop.UOp) []*uop.UOp {
	filtered := out[:0]
	for _, n := range out {
		if n.Op != uop.SINK {
			filtered = append(filtered, n)
		}
	}
	return filtered
}

// graph holds the precomputed dependency structure the scheduler and
// scope-end pass both need.
type graph struct {
	nodes     []*uop.UOp
	deps      map[*uop.UOp][]*uop.UOp // unique direct sources
	consumers map[*uop.UOp][]*uop.UOp // reverse edges
	rangesOf  map[*uop.UOp][]*uop.UOp // RANGE ancestors this node depends on
	ifsOf     map[*uop.UOp][]*uop.UOp // IF ancestors this node depends on
	siblings  map[*uop.UOp]int        // RANGE -> count of co-accumulated sibling ranges
}

func build(root *uop.UOp) *graph {
	g := &graph{
		deps:      map[*uop.UOp][]*uop.UOp{},
		consumers: map[*uop.UOp][]*uop.UOp{},
		rangesOf:  map[*uop.UOp][]*uop.UOp{},
		ifsOf:     map[*uop.UOp][]*uop.UOp{},
		siblings:  map[*uop.UOp]int{},
	}

	seen := map[*uop.UOp]bool{}
	var dfs func(*uop.UOp)
	dfs = func(n *uop.UOp) {
		if seen[n] {
			return
		}
		seen[n] = true
		for _, c := range n.Src {
			dfs(c)
		}
		g.nodes = append(g.nodes, n)
	}
	dfs(root)

	for _, n := range g.nodes {
		uniq := uniqueSrcs(n.Src)
		g.deps[n] = uniq
		for _, d := range uniq {
			g.consumers[d] = append(g.consumers[d], n)
		}
		for anc := range n.Sparents() {
			switch anc.Op {
			case uop.RANGE:
				g.rangesOf[n] = append(g.rangesOf[n], anc)
			case uop.IF:
				g.ifsOf[n] = append(g.ifsOf[n], anc)
			}
		}
		if n.Op == uop.DEFINE_ACC {
			ranges := n.Src[1:]
			for _, r := range ranges {
				g.siblings[r] = len(ranges) - 1
			}
		}
	}
	return g
}

func uniqueSrcs(src []*uop.UOp) []*uop.UOp {
	var out []*uop.UOp
	seen := map[*uop.UOp]bool{}
	for _, c := range src {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// priority implements spec.md §4.11 step 3. Lower values pop first.
func (g *graph) priority(n *uop.UOp) int64 {
	if n.Op == uop.RANGE {
		if ra, ok := n.Arg.(uop.RangeArg); ok && ra.IsReduce {
			return int64(ra.ID) + 10000*int64(g.siblings[n])
		}
	}
	var sum int64
	for _, r := range g.rangesOf[n] {
		ra := r.Arg.(uop.RangeArg)
		reduceBit := int64(0)
		if ra.IsReduce {
			reduceBit = 1000
		}
		sum += int64(ra.ID) + 1 + reduceBit
	}
	return -sum
}

type schedEntry struct {
	u    *uop.UOp
	prio int64
}

type prioQueue []schedEntry

func (q prioQueue) Len() int { return len(q) }
func (q prioQueue) Less(i, j int) bool {
	if q[i].prio != q[j].prio {
		return q[i].prio < q[j].prio
	}
	return q[i].u.ID() < q[j].u.ID()
}
func (q prioQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *prioQueue) Push(x any)   { *q = append(*q, x.(schedEntry)) }
func (q *prioQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// schedule implements spec.md §4.11 steps 3-4: priority-ordered Kahn's
// algorithm, with a popped DEFINE_ACC spliced in immediately before its
// first RANGE source instead of appended at its own topological slot, so
// the accumulator is initialized before the loop it feeds is entered.
func (g *graph) schedule() []*uop.UOp {
	inDegree := map[*uop.UOp]int{}
	for _, n := range g.nodes {
		inDegree[n] = len(g.deps[n])
	}

	pq := &prioQueue{}
	heap.Init(pq)
	pushed := map[*uop.UOp]bool{}
	for _, n := range g.nodes {
		if inDegree[n] == 0 {
			heap.Push(pq, schedEntry{u: n, prio: g.priority(n)})
			pushed[n] = true
		}
	}

	var out []*uop.UOp
	pos := map[*uop.UOp]int{}

	appendNode := func(n *uop.UOp) {
		pos[n] = len(out)
		out = append(out, n)
	}
	insertBefore := func(n, before *uop.UOp) {
		idx, ok := pos[before]
		if !ok {
			appendNode(n)
			return
		}
		out = append(out, nil)
		copy(out[idx+1:], out[idx:len(out)-1])
		out[idx] = n
		for i := idx; i < len(out); i++ {
			pos[out[i]] = i
		}
	}

	for pq.Len() > 0 {
		entry := heap.Pop(pq).(schedEntry)
		n := entry.u
		if n.Op == uop.DEFINE_ACC && len(n.Src) > 1 {
			// A source-free identity scheduled after the RANGE moves up with
			// the accumulator so it still precedes the DEFINE_ACC reading it.
			if id := n.Src[0]; len(id.Src) == 0 {
				if p, ok := pos[id]; ok && p > pos[n.Src[1]] {
					out = append(out[:p], out[p+1:]...)
					for i := p; i < len(out); i++ {
						pos[out[i]] = i
					}
					insertBefore(id, n.Src[1])
				}
			}
			insertBefore(n, n.Src[1])
		} else {
			appendNode(n)
		}
		for _, c := range g.consumers[n] {
			inDegree[c]--
			if inDegree[c] == 0 && !pushed[c] {
				heap.Push(pq, schedEntry{u: c, prio: g.priority(c)})
				pushed[c] = true
			}
		}
	}
	return out
}

// collectScope implements spec.md §4.11 step 2: every node reachable from
// boundary through consumer edges, stopping at (but still including) the
// next node of the same op.
func collectScope(boundary *uop.UOp, consumers map[*uop.UOp][]*uop.UOp) []*uop.UOp {
	var out []*uop.UOp
	seen := map[*uop.UOp]bool{}
	var walk func(*uop.UOp)
	walk = func(n *uop.UOp) {
		for _, c := range consumers[n] {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
			if c.Op != boundary.Op {
				walk(c)
			}
		}
	}
	walk(boundary)
	return out
}

// insertScopeEnds implements spec.md §4.11 step 5: inserting ENDRANGE/ENDIF
// right after the last node scheduled within each boundary's scope,
// innermost boundaries first so an outer scope whose last member is itself
// a nested boundary closes after that boundary's own end marker.
func (g *graph) insertScopeEnds(out []*uop.UOp) []*uop.UOp {
	pos := map[*uop.UOp]int{}
	for i, n := range out {
		pos[n] = i
	}

	var boundaries []*uop.UOp
	for _, n := range g.nodes {
		if _, ok := uop.EndForUOp[n.Op]; ok {
			boundaries = append(boundaries, n)
		}
	}
	depth := func(b *uop.UOp) int { return len(g.rangesOf[b]) + len(g.ifsOf[b]) }
	sort.SliceStable(boundaries, func(i, j int) bool { return depth(boundaries[i]) > depth(boundaries[j]) })

	endPos := map[*uop.UOp]int{}
	insertAt := func(idx int, n *uop.UOp) {
		out = append(out, nil)
		copy(out[idx+1:], out[idx:len(out)-1])
		out[idx] = n
		for i := idx; i < len(out); i++ {
			pos[out[i]] = i
		}
	}

	for _, b := range boundaries {
		members := collectScope(b, g.consumers)
		lastPos, ok := pos[b]
		if !ok {
			continue
		}
		for _, m := range members {
			if m.Op == uop.SINK {
				continue // the root collector is never really "inside" a scope
			}
			p, ok := pos[m]
			if !ok {
				continue
			}
			if ep, ok := endPos[m]; ok && ep > p {
				p = ep
			}
			if p > lastPos {
				lastPos = p
			}
		}
		endOp := uop.EndForUOp[b.Op]
		var endNode *uop.UOp
		if endOp == uop.ENDRANGE {
			endNode = b.StoreOf().EndRange(b)
		} else {
			endNode = b.StoreOf().EndIf(b)
		}
		insertAt(lastPos+1, endNode)
		endPos[b] = pos[endNode]
	}
	return out
}

// sanityCheck implements spec.md §4.11 step 6: no residual high-level ops,
// every source scheduled before its use, no duplicate STOREs to an identical
// (buf, index, gate) tuple (every STORE is checked, stores to DEFINE_LOCAL
// buffers included), and type_verify's op/dtype/src/arg well-formedness
// check.
func sanityCheck(out []*uop.UOp) error {
	if err := typeVerify(out); err != nil {
		return err
	}

	pos := map[*uop.UOp]int{}
	for i, n := range out {
		pos[n] = i
	}
	seenStores := map[string]bool{}
	for i, n := range out {
		if uop.HighLevel[n.Op] {
			return fmt.Errorf("linearize: residual high-level op %s survived to position %d", n.Op, i)
		}
		// DEFINE_ACC's RANGE sources are an association, not a true
		// dependency: the accumulator is deliberately scheduled before the
		// loop it feeds (spec.md §9 "cyclic appearance of accumulators").
		srcs := n.Src
		if n.Op == uop.DEFINE_ACC && len(srcs) > 0 {
			srcs = srcs[:1]
		}
		for _, s := range srcs {
			if sp, ok := pos[s]; !ok || sp >= i {
				return fmt.Errorf("linearize: %s at position %d scheduled before its source %s", n.Op, i, s.Op)
			}
		}
		if n.Op == uop.STORE && len(n.Src) >= 2 {
			key := fmt.Sprintf("%d|%d", n.Src[0].ID(), n.Src[1].ID())
			if len(n.Src) == 4 {
				key += fmt.Sprintf("|%d", n.Src[3].ID())
			}
			if seenStores[key] {
				return fmt.Errorf("linearize: duplicate store to identical (buf, index, gate) at position %d", i)
			}
			seenStores[key] = true
		}
	}
	return nil
}

var unaryALU = map[uop.ALUOp]bool{
	uop.NEG: true, uop.EXP2: true, uop.LOG2: true, uop.SIN: true, uop.SQRT: true, uop.RECIP: true,
}

var ternaryALU = map[uop.ALUOp]bool{uop.WHERE: true, uop.MULACC: true}

var comparisonALU = map[uop.ALUOp]bool{uop.CMPLT: true, uop.CMPNE: true, uop.CMPEQ: true}

// typeVerify checks every node for the op/dtype/src/arg well-formedness a
// graph must already have by the time it reaches the linearizer (spec.md
// §4.1 "rejects ill-formed combinations...lazily via a type_verify pass
// after linearization", §4.11 step 6). It never originates a rewrite; it
// only rejects a shape nothing upstream should have produced.
func typeVerify(out []*uop.UOp) error {
	for i, n := range out {
		if n.Op == uop.SHAPETRACKER {
			return fmt.Errorf("linearize: type_verify: SHAPETRACKER must not reach the linearizer, found at position %d", i)
		}

		switch n.Op {
		case uop.ALU:
			a, ok := n.Arg.(uop.ALUArg)
			if !ok {
				return fmt.Errorf("linearize: type_verify: ALU at position %d has no ALUArg", i)
			}
			want := 2
			switch {
			case unaryALU[a.Op]:
				want = 1
			case ternaryALU[a.Op]:
				want = 3
			}
			if len(n.Src) != want {
				return fmt.Errorf("linearize: type_verify: ALU %s at position %d has %d sources, want %d", a.Op, i, len(n.Src), want)
			}
			if comparisonALU[a.Op] && (n.DType == nil || n.DType.Kind != uop.Bool) {
				return fmt.Errorf("linearize: type_verify: ALU %s at position %d must produce bool, got %s", a.Op, i, n.DType)
			}
			if a.Op == uop.WHERE {
				if cond := n.Src[0]; cond.DType == nil || cond.DType.Kind != uop.Bool {
					return fmt.Errorf("linearize: type_verify: WHERE at position %d has non-bool condition %s", i, cond.DType)
				}
			}
		case uop.CAST, uop.BITCAST:
			if len(n.Src) != 1 {
				return fmt.Errorf("linearize: type_verify: %s at position %d has %d sources, want 1", n.Op, i, len(n.Src))
			}
			if n.DType == nil {
				return fmt.Errorf("linearize: type_verify: %s at position %d has no dtype", n.Op, i)
			}
		case uop.GEP:
			if len(n.Src) != 1 {
				return fmt.Errorf("linearize: type_verify: GEP at position %d has %d sources, want 1", n.Op, len(n.Src))
			}
		case uop.LOAD:
			if len(n.Src) != 2 && len(n.Src) != 4 {
				return fmt.Errorf("linearize: type_verify: LOAD at position %d has %d sources, want 2 or 4", i, len(n.Src))
			}
		case uop.STORE:
			if len(n.Src) != 3 && len(n.Src) != 4 {
				return fmt.Errorf("linearize: type_verify: STORE at position %d has %d sources, want 3 or 4", i, len(n.Src))
			}
		case uop.ASSIGN:
			if len(n.Src) != 2 {
				return fmt.Errorf("linearize: type_verify: ASSIGN at position %d has %d sources, want 2", i, len(n.Src))
			}
			if n.Src[0].Op != uop.DEFINE_ACC {
				return fmt.Errorf("linearize: type_verify: ASSIGN at position %d does not target a DEFINE_ACC", i)
			}
		case uop.IF, uop.ENDIF:
			if len(n.Src) < 1 {
				return fmt.Errorf("linearize: type_verify: %s at position %d has no condition/target source", n.Op, i)
			}
		case uop.ENDRANGE:
			if len(n.Src) != 1 || n.Src[0].Op != uop.RANGE {
				return fmt.Errorf("linearize: type_verify: ENDRANGE at position %d does not close a RANGE", i)
			}
		}
	}
	return nil
}
