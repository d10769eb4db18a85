// Package pattern implements the Pat template language of spec.md §3
// ("Pattern (rewrite template)") and its compiled matcher.
package pattern

import "uopc/internal/uop"

// Bindings is the result of a successful match: single-node captures under
// Name, plus variable-arity tail captures under TailName.
type Bindings struct {
	Nodes map[string]*uop.UOp
	Tails map[string][]*uop.UOp
}

func newBindings() *Bindings {
	return &Bindings{Nodes: map[string]*uop.UOp{}, Tails: map[string][]*uop.UOp{}}
}

// Get looks up a single-node capture.
func (b *Bindings) Get(name string) *uop.UOp { return b.Nodes[name] }

// Tail looks up a variable-arity capture.
func (b *Bindings) Tail(name string) []*uop.UOp { return b.Tails[name] }

// Pat is a recursive, data-only template describing a node shape (spec.md
// §3). A nil *Pat matches any node with no capture.
type Pat struct {
	Ops        []uop.Op     // op_set; nil/empty means any op
	Kinds      []uop.ScalarKind // dtype_set by element kind; nil means any
	ArgPred    func(uop.Arg) bool
	Src        []*Pat // positional child patterns ("src: tuple")
	Commutative bool  // try permutations of Src against the node's children
	AllowAnyLen bool  // Src is a required prefix; remaining children are unconstrained
	TailName    string // if set, children beyond len(Src) are captured as a list
	Name        string // capture name for the whole matched node
	ConstOnly   bool   // CVar: matches only CONST nodes
}

// Var returns a pattern that matches any node and binds it to name.
func Var(name string) *Pat { return &Pat{Name: name} }

// CVar returns a pattern that matches any CONST node and binds it to name.
func CVar(name string) *Pat { return &Pat{Name: name, ConstOnly: true} }

// Op returns a pattern constrained to the given opcode(s).
func Op(ops ...uop.Op) *Pat { return &Pat{Ops: ops} }

// WithName attaches a capture name to an existing pattern.
func (p *Pat) WithName(name string) *Pat {
	q := *p
	q.Name = name
	return &q
}

// WithSrc attaches positional child patterns.
func (p *Pat) WithSrc(src ...*Pat) *Pat {
	q := *p
	q.Src = src
	return &q
}

// WithArg attaches an arg predicate.
func (p *Pat) WithArg(pred func(uop.Arg) bool) *Pat {
	q := *p
	q.ArgPred = pred
	return &q
}

// AsCommutative marks the pattern's Src as order-independent.
func (p *Pat) AsCommutative() *Pat {
	q := *p
	q.Commutative = true
	return &q
}

// Match attempts to match u against p, writing captures into b. It returns
// false (and may have partially mutated b) on failure; callers should pass
// a fresh Bindings per top-level match attempt.
func (p *Pat) Match(u *uop.UOp, b *Bindings) bool {
	if p == nil {
		return true
	}
	if u == nil {
		return false
	}
	if p.ConstOnly && u.Op != uop.CONST {
		return false
	}
	if len(p.Ops) > 0 && !containsOp(p.Ops, u.Op) {
		return false
	}
	if len(p.Kinds) > 0 {
		if u.DType == nil || !containsKind(p.Kinds, u.DType.Kind) {
			return false
		}
	}
	if p.ArgPred != nil && !p.ArgPred(u.Arg) {
		return false
	}
	if p.Src != nil {
		if !matchSrc(p, u, b) {
			return false
		}
	}
	if p.Name != "" {
		if existing, ok := b.Nodes[p.Name]; ok {
			if existing != u {
				return false
			}
		} else {
			b.Nodes[p.Name] = u
		}
	}
	return true
}

func matchSrc(p *Pat, u *uop.UOp, b *Bindings) bool {
	if p.AllowAnyLen {
		if len(u.Src) < len(p.Src) {
			return false
		}
	} else if p.TailName == "" && len(u.Src) != len(p.Src) {
		return false
	} else if p.TailName != "" && len(u.Src) < len(p.Src) {
		return false
	}

	if p.Commutative && len(p.Src) == 2 {
		// try identity order, then swapped, as spec.md §9 "Commutative
		// matching" requires for ADD/MUL/AND/OR/MIN/MAX.
		trial := newBindingsFrom(b)
		if matchPositional(p.Src, u.Src[:len(p.Src)], trial) {
			*b = *trial
		} else {
			trial2 := newBindingsFrom(b)
			swapped := []*uop.UOp{u.Src[1], u.Src[0]}
			if !matchPositional(p.Src, swapped, trial2) {
				return false
			}
			*b = *trial2
		}
	} else {
		if !matchPositional(p.Src, u.Src[:len(p.Src)], b) {
			return false
		}
	}
	if p.TailName != "" {
		b.Tails[p.TailName] = append([]*uop.UOp(nil), u.Src[len(p.Src):]...)
	}
	return true
}

func newBindingsFrom(b *Bindings) *Bindings {
	n := newBindings()
	for k, v := range b.Nodes {
		n.Nodes[k] = v
	}
	for k, v := range b.Tails {
		n.Tails[k] = v
	}
	return n
}

func matchPositional(pats []*Pat, src []*uop.UOp, b *Bindings) bool {
	for i, cp := range pats {
		if !cp.Match(src[i], b) {
			return false
		}
	}
	return true
}

func containsOp(ops []uop.Op, o uop.Op) bool {
	for _, x := range ops {
		if x == o {
			return true
		}
	}
	return false
}

func containsKind(ks []uop.ScalarKind, k uop.ScalarKind) bool {
	for _, x := range ks {
		if x == k {
			return true
		}
	}
	return false
}
