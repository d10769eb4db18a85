package pattern

import "uopc/internal/uop"

// Callback inspects a match and either returns a replacement UOp or nil if
// the rule does not apply (spec.md §3, §7: "returning None is not an error").
type Callback func(b *Bindings, matched *uop.UOp) *uop.UOp

// Rule is one (pattern, callback) pair of a Matcher.
type Rule struct {
	Pat  *Pat
	Name string
	Fn   Callback
}

// Matcher is an ordered PatternMatcher: rules are tried in registration
// order and the first match whose callback returns non-nil wins (spec.md
// §3 "PatternMatcher"). Rules are indexed by root op for early rejection.
type Matcher struct {
	rules []Rule
	byOp  map[uop.Op][]int
	any   []int
}

// New compiles an ordered rule list into a Matcher.
func New(rules ...Rule) *Matcher {
	m := &Matcher{rules: rules, byOp: map[uop.Op][]int{}}
	for i, r := range rules {
		if len(r.Pat.Ops) == 0 {
			m.any = append(m.any, i)
			continue
		}
		for _, op := range r.Pat.Ops {
			m.byOp[op] = append(m.byOp[op], i)
		}
	}
	return m
}

// Merge returns a new Matcher running m's rules before extra's, preserving
// each side's relative order. Used to append a backend's extra_matcher
// after the main reducer pass (spec.md §6).
func Merge(m *Matcher, extra *Matcher) *Matcher {
	if extra == nil {
		return m
	}
	return New(append(append([]Rule(nil), m.rules...), extra.rules...)...)
}

// candidateOrder returns rule indices in registration order, keyed by op.
func (m *Matcher) candidateOrder(op uop.Op) []int {
	byOp := m.byOp[op]
	if len(m.any) == 0 {
		return byOp
	}
	merged := make([]int, 0, len(byOp)+len(m.any))
	i, j := 0, 0
	for i < len(byOp) && j < len(m.any) {
		if byOp[i] < m.any[j] {
			merged = append(merged, byOp[i])
			i++
		} else {
			merged = append(merged, m.any[j])
			j++
		}
	}
	merged = append(merged, byOp[i:]...)
	merged = append(merged, m.any[j:]...)
	return merged
}

// Rewrite tries every applicable rule against u in registration order and
// returns the first non-nil callback result, or nil if none apply.
func (m *Matcher) Rewrite(u *uop.UOp) *uop.UOp {
	for _, idx := range m.candidateOrder(u.Op) {
		r := m.rules[idx]
		b := newBindings()
		if !r.Pat.Match(u, b) {
			continue
		}
		if res := r.Fn(b, u); res != nil {
			return res
		}
	}
	return nil
}
