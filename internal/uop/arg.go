package uop

import (
	"fmt"
	"sort"
	"strings"
)

// Arg is the opcode-specific payload carried by a UOp (spec.md §3). Every
// concrete arg type knows how to render a stable, order-sensitive key so
// the hash-cons Store can fold it into a node's identity.
type Arg interface {
	argKey() string
}

func argKey(a Arg) string {
	if a == nil {
		return "-"
	}
	return a.argKey()
}

// ConstArg is the payload of a CONST node. Vals has length 1 for a scalar
// constant and length >1 to represent the per-lane values of a
// VECTORIZE-of-CONST (spec.md §4.1).
type ConstArg struct {
	Vals []Scalar
}

// Scalar is a tagged union over the constant kinds the core folds.
type Scalar struct {
	Kind ScalarKind
	I    int64
	F    float64
	B    bool
}

func IntScalar(k ScalarKind, v int64) Scalar    { return Scalar{Kind: k, I: v} }
func FloatScalar(k ScalarKind, v float64) Scalar { return Scalar{Kind: k, F: v} }
func BoolScalar(v bool) Scalar                   { return Scalar{Kind: Bool, B: v} }

func (s Scalar) String() string {
	switch {
	case s.Kind == Bool:
		return fmt.Sprintf("%v", s.B)
	case s.Kind.IsFloat():
		return fmt.Sprintf("%g", s.F)
	default:
		return fmt.Sprintf("%d", s.I)
	}
}

func Const(v Scalar) ConstArg { return ConstArg{Vals: []Scalar{v}} }

func (c ConstArg) argKey() string {
	parts := make([]string, len(c.Vals))
	for i, v := range c.Vals {
		parts[i] = fmt.Sprintf("%d:%d:%g:%v", v.Kind, v.I, v.F, v.B)
	}
	return "C(" + strings.Join(parts, ",") + ")"
}

// Scalar returns the single constant value of a scalar CONST's arg.
func (c ConstArg) Scalar() Scalar { return c.Vals[0] }

// ALUArg is the payload of an ALU node: the BinaryOps/UnaryOps/TernaryOps tag.
type ALUArg struct{ Op ALUOp }

func (a ALUArg) argKey() string { return fmt.Sprintf("A(%d)", a.Op) }

// GEPArg is the payload of a GEP node: the lane index tuple.
type GEPArg struct{ Indices []int }

func (g GEPArg) argKey() string { return fmt.Sprintf("G%v", g.Indices) }

// RangeArg is the payload of a RANGE node: its loop id and reduce flag.
type RangeArg struct {
	ID       int
	IsReduce bool
}

func (r RangeArg) argKey() string { return fmt.Sprintf("R(%d,%v)", r.ID, r.IsReduce) }

// AxisExtent is one (axis, extent) pair of an EXPAND descriptor.
type AxisExtent struct {
	Axis   int
	Extent int
}

// ExpandArg is the payload of an EXPAND node: the axis descriptor tuple.
type ExpandArg struct{ Axes []AxisExtent }

func (e ExpandArg) argKey() string {
	parts := make([]string, len(e.Axes))
	for i, a := range e.Axes {
		parts[i] = fmt.Sprintf("%d:%d", a.Axis, a.Extent)
	}
	return "E(" + strings.Join(parts, ",") + ")"
}

// Prod returns the product of all axis extents.
func (e ExpandArg) Prod() int {
	p := 1
	for _, a := range e.Axes {
		p *= a.Extent
	}
	return p
}

// ContractArg is the payload of a CONTRACT node: the axes it selects out of
// its source's EXPAND descriptor.
type ContractArg struct{ Axes []AxisExtent }

func (c ContractArg) argKey() string {
	parts := make([]string, len(c.Axes))
	for i, a := range c.Axes {
		parts[i] = fmt.Sprintf("%d:%d", a.Axis, a.Extent)
	}
	return "K(" + strings.Join(parts, ",") + ")"
}

// DefineVarArg is the payload of a DEFINE_VAR node.
type DefineVarArg struct {
	Name     string
	Min, Max int64
}

func (d DefineVarArg) argKey() string { return fmt.Sprintf("V(%s,%d,%d)", d.Name, d.Min, d.Max) }

// DefineAccArg tags a DEFINE_ACC with its scheduling-order acc_number
// (spec.md §4.8 step 2) so that two accumulators with otherwise identical
// src never collapse into the same node.
type DefineAccArg struct{ Number int }

func (d DefineAccArg) argKey() string { return fmt.Sprintf("ACC(%d)", d.Number) }

// SpecialArg is the payload of a SPECIAL node (a backend-defined builtin
// dimension, e.g. a thread/block index).
type SpecialArg struct {
	Name string
	Size int
}

func (s SpecialArg) argKey() string { return fmt.Sprintf("S(%s,%d)", s.Name, s.Size) }

// SinkArg carries optional SINK metadata (spec.md §3).
type SinkArg struct{ Meta map[string]string }

func (s SinkArg) argKey() string {
	keys := make([]string, 0, len(s.Meta))
	for k := range s.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("SINK(")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s;", k, s.Meta[k])
	}
	b.WriteString(")")
	return b.String()
}

// DefineLocalArg names a DEFINE_LOCAL scratch buffer and its element count.
type DefineLocalArg struct {
	Name string
	Size int
}

func (d DefineLocalArg) argKey() string { return fmt.Sprintf("L(%s,%d)", d.Name, d.Size) }
