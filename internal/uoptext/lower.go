package uoptext

import (
	"fmt"
	"strconv"
	"strings"

	"uopc/internal/diagnostics"
	"uopc/internal/uop"
)

func atomText(e *SExpr) (string, bool) {
	switch {
	case e.Ident != "":
		return e.Ident, true
	case e.Int != "":
		return e.Int, true
	case e.Float != "":
		return e.Float, true
	case e.Str != "":
		return strings.Trim(e.Str, `"`), true
	}
	return "", false
}

func parseIntAtom(e *SExpr) (int64, error) {
	txt, ok := atomText(e)
	if !ok {
		return 0, fmt.Errorf("uoptext: expected integer at %s", e.Pos)
	}
	return strconv.ParseInt(txt, 0, 64)
}

func parseFloatAtom(e *SExpr) (float64, error) {
	txt, ok := atomText(e)
	if !ok {
		return 0, fmt.Errorf("uoptext: expected float at %s", e.Pos)
	}
	return strconv.ParseFloat(txt, 64)
}

func parseBoolAtom(e *SExpr) (bool, error) {
	txt, ok := atomText(e)
	if !ok {
		return false, fmt.Errorf("uoptext: expected true/false at %s", e.Pos)
	}
	switch txt {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("uoptext: expected true/false, got %q", txt)
}

func parseNameAtom(e *SExpr) (string, error) {
	txt, ok := atomText(e)
	if !ok {
		return "", fmt.Errorf("uoptext: expected a name at %s", e.Pos)
	}
	return txt, nil
}

func lowerAll(s *uop.Store, exprs []*SExpr) ([]*uop.UOp, error) {
	out := make([]*uop.UOp, 0, len(exprs))
	for _, e := range exprs {
		u, err := Lower(s, e)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// Lower turns one parsed s-expression into the UOp it denotes, interning
// every node through s. Sharing of repeated subexpressions falls out of
// hash-consing for free: writing the same leaf twice yields the same
// pointer without any explicit let/ref binding in the surface syntax.
func Lower(s *uop.Store, e *SExpr) (*uop.UOp, error) {
	if e.isAtom() {
		return nil, diagnostics.Diagnostic{
			Level: diagnostics.Error, Code: diagnostics.ErrBadAtom,
			Message: fmt.Sprintf("expected a parenthesized expression, got %q", e.Ident), Position: e.Pos,
		}
	}
	if len(e.List) == 0 || e.List[0].Ident == "" {
		return nil, diagnostics.Diagnostic{
			Level: diagnostics.Error, Code: diagnostics.ErrBadAtom,
			Message: "empty or malformed expression", Position: e.Pos,
		}
	}
	head := e.List[0].Ident
	args := e.List[1:]

	switch head {
	case "CONST":
		return lowerConst(s, args)
	case "DEFINE_VAR":
		return lowerDefineVar(s, args)
	case "DEFINE_ACC":
		return lowerDefineAcc(s, args)
	case "DEFINE_LOCAL":
		return lowerDefineLocal(s, args)
	case "RANGE":
		return lowerRange(s, args)
	case "SPECIAL":
		return lowerSpecial(s, args)
	case "LOAD":
		return lowerLoad(s, args)
	case "STORE":
		return lowerStore(s, args)
	case "ALU":
		return lowerAlu(s, args)
	case "CAST":
		return lowerCast(s, args, s.Cast)
	case "BITCAST":
		return lowerCast(s, args, s.Bitcast)
	case "GEP":
		return lowerGep(s, args)
	case "VECTORIZE":
		return lowerVariadic(s, args, s.Vectorize)
	case "EXPAND":
		return lowerExpand(s, args)
	case "CONTRACT":
		return lowerContract(s, args)
	case "REDUCE":
		return lowerReduce(s, args)
	case "ASSIGN":
		return lowerAssign(s, args)
	case "IF":
		return lowerIf(s, args)
	case "BARRIER":
		return lowerVariadic(s, args, s.Barrier)
	case "NOOP":
		return s.Noop(), nil
	case "SINK":
		return lowerVariadic(s, args, func(src ...*uop.UOp) *uop.UOp { return s.Sink(nil, src...) })
	default:
		return nil, diagnostics.Diagnostic{
			Level: diagnostics.Error, Code: diagnostics.ErrUnknownOp,
			Message: fmt.Sprintf("unknown op %q", head), Position: e.List[0].Pos,
			HelpText: "expected one of CONST, DEFINE_VAR, DEFINE_ACC, DEFINE_LOCAL, RANGE, SPECIAL, LOAD, STORE, ALU, CAST, BITCAST, GEP, VECTORIZE, EXPAND, CONTRACT, REDUCE, ASSIGN, IF, BARRIER, NOOP, SINK",
		}
	}
}

func lowerConst(s *uop.Store, args []*SExpr) (*uop.UOp, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("uoptext: CONST wants (dtype value)")
	}
	dtTok, ok := atomText(args[0])
	if !ok {
		return nil, fmt.Errorf("uoptext: CONST dtype must be an atom")
	}
	dt, err := parseDType(dtTok)
	if err != nil {
		return nil, err
	}
	switch {
	case dt.Kind == uop.Bool:
		b, err := parseBoolAtom(args[1])
		if err != nil {
			return nil, err
		}
		return s.ConstBool(b), nil
	case dt.Kind.IsFloat():
		f, err := parseFloatAtom(args[1])
		if err != nil {
			return nil, err
		}
		return s.ConstFloat(dt, f), nil
	default:
		i, err := parseIntAtom(args[1])
		if err != nil {
			return nil, err
		}
		return s.ConstInt(dt, i), nil
	}
}

func lowerDefineVar(s *uop.Store, args []*SExpr) (*uop.UOp, error) {
	if len(args) != 4 {
		return nil, fmt.Errorf("uoptext: DEFINE_VAR wants (name dtype min max)")
	}
	name, err := parseNameAtom(args[0])
	if err != nil {
		return nil, err
	}
	dtTok, _ := atomText(args[1])
	dt, err := parseDType(dtTok)
	if err != nil {
		return nil, err
	}
	min, err := parseIntAtom(args[2])
	if err != nil {
		return nil, err
	}
	max, err := parseIntAtom(args[3])
	if err != nil {
		return nil, err
	}
	return s.DefineVar(name, dt, min, max), nil
}

func lowerDefineAcc(s *uop.Store, args []*SExpr) (*uop.UOp, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("uoptext: DEFINE_ACC wants (identity range...)")
	}
	identity, err := Lower(s, args[0])
	if err != nil {
		return nil, err
	}
	ranges, err := lowerAll(s, args[1:])
	if err != nil {
		return nil, err
	}
	return s.DefineAcc(identity, ranges...), nil
}

func lowerDefineLocal(s *uop.Store, args []*SExpr) (*uop.UOp, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("uoptext: DEFINE_LOCAL wants (name dtype size)")
	}
	name, err := parseNameAtom(args[0])
	if err != nil {
		return nil, err
	}
	dtTok, _ := atomText(args[1])
	dt, err := parseDType(dtTok)
	if err != nil {
		return nil, err
	}
	size, err := parseIntAtom(args[2])
	if err != nil {
		return nil, err
	}
	return s.DefineLocal(name, dt, int(size)), nil
}

func lowerRange(s *uop.Store, args []*SExpr) (*uop.UOp, error) {
	if len(args) != 5 {
		return nil, fmt.Errorf("uoptext: RANGE wants (dtype start end id is_reduce)")
	}
	dtTok, _ := atomText(args[0])
	dt, err := parseDType(dtTok)
	if err != nil {
		return nil, err
	}
	start, err := Lower(s, args[1])
	if err != nil {
		return nil, err
	}
	end, err := Lower(s, args[2])
	if err != nil {
		return nil, err
	}
	id, err := parseIntAtom(args[3])
	if err != nil {
		return nil, err
	}
	isReduce, err := parseBoolAtom(args[4])
	if err != nil {
		return nil, err
	}
	return s.Range(dt, start, end, int(id), isReduce), nil
}

func lowerSpecial(s *uop.Store, args []*SExpr) (*uop.UOp, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("uoptext: SPECIAL wants (dtype name size)")
	}
	dtTok, _ := atomText(args[0])
	dt, err := parseDType(dtTok)
	if err != nil {
		return nil, err
	}
	name, err := parseNameAtom(args[1])
	if err != nil {
		return nil, err
	}
	size, err := parseIntAtom(args[2])
	if err != nil {
		return nil, err
	}
	return s.Special(dt, name, int(size)), nil
}

func lowerLoad(s *uop.Store, args []*SExpr) (*uop.UOp, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("uoptext: LOAD wants (dtype src...)")
	}
	dtTok, _ := atomText(args[0])
	dt, err := parseDType(dtTok)
	if err != nil {
		return nil, err
	}
	src, err := lowerAll(s, args[1:])
	if err != nil {
		return nil, err
	}
	return s.Load(dt, src...), nil
}

func lowerStore(s *uop.Store, args []*SExpr) (*uop.UOp, error) {
	src, err := lowerAll(s, args)
	if err != nil {
		return nil, err
	}
	return s.StoreOp(src...), nil
}

func lowerAlu(s *uop.Store, args []*SExpr) (*uop.UOp, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("uoptext: ALU wants (opname dtype src...)")
	}
	opTok, ok := atomText(args[0])
	if !ok {
		return nil, fmt.Errorf("uoptext: ALU opname must be an atom")
	}
	op, ok := uop.ALUOpByName(opTok)
	if !ok {
		return nil, fmt.Errorf("uoptext: unknown ALU op %q", opTok)
	}
	dtTok, _ := atomText(args[1])
	dt, err := parseDType(dtTok)
	if err != nil {
		return nil, err
	}
	src, err := lowerAll(s, args[2:])
	if err != nil {
		return nil, err
	}
	return s.Alu(op, dt, src...), nil
}

func lowerCast(s *uop.Store, args []*SExpr, ctor func(*uop.UOp, *uop.DType) *uop.UOp) (*uop.UOp, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("uoptext: CAST/BITCAST wants (dtype src)")
	}
	dtTok, _ := atomText(args[0])
	dt, err := parseDType(dtTok)
	if err != nil {
		return nil, err
	}
	src, err := Lower(s, args[1])
	if err != nil {
		return nil, err
	}
	return ctor(src, dt), nil
}

func lowerGep(s *uop.Store, args []*SExpr) (*uop.UOp, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("uoptext: GEP wants (src idx...)")
	}
	src, err := Lower(s, args[0])
	if err != nil {
		return nil, err
	}
	idx := make([]int, 0, len(args)-1)
	for _, a := range args[1:] {
		n, err := parseIntAtom(a)
		if err != nil {
			return nil, err
		}
		idx = append(idx, int(n))
	}
	return s.Gep(src, idx...), nil
}

func lowerVariadic(s *uop.Store, args []*SExpr, ctor func(...*uop.UOp) *uop.UOp) (*uop.UOp, error) {
	src, err := lowerAll(s, args)
	if err != nil {
		return nil, err
	}
	return ctor(src...), nil
}

func lowerAssign(s *uop.Store, args []*SExpr) (*uop.UOp, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("uoptext: ASSIGN wants (target value)")
	}
	target, err := Lower(s, args[0])
	if err != nil {
		return nil, err
	}
	value, err := Lower(s, args[1])
	if err != nil {
		return nil, err
	}
	return s.Assign(target, value), nil
}

func lowerIf(s *uop.Store, args []*SExpr) (*uop.UOp, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("uoptext: IF wants (cond)")
	}
	cond, err := Lower(s, args[0])
	if err != nil {
		return nil, err
	}
	return s.If(cond), nil
}

func parseAxes(e *SExpr) ([]uop.AxisExtent, error) {
	if e.isAtom() {
		return nil, fmt.Errorf("uoptext: expected an axis list at %s", e.Pos)
	}
	axes := make([]uop.AxisExtent, 0, len(e.List))
	for _, pair := range e.List {
		if pair.isAtom() || len(pair.List) != 2 {
			return nil, fmt.Errorf("uoptext: expected an (axis extent) pair at %s", pair.Pos)
		}
		axis, err := parseIntAtom(pair.List[0])
		if err != nil {
			return nil, err
		}
		extent, err := parseIntAtom(pair.List[1])
		if err != nil {
			return nil, err
		}
		axes = append(axes, uop.AxisExtent{Axis: int(axis), Extent: int(extent)})
	}
	return axes, nil
}

func lowerExpand(s *uop.Store, args []*SExpr) (*uop.UOp, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("uoptext: EXPAND wants (axes src)")
	}
	axes, err := parseAxes(args[0])
	if err != nil {
		return nil, err
	}
	src, err := Lower(s, args[1])
	if err != nil {
		return nil, err
	}
	return s.Expand(axes, src), nil
}

func lowerContract(s *uop.Store, args []*SExpr) (*uop.UOp, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("uoptext: CONTRACT wants (axes src)")
	}
	axes, err := parseAxes(args[0])
	if err != nil {
		return nil, err
	}
	src, err := Lower(s, args[1])
	if err != nil {
		return nil, err
	}
	return s.Contract(axes, src), nil
}

func lowerReduce(s *uop.Store, args []*SExpr) (*uop.UOp, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("uoptext: REDUCE wants (opname body range...)")
	}
	opTok, ok := atomText(args[0])
	if !ok {
		return nil, fmt.Errorf("uoptext: REDUCE opname must be an atom")
	}
	op, ok := uop.ALUOpByName(opTok)
	if !ok {
		return nil, fmt.Errorf("uoptext: unknown ALU op %q", opTok)
	}
	body, err := Lower(s, args[1])
	if err != nil {
		return nil, err
	}
	ranges, err := lowerAll(s, args[2:])
	if err != nil {
		return nil, err
	}
	return s.Reduce(op, body, ranges...), nil
}
