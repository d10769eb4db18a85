package uoptext

import (
	"fmt"
	"strings"

	"uopc/internal/uop"
)

// Print renders a linearized instruction list back into uoptext, one
// `%N = (OP ...)` line per instruction, with earlier results referenced by
// their `%N` temp name instead of being re-printed inline. This is the
// inverse of Lower+Parse for the flat (post-linearize) shape; Lower alone
// already covers the nested (pre-linearize) shape since hash-consing keeps
// a tree s-expression a faithful round-trip of a UOp graph.
func Print(instrs []*uop.UOp) string {
	name := make(map[*uop.UOp]string, len(instrs))
	for i, n := range instrs {
		name[n] = fmt.Sprintf("%%%d", i)
	}

	var b strings.Builder
	for _, n := range instrs {
		fmt.Fprintf(&b, "%s = %s\n", name[n], renderOp(n, name))
	}
	return b.String()
}

// ref renders one operand: a known temp name if it was itself one of the
// printed instructions, or a recursively-lowered inline s-expression
// otherwise (constants and other pure leaves feeding an instruction are
// never themselves scheduled).
func ref(u *uop.UOp, name map[*uop.UOp]string) string {
	if n, ok := name[u]; ok {
		return n
	}
	return renderOp(u, name)
}

func refAll(src []*uop.UOp, name map[*uop.UOp]string) string {
	parts := make([]string, len(src))
	for i, s := range src {
		parts[i] = ref(s, name)
	}
	return strings.Join(parts, " ")
}

func renderOp(u *uop.UOp, name map[*uop.UOp]string) string {
	switch u.Op {
	case uop.CONST:
		return fmt.Sprintf("(CONST %s %s)", dtypeToken(u.DType), u.Arg.(uop.ConstArg).Scalar())
	case uop.DEFINE_VAR:
		a := u.Arg.(uop.DefineVarArg)
		return fmt.Sprintf("(DEFINE_VAR %s %s %d %d)", a.Name, dtypeToken(u.DType), a.Min, a.Max)
	case uop.DEFINE_ACC:
		return fmt.Sprintf("(DEFINE_ACC %s)", refAll(u.Src, name))
	case uop.DEFINE_LOCAL:
		a := u.Arg.(uop.DefineLocalArg)
		return fmt.Sprintf("(DEFINE_LOCAL %s %s %d)", a.Name, dtypeToken(u.DType.Ptr), a.Size)
	case uop.RANGE:
		a := u.Arg.(uop.RangeArg)
		return fmt.Sprintf("(RANGE %s %s %s %d %v)", dtypeToken(u.DType), ref(u.Src[0], name), ref(u.Src[1], name), a.ID, a.IsReduce)
	case uop.SPECIAL:
		a := u.Arg.(uop.SpecialArg)
		return fmt.Sprintf("(SPECIAL %s %s %d)", dtypeToken(u.DType), a.Name, a.Size)
	case uop.LOAD:
		return fmt.Sprintf("(LOAD %s %s)", dtypeToken(u.DType), refAll(u.Src, name))
	case uop.STORE:
		return fmt.Sprintf("(STORE %s)", refAll(u.Src, name))
	case uop.ALU:
		return fmt.Sprintf("(ALU %s %s %s)", u.Arg.(uop.ALUArg).Op, dtypeToken(u.DType), refAll(u.Src, name))
	case uop.CAST:
		return fmt.Sprintf("(CAST %s %s)", dtypeToken(u.DType), ref(u.Src[0], name))
	case uop.BITCAST:
		return fmt.Sprintf("(BITCAST %s %s)", dtypeToken(u.DType), ref(u.Src[0], name))
	case uop.GEP:
		idx := make([]string, len(u.Arg.(uop.GEPArg).Indices))
		for i, v := range u.Arg.(uop.GEPArg).Indices {
			idx[i] = fmt.Sprintf("%d", v)
		}
		return fmt.Sprintf("(GEP %s %s)", ref(u.Src[0], name), strings.Join(idx, " "))
	case uop.VECTORIZE:
		return fmt.Sprintf("(VECTORIZE %s)", refAll(u.Src, name))
	case uop.EXPAND:
		return fmt.Sprintf("(EXPAND %s %s)", renderAxes(u.Arg.(uop.ExpandArg).Axes), refAll(u.Src, name))
	case uop.CONTRACT:
		return fmt.Sprintf("(CONTRACT %s %s)", renderAxes(u.Arg.(uop.ContractArg).Axes), ref(u.Src[0], name))
	case uop.REDUCE:
		return fmt.Sprintf("(REDUCE %s %s)", u.Arg.(uop.ALUArg).Op, refAll(u.Src, name))
	case uop.ASSIGN:
		return fmt.Sprintf("(ASSIGN %s %s)", ref(u.Src[0], name), ref(u.Src[1], name))
	case uop.IF:
		return fmt.Sprintf("(IF %s)", ref(u.Src[0], name))
	case uop.BARRIER:
		return fmt.Sprintf("(BARRIER %s)", refAll(u.Src, name))
	case uop.NOOP:
		return "(NOOP)"
	case uop.SINK:
		return fmt.Sprintf("(SINK %s)", refAll(u.Src, name))
	case uop.ENDRANGE:
		return fmt.Sprintf("(ENDRANGE %s)", ref(u.Src[0], name))
	case uop.ENDIF:
		return fmt.Sprintf("(ENDIF %s)", ref(u.Src[0], name))
	default:
		return fmt.Sprintf("(%s %s)", u.Op, refAll(u.Src, name))
	}
}

func renderAxes(axes []uop.AxisExtent) string {
	parts := make([]string, len(axes))
	for i, a := range axes {
		parts[i] = fmt.Sprintf("(%d %d)", a.Axis, a.Extent)
	}
	return "(" + strings.Join(parts, " ") + ")"
}
