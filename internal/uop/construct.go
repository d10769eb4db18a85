package uop

// Convenience constructors, mirroring spec.md §4.1.

func (s *Store) ConstLike(dtype *DType, v Scalar) *UOp {
	return s.New(CONST, dtype, nil, Const(v))
}

func (s *Store) ConstInt(dtype *DType, v int64) *UOp {
	return s.ConstLike(dtype, IntScalar(dtype.Kind, v))
}

func (s *Store) ConstFloat(dtype *DType, v float64) *UOp {
	return s.ConstLike(dtype, FloatScalar(dtype.Kind, v))
}

func (s *Store) ConstBool(v bool) *UOp {
	return s.ConstLike(Scalar(Bool), BoolScalar(v))
}

// VectorConst builds a VECTORIZE-of-CONST: a single CONST node whose arg
// carries one value per lane (spec.md §4.1).
func (s *Store) VectorConst(dtype *DType, vals []Scalar) *UOp {
	return s.New(CONST, dtype.Vectorized(len(vals)), nil, ConstArg{Vals: vals})
}

func (s *Store) DefineVar(name string, dtype *DType, min, max int64) *UOp {
	return s.New(DEFINE_VAR, dtype, nil, DefineVarArg{Name: name, Min: min, Max: max})
}

func (s *Store) Range(dtype *DType, start, end *UOp, id int, isReduce bool) *UOp {
	return s.New(RANGE, dtype, []*UOp{start, end}, RangeArg{ID: id, IsReduce: isReduce})
}

func (s *Store) Special(dtype *DType, name string, size int) *UOp {
	return s.New(SPECIAL, dtype, nil, SpecialArg{Name: name, Size: size})
}

func (s *Store) Alu(op ALUOp, dtype *DType, src ...*UOp) *UOp {
	return s.New(ALU, dtype, src, ALUArg{Op: op})
}

func (s *Store) Add(a, b *UOp) *UOp    { return s.Alu(ADD, a.DType, a, b) }
func (s *Store) Sub(a, b *UOp) *UOp    { return s.Alu(SUB, a.DType, a, b) }
func (s *Store) Mul(a, b *UOp) *UOp    { return s.Alu(MUL, a.DType, a, b) }
func (s *Store) Neg(a *UOp) *UOp       { return s.Alu(NEG, a.DType, a) }
func (s *Store) IDiv(a, b *UOp) *UOp   { return s.Alu(IDIV, a.DType, a, b) }
func (s *Store) FDiv(a, b *UOp) *UOp   { return s.Alu(FDIV, a.DType, a, b) }
func (s *Store) Mod(a, b *UOp) *UOp    { return s.Alu(MOD, a.DType, a, b) }
func (s *Store) And(a, b *UOp) *UOp    { return s.Alu(AND, a.DType, a, b) }
func (s *Store) Or(a, b *UOp) *UOp     { return s.Alu(OR, a.DType, a, b) }

func (s *Store) Lt(a, b *UOp) *UOp  { return s.Alu(CMPLT, Scalar(Bool), a, b) }
func (s *Store) Ge(a, b *UOp) *UOp  { return s.Lt(a, b).Not(s) }
func (s *Store) Ne(a, b *UOp) *UOp  { return s.Alu(CMPNE, Scalar(Bool), a, b) }
func (s *Store) Eq(a, b *UOp) *UOp  { return s.Ne(a, b).Not(s) }
func (s *Store) Max(a, b *UOp) *UOp { return s.Alu(MAX, a.DType, a, b) }
func (s *Store) Min(a, b *UOp) *UOp { return s.Alu(MIN, a.DType, a, b) }

func (s *Store) Where(cond, t, f *UOp) *UOp { return s.Alu(WHERE, t.DType, cond, t, f) }

// Not expresses boolean negation as an XOR against True, matching the
// teacher-corpus idiom of avoiding a dedicated NOT opcode.
func (u *UOp) Not(s *Store) *UOp {
	return s.Alu(XOR, Scalar(Bool), u, s.ConstBool(true))
}

func (s *Store) Cast(u *UOp, dtype *DType) *UOp {
	return s.New(CAST, dtype, []*UOp{u}, nil)
}

func (s *Store) Bitcast(u *UOp, dtype *DType) *UOp {
	return s.New(BITCAST, dtype, []*UOp{u}, nil)
}

func (s *Store) Gep(u *UOp, indices ...int) *UOp {
	dtype := u.DType.Scalarized()
	if len(indices) > 1 {
		dtype = u.DType.Scalarized().Vectorized(len(indices))
	}
	return s.New(GEP, dtype, []*UOp{u}, GEPArg{Indices: indices})
}

func (s *Store) Vectorize(elems ...*UOp) *UOp {
	dtype := elems[0].DType.Vectorized(len(elems))
	return s.New(VECTORIZE, dtype, elems, nil)
}

// Load models LOAD(buf, idx[, alt, gate]).
func (s *Store) Load(dtype *DType, src ...*UOp) *UOp {
	return s.New(LOAD, dtype, src, nil)
}

// Store models STORE(buf, idx, value[, gate]).
func (s *Store) StoreOp(src ...*UOp) *UOp {
	return s.New(STORE, nil, src, nil)
}

func (s *Store) DefineAcc(identity *UOp, ranges ...*UOp) *UOp {
	src := append([]*UOp{identity}, ranges...)
	return s.New(DEFINE_ACC, identity.DType, src, DefineAccArg{Number: s.NextAccNumber()})
}

func (s *Store) Assign(target, value *UOp) *UOp {
	return s.New(ASSIGN, target.DType, []*UOp{target, value}, nil)
}

func (s *Store) If(cond *UOp) *UOp {
	return s.New(IF, nil, []*UOp{cond}, nil)
}

func (s *Store) Barrier(src ...*UOp) *UOp {
	return s.New(BARRIER, nil, src, nil)
}

func (s *Store) Noop() *UOp {
	return s.New(NOOP, nil, nil, nil)
}

func (s *Store) Sink(meta map[string]string, src ...*UOp) *UOp {
	return s.New(SINK, nil, src, SinkArg{Meta: meta})
}

func (s *Store) Reduce(op ALUOp, body *UOp, ranges ...*UOp) *UOp {
	src := append([]*UOp{body}, ranges...)
	return s.New(REDUCE, body.DType, src, ALUArg{Op: op})
}

func (s *Store) Expand(axes []AxisExtent, src ...*UOp) *UOp {
	var dtype *DType
	if len(src) > 0 {
		dtype = src[0].DType
	}
	return s.New(EXPAND, dtype, src, ExpandArg{Axes: axes})
}

func (s *Store) Contract(axes []AxisExtent, src *UOp) *UOp {
	n := 1
	for _, a := range axes {
		n *= a.Extent
	}
	return s.New(CONTRACT, src.DType.Vectorized(n*src.DType.Count), []*UOp{src}, ContractArg{Axes: axes})
}

func (s *Store) DefineLocal(name string, dtype *DType, size int) *UOp {
	return s.New(DEFINE_LOCAL, PtrTo(dtype), nil, DefineLocalArg{Name: name, Size: size})
}

// EndRange closes the scope opened by a RANGE, inserted by the linearizer
// (spec.md §4.11 step 5).
func (s *Store) EndRange(rng *UOp) *UOp {
	return s.New(ENDRANGE, nil, []*UOp{rng}, nil)
}

// EndIf closes the scope opened by an IF, inserted by the linearizer
// (spec.md §4.11 step 5).
func (s *Store) EndIf(iff *UOp) *UOp {
	return s.New(ENDIF, nil, []*UOp{iff}, nil)
}
