package uoptext

import (
	"fmt"
	"strconv"
	"strings"

	"uopc/internal/uop"
)

var scalarKindByToken = map[string]uop.ScalarKind{
	"bool":  uop.Bool,
	"i8":    uop.Int8,
	"i16":   uop.Int16,
	"i32":   uop.Int32,
	"i64":   uop.Int64,
	"u8":    uop.Uint8,
	"u16":   uop.Uint16,
	"u32":   uop.Uint32,
	"u64":   uop.Uint64,
	"f16":   uop.Float16,
	"f32":   uop.Float32,
	"f64":   uop.Float64,
	"pyint": uop.PyInt,
}

var tokenByScalarKind = func() map[uop.ScalarKind]string {
	m := make(map[uop.ScalarKind]string, len(scalarKindByToken))
	for tok, k := range scalarKindByToken {
		m[k] = tok
	}
	return m
}()

// parseDType parses a dtype token: an optional leading "*" for a pointer, a
// base scalar token (i32, f32, bool, ...), and an optional "xN" vector-width
// suffix, e.g. "*f32", "i32x4".
func parseDType(tok string) (*uop.DType, error) {
	ptr := false
	if strings.HasPrefix(tok, "*") {
		ptr = true
		tok = tok[1:]
	}
	base, count := tok, 1
	if i := strings.IndexByte(tok, 'x'); i > 0 {
		if n, err := strconv.Atoi(tok[i+1:]); err == nil {
			base, count = tok[:i], n
		}
	}
	kind, ok := scalarKindByToken[base]
	if !ok {
		return nil, fmt.Errorf("uoptext: unknown dtype %q", tok)
	}
	dt := uop.Vec(kind, count)
	if ptr {
		dt = uop.PtrTo(dt)
	}
	return dt, nil
}

// dtypeToken renders dt back into parseDType's surface syntax.
func dtypeToken(dt *uop.DType) string {
	if dt == nil {
		return "void"
	}
	if dt.Ptr != nil {
		return "*" + dtypeToken(dt.Ptr)
	}
	base, ok := tokenByScalarKind[dt.Kind]
	if !ok {
		base = dt.Kind.String()
	}
	if dt.Count > 1 {
		base = fmt.Sprintf("%sx%d", base, dt.Count)
	}
	return base
}
