// Package uop implements the micro-operation graph: an immutable,
// hash-consed expression DAG and the dtype system that annotates it.
package uop

// Op is the closed opcode enumeration a UOp node is tagged with.
type Op int

const (
	CONST Op = iota
	DEFINE_VAR
	DEFINE_ACC
	DEFINE_LOCAL
	RANGE
	SPECIAL
	LOAD
	STORE
	ALU
	CAST
	BITCAST
	GEP
	VECTORIZE
	EXPAND
	CONTRACT
	REDUCE
	REDUCE_AXIS
	WMMA
	ASSIGN
	IF
	BARRIER
	SINK
	NOOP
	// ENDRANGE and ENDIF are not part of the upstream closed enumeration;
	// the linearizer inserts them as scope-end markers (spec.md §4.11).
	ENDRANGE
	ENDIF
	// SHAPETRACKER never originates in this package; it is only checked
	// for absence by type_verify, mirroring an upstream node kind that
	// must already be gone by the time a graph reaches the rewriter.
	SHAPETRACKER
)

var opNames = map[Op]string{
	CONST:        "CONST",
	DEFINE_VAR:   "DEFINE_VAR",
	DEFINE_ACC:   "DEFINE_ACC",
	DEFINE_LOCAL: "DEFINE_LOCAL",
	RANGE:        "RANGE",
	SPECIAL:      "SPECIAL",
	LOAD:         "LOAD",
	STORE:        "STORE",
	ALU:          "ALU",
	CAST:         "CAST",
	BITCAST:      "BITCAST",
	GEP:          "GEP",
	VECTORIZE:    "VECTORIZE",
	EXPAND:       "EXPAND",
	CONTRACT:     "CONTRACT",
	REDUCE:       "REDUCE",
	REDUCE_AXIS:  "REDUCE_AXIS",
	WMMA:         "WMMA",
	ASSIGN:       "ASSIGN",
	IF:           "IF",
	BARRIER:      "BARRIER",
	SINK:         "SINK",
	NOOP:         "NOOP",
	ENDRANGE:     "ENDRANGE",
	ENDIF:        "ENDIF",
	SHAPETRACKER: "SHAPETRACKER",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return "UNKNOWN_OP"
}

// EndForUOp maps a scope-opening op to the op of its matching scope-end
// marker, per spec.md §4.11 step 2 (RANGE->ENDRANGE, IF->ENDIF).
var EndForUOp = map[Op]Op{
	RANGE: ENDRANGE,
	IF:    ENDIF,
}

// HighLevel is the set of ops that must never survive linearization
// (spec.md §4.11 step 6, §8 "No residual high-level ops").
var HighLevel = map[Op]bool{
	EXPAND:       true,
	CONTRACT:     true,
	REDUCE:       true,
	REDUCE_AXIS:  true,
	SHAPETRACKER: true,
}
