// Package backend describes the contract a code-generator backend presents
// to the rewriter and linearizer (spec.md §6 "Backend descriptor"), plus an
// ambient YAML/env-driven configuration loader around that contract.
package backend

import (
	"uopc/internal/pattern"
	"uopc/internal/uop"
)

// Descriptor is the Go form of spec.md §6's backend descriptor: the only
// facts the core consumes about a target.
type Descriptor struct {
	// SupportsFloat4 gates the float4/image memory-op folding of spec.md §4.9.
	SupportsFloat4 bool
	// CodeForOp is the set of ALU opcodes the backend can emit natively.
	// Any transcendental op absent from this set triggers expansion
	// (spec.md §4.5).
	CodeForOp map[uop.ALUOp]bool
	// ExtraMatcher is an optional backend-specific rule set run after the
	// main reducer pass (spec.md §6).
	ExtraMatcher *pattern.Matcher
}

// SupportsOp reports whether op is in the backend's native opcode set.
func (d *Descriptor) SupportsOp(op uop.ALUOp) bool {
	if d == nil || d.CodeForOp == nil {
		return false
	}
	return d.CodeForOp[op]
}

// Generic is a conservative default descriptor: no native transcendentals,
// no float4 support, no extra rules. Used when the CLI is not given a
// backend profile.
func Generic() *Descriptor {
	return &Descriptor{CodeForOp: map[uop.ALUOp]bool{}}
}
