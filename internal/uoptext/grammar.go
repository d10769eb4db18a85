// Package uoptext implements a minimal s-expression surface syntax for
// uop.UOp graphs and linearized instruction lists, parsed with
// github.com/alecthomas/participle/v2, the teacher's own parser toolkit.
// It exists purely so the CLI and table-driven tests can express fixtures
// as text instead of nested Go struct literals; it has no bearing on
// rewriter/linearizer semantics.
package uoptext

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/fatih/color"

	"uopc/internal/diagnostics"
)

var lex = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `;[^\n]*`, nil},
		{"Float", `-?[0-9]+\.[0-9]+`, nil},
		{"Integer", `-?(0x[0-9a-fA-F]+|[0-9]+)`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_.*]*`, nil},
		{"String", `"(\\"|[^"])*"`, nil},
		{"Punct", `[()]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})

// SExpr is either an atom (Ident/Int/Float/Str) or a parenthesized list of
// SExprs; every uoptext construct is built from nested instances of this
// single node type and given meaning by Lower.
type SExpr struct {
	Pos   lexer.Position
	Ident string   `  @Ident`
	Int   string   `| @Integer`
	Float string   `| @Float`
	Str   string   `| @String`
	List  []*SExpr `| "(" @@* ")"`
}

func (e *SExpr) isAtom() bool { return e.List == nil }

func newParser() (*participle.Parser[SExpr], error) {
	return participle.Build[SExpr](
		participle.Lexer(lex),
		participle.Elide("Whitespace", "Comment"),
		participle.UseLookahead(2),
	)
}

// Parse parses one top-level s-expression from src.
func Parse(src string) (*SExpr, error) {
	p, err := newParser()
	if err != nil {
		return nil, fmt.Errorf("uoptext: failed to build parser: %w", err)
	}
	e, err := p.ParseString("", src)
	if err != nil {
		reportParseError(src, err)
		return nil, err
	}
	return e, nil
}

// reportParseError prints a caret-style parse error via diagnostics.Reporter,
// matching the kanso toolchain's own ParseFile diagnostics but anchored to
// the participle lexer position instead of an AST position.
func reportParseError(src string, err error) {
	pe, ok := err.(participle.Error)
	if !ok {
		color.Red("uoptext: unexpected error: %s", err)
		return
	}
	r := diagnostics.NewReporter("<uoptext>", src)
	fmt.Print(r.Format(diagnostics.Diagnostic{
		Level:    diagnostics.Error,
		Code:     diagnostics.ErrParseSyntax,
		Message:  pe.Message(),
		Position: pe.Position(),
		Length:   1,
	}))
}
