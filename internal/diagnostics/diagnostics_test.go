package diagnostics

import (
	"testing"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/stretchr/testify/assert"
)

func TestDiagnosticErrorFormatsCodeAndMessage(t *testing.T) {
	d := Diagnostic{Code: ErrUnknownOp, Message: `unknown op "BOGUS"`}
	assert.Equal(t, `D0100: unknown op "BOGUS"`, d.Error())
}

func TestDescriptionCoversEveryCode(t *testing.T) {
	for _, code := range []string{
		ErrParseSyntax, ErrUnknownOp, ErrWrongArity, ErrBadAtom,
		ErrUnknownDType, ErrUnknownALUOp, ErrLinearizeShape, ErrSanityCheck,
	} {
		assert.NotEqual(t, "unknown diagnostic code", Description(code), "code %s must have a description", code)
	}
}

func TestDescriptionFallsBackForUnrecognizedCode(t *testing.T) {
	assert.Equal(t, "unknown diagnostic code", Description("D9999"))
}

func TestReporterFormatIncludesHeaderAndLocation(t *testing.T) {
	src := "(ALU BOGUS i32 1 2)\n"
	r := NewReporter("fixture.uop", src)
	out := r.Format(Diagnostic{
		Level:    Error,
		Code:     ErrUnknownALUOp,
		Message:  `unknown ALU op "BOGUS"`,
		Position: lexer.Position{Filename: "fixture.uop", Line: 1, Column: 6},
		Length:   5,
	})

	assert.Contains(t, out, "D0104")
	assert.Contains(t, out, `unknown ALU op "BOGUS"`)
	assert.Contains(t, out, "fixture.uop:1:6")
	assert.Contains(t, out, "(ALU BOGUS i32 1 2)", "the offending source line must be quoted back")
}

func TestReporterFormatDrawsCaretUnderOffendingColumn(t *testing.T) {
	src := "(CONST bogus 1)\n"
	r := NewReporter("fixture.uop", src)
	out := r.Format(Diagnostic{
		Level:    Error,
		Code:     ErrUnknownDType,
		Message:  `unknown dtype "bogus"`,
		Position: lexer.Position{Line: 1, Column: 8},
		Length:   5,
	})

	assert.Contains(t, out, "^^^^^", "the caret run must span Length columns")
}

func TestReporterFormatAppendsNotesAndHelp(t *testing.T) {
	src := "(BOGUS)\n"
	r := NewReporter("fixture.uop", src)
	out := r.Format(Diagnostic{
		Level:    Error,
		Code:     ErrUnknownOp,
		Message:  `unknown op "BOGUS"`,
		Position: lexer.Position{Line: 1, Column: 2},
		Length:   5,
		Notes:    []string{"ops are matched case-sensitively"},
		HelpText: "expected one of CONST, DEFINE_VAR, ...",
	})

	assert.Contains(t, out, "note:")
	assert.Contains(t, out, "ops are matched case-sensitively")
	assert.Contains(t, out, "help:")
	assert.Contains(t, out, "expected one of CONST")
}

func TestReporterFormatOmitsSourceLineWhenPositionOutOfRange(t *testing.T) {
	src := "(CONST i32 1)\n"
	r := NewReporter("fixture.uop", src)
	out := r.Format(Diagnostic{
		Level:    Error,
		Code:     ErrSanityCheck,
		Message:  "graph shape invalid",
		Position: lexer.Position{Line: 99, Column: 1},
	})

	assert.Contains(t, out, "D0201")
	assert.Contains(t, out, "fixture.uop:99:1")
}

func TestReporterFormatWithoutCodeOmitsBrackets(t *testing.T) {
	src := "x\n"
	r := NewReporter("fixture.uop", src)
	out := r.Format(Diagnostic{Level: Note, Message: "plain note", Position: lexer.Position{Line: 1, Column: 1}})

	assert.NotContains(t, out, "[]")
	assert.Contains(t, out, "plain note")
}
