// Package debuglog implements the DEBUG-gated tracing spec.md §6 describes
// as an environment variable influencing observability but not semantics:
// at DEBUG>=1 pass boundaries and rewrite/linearize counts are logged.
// RuleFired formats a DEBUG>=2 line for one rule firing with its
// before/after node; no pass in this module calls it.
package debuglog

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Logger is the single tracing sink every pass above it writes through.
type Logger struct {
	level int
	out   io.Writer
	color bool

	pass  *color.Color
	rule  *color.Color
	warn  *color.Color
}

// New builds a Logger reading its verbosity from the DEBUG environment
// variable (spec.md §6) and disabling color when CI is set or stdout is not
// a terminal, mirroring how the teacher gates its own CLI color output.
func New() *Logger {
	level := 0
	if v, err := strconv.Atoi(os.Getenv("DEBUG")); err == nil {
		level = v
	}
	useColor := isatty.IsTerminal(os.Stdout.Fd()) && os.Getenv("CI") == ""
	return &Logger{
		level: level,
		out:   os.Stderr,
		color: useColor,
		pass:  color.New(color.FgCyan, color.Bold),
		rule:  color.New(color.FgYellow),
		warn:  color.New(color.FgRed, color.Bold),
	}
}

func (l *Logger) Enabled(level int) bool { return l != nil && l.level >= level }

func (l *Logger) colorize(c *color.Color, format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if l.color {
		return c.Sprint(msg)
	}
	return msg
}

// PassStart logs entry into a named pass (DEBUG>=1).
func (l *Logger) PassStart(name string) time.Time {
	if !l.Enabled(1) {
		return time.Time{}
	}
	fmt.Fprintln(l.out, l.colorize(l.pass, "== %s ==", name))
	return time.Now()
}

// PassDone logs a pass's node/rewrite counts and elapsed time (DEBUG>=1).
func (l *Logger) PassDone(name string, start time.Time, nodes, rewrites int) {
	if !l.Enabled(1) {
		return
	}
	elapsed := time.Duration(0)
	if !start.IsZero() {
		elapsed = time.Since(start)
	}
	fmt.Fprintln(l.out, l.colorize(l.pass, "-- %s: %s nodes, %s rewrites in %s",
		name, humanize.Comma(int64(nodes)), humanize.Comma(int64(rewrites)), elapsed))
}

// RuleFired logs one rule application with its before/after representation
// (DEBUG>=2).
func (l *Logger) RuleFired(ruleName, before, after string) {
	if !l.Enabled(2) {
		return
	}
	fmt.Fprintln(l.out, l.colorize(l.rule, "  [%s] %s -> %s", ruleName, before, after))
}

// Warn logs a non-fatal condition such as a skipped loop-collapse
// precondition (spec.md §7 "the loop-collapse callback emits a debug
// warning and returns None").
func (l *Logger) Warn(format string, args ...any) {
	if !l.Enabled(1) {
		return
	}
	fmt.Fprintln(l.out, l.colorize(l.warn, "warn: "+format, args...))
}
