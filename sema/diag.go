package sema

import (
	"fmt"
	"io"

	"github.com/tliron/commonlog"
)

// log carries the engine's internal tracing: completions, cache resets,
// stub creation. User-facing problems go through the Reporter instead.
var log = commonlog.GetLogger("corvus.sema")

// ---------------------------------------------------------------------------
// Source positions
// ---------------------------------------------------------------------------

// SrcPos locates a definition or a diagnostic in source. Line and Col are
// 1-based; a zero Line means the position is unknown.
type SrcPos struct {
	File string
	Line int
	Col  int
}

// NoPos is the unknown position.
var NoPos = SrcPos{}

// IsKnown reports whether the position carries real location info.
func (p SrcPos) IsKnown() bool { return p.Line > 0 }

func (p SrcPos) String() string {
	if !p.IsKnown() {
		return "<unknown>"
	}
	if p.Col > 0 {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

// Severity classifies a diagnostic.
type Severity int

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "info"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Diagnostic is one problem report: a severity, a message, and where.
type Diagnostic struct {
	Sev Severity
	Pos SrcPos
	Msg string
}

func (d Diagnostic) String() string {
	if d.Pos.IsKnown() {
		return fmt.Sprintf("%s: %s: %s", d.Pos, d.Sev, d.Msg)
	}
	return fmt.Sprintf("%s: %s", d.Sev, d.Msg)
}

// Reporter receives diagnostics as the engine produces them. Reports must
// not panic; the engine calls them mid-operation.
type Reporter interface {
	Report(d Diagnostic)
}

// ---------------------------------------------------------------------------
// Reporter implementations
// ---------------------------------------------------------------------------

// StoreReporter accumulates diagnostics for later inspection. Loaders use
// one to decide whether a load succeeded; tests use one to assert on
// emitted problems.
type StoreReporter struct {
	Diags []Diagnostic
}

func (r *StoreReporter) Report(d Diagnostic) {
	r.Diags = append(r.Diags, d)
}

// ErrorCount returns the number of stored error-severity diagnostics.
func (r *StoreReporter) ErrorCount() int {
	n := 0
	for _, d := range r.Diags {
		if d.Sev == SevError {
			n++
		}
	}
	return n
}

// Reset drops all stored diagnostics.
func (r *StoreReporter) Reset() { r.Diags = nil }

// ConsoleReporter prints diagnostics to a writer, one per line.
type ConsoleReporter struct {
	W io.Writer
}

func (r *ConsoleReporter) Report(d Diagnostic) {
	fmt.Fprintln(r.W, d.String())
}

// LogReporter routes diagnostics into the logging backend, for embedders
// that want engine problems in their normal log stream.
type LogReporter struct{}

func (LogReporter) Report(d Diagnostic) {
	switch d.Sev {
	case SevError:
		log.Error(d.String())
	case SevWarning:
		log.Warning(d.String())
	default:
		log.Info(d.String())
	}
}
