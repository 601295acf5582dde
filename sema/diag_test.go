package sema

import (
	"strings"
	"testing"
)

func TestSrcPosString(t *testing.T) {
	tests := []struct {
		pos  SrcPos
		want string
	}{
		{NoPos, "<unknown>"},
		{SrcPos{File: "shapes.cv", Line: 12}, "shapes.cv:12"},
		{SrcPos{File: "shapes.cv", Line: 12, Col: 7}, "shapes.cv:12:7"},
	}
	for _, tt := range tests {
		if got := tt.pos.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
	if NoPos.IsKnown() {
		t.Error("NoPos should not be known")
	}
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{Sev: SevError, Pos: SrcPos{File: "a.cv", Line: 3}, Msg: "boom"}
	if got := d.String(); got != "a.cv:3: error: boom" {
		t.Errorf("String() = %q", got)
	}
	d = Diagnostic{Sev: SevWarning, Msg: "careful"}
	if got := d.String(); got != "warning: careful" {
		t.Errorf("String() = %q", got)
	}
}

func TestStoreReporter(t *testing.T) {
	r := &StoreReporter{}
	r.Report(Diagnostic{Sev: SevWarning, Msg: "w"})
	r.Report(Diagnostic{Sev: SevError, Msg: "e1"})
	r.Report(Diagnostic{Sev: SevError, Msg: "e2"})

	if len(r.Diags) != 3 {
		t.Errorf("stored %d diagnostics, want 3", len(r.Diags))
	}
	if r.ErrorCount() != 2 {
		t.Errorf("ErrorCount = %d, want 2", r.ErrorCount())
	}
	r.Reset()
	if len(r.Diags) != 0 || r.ErrorCount() != 0 {
		t.Error("Reset should drop everything")
	}
}

func TestConsoleReporter(t *testing.T) {
	var buf strings.Builder
	r := &ConsoleReporter{W: &buf}
	r.Report(Diagnostic{Sev: SevError, Msg: "missing parent"})
	if got := buf.String(); got != "error: missing parent\n" {
		t.Errorf("console output = %q", got)
	}
}

func TestContextReporting(t *testing.T) {
	ctx, rep := newTestContext()
	ctx.Error(SrcPos{File: "m.cv", Line: 9}, "bad %s", "thing")
	ctx.Warning(NoPos, "odd %d", 7)

	if rep.ErrorCount() != 1 {
		t.Fatalf("ErrorCount = %d, want 1", rep.ErrorCount())
	}
	if rep.Diags[0].Msg != "bad thing" || rep.Diags[0].Pos.Line != 9 {
		t.Errorf("error diagnostic = %+v", rep.Diags[0])
	}
	if rep.Diags[1].Sev != SevWarning || rep.Diags[1].Msg != "odd 7" {
		t.Errorf("warning diagnostic = %+v", rep.Diags[1])
	}
}
