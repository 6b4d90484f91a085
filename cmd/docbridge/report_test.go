package main

import (
	"bytes"
	"strings"
	"testing"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/docbridge/diag"
	"github.com/wippyai/docbridge/host"
	"github.com/wippyai/docbridge/syntax"
)

func span(line, startCol, endCol int64) diag.AbsoluteSpan {
	id := syntax.NewFileID(nil, "/main.typ")
	return diag.AbsoluteSpan{File: &id, StartInd: 0, StartLine: line, StartCol: startCol, EndLine: line, EndCol: endCol}
}

func TestCaret(t *testing.T) {
	tests := []struct {
		line          string
		span          diag.AbsoluteSpan
		offset, width int
	}{
		{"#let x = foo", span(1, 10, 13), 9, 3},
		{"日本 foo", span(1, 4, 7), 5, 3},
		{"abc", span(1, 3, 3), 2, 1},
		{"abc", span(1, 9, 12), 3, 1},
	}
	for _, tt := range tests {
		offset, width := caret(tt.line, tt.span)
		if offset != tt.offset || width != tt.width {
			t.Errorf("caret(%q) = %d, %d, want %d, %d", tt.line, offset, width, tt.offset, tt.width)
		}
	}
}

func TestReport(t *testing.T) {
	var out bytes.Buffer
	files := host.Memory{"/main.typ": []byte("= Title\n#let x = foo\n")}
	r := newReporter(&out, files, false)

	n := r.Report([]diag.Diagnostic{
		{Severity: diag.SeverityWarning, Span: diag.AbsoluteSpan{StartInd: diag.Unresolved}, Message: "careful"},
		{Severity: diag.SeverityError, Span: span(2, 10, 13), Message: "unknown variable: foo", Hints: []string{"define it first"}},
	})
	if n != 1 {
		t.Errorf("errors = %d, want 1", n)
	}
	got := out.String()
	for _, want := range []string{
		"warning: careful\n",
		"error: unknown variable: foo\n",
		"/main.typ:2:10",
		"2 │ #let x = foo\n",
		"  │          ^^^\n",
		"hint: define it first\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report lacks %q:\n%s", want, got)
		}
	}
}

func TestLibraryInputs(t *testing.T) {
	if got := libraryInputs(nil); got != "(:)" {
		t.Errorf("empty = %q", got)
	}
	got := libraryInputs(map[string]string{"mode": "draft", "author": `A "B"`})
	if want := `("author": "A \"B\"", "mode": "draft")`; got != want {
		t.Errorf("inputs = %q, want %q", got, want)
	}
}

func TestConvertArg(t *testing.T) {
	if v, err := convertArg("-3", wit.S32{}); err != nil || v != int32(-3) {
		t.Errorf("s32 = %v, %v", v, err)
	}
	if v, err := convertArg("", wit.S32{}); err != nil || v != int32(0) {
		t.Errorf("empty s32 = %v, %v", v, err)
	}
	if v, err := convertArg("72.5", wit.F32{}); err != nil || v != float32(72.5) {
		t.Errorf("f32 = %v, %v", v, err)
	}
	if _, err := convertArg("x", wit.U32{}); err == nil {
		t.Error("bad u32 accepted")
	}
	if v, _ := convertArg("heading", nil); v != "heading" {
		t.Errorf("text = %v", v)
	}
}
