package diag

import (
	"fmt"

	"github.com/wippyai/docbridge/syntax"
)

// Spanned attaches a source span to a value.
type Spanned[T any] struct {
	V    T
	Span syntax.Span
}

// SourceDiagnostic is a diagnostic as the engine produces it, with interned
// spans that only make sense inside this process.
type SourceDiagnostic struct {
	Severity Severity
	Span     syntax.Span
	Message  string
	Trace    []Spanned[Tracepoint]
	Hints    []string
}

// Errorf creates an error diagnostic at span.
func Errorf(span syntax.Span, format string, args ...any) SourceDiagnostic {
	return SourceDiagnostic{Severity: SeverityError, Span: span, Message: fmt.Sprintf(format, args...)}
}

// Warningf creates a warning diagnostic at span.
func Warningf(span syntax.Span, format string, args ...any) SourceDiagnostic {
	return SourceDiagnostic{Severity: SeverityWarning, Span: span, Message: fmt.Sprintf(format, args...)}
}

// FromFileError turns a file failure into an error diagnostic at span.
func FromFileError(span syntax.Span, err error) SourceDiagnostic {
	d := SourceDiagnostic{Severity: SeverityError, Span: span, Message: err.Error()}
	if fe, ok := err.(*FileError); ok && fe.Kind == FileInvalidUTF8 {
		d.Hints = append(d.Hints, "source files must be encoded as utf-8")
	}
	return d
}

// WithHint returns d with hint appended.
func (d SourceDiagnostic) WithHint(hint string) SourceDiagnostic {
	d.Hints = append(append([]string(nil), d.Hints...), hint)
	return d
}

// WithTrace returns d with one more trace frame. Frames are appended
// innermost first.
func (d SourceDiagnostic) WithTrace(span syntax.Span, point Tracepoint) SourceDiagnostic {
	d.Trace = append(append([]Spanned[Tracepoint](nil), d.Trace...), Spanned[Tracepoint]{V: point, Span: span})
	return d
}

func (d SourceDiagnostic) Error() string {
	return d.Message
}

// HasErrors reports whether any diagnostic in ds is an error.
func HasErrors(ds []SourceDiagnostic) bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Unresolved is the value of every positional field that could not be
// resolved.
const Unresolved int64 = -1

// AbsoluteSpan is a span resolved against its source. Native is the raw
// interned span for hosts that hand it back.
type AbsoluteSpan struct {
	Native    uint64         `json:"native"`
	File      *syntax.FileID `json:"file"`
	StartInd  int64          `json:"start_ind"`
	EndInd    int64          `json:"end_ind"`
	StartLine int64          `json:"start_line"`
	StartCol  int64          `json:"start_col"`
	EndLine   int64          `json:"end_line"`
	EndCol    int64          `json:"end_col"`
}

// Resolved reports whether the positional fields are set.
func (s AbsoluteSpan) Resolved() bool {
	return s.StartInd != Unresolved
}

func (s AbsoluteSpan) String() string {
	file := "<detached>"
	if s.File != nil {
		file = s.File.String()
	}
	if !s.Resolved() {
		return file
	}
	return fmt.Sprintf("%s:%d:%d", file, s.StartLine, s.StartCol)
}

// SpannedTracepoint is a trace frame with a resolved span.
type SpannedTracepoint struct {
	V    Tracepoint   `json:"v"`
	Span AbsoluteSpan `json:"span"`
}

// Diagnostic is the host-facing form of a SourceDiagnostic.
type Diagnostic struct {
	Severity Severity            `json:"severity"`
	Span     AbsoluteSpan        `json:"span"`
	Message  string              `json:"message"`
	Trace    []SpannedTracepoint `json:"trace"`
	Hints    []string            `json:"hints"`
}

// Warned pairs an output with the warnings produced while computing it.
type Warned[T any] struct {
	Output   T            `json:"output"`
	Warnings []Diagnostic `json:"warnings"`
}
