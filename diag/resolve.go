package diag

import (
	"github.com/wippyai/docbridge/syntax"
)

// SourceProvider loads the parsed source of a file. World implements it.
type SourceProvider interface {
	Source(id syntax.FileID) (*syntax.Source, error)
}

// Resolver turns interned spans into absolute positions. It never fails:
// anything it cannot resolve is reported with Unresolved fields.
type Resolver struct {
	Sources SourceProvider
	// Files resolves span refs. Nil means the process-wide interner.
	Files *syntax.Interner
}

// NewResolver creates a resolver reading sources from p.
func NewResolver(p SourceProvider) *Resolver {
	return &Resolver{Sources: p}
}

func (r *Resolver) lookup(ref syntax.FileRef) (syntax.FileID, bool) {
	if r.Files != nil {
		return r.Files.Lookup(ref)
	}
	return syntax.Lookup(ref)
}

func unresolved(native uint64, file *syntax.FileID) AbsoluteSpan {
	return AbsoluteSpan{
		Native:    native,
		File:      file,
		StartInd:  Unresolved,
		EndInd:    Unresolved,
		StartLine: Unresolved,
		StartCol:  Unresolved,
		EndLine:   Unresolved,
		EndCol:    Unresolved,
	}
}

// Span resolves s.
func (r *Resolver) Span(s syntax.Span) AbsoluteSpan {
	native := uint64(s)
	if s.IsDetached() {
		return unresolved(native, nil)
	}
	id, ok := r.lookup(s.File())
	if !ok {
		return unresolved(native, nil)
	}
	file := &id
	if r.Sources == nil {
		return unresolved(native, file)
	}
	src, err := r.Sources.Source(id)
	if err != nil || src == nil {
		return unresolved(native, file)
	}
	start, end, ok := src.Range(s)
	if !ok {
		return unresolved(native, file)
	}
	sl, sc, ok1 := src.LineCol(start)
	el, ec, ok2 := src.LineCol(end)
	if !ok1 || !ok2 {
		return unresolved(native, file)
	}
	return AbsoluteSpan{
		Native:    native,
		File:      file,
		StartInd:  int64(start),
		EndInd:    int64(end),
		StartLine: int64(sl),
		StartCol:  int64(sc),
		EndLine:   int64(el),
		EndCol:    int64(ec),
	}
}

// Diagnostic resolves d and its trace, preserving frame order.
func (r *Resolver) Diagnostic(d SourceDiagnostic) Diagnostic {
	out := Diagnostic{
		Severity: d.Severity,
		Span:     r.Span(d.Span),
		Message:  d.Message,
		Trace:    make([]SpannedTracepoint, 0, len(d.Trace)),
		Hints:    d.Hints,
	}
	if out.Hints == nil {
		out.Hints = []string{}
	}
	for _, t := range d.Trace {
		out.Trace = append(out.Trace, SpannedTracepoint{V: t.V, Span: r.Span(t.Span)})
	}
	return out
}

// Diagnostics resolves ds element-wise. The result is never nil.
func (r *Resolver) Diagnostics(ds []SourceDiagnostic) []Diagnostic {
	out := make([]Diagnostic, 0, len(ds))
	for _, d := range ds {
		out = append(out, r.Diagnostic(d))
	}
	return out
}

// ResolveWarned resolves the warnings attached to output.
func ResolveWarned[T any](r *Resolver, output T, warnings []SourceDiagnostic) Warned[T] {
	return Warned[T]{Output: output, Warnings: r.Diagnostics(warnings)}
}
