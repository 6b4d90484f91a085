package bridge

import (
	"math"

	"go.uber.org/zap"

	"github.com/wippyai/docbridge/compiler"
	"github.com/wippyai/docbridge/diag"
	"github.com/wippyai/docbridge/envelope"
	"github.com/wippyai/docbridge/errors"
	"github.com/wippyai/docbridge/syntax"
	"github.com/wippyai/docbridge/world"
)

// Payloads of the result envelopes.
type (
	HTMLOutcome   = diag.Warned[envelope.Result[string, []diag.Diagnostic]]
	SVGOutcome    = diag.Warned[envelope.Result[[]string, []diag.Diagnostic]]
	RasterOutcome = diag.Warned[envelope.Result[[]envelope.Hex, []diag.Diagnostic]]
	QueryOutcome  = diag.Warned[envelope.Result[string, []diag.Diagnostic]]
	EvalOutcome   = envelope.Result[string, []diag.Diagnostic]
)

func succeeded[T any](r *diag.Resolver, v T, warnings []diag.SourceDiagnostic) diag.Warned[envelope.Result[T, []diag.Diagnostic]] {
	return diag.ResolveWarned(r, envelope.Ok[T, []diag.Diagnostic](v), warnings)
}

func failed[T any](r *diag.Resolver, errs, warnings []diag.SourceDiagnostic) diag.Warned[envelope.Result[T, []diag.Diagnostic]] {
	return diag.ResolveWarned(r, envelope.Err[T](r.Diagnostics(errs)), warnings)
}

// compile runs one pass over w. It does not reset the world.
func (b *Bridge) compile(w *world.World) compiler.Output {
	out := b.engine.Compile(w)
	fields := []zap.Field{zap.Int("warnings", len(out.Warnings)), zap.Int("errors", len(out.Errors))}
	if out.Document != nil {
		fields = append(fields, zap.Int("pages", len(out.Document.Pages)))
	}
	b.logger.Debug("compiled", fields...)
	return out
}

// CompileHTML compiles h to an html string. Libraries without the html
// feature yield an error diagnostic.
func (b *Bridge) CompileHTML(h int64) (env envelope.Envelope, err error) {
	err = b.borrowWorld(h, func(w *world.World) error {
		r := resolver(w)
		var result HTMLOutcome
		if !w.Library().Features.Has(compiler.FeatureHTML) {
			result = failed[string](r, []diag.SourceDiagnostic{
				diag.Errorf(syntax.Detached, "html export is only available when the html feature is enabled").
					WithHint("create the library with feature bit 0 set"),
			}, nil)
		} else {
			out := b.compile(w)
			if out.Document == nil {
				result = failed[string](r, out.Errors, out.Warnings)
			} else {
				html, warnings := b.engine.HTML(out.Document)
				result = succeeded(r, html, append(out.Warnings, warnings...))
			}
		}
		env, err = pack(b, result)
		return err
	})
	return env, err
}

// pageRange clamps [from, to) to a document of n pages. Negative bounds
// mean n.
func pageRange(from, to int32, n int) (start, end int) {
	clamp := func(v int32) int {
		if v < 0 || int(v) > n {
			return n
		}
		return int(v)
	}
	start, end = clamp(from), clamp(to)
	if start > end {
		start = end
	}
	return start, end
}

// CompileSVG compiles h and renders pages [from, to) as SVG.
func (b *Bridge) CompileSVG(h int64, from, to int32) (env envelope.Envelope, err error) {
	err = b.borrowWorld(h, func(w *world.World) error {
		r := resolver(w)
		out := b.compile(w)
		var result SVGOutcome
		if out.Document == nil {
			result = failed[[]string](r, out.Errors, out.Warnings)
		} else {
			start, end := pageRange(from, to, len(out.Document.Pages))
			pages := make([]string, 0, end-start)
			for _, p := range out.Document.Pages[start:end] {
				pages = append(pages, b.engine.SVG(p))
			}
			result = succeeded(r, pages, out.Warnings)
		}
		env, err = pack(b, result)
		return err
	})
	return env, err
}

// CompileRaster compiles h and renders pages [from, to) as PNG at ppi
// pixels per inch.
func (b *Bridge) CompileRaster(h int64, from, to int32, ppi float32) (env envelope.Envelope, err error) {
	if !(ppi > 0) || math.IsInf(float64(ppi), 0) {
		return envelope.Envelope{}, errors.FromError(errors.IllegalArgument,
			errors.InvalidInput(errors.PhaseCompile, "pixels per inch must be positive"))
	}
	err = b.borrowWorld(h, func(w *world.World) error {
		r := resolver(w)
		out := b.compile(w)
		var result RasterOutcome
		if out.Document == nil {
			result = failed[[]envelope.Hex](r, out.Errors, out.Warnings)
		} else {
			start, end := pageRange(from, to, len(out.Document.Pages))
			pages := make([]envelope.Hex, 0, end-start)
			var errs []diag.SourceDiagnostic
			for _, p := range out.Document.Pages[start:end] {
				data, err := b.engine.PNG(p, ppi)
				if err != nil {
					errs = append(errs, diag.Errorf(syntax.Detached, "failed to encode page %d: %v", p.Number, err))
					continue
				}
				pages = append(pages, data)
			}
			if len(errs) > 0 {
				result = failed[[]envelope.Hex](r, errs, out.Warnings)
			} else {
				result = succeeded(r, pages, out.Warnings)
			}
		}
		env, err = pack(b, result)
		return err
	})
	return env, err
}
