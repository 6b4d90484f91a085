package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/docbridge/boundary"
	"github.com/wippyai/docbridge/compiler"
	"github.com/wippyai/docbridge/diag"
	"github.com/wippyai/docbridge/envelope"
	"github.com/wippyai/docbridge/errors"
	"github.com/wippyai/docbridge/syntax"
	"github.com/wippyai/docbridge/world"
)

// QueryFormat selects how query matches are serialized.
type QueryFormat int32

const (
	QueryJSON QueryFormat = iota
	QueryJSONCompact
	QueryYAML
)

func (f QueryFormat) String() string {
	switch f {
	case QueryJSON:
		return "json"
	case QueryJSONCompact:
		return "json-compact"
	case QueryYAML:
		return "yaml"
	}
	return fmt.Sprintf("format(%d)", int32(f))
}

// ParseQueryFormat resolves a format name as accepted by String.
func ParseQueryFormat(name string) (QueryFormat, bool) {
	for _, f := range []QueryFormat{QueryJSON, QueryJSONCompact, QueryYAML} {
		if f.String() == name {
			return f, true
		}
	}
	return 0, false
}

func (f QueryFormat) encode(v any) (string, error) {
	switch f {
	case QueryJSON, QueryJSONCompact:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if f == QueryJSON {
			enc.SetIndent("", "  ")
		}
		if err := enc.Encode(v); err != nil {
			return "", err
		}
		return strings.TrimSuffix(buf.String(), "\n"), nil
	case QueryYAML:
		out, err := yaml.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	return "", fmt.Errorf("unknown query format %d", int32(f))
}

// selectorFailure folds evaluation errors into one diagnostic.
func selectorFailure(messages []string) diag.SourceDiagnostic {
	var b strings.Builder
	b.WriteString("failed to evaluate selector")
	for i, m := range messages {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(m)
	}
	return diag.Errorf(syntax.Detached, "%s", b.String())
}

// Query resets h, compiles it and serializes the elements matched by the
// selector source, which is consumed.
func (b *Bridge) Query(h int64, selector boundary.BufferHandle, format int32) (env envelope.Envelope, err error) {
	src, err := b.input(selector)
	if err != nil {
		return envelope.Envelope{}, err
	}
	f := QueryFormat(format)
	if f < QueryJSON || f > QueryYAML {
		return envelope.Envelope{}, errors.FromError(errors.IllegalArgument,
			errors.New(errors.PhaseQuery, errors.KindInvalidInput).Value(format).Detail("unknown output format %d", format).Build())
	}

	err = b.borrowWorld(h, func(w *world.World) error {
		w.Reset()
		env, err = pack(b, b.query(w, src, f))
		return err
	})
	return env, err
}

func (b *Bridge) query(w *world.World, src string, f QueryFormat) QueryOutcome {
	r := resolver(w)
	out := b.compile(w)
	if out.Document == nil {
		return failed[string](r, out.Errors, out.Warnings)
	}

	sel, errs := b.engine.Eval(w, src, syntax.ModeCode)
	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Message
		}
		return failed[string](r, []diag.SourceDiagnostic{selectorFailure(msgs)}, out.Warnings)
	}
	found, err := b.engine.Select(out.Document, sel)
	if err != nil {
		return failed[string](r, []diag.SourceDiagnostic{selectorFailure([]string{err.Error()})}, out.Warnings)
	}

	text, err := f.encode(found)
	if err != nil {
		return failed[string](r, []diag.SourceDiagnostic{
			diag.Errorf(syntax.Detached, "failed to serialize query result: %v", err),
		}, out.Warnings)
	}
	return succeeded(r, text, out.Warnings)
}

// DetachedEval resets h and evaluates the source, which is consumed, as
// code. The value is returned as JSON.
func (b *Bridge) DetachedEval(h int64, source boundary.BufferHandle) (env envelope.Envelope, err error) {
	src, err := b.input(source)
	if err != nil {
		return envelope.Envelope{}, err
	}
	err = b.borrowWorld(h, func(w *world.World) error {
		w.Reset()
		r := resolver(w)
		var result EvalOutcome
		v, errs := b.engine.Eval(w, src, syntax.ModeCode)
		if len(errs) > 0 {
			result = envelope.Err[string](r.Diagnostics(errs))
		} else if text, err := QueryJSONCompact.encode(v); err != nil {
			result = envelope.Err[string](r.Diagnostics([]diag.SourceDiagnostic{
				diag.Errorf(syntax.Detached, "cannot serialize %s: %v", compiler.TypeName(v), err),
			}))
		} else {
			result = envelope.Ok[string, []diag.Diagnostic](text)
		}
		env, err = pack(b, result)
		return err
	})
	return env, err
}
