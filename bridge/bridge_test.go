package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/docbridge/boundary"
	"github.com/wippyai/docbridge/compiler"
	"github.com/wippyai/docbridge/compiler/mini"
	"github.com/wippyai/docbridge/diag"
	"github.com/wippyai/docbridge/envelope"
	"github.com/wippyai/docbridge/errors"
	"github.com/wippyai/docbridge/host"
	"github.com/wippyai/docbridge/syntax"
	"github.com/wippyai/docbridge/world"
)

const twoPages = `= Introduction <intro>
Some *bold* text.

== Details

#pagebreak()
= Conclusion
`

func newBridge(t *testing.T, opts Options) *Bridge {
	t.Helper()
	ctx := context.Background()
	b, err := New(ctx, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if n := b.Arena().Live(); n != 0 {
			t.Errorf("%d buffers leaked", n)
		}
		b.Close(ctx)
	})
	return b
}

func unpack[T any](t *testing.T, b *Bridge, env envelope.Envelope) T {
	t.Helper()
	v, err := envelope.Unpack[T](b.Arena(), b.Codec(), nil, env)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	return v
}

func wrap(t *testing.T, b *Bridge, s string) boundary.BufferHandle {
	t.Helper()
	h, err := b.Arena().WrapString(s)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

// openDoc opens a world whose main file is an overlay. Any file request
// that reaches the host is counted.
func openDoc(t *testing.T, b *Bridge, features int32, main string) (int64, *int) {
	t.Helper()
	lib, err := b.OpenLibrary(features, "(:)")
	if err != nil {
		t.Fatalf("OpenLibrary: %v", err)
	}
	requests := 0
	r := &host.Responder{Arena: b.Arena(), Codec: b.Codec()}
	files := r.Files(host.Memory{})
	h, err := b.OpenWorld(WorldSpec{
		Library:  lib,
		MainPath: "/main.typ",
		Overlays: map[string][]byte{"main.typ": []byte(main)},
		Files: func(desc boundary.BufferHandle) envelope.Envelope {
			requests++
			return files(desc)
		},
	})
	if err != nil {
		t.Fatalf("OpenWorld: %v", err)
	}
	if err := b.FreeLibrary(lib); err != nil {
		t.Fatalf("FreeLibrary: %v", err)
	}
	return h, &requests
}

func messages(ds []diag.Diagnostic) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Message
	}
	return out
}

func exceptionKind(t *testing.T, err error) errors.ExceptionKind {
	t.Helper()
	var exc *errors.Exception
	if !stderrors.As(err, &exc) {
		t.Fatalf("error %v (%T) is not an exception", err, err)
	}
	return exc.Kind
}

func TestHelloCompilesToOnePage(t *testing.T) {
	b := newBridge(t, Options{Engine: mini.New()})
	h, requests := openDoc(t, b, 0, "Hello")

	env, err := b.CompileSVG(h, 0, -1)
	if err != nil {
		t.Fatalf("CompileSVG: %v", err)
	}
	out := unpack[SVGOutcome](t, b, env)
	pages, errs, ok := out.Output.Unpack()
	if !ok {
		t.Fatalf("compile failed: %v", messages(errs))
	}
	if len(pages) != 1 || !strings.Contains(pages[0], "Hello") {
		t.Fatalf("pages = %q", pages)
	}
	if len(out.Warnings) != 0 {
		t.Errorf("warnings = %v", messages(out.Warnings))
	}
	if *requests != 0 {
		t.Errorf("file callback called %d times", *requests)
	}
}

func TestMissingMainReportsFile(t *testing.T) {
	b := newBridge(t, Options{})
	lib, err := b.OpenLibrary(0, "(:)")
	if err != nil {
		t.Fatal(err)
	}
	r := &host.Responder{Arena: b.Arena(), Codec: b.Codec()}
	now, err := envelope.Pack(b.Arena(), b.Codec(), *world.System())
	if err != nil {
		t.Fatal(err)
	}
	ex := b.NewWorld(lib, r.Main("/main.typ"), r.Files(host.Memory{}), now, 0)
	if ex.Failed() {
		exc, _ := ex.Exception(b.Arena(), b.Codec())
		t.Fatalf("NewWorld: %v", exc)
	}

	env, err := b.CompileSVG(ex.Handle, 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	out := unpack[SVGOutcome](t, b, env)
	if out.Output.IsOk() {
		t.Fatalf("compile succeeded with %d pages", len(*out.Output.Ok))
	}
	errs := *out.Output.Err
	if diff := cmp.Diff([]string{"file not found (searched at /main.typ)"}, messages(errs)); diff != "" {
		t.Fatalf("diagnostics mismatch (-want +got):\n%s", diff)
	}
	if errs[0].Severity != diag.SeverityError {
		t.Errorf("severity = %v", errs[0].Severity)
	}
}

func TestQuery(t *testing.T) {
	b := newBridge(t, Options{})
	h, _ := openDoc(t, b, 0, twoPages)

	t.Run("undefined selector", func(t *testing.T) {
		env, err := b.Query(h, wrap(t, b, "nope"), int32(QueryJSON))
		if err != nil {
			t.Fatal(err)
		}
		out := unpack[QueryOutcome](t, b, env)
		if out.Output.IsOk() {
			t.Fatalf("query succeeded: %s", *out.Output.Ok)
		}
		want := []string{"failed to evaluate selector: unknown variable: nope"}
		if diff := cmp.Diff(want, messages(*out.Output.Err)); diff != "" {
			t.Fatalf("diagnostics mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("not a selector", func(t *testing.T) {
		env, err := b.Query(h, wrap(t, b, "1"), int32(QueryJSON))
		if err != nil {
			t.Fatal(err)
		}
		out := unpack[QueryOutcome](t, b, env)
		want := []string{"failed to evaluate selector: expected label, selector, or function, found integer"}
		if out.Output.Err == nil {
			t.Fatal("query succeeded")
		}
		if diff := cmp.Diff(want, messages(*out.Output.Err)); diff != "" {
			t.Fatalf("diagnostics mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("compact json", func(t *testing.T) {
		env, err := b.Query(h, wrap(t, b, "heading.where(level: 1)"), int32(QueryJSONCompact))
		if err != nil {
			t.Fatal(err)
		}
		out := unpack[QueryOutcome](t, b, env)
		text, errs, ok := out.Output.Unpack()
		if !ok {
			t.Fatalf("query failed: %v", messages(errs))
		}
		if strings.Contains(text, "\n") {
			t.Errorf("compact output has newlines: %s", text)
		}
		var found []map[string]any
		if err := json.Unmarshal([]byte(text), &found); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, text)
		}
		if len(found) != 2 || found[0]["func"] != "heading" {
			t.Errorf("found = %v", found)
		}
	})

	t.Run("pretty json", func(t *testing.T) {
		env, err := b.Query(h, wrap(t, b, "<intro>"), int32(QueryJSON))
		if err != nil {
			t.Fatal(err)
		}
		text, _, ok := unpack[QueryOutcome](t, b, env).Output.Unpack()
		if !ok || !strings.HasPrefix(text, "[\n  {") {
			t.Errorf("pretty output = %q", text)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		env, err := b.Query(h, wrap(t, b, "heading"), int32(QueryYAML))
		if err != nil {
			t.Fatal(err)
		}
		text, _, ok := unpack[QueryOutcome](t, b, env).Output.Unpack()
		if !ok || !strings.Contains(text, "func: heading") {
			t.Errorf("yaml output = %q", text)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := b.Query(h, wrap(t, b, "heading"), 9)
		if kind := exceptionKind(t, err); kind != errors.IllegalArgument {
			t.Errorf("kind = %v", kind)
		}
	})
}

func TestPageRange(t *testing.T) {
	tests := []struct {
		from, to   int32
		start, end int
	}{
		{0, 1, 0, 1},
		{0, -1, 0, 2},
		{1, 5, 1, 2},
		{5, 1, 1, 1},
		{-1, 0, 0, 0},
		{3, 4, 2, 2},
	}
	for _, tt := range tests {
		start, end := pageRange(tt.from, tt.to, 2)
		if start != tt.start || end != tt.end {
			t.Errorf("pageRange(%d, %d) = [%d, %d), want [%d, %d)", tt.from, tt.to, start, end, tt.start, tt.end)
		}
	}
}

func TestCompileRanges(t *testing.T) {
	b := newBridge(t, Options{})
	h, _ := openDoc(t, b, 0, twoPages)

	for _, tt := range []struct {
		from, to int32
		want     int
	}{{0, -1, 2}, {1, 5, 1}, {5, 1, 0}} {
		env, err := b.CompileSVG(h, tt.from, tt.to)
		if err != nil {
			t.Fatal(err)
		}
		pages, _, ok := unpack[SVGOutcome](t, b, env).Output.Unpack()
		if !ok || len(pages) != tt.want {
			t.Errorf("CompileSVG(%d, %d) = %d pages, want %d", tt.from, tt.to, len(pages), tt.want)
		}
	}

	env, err := b.CompileRaster(h, 1, 2, 36)
	if err != nil {
		t.Fatal(err)
	}
	images, errs, ok := unpack[RasterOutcome](t, b, env).Output.Unpack()
	if !ok || len(images) != 1 {
		t.Fatalf("CompileRaster = %d images, %v", len(images), messages(errs))
	}
	if _, err := png.Decode(bytes.NewReader(images[0])); err != nil {
		t.Errorf("page is not a PNG: %v", err)
	}

	if _, err := b.CompileRaster(h, 0, 1, 0); exceptionKind(t, err) != errors.IllegalArgument {
		t.Errorf("zero ppi: %v", err)
	}
}

func TestHTMLRequiresFeature(t *testing.T) {
	b := newBridge(t, Options{})

	plain, _ := openDoc(t, b, 0, "Some *bold*")
	env, err := b.CompileHTML(plain)
	if err != nil {
		t.Fatal(err)
	}
	out := unpack[HTMLOutcome](t, b, env)
	if out.Output.IsOk() || !strings.Contains((*out.Output.Err)[0].Message, "html feature") {
		t.Fatalf("html without feature = %+v", out.Output)
	}

	enabled, _ := openDoc(t, b, 1, "Some *bold*")
	env, err = b.CompileHTML(enabled)
	if err != nil {
		t.Fatal(err)
	}
	html, errs, ok := unpack[HTMLOutcome](t, b, env).Output.Unpack()
	if !ok || !strings.Contains(html, "<strong>bold</strong>") {
		t.Fatalf("html = %q, %v", html, messages(errs))
	}
}

func TestDetachedEval(t *testing.T) {
	b := newBridge(t, Options{})
	lib, err := b.OpenLibrary(0, `(mode: "draft")`)
	if err != nil {
		t.Fatal(err)
	}
	h, err := b.OpenWorld(WorldSpec{Library: lib, MainPath: "/main.typ"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		code string
		want string
		err  string
	}{
		{code: "1 + 2", want: "3"},
		{code: "(a: 1, b: (2, 3))", want: `{"a":1,"b":[2,3]}`},
		{code: "sys.inputs.mode", want: `"draft"`},
		{code: "foo", err: "unknown variable: foo"},
	}
	for _, tt := range tests {
		env, err := b.DetachedEval(h, wrap(t, b, tt.code))
		if err != nil {
			t.Fatalf("DetachedEval(%q): %v", tt.code, err)
		}
		got, errs, ok := unpack[EvalOutcome](t, b, env).Unpack()
		if tt.err != "" {
			if ok || len(errs) != 1 || errs[0].Message != tt.err {
				t.Errorf("DetachedEval(%q) = %q, %v", tt.code, got, messages(errs))
			}
			continue
		}
		if !ok || got != tt.want {
			t.Errorf("DetachedEval(%q) = %q, %v, want %q", tt.code, got, messages(errs), tt.want)
		}
	}
}

func TestCreateStdlib(t *testing.T) {
	b := newBridge(t, Options{})

	ex := b.CreateStdlib(1, wrap(t, b, "(:)"))
	if ex.Failed() || !ex.Comment.IsNull() {
		t.Fatalf("CreateStdlib = %+v", ex)
	}
	if b.Libraries() != 1 {
		t.Errorf("libraries = %d", b.Libraries())
	}

	tests := []struct {
		inputs string
		want   string
	}{
		{"1", "library inputs must be a dictionary, found integer"},
		{"(a: nope)", "failed to evaluate library inputs: unknown variable: nope"},
	}
	for _, tt := range tests {
		ex := b.CreateStdlib(0, wrap(t, b, tt.inputs))
		if !ex.Failed() {
			t.Fatalf("CreateStdlib(%q) succeeded", tt.inputs)
		}
		exc, err := ex.Exception(b.Arena(), b.Codec())
		if err != nil {
			t.Fatal(err)
		}
		if exc.Kind != errors.IllegalArgument || exc.Message == nil || *exc.Message != tt.want {
			t.Errorf("CreateStdlib(%q) = %v", tt.inputs, exc)
		}
	}
}

func TestTicketsReleasedOnce(t *testing.T) {
	b := newBridge(t, Options{})
	tickets := host.NewTickets()
	if !b.SetReleaseCallback(tickets.Release) {
		t.Fatal("first SetReleaseCallback failed")
	}
	if b.SetReleaseCallback(func(int64) {}) {
		t.Fatal("second SetReleaseCallback succeeded")
	}

	lib, err := b.OpenLibrary(0, "(:)")
	if err != nil {
		t.Fatal(err)
	}
	r := &host.Responder{Arena: b.Arena(), Codec: b.Codec(), Tickets: tickets}
	now, err := envelope.PackTicket(b.Arena(), b.Codec(), tickets.Issue(nil), *world.Fixed(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatal(err)
	}
	files := host.Memory{
		"/main.typ":     []byte(`#import "lib/util.typ": twice` + "\n#twice(2)"),
		"/lib/util.typ": []byte("#let twice(x) = x * 2"),
		"/extra.typ":    []byte("unused"),
	}
	ex := b.NewWorld(lib, r.Main("/main.typ"), r.Files(files), now, 0)
	if ex.Failed() {
		exc, _ := ex.Exception(b.Arena(), b.Codec())
		t.Fatalf("NewWorld: %v", exc)
	}

	for i := 0; i < 2; i++ {
		env, err := b.CompileSVG(ex.Handle, 0, -1)
		if err != nil {
			t.Fatal(err)
		}
		if _, errs, ok := unpack[SVGOutcome](t, b, env).Output.Unpack(); !ok {
			t.Fatalf("pass %d: %v", i, messages(errs))
		}
		if err := b.ResetWorld(ex.Handle); err != nil {
			t.Fatal(err)
		}
	}
	if n := tickets.Pending(); n != 0 {
		t.Errorf("%d tickets pending", n)
	}
}

// brokenEngine fails in ways the bridge must contain.
type brokenEngine struct {
	compiler.Engine
}

func (brokenEngine) Compile(compiler.World) compiler.Output { panic("layout exploded") }

func (brokenEngine) Format(string, int, int) (string, error) {
	return "", stderrors.New("formatter gave up")
}

func TestEnginePanicsBecomeExceptions(t *testing.T) {
	b := newBridge(t, Options{Engine: brokenEngine{mini.New()}})
	h, _ := openDoc(t, b, 0, "Hello")

	_, err := b.CompileSVG(h, 0, 1)
	if kind := exceptionKind(t, err); kind != errors.Internal {
		t.Errorf("kind = %v", kind)
	}
	if !strings.Contains(err.Error(), "layout exploded") {
		t.Errorf("error = %v", err)
	}
	if err := b.FreeWorld(h); err != nil {
		t.Fatalf("world not returned after panic: %v", err)
	}

	out, err := b.FormatSource(wrap(t, b, "#let x=1"), 80, 2)
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := b.Arena().UnwrapString(out); s != "" {
		t.Errorf("failed format = %q, want empty", s)
	}
}

func TestFormatSource(t *testing.T) {
	b := newBridge(t, Options{})
	out, err := b.FormatSource(wrap(t, b, "#let x=1+2"), 80, 2)
	if err != nil {
		t.Fatal(err)
	}
	s, err := b.Arena().UnwrapString(out)
	if err != nil || s != "#let x=1 + 2\n" {
		t.Fatalf("formatted = %q, %v", s, err)
	}
}

func TestParseSyntax(t *testing.T) {
	b := newBridge(t, Options{})
	tests := []struct {
		src  string
		mode syntax.Mode
	}{
		{"= Title\nSome *strong* text #f(1, 2)", syntax.ModeMarkup},
		{"let x = (1, 2", syntax.ModeCode},
		{"x^2 + 1", syntax.ModeMath},
	}
	for _, tt := range tests {
		tree, err := b.ParseSyntax(wrap(t, b, tt.src), int32(tt.mode))
		if err != nil {
			t.Fatalf("ParseSyntax(%q): %v", tt.src, err)
		}
		flat, err := b.ReadFlattenedTree(tree)
		if err != nil {
			t.Fatal(err)
		}
		got, err := syntax.Rebuild(flat.Entries)
		if err != nil {
			t.Fatalf("Rebuild(%q): %v", tt.src, err)
		}
		want := syntax.OutlineOf(mini.Parse(tt.src, tt.mode))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("outline of %q mismatch (-want +got):\n%s", tt.src, diff)
		}
		if err := b.ReleaseFlattenedTree(tree); err != nil {
			t.Fatal(err)
		}
		if err := b.ReleaseFlattenedTree(tree); err == nil {
			t.Error("second release succeeded")
		}
	}

	_, err := b.ParseSyntax(wrap(t, b, "x"), 7)
	if kind := exceptionKind(t, err); kind != errors.IllegalArgument {
		t.Errorf("bad mode kind = %v", kind)
	}
}

func TestHandles(t *testing.T) {
	b := newBridge(t, Options{})
	h, _ := openDoc(t, b, 0, "Hello")

	if _, err := b.CompileSVG(0, 0, 1); exceptionKind(t, err) != errors.OwnershipViolation {
		t.Errorf("zero handle: %v", err)
	}
	if _, err := b.CompileSVG(h+100, 0, 1); err == nil {
		t.Error("unknown handle accepted")
	}
	if err := b.FreeLibrary(h); err == nil {
		t.Error("world handle freed as a library")
	}
	if err := b.FreeWorld(h); err != nil {
		t.Fatal(err)
	}
	if err := b.FreeWorld(h); err == nil {
		t.Error("double free succeeded")
	}
	if err := b.ResetWorld(h); err == nil {
		t.Error("reset of freed world succeeded")
	}

	buf := wrap(t, b, "x")
	if err := b.FreeString(buf); err != nil {
		t.Fatal(err)
	}
	if err := b.FreeString(buf); exceptionKind(t, err) != errors.OwnershipViolation {
		t.Errorf("double FreeString: %v", err)
	}
	if b.Worlds() != 0 {
		t.Errorf("worlds = %d", b.Worlds())
	}
}

func TestOverlayNeedsReset(t *testing.T) {
	b := newBridge(t, Options{})
	h, _ := openDoc(t, b, 0, "one")

	page := func() string {
		env, err := b.CompileSVG(h, 0, 1)
		if err != nil {
			t.Fatal(err)
		}
		pages, errs, ok := unpack[SVGOutcome](t, b, env).Output.Unpack()
		if !ok || len(pages) != 1 {
			t.Fatalf("compile: %v", messages(errs))
		}
		return pages[0]
	}
	if !strings.Contains(page(), "one") {
		t.Fatal("first pass does not show the overlay")
	}
	if err := b.SetOverlay(h, "/main.typ", []byte("two")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(page(), "one") {
		t.Error("overlay change seen before reset")
	}
	if err := b.ResetWorld(h); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(page(), "two") {
		t.Error("overlay change not seen after reset")
	}
}

func TestWorldCallsAreExclusive(t *testing.T) {
	b := newBridge(t, Options{})
	lib, err := b.OpenLibrary(0, "(:)")
	if err != nil {
		t.Fatal(err)
	}
	defer b.FreeLibrary(lib)

	r := &host.Responder{Arena: b.Arena(), Codec: b.Codec()}
	files := r.Files(host.Memory{"/lib.typ": []byte(`#let name = "lib"`)})
	entered := make(chan struct{})
	proceed := make(chan struct{})
	var once sync.Once
	h, err := b.OpenWorld(WorldSpec{
		Library:  lib,
		MainPath: "/main.typ",
		Overlays: map[string][]byte{"main.typ": []byte(`#import "lib.typ": name` + "\n#name")},
		Files: func(desc boundary.BufferHandle) envelope.Envelope {
			once.Do(func() {
				close(entered)
				<-proceed
			})
			return files(desc)
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	compiled := make(chan error, 1)
	go func() {
		env, err := b.CompileSVG(h, 0, -1)
		if err == nil {
			err = envelope.Discard(b.Arena(), nil, env)
		}
		compiled <- err
	}()
	<-entered

	reset := make(chan error, 1)
	go func() { reset <- b.ResetWorld(h) }()
	select {
	case err := <-reset:
		t.Fatalf("reset ran during a compilation: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(proceed)
	if err := <-compiled; err != nil {
		t.Fatalf("CompileSVG: %v", err)
	}
	if err := <-reset; err != nil {
		t.Fatalf("ResetWorld: %v", err)
	}
}

func TestConcurrentCallsOnOneWorld(t *testing.T) {
	b := newBridge(t, Options{})
	h, _ := openDoc(t, b, 0, "one")

	compile := func() error {
		env, err := b.CompileSVG(h, 0, -1)
		if err != nil {
			return err
		}
		out, err := envelope.Unpack[SVGOutcome](b.Arena(), b.Codec(), nil, env)
		if err != nil {
			return err
		}
		pages, errs, ok := out.Output.Unpack()
		if !ok {
			return stderrors.New(strings.Join(messages(errs), "; "))
		}
		if len(pages) != 1 || !(strings.Contains(pages[0], "one") || strings.Contains(pages[0], "two")) {
			return stderrors.New("unexpected pages")
		}
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if err := compile(); err != nil {
				t.Errorf("compile: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			text := "one"
			if i%2 == 1 {
				text = "two"
			}
			if err := b.SetOverlay(h, "/main.typ", []byte(text)); err != nil {
				t.Errorf("SetOverlay: %v", err)
				return
			}
			if err := b.ResetWorld(h); err != nil {
				t.Errorf("ResetWorld: %v", err)
				return
			}
			if err := compile(); err != nil {
				t.Errorf("compile after reset: %v", err)
				return
			}
		}
	}()
	wg.Wait()
}

func TestNewWorldWithoutClock(t *testing.T) {
	b := newBridge(t, Options{})
	lib, err := b.OpenLibrary(0, "(:)")
	if err != nil {
		t.Fatal(err)
	}
	defer b.FreeLibrary(lib)

	r := &host.Responder{Arena: b.Arena(), Codec: b.Codec()}
	now := envelope.Envelope{Ticket: envelope.NoTicket, Value: wrap(t, b, "null")}
	ex := b.NewWorld(lib, r.Main("/main.typ"), r.Files(host.Memory{}), now, 0)
	if ex.Failed() {
		exc, _ := ex.Exception(b.Arena(), b.Codec())
		t.Fatalf("NewWorld: %v", exc)
	}
	defer b.FreeWorld(ex.Handle)

	err = b.borrowWorld(ex.Handle, func(w *world.World) error {
		if day, ok := w.Today(nil); ok {
			t.Errorf("world without clock reported %v", day)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
