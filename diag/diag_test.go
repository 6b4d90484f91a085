package diag

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/docbridge/syntax"
)

type sources map[string]*syntax.Source

func (s sources) Source(id syntax.FileID) (*syntax.Source, error) {
	if src, ok := s[id.Key()]; ok {
		return src, nil
	}
	return nil, NotFound(id.Path)
}

func TestResolveSpan(t *testing.T) {
	src := syntax.NewSource(syntax.NewFileID(nil, "/diag/resolve.typ"), "ab\ncdé f")
	r := NewResolver(sources{src.ID().Key(): src})

	got := r.Span(src.Span(3, 7))
	id := src.ID()
	want := AbsoluteSpan{
		Native:    uint64(src.Span(3, 7)),
		File:      &id,
		StartInd:  3,
		EndInd:    7,
		StartLine: 2,
		StartCol:  1,
		EndLine:   2,
		EndCol:    4,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Span mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveUnresolvable(t *testing.T) {
	known := syntax.NewSource(syntax.NewFileID(nil, "/diag/known.typ"), "short")
	missing := syntax.NewFileID(nil, "/diag/missing.typ")
	r := NewResolver(sources{known.ID().Key(): known})

	tests := []struct {
		name     string
		span     syntax.Span
		wantFile bool
	}{
		{"detached", syntax.Detached, false},
		{"load failure", syntax.NewSpan(syntax.Intern(missing), 0, 1), true},
		{"out of range", syntax.NewSpan(known.Ref(), 3, 40), true},
		{"unknown ref", syntax.NewSpan(syntax.FileRef(0xfffe), 0, 1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Span(tt.span)
			if (got.File != nil) != tt.wantFile {
				t.Errorf("File = %v, want present=%v", got.File, tt.wantFile)
			}
			for _, v := range []int64{got.StartInd, got.EndInd, got.StartLine, got.StartCol, got.EndLine, got.EndCol} {
				if v != Unresolved {
					t.Fatalf("positional field = %d, want -1 in %+v", v, got)
				}
			}
		})
	}
}

func TestResolveBeyondOffsetRange(t *testing.T) {
	text := strings.Repeat("abcdefghijklmno\n", 1<<20+1<<16)
	big := syntax.NewSource(syntax.NewFileID(nil, "/diag/big.typ"), text)
	r := NewResolver(sources{big.ID().Key(): big})

	got := r.Span(big.Span(len(text)-3, len(text)-1))
	if got.File == nil || got.File.Path != "/diag/big.typ" {
		t.Fatalf("File = %v", got.File)
	}
	if got.StartLine != Unresolved || got.StartCol != Unresolved || got.EndInd != Unresolved {
		t.Errorf("span past the offset range resolved to %+v", got)
	}
}

func TestResolveDiagnostic(t *testing.T) {
	src := syntax.NewSource(syntax.NewFileID(nil, "/diag/trace.typ"), "#f()\n#g()")
	r := NewResolver(sources{src.ID().Key(): src})

	d := Errorf(src.Span(6, 9), "unknown variable: %s", "x").
		WithTrace(src.Span(1, 4), Call("f")).
		WithTrace(syntax.Detached, Import()).
		WithHint("check the spelling")

	got := r.Diagnostic(d)
	if got.Message != "unknown variable: x" || got.Severity != SeverityError {
		t.Fatalf("diagnostic = %+v", got)
	}
	if got.Span.StartLine != 2 || got.Span.StartCol != 2 {
		t.Errorf("span = %+v", got.Span)
	}
	if len(got.Trace) != 2 || got.Trace[0].V.Kind != TraceCall || got.Trace[1].V.Kind != TraceImport {
		t.Fatalf("trace order = %+v", got.Trace)
	}
	if got.Trace[0].Span.StartCol != 2 || got.Trace[1].Span.File != nil {
		t.Errorf("trace spans = %+v", got.Trace)
	}
	if diff := cmp.Diff([]string{"check the spelling"}, got.Hints); diff != "" {
		t.Error(diff)
	}

	if ds := r.Diagnostics(nil); ds == nil || len(ds) != 0 {
		t.Errorf("Diagnostics(nil) = %#v, want empty non-nil", ds)
	}
	plain := r.Diagnostic(Warningf(syntax.Detached, "w"))
	if plain.Trace == nil || plain.Hints == nil {
		t.Error("trace and hints must serialize as arrays")
	}
}

func TestDiagnosticJSON(t *testing.T) {
	r := NewResolver(nil)
	w := ResolveWarned(r, "out", []SourceDiagnostic{Warningf(syntax.Detached, "careful")})

	b, err := json.Marshal(w)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"output":"out","warnings":[{"severity":"Warning","span":{"native":0,"file":null,` +
		`"start_ind":-1,"end_ind":-1,"start_line":-1,"start_col":-1,"end_line":-1,"end_col":-1},` +
		`"message":"careful","trace":[],"hints":[]}]}`
	if string(b) != want {
		t.Errorf("json:\n got %s\nwant %s", b, want)
	}

	var back Warned[string]
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.Warnings[0].Severity != SeverityWarning {
		t.Errorf("severity = %v", back.Warnings[0].Severity)
	}
}

func TestFileErrorJSON(t *testing.T) {
	spec := syntax.PackageSpec{Namespace: "preview", Name: "cetz", Version: syntax.PackageVersion{Major: 0, Minor: 2, Patch: 1}}
	tests := []struct {
		err  *FileError
		json string
		msg  string
	}{
		{NotFound("/main.typ"), `{"path":"/main.typ","type":"NotFound"}`, "file not found (searched at /main.typ)"},
		{AccessDenied(), `{"type":"AccessDenied"}`, "failed to load file (access denied)"},
		{IsDirectory(), `{"type":"IsDirectory"}`, "failed to load file (is a directory)"},
		{InvalidUTF8(), `{"type":"InvalidUtf8"}`, "file is not valid utf-8"},
		{Other(""), `{"message":null,"type":"Other"}`, "failed to load file"},
		{Other("disk on fire"), `{"message":"disk on fire","type":"Other"}`, "failed to load file (disk on fire)"},
		{
			InPackage(PackageMissing(spec)),
			`{"error":{"package":{"namespace":"preview","name":"cetz","version":{"major":0,"minor":2,"patch":1}},"type":"NotFound"},"type":"Package"}`,
			"package not found (searched for @preview/cetz:0.2.1)",
		},
		{
			InPackage(NetworkFailed("timeout")),
			`{"error":{"message":"timeout","type":"NetworkFailed"},"type":"Package"}`,
			"failed to download package (timeout)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			b, err := json.Marshal(tt.err)
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != tt.json {
				t.Errorf("json = %s, want %s", b, tt.json)
			}
			if tt.err.Error() != tt.msg {
				t.Errorf("Error() = %q", tt.err.Error())
			}
			var back FileError
			if err := json.Unmarshal(b, &back); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(*tt.err, back); diff != "" {
				t.Errorf("round trip (-want +got):\n%s", diff)
			}
		})
	}

	if err := json.Unmarshal([]byte(`{"type":"Exploded"}`), new(FileError)); err == nil {
		t.Error("unknown variant should fail")
	}
}

func TestFileErrorIs(t *testing.T) {
	err := error(InPackage(VersionMissing(syntax.PackageSpec{Namespace: "preview", Name: "x"}, syntax.PackageVersion{Major: 9})))
	if !errors.Is(err, &FileError{Kind: FilePackage}) {
		t.Error("Is should match by kind")
	}
	if !errors.Is(err, &PackageError{Kind: PackageVersionNotFound}) {
		t.Error("nested package error should be reachable")
	}
	if errors.Is(err, NotFound("")) {
		t.Error("different kinds must not match")
	}
	if got := err.Error(); got != "package found, but version 9.0.0 does not exist" {
		t.Errorf("Error() = %q", got)
	}
}

func TestTracepointJSON(t *testing.T) {
	for _, tt := range []struct {
		tp   Tracepoint
		json string
	}{
		{Call("f"), `{"function":"f","type":"Call"}`},
		{AnonymousCall(), `{"function":null,"type":"Call"}`},
		{Show("heading"), `{"string":"heading","type":"Show"}`},
		{Import(), `{"type":"Import"}`},
	} {
		b, err := json.Marshal(tt.tp)
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != tt.json {
			t.Errorf("json = %s, want %s", b, tt.json)
		}
		var back Tracepoint
		if err := json.Unmarshal(b, &back); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(tt.tp, back); diff != "" {
			t.Error(diff)
		}
	}
}

func TestFromFileError(t *testing.T) {
	d := FromFileError(syntax.Detached, NotFound("/missing.typ"))
	if d.Severity != SeverityError || d.Message != "file not found (searched at /missing.typ)" {
		t.Errorf("diagnostic = %+v", d)
	}
	if !HasErrors([]SourceDiagnostic{Warningf(syntax.Detached, "w"), d}) {
		t.Error("HasErrors should see the error")
	}
	if HasErrors([]SourceDiagnostic{Warningf(syntax.Detached, "w")}) {
		t.Error("warnings alone are not errors")
	}
}
