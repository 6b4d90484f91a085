package packages

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/wippyai/docbridge/diag"
	"github.com/wippyai/docbridge/syntax"
)

func archive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for name, body := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type registry struct {
	archives map[string][]byte
	index    string
	hits     atomic.Int32
}

func (r *registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.hits.Add(1)
	if req.URL.Path == "/preview/index.json" && r.index != "" {
		w.Write([]byte(r.index))
		return
	}
	body, ok := r.archives[req.URL.Path]
	if !ok {
		http.NotFound(w, req)
		return
	}
	w.Write(body)
}

func spec(t *testing.T, s string) syntax.PackageSpec {
	t.Helper()
	p, err := syntax.ParsePackageSpec(s)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPrepareDownloadsOnce(t *testing.T) {
	reg := &registry{archives: map[string][]byte{
		"/preview/util-0.1.0.tar.gz": archive(t, map[string]string{
			"typst.toml":   "[package]\nname = \"util\"\nversion = \"0.1.0\"\nentrypoint = \"lib.typ\"\n",
			"lib.typ":      "#let hi = [Hi]",
			"src/more.typ": "more",
		}),
	}}
	srv := httptest.NewServer(reg)
	defer srv.Close()

	s := New(Options{RegistryURL: srv.URL, CacheDir: t.TempDir()})
	p := spec(t, "@preview/util:0.1.0")

	var wg sync.WaitGroup
	dirs := make([]string, 4)
	errs := make([]error, 4)
	for i := range dirs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dirs[i], errs[i] = s.Prepare(context.Background(), p)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("prepare %d: %v", i, err)
		}
		if dirs[i] != dirs[0] {
			t.Fatalf("dir %d = %q, want %q", i, dirs[i], dirs[0])
		}
	}

	data, err := os.ReadFile(filepath.Join(dirs[0], "src", "more.typ"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "more" {
		t.Fatalf("got %q", data)
	}

	hits := reg.hits.Load()
	if _, err := s.Prepare(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if reg.hits.Load() != hits {
		t.Fatal("cached package was downloaded again")
	}
}

func TestPrepareErrors(t *testing.T) {
	escaping := archive(t, map[string]string{"../evil.typ": "x"})
	reg := &registry{
		archives: map[string][]byte{
			"/preview/broken-1.0.0.tar.gz": []byte("not a gzip stream"),
			"/preview/evil-1.0.0.tar.gz":   escaping,
		},
		index: `[{"name":"known","version":"1.0.0"}]`,
	}
	srv := httptest.NewServer(reg)
	defer srv.Close()

	tests := []struct {
		name string
		spec string
		want diag.PackageErrorKind
	}{
		{"unknown package", "@preview/nothing:1.0.0", diag.PackageNotFound},
		{"unknown version", "@preview/known:2.0.0", diag.PackageVersionNotFound},
		{"not gzip", "@preview/broken:1.0.0", diag.PackageMalformedArchive},
		{"path traversal", "@preview/evil:1.0.0", diag.PackageMalformedArchive},
		{"other namespace", "@local/mine:1.0.0", diag.PackageNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Options{RegistryURL: srv.URL, CacheDir: t.TempDir()})
			_, err := s.Prepare(context.Background(), spec(t, tt.spec))
			var perr *diag.PackageError
			if !errors.As(err, &perr) {
				t.Fatalf("got %v, want a package error", err)
			}
			if perr.Kind != tt.want {
				t.Fatalf("kind = %v (%v), want %v", perr.Kind, perr, tt.want)
			}
		})
	}
}

func TestPrepareNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := New(Options{RegistryURL: srv.URL, CacheDir: t.TempDir()})
	_, err := s.Prepare(context.Background(), spec(t, "@preview/util:0.1.0"))
	if !errors.Is(err, diag.NetworkFailed("")) {
		t.Fatalf("got %v, want network failure", err)
	}
}

func TestPrepareDataDir(t *testing.T) {
	data := t.TempDir()
	dir := filepath.Join(data, "local", "mine", "1.0.0")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	s := New(Options{DataDir: data})
	got, err := s.Prepare(context.Background(), spec(t, "@local/mine:1.0.0"))
	if err != nil {
		t.Fatal(err)
	}
	if got != dir {
		t.Fatalf("got %q, want %q", got, dir)
	}

	if _, err := s.Prepare(context.Background(), spec(t, "@preview/util:0.1.0")); !errors.Is(err, diag.PackageMissing(syntax.PackageSpec{})) {
		t.Fatalf("without a cache dir: %v", err)
	}
}

func TestPrepareRejectsUnsafeNames(t *testing.T) {
	root := t.TempDir()
	data := filepath.Join(root, "data")
	cache := filepath.Join(root, "cache")
	outside := filepath.Join(root, "secret", "1.0.0")
	if err := os.MkdirAll(outside, 0o755); err != nil {
		t.Fatal(err)
	}

	s := New(Options{DataDir: data, CacheDir: cache, RegistryURL: "http://127.0.0.1:1"})
	for _, bad := range []syntax.PackageSpec{
		{Namespace: "preview", Name: "../../secret", Version: syntax.PackageVersion{Major: 1}},
		{Namespace: "..", Name: "secret", Version: syntax.PackageVersion{Major: 1}},
		{Namespace: "preview", Name: "a/b", Version: syntax.PackageVersion{Major: 1}},
	} {
		dir, err := s.Prepare(context.Background(), bad)
		if !errors.Is(err, diag.PackageFailed("")) {
			t.Errorf("Prepare(%s) = %q, %v; want rejection", bad, dir, err)
		}
	}
	if _, err := os.Stat(cache); !os.IsNotExist(err) {
		t.Errorf("cache dir touched: %v", err)
	}
}
