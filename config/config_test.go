package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/docbridge/world"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	now, err := cfg.Now()
	if err != nil || now.Kind != world.NowSystem {
		t.Fatalf("Now = %+v, %v", now, err)
	}
	codec, err := cfg.Codec()
	if err != nil || codec.Name() != "json" {
		t.Fatalf("Codec = %v, %v", codec, err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[world]
root = "project"
fixed_time = "2024-03-10T12:00:00Z"

[packages]
cache_dir = "cache"
timeout = "5s"

[fonts]
dirs = ["fonts", "/abs/fonts"]
include_system = false

[boundary]
codec = "msgpack"
memory_limit_pages = 2

[log]
level = "debug"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := Default()
	want.Path = path
	want.World.Root = filepath.Join(dir, "project")
	want.World.FixedTime = "2024-03-10T12:00:00Z"
	want.Packages.CacheDir = filepath.Join(dir, "cache")
	want.Packages.Timeout = Duration{5 * time.Second}
	want.Fonts = FontsConfig{Dirs: []string{filepath.Join(dir, "fonts"), "/abs/fonts"}}
	want.Boundary = BoundaryConfig{Codec: "msgpack", MemoryLimitPages: 2}
	want.Log.Level = "debug"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config (-want +got):\n%s", diff)
	}

	now, err := cfg.Now()
	if err != nil || now.Kind != world.NowFixed || !now.Stamp.Equal(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("Now = %+v, %v", now, err)
	}
	if level, _ := cfg.Level(); level != zapcore.DebugLevel {
		t.Fatalf("level = %v", level)
	}
	if m := cfg.Memory(); m.MaxPages != 2 || m.InitialPages != 1 {
		t.Fatalf("memory = %+v", m)
	}
	if opts := cfg.PackageOptions(nil); opts.Timeout != 5*time.Second || opts.CacheDir != want.Packages.CacheDir {
		t.Fatalf("package options = %+v", opts)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[world\n", "failed to parse TOML"},
		{"unknown key", "[world]\nmian = \"x\"\n", "world.mian"},
		{"bad time", "[world]\nfixed_time = \"yesterday\"\n", "world.fixed_time"},
		{"bad codec", "[boundary]\ncodec = \"xml\"\n", "boundary.codec"},
		{"zero pages", "[boundary]\nmemory_limit_pages = 0\n", "boundary.memory_limit_pages"},
		{"bad level", "[log]\nlevel = \"loud\"\n", "log.level"},
		{"bad duration", "[packages]\ntimeout = \"soon\"\n", "failed to parse TOML"},
		{"empty main", "[world]\nmain = \" \"\n", "world.main"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	want := writeConfig(t, root, "")

	got, ok, err := Find(nested)
	if err != nil || !ok {
		t.Fatalf("Find = %q, %v, %v", got, ok, err)
	}
	// Temp dirs may be reached through symlinks.
	if filepath.Base(got) != FileName || filepath.Dir(got) != filepath.Dir(want) {
		gotInfo, _ := os.Stat(filepath.Dir(got))
		wantInfo, _ := os.Stat(filepath.Dir(want))
		if !os.SameFile(gotInfo, wantInfo) {
			t.Fatalf("Find = %q, want %q", got, want)
		}
	}
}
