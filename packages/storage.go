package packages

import (
	"archive/tar"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wippyai/docbridge/diag"
	"github.com/wippyai/docbridge/syntax"
)

// DefaultRegistry is the public package registry.
const DefaultRegistry = "https://packages.typst.org"

// maxArchiveSize bounds the unpacked size of one package.
const maxArchiveSize = 256 << 20

// Store makes packages available on local disk.
type Store interface {
	// Prepare returns the directory holding the unpacked package. Errors
	// are *diag.PackageError.
	Prepare(ctx context.Context, spec syntax.PackageSpec) (string, error)
}

// Options configures a Storage.
type Options struct {
	// RegistryURL serves {namespace}/{name}-{version}.tar.gz and
	// {namespace}/index.json. Empty means DefaultRegistry.
	RegistryURL string
	// CacheDir receives downloaded packages. Empty disables downloads.
	CacheDir string
	// DataDir holds locally installed packages of any namespace, laid out
	// as {namespace}/{name}/{version}. It is searched before CacheDir.
	DataDir string
	// Timeout bounds one download. Zero means 30 seconds.
	Timeout time.Duration
	Client  *http.Client
	Logger  *zap.Logger
}

// Storage is a Store backed by local directories and an HTTP registry.
// Concurrent requests for the same package share one download.
type Storage struct {
	registry string
	cacheDir string
	dataDir  string
	client   *http.Client
	logger   *zap.Logger
	group    singleflight.Group
}

var _ Store = (*Storage)(nil)

// New creates a Storage.
func New(opts Options) *Storage {
	registry := strings.TrimRight(opts.RegistryURL, "/")
	if registry == "" {
		registry = DefaultRegistry
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = Logger()
	}
	return &Storage{
		registry: registry,
		cacheDir: opts.CacheDir,
		dataDir:  opts.DataDir,
		client:   client,
		logger:   logger,
	}
}

func subdir(root string, spec syntax.PackageSpec) string {
	return filepath.Join(root, spec.Namespace, spec.Name, spec.Version.String())
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func (s *Storage) Prepare(ctx context.Context, spec syntax.PackageSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", diag.PackageFailed(err.Error())
	}
	if s.dataDir != "" {
		if dir := subdir(s.dataDir, spec); isDir(dir) {
			return dir, nil
		}
	}
	if s.cacheDir == "" {
		return "", diag.PackageMissing(spec)
	}
	dir := subdir(s.cacheDir, spec)
	if isDir(dir) {
		return dir, nil
	}
	if spec.Namespace != syntax.PreviewNamespace {
		return "", diag.PackageMissing(spec)
	}

	_, err, shared := s.group.Do(spec.String(), func() (any, error) {
		if isDir(dir) {
			return nil, nil
		}
		return nil, s.download(ctx, spec, dir)
	})
	if shared {
		s.logger.Debug("shared package download", zap.Stringer("package", spec))
	}
	if err != nil {
		return "", err
	}
	return dir, nil
}

func (s *Storage) download(ctx context.Context, spec syntax.PackageSpec, dir string) error {
	url := fmt.Sprintf("%s/%s/%s-%s.tar.gz", s.registry, spec.Namespace, spec.Name, spec.Version)
	s.logger.Info("downloading package", zap.Stringer("package", spec), zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return diag.NetworkFailed(err.Error())
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return diag.NetworkFailed(err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return s.missing(ctx, spec)
	case resp.StatusCode != http.StatusOK:
		return diag.NetworkFailed(fmt.Sprintf("registry responded with %s", resp.Status))
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return diag.PackageFailed(err.Error())
	}
	tmp, err := os.MkdirTemp(filepath.Dir(dir), ".download-*")
	if err != nil {
		return diag.PackageFailed(err.Error())
	}
	defer os.RemoveAll(tmp)

	if err := unpack(resp.Body, tmp); err != nil {
		s.logger.Warn("malformed package archive", zap.Stringer("package", spec), zap.Error(err))
		var perr *diag.PackageError
		if errors.As(err, &perr) {
			return perr
		}
		return diag.MalformedArchive(err.Error())
	}
	if err := os.Rename(tmp, dir); err != nil && !isDir(dir) {
		return diag.PackageFailed(err.Error())
	}
	return nil
}

type indexEntry struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// missing distinguishes an unknown package from an unknown version using
// the registry index. Without an index the package counts as unknown.
func (s *Storage) missing(ctx context.Context, spec syntax.PackageSpec) error {
	url := fmt.Sprintf("%s/%s/index.json", s.registry, spec.Namespace)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return diag.PackageMissing(spec)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return diag.NetworkFailed(err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return diag.PackageMissing(spec)
	}

	var index []indexEntry
	if err := json.NewDecoder(resp.Body).Decode(&index); err != nil {
		s.logger.Debug("unreadable package index", zap.String("url", url), zap.Error(err))
		return diag.PackageMissing(spec)
	}
	for _, e := range index {
		if e.Name == spec.Name {
			return diag.VersionMissing(spec, spec.Version)
		}
	}
	return diag.PackageMissing(spec)
}

// unpack extracts a gzipped tarball into dir. Entries escaping dir and
// archives larger than maxArchiveSize are rejected.
func unpack(r io.Reader, dir string) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return diag.MalformedArchive(err.Error())
	}
	defer zr.Close()

	var total int64
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return diag.MalformedArchive(err.Error())
		}

		name := path.Clean(strings.TrimPrefix(hdr.Name, "./"))
		if name == "." {
			continue
		}
		if !fs.ValidPath(name) {
			return diag.MalformedArchive(fmt.Sprintf("entry %q escapes the package root", hdr.Name))
		}
		target := filepath.Join(dir, filepath.FromSlash(name))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			total += hdr.Size
			if total > maxArchiveSize {
				return diag.MalformedArchive("package is too large")
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := writeFile(target, tr, hdr.Size); err != nil {
				return err
			}
		default:
			// links and devices are skipped
		}
	}
}

func writeFile(target string, r io.Reader, size int64) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.CopyN(f, r, size); err != nil {
		f.Close()
		return diag.MalformedArchive(err.Error())
	}
	return f.Close()
}
