package host

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/wippyai/docbridge/diag"
	"github.com/wippyai/docbridge/syntax"
)

// Provider answers file requests. Errors are *diag.FileError.
type Provider interface {
	Read(id syntax.FileID) ([]byte, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(id syntax.FileID) ([]byte, error)

func (f ProviderFunc) Read(id syntax.FileID) ([]byte, error) { return f(id) }

// Dir serves project files from Root and package files from
// Packages/{namespace}/{name}/{version}.
type Dir struct {
	Root     string
	Packages string
}

func (d Dir) Read(id syntax.FileID) ([]byte, error) {
	root := d.Root
	if id.Package != nil {
		if d.Packages == "" {
			return nil, diag.InPackage(diag.PackageMissing(*id.Package))
		}
		root = filepath.Join(d.Packages, id.Package.Namespace, id.Package.Name, id.Package.Version.String())
		if _, err := os.Stat(root); err != nil {
			return nil, diag.InPackage(diag.PackageMissing(*id.Package))
		}
	}
	root = filepath.Clean(root)
	p := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(id.Path, "/")))
	if p != root && !strings.HasPrefix(p, root+string(filepath.Separator)) {
		return nil, diag.AccessDenied()
	}

	info, err := os.Stat(p)
	if err != nil {
		return nil, diag.FromOSError(err, id.Path)
	}
	if info.IsDir() {
		return nil, diag.IsDirectory()
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, diag.FromOSError(err, id.Path)
	}
	return data, nil
}

// Memory serves files from a map keyed by syntax.FileID.Key.
type Memory map[string][]byte

func (m Memory) Read(id syntax.FileID) ([]byte, error) {
	data, ok := m[id.Key()]
	if !ok {
		return nil, diag.NotFound(id.Path)
	}
	return data, nil
}

// Layered asks each provider in turn and returns the first answer that is
// not a NotFound error.
type Layered []Provider

func (l Layered) Read(id syntax.FileID) ([]byte, error) {
	var last error = diag.NotFound(id.Path)
	for _, p := range l {
		data, err := p.Read(id)
		if err == nil {
			return data, nil
		}
		if fe, ok := err.(*diag.FileError); ok && fe.Kind == diag.FileNotFound {
			last = err
			continue
		}
		return nil, err
	}
	return nil, last
}
