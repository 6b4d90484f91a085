package syntax

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"unicode"
)

// PreviewNamespace is the namespace of the default public package registry.
const PreviewNamespace = "preview"

// PackageVersion is a semantic version of a package.
type PackageVersion struct {
	Major uint32 `json:"major"`
	Minor uint32 `json:"minor"`
	Patch uint32 `json:"patch"`
}

func (v PackageVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseVersion parses "major.minor.patch".
func ParseVersion(s string) (PackageVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return PackageVersion{}, fmt.Errorf("version %q must have three components", s)
	}
	var nums [3]uint32
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return PackageVersion{}, fmt.Errorf("version %q: %w", s, err)
		}
		nums[i] = uint32(n)
	}
	return PackageVersion{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// PackageSpec identifies one version of a package.
type PackageSpec struct {
	Namespace string         `json:"namespace"`
	Name      string         `json:"name"`
	Version   PackageVersion `json:"version"`
}

func (p PackageSpec) String() string {
	return fmt.Sprintf("@%s/%s:%s", p.Namespace, p.Name, p.Version)
}

// IsIdent reports whether s is an identifier: a letter or underscore
// followed by letters, digits, underscores and hyphens.
func IsIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (r == '-' || unicode.IsDigit(r)):
		default:
			return false
		}
	}
	return true
}

// Validate checks that namespace and name are identifiers. Both become
// directory names of the package store.
func (p PackageSpec) Validate() error {
	if !IsIdent(p.Namespace) {
		return fmt.Errorf("%q is not a valid package namespace", p.Namespace)
	}
	if !IsIdent(p.Name) {
		return fmt.Errorf("%q is not a valid package name", p.Name)
	}
	return nil
}

// ParsePackageSpec parses "@namespace/name:1.2.3".
func ParsePackageSpec(s string) (PackageSpec, error) {
	rest, ok := strings.CutPrefix(s, "@")
	if !ok {
		return PackageSpec{}, fmt.Errorf("package specification %q must start with @", s)
	}
	ns, rest, ok := strings.Cut(rest, "/")
	if !ok || ns == "" {
		return PackageSpec{}, fmt.Errorf("package specification %q is missing a namespace", s)
	}
	name, ver, ok := strings.Cut(rest, ":")
	if !ok || name == "" {
		return PackageSpec{}, fmt.Errorf("package specification %q is missing a version", s)
	}
	v, err := ParseVersion(ver)
	if err != nil {
		return PackageSpec{}, err
	}
	spec := PackageSpec{Namespace: ns, Name: name, Version: v}
	if err := spec.Validate(); err != nil {
		return PackageSpec{}, err
	}
	return spec, nil
}

// FileID identifies a file of the project (Package nil) or of a package.
// Paths are rooted and cleaned.
type FileID struct {
	Package *PackageSpec `json:"pack"`
	Path    string       `json:"path"`
}

// NewFileID returns a FileID with a normalized path.
func NewFileID(pkg *PackageSpec, p string) FileID {
	if pkg != nil {
		cp := *pkg
		pkg = &cp
	}
	return FileID{Package: pkg, Path: CleanPath(p)}
}

// CleanPath roots and cleans a virtual path. Parent references cannot
// escape the root.
func CleanPath(p string) string {
	return path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
}

// Key is a comparable representation usable as a map key.
func (f FileID) Key() string {
	if f.Package == nil {
		return f.Path
	}
	return f.Package.String() + f.Path
}

// Join resolves p relative to the directory of f, staying in f's package.
func (f FileID) Join(p string) FileID {
	if !strings.HasPrefix(p, "/") {
		p = path.Join(path.Dir(f.Path), p)
	}
	return NewFileID(f.Package, p)
}

// InPreview reports whether the file belongs to the default registry.
func (f FileID) InPreview() bool {
	return f.Package != nil && f.Package.Namespace == PreviewNamespace
}

func (f FileID) String() string {
	if f.Package == nil {
		return f.Path
	}
	return f.Package.String() + f.Path
}
