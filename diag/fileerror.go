package diag

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"syscall"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/wippyai/docbridge/syntax"
)

// FileErrorKind enumerates why a file could not be provided.
type FileErrorKind uint8

const (
	FileNotFound FileErrorKind = iota
	FileAccessDenied
	FileIsDirectory
	FileNotSource
	FileInvalidUTF8
	FilePackage
	FileOther
)

var fileErrorTypes = [...]string{
	FileNotFound:     "NotFound",
	FileAccessDenied: "AccessDenied",
	FileIsDirectory:  "IsDirectory",
	FileNotSource:    "NotSource",
	FileInvalidUTF8:  "InvalidUtf8",
	FilePackage:      "Package",
	FileOther:        "Other",
}

// FileError is an expected failure to load a file. It travels as a value
// inside Result payloads and becomes a diagnostic when the engine needs the
// file.
type FileError struct {
	Kind    FileErrorKind
	Path    string
	Package *PackageError
	Message *string
}

// NotFound reports a missing file at path.
func NotFound(path string) *FileError {
	return &FileError{Kind: FileNotFound, Path: path}
}

// AccessDenied reports a file the host may not read.
func AccessDenied() *FileError { return &FileError{Kind: FileAccessDenied} }

// IsDirectory reports a path that names a directory.
func IsDirectory() *FileError { return &FileError{Kind: FileIsDirectory} }

// NotSource reports a file that cannot be used as source.
func NotSource() *FileError { return &FileError{Kind: FileNotSource} }

// InvalidUTF8 reports source bytes that are not UTF-8.
func InvalidUTF8() *FileError { return &FileError{Kind: FileInvalidUTF8} }

// InPackage wraps a package failure.
func InPackage(err *PackageError) *FileError {
	return &FileError{Kind: FilePackage, Package: err}
}

// Other reports any other failure, with an optional message.
func Other(message string) *FileError {
	e := &FileError{Kind: FileOther}
	if message != "" {
		e.Message = &message
	}
	return e
}

func (e *FileError) Error() string {
	switch e.Kind {
	case FileNotFound:
		return fmt.Sprintf("file not found (searched at %s)", e.Path)
	case FileAccessDenied:
		return "failed to load file (access denied)"
	case FileIsDirectory:
		return "failed to load file (is a directory)"
	case FileNotSource:
		return "not a typst source file"
	case FileInvalidUTF8:
		return "file is not valid utf-8"
	case FilePackage:
		if e.Package != nil {
			return e.Package.Error()
		}
		return "failed to load package"
	}
	if e.Message != nil {
		return fmt.Sprintf("failed to load file (%s)", *e.Message)
	}
	return "failed to load file"
}

// FromOSError maps a filesystem error for path to a FileError.
func FromOSError(err error, path string) *FileError {
	if err == nil {
		return nil
	}
	var fe *FileError
	if errors.As(err, &fe) {
		return fe
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return NotFound(path)
	case errors.Is(err, fs.ErrPermission):
		return AccessDenied()
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EISDIR:
			return IsDirectory()
		case syscall.ENOTDIR, syscall.ENOENT:
			return NotFound(path)
		case syscall.EACCES, syscall.EPERM:
			return AccessDenied()
		}
	}
	return Other(err.Error())
}

// Is matches another FileError of the same kind.
func (e *FileError) Is(target error) bool {
	t, ok := target.(*FileError)
	return ok && t.Kind == e.Kind
}

// Unwrap exposes a nested package error.
func (e *FileError) Unwrap() error {
	if e.Package == nil {
		return nil
	}
	return e.Package
}

// FingerprintBytes hashes the structured form, not the message.
func (e *FileError) FingerprintBytes() []byte {
	b, _ := json.Marshal(e)
	return b
}

func (e *FileError) wire() tagged {
	name := fileErrorTypes[FileOther]
	if int(e.Kind) < len(fileErrorTypes) {
		name = fileErrorTypes[e.Kind]
	}
	switch e.Kind {
	case FileNotFound:
		return tag(name, "path", e.Path)
	case FilePackage:
		return tag(name, "error", e.Package)
	case FileOther:
		return tag(name, "message", e.Message)
	}
	return tag(name)
}

type fileErrorWire struct {
	Type    string        `json:"type" msgpack:"type"`
	Path    string        `json:"path" msgpack:"path"`
	Error   *PackageError `json:"error" msgpack:"error"`
	Message *string       `json:"message" msgpack:"message"`
}

func (e *FileError) fromWire(w fileErrorWire) error {
	for k, name := range fileErrorTypes {
		if name == w.Type {
			*e = FileError{Kind: FileErrorKind(k), Path: w.Path, Package: w.Error, Message: w.Message}
			return nil
		}
	}
	return fmt.Errorf("unknown file error type %q", w.Type)
}

// MarshalJSON emits the tagged shape, e.g. {"type":"NotFound","path":"/a"}.
func (e *FileError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.wire())
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *FileError) UnmarshalJSON(b []byte) error {
	var w fileErrorWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	return e.fromWire(w)
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (e *FileError) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(map[string]any(e.wire()))
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (e *FileError) DecodeMsgpack(dec *msgpack.Decoder) error {
	var w fileErrorWire
	if err := dec.Decode(&w); err != nil {
		return err
	}
	return e.fromWire(w)
}

// PackageErrorKind enumerates package failures.
type PackageErrorKind uint8

const (
	PackageNotFound PackageErrorKind = iota
	PackageVersionNotFound
	PackageNetworkFailed
	PackageMalformedArchive
	PackageOther
)

var packageErrorTypes = [...]string{
	PackageNotFound:         "NotFound",
	PackageVersionNotFound:  "VersionNotFound",
	PackageNetworkFailed:    "NetworkFailed",
	PackageMalformedArchive: "MalformedArchive",
	PackageOther:            "Other",
}

// PackageError is a failure to provide a package.
type PackageError struct {
	Kind    PackageErrorKind
	Spec    syntax.PackageSpec
	Version syntax.PackageVersion
	Message *string
}

// PackageMissing reports a package the registry does not know.
func PackageMissing(spec syntax.PackageSpec) *PackageError {
	return &PackageError{Kind: PackageNotFound, Spec: spec}
}

// VersionMissing reports a known package without the requested version.
func VersionMissing(spec syntax.PackageSpec, version syntax.PackageVersion) *PackageError {
	return &PackageError{Kind: PackageVersionNotFound, Spec: spec, Version: version}
}

// NetworkFailed reports a failed download.
func NetworkFailed(message string) *PackageError {
	return &PackageError{Kind: PackageNetworkFailed, Message: optional(message)}
}

// MalformedArchive reports an archive that could not be unpacked.
func MalformedArchive(message string) *PackageError {
	return &PackageError{Kind: PackageMalformedArchive, Message: optional(message)}
}

// PackageFailed reports any other package failure.
func PackageFailed(message string) *PackageError {
	return &PackageError{Kind: PackageOther, Message: optional(message)}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (e *PackageError) Error() string {
	msg := func(prefix string) string {
		if e.Message != nil {
			return fmt.Sprintf("%s (%s)", prefix, *e.Message)
		}
		return prefix
	}
	switch e.Kind {
	case PackageNotFound:
		return fmt.Sprintf("package not found (searched for %s)", e.Spec)
	case PackageVersionNotFound:
		return fmt.Sprintf("package found, but version %s does not exist", e.Version)
	case PackageNetworkFailed:
		return msg("failed to download package")
	case PackageMalformedArchive:
		return msg("failed to decompress package")
	}
	return msg("failed to load package")
}

// Is matches another PackageError of the same kind.
func (e *PackageError) Is(target error) bool {
	t, ok := target.(*PackageError)
	return ok && t.Kind == e.Kind
}

func (e *PackageError) wire() tagged {
	name := packageErrorTypes[PackageOther]
	if int(e.Kind) < len(packageErrorTypes) {
		name = packageErrorTypes[e.Kind]
	}
	switch e.Kind {
	case PackageNotFound:
		return tag(name, "package", e.Spec)
	case PackageVersionNotFound:
		return tag(name, "package", e.Spec, "version", e.Version)
	}
	return tag(name, "message", e.Message)
}

type packageErrorWire struct {
	Type    string                `json:"type" msgpack:"type"`
	Package syntax.PackageSpec    `json:"package" msgpack:"package"`
	Version syntax.PackageVersion `json:"version" msgpack:"version"`
	Message *string               `json:"message" msgpack:"message"`
}

func (e *PackageError) fromWire(w packageErrorWire) error {
	for k, name := range packageErrorTypes {
		if name == w.Type {
			*e = PackageError{Kind: PackageErrorKind(k), Spec: w.Package, Version: w.Version, Message: w.Message}
			return nil
		}
	}
	return fmt.Errorf("unknown package error type %q", w.Type)
}

// MarshalJSON emits the tagged shape.
func (e *PackageError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.wire())
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *PackageError) UnmarshalJSON(b []byte) error {
	var w packageErrorWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	return e.fromWire(w)
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (e *PackageError) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(map[string]any(e.wire()))
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (e *PackageError) DecodeMsgpack(dec *msgpack.Decoder) error {
	var w packageErrorWire
	if err := dec.Decode(&w); err != nil {
		return err
	}
	return e.fromWire(w)
}
