package compiler

import (
	"time"

	"github.com/wippyai/docbridge/diag"
	"github.com/wippyai/docbridge/fonts"
	"github.com/wippyai/docbridge/syntax"
)

// Feature is an optional capability of a standard library.
type Feature uint32

const (
	// FeatureHTML enables html export and the html module.
	FeatureHTML Feature = 1 << iota
)

// Features is a set of enabled features.
type Features uint32

// FeaturesFromBits decodes a host feature bitset. Unknown bits are ignored.
func FeaturesFromBits(bits int32) Features {
	return Features(uint32(bits) & uint32(FeatureHTML))
}

// Has reports whether f is enabled.
func (fs Features) Has(f Feature) bool {
	return uint32(fs)&uint32(f) != 0
}

// Library is the standard library definition a world compiles against.
// It is immutable once built.
type Library struct {
	Features Features
	Inputs   *Dict
}

// NewLibrary builds a library. A nil inputs dictionary is treated as empty.
func NewLibrary(features Features, inputs *Dict) *Library {
	if inputs == nil {
		inputs = NewDict()
	}
	return &Library{Features: features, Inputs: inputs}
}

// World is everything an engine may ask of its environment.
type World interface {
	Library() *Library
	// Main returns the entry file.
	Main() (syntax.FileID, error)
	// Source returns the parsed source of id. Errors are *diag.FileError.
	Source(id syntax.FileID) (*syntax.Source, error)
	// File returns the raw bytes of id. Errors are *diag.FileError.
	File(id syntax.FileID) ([]byte, error)
	Book() []fonts.Info
	Font(index int) (*fonts.Font, bool)
	// Today returns the current date, shifted by offset hours when given.
	// ok is false when the world has no clock.
	Today(offset *int64) (t time.Time, ok bool)
}

// Output is the result of a compilation. Document is nil when Errors is
// non-empty.
type Output struct {
	Document *Document
	Warnings []diag.SourceDiagnostic
	Errors   []diag.SourceDiagnostic
}

// Engine compiles documents. Implementations must be safe to call from
// several goroutines with distinct worlds.
type Engine interface {
	Name() string
	// Parse builds a lossless syntax tree. It never fails; problems are
	// error nodes in the tree.
	Parse(text string, mode syntax.Mode) *syntax.Node
	Compile(w World) Output
	// Eval evaluates detached text. Errors are returned as diagnostics.
	Eval(w World, text string, mode syntax.Mode) (Value, []diag.SourceDiagnostic)
	// Select returns the elements of doc matched by a value produced by
	// Eval. The error explains why selector is not a selector.
	Select(doc *Document, selector Value) ([]Value, error)
	HTML(doc *Document) (string, []diag.SourceDiagnostic)
	SVG(page *Page) string
	PNG(page *Page, ppi float32) ([]byte, error)
	Format(text string, column, tab int) (string, error)
}

// DetachedWorld is a world without files or a clock, used to evaluate
// standalone snippets such as library inputs.
type DetachedWorld struct {
	Lib   *Library
	Fonts *fonts.Catalog
}

func (w DetachedWorld) Library() *Library { return w.Lib }

func (w DetachedWorld) Main() (syntax.FileID, error) {
	return syntax.FileID{}, diag.Other("detached world has no main file")
}

func (w DetachedWorld) Source(id syntax.FileID) (*syntax.Source, error) {
	return nil, diag.NotFound(id.Path)
}

func (w DetachedWorld) File(id syntax.FileID) ([]byte, error) {
	return nil, diag.NotFound(id.Path)
}

func (w DetachedWorld) Book() []fonts.Info { return w.Fonts.Book() }

func (w DetachedWorld) Font(index int) (*fonts.Font, bool) { return w.Fonts.Font(index) }

func (w DetachedWorld) Today(*int64) (time.Time, bool) { return time.Time{}, false }
