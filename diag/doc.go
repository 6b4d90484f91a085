// Package diag models what goes wrong while compiling a document.
//
// Engines report SourceDiagnostics carrying interned spans. A Resolver maps
// them to Diagnostics whose AbsoluteSpan holds the file, byte range and
// 1-based line and column, falling back to -1 for anything it cannot resolve.
// FileError and PackageError are the typed failures of file loading; they
// are values, not exceptions, and serialize as tagged objects:
//
//	{"type":"NotFound","path":"/main.typ"}
//	{"type":"Package","error":{"type":"NetworkFailed","message":"timeout"}}
package diag
