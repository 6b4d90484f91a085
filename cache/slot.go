package cache

import "github.com/wippyai/docbridge/syntax"

// Slot caches everything derived from one file: its decoded source and its
// raw bytes. Each cell loads independently, so a file read only as bytes
// never gets parsed.
type Slot struct {
	ID     syntax.FileID
	Source Cell[*syntax.Source]
	File   Cell[[]byte]
}

// NewSlot creates an empty slot for id.
func NewSlot(id syntax.FileID) *Slot {
	return &Slot{ID: id}
}

// Accessed reports whether either cell was used in the current pass.
func (s *Slot) Accessed() bool {
	return s.Source.Accessed() || s.File.Accessed()
}

// Reset starts a new pass for both cells.
func (s *Slot) Reset() {
	s.Source.Reset()
	s.File.Reset()
}
