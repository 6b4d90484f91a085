package syntax

import (
	"sort"
	"unicode/utf8"
)

// Source is the text of one file with a line index. Offsets are bytes;
// lines and columns reported to users are 1-based and columns count
// characters.
type Source struct {
	id      FileID
	ref     FileRef
	text    string
	lines   []int
	version uint64
}

// NewSource builds a source for id, interning the id.
func NewSource(id FileID, text string) *Source {
	return &Source{
		id:    id,
		ref:   Intern(id),
		text:  text,
		lines: lineStarts(text, 0, []int{0}),
	}
}

// DetachedSource builds a source that is not backed by any file. Its spans are
// detached.
func DetachedSource(text string) *Source {
	return &Source{text: text, lines: lineStarts(text, 0, []int{0})}
}

func lineStarts(text string, from int, starts []int) []int {
	for i := from; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// ID returns the file this source belongs to.
func (s *Source) ID() FileID { return s.id }

// Ref returns the interned file reference used in spans.
func (s *Source) Ref() FileRef { return s.ref }

// Text returns the full text.
func (s *Source) Text() string { return s.text }

// Len returns the text length in bytes.
func (s *Source) Len() int { return len(s.text) }

// Version increases each time Replace changes the text.
func (s *Source) Version() uint64 { return s.version }

// Span returns a span over a byte range of this source.
func (s *Source) Span(start, end int) Span {
	return NewSpan(s.ref, start, end)
}

// Replace swaps in new text, keeping the line index of the unchanged
// prefix. It reports whether the text changed.
func (s *Source) Replace(text string) bool {
	if text == s.text {
		return false
	}
	prefix := 0
	for prefix < len(text) && prefix < len(s.text) && text[prefix] == s.text[prefix] {
		prefix++
	}

	// Line starts at or before the first changed byte are still valid.
	keep := sort.SearchInts(s.lines, prefix+1)
	lines := make([]int, keep, keep+len(text)/32+1)
	copy(lines, s.lines[:keep])
	from := 0
	if keep > 0 {
		from = lines[keep-1]
	}
	s.lines = lineStarts(text, from, lines)
	s.text = text
	s.version++
	return true
}

// LineCount returns the number of lines.
func (s *Source) LineCount() int {
	return len(s.lines)
}

// Line returns the text of a 1-based line without its newline.
func (s *Source) Line(n int) (string, bool) {
	if n < 1 || n > len(s.lines) {
		return "", false
	}
	start := s.lines[n-1]
	end := len(s.text)
	if n < len(s.lines) {
		end = s.lines[n] - 1
	}
	if end > start && s.text[end-1] == '\r' {
		end--
	}
	return s.text[start:end], true
}

// ByteToLine returns the 0-based line containing offset.
func (s *Source) ByteToLine(offset int) (int, bool) {
	if offset < 0 || offset > len(s.text) {
		return 0, false
	}
	return sort.SearchInts(s.lines, offset+1) - 1, true
}

// ByteToColumn returns the 0-based column of offset in characters.
func (s *Source) ByteToColumn(offset int) (int, bool) {
	line, ok := s.ByteToLine(offset)
	if !ok {
		return 0, false
	}
	return utf8.RuneCountInString(s.text[s.lines[line]:offset]), true
}

// LineCol returns the 1-based line and column of offset.
func (s *Source) LineCol(offset int) (line, col int, ok bool) {
	l, ok := s.ByteToLine(offset)
	if !ok {
		return 0, 0, false
	}
	c, _ := s.ByteToColumn(offset)
	return l + 1, c + 1, true
}

// Range returns the byte range of span if it points into this source.
func (s *Source) Range(span Span) (start, end int, ok bool) {
	if span.IsDetached() || span.File() != s.ref {
		return 0, 0, false
	}
	start, end = span.Range()
	if end > len(s.text) || start > end {
		return 0, 0, false
	}
	return start, end, true
}
