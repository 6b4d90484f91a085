package syntax

import "fmt"

// Span is a compact reference to a byte range of an interned file:
// 16 bits of FileRef, then 24 bits each for start and end offsets.
// The zero Span is detached and refers to no file.
type Span uint64

const (
	offsetBits = 24
	maxOffset  = 1<<offsetBits - 1
)

// Detached is the span of synthesized content.
const Detached Span = 0

// overflowed is the range of a span whose offsets do not fit. Its start
// lies after its end, which no valid range does.
const overflowed = maxOffset << offsetBits

// NewSpan packs a range of file ref. A span with an offset beyond the
// 24-bit range keeps its file but has no usable range.
func NewSpan(ref FileRef, start, end int) Span {
	if ref == 0 {
		return Detached
	}
	if start > maxOffset || end > maxOffset {
		return Span(uint64(ref)<<48 | overflowed)
	}
	start = max(start, 0)
	if end < start {
		end = start
	}
	return Span(uint64(ref)<<48 | uint64(start)<<offsetBits | uint64(end))
}

// Overflowed reports whether the span was built from offsets too large to
// encode.
func (s Span) Overflowed() bool {
	return !s.IsDetached() && s&(1<<48-1) == overflowed
}

// File returns the interned file, 0 for detached spans.
func (s Span) File() FileRef {
	return FileRef(s >> 48)
}

// IsDetached reports whether the span refers to no file.
func (s Span) IsDetached() bool {
	return s.File() == 0
}

// Range returns the byte offsets of the span.
func (s Span) Range() (start, end int) {
	return int(s>>offsetBits) & maxOffset, int(s) & maxOffset
}

// Join covers both spans when they are in the same file.
func (s Span) Join(other Span) Span {
	if s.IsDetached() {
		return other
	}
	if other.File() != s.File() || s.Overflowed() {
		return s
	}
	if other.Overflowed() {
		return other
	}
	a, b := s.Range()
	c, d := other.Range()
	return NewSpan(s.File(), min(a, c), max(b, d))
}

// Or returns other when s is detached.
func (s Span) Or(other Span) Span {
	if s.IsDetached() {
		return other
	}
	return s
}

func (s Span) String() string {
	if s.IsDetached() {
		return "detached"
	}
	if s.Overflowed() {
		return fmt.Sprintf("%d:overflowed", s.File())
	}
	start, end := s.Range()
	return fmt.Sprintf("%d:%d-%d", s.File(), start, end)
}
