package boundary

import (
	"sort"

	"github.com/wippyai/docbridge"
	"github.com/wippyai/docbridge/errors"
)

// Grower is memory that can be extended by whole pages.
type Grower interface {
	docbridge.MemorySizer
	Grow(pages uint32) (uint32, bool)
}

// heapBase keeps offset 0 out of the heap so a zero pointer is never valid.
const heapBase = 16

type block struct {
	off, size uint32
}

// FreeList is a first-fit allocator over a growable memory. Free blocks are
// kept sorted by offset and coalesced on release. It is not safe for
// concurrent use; Arena serializes access.
type FreeList struct {
	mem  Grower
	free []block
	end  uint32
}

var _ docbridge.Allocator = (*FreeList)(nil)

// NewFreeList manages all of mem above a small reserved prefix.
func NewFreeList(mem Grower) *FreeList {
	f := &FreeList{mem: mem, end: heapBase}
	f.extendTo(mem.Size())
	return f
}

func (f *FreeList) extendTo(size uint32) {
	if size <= f.end {
		return
	}
	f.release(block{off: f.end, size: size - f.end})
	f.end = size
}

// Alloc returns the offset of size bytes aligned to align, growing memory
// when no free block fits.
func (f *FreeList) Alloc(size, align uint32) (uint32, error) {
	if align == 0 || align&(align-1) != 0 {
		return 0, errors.InvalidInput(errors.PhaseBoundary, "alignment must be a power of two")
	}
	if size == 0 {
		size = 1
	}

	if ptr, ok := f.take(size, align); ok {
		return ptr, nil
	}

	need := uint64(alignUp(f.end, align)) + uint64(size)
	if last := len(f.free) - 1; last >= 0 && f.free[last].off+f.free[last].size == f.end {
		need = uint64(alignUp(f.free[last].off, align)) + uint64(size)
	}
	pages := (need - uint64(f.mem.Size()) + PageSize - 1) / PageSize
	if need > 1<<32 || pages > 1<<16 {
		return 0, errors.AllocationFailed(errors.PhaseBoundary, size, align)
	}
	if _, ok := f.mem.Grow(uint32(pages)); !ok {
		return 0, errors.AllocationFailed(errors.PhaseBoundary, size, align)
	}
	f.extendTo(f.mem.Size())

	if ptr, ok := f.take(size, align); ok {
		return ptr, nil
	}
	return 0, errors.AllocationFailed(errors.PhaseBoundary, size, align)
}

func (f *FreeList) take(size, align uint32) (uint32, bool) {
	for i, b := range f.free {
		start := alignUp(b.off, align)
		if start < b.off || uint64(start)+uint64(size) > uint64(b.off)+uint64(b.size) {
			continue
		}
		end := start + size
		blockEnd := b.off + b.size

		var rest []block
		if start > b.off {
			rest = append(rest, block{off: b.off, size: start - b.off})
		}
		if end < blockEnd {
			rest = append(rest, block{off: end, size: blockEnd - end})
		}
		f.free = append(f.free[:i], append(rest, f.free[i+1:]...)...)
		return start, true
	}
	return 0, false
}

// Free returns a block. size must match the size passed to Alloc.
func (f *FreeList) Free(ptr, size, _ uint32) {
	if size == 0 {
		size = 1
	}
	f.release(block{off: ptr, size: size})
}

func (f *FreeList) release(b block) {
	i := sort.Search(len(f.free), func(i int) bool { return f.free[i].off > b.off })
	f.free = append(f.free, block{})
	copy(f.free[i+1:], f.free[i:])
	f.free[i] = b

	if i+1 < len(f.free) && f.free[i].off+f.free[i].size == f.free[i+1].off {
		f.free[i].size += f.free[i+1].size
		f.free = append(f.free[:i+1], f.free[i+2:]...)
	}
	if i > 0 && f.free[i-1].off+f.free[i-1].size == f.free[i].off {
		f.free[i-1].size += f.free[i].size
		f.free = append(f.free[:i], f.free[i+1:]...)
	}
}

// FreeBytes reports the total size of free blocks.
func (f *FreeList) FreeBytes() uint64 {
	var n uint64
	for _, b := range f.free {
		n += uint64(b.size)
	}
	return n
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}
