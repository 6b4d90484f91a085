package docbridge

// Memory is the byte region shared by both sides of the boundary.
// Offsets are 32-bit because the default region is a WASM linear memory.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	WriteU32(offset uint32, value uint32) error
}

// MemorySizer provides the current size of the region in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator hands out blocks of Memory. Free must be given the same
// size and align that Alloc was called with.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}
