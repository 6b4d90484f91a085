package boundary

import "fmt"

// BufferHandle is a moved byte buffer: a region of arena memory plus the
// length in use and the capacity that was allocated for it. It is owned by
// exactly one side at a time. Gen tells apart buffers that reuse a freed
// region.
type BufferHandle struct {
	Ptr uint32 `json:"ptr"`
	Len uint32 `json:"len"`
	Cap uint32 `json:"cap"`
	Gen uint32 `json:"gen"`
}

// IsNull reports whether h is the zero handle, which never refers to a buffer.
func (h BufferHandle) IsNull() bool {
	return h.Ptr == 0
}

func (h BufferHandle) String() string {
	return fmt.Sprintf("buffer{ptr=%#x len=%d cap=%d gen=%d}", h.Ptr, h.Len, h.Cap, h.Gen)
}
