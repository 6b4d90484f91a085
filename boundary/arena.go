package boundary

import (
	"context"
	"sync"
	"unicode/utf8"

	"fortio.org/safecast"
	"go.uber.org/zap"

	"github.com/wippyai/docbridge"
	"github.com/wippyai/docbridge/errors"
)

const bufferAlign = 8

type ownership struct {
	len, cap, gen uint32
	borrows       int
	claimed       bool
}

// Arena moves byte buffers in and out of a shared memory. Every handle it
// gives out is recorded in an ownership ledger until it is unwrapped, so
// double frees and forged handles fail instead of corrupting memory.
type Arena struct {
	mem    docbridge.Memory
	alloc  docbridge.Allocator
	closer func(context.Context) error

	mu     sync.Mutex
	ledger map[uint32]*ownership
	gen    uint32
}

// NewArena builds an arena over an existing memory and allocator.
func NewArena(mem docbridge.Memory, alloc docbridge.Allocator) *Arena {
	return &Arena{
		mem:    mem,
		alloc:  alloc,
		ledger: make(map[uint32]*ownership),
	}
}

// NewLinearArena creates a wazero linear memory with a free-list allocator.
func NewLinearArena(ctx context.Context, cfg MemoryConfig) (*Arena, error) {
	mem, err := NewLinearMemory(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := NewArena(mem, NewFreeList(mem))
	a.closer = mem.Close
	return a, nil
}

// Wrap moves b into the arena. The returned handle is owned by whoever
// receives it and must eventually be passed to Unwrap or Release.
func (a *Arena) Wrap(b []byte) (BufferHandle, error) {
	n, err := safecast.Conv[uint32](len(b))
	if err != nil {
		return BufferHandle{}, errors.Overflow(errors.PhaseBoundary, []string{"wrap"}, len(b), "u32")
	}
	capacity := n
	if capacity == 0 {
		capacity = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ptr, err := a.alloc.Alloc(capacity, bufferAlign)
	if err != nil {
		return BufferHandle{}, err
	}
	if err := a.mem.Write(ptr, b); err != nil {
		a.alloc.Free(ptr, capacity, bufferAlign)
		return BufferHandle{}, err
	}
	a.gen++
	if a.gen == 0 {
		a.gen = 1
	}
	a.ledger[ptr] = &ownership{len: n, cap: capacity, gen: a.gen}

	return BufferHandle{Ptr: ptr, Len: n, Cap: capacity, Gen: a.gen}, nil
}

// WrapString moves the bytes of s into the arena.
func (a *Arena) WrapString(s string) (BufferHandle, error) {
	return a.Wrap([]byte(s))
}

// check validates h against the ledger. Caller holds mu.
func (a *Arena) check(h BufferHandle, op string) (*ownership, error) {
	own, ok := a.ledger[h.Ptr]
	if !ok {
		return nil, errors.New(errors.PhaseBoundary, errors.KindOwnership).
			Path(op).Value(h).Detail("%s is not owned by the arena", h).Build()
	}
	if own.gen != h.Gen {
		return nil, errors.New(errors.PhaseBoundary, errors.KindOwnership).
			Path(op).Value(h).Detail("%s is stale, the region now holds generation %d", h, own.gen).Build()
	}
	if own.len != h.Len || own.cap != h.Cap {
		return nil, errors.New(errors.PhaseBoundary, errors.KindOwnership).
			Path(op).Value(h).Detail("%s does not match allocation len=%d cap=%d", h, own.len, own.cap).Build()
	}
	return own, nil
}

// Unwrap moves the bytes out of the arena and frees the handle. It is the
// only way to dispose of a handle; a second Unwrap of the same handle fails.
func (a *Arena) Unwrap(h BufferHandle) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	own, err := a.check(h, "unwrap")
	if err != nil {
		return nil, err
	}
	if own.borrows > 0 {
		return nil, errors.Ownership(errors.PhaseBoundary, "%s is borrowed %d time(s)", h, own.borrows)
	}

	view, err := a.mem.Read(h.Ptr, h.Len)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(view))
	copy(out, view)

	delete(a.ledger, h.Ptr)
	a.alloc.Free(h.Ptr, h.Cap, bufferAlign)
	return out, nil
}

// UnwrapString unwraps h and validates the bytes as UTF-8.
func (a *Arena) UnwrapString(h BufferHandle) (string, error) {
	b, err := a.Unwrap(h)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.InvalidUTF8(errors.PhaseBoundary, []string{"unwrap_string"}, b)
	}
	return string(b), nil
}

// Release disposes of a handle whose contents are not needed.
func (a *Arena) Release(h BufferHandle) error {
	_, err := a.Unwrap(h)
	return err
}

// Inspect lends a copy of the handle's bytes to fn without taking ownership.
// While fn runs the handle cannot be unwrapped; the borrow ends on every exit
// path, so the owner's later Unwrap stays valid.
func (a *Arena) Inspect(h BufferHandle, fn func([]byte) error) error {
	a.mu.Lock()
	own, err := a.check(h, "inspect")
	if err != nil {
		a.mu.Unlock()
		return err
	}
	view, err := a.mem.Read(h.Ptr, h.Len)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	data := make([]byte, len(view))
	copy(data, view)
	own.borrows++
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		own.borrows--
		a.mu.Unlock()
	}()

	return fn(data)
}

// Owns reports whether h is a live, unclaimed handle of this arena.
func (a *Arena) Owns(h BufferHandle) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	own, err := a.check(h, "owns")
	return err == nil && !own.claimed
}

// Claim marks h as taken by the caller, who must then Unwrap or Release it.
// Only the first Claim of a handle succeeds.
func (a *Arena) Claim(h BufferHandle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	own, err := a.check(h, "claim")
	if err != nil {
		return err
	}
	if own.claimed {
		return errors.Ownership(errors.PhaseBoundary, "%s is already claimed", h)
	}
	own.claimed = true
	return nil
}

// Live reports the number of handles not yet unwrapped.
func (a *Arena) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.ledger)
}

// Memory exposes the arena memory for hosts that address it directly.
func (a *Arena) Memory() docbridge.Memory {
	return a.mem
}

// Close releases the backing memory. Outstanding handles are logged as leaks.
func (a *Arena) Close(ctx context.Context) error {
	a.mu.Lock()
	leaked := len(a.ledger)
	a.ledger = make(map[uint32]*ownership)
	a.mu.Unlock()

	if leaked > 0 {
		Logger().Warn("arena closed with live buffers", zap.Int("leaked", leaked))
	}
	if a.closer != nil {
		return a.closer(ctx)
	}
	return nil
}
