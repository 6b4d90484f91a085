package boundary

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/docbridge/errors"
)

// PageSize is the WASM linear memory page size.
const PageSize = 65536

// MemoryConfig sizes the linear memory backing an arena.
type MemoryConfig struct {
	InitialPages uint32
	// MaxPages caps growth. Zero means the wazero default limit.
	MaxPages uint32
}

// DefaultMemoryConfig starts with one page and allows growth to 256 MiB.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{InitialPages: 1, MaxPages: 4096}
}

// LinearMemory is a memory-only WASM module instantiated in wazero. It
// implements docbridge.Memory and docbridge.MemorySizer.
type LinearMemory struct {
	rt  wazero.Runtime
	mod api.Module
	mem api.Memory
}

// NewLinearMemory instantiates a module that exports a single memory.
func NewLinearMemory(ctx context.Context, cfg MemoryConfig) (*LinearMemory, error) {
	if cfg.InitialPages == 0 {
		cfg.InitialPages = 1
	}
	if cfg.MaxPages != 0 && cfg.MaxPages < cfg.InitialPages {
		return nil, errors.InvalidInput(errors.PhaseBoundary,
			fmt.Sprintf("max pages %d below initial pages %d", cfg.MaxPages, cfg.InitialPages))
	}

	rcfg := wazero.NewRuntimeConfig()
	if cfg.MaxPages != 0 {
		rcfg = rcfg.WithMemoryLimitPages(cfg.MaxPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rcfg)

	compiled, err := rt.CompileModule(ctx, memoryModule(cfg.InitialPages, cfg.MaxPages))
	if err != nil {
		rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseBoundary, errors.KindInvalidData, err, "compile memory module")
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("docbridge-arena"))
	if err != nil {
		rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseBoundary, errors.KindAllocation, err, "instantiate memory module")
	}
	mem := mod.ExportedMemory("memory")
	if mem == nil {
		rt.Close(ctx)
		return nil, errors.NotFound(errors.PhaseBoundary, "export", "memory")
	}

	Logger().Debug("linear memory ready",
		zap.Uint32("initial_pages", cfg.InitialPages),
		zap.Uint32("max_pages", cfg.MaxPages))

	return &LinearMemory{rt: rt, mod: mod, mem: mem}, nil
}

// memoryModule encodes a module with one memory export named "memory".
func memoryModule(initial, limit uint32) []byte {
	limits := []byte{0x00}
	limits = appendULEB(limits, initial)
	if limit != 0 {
		limits[0] = 0x01
		limits = appendULEB(limits, limit)
	}
	memSection := append([]byte{0x01}, limits...)

	exportSection := []byte{0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00}

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, 0x05)
	out = appendULEB(out, uint32(len(memSection)))
	out = append(out, memSection...)
	out = append(out, 0x07)
	out = appendULEB(out, uint32(len(exportSection)))
	out = append(out, exportSection...)
	return out
}

func appendULEB(b []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}

// Read returns a view of the memory. The view is invalidated by Grow.
func (m *LinearMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseBoundary, nil, int(offset)+int(length), int(m.mem.Size()))
	}
	return data, nil
}

// Write writes bytes to memory.
func (m *LinearMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseBoundary, nil, int(offset)+len(data), int(m.mem.Size()))
	}
	return nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *LinearMemory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseBoundary, nil, int(offset)+4, int(m.mem.Size()))
	}
	return v, nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *LinearMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseBoundary, nil, int(offset)+4, int(m.mem.Size()))
	}
	return nil
}

// Size returns the memory size in bytes.
func (m *LinearMemory) Size() uint32 {
	return m.mem.Size()
}

// Grow adds pages and returns the previous size in pages.
func (m *LinearMemory) Grow(pages uint32) (uint32, bool) {
	return m.mem.Grow(pages)
}

// Close releases the wazero runtime.
func (m *LinearMemory) Close(ctx context.Context) error {
	return m.rt.Close(ctx)
}
