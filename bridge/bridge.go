package bridge

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"fortio.org/safecast"
	"go.uber.org/zap"

	"github.com/wippyai/docbridge/boundary"
	"github.com/wippyai/docbridge/compiler"
	"github.com/wippyai/docbridge/compiler/mini"
	"github.com/wippyai/docbridge/envelope"
	"github.com/wippyai/docbridge/errors"
	"github.com/wippyai/docbridge/fonts"
	"github.com/wippyai/docbridge/packages"
	"github.com/wippyai/docbridge/resource"
	"github.com/wippyai/docbridge/world"
)

// Options configures a Bridge.
type Options struct {
	// Engine compiles documents. Nil means the reference engine.
	Engine compiler.Engine
	// Codec encodes envelope payloads. Nil means JSON.
	Codec envelope.Codec
	// Memory sizes the transfer arena. A zero MaxPages means
	// boundary.DefaultMemoryConfig.
	Memory boundary.MemoryConfig
	// Packages serves the preview namespace to worlds created with
	// auto-loading enabled.
	Packages packages.Store
	Fonts    *fonts.Catalog
	Logger   *zap.Logger
	// Clock replaces time.Now for worlds on the system clock.
	Clock func() time.Time
}

// Bridge is the boundary surface. It owns the transfer arena, the release
// registry and the handle table of worlds and libraries.
type Bridge struct {
	arena    *boundary.Arena
	codec    envelope.Codec
	registry *envelope.Registry
	engine   compiler.Engine
	packages packages.Store
	fonts    *fonts.Catalog
	logger   *zap.Logger
	clock    func() time.Time

	table     *resource.Table
	worlds    resource.Typed[*world.World]
	libraries resource.Typed[*compiler.Library]
}

// New creates a bridge with its own arena.
func New(ctx context.Context, opts Options) (*Bridge, error) {
	mem := opts.Memory
	if mem.MaxPages == 0 {
		mem = boundary.DefaultMemoryConfig()
	}
	arena, err := boundary.NewLinearArena(ctx, mem)
	if err != nil {
		return nil, fmt.Errorf("create arena: %w", err)
	}

	b := &Bridge{
		arena:    arena,
		codec:    opts.Codec,
		engine:   opts.Engine,
		packages: opts.Packages,
		fonts:    opts.Fonts,
		logger:   opts.Logger,
		clock:    opts.Clock,
		table:    resource.NewTable(),
	}
	if b.codec == nil {
		b.codec = envelope.JSON
	}
	if b.logger == nil {
		b.logger = Logger()
	}
	if b.engine == nil {
		b.engine = mini.NewWithOptions(mini.Options{Logger: b.logger})
	}
	b.registry = envelope.NewRegistry(b.logger)
	b.worlds = resource.NewTyped[*world.World](b.table, resource.TypeWorld)
	b.libraries = resource.NewTyped[*compiler.Library](b.table, resource.TypeLibrary)
	b.table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
		if e.Type == resource.EventCreated || e.Type == resource.EventDropped {
			b.logger.Debug("resource",
				zap.Stringer("event", e.Type),
				zap.Stringer("type", e.TypeID),
				zap.Uint32("handle", uint32(e.Handle)))
		}
	}))

	b.logger.Info("bridge ready",
		zap.String("engine", b.engine.Name()),
		zap.String("codec", b.codec.Name()),
		zap.Uint32("max_pages", mem.MaxPages))
	return b, nil
}

// Close frees every world and library and the arena.
func (b *Bridge) Close(ctx context.Context) error {
	if n := b.arena.Live(); n > 0 {
		b.logger.Warn("closing with live buffers", zap.Int("buffers", n))
	}
	tableErr := b.table.Close()
	if err := b.arena.Close(ctx); err != nil {
		return err
	}
	return tableErr
}

// Arena is the transfer arena. Hosts wrap their inputs in it and unpack
// results from it.
func (b *Bridge) Arena() *boundary.Arena { return b.arena }

// Codec is the envelope codec.
func (b *Bridge) Codec() envelope.Codec { return b.codec }

// Engine is the compiler engine.
func (b *Bridge) Engine() compiler.Engine { return b.engine }

// Releaser is the registry that envelopes sent to the bridge are released
// through.
func (b *Bridge) Releaser() envelope.Releaser { return b.registry }

// SetReleaseCallback installs the host's ticket release function. Only the
// first call succeeds.
func (b *Bridge) SetReleaseCallback(fn func(ticket int64)) bool {
	return b.registry.Set(fn)
}

// Worlds reports how many worlds are open.
func (b *Bridge) Worlds() int { return b.worlds.Len() }

// Libraries reports how many libraries are open.
func (b *Bridge) Libraries() int { return b.libraries.Len() }

func toHandle(h int64) (resource.Handle, bool) {
	v, err := safecast.Conv[uint32](h)
	if err != nil || v == 0 {
		return 0, false
	}
	return resource.Handle(v), true
}

func invalidHandle(what string, h int64) *errors.Exception {
	return errors.FromError(errors.IllegalArgument, errors.InvalidHandle(errors.PhaseBoundary, what, h))
}

// borrowWorld lends the world behind h to fn with exclusive access: calls
// on the same world run one after another. The handle stays valid on
// every exit path, including a panic in fn, which is turned into an
// exception.
func (b *Bridge) borrowWorld(h int64, fn func(*world.World) error) (err error) {
	rh, ok := toHandle(h)
	if !ok {
		return invalidHandle("world", h)
	}
	err = b.worlds.Borrow(rh, func(w *world.World) error {
		return w.Exclusive(func() (err error) {
			defer b.recover(&err)
			return fn(w)
		})
	})
	if stderrors.Is(err, resource.ErrInvalidHandle) || stderrors.Is(err, resource.ErrTypeMismatch) {
		return invalidHandle("world", h)
	}
	return err
}

func (b *Bridge) library(h int64) (*compiler.Library, error) {
	rh, ok := toHandle(h)
	if !ok {
		return nil, invalidHandle("library", h)
	}
	lib, err := b.libraries.Get(rh)
	if err != nil {
		return nil, invalidHandle("library", h)
	}
	return lib, nil
}

// recover turns a panic into an exception stored in *err.
func (b *Bridge) recover(err *error) {
	if r := recover(); r != nil {
		b.logger.Error("panic at the boundary", zap.Any("panic", r), zap.Stack("stack"))
		*err = errors.FromPanic(r)
	}
}

// exception converts err for the host. Exceptions pass through.
func exception(kind errors.ExceptionKind, err error) *errors.Exception {
	var exc *errors.Exception
	if stderrors.As(err, &exc) {
		return exc
	}
	return errors.FromError(kind, err)
}

// fail reports err through the Excepted side channel.
func (b *Bridge) fail(op string, err error) envelope.Excepted {
	exc := exception(errors.Internal, err)
	b.logger.Warn("call failed", zap.String("op", op), zap.Error(exc))
	return envelope.Fail(b.arena, b.codec, exc)
}

// pack serializes v into a result envelope.
func pack[T any](b *Bridge, v T) (envelope.Envelope, error) {
	env, err := envelope.Pack(b.arena, b.codec, v)
	if err != nil {
		return envelope.Envelope{}, exception(errors.SerializationFailure, err)
	}
	return env, nil
}

// input consumes a host string.
func (b *Bridge) input(h boundary.BufferHandle) (string, error) {
	s, err := b.arena.UnwrapString(h)
	if err != nil {
		return "", exception(errors.OwnershipViolation, err)
	}
	return s, nil
}

// FreeString releases a buffer the bridge handed to the host.
func (b *Bridge) FreeString(buf boundary.BufferHandle) error {
	if err := b.arena.Release(buf); err != nil {
		return exception(errors.OwnershipViolation, err)
	}
	return nil
}
