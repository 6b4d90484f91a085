package bridge

import (
	stderrors "errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/docbridge/boundary"
	"github.com/wippyai/docbridge/compiler"
	"github.com/wippyai/docbridge/diag"
	"github.com/wippyai/docbridge/envelope"
	"github.com/wippyai/docbridge/errors"
	"github.com/wippyai/docbridge/resource"
	"github.com/wippyai/docbridge/syntax"
	"github.com/wippyai/docbridge/world"
)

// CreateStdlib builds a library. inputs is code evaluating to a dictionary
// and is consumed. Bit 0 of features enables html.
func (b *Bridge) CreateStdlib(features int32, inputs boundary.BufferHandle) envelope.Excepted {
	lib, err := b.createStdlib(features, inputs)
	if err != nil {
		return b.fail("create_stdlib", err)
	}
	h, err := b.libraries.Insert(lib)
	if err != nil {
		return b.fail("create_stdlib", err)
	}
	return envelope.Succeed(int64(h))
}

func (b *Bridge) createStdlib(features int32, inputs boundary.BufferHandle) (lib *compiler.Library, err error) {
	defer b.recover(&err)
	src, err := b.input(inputs)
	if err != nil {
		return nil, err
	}

	fs := compiler.FeaturesFromBits(features)
	detached := compiler.DetachedWorld{Lib: compiler.NewLibrary(fs, nil), Fonts: b.fonts}
	v, diags := b.engine.Eval(detached, src, syntax.ModeCode)
	if len(diags) > 0 {
		msgs := make([]string, len(diags))
		for i, d := range diags {
			msgs[i] = d.Message
		}
		return nil, errors.Throw(errors.IllegalArgument, "failed to evaluate library inputs: "+strings.Join(msgs, ", "), nil)
	}
	dict, ok := v.(*compiler.Dict)
	if !ok {
		return nil, errors.Throw(errors.IllegalArgument,
			fmt.Sprintf("library inputs must be a dictionary, found %s", compiler.TypeName(v)), nil)
	}
	return compiler.NewLibrary(fs, dict), nil
}

// OpenLibrary is CreateStdlib for Go callers.
func (b *Bridge) OpenLibrary(features int32, inputs string) (int64, error) {
	h, err := b.arena.WrapString(inputs)
	if err != nil {
		return 0, exception(errors.Internal, err)
	}
	return b.unexcept(b.CreateStdlib(features, h))
}

func (b *Bridge) unexcept(ex envelope.Excepted) (int64, error) {
	if !ex.Failed() {
		return ex.Handle, nil
	}
	exc, err := ex.Exception(b.arena, b.codec)
	if err != nil {
		return 0, exception(errors.SerializationFailure, err)
	}
	if exc == nil {
		return 0, errors.Throw(errors.Internal, "call failed without an exception record", nil)
	}
	return 0, exc
}

// FreeLibrary releases a library handle. Worlds built from it keep working.
func (b *Bridge) FreeLibrary(h int64) error {
	rh, ok := toHandle(h)
	if !ok {
		return invalidHandle("library", h)
	}
	if _, err := b.libraries.Remove(rh); err != nil {
		return invalidHandle("library", h)
	}
	return nil
}

// NewWorld creates a world. now holds a serialized world.Now, or null for a
// world that cannot tell the date, and is consumed. A non-zero autoLoad
// routes the preview namespace to the package store.
func (b *Bridge) NewWorld(library int64, main world.MainCallback, files world.FileCallback, now envelope.Envelope, autoLoad int32) envelope.Excepted {
	clock, err := envelope.Unpack[*world.Now](b.arena, b.codec, b.registry, now)
	if err != nil {
		return b.fail("new_world", exception(errors.IllegalArgument, err))
	}
	lib, err := b.library(library)
	if err != nil {
		return b.fail("new_world", err)
	}
	h, err := b.openWorld(world.Options{
		Library:          lib,
		Main:             main,
		Files:            files,
		Now:              clock,
		AutoLoadRegistry: autoLoad != 0,
	})
	if err != nil {
		return b.fail("new_world", err)
	}
	return envelope.Succeed(h)
}

// WorldSpec describes a world opened by a Go caller.
type WorldSpec struct {
	Library int64
	// MainPath fixes the entry file. Otherwise Main is asked.
	MainPath string
	Main     world.MainCallback
	Files    world.FileCallback
	// Overlays are in-memory files keyed by path. They shadow Files.
	Overlays map[string][]byte
	// Now is the clock. Nil means the system clock.
	Now              *world.Now
	AutoLoadRegistry bool
}

// OpenWorld is NewWorld for Go callers.
func (b *Bridge) OpenWorld(spec WorldSpec) (int64, error) {
	lib, err := b.library(spec.Library)
	if err != nil {
		return 0, err
	}
	now := spec.Now
	if now == nil {
		now = world.System()
	}
	overlays := make(map[string][]byte, len(spec.Overlays))
	for p, data := range spec.Overlays {
		overlays[syntax.NewFileID(nil, p).Key()] = data
	}
	return b.openWorld(world.Options{
		Library:          lib,
		Main:             spec.Main,
		Files:            spec.Files,
		Now:              now,
		AutoLoadRegistry: spec.AutoLoadRegistry,
		MainPath:         spec.MainPath,
		Overlays:         overlays,
	})
}

func (b *Bridge) openWorld(opts world.Options) (int64, error) {
	opts.Packages = b.packages
	opts.Fonts = b.fonts
	opts.Arena = b.arena
	opts.Codec = b.codec
	opts.Releaser = b.registry
	opts.Logger = b.logger
	opts.Clock = b.clock
	w, err := world.New(opts)
	if err != nil {
		return 0, exception(errors.IllegalArgument, err)
	}
	h, err := b.worlds.Insert(w)
	if err != nil {
		return 0, exception(errors.IllegalState, err)
	}
	return int64(h), nil
}

// ResetWorld starts a new compilation pass on h.
func (b *Bridge) ResetWorld(h int64) error {
	return b.borrowWorld(h, func(w *world.World) error {
		w.Reset()
		return nil
	})
}

// SetOverlay replaces the in-memory content of a project file of h. Nil
// data removes the overlay. It takes effect after the next reset.
func (b *Bridge) SetOverlay(h int64, path string, data []byte) error {
	return b.borrowWorld(h, func(w *world.World) error {
		w.SetOverlay(syntax.NewFileID(nil, path), data)
		return nil
	})
}

// FreeWorld releases a world. It fails while a call is using the world.
func (b *Bridge) FreeWorld(h int64) error {
	rh, ok := toHandle(h)
	if !ok {
		return invalidHandle("world", h)
	}
	w, err := b.worlds.Remove(rh)
	if stderrors.Is(err, resource.ErrOutstandingBorrow) {
		return errors.Throw(errors.IllegalState, fmt.Sprintf("world %d is in use", h), nil)
	}
	if err != nil {
		return invalidHandle("world", h)
	}
	b.logger.Debug("world freed", zap.Int64("handle", h), zap.Int("files", w.Cached()))
	return nil
}

// resolver resolves diagnostics against the sources of w.
func resolver(w *world.World) *diag.Resolver {
	return diag.NewResolver(w)
}
