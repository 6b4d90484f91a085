package world

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/wippyai/docbridge/boundary"
	"github.com/wippyai/docbridge/cache"
	"github.com/wippyai/docbridge/compiler"
	"github.com/wippyai/docbridge/diag"
	"github.com/wippyai/docbridge/envelope"
	"github.com/wippyai/docbridge/errors"
	"github.com/wippyai/docbridge/fonts"
	"github.com/wippyai/docbridge/packages"
	"github.com/wippyai/docbridge/syntax"
)

// MainCallback asks the host for the entry file. The envelope holds a
// serialized syntax.FileID.
type MainCallback func() envelope.Envelope

// FileCallback asks the host for the bytes of a file. descriptor holds a
// serialized syntax.FileID and stays owned by the world; the host may
// Inspect it. The reply envelope holds a Result[envelope.Hex, *diag.FileError].
type FileCallback func(descriptor boundary.BufferHandle) envelope.Envelope

// Reply is the payload of a FileCallback envelope.
type Reply = envelope.Result[envelope.Hex, *diag.FileError]

// Options configures a World.
type Options struct {
	Library *compiler.Library
	Main    MainCallback
	Files   FileCallback
	// Now is the clock. Nil means the world cannot tell the date.
	Now *Now
	// AutoLoadRegistry routes files of the preview namespace to Packages.
	// Otherwise they are requested from the host like any other file.
	AutoLoadRegistry bool
	Packages         packages.Store
	Fonts            *fonts.Catalog
	// Arena carries callback payloads. Required when Main or Files is set.
	Arena    *boundary.Arena
	Codec    envelope.Codec
	Releaser envelope.Releaser
	Logger   *zap.Logger
	// MainPath fixes the entry file so Main never calls back.
	MainPath string
	// Overlays are in-memory files keyed by syntax.FileID.Key. They shadow
	// the host and the package store.
	Overlays map[string][]byte
	// Clock replaces time.Now for the system clock.
	Clock func() time.Time
}

// World is the environment of one document. It caches files across
// compilation passes. Its methods are safe for concurrent use, but a pass
// updates cached sources in place, so whole calls that compile, evaluate
// or reset must run under Exclusive.
type World struct {
	library  *compiler.Library
	main     MainCallback
	files    FileCallback
	now      *Now
	autoLoad bool
	packages packages.Store
	fonts    *fonts.Catalog
	arena    *boundary.Arena
	codec    envelope.Codec
	releaser envelope.Releaser
	logger   *zap.Logger
	mainID   *syntax.FileID
	clock    func() time.Time

	calls sync.Mutex

	mu       sync.Mutex
	slots    map[string]*cache.Slot
	overlays map[string][]byte
	latched  *time.Time
}

var (
	_ compiler.World      = (*World)(nil)
	_ diag.SourceProvider = (*World)(nil)
)

// New creates a world.
func New(opts Options) (*World, error) {
	if opts.Library == nil {
		return nil, errors.NotInitialized(errors.PhaseWorld, "library")
	}
	if (opts.Main != nil || opts.Files != nil) && opts.Arena == nil {
		return nil, errors.InvalidInput(errors.PhaseWorld, "host callbacks require an arena")
	}
	w := &World{
		library:  opts.Library,
		main:     opts.Main,
		files:    opts.Files,
		now:      opts.Now,
		autoLoad: opts.AutoLoadRegistry,
		packages: opts.Packages,
		fonts:    opts.Fonts,
		arena:    opts.Arena,
		codec:    opts.Codec,
		releaser: opts.Releaser,
		logger:   opts.Logger,
		clock:    opts.Clock,
		slots:    make(map[string]*cache.Slot),
		overlays: make(map[string][]byte, len(opts.Overlays)),
	}
	if w.codec == nil {
		w.codec = envelope.JSON
	}
	if w.logger == nil {
		w.logger = Logger()
	}
	if w.clock == nil {
		w.clock = time.Now
	}
	if opts.MainPath != "" {
		id := syntax.NewFileID(nil, opts.MainPath)
		w.mainID = &id
	}
	for k, v := range opts.Overlays {
		w.overlays[k] = bytes.Clone(v)
	}
	return w, nil
}

// Exclusive runs fn while no other Exclusive call holds the world. It is
// not reentrant: fn and the host callbacks it triggers must not call
// Exclusive on the same world.
func (w *World) Exclusive(fn func() error) error {
	w.calls.Lock()
	defer w.calls.Unlock()
	return fn()
}

func (w *World) Library() *compiler.Library { return w.library }

func (w *World) Book() []fonts.Info { return w.fonts.Book() }

func (w *World) Font(index int) (*fonts.Font, bool) { return w.fonts.Font(index) }

// Main returns the entry file, asking the host unless a main path is fixed.
func (w *World) Main() (syntax.FileID, error) {
	if w.mainID != nil {
		return *w.mainID, nil
	}
	if w.main == nil {
		return syntax.FileID{}, diag.Other("no main file configured")
	}
	env := w.main()
	id, err := envelope.Unpack[syntax.FileID](w.arena, w.codec, w.releaser, env)
	if err != nil {
		w.logger.Error("main callback reply", zap.Error(err))
		return syntax.FileID{}, err
	}
	return syntax.NewFileID(id.Package, id.Path), nil
}

// slot returns the cache slot of id, creating it. Callers hold mu.
func (w *World) slot(id syntax.FileID) *cache.Slot {
	key := id.Key()
	s, ok := w.slots[key]
	if !ok {
		s = cache.NewSlot(id)
		w.slots[key] = s
	}
	return s
}

// Source returns the decoded source of id. Unchanged files keep their
// *syntax.Source; changed files are updated in place.
func (w *World) Source(id syntax.FileID) (*syntax.Source, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.slot(id).Source.GetOrInit(
		func() ([]byte, error) { return w.obtain(id) },
		func(data []byte, prev *syntax.Source, hasPrev bool) (*syntax.Source, error) {
			text, err := decode(data)
			if err != nil {
				return nil, err
			}
			if hasPrev {
				prev.Replace(text)
				return prev, nil
			}
			return syntax.NewSource(id, text), nil
		},
	)
}

// File returns the raw bytes of id.
func (w *World) File(id syntax.FileID) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.slot(id).File.GetOrInit(
		func() ([]byte, error) { return w.obtain(id) },
		func(data []byte, _ []byte, _ bool) ([]byte, error) { return data, nil },
	)
}

var bom = []byte{0xef, 0xbb, 0xbf}

func decode(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, bom)
	if !utf8.Valid(data) {
		return "", diag.InvalidUTF8()
	}
	return string(data), nil
}

// Today returns the current time in the zone given by offset hours, or the
// local zone. Offsets of a day or more are rejected. The system clock is
// read once per pass.
func (w *World) Today(offset *int64) (time.Time, bool) {
	if w.now == nil {
		return time.Time{}, false
	}
	var now time.Time
	switch w.now.Kind {
	case NowFixed:
		now = w.now.Stamp
	default:
		w.mu.Lock()
		if w.latched == nil {
			t := w.clock()
			w.latched = &t
		}
		now = *w.latched
		w.mu.Unlock()
	}
	if offset == nil {
		return now.In(time.Local), true
	}
	hours := *offset
	if hours <= -24 || hours >= 24 {
		return time.Time{}, false
	}
	return now.In(time.FixedZone("", int(hours)*3600)), true
}

// Reset starts a new compilation pass: every cached file is checked again
// on next use and the system clock is read again.
func (w *World) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.slots {
		s.Reset()
	}
	w.latched = nil
}

// SetOverlay replaces the in-memory content of id. Nil data removes the
// overlay. The change is seen after the next Reset.
func (w *World) SetOverlay(id syntax.FileID, data []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if data == nil {
		delete(w.overlays, id.Key())
		return
	}
	w.overlays[id.Key()] = bytes.Clone(data)
}

// Cached reports how many files the world has slots for.
func (w *World) Cached() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.slots)
}

// obtain loads the bytes of id from an overlay, the package store or the
// host. Callers hold mu.
func (w *World) obtain(id syntax.FileID) ([]byte, error) {
	if data, ok := w.overlays[id.Key()]; ok {
		return data, nil
	}
	if id.InPreview() && w.autoLoad && w.packages != nil {
		return w.fromPackage(id)
	}
	return w.fromHost(id)
}

func (w *World) fromPackage(id syntax.FileID) ([]byte, error) {
	root, err := w.packages.Prepare(context.Background(), *id.Package)
	if err != nil {
		if perr, ok := err.(*diag.PackageError); ok {
			return nil, diag.InPackage(perr)
		}
		return nil, diag.Other(err.Error())
	}
	root = filepath.Clean(root)
	p := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(id.Path, "/")))
	if p != root && !strings.HasPrefix(p, root+string(filepath.Separator)) {
		return nil, diag.AccessDenied()
	}
	return ReadFile(p, id.Path)
}

// ReadFile reads a file from disk, reporting failures as *diag.FileError
// with display as the searched path.
func ReadFile(p, display string) ([]byte, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, diag.FromOSError(err, display)
	}
	if info.IsDir() {
		return nil, diag.IsDirectory()
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, diag.FromOSError(err, display)
	}
	return data, nil
}

func (w *World) fromHost(id syntax.FileID) ([]byte, error) {
	if w.files == nil {
		return nil, diag.NotFound(id.Path)
	}
	desc, err := w.codec.Marshal(id)
	if err != nil {
		return nil, diag.Other(fmt.Sprintf("cannot encode file descriptor: %v", err))
	}
	h, err := w.arena.Wrap(desc)
	if err != nil {
		return nil, diag.Other(err.Error())
	}
	env := w.files(h)
	if err := w.arena.Release(h); err != nil {
		w.logger.Warn("file callback consumed its descriptor", zap.Stringer("file", id), zap.Error(err))
	}

	reply, err := envelope.Unpack[Reply](w.arena, w.codec, w.releaser, env)
	if err != nil {
		w.logger.Error("file callback reply", zap.Stringer("file", id), zap.Error(err))
		return nil, diag.Other(err.Error())
	}
	data, ferr, ok := reply.Unpack()
	switch {
	case ok:
		return data, nil
	case ferr != nil:
		return nil, ferr
	}
	return nil, diag.Other("empty reply from file callback")
}
