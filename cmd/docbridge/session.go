package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/docbridge/boundary"
	"github.com/wippyai/docbridge/bridge"
	"github.com/wippyai/docbridge/compiler"
	"github.com/wippyai/docbridge/config"
	"github.com/wippyai/docbridge/envelope"
	"github.com/wippyai/docbridge/fonts"
	"github.com/wippyai/docbridge/host"
	"github.com/wippyai/docbridge/packages"
	"github.com/wippyai/docbridge/world"
)

// session is one bridge acting for the CLI, with at most one open world.
type session struct {
	cfg      *config.Config
	logger   *zap.Logger
	bridge   *bridge.Bridge
	tickets  *host.Tickets
	files    host.Provider
	reporter *reporter

	root     string
	main     string
	features int32
	inputs   map[string]string
	world    int64
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path == "" {
		found, ok, err := config.Find(".")
		if err != nil {
			return nil, err
		}
		if !ok {
			return config.Default(), nil
		}
		path = found
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config, verbose bool) (*zap.Logger, error) {
	if !verbose {
		return cfg.Logger()
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	return zc.Build()
}

// openSession builds a bridge from the configuration and flags. file, when
// set, replaces the configured root and main file.
func openSession(cmd *cobra.Command, file string) (*session, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger, err := newLogger(cfg, verbose)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	bridge.SetLogger(logger)
	world.SetLogger(logger)
	host.SetLogger(logger)
	packages.SetLogger(logger)
	fonts.SetLogger(logger)
	boundary.SetLogger(logger)

	s := &session{cfg: cfg, logger: logger, root: cfg.World.Root, main: cfg.World.Main}
	if root, _ := cmd.Flags().GetString("root"); root != "" {
		s.root = root
	}
	if main, _ := cmd.Flags().GetString("main"); main != "" {
		s.main = main
	}
	if file != "" {
		abs, err := filepath.Abs(file)
		if err != nil {
			return nil, err
		}
		s.root, s.main = filepath.Dir(abs), filepath.Base(abs)
	}
	if s.inputs, err = cmd.Flags().GetStringToString("input"); err != nil {
		return nil, err
	}
	if html, _ := cmd.Flags().GetBool("html"); html {
		s.features |= int32(compiler.FeatureHTML)
	}

	codec, err := cfg.Codec()
	if err != nil {
		return nil, err
	}
	catalog, err := fonts.Search(ctx, cfg.FontSearch(logger))
	if err != nil {
		return nil, fmt.Errorf("search fonts: %w", err)
	}
	b, err := bridge.New(ctx, bridge.Options{
		Codec:    codec,
		Memory:   cfg.Memory(),
		Packages: packages.New(cfg.PackageOptions(logger)),
		Fonts:    catalog,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	s.bridge = b
	s.tickets = host.NewTickets()
	b.SetReleaseCallback(s.tickets.Release)
	s.files = host.Dir{Root: s.root, Packages: cfg.Packages.DataDir}

	colored, err := useColor(cmd, os.Stderr)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	s.reporter = newReporter(os.Stderr, s.files, colored)
	return s, nil
}

// libraryInputs renders the --input flags as a dictionary literal.
func libraryInputs(inputs map[string]string) string {
	if len(inputs) == 0 {
		return "(:)"
	}
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strconv.Quote(k) + ": " + strconv.Quote(inputs[k])
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// openWorld creates the session world the way a host would: a main
// callback, a file callback backed by the project directory and a clock
// passed through an envelope.
func (s *session) openWorld() (int64, error) {
	if s.world != 0 {
		return s.world, nil
	}
	b := s.bridge
	lib, err := b.OpenLibrary(s.features, libraryInputs(s.inputs))
	if err != nil {
		return 0, fmt.Errorf("create library: %w", err)
	}
	defer func() {
		if err := b.FreeLibrary(lib); err != nil {
			s.logger.Warn("free library", zap.Error(err))
		}
	}()

	clock, err := s.cfg.Now()
	if err != nil {
		return 0, err
	}
	now, err := envelope.PackTicket(b.Arena(), b.Codec(), s.tickets.Issue(nil), *clock)
	if err != nil {
		return 0, err
	}
	r := &host.Responder{Arena: b.Arena(), Codec: b.Codec(), Tickets: s.tickets, Logger: s.logger}
	autoLoad := int32(0)
	if s.cfg.World.AutoLoadRegistry {
		autoLoad = 1
	}
	ex := b.NewWorld(lib, r.Main("/"+filepath.ToSlash(s.main)), r.Files(s.files), now, autoLoad)
	if ex.Failed() {
		exc, err := ex.Exception(b.Arena(), b.Codec())
		if err != nil {
			return 0, err
		}
		if exc == nil {
			return 0, fmt.Errorf("create world: failed without an exception record")
		}
		return 0, fmt.Errorf("create world: %w", exc)
	}
	s.world = ex.Handle
	s.logger.Debug("world opened", zap.String("root", s.root), zap.String("main", s.main))
	return s.world, nil
}

// wrap copies s into the arena as a call argument.
func (s *session) wrap(text string) (boundary.BufferHandle, error) {
	return s.bridge.Arena().WrapString(text)
}

func (s *session) Close(ctx context.Context) {
	if s.world != 0 {
		if err := s.bridge.FreeWorld(s.world); err != nil {
			s.logger.Warn("free world", zap.Error(err))
		}
	}
	if n := s.tickets.Pending(); n > 0 {
		s.logger.Warn("tickets never released", zap.Int("count", n))
	}
	if err := s.bridge.Close(ctx); err != nil {
		s.logger.Warn("close bridge", zap.Error(err))
	}
	_ = s.logger.Sync()
}
