package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/docbridge/boundary"
	"github.com/wippyai/docbridge/envelope"
	"github.com/wippyai/docbridge/errors"
	"github.com/wippyai/docbridge/fonts"
	"github.com/wippyai/docbridge/packages"
	"github.com/wippyai/docbridge/world"
)

// FileName is the configuration file Find looks for.
const FileName = "docbridge.toml"

// Duration is a time.Duration written as a string such as "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the bridge and CLI configuration.
type Config struct {
	World    WorldConfig    `toml:"world"`
	Packages PackagesConfig `toml:"packages"`
	Fonts    FontsConfig    `toml:"fonts"`
	Boundary BoundaryConfig `toml:"boundary"`
	Log      LogConfig      `toml:"log"`

	// Path is the file the configuration was loaded from, if any.
	Path string `toml:"-"`
}

type WorldConfig struct {
	// Root is the project directory. Relative paths are resolved against
	// the configuration file.
	Root string `toml:"root"`
	Main string `toml:"main"`
	// FixedTime is an RFC 3339 stamp. Empty means the system clock.
	FixedTime        string `toml:"fixed_time"`
	AutoLoadRegistry bool   `toml:"auto_load_registry"`
}

type PackagesConfig struct {
	RegistryURL string   `toml:"registry_url"`
	CacheDir    string   `toml:"cache_dir"`
	DataDir     string   `toml:"data_dir"`
	Timeout     Duration `toml:"timeout"`
}

type FontsConfig struct {
	Dirs          []string `toml:"dirs"`
	IncludeSystem bool     `toml:"include_system"`
}

type BoundaryConfig struct {
	// Codec is "json" or "msgpack".
	Codec            string `toml:"codec"`
	MemoryLimitPages uint32 `toml:"memory_limit_pages"`
}

type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cacheDir := ""
	if dir, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(dir, "docbridge", "packages")
	}
	return &Config{
		World: WorldConfig{
			Root:             ".",
			Main:             "main.typ",
			AutoLoadRegistry: true,
		},
		Packages: PackagesConfig{
			RegistryURL: packages.DefaultRegistry,
			CacheDir:    cacheDir,
			Timeout:     Duration{30 * time.Second},
		},
		Fonts: FontsConfig{IncludeSystem: true},
		Boundary: BoundaryConfig{
			Codec:            envelope.JSON.Name(),
			MemoryLimitPages: boundary.DefaultMemoryConfig().MaxPages,
		},
		Log: LogConfig{Level: "info"},
	}
}

func invalid(key string, format string, args ...any) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Path(strings.Split(key, ".")...).
		Detail(format, args...).
		Build()
}

// Load reads path over the defaults. Keys absent from the file keep their
// default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, fmt.Sprintf("%s: failed to parse TOML", path))
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, invalid(undecoded[0].String(), "%s: unknown key", path)
	}
	cfg.Path = path

	base := filepath.Dir(path)
	for _, p := range []*string{&cfg.World.Root, &cfg.Packages.CacheDir, &cfg.Packages.DataDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	for i, d := range cfg.Fonts.Dirs {
		if !filepath.IsAbs(d) {
			cfg.Fonts.Dirs[i] = filepath.Join(base, d)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Find walks up from dir looking for FileName.
func Find(dir string) (string, bool, error) {
	if dir == "" {
		dir = "."
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !stderrors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// Validate checks values that cannot be checked by decoding alone.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.World.Main) == "" {
		return invalid("world.main", "must not be empty")
	}
	if _, err := c.Now(); err != nil {
		return err
	}
	if _, err := c.Codec(); err != nil {
		return invalid("boundary.codec", "%v", err)
	}
	if c.Boundary.MemoryLimitPages == 0 {
		return invalid("boundary.memory_limit_pages", "must be positive")
	}
	if c.Packages.Timeout.Duration < 0 {
		return invalid("packages.timeout", "must not be negative")
	}
	if _, err := c.Level(); err != nil {
		return invalid("log.level", "%v", err)
	}
	return nil
}

// Now returns the world clock.
func (c *Config) Now() (*world.Now, error) {
	if c.World.FixedTime == "" {
		return world.System(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, c.World.FixedTime)
	if err != nil {
		return nil, invalid("world.fixed_time", "%v", err)
	}
	return world.Fixed(t), nil
}

// Codec returns the configured envelope codec.
func (c *Config) Codec() (envelope.Codec, error) {
	return envelope.CodecByName(c.Boundary.Codec)
}

// Level parses the log level.
func (c *Config) Level() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.Log.Level)
}

// Logger builds a zap logger at the configured level.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := c.Level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// Memory returns the arena sizing.
func (c *Config) Memory() boundary.MemoryConfig {
	m := boundary.DefaultMemoryConfig()
	m.MaxPages = c.Boundary.MemoryLimitPages
	if m.InitialPages > m.MaxPages {
		m.InitialPages = m.MaxPages
	}
	return m
}

// PackageOptions returns the package storage settings.
func (c *Config) PackageOptions(logger *zap.Logger) packages.Options {
	return packages.Options{
		RegistryURL: c.Packages.RegistryURL,
		CacheDir:    c.Packages.CacheDir,
		DataDir:     c.Packages.DataDir,
		Timeout:     c.Packages.Timeout.Duration,
		Logger:      logger,
	}
}

// FontSearch returns the font search settings.
func (c *Config) FontSearch(logger *zap.Logger) fonts.SearchOptions {
	return fonts.SearchOptions{
		Dirs:          c.Fonts.Dirs,
		IncludeSystem: c.Fonts.IncludeSystem,
		Logger:        logger,
	}
}
