package fonts

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Style is the slant of a face.
type Style uint8

const (
	StyleNormal Style = iota
	StyleItalic
)

func (s Style) String() string {
	if s == StyleItalic {
		return "italic"
	}
	return "normal"
}

// Info describes one face.
type Info struct {
	Family string
	Style  Style
	Weight uint16
	// Index of the face inside a collection file.
	Index uint32
}

// Font is a face whose bytes are read on first use.
type Font struct {
	Info
	Path string

	once sync.Once
	data []byte
	err  error
}

// FromData creates a font backed by bytes already in memory.
func FromData(info Info, data []byte) *Font {
	f := &Font{Info: info}
	f.once.Do(func() { f.data = data })
	return f
}

// Data returns the raw font file. The first call reads it from disk.
func (f *Font) Data() ([]byte, error) {
	f.once.Do(func() {
		f.data, f.err = os.ReadFile(f.Path)
	})
	return f.data, f.err
}

// Catalog is an immutable, index-addressed list of faces.
type Catalog struct {
	fonts []*Font
}

// NewCatalog creates a catalog in the given order.
func NewCatalog(fonts ...*Font) *Catalog {
	return &Catalog{fonts: fonts}
}

// Len returns the number of faces.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.fonts)
}

// Font returns the face at index.
func (c *Catalog) Font(index int) (*Font, bool) {
	if c == nil || index < 0 || index >= len(c.fonts) {
		return nil, false
	}
	return c.fonts[index], true
}

// Book lists the infos of all faces in catalog order.
func (c *Catalog) Book() []Info {
	if c == nil {
		return nil
	}
	infos := make([]Info, len(c.fonts))
	for i, f := range c.fonts {
		infos[i] = f.Info
	}
	return infos
}

// Select returns the index of the face that best matches family, or -1.
func (c *Catalog) Select(family string, style Style, weight uint16) int {
	best, bestScore := -1, -1
	for i, f := range c.fonts {
		if !strings.EqualFold(f.Family, family) {
			continue
		}
		score := 1000 - absDiff(f.Weight, weight)
		if f.Style == style {
			score += 1000
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func absDiff(a, b uint16) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// SearchOptions controls where Search looks.
type SearchOptions struct {
	Dirs          []string
	IncludeSystem bool
	Logger        *zap.Logger
}

var fontExts = map[string]bool{".ttf": true, ".otf": true, ".ttc": true, ".otc": true}

// Search scans the configured directories concurrently and returns a
// catalog sorted by family, style and weight. Unreadable or malformed files
// are skipped.
func Search(ctx context.Context, opts SearchOptions) (*Catalog, error) {
	logger := opts.Logger
	if logger == nil {
		logger = Logger()
	}
	dirs := append([]string(nil), opts.Dirs...)
	if opts.IncludeSystem {
		dirs = append(dirs, systemDirs()...)
	}

	var paths []string
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == dir {
					return fs.SkipDir
				}
				return nil
			}
			if !d.IsDir() && fontExts[strings.ToLower(filepath.Ext(path))] {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	found := make([][]*Font, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				logger.Debug("skip unreadable font", zap.String("path", path), zap.Error(err))
				return nil
			}
			infos, err := parseCollection(data)
			if err != nil {
				logger.Debug("skip malformed font", zap.String("path", path), zap.Error(err))
				return nil
			}
			for _, info := range infos {
				found[i] = append(found[i], &Font{Info: info, Path: path})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*Font
	for _, faces := range found {
		all = append(all, faces...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Family != b.Family {
			return a.Family < b.Family
		}
		if a.Style != b.Style {
			return a.Style < b.Style
		}
		return a.Weight < b.Weight
	})
	logger.Debug("font search done", zap.Int("files", len(paths)), zap.Int("faces", len(all)))
	return NewCatalog(all...), nil
}

func systemDirs() []string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return []string{"/System/Library/Fonts", "/Library/Fonts", filepath.Join(home, "Library/Fonts")}
	case "windows":
		return []string{filepath.Join(os.Getenv("WINDIR"), "Fonts")}
	}
	home, _ := os.UserHomeDir()
	return []string{"/usr/share/fonts", "/usr/local/share/fonts", filepath.Join(home, ".local/share/fonts")}
}
