package manifest

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"

	"github.com/saintjustus/windowshell/internal/shared/types"
)

// Pattern matches manifest files beneath a directory
const Pattern = "**/*.{yaml,yml,toml,json}"

//go:embed builtin
var builtinFS embed.FS

// Catalogue maps page ids to their windows.
type Catalogue struct {
	mu    sync.RWMutex
	pages map[string][]types.WindowConfig
}

func NewCatalogue() *Catalogue {
	return &Catalogue{pages: make(map[string][]types.WindowConfig)}
}

// Add registers a manifest. A page may only be added once.
func (c *Catalogue) Add(m *Manifest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pages[m.Page]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePage, m.Page)
	}
	c.pages[m.Page] = append([]types.WindowConfig(nil), m.Windows...)
	return nil
}

// Windows returns a copy of the windows of page
func (c *Catalogue) Windows(page string) ([]types.WindowConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	w, ok := c.pages[page]
	if !ok {
		return nil, false
	}
	return append([]types.WindowConfig(nil), w...), true
}

// Pages lists the catalogued pages in sorted order
func (c *Catalogue) Pages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.pages))
	for p := range c.pages {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Merge copies every page of other into c, replacing pages c already has
func (c *Catalogue) Merge(other *Catalogue) {
	if other == nil || other == c {
		return
	}
	other.mu.RLock()
	pages := make(map[string][]types.WindowConfig, len(other.pages))
	for p, w := range other.pages {
		pages[p] = append([]types.WindowConfig(nil), w...)
	}
	other.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	for p, w := range pages {
		c.pages[p] = w
	}
}

// LoadDir parses every manifest file beneath dir.
func LoadDir(dir string) (*Catalogue, error) {
	var (
		mu    sync.Mutex
		paths []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		ok, err := doublestar.Match(Pattern, filepath.ToSlash(rel))
		if err != nil || !ok {
			return err
		}
		mu.Lock()
		paths = append(paths, p)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan manifests in %s: %w", dir, err)
	}
	sort.Strings(paths)

	c := NewCatalogue()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		m, err := Parse(p, data)
		if err != nil {
			return nil, err
		}
		if err := c.Add(m); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return c, nil
}

// LoadFS parses every manifest file in fsys
func LoadFS(fsys fs.FS) (*Catalogue, error) {
	paths, err := doublestar.Glob(fsys, Pattern)
	if err != nil {
		return nil, fmt.Errorf("scan manifests: %w", err)
	}
	sort.Strings(paths)

	c := NewCatalogue()
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		m, err := Parse(p, data)
		if err != nil {
			return nil, err
		}
		if err := c.Add(m); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return c, nil
}

// Builtin is the catalogue for the art, work and music pages
func Builtin() (*Catalogue, error) {
	sub, err := fs.Sub(builtinFS, "builtin")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
}
