// Package manifest loads the window configurations each page shows.
//
// A manifest describes one page:
//
//	page: art
//	windows:
//	  - id: planetary
//	    title: planetary
//	    sceneId: pulseField
//
// Manifests may be written as YAML, TOML or JSON; the format is chosen by
// file extension. The page defaults to the file name without extension.
package manifest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/saintjustus/windowshell/internal/shared/types"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported manifest format")
	ErrDuplicateWindow   = errors.New("duplicate window id")
	ErrDuplicatePage     = errors.New("duplicate page manifest")
	ErrInvalidWindow     = errors.New("invalid window")
)

// Manifest is the window set of one page
type Manifest struct {
	Page    string               `json:"page" yaml:"page" toml:"page"`
	Windows []types.WindowConfig `json:"windows" yaml:"windows" toml:"windows"`
}

// Parse decodes data according to the extension of name and validates it.
func Parse(name string, data []byte) (*Manifest, error) {
	var m Manifest
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	case ".toml":
		err = toml.Unmarshal(data, &m)
	case ".json":
		err = sonic.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	if m.Page == "" {
		base := filepath.Base(name)
		m.Page = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &m, nil
}

// Validate checks every window and that ids are unique within the page
func (m *Manifest) Validate() error {
	seen := make(map[string]bool, len(m.Windows))
	for i, w := range m.Windows {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("%w: page %s window %d: %v", ErrInvalidWindow, m.Page, i, err)
		}
		if seen[w.ID] {
			return fmt.Errorf("%w: page %s: %s", ErrDuplicateWindow, m.Page, w.ID)
		}
		seen[w.ID] = true
	}
	return nil
}
