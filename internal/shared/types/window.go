package types

import (
	"fmt"

	"github.com/saintjustus/windowshell/internal/shared/geometry"
)

// ContentType discriminates what a window hosts when it is active
type ContentType string

const (
	ContentScene ContentType = "scene" // canvas/WebGL scene from the scene registry
	ContentEmbed ContentType = "embed" // third-party iframe (video, audio players, sandboxes)
)

// WindowConfig is the author-supplied, immutable description of one window.
type WindowConfig struct {
	ID      string      `json:"id" yaml:"id" toml:"id"`
	Title   string      `json:"title" yaml:"title" toml:"title"`
	SceneID string      `json:"sceneId,omitempty" yaml:"sceneId,omitempty" toml:"sceneId,omitempty"`
	Type    ContentType `json:"type,omitempty" yaml:"type,omitempty" toml:"type,omitempty"`
	Tags    []string    `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags,omitempty"`

	InitialPosition *geometry.Point `json:"initialPosition,omitempty" yaml:"initialPosition,omitempty" toml:"initialPosition,omitempty"`
	InitialSize     *geometry.Size  `json:"initialSize,omitempty" yaml:"initialSize,omitempty" toml:"initialSize,omitempty"`

	// Display hints
	PreviewGradient string `json:"previewGradient,omitempty" yaml:"previewGradient,omitempty" toml:"previewGradient,omitempty"`
	Hint            string `json:"hint,omitempty" yaml:"hint,omitempty" toml:"hint,omitempty"`
	Caption         string `json:"caption,omitempty" yaml:"caption,omitempty" toml:"caption,omitempty"`

	// Embed-only fields
	EmbedURL          string `json:"embedUrl,omitempty" yaml:"embedUrl,omitempty" toml:"embedUrl,omitempty"`
	Allow             string `json:"allow,omitempty" yaml:"allow,omitempty" toml:"allow,omitempty"`
	Thumbnail         string `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty" toml:"thumbnail,omitempty"`
	EmbedErrorMessage string `json:"embedErrorMessage,omitempty" yaml:"embedErrorMessage,omitempty" toml:"embedErrorMessage,omitempty"`
}

// Kind returns the effective content type. Windows carrying an embed URL
// and no explicit type are embeds; everything else is a scene.
func (c WindowConfig) Kind() ContentType {
	if c.Type != "" {
		return c.Type
	}
	if c.EmbedURL != "" {
		return ContentEmbed
	}
	return ContentScene
}

// Validate checks the fields each content type depends on
func (c WindowConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("window id is required")
	}
	switch c.Kind() {
	case ContentScene:
		if c.SceneID == "" {
			return fmt.Errorf("window %s: scene windows require sceneId", c.ID)
		}
	case ContentEmbed:
		if c.EmbedURL == "" {
			return fmt.Errorf("window %s: embed windows require embedUrl", c.ID)
		}
	default:
		return fmt.Errorf("window %s: unknown content type %q", c.ID, c.Type)
	}
	return nil
}
