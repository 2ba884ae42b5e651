package scene

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/net/html"

	"github.com/saintjustus/windowshell/internal/dom"
	"github.com/saintjustus/windowshell/internal/shared/types"
)

// MountContext is what a scene receives when its window becomes active.
type MountContext struct {
	// Canvas is nil for iframe based content
	Canvas    *html.Node
	Container *html.Node
	Config    types.WindowConfig
	// Doc owns the tree Canvas and Container live in. Nil for detached nodes.
	Doc *dom.Document
}

// Write runs fn with the document locked, or directly when there is no document
func (m MountContext) Write(fn func()) {
	if m.Doc == nil {
		fn()
		return
	}
	m.Doc.Run(fn)
}

// Mounter is the required part of a scene
type Mounter interface {
	Mount(ctx context.Context, mc MountContext) error
}

// Resizer is implemented by scenes that react to viewport size changes
type Resizer interface {
	Resize(width, height float64)
}

// Unmounter is implemented by scenes holding resources beyond their DOM nodes
type Unmounter interface {
	Unmount() error
}

// Factory produces an independent scene instance
type Factory func() Mounter

// MountFunc adapts a function into a Mounter without resize or unmount support
type MountFunc func(ctx context.Context, mc MountContext) error

func (f MountFunc) Mount(ctx context.Context, mc MountContext) error { return f(ctx, mc) }

// Capability is a scene instance with its optional hooks resolved.
type Capability struct {
	sceneID string
	mount   func(context.Context, MountContext) error
	resize  func(width, height float64)
	unmount func() error

	mu   sync.Mutex
	live bool
}

// NewCapability resolves the optional hooks of m
func NewCapability(sceneID string, m Mounter) (*Capability, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingMount, sceneID)
	}
	c := &Capability{sceneID: sceneID, mount: m.Mount}
	if r, ok := m.(Resizer); ok {
		c.resize = r.Resize
	}
	if u, ok := m.(Unmounter); ok {
		c.unmount = u.Unmount
	}
	return c, nil
}

func (c *Capability) SceneID() string { return c.sceneID }

func (c *Capability) CanResize() bool { return c.resize != nil }

func (c *Capability) CanUnmount() bool { return c.unmount != nil }

// Live reports whether Mount was called without a matching Unmount
func (c *Capability) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// Mount invokes the scene's mount hook. A panic inside the scene is
// returned as ErrScenePanic.
func (c *Capability) Mount(ctx context.Context, mc MountContext) (err error) {
	c.mu.Lock()
	c.live = true
	c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s mount: %v", ErrScenePanic, c.sceneID, r)
		}
	}()
	return c.mount(ctx, mc)
}

// Resize forwards to the scene when supported
func (c *Capability) Resize(width, height float64) {
	if c.resize == nil {
		return
	}
	c.resize(width, height)
}

// Unmount tears the scene down. It is a no-op on an instance that was never
// mounted or is already unmounted.
func (c *Capability) Unmount() (err error) {
	c.mu.Lock()
	if !c.live {
		c.mu.Unlock()
		return nil
	}
	c.live = false
	c.mu.Unlock()

	if c.unmount == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s unmount: %v", ErrScenePanic, c.sceneID, r)
		}
	}()
	return c.unmount()
}
