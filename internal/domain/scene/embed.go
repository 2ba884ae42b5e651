package scene

import (
	"context"
	"sync"

	"golang.org/x/net/html"

	"github.com/saintjustus/windowshell/internal/dom"
)

const (
	embedClass = "shell-window__embed"
	blankSrc   = "about:blank"
)

// Embed is the capability behind iframe windows. Mount assigns the source
// and blocks until the frame reports its load event or ctx ends.
type Embed struct {
	mu     sync.Mutex
	frame  *html.Node
	doc    *dom.Document
	loaded chan struct{}
	fired  bool
}

func NewEmbed() *Embed {
	return &Embed{}
}

// Capability wraps e for the lifecycle controller
func (e *Embed) Capability() *Capability {
	c, _ := NewCapability("embed", e)
	return c
}

func (e *Embed) Mount(ctx context.Context, mc MountContext) error {
	e.mu.Lock()
	e.loaded = make(chan struct{})
	e.fired = false
	e.doc = mc.Doc
	loaded := e.loaded
	e.mu.Unlock()

	mc.Write(func() {
		frame := dom.Find(mc.Container, "iframe."+embedClass)
		if frame == nil {
			frame = dom.NewElement("iframe", embedClass)
			dom.SetAttr(frame, "title", mc.Config.Title)
			dom.SetAttr(frame, "loading", "lazy")
			dom.SetAttr(frame, "allowfullscreen", "")
			dom.Append(mc.Container, frame)
		}
		if mc.Config.Allow != "" {
			dom.SetAttr(frame, "allow", mc.Config.Allow)
		}
		dom.SetAttr(frame, "src", mc.Config.EmbedURL)

		e.mu.Lock()
		e.frame = frame
		e.mu.Unlock()
	})

	select {
	case <-loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Loaded signals the frame's load event. Extra calls are ignored.
func (e *Embed) Loaded() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded == nil || e.fired {
		return
	}
	e.fired = true
	close(e.loaded)
}

// Unmount points the frame at about:blank so playback stops
func (e *Embed) Unmount() error {
	e.mu.Lock()
	frame, doc := e.frame, e.doc
	e.mu.Unlock()
	if frame == nil {
		return nil
	}
	reset := func() { dom.SetAttr(frame, "src", blankSrc) }
	if doc != nil {
		doc.Run(reset)
	} else {
		reset()
	}
	return nil
}

// Frame returns the iframe once mounted
func (e *Embed) Frame() *html.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame
}
