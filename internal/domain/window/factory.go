package window

import (
	"math"

	"github.com/saintjustus/windowshell/internal/dom"
	"github.com/saintjustus/windowshell/internal/infrastructure/scheduler"
	"github.com/saintjustus/windowshell/internal/shared/geometry"
	"github.com/saintjustus/windowshell/internal/shared/types"
)

// Factory builds window shells for one page session.
type Factory struct {
	doc   *dom.Document
	sched scheduler.Scheduler
	stack *ZOrder
	opts  Options
}

func NewFactory(doc *dom.Document, sched scheduler.Scheduler, stack *ZOrder, opts Options) *Factory {
	if stack == nil {
		stack = NewZOrder(10)
	}
	return &Factory{doc: doc, sched: sched, stack: stack, opts: opts}
}

func (f *Factory) Options() Options { return f.opts }

// InitialSize is the floating size of a window before any user resize
func (f *Factory) InitialSize(cfg types.WindowConfig) geometry.Size {
	if cfg.InitialSize == nil {
		return geometry.Size{Width: f.opts.MinWidth, Height: f.opts.MinHeight}
	}
	return geometry.Size{
		Width:  math.Max(cfg.InitialSize.Width, f.opts.MinWidth),
		Height: math.Max(cfg.InitialSize.Height, f.opts.MinHeight),
	}
}

// Build creates a detached window element for cfg at the given origin and
// assigns it the next z-index.
func (f *Factory) Build(cfg types.WindowConfig, origin geometry.Point) *Window {
	w := &Window{
		cfg:   cfg,
		doc:   f.doc,
		sched: f.sched,
		stack: f.stack,
		opts:  f.opts,
		rect:  geometry.RectAt(origin, f.InitialSize(cfg)),
	}

	w.el = dom.NewElement("article", ClassWindow)
	dom.SetAttr(w.el, AttrWindowID, cfg.ID)
	dom.SetAttr(w.el, "data-content-type", string(cfg.Kind()))

	w.header = dom.NewElement("header", "shell-window__header")
	title := dom.NewElement("h2", "shell-window__title")
	dom.SetText(title, cfg.Title)
	dom.Append(w.header, title)

	if len(cfg.Tags) > 0 {
		tags := dom.NewElement("ul", "shell-window__tags")
		for _, tag := range cfg.Tags {
			li := dom.NewElement("li", "shell-window__tag")
			dom.SetText(li, tag)
			dom.Append(tags, li)
		}
		dom.Append(w.header, tags)
	}

	controls := dom.NewElement("div", "shell-window__controls")
	w.closeBtn = dom.NewElement("button", "shell-window__control")
	dom.SetAttr(w.closeBtn, "type", "button")
	dom.SetAttr(w.closeBtn, "aria-label", "close "+cfg.Title)
	dom.SetText(w.closeBtn, "close")
	dom.Append(controls, w.closeBtn)
	dom.Append(w.header, controls)

	w.viewport = dom.NewElement("div", "shell-window__viewport")
	preview := dom.NewElement("div", "shell-window__preview")
	if cfg.PreviewGradient != "" {
		dom.SetStyle(preview, map[string]string{"background": cfg.PreviewGradient})
	}
	dom.Append(w.viewport, preview)

	if cfg.Thumbnail != "" {
		img := dom.NewElement("img", "shell-window__thumbnail")
		dom.SetAttr(img, "src", cfg.Thumbnail)
		dom.SetAttr(img, "alt", "")
		dom.SetAttr(img, "loading", "lazy")
		dom.Append(preview, img)
	}
	if cfg.Hint != "" {
		hint := dom.NewElement("span", "shell-window__hint")
		dom.SetText(hint, cfg.Hint)
		dom.Append(w.viewport, hint)
	}
	if cfg.Caption != "" {
		caption := dom.NewElement("p", "shell-window__caption")
		dom.SetText(caption, cfg.Caption)
		dom.Append(w.viewport, caption)
	}

	w.handle = dom.NewElement("button", "shell-window__resize-handle")
	dom.SetAttr(w.handle, "type", "button")
	dom.SetAttr(w.handle, "aria-label", "resize "+cfg.Title+" window")
	dom.Append(w.viewport, w.handle)

	dom.Append(w.el, w.header, w.viewport)

	w.z = f.stack.Next()
	w.mu.Lock()
	w.render()
	w.mu.Unlock()
	return w
}
