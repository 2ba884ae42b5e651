// Package lifecycle owns the open/close state machine of the windows in one
// layer and drives scene mount, resize and unmount through it.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/saintjustus/windowshell/internal/dom"
	"github.com/saintjustus/windowshell/internal/domain/placement"
	"github.com/saintjustus/windowshell/internal/domain/scene"
	"github.com/saintjustus/windowshell/internal/domain/window"
	"github.com/saintjustus/windowshell/internal/infrastructure/logging"
	"github.com/saintjustus/windowshell/internal/infrastructure/monitoring"
	"github.com/saintjustus/windowshell/internal/shared/geometry"
	"github.com/saintjustus/windowshell/internal/shared/id"
	"github.com/saintjustus/windowshell/internal/shared/types"
)

const (
	MountErrorText     = "failed to start scene"
	EmbedFallbackText  = "embed blocked — open elsewhere"
	KeyEscape          = "Escape"
	ClassBodyActive    = "shell-window-active"
	defaultEmbedWindow = 8 * time.Second
)

var (
	ErrUnknownWindow = errors.New("unknown window")
	ErrTornDown      = errors.New("controller torn down")
)

// Options configure expansion and mount behaviour.
type Options struct {
	Window       window.Options
	Layout       LayoutMode
	EmbedTimeout time.Duration
}

// Deps are the collaborators a controller drives.
type Deps struct {
	Doc       *dom.Document
	Scenes    *scene.Registry
	Placement *placement.Engine
	Focus     *Focus
	Metrics   *monitoring.Metrics
	Logger    *logging.Logger
}

type entry struct {
	win      *window.Window
	state    State
	cap      *scene.Capability
	embed    *scene.Embed
	origin   geometry.Rect
	expanded *geometry.Size
	mounted  bool
	gen      uint64
	cancel   context.CancelFunc
	token    id.MountToken
}

// Controller is the single writer of active state for one layer.
type Controller struct {
	layer   string
	opts    Options
	doc     *dom.Document
	scenes  *scene.Registry
	place   *placement.Engine
	focus   *Focus
	metrics *monitoring.Metrics
	log     *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	windows map[string]*entry
	order   []string
	active  string
	closed  bool
}

// New creates a controller for the windows of layer
func New(layer string, deps Deps, opts Options) *Controller {
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = defaultEmbedWindow
	}
	if opts.Layout == "" {
		opts.Layout = LayoutCentered
	}
	if deps.Focus == nil {
		deps.Focus = NewFocus()
	}
	if deps.Scenes == nil {
		deps.Scenes = scene.NewRegistry()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		layer:   layer,
		opts:    opts,
		doc:     deps.Doc,
		scenes:  deps.Scenes,
		place:   deps.Placement,
		focus:   deps.Focus,
		metrics: deps.Metrics,
		log:     deps.Logger.Named("lifecycle").With(zap.String("layer", layer)),
		ctx:     ctx,
		cancel:  cancel,
		windows: make(map[string]*entry),
	}
}

func (c *Controller) Layer() string { return c.layer }

// Add takes ownership of w. Scene windows naming an unregistered scene are
// rejected here, before any user interaction.
func (c *Controller) Add(w *window.Window) error {
	cfg := w.Config()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Kind() == types.ContentScene && !c.scenes.Has(cfg.SceneID) {
		return fmt.Errorf("window %s: %w: %q", cfg.ID, scene.ErrUnknownScene, cfg.SceneID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrTornDown
	}
	if _, dup := c.windows[cfg.ID]; dup {
		return fmt.Errorf("window %s already added", cfg.ID)
	}
	c.windows[cfg.ID] = &entry{win: w, state: StateIdle}
	c.order = append(c.order, cfg.ID)
	w.Bind(c)
	return nil
}

// Windows returns the managed windows in insertion order
func (c *Controller) Windows() []*window.Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*window.Window, 0, len(c.order))
	for _, wid := range c.order {
		out = append(out, c.windows[wid].win)
	}
	return out
}

// Open expands a window and starts mounting its content. Any other active
// window on the page is closed first.
func (c *Controller) Open(wid string) error {
	c.focus.mu.Lock()
	defer c.focus.mu.Unlock()

	c.mu.Lock()
	e, ok := c.windows[wid]
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrTornDown
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWindow, wid)
	}

	c.focus.claim(c)

	c.mu.Lock()
	defer c.mu.Unlock()

	e.win.BringToFront()
	if e.state.Open() {
		return nil
	}
	if c.active != "" && c.active != wid {
		c.closeLocked(c.active)
	}

	if err := c.ensureCapability(e); err != nil {
		c.metrics.ObserveMount(string(e.win.Config().Kind()), "error")
		return err
	}

	cfg := e.win.Config()
	mc := scene.MountContext{
		Container: e.win.Viewport(),
		Config:    cfg,
		Doc:       c.doc,
	}
	if e.embed == nil {
		mc.Canvas = e.win.EnsureCanvas()
	}

	e.win.HideError()
	e.origin = e.win.Rect()
	e.win.SetActive(true)
	e.win.SetRect(c.expandedRect(e))
	c.setBodyActive(true)

	e.state = StateActivating
	e.mounted = false
	e.gen++
	e.token = id.NewMountToken()
	c.active = wid
	c.metrics.SetActiveWindows(1)

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if e.embed != nil {
		ctx, cancel = context.WithTimeout(c.ctx, c.opts.EmbedTimeout)
	} else {
		ctx, cancel = context.WithCancel(c.ctx)
	}
	e.cancel = cancel

	c.log.Debug("window opening",
		zap.String("window", wid),
		zap.String("content", string(cfg.Kind())),
		zap.String("mount", e.token.String()))

	c.wg.Add(1)
	go c.mount(ctx, cancel, e, e.gen, e.cap, mc)
	return nil
}

func (c *Controller) ensureCapability(e *entry) error {
	if e.cap != nil {
		return nil
	}
	cfg := e.win.Config()
	if cfg.Kind() == types.ContentEmbed {
		e.embed = scene.NewEmbed()
		e.cap = e.embed.Capability()
		return nil
	}
	capability, err := c.scenes.Create(cfg.SceneID)
	if err != nil {
		return fmt.Errorf("window %s: %w", cfg.ID, err)
	}
	e.cap = capability
	return nil
}

func (c *Controller) mount(ctx context.Context, cancel context.CancelFunc, e *entry, gen uint64, capability *scene.Capability, mc scene.MountContext) {
	defer c.wg.Done()
	defer cancel()

	err := capability.Mount(ctx, mc)

	c.mu.Lock()
	defer c.mu.Unlock()

	wid := mc.Config.ID
	kind := string(mc.Config.Kind())
	if e.gen != gen || e.state != StateActivating {
		c.metrics.ObserveStaleMount()
		c.log.Debug("discarding stale mount", zap.String("window", wid), zap.Error(err))
		return
	}

	e.cancel = nil
	e.state = StateActive
	if err != nil {
		if e.embed != nil && errors.Is(err, context.DeadlineExceeded) {
			msg := mc.Config.EmbedErrorMessage
			if msg == "" {
				msg = EmbedFallbackText
			}
			e.win.ShowError(msg)
			c.metrics.ObserveMount(kind, "timeout")
			c.log.Warn("embed did not load in time",
				zap.String("window", wid),
				zap.Duration("timeout", c.opts.EmbedTimeout))
			return
		}
		e.win.ShowError(MountErrorText)
		c.metrics.ObserveMount(kind, "error")
		c.log.Error("failed to mount scene",
			zap.String("window", wid),
			zap.String("scene", mc.Config.SceneID),
			zap.Error(err))
		return
	}

	e.mounted = true
	c.metrics.ObserveMount(kind, "ok")
	size := e.win.ViewportSize()
	capability.Resize(size.Width, size.Height)
}

// Close collapses a window and unmounts its content. Closing an inactive
// window is a no-op.
func (c *Controller) Close(wid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.windows[wid]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWindow, wid)
	}
	c.closeLocked(wid)
	return nil
}

// CloseActive closes whichever window is active, reporting whether one was
func (c *Controller) CloseActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == "" {
		return false
	}
	return c.closeLocked(c.active)
}

// closeLocked must be called with mu held
func (c *Controller) closeLocked(wid string) bool {
	e, ok := c.windows[wid]
	if !ok || !e.state.Open() {
		return false
	}

	e.gen++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}

	e.win.SetActive(false)
	e.win.CancelPendingResize()
	e.win.HideError()
	origin := e.origin
	if c.place != nil && c.doc != nil {
		origin = geometry.RectAt(c.place.Reclamp(c.doc.Layout(), origin), origin.Size())
	}
	e.win.SetRect(origin)

	if e.cap != nil && e.cap.Live() {
		err := e.cap.Unmount()
		c.metrics.ObserveUnmount(err)
		if err != nil {
			c.log.Warn("failed to unmount scene", zap.String("window", wid), zap.Error(err))
		}
	}

	e.mounted = false
	e.state = StateInactive
	if c.active == wid {
		c.active = ""
	}
	c.setBodyActive(false)
	c.metrics.SetActiveWindows(0)
	return true
}

// HandleKey closes the active window on Escape
func (c *Controller) HandleKey(key string) bool {
	if key != KeyEscape {
		return false
	}
	return c.CloseActive()
}

// HandleViewportResize re-applies expanded geometry to the active window
// and re-clamps every resting window into the new bounds.
func (c *Controller) HandleViewportResize() {
	c.mu.Lock()
	defer c.mu.Unlock()

	layout := c.doc.Layout()
	for _, wid := range c.order {
		e := c.windows[wid]
		if e.state.Open() {
			e.win.SetRect(c.expandedRect(e))
			if e.mounted {
				size := e.win.ViewportSize()
				e.cap.Resize(size.Width, size.Height)
			}
			continue
		}
		r := e.win.Rect()
		var p geometry.Point
		if c.place != nil {
			p = c.place.Reclamp(layout, r)
		} else {
			p = layout.ClampPosition(r.Origin(), r.Size(), c.opts.Window.Gutter)
		}
		if p != r.Origin() {
			e.win.SetRect(geometry.RectAt(p, r.Size()))
		}
	}
}

// NotifyResize forwards a content resize to a mounted scene
func (c *Controller) NotifyResize(wid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.windows[wid]
	if !ok || !e.mounted || e.state != StateActive {
		return
	}
	size := e.win.ViewportSize()
	e.cap.Resize(size.Width, size.Height)
}

// EmbedLoaded forwards an iframe load event to the window's embed
func (c *Controller) EmbedLoaded(wid string) {
	c.mu.Lock()
	e, ok := c.windows[wid]
	var embed *scene.Embed
	if ok {
		embed = e.embed
	}
	c.mu.Unlock()
	if embed != nil {
		embed.Loaded()
	}
}

// Active returns the id of the active window, empty when none
func (c *Controller) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Snapshot reports the state of one window
func (c *Controller) Snapshot(wid string) (WindowStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.windows[wid]
	if !ok {
		return WindowStatus{}, false
	}
	st := WindowStatus{
		ID:      wid,
		State:   e.state,
		Active:  e.state.Open(),
		Mounted: e.mounted,
		Rect:    e.win.Rect(),
		Origin:  e.origin,
		Z:       e.win.Z(),
		Error:   e.win.ErrorText(),
	}
	if e.expanded != nil {
		sz := *e.expanded
		st.Expanded = &sz
	}
	return st, true
}

// Teardown closes the active window and detaches every window from this
// controller. In-flight mounts are not waited for; their completions are
// discarded as stale.
func (c *Controller) Teardown() {
	c.focus.release(c)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.active != "" {
		c.closeLocked(c.active)
	}
	c.closed = true
	for _, wid := range c.order {
		c.windows[wid].win.Dispose()
	}
	c.cancel()
}

// Wait blocks until every in-flight mount has settled
func (c *Controller) Wait() {
	c.wg.Wait()
}

// RequestOpen implements window.Activator
func (c *Controller) RequestOpen(wid string) {
	if err := c.Open(wid); err != nil && !errors.Is(err, ErrTornDown) {
		c.log.Error("failed to open window", zap.String("window", wid), zap.Error(err))
	}
}

// RequestClose implements window.Activator
func (c *Controller) RequestClose(wid string) {
	_ = c.Close(wid)
}

// ContentResized implements window.Activator
func (c *Controller) ContentResized(wid string) {
	c.NotifyResize(wid)
}

// ResizeCommitted implements window.Activator. The size is remembered and
// reused the next time the window opens.
func (c *Controller) ResizeCommitted(wid string, size geometry.Size) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.windows[wid]; ok && e.state.Open() {
		e.expanded = &size
	}
}

// expandedRect computes the active geometry and records it as the
// remembered expanded size. mu held.
func (c *Controller) expandedRect(e *entry) geometry.Rect {
	layout := c.doc.Layout()
	o := c.opts.Window
	g := o.Gutter
	clearance := layout.FooterClearance(g)
	top := layout.Top(g)

	if c.opts.Layout == LayoutFullBleed {
		return geometry.Rect{
			X:      g,
			Y:      top,
			Width:  math.Max(layout.ViewportWidth-g*2, o.MinWidth),
			Height: math.Max(layout.ViewportHeight-clearance-top, o.MinHeight),
		}
	}

	cfg := e.win.Config()
	base := geometry.Size{Width: o.MinWidth, Height: o.MinHeight}
	if cfg.InitialSize != nil {
		base = *cfg.InitialSize
	}
	preferred := geometry.Size{
		Width:  math.Max(base.Width, o.ActiveMinWidth),
		Height: math.Max(base.Height, o.ActiveMinHeight),
	}
	if e.expanded != nil {
		preferred = *e.expanded
	}

	availW := math.Max(layout.ViewportWidth-g*2, o.MinWidth)
	availH := math.Max(layout.ViewportHeight-clearance, o.MinHeight)
	minW := math.Max(math.Min(o.ActiveMinWidth, availW), o.MinWidth)
	minH := math.Max(math.Min(o.ActiveMinHeight, availH), o.MinHeight)
	size := geometry.Size{
		Width:  geometry.Clamp(preferred.Width, minW, availW),
		Height: geometry.Clamp(preferred.Height, minH, availH),
	}

	maxX := math.Max(layout.ViewportWidth-size.Width-g, g)
	maxY := math.Max(layout.ViewportHeight-size.Height-clearance, g)
	centered := geometry.Point{
		X: geometry.Clamp((layout.ViewportWidth-size.Width)/2, g, maxX),
		Y: geometry.Clamp((layout.ViewportHeight-clearance-size.Height)/2, g, maxY),
	}
	pos := layout.ClampPosition(centered, size, g)

	e.expanded = &geometry.Size{Width: math.Round(size.Width), Height: math.Round(size.Height)}
	return geometry.RectAt(pos, size)
}

func (c *Controller) setBodyActive(on bool) {
	if c.doc == nil {
		return
	}
	c.doc.Run(func() {
		if body := dom.Find(c.doc.Root(), "body"); body != nil {
			dom.SetClass(body, ClassBodyActive, on)
		}
	})
}
