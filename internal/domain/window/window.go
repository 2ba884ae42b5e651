package window

import (
	"math"
	"strconv"
	"sync"

	"golang.org/x/net/html"

	"github.com/saintjustus/windowshell/internal/dom"
	"github.com/saintjustus/windowshell/internal/infrastructure/scheduler"
	"github.com/saintjustus/windowshell/internal/shared/geometry"
	"github.com/saintjustus/windowshell/internal/shared/types"
)

// CSS classes derived from window state
const (
	ClassWindow      = "shell-window"
	ClassActive      = "is-active"
	ClassInteracting = "is-interacting"
	ClassVisible     = "is-visible"

	AttrWindowID = "data-window-id"
)

// Activator receives the requests a window cannot serve on its own.
type Activator interface {
	RequestOpen(id string)
	RequestClose(id string)
	// ContentResized fires at most once per frame while the window is resized
	ContentResized(id string)
	// ResizeCommitted reports the final size of a resize made while active
	ResizeCommitted(id string, size geometry.Size)
}

type gestureKind int

const (
	gestureNone gestureKind = iota
	gestureDrag
	gestureResize
)

type gesture struct {
	kind      gestureKind
	pointerID int
	offset    geometry.Point
	start     geometry.Point
	startSize geometry.Size
	moved     bool
}

// PointerEvent is the subset of a DOM pointer event gestures need
type PointerEvent struct {
	ID     int
	X, Y   float64
	Button int
}

// Window is one floating panel.
type Window struct {
	cfg   types.WindowConfig
	doc   *dom.Document
	sched scheduler.Scheduler
	stack *ZOrder
	opts  Options

	el       *html.Node
	header   *html.Node
	closeBtn *html.Node
	viewport *html.Node
	handle   *html.Node

	mu           sync.Mutex
	rect         geometry.Rect
	z            int
	active       bool
	gesture      gesture
	suppress     bool
	suppressStop func()
	pending      bool
	pendingStop  func()
	canvas       *html.Node
	errorEl      *html.Node
	activator    Activator
}

func (w *Window) ID() string                 { return w.cfg.ID }
func (w *Window) Config() types.WindowConfig { return w.cfg }
func (w *Window) Element() *html.Node        { return w.el }
func (w *Window) Viewport() *html.Node       { return w.viewport }
func (w *Window) Header() *html.Node         { return w.header }
func (w *Window) CloseButton() *html.Node    { return w.closeBtn }
func (w *Window) ResizeHandle() *html.Node   { return w.handle }

// Bind sets the activator that receives open and close requests
func (w *Window) Bind(a Activator) {
	w.mu.Lock()
	w.activator = a
	w.mu.Unlock()
}

func (w *Window) Rect() geometry.Rect {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rect
}

// SetRect moves and sizes the window
func (w *Window) SetRect(r geometry.Rect) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rect = r
	w.render()
}

func (w *Window) Z() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.z
}

// BringToFront assigns the next z-index
func (w *Window) BringToFront() int {
	z := w.stack.Next()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.z = z
	w.render()
	return z
}

func (w *Window) IsActive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// SetActive flips the logical state and re-renders the derived classes
func (w *Window) SetActive(active bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active = active
	w.render()
}

// Interacting reports whether a drag or resize is in progress
func (w *Window) Interacting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gesture.kind != gestureNone
}

// ViewportSize is the content area handed to scene resize hooks
func (w *Window) ViewportSize() geometry.Size {
	w.mu.Lock()
	defer w.mu.Unlock()
	return geometry.Size{
		Width:  w.rect.Width,
		Height: math.Max(w.rect.Height-w.opts.ChromeHeight, 0),
	}
}

// EnsureCanvas creates the scene canvas on first use
func (w *Window) EnsureCanvas() *html.Node {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.canvas == nil {
		w.canvas = dom.NewElement("canvas", "shell-window__canvas")
		w.write(func() { dom.Append(w.viewport, w.canvas) })
	}
	return w.canvas
}

// ShowError displays an inline message in the viewport
func (w *Window) ShowError(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.write(func() {
		if w.errorEl == nil {
			w.errorEl = dom.NewElement("div", "shell-window__error")
			dom.SetAttr(w.errorEl, "role", "status")
			dom.Append(w.viewport, w.errorEl)
		}
		dom.SetText(w.errorEl, msg)
		dom.SetHidden(w.errorEl, false)
	})
}

// HideError hides the inline message if one was shown
func (w *Window) HideError() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.errorEl == nil {
		return
	}
	w.write(func() { dom.SetHidden(w.errorEl, true) })
}

// ErrorText returns the visible error message, empty when hidden
func (w *Window) ErrorText() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var text string
	w.write(func() {
		if w.errorEl == nil {
			return
		}
		if _, hidden := dom.Attr(w.errorEl, "hidden"); hidden {
			return
		}
		text = dom.Text(w.errorEl)
	})
	return text
}

// CancelPendingResize drops a queued content resize notification
func (w *Window) CancelPendingResize() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = false
	if w.pendingStop != nil {
		w.pendingStop()
		w.pendingStop = nil
	}
}

// Dispose cancels every callback the window still has queued
func (w *Window) Dispose() {
	w.CancelPendingResize()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.suppressStop != nil {
		w.suppressStop()
		w.suppressStop = nil
	}
	w.suppress = false
	w.gesture = gesture{}
	w.activator = nil
}

func (w *Window) write(fn func()) {
	if w.doc == nil {
		fn()
		return
	}
	w.doc.Run(fn)
}

// render must be called with mu held
func (w *Window) render() {
	rect, z, active := w.rect, w.z, w.active
	interacting := w.gesture.kind != gestureNone
	w.write(func() {
		dom.SetBox(w.el, rect)
		dom.SetStyle(w.el, map[string]string{"z-index": strconv.Itoa(z)})
		dom.SetClass(w.el, ClassActive, active)
		dom.SetClass(w.el, ClassInteracting, interacting)
		dom.SetHidden(w.closeBtn, !active)
		dom.SetAttr(w.el, "aria-expanded", strconv.FormatBool(active))
	})
}
