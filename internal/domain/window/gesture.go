package window

import (
	"math"

	"github.com/saintjustus/windowshell/internal/shared/geometry"
)

// PointerDown anywhere on the window brings it to front
func (w *Window) PointerDown() {
	w.BringToFront()
}

// HeaderPointerDown starts a drag. Active windows do not drag.
func (w *Window) HeaderPointerDown(ev PointerEvent) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active || w.gesture.kind != gestureNone || ev.Button != 0 {
		return false
	}
	w.gesture = gesture{
		kind:      gestureDrag,
		pointerID: ev.ID,
		offset:    geometry.Point{X: ev.X - w.rect.X, Y: ev.Y - w.rect.Y},
	}
	w.render()
	return true
}

func (w *Window) HeaderPointerMove(ev PointerEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	g := &w.gesture
	if g.kind != gestureDrag || g.pointerID != ev.ID || w.active {
		return
	}
	layout := w.doc.Layout()
	pos := layout.ClampPosition(
		geometry.Point{X: ev.X - g.offset.X, Y: ev.Y - g.offset.Y},
		w.rect.Size(),
		w.opts.Gutter,
	)
	w.rect.X, w.rect.Y = pos.X, pos.Y
	g.moved = true
	w.render()
}

func (w *Window) HeaderPointerUp(ev PointerEvent)     { w.endDrag(ev) }
func (w *Window) HeaderPointerCancel(ev PointerEvent) { w.endDrag(ev) }

func (w *Window) endDrag(ev PointerEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gesture.kind != gestureDrag || w.gesture.pointerID != ev.ID {
		return
	}
	moved := w.gesture.moved
	w.gesture = gesture{}
	w.render()
	if moved {
		w.suppressNextClick()
	}
}

// HandlePointerDown starts a resize from the corner handle
func (w *Window) HandlePointerDown(ev PointerEvent) bool {
	w.mu.Lock()
	if w.gesture.kind != gestureNone {
		w.mu.Unlock()
		return false
	}
	w.gesture = gesture{
		kind:      gestureResize,
		pointerID: ev.ID,
		start:     geometry.Point{X: ev.X, Y: ev.Y},
		startSize: w.rect.Size(),
	}
	w.mu.Unlock()

	w.BringToFront()
	return true
}

func (w *Window) HandlePointerMove(ev PointerEvent) {
	w.mu.Lock()
	g := w.gesture
	if g.kind != gestureResize || g.pointerID != ev.ID {
		w.mu.Unlock()
		return
	}
	w.rect = w.resized(g, ev)
	w.gesture.moved = true
	w.render()
	w.mu.Unlock()

	w.notifyContentResize()
}

// resized applies the size bounds for the current state, mu held
func (w *Window) resized(g gesture, ev PointerEvent) geometry.Rect {
	layout := w.doc.Layout()
	gutter := w.opts.Gutter
	minW, minH := w.opts.MinWidth, w.opts.MinHeight
	if w.active {
		minW, minH = w.opts.ActiveMinWidth, w.opts.ActiveMinHeight
	}
	availW := math.Max(layout.ViewportWidth-gutter*2, w.opts.MinWidth)
	availH := math.Max(layout.ViewportHeight-layout.FooterClearance(gutter), w.opts.MinHeight)
	lowerW := math.Min(math.Max(minW, w.opts.MinWidth), availW)
	lowerH := math.Min(math.Max(minH, w.opts.MinHeight), availH)

	size := geometry.Size{
		Width:  geometry.Clamp(g.startSize.Width+ev.X-g.start.X, lowerW, availW),
		Height: geometry.Clamp(g.startSize.Height+ev.Y-g.start.Y, lowerH, availH),
	}
	pos := layout.ClampPosition(w.rect.Origin(), size, gutter)
	return geometry.RectAt(pos, size)
}

func (w *Window) HandlePointerUp(ev PointerEvent)     { w.endResize(ev) }
func (w *Window) HandlePointerCancel(ev PointerEvent) { w.endResize(ev) }

func (w *Window) endResize(ev PointerEvent) {
	w.mu.Lock()
	if w.gesture.kind != gestureResize || w.gesture.pointerID != ev.ID {
		w.mu.Unlock()
		return
	}
	w.gesture = gesture{}
	w.render()
	w.suppressNextClick()
	active, a := w.active, w.activator
	size := geometry.Size{Width: math.Round(w.rect.Width), Height: math.Round(w.rect.Height)}
	w.mu.Unlock()

	if active && a != nil {
		a.ResizeCommitted(w.cfg.ID, size)
	}
	w.notifyContentResize()
}

// suppressNextClick swallows the click that ends a gesture, for one frame. mu held.
func (w *Window) suppressNextClick() {
	if w.suppressStop != nil {
		w.suppressStop()
	}
	w.suppress = true
	w.suppressStop = w.sched.RequestFrame(func() {
		w.mu.Lock()
		w.suppress = false
		w.suppressStop = nil
		w.mu.Unlock()
	})
}

// notifyContentResize coalesces resize notifications to one per frame
func (w *Window) notifyContentResize() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.active || w.pending || w.activator == nil {
		return
	}
	w.pending = true
	w.pendingStop = w.sched.RequestFrame(func() {
		w.mu.Lock()
		if !w.pending {
			w.mu.Unlock()
			return
		}
		w.pending = false
		w.pendingStop = nil
		a := w.activator
		w.mu.Unlock()
		if a != nil {
			a.ContentResized(w.cfg.ID)
		}
	})
}

// Click requests activation unless it ends a gesture or the window is
// already active.
func (w *Window) Click() {
	w.mu.Lock()
	if w.suppress {
		w.suppress = false
		if w.suppressStop != nil {
			w.suppressStop()
			w.suppressStop = nil
		}
		w.mu.Unlock()
		return
	}
	if w.active {
		w.mu.Unlock()
		return
	}
	a := w.activator
	w.mu.Unlock()

	if a != nil {
		a.RequestOpen(w.cfg.ID)
	}
}

// CloseClick handles the close control. It never reaches Click.
func (w *Window) CloseClick() {
	w.mu.Lock()
	a := w.activator
	w.mu.Unlock()
	if a != nil {
		a.RequestClose(w.cfg.ID)
	}
}
