// Package reveal staggers the visibility of a page's windows when the shell
// switches pages. It only toggles the visible class; active state belongs
// to the lifecycle controller.
package reveal

import (
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/saintjustus/windowshell/internal/dom"
	"github.com/saintjustus/windowshell/internal/domain/window"
	"github.com/saintjustus/windowshell/internal/infrastructure/logging"
	"github.com/saintjustus/windowshell/internal/infrastructure/monitoring"
	"github.com/saintjustus/windowshell/internal/infrastructure/scheduler"
	"github.com/saintjustus/windowshell/internal/shared/events"
)

// DefaultStep is the delay between consecutive windows
const DefaultStep = 90 * time.Millisecond

// Direction of a choreography
type Direction string

const (
	DirectionReveal  Direction = "reveal"
	DirectionDismiss Direction = "dismiss"
)

var windowsXPath = ".//*[@" + window.AttrWindowID + "]"

type run struct {
	direction Direction
	remaining int
	cancels   []func()
}

// Choreographer reveals a layer's windows on navigation completion and
// dismisses them when an intent targets another page. One choreography per
// layer runs at a time; overlapping requests for the same layer are ignored,
// except that a reveal replaces a dismiss still running on that layer.
type Choreographer struct {
	doc     *dom.Document
	sched   scheduler.Scheduler
	step    time.Duration
	metrics *monitoring.Metrics
	log     *logging.Logger

	mu       sync.Mutex
	current  string
	inflight map[string]*run
	unsub    []func()
}

func New(doc *dom.Document, sched scheduler.Scheduler, step time.Duration, metrics *monitoring.Metrics, log *logging.Logger) *Choreographer {
	if step <= 0 {
		step = DefaultStep
	}
	if sched == nil {
		sched = scheduler.NewRealtime()
	}
	return &Choreographer{
		doc:      doc,
		sched:    sched,
		step:     step,
		metrics:  metrics,
		log:      log.Named("reveal"),
		inflight: make(map[string]*run),
	}
}

// Attach subscribes to navigation events on bus. Detach undoes it.
func (c *Choreographer) Attach(bus *events.Bus) {
	completed := bus.Subscribe(events.NameNavigationCompleted, func(e events.Event) {
		ev, ok := e.(events.NavigationCompleted)
		if !ok {
			return
		}
		c.Show(ev.PageID)
	})
	intent := bus.Subscribe(events.NameNavigationIntent, func(e events.Event) {
		ev, ok := e.(events.NavigationIntent)
		if !ok {
			return
		}
		current := c.Current()
		if current == "" || current == ev.TargetID {
			return
		}
		c.Dismiss(current)
	})

	c.mu.Lock()
	c.unsub = append(c.unsub, completed, intent)
	c.mu.Unlock()
}

// Detach unsubscribes from the bus and cancels pending steps
func (c *Choreographer) Detach() {
	c.mu.Lock()
	unsub := c.unsub
	c.unsub = nil
	runs := c.inflight
	c.inflight = make(map[string]*run)
	c.mu.Unlock()

	for _, fn := range unsub {
		fn()
	}
	for _, r := range runs {
		for _, cancel := range r.cancels {
			cancel()
		}
	}
}

// Current is the page whose layer was last revealed
func (c *Choreographer) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Choreographer) setCurrent(pageID string) {
	c.mu.Lock()
	c.current = pageID
	c.mu.Unlock()
}

// Busy reports whether a choreography is running on the layer of pageID
func (c *Choreographer) Busy(pageID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight[pageID] != nil
}

// Show marks pageID as the current page and reveals its layer
func (c *Choreographer) Show(pageID string) bool {
	c.setCurrent(pageID)
	return c.Reveal(pageID)
}

// Reveal staggers the visible class onto each window of the layer, first to
// last. A dismiss in flight on the layer is cancelled. It returns false when
// the layer is missing or already revealing.
func (c *Choreographer) Reveal(pageID string) bool {
	return c.start(pageID, DirectionReveal)
}

// Dismiss removes the visible class last to first.
func (c *Choreographer) Dismiss(pageID string) bool {
	return c.start(pageID, DirectionDismiss)
}

func (c *Choreographer) start(pageID string, dir Direction) bool {
	var windows []*html.Node
	found := false
	c.doc.Do(func(*goquery.Document) {
		layer := c.doc.Layer(pageID)
		if layer == nil {
			return
		}
		found = true
		windows = htmlquery.Find(layer, windowsXPath)
	})
	if !found {
		c.log.Debug("no layer to choreograph", zap.String("page", pageID), zap.String("direction", string(dir)))
		return false
	}

	c.mu.Lock()
	var preempted *run
	if prev := c.inflight[pageID]; prev != nil {
		if dir != DirectionReveal || prev.direction != DirectionDismiss {
			c.mu.Unlock()
			c.log.Debug("choreography in flight, ignoring",
				zap.String("page", pageID),
				zap.String("direction", string(dir)))
			return false
		}
		preempted = prev
		delete(c.inflight, pageID)
	}
	c.metrics.ObserveChoreography(string(dir))
	r := &run{direction: dir, remaining: len(windows)}
	if len(windows) > 0 {
		c.inflight[pageID] = r
	}
	c.mu.Unlock()

	if preempted != nil {
		c.log.Debug("reveal replaces dismiss", zap.String("page", pageID))
		for _, cancel := range preempted.cancels {
			cancel()
		}
	}
	if len(windows) == 0 {
		return true
	}

	if dir == DirectionDismiss {
		reversed := make([]*html.Node, len(windows))
		for i, w := range windows {
			reversed[len(windows)-1-i] = w
		}
		windows = reversed
	}

	cancels := make([]func(), 0, len(windows))
	for i, w := range windows {
		cancels = append(cancels, c.sched.AfterFunc(time.Duration(i)*c.step, func() {
			c.advance(pageID, r, w)
		}))
	}

	c.mu.Lock()
	r.cancels = cancels
	detached := c.inflight[pageID] != r
	c.mu.Unlock()
	if detached {
		for _, cancel := range cancels {
			cancel()
		}
	}
	return true
}

// advance applies one step of r to w unless r was replaced or detached
func (c *Choreographer) advance(pageID string, r *run, w *html.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[pageID] != r {
		return
	}
	c.doc.Run(func() { dom.SetClass(w, window.ClassVisible, r.direction == DirectionReveal) })
	r.remaining--
	if r.remaining == 0 {
		delete(c.inflight, pageID)
	}
}
