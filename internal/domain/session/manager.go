package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/saintjustus/windowshell/internal/dom"
	"github.com/saintjustus/windowshell/internal/domain/lifecycle"
	"github.com/saintjustus/windowshell/internal/domain/manifest"
	"github.com/saintjustus/windowshell/internal/domain/placement"
	"github.com/saintjustus/windowshell/internal/domain/reveal"
	"github.com/saintjustus/windowshell/internal/domain/scene"
	"github.com/saintjustus/windowshell/internal/domain/window"
	"github.com/saintjustus/windowshell/internal/infrastructure/logging"
	"github.com/saintjustus/windowshell/internal/infrastructure/monitoring"
	"github.com/saintjustus/windowshell/internal/infrastructure/scheduler"
	"github.com/saintjustus/windowshell/internal/shared/events"
	"github.com/saintjustus/windowshell/internal/shared/id"
)

var (
	ErrNoLayer    = errors.New("page has no window layer")
	ErrNoManifest = errors.New("page has no window manifest")
	ErrClosed     = errors.New("session closed")
)

// Options tune every layer the session binds
type Options struct {
	Window       window.Options
	Placement    placement.Options
	EmbedTimeout time.Duration
	RevealStep   time.Duration
	// ZSeed is the z-index the first window starts above
	ZSeed int
}

func DefaultOptions() Options {
	return Options{
		Window:     window.DefaultOptions(),
		Placement:  placement.DefaultOptions(),
		RevealStep: reveal.DefaultStep,
		ZSeed:      10,
	}
}

// Deps are the page-wide collaborators
type Deps struct {
	Doc       *dom.Document
	Bus       *events.Bus
	Sched     scheduler.Scheduler
	Scenes    *scene.Registry
	Catalogue *manifest.Catalogue
	Metrics   *monitoring.Metrics
	Logger    *logging.Logger
}

type binding struct {
	node *html.Node
	ctrl *lifecycle.Controller
}

// Stats summarises the bound layers
type Stats struct {
	ID        string
	Layers    int
	Windows   int
	Active    string
	LastBound *time.Time
}

// Manager owns the window state of one page session: the scene registry,
// the placement engine, shared focus and z-order, and one lifecycle
// controller per bound layer.
type Manager struct {
	id        string
	doc       *dom.Document
	bus       *events.Bus
	scenes    *scene.Registry
	catalogue *manifest.Catalogue
	metrics   *monitoring.Metrics
	log       *logging.Logger
	opts      Options

	place   *placement.Engine
	focus   *lifecycle.Focus
	factory *window.Factory
	reveal  *reveal.Choreographer

	mu        sync.Mutex
	layers    map[string]*binding
	unsub     func()
	closed    bool
	lastBound *time.Time
}

// NewManager creates a session. Nothing is bound until Bind or Attach.
func NewManager(deps Deps, opts Options) *Manager {
	if deps.Bus == nil {
		deps.Bus = events.NewBus()
	}
	if deps.Sched == nil {
		deps.Sched = scheduler.NewRealtime()
	}
	if deps.Scenes == nil {
		deps.Scenes = scene.NewRegistry()
	}
	if deps.Catalogue == nil {
		deps.Catalogue = manifest.NewCatalogue()
	}
	if opts.Window == (window.Options{}) {
		opts.Window = window.DefaultOptions()
	}
	if opts.Placement == (placement.Options{}) {
		opts.Placement = placement.DefaultOptions()
	}

	sid := id.NewSessionID()
	return &Manager{
		id:        sid,
		doc:       deps.Doc,
		bus:       deps.Bus,
		scenes:    deps.Scenes,
		catalogue: deps.Catalogue,
		metrics:   deps.Metrics,
		log:       deps.Logger.Named("session").With(zap.String("session", sid)),
		opts:      opts,
		place:     placement.New(opts.Placement, deps.Metrics, deps.Logger),
		focus:     lifecycle.NewFocus(),
		factory:   window.NewFactory(deps.Doc, deps.Sched, window.NewZOrder(opts.ZSeed), opts.Window),
		reveal:    reveal.New(deps.Doc, deps.Sched, opts.RevealStep, deps.Metrics, deps.Logger),
		layers:    make(map[string]*binding),
	}
}

// ID identifies the session in logs
func (m *Manager) ID() string { return m.id }

func (m *Manager) Scenes() *scene.Registry { return m.scenes }

func (m *Manager) Reveal() *reveal.Choreographer { return m.reveal }

// Attach binds the layer of every completed navigation and lets the reveal
// choreographer animate it afterwards.
func (m *Manager) Attach() {
	unsub := m.bus.Subscribe(events.NameNavigationCompleted, func(e events.Event) {
		ev, ok := e.(events.NavigationCompleted)
		if !ok {
			return
		}
		if _, err := m.Bind(ev.PageID); err != nil && !errors.Is(err, ErrNoLayer) {
			m.log.Error("failed to bind layer", zap.String("page", ev.PageID), zap.Error(err))
		}
	})
	m.reveal.Attach(m.bus)

	m.mu.Lock()
	m.unsub = unsub
	m.mu.Unlock()
}

// Start binds and reveals the layer of the page the document was served
// with. Navigations after that arrive through Attach.
func (m *Manager) Start(pageID string) error {
	_, err := m.Bind(pageID)
	if err != nil && !errors.Is(err, ErrNoLayer) {
		return err
	}
	m.reveal.Show(pageID)
	return nil
}

// Bind tears down controllers whose layer left the document and builds the
// windows of pageID's layer. Binding a layer that is already bound returns
// its controller.
func (m *Manager) Bind(pageID string) (*lifecycle.Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	var (
		layer  *html.Node
		layout string
		stale  []string
	)
	m.doc.Do(func(*goquery.Document) {
		for page, b := range m.layers {
			if !dom.Connected(m.doc.Root(), b.node) {
				stale = append(stale, page)
			}
		}
		layer = m.doc.Layer(pageID)
		if layer != nil {
			layout, _ = dom.Attr(layer, dom.AttrLayerLayout)
		}
	})
	for _, page := range stale {
		m.unbindLocked(page)
	}

	if layer == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoLayer, pageID)
	}
	if b, ok := m.layers[pageID]; ok {
		if b.node == layer {
			return b.ctrl, nil
		}
		m.unbindLocked(pageID)
	}

	configs, ok := m.catalogue.Windows(pageID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoManifest, pageID)
	}

	items := make([]placement.Item, len(configs))
	for i, cfg := range configs {
		items[i] = placement.Item{ID: cfg.ID, Size: m.factory.InitialSize(cfg), Preferred: cfg.InitialPosition}
	}
	packed := m.place.Layer(pageID, m.doc.Layout(), items)

	ctrl := lifecycle.New(pageID, lifecycle.Deps{
		Doc:       m.doc,
		Scenes:    m.scenes,
		Placement: m.place,
		Focus:     m.focus,
		Metrics:   m.metrics,
		Logger:    m.log,
	}, lifecycle.Options{
		Window:       m.opts.Window,
		Layout:       lifecycle.ParseLayoutMode(layout),
		EmbedTimeout: m.opts.EmbedTimeout,
	})

	built := make([]*window.Window, 0, len(configs))
	for _, cfg := range configs {
		w := m.factory.Build(cfg, packed.Positions[cfg.ID])
		if err := ctrl.Add(w); err != nil {
			ctrl.Teardown()
			return nil, fmt.Errorf("bind %s: %w", pageID, err)
		}
		built = append(built, w)
	}
	m.doc.Run(func() {
		clearWindows(layer)
		for _, w := range built {
			dom.Append(layer, w.Element())
		}
	})

	m.layers[pageID] = &binding{node: layer, ctrl: ctrl}
	now := time.Now()
	m.lastBound = &now
	m.log.Info("layer bound",
		zap.String("page", pageID),
		zap.Int("windows", len(built)),
		zap.Int("pinned", len(packed.Pinned)),
		zap.String("layout", string(lifecycle.ParseLayoutMode(layout))))
	return ctrl, nil
}

// unbindLocked closes the layer's active window and removes its windows.
// mu held.
func (m *Manager) unbindLocked(pageID string) {
	b, ok := m.layers[pageID]
	if !ok {
		return
	}
	delete(m.layers, pageID)
	b.ctrl.Teardown()
	m.place.Invalidate(pageID)

	windows := b.ctrl.Windows()
	m.doc.Run(func() {
		for _, w := range windows {
			dom.Detach(w.Element())
		}
	})
	m.log.Debug("layer unbound", zap.String("page", pageID), zap.Int("windows", len(windows)))
}

// clearWindows removes window elements left in a layer by an earlier binding
func clearWindows(layer *html.Node) {
	for _, n := range dom.FindAll(layer, "["+window.AttrWindowID+"]") {
		if n.Parent == layer {
			dom.Detach(n)
		}
	}
}

// Controller returns the controller bound to pageID
func (m *Manager) Controller(pageID string) (*lifecycle.Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.layers[pageID]
	if !ok {
		return nil, false
	}
	return b.ctrl, true
}

func (m *Manager) controllers() []*lifecycle.Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*lifecycle.Controller, 0, len(m.layers))
	for _, b := range m.layers {
		out = append(out, b.ctrl)
	}
	return out
}

// HandleKey routes a key press to the bound layers
func (m *Manager) HandleKey(key string) bool {
	for _, c := range m.controllers() {
		if c.HandleKey(key) {
			return true
		}
	}
	return false
}

// HandleViewportResize records the new viewport, re-measures the footer and
// re-clamps every bound layer.
func (m *Manager) HandleViewportResize(width, height float64) {
	m.doc.SetViewport(width, height)
	m.doc.MeasureFooter()
	for _, c := range m.controllers() {
		c.HandleViewportResize()
	}
}

// Active returns the layer and id of the expanded window, if any
func (m *Manager) Active() (string, string) {
	for _, c := range m.controllers() {
		if wid := c.Active(); wid != "" {
			return c.Layer(), wid
		}
	}
	return "", ""
}

// Stats returns session statistics
func (m *Manager) Stats() Stats {
	layer, wid := m.Active()

	m.mu.Lock()
	defer m.mu.Unlock()
	st := Stats{ID: m.id, Layers: len(m.layers), LastBound: m.lastBound}
	for _, b := range m.layers {
		st.Windows += len(b.ctrl.Windows())
	}
	if wid != "" {
		st.Active = layer + "/" + wid
	}
	return st
}

// Close unsubscribes from the bus and tears down every layer
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	unsub := m.unsub
	m.unsub = nil
	for page := range m.layers {
		m.unbindLocked(page)
	}
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	m.reveal.Detach()
}
