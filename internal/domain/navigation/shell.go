package navigation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/saintjustus/windowshell/internal/dom"
	"github.com/saintjustus/windowshell/internal/infrastructure/logging"
	"github.com/saintjustus/windowshell/internal/infrastructure/monitoring"
	"github.com/saintjustus/windowshell/internal/infrastructure/scheduler"
	"github.com/saintjustus/windowshell/internal/shared/events"
	"github.com/saintjustus/windowshell/internal/shared/id"
	"github.com/saintjustus/windowshell/internal/shared/types"
)

var (
	ErrNavigationInFlight = errors.New("navigation already in flight")
	ErrNoBootstrap        = errors.New("page has no bootstrap payload")
	// ErrSuperseded is returned by a navigation whose page arrived after
	// another page was mounted.
	ErrSuperseded = errors.New("navigation superseded")
)

// Outcome describes what a navigation did
type Outcome string

const (
	OutcomeSwapped Outcome = monitoring.OutcomeSwapped
	OutcomeCached  Outcome = monitoring.OutcomeCached
	OutcomeReload  Outcome = monitoring.OutcomeReload
	OutcomeDropped Outcome = monitoring.OutcomeDropped
	OutcomeNoop    Outcome = monitoring.OutcomeNoop
	// OutcomeIgnored clicks are left to the browser
	OutcomeIgnored Outcome = "ignored"
)

// Options tune a single navigation
type Options struct {
	Replace bool
}

// ClickEvent is the subset of a DOM click the shell inspects
type ClickEvent struct {
	Target           *html.Node
	Button           int
	Meta             bool
	Ctrl             bool
	Shift            bool
	Alt              bool
	DefaultPrevented bool
}

// Config holds the shell's static settings
type Config struct {
	// Header is sent as X-Requested-With on fragment requests
	Header string
	// Bypass globs match paths that always load as full documents
	Bypass []string
}

// Deps are the collaborators the shell drives
type Deps struct {
	Doc     *dom.Document
	History dom.History
	Fetcher PageFetcher
	Modules ModuleRunner
	Bus     *events.Bus
	Sched   scheduler.Scheduler
	Metrics *monitoring.Metrics
	Logger  *logging.Logger
}

// Shell swaps page fragments in place of full document loads.
type Shell struct {
	doc     *dom.Document
	history dom.History
	fetcher PageFetcher
	modules ModuleRunner
	bus     *events.Bus
	sched   scheduler.Scheduler
	metrics *monitoring.Metrics
	log     *logging.Logger
	bypass  []string
	cache   *PageCache

	// mountMu serialises fragment swaps
	mountMu sync.Mutex

	mu         sync.Mutex
	activePath string
	navigating bool
	mounts     int64
}

func New(cfg Config, deps Deps) (*Shell, error) {
	for _, pattern := range cfg.Bypass {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid bypass pattern %q", pattern)
		}
	}
	if deps.Bus == nil {
		deps.Bus = events.NewBus()
	}
	if deps.Sched == nil {
		deps.Sched = scheduler.NewRealtime()
	}
	s := &Shell{
		doc:     deps.Doc,
		history: deps.History,
		fetcher: deps.Fetcher,
		modules: deps.Modules,
		bus:     deps.Bus,
		sched:   deps.Sched,
		metrics: deps.Metrics,
		log:     deps.Logger.Named("shell"),
		bypass:  cfg.Bypass,
		cache:   NewPageCache(),
	}
	s.activePath = NormalisePath(deps.History.Location().Path)
	return s, nil
}

func (s *Shell) Bus() *events.Bus { return s.bus }

func (s *Shell) Cache() *PageCache { return s.cache }

// ActivePath is the normalised path of the mounted page
func (s *Shell) ActivePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePath
}

// Bootstrap consumes the payload the server embedded in the first document
// and registers the already rendered fragment as the current page.
func (s *Shell) Bootstrap() (*types.PagePayload, error) {
	raw, ok := s.doc.Bootstrap()
	if !ok {
		return nil, ErrNoBootstrap
	}
	var payload types.PagePayload
	if err := sonic.UnmarshalString(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse bootstrap payload: %w", err)
	}

	loc := s.history.Location()
	path := NormalisePath(loc.Path)

	var fragment *html.Node
	s.doc.Do(func(*goquery.Document) {
		fragment = s.doc.CurrentFragment()
		if fragment == nil {
			return
		}
		s.doc.ApplyMeta(payload)
		s.doc.SetActiveNav(payload.ID)
	})

	s.mu.Lock()
	s.activePath = path
	s.mu.Unlock()

	if fragment != nil {
		s.cache.Set(path, &Entry{Payload: payload, Node: fragment})
		s.history.ReplaceState(types.HistoryState{Path: payload.Route}, loc.EscapedPath())
	}
	if payload.ID == "home" {
		s.sched.RequestFrame(s.animateNavEntrance)
	}
	return &payload, nil
}

// HandleClick navigates for qualifying link clicks. Clicks the browser
// should handle itself return OutcomeIgnored.
func (s *Shell) HandleClick(ctx context.Context, ev ClickEvent) (Outcome, error) {
	if ev.DefaultPrevented || ev.Button != 0 || ev.Meta || ev.Ctrl || ev.Shift || ev.Alt {
		return OutcomeIgnored, nil
	}

	var (
		href, navLink string
		qualifies     bool
	)
	s.doc.Run(func() {
		a := closestAnchor(ev.Target)
		if a == nil {
			return
		}
		if target, ok := dom.Attr(a, "target"); ok && target != "" && target != "_self" {
			return
		}
		if _, ok := dom.Attr(a, "download"); ok {
			return
		}
		if rel, _ := dom.Attr(a, "rel"); rel == "external" {
			return
		}
		href, _ = dom.Attr(a, "href")
		navLink, _ = dom.Attr(a, dom.AttrNavLink)
		qualifies = href != "" && href[0] != '#'
	})
	if !qualifies {
		return OutcomeIgnored, nil
	}

	loc := s.history.Location()
	target, err := loc.Parse(href)
	if err != nil || !sameOrigin(target, loc) {
		return OutcomeIgnored, nil
	}
	if s.bypassed(target.Path) {
		return OutcomeIgnored, nil
	}

	targetID := navLink
	if targetID == "" {
		targetID = ResolvePageID(target.Path)
	}
	s.dispatchIntent(targetID)
	return s.Navigate(ctx, requestURI(target), Options{})
}

func closestAnchor(n *html.Node) *html.Node {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "a" {
			return p
		}
	}
	return nil
}

func (s *Shell) bypassed(p string) bool {
	for _, pattern := range s.bypass {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

func (s *Shell) dispatchIntent(targetID string) {
	s.bus.Publish(events.NavigationIntent{TargetID: targetID})

	var current string
	s.doc.Do(func(*goquery.Document) { current = s.doc.CurrentPage() })
	if current == "home" && windowPages[targetID] {
		s.animateNavExit(targetID)
	}
}

// Navigate loads rawURL into the page root. Only one navigation runs at a
// time; overlapping calls are dropped with ErrNavigationInFlight.
func (s *Shell) Navigate(ctx context.Context, rawURL string, opts Options) (Outcome, error) {
	loc := s.history.Location()
	target, err := loc.Parse(rawURL)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("parse %q: %w", rawURL, err)
	}
	if !sameOrigin(target, loc) {
		s.hardNavigate(target, "cross-origin target")
		return OutcomeReload, nil
	}

	next := NormalisePath(target.Path)
	s.mu.Lock()
	if s.navigating {
		s.mu.Unlock()
		s.metrics.ObserveNavigation(monitoring.OutcomeDropped)
		return OutcomeDropped, ErrNavigationInFlight
	}
	if next == s.activePath {
		s.mu.Unlock()
		s.metrics.ObserveNavigation(monitoring.OutcomeNoop)
		return OutcomeNoop, nil
	}
	s.navigating = true
	since := s.mounts
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.navigating = false
		s.mu.Unlock()
	}()

	outcome := OutcomeCached
	entry, hit := s.cache.Get(next)
	s.metrics.ObserveCache(hit)
	if !hit {
		payload, err := s.fetcher.Fetch(ctx, target)
		if err != nil {
			return s.fail(ctx, target, err)
		}
		node, err := ParseFragment(payload.Content)
		if err != nil {
			return s.fail(ctx, target, err)
		}
		entry = &Entry{Payload: *payload, Node: node}
		s.cache.Set(next, entry)
		outcome = OutcomeSwapped
	}

	if s.modules != nil {
		if err := s.modules.Load(ctx, target, entry.Payload.Modules); err != nil {
			return s.fail(ctx, target, err)
		}
	}

	if err := s.mount(entry, next, target, opts.Replace, since); err != nil {
		if errors.Is(err, ErrSuperseded) {
			s.log.Debug("discarding superseded navigation", zap.String("path", next))
			s.metrics.ObserveNavigation(monitoring.OutcomeDropped)
			return OutcomeDropped, err
		}
		return s.fail(ctx, target, err)
	}
	s.metrics.ObserveNavigation(string(outcome))
	return outcome, nil
}

// PopState reacts to the history moving under the shell. Cached pages are
// remounted directly and win over any navigation still fetching; others are
// fetched without adding a history entry.
func (s *Shell) PopState(ctx context.Context) (Outcome, error) {
	loc := s.history.Location()
	next := NormalisePath(loc.Path)
	if next == s.ActivePath() {
		return OutcomeNoop, nil
	}
	if entry, ok := s.cache.Get(next); ok {
		s.metrics.ObserveCache(true)
		if err := s.mount(entry, next, loc, true, -1); err != nil {
			return s.fail(ctx, loc, err)
		}
		s.metrics.ObserveNavigation(monitoring.OutcomeCached)
		return OutcomeCached, nil
	}
	return s.Navigate(ctx, loc.String(), Options{Replace: true})
}

// fail degrades to a full document load. Cancelled navigations are dropped.
func (s *Shell) fail(ctx context.Context, target *url.URL, err error) (Outcome, error) {
	if ctx.Err() != nil {
		s.metrics.ObserveNavigation(monitoring.OutcomeDropped)
		return OutcomeDropped, err
	}
	s.log.Error("navigation failed", zap.String("target", target.String()), zap.Error(err))
	s.hardNavigate(target, "navigation failed")
	return OutcomeReload, err
}

func (s *Shell) hardNavigate(target *url.URL, reason string) {
	s.log.Info("falling back to document load", zap.String("target", target.String()), zap.String("reason", reason))
	s.metrics.ObserveNavigation(monitoring.OutcomeReload)
	s.history.Assign(target.String())
}

// mount swaps entry into the page root and publishes the completion. A
// non-negative since must match the mount count or ErrSuperseded is returned.
func (s *Shell) mount(entry *Entry, path string, target *url.URL, replace bool, since int64) error {
	s.mountMu.Lock()
	defer s.mountMu.Unlock()

	s.mu.Lock()
	if since >= 0 && since != s.mounts {
		s.mu.Unlock()
		return ErrSuperseded
	}
	prev := s.activePath
	s.mu.Unlock()
	current, _ := s.cache.Get(prev)

	var mountErr error
	s.doc.Do(func(*goquery.Document) {
		root := s.doc.PageRoot()
		if root == nil {
			mountErr = dom.ErrNoPageRoot
			return
		}
		if current != nil && dom.Connected(s.doc.Root(), current.Node) {
			dom.Detach(current.Node)
		}
		dom.Clear(root)
		dom.Append(root, entry.Node)
		s.doc.ApplyMeta(entry.Payload)
		s.doc.SetActiveNav(entry.Payload.ID)
	})
	if mountErr != nil {
		return mountErr
	}

	s.mu.Lock()
	s.activePath = path
	s.mounts++
	s.mu.Unlock()

	state := types.HistoryState{Path: entry.Payload.Route}
	if replace {
		s.history.ReplaceState(state, requestURI(target))
	} else {
		s.history.PushState(state, requestURI(target))
	}

	navID := id.NewNavigationID()
	s.log.Debug("page mounted",
		zap.String("page", entry.Payload.ID),
		zap.String("path", path),
		zap.String("navigation", string(navID)))
	s.bus.Publish(events.NavigationCompleted{
		PageID:       entry.Payload.ID,
		Route:        entry.Payload.Route,
		NavigationID: string(navID),
	})
	if entry.Payload.ID == "home" {
		s.sched.RequestFrame(s.animateNavEntrance)
	}
	return nil
}
