package dom

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/saintjustus/windowshell/internal/shared/geometry"
	"github.com/saintjustus/windowshell/internal/shared/types"
)

// Selectors the shell relies on
const (
	SelectorPageRoot     = "[data-page-root]"
	SelectorFragment     = "[data-page-fragment]"
	SelectorBootstrap    = "[data-page-bootstrap]"
	SelectorNavLink      = "[data-nav-link]"
	SelectorAudioPlayer  = ".audio-player"
	AttrWindowLayer      = "data-window-layer"
	AttrLayerLayout      = "data-window-layout"
	AttrFooterHeight     = "data-height"
	AttrNavLink          = "data-nav-link"
	AttrPage             = "data-page"
	AttrRoute            = "data-route"
	AttrAriaCurrent      = "aria-current"
	ariaCurrentPageValue = "page"
)

var ErrNoPageRoot = errors.New("dom: document has no page root")

// Document is the live page.
type Document struct {
	mu   sync.Mutex
	root *html.Node
	q    *goquery.Document

	layoutMu sync.RWMutex
	layout   geometry.Layout
}

// Parse reads a full HTML document
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return NewDocument(root), nil
}

func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func NewDocument(root *html.Node) *Document {
	return &Document{root: root, q: goquery.NewDocumentFromNode(root)}
}

// Do runs fn with exclusive access to the tree. fn must not call Do.
func (d *Document) Do(fn func(q *goquery.Document)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.q)
}

// Run is Do for callers that only touch nodes they already hold
func (d *Document) Run(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

// Root is the document node. Only touch it inside Do.
func (d *Document) Root() *html.Node { return d.root }

func (d *Document) Layout() geometry.Layout {
	d.layoutMu.RLock()
	defer d.layoutMu.RUnlock()
	return d.layout
}

func (d *Document) SetLayout(l geometry.Layout) {
	d.layoutMu.Lock()
	d.layout = l
	d.layoutMu.Unlock()
}

// SetViewport updates only the viewport size
func (d *Document) SetViewport(width, height float64) {
	d.layoutMu.Lock()
	d.layout.ViewportWidth = width
	d.layout.ViewportHeight = height
	d.layoutMu.Unlock()
}

// MeasureFooter refreshes the footer height from the audio player element.
// The player reports its rendered height in data-height; absent player means
// no footer.
func (d *Document) MeasureFooter() float64 {
	var h float64
	d.Do(func(q *goquery.Document) {
		player := q.Find(SelectorAudioPlayer).First()
		if player.Length() == 0 {
			return
		}
		if v, ok := player.Attr(AttrFooterHeight); ok {
			h, _ = strconv.ParseFloat(strings.TrimSuffix(v, "px"), 64)
			return
		}
		h, _ = StylePx(player.Get(0), "height")
	})
	d.layoutMu.Lock()
	d.layout.FooterHeight = h
	d.layoutMu.Unlock()
	return h
}

// PageRoot returns the fragment container. Call inside Do.
func (d *Document) PageRoot() *html.Node {
	return Find(d.root, SelectorPageRoot)
}

// Bootstrap removes the bootstrap payload element and returns its text
func (d *Document) Bootstrap() (string, bool) {
	var (
		text string
		ok   bool
	)
	d.Do(func(q *goquery.Document) {
		el := q.Find(SelectorBootstrap).First()
		if el.Length() == 0 {
			return
		}
		text, ok = el.Text(), true
		el.Remove()
	})
	return text, ok
}

// CurrentFragment returns the fragment mounted under the page root. Call inside Do.
func (d *Document) CurrentFragment() *html.Node {
	root := d.PageRoot()
	if root == nil {
		return nil
	}
	return Find(root, SelectorFragment)
}

// ApplyMeta writes title, description metas and page markers. Call inside Do.
func (d *Document) ApplyMeta(p types.PagePayload) {
	if p.Title != "" {
		d.setTitle(p.Title)
		if htmlEl := d.q.Find("html").First(); htmlEl.Length() > 0 {
			htmlEl.SetAttr(AttrPage, p.ID)
		}
		if body := d.q.Find("body").First(); body.Length() > 0 {
			body.SetAttr(AttrRoute, p.Route)
		}
	}
	if p.Description != "" {
		d.q.Find(`meta[name="description"]`).SetAttr("content", p.Description)
		d.q.Find(`meta[itemprop="description"]`).SetAttr("content", p.Description)
	}
}

func (d *Document) setTitle(title string) {
	t := d.q.Find("title").First()
	if t.Length() == 0 {
		head := d.q.Find("head").First()
		if head.Length() == 0 {
			return
		}
		el := NewElement("title")
		head.Get(0).AppendChild(el)
		t = Sel(el)
	}
	t.SetText(title)
}

// Title returns the document title. Call inside Do.
func (d *Document) Title() string {
	return d.q.Find("title").First().Text()
}

// CurrentPage returns the data-page marker on <html>. Call inside Do.
func (d *Document) CurrentPage() string {
	v, _ := d.q.Find("html").First().Attr(AttrPage)
	return v
}

// SetActiveNav marks the nav link for pageID with aria-current. Call inside Do.
func (d *Document) SetActiveNav(pageID string) {
	d.q.Find(SelectorNavLink).Each(func(_ int, s *goquery.Selection) {
		if v, _ := s.Attr(AttrNavLink); v == pageID {
			s.SetAttr(AttrAriaCurrent, ariaCurrentPageValue)
		} else {
			s.RemoveAttr(AttrAriaCurrent)
		}
	})
}

// Layer finds the window layer of a page. Call inside Do.
func (d *Document) Layer(pageID string) *html.Node {
	return FindLayer(d.root, pageID)
}

// FindLayer looks up [data-window-layer=pageID] beneath n
func FindLayer(n *html.Node, pageID string) *html.Node {
	if pageID == "" || strings.ContainsAny(pageID, `'"`) {
		return nil
	}
	return htmlquery.FindOne(n, fmt.Sprintf("//*[@%s='%s']", AttrWindowLayer, pageID))
}

// Layers lists every attached window layer keyed by page id. Call inside Do.
func (d *Document) Layers() map[string]*html.Node {
	out := map[string]*html.Node{}
	for _, n := range htmlquery.Find(d.root, "//*[@"+AttrWindowLayer+"]") {
		out[htmlquery.SelectAttr(n, AttrWindowLayer)] = n
	}
	return out
}

// Render serialises the whole document
func (d *Document) Render() string {
	var out string
	d.Do(func(*goquery.Document) { out = Render(d.root) })
	return out
}
