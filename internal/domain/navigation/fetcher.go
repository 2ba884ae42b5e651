package navigation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/bytedance/sonic"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/saintjustus/windowshell/internal/dom"
	"github.com/saintjustus/windowshell/internal/infrastructure/httpclient"
	"github.com/saintjustus/windowshell/internal/infrastructure/logging"
	"github.com/saintjustus/windowshell/internal/infrastructure/monitoring"
	"github.com/saintjustus/windowshell/internal/shared/types"
)

const (
	// DefaultShellHeader marks fragment requests so the server answers with JSON
	DefaultShellHeader  = "saintjustus-shell"
	HeaderRequestedWith = "X-Requested-With"
)

var (
	ErrFragmentStatus    = errors.New("fragment request failed")
	ErrMalformedFragment = errors.New("malformed fragment")
)

// PageFetcher retrieves the payload of a page
type PageFetcher interface {
	Fetch(ctx context.Context, target *url.URL) (*types.PagePayload, error)
}

// Fetcher requests page payloads over HTTP. Fragment markup is kept as the
// server rendered it; title and description are reduced to plain text.
type Fetcher struct {
	client  *httpclient.Client
	header  string
	text    *bluemonday.Policy
	metrics *monitoring.Metrics
	log     *logging.Logger
}

func NewFetcher(client *httpclient.Client, header string, metrics *monitoring.Metrics, log *logging.Logger) *Fetcher {
	if header == "" {
		header = DefaultShellHeader
	}
	return &Fetcher{
		client:  client,
		header:  header,
		text:    bluemonday.StrictPolicy(),
		metrics: metrics,
		log:     log.Named("fetcher"),
	}
}

// PlainText strips every tag from s and returns the unescaped text
func PlainText(p *bluemonday.Policy, s string) string {
	return html.UnescapeString(p.Sanitize(s))
}

// Fetch asks the server for the fragment of target.
func (f *Fetcher) Fetch(ctx context.Context, target *url.URL) (*types.PagePayload, error) {
	timer := f.metrics.StartFetch()
	defer timer.Stop()

	resp, err := f.client.Get(ctx, target.String(), map[string]string{
		HeaderRequestedWith: f.header,
		"Accept":            "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", requestURI(target), err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: %s returned %d", ErrFragmentStatus, requestURI(target), resp.StatusCode())
	}

	var body types.FragmentResponse
	if err := sonic.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFragment, err)
	}
	if body.Page == nil {
		return nil, fmt.Errorf("%w: missing page", ErrMalformedFragment)
	}

	page := *body.Page
	page.Title = PlainText(f.text, page.Title)
	page.Description = PlainText(f.text, page.Description)
	f.log.Debug("fragment fetched",
		zap.String("path", requestURI(target)),
		zap.String("page", page.ID),
		zap.Int("modules", len(page.Modules)))
	return &page, nil
}

// ParseFragment turns fragment markup into a detached node: the element
// marked data-page-fragment, or the first element when none is marked.
// Script elements and inline on* handlers are removed; everything else is
// kept as authored.
func ParseFragment(content string) (*html.Node, error) {
	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(strings.TrimSpace(content)), container)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFragment, err)
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	stripScripts(container)

	node := htmlquery.FindOne(container, "//*[@data-page-fragment]")
	if node == nil {
		for c := container.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				node = c
				break
			}
		}
	}
	if node == nil {
		return nil, fmt.Errorf("%w: no element", ErrMalformedFragment)
	}
	dom.Detach(node)
	return node, nil
}

func isScript(n *html.Node) bool {
	return n.Type == html.ElementNode && (n.DataAtom == atom.Script || strings.EqualFold(n.Data, "script"))
}

// stripScripts removes script elements and on* attributes under n
func stripScripts(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if isScript(c) {
			n.RemoveChild(c)
		} else {
			stripScripts(c)
		}
		c = next
	}
	if n.Type != html.ElementNode {
		return
	}
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if !strings.HasPrefix(strings.ToLower(a.Key), "on") {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}
