package navigation

import (
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/net/html"

	"github.com/saintjustus/windowshell/internal/shared/types"
)

// Entry is a fetched page: its payload and the detached fragment node
// that is moved in and out of the page root.
type Entry struct {
	Payload types.PagePayload
	Node    *html.Node
}

// PageCache holds one entry per normalised path for the lifetime of the
// page. Entries never expire.
type PageCache struct {
	c *gocache.Cache
}

func NewPageCache() *PageCache {
	return &PageCache{c: gocache.New(gocache.NoExpiration, 0)}
}

func (p *PageCache) Get(path string) (*Entry, bool) {
	v, ok := p.c.Get(path)
	if !ok {
		return nil, false
	}
	e, ok := v.(*Entry)
	return e, ok
}

func (p *PageCache) Set(path string, e *Entry) {
	p.c.Set(path, e, gocache.NoExpiration)
}

func (p *PageCache) Len() int { return p.c.ItemCount() }

// Flush drops every entry
func (p *PageCache) Flush() { p.c.Flush() }
