package lifecycle

import "sync"

// Focus keeps a single active window across every controller of a page
// session. Opens are serialised through it.
type Focus struct {
	mu    sync.Mutex
	owner *Controller
}

func NewFocus() *Focus {
	return &Focus{}
}

// claim makes c the owner, closing the previous owner's active window.
// mu must be held.
func (f *Focus) claim(c *Controller) {
	if f.owner != nil && f.owner != c {
		f.owner.CloseActive()
	}
	f.owner = c
}

func (f *Focus) release(c *Controller) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.owner == c {
		f.owner = nil
	}
}
