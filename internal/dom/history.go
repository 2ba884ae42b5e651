package dom

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/saintjustus/windowshell/internal/shared/types"
)

// History is the browser history and location the shell writes to.
type History interface {
	PushState(state types.HistoryState, rawURL string)
	ReplaceState(state types.HistoryState, rawURL string)
	// Location is the current absolute URL
	Location() *url.URL
	// Assign performs a full document navigation
	Assign(rawURL string)
}

type historyEntry struct {
	state types.HistoryState
	url   *url.URL
}

// MemoryHistory is an in-process History with back/forward support.
type MemoryHistory struct {
	mu       sync.Mutex
	entries  []historyEntry
	index    int
	assigned []string
}

// NewMemoryHistory starts at the given absolute URL
func NewMemoryHistory(start string) (*MemoryHistory, error) {
	u, err := url.Parse(start)
	if err != nil {
		return nil, fmt.Errorf("parse start url: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("start url %q is not absolute", start)
	}
	return &MemoryHistory{entries: []historyEntry{{url: u}}}, nil
}

func (h *MemoryHistory) resolve(rawURL string) *url.URL {
	cur := h.entries[h.index].url
	u, err := cur.Parse(rawURL)
	if err != nil {
		return cur
	}
	return u
}

func (h *MemoryHistory) PushState(state types.HistoryState, rawURL string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	u := h.resolve(rawURL)
	h.entries = append(h.entries[:h.index+1], historyEntry{state: state, url: u})
	h.index++
}

func (h *MemoryHistory) ReplaceState(state types.HistoryState, rawURL string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.index] = historyEntry{state: state, url: h.resolve(rawURL)}
}

func (h *MemoryHistory) Location() *url.URL {
	h.mu.Lock()
	defer h.mu.Unlock()
	u := *h.entries[h.index].url
	return &u
}

// Assign records a hard navigation and moves the location there
func (h *MemoryHistory) Assign(rawURL string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	u := h.resolve(rawURL)
	h.assigned = append(h.assigned, u.String())
	h.entries = append(h.entries[:h.index+1], historyEntry{url: u})
	h.index++
}

// Assigned lists every hard navigation so far
func (h *MemoryHistory) Assigned() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.assigned...)
}

// Back moves one entry back. The caller dispatches popstate.
func (h *MemoryHistory) Back() (types.HistoryState, bool) {
	return h.Go(-1)
}

func (h *MemoryHistory) Forward() (types.HistoryState, bool) {
	return h.Go(1)
}

// Go moves delta entries, false when out of range
func (h *MemoryHistory) Go(delta int) (types.HistoryState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := h.index + delta
	if next < 0 || next >= len(h.entries) {
		return types.HistoryState{}, false
	}
	h.index = next
	return h.entries[next].state, true
}

// Len is the number of entries in the stack
func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
