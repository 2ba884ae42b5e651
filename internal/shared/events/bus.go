// Package events carries the custom DOM events the shell produces and
// consumes: navigation intents fired before a swap and navigation
// completions fired after one.
package events

import "sync"

// Event names
const (
	NameNavigationCompleted = "shell:navigation"
	NameNavigationIntent    = "shell:navigate-intent"
)

// Event is anything published on the bus
type Event interface {
	Name() string
}

// NavigationCompleted is dispatched once a fragment has been swapped in
type NavigationCompleted struct {
	PageID       string `json:"pageId"`
	Route        string `json:"route"`
	NavigationID string `json:"navigationId,omitempty"`
}

// Name implements Event
func (NavigationCompleted) Name() string { return NameNavigationCompleted }

// NavigationIntent is dispatched before a navigation begins so outgoing
// layers can animate out.
type NavigationIntent struct {
	TargetID string `json:"targetId"`
}

// Name implements Event
func (NavigationIntent) Name() string { return NameNavigationIntent }

// Handler receives published events
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous publish/subscribe hub. Handlers run on the
// publisher's goroutine in subscription order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription // Protected by mu
	nextID uint64
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers a handler for an event name and returns a function
// that removes it.
func (b *Bus) Subscribe(name string, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[name]
			for i, s := range list {
				if s.id == id {
					b.subs[name] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers e to every handler subscribed to its name.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	list := make([]subscription, len(b.subs[e.Name()]))
	copy(list, b.subs[e.Name()])
	b.mu.RUnlock()

	for _, s := range list {
		s.handler(e)
	}
}
