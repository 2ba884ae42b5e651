package window

import "sync"

// ZOrder hands out strictly increasing z-index values for one page session.
type ZOrder struct {
	mu   sync.Mutex
	last int
}

// NewZOrder starts counting after seed
func NewZOrder(seed int) *ZOrder {
	return &ZOrder{last: seed}
}

// Next returns a z-index above every value handed out so far
func (z *ZOrder) Next() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.last++
	return z.last
}

// Top is the most recent value
func (z *ZOrder) Top() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.last
}
