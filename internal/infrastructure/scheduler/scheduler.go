// Package scheduler abstracts the two clocks the shell runs on: animation
// frames and wall-clock timers.
//
// Implementations:
//   - Realtime: frames every FrameInterval, timers via time.AfterFunc
//   - Manual: nothing fires until a test calls Frame or Advance
//
// Callbacks never run while the scheduler holds its own lock, so they may
// freely schedule more work.
package scheduler

import (
	"sync"
	"time"
)

// DefaultFrameInterval approximates a 60Hz display
const DefaultFrameInterval = 16 * time.Millisecond

// Scheduler queues work for the next animation frame or after a delay.
// The returned function cancels the callback if it has not run yet.
type Scheduler interface {
	RequestFrame(fn func()) (cancel func())
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

// Realtime drives callbacks from the wall clock
type Realtime struct {
	FrameInterval time.Duration
}

// NewRealtime creates a realtime scheduler with the default frame interval
func NewRealtime() *Realtime {
	return &Realtime{FrameInterval: DefaultFrameInterval}
}

// RequestFrame runs fn on the next frame boundary
func (r *Realtime) RequestFrame(fn func()) func() {
	interval := r.FrameInterval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return r.AfterFunc(interval, fn)
}

// AfterFunc runs fn once d has elapsed
func (r *Realtime) AfterFunc(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

type timer struct {
	id       uint64
	at       time.Duration
	fn       func()
	canceled bool
}

// Manual is a deterministic scheduler for tests.
type Manual struct {
	mu     sync.Mutex
	now    time.Duration
	nextID uint64
	frames []*timer
	timers []*timer
}

// NewManual creates a manual scheduler at time zero
func NewManual() *Manual {
	return &Manual{}
}

// RequestFrame queues fn for the next call to Frame
func (m *Manual) RequestFrame(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t := &timer{id: m.nextID, fn: fn}
	m.frames = append(m.frames, t)
	return m.canceler(t)
}

// AfterFunc queues fn to run once the manual clock passes d from now
func (m *Manual) AfterFunc(d time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t := &timer{id: m.nextID, at: m.now + d, fn: fn}
	m.timers = append(m.timers, t)
	return m.canceler(t)
}

func (m *Manual) canceler(t *timer) func() {
	return func() {
		m.mu.Lock()
		t.canceled = true
		m.mu.Unlock()
	}
}

// Frame runs every frame callback queued before the call. Callbacks queued
// while the frame runs wait for the next Frame.
func (m *Manual) Frame() int {
	m.mu.Lock()
	batch := m.frames
	m.frames = nil
	m.mu.Unlock()

	ran := 0
	for _, t := range batch {
		if m.isCanceled(t) {
			continue
		}
		t.fn()
		ran++
	}
	return ran
}

// Advance moves the clock forward by d, firing due timers in deadline order.
// Timers scheduled by callbacks fire too if they fall inside the window.
func (m *Manual) Advance(d time.Duration) int {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	ran := 0
	for {
		t := m.popDue(target)
		if t == nil {
			break
		}
		t.fn()
		ran++
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
	return ran
}

// popDue removes and returns the earliest live timer due at or before target
func (m *Manual) popDue(target time.Duration) *timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	best := -1
	for i, t := range m.timers {
		if t.canceled || t.at > target {
			continue
		}
		if best < 0 || t.at < m.timers[best].at || (t.at == m.timers[best].at && t.id < m.timers[best].id) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}

	t := m.timers[best]
	m.timers = append(m.timers[:best], m.timers[best+1:]...)
	if t.at > m.now {
		m.now = t.at
	}
	return t
}

func (m *Manual) isCanceled(t *timer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return t.canceled
}

// Now returns the manual clock's elapsed time
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// PendingFrames reports how many frame callbacks are queued
func (m *Manual) PendingFrames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.frames {
		if !t.canceled {
			n++
		}
	}
	return n
}
