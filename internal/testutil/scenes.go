// Package testutil provides scene doubles and helpers shared by package tests.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/saintjustus/windowshell/internal/domain/scene"
)

// MockScene is a testify mock implementing every scene hook.
type MockScene struct {
	mock.Mock
}

func (m *MockScene) Mount(ctx context.Context, mc scene.MountContext) error {
	args := m.Called(ctx, mc)
	return args.Error(0)
}

func (m *MockScene) Resize(width, height float64) {
	m.Called(width, height)
}

func (m *MockScene) Unmount() error {
	args := m.Called()
	return args.Error(0)
}

// MountOnly implements only the required hook
type MountOnly struct {
	Mounts atomic.Int32
}

func (m *MountOnly) Mount(context.Context, scene.MountContext) error {
	m.Mounts.Add(1)
	return nil
}

// GateScene blocks in Mount until Release is called or ctx ends. It counts
// every hook invocation.
type GateScene struct {
	mu       sync.Mutex
	gate     chan struct{}
	started  chan struct{}
	err      error
	Mounts   atomic.Int32
	Unmounts atomic.Int32
	Resizes  atomic.Int32
}

func NewGateScene() *GateScene {
	return &GateScene{gate: make(chan struct{}), started: make(chan struct{}, 16)}
}

// Fail makes the next released mount return err
func (g *GateScene) Fail(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

// Release lets every pending and future Mount return
func (g *GateScene) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.gate:
	default:
		close(g.gate)
	}
}

// Started fires once per Mount call
func (g *GateScene) Started() <-chan struct{} { return g.started }

func (g *GateScene) Mount(ctx context.Context, _ scene.MountContext) error {
	g.Mounts.Add(1)
	g.started <- struct{}{}
	g.mu.Lock()
	gate := g.gate
	g.mu.Unlock()
	select {
	case <-gate:
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *GateScene) Resize(float64, float64) { g.Resizes.Add(1) }

func (g *GateScene) Unmount() error {
	g.Unmounts.Add(1)
	return nil
}

// Instant mounts immediately and counts hooks
type Instant struct {
	Mounts   atomic.Int32
	Unmounts atomic.Int32
	Resizes  atomic.Int32
	Err      error
}

func (s *Instant) Mount(context.Context, scene.MountContext) error {
	s.Mounts.Add(1)
	return s.Err
}

func (s *Instant) Resize(float64, float64) { s.Resizes.Add(1) }

func (s *Instant) Unmount() error {
	s.Unmounts.Add(1)
	return nil
}

// Hung blocks in Mount until Release, ignoring ctx
type Hung struct {
	once     sync.Once
	gate     chan struct{}
	started  chan struct{}
	Unmounts atomic.Int32
}

func NewHung() *Hung {
	return &Hung{gate: make(chan struct{}), started: make(chan struct{}, 16)}
}

// Started fires once per Mount call
func (h *Hung) Started() <-chan struct{} { return h.started }

// Release lets every pending and future Mount return
func (h *Hung) Release() { h.once.Do(func() { close(h.gate) }) }

func (h *Hung) Mount(context.Context, scene.MountContext) error {
	h.started <- struct{}{}
	<-h.gate
	return nil
}

func (h *Hung) Unmount() error {
	h.Unmounts.Add(1)
	return nil
}
