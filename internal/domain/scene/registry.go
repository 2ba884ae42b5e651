package scene

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownScene means no factory is registered for the id
	ErrUnknownScene = errors.New("unknown scene")
	// ErrMissingMount means a factory produced nothing mountable
	ErrMissingMount = errors.New("scene has no mount")
	// ErrScenePanic wraps a panic raised by scene code
	ErrScenePanic = errors.New("scene panicked")
	// ErrDuplicateScene means the id already has a factory
	ErrDuplicateScene = errors.New("scene already registered")
)

// Registry is the lookup table from scene id to factory.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds the factory for id. An id registers once per registry.
func (r *Registry) Register(id string, f Factory) error {
	if id == "" {
		return fmt.Errorf("scene id is required")
	}
	if f == nil {
		return fmt.Errorf("scene %s: %w", id, ErrMissingMount)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[id]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateScene, id)
	}
	r.factories[id] = f
	return nil
}

// MustRegister panics on invalid input, for static tables
func (r *Registry) MustRegister(id string, f Factory) {
	if err := r.Register(id, f); err != nil {
		panic(err)
	}
}

func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[id]
	return ok
}

// IDs returns the registered ids in sorted order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Create builds a fresh instance of the scene
func (r *Registry) Create(id string) (*Capability, error) {
	r.mu.RLock()
	f, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScene, id)
	}

	m, err := build(f)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", id, err)
	}
	return NewCapability(id, m)
}

func build(f Factory) (m Mounter, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: factory: %v", ErrScenePanic, r)
		}
	}()
	return f(), nil
}
