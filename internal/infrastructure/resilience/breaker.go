package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen is returned while the breaker refuses fragment fetches
	ErrCircuitOpen = errors.New("resilience: circuit open")
	// ErrProbeInFlight is returned when the half-open probe budget is spent
	ErrProbeInFlight = errors.New("resilience: probe already in flight")
)

// State of a breaker
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

// Settings tunes when a breaker trips and recovers.
type Settings struct {
	// Failures is the number of consecutive failures that opens the circuit
	Failures uint32
	// Cooldown is how long the circuit stays open before a probe is allowed
	Cooldown time.Duration
	// Probes is how many successful half-open requests close the circuit again
	Probes uint32
	// OnTransition observes every state change
	OnTransition func(name string, from, to State)
	// Now overrides the clock, mainly for tests
	Now func() time.Time
}

// Counts tracks outcomes since the last transition.
type Counts struct {
	Requests             uint32
	Successes            uint32
	Failures             uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker guards a flaky dependency such as the fragment endpoint.
type Breaker struct {
	name     string
	settings Settings

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	epoch    uint64
}

// New returns a closed breaker.
func New(name string, settings Settings) *Breaker {
	if settings.Failures == 0 {
		settings.Failures = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	if settings.Probes == 0 {
		settings.Probes = 1
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	return &Breaker{name: name, settings: settings}
}

func (b *Breaker) Name() string { return b.name }

// State reports the state, promoting open to half-open once the cooldown elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()
	return b.state
}

func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Allow reserves a slot. The returned done func must be called exactly once
// with the outcome.
func (b *Breaker) Allow() (done func(success bool), err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refresh()
	switch b.state {
	case StateOpen:
		return nil, ErrCircuitOpen
	case StateHalfOpen:
		if b.counts.Requests >= b.settings.Probes {
			return nil, ErrProbeInFlight
		}
	}
	b.counts.Requests++
	epoch := b.epoch

	var once sync.Once
	return func(success bool) {
		once.Do(func() { b.record(epoch, success) })
	}, nil
}

// Execute runs fn when the circuit allows it. A panic counts as a failure
// and is re-raised.
func (b *Breaker) Execute(fn func() error) error {
	done, err := b.Allow()
	if err != nil {
		return err
	}
	ok := false
	defer func() {
		if !ok {
			done(false)
		}
	}()
	err = fn()
	ok = true
	done(err == nil)
	return err
}

// Do is Execute for functions producing a value.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var out T
	err := b.Execute(func() error {
		v, err := fn()
		out = v
		return err
	})
	return out, err
}

func (b *Breaker) record(epoch uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refresh()
	if epoch != b.epoch {
		return
	}
	if success {
		b.counts.Successes++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if b.state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.Probes {
			b.transition(StateClosed)
		}
		return
	}

	b.counts.Failures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0
	switch b.state {
	case StateClosed:
		if b.counts.ConsecutiveFailures >= b.settings.Failures {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
	}
}

// refresh must be called with mu held
func (b *Breaker) refresh() {
	if b.state == StateOpen && !b.settings.Now().Before(b.openedAt.Add(b.settings.Cooldown)) {
		b.transition(StateHalfOpen)
	}
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.counts = Counts{}
	b.epoch++
	if to == StateOpen {
		b.openedAt = b.settings.Now()
	}
	if b.settings.OnTransition != nil {
		b.settings.OnTransition(b.name, from, to)
	}
}
