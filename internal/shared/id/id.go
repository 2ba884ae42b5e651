// Package id generates identifiers for navigations and window mounts.
//
// Navigation ids are prefixed ULIDs so log lines sort by time. Mount tokens
// are random UUIDs; they only need to be unique, never ordered.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NavigationID identifies one navigation through the shell
type NavigationID string

// MountToken identifies one mount attempt of a window's content
type MountToken string

const (
	NavigationPrefix = "nav"
	SessionPrefix    = "sess"
)

// Generator produces ULIDs from a shared entropy source.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

var (
	defaultGen  *Generator
	defaultOnce sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	defaultOnce.Do(func() { defaultGen = NewGenerator() })
	return defaultGen
}

func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0), now: time.Now}
}

// NewGeneratorWithEntropy is for deterministic tests
func NewGeneratorWithEntropy(entropy io.Reader, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{entropy: entropy, now: now}
}

func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// WithPrefix returns "<prefix>_<ulid>"
func (g *Generator) WithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

func NewNavigationID() NavigationID {
	return NavigationID(Default().WithPrefix(NavigationPrefix))
}

func NewSessionID() string {
	return Default().WithPrefix(SessionPrefix)
}

func NewMountToken() MountToken {
	return MountToken(uuid.NewString())
}

func (n NavigationID) String() string { return string(n) }
func (m MountToken) String() string   { return string(m) }

// Timestamp extracts the creation time of a prefixed or bare ULID
func Timestamp(s string) (time.Time, error) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '_' {
			s = s[i+1:]
			break
		}
	}
	parsed, err := ulid.Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
