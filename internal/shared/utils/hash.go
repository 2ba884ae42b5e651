// Package utils holds small helpers shared by the domain packages.
package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hasher produces stable digests from labelled fields
type Hasher struct{}

func DefaultHasher() *Hasher { return &Hasher{} }

// Hash returns the hex sha256 of data
func (h *Hasher) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFields hashes fields independent of their order. Callers label each
// field ("w=1280") so reordering cannot collide distinct inputs.
func (h *Hasher) HashFields(fields ...string) string {
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	return h.Hash([]byte(strings.Join(sorted, "|")))
}

// Short truncates a digest for display and cache keys
func Short(digest string) string {
	if len(digest) < 12 {
		return digest
	}
	return digest[:12]
}

// Field formats a labelled numeric field for HashFields
func Field(label string, v float64) string {
	return fmt.Sprintf("%s=%g", label, v)
}
