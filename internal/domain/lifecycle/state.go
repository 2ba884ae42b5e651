package lifecycle

import (
	"github.com/saintjustus/windowshell/internal/shared/geometry"
)

// State of one window
type State int

const (
	// StateIdle windows were never opened and own no scene instance
	StateIdle State = iota
	StateInactive
	StateActivating
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInactive:
		return "inactive"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	}
	return "unknown"
}

// Open reports whether the window is expanded
func (s State) Open() bool {
	return s == StateActivating || s == StateActive
}

// LayoutMode selects how an active window is expanded
type LayoutMode string

const (
	LayoutCentered  LayoutMode = "centered"
	LayoutFullBleed LayoutMode = "fullbleed"
)

// ParseLayoutMode falls back to centered for unknown values
func ParseLayoutMode(s string) LayoutMode {
	if LayoutMode(s) == LayoutFullBleed {
		return LayoutFullBleed
	}
	return LayoutCentered
}

// WindowStatus is a point-in-time view of one window
type WindowStatus struct {
	ID       string
	State    State
	Active   bool
	Mounted  bool
	Rect     geometry.Rect
	Origin   geometry.Rect
	Expanded *geometry.Size
	Z        int
	Error    string
}
