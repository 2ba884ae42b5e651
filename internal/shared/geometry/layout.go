package geometry

import "math"

// Layout is the measured state of the browser viewport that every clamp
// and placement computation depends on.
type Layout struct {
	ViewportWidth  float64 `json:"viewport_width"`
	ViewportHeight float64 `json:"viewport_height"`
	// HeaderHeight is the height of the fixed site header.
	HeaderHeight float64 `json:"header_height"`
	// FooterHeight is the measured height of the audio-player footer,
	// zero when the player is absent.
	FooterHeight float64 `json:"footer_height"`
}

// FooterClearance is the vertical space windows keep free above the bottom
// edge of the viewport.
func (l Layout) FooterClearance(gutter float64) float64 {
	if l.FooterHeight <= 0 {
		return gutter * 2
	}
	return math.Max(l.FooterHeight+gutter, gutter*2)
}

// Top is the smallest y a window may occupy
func (l Layout) Top(gutter float64) float64 {
	return math.Max(gutter, l.HeaderHeight)
}

// ClampPosition keeps a box of the given size inside the viewport, off the
// gutters, below the header and above the footer clearance.
func (l Layout) ClampPosition(p Point, s Size, gutter float64) Point {
	top := l.Top(gutter)
	maxX := math.Max(l.ViewportWidth-s.Width-gutter, gutter)
	maxY := math.Max(l.ViewportHeight-s.Height-l.FooterClearance(gutter), top)
	return Point{
		X: Clamp(p.X, gutter, maxX),
		Y: Clamp(p.Y, top, maxY),
	}
}

// FooterRegion returns the rect covered by the audio-player footer
func (l Layout) FooterRegion() Rect {
	return Rect{
		X:      0,
		Y:      l.ViewportHeight - l.FooterHeight,
		Width:  l.ViewportWidth,
		Height: l.FooterHeight,
	}
}
