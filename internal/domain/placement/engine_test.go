package placement

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/saintjustus/windowshell/internal/infrastructure/monitoring"
	"github.com/saintjustus/windowshell/internal/shared/geometry"
)

var desktop = geometry.Layout{ViewportWidth: 1440, ViewportHeight: 900, HeaderHeight: 64, FooterHeight: 72}

func items(n int) []Item {
	out := make([]Item, n)
	for i := range out {
		out[i] = Item{ID: string(rune('a' + i)), Size: geometry.Size{Width: 240, Height: 160}}
	}
	return out
}

func collisions(res Result, in []Item, buffer float64) int {
	n := 0
	for i := 0; i < len(in); i++ {
		for j := i + 1; j < len(in); j++ {
			a := geometry.RectAt(res.Positions[in[i].ID], in[i].Size)
			b := geometry.RectAt(res.Positions[in[j].ID], in[j].Size)
			if Collides(a, b, buffer) {
				n++
			}
		}
	}
	return n
}

func TestPlaceThreeWindowsDistinct(t *testing.T) {
	e := New(DefaultOptions(), nil, nil)
	in := items(3)
	res := e.Place(desktop, in)

	require.Len(t, res.Positions, 3)
	assert.Zero(t, res.Fallbacks)
	assert.Zero(t, collisions(res, in, e.Options().Buffer))

	bounds := e.Bounds(desktop)
	for _, it := range in {
		r := geometry.RectAt(res.Positions[it.ID], it.Size)
		assert.True(t, bounds.Contains(r), "%s inside bounds", it.ID)
		assert.False(t, r.Intersects(desktop.FooterRegion()), "%s clear of footer", it.ID)
	}
}

func TestBoundsExcludeHeaderAndFooter(t *testing.T) {
	e := New(DefaultOptions(), nil, nil)
	b := e.Bounds(desktop)
	assert.Equal(t, geometry.Rect{X: 32, Y: 64, Width: 1376, Height: 900 - 104 - 64}, b)
}

func TestPlaceIsDeterministic(t *testing.T) {
	e := New(DefaultOptions(), nil, nil)
	a := e.Place(desktop, items(6))
	b := e.Place(desktop, items(6))
	assert.Equal(t, a.Positions, b.Positions)
	assert.Equal(t, a.Signature, b.Signature)
}

func TestAuthoredPositionHonoured(t *testing.T) {
	e := New(DefaultOptions(), nil, nil)
	in := items(3)
	in[1].Preferred = &geometry.Point{X: 400, Y: 300}
	res := e.Place(desktop, in)
	assert.Equal(t, geometry.Point{X: 400, Y: 300}, res.Positions["b"])
	assert.Zero(t, collisions(res, in, e.Options().Buffer))
}

func TestCollidingAuthoredPositionIsRepacked(t *testing.T) {
	e := New(DefaultOptions(), nil, nil)
	in := items(2)
	in[0].Preferred = &geometry.Point{X: 400, Y: 300}
	in[1].Preferred = &geometry.Point{X: 410, Y: 310}
	res := e.Place(desktop, in)
	assert.Equal(t, geometry.Point{X: 400, Y: 300}, res.Positions["a"])
	assert.NotEqual(t, geometry.Point{X: 410, Y: 310}, res.Positions["b"])
	assert.Zero(t, collisions(res, in, e.Options().Buffer))
}

func TestOverCapacityPinsToCorner(t *testing.T) {
	m := monitoring.NewMetrics(nil)
	e := New(DefaultOptions(), m, nil)
	tiny := geometry.Layout{ViewportWidth: 400, ViewportHeight: 400}
	in := items(5)
	res := e.Place(tiny, in)

	// only one 240x160 window fits in a 336x304 area; the rest are pinned
	const expectedFallbacks = 4
	assert.Equal(t, expectedFallbacks, res.Fallbacks)
	assert.Len(t, res.Pinned, expectedFallbacks)
	for _, id := range res.Pinned {
		assert.Equal(t, e.Bounds(tiny).Origin(), res.Positions[id])
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlacementPacks))
	assert.Equal(t, float64(expectedFallbacks), testutil.ToFloat64(m.PlacementFallbacks))
}

func TestLayerCachesBySignature(t *testing.T) {
	m := monitoring.NewMetrics(nil)
	e := New(DefaultOptions(), m, nil)
	in := items(3)

	first := e.Layer("art", desktop, in)
	again := e.Layer("art", desktop, in)
	assert.Equal(t, first, again)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlacementPacks))

	wider := desktop
	wider.ViewportWidth = 1920
	moved := e.Layer("art", wider, in)
	assert.NotEqual(t, first.Signature, moved.Signature)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PlacementPacks))

	e.Layer("art", wider, items(4))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PlacementPacks))

	e.Invalidate("art")
	e.Layer("art", wider, items(4))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.PlacementPacks))
}

func TestSignatureFields(t *testing.T) {
	e := New(DefaultOptions(), nil, nil)
	base := e.Signature(desktop, 3)
	assert.NotEqual(t, base, e.Signature(desktop, 4))
	other := desktop
	other.HeaderHeight = 80
	assert.NotEqual(t, base, e.Signature(other, 3))
	other = desktop
	other.FooterHeight = 0
	assert.NotEqual(t, base, e.Signature(other, 3))
}

func TestReclamp(t *testing.T) {
	e := New(DefaultOptions(), nil, nil)
	small := geometry.Layout{ViewportWidth: 800, ViewportHeight: 600, FooterHeight: 72}
	p := e.Reclamp(small, geometry.Rect{X: 1200, Y: 700, Width: 240, Height: 160})
	r := geometry.RectAt(p, geometry.Size{Width: 240, Height: 160})
	assert.True(t, e.Bounds(small).Contains(r))
	assert.False(t, r.Intersects(small.FooterRegion()))
}

func TestPlaceNoOverlapProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		layout := geometry.Layout{
			ViewportWidth:  float64(rapid.IntRange(480, 2560).Draw(t, "vw")),
			ViewportHeight: float64(rapid.IntRange(400, 1600).Draw(t, "vh")),
			HeaderHeight:   float64(rapid.IntRange(0, 96).Draw(t, "header")),
			FooterHeight:   float64(rapid.IntRange(0, 120).Draw(t, "footer")),
		}
		n := rapid.IntRange(1, 12).Draw(t, "n")
		in := make([]Item, n)
		for i := range in {
			in[i] = Item{
				ID: string(rune('a' + i)),
				Size: geometry.Size{
					Width:  float64(rapid.IntRange(240, 360).Draw(t, "w")),
					Height: float64(rapid.IntRange(160, 240).Draw(t, "h")),
				},
			}
		}

		e := New(DefaultOptions(), nil, nil)
		res := e.Place(layout, in)
		if len(res.Positions) != n {
			t.Fatalf("placed %d of %d", len(res.Positions), n)
		}
		if len(res.Pinned) != res.Fallbacks {
			t.Fatalf("pinned %d, fallbacks %d", len(res.Pinned), res.Fallbacks)
		}
		// overlaps are only allowed when windows were pinned to the corner
		if res.Fallbacks == 0 {
			if c := collisions(res, in, e.Options().Buffer); c != 0 {
				t.Fatalf("%d collisions without fallback", c)
			}
		}
	})
}
