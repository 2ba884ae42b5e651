// Package placement computes non-overlapping resting positions for the
// inactive windows of a layer.
package placement

import (
	"math"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/saintjustus/windowshell/internal/infrastructure/config"
	"github.com/saintjustus/windowshell/internal/infrastructure/logging"
	"github.com/saintjustus/windowshell/internal/infrastructure/monitoring"
	"github.com/saintjustus/windowshell/internal/shared/geometry"
	"github.com/saintjustus/windowshell/internal/shared/utils"
)

// Options tune the packing grid.
type Options struct {
	DefaultWidth  float64
	DefaultHeight float64
	// Gutter separates grid cells
	Gutter float64
	// Buffer is the minimum free space kept between two windows
	Buffer float64
	// Inset keeps packed windows off the viewport edges
	Inset          float64
	RandomAttempts int
	Seed           uint64
}

func DefaultOptions() Options {
	return Options{
		DefaultWidth:   280,
		DefaultHeight:  180,
		Gutter:         24,
		Buffer:         16,
		Inset:          32,
		RandomAttempts: 16,
		Seed:           1,
	}
}

// OptionsFromConfig builds options from the env configuration. Inset comes
// from the window gutter so packed windows never need re-clamping.
func OptionsFromConfig(p config.PlacementConfig, w config.WindowConfig) Options {
	return Options{
		DefaultWidth:   p.DefaultWidth,
		DefaultHeight:  p.DefaultHeight,
		Gutter:         p.Gutter,
		Buffer:         p.Buffer,
		Inset:          w.Gutter,
		RandomAttempts: p.RandomAttempts,
		Seed:           p.Seed,
	}
}

// Item is one window to place
type Item struct {
	ID   string
	Size geometry.Size
	// Preferred is an authored position, honoured when it does not collide
	Preferred *geometry.Point
}

// Result of a pack
type Result struct {
	Positions map[string]geometry.Point
	// Pinned lists the windows that fell back to the corner
	Pinned    []string
	Fallbacks int
	Signature string
}

// Engine packs layers and caches the result per layer until its signature
// changes.
type Engine struct {
	opts    Options
	metrics *monitoring.Metrics
	log     *logging.Logger
	hasher  *utils.Hasher

	mu    sync.Mutex
	cache map[string]Result
}

func New(opts Options, metrics *monitoring.Metrics, log *logging.Logger) *Engine {
	if opts.DefaultWidth <= 0 || opts.DefaultHeight <= 0 {
		d := DefaultOptions()
		opts.DefaultWidth, opts.DefaultHeight = d.DefaultWidth, d.DefaultHeight
	}
	if opts.RandomAttempts < 0 {
		opts.RandomAttempts = 0
	}
	return &Engine{
		opts:    opts,
		metrics: metrics,
		log:     log.Named("placement"),
		hasher:  utils.DefaultHasher(),
		cache:   make(map[string]Result),
	}
}

func (e *Engine) Options() Options { return e.opts }

// Bounds is the area windows may rest in: the viewport minus the edge
// inset, the header and the footer clearance.
func (e *Engine) Bounds(l geometry.Layout) geometry.Rect {
	inset := e.opts.Inset
	top := l.Top(inset)
	bottom := l.ViewportHeight - l.FooterClearance(inset)
	return geometry.Rect{
		X:      inset,
		Y:      top,
		Width:  math.Max(l.ViewportWidth-inset*2, 0),
		Height: math.Max(bottom-top, 0),
	}
}

// Signature keys the cached pack of a layer
func (e *Engine) Signature(l geometry.Layout, count int) string {
	return utils.Short(e.hasher.HashFields(
		utils.Field("vw", l.ViewportWidth),
		utils.Field("vh", l.ViewportHeight),
		utils.Field("header", l.HeaderHeight),
		utils.Field("footer", l.FooterHeight),
		utils.Field("count", float64(count)),
	))
}

// Collides reports whether a and b are closer than buffer
func Collides(a, b geometry.Rect, buffer float64) bool {
	return a.Inflate(buffer).Intersects(b)
}

// Layer returns the cached pack for layer, recomputing it when the
// signature changed.
func (e *Engine) Layer(layer string, l geometry.Layout, items []Item) Result {
	sig := e.Signature(l, len(items))
	e.mu.Lock()
	if cached, ok := e.cache[layer]; ok && cached.Signature == sig {
		e.mu.Unlock()
		return cached
	}
	e.mu.Unlock()

	res := e.Place(l, items)
	e.mu.Lock()
	e.cache[layer] = res
	e.mu.Unlock()
	return res
}

// Invalidate drops the cached pack of a layer
func (e *Engine) Invalidate(layer string) {
	e.mu.Lock()
	delete(e.cache, layer)
	e.mu.Unlock()
}

// Place packs items into the layout without consulting the cache.
func (e *Engine) Place(l geometry.Layout, items []Item) Result {
	bounds := e.Bounds(l)
	res := Result{
		Positions: make(map[string]geometry.Point, len(items)),
		Signature: e.Signature(l, len(items)),
	}
	if len(items) == 0 {
		return res
	}

	slots := e.slots(bounds, len(items))
	used := make([]bool, len(slots))
	var occupied []geometry.Rect
	free := func(r geometry.Rect) bool {
		for _, o := range occupied {
			if Collides(r, o, e.opts.Buffer) {
				return false
			}
		}
		return true
	}
	accept := func(id string, r geometry.Rect) {
		res.Positions[id] = r.Origin()
		occupied = append(occupied, r)
	}

	for _, it := range items {
		if it.Preferred == nil {
			continue
		}
		r := geometry.RectAt(fit(bounds, *it.Preferred, it.Size), it.Size)
		if free(r) {
			accept(it.ID, r)
		}
	}

	for i, it := range items {
		if _, done := res.Positions[it.ID]; done {
			continue
		}
		if r, ok := e.probe(bounds, slots, used, i, it.Size, free); ok {
			accept(it.ID, r)
			continue
		}
		if r, ok := e.scatter(bounds, i, it.Size, free); ok {
			accept(it.ID, r)
			continue
		}
		corner := geometry.RectAt(bounds.Origin(), it.Size)
		accept(it.ID, corner)
		res.Pinned = append(res.Pinned, it.ID)
		res.Fallbacks++
	}

	e.metrics.ObservePlacement(res.Fallbacks)
	if res.Fallbacks > 0 {
		e.log.Debug("placement fell back to corner",
			zap.Int("windows", len(items)),
			zap.Int("fallbacks", res.Fallbacks),
			zap.String("signature", res.Signature))
	}
	return res
}

// slots returns jittered cell centres in row-major order
func (e *Engine) slots(bounds geometry.Rect, n int) []geometry.Point {
	cols := int(math.Max(1, math.Floor(bounds.Width/(e.opts.DefaultWidth+e.opts.Gutter))))
	rows := int(math.Ceil(float64(n) / float64(cols)))
	cellW := bounds.Width / float64(cols)
	cellH := bounds.Height / float64(rows)

	out := make([]geometry.Point, 0, cols*rows)
	for i := 0; i < cols*rows; i++ {
		col, row := i%cols, i/cols
		j := e.jitter(i, math.Min(cellW, cellH)*0.12)
		out = append(out, geometry.Point{
			X: bounds.X + (float64(col)+0.5)*cellW + j.X,
			Y: bounds.Y + (float64(row)+0.5)*cellH + j.Y,
		})
	}
	return out
}

// jitter is deterministic per slot index
func (e *Engine) jitter(i int, amplitude float64) geometry.Point {
	if amplitude <= 0 {
		return geometry.Point{}
	}
	u := distuv.Uniform{Min: -amplitude, Max: amplitude, Src: rand.NewPCG(e.opts.Seed, uint64(i))}
	return geometry.Point{X: u.Rand(), Y: u.Rand()}
}

// probe tries the item's own slot, then the following ones
func (e *Engine) probe(bounds geometry.Rect, slots []geometry.Point, used []bool, i int, size geometry.Size, free func(geometry.Rect) bool) (geometry.Rect, bool) {
	for k := 0; k < len(slots); k++ {
		s := (i + k) % len(slots)
		if used[s] {
			continue
		}
		c := slots[s]
		origin := fit(bounds, geometry.Point{X: c.X - size.Width/2, Y: c.Y - size.Height/2}, size)
		r := geometry.RectAt(origin, size)
		if free(r) {
			used[s] = true
			return r, true
		}
	}
	return geometry.Rect{}, false
}

// scatter tries uniformly random origins inside the bounds
func (e *Engine) scatter(bounds geometry.Rect, i int, size geometry.Size, free func(geometry.Rect) bool) (geometry.Rect, bool) {
	if e.opts.RandomAttempts == 0 {
		return geometry.Rect{}, false
	}
	src := rand.NewPCG(e.opts.Seed^0x9e3779b97f4a7c15, uint64(i))
	xs := distuv.Uniform{Min: bounds.X, Max: math.Max(bounds.Right()-size.Width, bounds.X) + 1e-9, Src: src}
	ys := distuv.Uniform{Min: bounds.Y, Max: math.Max(bounds.Bottom()-size.Height, bounds.Y) + 1e-9, Src: src}
	for a := 0; a < e.opts.RandomAttempts; a++ {
		r := geometry.RectAt(fit(bounds, geometry.Point{X: xs.Rand(), Y: ys.Rand()}, size), size)
		if free(r) {
			return r, true
		}
	}
	return geometry.Rect{}, false
}

// Reclamp moves a resting window back inside the bounds of a new layout
func (e *Engine) Reclamp(l geometry.Layout, r geometry.Rect) geometry.Point {
	return fit(e.Bounds(l), r.Origin(), r.Size())
}

// fit clamps an origin so the box stays inside bounds where possible,
// pinning to the top-left edge when it cannot fit.
func fit(bounds geometry.Rect, p geometry.Point, s geometry.Size) geometry.Point {
	return geometry.Point{
		X: geometry.Clamp(p.X, bounds.X, math.Max(bounds.Right()-s.Width, bounds.X)),
		Y: geometry.Clamp(p.Y, bounds.Y, math.Max(bounds.Bottom()-s.Height, bounds.Y)),
	}
}
