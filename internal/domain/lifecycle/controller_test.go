package lifecycle_test

import (
	"errors"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saintjustus/windowshell/internal/dom"
	"github.com/saintjustus/windowshell/internal/domain/lifecycle"
	"github.com/saintjustus/windowshell/internal/domain/placement"
	"github.com/saintjustus/windowshell/internal/domain/scene"
	"github.com/saintjustus/windowshell/internal/domain/window"
	"github.com/saintjustus/windowshell/internal/infrastructure/monitoring"
	"github.com/saintjustus/windowshell/internal/infrastructure/scheduler"
	"github.com/saintjustus/windowshell/internal/shared/geometry"
	"github.com/saintjustus/windowshell/internal/shared/types"
	"github.com/saintjustus/windowshell/internal/testutil"
)

type harness struct {
	doc     *dom.Document
	sched   *scheduler.Manual
	factory *window.Factory
	scenes  *scene.Registry
	place   *placement.Engine
	focus   *lifecycle.Focus
	metrics *monitoring.Metrics
}

func newHarness(t *testing.T, layout geometry.Layout) *harness {
	t.Helper()
	doc, err := dom.ParseString(`<html><body><div data-window-layer="art"></div><div data-window-layer="work"></div></body></html>`)
	require.NoError(t, err)
	doc.SetLayout(layout)
	sched := scheduler.NewManual()
	metrics := monitoring.NewMetrics(nil)
	return &harness{
		doc:     doc,
		sched:   sched,
		factory: window.NewFactory(doc, sched, window.NewZOrder(10), window.DefaultOptions()),
		scenes:  scene.NewRegistry(),
		place:   placement.New(placement.DefaultOptions(), metrics, nil),
		focus:   lifecycle.NewFocus(),
		metrics: metrics,
	}
}

func desktop() geometry.Layout {
	return geometry.Layout{ViewportWidth: 1280, ViewportHeight: 800, FooterHeight: 72}
}

func (h *harness) controller(t *testing.T, layer string, opts lifecycle.Options) *lifecycle.Controller {
	t.Helper()
	if opts.Window == (window.Options{}) {
		opts.Window = window.DefaultOptions()
	}
	c := lifecycle.New(layer, lifecycle.Deps{
		Doc:       h.doc,
		Scenes:    h.scenes,
		Placement: h.place,
		Focus:     h.focus,
		Metrics:   h.metrics,
	}, opts)
	t.Cleanup(c.Teardown)
	return c
}

// register installs a scene whose every instance is m
func (h *harness) register(t *testing.T, sceneID string, m scene.Mounter) {
	t.Helper()
	require.NoError(t, h.scenes.Register(sceneID, func() scene.Mounter { return m }))
}

func (h *harness) add(t *testing.T, c *lifecycle.Controller, cfg types.WindowConfig, at geometry.Point) *window.Window {
	t.Helper()
	w := h.factory.Build(cfg, at)
	require.NoError(t, c.Add(w))
	return w
}

func sceneWindow(id, sceneID string) types.WindowConfig {
	return types.WindowConfig{ID: id, Title: id, SceneID: sceneID}
}

func embedWindow(id string) types.WindowConfig {
	return types.WindowConfig{ID: id, Title: id, EmbedURL: "https://player.example.com/embed/" + id}
}

func snapshot(t *testing.T, c *lifecycle.Controller, id string) lifecycle.WindowStatus {
	t.Helper()
	st, ok := c.Snapshot(id)
	require.True(t, ok, "window %s", id)
	return st
}

func bodyActive(h *harness) bool {
	var on bool
	h.doc.Run(func() {
		on = dom.HasClass(dom.Find(h.doc.Root(), "body"), lifecycle.ClassBodyActive)
	})
	return on
}

func TestOpenMountsAndResizes(t *testing.T) {
	h := newHarness(t, desktop())
	s := &testutil.Instant{}
	h.register(t, "pulse", s)
	c := h.controller(t, "art", lifecycle.Options{})
	h.add(t, c, sceneWindow("a", "pulse"), geometry.Point{X: 100, Y: 100})

	require.NoError(t, c.Open("a"))
	c.Wait()

	st := snapshot(t, c, "a")
	assert.Equal(t, lifecycle.StateActive, st.State)
	assert.True(t, st.Mounted)
	assert.Empty(t, st.Error)
	assert.Equal(t, int32(1), s.Mounts.Load())
	assert.Equal(t, int32(1), s.Resizes.Load(), "resize follows a successful mount")
	assert.Equal(t, "a", c.Active())
	assert.True(t, bodyActive(h))

	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.Mounts.WithLabelValues("scene", "ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.ActiveWindows))
}

func TestOpenAnotherClosesPrevious(t *testing.T) {
	h := newHarness(t, desktop())
	sa, sb := &testutil.Instant{}, &testutil.Instant{}
	h.register(t, "a", sa)
	h.register(t, "b", sb)
	c := h.controller(t, "art", lifecycle.Options{})
	h.add(t, c, sceneWindow("one", "a"), geometry.Point{X: 40, Y: 40})
	h.add(t, c, sceneWindow("two", "b"), geometry.Point{X: 400, Y: 40})

	require.NoError(t, c.Open("one"))
	c.Wait()
	require.NoError(t, c.Open("two"))
	c.Wait()

	one := snapshot(t, c, "one")
	two := snapshot(t, c, "two")
	assert.Equal(t, lifecycle.StateInactive, one.State)
	assert.False(t, one.Mounted)
	assert.Equal(t, int32(1), sa.Unmounts.Load())
	assert.True(t, two.Active)
	assert.True(t, two.Mounted)
	assert.Equal(t, "two", c.Active())
	assert.Greater(t, two.Z, one.Z)
}

func TestOpenTwiceIsIdempotent(t *testing.T) {
	h := newHarness(t, desktop())
	s := &testutil.Instant{}
	h.register(t, "pulse", s)
	c := h.controller(t, "art", lifecycle.Options{})
	h.add(t, c, sceneWindow("a", "pulse"), geometry.Point{X: 100, Y: 100})

	require.NoError(t, c.Open("a"))
	c.Wait()
	require.NoError(t, c.Open("a"))
	c.Wait()

	assert.Equal(t, int32(1), s.Mounts.Load())
	assert.True(t, snapshot(t, c, "a").Mounted)
}

func TestCloseDuringActivatingDiscardsMount(t *testing.T) {
	h := newHarness(t, desktop())
	g := testutil.NewGateScene()
	h.register(t, "slow", g)
	c := h.controller(t, "art", lifecycle.Options{})
	h.add(t, c, sceneWindow("a", "slow"), geometry.Point{X: 100, Y: 100})

	require.NoError(t, c.Open("a"))
	<-g.Started()
	assert.Equal(t, lifecycle.StateActivating, snapshot(t, c, "a").State)

	require.NoError(t, c.Close("a"))
	st := snapshot(t, c, "a")
	assert.Equal(t, lifecycle.StateInactive, st.State)
	assert.False(t, st.Mounted, "close returns with the window unmounted")
	assert.Equal(t, int32(1), g.Unmounts.Load())

	g.Release()
	c.Wait()

	st = snapshot(t, c, "a")
	assert.Equal(t, lifecycle.StateInactive, st.State)
	assert.False(t, st.Mounted)
	assert.Equal(t, int32(0), g.Resizes.Load())
	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.StaleMounts))

	require.NoError(t, c.Open("a"))
	c.Wait()
	assert.True(t, snapshot(t, c, "a").Mounted)
	assert.Equal(t, int32(2), g.Mounts.Load(), "the scene instance is reused")
}

func TestCloseInactiveIsNoop(t *testing.T) {
	h := newHarness(t, desktop())
	s := &testutil.Instant{}
	h.register(t, "pulse", s)
	c := h.controller(t, "art", lifecycle.Options{})
	h.add(t, c, sceneWindow("a", "pulse"), geometry.Point{X: 100, Y: 100})

	require.NoError(t, c.Close("a"))
	assert.Equal(t, lifecycle.StateIdle, snapshot(t, c, "a").State)

	require.NoError(t, c.Open("a"))
	c.Wait()
	require.NoError(t, c.Close("a"))
	require.NoError(t, c.Close("a"))
	assert.Equal(t, int32(1), s.Unmounts.Load())

	assert.ErrorIs(t, c.Close("missing"), lifecycle.ErrUnknownWindow)
	assert.ErrorIs(t, c.Open("missing"), lifecycle.ErrUnknownWindow)
}

func TestMountOnlySceneClosesWithoutUnmount(t *testing.T) {
	h := newHarness(t, desktop())
	s := &testutil.MountOnly{}
	h.register(t, "plain", s)
	c := h.controller(t, "art", lifecycle.Options{})
	h.add(t, c, sceneWindow("a", "plain"), geometry.Point{X: 100, Y: 100})

	require.NoError(t, c.Open("a"))
	c.Wait()
	require.NoError(t, c.Close("a"))
	assert.Equal(t, int32(1), s.Mounts.Load())
	assert.False(t, snapshot(t, c, "a").Mounted)
}

func TestMountFailureShowsInlineError(t *testing.T) {
	h := newHarness(t, desktop())
	s := &testutil.Instant{Err: errors.New("webgl unavailable")}
	h.register(t, "broken", s)
	c := h.controller(t, "art", lifecycle.Options{})
	h.add(t, c, sceneWindow("a", "broken"), geometry.Point{X: 100, Y: 100})

	require.NoError(t, c.Open("a"))
	c.Wait()

	st := snapshot(t, c, "a")
	assert.Equal(t, lifecycle.StateActive, st.State)
	assert.False(t, st.Mounted)
	assert.Equal(t, lifecycle.MountErrorText, st.Error)
	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.Mounts.WithLabelValues("scene", "error")))

	require.NoError(t, c.Close("a"))
	assert.Empty(t, snapshot(t, c, "a").Error)
}

func TestMockSceneHooks(t *testing.T) {
	h := newHarness(t, desktop())
	m := new(testutil.MockScene)
	m.On("Mount", mock.Anything, mock.MatchedBy(func(mc scene.MountContext) bool {
		return mc.Canvas != nil && mc.Config.ID == "a"
	})).Return(nil).Once()
	m.On("Resize", mock.Anything, mock.Anything).Return().Once()
	m.On("Unmount").Return(errors.New("gl context lost")).Once()
	h.register(t, "mocked", m)
	c := h.controller(t, "art", lifecycle.Options{})
	h.add(t, c, sceneWindow("a", "mocked"), geometry.Point{X: 100, Y: 100})

	require.NoError(t, c.Open("a"))
	c.Wait()
	require.NoError(t, c.Close("a"), "unmount errors are logged, not returned")

	m.AssertExpectations(t)
	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.Unmounts.WithLabelValues("error")))
	assert.Equal(t, lifecycle.StateInactive, snapshot(t, c, "a").State)
}

func TestAddRejectsUnknownScene(t *testing.T) {
	h := newHarness(t, desktop())
	c := h.controller(t, "art", lifecycle.Options{})

	err := c.Add(h.factory.Build(sceneWindow("a", "nope"), geometry.Point{}))
	assert.ErrorIs(t, err, scene.ErrUnknownScene)

	err = c.Add(h.factory.Build(types.WindowConfig{ID: "b", Type: types.ContentEmbed}, geometry.Point{}))
	assert.Error(t, err, "embed windows need a url")

	h.register(t, "pulse", &testutil.Instant{})
	h.add(t, c, sceneWindow("a", "pulse"), geometry.Point{})
	assert.Error(t, c.Add(h.factory.Build(sceneWindow("a", "pulse"), geometry.Point{})), "duplicate id")
}

func TestEmbedLoads(t *testing.T) {
	h := newHarness(t, desktop())
	c := h.controller(t, "music", lifecycle.Options{EmbedTimeout: 5 * time.Second})
	w := h.add(t, c, embedWindow("clip"), geometry.Point{X: 100, Y: 100})

	require.NoError(t, c.Open("clip"))
	require.Eventually(t, func() bool {
		c.EmbedLoaded("clip")
		st, _ := c.Snapshot("clip")
		return st.Mounted
	}, time.Second, 5*time.Millisecond)

	var src string
	h.doc.Run(func() {
		frame := dom.Find(w.Viewport(), "iframe")
		src, _ = dom.Attr(frame, "src")
	})
	assert.Equal(t, "https://player.example.com/embed/clip", src)

	require.NoError(t, c.Close("clip"))
	h.doc.Run(func() {
		src, _ = dom.Attr(dom.Find(w.Viewport(), "iframe"), "src")
	})
	assert.Equal(t, "about:blank", src, "closing stops playback")
}

func TestEmbedTimeoutShowsFallback(t *testing.T) {
	h := newHarness(t, desktop())
	c := h.controller(t, "music", lifecycle.Options{EmbedTimeout: 20 * time.Millisecond})
	h.add(t, c, embedWindow("clip"), geometry.Point{X: 100, Y: 100})
	custom := embedWindow("other")
	custom.EmbedErrorMessage = "open on the label site"
	h.add(t, c, custom, geometry.Point{X: 500, Y: 100})

	require.NoError(t, c.Open("clip"))
	c.Wait()

	st := snapshot(t, c, "clip")
	assert.Equal(t, lifecycle.StateActive, st.State)
	assert.False(t, st.Mounted)
	assert.Equal(t, lifecycle.EmbedFallbackText, st.Error)
	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.EmbedTimeouts))

	require.NoError(t, c.Close("clip"))
	assert.Equal(t, lifecycle.StateInactive, snapshot(t, c, "clip").State)
	assert.Empty(t, snapshot(t, c, "clip").Error)

	require.NoError(t, c.Open("other"))
	c.Wait()
	assert.Equal(t, "open on the label site", snapshot(t, c, "other").Error)
}

func TestEscapeClosesActive(t *testing.T) {
	h := newHarness(t, desktop())
	h.register(t, "pulse", &testutil.Instant{})
	c := h.controller(t, "art", lifecycle.Options{})
	h.add(t, c, sceneWindow("a", "pulse"), geometry.Point{X: 100, Y: 100})

	assert.False(t, c.HandleKey(lifecycle.KeyEscape), "nothing to close")
	require.NoError(t, c.Open("a"))
	c.Wait()

	assert.False(t, c.HandleKey("Enter"))
	assert.True(t, c.HandleKey(lifecycle.KeyEscape))
	assert.Empty(t, c.Active())
	assert.False(t, bodyActive(h))
	assert.Equal(t, 0.0, promtest.ToFloat64(h.metrics.ActiveWindows))
}

func TestClickRoutesThroughController(t *testing.T) {
	h := newHarness(t, desktop())
	h.register(t, "pulse", &testutil.Instant{})
	c := h.controller(t, "art", lifecycle.Options{})
	w := h.add(t, c, sceneWindow("a", "pulse"), geometry.Point{X: 100, Y: 100})

	w.Click()
	c.Wait()
	assert.Equal(t, "a", c.Active())
	assert.True(t, w.IsActive())

	w.CloseClick()
	assert.Empty(t, c.Active())
	assert.False(t, w.IsActive())
}

func TestCloseRestoresOrigin(t *testing.T) {
	h := newHarness(t, desktop())
	h.register(t, "pulse", &testutil.Instant{})
	c := h.controller(t, "art", lifecycle.Options{})
	w := h.add(t, c, sceneWindow("a", "pulse"), geometry.Point{X: 100, Y: 120})
	origin := w.Rect()

	require.NoError(t, c.Open("a"))
	c.Wait()
	assert.NotEqual(t, origin, w.Rect())
	assert.Equal(t, origin, snapshot(t, c, "a").Origin)

	require.NoError(t, c.Close("a"))
	assert.Equal(t, origin, w.Rect())
}

func TestCenteredExpansionAndMemory(t *testing.T) {
	h := newHarness(t, desktop())
	h.register(t, "pulse", &testutil.Instant{})
	c := h.controller(t, "art", lifecycle.Options{})
	w := h.add(t, c, sceneWindow("a", "pulse"), geometry.Point{X: 100, Y: 120})

	require.NoError(t, c.Open("a"))
	c.Wait()

	// 800 tall viewport minus a 72px footer plus gutter leaves 696
	r := w.Rect()
	assert.Equal(t, geometry.Size{Width: 480, Height: 340}, r.Size())
	assert.Equal(t, geometry.Point{X: 400, Y: 178}, r.Origin())
	require.NotNil(t, snapshot(t, c, "a").Expanded)

	c.ResizeCommitted("a", geometry.Size{Width: 640, Height: 420})
	require.NoError(t, c.Close("a"))
	require.NoError(t, c.Open("a"))
	c.Wait()

	assert.Equal(t, geometry.Size{Width: 640, Height: 420}, w.Rect().Size())
	assert.Equal(t, &geometry.Size{Width: 640, Height: 420}, snapshot(t, c, "a").Expanded)
}

func TestExpandedSizeIsClampedToViewport(t *testing.T) {
	h := newHarness(t, desktop())
	h.register(t, "pulse", &testutil.Instant{})
	c := h.controller(t, "art", lifecycle.Options{})
	cfg := sceneWindow("a", "pulse")
	cfg.InitialSize = &geometry.Size{Width: 4000, Height: 4000}
	w := h.add(t, c, cfg, geometry.Point{X: 100, Y: 120})

	require.NoError(t, c.Open("a"))
	c.Wait()

	r := w.Rect()
	assert.Equal(t, geometry.Size{Width: 1216, Height: 696}, r.Size())
	assert.GreaterOrEqual(t, r.X, 32.0)
	assert.LessOrEqual(t, r.Bottom(), 800.0-72)
}

func TestFullBleedExpansion(t *testing.T) {
	h := newHarness(t, desktop())
	h.register(t, "pulse", &testutil.Instant{})
	c := h.controller(t, "art", lifecycle.Options{Layout: lifecycle.LayoutFullBleed})
	w := h.add(t, c, sceneWindow("a", "pulse"), geometry.Point{X: 100, Y: 120})

	require.NoError(t, c.Open("a"))
	c.Wait()
	assert.Equal(t, geometry.Rect{X: 32, Y: 32, Width: 1216, Height: 664}, w.Rect())
}

func TestFocusSpansControllers(t *testing.T) {
	h := newHarness(t, desktop())
	sa, sb := &testutil.Instant{}, &testutil.Instant{}
	h.register(t, "a", sa)
	h.register(t, "b", sb)
	art := h.controller(t, "art", lifecycle.Options{})
	work := h.controller(t, "work", lifecycle.Options{})
	h.add(t, art, sceneWindow("one", "a"), geometry.Point{X: 40, Y: 40})
	h.add(t, work, sceneWindow("two", "b"), geometry.Point{X: 40, Y: 40})

	require.NoError(t, art.Open("one"))
	art.Wait()
	require.NoError(t, work.Open("two"))
	work.Wait()

	assert.Empty(t, art.Active())
	assert.Equal(t, "two", work.Active())
	assert.Equal(t, int32(1), sa.Unmounts.Load())
}

func TestTeardownCancelsInflightMount(t *testing.T) {
	h := newHarness(t, desktop())
	g := testutil.NewGateScene()
	h.register(t, "slow", g)
	c := h.controller(t, "art", lifecycle.Options{})
	w := h.add(t, c, sceneWindow("a", "slow"), geometry.Point{X: 100, Y: 100})

	require.NoError(t, c.Open("a"))
	<-g.Started()

	c.Teardown()
	assert.Empty(t, c.Active())
	assert.Equal(t, int32(1), g.Unmounts.Load())
	assert.ErrorIs(t, c.Open("a"), lifecycle.ErrTornDown)
	assert.ErrorIs(t, c.Add(h.factory.Build(sceneWindow("b", "slow"), geometry.Point{})), lifecycle.ErrTornDown)

	w.Click()
	assert.False(t, w.IsActive(), "disposed windows no longer reach the controller")
}

func TestTeardownDoesNotWaitForHungMount(t *testing.T) {
	h := newHarness(t, desktop())
	hung := testutil.NewHung()
	h.register(t, "stuck", hung)
	c := h.controller(t, "art", lifecycle.Options{})
	h.add(t, c, sceneWindow("a", "stuck"), geometry.Point{X: 100, Y: 100})
	t.Cleanup(hung.Release)

	require.NoError(t, c.Open("a"))
	<-hung.Started()

	done := make(chan struct{})
	go func() {
		c.Teardown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Teardown blocked on a mount that ignores its context")
	}
	assert.Empty(t, c.Active())
	assert.Equal(t, int32(1), hung.Unmounts.Load())

	hung.Release()
	c.Wait()
	st := snapshot(t, c, "a")
	assert.Equal(t, lifecycle.StateInactive, st.State)
	assert.False(t, st.Mounted)
	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.StaleMounts))
}

// Three windows are packed without overlap; opening the second and then the
// first leaves only the first active and the second's scene unmounted.
func TestThreeWindowSession(t *testing.T) {
	h := newHarness(t, geometry.Layout{ViewportWidth: 1280, ViewportHeight: 800})
	scenes := map[string]*testutil.Instant{}
	var items []placement.Item
	for _, id := range []string{"w1", "w2", "w3"} {
		scenes[id] = &testutil.Instant{}
		h.register(t, "scene-"+id, scenes[id])
		items = append(items, placement.Item{ID: id, Size: h.factory.InitialSize(sceneWindow(id, "scene-"+id))})
	}
	res := h.place.Layer("art", h.doc.Layout(), items)
	require.Zero(t, res.Fallbacks)

	c := h.controller(t, "art", lifecycle.Options{})
	wins := map[string]*window.Window{}
	for _, it := range items {
		wins[it.ID] = h.add(t, c, sceneWindow(it.ID, "scene-"+it.ID), res.Positions[it.ID])
	}
	for i, a := range items {
		for _, b := range items[i+1:] {
			assert.False(t, placement.Collides(wins[a.ID].Rect(), wins[b.ID].Rect(), 0), "%s overlaps %s", a.ID, b.ID)
		}
	}

	wins["w2"].Click()
	c.Wait()
	wins["w1"].Click()
	c.Wait()

	assert.Equal(t, "w1", c.Active())
	assert.Equal(t, int32(1), scenes["w2"].Unmounts.Load())
	assert.False(t, snapshot(t, c, "w2").Mounted)
	assert.True(t, snapshot(t, c, "w1").Mounted)
	assert.Equal(t, lifecycle.StateIdle, snapshot(t, c, "w3").State)
}

// Shrinking the viewport and adding a footer pulls resting windows back
// inside the viewport and clear of the footer.
func TestViewportResizeReclampsResting(t *testing.T) {
	h := newHarness(t, geometry.Layout{ViewportWidth: 1280, ViewportHeight: 800})
	h.register(t, "pulse", &testutil.Instant{})
	c := h.controller(t, "art", lifecycle.Options{})
	h.add(t, c, sceneWindow("left", "pulse"), geometry.Point{X: 40, Y: 560})
	h.add(t, c, sceneWindow("right", "pulse"), geometry.Point{X: 1000, Y: 600})
	h.add(t, c, sceneWindow("open", "pulse"), geometry.Point{X: 500, Y: 300})
	require.NoError(t, c.Open("open"))
	c.Wait()

	shrunk := geometry.Layout{ViewportWidth: 900, ViewportHeight: 600, FooterHeight: 72}
	h.doc.SetLayout(shrunk)
	c.HandleViewportResize()

	footer := shrunk.FooterRegion()
	for _, w := range c.Windows() {
		r := w.Rect()
		assert.False(t, r.Intersects(footer), "%s overlaps the footer", w.ID())
		assert.GreaterOrEqual(t, r.X, 0.0, w.ID())
		assert.LessOrEqual(t, r.Right(), shrunk.ViewportWidth, w.ID())
	}
	assert.True(t, snapshot(t, c, "open").Active)

	require.NoError(t, c.Close("open"))
	r := snapshot(t, c, "open").Rect
	assert.False(t, r.Intersects(footer), "restored origin is re-clamped")
}
