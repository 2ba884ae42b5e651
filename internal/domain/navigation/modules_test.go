package navigation_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saintjustus/windowshell/internal/dom"
	"github.com/saintjustus/windowshell/internal/domain/navigation"
	"github.com/saintjustus/windowshell/internal/domain/scene"
	"github.com/saintjustus/windowshell/internal/infrastructure/httpclient"
	"github.com/saintjustus/windowshell/internal/shared/types"
)

type moduleEnv struct {
	base   *url.URL
	hits   map[string]*atomic.Int32
	scenes *scene.Registry
	loader *navigation.ModuleLoader
}

func newModuleEnv(t *testing.T, timeout time.Duration, files map[string]string) *moduleEnv {
	t.Helper()
	hits := map[string]*atomic.Int32{}
	for p := range files {
		hits[p] = &atomic.Int32{}
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		hits[r.URL.Path].Add(1)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	base, err := url.Parse(srv.URL + "/art")
	require.NoError(t, err)
	opts := httpclient.DefaultOptions()
	opts.RetryCount = 0
	scenes := scene.NewRegistry()
	runtime, err := navigation.NewRuntime(timeout, scenes, nil)
	require.NoError(t, err)
	return &moduleEnv{
		base:   base,
		hits:   hits,
		scenes: scenes,
		loader: navigation.NewModuleLoader(httpclient.New(opts), runtime, nil, nil),
	}
}

func TestModuleEvaluatedOnce(t *testing.T) {
	m := newModuleEnv(t, 0, map[string]string{
		"/js/counter.js": `var loads = (typeof loads === "number" ? loads : 0) + 1;
shell.registerScene("counter" + loads, { mount: function () {} });`,
	})
	ctx := context.Background()

	require.NoError(t, m.loader.Load(ctx, m.base, []string{"/js/counter.js", "/js/counter.js"}))
	require.NoError(t, m.loader.Load(ctx, m.base, []string{"/js/counter.js"}))

	assert.Equal(t, int32(1), m.hits["/js/counter.js"].Load())
	assert.Equal(t, []string{"counter1"}, m.scenes.IDs())
	assert.True(t, m.loader.Loaded(m.base.ResolveReference(&url.URL{Path: "/js/counter.js"}).String()))
}

func TestModuleRejectsHTML(t *testing.T) {
	m := newModuleEnv(t, 0, map[string]string{
		"/js/missing.js": "<!DOCTYPE html><html><head><title>404</title></head><body>not found</body></html>",
	})

	err := m.loader.Load(context.Background(), m.base, []string{"/js/missing.js"})
	assert.ErrorIs(t, err, navigation.ErrModuleNotScript)

	err = m.loader.Load(context.Background(), m.base, []string{"/js/absent.js"})
	assert.ErrorIs(t, err, navigation.ErrModuleStatus)
}

func TestFailedModuleIsRetried(t *testing.T) {
	m := newModuleEnv(t, 0, map[string]string{"/js/bad.js": "this is not javascript ("})

	require.Error(t, m.loader.Load(context.Background(), m.base, []string{"/js/bad.js"}))
	require.Error(t, m.loader.Load(context.Background(), m.base, []string{"/js/bad.js"}))
	assert.Equal(t, int32(2), m.hits["/js/bad.js"].Load())
}

func TestModuleEvaluationTimesOut(t *testing.T) {
	m := newModuleEnv(t, 50*time.Millisecond, map[string]string{"/js/spin.js": "for (;;) {}"})

	err := m.loader.Load(context.Background(), m.base, []string{"/js/spin.js"})
	assert.ErrorIs(t, err, navigation.ErrEvalTimeout)
}

func TestNativeModule(t *testing.T) {
	m := newModuleEnv(t, 0, nil)
	var calls atomic.Int32
	m.loader.Register("/js/art-windows.js", func(context.Context) error {
		calls.Add(1)
		return nil
	})

	ctx := context.Background()
	require.NoError(t, m.loader.Load(ctx, m.base, []string{"/js/art-windows.js"}))
	require.NoError(t, m.loader.Load(ctx, nil, []string{"/js/art-windows.js"}))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRelativeModuleNeedsBase(t *testing.T) {
	m := newModuleEnv(t, 0, nil)
	assert.Error(t, m.loader.Load(context.Background(), nil, []string{"/js/art.js"}))
}

func TestScriptSceneHooks(t *testing.T) {
	m := newModuleEnv(t, 0, map[string]string{
		"/js/scene.js": `var sizes = [];
shell.registerScene("pulseField", {
	mount: function (host) {
		host.setCanvasAttr("data-scene", host.sceneId + ":" + host.windowId);
	},
	resize: function (w, h) { sizes.push(w + "x" + h); },
	unmount: function () { throw new Error("gl context lost"); }
});
shell.registerScene("broken", { mount: function () { throw new Error("no webgl"); } });`,
	})
	require.NoError(t, m.loader.Load(context.Background(), m.base, []string{"/js/scene.js"}))

	capability, err := m.scenes.Create("pulseField")
	require.NoError(t, err)
	assert.True(t, capability.CanResize())
	assert.True(t, capability.CanUnmount())

	canvas := dom.NewElement("canvas")
	mc := scene.MountContext{Canvas: canvas, Container: dom.NewElement("div"), Config: types.WindowConfig{ID: "planetary"}}
	require.NoError(t, capability.Mount(context.Background(), mc))
	v, _ := dom.Attr(canvas, "data-scene")
	assert.Equal(t, "pulseField:planetary", v)

	capability.Resize(640, 400)
	assert.ErrorIs(t, capability.Unmount(), navigation.ErrScriptScene)

	broken, err := m.scenes.Create("broken")
	require.NoError(t, err)
	err = broken.Mount(context.Background(), mc)
	assert.ErrorIs(t, err, navigation.ErrScriptScene)
	assert.True(t, strings.Contains(err.Error(), "no webgl"))
}

func TestRegisterSceneValidation(t *testing.T) {
	m := newModuleEnv(t, 0, map[string]string{
		"/js/nomount.js": `shell.registerScene("x", {});`,
		"/js/dupe.js":    `shell.registerScene("y", { mount: function () {} }); shell.registerScene("y", { mount: function () {} });`,
	})
	assert.Error(t, m.loader.Load(context.Background(), m.base, []string{"/js/nomount.js"}))
	err := m.loader.Load(context.Background(), m.base, []string{"/js/dupe.js"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), scene.ErrDuplicateScene.Error())
	assert.False(t, m.scenes.Has("x"))
	assert.True(t, m.scenes.Has("y"))
}

func TestDecodeSource(t *testing.T) {
	latin1 := []byte{'v', 'a', 'r', ' ', 's', '=', '"', 'c', 'a', 'f', 0xe9, '"', ';'}
	out, err := navigation.DecodeSource(latin1, "text/javascript; charset=iso-8859-1")
	require.NoError(t, err)
	assert.Equal(t, `var s="café";`, out)

	for _, src := range []string{
		`var s="café";`,
		`const k = "ünïcode ✓";`,
		`console.log("日本");`,
	} {
		out, err = navigation.DecodeSource([]byte(src), "")
		require.NoError(t, err)
		assert.Equal(t, src, out)

		out, err = navigation.DecodeSource([]byte(src), "text/javascript")
		require.NoError(t, err)
		assert.Equal(t, src, out, "no charset parameter")
	}
}
