package navigation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/saintjustus/windowshell/internal/infrastructure/httpclient"
	"github.com/saintjustus/windowshell/internal/infrastructure/logging"
	"github.com/saintjustus/windowshell/internal/infrastructure/monitoring"
)

var (
	ErrModuleStatus    = errors.New("module request failed")
	ErrModuleNotScript = errors.New("module is not a script")
)

// ModuleRunner loads the script modules a page depends on
type ModuleRunner interface {
	Load(ctx context.Context, base *url.URL, srcs []string) error
}

// NativeModule is a module implemented in Go and resolved without a request
type NativeModule func(ctx context.Context) error

// ModuleLoader fetches and evaluates each module at most once. Concurrent
// loads of the same module share one request; failed loads are retried on
// the next navigation.
type ModuleLoader struct {
	client  *httpclient.Client
	runtime *Runtime
	metrics *monitoring.Metrics
	log     *logging.Logger

	group singleflight.Group

	mu      sync.Mutex
	natives map[string]NativeModule
	loaded  map[string]bool
}

func NewModuleLoader(client *httpclient.Client, runtime *Runtime, metrics *monitoring.Metrics, log *logging.Logger) *ModuleLoader {
	return &ModuleLoader{
		client:  client,
		runtime: runtime,
		metrics: metrics,
		log:     log.Named("modules"),
		natives: make(map[string]NativeModule),
		loaded:  make(map[string]bool),
	}
}

// Register installs a native module under the src pages reference it by
func (l *ModuleLoader) Register(src string, fn NativeModule) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.natives[src] = fn
}

// Loaded reports whether src has been evaluated
func (l *ModuleLoader) Loaded(src string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded[src]
}

// Load evaluates every module in srcs, resolving relative sources against
// base. Modules load concurrently; the first failure cancels the rest.
func (l *ModuleLoader) Load(ctx context.Context, base *url.URL, srcs []string) error {
	if len(srcs) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range srcs {
		g.Go(func() error { return l.load(gctx, base, src) })
	}
	return g.Wait()
}

func (l *ModuleLoader) load(ctx context.Context, base *url.URL, src string) error {
	key := src
	l.mu.Lock()
	native, isNative := l.natives[src]
	l.mu.Unlock()
	if !isNative {
		abs, err := resolveModule(base, src)
		if err != nil {
			return err
		}
		key = abs
	}

	if l.Loaded(key) {
		return nil
	}

	_, err, _ := l.group.Do(key, func() (interface{}, error) {
		if l.Loaded(key) {
			return nil, nil
		}
		var err error
		if isNative {
			err = native(ctx)
		} else {
			err = l.fetchAndRun(ctx, key)
		}
		l.metrics.ObserveModule(err)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.loaded[key] = true
		l.mu.Unlock()
		l.log.Debug("module loaded", zap.String("src", key), zap.Bool("native", isNative))
		return nil, nil
	})
	return err
}

func resolveModule(base *url.URL, src string) (string, error) {
	u, err := url.Parse(src)
	if err != nil {
		return "", fmt.Errorf("module %q: %w", src, err)
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("module %q: cannot resolve without a base url", src)
	}
	return u.String(), nil
}

func (l *ModuleLoader) fetchAndRun(ctx context.Context, src string) error {
	resp, err := l.client.Get(ctx, src, map[string]string{
		"Accept": "text/javascript, application/javascript, */*;q=0.1",
	})
	if err != nil {
		return fmt.Errorf("fetch module %s: %w", src, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: %s returned %d", ErrModuleStatus, src, resp.StatusCode())
	}

	body := resp.Body()
	if mt := mimetype.Detect(body); mt.Is("text/html") {
		return fmt.Errorf("%w: %s is %s", ErrModuleNotScript, src, mt.String())
	}

	code, err := DecodeSource(body, resp.Header().Get("Content-Type"))
	if err != nil {
		return fmt.Errorf("decode module %s: %w", src, err)
	}
	return l.runtime.Run(ctx, src, code)
}

// DecodeSource converts a script body to UTF-8, trusting the declared
// charset. Undeclared bodies that are valid UTF-8 are taken as is; only
// the rest are sniffed.
func DecodeSource(body []byte, contentType string) (string, error) {
	declared := false
	if _, params, err := mime.ParseMediaType(contentType); err == nil && params["charset"] != "" {
		declared = true
	}
	if !declared && utf8.Valid(body) {
		return string(body), nil
	}
	if !declared {
		name := "utf-8"
		if res, err := chardet.NewTextDetector().DetectBest(body); err == nil && res != nil && res.Confidence >= 50 {
			name = strings.ToLower(res.Charset)
		}
		contentType = "text/javascript; charset=" + name
	}

	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
