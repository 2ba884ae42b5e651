// Package httpclient is the shared HTTP stack for fragment requests: resty on
// top of a retrying transport, guarded by a circuit breaker and a rate limiter.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/saintjustus/windowshell/internal/infrastructure/config"
	"github.com/saintjustus/windowshell/internal/infrastructure/logging"
	"github.com/saintjustus/windowshell/internal/infrastructure/resilience"
)

// Options configure a Client.
type Options struct {
	BaseURL      string
	UserAgent    string
	Timeout      time.Duration
	RetryCount   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RateLimit in requests per second, <= 0 means unlimited
	RateLimit float64

	BreakerName     string
	BreakerFailures uint32
	BreakerCooldown time.Duration

	Logger *logging.Logger
}

// DefaultOptions mirror the shell's stock fetch configuration.
func DefaultOptions() Options {
	return Options{
		UserAgent:       "windowshell/1.0",
		Timeout:         10 * time.Second,
		RetryCount:      1,
		RetryWaitMin:    100 * time.Millisecond,
		RetryWaitMax:    time.Second,
		BreakerName:     "fragments",
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

// OptionsFromConfig builds options from the fetch configuration
func OptionsFromConfig(c config.FetchConfig, log *logging.Logger) Options {
	opts := DefaultOptions()
	opts.Timeout = c.Timeout
	opts.RetryCount = c.RetryCount
	opts.RateLimit = c.RequestsPerSec
	opts.BreakerFailures = c.BreakerFailures
	opts.BreakerCooldown = c.BreakerTimeout
	opts.Logger = log
	return opts
}

// Client wraps resty with rate limiting and a circuit breaker.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	mu      sync.RWMutex
}

var errServerStatus = errors.New("server status")

// New builds a client. Transient transport failures and 5xx responses are
// retried by the underlying transport, the final response is always handed
// back so callers can inspect the status.
func New(opts Options) *Client {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = def.RetryWaitMin
	}
	if opts.RetryWaitMax < opts.RetryWaitMin {
		opts.RetryWaitMax = opts.RetryWaitMin
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.BreakerName == "" {
		opts.BreakerName = def.BreakerName
	}

	retry := retryablehttp.NewClient()
	retry.RetryMax = max(opts.RetryCount, 0)
	retry.RetryWaitMin = opts.RetryWaitMin
	retry.RetryWaitMax = opts.RetryWaitMax
	retry.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retry.Logger = nil
	if opts.Logger != nil {
		retry.Logger = leveled{opts.Logger.Named("http").Sugar()}
	}

	rc := resty.NewWithClient(retry.StandardClient()).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent)
	if opts.BaseURL != "" {
		rc.SetBaseURL(opts.BaseURL)
	}

	c := &Client{
		resty: rc,
		breaker: resilience.New(opts.BreakerName, resilience.Settings{
			Failures: opts.BreakerFailures,
			Cooldown: opts.BreakerCooldown,
		}),
	}
	c.SetRateLimit(opts.RateLimit)
	return c
}

// SetRateLimit configures requests per second, <= 0 disables limiting
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
}

// SetHeader adds a default header
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resty.SetHeader(key, value)
}

// Request creates a request bound to ctx after waiting on the limiter.
// It fails fast while the breaker is open.
func (c *Client) Request(ctx context.Context) (*resty.Request, error) {
	if c.breaker.State() == resilience.StateOpen {
		return nil, resilience.ErrCircuitOpen
	}

	c.mu.RLock()
	limiter := c.limiter
	c.mu.RUnlock()
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resty.R().SetContext(ctx), nil
}

// Execute runs fn through the breaker. 5xx responses count as failures but
// are still returned without an error.
func (c *Client) Execute(fn func() (*resty.Response, error)) (*resty.Response, error) {
	resp, err := resilience.Do(c.breaker, func() (*resty.Response, error) {
		resp, err := fn()
		if err == nil && resp != nil && resp.StatusCode() >= http.StatusInternalServerError {
			return resp, errServerStatus
		}
		return resp, err
	})
	if errors.Is(err, errServerStatus) {
		return resp, nil
	}
	return resp, err
}

// Get issues a GET with extra headers through the limiter and breaker.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*resty.Response, error) {
	req, err := c.Request(ctx)
	if err != nil {
		return nil, err
	}
	req.SetHeaders(headers)
	return c.Execute(func() (*resty.Response, error) {
		return req.Get(url)
	})
}

func (c *Client) BreakerState() resilience.State { return c.breaker.State() }

func (c *Client) BreakerCounts() resilience.Counts { return c.breaker.Counts() }

// leveled adapts zap to retryablehttp.LeveledLogger
type leveled struct {
	s interface {
		Errorw(string, ...interface{})
		Infow(string, ...interface{})
		Debugw(string, ...interface{})
		Warnw(string, ...interface{})
	}
}

func (l leveled) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveled) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l leveled) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveled) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
