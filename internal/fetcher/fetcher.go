// Package fetcher implements the rate-limited, retrying HTTP transport all
// upstream API clients share. One Client instance owns one connection pool
// and one moving-window rate limiter; every call site holding the same
// instance is throttled cooperatively.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/temporal-communities/geolit/internal/ratelimit"
	"github.com/temporal-communities/geolit/internal/resilience"
)

const defaultUserAgent = "geolit (https://github.com/temporal-communities/geolit)"

// Response is a successfully fetched HTTP response body.
type Response struct {
	Body       []byte
	StatusCode int
}

// Client issues GET requests throttled by a shared moving window and
// retried on transient failures. Ordinary network and HTTP failures are
// returned as errors, never panics; callers treat them as "no data".
type Client struct {
	http      *http.Client
	window    *ratelimit.Window
	retry     resilience.RetryConfig
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithTimeout overrides the per-request timeout (default 10s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client. Used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetryConfig overrides the retry budgets.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// New creates a Client throttled to the given limit ("5/second",
// "1000/hour"). The caller owns the Client and must Close it to release
// pooled connections.
func New(limit string, opts ...Option) (*Client, error) {
	window, err := ratelimit.New("global", limit)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	c := &Client{
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
		window:    window,
		retry:     resilience.DefaultRetryConfig(),
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch GETs the URL. It waits on the shared rate-limit window before
// every attempt, retries transient failures (connection and read errors,
// HTTP 500/502/503/504) within the configured budgets, and returns the
// body of the first successful response. Client-error statuses are not
// retried and surface immediately.
func (c *Client) Fetch(ctx context.Context, url string) (*Response, error) {
	cfg := c.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("fetcher", "fetch")
	}

	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Response, error) {
		return c.fetchOnce(ctx, url)
	})
	if err != nil {
		zap.L().Warn("fetch failed",
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, eris.Wrapf(err, "fetcher: fetch %s", url)
	}

	zap.L().Debug("fetched",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
	)
	return resp, nil
}

func (c *Client) fetchOnce(ctx context.Context, url string) (*Response, error) {
	if err := c.window.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resilience.NewTransientError(
			eris.Errorf("http %d from %s", resp.StatusCode, url), resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, eris.Errorf("http %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "read body"), 0)
	}

	return &Response{Body: body, StatusCode: resp.StatusCode}, nil
}

// Window exposes the shared limiter, letting several API clients be
// throttled by one window when they share a Client.
func (c *Client) Window() *ratelimit.Window {
	return c.window
}

// Close releases the pooled connections. Safe to call more than once.
func (c *Client) Close() {
	if t, ok := c.http.Transport.(*http.Transport); ok && t != nil {
		t.CloseIdleConnections()
	}
}
