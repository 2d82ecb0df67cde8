// Package ratelimit implements a moving-window request limiter shared by
// every call site that holds the same instance.
package ratelimit

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Limit describes a request ceiling of Requests per Window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Parse reads a limit in the upstream "N/unit" or "N/Munit" notation,
// e.g. "5/second", "1000/hour", "1/3seconds".
func Parse(s string) (Limit, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "/", 2)
	if len(parts) != 2 {
		return Limit{}, eris.Errorf("ratelimit: malformed limit %q", s)
	}

	n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || n <= 0 {
		return Limit{}, eris.Errorf("ratelimit: malformed request count in %q", s)
	}

	spec := strings.TrimSpace(strings.ToLower(parts[1]))
	mult := 1
	i := 0
	for i < len(spec) && spec[i] >= '0' && spec[i] <= '9' {
		i++
	}
	if i > 0 {
		mult, err = strconv.Atoi(spec[:i])
		if err != nil || mult <= 0 {
			return Limit{}, eris.Errorf("ratelimit: malformed window multiple in %q", s)
		}
	}

	var unit time.Duration
	switch strings.TrimSuffix(spec[i:], "s") {
	case "second":
		unit = time.Second
	case "minute":
		unit = time.Minute
	case "hour":
		unit = time.Hour
	case "day":
		unit = 24 * time.Hour
	default:
		return Limit{}, eris.Errorf("ratelimit: unknown window unit in %q", s)
	}

	return Limit{Requests: n, Window: time.Duration(mult) * unit}, nil
}

// Window is a moving-window rate limiter. The check-and-hit operation is
// atomic: two near-simultaneous callers cannot both pass under the limit.
type Window struct {
	mu    sync.Mutex
	limit Limit
	key   string
	hits  []time.Time // timestamps inside the current window, oldest first

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWindow creates a moving-window limiter for the given limit, keyed by
// a scope string used only for logging.
func NewWindow(key string, limit Limit) *Window {
	return &Window{
		limit: limit,
		key:   key,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// New parses the limit notation and creates a Window.
func New(key, limit string) (*Window, error) {
	l, err := Parse(limit)
	if err != nil {
		return nil, err
	}
	return NewWindow(key, l), nil
}

// Key returns the limiter scope string.
func (w *Window) Key() string { return w.key }

// Wait blocks until a request may proceed and records it in the window.
// When the window is full it sleeps exactly until the oldest recorded
// request leaves the window, then records the hit. Returns an error only
// when ctx is cancelled during the wait.
func (w *Window) Wait(ctx context.Context) error {
	for {
		w.mu.Lock()
		now := w.now()
		w.evict(now)

		if len(w.hits) < w.limit.Requests {
			w.hits = append(w.hits, now)
			w.mu.Unlock()
			return nil
		}

		// Wait until the oldest hit exits the window, then re-check.
		wait := w.hits[0].Add(w.limit.Window).Sub(now)
		w.mu.Unlock()

		if wait < 0 {
			wait = 0
		}
		zap.L().Info("rate limit reached, waiting",
			zap.String("key", w.key),
			zap.Duration("wait", wait),
		)
		if err := w.sleep(ctx, wait); err != nil {
			return eris.Wrapf(err, "ratelimit: wait for %s", w.key)
		}
	}
}

// Reserve reports, without recording a hit, how long a caller arriving now
// would have to wait.
func (w *Window) Reserve() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.evict(now)
	if len(w.hits) < w.limit.Requests {
		return 0
	}
	wait := w.hits[0].Add(w.limit.Window).Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait
}

// evict drops timestamps that have left the window. Caller holds mu.
func (w *Window) evict(now time.Time) {
	cutoff := now.Add(-w.limit.Window)
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.hits = append(w.hits[:0], w.hits[i:]...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
