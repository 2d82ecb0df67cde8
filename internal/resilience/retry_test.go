package resilience

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastConfig keeps test sleeps negligible.
func fastConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	return cfg
}

func TestDoValSucceedsFirstTry(t *testing.T) {
	calls := 0
	got, err := DoVal(context.Background(), fastConfig(), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
}

func TestDoValRetriesTransientStatusesThenSucceeds(t *testing.T) {
	statuses := []int{503, 503, 502, 200}
	calls := 0
	got, err := DoVal(context.Background(), fastConfig(), func(context.Context) (int, error) {
		status := statuses[calls]
		calls++
		if status != 200 {
			return 0, NewTransientError(fmt.Errorf("http %d", status), status)
		}
		return status, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 200, got)
	assert.Equal(t, 4, calls)
}

func TestDoValExhaustsTotalBudget(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastConfig(), func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("http 503"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 5, calls)
}

func TestDoValConnectBudgetStopsEarly(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastConfig(), func(context.Context) (int, error) {
		calls++
		return 0, syscall.ECONNREFUSED
	})
	require.Error(t, err)
	// 1 initial try + 2 connect retries.
	assert.Equal(t, 3, calls)
}

func TestDoValDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastConfig(), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("http 404")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoValStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := DoVal(ctx, fastConfig(), func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("http 500"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoValOnRetryCallback(t *testing.T) {
	cfg := fastConfig()
	var attempts []int
	cfg.OnRetry = func(attempt int, _ error) {
		attempts = append(attempts, attempt)
	}
	_, _ = DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		return 0, NewTransientError(errors.New("http 500"), 500)
	})
	assert.Equal(t, []int{1, 2, 3, 4}, attempts)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureClass
	}{
		{name: "nil", err: nil, want: FailurePermanent},
		{name: "status", err: NewTransientError(errors.New("http 503"), 503), want: FailureStatus},
		{name: "conn refused", err: syscall.ECONNREFUSED, want: FailureConnect},
		{name: "conn reset", err: syscall.ECONNRESET, want: FailureConnect},
		{name: "dns", err: errors.New("dial tcp: lookup x: no such host"), want: FailureConnect},
		{name: "io timeout", err: errors.New("read tcp: i/o timeout"), want: FailureRead},
		{name: "plain", err: errors.New("boom"), want: FailurePermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 301, 400, 403, 404, 429, 501} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}
