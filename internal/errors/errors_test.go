package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, Kind("")},
		{"structured", New(KindParse, "bad html"), KindParse},
		{"wrapped structured", fmt.Errorf("outer: %w", New(KindTimeout, "slow")), KindTimeout},
		{"context canceled", context.Canceled, KindCancelled},
		{"context deadline", context.DeadlineExceeded, KindTimeout},
		{"plain error", stderrors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorIs(t *testing.T) {
	err := Wrap(KindNetwork, "connect refused", stderrors.New("dial tcp"))
	assert.True(t, stderrors.Is(err, New(KindNetwork, "")))
	assert.False(t, stderrors.Is(err, New(KindTimeout, "")))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(KindIO, "write", nil))
}

func TestWithDetail(t *testing.T) {
	err := New(KindHTTPStatus, "bad status").WithDetail("status", "503")
	assert.Equal(t, "503", err.Details["status"])
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(KindNetwork, "")))
	assert.True(t, Retryable(New(KindTimeout, "")))
	assert.True(t, Retryable(New(KindRateLimited, "")))
	assert.False(t, Retryable(New(KindInvalidInput, "")))
	assert.False(t, Retryable(New(KindHTTPStatus, "404")))
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return New(KindNetwork, "transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return New(KindHTTPStatus, "404").WithDetail("status", "404")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, KindHTTPStatus, KindOf(err))
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 10, InitialDelay: 50 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, cfg, func() error {
		return New(KindNetwork, "transient")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryHonorsRetryAfterHint(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	start := time.Now()
	attempts := 0
	_ = Retry(context.Background(), cfg, func() error {
		attempts++
		return New(KindRateLimited, "429").WithRetryAfter(30 * time.Millisecond)
	})

	assert.Equal(t, 2, attempts)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
