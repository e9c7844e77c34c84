package resilience

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream down")

func testBreaker(threshold uint32) *CircuitBreaker {
	cfg := DefaultCircuitBreakerConfig("wms-backend-test")
	cfg.FailureThreshold = threshold
	cfg.Timeout = time.Hour
	return NewCircuitBreaker(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cb := testBreaker(2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(ctx, func() (interface{}, error) { return nil, errUpstream })
		assert.ErrorIs(t, err, errUpstream)
	}

	assert.True(t, cb.IsOpen())
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	called := false
	_, err := cb.Execute(ctx, func() (interface{}, error) {
		called = true
		return nil, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, "open", cb.Status().State)
}

func TestCircuitBreaker_IgnoredErrorsDoNotTrip(t *testing.T) {
	errClient := errors.New("404")
	cfg := DefaultCircuitBreakerConfig("ignore")
	cfg.FailureThreshold = 1
	cfg.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, errClient) }
	cb := NewCircuitBreaker(cfg, nil)

	_, err := cb.Execute(context.Background(), func() (interface{}, error) { return nil, errClient })
	assert.ErrorIs(t, err, errClient)
	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_CancelledContext(t *testing.T) {
	cb := testBreaker(5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cb.Execute(ctx, func() (interface{}, error) { return "x", nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithResult(t *testing.T) {
	cfg := &RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        time.Millisecond,
		BackoffFactor:   2,
		RetryableErrors: func(err error) bool { return errors.Is(err, errUpstream) },
	}

	attempts := 0
	got, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errUpstream
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, attempts)

	attempts = 0
	_, err = RetryWithResult(context.Background(), cfg, func() (int, error) {
		attempts++
		return 0, errors.New("permanent")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}
