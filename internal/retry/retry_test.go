package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"YieldFlow/internal/errs"
)

func fastConfig() Config {
	return Config{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, attempts)
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestDo_ExhaustsAllAttempts(t *testing.T) {
	t.Parallel()
	attempts := 0
	cause := &StatusError{Code: http.StatusServiceUnavailable}
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return cause
	})
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "failed after 3 attempts")
	require.Equal(t, 3, attempts)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return errs.ErrInvalidInput.New("bad owner")
	})
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	require.Equal(t, 1, attempts)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 5, BaseBackoff: time.Hour, MaxBackoff: time.Hour}

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		cancel()
		return errors.New("timeout")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, attempts)
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"429", &StatusError{Code: http.StatusTooManyRequests}, true},
		{"502", &StatusError{Code: http.StatusBadGateway}, true},
		{"404", &StatusError{Code: http.StatusNotFound}, false},
		{"gating", errs.ErrRateNotIncreased.New("flat"), false},
		{"eof", errors.New("unexpected EOF"), true},
		{"plain", errors.New("invalid account data"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestCalculateBackoffIsCapped(t *testing.T) {
	t.Parallel()
	for attempt := 1; attempt < 70; attempt++ {
		d := calculateBackoff(100*time.Millisecond, time.Second, attempt)
		require.LessOrEqual(t, d, time.Second)
		require.Positive(t, d)
	}
}
