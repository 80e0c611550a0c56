package llm

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quickRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:   attempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		Multiplier:    2.0,
		Jitter:        time.Millisecond,
		OperationName: "test",
	}
}

func TestRetryWithBackoff_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), quickRetryConfig(3), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), quickRetryConfig(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return NewRetryableError(errors.New("transient"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	sentinel := errors.New("bad request")
	err := RetryWithBackoff(context.Background(), quickRetryConfig(3), func(ctx context.Context) error {
		calls++
		return NewNonRetryableError(sentinel)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), quickRetryConfig(3), func(ctx context.Context) error {
		calls++
		return NewRetryableError(errors.New("still down"))
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
}

func TestRetryWithBackoff_RespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, quickRetryConfig(3), func(ctx context.Context) error {
		t.Fatal("fn must not run with a cancelled context")
		return nil
	})

	assert.Error(t, err)
}

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "dial tcp: i/o timeout" }
func (fakeNetError) Timeout() bool   { return true }
func (fakeNetError) Temporary() bool { return true }

func TestIsRetryable_Classification(t *testing.T) {
	var netErr net.Error = fakeNetError{}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"wrapped retryable", NewRetryableError(errors.New("x")), true},
		{"wrapped non-retryable", NewNonRetryableError(errors.New("x")), false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"net error", netErr, true},
		{"openai 500", &openai.APIError{HTTPStatusCode: 500}, true},
		{"openai 429", &openai.APIError{HTTPStatusCode: 429}, true},
		{"openai 408", &openai.APIError{HTTPStatusCode: 408}, true},
		{"openai 401", &openai.APIError{HTTPStatusCode: 401}, false},
		{"openai 400", &openai.APIError{HTTPStatusCode: 400}, false},
		{"unknown error", errors.New("who knows"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestComputeDelay_Grows(t *testing.T) {
	cfg := RetryConfig{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}

	d1 := computeDelay(1, cfg)
	d2 := computeDelay(2, cfg)
	d3 := computeDelay(3, cfg)

	assert.Equal(t, 500*time.Millisecond, d1)
	assert.Equal(t, time.Second, d2)
	assert.Equal(t, 2*time.Second, d3)
}

func TestComputeDelay_JitterBounded(t *testing.T) {
	cfg := RetryConfig{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       250 * time.Millisecond,
	}

	for i := 0; i < 50; i++ {
		d := computeDelay(1, cfg)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.Less(t, d, 750*time.Millisecond)
	}
}
