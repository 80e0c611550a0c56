package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"time"

	"github.com/sashabaranov/go-openai"
)

// RetryableError is implemented by errors that know whether a retry is
// worthwhile.
type RetryableError interface {
	error
	ShouldRetry() bool
}

type retryableErr struct {
	err       error
	retryable bool
}

func (e *retryableErr) Error() string     { return e.err.Error() }
func (e *retryableErr) Unwrap() error     { return e.err }
func (e *retryableErr) ShouldRetry() bool { return e.retryable }

// NewRetryableError wraps err marking it as retryable.
func NewRetryableError(err error) error {
	return &retryableErr{err: err, retryable: true}
}

// NewNonRetryableError wraps err marking it as non-retryable.
func NewNonRetryableError(err error) error {
	return &retryableErr{err: err, retryable: false}
}

// IsRetryable classifies an error. Timeouts, network failures, 5xx, 408 and
// 429 are transient; other client-side errors are not.
func IsRetryable(err error) bool {
	var re RetryableError
	if errors.As(err, &re) {
		return re.ShouldRetry()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	// Unknown errors are treated as transient: most are network hiccups.
	return true
}

func retryableStatus(status int) bool {
	return status >= 500 || status == 429 || status == 408
}

// RetryConfig holds parameters for RetryWithBackoff.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int
	// InitialDelay is the base delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the backoff.
	MaxDelay time.Duration
	// Multiplier controls exponential growth.
	Multiplier float64
	// Jitter is the maximum random delay added on top of the backoff.
	Jitter time.Duration
	// OperationName is used in log messages.
	OperationName string
}

func (c *RetryConfig) setDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = 500 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	if c.Jitter == 0 {
		c.Jitter = 250 * time.Millisecond
	}
	if c.OperationName == "" {
		c.OperationName = "operation"
	}
}

// RetryWithBackoff executes fn up to MaxAttempts times with exponential
// backoff plus additive jitter. It respects context cancellation and stops
// immediately on non-retryable errors.
func RetryWithBackoff(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg.setDefaults()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context cancelled after %d attempts: %w",
				cfg.OperationName, attempt-1, err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 1 {
				slog.Info("Retry succeeded", "operation", cfg.OperationName, "attempt", attempt)
			}
			return nil
		}

		if !IsRetryable(lastErr) {
			slog.Warn("Non-retryable error, aborting",
				"operation", cfg.OperationName, "attempt", attempt, "error", lastErr)
			return lastErr
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := computeDelay(attempt, cfg)
		slog.Warn("Retrying after error",
			"operation", cfg.OperationName,
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"next_delay", delay,
			"error", lastErr)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: context cancelled during backoff: %w",
				cfg.OperationName, ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%s: all %d attempts failed: %w",
		cfg.OperationName, cfg.MaxAttempts, lastErr)
}

func computeDelay(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter > 0 {
		delay += float64(rand.Int63n(int64(cfg.Jitter)))
	}
	return time.Duration(delay)
}
