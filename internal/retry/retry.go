// Package retry runs operations with exponential backoff.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/castlemilk/pfinance/analytics/internal/analytics"
)

// Config configures retry behavior with exponential backoff.
type Config struct {
	MaxRetries     int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	BackoffFactor  float64
	JitterFraction float64 // 0.0 to 1.0, fraction of delay to randomize
}

// DefaultStartupConfig is tuned for backing services that are still booting.
var DefaultStartupConfig = Config{
	MaxRetries:     4,
	InitialDelay:   500 * time.Millisecond,
	MaxDelay:       8 * time.Second,
	BackoffFactor:  2.0,
	JitterFraction: 0.2,
}

// Do executes fn with exponential backoff + jitter.
// It stops retrying if the error is a non-retryable *analytics.Error,
// the context is cancelled, or max retries are exhausted.
func Do[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var lastErr error
	var zero T

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if code := analytics.CodeOf(err); code != "" && !analytics.IsRetryable(err) {
			return zero, err
		}
		if attempt >= cfg.MaxRetries {
			break
		}

		delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt))
		if delay > float64(cfg.MaxDelay) {
			delay = float64(cfg.MaxDelay)
		}
		if cfg.JitterFraction > 0 {
			jitter := delay * cfg.JitterFraction * (rand.Float64()*2 - 1)
			delay += jitter
			if delay < 0 {
				delay = float64(cfg.InitialDelay)
			}
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(time.Duration(delay)):
		}
	}

	return zero, lastErr
}
