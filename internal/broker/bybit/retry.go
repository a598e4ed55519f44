package bybit

import (
	"context"
	"math"
	"time"

	tradeerrors "github.com/quantrade/trading-core/internal/errors"
)

// RetryConfig controls backoff for venue API calls
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns the default backoff configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
	}
}

// withRetry executes fn with exponential backoff. Only errors categorized as
// retryable are attempted again; validation and credential failures abort
// immediately.
func withRetry(ctx context.Context, cfg RetryConfig, component, operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == cfg.MaxRetries {
			break
		}
		if !tradeerrors.Categorize(err, component, operation).IsRetryable() {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffDelay(attempt, cfg)):
		}
	}

	return tradeerrors.Categorize(lastErr, component, operation)
}

// backoffDelay computes the capped exponential delay for an attempt
func backoffDelay(attempt int, cfg RetryConfig) time.Duration {
	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt)))
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}
