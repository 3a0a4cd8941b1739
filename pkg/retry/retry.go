package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/psantana5/sitesync/pkg/models"
)

// Config holds retry configuration
type Config struct {
	MaxRetries     int           // Maximum number of retry attempts, 0 runs fn once
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration
	Multiplier     float64       // Backoff multiplier (exponential)
}

// DefaultConfig returns sensible defaults for retries
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
	}
}

// WithRetries returns the default backoff with the given attempt budget
func WithRetries(n int) Config {
	cfg := DefaultConfig()
	if n < 0 {
		n = 0
	}
	cfg.MaxRetries = n
	return cfg
}

// Do executes fn with exponential backoff. Only errors classified as
// retryable are repeated; anything else is returned immediately.
func Do(ctx context.Context, config Config, fn func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		// Bail out before issuing another request
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err // 4xx, validation, not found
		}
		lastErr = err

		// No sleep after the final attempt
		if attempt == config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(backoff):
		}

		// Grow the wait, capped at MaxBackoff
		backoff = time.Duration(float64(backoff) * config.Multiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	if config.MaxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", config.MaxRetries, lastErr)
}

// IsRetryable reports whether err is a network failure, a 5xx or a 429
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return models.IsRetryable(err)
}
