package utils

import (
	"context"
	"time"
)

// RetryConfig shapes WithRetry. Delay doubles after each failed attempt.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryConfig matches the store write policy: three attempts with
// exponential backoff starting at one second.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Second}
}

// WithRetry runs fn up to cfg.MaxAttempts times, sleeping cfg.BaseDelay * 2^n
// between attempts. The last error is returned if every attempt fails; a
// cancelled context aborts the wait immediately.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	var lastErr error
	delay := cfg.BaseDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if err := SleepContext(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}
	return lastErr
}
