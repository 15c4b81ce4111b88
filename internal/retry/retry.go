// Package retry implements a small bounded-attempt retry helper used by
// the download engine's per-chunk worker loop.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Operation is a unit of work that may be retried.
type Operation func(ctx context.Context) error

// Config controls retry behavior.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	OnRetry      func(attempt int, err error, nextDelay time.Duration)
	RetryIf      func(err error) bool
}

type Option func(*Config)

func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:  3,
		InitialDelay: 0,
		MaxDelay:     0,
		Multiplier:   1.0,
	}
}

func WithMaxAttempts(n int) Option { return func(c *Config) { c.MaxAttempts = n } }

func WithInitialDelay(d time.Duration) Option { return func(c *Config) { c.InitialDelay = d } }

func WithMaxDelay(d time.Duration) Option { return func(c *Config) { c.MaxDelay = d } }

func WithMultiplier(m float64) Option { return func(c *Config) { c.Multiplier = m } }

func WithOnRetry(fn func(attempt int, err error, nextDelay time.Duration)) Option {
	return func(c *Config) { c.OnRetry = fn }
}

func WithRetryIf(pred func(err error) bool) Option {
	return func(c *Config) { c.RetryIf = pred }
}

// WithLinearBackoff returns options for a flat attempt cap with a fixed
// delay between attempts — the policy the download engine's chunk
// retries use: rotate peers, don't escalate the wait.
func WithLinearBackoff(maxAttempts int, delay time.Duration) []Option {
	return []Option{
		WithMaxAttempts(maxAttempts),
		WithInitialDelay(delay),
		WithMaxDelay(delay),
		WithMultiplier(1.0),
	}
}

// WithExponentialBackoff returns options for exponential backoff between
// attempts.
func WithExponentialBackoff(maxAttempts int, initialDelay, maxDelay time.Duration) []Option {
	return []Option{
		WithMaxAttempts(maxAttempts),
		WithInitialDelay(initialDelay),
		WithMaxDelay(maxDelay),
		WithMultiplier(2.0),
	}
}

// Do runs op, retrying according to opts until it succeeds, the attempt
// cap is reached, RetryIf rejects the error, or ctx is canceled.
func Do(ctx context.Context, op Operation, opts ...Option) error {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled before attempt %d: %w", attempt, err)
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if cfg.RetryIf != nil && !cfg.RetryIf(lastErr) {
			return fmt.Errorf("unretryable error: %w", lastErr)
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := calculateDelay(attempt, cfg)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr, delay)
		}
		if delay <= 0 {
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("context canceled during retry wait (attempt %d): %w (last error: %v)",
				attempt, ctx.Err(), lastErr)
		case <-timer.C:
		}
	}

	return lastErr
}

func calculateDelay(attempt int, cfg *Config) time.Duration {
	if cfg.InitialDelay == 0 {
		return 0
	}

	delay := min(
		float64(cfg.MaxDelay),
		float64(cfg.InitialDelay)*math.Pow(cfg.Multiplier, float64(attempt-1)),
	)
	return time.Duration(delay)
}
