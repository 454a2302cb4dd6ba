// Package retry provides bounded retry with exponential backoff for outbound
// calls. Only transient failures are retried; client errors (4xx) and
// validation failures are always permanent.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/Zutavern/apo-sub001/pkg/apperrors"
)

// Config defines retry behavior with exponential backoff.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0-1.0, +/- jitter to prevent thundering herd
}

// DefaultConfig returns the policy used for provider calls: one retry with
// 250ms initial delay, capped at 2s, with 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:   1,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// applyJitter adds random jitter to a delay.
func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// IsRetryable determines whether an error is transient and worth retrying.
// Transport failures, timeouts, and upstream 5xx responses are transient;
// anything carrying a 4xx status is permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pe *apperrors.ProviderError
	if errors.As(err, &pe) {
		if pe.StatusCode == 0 {
			return true // transport failure
		}
		return pe.StatusCode >= 500
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}

	return errors.Is(err, context.DeadlineExceeded)
}

// Do executes fn, retrying transient failures with exponential backoff.
// Permanent errors return immediately. Respects context cancellation during
// wait periods.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}

		if attempt < cfg.MaxRetries {
			select {
			case <-time.After(applyJitter(delay, cfg.JitterFactor)):
				delay = time.Duration(float64(delay) * cfg.Multiplier)
				if delay > cfg.MaxDelay {
					delay = cfg.MaxDelay
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return lastErr
}

// DoWithResult executes fn and returns both result and error, retrying
// transient failures only.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		r, err := fn()
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}
