// Package retryx wraps a single logical outbound call with bounded
// exponential-backoff retries. Client errors (4xx except 429) are permanent
// and rethrown after one attempt; 429, 5xx, timeouts, and network failures
// are retried until the attempt budget runs out.
package retryx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// Config controls retry behavior for one logical call.
type Config struct {
	// MaxAttempts is the total number of invocations, first try included.
	MaxAttempts int
	// BaseDelay is the wait before the first retry; each subsequent wait is
	// multiplied by Multiplier.
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// Jitter randomizes each wait by up to ±50%. Off by default so retry
	// timing stays deterministic.
	Jitter bool
}

// Default returns the retry configuration used when none is supplied.
func Default() Config {
	return Config{MaxAttempts: 3, BaseDelay: 1 * time.Second, MaxDelay: 30 * time.Second, Multiplier: 2.0}
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 1 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 1 {
		c.Multiplier = 2.0
	}
	return c
}

// StatusError carries the HTTP status of a failed upstream call so the retry
// loop can distinguish permanent client errors from transient ones.
type StatusError struct {
	Status int
	Msg    string
}

func (e *StatusError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("upstream status %d", e.Status)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Msg)
}

// Retryable reports whether the status is worth another attempt: 429 and 5xx
// are, remaining 4xx are not.
func (e *StatusError) Retryable() bool {
	if e.Status == 429 {
		return true
	}
	return e.Status < 400 || e.Status >= 500
}

func classify(err error) error {
	var se *StatusError
	if errors.As(err, &se) && !se.Retryable() {
		return backoff.Permanent(err)
	}
	// Timeouts and network errors are transient. Everything unknown defaults
	// to retryable; wasting one retry is cheaper than failing a recoverable
	// request.
	var ne net.Error
	if errors.As(err, &ne) {
		return err
	}
	return err
}

// Do runs op with retries per cfg. The name labels log lines so concurrent
// callers can be told apart. Each attempt is logged with its number, elapsed
// time, and outcome.
func Do[T any](ctx context.Context, cfg Config, name string, op func(context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = cfg.BaseDelay
	expo.MaxInterval = cfg.MaxDelay
	expo.Multiplier = cfg.Multiplier
	expo.RandomizationFactor = 0
	if cfg.Jitter {
		expo.RandomizationFactor = 0.5
	}
	// Attempts bound the loop, not wall time.
	expo.MaxElapsedTime = 0
	expo.Reset()

	var result T
	attempt := 0
	inner := func() error {
		attempt++
		start := time.Now()
		v, err := op(ctx)
		elapsed := time.Since(start)
		if err != nil {
			slog.Warn("retryx attempt failed",
				slog.String("op", name),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", cfg.MaxAttempts),
				slog.Duration("elapsed", elapsed),
				slog.Any("error", err))
			return classify(err)
		}
		slog.Debug("retryx attempt succeeded",
			slog.String("op", name),
			slog.Int("attempt", attempt),
			slog.Duration("elapsed", elapsed))
		result = v
		return nil
	}
	notify := func(err error, wait time.Duration) {
		slog.Info("retryx waiting before retry",
			slog.String("op", name),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("error", err))
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(cfg.MaxAttempts-1)), ctx)
	if err := backoff.RetryNotify(inner, bo, notify); err != nil {
		var zero T
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		return zero, err
	}
	return result, nil
}
