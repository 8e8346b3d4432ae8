// Package retry re-attempts history store operations that fail on transient
// database conditions. Probe steps and HTTP requests are never retried.
package retry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/loykin/pushprobe/internal/common"
)

// Config controls the backoff applied to a store operation.
type Config struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// RetryableErrors are lower-case substrings of errors worth another attempt.
	RetryableErrors []string
}

// DefaultRetryConfig covers sqlite lock contention and dropped postgres
// connections.
func DefaultRetryConfig() *Config {
	return &Config{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		RetryableErrors: []string{
			"connection refused",
			"connection reset",
			"timeout",
			"temporary failure",
			"deadlock",
			"database is locked",
			"database table is locked",
			"connection lost",
			"broken pipe",
			"bad connection",
		},
	}
}

// IsRetryable reports whether err matches one of the configured substrings.
// Context errors never are.
func (rc *Config) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range rc.RetryableErrors {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// delay returns the wait before the attempt following attempt n (zero based).
func (rc *Config) delay(n int) time.Duration {
	if n <= 0 {
		return rc.InitialDelay
	}
	d := time.Duration(float64(rc.InitialDelay) * math.Pow(rc.BackoffFactor, float64(n-1)))
	if d > rc.MaxDelay {
		d = rc.MaxDelay
	}
	return d
}

// WithRetry runs op until it succeeds, fails with a non-retryable error, the
// attempts are used up, or ctx is done.
func WithRetry(ctx context.Context, cfg *Config, op func() error) error {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	log := common.GetLogger().WithComponent("store-retry")

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := op()
		if err == nil {
			if attempt > 0 {
				log.Info("history write succeeded after retry", "attempt", attempt+1)
			}
			return nil
		}
		lastErr = err
		if attempt == cfg.MaxRetries {
			break
		}
		if !cfg.IsRetryable(err) {
			log.Debug("history write failed, not retryable", "error", err, "attempt", attempt+1)
			return err
		}

		wait := cfg.delay(attempt)
		log.Warn("history write failed, retrying",
			"error", err,
			"attempt", attempt+1,
			"max_attempts", cfg.MaxRetries+1,
			"retry_delay", wait)

		select {
		case <-ctx.Done():
			return fmt.Errorf("cancelled during retry: %w", ctx.Err())
		case <-time.After(wait):
		}
	}

	log.Error("history write failed after all attempts", "error", lastErr, "attempts", cfg.MaxRetries+1)
	return fmt.Errorf("failed after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}

// WithRetryQuery retries a query until rows are returned.
func WithRetryQuery(ctx context.Context, cfg *Config, query func() (*sql.Rows, error)) (*sql.Rows, error) {
	var rows *sql.Rows
	err := WithRetry(ctx, cfg, func() error {
		var err error
		rows, err = query()
		return err
	})
	return rows, err
}

// WithRetryExec retries a statement.
func WithRetryExec(ctx context.Context, cfg *Config, exec func() (sql.Result, error)) (sql.Result, error) {
	var res sql.Result
	err := WithRetry(ctx, cfg, func() error {
		var err error
		res, err = exec()
		return err
	})
	return res, err
}
