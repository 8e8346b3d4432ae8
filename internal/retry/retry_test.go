package retry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(retries int) *Config {
	return &Config{
		MaxRetries:      retries,
		InitialDelay:    time.Millisecond,
		MaxDelay:        10 * time.Millisecond,
		BackoffFactor:   2.0,
		RetryableErrors: []string{"database is locked", "connection refused"},
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, 5*time.Second, cfg.MaxDelay)
	assert.Contains(t, cfg.RetryableErrors, "database is locked")
}

func TestIsRetryable(t *testing.T) {
	cfg := DefaultRetryConfig()
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("SQLITE_BUSY: database is locked (5)"), true},
		{errors.New("dial tcp 127.0.0.1:5432: connect: Connection refused"), true},
		{fmt.Errorf("insert run: %w", errors.New("driver: bad connection")), true},
		{errors.New("UNIQUE constraint failed"), false},
		{context.Canceled, false},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, cfg.IsRetryable(c.err), "%v", c.err)
	}
}

func TestDelayBackoff(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, 100*time.Millisecond, cfg.delay(-1))
	assert.Equal(t, 100*time.Millisecond, cfg.delay(0))
	assert.Equal(t, 100*time.Millisecond, cfg.delay(1))
	assert.Equal(t, 200*time.Millisecond, cfg.delay(2))
	assert.Equal(t, 800*time.Millisecond, cfg.delay(4))
	assert.Equal(t, 5*time.Second, cfg.delay(10))
}

func TestWithRetry_FirstAttempt(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastConfig(2), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_RecoversFromLock(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastConfig(2), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	boom := errors.New("syntax error near SELECT")
	err := WithRetry(context.Background(), fastConfig(3), func() error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_Exhausted(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastConfig(2), func() error {
		calls++
		return errors.New("database is locked")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestWithRetry_ContextCancelledDuringWait(t *testing.T) {
	cfg := fastConfig(5)
	cfg.InitialDelay = time.Second
	cfg.MaxDelay = time.Second
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, cfg, func() error {
		calls++
		cancel()
		return errors.New("connection refused")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_NilConfigUsesDefault(t *testing.T) {
	require.NoError(t, WithRetry(context.Background(), nil, func() error { return nil }))
}

type fakeResult struct{ n int64 }

func (r fakeResult) LastInsertId() (int64, error) { return r.n, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.n, nil }

func TestWithRetryExec(t *testing.T) {
	calls := 0
	res, err := WithRetryExec(context.Background(), fastConfig(2), func() (sql.Result, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("database is locked")
		}
		return fakeResult{n: 7}, nil
	})
	require.NoError(t, err)
	n, _ := res.RowsAffected()
	assert.Equal(t, int64(7), n)
	assert.Equal(t, 2, calls)
}

func TestWithRetryQuery_Error(t *testing.T) {
	rows, err := WithRetryQuery(context.Background(), fastConfig(0), func() (*sql.Rows, error) {
		return nil, errors.New("no such table: probe_runs")
	})
	require.Error(t, err)
	assert.Nil(t, rows)
}
