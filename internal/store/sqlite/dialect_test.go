package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialect_StorageRoundTrip(t *testing.T) {
	d := NewDialect()
	assert.Equal(t, "?", d.Placeholder(3))
	assert.Equal(t, 1, d.BoolToStorage(true))
	assert.Equal(t, 0, d.BoolToStorage(false))
	assert.True(t, d.BoolFromStorage(int64(1)))
	assert.False(t, d.BoolFromStorage(int64(0)))
	assert.False(t, d.BoolFromStorage("yes"))

	now := time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.FixedZone("KST", 9*3600))
	stored := d.TimeToStorage(now)
	got, err := d.TimeFromStorage(stored)
	require.NoError(t, err)
	assert.True(t, now.Equal(got))

	_, err = d.TimeFromStorage(3.14)
	assert.Error(t, err)
}

func TestDialect_EnsureStatementsUseTableNames(t *testing.T) {
	stmts := NewDialect().EnsureStatements("runs_x", "outcomes_x")
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS runs_x")
	assert.Contains(t, stmts[1], "REFERENCES runs_x(id)")
}

func TestConfig_ConnString(t *testing.T) {
	assert.Equal(t, ":memory:", Config{}.ConnString())
	assert.Equal(t, "file:x.db?mode=ro", Config{DSN: " file:x.db?mode=ro ", Path: "ignored.db"}.ConnString())
	assert.Equal(t, "file:history.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", Config{Path: "history.db"}.ConnString())
}

func TestDialect_Connect(t *testing.T) {
	db, err := NewDialect().Connect(":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	var one int
	require.NoError(t, db.QueryRow("SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
}
