package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/loykin/pushprobe/internal/store/postgresql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres runs a throwaway postgres container, skipping the test when
// Docker is unavailable.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := tc.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "probe",
			"POSTGRES_PASSWORD": "probe",
			"POSTGRES_DB":       "pushprobe_test",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(90 * time.Second),
	}
	pg, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("skipping Postgres container test: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://probe:probe@%s:%s/pushprobe_test?sslmode=disable", host, port.Port())
}

func TestPostgres_SaveListPrune(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	s, err := Open(ctx, Config{Driver: "postgres", Postgres: postgresql.Config{DSN: dsn}})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	assert.Equal(t, "postgresql", s.Driver())

	// second ensure is a no-op
	require.NoError(t, s.EnsureSchema(ctx))

	for _, tbl := range []string{"probe_runs", "probe_outcomes"} {
		var one int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM information_schema.tables WHERE table_name = $1`, tbl).Scan(&one)
		require.NoError(t, err, "table %s", tbl)
	}

	rs := sampleRun(t)
	first, err := s.SaveRun(ctx, "final", rs)
	require.NoError(t, err)
	second, err := s.SaveRun(ctx, "provider", rs)
	require.NoError(t, err)
	assert.Greater(t, second, first)

	runs, err := s.ListRuns(ctx, ListOptions{Suite: "final"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, first, runs[0].ID)
	assert.Equal(t, 2, runs[0].Passed)
	assert.Equal(t, 3, runs[0].Total)
	assert.False(t, runs[0].Healthy)
	assert.WithinDuration(t, rs.StartedAt, runs[0].StartedAt, time.Millisecond)

	outs, err := s.Outcomes(ctx, first)
	require.NoError(t, err)
	require.Len(t, outs, 3)
	assert.Equal(t, "providerDirect", outs[1].Name)
	assert.False(t, outs[1].Passed)
	assert.Equal(t, map[string]any{"status": "ok", "uptime": 12.5}, outs[0].Detail)

	n, err := s.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = s.GetRun(ctx, first)
	assert.ErrorIs(t, err, ErrRunNotFound)
}
