// Package store keeps the history of probe runs in SQLite, PostgreSQL or MySQL.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/loykin/pushprobe/internal/common"
	"github.com/loykin/pushprobe/internal/retry"
	"github.com/loykin/pushprobe/internal/runner"
	"github.com/loykin/pushprobe/internal/step"
	"github.com/loykin/pushprobe/internal/store/mysql"
	"github.com/loykin/pushprobe/internal/store/postgresql"
	"github.com/loykin/pushprobe/internal/store/sqlite"
)

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("run not found")

// Run is one persisted probe run.
type Run struct {
	ID         int64     `json:"id"`
	Suite      string    `json:"suite"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Passed     int       `json:"passed"`
	Total      int       `json:"total"`
	Healthy    bool      `json:"healthy"`
}

// Elapsed returns the wall time of the run.
func (r Run) Elapsed() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// OutcomeRecord is one persisted step outcome. Detail is decoded from JSON,
// so maps come back as map[string]any.
type OutcomeRecord struct {
	RunID    int64         `json:"runId"`
	Position int           `json:"position"`
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Detail   any           `json:"detail"`
	Duration time.Duration `json:"duration"`
}

// Outcome converts the record back into a step outcome.
func (o OutcomeRecord) Outcome() step.Outcome {
	return step.Outcome{Name: o.Name, Passed: o.Passed, Detail: o.Detail, Duration: o.Duration}
}

// ListOptions filters ListRuns. A zero Limit means 20.
type ListOptions struct {
	Suite string
	Limit int
}

// Store is the run history backend.
type Store struct {
	db      *sql.DB
	dialect Dialect
	tables  TableNames
	retry   *retry.Config
	logger  *common.Logger
}

// Open connects to the configured backend and ensures the schema exists.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver, err := normalizeDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	tables := cfg.TableNames.withDefaults()
	if err := tables.validate(); err != nil {
		return nil, err
	}

	var (
		d   Dialect
		dsn string
	)
	switch driver {
	case DriverPostgresql:
		d = postgresql.NewDialect()
		dsn = cfg.Postgres.ConnString()
		if dsn == "" {
			return nil, errors.New("postgres store requires dsn or host")
		}
	case DriverMySQL:
		d = mysql.NewDialect()
		dsn = cfg.MySQL.ConnString()
		if dsn == "" {
			return nil, errors.New("mysql store requires dsn or host")
		}
	default:
		d = sqlite.NewDialect()
		dsn = cfg.SQLite.ConnString()
	}

	db, err := d.Connect(dsn)
	if err != nil {
		return nil, err
	}
	s := &Store{
		db:      db,
		dialect: d,
		tables:  tables,
		retry:   cfg.Retry,
		logger:  common.GetLogger().WithStore(d.Name()),
	}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure history schema: %w", err)
	}
	s.logger.Debug("history store ready", "runs_table", tables.Runs)
	return s, nil
}

// Driver returns the dialect name.
func (s *Store) Driver() string { return s.dialect.Name() }

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureSchema creates the history tables. It is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.EnsureStatements(s.tables.Runs, s.tables.Outcomes) {
		if _, err := retry.WithRetryExec(ctx, s.retry, func() (sql.Result, error) {
			return s.db.ExecContext(ctx, stmt)
		}); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun stores a sealed result set and its outcomes in one transaction and
// returns the new run id.
func (s *Store) SaveRun(ctx context.Context, suite string, rs *runner.ResultSet) (int64, error) {
	if rs == nil {
		return 0, errors.New("nil result set")
	}
	outcomes := rs.Outcomes()
	details := make([]sql.NullString, len(outcomes))
	for i, o := range outcomes {
		details[i] = encodeDetail(o.Detail)
	}

	insertRun := fmt.Sprintf(
		`INSERT INTO %s (suite, started_at, finished_at, passed, total, healthy) VALUES (?, ?, ?, ?, ?, ?)`,
		s.tables.Runs)
	if s.dialect.SupportsReturning() {
		insertRun += ` RETURNING id`
	}
	insertRun = rebind(s.dialect, insertRun)
	insertOutcome := rebind(s.dialect, fmt.Sprintf(
		`INSERT INTO %s (run_id, position, name, passed, detail, duration_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		s.tables.Outcomes))

	var id int64
	err := retry.WithRetry(ctx, s.retry, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if id, err = s.insertRun(ctx, tx, insertRun,
			suite,
			s.dialect.TimeToStorage(rs.StartedAt),
			s.dialect.TimeToStorage(rs.FinishedAt),
			rs.Passed(),
			rs.Len(),
			s.dialect.BoolToStorage(rs.AllPassed()),
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		for i, o := range outcomes {
			if _, err := tx.ExecContext(ctx, insertOutcome,
				id, i, o.Name, s.dialect.BoolToStorage(o.Passed), details[i], o.Duration.Milliseconds(),
			); err != nil {
				return fmt.Errorf("insert outcome %s: %w", o.Name, err)
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("run saved", "run_id", id, "suite", suite, "passed", rs.Passed(), "total", rs.Len())
	return id, nil
}

func (s *Store) insertRun(ctx context.Context, tx *sql.Tx, q string, args ...any) (int64, error) {
	if s.dialect.SupportsReturning() {
		var id int64
		err := tx.QueryRowContext(ctx, q, args...).Scan(&id)
		return id, err
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, opts ListOptions) ([]Run, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	q := fmt.Sprintf(`SELECT id, suite, started_at, finished_at, passed, total, healthy FROM %s`, s.tables.Runs)
	args := []any{}
	if opts.Suite != "" {
		q += ` WHERE suite = ?`
		args = append(args, opts.Suite)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	q = rebind(s.dialect, q)

	rows, err := retry.WithRetryQuery(ctx, s.retry, func() (*sql.Rows, error) {
		return s.db.QueryContext(ctx, q, args...)
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		r, err := s.scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns one run by id.
func (s *Store) GetRun(ctx context.Context, id int64) (Run, error) {
	q := rebind(s.dialect, fmt.Sprintf(
		`SELECT id, suite, started_at, finished_at, passed, total, healthy FROM %s WHERE id = ?`, s.tables.Runs))
	r, err := s.scanRun(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	return r, err
}

// Outcomes returns the outcomes of a run in execution order.
func (s *Store) Outcomes(ctx context.Context, runID int64) ([]OutcomeRecord, error) {
	q := rebind(s.dialect, fmt.Sprintf(
		`SELECT position, name, passed, detail, duration_ms FROM %s WHERE run_id = ? ORDER BY position`,
		s.tables.Outcomes))
	rows, err := retry.WithRetryQuery(ctx, s.retry, func() (*sql.Rows, error) {
		return s.db.QueryContext(ctx, q, runID)
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []OutcomeRecord
	for rows.Next() {
		var (
			rec    = OutcomeRecord{RunID: runID}
			passed any
			detail sql.NullString
			ms     int64
		)
		if err := rows.Scan(&rec.Position, &rec.Name, &passed, &detail, &ms); err != nil {
			return nil, err
		}
		rec.Passed = s.dialect.BoolFromStorage(passed)
		rec.Detail = decodeDetail(detail)
		rec.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep runs and returns how many went.
// Ids grow monotonically, so everything at or below the first id past the
// newest keep runs goes.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	cutoffQ := rebind(s.dialect, fmt.Sprintf(
		`SELECT id FROM %s ORDER BY id DESC LIMIT 1 OFFSET ?`, s.tables.Runs))
	delOutcomes := rebind(s.dialect, fmt.Sprintf(`DELETE FROM %s WHERE run_id <= ?`, s.tables.Outcomes))
	delRuns := rebind(s.dialect, fmt.Sprintf(`DELETE FROM %s WHERE id <= ?`, s.tables.Runs))

	var n int64
	err := retry.WithRetry(ctx, s.retry, func() error {
		n = 0
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var cutoff int64
		err = tx.QueryRowContext(ctx, cutoffQ, keep).Scan(&cutoff)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, delOutcomes, cutoff); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, delRuns, cutoff)
		if err != nil {
			return err
		}
		n, _ = res.RowsAffected()
		return tx.Commit()
	})
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanRun(sc scanner) (Run, error) {
	var (
		r                 Run
		started, finished any
		healthy           any
	)
	if err := sc.Scan(&r.ID, &r.Suite, &started, &finished, &r.Passed, &r.Total, &healthy); err != nil {
		return Run{}, err
	}
	var err error
	if r.StartedAt, err = s.dialect.TimeFromStorage(started); err != nil {
		return Run{}, fmt.Errorf("run %d started_at: %w", r.ID, err)
	}
	if r.FinishedAt, err = s.dialect.TimeFromStorage(finished); err != nil {
		return Run{}, fmt.Errorf("run %d finished_at: %w", r.ID, err)
	}
	r.Healthy = s.dialect.BoolFromStorage(healthy)
	return r, nil
}

// encodeDetail stores v as JSON with secrets masked value by value.
func encodeDetail(v any) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(fmt.Sprint(v))
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return sql.NullString{String: common.MaskSensitiveData(string(b)), Valid: true}
	}
	masked, err := json.Marshal(common.GetGlobalMasker().MaskValue(generic))
	if err != nil {
		return sql.NullString{String: common.MaskSensitiveData(string(b)), Valid: true}
	}
	return sql.NullString{String: string(masked), Valid: true}
}

func decodeDetail(ns sql.NullString) any {
	if !ns.Valid {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(ns.String), &v); err != nil {
		return ns.String
	}
	return v
}
