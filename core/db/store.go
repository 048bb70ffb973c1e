// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // registers "mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/digital-drip/ddrip-deploy/core/model"
)

// Supported database types.
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
)

// ErrUnsupportedType is returned by Open for unknown database types.
var ErrUnsupportedType = errors.New("unsupported database type")

// sqlOpenFunc is swapped in tests.
var sqlOpenFunc = sql.Open

type taskRunModel struct {
	bun.BaseModel `bun:"table:task_runs"`

	ID         int64     `bun:"id,pk,autoincrement"`
	StartedAt  time.Time `bun:"started_at,notnull"`
	FinishedAt time.Time `bun:"finished_at,nullzero"`
	Stage      string    `bun:"stage,notnull"`
	Task       string    `bun:"task,notnull"`
	Host       string    `bun:"host,notnull"`
	Command    string    `bun:"command,notnull"`
	Status     string    `bun:"status,notnull"`
	Error      string    `bun:"error,notnull"`
	Operator   string    `bun:"operator,notnull"`
}

func (m taskRunModel) toModel() model.TaskRun {
	run := model.TaskRun{
		ID:        m.ID,
		StartedAt: m.StartedAt,
		Stage:     m.Stage,
		Task:      m.Task,
		Host:      m.Host,
		Command:   m.Command,
		Status:    model.RunStatus(m.Status),
		Error:     m.Error,
		Operator:  m.Operator,
	}
	if !m.FinishedAt.IsZero() {
		t := m.FinishedAt
		run.FinishedAt = &t
	}
	return run
}

// Store is the run history.
type Store struct {
	bun    *bun.DB
	dbType string
}

// DefaultDSN is the sqlite file under the user data directory.
func DefaultDSN() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "./ddrip-deploy.db"
	}
	return filepath.Join(dir, "ddrip-deploy", "history.db")
}

// Open connects to the database, applies migrations and returns a Store.
func Open(ctx context.Context, dbType, dsn string) (*Store, error) {
	dbType = strings.ToLower(strings.TrimSpace(dbType))
	if dbType == "" {
		dbType = TypeSQLite
	}
	var driverName string
	switch dbType {
	case TypeSQLite:
		driverName = "sqlite"
		if dsn == "" {
			dsn = DefaultDSN()
		}
		if !isMemoryDSN(dsn) {
			if err := os.MkdirAll(filepath.Dir(sqlitePath(dsn)), 0o755); err != nil {
				return nil, fmt.Errorf("could not create history directory: %w", err)
			}
		}
	case TypePostgres:
		// The pgx stdlib registers driver name "pgx".
		driverName = "pgx"
	case TypeMySQL:
		driverName = "mysql"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, dbType)
	}
	if dsn == "" {
		return nil, fmt.Errorf("history.dsn is required for %s", dbType)
	}

	start := time.Now()
	sqlDB, err := sqlOpenFunc(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// In-memory sqlite databases are per connection.
	if dbType == TypeSQLite && isMemoryDSN(dsn) {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	bdb := createBunDB(sqlDB, dbType)
	if err := bdb.PingContext(ctx); err != nil {
		bdb.Close()
		return nil, fmt.Errorf("failed to connect to %s history database: %w", dbType, err)
	}
	dbLogf("opened %s driver in %s", driverName, time.Since(start))
	if err := RunMigrations(ctx, bdb, dbType); err != nil {
		bdb.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Store{bun: bdb, dbType: dbType}, nil
}

// createBunDB wraps sqlDB with the dialect for dbType.
func createBunDB(sqlDB *sql.DB, dbType string) *bun.DB {
	switch dbType {
	case TypePostgres:
		return bun.NewDB(sqlDB, pgdialect.New())
	case TypeMySQL:
		return bun.NewDB(sqlDB, mysqldialect.New())
	default:
		return bun.NewDB(sqlDB, sqlitedialect.New())
	}
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// sqlitePath strips a file: prefix and query string from a sqlite DSN.
func sqlitePath(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}

// Close closes the database.
func (s *Store) Close() error { return s.bun.Close() }

// Start records a new run and returns its id.
func (s *Store) Start(ctx context.Context, run model.TaskRun) (int64, error) {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = model.RunRunning
	}
	m := &taskRunModel{
		StartedAt: run.StartedAt.UTC(),
		Stage:     run.Stage,
		Task:      run.Task,
		Host:      run.Host,
		Command:   run.Command,
		Status:    string(run.Status),
		Error:     run.Error,
		Operator:  run.Operator,
	}
	if run.FinishedAt != nil {
		m.FinishedAt = run.FinishedAt.UTC()
	}
	if _, err := s.bun.NewInsert().Model(m).Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to record run: %w", err)
	}
	dbLogf("recorded run %d %s on %s", m.ID, m.Task, m.Host)
	return m.ID, nil
}

// Finish stores the outcome of run id.
func (s *Store) Finish(ctx context.Context, id int64, status model.RunStatus, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := s.bun.NewUpdate().
		Model((*taskRunModel)(nil)).
		Set("status = ?", string(status)).
		Set("error = ?", msg).
		Set("finished_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Stage string
	Task  string
	Host  string
	// Limit caps the result; 0 means 50.
	Limit int
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, f RunFilter) ([]model.TaskRun, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	var rows []taskRunModel
	q := s.bun.NewSelect().Model(&rows).OrderExpr("id DESC").Limit(limit)
	if f.Stage != "" {
		q = q.Where("stage = ?", f.Stage)
	}
	if f.Task != "" {
		q = q.Where("task = ?", f.Task)
	}
	if f.Host != "" {
		q = q.Where("host = ?", f.Host)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	out := make([]model.TaskRun, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// allRuns returns every run oldest first.
func (s *Store) allRuns(ctx context.Context) ([]model.TaskRun, error) {
	var rows []taskRunModel
	if err := s.bun.NewSelect().Model(&rows).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	out := make([]model.TaskRun, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}
