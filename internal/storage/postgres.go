package storage

import (
	"context"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/changeminer/internal/errors"
)

// PostgresStore implements storage using PostgreSQL
type PostgresStore struct {
	sqlStore
}

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		repo_path TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		commits INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS methods (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		full_path TEXT NOT NULL,
		filename TEXT NOT NULL,
		method TEXT NOT NULL,
		changes INTEGER NOT NULL,
		chg_lines INTEGER NOT NULL,
		previous_name TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, full_path, method)
	);

	CREATE TABLE IF NOT EXISTS method_events (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		full_path TEXT NOT NULL,
		method TEXT NOT NULL,
		commit_hash TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		committed_at TIMESTAMPTZ NOT NULL,
		lines_changed INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trashed_methods (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		commit_hash TEXT NOT NULL,
		removed_at TIMESTAMPTZ NOT NULL,
		method TEXT NOT NULL,
		changes INTEGER NOT NULL,
		chg_lines INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_methods_changes ON methods(run_id, changes DESC);
	CREATE INDEX IF NOT EXISTS idx_events_method ON method_events(run_id, full_path, method);
	CREATE INDEX IF NOT EXISTS idx_trash_run ON trashed_methods(run_id);
`

// NewPostgresStore creates a new PostgreSQL storage
func NewPostgresStore(ctx context.Context, dsn string, logger logrus.FieldLogger) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.ConfigErrorf("postgres DSN is not set")
	}

	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, errors.DatabaseError(err, "connect to postgres")
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, errors.DatabaseError(err, "init schema")
	}

	return &PostgresStore{sqlStore{db: db, logger: logger.WithField("store", TypePostgres)}}, nil
}

// PurgeRuns deletes runs; child rows go with them through ON DELETE CASCADE
func (s *PostgresStore) PurgeRuns(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `DELETE FROM runs WHERE id = ANY($1)`
	res, err := s.db.ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return 0, errors.DatabaseError(err, "purge runs")
	}
	n, _ := res.RowsAffected()
	return n, nil
}
