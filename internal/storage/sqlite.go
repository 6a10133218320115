package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/changeminer/internal/errors"
)

// SQLiteStore implements storage using SQLite (for local runs)
type SQLiteStore struct {
	sqlStore
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		repo_path TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		commits INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS methods (
		run_id TEXT NOT NULL,
		full_path TEXT NOT NULL,
		filename TEXT NOT NULL,
		method TEXT NOT NULL,
		changes INTEGER NOT NULL,
		chg_lines INTEGER NOT NULL,
		previous_name TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, full_path, method),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS method_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		full_path TEXT NOT NULL,
		method TEXT NOT NULL,
		commit_hash TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		committed_at DATETIME NOT NULL,
		lines_changed INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS trashed_methods (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		commit_hash TEXT NOT NULL,
		removed_at DATETIME NOT NULL,
		method TEXT NOT NULL,
		changes INTEGER NOT NULL,
		chg_lines INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_methods_changes ON methods(run_id, changes DESC);
	CREATE INDEX IF NOT EXISTS idx_events_method ON method_events(run_id, full_path, method);
	CREATE INDEX IF NOT EXISTS idx_trash_run ON trashed_methods(run_id);
`

// NewSQLiteStore opens (creating if needed) the SQLite database at path.
// ":memory:" gives a private in-memory database.
func NewSQLiteStore(ctx context.Context, path string, logger logrus.FieldLogger) (*SQLiteStore, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.FileSystemError(err, "create database directory").WithContext("path", dir)
		}
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite3", path)
	if err != nil {
		return nil, errors.DatabaseError(err, "connect to sqlite").WithContext("path", path)
	}
	// one connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	// Enable foreign keys and WAL mode for better concurrency
	db.ExecContext(ctx, "PRAGMA foreign_keys = ON")
	db.ExecContext(ctx, "PRAGMA journal_mode = WAL")

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, errors.DatabaseError(err, "init schema")
	}

	return &SQLiteStore{sqlStore{db: db, logger: logger.WithField("store", TypeSQLite)}}, nil
}

// PurgeRuns deletes runs and their rows
func (s *SQLiteStore) PurgeRuns(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.DatabaseError(err, "begin transaction")
	}
	defer tx.Rollback()

	for _, table := range runTables {
		query, args, err := sqlx.In(`DELETE FROM `+table+` WHERE run_id IN (?)`, ids)
		if err != nil {
			return 0, errors.DatabaseError(err, "build purge query")
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return 0, errors.DatabaseError(err, "purge rows").WithContext("table", table)
		}
	}

	query, args, err := sqlx.In(`DELETE FROM runs WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.DatabaseError(err, "build purge query")
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, errors.DatabaseError(err, "purge runs")
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, errors.DatabaseError(err, "commit purge")
	}
	return n, nil
}
