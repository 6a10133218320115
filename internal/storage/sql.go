package storage

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/changeminer/internal/errors"
	"github.com/rohankatakam/changeminer/internal/models"
)

// sqlStore holds the queries both backends share. Positional queries use
// '?' and are rebound for the driver; named queries are bound by sqlx.
type sqlStore struct {
	db     *sqlx.DB
	logger logrus.FieldLogger
}

const (
	upsertRunQuery = `
		INSERT INTO runs (id, label, repo_path, started_at, finished_at, commits)
		VALUES (:id, :label, :repo_path, :started_at, :finished_at, :commits)
		ON CONFLICT (id) DO UPDATE SET
			label = excluded.label,
			repo_path = excluded.repo_path,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			commits = excluded.commits
	`

	insertMethodQuery = `
		INSERT INTO methods (run_id, full_path, filename, method, changes, chg_lines, previous_name)
		VALUES (:run_id, :full_path, :filename, :method, :changes, :chg_lines, :previous_name)
	`

	insertEventQuery = `
		INSERT INTO method_events (run_id, full_path, method, commit_hash, author, committed_at, lines_changed)
		VALUES (:run_id, :full_path, :method, :commit_hash, :author, :committed_at, :lines_changed)
	`

	insertTrashQuery = `
		INSERT INTO trashed_methods (run_id, commit_hash, removed_at, method, changes, chg_lines)
		VALUES (:run_id, :commit_hash, :removed_at, :method, :changes, :chg_lines)
	`
)

// runTables are the per-run tables, children first
var runTables = []string{"method_events", "trashed_methods", "methods"}

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// SaveResult replaces everything stored for result.Run.ID
func (s *sqlStore) SaveResult(ctx context.Context, result *models.RunResult) error {
	if result.Run.ID == "" {
		return errors.ValidationErrorf("run id must not be empty")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError(err, "begin transaction")
	}
	defer tx.Rollback()

	for _, table := range runTables {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM `+table+` WHERE run_id = ?`), result.Run.ID); err != nil {
			return errors.DatabaseError(err, "clear previous rows").WithContext("table", table)
		}
	}

	if _, err := tx.NamedExecContext(ctx, upsertRunQuery, result.Run); err != nil {
		return errors.DatabaseError(err, "save run").WithContext("run_id", result.Run.ID)
	}

	methods := make([]interface{}, len(result.Methods))
	for i, row := range result.Methods {
		row.RunID = result.Run.ID
		methods[i] = row
	}
	if err := execEach(ctx, tx, insertMethodQuery, methods); err != nil {
		return errors.DatabaseError(err, "save methods").WithContext("run_id", result.Run.ID)
	}

	events := make([]interface{}, len(result.Events))
	for i, row := range result.Events {
		row.RunID = result.Run.ID
		events[i] = row
	}
	if err := execEach(ctx, tx, insertEventQuery, events); err != nil {
		return errors.DatabaseError(err, "save method events").WithContext("run_id", result.Run.ID)
	}

	trash := make([]interface{}, len(result.Trash))
	for i, row := range result.Trash {
		row.RunID = result.Run.ID
		trash[i] = row
	}
	if err := execEach(ctx, tx, insertTrashQuery, trash); err != nil {
		return errors.DatabaseError(err, "save trashed methods").WithContext("run_id", result.Run.ID)
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError(err, "commit run").WithContext("run_id", result.Run.ID)
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":  result.Run.ID,
		"label":   result.Run.Label,
		"methods": len(result.Methods),
		"events":  len(result.Events),
		"trashed": len(result.Trash),
	}).Info("run stored")
	return nil
}

// execEach runs one prepared named statement per row
func execEach(ctx context.Context, tx *sqlx.Tx, query string, rows []interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// GetRun returns one run by id
func (s *sqlStore) GetRun(ctx context.Context, id string) (*models.Run, error) {
	var run models.Run
	query := s.db.Rebind(`SELECT id, label, repo_path, started_at, finished_at, commits FROM runs WHERE id = ?`)

	err := s.db.GetContext(ctx, &run, query, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.DatabaseError(err, "get run").WithContext("run_id", id)
	}
	return &run, nil
}

// ListRuns returns the most recent runs first
func (s *sqlStore) ListRuns(ctx context.Context, limit int) ([]*models.Run, error) {
	var runs []*models.Run
	query := s.db.Rebind(`
		SELECT id, label, repo_path, started_at, finished_at, commits
		FROM runs ORDER BY started_at DESC, id LIMIT ?`)

	if err := s.db.SelectContext(ctx, &runs, query, limitOrAll(limit)); err != nil {
		return nil, errors.DatabaseError(err, "list runs")
	}
	return runs, nil
}

// TopMethods returns the live methods of a run with the most changes
func (s *sqlStore) TopMethods(ctx context.Context, runID string, limit int) ([]models.MethodRow, error) {
	var rows []models.MethodRow
	query := s.db.Rebind(`
		SELECT run_id, full_path, filename, method, changes, chg_lines, previous_name
		FROM methods WHERE run_id = ?
		ORDER BY changes DESC, chg_lines DESC, full_path, method
		LIMIT ?`)

	if err := s.db.SelectContext(ctx, &rows, query, runID, limitOrAll(limit)); err != nil {
		return nil, errors.DatabaseError(err, "query top methods").WithContext("run_id", runID)
	}
	return rows, nil
}

// MethodEvents returns the change history of one method in commit order
func (s *sqlStore) MethodEvents(ctx context.Context, runID, fullPath, method string) ([]models.EventRow, error) {
	var rows []models.EventRow
	query := s.db.Rebind(`
		SELECT run_id, full_path, method, commit_hash, author, committed_at, lines_changed
		FROM method_events WHERE run_id = ? AND full_path = ? AND method = ?
		ORDER BY id`)

	if err := s.db.SelectContext(ctx, &rows, query, runID, fullPath, method); err != nil {
		return nil, errors.DatabaseError(err, "query method events").WithContext("method", method)
	}
	return rows, nil
}

// TrashedMethods returns the methods a run removed, in removal order
func (s *sqlStore) TrashedMethods(ctx context.Context, runID string) ([]models.TrashRow, error) {
	var rows []models.TrashRow
	query := s.db.Rebind(`
		SELECT run_id, commit_hash, removed_at, method, changes, chg_lines
		FROM trashed_methods WHERE run_id = ?
		ORDER BY id`)

	if err := s.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, errors.DatabaseError(err, "query trashed methods").WithContext("run_id", runID)
	}
	return rows, nil
}

// limitOrAll maps a non-positive limit to one that returns every row
func limitOrAll(limit int) int64 {
	if limit <= 0 {
		return 1<<63 - 1
	}
	return int64(limit)
}
