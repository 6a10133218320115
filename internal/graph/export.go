package graph

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/changeminer/internal/models"
)

// Every node written for a run carries its run_id, so runs never collide and
// re-exporting a run first removes what it wrote before.
const (
	clearRunQuery = `
		MATCH (n {run_id: $run_id})
		DETACH DELETE n
	`

	runQuery = `
		MERGE (r:Run {run_id: $run_id})
		SET r += $props
	`

	fileQuery = `
		UNWIND $rows AS row
		MATCH (r:Run {run_id: $run_id})
		MERGE (f:File {run_id: $run_id, path: row.path})
		SET f.filename = row.filename
		MERGE (r)-[:INCLUDES]->(f)
	`

	methodQuery = `
		UNWIND $rows AS row
		MATCH (f:File {run_id: $run_id, path: row.path})
		CREATE (m:Method {
			run_id: $run_id,
			path: row.path,
			name: row.name,
			changes: row.changes,
			chg_lines: row.chg_lines,
			previous_name: row.previous_name
		})
		MERGE (f)-[:CONTAINS]->(m)
	`

	trashQuery = `
		UNWIND $rows AS row
		MERGE (c:Commit {run_id: $run_id, hash: row.commit})
		CREATE (m:Method:Removed {
			run_id: $run_id,
			name: row.name,
			changes: row.changes,
			chg_lines: row.chg_lines
		})
		CREATE (c)-[:REMOVED {at: row.removed_at}]->(m)
	`

	countMethodsQuery = `
		MATCH (:File {run_id: $run_id})-[:CONTAINS]->(m:Method)
		RETURN count(m) AS count
	`
)

// ExportResult writes one run as (:Run)-[:INCLUDES]->(:File)-[:CONTAINS]->(:Method)
// plus (:Commit)-[:REMOVED]->(:Method:Removed) for trashed methods
func (c *Client) ExportResult(ctx context.Context, result *models.RunResult) error {
	runID := result.Run.ID
	if runID == "" {
		return fmt.Errorf("run id must not be empty")
	}
	log := c.logger.WithFields(logrus.Fields{"run_id": runID, "label": result.Run.Label})

	if err := c.write(ctx, opClear, clearRunQuery, map[string]any{"run_id": runID}); err != nil {
		return err
	}
	if err := c.write(ctx, opRun, runQuery, map[string]any{"run_id": runID, "props": runProps(result.Run)}); err != nil {
		return err
	}

	steps := []struct {
		op    string
		query string
		rows  []map[string]any
		size  int
	}{
		{opFiles, fileQuery, fileRows(result.Methods), c.batch.FileBatchSize},
		{opMethod, methodQuery, methodRows(result.Methods), c.batch.MethodBatchSize},
		{opTrash, trashQuery, trashRows(result.Trash), c.batch.TrashBatchSize},
	}
	for _, step := range steps {
		for i, batch := range chunks(step.rows, step.size) {
			params := map[string]any{"run_id": runID, "rows": batch}
			if err := c.write(ctx, step.op, step.query, params); err != nil {
				return fmt.Errorf("%s batch %d: %w", step.op, i, err)
			}
		}
		log.WithFields(logrus.Fields{"operation": step.op, "rows": len(step.rows)}).Debug("graph batch written")
	}

	log.WithFields(logrus.Fields{
		"methods": len(result.Methods),
		"trashed": len(result.Trash),
	}).Info("graph export complete")
	return nil
}

// MethodCount returns the number of live methods stored for a run
func (c *Client) MethodCount(ctx context.Context, runID string) (int64, error) {
	return c.count(ctx, countMethodsQuery, map[string]any{"run_id": runID})
}

func runProps(run models.Run) map[string]any {
	return map[string]any{
		"label":       run.Label,
		"repo_path":   run.RepoPath,
		"started_at":  run.StartedAt,
		"finished_at": run.FinishedAt,
		"commits":     int64(run.Commits),
	}
}

// fileRows returns one row per distinct path in first-seen order
func fileRows(methods []models.MethodRow) []map[string]any {
	seen := make(map[string]bool)
	var rows []map[string]any
	for _, m := range methods {
		if seen[m.FullPath] {
			continue
		}
		seen[m.FullPath] = true
		rows = append(rows, map[string]any{
			"path":     m.FullPath,
			"filename": m.Filename,
		})
	}
	return rows
}

func methodRows(methods []models.MethodRow) []map[string]any {
	rows := make([]map[string]any, 0, len(methods))
	for _, m := range methods {
		rows = append(rows, map[string]any{
			"path":          m.FullPath,
			"name":          m.Method,
			"changes":       int64(m.Changes),
			"chg_lines":     int64(m.ChgLines),
			"previous_name": m.PreviousName,
		})
	}
	return rows
}

func trashRows(trash []models.TrashRow) []map[string]any {
	rows := make([]map[string]any, 0, len(trash))
	for _, t := range trash {
		rows = append(rows, map[string]any{
			"commit":     t.CommitHash,
			"name":       t.Method,
			"changes":    int64(t.Changes),
			"chg_lines":  int64(t.ChgLines),
			"removed_at": t.Date,
		})
	}
	return rows
}
