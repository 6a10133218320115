package export

import (
	"github.com/rohankatakam/changeminer/internal/mining"
	"github.com/rohankatakam/changeminer/internal/models"
)

// FromEngine collects the engine's live methods, their histories and the
// trash into rows tagged with run.ID. Files are ordered by path and methods
// keep registry order.
func FromEngine(e *mining.Engine, run models.Run) *models.RunResult {
	res := &models.RunResult{Run: run}

	for _, f := range e.Registry().Files() {
		for _, m := range f.Methods {
			name := m.LongName()
			res.Methods = append(res.Methods, models.MethodRow{
				RunID:        run.ID,
				FullPath:     f.Path,
				Filename:     f.DisplayName,
				Method:       name,
				Changes:      m.Changes(),
				ChgLines:     m.ChangedLines(),
				PreviousName: m.PreviousName,
			})
			for _, ev := range m.History {
				res.Events = append(res.Events, models.EventRow{
					RunID:        run.ID,
					FullPath:     f.Path,
					Method:       name,
					CommitHash:   ev.CommitHash,
					Author:       ev.Author,
					CommittedAt:  ev.Timestamp,
					LinesChanged: ev.LinesChanged,
				})
			}
		}
	}

	for _, entry := range e.Ledger().Trashed() {
		for _, m := range entry.Methods {
			res.Trash = append(res.Trash, models.TrashRow{
				RunID:      run.ID,
				CommitHash: entry.Commit.Hash,
				Date:       entry.Commit.Timestamp,
				Method:     m.LongName(),
				Changes:    m.Changes(),
				ChgLines:   m.ChangedLines(),
			})
		}
	}
	return res
}
