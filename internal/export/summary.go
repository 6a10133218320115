package export

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/changeminer/internal/errors"
	"github.com/rohankatakam/changeminer/internal/mining"
	"github.com/rohankatakam/changeminer/internal/models"
)

// Summary is the YAML record written next to a run's CSV files
type Summary struct {
	RunID           string         `yaml:"run_id"`
	Label           string         `yaml:"label"`
	RepoPath        string         `yaml:"repo_path,omitempty"`
	StartedAt       time.Time      `yaml:"started_at"`
	FinishedAt      time.Time      `yaml:"finished_at"`
	Duration        string         `yaml:"duration"`
	Commits         int            `yaml:"commits"`
	Modifications   int            `yaml:"modifications"`
	Skipped         int            `yaml:"skipped"`
	Files           int            `yaml:"files"`
	Methods         int            `yaml:"methods"`
	Trashed         int            `yaml:"trashed"`
	Created         int            `yaml:"created"`
	Updated         int            `yaml:"updated"`
	Relabeled       map[string]int `yaml:"relabeled,omitempty"`
	Inconsistencies map[string]int `yaml:"inconsistencies,omitempty"`
	Snapshot        string         `yaml:"snapshot,omitempty"`
	Outputs         []string       `yaml:"outputs,omitempty"`
}

// NewSummary combines the run, its stats and the engine's final counts
func NewSummary(run models.Run, stats mining.RunStats, e *mining.Engine, counts *mining.CountingObserver) Summary {
	s := Summary{
		RunID:         run.ID,
		Label:         run.Label,
		RepoPath:      run.RepoPath,
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
		Duration:      stats.Duration.Round(time.Millisecond).String(),
		Commits:       stats.Commits,
		Modifications: stats.Modifications,
		Skipped:       stats.Skipped,
		Files:         e.Registry().FileCount(),
		Methods:       e.Registry().MethodCount(),
		Trashed:       e.Ledger().TrashedCount(),
	}
	if counts != nil {
		s.Created = counts.Created
		s.Updated = counts.Updated
		s.Relabeled = nonZero(counts.Relabeled)
		s.Inconsistencies = nonZero(counts.Inconsistencies)
	}
	return s
}

func nonZero(m map[string]int) map[string]int {
	out := make(map[string]int)
	for k, v := range m {
		if v != 0 {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// WriteSummary writes s as YAML to path
func WriteSummary(path string, s Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityMedium, "failed to encode run summary")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.FileSystemError(err, "failed to write run summary").WithContext("path", path)
	}
	return nil
}

// ReadSummary loads a summary written by WriteSummary
func ReadSummary(path string) (Summary, error) {
	var s Summary
	data, err := os.ReadFile(path)
	if err != nil {
		return s, errors.FileSystemError(err, "failed to read run summary").WithContext("path", path)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, errors.Wrap(err, errors.ErrorTypeValidation, errors.SeverityMedium, "invalid run summary").WithContext("path", path)
	}
	return s, nil
}
