package models

import (
	"time"
)

// ModificationKind is the file-level change reported by a commit-diff provider
type ModificationKind string

const (
	ModificationAdd    ModificationKind = "ADD"
	ModificationDelete ModificationKind = "DELETE"
	ModificationRename ModificationKind = "RENAME"
	ModificationModify ModificationKind = "MODIFY"
)

// Valid reports whether k is one of the four known kinds
func (k ModificationKind) Valid() bool {
	switch k {
	case ModificationAdd, ModificationDelete, ModificationRename, ModificationModify:
		return true
	}
	return false
}

// Commit is one commit as supplied by a commit-diff provider
type Commit struct {
	Hash          string          `json:"hash" yaml:"hash"`
	Author        string          `json:"author" yaml:"author"`
	Message       string          `json:"message" yaml:"message"`
	Timestamp     time.Time       `json:"timestamp" yaml:"timestamp"`
	Modifications []*Modification `json:"modifications" yaml:"modifications"`
}

// ShortHash returns the first 8 characters of the hash for log output
func (c *Commit) ShortHash() string {
	if len(c.Hash) > 8 {
		return c.Hash[:8]
	}
	return c.Hash
}

// Modification is one file's change within a commit
type Modification struct {
	Filename     string           `json:"filename"`
	OldPath      string           `json:"old_path,omitempty"`
	NewPath      string           `json:"new_path,omitempty"`
	Kind         ModificationKind `json:"kind"`
	Diff         string           `json:"diff,omitempty"`
	SourceBefore string           `json:"source_before,omitempty"`
	SourceAfter  string           `json:"source_after,omitempty"`

	MethodsBefore  []MethodDescriptor `json:"methods_before,omitempty"`
	Methods        []MethodDescriptor `json:"methods,omitempty"`
	ChangedMethods []MethodDescriptor `json:"changed_methods,omitempty"`
}

// Path returns the path that identifies the file after the modification
func (m *Modification) Path() string {
	if m.Kind == ModificationDelete {
		return m.OldPath
	}
	return m.NewPath
}

// MethodDescriptor describes one method inside one version of a file.
// Line numbers are 1-based and inclusive.
type MethodDescriptor struct {
	LongName     string `json:"long_name"`
	StartLine    int    `json:"start_line"`
	EndLine      int    `json:"end_line"`
	NestingLevel int    `json:"nesting_level"`
}

// MethodRow is one live method as exported after a run
type MethodRow struct {
	RunID        string `json:"run_id" db:"run_id"`
	FullPath     string `json:"full_path" db:"full_path"`
	Filename     string `json:"filename" db:"filename"`
	Method       string `json:"method" db:"method"`
	Changes      int    `json:"changes" db:"changes"`
	ChgLines     int    `json:"chg_lines" db:"chg_lines"`
	PreviousName string `json:"previous_name,omitempty" db:"previous_name"`
}

// EventRow is one change event of one live method
type EventRow struct {
	RunID        string    `json:"run_id" db:"run_id"`
	FullPath     string    `json:"full_path" db:"full_path"`
	Method       string    `json:"method" db:"method"`
	CommitHash   string    `json:"commit_hash" db:"commit_hash"`
	Author       string    `json:"author" db:"author"`
	CommittedAt  time.Time `json:"committed_at" db:"committed_at"`
	LinesChanged int       `json:"lines_changed" db:"lines_changed"`
}

// TrashRow is one method removed from the live registry
type TrashRow struct {
	RunID      string    `json:"run_id" db:"run_id"`
	CommitHash string    `json:"commit_hash" db:"commit_hash"`
	Date       time.Time `json:"date" db:"removed_at"`
	Method     string    `json:"method" db:"method"`
	Changes    int       `json:"changes" db:"changes"`
	ChgLines   int       `json:"chg_lines" db:"chg_lines"`
}

// Run describes one mining run persisted to an export store
type Run struct {
	ID         string    `json:"id" db:"id" yaml:"id"`
	Label      string    `json:"label" db:"label" yaml:"label"`
	RepoPath   string    `json:"repo_path" db:"repo_path" yaml:"repo_path"`
	StartedAt  time.Time `json:"started_at" db:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" db:"finished_at" yaml:"finished_at"`
	Commits    int       `json:"commits" db:"commits" yaml:"commits"`
}

// RunResult is everything one run exports
type RunResult struct {
	Run     Run
	Methods []MethodRow
	Events  []EventRow
	Trash   []TrashRow
}
