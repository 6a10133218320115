package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/rohankatakam/changeminer/internal/export"
	"github.com/rohankatakam/changeminer/internal/metrics"
	"github.com/rohankatakam/changeminer/internal/models"
	"github.com/rohankatakam/changeminer/internal/snapshot"
)

func init() {
	color.NoColor = true
}

func sampleSummary() export.Summary {
	return export.Summary{
		RunID:           "r1",
		Label:           "commits-to-v1",
		RepoPath:        "/src/app",
		Commits:         1234,
		Modifications:   5000,
		Methods:         42,
		Trashed:         3,
		Duration:        "1.5s",
		Relabeled:       map[string]int{"scope": 2, "pairing": 1},
		Inconsistencies: map[string]int{"safety_net": 1},
		Outputs:         []string{"out/commits-to-v1.csv"},
	}
}

func TestQuietFormatter(t *testing.T) {
	var buf bytes.Buffer
	err := NewFormatter(VerbosityQuiet).Format(sampleSummary(), &buf)

	assert.NoError(t, err)
	assert.Equal(t, "commits-to-v1: 1,234 commits, 42 methods, 3 trashed, 1 inconsistencies\n", buf.String())
}

func TestStandardFormatter(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, NewFormatter(VerbosityStandard).Format(sampleSummary(), &buf))

	out := buf.String()
	assert.Contains(t, out, "Run commits-to-v1 (r1)")
	assert.Contains(t, out, "1,234")
	assert.Contains(t, out, "Live methods")
	assert.Contains(t, out, "1 inconsistencies recovered")
	assert.NotContains(t, out, "Relabeled methods")
}

func TestVerboseFormatter(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, NewFormatter(VerbosityVerbose).Format(sampleSummary(), &buf))

	out := buf.String()
	assert.Contains(t, out, "Relabeled methods")
	assert.Contains(t, out, "safety_net")
	assert.Contains(t, out, "- out/commits-to-v1.csv")
}

func TestStandardFormatterClean(t *testing.T) {
	s := sampleSummary()
	s.Inconsistencies = nil
	var buf bytes.Buffer
	assert.NoError(t, NewFormatter(VerbosityStandard).Format(s, &buf))
	assert.Contains(t, buf.String(), "No inconsistencies")
}

func TestParseVerbosity(t *testing.T) {
	assert.Equal(t, VerbosityQuiet, ParseVerbosity(true, true))
	assert.Equal(t, VerbosityVerbose, ParseVerbosity(false, true))
	assert.Equal(t, VerbosityStandard, ParseVerbosity(false, false))
}

func TestRenderTopMethods(t *testing.T) {
	var buf bytes.Buffer
	rows := []models.MethodRow{
		{FullPath: "src/a.cs", Method: "A::hot()", Changes: 20, ChgLines: 1500},
		{FullPath: "src/a.cs", Method: "A::warm()", Changes: 6, PreviousName: "A::tepid()"},
	}

	RenderTopMethods(&buf, rows, metrics.DefaultChurnThresholds())

	out := buf.String()
	assert.Contains(t, out, "A::hot()")
	assert.Contains(t, out, "1,500")
	assert.Contains(t, out, "HIGH")
	assert.Contains(t, out, "MEDIUM")
	assert.Contains(t, out, "A::tepid()")
	assert.Contains(t, out, "TOTAL: 2 METHODS")
}

func TestRenderEmptyCollections(t *testing.T) {
	var buf bytes.Buffer
	RenderTopMethods(&buf, nil, metrics.DefaultChurnThresholds())
	RenderTrash(&buf, nil)
	RenderRuns(&buf, nil)
	RenderSnapshots(&buf, nil)

	assert.Equal(t, "No methods recorded for this run\nNo methods were removed\nNo runs stored\nNo snapshots stored\n", buf.String())
}

func TestRenderRunsAndTrash(t *testing.T) {
	var buf bytes.Buffer
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	RenderRuns(&buf, []*models.Run{{ID: "r1", Label: "all", StartedAt: start, FinishedAt: start.Add(90 * time.Second), Commits: 12}})
	RenderTrash(&buf, []models.TrashRow{{CommitHash: "0123456789abcdef", Date: start, Method: "A::gone()", Changes: 2}})

	out := buf.String()
	assert.Contains(t, out, "2024-03-01 08:00:00")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789")
	assert.Contains(t, out, "A::gone()")
}

func TestRenderEvents(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	RenderEvents(&buf, []models.EventRow{
		{CommitHash: "aaaaaaaaaaaa", Author: "ana", CommittedAt: at, LinesChanged: 0},
		{CommitHash: "bbbbbbbbbbbb", Author: "bo", CommittedAt: at.Add(time.Hour), LinesChanged: 7},
	})

	out := buf.String()
	assert.Contains(t, out, "aaaaaaaa")
	assert.Contains(t, out, "2024-03-01 09:00:00")
	assert.Contains(t, out, "2 CHANGES")

	buf.Reset()
	RenderEvents(&buf, nil)
	assert.Equal(t, "No changes recorded for this method\n", buf.String())
}

func TestRenderSnapshots(t *testing.T) {
	var buf bytes.Buffer
	meta := snapshot.Meta{Label: "nightly", CreatedAt: time.Now().Add(-time.Hour), Methods: 10, StoredBytes: 2048, RawBytes: 8192, Checksum: "00ff"}

	RenderSnapshots(&buf, []snapshot.Meta{meta})
	RenderSnapshot(&buf, meta)

	out := buf.String()
	assert.Contains(t, out, "nightly")
	assert.Contains(t, out, "2.0 kB")
	assert.Contains(t, out, "8.2 kB raw")
	assert.Contains(t, out, "00ff")
}
