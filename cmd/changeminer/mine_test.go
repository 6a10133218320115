package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/changeminer/internal/config"
	"github.com/rohankatakam/changeminer/internal/storage"
)

func withMineFlags(t *testing.T, set func()) {
	t.Helper()
	oldCfg := cfg
	cfg = config.Default()
	t.Cleanup(func() {
		cfg = oldCfg
		mineInput, mineFrom, mineTo, mineSplitAt = "", "", "", ""
		mineResume, mineLabel, mineOutput = "", "", ""
		mineSnapshotLabel = "latest"
		mineNoCSV, mineNoStore, mineNoGraph = false, false, false
	})
	mineSnapshotLabel = "latest"
	set()
}

func TestPlanSingleRun(t *testing.T) {
	withMineFlags(t, func() {})

	phases := plan()
	require.Len(t, phases, 1)
	assert.Equal(t, "", phases[0].label)
	assert.Equal(t, "commits.csv", phases[0].target.MethodsFile)
	assert.False(t, phases[0].target.WithPrevious)
	assert.Equal(t, "latest", phases[0].snapshotLabel)
	assert.False(t, phases[0].checkpoint)
}

func TestPlanResumedRunReportsPreviousNames(t *testing.T) {
	withMineFlags(t, func() { mineResume = "nightly" })

	phases := plan()
	require.Len(t, phases, 1)
	assert.True(t, phases[0].target.WithPrevious)
}

func TestPlanSplitRun(t *testing.T) {
	withMineFlags(t, func() {
		mineSplitAt = "release/v2"
		mineTo = "main"
	})
	applyMineFlags(nil)

	phases := plan()
	require.Len(t, phases, 2)

	before, after := phases[0], phases[1]
	assert.Equal(t, "to-release_v2", before.label)
	assert.Equal(t, "release/v2", before.to)
	assert.Equal(t, "commits-to-release_v2.csv", before.target.MethodsFile)
	assert.Equal(t, "removed-to-release_v2.csv", before.target.TrashFile)
	assert.False(t, before.target.WithPrevious)
	assert.True(t, before.checkpoint)
	assert.Equal(t, "latest-to-release_v2", before.snapshotLabel)

	assert.Equal(t, "from-release_v2", after.label)
	assert.Equal(t, "release/v2", after.from)
	assert.Equal(t, "main", after.to)
	assert.True(t, after.target.WithPrevious)
	assert.False(t, after.checkpoint)
	assert.Equal(t, "latest", after.snapshotLabel)
}

func TestApplyMineFlags(t *testing.T) {
	withMineFlags(t, func() {
		mineInput = "commits.jsonl"
		mineOutput = "out"
		mineNoCSV = true
		mineNoStore = true
		mineNoGraph = true
	})
	cfg.Neo4j.Enabled = true

	applyMineFlags(nil)

	assert.Equal(t, "jsonl", cfg.Provider.Type)
	assert.Equal(t, "commits.jsonl", cfg.Provider.Input)
	assert.Equal(t, "out", cfg.Export.Directory)
	assert.False(t, cfg.Export.CSV)
	assert.Equal(t, storage.TypeNone, cfg.Storage.Type)
	assert.False(t, cfg.Neo4j.Enabled)
}

func TestApplyMineFlagsRepoArgument(t *testing.T) {
	withMineFlags(t, func() {})

	applyMineFlags([]string{"https://example.com/repo.git"})

	assert.Equal(t, "git", cfg.Provider.Type)
	assert.Equal(t, "https://example.com/repo.git", cfg.Provider.RepoPath)
}
