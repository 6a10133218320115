package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/changeminer/internal/mining"
	"github.com/rohankatakam/changeminer/internal/models"
)

var t0 = time.Date(2017, 6, 1, 12, 30, 0, 0, time.FixedZone("CEST", 2*60*60))

func descs(names ...string) []models.MethodDescriptor {
	out := make([]models.MethodDescriptor, len(names))
	for i, n := range names {
		out[i] = models.MethodDescriptor{LongName: n, StartLine: i*10 + 1, EndLine: i*10 + 5}
	}
	return out
}

func minedEngine(t *testing.T) (*mining.Engine, mining.RunStats, *mining.CountingObserver) {
	t.Helper()
	counts := mining.NewCountingObserver()
	e := mining.NewEngine(mining.DefaultOptions(), nil, counts)
	commits := []*models.Commit{
		{
			Hash: "c1", Author: "ann", Timestamp: t0,
			Modifications: []*models.Modification{
				{Filename: "a.cs", NewPath: "src/a.cs", Kind: models.ModificationAdd, Methods: descs("A::run()", "A::stop()")},
				{Filename: "b.cs", NewPath: "src/b.cs", Kind: models.ModificationAdd, Methods: descs("B::go()")},
			},
		},
		{
			Hash: "c2", Author: "bob", Timestamp: t0.Add(time.Hour),
			Modifications: []*models.Modification{
				{
					Filename: "a.cs", OldPath: "src/a.cs", NewPath: "src/a.cs", Kind: models.ModificationModify,
					MethodsBefore:  descs("A::run()", "A::stop()"),
					Methods:        descs("A::run()", "A::stop()"),
					ChangedMethods: descs("A::run()"),
				},
				{Filename: "b.cs", OldPath: "src/b.cs", Kind: models.ModificationDelete},
			},
		},
	}
	stats, err := e.Run(context.Background(), mining.NewSliceSource(commits...))
	require.NoError(t, err)
	return e, stats, counts
}

func TestFromEngine(t *testing.T) {
	e, _, _ := minedEngine(t)

	res := FromEngine(e, models.Run{ID: "r1", Label: "all"})

	require.Len(t, res.Methods, 2)
	assert.Equal(t, models.MethodRow{RunID: "r1", FullPath: "src/a.cs", Filename: "a.cs", Method: "A::run()", Changes: 2}, res.Methods[0])
	assert.Equal(t, "A::stop()", res.Methods[1].Method)
	assert.Equal(t, 1, res.Methods[1].Changes)

	require.Len(t, res.Events, 3)
	assert.Equal(t, "c1", res.Events[0].CommitHash)
	assert.Equal(t, "bob", res.Events[1].Author)
	assert.Equal(t, "A::stop()", res.Events[2].Method)

	require.Len(t, res.Trash, 1)
	assert.Equal(t, models.TrashRow{RunID: "r1", CommitHash: "c2", Date: t0.Add(time.Hour), Method: "B::go()", Changes: 1}, res.Trash[0])
}

func TestWriteMethods(t *testing.T) {
	rows := []models.MethodRow{
		{FullPath: "src/a.cs", Filename: "a.cs", Method: "A::run()", Changes: 2, ChgLines: 7, PreviousName: "A::go()"},
		{FullPath: "src/x;y.cs", Filename: "x;y.cs", Method: "X::f(int, string)", Changes: 1},
	}

	var plain bytes.Buffer
	require.NoError(t, WriteMethods(&plain, rows, false))
	assert.Equal(t,
		"Full_path;Filename;Method;Changes;ChgLines\n"+
			"src/a.cs;a.cs;A::run();2;7\n"+
			"\"src/x;y.cs\";\"x;y.cs\";X::f(int, string);1;0\n",
		plain.String())

	var withPrev bytes.Buffer
	require.NoError(t, WriteMethods(&withPrev, rows[:1], true))
	assert.Equal(t,
		"Full_path;Filename;Method;Changes;ChgLines;Previous_name\n"+
			"src/a.cs;a.cs;A::run();2;7;A::go()\n",
		withPrev.String())
}

func TestWriteTrash(t *testing.T) {
	var buf bytes.Buffer
	rows := []models.TrashRow{{CommitHash: "abc123", Date: t0, Method: "A::old()", Changes: 3, ChgLines: 11}}

	require.NoError(t, WriteTrash(&buf, rows))
	assert.Equal(t,
		"Commit_hash;Date;Method;Changes;ChgLines\n"+
			"abc123;2017-06-01 12:30:00+02:00;A::old();3;11\n",
		buf.String())
}

func TestTargetFor(t *testing.T) {
	assert.Equal(t, Target{MethodsFile: "commits.csv", TrashFile: "removed.csv"}, TargetFor("", false))
	assert.Equal(t, Target{MethodsFile: "commits-from-v1.csv", TrashFile: "removed-from-v1.csv", WithPrevious: true}, TargetFor("from-v1", true))
}

type fakeStore struct {
	mu    sync.Mutex
	saved []string
	err   error
}

func (f *fakeStore) SaveResult(_ context.Context, r *models.RunResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, r.Run.ID)
	return f.err
}

type fakeGraph struct {
	runs []string
}

func (f *fakeGraph) ExportResult(_ context.Context, r *models.RunResult) error {
	f.runs = append(f.runs, r.Run.ID)
	return nil
}

func TestExporterFansOut(t *testing.T) {
	e, _, _ := minedEngine(t)
	res := FromEngine(e, models.Run{ID: "r1", Label: "to-v1"})
	dir := filepath.Join(t.TempDir(), "out")
	store := &fakeStore{}
	graph := &fakeGraph{}
	logger, _ := test.NewNullLogger()

	x := New(dir, true, store, graph, logger)
	written, err := x.Export(context.Background(), res, TargetFor("to-v1", false))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "commits-to-v1.csv"),
		filepath.Join(dir, "removed-to-v1.csv"),
	}, written)
	assert.Equal(t, []string{"r1"}, store.saved)
	assert.Equal(t, []string{"r1"}, graph.runs)

	data, err := os.ReadFile(filepath.Join(dir, "commits-to-v1.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "src/a.cs;a.cs;A::run();2;0\n")

	_, err = os.Stat(filepath.Join(dir, "commits-to-v1.csv.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestExporterWithoutCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "never")
	store := &fakeStore{}

	written, err := New(dir, false, store, nil, nil).Export(context.Background(), &models.RunResult{Run: models.Run{ID: "r"}}, TargetFor("", false))
	require.NoError(t, err)
	assert.Empty(t, written)
	assert.Equal(t, []string{"r"}, store.saved)

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestExporterReportsStoreFailure(t *testing.T) {
	store := &fakeStore{err: fmt.Errorf("disk full")}

	_, err := New(t.TempDir(), true, store, nil, nil).Export(context.Background(), &models.RunResult{Run: models.Run{ID: "r"}}, TargetFor("", false))
	assert.ErrorContains(t, err, "disk full")
}

func TestSummaryRoundTrip(t *testing.T) {
	e, stats, counts := minedEngine(t)
	run := models.Run{ID: "r1", Label: "all", StartedAt: t0.UTC(), FinishedAt: t0.UTC().Add(time.Minute), Commits: stats.Commits}

	s := NewSummary(run, stats, e, counts)
	assert.Equal(t, 2, s.Commits)
	assert.Equal(t, 1, s.Files)
	assert.Equal(t, 2, s.Methods)
	assert.Equal(t, 1, s.Trashed)
	assert.Equal(t, 3, s.Created)
	assert.Nil(t, s.Inconsistencies)

	path := filepath.Join(t.TempDir(), "summary.yaml")
	require.NoError(t, WriteSummary(path, s))

	back, err := ReadSummary(path)
	require.NoError(t, err)
	assert.Equal(t, s.RunID, back.RunID)
	assert.Equal(t, s.Methods, back.Methods)
	assert.True(t, s.StartedAt.Equal(back.StartedAt))
}
