package export

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/changeminer/internal/errors"
	"github.com/rohankatakam/changeminer/internal/models"
)

// ResultStore persists a run, e.g. storage.Store
type ResultStore interface {
	SaveResult(ctx context.Context, result *models.RunResult) error
}

// GraphWriter writes a run to a graph database, e.g. graph.Client
type GraphWriter interface {
	ExportResult(ctx context.Context, result *models.RunResult) error
}

// Target names the CSV files of one export. Empty names skip that file.
type Target struct {
	MethodsFile  string
	TrashFile    string
	WithPrevious bool
}

// TargetFor returns the file names used for label, e.g. "commits-to-v1.csv"
// and "removed-to-v1.csv" for label "to-v1", or "commits.csv" and
// "removed.csv" for an empty label
func TargetFor(label string, withPrevious bool) Target {
	if label == "" {
		return Target{MethodsFile: "commits.csv", TrashFile: "removed.csv", WithPrevious: withPrevious}
	}
	return Target{
		MethodsFile:  "commits-" + label + ".csv",
		TrashFile:    "removed-" + label + ".csv",
		WithPrevious: withPrevious,
	}
}

// Exporter writes one run result to every configured sink concurrently
type Exporter struct {
	dir    string
	csv    bool
	store  ResultStore
	graph  GraphWriter
	logger logrus.FieldLogger
}

// New creates an exporter. store and graph may be nil.
func New(dir string, writeCSV bool, store ResultStore, graph GraphWriter, logger logrus.FieldLogger) *Exporter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Exporter{
		dir:    dir,
		csv:    writeCSV,
		store:  store,
		graph:  graph,
		logger: logger.WithField("component", "export"),
	}
}

// Dir returns the output directory
func (x *Exporter) Dir() string { return x.dir }

// Export fans result out to CSV files, the store and the graph. It returns
// the paths of the files written; the first failing sink cancels the rest.
func (x *Exporter) Export(ctx context.Context, result *models.RunResult, target Target) ([]string, error) {
	if x.csv {
		if err := os.MkdirAll(x.dir, 0755); err != nil {
			return nil, errors.FileSystemError(err, "failed to create export directory").WithContext("dir", x.dir)
		}
	}

	var (
		mu      sync.Mutex
		written []string
	)
	record := func(path string) {
		mu.Lock()
		written = append(written, path)
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)

	if x.csv && target.MethodsFile != "" {
		g.Go(func() error {
			path := filepath.Join(x.dir, target.MethodsFile)
			if err := writeFile(path, func(w io.Writer) error {
				return WriteMethods(w, result.Methods, target.WithPrevious)
			}); err != nil {
				return err
			}
			record(path)
			return nil
		})
	}

	if x.csv && target.TrashFile != "" {
		g.Go(func() error {
			path := filepath.Join(x.dir, target.TrashFile)
			if err := writeFile(path, func(w io.Writer) error {
				return WriteTrash(w, result.Trash)
			}); err != nil {
				return err
			}
			record(path)
			return nil
		})
	}

	if x.store != nil {
		g.Go(func() error {
			return x.store.SaveResult(ctx, result)
		})
	}

	if x.graph != nil {
		g.Go(func() error {
			return x.graph.ExportResult(ctx, result)
		})
	}

	if err := g.Wait(); err != nil {
		return written, err
	}

	x.logger.WithFields(logrus.Fields{
		"run_id":  result.Run.ID,
		"label":   result.Run.Label,
		"methods": len(result.Methods),
		"trashed": len(result.Trash),
		"files":   len(written),
	}).Info("export complete")
	return written, nil
}

// writeFile writes through a temporary file renamed into place on success
func writeFile(path string, fn func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.FileSystemError(err, "failed to create export file").WithContext("path", path)
	}

	bw := bufio.NewWriter(f)
	if err := fn(bw); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.FileSystemError(err, "failed to write export file").WithContext("path", path)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.FileSystemError(err, "failed to flush export file").WithContext("path", path)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.FileSystemError(err, "failed to close export file").WithContext("path", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.FileSystemError(err, "failed to move export file").WithContext("path", path)
	}
	return nil
}
