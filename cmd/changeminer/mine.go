package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/changeminer/internal/config"
	"github.com/rohankatakam/changeminer/internal/errors"
	"github.com/rohankatakam/changeminer/internal/export"
	"github.com/rohankatakam/changeminer/internal/git"
	"github.com/rohankatakam/changeminer/internal/graph"
	"github.com/rohankatakam/changeminer/internal/ingestion"
	"github.com/rohankatakam/changeminer/internal/metrics"
	"github.com/rohankatakam/changeminer/internal/mining"
	"github.com/rohankatakam/changeminer/internal/models"
	"github.com/rohankatakam/changeminer/internal/output"
	"github.com/rohankatakam/changeminer/internal/snapshot"
	"github.com/rohankatakam/changeminer/internal/storage"
	"github.com/rohankatakam/changeminer/internal/treesitter"
)

var (
	mineInput         string
	mineFrom          string
	mineTo            string
	mineSplitAt       string
	mineResume        string
	mineLabel         string
	mineSnapshotLabel string
	mineDump          string
	mineOutput        string
	mineNoCSV         bool
	mineNoStore       bool
	mineNoGraph       bool
)

var mineCmd = &cobra.Command{
	Use:   "mine [repo]",
	Short: "Replay commit history and record method-level changes",
	Long: `Mine walks the commit history of a repository (or a JSON-lines commit
stream) in order and reconciles every file modification against the method
registry. Methods keep their identity across renames, moves, parameter edits
and class renames.

Results are written as CSV files, to the export store, and optionally to Neo4j.

With --split-at the history is mined in two periods: up to and including the
revision, and after it. Histories are cleared at the split so the second
period reports only its own changes, with each method's previous name.`,
	Example: `  changeminer mine ./my-repo
  changeminer mine https://github.com/org/project.git --split-at v2.0
  changeminer mine --input commits.jsonl --no-store
  changeminer mine ./my-repo --resume latest`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMine,
}

func init() {
	mineCmd.Flags().StringVar(&mineInput, "input", "", "read commits from a JSON-lines file (\"-\" for stdin)")
	mineCmd.Flags().StringVar(&mineFrom, "from", "", "start after this revision (git only)")
	mineCmd.Flags().StringVar(&mineTo, "to", "", "stop at this revision (inclusive)")
	mineCmd.Flags().StringVar(&mineSplitAt, "split-at", "", "report before and after this revision separately")
	mineCmd.Flags().StringVar(&mineResume, "resume", "", "restore the snapshot with this label before mining")
	mineCmd.Flags().StringVar(&mineLabel, "label", "", "run label, used in export file names")
	mineCmd.Flags().StringVar(&mineSnapshotLabel, "snapshot-label", "latest", "label for the snapshot saved after the run")
	mineCmd.Flags().StringVar(&mineDump, "dump", "", "record the mined commits as JSON lines to this file")
	mineCmd.Flags().StringVarP(&mineOutput, "output", "o", "", "export directory (overrides export.directory)")
	mineCmd.Flags().BoolVar(&mineNoCSV, "no-csv", false, "skip CSV files")
	mineCmd.Flags().BoolVar(&mineNoStore, "no-store", false, "skip the export store")
	mineCmd.Flags().BoolVar(&mineNoGraph, "no-graph", false, "skip the Neo4j export")
}

// phase is one mined period with its own run record and export files
type phase struct {
	label         string
	from, to      string
	target        export.Target
	snapshotLabel string
	checkpoint    bool
}

// miner holds everything one invocation of mine needs
type miner struct {
	engine    *mining.Engine
	counts    *mining.CountingObserver
	collector *metrics.Collector
	exporter  *export.Exporter
	snapshots *snapshot.Store
	provider  *provider
	formatter output.Formatter

	lastCommit string
	log        logrus.FieldLogger
}

func runMine(cmd *cobra.Command, args []string) error {
	applyMineFlags(args)
	if err := cfg.Validate().Err(); err != nil {
		return err
	}
	if cfg.Provider.Type == "jsonl" && cfg.Provider.From != "" {
		return errors.ConfigErrorf("--from requires the git provider")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := cfg.EngineOptions()
	if err != nil {
		return err
	}

	m := &miner{
		counts:    mining.NewCountingObserver(),
		collector: metrics.NewCollector(),
		formatter: output.NewFormatter(output.ParseVerbosity(quiet, verbose)),
		log:       logger.WithField("command", "mine"),
	}
	m.engine = mining.NewEngine(opts, logger, m.counts, m.collector)

	if cfg.Snapshot.Enabled || mineResume != "" {
		m.snapshots, err = snapshot.Open(cfg.Snapshot.Path, logger)
		if err != nil {
			return err
		}
		defer m.snapshots.Close()
	}

	if mineResume != "" {
		if err := m.resume(mineResume); err != nil {
			return err
		}
	}

	exporter, closeSinks, err := openSinks(ctx)
	if err != nil {
		return err
	}
	defer closeSinks()
	m.exporter = exporter

	m.provider, err = openProvider(ctx, cfg.Provider)
	if err != nil {
		return err
	}
	defer m.provider.Close()

	for _, ph := range plan() {
		if err := m.runPhase(ctx, ph); err != nil {
			return err
		}
	}

	if cfg.Metrics.Textfile != "" {
		if err := m.collector.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return err
		}
		m.log.WithField("path", cfg.Metrics.Textfile).Debug("metrics written")
	}
	return nil
}

// applyMineFlags folds command-line overrides into the loaded config
func applyMineFlags(args []string) {
	if len(args) == 1 {
		cfg.Provider.Type = "git"
		cfg.Provider.RepoPath = args[0]
	}
	if mineInput != "" {
		cfg.Provider.Type = "jsonl"
		cfg.Provider.Input = mineInput
	}
	if mineFrom != "" {
		cfg.Provider.From = mineFrom
	}
	if mineTo != "" {
		cfg.Provider.To = mineTo
	}
	if mineOutput != "" {
		cfg.Export.Directory = mineOutput
	}
	if mineNoCSV {
		cfg.Export.CSV = false
	}
	if mineNoStore {
		cfg.Storage.Type = storage.TypeNone
	}
	if mineNoGraph {
		cfg.Neo4j.Enabled = false
	}
}

// plan lays out the mined periods
func plan() []phase {
	base := mineSnapshotLabel
	if mineSplitAt == "" {
		return []phase{{
			label:         mineLabel,
			from:          cfg.Provider.From,
			to:            cfg.Provider.To,
			target:        export.TargetFor(mineLabel, mineResume != ""),
			snapshotLabel: base,
		}}
	}

	tag := fileSafe(mineSplitAt)
	before, after := "to-"+tag, "from-"+tag
	if mineLabel != "" {
		before, after = mineLabel+"-"+before, mineLabel+"-"+after
	}
	return []phase{
		{
			label:         before,
			from:          cfg.Provider.From,
			to:            mineSplitAt,
			target:        export.TargetFor(before, mineResume != ""),
			snapshotLabel: base + "-" + before,
			checkpoint:    true,
		},
		{
			label:         after,
			from:          mineSplitAt,
			to:            cfg.Provider.To,
			target:        export.TargetFor(after, true),
			snapshotLabel: base,
		},
	}
}

func fileSafe(rev string) string {
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_").Replace(rev)
}

func (m *miner) resume(label string) error {
	st, meta, err := m.snapshots.Load(label)
	if err != nil {
		return err
	}
	if err := m.engine.Restore(st); err != nil {
		return err
	}
	m.lastCommit = meta.LastCommit
	if cfg.Provider.Type == "git" && cfg.Provider.From == "" {
		cfg.Provider.From = meta.LastCommit
	}
	m.log.WithFields(logrus.Fields{
		"snapshot":    label,
		"last_commit": meta.LastCommit,
		"files":       meta.Files,
		"methods":     meta.Methods,
	}).Info("snapshot restored")
	return nil
}

func (m *miner) runPhase(ctx context.Context, ph phase) error {
	m.counts.Reset()
	log := m.log.WithField("label", ph.label)

	src, until, err := m.provider.span(ctx, ph.from, ph.to)
	if err != nil {
		return err
	}

	run := models.Run{
		ID:        uuid.NewString(),
		Label:     ph.label,
		RepoPath:  m.provider.location(),
		StartedAt: time.Now().UTC(),
	}
	log.WithFields(logrus.Fields{"run_id": run.ID, "from": ph.from, "to": ph.to}).Info("mining started")

	stats, err := m.engine.Run(ctx, src)
	closeErr := src.Close()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityHigh, "mining interrupted").
			WithContext("commits", stats.Commits)
	}
	if closeErr != nil {
		return closeErr
	}
	if until != nil && ph.checkpoint && !until.Reached() {
		log.WithField("revision", ph.to).Warn("split revision not found in commit stream")
	}

	run.FinishedAt = time.Now().UTC()
	run.Commits = stats.Commits
	if m.counts.LastCommit != "" {
		m.lastCommit = m.counts.LastCommit
	}

	// Rows are taken before the checkpoint clears histories
	result := export.FromEngine(m.engine, run)
	outputs, err := m.exporter.Export(ctx, result, ph.target)
	if err != nil {
		return err
	}
	m.collector.ObserveRun(m.engine, stats)

	summary := export.NewSummary(run, stats, m.engine, m.counts)
	summary.Outputs = outputs

	if m.snapshots != nil && cfg.Snapshot.Enabled {
		meta, err := m.snapshots.Save(ph.snapshotLabel, m.engine.Snapshot(), snapshot.Meta{
			RunID:      run.ID,
			LastCommit: m.lastCommit,
			Commits:    stats.Commits,
		})
		if err != nil {
			return err
		}
		summary.Snapshot = meta.Label
	}

	if cfg.Export.CSV {
		name := "summary.yaml"
		if ph.label != "" {
			name = "summary-" + ph.label + ".yaml"
		}
		if err := export.WriteSummary(filepath.Join(m.exporter.Dir(), name), summary); err != nil {
			return err
		}
	}

	if ph.checkpoint {
		m.engine.Ledger().Checkpoint()
		m.engine.Ledger().ClearTrash()
		log.Info("checkpoint: histories and trash cleared")
	}

	return m.formatter.Format(summary, os.Stdout)
}

// openSinks connects the export store and the graph as configured
func openSinks(ctx context.Context) (*export.Exporter, func(), error) {
	var (
		store   export.ResultStore
		gw      export.GraphWriter
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Storage.Type != storage.TypeNone {
		target := cfg.Storage.LocalPath
		if cfg.Storage.Type == storage.TypePostgres {
			target = cfg.Storage.PostgresDSN
		}
		s, err := storage.Open(ctx, cfg.Storage.Type, target, logger)
		if err != nil {
			return nil, closeAll, err
		}
		store = s
		closers = append(closers, func() { s.Close() })
	}

	if cfg.Neo4j.Enabled {
		client, err := graph.NewClient(ctx, graph.Config{
			URI:      cfg.Neo4j.URI,
			User:     cfg.Neo4j.User,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
		}, logger)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		gw = client
		closers = append(closers, func() { client.Close(context.Background()) })
	}

	return export.New(cfg.Export.Directory, cfg.Export.CSV, store, gw, logger), closeAll, nil
}

// provider opens commit streams from git or a JSON-lines file
type provider struct {
	cfg      config.ProviderConfig
	repo     *git.Repository
	stream   *ingestion.JSONLSource
	dumpFile *os.File
	dump     *ingestion.JSONLWriter
}

func openProvider(ctx context.Context, pc config.ProviderConfig) (*provider, error) {
	p := &provider{cfg: pc}

	switch pc.Type {
	case "jsonl":
		stream, err := ingestion.OpenJSONL(pc.Input, logger)
		if err != nil {
			return nil, err
		}
		p.stream = stream
	default:
		path := pc.RepoPath
		if git.IsRemoteURL(path) {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, errors.FileSystemError(err, "failed to resolve home directory")
			}
			path, err = git.CloneOrUpdate(ctx, pc.RepoPath, filepath.Join(homeDir, ".changeminer", "repos"), logger)
			if err != nil {
				return nil, err
			}
		}
		if !treesitter.IsAvailable() {
			logger.Warn("built without tree-sitter; git modifications will carry no methods")
		}
		repo, err := git.Open(ctx, path, pc.MaxGitCallsPerSecond, logger)
		if err != nil {
			return nil, err
		}
		p.repo = repo
	}

	if mineDump != "" {
		f, err := os.Create(mineDump)
		if err != nil {
			p.Close()
			return nil, errors.FileSystemError(err, "failed to create dump file").WithContext("path", mineDump)
		}
		p.dumpFile = f
		p.dump = ingestion.NewJSONLWriter(f)
	}
	return p, nil
}

// span returns the commits after from up to and including to. A JSON-lines
// stream is read once, so consecutive spans continue where the last stopped
// and from is ignored; the returned UntilSource is then non-nil.
func (p *provider) span(ctx context.Context, from, to string) (mining.CommitSource, *mining.UntilSource, error) {
	var (
		src   mining.CommitSource
		until *mining.UntilSource
	)
	if p.stream != nil {
		until = mining.NewUntilSource(p.stream, to)
		src = until
	} else {
		gs, err := git.NewSource(ctx, p.repo, treesitter.NewExtractor(), git.SourceOptions{
			From:       from,
			To:         to,
			Extensions: p.cfg.Extensions,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		src = gs
	}
	if p.dump != nil {
		src = ingestion.NewTeeSource(src, p.dump)
	}
	return src, until, nil
}

// location names the mined repository in run records
func (p *provider) location() string {
	if p.repo != nil {
		return p.cfg.RepoPath
	}
	return p.cfg.Input
}

// Close releases the stream and the dump file
func (p *provider) Close() error {
	var firstErr error
	if p.stream != nil {
		firstErr = p.stream.Close()
	}
	if p.dumpFile != nil {
		if err := p.dump.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := p.dumpFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		logger.WithFields(logrus.Fields{"path": mineDump, "commits": p.dump.Count()}).Info("commit stream recorded")
	}
	return firstErr
}
