package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/changeminer/internal/errors"
	"github.com/rohankatakam/changeminer/internal/metrics"
	"github.com/rohankatakam/changeminer/internal/models"
	"github.com/rohankatakam/changeminer/internal/output"
	"github.com/rohankatakam/changeminer/internal/storage"
)

var (
	reportTop       int
	reportTrash     bool
	reportRunsLimit int
	reportMedium    int
	reportHigh      int
	reportHighLines int
)

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Show the most changed methods of a stored run",
	Long: `Report reads a run from the export store and lists its methods ranked by
change count, each classified by churn. Without a run id the newest run is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

var reportRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runReportRuns,
}

var reportHistoryCmd = &cobra.Command{
	Use:   "history <run-id> <file> <method>",
	Short: "Show every recorded change of one method",
	Args:  cobra.ExactArgs(3),
	RunE:  runReportHistory,
}

var reportPurgeCmd = &cobra.Command{
	Use:   "purge <run-id>...",
	Short: "Delete stored runs and all their rows",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReportPurge,
}

func init() {
	defaults := metrics.DefaultChurnThresholds()
	reportCmd.Flags().IntVarP(&reportTop, "top", "n", 20, "number of methods to list (0 for all)")
	reportCmd.Flags().BoolVar(&reportTrash, "trash", false, "also list removed methods")
	reportCmd.Flags().IntVar(&reportMedium, "medium-changes", defaults.MediumChanges, "changes at which churn is MEDIUM")
	reportCmd.Flags().IntVar(&reportHigh, "high-changes", defaults.HighChanges, "changes at which churn is HIGH")
	reportCmd.Flags().IntVar(&reportHighLines, "high-lines", defaults.HighLines, "changed lines at which churn is HIGH")

	reportRunsCmd.Flags().IntVar(&reportRunsLimit, "limit", 20, "number of runs to list (0 for all)")

	reportCmd.AddCommand(reportRunsCmd)
	reportCmd.AddCommand(reportHistoryCmd)
	reportCmd.AddCommand(reportPurgeCmd)
}

// openStore opens the configured export store for reading
func openStore(ctx context.Context) (storage.Store, error) {
	switch cfg.Storage.Type {
	case storage.TypeNone:
		return nil, errors.ConfigErrorf("no export store configured (storage.type is %q)", cfg.Storage.Type)
	case storage.TypePostgres:
		return storage.Open(ctx, cfg.Storage.Type, cfg.Storage.PostgresDSN, logger)
	default:
		return storage.Open(ctx, cfg.Storage.Type, cfg.Storage.LocalPath, logger)
	}
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := resolveRun(ctx, store, args)
	if err != nil {
		return err
	}

	rows, err := store.TopMethods(ctx, run.ID, reportTop)
	if err != nil {
		return err
	}

	th := metrics.ChurnThresholds{
		MediumChanges: reportMedium,
		HighChanges:   reportHigh,
		HighLines:     reportHighLines,
	}
	fmt.Fprintf(os.Stdout, "Run %s (%s), %d commits\n\n", run.ID, displayLabel(run), run.Commits)
	output.RenderTopMethods(os.Stdout, rows, th)

	if reportTrash {
		trash, err := store.TrashedMethods(ctx, run.ID)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout)
		output.RenderTrash(os.Stdout, trash)
	}
	return nil
}

// resolveRun returns the run named in args, or the newest stored run
func resolveRun(ctx context.Context, store storage.Store, args []string) (*models.Run, error) {
	if len(args) == 1 {
		run, err := store.GetRun(ctx, args[0])
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.ValidationErrorf("run %s not found", args[0])
		}
		return run, err
	}

	runs, err := store.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.ValidationErrorf("no runs stored yet; run 'changeminer mine' first")
	}
	return runs[0], nil
}

func displayLabel(run *models.Run) string {
	if run.Label == "" {
		return "full history"
	}
	return run.Label
}

func runReportRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, reportRunsLimit)
	if err != nil {
		return err
	}
	output.RenderRuns(os.Stdout, runs)
	return nil
}

func runReportHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.MethodEvents(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	output.RenderEvents(os.Stdout, events)
	return nil
}

func runReportPurge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.PurgeRuns(ctx, args)
	if err != nil {
		return err
	}
	logger.WithField("runs", n).Info("runs purged")
	fmt.Fprintf(os.Stdout, "Purged %d of %d runs\n", n, len(args))
	return nil
}
