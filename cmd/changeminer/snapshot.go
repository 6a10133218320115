package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/changeminer/internal/output"
	"github.com/rohankatakam/changeminer/internal/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect saved registry snapshots",
	Long: `Snapshots hold the method registry and trash after a mining run. Pass a
snapshot label to 'changeminer mine --resume' to continue mining from it.`,
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := snapshot.Open(cfg.Snapshot.Path, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		metas, err := store.List()
		if err != nil {
			return err
		}
		output.RenderSnapshots(os.Stdout, metas)
		return nil
	},
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show <label>",
	Short: "Show one snapshot and verify its checksum",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := snapshot.Open(cfg.Snapshot.Path, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		// Load decodes the blob, which verifies the checksum
		_, meta, err := store.Load(args[0])
		if err != nil {
			return err
		}
		output.RenderSnapshot(os.Stdout, meta)
		return nil
	},
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <label>",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := snapshot.Open(cfg.Snapshot.Path, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Deleted snapshot %s\n", args[0])
		return nil
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)
	snapshotCmd.AddCommand(snapshotDeleteCmd)
}
