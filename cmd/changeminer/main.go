package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/changeminer/internal/config"
	"github.com/rohankatakam/changeminer/internal/logging"
	"github.com/rohankatakam/changeminer/internal/output"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile  string
	verbose  bool
	quiet    bool
	logLevel string
	logger   *logging.Logger
	cfg      *config.Config
)

func main() {
	err := rootCmd.Execute()
	if logger != nil {
		logger.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "changeminer",
	Short: "Method-level change history mining for C# and Java repositories",
	Long: `changeminer replays a repository's commit history and keeps a stable
identity for every method across renames, moves, signature edits and file
renames. It reports how often and how heavily each method changed.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		bootstrap := logrus.New()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			if cfgFile != "" {
				return err
			}
			bootstrap.WithError(err).Warn("Failed to load config, using defaults")
			cfg = config.Default()
		}

		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		} else if verbose {
			level = "debug"
		} else if quiet {
			level = "warn"
		}

		logger, err = logging.New(logging.Config{
			Level:      level,
			OutputFile: cfg.Logging.File,
			JSONFormat: cfg.Logging.JSON,
			AddSource:  verbose,
		})
		if err != nil {
			return err
		}

		for _, w := range cfg.Validate().Warnings {
			logger.Warn(w)
		}
		output.ConfigureColor(os.Stdout)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: changeminer.yaml in .changeminer/, . or ~/.changeminer/)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "print one summary line")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`changeminer {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(mineCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(configCmd)
}
