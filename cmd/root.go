// Package cmd wires the CLI surface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/novelgrab/novelgrab/internal/config"
	"github.com/novelgrab/novelgrab/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

// env carries what every subcommand needs after configuration is loaded.
type env struct {
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() (*cobra.Command, *env) {
	e := &env{}
	cmd := &cobra.Command{
		Use:   "novelgrab",
		Short: "Download serialized web novels chapter by chapter.",
		Long: `novelgrab extracts a chapter catalog from a novel's index page,
fetches every chapter with bounded concurrency and politeness delays,
and assembles the result into a single markdown document. Interrupted
runs resume from durable progress without refetching finished chapters.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			level := zapcore.InfoLevel
			if verbose {
				level = zapcore.DebugLevel
			}
			logger, err := logging.NewAt(cfg.Logging.Development, level)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			e.cfg = cfg
			e.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches working directory)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newCrawlCmd(e))
	cmd.AddCommand(newAssembleCmd(e))
	cmd.AddCommand(newStatusCmd(e))

	return cmd, e
}

// Execute is the main entry point.
func Execute() {
	root, e := newRootCmd()
	if err := root.Execute(); err != nil {
		if e.logger != nil {
			e.logger.Error("command failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
