// Package cli implements the rewind command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tessro/rewind/internal/config"
	rwerrors "github.com/tessro/rewind/internal/errors"
	"github.com/tessro/rewind/internal/logging"
)

var (
	cfgFile string
	jsonOut bool
	verbose bool

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "rewind",
	Short: "Record and replay Spotify listening sessions",
	Long: `Rewind records what a Spotify Connect device plays, including the pauses,
and replays the session later with the same timing.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		return initLogger()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.rewindrc)")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig() error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", rwerrors.ErrInvalidConfig, err)
	}

	return nil
}

func initLogger() error {
	lc := logging.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   true,
		Console:    verbose,
	}
	if verbose {
		lc.Level = "debug"
	}

	l, err := logging.New(lc)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if JSONOutput() {
			printJSON(map[string]string{
				"error":      err.Error(),
				"suggestion": rwerrors.GetSuggestion(err),
			})
		} else {
			fmt.Fprintln(os.Stderr, rwerrors.Format(err))
		}
		os.Exit(1)
	}
}

// Config returns the loaded configuration.
func Config() *config.Config {
	return cfg
}

// JSONOutput returns true if JSON output is requested.
func JSONOutput() bool {
	return jsonOut
}

// Verbose returns true if verbose output is requested.
func Verbose() bool {
	return verbose
}
