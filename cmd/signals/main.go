// Package main is the entry point for the signals command line tool.
package main

import (
	"fmt"
	"os"

	"github.com/dshills/signals/internal/config"
	"github.com/dshills/signals/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// globals holds the state shared by every subcommand.
type globals struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger zerolog.Logger
	level  *logging.Level
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "signals",
		Short: "Exercise and observe weak-owner typed signals",
		Long: `signals drives the in-process signal library from the command line.

It can replay the delivery scenarios, benchmark the dispatch modes and
watch a configuration file for live reload while exporting metrics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "signals.toml", "Path to configuration file")
	flags.StringVar(&g.logLevel, "log-level", "", "Log level override (trace, debug, info, warn, error)")
	flags.StringVar(&g.logFormat, "log-format", "", "Log format override (console, json)")

	rootCmd.AddCommand(
		demoCmd(g),
		benchCmd(g),
		watchCmd(g),
		versionCmd(),
	)
	return rootCmd
}

// load reads the configuration, applies flag overrides and builds the
// logger.
func (g *globals) load(cmd *cobra.Command) error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, level, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	g.cfg = cfg
	g.logger = logger
	g.level = level
	return nil
}
