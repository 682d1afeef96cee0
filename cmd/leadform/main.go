// Package main provides the leadform command line: it enriches, validates and
// submits marketing lead forms, and serves a capture endpoint to post them to.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/leadform/internal/config"
	"github.com/jonathan/leadform/internal/observability"
)

const serviceName = "leadform"

var (
	configFile string
	verbose    bool

	appConfig       *config.Config
	logger          = zap.NewNop()
	shutdownTracing = func(context.Context) error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "leadform",
	Short: "Lead form enrichment and submission",
	Long: "leadform enriches marketing lead forms with visitor identity, campaign attribution " +
		"and geo consent data, validates them the way the page does and posts them to the form action.",
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed debug information")
}

func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Resolve(configFile)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Verbose = true
	}
	appConfig = cfg

	if logger, err = observability.NewLogger(cfg.Verbose); err != nil {
		return err
	}
	if shutdownTracing, err = observability.SetupTracing(cmd.Context(), serviceName); err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	return nil
}

func teardown(cmd *cobra.Command, _ []string) error {
	_ = logger.Sync()
	return shutdownTracing(cmd.Context())
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
