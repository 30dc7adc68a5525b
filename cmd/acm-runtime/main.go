// ACM Runtime - Automation Composition Management
//
// This is the main entry point for the ACM runtime. The runtime keeps the
// catalogue of composition definitions and their instances, drives
// lifecycle transitions across the participants that host each element,
// and supervises their progress.
//
// Subcommands:
//   - serve: run the runtime (default)
//   - migrate up|down|status: manage the database schema
//   - version: print build information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnvVar names the environment variable overriding the config path.
const configEnvVar = "ACM_CONFIG"

func main() {
	// Cancel on Ctrl+C or SIGTERM so every subcommand shuts down cleanly
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running the root command without a
// subcommand serves the runtime.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "acm-runtime",
		Short:         "Automation composition lifecycle coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath(cmd))
		},
	}
	root.PersistentFlags().String("config", "", "path to the YAML configuration file (default $"+configEnvVar+" or "+defaultConfigPath+")")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ACM runtime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath(cmd))
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "acm-runtime %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// configPath returns the configuration file path.
// The --config flag wins over ACM_CONFIG, which wins over the default.
func configPath(cmd *cobra.Command) string {
	if f := cmd.Flag("config"); f != nil && f.Value.String() != "" {
		return f.Value.String()
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}
