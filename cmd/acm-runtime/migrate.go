package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	_ "github.com/onap/policy-clamp-acm/migrations"

	"github.com/onap/policy-clamp-acm/internal/infrastructure/config"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/database"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := openForMigration(cmd)
				if err != nil {
					return err
				}
				defer db.Close() //nolint:errcheck // Process exits after the command

				if err := db.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("running migrations: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := openForMigration(cmd)
				if err != nil {
					return err
				}
				defer db.Close() //nolint:errcheck // Process exits after the command

				if err := db.MigrateDown(cmd.Context()); err != nil {
					return fmt.Errorf("rolling back migration: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "last migration rolled back")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := openForMigration(cmd)
				if err != nil {
					return err
				}
				defer db.Close() //nolint:errcheck // Process exits after the command

				applied, pending, err := db.GetMigrationStatus(cmd.Context())
				if err != nil {
					return fmt.Errorf("reading migration status: %w", err)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tSTATE\tDETAIL")
				for _, r := range applied {
					fmt.Fprintf(tw, "%s\tapplied\t%s\n", r.Version, r.AppliedAt.Format("2006-01-02 15:04:05"))
				}
				for _, m := range pending {
					fmt.Fprintf(tw, "%s\tpending\t%s\n", m.Version, m.Name)
				}
				return tw.Flush()
			},
		},
	)
	return cmd
}

// openForMigration opens the configured database. A missing config file
// falls back to the built-in defaults so the schema can be prepared before
// the runtime is configured.
func openForMigration(cmd *cobra.Command) (*database.DB, error) {
	path := configPath(cmd)
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return openDatabase(cfg)
}
