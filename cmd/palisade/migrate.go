// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/palisade/palisade/internal/config"
	"github.com/palisade/palisade/internal/store"
)

// NewMigrateCmd creates the migrate subcommand tree.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back, or inspect schema migrations on the PostgreSQL database.`,
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateStepsCmd())
	cmd.AddCommand(newMigrateForceCmd())

	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *store.Migrator) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *store.Migrator) error {
				cmd.Println("Rolling back migrations...")
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Rollback completed successfully")
				return nil
			})
		},
	}
}

func newMigrateStepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "steps <n>",
		Short: "Apply n migrations (negative rolls back)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_ARGUMENT").With("steps", args[0]).
					Errorf("steps must be an integer")
			}
			return withMigrator(cmd, func(m *store.Migrator) error {
				if err := m.Steps(n); err != nil {
					return err
				}
				cmd.Printf("Applied %d migration step(s)\n", n)
				return nil
			})
		},
	}
}

func newMigrateForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Force the schema version without running migrations",
		Long: `Mark the database as being at the given migration version without
running any migrations. Use this to recover from a dirty migration state
after manual repair.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_ARGUMENT").With("version", args[0]).
					Errorf("version must be an integer")
			}
			return withMigrator(cmd, func(m *store.Migrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				cmd.Printf("Forced schema version to %d\n", v)
				return nil
			})
		},
	}
}

// withMigrator loads configuration, opens a migrator, runs fn, and
// closes the migrator.
func withMigrator(cmd *cobra.Command, fn func(*store.Migrator) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireDatabaseURL(cfg); err != nil {
		return err
	}

	m, err := store.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrf("warning: failed to close migrator: %v\n", closeErr)
		}
	}()

	return fn(m)
}

func requireDatabaseURL(cfg config.Config) error {
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("a database URL is required: set database.url or the DATABASE_URL environment variable")
	}
	return nil
}
