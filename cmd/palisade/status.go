package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/palisade/palisade/internal/store"
)

// SchemaStatus holds the migration state of the database.
type SchemaStatus struct {
	Version uint     `json:"version"`
	Dirty   bool     `json:"dirty"`
	Pending []string `json:"pending,omitempty"`
}

// statusConfig holds flags for the status command.
type statusConfig struct {
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database schema status",
		Long:  `Show the applied migration version and any pending migrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *store.Migrator) error {
				status, err := collectSchemaStatus(m)
				if err != nil {
					return err
				}

				if cfg.jsonOutput {
					data, err := json.MarshalIndent(status, "", "  ")
					if err != nil {
						return fmt.Errorf("failed to marshal status: %w", err)
					}
					cmd.Println(string(data))
					return nil
				}

				cmd.Println(formatSchemaStatus(status))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

// collectSchemaStatus queries the migrator for version and pending work.
func collectSchemaStatus(m *store.Migrator) (SchemaStatus, error) {
	version, dirty, err := m.Version()
	if err != nil {
		return SchemaStatus{}, err
	}

	pending, err := m.PendingMigrations()
	if err != nil {
		return SchemaStatus{}, err
	}

	status := SchemaStatus{Version: version, Dirty: dirty}
	for _, v := range pending {
		name, nameErr := store.MigrationName(v)
		if nameErr != nil || name == "" {
			name = fmt.Sprintf("%06d", v)
		}
		status.Pending = append(status.Pending, name)
	}

	return status, nil
}

// formatSchemaStatus renders the status as human-readable lines.
func formatSchemaStatus(status SchemaStatus) string {
	out := fmt.Sprintf("Schema version: %d", status.Version)
	if status.Dirty {
		out += " (dirty - repair with 'palisade migrate force')"
	}
	if len(status.Pending) == 0 {
		out += "\nPending migrations: none"
	} else {
		out += "\nPending migrations:"
		for _, name := range status.Pending {
			out += "\n  " + name
		}
	}
	return out
}
