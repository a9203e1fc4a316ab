package main

import (
	"github.com/spf13/cobra"

	"github.com/palisade/palisade/internal/config"
	"github.com/palisade/palisade/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Palisade CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "palisade",
		Short: "Palisade - credential and session-trust core",
		Long: `Palisade answers "is this identifier/secret combination currently
valid" for a fleet of front ends: password verification with transparent
hash migration, per-origin rate limiting, exponential account lockout,
TOTP second factor, single-use password resets, and an append-only
audit trail.`,
		SilenceUsage: true,
	}

	// Global flag for config file path, plus dotted overrides matching
	// the config keys.
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	cmd.PersistentFlags().String("logging.format", "json", "log format (json or text)")
	cmd.PersistentFlags().String("logging.level", "info", "minimum log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("database.url", "", "PostgreSQL connection string (default: $DATABASE_URL)")
	cmd.PersistentFlags().String("metrics.addr", "127.0.0.1:9100", "observability listen address (empty = disabled)")

	// Add subcommands
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewAccountCmd())
	cmd.AddCommand(NewAuditCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewObserveCmd())

	return cmd
}

// loadConfig resolves the effective configuration for a subcommand and
// installs the default logger.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}
	logging.SetDefault("palisade", version, cfg.Logging.Format, cfg.Logging.Level)
	return cfg, nil
}
