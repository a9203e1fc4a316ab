package main

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/palisade/palisade/internal/config"
	"github.com/palisade/palisade/internal/xdg"
)

// initConfig holds flags for the init command.
type initConfig struct {
	force bool
}

// NewInitCmd creates the init subcommand.
func NewInitCmd() *cobra.Command {
	cfg := &initConfig{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a configuration file populated with the default settings. The
target is --config if given, otherwise the XDG config directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.force, "force", false, "overwrite an existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, cfg *initConfig) error {
	path := configFile
	if path == "" {
		path = filepath.Join(xdg.ConfigDir(), "config.yaml")
	}

	if !cfg.force {
		if _, err := os.Stat(path); err == nil {
			return oops.Code("CONFIG_EXISTS").With("path", path).
				Errorf("config file already exists (use --force to overwrite)")
		}
	}

	defaults := config.Default()
	defaults.Database.URL = os.Getenv("DATABASE_URL")

	if err := config.Save(defaults, path); err != nil {
		return err
	}

	cmd.Printf("Wrote default configuration to %s\n", path)
	return nil
}
