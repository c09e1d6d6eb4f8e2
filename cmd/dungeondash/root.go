// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dungeondash/dungeondash/internal/config"
	"github.com/dungeondash/dungeondash/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Dungeon Dash CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dungeondash",
		Short: "Dungeon Dash - accounts and sessions for the dungeon",
		Long: `Dungeon Dash serves player signup, login and session lookup
for the browser dungeon game, backed by PostgreSQL, Redis or memory.`,
		SilenceUsage: true,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/dungeondash/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSchemaCmd())

	return cmd
}

// configPath returns --config, or the XDG default when it exists.
func configPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	return xdg.DefaultConfigFile()
}

// loadConfig loads configuration honoring --config and the given flags.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	return config.Load(path, flags)
}
