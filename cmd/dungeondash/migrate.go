// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/dungeondash/dungeondash/internal/config"
	"github.com/dungeondash/dungeondash/internal/store"
)

// Migrator is the subset of store.Migrator the migrate commands use.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Status() (*store.Status, error)
	Close() error
}

// migratorFactory opens a migrator. Replaced in tests.
var migratorFactory = func(databaseURL string) (Migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
		Long: `Apply, roll back or inspect the embedded PostgreSQL schema migrations.
The database URL comes from DATABASE_URL or database.url in the config file.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m Migrator) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (all of them unless --steps is set)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m Migrator) error {
				if steps > 0 {
					cmd.Printf("Rolling back %d migration(s)...\n", steps)
					if err := m.Steps(-steps); err != nil {
						return err
					}
				} else {
					cmd.Println("Rolling back all migrations...")
					if err := m.Down(); err != nil {
						return err
					}
				}
				cmd.Println("Rollback completed successfully")
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 0, "number of migrations to roll back (0 = all)")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m Migrator) error {
				status, err := m.Status()
				if err != nil {
					return err
				}
				cmd.Printf("Current version: %d", status.Current)
				if status.Dirty {
					cmd.Print(" (dirty)")
				}
				cmd.Println()
				for _, mig := range status.Applied {
					cmd.Printf("  [x] %06d_%s\n", mig.Version, mig.Name)
				}
				for _, mig := range status.Pending {
					cmd.Printf("  [ ] %06d_%s\n", mig.Version, mig.Name)
				}
				return nil
			})
		},
	})

	return cmd
}

// databaseURL resolves the database URL from the environment, then the
// config file.
func databaseURL() (string, error) {
	if url := os.Getenv(config.EnvDatabaseURL); url != "" {
		return url, nil
	}
	path, err := configPath()
	if err != nil {
		return "", err
	}
	if path != "" {
		cfg, err := config.Load(path, nil)
		if err != nil {
			return "", err
		}
		if cfg.Database.URL != "" {
			return cfg.Database.URL, nil
		}
	}
	return "", oops.Code("CONFIG_INVALID").Errorf("%s environment variable or database.url is required", config.EnvDatabaseURL)
}

func withMigrator(fn func(Migrator) error) (err error) {
	url, err := databaseURL()
	if err != nil {
		return err
	}

	m, err := migratorFactory(url)
	if err != nil {
		return oops.With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(m)
}
