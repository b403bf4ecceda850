// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PeerGate Contributors

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/peergate/peergate/internal/config"
	"github.com/peergate/peergate/internal/store"
)

// NewMigrateCmd creates the migrate subcommand. Running it without a
// subcommand applies all pending migrations.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Run all pending database migrations against the PostgreSQL database.`,
		RunE:  runMigrateUp,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE:  runMigrateDown,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "steps <n>",
		Short: "Apply n migrations up, or -n down",
		Args:  cobra.ExactArgs(1),
		RunE:  runMigrateSteps,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current migration version",
		RunE:  runMigrateVersion,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Force the migration version without running migrations",
		Long: `Force the recorded migration version after resolving a dirty
state by hand. Use with care; no migrations are run.`,
		Args: cobra.ExactArgs(1),
		RunE: runMigrateForce,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE:  runMigrateStatus,
	})

	return cmd
}

// getDatabaseURL resolves the database URL from the config file if one
// was given, falling back to the DATABASE_URL environment variable.
func getDatabaseURL() (string, error) {
	if configFile != "" {
		cfg, err := config.Load(configFile, nil)
		if err != nil {
			return "", err
		}
		if cfg.Database.URL != "" {
			return cfg.Database.URL, nil
		}
	}

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}
	return url, nil
}

// newMigrator builds a migrator for the configured database. The caller
// must Close it.
func newMigrator() (*store.Migrator, error) {
	databaseURL, err := getDatabaseURL()
	if err != nil {
		return nil, err
	}
	return store.NewMigrator(databaseURL)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)

	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return err
	}

	cmd.Println("Migrations completed successfully")
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)

	cmd.Println("Rolling back migrations...")
	if err := m.Down(); err != nil {
		return err
	}

	cmd.Println("Rollback completed successfully")
	return nil
}

func runMigrateSteps(cmd *cobra.Command, args []string) error {
	n, err := parseSteps(args[0])
	if err != nil {
		return err
	}

	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)

	if err := m.Steps(n); err != nil {
		return err
	}

	cmd.Printf("Applied %d migration step(s)\n", n)
	return nil
}

func runMigrateVersion(cmd *cobra.Command, _ []string) error {
	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}

	if version == 0 {
		cmd.Println("No migrations applied")
		return nil
	}

	state := "clean"
	if dirty {
		state = "dirty"
	}
	cmd.Printf("Version: %d (%s)\n", version, state)
	return nil
}

func runMigrateForce(cmd *cobra.Command, args []string) error {
	version, err := parseForceVersion(args[0])
	if err != nil {
		return err
	}

	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)

	if err := m.Force(version); err != nil {
		return err
	}

	cmd.Printf("Forced version to %d\n", version)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	m, err := newMigrator()
	if err != nil {
		return err
	}
	defer closeMigrator(cmd, m)

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}

	if version == 0 {
		cmd.Println("Current version: none")
	} else {
		name, nameErr := store.MigrationName(version)
		if nameErr != nil {
			name = "unknown"
		}
		cmd.Printf("Current version: %d (%s)\n", version, name)
	}
	if dirty {
		cmd.Println("State: dirty (resolve by hand, then use 'migrate force')")
	}

	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		cmd.Println("Pending: none")
		return nil
	}

	names := make([]string, 0, len(pending))
	for _, v := range pending {
		name, nameErr := store.MigrationName(v)
		if nameErr != nil {
			name = fmt.Sprintf("%d", v)
		}
		names = append(names, name)
	}
	cmd.Printf("Pending: %s\n", strings.Join(names, ", "))
	return nil
}

func closeMigrator(cmd *cobra.Command, m *store.Migrator) {
	if err := m.Close(); err != nil {
		cmd.PrintErrf("warning: closing migrator: %v\n", err)
	}
}

// parseSteps parses the argument of 'migrate steps'. Negative values
// roll migrations back.
func parseSteps(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, oops.Code("INVALID_STEPS").
			With("input", s).
			Errorf("steps must be an integer")
	}
	if n == 0 {
		return 0, oops.Code("INVALID_STEPS").Errorf("steps must be non-zero")
	}
	return n, nil
}

// parseForceVersion parses the argument of 'migrate force'.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(s, "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").
			With("input", s).
			Errorf("version must be an integer")
	}
	return version, nil
}
