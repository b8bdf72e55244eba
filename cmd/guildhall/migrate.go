package main

import (
	"fmt"

	"github.com/bissquit/guildhall/internal/config"
	"github.com/bissquit/guildhall/internal/pkg/postgres"
	"github.com/bissquit/guildhall/migrations"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, (*postgres.Migrator).Up)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, (*postgres.Migrator).Down)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *postgres.Migrator) error {
				version, dirty, ok, err := m.Version()
				if err != nil {
					return err
				}
				if !ok {
					cmd.Println("no migrations applied")
					return nil
				}
				cmd.Printf("version %d (dirty: %t)\n", version, dirty)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(*postgres.Migrator) error) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDatabase(path)
	if err != nil {
		return err
	}

	m, err := postgres.NewMigrator(migrations.FS, cfg.URL)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	if err := fn(m); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
