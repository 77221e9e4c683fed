package cmd

import (
	"fmt"

	"github.com/pfcontrol/stripsync/internal/config"
	"github.com/pfcontrol/stripsync/internal/database"
	"github.com/spf13/cobra"
)

var migrateDownSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE:  runMigrateDown,
}

func init() {
	migrateDownCmd.Flags().IntVar(&migrateDownSteps, "steps", 1, "number of migrations to roll back")
	migrateCmd.AddCommand(migrateDownCmd)
}

func databaseURL() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	if cfg.StoreDriver != config.StoreDriverPostgres {
		return "", fmt.Errorf("migrate: STORE_DRIVER is %q, migrations need postgres", cfg.StoreDriver)
	}
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	return cfg.DatabaseURL(), nil
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	url, err := databaseURL()
	if err != nil {
		return err
	}
	return database.MigrateUp(url)
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	url, err := databaseURL()
	if err != nil {
		return err
	}
	return database.MigrateDown(url, migrateDownSteps)
}
