package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pfcontrol/stripsync/internal/application"
	"github.com/pfcontrol/stripsync/internal/config"
	"github.com/pfcontrol/stripsync/internal/database"
	"github.com/pfcontrol/stripsync/internal/store"
	"github.com/spf13/cobra"
)

var seedList bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Migrate, load database/seeds/*.sql and list the seeded sessions",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().BoolVar(&seedList, "list", true, "print sessions and their access ids after seeding")
}

func runSeed(cmd *cobra.Command, args []string) error {
	url, err := databaseURL()
	if err != nil {
		return err
	}
	if err := database.MigrateUp(url); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := application.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := database.RunSeeds(db, logger); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if !seedList {
		return nil
	}

	sessions, err := store.NewGormStore(db).ListSessions(context.Background())
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tAIRPORT\tRUNWAY\tPFATC\tACCESS ID")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", s.ID, s.AirportICAO, s.ActiveRunway, s.IsPFATC, s.AccessID)
	}
	return w.Flush()
}
