package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pfcontrol/stripsync/internal/airport"
	"github.com/pfcontrol/stripsync/internal/auth"
	"github.com/pfcontrol/stripsync/internal/config"
	"github.com/pfcontrol/stripsync/internal/database"
	"github.com/spf13/cobra"
)

var tokenTTL time.Duration

var commandCmd = &cobra.Command{
	Use:   "command",
	Short: "Operator one-offs: identity tokens, procedure lookup, new migrations",
}

var tokenCmd = &cobra.Command{
	Use:   "token <userId> [username]",
	Short: "Sign an identity token with JWT_SECRET for connecting test clients",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runToken,
}

var sidCmd = &cobra.Command{
	Use:   "sid <icao> [runway] [arrival]",
	Short: "Show departure runways of an airport, or the SID a flight would be assigned",
	Args:  cobra.RangeArgs(1, 3),
	RunE:  runSID,
}

var migrationCmd = &cobra.Command{
	Use:   "migration <name>",
	Short: "Create an empty up/down migration pair under database/migrations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return database.CreateMigration(args[0])
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "token lifetime")
	commandCmd.AddCommand(tokenCmd, sidCmd, migrationCmd)
	rootCmd.AddCommand(commandCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	v := auth.NewVerifier(cfg.JWTSecret)
	if !v.Enabled() {
		return errors.New("JWT_SECRET is not set")
	}
	id := auth.Identity{UserID: args[0], Username: args[0]}
	if len(args) == 2 {
		id.Username = args[1]
	}
	token, err := v.Sign(id, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func runSID(cmd *cobra.Command, args []string) error {
	db, err := airport.Load()
	if err != nil {
		return err
	}
	icao := strings.ToUpper(args[0])
	if len(args) == 1 {
		runways := db.Runways(icao)
		if len(runways) == 0 {
			return fmt.Errorf("no procedure data for %s", icao)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", icao, strings.Join(runways, " "))
		return nil
	}
	arrival := ""
	if len(args) == 3 {
		arrival = args[2]
	}
	sid, err := db.AssignSID(icao, args[1], arrival)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), sid)
	return nil
}
