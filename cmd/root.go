package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "stripsync",
	Short: "Real-time flight strip, presence and overview sync",
	Long: `stripsync keeps flight strips, controller presence and the network overview
consistent across every connected client and every server process.

With no subcommand it runs the API.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadEnvFile,
	RunE:              runAPI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file loaded before the environment is read")
	rootCmd.AddCommand(apiCmd, migrateCmd, seedCmd)
}

// loadEnvFile loads an explicitly named dotenv file. Variables already set in the
// environment win; config.Load still picks up ./.env on its own.
func loadEnvFile(cmd *cobra.Command, args []string) error {
	if envFile == "" {
		return nil
	}
	if _, err := os.Stat(envFile); err != nil {
		return fmt.Errorf("env file: %w", err)
	}
	return godotenv.Load(envFile)
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}
