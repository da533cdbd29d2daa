package main

import (
	"fmt"

	"github.com/jonathan/claim-detective/internal/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long:  `Create the PostgreSQL tables and indexes used by the postgres store. The schema is idempotent and safe to apply repeatedly.`,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	database, err := connectDatabase(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(cmd.Context()); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Schema applied")
	return nil
}

// connectDatabase loads the config and connects to PostgreSQL. Commands that
// only make sense against a shared database use it instead of newApp.
func connectDatabase(cmd *cobra.Command) (*db.DB, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable or database_url config is required")
	}
	return db.Connect(cmd.Context(), cfg.DatabaseURL)
}
