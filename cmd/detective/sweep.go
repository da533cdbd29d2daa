package main

import (
	"fmt"

	"github.com/jonathan/claim-detective/internal/config"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire overdue clarification requests once",
	Long: `Expire every pending clarification whose deadline has passed and resume
its run with the request's fallback. Useful from cron when no server is
running the background sweeper.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable or database_url config is required")
	}
	cfg.Store = config.StorePostgres

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	// Close waits for the resumed runs to settle.
	defer a.Close()

	n, err := a.coord.SweepExpired(cmd.Context())
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Expired %d clarification request(s)\n", n)
	return nil
}
