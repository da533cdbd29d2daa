// Package main provides the entry point for the claim verification service.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "detective",
	Short: "Claim verification pipeline and consensus engine",
	Long:  "Detective runs claims through a staged verification pipeline, asks humans for clarification when confidence is low, and folds crowd verifications into a consensus score.",
}

// configPath is shared by every command that builds the service.
var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json file (environment variables override its values)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
