package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jonathan/claim-detective/internal/audit"
	"github.com/jonathan/claim-detective/internal/types"
	"github.com/spf13/cobra"
)

var (
	auditStart  string
	auditEnd    string
	auditOutput string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit events in a time range as JSON",
	Long:  `Export every audit event with start <= timestamp < end, across all claims, ordered by timestamp.`,
	RunE:  runAuditExport,
}

func init() {
	auditExportCmd.Flags().StringVar(&auditStart, "start", "", "Range start (RFC3339)")
	auditExportCmd.Flags().StringVar(&auditEnd, "end", "", "Range end, exclusive (RFC3339)")
	auditExportCmd.Flags().StringVarP(&auditOutput, "output", "o", "", "Write to a file instead of stdout")
	_ = auditExportCmd.MarkFlagRequired("start")
	_ = auditExportCmd.MarkFlagRequired("end")

	auditCmd.AddCommand(auditExportCmd)
	rootCmd.AddCommand(auditCmd)
}

func runAuditExport(cmd *cobra.Command, _ []string) error {
	start, end, err := parseRange(auditStart, auditEnd)
	if err != nil {
		return err
	}

	database, err := connectDatabase(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	events, err := audit.NewLog(database).ExportRange(cmd.Context(), start, end)
	if err != nil {
		return err
	}
	if events == nil {
		events = []types.AuditEvent{}
	}

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}
	return writeOutput(cmd, auditOutput, data)
}

// parseRange parses an RFC3339 [start, end) range.
func parseRange(rawStart, rawEnd string) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --end: %w", err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--end must be after --start")
	}
	return start, end, nil
}

// writeOutput writes data to path, or to the command's stdout when path is empty.
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
