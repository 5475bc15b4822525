package cmd

import (
	"fmt"

	"github.com/kozaktomas/facegate/internal/config"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent access log entries",
	RunE:  runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().Int("limit", 50, "Maximum number of entries to show")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	pool, repo, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	entries, err := repo.RecentAccessLogs(cmd.Context(), mustGetInt(cmd, "limit"))
	if err != nil {
		return fmt.Errorf("failed to read access log: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("Access log is empty")
		return nil
	}

	fmt.Printf("%-6s %-20s %-14s %-8s %-10s %s\n", "ID", "TIMESTAMP", "TYPE", "RESULT", "SUBJECT", "CONFIDENCE")
	for _, e := range entries {
		subject := "-"
		if e.SubjectID != nil {
			subject = fmt.Sprintf("%d", *e.SubjectID)
		}
		confidence := "-"
		if e.Confidence != nil {
			confidence = fmt.Sprintf("%.2f", *e.Confidence)
		}
		fmt.Printf("%-6d %-20s %-14s %-8s %-10s %s\n",
			e.ID, e.Timestamp.Format("2006-01-02 15:04:05"), e.AccessType, e.Result, subject, confidence)
	}
	return nil
}
