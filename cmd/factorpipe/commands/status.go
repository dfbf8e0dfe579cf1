package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent pipeline runs",
	Long: `Prints the most recent pipeline runs from the audit table.

Example:
  go run ./cmd/factorpipe status
  go run ./cmd/factorpipe status --limit 50`,
	RunE: runStatus,
}

var statusLimit int

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "number of runs to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runs, err := s.audit.RecentRuns(ctx, statusLimit)
	if err != nil {
		return fmt.Errorf("load recent runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No pipeline runs recorded")
		return nil
	}

	fmt.Printf("%-36s  %-10s  %-8s  %-19s  %8s  %s\n",
		"RUN ID", "RUN DATE", "STATUS", "STARTED", "ROWS", "ERROR")
	for _, rec := range runs {
		errText := rec.ErrorMessage
		if len(errText) > 60 {
			errText = errText[:57] + "..."
		}
		fmt.Printf("%-36s  %-10s  %-8s  %-19s  %8d  %s\n",
			rec.RunID,
			rec.RunDate.Format("2006-01-02"),
			rec.Status,
			rec.StartedAt.Format("2006-01-02 15:04:05"),
			rec.RowsWritten,
			errText,
		)
	}

	return nil
}
