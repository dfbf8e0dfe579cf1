package commands

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pearsonlabs/factorpipe/internal/contracts"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one factor transform run",
	Long: `Loads atomic observations, computes factor rows with point-in-time
alignment and quality rules, and upserts the results.

Example:
  go run ./cmd/factorpipe run
  go run ./cmd/factorpipe run --run-date 2025-06-30 --backfill-years 3
  go run ./cmd/factorpipe run --symbols AAPL,MSFT --dry-run`,
	RunE: runTransform,
}

var (
	runDateFlag      string
	runFrequency     string
	runBackfillYears int
	runSymbols       []string
	runDryRun        bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runDateFlag, "run-date", "", "run date YYYY-MM-DD (default today UTC)")
	runCmd.Flags().StringVar(&runFrequency, "frequency", "", "run frequency label (default from config)")
	runCmd.Flags().IntVar(&runBackfillYears, "backfill-years", 0, "years of history to recompute (default from config)")
	runCmd.Flags().StringSliceVar(&runSymbols, "symbols", nil, "restrict the run to these symbols")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "compute and report without writing")
}

func runTransform(cmd *cobra.Command, args []string) error {
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.close()

	runDate := time.Now().UTC().Truncate(24 * time.Hour)
	if runDateFlag != "" {
		runDate, err = time.Parse("2006-01-02", runDateFlag)
		if err != nil {
			return fmt.Errorf("parse --run-date: %w", err)
		}
	}

	frequency := s.cfg.Pipeline.Frequency
	if runFrequency != "" {
		frequency = runFrequency
	}
	backfillYears := s.cfg.Pipeline.BackfillYears
	if runBackfillYears > 0 {
		backfillYears = runBackfillYears
	}

	rc := contracts.NewRunContext(runDate, frequency, backfillYears, runSymbols)
	rc.DryRun = runDryRun

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("=== Factor Transform Run ===")
	fmt.Printf("Run ID:    %s\n", rc.RunID)
	fmt.Printf("Run date:  %s\n", rc.RunDate.Format("2006-01-02"))
	fmt.Printf("Window:    %s .. %s\n", rc.StartDate().Format("2006-01-02"), rc.RunDate.Format("2006-01-02"))
	if len(rc.Symbols) > 0 {
		fmt.Printf("Symbols:   %s\n", strings.Join(rc.Symbols, ", "))
	}
	if rc.DryRun {
		fmt.Println("Mode:      dry-run (no writes)")
	}
	fmt.Println()

	started := time.Now()
	outcome, err := s.pipeline.Execute(ctx, rc)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	report := outcome.Report
	fmt.Printf("Status:        %s (%.1fs)\n", outcome.Run.Status, time.Since(started).Seconds())
	fmt.Printf("Rows written:  %d\n", outcome.RowsWritten)
	fmt.Printf("Rows capped:   %d\n", outcome.Capped)
	fmt.Printf("Rows dropped:  %d\n", report.DroppedCount())
	fmt.Printf("Rows flagged:  %d\n", report.StaleCount()+report.ExpiredCount())

	if len(report.Dropped) > 0 {
		fmt.Println("\nDrop reasons:")
		reasons := make([]string, 0, len(report.Dropped))
		for reason := range report.Dropped {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Printf("  %-25s %d\n", reason, report.Dropped[reason])
		}
	}

	if len(report.SymbolErrors) > 0 {
		fmt.Printf("\n%d symbol(s) failed:\n", len(report.SymbolErrors))
		symbols := make([]string, 0, len(report.SymbolErrors))
		for symbol := range report.SymbolErrors {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		for _, symbol := range symbols {
			fmt.Printf("  %-10s %s\n", symbol, report.SymbolErrors[symbol])
		}
	}

	if !outcome.Check.Passed {
		fmt.Println("\nOutput check found issues:")
		fmt.Printf("  missing required: %d\n", outcome.Check.MissingRequired)
		fmt.Printf("  duplicates:       %d\n", outcome.Check.Duplicates)
		fmt.Printf("  non-finite:       %d\n", outcome.Check.NonFinite)
	}

	return nil
}
