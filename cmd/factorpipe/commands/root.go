package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "factorpipe",
	Short: "Factor transform and quality engine",
	Long: `factorpipe converts atomic market, financial, and news observations
into point-in-time correct factor rows.

Usage:
  go run ./cmd/factorpipe [command]

Examples:
  go run ./cmd/factorpipe run --run-date 2025-06-30 --backfill-years 2
  go run ./cmd/factorpipe run --symbols AAPL,MSFT --dry-run
  go run ./cmd/factorpipe scheduler
  go run ./cmd/factorpipe status
  go run ./cmd/factorpipe api`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
