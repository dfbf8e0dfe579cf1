package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pearsonlabs/factorpipe/internal/contracts"
	"github.com/pearsonlabs/factorpipe/internal/normalize"
	"github.com/pearsonlabs/factorpipe/internal/store"
)

// loadCmd represents the load command
var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load raw atomic observations into the store",
	Long: `Normalizes a JSON file of raw provider records and upserts them
into the atomic tables. Market records land in factor_observations,
financial records in financial_observations.

The file holds a JSON array of objects. Field aliases from common
providers are tolerated (symbol/entity_id/ticker, date/observation_date,
metric/metric_name, value/metric_value).

Example:
  go run ./cmd/factorpipe load --file prices.json --kind market
  go run ./cmd/factorpipe load --file fundamentals.json --kind financial`,
	RunE: runLoad,
}

var (
	loadFile string
	loadKind string
)

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().StringVar(&loadFile, "file", "", "JSON file of raw records (required)")
	loadCmd.Flags().StringVar(&loadKind, "kind", "market", "Record kind: market or financial")
	loadCmd.MarkFlagRequired("file")
}

func runLoad(cmd *cobra.Command, args []string) error {
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.close()

	data, err := os.ReadFile(loadFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", loadFile, err)
	}

	var records []normalize.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parse %s: %w", loadFile, err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	switch loadKind {
	case "market":
		return loadMarket(ctx, s, records)
	case "financial":
		return loadFinancial(ctx, s, records)
	default:
		return fmt.Errorf("unknown kind %q: must be market or financial", loadKind)
	}
}

func loadMarket(ctx context.Context, s *stack, records []normalize.Record) error {
	result := normalize.Records(records)

	rows := make([]contracts.FactorObservation, 0, len(result.Observations))
	for _, obs := range result.Observations {
		rows = append(rows, contracts.FactorObservation{
			Symbol:           obs.Symbol,
			ObservationDate:  obs.ObservationDate,
			FactorName:       obs.MetricName,
			FactorValue:      obs.Value,
			Source:           obs.Source,
			MetricFrequency:  obs.MetricFrequency,
			SourceReportDate: obs.ReportReferenceDate,
		})
	}

	written, err := s.factors.UpsertBatch(ctx, rows)
	if err != nil {
		return fmt.Errorf("upsert market atomics: %w", err)
	}

	fmt.Printf("Loaded %d market rows (%d dropped, %d null values)\n",
		written, result.Dropped, result.NullValues)
	return nil
}

func loadFinancial(ctx context.Context, s *stack, records []normalize.Record) error {
	observations, dropped := normalize.FinancialRecords(records)

	financials := store.NewFinancialRepository(s.db.Pool, s.cfg.Database.Schema)
	if err := financials.SaveBatch(ctx, observations); err != nil {
		return fmt.Errorf("upsert financial atomics: %w", err)
	}

	fmt.Printf("Loaded %d financial rows (%d dropped)\n", len(observations), dropped)
	return nil
}
