package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pearsonlabs/factorpipe/internal/contracts"
)

// FinancialRepository owns the financial atomics long table. Rows carry
// report-period semantics: the unique key is (symbol, report_date,
// metric_name) and upserts overwrite the non-key columns.
type FinancialRepository struct {
	db     DB
	schema string
}

// NewFinancialRepository creates a financial repository.
func NewFinancialRepository(db DB, schema string) *FinancialRepository {
	if schema == "" {
		schema = DefaultSchema
	}
	return &FinancialRepository{db: db, schema: schema}
}

// Save upserts one financial observation.
func (r *FinancialRepository) Save(ctx context.Context, obs contracts.FinancialObservation) error {
	query := fmt.Sprintf(`
		INSERT INTO %s.financial_observations (
			symbol, report_date, metric_name, metric_value,
			currency, period_type, metric_definition, source, as_of, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (symbol, report_date, metric_name) DO UPDATE SET
			metric_value = EXCLUDED.metric_value,
			currency = EXCLUDED.currency,
			period_type = EXCLUDED.period_type,
			metric_definition = EXCLUDED.metric_definition,
			source = EXCLUDED.source,
			as_of = EXCLUDED.as_of,
			updated_at = EXCLUDED.updated_at
	`, r.schema)

	_, err := r.db.Exec(ctx, query,
		obs.Symbol, obs.ReportDate, obs.MetricName, obs.MetricValue,
		obs.Currency, obs.PeriodType, obs.MetricDefinition, obs.Source, obs.AsOf, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("upsert financial %s/%s/%s: %w",
			obs.Symbol, obs.ReportDate.Format("2006-01-02"), obs.MetricName, err)
	}
	return nil
}

// SaveBatch upserts multiple financial observations.
func (r *FinancialRepository) SaveBatch(ctx context.Context, observations []contracts.FinancialObservation) error {
	for _, obs := range observations {
		if err := r.Save(ctx, obs); err != nil {
			return err
		}
	}
	return nil
}
