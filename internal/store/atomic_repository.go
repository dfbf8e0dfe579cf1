package store

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pearsonlabs/factorpipe/internal/contracts"
)

// Atomic factor names loaded from the market/alternative long table.
var marketAtomicFactors = []string{
	contracts.MetricAdjustedClose,
	contracts.MetricDailyReturn,
	contracts.MetricDividendPerShare,
	contracts.MetricNewsSentiment,
	contracts.MetricNewsArticleCount,
}

// Metric names loaded from the financial long table.
var financialAtomicMetrics = []string{
	contracts.MetricTotalDebt,
	contracts.MetricShortTermDebt,
	contracts.MetricLongTermDebt,
	contracts.MetricBookValue,
	contracts.MetricSharesOut,
	contracts.MetricEBITDA,
	contracts.MetricRevenue,
}

// AtomicRepository loads pre-extracted atomic observations for a run: market
// and alternative atomics from the factor long table, fundamentals from the
// financial long table with their report-period semantics intact.
type AtomicRepository struct {
	db     DB
	schema string
}

// NewAtomicRepository creates an atomic repository.
func NewAtomicRepository(db DB, schema string) *AtomicRepository {
	if schema == "" {
		schema = DefaultSchema
	}
	return &AtomicRepository{db: db, schema: schema}
}

// LoadForRun fetches every atomic observation the transform may consult,
// bounded by the run's data window. The two tables load concurrently.
func (r *AtomicRepository) LoadForRun(ctx context.Context, rc contracts.RunContext) ([]contracts.AtomicObservation, error) {
	var market, financial []contracts.AtomicObservation

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		market, err = r.loadMarket(gctx, rc)
		return err
	})
	g.Go(func() error {
		var err error
		financial, err = r.loadFinancial(gctx, rc)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return append(market, financial...), nil
}

func (r *AtomicRepository) loadMarket(ctx context.Context, rc contracts.RunContext) ([]contracts.AtomicObservation, error) {
	query := fmt.Sprintf(`
		SELECT symbol, observation_date, factor_name, factor_value,
		       source, metric_frequency, source_report_date
		FROM %s.factor_observations
		WHERE observation_date BETWEEN $1 AND $2
		  AND factor_name = ANY($3)
		  AND ($4::text[] IS NULL OR symbol = ANY($4))
		ORDER BY symbol, observation_date, factor_name
	`, r.schema)

	rows, err := r.db.Query(ctx, query,
		rc.DataStartDate(), rc.RunDate, marketAtomicFactors, symbolFilter(rc.Symbols))
	if err != nil {
		return nil, fmt.Errorf("load market atomics: %w", err)
	}
	defer rows.Close()

	var out []contracts.AtomicObservation
	for rows.Next() {
		var obs contracts.AtomicObservation
		if err := rows.Scan(
			&obs.Symbol, &obs.ObservationDate, &obs.MetricName, &obs.Value,
			&obs.Source, &obs.MetricFrequency, &obs.ReportReferenceDate,
		); err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

func (r *AtomicRepository) loadFinancial(ctx context.Context, rc contracts.RunContext) ([]contracts.AtomicObservation, error) {
	query := fmt.Sprintf(`
		SELECT symbol, report_date, metric_name, metric_value,
		       currency, period_type, metric_definition, source, as_of
		FROM %s.financial_observations
		WHERE report_date BETWEEN $1 AND $2
		  AND metric_name = ANY($3)
		  AND ($4::text[] IS NULL OR symbol = ANY($4))
		ORDER BY symbol, report_date, metric_name
	`, r.schema)

	rows, err := r.db.Query(ctx, query,
		rc.DataStartDate(), rc.RunDate, financialAtomicMetrics, symbolFilter(rc.Symbols))
	if err != nil {
		return nil, fmt.Errorf("load financial atomics: %w", err)
	}
	defer rows.Close()

	var out []contracts.AtomicObservation
	for rows.Next() {
		var f contracts.FinancialObservation
		if err := rows.Scan(
			&f.Symbol, &f.ReportDate, &f.MetricName, &f.MetricValue,
			&f.Currency, &f.PeriodType, &f.MetricDefinition, &f.Source, &f.AsOf,
		); err != nil {
			return nil, err
		}
		out = append(out, f.Atomic())
	}
	return out, rows.Err()
}

// symbolFilter turns an empty universe into a NULL filter (match all).
func symbolFilter(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	return symbols
}
