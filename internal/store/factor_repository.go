package store

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/pearsonlabs/factorpipe/internal/contracts"
)

// FactorRepository owns the curated factor long table. The writer's identity
// for a row is the natural key (symbol, observation_date, factor_name): value,
// source, frequency, flags, and timestamp are all overwritten on conflict, so
// re-runs and backfills are safe.
type FactorRepository struct {
	db        DB
	schema    string
	limiter   *rate.Limiter
	batchSize int
}

// NewFactorRepository creates a factor repository. writeRate throttles upsert
// batches per second against the shared store; zero disables throttling.
func NewFactorRepository(db DB, schema string, writeRate float64, batchSize int) *FactorRepository {
	if schema == "" {
		schema = DefaultSchema
	}
	if batchSize < 1 {
		batchSize = 500
	}
	var limiter *rate.Limiter
	if writeRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(writeRate), 1)
	}
	return &FactorRepository{db: db, schema: schema, limiter: limiter, batchSize: batchSize}
}

// Upsert writes one factor row, updating in place when the key exists.
func (r *FactorRepository) Upsert(ctx context.Context, row contracts.FactorObservation) error {
	query := fmt.Sprintf(`
		INSERT INTO %s.factor_observations (
			symbol, observation_date, factor_name, factor_value,
			source, metric_frequency, source_report_date, quality_flags, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, observation_date, factor_name) DO UPDATE SET
			factor_value = EXCLUDED.factor_value,
			source = EXCLUDED.source,
			metric_frequency = EXCLUDED.metric_frequency,
			source_report_date = EXCLUDED.source_report_date,
			quality_flags = EXCLUDED.quality_flags,
			updated_at = EXCLUDED.updated_at
	`, r.schema)

	_, err := r.db.Exec(ctx, query,
		row.Symbol, row.ObservationDate, row.FactorName, row.FactorValue,
		row.Source, row.MetricFrequency, row.SourceReportDate, row.QualityFlags, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("upsert factor %s/%s/%s: %w",
			row.Symbol, row.ObservationDate.Format("2006-01-02"), row.FactorName, err)
	}
	return nil
}

// UpsertBatch writes factor rows in throttled batches. Duplicate keys in the
// input resolve to the last occurrence before anything hits the store, so a
// single run can never insert conflicting rows. A write failure here aborts
// the run; it is the one error class that escalates.
func (r *FactorRepository) UpsertBatch(ctx context.Context, rows []contracts.FactorObservation) (int, error) {
	deduped := dedupe(rows)
	written := 0
	for start := 0; start < len(deduped); start += r.batchSize {
		end := start + r.batchSize
		if end > len(deduped) {
			end = len(deduped)
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return written, err
			}
		}
		for _, row := range deduped[start:end] {
			if err := r.Upsert(ctx, row); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

// GetBySymbolAndRange retrieves persisted factor rows for one symbol.
func (r *FactorRepository) GetBySymbolAndRange(ctx context.Context, symbol string, from, to time.Time) ([]contracts.FactorObservation, error) {
	query := fmt.Sprintf(`
		SELECT symbol, observation_date, factor_name, factor_value,
		       source, metric_frequency, source_report_date, quality_flags
		FROM %s.factor_observations
		WHERE symbol = $1 AND observation_date BETWEEN $2 AND $3
		ORDER BY observation_date, factor_name
	`, r.schema)

	rows, err := r.db.Query(ctx, query, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("query factors for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []contracts.FactorObservation
	for rows.Next() {
		var f contracts.FactorObservation
		if err := rows.Scan(
			&f.Symbol, &f.ObservationDate, &f.FactorName, &f.FactorValue,
			&f.Source, &f.MetricFrequency, &f.SourceReportDate, &f.QualityFlags,
		); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// dedupe keeps the last occurrence of each natural key, preserving the order
// of first appearance.
func dedupe(rows []contracts.FactorObservation) []contracts.FactorObservation {
	index := make(map[contracts.ObservationKey]int, len(rows))
	out := make([]contracts.FactorObservation, 0, len(rows))
	for _, row := range rows {
		key := row.Key()
		if pos, seen := index[key]; seen {
			out[pos] = row
			continue
		}
		index[key] = len(out)
		out = append(out, row)
	}
	return out
}
