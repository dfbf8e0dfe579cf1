package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pearsonlabs/factorpipe/internal/contracts"
)

// AuditRepository records one row per pipeline run. Finishing a run must work
// even when the start row never landed (a transform crash before audit setup),
// so the finish path falls back to an insert.
type AuditRepository struct {
	db     DB
	schema string
}

// NewAuditRepository creates an audit repository.
func NewAuditRepository(db DB, schema string) *AuditRepository {
	if schema == "" {
		schema = DefaultSchema
	}
	return &AuditRepository{db: db, schema: schema}
}

// StartRun inserts (or overwrites) the run row as running.
func (r *AuditRepository) StartRun(ctx context.Context, rec contracts.RunRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s.pipeline_runs (
			run_id, run_date, started_at, status, frequency,
			backfill_years, symbol_count, notes
		) VALUES ($1, $2, $3, 'running', $4, $5, $6, $7)
		ON CONFLICT (run_id) DO UPDATE SET
			run_date = EXCLUDED.run_date,
			started_at = EXCLUDED.started_at,
			status = 'running',
			frequency = EXCLUDED.frequency,
			backfill_years = EXCLUDED.backfill_years,
			symbol_count = EXCLUDED.symbol_count,
			notes = EXCLUDED.notes,
			updated_at = CURRENT_TIMESTAMP
	`, r.schema)

	_, err := r.db.Exec(ctx, query,
		rec.RunID, rec.RunDate, rec.StartedAt, rec.Frequency,
		rec.BackfillYears, rec.SymbolCount, rec.Notes,
	)
	if err != nil {
		return fmt.Errorf("audit start for run %s: %w", rec.RunID, err)
	}
	return nil
}

// FinishRun updates the run row with its final status, falling back to an
// insert when the row is missing.
func (r *AuditRepository) FinishRun(ctx context.Context, rec contracts.RunRecord) error {
	finishedAt := time.Now()
	if rec.FinishedAt != nil {
		finishedAt = *rec.FinishedAt
	}

	updateQuery := fmt.Sprintf(`
		UPDATE %s.pipeline_runs SET
			finished_at = $2,
			status = $3,
			rows_written = $4,
			error_message = $5,
			notes = $6,
			updated_at = CURRENT_TIMESTAMP
		WHERE run_id = $1
	`, r.schema)

	tag, err := r.db.Exec(ctx, updateQuery,
		rec.RunID, finishedAt, rec.Status, rec.RowsWritten, rec.ErrorMessage, rec.Notes,
	)
	if err != nil {
		return fmt.Errorf("audit finish for run %s: %w", rec.RunID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s.pipeline_runs (
			run_id, run_date, started_at, finished_at, status, frequency,
			backfill_years, symbol_count, rows_written, error_message, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			rows_written = EXCLUDED.rows_written,
			error_message = EXCLUDED.error_message,
			notes = EXCLUDED.notes,
			updated_at = CURRENT_TIMESTAMP
	`, r.schema)

	_, err = r.db.Exec(ctx, insertQuery,
		rec.RunID, rec.RunDate, rec.StartedAt, finishedAt, rec.Status, rec.Frequency,
		rec.BackfillYears, rec.SymbolCount, rec.RowsWritten, rec.ErrorMessage, rec.Notes,
	)
	if err != nil {
		return fmt.Errorf("audit finish insert for run %s: %w", rec.RunID, err)
	}
	return nil
}

// RecentRuns returns the most recent pipeline runs, newest first.
func (r *AuditRepository) RecentRuns(ctx context.Context, limit int) ([]contracts.RunRecord, error) {
	if limit < 1 {
		limit = 20
	}
	query := fmt.Sprintf(`
		SELECT run_id, run_date, started_at, finished_at, status, frequency,
		       COALESCE(backfill_years, 0), COALESCE(symbol_count, 0),
		       COALESCE(rows_written, 0), COALESCE(error_message, ''), COALESCE(notes, '')
		FROM %s.pipeline_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, r.schema)

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var out []contracts.RunRecord
	for rows.Next() {
		var rec contracts.RunRecord
		if err := rows.Scan(
			&rec.RunID, &rec.RunDate, &rec.StartedAt, &rec.FinishedAt, &rec.Status,
			&rec.Frequency, &rec.BackfillYears, &rec.SymbolCount,
			&rec.RowsWritten, &rec.ErrorMessage, &rec.Notes,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetRun retrieves one run record by id.
func (r *AuditRepository) GetRun(ctx context.Context, runID string) (*contracts.RunRecord, error) {
	query := fmt.Sprintf(`
		SELECT run_id, run_date, started_at, finished_at, status, frequency,
		       COALESCE(backfill_years, 0), COALESCE(symbol_count, 0),
		       COALESCE(rows_written, 0), COALESCE(error_message, ''), COALESCE(notes, '')
		FROM %s.pipeline_runs
		WHERE run_id = $1
	`, r.schema)

	var rec contracts.RunRecord
	err := r.db.QueryRow(ctx, query, runID).Scan(
		&rec.RunID, &rec.RunDate, &rec.StartedAt, &rec.FinishedAt, &rec.Status,
		&rec.Frequency, &rec.BackfillYears, &rec.SymbolCount,
		&rec.RowsWritten, &rec.ErrorMessage, &rec.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return &rec, nil
}
