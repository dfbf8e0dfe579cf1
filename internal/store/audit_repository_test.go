package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearsonlabs/factorpipe/internal/contracts"
)

func testRunRecord() contracts.RunRecord {
	return contracts.RunRecord{
		RunID:         "run-abc",
		RunDate:       contracts.Date(2025, time.June, 30),
		StartedAt:     time.Date(2025, time.June, 30, 6, 30, 0, 0, time.UTC),
		Status:        contracts.RunStatusRunning,
		Frequency:     contracts.FreqDaily,
		BackfillYears: 2,
		SymbolCount:   3,
	}
}

func TestAuditRepository_StartRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepository(mock, "systematic_equity")
	rec := testRunRecord()

	mock.ExpectExec(`INSERT INTO systematic_equity.pipeline_runs`).
		WithArgs(rec.RunID, rec.RunDate, rec.StartedAt, rec.Frequency,
			rec.BackfillYears, rec.SymbolCount, rec.Notes).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.StartRun(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_FinishRun_Update(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepository(mock, "systematic_equity")
	rec := testRunRecord()
	rec.Status = contracts.RunStatusSuccess
	rec.RowsWritten = 120
	finished := rec.StartedAt.Add(time.Minute)
	rec.FinishedAt = &finished

	mock.ExpectExec(`UPDATE systematic_equity.pipeline_runs SET`).
		WithArgs(rec.RunID, finished, rec.Status, rec.RowsWritten, rec.ErrorMessage, rec.Notes).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.FinishRun(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_FinishRun_InsertFallback(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepository(mock, "systematic_equity")
	rec := testRunRecord()
	rec.Status = contracts.RunStatusFailed
	rec.ErrorMessage = "transform: boom"
	finished := rec.StartedAt.Add(time.Minute)
	rec.FinishedAt = &finished

	// No start row landed: the update touches nothing and the insert runs.
	mock.ExpectExec(`UPDATE systematic_equity.pipeline_runs SET`).
		WithArgs(rec.RunID, finished, rec.Status, rec.RowsWritten, rec.ErrorMessage, rec.Notes).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec(`INSERT INTO systematic_equity.pipeline_runs`).
		WithArgs(rec.RunID, rec.RunDate, rec.StartedAt, finished, rec.Status, rec.Frequency,
			rec.BackfillYears, rec.SymbolCount, rec.RowsWritten, rec.ErrorMessage, rec.Notes).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.FinishRun(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_RecentRuns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepository(mock, "systematic_equity")
	started := time.Date(2025, time.June, 30, 6, 30, 0, 0, time.UTC)
	finished := started.Add(time.Minute)

	mock.ExpectQuery(`SELECT run_id, run_date, started_at, finished_at, status`).
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows([]string{
			"run_id", "run_date", "started_at", "finished_at", "status", "frequency",
			"backfill_years", "symbol_count", "rows_written", "error_message", "notes",
		}).AddRow(
			"run-2", contracts.Date(2025, time.June, 30), started, &finished,
			contracts.RunStatusSuccess, contracts.FreqDaily, 2, 3, 120, "", "",
		).AddRow(
			"run-1", contracts.Date(2025, time.June, 29), started.Add(-24*time.Hour), &finished,
			contracts.RunStatusFailed, contracts.FreqDaily, 2, 3, 0, "load atomics: timeout", "",
		))

	runs, err := repo.RecentRuns(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, contracts.RunStatusFailed, runs[1].Status)
	assert.Equal(t, "load atomics: timeout", runs[1].ErrorMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_GetRun_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepository(mock, "systematic_equity")

	mock.ExpectQuery(`SELECT run_id, run_date, started_at, finished_at, status`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
