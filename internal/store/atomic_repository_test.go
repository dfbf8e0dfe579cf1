package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearsonlabs/factorpipe/internal/contracts"
)

func TestAtomicRepository_LoadForRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// The market and financial loads run concurrently.
	mock.MatchExpectationsInOrder(false)

	repo := NewAtomicRepository(mock, "systematic_equity")
	rc := contracts.RunContext{
		RunID:         "test-run",
		RunDate:       contracts.Date(2025, time.June, 30),
		BackfillYears: 1,
	}

	obsDate := contracts.Date(2025, time.June, 27)
	reportDate := contracts.Date(2025, time.March, 31)
	asOf := contracts.Date(2025, time.April, 25)

	mock.ExpectQuery(`FROM systematic_equity.factor_observations`).
		WithArgs(rc.DataStartDate(), rc.RunDate, marketAtomicFactors, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{
			"symbol", "observation_date", "factor_name", "factor_value",
			"source", "metric_frequency", "source_report_date",
		}).AddRow(
			"AAPL", obsDate, contracts.MetricAdjustedClose, contracts.Float64(191.25),
			"yfinance", contracts.FreqDaily, nil,
		))

	mock.ExpectQuery(`FROM systematic_equity.financial_observations`).
		WithArgs(rc.DataStartDate(), rc.RunDate, financialAtomicMetrics, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{
			"symbol", "report_date", "metric_name", "metric_value",
			"currency", "period_type", "metric_definition", "source", "as_of",
		}).AddRow(
			"AAPL", reportDate, contracts.MetricBookValue, contracts.Float64(5000.0),
			"USD", contracts.PeriodQuarterly, contracts.DefinitionProviderReported, "yfinance", &asOf,
		))

	atomics, err := repo.LoadForRun(context.Background(), rc)
	require.NoError(t, err)
	require.Len(t, atomics, 2)

	byMetric := make(map[string]contracts.AtomicObservation)
	for _, obs := range atomics {
		byMetric[obs.MetricName] = obs
	}

	price := byMetric[contracts.MetricAdjustedClose]
	assert.True(t, price.ObservationDate.Equal(obsDate))
	assert.Nil(t, price.ReportReferenceDate)

	book := byMetric[contracts.MetricBookValue]
	assert.True(t, book.ObservationDate.Equal(asOf), "fundamental observed when it became known")
	require.NotNil(t, book.ReportReferenceDate)
	assert.True(t, book.ReportReferenceDate.Equal(reportDate), "report period drives alignment")
	assert.Equal(t, contracts.PeriodQuarterly, book.MetricFrequency)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSymbolFilter(t *testing.T) {
	assert.Nil(t, symbolFilter(nil))
	assert.Nil(t, symbolFilter([]string{}))
	assert.Equal(t, []string{"AAPL"}, symbolFilter([]string{"AAPL"}))
}
