package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearsonlabs/factorpipe/internal/contracts"
)

func TestRecords_Canonical(t *testing.T) {
	result := Records([]Record{
		{
			"symbol":           "aapl",
			"observation_date": "2025-03-31",
			"metric_name":      contracts.MetricAdjustedClose,
			"value":            191.25,
			"source":           "yfinance",
			"metric_frequency": "Daily",
		},
	})

	require.Len(t, result.Observations, 1)
	assert.Equal(t, 0, result.Dropped)
	assert.Equal(t, 0, result.NullValues)

	obs := result.Observations[0]
	assert.Equal(t, "AAPL", obs.Symbol, "symbols normalize to upper case")
	assert.Equal(t, contracts.Date(2025, time.March, 31), obs.ObservationDate)
	require.NotNil(t, obs.Value)
	assert.Equal(t, 191.25, *obs.Value)
	assert.Equal(t, "daily", obs.MetricFrequency)
	assert.Nil(t, obs.ReportReferenceDate)
}

func TestRecords_FieldAliases(t *testing.T) {
	result := Records([]Record{
		{
			"entity_id":   "msft",
			"date":        "2025-03-31T00:00:00",
			"metric":      contracts.MetricBookValue,
			"metric_value": "1,234.50",
			"report_date": "2024-12-31",
		},
	})

	require.Len(t, result.Observations, 1)
	obs := result.Observations[0]
	assert.Equal(t, "MSFT", obs.Symbol)
	require.NotNil(t, obs.Value)
	assert.Equal(t, 1234.50, *obs.Value, "thousands separators tolerated")
	require.NotNil(t, obs.ReportReferenceDate)
	assert.Equal(t, contracts.Date(2024, time.December, 31), *obs.ReportReferenceDate)
	assert.Equal(t, contracts.FreqUnknown, obs.MetricFrequency)
	assert.Equal(t, "unknown", obs.Source)
}

func TestRecords_MalformedDropped(t *testing.T) {
	result := Records([]Record{
		{"observation_date": "2025-03-31", "metric_name": "x", "value": 1.0},  // no symbol
		{"symbol": "AAPL", "metric_name": "x", "value": 1.0},                  // no date
		{"symbol": "AAPL", "observation_date": "2025-03-31", "value": 1.0},    // no metric
		{"symbol": "AAPL", "observation_date": "not-a-date", "metric_name": "x"},
	})

	assert.Empty(t, result.Observations)
	assert.Equal(t, 4, result.Dropped)
}

func TestRecords_UnusableValueIsNullNotDrop(t *testing.T) {
	result := Records([]Record{
		{"symbol": "AAPL", "observation_date": "2025-03-31", "metric_name": "m1", "value": "NaN"},
		{"symbol": "AAPL", "observation_date": "2025-03-31", "metric_name": "m2", "value": "garbage"},
		{"symbol": "AAPL", "observation_date": "2025-03-31", "metric_name": "m3", "value": nil},
	})

	// Reported-but-unusable values survive as nil-valued observations.
	require.Len(t, result.Observations, 3)
	assert.Equal(t, 0, result.Dropped)
	assert.Equal(t, 3, result.NullValues)
	for _, obs := range result.Observations {
		assert.Nil(t, obs.Value)
	}
}

func TestFinancialRecords(t *testing.T) {
	out, dropped := FinancialRecords([]Record{
		{
			"symbol":            "nvda",
			"report_date":       "2024-12-31",
			"metric_name":       "total_debt",
			"metric_value":      8461000000.0,
			"currency":          "usd",
			"period_type":       "Quarterly",
			"metric_definition": "provider_reported",
			"as_of":             "2025-02-26",
		},
		{"report_date": "2024-12-31", "metric_name": "total_debt"}, // no symbol
	})

	assert.Equal(t, 1, dropped)
	require.Len(t, out, 1)

	obs := out[0]
	assert.Equal(t, "NVDA", obs.Symbol)
	assert.Equal(t, "USD", obs.Currency)
	assert.Equal(t, "quarterly", obs.PeriodType)
	require.NotNil(t, obs.AsOf)
	assert.Equal(t, contracts.Date(2025, time.February, 26), *obs.AsOf)
}

func TestFinancialRecords_Defaults(t *testing.T) {
	out, dropped := FinancialRecords([]Record{
		{"symbol": "AAPL", "report_date": "2024-12-31", "metric_name": "book_value"},
	})

	require.Len(t, out, 1)
	assert.Equal(t, 0, dropped)
	assert.Equal(t, "UNKNOWN", out[0].Currency)
	assert.Equal(t, contracts.PeriodUnknown, out[0].PeriodType)
	assert.Equal(t, contracts.DefinitionProviderReported, out[0].MetricDefinition)
	assert.Nil(t, out[0].MetricValue)
}
