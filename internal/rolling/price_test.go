package rolling

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearsonlabs/factorpipe/internal/contracts"
)

func priceObs(day time.Time, value float64) contracts.AtomicObservation {
	return contracts.AtomicObservation{
		Symbol:          "AAPL",
		ObservationDate: day,
		MetricName:      contracts.MetricAdjustedClose,
		Value:           contracts.Float64(value),
	}
}

func TestPriceSeries_Clean(t *testing.T) {
	d1 := contracts.Date(2025, time.June, 2)
	d2 := contracts.Date(2025, time.June, 3)

	observations := []contracts.AtomicObservation{
		priceObs(d2, 101.0),
		priceObs(d1, 100.0),
		priceObs(d1, 100.5), // duplicate date, last wins
		priceObs(contracts.Date(2025, time.June, 4), -5.0),            // non-positive excluded
		priceObs(contracts.Date(2025, time.June, 5), math.NaN()),      // non-finite excluded
		{Symbol: "AAPL", ObservationDate: contracts.Date(2025, time.June, 6), MetricName: contracts.MetricAdjustedClose}, // nil value
	}

	prices := PriceSeries(observations)
	require.Len(t, prices, 2)
	assert.True(t, prices[0].Date.Equal(d1))
	assert.Equal(t, 100.5, prices[0].Price)
	assert.True(t, prices[1].Date.Equal(d2))
	assert.Equal(t, 101.0, prices[1].Price)
}

func TestTechnical_WindowSemantics(t *testing.T) {
	// 22 trading days of a one-percent daily climb.
	prices := make([]PricePoint, 22)
	start := contracts.Date(2025, time.May, 1)
	for i := range prices {
		prices[i] = PricePoint{
			Date:  start.AddDate(0, 0, i),
			Price: 100.0 * math.Pow(1.01, float64(i)),
		}
	}

	points := Technical(prices)
	require.Len(t, points, 22)

	// The first 20 days lack a full trailing window.
	for i := 0; i < TradingWindow; i++ {
		assert.Nil(t, points[i].Momentum, "day %d should have no momentum", i)
		assert.Nil(t, points[i].Volatility, "day %d should have no volatility", i)
	}

	// Day 20: p[20]/p[0]-1 = 1.01^20 - 1.
	require.NotNil(t, points[20].Momentum)
	assert.InDelta(t, math.Pow(1.01, 20)-1, *points[20].Momentum, 1e-12)

	// Constant returns: sample standard deviation is zero.
	require.NotNil(t, points[20].Volatility)
	assert.InDelta(t, 0.0, *points[20].Volatility, 1e-12)

	require.NotNil(t, points[21].Momentum)
	assert.InDelta(t, math.Pow(1.01, 20)-1, *points[21].Momentum, 1e-12)
}

func TestTechnical_Volatility(t *testing.T) {
	// 21 days alternating +10% / -10% gives a known return spread.
	prices := make([]PricePoint, 21)
	start := contracts.Date(2025, time.May, 1)
	prices[0] = PricePoint{Date: start, Price: 100.0}
	for i := 1; i < len(prices); i++ {
		factor := 1.10
		if i%2 == 0 {
			factor = 0.90
		}
		prices[i] = PricePoint{Date: start.AddDate(0, 0, i), Price: prices[i-1].Price * factor}
	}

	points := Technical(prices)
	last := points[20]
	require.NotNil(t, last.Volatility)

	// 20 returns: ten of +0.10 and ten of -0.10; mean 0, sample variance
	// 20*(0.01)/19.
	want := math.Sqrt(20 * 0.01 / 19)
	assert.InDelta(t, want, *last.Volatility, 1e-12)
}

func TestTechnical_Empty(t *testing.T) {
	assert.Empty(t, Technical(nil))
}
