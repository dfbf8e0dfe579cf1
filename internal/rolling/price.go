package rolling

import (
	"math"
	"sort"
	"time"

	"github.com/pearsonlabs/factorpipe/internal/contracts"
)

// TradingWindow is the trailing window, in trading days, for momentum and
// volatility. Insufficient history drops the point: no history is not the
// same as no signal.
const TradingWindow = 20

// PricePoint is one trading day of a positive, usable close price.
type PricePoint struct {
	Date  time.Time
	Price float64
}

// TechnicalPoint carries the rolling price statistics for one trading day.
// Momentum and volatility are nil while the trailing window is not yet full.
type TechnicalPoint struct {
	Date       time.Time
	Momentum   *float64
	Volatility *float64
}

// PriceSeries extracts a clean, date-sorted trading-day series from price
// observations. Nil, non-positive, and non-finite prices are excluded;
// duplicate dates resolve to the last observation.
func PriceSeries(observations []contracts.AtomicObservation) []PricePoint {
	byDay := make(map[time.Time]float64)
	for _, obs := range observations {
		if obs.Value == nil {
			continue
		}
		v := *obs.Value
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		byDay[midnight(obs.ObservationDate)] = v
	}
	out := make([]PricePoint, 0, len(byDay))
	for day, price := range byDay {
		out = append(out, PricePoint{Date: day, Price: price})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Technical computes momentum_1m and volatility_20d over a trading-day price
// series. Momentum at day t is price[t]/price[t-20]-1; volatility is the
// sample standard deviation of simple daily returns over the trailing 20
// trading days. The window counts trading days, not calendar days.
func Technical(prices []PricePoint) []TechnicalPoint {
	out := make([]TechnicalPoint, len(prices))
	for i, p := range prices {
		out[i] = TechnicalPoint{Date: p.Date}
		if i < TradingWindow {
			continue
		}

		past := prices[i-TradingWindow].Price
		if past > 0 {
			m := p.Price/past - 1.0
			out[i].Momentum = &m
		}

		returns := make([]float64, 0, TradingWindow)
		for j := i - TradingWindow + 1; j <= i; j++ {
			prev := prices[j-1].Price
			if prev <= 0 {
				continue
			}
			returns = append(returns, prices[j].Price/prev-1.0)
		}
		if v := sampleStdDev(returns); v != nil {
			out[i].Volatility = v
		}
	}
	return out
}

// sampleStdDev returns the sample (n-1) standard deviation, nil when fewer
// than two observations exist.
func sampleStdDev(values []float64) *float64 {
	n := len(values)
	if n < 2 {
		return nil
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	std := math.Sqrt(sumSq / float64(n-1))
	return &std
}
