package rules

import (
	"math"
	"sort"
	"time"

	"github.com/pearsonlabs/factorpipe/internal/contracts"
)

// ApplyCrossSectionalCap clamps pb_ratio outliers against the distribution of
// the factor across all symbols sharing an observation period. With fewer than
// CapMinSample values the percentile is unstable, so a fixed cap applies
// instead. Capping is a clamp, never a drop. Returns the number of rows
// clamped.
//
// This is the single synchronization barrier of a run: every symbol's
// candidate pb_ratio rows must be collected before it can execute.
func ApplyCrossSectionalCap(cfg Config, rows []*contracts.FactorObservation) int {
	byPeriod := make(map[time.Time][]*contracts.FactorObservation)
	for _, row := range rows {
		if row.FactorName != contracts.FactorPBRatio || row.FactorValue == nil {
			continue
		}
		byPeriod[row.ObservationDate] = append(byPeriod[row.ObservationDate], row)
	}

	capped := 0
	for _, group := range byPeriod {
		values := make([]float64, 0, len(group))
		for _, row := range group {
			values = append(values, *row.FactorValue)
		}

		limit := cfg.CapFixed
		if len(values) >= cfg.CapMinSample {
			limit = Percentile(values, cfg.CapPercentile)
		}
		for _, row := range group {
			if *row.FactorValue > limit {
				clamped := limit
				row.FactorValue = &clamped
				capped++
			}
		}
	}
	return capped
}

// Percentile computes the p-th percentile (0 < p <= 1) with linear
// interpolation between closest ranks. The input slice is not modified.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
