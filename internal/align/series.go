// Package align resolves atomic observations of differing natural frequency
// onto the calendar grid the output factors require. Lookups are backward-only
// by construction: a series never answers with a point whose reference date is
// after the requested as-of date.
package align

import (
	"sort"
	"time"

	"github.com/pearsonlabs/factorpipe/internal/contracts"
)

// Point is one observation positioned on the series timeline.
type Point struct {
	ReferenceDate   time.Time
	ObservationDate time.Time
	Value           *float64
}

// Aligned is the effective value of a metric at an as-of date, with its
// age-at-use in calendar days. Age feeds the staleness tiers of the quality
// rules.
type Aligned struct {
	Value         *float64
	ReferenceDate time.Time
	AgeDays       int
}

// Series is the per-(symbol, metric) ordered timeline. Points are sorted by
// report reference date (observation date when the provider supplied none);
// duplicate reference dates resolve to the latest observation.
type Series struct {
	points []Point
}

// NewSeries builds a series from atomic observations of a single metric.
func NewSeries(observations []contracts.AtomicObservation) *Series {
	points := make([]Point, 0, len(observations))
	for _, obs := range observations {
		points = append(points, Point{
			ReferenceDate:   obs.ReferenceDate(),
			ObservationDate: obs.ObservationDate,
			Value:           obs.Value,
		})
	}
	sort.SliceStable(points, func(i, j int) bool {
		if !points[i].ReferenceDate.Equal(points[j].ReferenceDate) {
			return points[i].ReferenceDate.Before(points[j].ReferenceDate)
		}
		return points[i].ObservationDate.Before(points[j].ObservationDate)
	})
	return &Series{points: points}
}

// Len returns the number of points in the series.
func (s *Series) Len() int {
	return len(s.points)
}

// Points returns the ordered timeline.
func (s *Series) Points() []Point {
	return s.points
}

// AsOf returns the last point whose reference date is at or before d, carried
// forward step-function style. Returns nil when no such point exists: an
// alignment gap, not an error.
func (s *Series) AsOf(d time.Time) *Aligned {
	idx := s.lastIndexOnOrBefore(d)
	if idx < 0 {
		return nil
	}
	p := s.points[idx]
	return &Aligned{
		Value:         p.Value,
		ReferenceDate: p.ReferenceDate,
		AgeDays:       DaysBetween(p.ReferenceDate, d),
	}
}

// AsOfWithin is AsOf bounded by a maximum lookback in calendar days. Values
// older than the bound are reported as unavailable, never zero.
func (s *Series) AsOfWithin(d time.Time, maxStaleDays int) *Aligned {
	aligned := s.AsOf(d)
	if aligned == nil {
		return nil
	}
	if maxStaleDays >= 0 && aligned.AgeDays > maxStaleDays {
		return nil
	}
	return aligned
}

// SumBetween sums the values of points with reference date in (start, end].
// Nil values contribute zero. Used for trailing-twelve-month dividends.
func (s *Series) SumBetween(start, end time.Time) float64 {
	total := 0.0
	for _, p := range s.points {
		if p.ReferenceDate.After(start) && !p.ReferenceDate.After(end) {
			if p.Value != nil {
				total += *p.Value
			}
		}
	}
	return total
}

// lastIndexOnOrBefore finds the last point with reference date <= d.
// Future points are excluded by the search itself, not filtered afterwards.
func (s *Series) lastIndexOnOrBefore(d time.Time) int {
	lo, hi := 0, len(s.points)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.points[mid].ReferenceDate.After(d) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo - 1
}

// State is the per-symbol alignment state: one series per metric, owned by a
// single run and discarded at run end. It is recomputed from persisted atomics
// on the next run; no cross-run memory exists beyond the store.
type State struct {
	symbol string
	series map[string]*Series
}

// NewState groups a symbol's atomic observations into per-metric series.
func NewState(symbol string, observations []contracts.AtomicObservation) *State {
	byMetric := make(map[string][]contracts.AtomicObservation)
	for _, obs := range observations {
		if obs.Symbol != symbol {
			continue
		}
		byMetric[obs.MetricName] = append(byMetric[obs.MetricName], obs)
	}
	series := make(map[string]*Series, len(byMetric))
	for metric, group := range byMetric {
		series[metric] = NewSeries(group)
	}
	return &State{symbol: symbol, series: series}
}

// Symbol returns the symbol this state belongs to.
func (st *State) Symbol() string {
	return st.symbol
}

// Series returns the timeline for a metric, empty when the metric was never
// observed.
func (st *State) Series(metric string) *Series {
	if s, ok := st.series[metric]; ok {
		return s
	}
	return &Series{}
}
