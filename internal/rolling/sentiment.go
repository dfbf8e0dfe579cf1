// Package rolling computes calendar-time and trading-time rolling statistics
// for the accumulation-style factors: news sentiment windows and price
// momentum/volatility.
package rolling

import (
	"time"

	"github.com/pearsonlabs/factorpipe/internal/align"
	"github.com/pearsonlabs/factorpipe/internal/contracts"
)

// SentimentWindowDays is the trailing window applied to daily news sentiment.
const SentimentWindowDays = 30

// SentimentDay is one calendar day of the per-symbol news series after
// same-day aggregation and gap filling.
type SentimentDay struct {
	Date         time.Time
	Sentiment    float64
	ArticleCount float64
}

// SentimentPoint is the windowed series sampled on one calendar day.
type SentimentPoint struct {
	Date    time.Time
	Mean30  float64
	Count30 float64
}

// DailySentiment builds a dense calendar-day series from raw sentiment and
// article-count observations. Same-day scores average, same-day counts sum,
// and days with no articles are filled with 0.0 before any windowing: the
// rolling denominator is calendar time, not row count, and true-neutral
// padding stays distinguishable from a reported neutral score only through
// the article count.
func DailySentiment(scores, counts []contracts.AtomicObservation, start, end time.Time) []SentimentDay {
	type acc struct {
		sum float64
		n   int
	}
	scoreByDay := make(map[time.Time]*acc)
	for _, obs := range scores {
		if obs.Value == nil {
			continue
		}
		day := midnight(obs.ObservationDate)
		if day.Before(start) || day.After(end) {
			continue
		}
		a := scoreByDay[day]
		if a == nil {
			a = &acc{}
			scoreByDay[day] = a
		}
		a.sum += *obs.Value
		a.n++
	}

	countByDay := make(map[time.Time]float64)
	for _, obs := range counts {
		if obs.Value == nil {
			continue
		}
		day := midnight(obs.ObservationDate)
		if day.Before(start) || day.After(end) {
			continue
		}
		countByDay[day] += *obs.Value
	}

	days := make([]SentimentDay, 0, align.DaysBetween(start, end)+1)
	for d := midnight(start); !d.After(end); d = d.AddDate(0, 0, 1) {
		day := SentimentDay{Date: d}
		if a, ok := scoreByDay[d]; ok && a.n > 0 {
			day.Sentiment = a.sum / float64(a.n)
		}
		day.ArticleCount = countByDay[d]
		days = append(days, day)
	}
	return days
}

// Window30 applies the trailing 30-calendar-day mean to sentiment and sum to
// article counts. The window at day i covers days [i-29, i]; windows near the
// series start shrink rather than emitting nothing. The mean is clamped to
// [-1, 1] after windowing.
func Window30(days []SentimentDay) []SentimentPoint {
	out := make([]SentimentPoint, len(days))
	var sentSum, countSum float64
	for i, day := range days {
		sentSum += day.Sentiment
		countSum += day.ArticleCount
		if i >= SentimentWindowDays {
			sentSum -= days[i-SentimentWindowDays].Sentiment
			countSum -= days[i-SentimentWindowDays].ArticleCount
		}
		width := i + 1
		if width > SentimentWindowDays {
			width = SentimentWindowDays
		}
		mean := sentSum / float64(width)
		if mean > 1.0 {
			mean = 1.0
		} else if mean < -1.0 {
			mean = -1.0
		}
		out[i] = SentimentPoint{Date: day.Date, Mean30: mean, Count30: countSum}
	}
	return out
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
