package contracts

import (
	"sort"
	"time"
)

// Metric frequencies accepted on observation rows.
const (
	FreqDaily     = "daily"
	FreqWeekly    = "weekly"
	FreqMonthly   = "monthly"
	FreqQuarterly = "quarterly"
	FreqAnnual    = "annual"
	FreqUnknown   = "unknown"
)

// AllowedFrequencies is the closed set enforced by the output contract.
var AllowedFrequencies = map[string]bool{
	FreqDaily:     true,
	FreqWeekly:    true,
	FreqMonthly:   true,
	FreqQuarterly: true,
	FreqAnnual:    true,
	FreqUnknown:   true,
}

// Atomic metric names produced by the extractors.
const (
	MetricAdjustedClose    = "adjusted_close_price"
	MetricDailyReturn      = "daily_return"
	MetricDividendPerShare = "dividend_per_share"
	MetricTotalDebt        = "total_debt"
	MetricShortTermDebt    = "short_term_debt"
	MetricLongTermDebt     = "long_term_debt"
	MetricBookValue        = "book_value"
	MetricSharesOut        = "shares_outstanding"
	MetricEBITDA           = "enterprise_ebitda"
	MetricRevenue          = "enterprise_revenue"
	MetricNewsSentiment    = "news_sentiment_daily"
	MetricNewsArticleCount = "news_article_count_daily"
)

// Curated factor names produced by the transform engine.
const (
	FactorDividendYield  = "dividend_yield"
	FactorPBRatio        = "pb_ratio"
	FactorDebtToEquity   = "debt_to_equity"
	FactorEBITDAMargin   = "ebitda_margin"
	FactorSentiment30d   = "sentiment_30d_avg"
	FactorArticleCount30 = "article_count_30d"
	FactorMomentum1M     = "momentum_1m"
	FactorVolatility20d  = "volatility_20d"
)

// Quality flags attached to factor observations.
const (
	FlagStalePrice     = "stale_price"
	FlagFinancialStale = "financial_stale"
	FlagDataExpired    = "data_expired"
)

// SourceTransform marks rows produced by this engine rather than an extractor.
const SourceTransform = "factor_transform"

// AtomicObservation is a single raw metric value for one symbol on one
// date or report period. Immutable once normalized. Duplicates are allowed
// at this layer; the alignment engine resolves them.
type AtomicObservation struct {
	Symbol              string
	ObservationDate     time.Time
	MetricName          string
	Value               *float64
	Source              string
	MetricFrequency     string
	ReportReferenceDate *time.Time
}

// ReferenceDate returns the report reference date, falling back to the
// observation date when the provider did not supply one.
func (a AtomicObservation) ReferenceDate() time.Time {
	if a.ReportReferenceDate != nil {
		return *a.ReportReferenceDate
	}
	return a.ObservationDate
}

// FactorObservation is the unit of output: one curated factor value for one
// symbol on one date. Exactly one row exists per (symbol, observation_date,
// factor_name) after a run; re-running upserts, never duplicates.
type FactorObservation struct {
	Symbol           string
	ObservationDate  time.Time
	FactorName       string
	FactorValue      *float64
	Source           string
	MetricFrequency  string
	SourceReportDate *time.Time
	QualityFlags     []string
}

// AddFlag appends a quality flag, keeping the set unique and sorted.
func (f *FactorObservation) AddFlag(flag string) {
	for _, existing := range f.QualityFlags {
		if existing == flag {
			return
		}
	}
	f.QualityFlags = append(f.QualityFlags, flag)
	sort.Strings(f.QualityFlags)
}

// HasFlag reports whether the observation carries the given quality flag.
func (f *FactorObservation) HasFlag(flag string) bool {
	for _, existing := range f.QualityFlags {
		if existing == flag {
			return true
		}
	}
	return false
}

// Key returns the business-unique identity of the row.
func (f *FactorObservation) Key() ObservationKey {
	return ObservationKey{
		Symbol:          f.Symbol,
		ObservationDate: f.ObservationDate,
		FactorName:      f.FactorName,
	}
}

// ObservationKey is the natural key of the long factor table.
type ObservationKey struct {
	Symbol          string
	ObservationDate time.Time
	FactorName      string
}

// QualityVerdict is the outcome of evaluating quality rules against a
// candidate factor row. It is never persisted on its own: flags fold into
// FactorObservation.QualityFlags and Keep=false suppresses the row.
type QualityVerdict struct {
	Keep   bool
	Flags  []string
	Reason string
}

// Float64 returns a pointer to v. Convenience for optional values.
func Float64(v float64) *float64 {
	return &v
}

// Date builds a UTC midnight time for observation dates.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
