package contracts

import "time"

// Period types accepted on financial observation rows.
const (
	PeriodAnnual    = "annual"
	PeriodQuarterly = "quarterly"
	PeriodTTM       = "ttm"
	PeriodSnapshot  = "snapshot"
	PeriodUnknown   = "unknown"
)

// Metric definitions recorded with financial observations.
const (
	DefinitionProviderReported = "provider_reported"
	DefinitionNormalized       = "normalized"
	DefinitionEstimated        = "estimated"
	DefinitionUnknown          = "unknown"
)

// FinancialObservation is an atomic fundamental metric with report-period
// semantics, persisted in the financial long table. ReportDate carries the
// period the figure describes; AsOf is when it became known.
type FinancialObservation struct {
	Symbol           string
	ReportDate       time.Time
	MetricName       string
	MetricValue      *float64
	Currency         string
	PeriodType       string
	MetricDefinition string
	Source           string
	AsOf             *time.Time
}

// Atomic converts a financial observation to the canonical atomic schema
// consumed by the alignment engine. The report date becomes the reference
// date so no-look-ahead holds across reporting lags.
func (f FinancialObservation) Atomic() AtomicObservation {
	ref := f.ReportDate
	obs := f.ReportDate
	if f.AsOf != nil {
		obs = *f.AsOf
	}
	return AtomicObservation{
		Symbol:              f.Symbol,
		ObservationDate:     obs,
		MetricName:          f.MetricName,
		Value:               f.MetricValue,
		Source:              f.Source,
		MetricFrequency:     f.PeriodType,
		ReportReferenceDate: &ref,
	}
}
