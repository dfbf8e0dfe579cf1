// Package normalize maps heterogeneous provider-shaped records into the
// canonical atomic observation schema. It is pure: no storage side effects,
// only the normalized sequence plus drop counters.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pearsonlabs/factorpipe/internal/contracts"
)

// Record is one raw provider payload. Extractors emit loosely shaped maps;
// field aliases are tolerated here and nowhere else.
type Record map[string]any

// Result is the outcome of normalizing a batch of raw records.
type Result struct {
	Observations []contracts.AtomicObservation
	Dropped      int
	NullValues   int
}

// Records normalizes raw extractor records. Records missing the symbol,
// observation date, or metric name are dropped and counted, never fatal.
// Unparseable numeric values become nil values: "reported but unusable" is
// distinct from "not reported".
func Records(records []Record) Result {
	result := Result{Observations: make([]contracts.AtomicObservation, 0, len(records))}

	for _, rec := range records {
		symbol := strings.ToUpper(strings.TrimSpace(stringField(rec, "symbol", "entity_id", "ticker")))
		metricName := strings.TrimSpace(stringField(rec, "metric_name", "factor_name", "metric"))
		obsDate := dateField(rec, "observation_date", "date", "as_of")

		if symbol == "" || metricName == "" || obsDate == nil {
			result.Dropped++
			continue
		}

		value := floatField(rec, "value", "factor_value", "metric_value")
		if value == nil {
			result.NullValues++
		}

		freq := strings.ToLower(strings.TrimSpace(stringField(rec, "metric_frequency", "frequency", "period_type")))
		if freq == "" {
			freq = contracts.FreqUnknown
		}

		source := stringField(rec, "source")
		if source == "" {
			source = "unknown"
		}

		obs := contracts.AtomicObservation{
			Symbol:              symbol,
			ObservationDate:     *obsDate,
			MetricName:          metricName,
			Value:               value,
			Source:              source,
			MetricFrequency:     freq,
			ReportReferenceDate: dateField(rec, "report_reference_date", "report_date", "source_report_date"),
		}
		result.Observations = append(result.Observations, obs)
	}

	return result
}

// FinancialRecords normalizes raw fundamentals into financial observations
// with report-period semantics. Records without a metric name or report date
// are dropped.
func FinancialRecords(records []Record) ([]contracts.FinancialObservation, int) {
	out := make([]contracts.FinancialObservation, 0, len(records))
	dropped := 0

	for _, rec := range records {
		symbol := strings.ToUpper(strings.TrimSpace(stringField(rec, "symbol", "entity_id", "ticker")))
		metricName := strings.TrimSpace(stringField(rec, "metric_name", "factor_name", "metric"))
		reportDate := dateField(rec, "report_date", "source_report_date", "observation_date")
		if symbol == "" || metricName == "" || reportDate == nil {
			dropped++
			continue
		}

		currency := strings.ToUpper(strings.TrimSpace(stringField(rec, "currency")))
		if currency == "" {
			currency = "UNKNOWN"
		}
		periodType := strings.ToLower(strings.TrimSpace(stringField(rec, "period_type", "metric_frequency", "frequency")))
		if periodType == "" {
			periodType = contracts.PeriodUnknown
		}
		definition := strings.ToLower(strings.TrimSpace(stringField(rec, "metric_definition", "definition")))
		if definition == "" {
			definition = contracts.DefinitionProviderReported
		}
		source := stringField(rec, "source")
		if source == "" {
			source = "unknown"
		}

		out = append(out, contracts.FinancialObservation{
			Symbol:           symbol,
			ReportDate:       *reportDate,
			MetricName:       metricName,
			MetricValue:      floatField(rec, "metric_value", "value", "factor_value"),
			Currency:         currency,
			PeriodType:       periodType,
			MetricDefinition: definition,
			Source:           source,
			AsOf:             dateField(rec, "as_of", "observation_date"),
		})
	}

	return out, dropped
}

// stringField returns the first non-empty string among the aliased keys.
func stringField(rec Record, keys ...string) string {
	for _, key := range keys {
		raw, ok := rec[key]
		if !ok || raw == nil {
			continue
		}
		if s, ok := raw.(string); ok {
			if strings.TrimSpace(s) != "" {
				return s
			}
			continue
		}
	}
	return ""
}

// dateField parses the first usable date among the aliased keys. Accepts
// time.Time and ISO strings, with or without a time component.
func dateField(rec Record, keys ...string) *time.Time {
	for _, key := range keys {
		raw, ok := rec[key]
		if !ok || raw == nil {
			continue
		}
		if d := parseDate(raw); d != nil {
			return d
		}
	}
	return nil
}

func parseDate(raw any) *time.Time {
	switch v := raw.(type) {
	case time.Time:
		d := time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
		return &d
	case *time.Time:
		if v == nil {
			return nil
		}
		return parseDate(*v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		switch strings.ToLower(s) {
		case "nat", "nan", "none", "null":
			return nil
		}
		// Accept 'YYYY-MM-DD...' with a trailing time component.
		if len(s) > 10 {
			s = s[:10]
		}
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil
		}
		return &d
	}
	return nil
}

// floatField parses the first usable numeric value among the aliased keys.
// Non-finite values and unparseable strings yield nil.
func floatField(rec Record, keys ...string) *float64 {
	for _, key := range keys {
		raw, ok := rec[key]
		if !ok {
			continue
		}
		return parseFloat(raw)
	}
	return nil
}

func parseFloat(raw any) *float64 {
	switch v := raw.(type) {
	case nil:
		return nil
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return finite(float64(v))
	case int32:
		return finite(float64(v))
	case int64:
		return finite(float64(v))
	case *float64:
		if v == nil {
			return nil
		}
		return finite(*v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		switch strings.ToLower(s) {
		case "nan", "none", "null":
			return nil
		}
		// Tolerate thousands separators from spreadsheet-style exports.
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return finite(f)
	}
	return nil
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
