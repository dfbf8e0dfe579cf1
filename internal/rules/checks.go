package rules

import (
	"math"

	"github.com/pearsonlabs/factorpipe/internal/contracts"
)

// OutputCheck summarizes contract-level checks over the final factor rows
// before they reach the writer.
type OutputCheck struct {
	RowCount         int  `json:"row_count"`
	MissingValues    int  `json:"missing_values"`
	Duplicates       int  `json:"duplicates"`
	MissingRequired  int  `json:"missing_required"`
	InvalidFrequency int  `json:"invalid_frequency"`
	NonFinite        int  `json:"non_numeric_or_non_finite"`
	Passed           bool `json:"passed"`
}

// CheckOutput validates the output rows against the table contract: required
// key fields present, frequency in the allowed set, finite values, and no
// duplicate (symbol, observation_date, factor_name) keys.
func CheckOutput(rows []contracts.FactorObservation) OutputCheck {
	check := OutputCheck{RowCount: len(rows)}
	seen := make(map[contracts.ObservationKey]bool, len(rows))

	for _, row := range rows {
		if row.FactorValue == nil {
			check.MissingValues++
		} else if math.IsNaN(*row.FactorValue) || math.IsInf(*row.FactorValue, 0) {
			check.NonFinite++
		}
		if row.Symbol == "" || row.FactorName == "" || row.ObservationDate.IsZero() ||
			row.Source == "" || row.MetricFrequency == "" {
			check.MissingRequired++
		}
		if !contracts.AllowedFrequencies[row.MetricFrequency] {
			check.InvalidFrequency++
		}
		key := row.Key()
		if seen[key] {
			check.Duplicates++
		} else {
			seen[key] = true
		}
	}

	check.Passed = check.MissingRequired == 0 && check.InvalidFrequency == 0
	return check
}
