package contracts

// QualityReport aggregates run-level quality counters. Rule evaluation itself
// is pure; callers fold verdicts into a report they own, then merge reports at
// the fan-in barrier.
type QualityReport struct {
	RowsOut        int               `json:"rows_out"`
	MalformedInput int               `json:"malformed_input"`
	MissingValues  int               `json:"missing_values"`
	Duplicates     int               `json:"duplicates"`
	Dropped        map[string]int    `json:"dropped"`
	Flagged        map[string]int    `json:"flagged"`
	SymbolErrors   map[string]string `json:"symbol_errors,omitempty"`
}

// NewQualityReport returns an empty report with initialized counters.
func NewQualityReport() *QualityReport {
	return &QualityReport{
		Dropped:      make(map[string]int),
		Flagged:      make(map[string]int),
		SymbolErrors: make(map[string]string),
	}
}

// AddDrop counts a suppressed candidate row under the given reason.
func (r *QualityReport) AddDrop(reason string) {
	r.Dropped[reason]++
}

// AddFlags counts the quality flags attached to a kept row.
func (r *QualityReport) AddFlags(flags []string) {
	for _, flag := range flags {
		r.Flagged[flag]++
	}
}

// AddSymbolError records an isolated per-symbol failure.
func (r *QualityReport) AddSymbolError(symbol string, err error) {
	if err == nil {
		return
	}
	r.SymbolErrors[symbol] = err.Error()
}

// Merge folds another report into this one. Used at the fan-in barrier to
// combine per-symbol reports.
func (r *QualityReport) Merge(other *QualityReport) {
	if other == nil {
		return
	}
	r.RowsOut += other.RowsOut
	r.MalformedInput += other.MalformedInput
	r.MissingValues += other.MissingValues
	r.Duplicates += other.Duplicates
	for reason, n := range other.Dropped {
		r.Dropped[reason] += n
	}
	for flag, n := range other.Flagged {
		r.Flagged[flag] += n
	}
	for symbol, msg := range other.SymbolErrors {
		r.SymbolErrors[symbol] = msg
	}
}

// DroppedCount is the total number of suppressed candidate rows.
func (r *QualityReport) DroppedCount() int {
	total := 0
	for _, n := range r.Dropped {
		total += n
	}
	return total
}

// StaleCount is the number of kept rows flagged with a staleness warning.
func (r *QualityReport) StaleCount() int {
	return r.Flagged[FlagFinancialStale] + r.Flagged[FlagStalePrice]
}

// ExpiredCount is the number of rows dropped past the hard staleness ceiling.
func (r *QualityReport) ExpiredCount() int {
	return r.Dropped[FlagDataExpired]
}

// Passed reports whether the run produced no malformed input and no duplicate
// output keys. Quality drops and flags do not fail a run.
func (r *QualityReport) Passed() bool {
	return r.MalformedInput == 0 && r.Duplicates == 0
}
