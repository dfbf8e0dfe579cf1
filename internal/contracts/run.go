package contracts

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Run statuses recorded in the audit table.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// RunContext carries the parameters of a single transform run. It is threaded
// explicitly through each stage so concurrent per-symbol tasks stay
// independent of ambient process state.
type RunContext struct {
	RunID         string
	RunDate       time.Time
	Frequency     string
	BackfillYears int
	Symbols       []string
	DryRun        bool
}

// NewRunContext builds a run context with a fresh run id.
func NewRunContext(runDate time.Time, frequency string, backfillYears int, symbols []string) RunContext {
	return RunContext{
		RunID:         uuid.NewString(),
		RunDate:       runDate,
		Frequency:     frequency,
		BackfillYears: backfillYears,
		Symbols:       symbols,
	}
}

// StartDate is the beginning of the factor output window: backfill_years of
// history before the run date, with a floor of one year.
func (rc RunContext) StartDate() time.Time {
	years := rc.BackfillYears
	if years < 1 {
		years = 1
	}
	lookbackDays := int(math.Round(365.25 * float64(years)))
	if lookbackDays < 1 {
		lookbackDays = 1
	}
	return rc.RunDate.AddDate(0, 0, -lookbackDays)
}

// DataStartDate extends the output window backwards so that carried-forward
// fundamentals published just before the window still resolve. 370 days covers
// the hard staleness ceiling plus reporting slack.
func (rc RunContext) DataStartDate() time.Time {
	return rc.StartDate().AddDate(0, 0, -370)
}

// RunRecord is one audit row per pipeline run. It must be writable even when
// the transform itself fails partway, so a failed run stays observable.
type RunRecord struct {
	RunID         string
	RunDate       time.Time
	StartedAt     time.Time
	FinishedAt    *time.Time
	Status        string
	Frequency     string
	BackfillYears int
	SymbolCount   int
	RowsWritten   int
	ErrorMessage  string
	Notes         string
}
