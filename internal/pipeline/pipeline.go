// Package pipeline wires the transform stages end to end for one run: load
// atomics, compute factors, persist, audit. Partial failure of individual
// symbols never aborts a run; only the storage layer can.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pearsonlabs/factorpipe/internal/contracts"
	"github.com/pearsonlabs/factorpipe/internal/rules"
	"github.com/pearsonlabs/factorpipe/internal/store"
	"github.com/pearsonlabs/factorpipe/internal/transform"
	"github.com/pearsonlabs/factorpipe/pkg/logger"
)

// Pipeline executes factor transform runs against the store.
type Pipeline struct {
	atomics *store.AtomicRepository
	factors *store.FactorRepository
	audit   *store.AuditRepository
	engine  *transform.Engine
	logger  *logger.Logger
}

// New assembles a pipeline from its collaborators.
func New(
	atomics *store.AtomicRepository,
	factors *store.FactorRepository,
	audit *store.AuditRepository,
	engine *transform.Engine,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		atomics: atomics,
		factors: factors,
		audit:   audit,
		engine:  engine,
		logger:  log.WithField("module", "pipeline"),
	}
}

// Outcome is the observable result of one run.
type Outcome struct {
	Run         contracts.RunRecord
	Report      *contracts.QualityReport
	Check       rules.OutputCheck
	RowsWritten int
	Capped      int
}

// Execute runs the transform for the given run context. An audit record is
// always produced, even when the transform fails partway: a failed run must
// stay observable. Rows computed for unaffected symbols before a late failure
// have already been persisted in earlier batches and are reported as written.
func (p *Pipeline) Execute(ctx context.Context, rc contracts.RunContext) (*Outcome, error) {
	rec := contracts.RunRecord{
		RunID:         rc.RunID,
		RunDate:       rc.RunDate,
		StartedAt:     time.Now(),
		Status:        contracts.RunStatusRunning,
		Frequency:     rc.Frequency,
		BackfillYears: rc.BackfillYears,
		SymbolCount:   len(rc.Symbols),
	}
	if rc.DryRun {
		rec.Notes = "dry_run"
	}

	if !rc.DryRun {
		if err := p.audit.StartRun(ctx, rec); err != nil {
			// No audit row means no observability at all; treat like any
			// other storage failure and abort.
			return nil, fmt.Errorf("pipeline: audit start: %w", err)
		}
	}

	outcome, runErr := p.run(ctx, rc, &rec)

	now := time.Now()
	rec.FinishedAt = &now
	if runErr != nil {
		rec.Status = contracts.RunStatusFailed
		rec.ErrorMessage = runErr.Error()
	} else {
		rec.Status = contracts.RunStatusSuccess
	}

	if !rc.DryRun {
		if err := p.audit.FinishRun(ctx, rec); err != nil {
			p.logger.WithError(err).WithField("run_id", rc.RunID).Error("Audit finish failed")
			if runErr == nil {
				runErr = fmt.Errorf("pipeline: audit finish: %w", err)
			}
		}
	}

	if runErr != nil {
		return outcome, runErr
	}
	outcome.Run = rec
	return outcome, nil
}

func (p *Pipeline) run(ctx context.Context, rc contracts.RunContext, rec *contracts.RunRecord) (*Outcome, error) {
	atomics, err := p.atomics.LoadForRun(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load atomics: %w", err)
	}

	result, err := p.engine.Run(ctx, rc, atomics)
	if err != nil {
		return nil, fmt.Errorf("pipeline: transform: %w", err)
	}

	written := len(result.Rows)
	if !rc.DryRun {
		written, err = p.factors.UpsertBatch(ctx, result.Rows)
		rec.RowsWritten = written
		if err != nil {
			// Writer failure is the one escalating error class. Rows already
			// written stay written; the audit record captures the partial
			// outcome.
			return nil, fmt.Errorf("pipeline: upsert factors: %w", err)
		}
	}
	rec.RowsWritten = written

	// Isolated symbol failures surface in the audit error text without
	// failing the run.
	if len(result.Report.SymbolErrors) > 0 {
		rec.ErrorMessage = symbolErrorSummary(result.Report.SymbolErrors)
	}

	p.logger.WithFields(map[string]interface{}{
		"run_id":       rc.RunID,
		"rows_written": written,
		"dropped":      result.Report.DroppedCount(),
		"flagged":      result.Report.StaleCount(),
		"symbol_errs":  len(result.Report.SymbolErrors),
		"dry_run":      rc.DryRun,
	}).Info("Pipeline run complete")

	return &Outcome{
		Run:         *rec,
		Report:      result.Report,
		Check:       result.Check,
		RowsWritten: written,
		Capped:      result.Capped,
	}, nil
}

func symbolErrorSummary(errs map[string]string) string {
	symbols := make([]string, 0, len(errs))
	for symbol := range errs {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	parts := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		parts = append(parts, fmt.Sprintf("%s: %s", symbol, errs[symbol]))
	}
	summary := strings.Join(parts, "; ")
	if len(summary) > 2000 {
		summary = summary[:2000]
	}
	return summary
}
