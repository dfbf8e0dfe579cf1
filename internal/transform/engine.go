package transform

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pearsonlabs/factorpipe/internal/contracts"
	"github.com/pearsonlabs/factorpipe/internal/rules"
	"github.com/pearsonlabs/factorpipe/pkg/logger"
)

// Engine turns atomic observations into curated factor rows. One symbol
// end-to-end is the unit of parallel work; the cross-sectional cap is the
// single fan-in barrier where all symbols' candidates must be collected.
type Engine struct {
	cfg     rules.Config
	workers int
	logger  *logger.Logger
}

// Config holds engine tuning.
type Config struct {
	Rules   rules.Config
	Workers int
}

// New creates a transform engine.
func New(cfg Config, log *logger.Logger) *Engine {
	workers := cfg.Workers
	if workers < 1 {
		workers = 4
	}
	return &Engine{
		cfg:     cfg.Rules,
		workers: workers,
		logger:  log.WithField("module", "transform"),
	}
}

// Result is the outcome of one transform run before persistence.
type Result struct {
	Rows   []contracts.FactorObservation
	Report *contracts.QualityReport
	Capped int
	Check  rules.OutputCheck
}

// symbolResult crosses the fan-in channel: rows plus the per-symbol report,
// or an isolated error. No shared mutable state crosses symbol boundaries.
type symbolResult struct {
	symbol string
	rows   []contracts.FactorObservation
	report *contracts.QualityReport
	err    error
}

// Run computes factor rows for every symbol in scope. A failing symbol is
// isolated: logged, surfaced in the report, and the rest of the run proceeds.
// Only context cancellation aborts the whole computation.
func (e *Engine) Run(ctx context.Context, rc contracts.RunContext, atomics []contracts.AtomicObservation) (*Result, error) {
	start, end := rc.StartDate(), rc.RunDate
	dataStart := rc.DataStartDate()

	// Bound the input window. Observations referencing dates after the run
	// date never enter a series, so no later lookup can see them.
	bySymbol := make(map[string][]contracts.AtomicObservation)
	for _, obs := range atomics {
		if obs.ObservationDate.Before(dataStart) || obs.ReferenceDate().After(end) {
			continue
		}
		bySymbol[obs.Symbol] = append(bySymbol[obs.Symbol], obs)
	}

	symbols := e.symbolsInScope(rc, bySymbol)
	e.logger.WithFields(map[string]interface{}{
		"run_id":  rc.RunID,
		"symbols": len(symbols),
		"atomics": len(atomics),
		"workers": e.workers,
	}).Info("Starting factor transform")

	// Fan-out: bounded worker pool, one symbol per task.
	symbolCh := make(chan string, len(symbols))
	resultCh := make(chan symbolResult, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range symbolCh {
				select {
				case <-ctx.Done():
					return
				default:
				}
				resultCh <- e.buildSymbol(symbol, bySymbol[symbol], start, end)
			}
		}()
	}
	for _, symbol := range symbols {
		symbolCh <- symbol
	}
	close(symbolCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// Fan-in barrier: collect every symbol's candidates before the
	// cross-sectional step.
	report := contracts.NewQualityReport()
	var rows []contracts.FactorObservation
	for res := range resultCh {
		if res.err != nil {
			e.logger.WithError(res.err).WithField("symbol", res.symbol).Error("Symbol transform failed")
			report.AddSymbolError(res.symbol, res.err)
			continue
		}
		rows = append(rows, res.rows...)
		report.Merge(res.report)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Deterministic output order regardless of worker scheduling.
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		if !rows[i].ObservationDate.Equal(rows[j].ObservationDate) {
			return rows[i].ObservationDate.Before(rows[j].ObservationDate)
		}
		return rows[i].FactorName < rows[j].FactorName
	})

	// The one global step: cap pb_ratio against the full cross-section.
	rowPtrs := make([]*contracts.FactorObservation, len(rows))
	for i := range rows {
		rowPtrs[i] = &rows[i]
	}
	capped := rules.ApplyCrossSectionalCap(e.cfg, rowPtrs)

	check := rules.CheckOutput(rows)
	report.RowsOut = len(rows)
	report.MissingValues += check.MissingValues
	report.Duplicates += check.Duplicates

	e.logger.WithFields(map[string]interface{}{
		"run_id":  rc.RunID,
		"rows":    len(rows),
		"dropped": report.DroppedCount(),
		"stale":   report.StaleCount(),
		"expired": report.ExpiredCount(),
		"capped":  capped,
	}).Info("Factor transform complete")

	return &Result{Rows: rows, Report: report, Capped: capped, Check: check}, nil
}

// buildSymbol computes one symbol's factors, converting panics into isolated
// per-symbol errors so one malformed input set cannot take down the run.
func (e *Engine) buildSymbol(symbol string, observations []contracts.AtomicObservation, start, end time.Time) (res symbolResult) {
	res.symbol = symbol
	defer func() {
		if r := recover(); r != nil {
			res.rows = nil
			res.report = nil
			res.err = fmt.Errorf("transform panic for %s: %v", symbol, r)
		}
	}()

	b := newBuilder(symbol, observations, start, end, e.cfg)
	res.rows = b.build()
	res.report = b.report
	return res
}

func (e *Engine) symbolsInScope(rc contracts.RunContext, bySymbol map[string][]contracts.AtomicObservation) []string {
	var symbols []string
	if len(rc.Symbols) > 0 {
		// Universe symbols with no data at all still get sentiment fallback
		// rows, so scope comes from the run context, not the data.
		symbols = append(symbols, rc.Symbols...)
	} else {
		for symbol := range bySymbol {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)
	return symbols
}
