// Package transform converts a symbol's atomic observations into curated
// factor rows on the calendar grids each factor requires, then fans the
// per-symbol work out over a bounded worker pool.
package transform

import (
	"time"

	"github.com/pearsonlabs/factorpipe/internal/align"
	"github.com/pearsonlabs/factorpipe/internal/contracts"
	"github.com/pearsonlabs/factorpipe/internal/rolling"
	"github.com/pearsonlabs/factorpipe/internal/rules"
)

// builder holds everything needed to compute one symbol's factors for one run.
// It owns its alignment state for the duration of the run and is discarded
// afterwards.
type builder struct {
	symbol   string
	cfg      rules.Config
	state    *align.State
	byMetric map[string][]contracts.AtomicObservation
	start    time.Time
	end      time.Time
	report   *contracts.QualityReport
}

func newBuilder(symbol string, observations []contracts.AtomicObservation, start, end time.Time, cfg rules.Config) *builder {
	byMetric := make(map[string][]contracts.AtomicObservation)
	for _, obs := range observations {
		byMetric[obs.MetricName] = append(byMetric[obs.MetricName], obs)
	}
	return &builder{
		symbol:   symbol,
		cfg:      cfg,
		state:    align.NewState(symbol, observations),
		byMetric: byMetric,
		start:    start,
		end:      end,
		report:   contracts.NewQualityReport(),
	}
}

// build produces all candidate factor rows for the symbol. pb_ratio rows are
// candidates only: the cross-sectional cap still runs at the fan-in barrier.
func (b *builder) build() []contracts.FactorObservation {
	months := align.MonthEnds(b.start, b.end)
	quarters := align.QuarterEnds(b.start, b.end)

	var rows []contracts.FactorObservation
	rows = append(rows, b.dividendYield(months)...)
	rows = append(rows, b.pbRatio(months)...)
	rows = append(rows, b.debtToEquity(quarters)...)
	rows = append(rows, b.ebitdaMargin(quarters)...)
	rows = append(rows, b.sentiment(months)...)
	rows = append(rows, b.technical()...)
	b.report.RowsOut = len(rows)
	return rows
}

// priceAsOf performs the strict backward-only price lookup with the bounded
// fallback window. Never consults dates after d by construction.
func (b *builder) priceAsOf(d time.Time) *align.Aligned {
	return b.state.Series(contracts.MetricAdjustedClose).AsOfWithin(d, b.cfg.PriceFallbackDays)
}

func (b *builder) dividendYield(months []time.Time) []contracts.FactorObservation {
	var rows []contracts.FactorObservation
	dividends := b.state.Series(contracts.MetricDividendPerShare)

	for _, monthEnd := range months {
		in := rules.Inputs{Price: b.priceAsOf(monthEnd)}
		if in.Price != nil {
			// TTM window anchors on the effective price date, not the grid
			// date, so the yield numerator and denominator share a timeline.
			ttm := dividends.SumBetween(in.Price.ReferenceDate.AddDate(0, 0, -365), in.Price.ReferenceDate)
			in.TTMDividends = &ttm
		}
		if row, ok := b.evaluate(contracts.FactorDividendYield, monthEnd, contracts.FreqMonthly, in, refDate(in.Price)); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

func (b *builder) pbRatio(months []time.Time) []contracts.FactorObservation {
	var rows []contracts.FactorObservation
	shares := b.state.Series(contracts.MetricSharesOut)
	book := b.state.Series(contracts.MetricBookValue)

	for _, monthEnd := range months {
		in := rules.Inputs{
			Price:     b.priceAsOf(monthEnd),
			Shares:    shares.AsOf(monthEnd),
			BookValue: book.AsOf(monthEnd),
		}
		if row, ok := b.evaluate(contracts.FactorPBRatio, monthEnd, contracts.FreqMonthly, in, refDate(in.Price)); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

func (b *builder) debtToEquity(quarters []time.Time) []contracts.FactorObservation {
	var rows []contracts.FactorObservation
	total := b.state.Series(contracts.MetricTotalDebt)
	short := b.state.Series(contracts.MetricShortTermDebt)
	long := b.state.Series(contracts.MetricLongTermDebt)
	book := b.state.Series(contracts.MetricBookValue)

	for _, qEnd := range quarters {
		in := rules.Inputs{
			TotalDebt:     total.AsOf(qEnd),
			ShortTermDebt: short.AsOf(qEnd),
			LongTermDebt:  long.AsOf(qEnd),
			BookValue:     book.AsOf(qEnd),
		}
		// Reference date comes from the debt figure actually used: the
		// reported total when present, otherwise its components.
		debtSlots := []*align.Aligned{in.TotalDebt}
		if in.TotalDebt == nil || in.TotalDebt.Value == nil {
			debtSlots = []*align.Aligned{in.ShortTermDebt, in.LongTermDebt}
		}
		ref := latestRef(append(debtSlots, in.BookValue)...)
		if row, ok := b.evaluate(contracts.FactorDebtToEquity, qEnd, contracts.FreqQuarterly, in, ref); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

func (b *builder) ebitdaMargin(quarters []time.Time) []contracts.FactorObservation {
	var rows []contracts.FactorObservation
	ebitda := b.state.Series(contracts.MetricEBITDA)
	revenue := b.state.Series(contracts.MetricRevenue)

	for _, qEnd := range quarters {
		in := rules.Inputs{
			EBITDA:  ebitda.AsOf(qEnd),
			Revenue: revenue.AsOf(qEnd),
		}
		ref := latestRef(in.EBITDA, in.Revenue)
		if row, ok := b.evaluate(contracts.FactorEBITDAMargin, qEnd, contracts.FreqQuarterly, in, ref); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// sentiment emits sentiment_30d_avg and article_count_30d for every month end,
// including symbols that never had an article: those sample as a true-neutral
// 0.0 with a zero count, never as a dropped row.
func (b *builder) sentiment(months []time.Time) []contracts.FactorObservation {
	days := rolling.DailySentiment(
		b.byMetric[contracts.MetricNewsSentiment],
		b.byMetric[contracts.MetricNewsArticleCount],
		b.start, b.end,
	)
	windowed := rolling.Window30(days)
	byDate := make(map[time.Time]rolling.SentimentPoint, len(windowed))
	for _, point := range windowed {
		byDate[point.Date] = point
	}

	var rows []contracts.FactorObservation
	for _, monthEnd := range months {
		point, ok := byDate[monthEnd]
		if !ok {
			// Grid date outside the dense series: true zero-news fallback.
			point = rolling.SentimentPoint{Date: monthEnd}
		}
		in := rules.Inputs{Sentiment30: &point.Mean30}
		ref := point.Date
		if row, kept := b.evaluate(contracts.FactorSentiment30d, monthEnd, contracts.FreqMonthly, in, &ref); kept {
			rows = append(rows, row)
		}
		count := point.Count30
		rows = append(rows, contracts.FactorObservation{
			Symbol:           b.symbol,
			ObservationDate:  monthEnd,
			FactorName:       contracts.FactorArticleCount30,
			FactorValue:      &count,
			Source:           contracts.SourceTransform,
			MetricFrequency:  contracts.FreqMonthly,
			SourceReportDate: &ref,
		})
	}
	return rows
}

// technical emits daily momentum_1m and volatility_20d rows from the
// trading-day price series. Short histories drop rather than zero-fill.
func (b *builder) technical() []contracts.FactorObservation {
	prices := rolling.PriceSeries(b.byMetric[contracts.MetricAdjustedClose])
	if len(prices) > 0 && len(prices) <= rolling.TradingWindow {
		b.report.AddDrop(rules.ReasonInsufficientHist)
		return nil
	}

	var rows []contracts.FactorObservation
	for _, point := range rolling.Technical(prices) {
		if point.Date.Before(b.start) || point.Date.After(b.end) {
			continue
		}
		ref := point.Date
		if point.Momentum != nil {
			rows = append(rows, contracts.FactorObservation{
				Symbol:           b.symbol,
				ObservationDate:  point.Date,
				FactorName:       contracts.FactorMomentum1M,
				FactorValue:      point.Momentum,
				Source:           contracts.SourceTransform,
				MetricFrequency:  contracts.FreqDaily,
				SourceReportDate: &ref,
			})
		}
		if point.Volatility != nil {
			rows = append(rows, contracts.FactorObservation{
				Symbol:           b.symbol,
				ObservationDate:  point.Date,
				FactorName:       contracts.FactorVolatility20d,
				FactorValue:      point.Volatility,
				Source:           contracts.SourceTransform,
				MetricFrequency:  contracts.FreqDaily,
				SourceReportDate: &ref,
			})
		}
	}
	return rows
}

// evaluate runs the factor's quality rule, folds the verdict into either the
// report (drop) or the row's flags (keep).
func (b *builder) evaluate(factor string, obsDate time.Time, frequency string, in rules.Inputs, ref *time.Time) (contracts.FactorObservation, bool) {
	outcome, err := rules.Evaluate(factor, b.cfg, in)
	if err != nil {
		// Unregistered factor is a programming error; count and move on.
		b.report.AddDrop(factor + "_unregistered")
		return contracts.FactorObservation{}, false
	}
	if !outcome.Verdict.Keep {
		b.report.AddDrop(outcome.Verdict.Reason)
		return contracts.FactorObservation{}, false
	}

	row := contracts.FactorObservation{
		Symbol:           b.symbol,
		ObservationDate:  obsDate,
		FactorName:       factor,
		FactorValue:      outcome.Value,
		Source:           contracts.SourceTransform,
		MetricFrequency:  frequency,
		SourceReportDate: ref,
	}
	for _, flag := range outcome.Verdict.Flags {
		row.AddFlag(flag)
	}
	b.report.AddFlags(row.QualityFlags)
	return row, true
}

func refDate(a *align.Aligned) *time.Time {
	if a == nil {
		return nil
	}
	ref := a.ReferenceDate
	return &ref
}

// latestRef returns the most recent reference date among the resolved inputs,
// mirroring how a combined factor inherits the newest of its parts.
func latestRef(slots ...*align.Aligned) *time.Time {
	var latest *time.Time
	for _, a := range slots {
		if a == nil {
			continue
		}
		ref := a.ReferenceDate
		if latest == nil || ref.After(*latest) {
			latest = &ref
		}
	}
	return latest
}
