// Package rules is a declarative table of per-factor quality rules. Each rule
// is a pure function of aligned inputs to a value plus a QualityVerdict; the
// registry dispatches by factor name so new factors register without touching
// existing rule logic. Rules perform no I/O; callers accumulate counts.
package rules

import (
	"fmt"

	"github.com/pearsonlabs/factorpipe/internal/align"
	"github.com/pearsonlabs/factorpipe/internal/contracts"
)

// Drop reasons surfaced in the quality report.
const (
	ReasonMissingInput      = "missing_input"
	ReasonNonPositiveRev    = "nonpositive_revenue"
	ReasonNonPositiveEquity = "nonpositive_equity"
	ReasonNonPositiveShares = "nonpositive_shares"
	ReasonUnusablePrice     = "unusable_price"
	ReasonInsufficientHist  = "insufficient_history"
)

// Config holds the rule thresholds. The staleness policy is the two-tier
// variant: a soft warning flag at SoftStaleDays and a hard drop at
// HardExpiryDays. Thresholds are configuration, not constants.
type Config struct {
	SoftStaleDays     int     // financial_stale flag beyond this age
	HardExpiryDays    int     // data_expired drop beyond this age
	PriceFallbackDays int     // bounded backward window for price lookups
	PriceStaleDays    int     // stale_price flag beyond this price age
	CapMinSample      int     // minimum cross-section size for the percentile cap
	CapPercentile     float64 // percentile used when the sample is large enough
	CapFixed          float64 // fixed cap for small samples
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		SoftStaleDays:     270,
		HardExpiryDays:    365,
		PriceFallbackDays: 3,
		PriceStaleDays:    1,
		CapMinSample:      50,
		CapPercentile:     0.99,
		CapFixed:          100.0,
	}
}

// Inputs are the aligned values a rule may consult. Only the slots a factor
// needs are populated; a nil slot is an alignment gap.
type Inputs struct {
	Price         *align.Aligned
	TTMDividends  *float64
	Shares        *align.Aligned
	BookValue     *align.Aligned
	TotalDebt     *align.Aligned
	ShortTermDebt *align.Aligned
	LongTermDebt  *align.Aligned
	EBITDA        *align.Aligned
	Revenue       *align.Aligned
	Sentiment30   *float64
}

// Outcome pairs the computed factor value with its quality verdict.
type Outcome struct {
	Value   *float64
	Verdict contracts.QualityVerdict
}

// Func evaluates one factor's rule against aligned inputs.
type Func func(cfg Config, in Inputs) Outcome

var registry = map[string]Func{
	contracts.FactorDividendYield: dividendYield,
	contracts.FactorEBITDAMargin:  ebitdaMargin,
	contracts.FactorDebtToEquity:  debtToEquity,
	contracts.FactorPBRatio:       pbRatio,
	contracts.FactorSentiment30d:  sentiment30d,
}

// Register adds or replaces a rule for a factor name.
func Register(factor string, fn Func) {
	registry[factor] = fn
}

// Evaluate dispatches to the registered rule for the factor.
func Evaluate(factor string, cfg Config, in Inputs) (Outcome, error) {
	fn, ok := registry[factor]
	if !ok {
		return Outcome{}, fmt.Errorf("rules: no rule registered for factor %q", factor)
	}
	return fn(cfg, in), nil
}

func drop(reason string, flags ...string) Outcome {
	return Outcome{Verdict: contracts.QualityVerdict{Keep: false, Flags: flags, Reason: reason}}
}

func keep(value float64, flags ...string) Outcome {
	return Outcome{
		Value:   &value,
		Verdict: contracts.QualityVerdict{Keep: true, Flags: flags},
	}
}

// usable reports whether an aligned slot resolved to a concrete value.
func usable(a *align.Aligned) bool {
	return a != nil && a.Value != nil
}

// dividendYield: trailing-twelve-month dividends over the last usable price.
// No dividends in the trailing year is a true zero yield, not a gap. A price
// resolved through the fallback window gets flagged when older than the
// configured price staleness.
func dividendYield(cfg Config, in Inputs) Outcome {
	if !usable(in.Price) || *in.Price.Value <= 0 {
		return drop(ReasonUnusablePrice)
	}
	ttm := 0.0
	if in.TTMDividends != nil {
		ttm = *in.TTMDividends
	}
	var flags []string
	if in.Price.AgeDays > cfg.PriceStaleDays {
		flags = append(flags, contracts.FlagStalePrice)
	}
	return keep(ttm / *in.Price.Value, flags...)
}

// ebitdaMargin: ebitda over revenue, quarterly. Either input missing drops;
// non-positive revenue drops; combined input age past the hard ceiling drops
// with data_expired, past the soft ceiling keeps with financial_stale.
func ebitdaMargin(cfg Config, in Inputs) Outcome {
	if !usable(in.EBITDA) || !usable(in.Revenue) {
		return drop(ReasonMissingInput)
	}
	age := maxAge(in.EBITDA, in.Revenue)
	if age > cfg.HardExpiryDays {
		return drop(contracts.FlagDataExpired, contracts.FlagDataExpired)
	}
	if *in.Revenue.Value <= 0 {
		return drop(ReasonNonPositiveRev)
	}
	var flags []string
	if age > cfg.SoftStaleDays {
		flags = append(flags, contracts.FlagFinancialStale)
	}
	return keep(*in.EBITDA.Value / *in.Revenue.Value, flags...)
}

// debtToEquity: total debt over book equity, quarterly. A missing total debt
// is reconstructed as short-term plus long-term debt before the drop check;
// only when both components are missing too does the row drop.
func debtToEquity(cfg Config, in Inputs) Outcome {
	debt, debtAge, ok := resolveTotalDebt(in)
	if !ok {
		return drop(ReasonMissingInput)
	}
	if !usable(in.BookValue) {
		return drop(ReasonMissingInput)
	}
	age := debtAge
	if in.BookValue.AgeDays > age {
		age = in.BookValue.AgeDays
	}
	if age > cfg.HardExpiryDays {
		return drop(contracts.FlagDataExpired, contracts.FlagDataExpired)
	}
	if *in.BookValue.Value <= 0 {
		return drop(ReasonNonPositiveEquity)
	}
	var flags []string
	if age > cfg.SoftStaleDays {
		flags = append(flags, contracts.FlagFinancialStale)
	}
	return keep(debt / *in.BookValue.Value, flags...)
}

// resolveTotalDebt prefers the reported total, falling back to the sum of the
// short- and long-term components when at least one is present.
func resolveTotalDebt(in Inputs) (value float64, ageDays int, ok bool) {
	if usable(in.TotalDebt) {
		return *in.TotalDebt.Value, in.TotalDebt.AgeDays, true
	}
	short, long := in.ShortTermDebt, in.LongTermDebt
	if !usable(short) && !usable(long) {
		return 0, 0, false
	}
	total := 0.0
	age := 0
	if usable(short) {
		total += *short.Value
		age = short.AgeDays
	}
	if usable(long) {
		total += *long.Value
		if long.AgeDays > age {
			age = long.AgeDays
		}
	}
	return total, age, true
}

// pbRatio: price times shares over book equity, monthly. Price staleness and
// fundamentals staleness flag independently. The cross-sectional cap is a
// separate post-collection step, not part of this rule.
func pbRatio(cfg Config, in Inputs) Outcome {
	if !usable(in.Price) || *in.Price.Value <= 0 {
		return drop(ReasonUnusablePrice)
	}
	if !usable(in.Shares) || !usable(in.BookValue) {
		return drop(ReasonMissingInput)
	}
	fundAge := maxAge(in.Shares, in.BookValue)
	if fundAge > cfg.HardExpiryDays {
		return drop(contracts.FlagDataExpired, contracts.FlagDataExpired)
	}
	if *in.Shares.Value <= 0 {
		return drop(ReasonNonPositiveShares)
	}
	if *in.BookValue.Value <= 0 {
		return drop(ReasonNonPositiveEquity)
	}
	var flags []string
	if in.Price.AgeDays > cfg.PriceStaleDays {
		flags = append(flags, contracts.FlagStalePrice)
	}
	if fundAge > cfg.SoftStaleDays {
		flags = append(flags, contracts.FlagFinancialStale)
	}
	marketCap := *in.Price.Value * *in.Shares.Value
	return keep(marketCap / *in.BookValue.Value, flags...)
}

// sentiment30d: never dropped. A symbol with no articles in the window is a
// true neutral 0.0, not a gap.
func sentiment30d(_ Config, in Inputs) Outcome {
	if in.Sentiment30 == nil {
		return keep(0.0)
	}
	return keep(*in.Sentiment30)
}

func maxAge(slots ...*align.Aligned) int {
	age := 0
	for _, a := range slots {
		if a != nil && a.AgeDays > age {
			age = a.AgeDays
		}
	}
	return age
}
