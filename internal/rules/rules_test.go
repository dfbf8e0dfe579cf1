package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearsonlabs/factorpipe/internal/align"
	"github.com/pearsonlabs/factorpipe/internal/contracts"
)

func aligned(value float64, ageDays int) *align.Aligned {
	return &align.Aligned{
		Value:         contracts.Float64(value),
		ReferenceDate: contracts.Date(2025, time.March, 31),
		AgeDays:       ageDays,
	}
}

func TestDividendYield(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("fresh price", func(t *testing.T) {
		ttm := 1.0
		out := dividendYield(cfg, Inputs{Price: aligned(100.0, 0), TTMDividends: &ttm})
		require.True(t, out.Verdict.Keep)
		assert.InDelta(t, 0.01, *out.Value, 1e-12)
		assert.Empty(t, out.Verdict.Flags)
	})

	t.Run("no dividends is zero yield not a gap", func(t *testing.T) {
		out := dividendYield(cfg, Inputs{Price: aligned(100.0, 0)})
		require.True(t, out.Verdict.Keep)
		assert.Equal(t, 0.0, *out.Value)
	})

	t.Run("fallback price flags stale", func(t *testing.T) {
		ttm := 1.0
		out := dividendYield(cfg, Inputs{Price: aligned(100.0, 3), TTMDividends: &ttm})
		require.True(t, out.Verdict.Keep)
		assert.Contains(t, out.Verdict.Flags, contracts.FlagStalePrice)
	})

	t.Run("missing price drops", func(t *testing.T) {
		out := dividendYield(cfg, Inputs{})
		assert.False(t, out.Verdict.Keep)
		assert.Equal(t, ReasonUnusablePrice, out.Verdict.Reason)
	})

	t.Run("non-positive price drops", func(t *testing.T) {
		out := dividendYield(cfg, Inputs{Price: aligned(0.0, 0)})
		assert.False(t, out.Verdict.Keep)
		assert.Equal(t, ReasonUnusablePrice, out.Verdict.Reason)
	})
}

func TestEBITDAMargin_RevenueBoundary(t *testing.T) {
	cfg := DefaultConfig()

	// Exactly zero revenue drops; a hair above zero computes.
	out := ebitdaMargin(cfg, Inputs{EBITDA: aligned(5.0, 10), Revenue: aligned(0.0, 10)})
	assert.False(t, out.Verdict.Keep)
	assert.Equal(t, ReasonNonPositiveRev, out.Verdict.Reason)

	out = ebitdaMargin(cfg, Inputs{EBITDA: aligned(5.0, 10), Revenue: aligned(1e-9, 10)})
	require.True(t, out.Verdict.Keep)
	assert.InDelta(t, 5.0/1e-9, *out.Value, 1)
}

func TestEBITDAMargin_StalenessTiers(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name   string
		age    int
		keep   bool
		flag   string
		reason string
	}{
		{"fresh", 200, true, "", ""},
		{"at soft threshold", 270, true, "", ""},
		{"past soft threshold", 273, true, contracts.FlagFinancialStale, ""},
		{"at hard ceiling", 365, true, contracts.FlagFinancialStale, ""},
		{"past hard ceiling", 396, false, "", contracts.FlagDataExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ebitdaMargin(cfg, Inputs{EBITDA: aligned(2.0, tt.age), Revenue: aligned(10.0, tt.age)})
			assert.Equal(t, tt.keep, out.Verdict.Keep)
			if tt.flag != "" {
				assert.Contains(t, out.Verdict.Flags, tt.flag)
			} else if tt.keep {
				assert.Empty(t, out.Verdict.Flags)
			}
			if tt.reason != "" {
				assert.Equal(t, tt.reason, out.Verdict.Reason)
			}
			if tt.keep {
				assert.InDelta(t, 0.2, *out.Value, 1e-12)
			}
		})
	}
}

func TestEBITDAMargin_AgeIsMaxOfInputs(t *testing.T) {
	cfg := DefaultConfig()

	// Fresh ebitda, expired revenue: the pair expires.
	out := ebitdaMargin(cfg, Inputs{EBITDA: aligned(2.0, 10), Revenue: aligned(10.0, 400)})
	assert.False(t, out.Verdict.Keep)
	assert.Equal(t, contracts.FlagDataExpired, out.Verdict.Reason)
}

func TestDebtToEquity(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("reported total preferred", func(t *testing.T) {
		out := debtToEquity(cfg, Inputs{
			TotalDebt:     aligned(80.0, 10),
			ShortTermDebt: aligned(999.0, 10),
			BookValue:     aligned(40.0, 10),
		})
		require.True(t, out.Verdict.Keep)
		assert.InDelta(t, 2.0, *out.Value, 1e-12)
	})

	t.Run("component fallback", func(t *testing.T) {
		out := debtToEquity(cfg, Inputs{
			ShortTermDebt: aligned(30.0, 10),
			LongTermDebt:  aligned(50.0, 20),
			BookValue:     aligned(40.0, 10),
		})
		require.True(t, out.Verdict.Keep)
		assert.InDelta(t, 2.0, *out.Value, 1e-12)
	})

	t.Run("single component suffices", func(t *testing.T) {
		out := debtToEquity(cfg, Inputs{
			LongTermDebt: aligned(80.0, 10),
			BookValue:    aligned(40.0, 10),
		})
		require.True(t, out.Verdict.Keep)
		assert.InDelta(t, 2.0, *out.Value, 1e-12)
	})

	t.Run("no debt figure at all drops", func(t *testing.T) {
		out := debtToEquity(cfg, Inputs{BookValue: aligned(40.0, 10)})
		assert.False(t, out.Verdict.Keep)
		assert.Equal(t, ReasonMissingInput, out.Verdict.Reason)
	})

	t.Run("non-positive equity drops", func(t *testing.T) {
		out := debtToEquity(cfg, Inputs{TotalDebt: aligned(80.0, 10), BookValue: aligned(-5.0, 10)})
		assert.False(t, out.Verdict.Keep)
		assert.Equal(t, ReasonNonPositiveEquity, out.Verdict.Reason)
	})

	t.Run("stale component flags", func(t *testing.T) {
		out := debtToEquity(cfg, Inputs{
			ShortTermDebt: aligned(30.0, 280),
			LongTermDebt:  aligned(50.0, 10),
			BookValue:     aligned(40.0, 10),
		})
		require.True(t, out.Verdict.Keep)
		assert.Contains(t, out.Verdict.Flags, contracts.FlagFinancialStale)
	})
}

func TestPBRatio(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("computes market cap over book", func(t *testing.T) {
		out := pbRatio(cfg, Inputs{
			Price:     aligned(10.0, 0),
			Shares:    aligned(1000.0, 10),
			BookValue: aligned(5000.0, 10),
		})
		require.True(t, out.Verdict.Keep)
		assert.InDelta(t, 2.0, *out.Value, 1e-12)
		assert.Empty(t, out.Verdict.Flags)
	})

	t.Run("independent staleness flags", func(t *testing.T) {
		out := pbRatio(cfg, Inputs{
			Price:     aligned(10.0, 2),
			Shares:    aligned(1000.0, 300),
			BookValue: aligned(5000.0, 10),
		})
		require.True(t, out.Verdict.Keep)
		assert.Contains(t, out.Verdict.Flags, contracts.FlagStalePrice)
		assert.Contains(t, out.Verdict.Flags, contracts.FlagFinancialStale)
	})

	t.Run("expired fundamentals drop", func(t *testing.T) {
		out := pbRatio(cfg, Inputs{
			Price:     aligned(10.0, 0),
			Shares:    aligned(1000.0, 400),
			BookValue: aligned(5000.0, 10),
		})
		assert.False(t, out.Verdict.Keep)
		assert.Equal(t, contracts.FlagDataExpired, out.Verdict.Reason)
	})

	t.Run("non-positive shares drop", func(t *testing.T) {
		out := pbRatio(cfg, Inputs{
			Price:     aligned(10.0, 0),
			Shares:    aligned(0.0, 10),
			BookValue: aligned(5000.0, 10),
		})
		assert.False(t, out.Verdict.Keep)
		assert.Equal(t, ReasonNonPositiveShares, out.Verdict.Reason)
	})
}

func TestSentiment30d_NeverDrops(t *testing.T) {
	cfg := DefaultConfig()

	out := sentiment30d(cfg, Inputs{})
	require.True(t, out.Verdict.Keep)
	assert.Equal(t, 0.0, *out.Value, "no-news fallback is a true neutral zero")

	v := -0.35
	out = sentiment30d(cfg, Inputs{Sentiment30: &v})
	require.True(t, out.Verdict.Keep)
	assert.Equal(t, -0.35, *out.Value)
}

func TestEvaluate_Registry(t *testing.T) {
	cfg := DefaultConfig()

	_, err := Evaluate("no_such_factor", cfg, Inputs{})
	assert.Error(t, err)

	out, err := Evaluate(contracts.FactorSentiment30d, cfg, Inputs{})
	require.NoError(t, err)
	assert.True(t, out.Verdict.Keep)
}
