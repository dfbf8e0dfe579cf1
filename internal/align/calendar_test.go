package align

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearsonlabs/factorpipe/internal/contracts"
)

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b time.Time
		want int
	}{
		{"same day", contracts.Date(2025, time.June, 30), contracts.Date(2025, time.June, 30), 0},
		{"one day", contracts.Date(2025, time.June, 29), contracts.Date(2025, time.June, 30), 1},
		{"leap february", contracts.Date(2024, time.February, 28), contracts.Date(2024, time.March, 1), 2},
		{"negative", contracts.Date(2025, time.July, 2), contracts.Date(2025, time.June, 30), -2},
		{"across year", contracts.Date(2024, time.December, 31), contracts.Date(2025, time.March, 31), 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysBetween(tt.a, tt.b))
		})
	}
}

func TestMonthEnds(t *testing.T) {
	got := MonthEnds(contracts.Date(2025, time.January, 15), contracts.Date(2025, time.April, 10))

	want := []time.Time{
		contracts.Date(2025, time.January, 31),
		contracts.Date(2025, time.February, 28),
		contracts.Date(2025, time.March, 31),
	}
	require.Len(t, got, len(want), "April's end falls after the window and is excluded")
	for i := range want {
		assert.True(t, got[i].Equal(want[i]), "got[%d] = %v, want %v", i, got[i], want[i])
	}
}

func TestMonthEnds_EndOnMonthEnd(t *testing.T) {
	got := MonthEnds(contracts.Date(2025, time.March, 1), contracts.Date(2025, time.March, 31))
	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(contracts.Date(2025, time.March, 31)))
}

func TestQuarterEnds(t *testing.T) {
	got := QuarterEnds(contracts.Date(2024, time.November, 1), contracts.Date(2025, time.July, 15))

	want := []time.Time{
		contracts.Date(2024, time.December, 31),
		contracts.Date(2025, time.March, 31),
		contracts.Date(2025, time.June, 30),
	}
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, got[i].Equal(want[i]), "got[%d] = %v, want %v", i, got[i], want[i])
	}
}

func TestQuarterEnds_Empty(t *testing.T) {
	assert.Empty(t, QuarterEnds(contracts.Date(2025, time.January, 1), contracts.Date(2025, time.February, 28)))
}
