package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerate_Deterministic(t *testing.T) {
	tickers := []string{"AAPL", "TSLA", "ZZZT"}
	start := date(2024, time.January, 2)
	end := date(2024, time.March, 29)

	first := Generate(tickers, start, end)
	second := Generate(tickers, start, end)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i], second[i], "snapshot %d differs between runs", i)
	}
}

func TestGenerate_DifferentStartDateDiffers(t *testing.T) {
	tickers := []string{"AAPL"}
	end := date(2024, time.June, 28)

	a := Generate(tickers, date(2024, time.January, 2), end)
	b := Generate(tickers, date(2024, time.January, 3), end)

	require.NotEmpty(t, a)
	require.NotEmpty(t, b)
	assert.NotEqual(t, a[0].Prices["AAPL"].Close, b[0].Prices["AAPL"].Close)
}

func TestGenerate_WeekendOnlyRangeIsEmpty(t *testing.T) {
	// 2024-01-06 is a Saturday, 2024-01-07 a Sunday.
	snapshots := Generate([]string{"AAPL"}, date(2024, time.January, 6), date(2024, time.January, 7))
	assert.Empty(t, snapshots)
}

func TestGenerate_SkipsWeekends(t *testing.T) {
	// First full week of 2024: Mon Jan 1 through Sun Jan 7.
	snapshots := Generate([]string{"AAPL"}, date(2024, time.January, 1), date(2024, time.January, 7))

	require.Len(t, snapshots, 5)
	for _, snap := range snapshots {
		wd := snap.Date.Weekday()
		assert.NotEqual(t, time.Saturday, wd)
		assert.NotEqual(t, time.Sunday, wd)
	}
}

func TestGenerate_SnapshotIndexing(t *testing.T) {
	snapshots := Generate([]string{"AAPL", "MSFT"}, date(2024, time.January, 2), date(2024, time.January, 31))

	require.NotEmpty(t, snapshots)
	total := len(snapshots)
	for i, snap := range snapshots {
		assert.Equal(t, i, snap.DayIndex)
		assert.Equal(t, total, snap.TotalDays)
		assert.Len(t, snap.Prices, 2)
	}
}

func TestGenerate_BarInvariants(t *testing.T) {
	// Unknown ticker exercises the default profile; TSLA is the most
	// volatile known profile.
	snapshots := Generate([]string{"TSLA", "UNKNOWN"}, date(2024, time.January, 2), date(2024, time.December, 31))

	require.NotEmpty(t, snapshots)
	for _, snap := range snapshots {
		for ticker, bar := range snap.Prices {
			assert.Equal(t, ticker, bar.Ticker)
			assert.True(t, bar.Open > 0, "%s open must be positive", ticker)
			assert.True(t, bar.Low >= 0.01, "%s low must respect the price floor", ticker)
			assert.LessOrEqual(t, bar.Low, min2(bar.Open, bar.Close), "%s low above open/close", ticker)
			assert.GreaterOrEqual(t, bar.High, max2(bar.Open, bar.Close), "%s high below open/close", ticker)
			assert.GreaterOrEqual(t, bar.Volume, int64(100_000))
		}
	}
}

func TestTradingDays_Ordering(t *testing.T) {
	days := TradingDays(date(2024, time.February, 1), date(2024, time.February, 29))

	require.Len(t, days, 21)
	for i := 1; i < len(days); i++ {
		assert.True(t, days[i].After(days[i-1]))
	}
}

func TestSnapshot_ClosePrices(t *testing.T) {
	snapshots := Generate([]string{"AAPL", "MSFT"}, date(2024, time.January, 2), date(2024, time.January, 2))

	require.Len(t, snapshots, 1)
	prices := snapshots[0].ClosePrices()
	assert.Equal(t, snapshots[0].Prices["AAPL"].Close, prices["AAPL"])
	assert.Equal(t, snapshots[0].Prices["MSFT"].Close, prices["MSFT"])
}

func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max2(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
