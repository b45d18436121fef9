package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateMetrics_InsufficientHistory(t *testing.T) {
	for _, history := range [][]float64{nil, {}, {100_000}} {
		metrics := CalculateMetrics(history, nil, 100_000)
		assert.Equal(t, PerformanceMetrics{}, metrics)
	}
}

func TestCalculateMetrics_TotalReturn(t *testing.T) {
	metrics := CalculateMetrics([]float64{100_000, 104_000, 108_900}, nil, 100_000)
	assert.Equal(t, 8.9, metrics.TotalReturnPct)

	metrics = CalculateMetrics([]float64{100_000, 95_000}, nil, 100_000)
	assert.Equal(t, -5.0, metrics.TotalReturnPct)
}

func TestCalculateMetrics_MaxDrawdown(t *testing.T) {
	// Peak 120, trough 90: (120-90)/120 = 25%.
	metrics := CalculateMetrics([]float64{100, 120, 90, 110}, nil, 100)
	assert.Equal(t, 25.0, metrics.MaxDrawdownPct)

	// Monotonically rising history never draws down.
	metrics = CalculateMetrics([]float64{100, 110, 120, 130}, nil, 100)
	assert.Equal(t, 0.0, metrics.MaxDrawdownPct)
}

func TestCalculateMetrics_SharpeRatio(t *testing.T) {
	// Daily returns 0.1, -0.1, 0.1: mean 0.0333, sample stddev 0.11547,
	// annualized by sqrt(252) and rounded to 4.58.
	metrics := CalculateMetrics([]float64{100, 110, 99, 108.9}, nil, 100)
	assert.InDelta(t, 4.58, metrics.SharpeRatio, 0.001)
}

func TestCalculateMetrics_SharpeZeroWhenNoVariance(t *testing.T) {
	// Constant 1% daily growth has zero return variance.
	metrics := CalculateMetrics([]float64{100, 101, 102.01}, nil, 100)
	assert.Equal(t, 0.0, metrics.SharpeRatio)

	// Flat history likewise.
	metrics = CalculateMetrics([]float64{100, 100, 100}, nil, 100)
	assert.Equal(t, 0.0, metrics.SharpeRatio)
}

func TestCalculateMetrics_WinRate(t *testing.T) {
	trades := []TradeDecision{
		{Action: ActionBuy, Confidence: 0.9},
		{Action: ActionSell, Confidence: 0.6},
		{Action: ActionSell, Confidence: 0.4},
		{Action: ActionHold, Confidence: 0.9},
	}

	metrics := CalculateMetrics([]float64{100, 110}, trades, 100)

	// Holds are excluded; one confident sell among three executed trades.
	assert.Equal(t, 3, metrics.TotalTrades)
	assert.Equal(t, 33.3, metrics.WinRate)
}

func TestCalculateMetrics_WinRateAllHolds(t *testing.T) {
	trades := []TradeDecision{
		{Action: ActionHold, Confidence: 1.0},
		{Action: ActionHold, Confidence: 1.0},
	}

	metrics := CalculateMetrics([]float64{100, 110}, trades, 100)

	assert.Equal(t, 0, metrics.TotalTrades)
	assert.Equal(t, 0.0, metrics.WinRate)
}
