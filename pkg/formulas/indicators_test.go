package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSI_InsufficientData(t *testing.T) {
	closes := make([]float64, 14)
	for i := range closes {
		closes[i] = 100
	}
	assert.Nil(t, RSI(closes, 14))
	assert.Nil(t, RSI(nil, 14))
}

func TestRSI_Extremes(t *testing.T) {
	up := make([]float64, 20)
	down := make([]float64, 20)
	for i := range up {
		up[i] = 100 + float64(i)
		down[i] = 100 - float64(i)
	}

	rising := RSI(up, 14)
	require.NotNil(t, rising)
	assert.InDelta(t, 100, *rising, 1e-9)

	falling := RSI(down, 14)
	require.NotNil(t, falling)
	assert.InDelta(t, 0, *falling, 1e-9)
}

func TestRSI_MidRange(t *testing.T) {
	// Alternating gains and losses keep RSI near the middle of its range.
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
		if i%2 == 1 {
			closes[i] = 101
		}
	}

	rsi := RSI(closes, 14)
	require.NotNil(t, rsi)
	assert.Greater(t, *rsi, 20.0)
	assert.Less(t, *rsi, 80.0)
}

func TestSMA(t *testing.T) {
	assert.Nil(t, SMA([]float64{1, 2}, 3))

	sma := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NotNil(t, sma)
	assert.InDelta(t, 4, *sma, 1e-12)
}
