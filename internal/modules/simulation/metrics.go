package simulation

import (
	"math"

	"github.com/aristath/tradesim/pkg/formulas"
)

// tradingDaysPerYear annualizes daily Sharpe ratios.
const tradingDaysPerYear = 252

// CalculateMetrics computes performance statistics from an agent's daily
// valuation history and trade log. Fewer than two value points is
// insufficient data and yields all-zero metrics.
func CalculateMetrics(portfolioHistory []float64, trades []TradeDecision, initialCapital float64) PerformanceMetrics {
	if len(portfolioHistory) < 2 {
		return PerformanceMetrics{}
	}

	finalValue := portfolioHistory[len(portfolioHistory)-1]
	totalReturnPct := (finalValue - initialCapital) / initialCapital * 100

	// Annualized Sharpe, zero risk-free rate, sample standard deviation.
	dailyReturns := formulas.CalculateReturns(portfolioHistory)
	sharpe := 0.0
	if len(dailyReturns) > 0 {
		stdDev := formulas.StdDev(dailyReturns)
		if stdDev > 0 {
			sharpe = round2(formulas.Mean(dailyReturns) / stdDev * math.Sqrt(tradingDaysPerYear))
		}
	}

	// Max drawdown against the running peak.
	maxDrawdownPct := 0.0
	peak := portfolioHistory[0]
	for _, value := range portfolioHistory {
		if value > peak {
			peak = value
		}
		if peak > 0 {
			if drawdown := (peak - value) / peak * 100; drawdown > maxDrawdownPct {
				maxDrawdownPct = drawdown
			}
		}
	}

	// Win rate counts confident sells among executed (non-hold) trades.
	totalTrades := 0
	wins := 0
	for _, t := range trades {
		if t.Action == ActionHold {
			continue
		}
		totalTrades++
		if t.Action == ActionSell && t.Confidence > 0.5 {
			wins++
		}
	}
	winRate := 0.0
	if totalTrades > 0 {
		winRate = float64(wins) / float64(totalTrades) * 100
	}

	return PerformanceMetrics{
		TotalReturnPct: round2(totalReturnPct),
		SharpeRatio:    sharpe,
		MaxDrawdownPct: round2(maxDrawdownPct),
		WinRate:        round1(winRate),
		TotalTrades:    totalTrades,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
