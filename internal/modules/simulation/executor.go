package simulation

import (
	"math"

	"github.com/aristath/tradesim/internal/modules/market"
	"github.com/aristath/tradesim/internal/modules/portfolio"
)

// ExecuteTrade applies a trade decision to a portfolio at the snapshot's
// closing price and returns the resulting portfolio. It is a pure, total
// function: infeasible or malformed trades (unknown ticker, zero quantity,
// not enough cash, not enough shares) degrade to a no-op that returns the
// input portfolio unchanged. Cash and cost bases are rounded to cents after
// every mutation to keep long trade sequences free of float drift.
func ExecuteTrade(p portfolio.Portfolio, decision TradeDecision, snapshot market.Snapshot) portfolio.Portfolio {
	bar, ok := snapshot.Prices[decision.Ticker]
	if !ok {
		return p
	}

	price := bar.Close

	switch decision.Action {
	case ActionBuy:
		cost := float64(decision.Quantity) * price
		if decision.Quantity == 0 || cost > p.Cash {
			return p
		}

		holdings := p.CloneHoldings()
		if existing, held := holdings[decision.Ticker]; held {
			totalQty := existing.Quantity + decision.Quantity
			totalCost := existing.AvgCost*float64(existing.Quantity) + cost
			holdings[decision.Ticker] = portfolio.Holding{
				Ticker:   decision.Ticker,
				Quantity: totalQty,
				AvgCost:  round2(totalCost / float64(totalQty)),
			}
		} else {
			holdings[decision.Ticker] = portfolio.Holding{
				Ticker:   decision.Ticker,
				Quantity: decision.Quantity,
				AvgCost:  round2(price),
			}
		}

		return portfolio.Portfolio{
			Cash:     round2(p.Cash - cost),
			Holdings: holdings,
		}

	case ActionSell:
		existing, held := p.Holdings[decision.Ticker]
		if !held || decision.Quantity == 0 || decision.Quantity > existing.Quantity {
			return p
		}

		proceeds := float64(decision.Quantity) * price
		holdings := p.CloneHoldings()
		remaining := existing.Quantity - decision.Quantity

		if remaining == 0 {
			delete(holdings, decision.Ticker)
		} else {
			// Average cost is unchanged by a partial sell.
			holdings[decision.Ticker] = portfolio.Holding{
				Ticker:   decision.Ticker,
				Quantity: remaining,
				AvgCost:  existing.AvgCost,
			}
		}

		return portfolio.Portfolio{
			Cash:     round2(p.Cash + proceeds),
			Holdings: holdings,
		}
	}

	// HOLD
	return p
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
