package agents

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/tradesim/internal/config"
	"github.com/aristath/tradesim/internal/modules/market"
	"github.com/aristath/tradesim/internal/modules/portfolio"
	"github.com/aristath/tradesim/internal/modules/simulation"
	"github.com/aristath/tradesim/pkg/formulas"
)

// RSI thresholds for the mean-reversion rules.
const (
	rsiPeriod     = 14
	rsiOverbought = 70.0
	rsiOversold   = 30.0

	// buyBudgetFraction caps how much cash a single buy may consume.
	buyBudgetFraction = 0.25
)

// TechnicalProvider is a deterministic rule-based decision provider: it
// sells overbought holdings and buys the most oversold ticker, judged by a
// 14-period RSI over the trailing closes. It needs no network and gives the
// service a usable offline policy.
type TechnicalProvider struct {
	log zerolog.Logger
}

// NewTechnicalProvider creates the rule-based provider.
func NewTechnicalProvider(log zerolog.Logger) *TechnicalProvider {
	return &TechnicalProvider{
		log: log.With().Str("component", "technical_provider").Logger(),
	}
}

// Decide applies the RSI rules. Sells take priority over buys so capital is
// recycled before new positions open.
func (p *TechnicalProvider) Decide(_ context.Context, agent config.AgentConfig, snapshot market.Snapshot, history []market.Snapshot, pf portfolio.Portfolio) (simulation.TradeDecision, error) {
	tickers := snapshot.SortedTickers()
	if len(tickers) == 0 {
		return simulation.TradeDecision{}, fmt.Errorf("snapshot has no price data")
	}

	// Check holdings for an exit first.
	for _, ticker := range tickers {
		holding, held := pf.Holdings[ticker]
		if !held {
			continue
		}
		rsi := formulas.RSI(closeSeries(ticker, history, snapshot), rsiPeriod)
		if rsi == nil || *rsi < rsiOverbought {
			continue
		}

		return simulation.TradeDecision{
			AgentID:         agent.ID,
			Timestamp:       snapshot.Date,
			Ticker:          ticker,
			Action:          simulation.ActionSell,
			Quantity:        holding.Quantity,
			Confidence:      signalConfidence(*rsi - rsiOverbought),
			Reasoning:       fmt.Sprintf("RSI(%d) at %.1f is overbought (>= %.0f), liquidating position", rsiPeriod, *rsi, rsiOverbought),
			PriceAtDecision: snapshot.Prices[ticker].Close,
		}, nil
	}

	// Then look for the deepest oversold entry.
	var (
		bestTicker string
		bestRSI    float64
	)
	for _, ticker := range tickers {
		rsi := formulas.RSI(closeSeries(ticker, history, snapshot), rsiPeriod)
		if rsi == nil || *rsi >= rsiOversold {
			continue
		}
		if bestTicker == "" || *rsi < bestRSI {
			bestTicker = ticker
			bestRSI = *rsi
		}
	}

	if bestTicker != "" {
		price := snapshot.Prices[bestTicker].Close
		quantity := int(math.Floor(pf.Cash * buyBudgetFraction / price))
		if quantity > 0 {
			return simulation.TradeDecision{
				AgentID:         agent.ID,
				Timestamp:       snapshot.Date,
				Ticker:          bestTicker,
				Action:          simulation.ActionBuy,
				Quantity:        quantity,
				Confidence:      signalConfidence(rsiOversold - bestRSI),
				Reasoning:       fmt.Sprintf("RSI(%d) at %.1f is oversold (< %.0f), buying %d shares", rsiPeriod, bestRSI, rsiOversold, quantity),
				PriceAtDecision: price,
			}, nil
		}
	}

	return simulation.TradeDecision{
		AgentID:         agent.ID,
		Timestamp:       snapshot.Date,
		Ticker:          tickers[0],
		Action:          simulation.ActionHold,
		Quantity:        0,
		Confidence:      0.6,
		Reasoning:       "No overbought holdings and no oversold entries, holding",
		PriceAtDecision: snapshot.Prices[tickers[0]].Close,
	}, nil
}

// closeSeries collects the closing prices of one ticker over the trailing
// history plus the current day, oldest first.
func closeSeries(ticker string, history []market.Snapshot, current market.Snapshot) []float64 {
	closes := make([]float64, 0, len(history)+1)
	for _, snap := range history {
		if bar, ok := snap.Prices[ticker]; ok {
			closes = append(closes, bar.Close)
		}
	}
	if bar, ok := current.Prices[ticker]; ok {
		closes = append(closes, bar.Close)
	}
	return closes
}

// signalConfidence maps how far a signal exceeds its threshold onto
// [0.55, 0.95].
func signalConfidence(excess float64) float64 {
	confidence := 0.55 + excess/50
	if confidence > 0.95 {
		confidence = 0.95
	}
	return confidence
}
