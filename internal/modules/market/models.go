// Package market provides synthetic market data generation for simulations.
package market

import (
	"sort"
	"time"
)

// PriceBar is the OHLCV record for a single ticker on a single trading day.
// Bars are created once by the generator and never mutated.
type PriceBar struct {
	Ticker string    `json:"ticker" msgpack:"ticker"`
	Date   time.Time `json:"date" msgpack:"date"`
	Open   float64   `json:"open" msgpack:"open"`
	High   float64   `json:"high" msgpack:"high"`
	Low    float64   `json:"low" msgpack:"low"`
	Close  float64   `json:"close" msgpack:"close"`
	Volume int64     `json:"volume" msgpack:"volume"`
}

// Snapshot holds all market data for a single trading day. Snapshots are
// shared read-only across every agent in a run.
type Snapshot struct {
	Date      time.Time           `json:"date" msgpack:"date"`
	Prices    map[string]PriceBar `json:"prices" msgpack:"prices"`
	DayIndex  int                 `json:"day_index" msgpack:"day_index"`
	TotalDays int                 `json:"total_days" msgpack:"total_days"`
}

// ClosePrices returns the closing price per ticker for this snapshot.
func (s Snapshot) ClosePrices() map[string]float64 {
	prices := make(map[string]float64, len(s.Prices))
	for ticker, bar := range s.Prices {
		prices[ticker] = bar.Close
	}
	return prices
}

// SortedTickers returns the snapshot's ticker symbols in sorted order.
func (s Snapshot) SortedTickers() []string {
	tickers := make([]string, 0, len(s.Prices))
	for ticker := range s.Prices {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}
