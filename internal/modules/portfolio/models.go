// Package portfolio provides the portfolio ledger value objects.
//
// A Portfolio is treated as an immutable value: trade execution returns a new
// Portfolio rather than mutating in place, so per-day history can be captured
// by reference safely.
package portfolio

// Holding is the average-cost position in a single ticker. Quantity is
// always positive for a stored holding; fully-liquidated positions are
// removed from the portfolio, never stored at zero.
type Holding struct {
	Ticker   string  `json:"ticker" msgpack:"ticker"`
	Quantity int     `json:"quantity" msgpack:"quantity"`
	AvgCost  float64 `json:"avg_cost" msgpack:"avg_cost"`
}

// Portfolio is the cash + holdings state of one agent. Cash never goes
// negative; it is rounded to cents after every mutation.
type Portfolio struct {
	Cash     float64            `json:"cash" msgpack:"cash"`
	Holdings map[string]Holding `json:"holdings" msgpack:"holdings"`
}

// New creates an empty portfolio with the given starting cash.
func New(cash float64) Portfolio {
	return Portfolio{
		Cash:     cash,
		Holdings: map[string]Holding{},
	}
}

// ValueAtPrices calculates total portfolio value at the given market prices.
// Holdings without a quoted price are valued at their average cost.
func (p Portfolio) ValueAtPrices(prices map[string]float64) float64 {
	total := p.Cash
	for _, h := range p.Holdings {
		price, ok := prices[h.Ticker]
		if !ok {
			price = h.AvgCost
		}
		total += float64(h.Quantity) * price
	}
	return total
}

// CloneHoldings returns a shallow copy of the holdings map so a mutation can
// build a new Portfolio without touching the original.
func (p Portfolio) CloneHoldings() map[string]Holding {
	holdings := make(map[string]Holding, len(p.Holdings))
	for ticker, h := range p.Holdings {
		holdings[ticker] = h
	}
	return holdings
}
