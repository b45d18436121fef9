package agents

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aristath/tradesim/internal/config"
	"github.com/aristath/tradesim/internal/modules/market"
	"github.com/aristath/tradesim/internal/modules/portfolio"
)

// BuildSystemPrompt renders the agent's persona into the system message.
func BuildSystemPrompt(agent config.AgentConfig) string {
	return fmt.Sprintf(
		"You are %s, a trading agent.\n\n%s\n\n"+
			"You will receive market data and your current portfolio. "+
			"Make exactly ONE trading decision per turn. "+
			"Respond with a JSON object with fields: action (buy/sell/hold), "+
			"ticker, quantity (integer), confidence (0-1), and reasoning. "+
			"Respond with the JSON object only, no other text.",
		agent.Name, agent.PersonaPrompt,
	)
}

// BuildMarketPrompt describes the current market state, recent history and
// the agent's portfolio as the user message for a decision request.
func BuildMarketPrompt(snapshot market.Snapshot, history []market.Snapshot, pf portfolio.Portfolio) string {
	var b strings.Builder
	prices := snapshot.ClosePrices()
	tickers := snapshot.SortedTickers()

	fmt.Fprintf(&b, "=== Trading Day: %s (Day %d/%d) ===\n\n",
		snapshot.Date.Format("2006-01-02"), snapshot.DayIndex+1, snapshot.TotalDays)

	b.WriteString("CURRENT MARKET DATA:\n")
	for _, ticker := range tickers {
		bar := snapshot.Prices[ticker]
		fmt.Fprintf(&b, "  %s: Open=$%.2f High=$%.2f Low=$%.2f Close=$%.2f Vol=%d\n",
			ticker, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
	}

	// Last five days of closes, oldest first.
	recent := history
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	if len(recent) > 0 {
		b.WriteString("\nRECENT PRICE HISTORY (close prices):\n")
		b.WriteString("  Date      ")
		for _, ticker := range tickers {
			fmt.Fprintf(&b, "  %10s", ticker)
		}
		b.WriteString("\n")
		for _, snap := range recent {
			fmt.Fprintf(&b, "  %s", snap.Date.Format("2006-01-02"))
			for _, ticker := range tickers {
				if bar, ok := snap.Prices[ticker]; ok {
					fmt.Fprintf(&b, "  $%9.2f", bar.Close)
				} else {
					fmt.Fprintf(&b, "  %10s", "N/A")
				}
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "\nYOUR PORTFOLIO (Total Value: $%.2f):\n", pf.ValueAtPrices(prices))
	fmt.Fprintf(&b, "  Cash: $%.2f\n", pf.Cash)
	if len(pf.Holdings) > 0 {
		for _, ticker := range sortedHoldingTickers(pf) {
			h := pf.Holdings[ticker]
			currentPrice, ok := prices[ticker]
			if !ok {
				currentPrice = h.AvgCost
			}
			marketValue := float64(h.Quantity) * currentPrice
			pnl := (currentPrice - h.AvgCost) * float64(h.Quantity)
			fmt.Fprintf(&b, "  %s: %d shares @ avg $%.2f (mkt value: $%.2f, P&L: $%+.2f)\n",
				ticker, h.Quantity, h.AvgCost, marketValue, pnl)
		}
	} else {
		b.WriteString("  No holdings\n")
	}

	b.WriteString("\nAVAILABLE TICKERS: " + strings.Join(tickers, ", ") + "\n")
	b.WriteString("\nMake your trading decision. You may BUY, SELL, or HOLD. " +
		"If buying or selling, specify the ticker, quantity, and your reasoning.")

	return b.String()
}

func sortedHoldingTickers(pf portfolio.Portfolio) []string {
	tickers := make([]string, 0, len(pf.Holdings))
	for ticker := range pf.Holdings {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}
