// Package simulation drives multi-agent trading simulations: trade execution,
// performance metrics, the per-run orchestration loop and result persistence.
package simulation

import (
	"time"

	"github.com/aristath/tradesim/internal/modules/portfolio"
)

// Action is the kind of trade an agent decided on.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// ParseAction maps free-form provider output onto an Action. Anything that is
// not recognisably a buy or a sell is a hold.
func ParseAction(s string) Action {
	switch s {
	case "buy", "BUY", "Buy":
		return ActionBuy
	case "sell", "SELL", "Sell":
		return ActionSell
	default:
		return ActionHold
	}
}

// TradeDecision is one structured trade instruction produced by a decision
// provider (or the engine's HOLD fallback). Decisions are appended to an
// agent's trade log and never mutated afterwards.
type TradeDecision struct {
	AgentID         string    `json:"agent_id" msgpack:"agent_id"`
	Timestamp       time.Time `json:"timestamp" msgpack:"timestamp"`
	Ticker          string    `json:"ticker" msgpack:"ticker"`
	Action          Action    `json:"action" msgpack:"action"`
	Quantity        int       `json:"quantity" msgpack:"quantity"`
	Confidence      float64   `json:"confidence" msgpack:"confidence"`
	Reasoning       string    `json:"reasoning" msgpack:"reasoning"`
	PriceAtDecision float64   `json:"price_at_decision" msgpack:"price_at_decision"`
}

// PerformanceMetrics summarizes how an agent did over a run.
type PerformanceMetrics struct {
	TotalReturnPct float64 `json:"total_return_pct" msgpack:"total_return_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio" msgpack:"sharpe_ratio"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct" msgpack:"max_drawdown_pct"`
	WinRate        float64 `json:"win_rate" msgpack:"win_rate"`
	TotalTrades    int     `json:"total_trades" msgpack:"total_trades"`
}

// AgentResult is the accumulated outcome of a single agent's timeline.
// PortfolioHistory and DateLabels are parallel, with one entry per simulated
// day (not only decision days).
type AgentResult struct {
	AgentID          string              `json:"agent_id" msgpack:"agent_id"`
	AgentName        string              `json:"agent_name" msgpack:"agent_name"`
	Portfolio        portfolio.Portfolio `json:"portfolio" msgpack:"portfolio"`
	Trades           []TradeDecision     `json:"trades" msgpack:"trades"`
	PortfolioHistory []float64           `json:"portfolio_history" msgpack:"portfolio_history"`
	DateLabels       []string            `json:"date_labels" msgpack:"date_labels"`
	Metrics          PerformanceMetrics  `json:"metrics" msgpack:"metrics"`
}

// Status is the lifecycle state of a simulation run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further mutation of the run can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Result is the run-level aggregate for one simulation.
type Result struct {
	ID           string                 `json:"id" msgpack:"id"`
	Status       Status                 `json:"status" msgpack:"status"`
	CreatedAt    time.Time              `json:"created_at" msgpack:"created_at"`
	StartDate    time.Time              `json:"start_date" msgpack:"start_date"`
	EndDate      time.Time              `json:"end_date" msgpack:"end_date"`
	Tickers      []string               `json:"tickers" msgpack:"tickers"`
	AgentIDs     []string               `json:"agent_ids" msgpack:"agent_ids"`
	AgentResults map[string]AgentResult `json:"agent_results" msgpack:"agent_results"`
	Error        string                 `json:"error,omitempty" msgpack:"error"`
}

// Summary is the lightweight listing view of a run, without agent results.
type Summary struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Tickers   []string  `json:"tickers"`
	AgentIDs  []string  `json:"agent_ids"`
}
