package simulation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tradesim/internal/config"
	"github.com/aristath/tradesim/internal/modules/market"
	"github.com/aristath/tradesim/internal/modules/portfolio"
)

// providerFunc adapts a function to the DecisionProvider interface.
type providerFunc func(ctx context.Context, agent config.AgentConfig, snapshot market.Snapshot, history []market.Snapshot, pf portfolio.Portfolio) (TradeDecision, error)

func (f providerFunc) Decide(ctx context.Context, agent config.AgentConfig, snapshot market.Snapshot, history []market.Snapshot, pf portfolio.Portfolio) (TradeDecision, error) {
	return f(ctx, agent, snapshot, history, pf)
}

// recordingStore captures the status of every Save call.
type recordingStore struct {
	mu       sync.Mutex
	statuses []Status
}

func (s *recordingStore) Save(result *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, result.Status)
	return nil
}

func (s *recordingStore) seen() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, len(s.statuses))
	copy(out, s.statuses)
	return out
}

func testAgent(id string) config.AgentConfig {
	return config.AgentConfig{
		ID:             id,
		Name:           "Agent " + id,
		ModelProvider:  "technical",
		ModelID:        "rsi-14",
		Parameters:     config.ModelParameters{Temperature: 0.5, MaxTokens: 1024},
		InitialCapital: 100_000,
	}
}

func holdProvider() DecisionProvider {
	return providerFunc(func(_ context.Context, agent config.AgentConfig, snapshot market.Snapshot, _ []market.Snapshot, _ portfolio.Portfolio) (TradeDecision, error) {
		ticker := snapshot.SortedTickers()[0]
		return TradeDecision{
			AgentID:         agent.ID,
			Timestamp:       snapshot.Date,
			Ticker:          ticker,
			Action:          ActionHold,
			Confidence:      0.7,
			Reasoning:       "waiting",
			PriceAtDecision: snapshot.Prices[ticker].Close,
		}, nil
	})
}

func weekParams(agents ...config.AgentConfig) RunParams {
	// 2024-01-02 .. 2024-02-29 spans 43 trading days.
	return RunParams{
		Agents:    agents,
		Tickers:   []string{"AAPL", "MSFT"},
		StartDate: time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
	}
}

func TestNewPendingResult_Defaults(t *testing.T) {
	result := NewPendingResult(RunParams{Agents: []config.AgentConfig{testAgent("a")}})

	assert.Len(t, result.ID, 8)
	assert.Equal(t, StatusPending, result.Status)
	assert.Equal(t, DefaultStartDate, result.StartDate)
	assert.Equal(t, DefaultEndDate, result.EndDate)
	assert.Equal(t, market.DefaultTickers, result.Tickers)
	assert.Equal(t, []string{"a"}, result.AgentIDs)
	assert.NotNil(t, result.AgentResults)
}

func TestNewPendingResult_KeepsExplicitID(t *testing.T) {
	result := NewPendingResult(RunParams{RunID: "fixed-id"})
	assert.Equal(t, "fixed-id", result.ID)
}

func TestRun_LifecycleStatuses(t *testing.T) {
	store := &recordingStore{}
	runner := NewRunner(store, holdProvider(), nil, zerolog.Nop())

	result := runner.Run(context.Background(), weekParams(testAgent("a")))

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Empty(t, result.Error)
	assert.Equal(t, []Status{StatusPending, StatusRunning, StatusCompleted}, store.seen())
}

func TestRun_DecisionCadence(t *testing.T) {
	var mu sync.Mutex
	var decisionDays []int
	provider := providerFunc(func(_ context.Context, agent config.AgentConfig, snapshot market.Snapshot, history []market.Snapshot, _ portfolio.Portfolio) (TradeDecision, error) {
		mu.Lock()
		decisionDays = append(decisionDays, snapshot.DayIndex)
		mu.Unlock()
		// History covers exactly the days before the current one.
		if len(history) != snapshot.DayIndex {
			return TradeDecision{}, errors.New("history out of step with timeline")
		}
		return FallbackHold(agent.ID, snapshot, errors.New("n/a")), nil
	})

	runner := NewRunner(nil, provider, nil, zerolog.Nop())
	result := runner.Run(context.Background(), weekParams(testAgent("a")))

	require.Equal(t, StatusCompleted, result.Status)

	agentRes := result.AgentResults["a"]
	days := len(agentRes.PortfolioHistory)
	require.Greater(t, days, DecisionInterval)

	expected := make([]int, 0)
	for i := DecisionInterval; i < days; i += DecisionInterval {
		expected = append(expected, i)
	}
	assert.Equal(t, expected, decisionDays)
	assert.Len(t, agentRes.Trades, len(expected))
	assert.Len(t, agentRes.DateLabels, days)
}

func TestRun_FailingProviderHoldsAndCompletes(t *testing.T) {
	provider := providerFunc(func(context.Context, config.AgentConfig, market.Snapshot, []market.Snapshot, portfolio.Portfolio) (TradeDecision, error) {
		return TradeDecision{}, errors.New("model unavailable")
	})

	runner := NewRunner(nil, provider, nil, zerolog.Nop())
	result := runner.Run(context.Background(), weekParams(testAgent("a")))

	require.Equal(t, StatusCompleted, result.Status)

	agentRes := result.AgentResults["a"]
	require.NotEmpty(t, agentRes.Trades)
	for _, trade := range agentRes.Trades {
		assert.Equal(t, ActionHold, trade.Action)
		assert.Equal(t, 0, trade.Quantity)
		assert.Equal(t, 0.0, trade.Confidence)
		assert.Contains(t, trade.Reasoning, "model unavailable")
	}

	// An agent that never executes keeps its full starting capital.
	assert.Equal(t, 100_000.0, agentRes.Portfolio.Cash)
	assert.Empty(t, agentRes.Portfolio.Holdings)
	assert.Equal(t, 0, agentRes.Metrics.TotalTrades)
}

func TestRun_AgentsAreIndependent(t *testing.T) {
	provider := providerFunc(func(_ context.Context, agent config.AgentConfig, snapshot market.Snapshot, _ []market.Snapshot, pf portfolio.Portfolio) (TradeDecision, error) {
		ticker := snapshot.SortedTickers()[0]
		decision := TradeDecision{
			AgentID:         agent.ID,
			Timestamp:       snapshot.Date,
			Ticker:          ticker,
			Action:          ActionHold,
			Confidence:      0.6,
			PriceAtDecision: snapshot.Prices[ticker].Close,
		}
		if agent.ID == "buyer" {
			if _, held := pf.Holdings[ticker]; !held {
				decision.Action = ActionBuy
				decision.Quantity = 10
			}
		}
		return decision, nil
	})

	runner := NewRunner(nil, provider, nil, zerolog.Nop())
	result := runner.Run(context.Background(), weekParams(testAgent("buyer"), testAgent("idle")))

	require.Equal(t, StatusCompleted, result.Status)
	require.Len(t, result.AgentResults, 2)

	buyer := result.AgentResults["buyer"]
	idle := result.AgentResults["idle"]

	assert.NotEmpty(t, buyer.Portfolio.Holdings)
	assert.Less(t, buyer.Portfolio.Cash, 100_000.0)

	assert.Empty(t, idle.Portfolio.Holdings)
	assert.Equal(t, 100_000.0, idle.Portfolio.Cash)

	// Both agents priced against the same market series.
	assert.Equal(t, buyer.DateLabels, idle.DateLabels)
}

func TestRun_SameInputsSameOutcome(t *testing.T) {
	run := func() AgentResult {
		runner := NewRunner(nil, holdProvider(), nil, zerolog.Nop())
		params := weekParams(testAgent("a"))
		params.RunID = "repeat"
		result := runner.Run(context.Background(), params)
		require.Equal(t, StatusCompleted, result.Status)
		return result.AgentResults["a"]
	}

	first := run()
	second := run()

	assert.Equal(t, first.PortfolioHistory, second.PortfolioHistory)
	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.Metrics, second.Metrics)
}

func TestRun_EmptyRangeFails(t *testing.T) {
	store := &recordingStore{}
	runner := NewRunner(store, holdProvider(), nil, zerolog.Nop())

	params := weekParams(testAgent("a"))
	// 2024-01-06 and 2024-01-07 are a weekend.
	params.StartDate = time.Date(2024, time.January, 6, 0, 0, 0, 0, time.UTC)
	params.EndDate = time.Date(2024, time.January, 7, 0, 0, 0, 0, time.UTC)

	result := runner.Run(context.Background(), params)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Contains(t, result.Error, "no trading days")
	assert.Equal(t, []Status{StatusPending, StatusFailed}, store.seen())
}

func TestRun_CancelledContextFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(nil, holdProvider(), nil, zerolog.Nop())
	result := runner.Run(ctx, weekParams(testAgent("a")))

	assert.Equal(t, StatusFailed, result.Status)
	assert.Contains(t, result.Error, "cancelled")
}

func TestRun_PanickingProviderFailsRun(t *testing.T) {
	provider := providerFunc(func(context.Context, config.AgentConfig, market.Snapshot, []market.Snapshot, portfolio.Portfolio) (TradeDecision, error) {
		panic("boom")
	})

	runner := NewRunner(nil, provider, nil, zerolog.Nop())
	result := runner.Run(context.Background(), weekParams(testAgent("a")))

	assert.Equal(t, StatusFailed, result.Status)
	assert.Contains(t, result.Error, "panic")
}

func TestFallbackHold(t *testing.T) {
	snap := snapshotAt(map[string]float64{"MSFT": 300, "AAPL": 100})

	decision := FallbackHold("a", snap, errors.New("timeout"))

	assert.Equal(t, ActionHold, decision.Action)
	assert.Equal(t, "AAPL", decision.Ticker)
	assert.Equal(t, 100.0, decision.PriceAtDecision)
	assert.Equal(t, 0, decision.Quantity)
	assert.Equal(t, 0.0, decision.Confidence)
	assert.Contains(t, decision.Reasoning, "timeout")
}

func TestFallbackHold_NoPrices(t *testing.T) {
	decision := FallbackHold("a", market.Snapshot{}, errors.New("timeout"))

	assert.Equal(t, "N/A", decision.Ticker)
	assert.Equal(t, 1.0, decision.PriceAtDecision)
}
