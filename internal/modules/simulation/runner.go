package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/tradesim/internal/config"
	"github.com/aristath/tradesim/internal/modules/market"
	"github.com/aristath/tradesim/internal/modules/portfolio"
)

// DecisionInterval is how often agents make decisions, in trading days.
// Agents never trade on day 0.
const DecisionInterval = 5

// Default simulated date range when a run does not specify one.
var (
	DefaultStartDate = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	DefaultEndDate   = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
)

// DecisionProvider turns market context into a trade instruction. It may
// fail with any error; the engine substitutes a HOLD and continues the
// agent's timeline.
type DecisionProvider interface {
	Decide(ctx context.Context, agent config.AgentConfig, snapshot market.Snapshot, history []market.Snapshot, pf portfolio.Portfolio) (TradeDecision, error)
}

// ResultStore persists run state transitions. Satisfied by *Repository.
type ResultStore interface {
	Save(result *Result) error
}

// RunParams are the inputs to one simulation run. Zero values fall back to
// defaults (fresh ID, default date range, default ticker set).
type RunParams struct {
	RunID     string
	Agents    []config.AgentConfig
	Tickers   []string
	StartDate time.Time
	EndDate   time.Time
}

// Runner orchestrates simulation runs: it generates the shared price series,
// drives every agent's timeline concurrently and persists lifecycle
// transitions. A run never returns an error; outcomes are carried by the
// result's status and error text.
type Runner struct {
	store    ResultStore
	provider DecisionProvider
	progress *ProgressHub
	log      zerolog.Logger
}

// NewRunner creates a simulation runner. progress may be nil when nothing
// will watch live updates.
func NewRunner(store ResultStore, provider DecisionProvider, progress *ProgressHub, log zerolog.Logger) *Runner {
	return &Runner{
		store:    store,
		provider: provider,
		progress: progress,
		log:      log.With().Str("component", "runner").Logger(),
	}
}

// NewPendingResult builds the PENDING placeholder for a run, filling in
// defaults. The same params passed to Run produce a result with the same
// identity, so callers can persist the placeholder before the run starts.
func NewPendingResult(params RunParams) *Result {
	runID := params.RunID
	if runID == "" {
		runID = uuid.NewString()[:8]
	}

	start, end := params.StartDate, params.EndDate
	if start.IsZero() {
		start = DefaultStartDate
	}
	if end.IsZero() {
		end = DefaultEndDate
	}

	tickers := params.Tickers
	if len(tickers) == 0 {
		tickers = market.DefaultTickers
	}

	agentIDs := make([]string, 0, len(params.Agents))
	for _, a := range params.Agents {
		agentIDs = append(agentIDs, a.ID)
	}

	return &Result{
		ID:           runID,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
		StartDate:    start,
		EndDate:      end,
		Tickers:      tickers,
		AgentIDs:     agentIDs,
		AgentResults: map[string]AgentResult{},
	}
}

// Run executes a full simulation: PENDING -> RUNNING -> COMPLETED or FAILED.
// All agents are evaluated over one shared price series; each timeline runs
// in its own goroutine and the run finalizes only after every timeline has
// finished. Any timeline error (including cancellation) fails the whole run.
func (r *Runner) Run(ctx context.Context, params RunParams) *Result {
	result := NewPendingResult(params)
	log := r.log.With().Str("simulation_id", result.ID).Logger()

	// Persist the placeholder so status is observable before any work.
	r.persist(result)

	snapshots := market.Generate(result.Tickers, result.StartDate, result.EndDate)
	if len(snapshots) == 0 {
		return r.fail(result, fmt.Errorf("no trading days between %s and %s",
			result.StartDate.Format(dateLayout), result.EndDate.Format(dateLayout)))
	}

	result.Status = StatusRunning
	r.persist(result)
	r.publish(ProgressEvent{RunID: result.ID, Status: StatusRunning, TotalDays: len(snapshots)})

	log.Info().
		Int("agents", len(params.Agents)).
		Int("trading_days", len(snapshots)).
		Msg("Simulation started")

	agentResults := make([]AgentResult, len(params.Agents))
	g, gctx := errgroup.WithContext(ctx)
	for i, agent := range params.Agents {
		i, agent := i, agent
		g.Go(func() error {
			res, err := r.runAgent(gctx, result.ID, agent, snapshots)
			if err != nil {
				return err
			}
			agentResults[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return r.fail(result, err)
	}

	for _, res := range agentResults {
		result.AgentResults[res.AgentID] = res
	}
	result.Status = StatusCompleted
	r.persist(result)
	r.publish(ProgressEvent{RunID: result.ID, Status: StatusCompleted, DayIndex: len(snapshots) - 1, TotalDays: len(snapshots)})

	log.Info().Msg("Simulation completed")
	return result
}

// runAgent walks one agent through the whole snapshot sequence. Valuation is
// recorded every day; every DecisionInterval days (starting at day index
// DecisionInterval) the provider is consulted with the current snapshot, the
// trailing history of days already seen, and the current portfolio.
func (r *Runner) runAgent(ctx context.Context, runID string, agent config.AgentConfig, snapshots []market.Snapshot) (res AgentResult, err error) {
	// A panicking provider or a bug in the loop fails the run, not the
	// process.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("agent %s: timeline panic: %v", agent.ID, rec)
		}
	}()

	pf := portfolio.New(agent.InitialCapital)

	trades := make([]TradeDecision, 0)
	portfolioHistory := make([]float64, 0, len(snapshots))
	dateLabels := make([]string, 0, len(snapshots))
	history := make([]market.Snapshot, 0, len(snapshots))

	for i, snapshot := range snapshots {
		if err := ctx.Err(); err != nil {
			return AgentResult{}, fmt.Errorf("agent %s: run cancelled: %w", agent.ID, err)
		}

		// Mark to market every day, whether or not a decision is made.
		portfolioHistory = append(portfolioHistory, round2(pf.ValueAtPrices(snapshot.ClosePrices())))
		dateLabels = append(dateLabels, snapshot.Date.Format(dateLayout))

		if i%DecisionInterval == 0 && i > 0 {
			decision, derr := r.provider.Decide(ctx, agent, snapshot, history, pf)
			if derr != nil {
				if ctx.Err() != nil {
					return AgentResult{}, fmt.Errorf("agent %s: run cancelled: %w", agent.ID, ctx.Err())
				}
				r.log.Warn().
					Err(derr).
					Str("agent_id", agent.ID).
					Int("day_index", i).
					Msg("Decision provider failed, holding")
				decision = FallbackHold(agent.ID, snapshot, derr)
			}

			trades = append(trades, decision)
			pf = ExecuteTrade(pf, decision, snapshot)

			r.publish(ProgressEvent{
				RunID:     runID,
				Status:    StatusRunning,
				AgentID:   agent.ID,
				DayIndex:  i,
				TotalDays: snapshot.TotalDays,
			})
		}

		history = append(history, snapshot)
	}

	return AgentResult{
		AgentID:          agent.ID,
		AgentName:        agent.Name,
		Portfolio:        pf,
		Trades:           trades,
		PortfolioHistory: portfolioHistory,
		DateLabels:       dateLabels,
		Metrics:          CalculateMetrics(portfolioHistory, trades, agent.InitialCapital),
	}, nil
}

// FallbackHold builds the safe default decision substituted when a decision
// provider fails: a zero-confidence HOLD naming the failure.
func FallbackHold(agentID string, snapshot market.Snapshot, cause error) TradeDecision {
	ticker := "N/A"
	price := 1.0
	if tickers := snapshot.SortedTickers(); len(tickers) > 0 {
		ticker = tickers[0]
		price = snapshot.Prices[ticker].Close
	}

	return TradeDecision{
		AgentID:         agentID,
		Timestamp:       snapshot.Date,
		Ticker:          ticker,
		Action:          ActionHold,
		Quantity:        0,
		Confidence:      0,
		Reasoning:       fmt.Sprintf("Decision provider failed, defaulting to hold: %v", cause),
		PriceAtDecision: price,
	}
}

func (r *Runner) fail(result *Result, cause error) *Result {
	r.log.Error().
		Err(cause).
		Str("simulation_id", result.ID).
		Msg("Simulation failed")

	result.Status = StatusFailed
	result.Error = cause.Error()
	r.persist(result)
	r.publish(ProgressEvent{RunID: result.ID, Status: StatusFailed})
	return result
}

// persist saves the run's current state. Persistence failures are logged but
// never abort the run: the in-memory result is still authoritative for the
// caller.
func (r *Runner) persist(result *Result) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(result); err != nil {
		r.log.Error().
			Err(err).
			Str("simulation_id", result.ID).
			Str("status", string(result.Status)).
			Msg("Failed to persist simulation state")
	}
}

func (r *Runner) publish(ev ProgressEvent) {
	if r.progress != nil {
		r.progress.Publish(ev)
	}
}
