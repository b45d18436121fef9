// Package agents provides decision providers: the pluggable policies that
// turn market context into trade instructions for the simulation engine.
package agents

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/tradesim/internal/config"
	"github.com/aristath/tradesim/internal/modules/market"
	"github.com/aristath/tradesim/internal/modules/portfolio"
	"github.com/aristath/tradesim/internal/modules/simulation"
)

// Registry dispatches decision requests to the provider selected by the
// agent's configured model provider. It satisfies simulation.DecisionProvider.
type Registry struct {
	llm       *LLMProvider
	technical *TechnicalProvider
	log       zerolog.Logger
}

// NewRegistry creates the provider registry.
func NewRegistry(llm *LLMProvider, technical *TechnicalProvider, log zerolog.Logger) *Registry {
	return &Registry{
		llm:       llm,
		technical: technical,
		log:       log.With().Str("component", "agent_registry").Logger(),
	}
}

// Decide routes to the agent's provider. "technical" is handled by the
// rule-based provider; everything else goes to the LLM provider, which
// understands any OpenAI-compatible backend.
func (r *Registry) Decide(ctx context.Context, agent config.AgentConfig, snapshot market.Snapshot, history []market.Snapshot, pf portfolio.Portfolio) (simulation.TradeDecision, error) {
	switch strings.ToLower(agent.ModelProvider) {
	case "technical", "rule-based":
		return r.technical.Decide(ctx, agent, snapshot, history, pf)
	default:
		return r.llm.Decide(ctx, agent, snapshot, history, pf)
	}
}
