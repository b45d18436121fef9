package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ModelParameters tunes the language model backing an agent.
type ModelParameters struct {
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
}

// AgentConfig describes one trading agent persona.
type AgentConfig struct {
	ID             string          `json:"id" yaml:"id"`
	Name           string          `json:"name" yaml:"name"`
	Description    string          `json:"description" yaml:"description"`
	PersonaPrompt  string          `json:"persona_prompt" yaml:"persona_prompt"`
	ModelProvider  string          `json:"model_provider" yaml:"model_provider"`
	ModelID        string          `json:"model_id" yaml:"model_id"`
	Parameters     ModelParameters `json:"parameters" yaml:"parameters"`
	InitialCapital float64         `json:"initial_capital" yaml:"initial_capital"`
}

// Validate checks the agent record for values the engine cannot work with.
func (a AgentConfig) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("agent id must not be empty")
	}
	if a.Name == "" {
		return fmt.Errorf("agent %s: name must not be empty", a.ID)
	}
	if a.InitialCapital <= 0 {
		return fmt.Errorf("agent %s: initial capital must be positive, got %.2f", a.ID, a.InitialCapital)
	}
	if a.Parameters.Temperature < 0 || a.Parameters.Temperature > 2 {
		return fmt.Errorf("agent %s: temperature must be in [0, 2], got %.2f", a.ID, a.Parameters.Temperature)
	}
	if a.Parameters.MaxTokens <= 0 {
		return fmt.Errorf("agent %s: max tokens must be positive, got %d", a.ID, a.Parameters.MaxTokens)
	}
	return nil
}

// AgentUpdate is a partial update of an agent record. Nil fields are left
// unchanged.
type AgentUpdate struct {
	Name           *string  `json:"name"`
	Description    *string  `json:"description"`
	PersonaPrompt  *string  `json:"persona_prompt"`
	ModelProvider  *string  `json:"model_provider"`
	ModelID        *string  `json:"model_id"`
	Temperature    *float64 `json:"temperature"`
	MaxTokens      *int     `json:"max_tokens"`
	InitialCapital *float64 `json:"initial_capital"`
}

// AgentStore holds the agent roster. The roster is process-wide mutable
// state, so it lives behind an explicit store object: reads return copies
// and updates build a new validated record before swapping it in.
type AgentStore struct {
	mu     sync.RWMutex
	agents []AgentConfig
}

// NewAgentStore creates a store over the given roster.
func NewAgentStore(agents []AgentConfig) (*AgentStore, error) {
	seen := make(map[string]bool, len(agents))
	for _, a := range agents {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
	}
	return &AgentStore{agents: agents}, nil
}

// LoadAgentStore builds the store from a YAML roster file, or from the
// built-in default roster when path is empty.
func LoadAgentStore(path string) (*AgentStore, error) {
	if path == "" {
		return NewAgentStore(DefaultAgents())
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agents file: %w", err)
	}

	var doc struct {
		Agents []AgentConfig `yaml:"agents"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse agents file: %w", err)
	}
	if len(doc.Agents) == 0 {
		return nil, fmt.Errorf("agents file %s contains no agents", path)
	}

	// Fill per-agent defaults the YAML may omit.
	for i := range doc.Agents {
		applyAgentDefaults(&doc.Agents[i])
	}

	return NewAgentStore(doc.Agents)
}

// List returns a copy of the roster in its configured order.
func (s *AgentStore) List() []AgentConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AgentConfig, len(s.agents))
	copy(out, s.agents)
	return out
}

// Get returns the agent with the given ID.
func (s *AgentStore) Get(id string) (AgentConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.agents {
		if a.ID == id {
			return a, true
		}
	}
	return AgentConfig{}, false
}

// Select resolves agent IDs to their configs, preserving request order.
// Any unknown ID fails the whole selection.
func (s *AgentStore) Select(ids []string) ([]AgentConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := make(map[string]AgentConfig, len(s.agents))
	for _, a := range s.agents {
		byID[a.ID] = a
	}

	out := make([]AgentConfig, 0, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown agent id %q", id)
		}
		out = append(out, a)
	}
	return out, nil
}

// Update applies a partial update to an agent, validating the resulting
// record before swapping it into the roster, and returns the new record.
func (s *AgentStore) Update(id string, upd AgentUpdate) (AgentConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, a := range s.agents {
		if a.ID != id {
			continue
		}

		updated := a
		if upd.Name != nil {
			updated.Name = *upd.Name
		}
		if upd.Description != nil {
			updated.Description = *upd.Description
		}
		if upd.PersonaPrompt != nil {
			updated.PersonaPrompt = *upd.PersonaPrompt
		}
		if upd.ModelProvider != nil {
			updated.ModelProvider = *upd.ModelProvider
		}
		if upd.ModelID != nil {
			updated.ModelID = *upd.ModelID
		}
		if upd.Temperature != nil {
			updated.Parameters.Temperature = *upd.Temperature
		}
		if upd.MaxTokens != nil {
			updated.Parameters.MaxTokens = *upd.MaxTokens
		}
		if upd.InitialCapital != nil {
			updated.InitialCapital = *upd.InitialCapital
		}

		if err := updated.Validate(); err != nil {
			return AgentConfig{}, err
		}

		s.agents[i] = updated
		return updated, nil
	}

	return AgentConfig{}, fmt.Errorf("unknown agent id %q", id)
}

func applyAgentDefaults(a *AgentConfig) {
	if a.ModelProvider == "" {
		a.ModelProvider = "openai"
	}
	if a.ModelID == "" {
		a.ModelID = "gpt-4o"
	}
	if a.Parameters.Temperature == 0 {
		a.Parameters.Temperature = 0.5
	}
	if a.Parameters.MaxTokens == 0 {
		a.Parameters.MaxTokens = 1024
	}
	if a.InitialCapital == 0 {
		a.InitialCapital = 100_000
	}
}

// DefaultAgents is the built-in roster used when no agents file is
// configured.
func DefaultAgents() []AgentConfig {
	defaults := ModelParameters{Temperature: 0.5, MaxTokens: 1024}
	return []AgentConfig{
		{
			ID:          "value-vera",
			Name:        "Value Vera",
			Description: "Patient value investor hunting for prices below intrinsic worth",
			PersonaPrompt: "You are a disciplined value investor. You buy quality " +
				"companies when their price falls well below your estimate of fair " +
				"value, you size positions conservatively, and you sell only when " +
				"price runs far ahead of fundamentals.",
			ModelProvider:  "openai",
			ModelID:        "gpt-4o",
			Parameters:     defaults,
			InitialCapital: 100_000,
		},
		{
			ID:          "momentum-max",
			Name:        "Momentum Max",
			Description: "Aggressive trend follower chasing strength",
			PersonaPrompt: "You are an aggressive momentum trader. You buy what is " +
				"going up, cut losers quickly, and are comfortable concentrating " +
				"your portfolio in the strongest recent performers.",
			ModelProvider:  "openai",
			ModelID:        "gpt-4o",
			Parameters:     ModelParameters{Temperature: 0.8, MaxTokens: 1024},
			InitialCapital: 100_000,
		},
		{
			ID:          "cautious-carl",
			Name:        "Cautious Carl",
			Description: "Risk-averse allocator who mostly sits in cash",
			PersonaPrompt: "You are an extremely risk-averse investor. You keep most " +
				"of your capital in cash, take small positions only when the market " +
				"looks calm, and exit at the first sign of elevated volatility.",
			ModelProvider:  "openai",
			ModelID:        "gpt-4o",
			Parameters:     ModelParameters{Temperature: 0.3, MaxTokens: 1024},
			InitialCapital: 100_000,
		},
		{
			ID:          "technical-tina",
			Name:        "Technical Tina",
			Description: "Deterministic RSI mean-reversion strategy, no LLM",
			PersonaPrompt: "Rule-based mean reversion: buy oversold tickers, " +
				"sell overbought holdings.",
			ModelProvider:  "technical",
			ModelID:        "rsi-14",
			Parameters:     defaults,
			InitialCapital: 100_000,
		},
	}
}
