package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/tradesim/internal/config"
	"github.com/aristath/tradesim/internal/modules/market"
	"github.com/aristath/tradesim/internal/modules/portfolio"
	"github.com/aristath/tradesim/internal/modules/simulation"
)

// LLMProvider asks an OpenAI-compatible chat completions endpoint for a
// structured trade decision. Errors (transport, non-200, unparseable output)
// are returned to the engine, which substitutes a HOLD.
type LLMProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewLLMProvider creates a provider against the given chat completions base
// URL (e.g. https://api.openai.com).
func NewLLMProvider(baseURL, apiKey string, log zerolog.Logger) *LLMProvider {
	return &LLMProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // Completions can take a while
		},
		log: log.With().Str("component", "llm_provider").Logger(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// decisionOutput is the structured JSON the model must produce.
type decisionOutput struct {
	Action     string  `json:"action"`
	Ticker     string  `json:"ticker"`
	Quantity   int     `json:"quantity"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Decide requests one trade decision for the agent.
func (p *LLMProvider) Decide(ctx context.Context, agent config.AgentConfig, snapshot market.Snapshot, history []market.Snapshot, pf portfolio.Portfolio) (simulation.TradeDecision, error) {
	req := chatRequest{
		Model: agent.ModelID,
		Messages: []chatMessage{
			{Role: "system", Content: BuildSystemPrompt(agent)},
			{Role: "user", Content: BuildMarketPrompt(snapshot, history, pf)},
		},
		Temperature: agent.Parameters.Temperature,
		MaxTokens:   agent.Parameters.MaxTokens,
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return simulation.TradeDecision{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/chat/completions", p.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return simulation.TradeDecision{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	startTime := time.Now()
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return simulation.TradeDecision{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return simulation.TradeDecision{}, fmt.Errorf("model backend returned status %d: %s", resp.StatusCode, string(body))
	}

	var response chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return simulation.TradeDecision{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Choices) == 0 {
		return simulation.TradeDecision{}, fmt.Errorf("model backend returned no choices")
	}

	output, err := parseDecisionOutput(response.Choices[0].Message.Content)
	if err != nil {
		return simulation.TradeDecision{}, err
	}

	p.log.Debug().
		Str("agent_id", agent.ID).
		Str("model", agent.ModelID).
		Str("action", output.Action).
		Float64("elapsed_seconds", time.Since(startTime).Seconds()).
		Msg("Decision received")

	return buildDecision(agent.ID, snapshot, output), nil
}

// parseDecisionOutput extracts the structured decision from the model's
// reply, tolerating markdown code fences around the JSON.
func parseDecisionOutput(content string) (decisionOutput, error) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	var output decisionOutput
	if err := json.Unmarshal([]byte(trimmed), &output); err != nil {
		return decisionOutput{}, fmt.Errorf("model output is not valid decision JSON: %w", err)
	}
	if output.Quantity < 0 {
		return decisionOutput{}, fmt.Errorf("model output has negative quantity %d", output.Quantity)
	}
	return output, nil
}

// buildDecision normalizes raw model output into a TradeDecision: holds have
// no ticker of their own and carry zero quantity, and confidence is clamped
// to [0, 1].
func buildDecision(agentID string, snapshot market.Snapshot, output decisionOutput) simulation.TradeDecision {
	action := simulation.ParseAction(strings.TrimSpace(output.Action))

	ticker := strings.ToUpper(strings.TrimSpace(output.Ticker))
	quantity := output.Quantity
	if action == simulation.ActionHold {
		quantity = 0
		if tickers := snapshot.SortedTickers(); len(tickers) > 0 {
			ticker = tickers[0]
		}
	}

	price := 1.0
	if bar, ok := snapshot.Prices[ticker]; ok && bar.Close > 0 {
		price = bar.Close
	}

	confidence := output.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return simulation.TradeDecision{
		AgentID:         agentID,
		Timestamp:       snapshot.Date,
		Ticker:          ticker,
		Action:          action,
		Quantity:        quantity,
		Confidence:      confidence,
		Reasoning:       output.Reasoning,
		PriceAtDecision: price,
	}
}
