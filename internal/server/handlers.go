package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/tradesim/internal/config"
	"github.com/aristath/tradesim/internal/modules/simulation"
)

const dateLayout = "2006-01-02"

// Handler handles the agents and simulations API.
type Handler struct {
	agents   *config.AgentStore
	repo     *simulation.Repository
	runner   *simulation.Runner
	progress *simulation.ProgressHub
	log      zerolog.Logger
}

// NewHandler creates the API handler.
func NewHandler(agents *config.AgentStore, repo *simulation.Repository, runner *simulation.Runner, progress *simulation.ProgressHub, log zerolog.Logger) *Handler {
	return &Handler{
		agents:   agents,
		repo:     repo,
		runner:   runner,
		progress: progress,
		log:      log.With().Str("handler", "api").Logger(),
	}
}

// RegisterRoutes registers agent and simulation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/agents", func(r chi.Router) {
		r.Get("/", h.HandleListAgents)
		r.Get("/{agentID}", h.HandleGetAgent)
		r.Put("/{agentID}", h.HandleUpdateAgent)
	})

	r.Route("/simulations", func(r chi.Router) {
		r.Get("/", h.HandleListSimulations)
		r.Post("/", h.HandleCreateSimulation)
		r.Get("/{simID}", h.HandleGetSimulation)
		r.Get("/{simID}/trades", h.HandleGetSimulationTrades)
		r.Get("/{simID}/ws", h.HandleSimulationProgress)
	})
}

// agentResponse is the flat API view of an agent config.
type agentResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	PersonaPrompt  string  `json:"persona_prompt"`
	ModelProvider  string  `json:"model_provider"`
	ModelID        string  `json:"model_id"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	InitialCapital float64 `json:"initial_capital"`
}

func toAgentResponse(a config.AgentConfig) agentResponse {
	return agentResponse{
		ID:             a.ID,
		Name:           a.Name,
		Description:    a.Description,
		PersonaPrompt:  a.PersonaPrompt,
		ModelProvider:  a.ModelProvider,
		ModelID:        a.ModelID,
		Temperature:    a.Parameters.Temperature,
		MaxTokens:      a.Parameters.MaxTokens,
		InitialCapital: a.InitialCapital,
	}
}

// HandleListAgents returns all configured trading agents.
func (h *Handler) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	agents := h.agents.List()
	out := make([]agentResponse, 0, len(agents))
	for _, a := range agents {
		out = append(out, toAgentResponse(a))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleGetAgent returns a single agent config by ID.
func (h *Handler) HandleGetAgent(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	agent, ok := h.agents.Get(agentID)
	if !ok {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("agent %q not found", agentID))
		return
	}
	h.writeJSON(w, http.StatusOK, toAgentResponse(agent))
}

// HandleUpdateAgent applies a partial update to an agent's configuration.
func (h *Handler) HandleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	var upd config.AgentUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	updated, err := h.agents.Update(agentID, upd)
	if err != nil {
		if _, ok := h.agents.Get(agentID); !ok {
			h.writeError(w, http.StatusNotFound, fmt.Sprintf("agent %q not found", agentID))
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.log.Info().Str("agent_id", agentID).Msg("Agent updated")
	h.writeJSON(w, http.StatusOK, toAgentResponse(updated))
}

// createSimulationRequest is the POST /simulations body.
type createSimulationRequest struct {
	AgentIDs  []string `json:"agent_ids"`
	Tickers   []string `json:"tickers"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
}

// HandleListSimulations returns run summaries, most recent first.
func (h *Handler) HandleListSimulations(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.repo.List()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

// HandleCreateSimulation validates the request, persists a PENDING
// placeholder and launches the run in the background, returning the
// placeholder immediately.
func (h *Handler) HandleCreateSimulation(w http.ResponseWriter, r *http.Request) {
	var req createSimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.AgentIDs) == 0 {
		h.writeError(w, http.StatusBadRequest, "agent_ids must not be empty")
		return
	}

	selected, err := h.agents.Select(req.AgentIDs)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid start_date: "+err.Error())
		return
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid end_date: "+err.Error())
		return
	}
	if !startDate.IsZero() && !endDate.IsZero() && endDate.Before(startDate) {
		h.writeError(w, http.StatusBadRequest, "end_date must not be before start_date")
		return
	}

	params := simulation.RunParams{
		Agents:    selected,
		Tickers:   req.Tickers,
		StartDate: startDate,
		EndDate:   endDate,
	}

	placeholder := simulation.NewPendingResult(params)
	params.RunID = placeholder.ID

	if err := h.repo.Save(placeholder); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// The run detaches from the request context so a closed connection
	// does not cancel it.
	go h.runner.Run(context.Background(), params)

	h.log.Info().
		Str("simulation_id", placeholder.ID).
		Strs("agent_ids", req.AgentIDs).
		Msg("Simulation launched")

	h.writeJSON(w, http.StatusAccepted, placeholder)
}

// HandleGetSimulation returns the full result of one run.
func (h *Handler) HandleGetSimulation(w http.ResponseWriter, r *http.Request) {
	simID := chi.URLParam(r, "simID")
	result, err := h.repo.Get(simID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result == nil {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("simulation %q not found", simID))
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleGetSimulationTrades returns the flattened trade log of a run,
// optionally filtered by agent, sorted by timestamp.
func (h *Handler) HandleGetSimulationTrades(w http.ResponseWriter, r *http.Request) {
	simID := chi.URLParam(r, "simID")
	result, err := h.repo.Get(simID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result == nil {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("simulation %q not found", simID))
		return
	}

	agentFilter := r.URL.Query().Get("agent_id")

	trades := make([]simulation.TradeDecision, 0)
	for agentID, agentResult := range result.AgentResults {
		if agentFilter != "" && agentID != agentFilter {
			continue
		}
		trades = append(trades, agentResult.Trades...)
	}

	sort.SliceStable(trades, func(i, j int) bool {
		if !trades[i].Timestamp.Equal(trades[j].Timestamp) {
			return trades[i].Timestamp.Before(trades[j].Timestamp)
		}
		return trades[i].AgentID < trades[j].AgentID
	})

	h.writeJSON(w, http.StatusOK, trades)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"detail": message})
}
