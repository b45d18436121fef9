package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/tradesim/internal/modules/simulation"
)

// HandleSimulationProgress streams progress events for one run over a
// websocket. The socket closes once the run reaches a terminal status (or
// immediately after one snapshot event if it already has).
func (h *Handler) HandleSimulationProgress(w http.ResponseWriter, r *http.Request) {
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

	// Subscribe before the handshake so no transition is missed between
	// the snapshot read above and the event loop below.
	events, cancel := h.progress.Subscribe(simID)
	defer cancel()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Str("simulation_id", simID).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	ctx := r.Context()

	// Current state first, so watchers of finished runs still get an answer.
	snapshot := simulation.ProgressEvent{RunID: simID, Status: result.Status}
	if err := wsjson.Write(ctx, conn, snapshot); err != nil {
		return
	}
	if result.Status.Terminal() {
		conn.Close(websocket.StatusNormalClosure, "simulation finished")
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "client disconnected")
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "stream closed")
				return
			}
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				return
			}
			if ev.Status.Terminal() {
				conn.Close(websocket.StatusNormalClosure, "simulation finished")
				return
			}
		}
	}
}
