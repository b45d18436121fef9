package simulation

import "sync"

// ProgressEvent is one live update about a running simulation. AgentID is
// empty for run-level status transitions.
type ProgressEvent struct {
	RunID     string `json:"run_id"`
	Status    Status `json:"status"`
	AgentID   string `json:"agent_id,omitempty"`
	DayIndex  int    `json:"day_index"`
	TotalDays int    `json:"total_days"`
}

// ProgressHub fans run progress out to websocket watchers. Publishing never
// blocks: a subscriber that cannot keep up misses events rather than
// stalling an agent timeline.
type ProgressHub struct {
	mu   sync.Mutex
	subs map[string]map[chan ProgressEvent]struct{}
}

// NewProgressHub creates an empty hub.
func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		subs: make(map[string]map[chan ProgressEvent]struct{}),
	}
}

// Subscribe registers a watcher for one run. The returned cancel func must
// be called exactly once; it closes the event channel.
func (h *ProgressHub) Subscribe(runID string) (<-chan ProgressEvent, func()) {
	ch := make(chan ProgressEvent, 64)

	h.mu.Lock()
	if h.subs[runID] == nil {
		h.subs[runID] = make(map[chan ProgressEvent]struct{})
	}
	h.subs[runID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[runID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, runID)
			}
		}
		h.mu.Unlock()
		close(ch)
	}

	return ch, cancel
}

// Publish delivers an event to every watcher of its run.
func (h *ProgressHub) Publish(ev ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[ev.RunID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
