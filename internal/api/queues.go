package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dialdesk/acd/internal/queue"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// QueueHandler serves queue state snapshots
type QueueHandler struct {
	queues *queue.Registry
	logger zerolog.Logger
}

// NewQueueHandler creates a new QueueHandler
func NewQueueHandler(queues *queue.Registry, logger zerolog.Logger) *QueueHandler {
	return &QueueHandler{
		queues: queues,
		logger: logger.With().Str("component", "queue_api").Logger(),
	}
}

// ListQueues handles GET /api/queues — every queue's summary snapshot,
// without the per-caller waiting list
func (h *QueueHandler) ListQueues(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	qs := h.queues.Queues()

	snapshots := make([]interface{}, 0, len(qs))
	for _, q := range qs {
		snapshots = append(snapshots, q.Stats().Snapshot(q, now, false))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"queues": snapshots,
		"count":  len(snapshots),
	})
}

// GetQueue handles GET /api/queues/{name} — one queue's full snapshot
// including the waiting list
func (h *QueueHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	q, err := h.queues.Find(name)
	if err != nil {
		http.Error(w, `{"error":"no such queue"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(q.Stats().Snapshot(q, time.Now(), true))
}
