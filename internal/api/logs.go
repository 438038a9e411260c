package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dialdesk/acd/internal/storage"
	"github.com/dialdesk/acd/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// LogHandler provides REST endpoints for the persisted queue log
type LogHandler struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewLogHandler creates a new LogHandler
func NewLogHandler(store storage.Store, logger zerolog.Logger) *LogHandler {
	return &LogHandler{
		store:  store,
		logger: logger.With().Str("component", "log_handler").Logger(),
	}
}

// GetLogs returns all queue log records for a date
// GET /api/logs?date=YYYY-MM-DD (defaults to today)
func (h *LogHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	records, err := h.store.GetQueueLogs(date)
	if err != nil {
		h.logger.Error().Err(err).Str("date", date).Msg("failed to get queue logs")
		http.Error(w, "failed to retrieve logs", http.StatusInternalServerError)
		return
	}

	if records == nil {
		records = []types.QueueLogRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// GetQueueLogs returns the queue log records of one queue on a date
// GET /api/logs/{queue}?date=YYYY-MM-DD (defaults to today)
func (h *LogHandler) GetQueueLogs(w http.ResponseWriter, r *http.Request) {
	queueName := chi.URLParam(r, "queue")
	if queueName == "" {
		http.Error(w, "queue is required", http.StatusBadRequest)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	records, err := h.store.GetQueueLogsByQueue(date, queueName)
	if err != nil {
		h.logger.Error().Err(err).
			Str("queue", queueName).
			Str("date", date).
			Msg("failed to get queue logs")
		http.Error(w, "failed to retrieve logs", http.StatusInternalServerError)
		return
	}

	if records == nil {
		records = []types.QueueLogRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}
