package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dialdesk/acd/internal/engine"
	"github.com/dialdesk/acd/internal/session"
	"github.com/dialdesk/acd/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CallHandler injects synthetic callers into the dispatch engine over the
// loopback transport, for smoke tests and load drills
type CallHandler struct {
	engine *engine.Engine
	logger zerolog.Logger
}

// NewCallHandler creates a new CallHandler
func NewCallHandler(eng *engine.Engine, logger zerolog.Logger) *CallHandler {
	return &CallHandler{
		engine: eng,
		logger: logger.With().Str("component", "call_api").Logger(),
	}
}

// InjectCalls enqueues synthetic callers into a queue
func (h *CallHandler) InjectCalls(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Queue       string `json:"queue"`
		Count       int    `json:"count"`
		Priority    int    `json:"priority,omitempty"`
		TimeoutSecs int    `json:"timeoutSecs,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Queue == "" {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Count <= 0 {
		req.Count = 1
	}
	if req.Count > 1000 {
		req.Count = 1000
	}
	if req.TimeoutSecs <= 0 {
		req.TimeoutSecs = 60
	}

	for i := 0; i < req.Count; i++ {
		number := fmt.Sprintf("+49301%06d", i)
		go func() {
			sess := session.NewFake(types.CallerID{Number: number, Name: "Injected Caller"})
			res, err := h.engine.Queue(context.Background(), sess, engine.Options{
				Queue:       req.Queue,
				Priority:    req.Priority,
				TimeoutSecs: req.TimeoutSecs,
			})
			if err != nil {
				h.logger.Warn().Err(err).Str("queue", req.Queue).Msg("injected call failed")
				return
			}
			h.logger.Info().
				Str("queue", req.Queue).
				Str("call_id", sess.ID()).
				Str("reason", string(res.Reason)).
				Int("wait_secs", res.WaitSecs).
				Msg("injected call finished")
		}()
	}

	h.logger.Info().Int("injected", req.Count).Str("queue", req.Queue).Msg("calls injected via admin")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":  fmt.Sprintf("injected %d calls", req.Count),
		"injected": req.Count,
		"batch":    uuid.New().String(),
	})
}
