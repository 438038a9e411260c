package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dialdesk/acd/internal/directory"
	"github.com/dialdesk/acd/internal/qlog"
	"github.com/dialdesk/acd/internal/queue"
	"github.com/dialdesk/acd/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// MemberHandler provides REST endpoints for runtime member control
type MemberHandler struct {
	queues *queue.Registry
	dir    *directory.Service
	sink   *qlog.Sink
	logger zerolog.Logger
}

// NewMemberHandler creates a new MemberHandler
func NewMemberHandler(queues *queue.Registry, dir *directory.Service, sink *qlog.Sink, logger zerolog.Logger) *MemberHandler {
	return &MemberHandler{
		queues: queues,
		dir:    dir,
		sink:   sink,
		logger: logger.With().Str("component", "member_api").Logger(),
	}
}

// AddMember handles POST /api/queues/{name}/members
func (h *MemberHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	queueName := chi.URLParam(r, "name")

	var mc types.MemberConfig
	if err := json.NewDecoder(r.Body).Decode(&mc); err != nil || mc.Interface == "" {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	m, err := h.queues.AddDynamicMember(queueName, mc)
	if err != nil {
		writeMemberError(w, err)
		return
	}

	if err := h.dir.PersistDynamic(r.Context(), queueName, mc); err != nil {
		h.logger.Warn().Err(err).
			Str("queue", queueName).
			Str("interface", mc.Interface).
			Msg("dynamic member not persisted, will not survive restart")
	}
	h.sink.Log(queueName, "NONE", mc.Interface, types.EventAddMember)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(m.Snapshot())
}

// RemoveMember handles DELETE /api/queues/{name}/members with the
// interface in the body, since dial interfaces contain slashes
func (h *MemberHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	queueName := chi.URLParam(r, "name")

	var req struct {
		Interface string `json:"interface"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Interface == "" {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := h.queues.RemoveDynamicMember(queueName, req.Interface); err != nil {
		writeMemberError(w, err)
		return
	}

	if err := h.dir.ForgetDynamic(r.Context(), queueName, req.Interface); err != nil {
		h.logger.Warn().Err(err).
			Str("queue", queueName).
			Str("interface", req.Interface).
			Msg("dynamic member not forgotten in persistence")
	}
	h.sink.Log(queueName, "NONE", req.Interface, types.EventRemoveMember)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message":   "member removed",
		"interface": req.Interface,
	})
}

// Pause handles POST /api/members/pause. An empty queue field pauses the
// interface in every queue.
func (h *MemberHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, true)
}

// Unpause handles POST /api/members/unpause
func (h *MemberHandler) Unpause(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, false)
}

func (h *MemberHandler) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	var req struct {
		Queue     string `json:"queue,omitempty"`
		Interface string `json:"interface"`
		Reason    string `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Interface == "" {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	changed, err := h.queues.SetMemberPaused(req.Queue, req.Interface, paused, req.Reason)
	if err != nil {
		writeMemberError(w, err)
		return
	}

	event := types.EventPause
	if !paused {
		event = types.EventUnpause
	}
	logQueue := req.Queue
	if logQueue == "" {
		logQueue = "all"
	}
	h.sink.Log(logQueue, "NONE", req.Interface, event, req.Reason)

	// Pause state written back to the realtime table survives reloads.
	if req.Queue != "" {
		if err := h.dir.UpdateRealtimePaused(r.Context(), req.Queue, req.Interface, paused); err != nil {
			h.logger.Warn().Err(err).Str("interface", req.Interface).Msg("realtime pause writeback failed")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"paused":  paused,
		"changed": changed,
	})
}

// SetPenalty handles POST /api/queues/{name}/members/penalty
func (h *MemberHandler) SetPenalty(w http.ResponseWriter, r *http.Request) {
	queueName := chi.URLParam(r, "name")

	var req struct {
		Interface string `json:"interface"`
		Penalty   int    `json:"penalty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Interface == "" {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Penalty < 0 {
		http.Error(w, `{"error":"penalty must be non-negative"}`, http.StatusBadRequest)
		return
	}

	if err := h.queues.SetMemberPenalty(queueName, req.Interface, req.Penalty); err != nil {
		writeMemberError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"interface": req.Interface,
		"penalty":   req.Penalty,
	})
}

func writeMemberError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case errors.Is(err, queue.ErrNoSuchQueue):
		http.Error(w, `{"error":"no such queue"}`, http.StatusNotFound)
	case errors.Is(err, queue.ErrNoSuchMember):
		http.Error(w, `{"error":"no such member"}`, http.StatusNotFound)
	case errors.Is(err, queue.ErrDuplicateMember):
		http.Error(w, `{"error":"member already exists"}`, http.StatusConflict)
	case errors.Is(err, queue.ErrMemberNotDynamic):
		http.Error(w, `{"error":"member is not dynamic"}`, http.StatusForbidden)
	default:
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}
