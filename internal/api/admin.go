package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dialdesk/acd/internal/auth"
	"github.com/dialdesk/acd/internal/directory"
	"github.com/dialdesk/acd/internal/queue"
	"github.com/dialdesk/acd/internal/storage"
	"github.com/rs/zerolog"
)

// AdminHandler handles reloads and destructive maintenance operations
type AdminHandler struct {
	queues *queue.Registry
	dir    *directory.Service
	store  storage.Store
	logger zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(queues *queue.Registry, dir *directory.Service, store storage.Store, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		queues: queues,
		dir:    dir,
		store:  store,
		logger: logger,
	}
}

// RequireAdmin middleware — only admin role allowed
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || !auth.HasRole(claims, "admin") {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"admin role required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSupervisorOrAdmin middleware — supervisor or admin role allowed
func RequireSupervisorOrAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || (claims.Role != "admin" && claims.Role != "supervisor") {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"supervisor or admin role required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Reload recomposes every queue from the directory and installs the new
// generations. Waiting callers and statistics survive.
func (h *AdminHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.dir.Reload(r.Context(), h.queues); err != nil {
		h.logger.Error().Err(err).Msg("directory reload failed")
		http.Error(w, fmt.Sprintf(`{"error":"reload failed: %s"}`, err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "queues reloaded",
		"queues":  len(h.queues.Queues()),
	})
}

// RemoveQueue drops one queue entirely
func (h *AdminHandler) RemoveQueue(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, `{"error":"name query parameter required"}`, http.StatusBadRequest)
		return
	}
	if err := h.queues.Remove(name); err != nil {
		http.Error(w, `{"error":"no such queue"}`, http.StatusNotFound)
		return
	}

	h.logger.Info().Str("queue", name).Msg("queue removed via admin")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "queue removed",
		"queue":   name,
	})
}

// WipeQueueLog truncates the queue log table
func (h *AdminHandler) WipeQueueLog(w http.ResponseWriter, r *http.Request) {
	if err := h.store.TruncateAll(); err != nil {
		h.logger.Error().Err(err).Msg("failed to truncate queue log")
		http.Error(w, fmt.Sprintf(`{"error":"failed to truncate: %s"}`, err), http.StatusInternalServerError)
		return
	}

	h.logger.Info().Msg("queue log truncated")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "queue log truncated",
	})
}
