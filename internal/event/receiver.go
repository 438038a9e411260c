// Package event is the HTTP fallback ingress for device-state updates,
// for PBX adapters that cannot hold a websocket open.
package event

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dialdesk/acd/internal/cache"
	"github.com/dialdesk/acd/internal/statebus"
	"github.com/dialdesk/acd/internal/types"
	"github.com/rs/zerolog"
)

// Receiver handles incoming device-state updates over HTTP
type Receiver struct {
	cache          *cache.UpdateCache
	bus            *statebus.Bus
	logger         zerolog.Logger
	eventsReceived int64
	lastReceived   time.Time
	mu             sync.RWMutex
}

// NewReceiver creates a new event receiver
func NewReceiver(updates *cache.UpdateCache, bus *statebus.Bus, logger zerolog.Logger) *Receiver {
	return &Receiver{
		cache:  updates,
		bus:    bus,
		logger: logger,
	}
}

// HandleUpdate receives one device-state update and submits it to the bus
func (r *Receiver) HandleUpdate(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var update types.DeviceStateUpdate
	if err := json.NewDecoder(req.Body).Decode(&update); err != nil || update.Device == "" {
		r.logger.Error().Err(err).Msg("failed to decode state update")
		http.Error(w, "invalid update", http.StatusBadRequest)
		return
	}

	// Buffer for the next snapshot broadcast cycle
	r.cache.Add(update)

	// Apply through the single consumer
	r.bus.Submit(update)

	// Update stats
	atomic.AddInt64(&r.eventsReceived, 1)
	r.mu.Lock()
	r.lastReceived = time.Now()
	r.mu.Unlock()

	// Log periodically
	count := atomic.LoadInt64(&r.eventsReceived)
	if count%1000 == 0 {
		r.logger.Info().
			Int64("total_received", count).
			Int("cache_size", r.cache.Size()).
			Msg("state updates received")
	}

	w.WriteHeader(http.StatusOK)
}

// GetStats returns receiver statistics
func (r *Receiver) GetStats(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	lastReceived := r.lastReceived
	r.mu.RUnlock()

	stats := map[string]interface{}{
		"updates_received": atomic.LoadInt64(&r.eventsReceived),
		"last_received":    lastReceived,
		"cache_size":       r.cache.Size(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
