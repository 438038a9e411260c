// Package aggregator builds the periodic queue snapshot broadcast: once
// per interval it snapshots every queue, runs the alert rules, refreshes
// the waiting-calls gauge, and pushes the batch at connected observers.
package aggregator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dialdesk/acd/internal/alerts"
	"github.com/dialdesk/acd/internal/cache"
	"github.com/dialdesk/acd/internal/metrics"
	"github.com/dialdesk/acd/internal/queue"
	"github.com/dialdesk/acd/internal/types"
	"github.com/dialdesk/acd/internal/websocket"
	"github.com/rs/zerolog"
)

// SnapshotBatch is the message broadcast to observers each cycle
type SnapshotBatch struct {
	Type          string                `json:"type"` // always "queue_snapshots"
	Timestamp     time.Time             `json:"timestamp"`
	Queues        []types.QueueSnapshot `json:"queues"`
	RecentUpdates int                   `json:"recentUpdates"`
}

// Aggregator periodically snapshots the queues and broadcasts the batch
type Aggregator struct {
	queues   *queue.Registry
	updates  *cache.UpdateCache
	hub      *websocket.Hub
	interval time.Duration
	logger   zerolog.Logger
}

// New creates a new aggregator
func New(queues *queue.Registry, updates *cache.UpdateCache, hub *websocket.Hub, interval time.Duration, logger zerolog.Logger) *Aggregator {
	if interval <= 0 {
		interval = time.Second
	}
	return &Aggregator{
		queues:   queues,
		updates:  updates,
		hub:      hub,
		interval: interval,
		logger:   logger,
	}
}

// Start begins snapshotting and broadcasting until ctx is cancelled
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info().Dur("interval", a.interval).Msg("aggregator started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("aggregator stopped")
			return

		case now := <-ticker.C:
			a.broadcast(now)
		}
	}
}

func (a *Aggregator) broadcast(now time.Time) {
	recent := a.updates.GetAndClear()

	qs := a.queues.Queues()
	if len(qs) == 0 {
		return
	}

	snapshots := make([]types.QueueSnapshot, 0, len(qs))
	for _, q := range qs {
		snap := q.Stats().Snapshot(q, now, false)
		metrics.WaitingCalls.WithLabelValues(q.Name()).Set(float64(snap.WaitingCount))
		snapshots = append(snapshots, snap)
	}

	alerts.CheckQueueAlerts(snapshots)

	batch := SnapshotBatch{
		Type:          "queue_snapshots",
		Timestamp:     now,
		Queues:        snapshots,
		RecentUpdates: len(recent),
	}

	data, err := json.Marshal(batch)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to marshal snapshot batch")
		return
	}

	a.hub.Broadcast(data)
	a.logger.Debug().
		Int("queues", len(snapshots)).
		Int("recent_updates", len(recent)).
		Int("clients", a.hub.ClientCount()).
		Msg("broadcasted queue snapshots")
}
