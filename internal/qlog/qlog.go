// Package qlog is the queue-log and eventing sink. It is one-way: the
// engine informs it and never consults it for decisions. Each record is
// logged structurally and persisted asynchronously through the store.
package qlog

import (
	"time"

	"github.com/dialdesk/acd/internal/storage"
	"github.com/dialdesk/acd/internal/types"
	"github.com/rs/zerolog"
)

// Sink writes queue-log records and fire-and-forget notifications.
type Sink struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewSink creates a queue-log sink. store may be a NoopStore.
func NewSink(store storage.Store, logger zerolog.Logger) *Sink {
	return &Sink{store: store, logger: logger}
}

// Log emits one queue-log record. The store write happens off the caller's
// goroutine so a slow store never blocks a caller flow.
func (s *Sink) Log(queue, callID, member string, event types.QueueEvent, info ...string) {
	now := time.Now()
	record := types.QueueLogRecord{
		DateKey:   now.Format("2006-01-02"),
		Timestamp: now.Format(time.RFC3339Nano),
		Queue:     queue,
		CallID:    callID,
		Member:    member,
		Event:     event,
		Info:      info,
	}

	s.logger.Info().
		Str("queue", queue).
		Str("call_id", callID).
		Str("member", member).
		Str("event", string(event)).
		Strs("info", info).
		Msg("queue_log")

	go func() {
		if err := s.store.SaveQueueLog(record); err != nil {
			s.logger.Error().Err(err).
				Str("queue", queue).
				Str("event", string(event)).
				Msg("failed to persist queue_log record")
		}
	}()
}

// Notify emits a fire-and-forget event with arbitrary fields.
func (s *Sink) Notify(event string, fields map[string]any) {
	ev := s.logger.Info()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Str("event", event).Msg("notify")
}
