// Package statebus is the single consumer of device-state updates. Every
// update, wherever it came from (websocket ingress, API, tests), funnels
// through one channel and one goroutine, so registry writes and the member
// notices they trigger are strictly ordered.
package statebus

import (
	"context"
	"encoding/json"

	"github.com/dialdesk/acd/internal/device"
	"github.com/dialdesk/acd/internal/metrics"
	"github.com/dialdesk/acd/internal/queue"
	"github.com/dialdesk/acd/internal/types"
	"github.com/rs/zerolog"
)

const busBuffer = 1024

// Broadcaster pushes serialized notices at connected observers. The
// websocket hub satisfies this.
type Broadcaster interface {
	Broadcast(message []byte)
}

// Bus applies device-state updates and fans out the resulting member
// status notices.
type Bus struct {
	updates chan types.DeviceStateUpdate

	devices *device.Registry
	queues  *queue.Registry
	out     Broadcaster
	logger  zerolog.Logger
}

// New creates a bus. out may be nil when no observers are wired.
func New(devices *device.Registry, queues *queue.Registry, out Broadcaster, logger zerolog.Logger) *Bus {
	return &Bus{
		updates: make(chan types.DeviceStateUpdate, busBuffer),
		devices: devices,
		queues:  queues,
		out:     out,
		logger:  logger,
	}
}

// Submit queues one update for the consumer. Non-blocking: when the bus is
// saturated the update is dropped and counted, because a stale device
// state corrects itself on the next update for that device.
func (b *Bus) Submit(u types.DeviceStateUpdate) {
	select {
	case b.updates <- u:
	default:
		b.logger.Warn().Str("device", u.Device).Msg("state bus full, update dropped")
	}
}

// Run consumes updates until ctx is cancelled. Callers run it in exactly
// one goroutine.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-b.updates:
			b.apply(u)
		}
	}
}

func (b *Bus) apply(u types.DeviceStateUpdate) {
	state := types.ParseDeviceState(u.State)
	changed := b.devices.UpdateState(u.Device, state)
	metrics.DeviceStateUpdates.Inc()
	if !changed {
		return
	}

	b.logger.Debug().Str("device", u.Device).Str("state", state.String()).Msg("device state applied")

	for _, qm := range b.queues.MembersByStateInterface(u.Device) {
		paused, _ := qm.Member.Paused()
		notice := types.MemberStatusNotice{
			Queue:     qm.Queue.Name(),
			Interface: qm.Member.Interface(),
			Name:      qm.Member.Name(),
			Status:    qm.Member.Status(),
			Paused:    paused,
		}
		b.publish(notice)
	}
}

func (b *Bus) publish(notice types.MemberStatusNotice) {
	if b.out == nil {
		return
	}
	data, err := json.Marshal(notice)
	if err != nil {
		b.logger.Error().Err(err).Msg("marshal member status notice")
		return
	}
	b.out.Broadcast(data)
}
