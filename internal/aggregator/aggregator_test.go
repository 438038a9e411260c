package aggregator

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dialdesk/acd/internal/cache"
	"github.com/dialdesk/acd/internal/device"
	"github.com/dialdesk/acd/internal/queue"
	"github.com/dialdesk/acd/internal/types"
	"github.com/dialdesk/acd/internal/websocket"
)

func TestNewClampsInterval(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	a := New(nil, nil, nil, -1, logger)
	if a.interval != time.Second {
		t.Errorf("interval = %v, want 1s default", a.interval)
	}
}

func TestBroadcastAssemblesBatch(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	devices := device.NewRegistry(logger)
	queues := queue.NewRegistry(devices, logger)
	updates := cache.NewUpdateCache()
	hub := websocket.NewHub(logger)
	go hub.Run()

	q := queues.Load(queue.Config{Name: "support", Strategy: "ringall",
		Members: []types.MemberConfig{{Interface: "SIP/1001"}}})
	e := queue.NewEntry(q, queue.JoinRequest{CallID: "caller-1", MaxPenalty: -1}, time.Now().Add(-6*time.Minute))
	if err := q.Stats().Insert(e, 0, 0); err != nil {
		t.Fatal(err)
	}
	updates.Add(types.DeviceStateUpdate{Device: "SIP/1001", State: "in_use"})

	a := New(queues, updates, hub, time.Second, logger)

	// Drive one cycle directly instead of waiting on the ticker.
	a.broadcast(time.Now())

	if updates.Size() != 0 {
		t.Error("broadcast should drain the update cache")
	}
}

func TestBroadcastSkipsWhenNoQueues(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	devices := device.NewRegistry(logger)
	queues := queue.NewRegistry(devices, logger)
	hub := websocket.NewHub(logger)

	a := New(queues, cache.NewUpdateCache(), hub, time.Second, logger)
	a.broadcast(time.Now())
	// Nothing to assert beyond not panicking with an idle hub.
}
