package statebus

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dialdesk/acd/internal/device"
	"github.com/dialdesk/acd/internal/queue"
	"github.com/dialdesk/acd/internal/types"
)

type captureBroadcaster struct {
	mu   sync.Mutex
	sent [][]byte
}

func (c *captureBroadcaster) Broadcast(message []byte) {
	c.mu.Lock()
	c.sent = append(c.sent, message)
	c.mu.Unlock()
}

func (c *captureBroadcaster) messages(t *testing.T) []types.MemberStatusNotice {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.MemberStatusNotice, len(c.sent))
	for i, raw := range c.sent {
		if err := json.Unmarshal(raw, &out[i]); err != nil {
			t.Fatalf("bad notice json: %v", err)
		}
	}
	return out
}

func newTestBus(t *testing.T) (*Bus, *queue.Registry, *device.Registry, *captureBroadcaster) {
	t.Helper()
	devices := device.NewRegistry(zerolog.Nop())
	queues := queue.NewRegistry(devices, zerolog.Nop())
	out := &captureBroadcaster{}
	return New(devices, queues, out, zerolog.Nop()), queues, devices, out
}

func TestApplyFansOutToObservingMembers(t *testing.T) {
	bus, queues, _, out := newTestBus(t)

	queues.Load(queue.Config{Name: "sales", Strategy: "ringall",
		Members: []types.MemberConfig{{Interface: "SIP/1001", Name: "alice"}}})
	queues.Load(queue.Config{Name: "support", Strategy: "ringall",
		Members: []types.MemberConfig{
			{Interface: "Local/1001@agents", StateInterface: "SIP/1001", Name: "alice"},
			{Interface: "SIP/1002", Name: "bob"},
		}})

	bus.apply(types.DeviceStateUpdate{Device: "SIP/1001", State: "in_use"})

	notices := out.messages(t)
	if len(notices) != 2 {
		t.Fatalf("got %d notices, want one per observing member", len(notices))
	}
	seen := map[string]bool{}
	for _, n := range notices {
		seen[n.Queue] = true
		if n.Status != types.DeviceInUse {
			t.Errorf("queue %s notice status = %v", n.Queue, n.Status)
		}
	}
	if !seen["sales"] || !seen["support"] {
		t.Errorf("notices should span both queues, got %v", seen)
	}
}

func TestApplyIgnoresNoopUpdates(t *testing.T) {
	bus, queues, _, out := newTestBus(t)
	queues.Load(queue.Config{Name: "sales", Strategy: "ringall",
		Members: []types.MemberConfig{{Interface: "SIP/1001"}}})

	bus.apply(types.DeviceStateUpdate{Device: "SIP/1001", State: "in_use"})
	bus.apply(types.DeviceStateUpdate{Device: "SIP/1001", State: "in_use"})

	if n := len(out.messages(t)); n != 1 {
		t.Fatalf("repeated state should publish once, got %d notices", n)
	}
}

func TestApplyUnknownDeviceIsSilent(t *testing.T) {
	bus, _, _, out := newTestBus(t)
	bus.apply(types.DeviceStateUpdate{Device: "SIP/none", State: "in_use"})
	if len(out.messages(t)) != 0 {
		t.Fatal("update for an untracked device should publish nothing")
	}
}

func TestSubmitDropsWhenSaturated(t *testing.T) {
	bus, _, _, _ := newTestBus(t)

	// No consumer running; overfill the channel. Submit must never block.
	for i := 0; i < busBuffer+10; i++ {
		bus.Submit(types.DeviceStateUpdate{Device: "SIP/1001", State: "in_use"})
	}
}

func TestNilBroadcaster(t *testing.T) {
	devices := device.NewRegistry(zerolog.Nop())
	queues := queue.NewRegistry(devices, zerolog.Nop())
	queues.Load(queue.Config{Name: "sales", Strategy: "ringall",
		Members: []types.MemberConfig{{Interface: "SIP/1001"}}})

	bus := New(devices, queues, nil, zerolog.Nop())
	bus.apply(types.DeviceStateUpdate{Device: "SIP/1001", State: "busy"})
}
