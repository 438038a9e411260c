package queue

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dialdesk/acd/internal/device"
	"github.com/dialdesk/acd/internal/types"
)

func TestCallable(t *testing.T) {
	devices := device.NewRegistry(zerolog.Nop())
	reg := NewRegistry(devices, zerolog.Nop())
	q := reg.Load(Config{Name: "support", Strategy: "ringall", WrapupSecs: 30,
		Members: []types.MemberConfig{{Interface: "SIP/1001"}}})

	now := time.Now()
	m, _ := q.Stats().FindMember("SIP/1001")

	if !Callable(m, q, now) {
		t.Fatal("fresh idle member should be callable")
	}

	m.SetPaused(true, "break")
	if Callable(m, q, now) {
		t.Error("paused member is not callable")
	}
	m.SetPaused(false, "")

	m.FinishCall(now.Add(-5 * time.Second))
	if Callable(m, q, now) {
		t.Error("member in wrapup is not callable")
	}
}

func TestCallableOccupiedDevice(t *testing.T) {
	devices := device.NewRegistry(zerolog.Nop())
	reg := NewRegistry(devices, zerolog.Nop())
	q := reg.Load(Config{Name: "support", Strategy: "ringall",
		Members: []types.MemberConfig{{Interface: "SIP/1001"}}})
	ringQ := reg.Load(Config{Name: "overflow", Strategy: "ringall", RingInUse: true,
		Members: []types.MemberConfig{{Interface: "SIP/1002", StateInterface: "SIP/1001"}}})

	devices.UpdateState("SIP/1001", types.DeviceInUse)
	now := time.Now()

	m, _ := q.Stats().FindMember("SIP/1001")
	if Callable(m, q, now) {
		t.Error("occupied device blocks a member without ring-in-use")
	}

	rm, _ := ringQ.Stats().FindMember("SIP/1002")
	if !Callable(rm, ringQ, now) {
		t.Error("ring-in-use member should accept an overlapping call")
	}
}

func TestMemberAvailableConditionMasks(t *testing.T) {
	devices := device.NewRegistry(zerolog.Nop())
	reg := NewRegistry(devices, zerolog.Nop())
	q := reg.Load(Config{Name: "support", Strategy: "ringall",
		Members: []types.MemberConfig{{Interface: "SIP/1001", Paused: true}}})

	now := time.Now()

	// Disabled mask always passes, even with every member paused.
	if !MemberAvailable(q, types.EmptyNever, nil, now) {
		t.Error("never-empty policy must always admit")
	}
	// Strict counts a paused member as absent.
	if MemberAvailable(q, types.EmptyStrict, nil, now) {
		t.Error("strict policy should see an empty queue")
	}
	// Loose tolerates pause; only penalty and invalid matter.
	if !MemberAvailable(q, types.EmptyLoose, nil, now) {
		t.Error("loose policy tolerates a paused member")
	}
}

func TestMemberAvailablePenaltyBand(t *testing.T) {
	devices := device.NewRegistry(zerolog.Nop())
	reg := NewRegistry(devices, zerolog.Nop())
	q := reg.Load(Config{Name: "support", Strategy: "ringall",
		Members: []types.MemberConfig{{Interface: "SIP/1001", Penalty: 5}}})
	devices.UpdateState("SIP/1001", types.DeviceNotInUse)

	now := time.Now()
	tight := func(p int) bool { return p <= 2 }
	wide := func(p int) bool { return true }

	if MemberAvailable(q, types.EmptyStrict, tight, now) {
		t.Error("member outside the caller's band should not count")
	}
	if !MemberAvailable(q, types.EmptyStrict, wide, now) {
		t.Error("member inside the band counts")
	}
}

func TestNumAvailableShortCircuits(t *testing.T) {
	devices := device.NewRegistry(zerolog.Nop())
	reg := NewRegistry(devices, zerolog.Nop())
	members := []types.MemberConfig{
		{Interface: "SIP/1001"},
		{Interface: "SIP/1002"},
		{Interface: "SIP/1003"},
	}

	now := time.Now()

	// Ring-all serves one caller at a time no matter the roster size.
	ringall := reg.Load(Config{Name: "ra", Strategy: "ringall", Autofill: true, Members: members})
	if n := NumAvailable(ringall, now); n != 1 {
		t.Errorf("ringall NumAvailable = %d, want 1", n)
	}

	// Without autofill only the head caller is served.
	serial := reg.Load(Config{Name: "serial", Strategy: "leastrecent", Members: members})
	if n := NumAvailable(serial, now); n != 1 {
		t.Errorf("no-autofill NumAvailable = %d, want 1", n)
	}

	// Autofill counts every free member.
	parallel := reg.Load(Config{Name: "par", Strategy: "leastrecent", Autofill: true, Members: members})
	if n := NumAvailable(parallel, now); n != 3 {
		t.Errorf("autofill NumAvailable = %d, want 3", n)
	}

	m, _ := parallel.Stats().FindMember("SIP/1002")
	m.SetPaused(true, "")
	if n := NumAvailable(parallel, now); n != 2 {
		t.Errorf("NumAvailable with one paused = %d, want 2", n)
	}
}
