package member

import (
	"sync"
	"time"

	"github.com/dialdesk/acd/internal/device"
	"github.com/dialdesk/acd/internal/types"
)

// Member is one dial target belonging to a queue. Each member owns a
// reference to the shared device Status for its state interface; the
// reference is taken when the member is linked into a queue and dropped
// when it is removed.
type Member struct {
	mu sync.Mutex

	iface      string
	stateIface string
	name       string
	uniqueID   string
	source     types.MemberSource

	penalty      int
	paused       bool
	pausedReason string
	ringInUse    bool
	wrapup       int // seconds, 0 means use the queue's wrapup time

	callsTaken int
	lastCall   time.Time
	inCall     bool
	dead       bool

	status *device.Status
}

// New builds a Member from a directory config entry and takes a device
// reference from the registry. The state interface defaults to the dial
// interface when not set.
func New(cfg types.MemberConfig, queueRingInUse bool, devices *device.Registry) *Member {
	stateIface := cfg.StateInterface
	if stateIface == "" {
		stateIface = cfg.Interface
	}
	name := cfg.Name
	if name == "" {
		name = cfg.Interface
	}
	ringInUse := queueRingInUse
	if cfg.RingInUse != nil {
		ringInUse = *cfg.RingInUse
	}
	source := cfg.Source
	if source == "" {
		source = types.SourceStatic
	}

	return &Member{
		iface:        cfg.Interface,
		stateIface:   stateIface,
		name:         name,
		uniqueID:     cfg.UniqueID,
		source:       source,
		penalty:      cfg.Penalty,
		paused:       cfg.Paused,
		pausedReason: cfg.PausedReason,
		ringInUse:    ringInUse,
		status:       devices.Ref(stateIface),
	}
}

// Release drops the member's device reference. Called exactly once, when
// the member is unlinked from its queue.
func (m *Member) Release(devices *device.Registry) {
	m.mu.Lock()
	st := m.status
	m.status = nil
	m.dead = true
	m.mu.Unlock()
	devices.Unref(st)
}

func (m *Member) Interface() string          { return m.iface }
func (m *Member) StateInterface() string     { return m.stateIface }
func (m *Member) Name() string               { return m.name }
func (m *Member) UniqueID() string           { return m.uniqueID }
func (m *Member) Source() types.MemberSource { return m.source }

// Device returns the shared device status, or nil after Release.
func (m *Member) Device() *device.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Dead reports whether the member has been unlinked from its queue.
func (m *Member) Dead() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dead
}

func (m *Member) Penalty() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.penalty
}

func (m *Member) SetPenalty(p int) {
	m.mu.Lock()
	m.penalty = p
	m.mu.Unlock()
}

func (m *Member) Paused() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused, m.pausedReason
}

func (m *Member) SetPaused(paused bool, reason string) {
	m.mu.Lock()
	m.paused = paused
	m.pausedReason = reason
	m.mu.Unlock()
}

func (m *Member) RingInUse() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ringInUse
}

// Status returns the member's effective availability: the raw device state
// adjusted by in-flight reservations and the member's ring-in-use flag.
func (m *Member) Status() types.DeviceState {
	m.mu.Lock()
	st := m.status
	ringInUse := m.ringInUse
	m.mu.Unlock()
	if st == nil {
		return types.DeviceInvalid
	}
	return st.Effective(ringInUse)
}

func (m *Member) CallsTaken() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callsTaken
}

func (m *Member) LastCall() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCall
}

func (m *Member) InCall() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inCall
}

// StartCall marks the member as bridged on an answered call.
func (m *Member) StartCall() {
	m.mu.Lock()
	m.inCall = true
	m.mu.Unlock()
}

// FinishCall records a completed call: bumps the call counter and stamps
// lastcall, which starts the wrapup window.
func (m *Member) FinishCall(at time.Time) {
	m.mu.Lock()
	m.inCall = false
	m.callsTaken++
	m.lastCall = at
	m.mu.Unlock()
}

// RecordSharedCall updates lastcall and the call counter without touching
// the in-call flag. Used to fan a completed call out to the same interface
// in other queues when shared lastcall is enabled.
func (m *Member) RecordSharedCall(at time.Time) {
	m.mu.Lock()
	m.callsTaken++
	if at.After(m.lastCall) {
		m.lastCall = at
	}
	m.mu.Unlock()
}

// WrapupTime returns the member-level wrapup override, or the queue's
// value when the member has none.
func (m *Member) WrapupTime(queueWrapup int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wrapup > 0 {
		return m.wrapup
	}
	return queueWrapup
}

// SetWrapupTime sets a member-level wrapup override in seconds.
func (m *Member) SetWrapupTime(secs int) {
	m.mu.Lock()
	m.wrapup = secs
	m.mu.Unlock()
}

// InWrapup reports whether the member is still inside the forced
// unavailability window following its last call.
func (m *Member) InWrapup(queueWrapup int, now time.Time) bool {
	m.mu.Lock()
	last := m.lastCall
	wrapup := m.wrapup
	m.mu.Unlock()
	if wrapup == 0 {
		wrapup = queueWrapup
	}
	if wrapup <= 0 || last.IsZero() {
		return false
	}
	return now.Sub(last) < time.Duration(wrapup)*time.Second
}

// Snapshot returns the status-surface view of this member.
func (m *Member) Snapshot() types.MemberSnapshot {
	status := m.Status()

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := types.MemberSnapshot{
		Interface:  m.iface,
		Name:       m.name,
		Penalty:    m.penalty,
		Paused:     m.paused,
		Status:     status,
		StatusName: status.String(),
		CallsTaken: m.callsTaken,
		InCall:     m.inCall,
		Source:     m.source,
	}
	if !m.lastCall.IsZero() {
		lc := m.lastCall
		snap.LastCall = &lc
	}
	return snap
}
