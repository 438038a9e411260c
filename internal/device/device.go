package device

import (
	"sync"
	"time"

	"github.com/dialdesk/acd/internal/types"
)

// Status is the shared state of one physical interface. Members whose
// state interface resolves to the same device all hold a reference to the
// same Status, so a call placed through any of them is visible to all.
//
// reserved counts dial attempts that have not yet resolved; active counts
// answered, bridged calls in progress. Both are adjusted only under the
// Status's own lock and never go negative.
type Status struct {
	mu       sync.Mutex
	device   string
	state    types.DeviceState
	reserved int
	active   int
	changed  time.Time

	refs int // guarded by the registry lock, not st.mu
}

// Device returns the interface this status tracks.
func (s *Status) Device() string {
	return s.device
}

// State returns the raw state as last reported by the notification bus.
func (s *Status) State() types.DeviceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Counters returns the current reserved and active counts.
func (s *Status) Counters() (reserved, active int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reserved, s.active
}

// Reserve marks the start of a dial attempt against this device.
func (s *Status) Reserve() {
	s.mu.Lock()
	s.reserved++
	s.mu.Unlock()
}

// Unreserve marks a dial attempt as resolved (answered or failed).
func (s *Status) Unreserve() {
	s.mu.Lock()
	if s.reserved > 0 {
		s.reserved--
	}
	s.mu.Unlock()
}

// AddActive marks a bridged call in progress on this device.
func (s *Status) AddActive() {
	s.mu.Lock()
	s.active++
	s.mu.Unlock()
}

// RemoveActive marks the end of a bridged call.
func (s *Status) RemoveActive() {
	s.mu.Lock()
	if s.active > 0 {
		s.active--
	}
	s.mu.Unlock()
}

// Effective computes the availability of this device as seen by a member.
// The raw bus state is adjusted by in-flight reservations and active
// bridges: an occupied device is only reported busy when the member does
// not accept overlapping calls, and a device the bus still reports idle is
// promoted to ringing/in-use when the engine knows better.
func (s *Status) Effective(ringInUse bool) types.DeviceState {
	s.mu.Lock()
	defer s.mu.Unlock()

	engaged := s.reserved > 0 || s.active > 0

	if s.state.InUse() {
		if engaged && !ringInUse {
			return types.DeviceBusy
		}
		return s.state
	}

	if s.state == types.DeviceNotInUse || s.state == types.DeviceUnknown {
		// Bus has not caught up with a call the engine started itself.
		if s.reserved > 0 {
			return types.DeviceRinging
		}
		if s.active > 0 {
			return types.DeviceInUse
		}
	}

	return s.state
}

// setState applies a bus update; returns true if the raw state changed.
func (s *Status) setState(state types.DeviceState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == state {
		return false
	}
	s.state = state
	s.changed = time.Now()
	return true
}
