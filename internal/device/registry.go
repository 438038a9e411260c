package device

import (
	"sync"

	"github.com/dialdesk/acd/internal/types"
	"github.com/rs/zerolog"
)

// Registry deduplicates Status objects per physical interface. A Status is
// created on first reference and unlinked only when the last referencing
// member drops it.
//
// Lock order is registry then status, never the reverse; registry methods
// release the registry lock before touching a found Status.
type Registry struct {
	mu      sync.Mutex
	devices map[string]*Status
	logger  zerolog.Logger
}

// NewRegistry creates an empty device registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		devices: make(map[string]*Status),
		logger:  logger,
	}
}

// Ref returns the Status for the given interface, creating it with state
// unknown on first reference, and bumps its reference count.
func (r *Registry) Ref(device string) *Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.devices[device]
	if !ok {
		st = &Status{device: device, state: types.DeviceUnknown}
		r.devices[device] = st
		r.logger.Debug().Str("device", device).Msg("device status created")
	}
	st.refs++
	return st
}

// Unref drops one reference to the Status. When the last reference is
// dropped the Status is unlinked from the registry.
func (r *Registry) Unref(st *Status) {
	if st == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	st.refs--
	if st.refs <= 0 {
		delete(r.devices, st.device)
		r.logger.Debug().Str("device", st.device).Msg("device status destroyed")
	}
}

// UpdateState applies a raw state update from the notification bus.
// Returns true when the state actually changed. Unknown devices are
// ignored; a Status only exists while some member references it.
func (r *Registry) UpdateState(device string, state types.DeviceState) bool {
	r.mu.Lock()
	st, ok := r.devices[device]
	r.mu.Unlock()
	if !ok {
		return false
	}

	changed := st.setState(state)
	if changed {
		r.logger.Debug().
			Str("device", device).
			Str("state", state.String()).
			Msg("device state updated")
	}
	return changed
}

// Lookup returns the Status for an interface without taking a reference,
// or nil when no member currently references it.
func (r *Registry) Lookup(device string) *Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.devices[device]
}

// Count returns the number of live Status objects.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}
