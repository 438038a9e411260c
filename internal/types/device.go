package types

// DeviceState is the raw reachability state of a physical interface as
// reported by the device/state notification bus.
type DeviceState int

const (
	DeviceUnknown DeviceState = iota
	DeviceNotInUse
	DeviceInUse
	DeviceBusy
	DeviceInvalid
	DeviceUnavailable
	DeviceRinging
	DeviceRingInUse
	DeviceOnHold
)

var deviceStateNames = map[DeviceState]string{
	DeviceUnknown:     "unknown",
	DeviceNotInUse:    "not_in_use",
	DeviceInUse:       "in_use",
	DeviceBusy:        "busy",
	DeviceInvalid:     "invalid",
	DeviceUnavailable: "unavailable",
	DeviceRinging:     "ringing",
	DeviceRingInUse:   "ring_in_use",
	DeviceOnHold:      "on_hold",
}

func (s DeviceState) String() string {
	if name, ok := deviceStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseDeviceState maps a wire name back to a DeviceState. Unrecognized
// names come back as DeviceUnknown.
func ParseDeviceState(name string) DeviceState {
	for state, n := range deviceStateNames {
		if n == name {
			return state
		}
	}
	return DeviceUnknown
}

// InUseStates are the raw states that mean the device is occupied by at
// least one call. Whether an occupied device is still callable depends on
// the member's ring-in-use flag.
func (s DeviceState) InUse() bool {
	switch s {
	case DeviceInUse, DeviceRinging, DeviceRingInUse, DeviceOnHold:
		return true
	}
	return false
}
