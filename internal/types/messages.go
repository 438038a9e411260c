package types

import "time"

// DeviceStateUpdate is the wire message published on the device/state
// notification bus: one interface changed raw state.
type DeviceStateUpdate struct {
	Type      string    `json:"type"` // always "device_state"
	Device    string    `json:"device"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// MemberStatusNotice is emitted after a device-state update has been
// applied, once per member observing the device.
type MemberStatusNotice struct {
	Queue     string      `json:"queue"`
	Interface string      `json:"interface"`
	Name      string      `json:"membername"`
	Status    DeviceState `json:"status"`
	Paused    bool        `json:"paused"`
}

// CallerID carries the identity inherited by dialed legs.
type CallerID struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
	ANI    string `json:"ani,omitempty"`
}
