package discovery

import "github.com/HerbHall/homewatt/internal/device"

// Event topics published by the discovery module.
const (
	TopicDeviceDiscovered = "discovery.device.discovered"
	TopicDeviceUpdated    = "discovery.device.updated"
	TopicSweepCompleted   = "discovery.sweep.completed"
)

// DeviceEvent is the payload for device discovered/updated events.
type DeviceEvent struct {
	Device *device.Device `json:"device"`
}

// SweepResult is the payload for sweep completed events.
type SweepResult struct {
	Subnet     string `json:"subnet"`
	HostsAlive int    `json:"hosts_alive"`
	Discovered int    `json:"discovered"`
	Updated    int    `json:"updated"`
}
