package monitor

import "time"

// Event topics published by the monitor module.
const (
	TopicDeviceOffline  = "monitor.device.offline"
	TopicDeviceOnline   = "monitor.device.online"
	TopicDeviceReminder = "monitor.device.reminder"
	TopicReadingStored  = "monitor.reading.stored"
)

// Alert is the payload for device offline/online/reminder events.
type Alert struct {
	ID           string         `json:"id"`
	Serial       string         `json:"serial"`
	Name         string         `json:"name"`
	Address      string         `json:"address"`
	Message      string         `json:"message"`
	OfflineSince *time.Time     `json:"offline_since,omitempty"`
	Downtime     *time.Duration `json:"downtime,omitempty"`
}
