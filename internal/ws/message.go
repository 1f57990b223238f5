package ws

import (
	"time"

	"github.com/HerbHall/homewatt/internal/dashboard"
	"github.com/HerbHall/homewatt/internal/device"
	"github.com/HerbHall/homewatt/internal/monitor"
)

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	MessageDashboard      MessageType = "dashboard.snapshot"
	MessageDeviceFound    MessageType = "device.found"
	MessageDeviceOffline  MessageType = "device.offline"
	MessageDeviceOnline   MessageType = "device.online"
	MessageDeviceReminder MessageType = "device.reminder"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// DashboardData is the payload for dashboard.snapshot messages.
type DashboardData struct {
	Snapshot *dashboard.Snapshot `json:"snapshot"`
}

// DeviceFoundData is the payload for device.found messages.
type DeviceFoundData struct {
	Device *device.Device `json:"device"`
}

// AlertData is the payload for device liveness messages.
type AlertData struct {
	Alert *monitor.Alert `json:"alert"`
}
