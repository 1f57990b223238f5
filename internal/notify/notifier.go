// Package notify delivers device liveness alerts to external channels.
package notify

import (
	"context"
	"time"

	"github.com/HerbHall/homewatt/internal/monitor"
)

// Notifier delivers alert notifications through a specific channel type.
type Notifier interface {
	// Notify sends an alert notification. eventType is "offline", "online",
	// or "reminder".
	Notify(ctx context.Context, alert *monitor.Alert, eventType string) error
	// Type returns the notifier type identifier (e.g., "webhook", "log").
	Type() string
}

// WebhookConfig holds configuration for webhook notification delivery.
type WebhookConfig struct {
	URL     string            `mapstructure:"url"`
	Secret  string            `mapstructure:"secret"`
	Timeout time.Duration     `mapstructure:"timeout"`
	Headers map[string]string `mapstructure:"headers"`
}
