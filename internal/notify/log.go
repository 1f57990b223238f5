package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/HerbHall/homewatt/internal/monitor"
)

// Compile-time interface guard.
var _ Notifier = (*LogNotifier)(nil)

// LogNotifier writes alerts to the structured log. It is always enabled so
// an installation without external channels still records every transition.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the alert.
func (l *LogNotifier) Notify(_ context.Context, alert *monitor.Alert, eventType string) error {
	fields := []zap.Field{
		zap.String("alert_id", alert.ID),
		zap.String("serial", alert.Serial),
		zap.String("event_type", eventType),
		zap.String("message", alert.Message),
	}
	if alert.Downtime != nil {
		fields = append(fields, zap.Duration("downtime", *alert.Downtime))
	}

	if eventType == "online" {
		l.logger.Info("device alert", fields...)
	} else {
		l.logger.Warn("device alert", fields...)
	}
	return nil
}

// Type returns the notifier type identifier.
func (l *LogNotifier) Type() string {
	return "log"
}
