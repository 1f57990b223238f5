package notify

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/HerbHall/homewatt/internal/event"
	"github.com/HerbHall/homewatt/internal/monitor"
)

// Dispatcher handles liveness alert events from the bus and delivers them
// to every configured notification channel. A failing channel never blocks
// the others.
type Dispatcher struct {
	notifiers []Notifier
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher over the given channels.
func NewDispatcher(notifiers []Notifier, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		logger:    logger,
	}
}

// Register subscribes the dispatcher to the monitor alert topics. Returns
// a function that removes the subscriptions.
func (d *Dispatcher) Register(bus *event.Bus) (unsubscribe func()) {
	var unsubs []func()
	for _, topic := range []string{
		monitor.TopicDeviceOffline,
		monitor.TopicDeviceOnline,
		monitor.TopicDeviceReminder,
	} {
		unsubs = append(unsubs, bus.Subscribe(topic, d.HandleAlertEvent))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// HandleAlertEvent delivers one alert event to all channels.
func (d *Dispatcher) HandleAlertEvent(ctx context.Context, e event.Event) {
	alert, ok := e.Payload.(*monitor.Alert)
	if !ok {
		d.logger.Warn("unexpected payload type for alert event",
			zap.String("topic", e.Topic),
		)
		return
	}

	eventType := eventTypeFromTopic(e.Topic)

	for _, n := range d.notifiers {
		if err := n.Notify(ctx, alert, eventType); err != nil {
			d.logger.Warn("notification delivery failed",
				zap.String("channel_type", n.Type()),
				zap.String("alert_id", alert.ID),
				zap.Error(err),
			)
			continue
		}
		d.logger.Debug("notification delivered",
			zap.String("channel_type", n.Type()),
			zap.String("alert_id", alert.ID),
			zap.String("event_type", eventType),
		)
	}
}

// eventTypeFromTopic maps a monitor topic to the webhook event type.
func eventTypeFromTopic(topic string) string {
	switch {
	case strings.HasSuffix(topic, ".online"):
		return "online"
	case strings.HasSuffix(topic, ".reminder"):
		return "reminder"
	default:
		return "offline"
	}
}
