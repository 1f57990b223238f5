// Package mqtt publishes HomeWatt events to an MQTT broker so home
// automation systems can react to device discoveries, liveness alerts,
// and fresh readings.
package mqtt

import (
	"context"
	"encoding/json"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/HerbHall/homewatt/internal/dashboard"
	"github.com/HerbHall/homewatt/internal/discovery"
	"github.com/HerbHall/homewatt/internal/event"
	"github.com/HerbHall/homewatt/internal/monitor"
)

// Bridge republishes bus events to an MQTT broker. With no broker URL
// configured it stays a no-op so installations without MQTT lose nothing.
type Bridge struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.RWMutex
	client pahomqtt.Client
}

// NewBridge creates an MQTT bridge.
func NewBridge(cfg Config, logger *zap.Logger) *Bridge {
	return &Bridge{cfg: cfg, logger: logger}
}

// Start connects to the broker. A connection failure is logged, not fatal:
// the client keeps reconnecting in the background.
func (b *Bridge) Start(_ context.Context) error {
	if b.cfg.BrokerURL == "" {
		b.logger.Info("mqtt bridge started (no-op: no broker configured)")
		return nil
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(b.cfg.BrokerURL).
		SetClientID(b.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(b.cfg.Timeout)

	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password) //nolint:gosec // G101: config field
	}

	b.mu.Lock()
	b.client = pahomqtt.NewClient(opts)
	client := b.client
	b.mu.Unlock()

	token := client.Connect()
	switch {
	case !token.WaitTimeout(b.cfg.Timeout):
		b.logger.Warn("mqtt connection timed out; will reconnect in background")
	case token.Error() != nil:
		b.logger.Warn("mqtt connection failed; will reconnect in background",
			zap.Error(token.Error()),
		)
	default:
		b.logger.Info("mqtt connected to broker",
			zap.String("broker_url", b.cfg.BrokerURL),
		)
	}
	return nil
}

// Stop disconnects from the broker.
func (b *Bridge) Stop(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(250)
		b.logger.Info("mqtt disconnected")
	}
	return nil
}

// Register subscribes the bridge to the bus topics it republishes.
// Returns a function that removes the subscriptions.
func (b *Bridge) Register(bus *event.Bus) (unsubscribe func()) {
	var unsubs []func()
	for _, topic := range []string{
		discovery.TopicDeviceDiscovered,
		discovery.TopicDeviceUpdated,
		monitor.TopicDeviceOffline,
		monitor.TopicDeviceOnline,
		monitor.TopicDeviceReminder,
		monitor.TopicReadingStored,
		dashboard.TopicSnapshot,
	} {
		unsubs = append(unsubs, bus.Subscribe(topic, b.publishEvent))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// mqttTopicFromEvent maps an event bus topic to an MQTT topic path.
func (b *Bridge) mqttTopicFromEvent(eventTopic string) string {
	switch eventTopic {
	case discovery.TopicDeviceDiscovered:
		return b.cfg.TopicPrefix + "/device/discovered"
	case discovery.TopicDeviceUpdated:
		return b.cfg.TopicPrefix + "/device/updated"
	case monitor.TopicDeviceOffline:
		return b.cfg.TopicPrefix + "/alert/offline"
	case monitor.TopicDeviceOnline:
		return b.cfg.TopicPrefix + "/alert/online"
	case monitor.TopicDeviceReminder:
		return b.cfg.TopicPrefix + "/alert/reminder"
	case monitor.TopicReadingStored:
		return b.cfg.TopicPrefix + "/reading"
	case dashboard.TopicSnapshot:
		return b.cfg.TopicPrefix + "/dashboard"
	default:
		return b.cfg.TopicPrefix + "/unknown"
	}
}

func (b *Bridge) publishEvent(_ context.Context, e event.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.client == nil || !b.client.IsConnected() {
		return
	}

	payload, err := json.Marshal(e.Payload)
	if err != nil {
		b.logger.Warn("failed to marshal MQTT payload",
			zap.String("topic", e.Topic),
			zap.Error(err),
		)
		return
	}

	mqttTopic := b.mqttTopicFromEvent(e.Topic)
	token := b.client.Publish(mqttTopic, b.cfg.QoS, b.cfg.Retain, payload)
	if !token.WaitTimeout(b.cfg.Timeout) {
		b.logger.Warn("mqtt publish timed out",
			zap.String("mqtt_topic", mqttTopic),
		)
		return
	}
	if token.Error() != nil {
		b.logger.Warn("mqtt publish failed",
			zap.String("mqtt_topic", mqttTopic),
			zap.Error(token.Error()),
		)
		return
	}

	b.logger.Debug("mqtt event published",
		zap.String("mqtt_topic", mqttTopic),
		zap.String("event_topic", e.Topic),
	)
}

// Connected reports whether the bridge has an active broker connection.
func (b *Bridge) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.client != nil && b.client.IsConnected()
}
