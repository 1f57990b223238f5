package ws

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/HerbHall/homewatt/internal/dashboard"
	"github.com/HerbHall/homewatt/internal/discovery"
	"github.com/HerbHall/homewatt/internal/event"
	"github.com/HerbHall/homewatt/internal/monitor"
)

// Handler provides the WebSocket endpoint for live dashboard updates.
type Handler struct {
	hub    *Hub
	bus    *event.Bus
	logger *zap.Logger
}

// NewHandler creates a WebSocket handler and subscribes to bus events.
func NewHandler(bus *event.Bus, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:    NewHub(logger),
		bus:    bus,
		logger: logger,
	}
	h.subscribeToEvents()
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws", h.handleStream)
}

// Hub returns the underlying hub.
func (h *Handler) Hub() *Hub {
	return h.hub
}

// handleStream upgrades the connection to WebSocket and streams events.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The API is LAN-local and unauthenticated; same-origin enforcement
		// would only break reverse-proxy setups.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		remote: r.RemoteAddr,
		send:   make(chan Message, 256),
		logger: h.logger,
	}

	h.hub.Register(client)

	// Run read and write pumps. When either exits, clean up.
	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	// readPump blocks until client disconnects.
	client.readPump(ctx)

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

// subscribeToEvents forwards dashboard, discovery, and liveness events to
// all connected WebSocket clients.
func (h *Handler) subscribeToEvents() {
	if h.bus == nil {
		return
	}

	h.bus.Subscribe(dashboard.TopicSnapshot, func(_ context.Context, e event.Event) {
		snap, ok := e.Payload.(*dashboard.Snapshot)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageDashboard,
			Timestamp: e.Timestamp,
			Data:      DashboardData{Snapshot: snap},
		})
	})

	h.bus.Subscribe(discovery.TopicDeviceDiscovered, func(_ context.Context, e event.Event) {
		devEvent, ok := e.Payload.(*discovery.DeviceEvent)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageDeviceFound,
			Timestamp: e.Timestamp,
			Data:      DeviceFoundData{Device: devEvent.Device},
		})
	})

	alertTopics := map[string]MessageType{
		monitor.TopicDeviceOffline:  MessageDeviceOffline,
		monitor.TopicDeviceOnline:   MessageDeviceOnline,
		monitor.TopicDeviceReminder: MessageDeviceReminder,
	}
	for topic, msgType := range alertTopics {
		msgType := msgType
		h.bus.Subscribe(topic, func(_ context.Context, e event.Event) {
			alert, ok := e.Payload.(*monitor.Alert)
			if !ok {
				return
			}
			h.hub.Broadcast(Message{
				Type:      msgType,
				Timestamp: e.Timestamp,
				Data:      AlertData{Alert: alert},
			})
		})
	}

	h.logger.Info("subscribed to bus events for WebSocket broadcasting")
}
