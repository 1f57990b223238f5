package ws

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/homewatt/internal/dashboard"
	"github.com/HerbHall/homewatt/internal/event"
)

func newHubClient() *Client {
	return &Client{
		remote: "test",
		send:   make(chan Message, 4),
		logger: zap.NewNop(),
	}
}

func TestHub_RegisterBroadcastUnregister(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c := newHubClient()

	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d, want 1", hub.ClientCount())
	}

	hub.Broadcast(Message{Type: MessageDashboard, Timestamp: time.Now()})
	select {
	case msg := <-c.send:
		if msg.Type != MessageDashboard {
			t.Errorf("message type = %q, want %q", msg.Type, MessageDashboard)
		}
	default:
		t.Fatal("no message delivered to client")
	}

	hub.Unregister(c)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d after unregister, want 0", hub.ClientCount())
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel not closed on unregister")
	}
}

func TestHub_FullBufferDropsMessage(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c := &Client{remote: "slow", send: make(chan Message), logger: zap.NewNop()}
	hub.Register(c)

	// Unbuffered channel with no reader: broadcast must not block.
	done := make(chan struct{})
	go func() {
		hub.Broadcast(Message{Type: MessageDeviceOffline})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on slow client")
	}
}

func TestHandler_ForwardsSnapshot(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	h := NewHandler(bus, zap.NewNop())

	c := newHubClient()
	h.Hub().Register(c)

	snap := &dashboard.Snapshot{GeneratedAt: time.Now(), TotalPowerW: 250}
	bus.Publish(context.Background(), event.Event{
		Topic:     dashboard.TopicSnapshot,
		Timestamp: snap.GeneratedAt,
		Payload:   snap,
	})

	select {
	case msg := <-c.send:
		if msg.Type != MessageDashboard {
			t.Errorf("message type = %q, want %q", msg.Type, MessageDashboard)
		}
		data, ok := msg.Data.(DashboardData)
		if !ok || data.Snapshot.TotalPowerW != 250 {
			t.Errorf("unexpected data %+v", msg.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("snapshot not forwarded to client")
	}
}
