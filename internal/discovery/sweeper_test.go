package discovery

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/homewatt/internal/device"
	"github.com/HerbHall/homewatt/internal/event"
	"github.com/HerbHall/homewatt/internal/homewizard"
	"github.com/HerbHall/homewatt/internal/store"
)

type fakePinger struct {
	mu    sync.Mutex
	alive map[string]bool
}

func (p *fakePinger) Ping(_ context.Context, ip string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive[ip]
}

type fakeProber struct {
	mu     sync.Mutex
	idents map[string]*homewizard.Identity
}

func (p *fakeProber) Identify(_ context.Context, address string) (*homewizard.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ident, ok := p.idents[address]; ok {
		return ident, nil
	}
	return nil, homewizard.ErrUnreachable
}

func newTestDeviceStore(t *testing.T) *device.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := device.Migrate(context.Background(), s); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return device.NewStore(s.DB())
}

func TestSweep(t *testing.T) {
	devices := newTestDeviceStore(t)
	bus := event.NewBus(zap.NewNop())

	var mu sync.Mutex
	var discovered []string
	bus.Subscribe(TopicDeviceDiscovered, func(_ context.Context, e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		discovered = append(discovered, e.Payload.(*DeviceEvent).Device.Serial)
	})

	pinger := &fakePinger{alive: map[string]bool{
		"192.168.77.10": true, // HomeWizard P1 meter
		"192.168.77.20": true, // alive, but not a HomeWizard device
	}}
	prober := &fakeProber{idents: map[string]*homewizard.Identity{
		"192.168.77.10": {
			ProductName: "P1 Meter",
			ProductType: device.ProductP1Meter,
			Serial:      "p1-abc",
		},
	}}

	cfg := DefaultConfig()
	cfg.Subnet = "192.168.77.0/24"
	s := NewSweeper(cfg, devices, bus, prober, pinger, zap.NewNop())

	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	d, err := devices.Get(context.Background(), "p1-abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d == nil {
		t.Fatal("discovered device not in registry")
	}
	if d.Address != "192.168.77.10" {
		t.Errorf("Address = %q, want 192.168.77.10", d.Address)
	}
	if !d.Enabled {
		t.Error("supported device not enabled")
	}

	// Discovered event is async.
	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(discovered)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no discovered event published")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSweep_RediscoveryUpdatesAddress(t *testing.T) {
	devices := newTestDeviceStore(t)

	pinger := &fakePinger{alive: map[string]bool{"192.168.77.30": true}}
	prober := &fakeProber{idents: map[string]*homewizard.Identity{
		"192.168.77.30": {
			ProductName: "Energy Socket",
			ProductType: device.ProductEnergySocket,
			Serial:      "skt-1",
		},
	}}

	cfg := DefaultConfig()
	cfg.Subnet = "192.168.77.0/24"
	s := NewSweeper(cfg, devices, nil, prober, pinger, zap.NewNop())

	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("first Sweep: %v", err)
	}

	// Device moved to a new DHCP lease.
	pinger.mu.Lock()
	pinger.alive = map[string]bool{"192.168.77.99": true}
	pinger.mu.Unlock()
	prober.mu.Lock()
	prober.idents = map[string]*homewizard.Identity{
		"192.168.77.99": {
			ProductName: "Energy Socket",
			ProductType: device.ProductEnergySocket,
			Serial:      "skt-1",
		},
	}
	prober.mu.Unlock()

	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("second Sweep: %v", err)
	}

	d, err := devices.Get(context.Background(), "skt-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Address != "192.168.77.99" {
		t.Errorf("Address = %q, want 192.168.77.99 after rediscovery", d.Address)
	}

	all, err := devices.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("registry has %d devices, want 1 (same serial)", len(all))
	}
}

func TestSweep_SkipsUnsupportedProduct(t *testing.T) {
	devices := newTestDeviceStore(t)

	pinger := &fakePinger{alive: map[string]bool{"192.168.77.40": true}}
	prober := &fakeProber{idents: map[string]*homewizard.Identity{
		"192.168.77.40": {
			ProductName: "Water Meter",
			ProductType: device.ProductWaterMeter,
			Serial:      "wtr-9",
		},
	}}

	cfg := DefaultConfig()
	cfg.Subnet = "192.168.77.0/24"
	s := NewSweeper(cfg, devices, nil, prober, pinger, zap.NewNop())

	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	all, err := devices.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("registry has %d devices, want 0 (unsupported kinds are not persisted)", len(all))
	}
}

func TestRegister_UnsupportedProductDisabled(t *testing.T) {
	devices := newTestDeviceStore(t)
	s := NewSweeper(DefaultConfig(), devices, nil, nil, nil, zap.NewNop())

	created, err := s.Register(context.Background(), "192.168.1.5", &homewizard.Identity{
		ProductName: "Water Meter",
		ProductType: device.ProductWaterMeter,
		Serial:      "wtr-1",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !created {
		t.Error("created = false for new device")
	}

	d, err := devices.Get(context.Background(), "wtr-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Enabled {
		t.Error("unsupported product registered enabled, want disabled")
	}
}

func TestExpandSubnet(t *testing.T) {
	_, ipNet, err := net.ParseCIDR("192.168.1.0/24")
	if err != nil {
		t.Fatalf("ParseCIDR: %v", err)
	}

	hosts := expandSubnet(ipNet)
	if len(hosts) != 254 {
		t.Fatalf("expandSubnet /24 = %d hosts, want 254", len(hosts))
	}
	if hosts[0] != "192.168.1.1" {
		t.Errorf("first host = %q, want 192.168.1.1", hosts[0])
	}
	if hosts[253] != "192.168.1.254" {
		t.Errorf("last host = %q, want 192.168.1.254", hosts[253])
	}

	// Oversized subnets are rejected.
	_, huge, _ := net.ParseCIDR("10.0.0.0/8")
	if got := expandSubnet(huge); got != nil {
		t.Errorf("expandSubnet /8 = %d hosts, want nil", len(got))
	}
}

func TestSweep_InvalidSubnet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Subnet = "not-a-subnet"
	s := NewSweeper(cfg, newTestDeviceStore(t), nil, nil, nil, zap.NewNop())

	if err := s.Sweep(context.Background()); err == nil {
		t.Error("Sweep with invalid subnet returned nil error")
	}
}
