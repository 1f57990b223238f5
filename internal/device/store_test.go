package device

import (
	"context"
	"testing"
	"time"

	"github.com/HerbHall/homewatt/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := Migrate(context.Background(), s); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(s.DB())
}

func testDevice(serial string) *Device {
	now := time.Now().UTC().Truncate(time.Second)
	return &Device{
		Serial:       serial,
		Name:         "Living Room",
		Address:      "192.168.1.50",
		ProductType:  ProductP1Meter,
		ProductName:  "P1 Meter",
		Firmware:     "5.18",
		Enabled:      true,
		DiscoveredAt: now,
		LastSeen:     now,
	}
}

func TestUpsert_InsertThenUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := testDevice("3c39e7aabbcc")
	created, err := s.Upsert(ctx, d)
	if err != nil {
		t.Fatalf("Upsert insert: %v", err)
	}
	if !created {
		t.Error("created = false on first upsert, want true")
	}

	// Same serial, new address: row is refreshed, identity preserved.
	d2 := testDevice("3c39e7aabbcc")
	d2.Name = "should not overwrite"
	d2.Address = "192.168.1.77"
	d2.Enabled = false
	d2.LastSeen = d.LastSeen.Add(time.Minute)
	created, err = s.Upsert(ctx, d2)
	if err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	if created {
		t.Error("created = true on second upsert, want false")
	}

	got, err := s.Get(ctx, "3c39e7aabbcc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for existing device")
	}
	if got.Address != "192.168.1.77" {
		t.Errorf("Address = %q, want refreshed 192.168.1.77", got.Address)
	}
	if got.Name != "Living Room" {
		t.Errorf("Name = %q, want original Living Room", got.Name)
	}
	if !got.Enabled {
		t.Error("Enabled = false, updates must not touch the operator-controlled flag")
	}
	if !got.DiscoveredAt.Equal(d.DiscoveredAt) {
		t.Errorf("DiscoveredAt = %v, want original %v", got.DiscoveredAt, d.DiscoveredAt)
	}
	if !got.LastSeen.Equal(d2.LastSeen) {
		t.Errorf("LastSeen = %v, want advanced %v", got.LastSeen, d2.LastSeen)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("Get = %+v, want nil for unknown serial", got)
	}
}

func TestTouchLastSeen_Monotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := testDevice("aaa111")
	if _, err := s.Upsert(ctx, d); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	later := d.LastSeen.Add(time.Minute)
	if err := s.TouchLastSeen(ctx, "aaa111", later); err != nil {
		t.Fatalf("TouchLastSeen: %v", err)
	}

	// An out-of-order completion with an older timestamp must not regress.
	if err := s.TouchLastSeen(ctx, "aaa111", d.LastSeen); err != nil {
		t.Fatalf("TouchLastSeen stale: %v", err)
	}

	got, err := s.Get(ctx, "aaa111")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.LastSeen.Equal(later) {
		t.Errorf("LastSeen = %v, want %v (stale touch ignored)", got.LastSeen, later)
	}
}

func TestListEnabled(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testDevice("aaa")
	b := testDevice("bbb")
	b.DiscoveredAt = a.DiscoveredAt.Add(time.Second)
	if _, err := s.Upsert(ctx, a); err != nil {
		t.Fatalf("Upsert a: %v", err)
	}
	if _, err := s.Upsert(ctx, b); err != nil {
		t.Fatalf("Upsert b: %v", err)
	}
	if err := s.SetEnabled(ctx, "bbb", false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}

	enabled, err := s.ListEnabled(ctx)
	if err != nil {
		t.Fatalf("ListEnabled: %v", err)
	}
	if len(enabled) != 1 || enabled[0].Serial != "aaa" {
		t.Errorf("ListEnabled = %+v, want only aaa", enabled)
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List returned %d devices, want 2", len(all))
	}
}

func TestSetEnabled_NotFound(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetEnabled(context.Background(), "missing", false); err == nil {
		t.Error("SetEnabled on unknown serial returned nil error")
	}
}

func TestProductType(t *testing.T) {
	supported := []ProductType{ProductP1Meter, ProductEnergySocket, ProductKWhMeter1, ProductKWhMeter3}
	for _, p := range supported {
		if !p.Supported() {
			t.Errorf("%s.Supported() = false, want true", p)
		}
		if !p.Known() {
			t.Errorf("%s.Known() = false, want true", p)
		}
	}

	unsupported := []ProductType{ProductWaterMeter, ProductDisplay, ProductBattery, ProductSDM230, ProductSDM630}
	for _, p := range unsupported {
		if p.Supported() {
			t.Errorf("%s.Supported() = true, want false", p)
		}
		if !p.Known() {
			t.Errorf("%s.Known() = false, want true", p)
		}
	}

	if ProductType("HWE-XYZ").Known() {
		t.Error("unknown product reported as known")
	}
	if ProductType("HWE-XYZ").DisplayName() != "Unknown Device" {
		t.Errorf("DisplayName = %q, want Unknown Device", ProductType("HWE-XYZ").DisplayName())
	}
	if ProductP1Meter.DisplayName() != "P1 Meter" {
		t.Errorf("DisplayName = %q, want P1 Meter", ProductP1Meter.DisplayName())
	}
}
