package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/homewatt/internal/dashboard"
	"github.com/HerbHall/homewatt/internal/device"
	"github.com/HerbHall/homewatt/internal/homewizard"
	"github.com/HerbHall/homewatt/internal/store"
	"github.com/HerbHall/homewatt/internal/telemetry"
)

type fakeProber struct {
	mu    sync.Mutex
	ident *homewizard.Identity
	err   error
}

func (f *fakeProber) Identify(_ context.Context, _ string) (*homewizard.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.ident, nil
}

// fakeRegistrar upserts directly, standing in for the discovery sweeper.
type fakeRegistrar struct {
	devices *device.Store
}

func (f *fakeRegistrar) Register(ctx context.Context, address string, ident *homewizard.Identity) (bool, error) {
	now := time.Now().UTC()
	return f.devices.Upsert(ctx, &device.Device{
		Serial:       ident.Serial,
		Name:         ident.ProductName,
		Address:      address,
		ProductType:  ident.ProductType,
		ProductName:  ident.ProductName,
		Firmware:     ident.FirmwareVersion,
		Enabled:      ident.ProductType.Supported(),
		DiscoveredAt: now,
		LastSeen:     now,
	})
}

type apiFixture struct {
	api      *API
	devices  *device.Store
	readings *telemetry.Store
	prober   *fakeProber
	mux      *http.ServeMux
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	if err := device.Migrate(ctx, s); err != nil {
		t.Fatalf("device migrate: %v", err)
	}
	if err := telemetry.Migrate(ctx, s); err != nil {
		t.Fatalf("telemetry migrate: %v", err)
	}

	devices := device.NewStore(s.DB())
	readings := telemetry.NewStore(s.DB())
	agg := dashboard.NewAggregator(dashboard.DefaultConfig(), devices, readings, nil, testLogger())
	prober := &fakeProber{}

	api := NewAPI(devices, readings, agg, prober, &fakeRegistrar{devices: devices}, testLogger())
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	return &apiFixture{api: api, devices: devices, readings: readings, prober: prober, mux: mux}
}

func (f *apiFixture) seedDevice(t *testing.T, serial string) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	_, err := f.devices.Upsert(context.Background(), &device.Device{
		Serial:       serial,
		Name:         "P1 Meter",
		Address:      "192.168.1.50",
		ProductType:  device.ProductP1Meter,
		ProductName:  "P1 Meter",
		Firmware:     "5.18",
		Enabled:      true,
		DiscoveredAt: now,
		LastSeen:     now,
	})
	if err != nil {
		t.Fatalf("seed device: %v", err)
	}
}

func (f *apiFixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func TestListDevices_Empty(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do("GET", "/api/v1/devices", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var devices []device.Device
	if err := json.Unmarshal(w.Body.Bytes(), &devices); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("got %d devices, want 0 (and a JSON array, not null)", len(devices))
	}
}

func TestGetDevice_NotFound(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do("GET", "/api/v1/devices/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content-type = %q, want problem+json", ct)
	}
}

func TestAddDevice_Created(t *testing.T) {
	f := newAPIFixture(t)
	f.prober.ident = &homewizard.Identity{
		ProductName:     "P1 Meter",
		ProductType:     device.ProductP1Meter,
		Serial:          "3c39e7aabbcc",
		FirmwareVersion: "5.18",
	}

	w := f.do("POST", "/api/v1/devices", `{"address":"192.168.1.60"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var d device.Device
	if err := json.Unmarshal(w.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Serial != "3c39e7aabbcc" {
		t.Errorf("Serial = %q, want 3c39e7aabbcc", d.Serial)
	}
	if !d.Enabled {
		t.Error("supported product should be enabled on registration")
	}
}

func TestAddDevice_CustomName(t *testing.T) {
	f := newAPIFixture(t)
	f.prober.ident = &homewizard.Identity{
		ProductName: "Energy Socket",
		ProductType: device.ProductEnergySocket,
		Serial:      "5c2faabbccdd",
	}

	w := f.do("POST", "/api/v1/devices", `{"address":"192.168.1.61","name":"Dryer"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var d device.Device
	if err := json.Unmarshal(w.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Name != "Dryer" {
		t.Errorf("Name = %q, want Dryer", d.Name)
	}
}

func TestAddDevice_UnsupportedProduct(t *testing.T) {
	f := newAPIFixture(t)
	f.prober.ident = &homewizard.Identity{
		ProductName: "Water Meter",
		ProductType: device.ProductWaterMeter,
		Serial:      "aabbccddeeff",
	}

	w := f.do("POST", "/api/v1/devices", `{"address":"192.168.1.62"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAddDevice_Conflict(t *testing.T) {
	f := newAPIFixture(t)
	f.seedDevice(t, "3c39e7aabbcc")
	f.prober.ident = &homewizard.Identity{
		ProductName: "P1 Meter",
		ProductType: device.ProductP1Meter,
		Serial:      "3c39e7aabbcc",
	}

	w := f.do("POST", "/api/v1/devices", `{"address":"192.168.1.60"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestAddDevice_Unreachable(t *testing.T) {
	f := newAPIFixture(t)
	f.prober.err = homewizard.ErrUnreachable

	w := f.do("POST", "/api/v1/devices", `{"address":"192.168.1.200"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
}

func TestAddDevice_MissingAddress(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do("POST", "/api/v1/devices", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestUpdateDevice_RenameAndDisable(t *testing.T) {
	f := newAPIFixture(t)
	f.seedDevice(t, "aaa111")

	w := f.do("PATCH", "/api/v1/devices/aaa111", `{"name":"Meter Cupboard","enabled":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var d device.Device
	if err := json.Unmarshal(w.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Name != "Meter Cupboard" {
		t.Errorf("Name = %q, want Meter Cupboard", d.Name)
	}
	if d.Enabled {
		t.Error("Enabled = true, want false")
	}
}

func TestUpdateDevice_EmptyBody(t *testing.T) {
	f := newAPIFixture(t)
	f.seedDevice(t, "aaa111")

	w := f.do("PATCH", "/api/v1/devices/aaa111", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestDeleteDevice(t *testing.T) {
	f := newAPIFixture(t)
	f.seedDevice(t, "aaa111")

	w := f.do("DELETE", "/api/v1/devices/aaa111", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}

	w = f.do("GET", "/api/v1/devices/aaa111", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status after delete = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestDeviceReadings(t *testing.T) {
	f := newAPIFixture(t)
	f.seedDevice(t, "aaa111")

	power := 412.5
	err := f.readings.Insert(context.Background(), &telemetry.Reading{
		DeviceSerial: "aaa111",
		PowerW:       power,
		TakenAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("insert reading: %v", err)
	}

	w := f.do("GET", "/api/v1/devices/aaa111/readings", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var readings []telemetry.Reading
	if err := json.Unmarshal(w.Body.Bytes(), &readings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("got %d readings, want 1", len(readings))
	}
	if readings[0].PowerW != power {
		t.Errorf("PowerW = %v, want %v", readings[0].PowerW, power)
	}
}

func TestDeviceReadings_BadMinutes(t *testing.T) {
	f := newAPIFixture(t)
	f.seedDevice(t, "aaa111")

	for _, q := range []string{"minutes=0", "minutes=-5", "minutes=soon"} {
		w := f.do("GET", "/api/v1/devices/aaa111/readings?"+q, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", q, w.Code, http.StatusBadRequest)
		}
	}
}

func TestDashboard(t *testing.T) {
	f := newAPIFixture(t)
	f.seedDevice(t, "aaa111")

	w := f.do("GET", "/api/v1/dashboard", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var snap dashboard.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Devices) != 1 {
		t.Errorf("got %d dashboard cards, want 1", len(snap.Devices))
	}
}
