package homewizard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HerbHall/homewatt/internal/device"
)

func testServer(t *testing.T, path, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestIdentify(t *testing.T) {
	addr := testServer(t, "/api", `{
		"product_name": "P1 Meter",
		"product_type": "HWE-P1",
		"serial": "3c39e7aabbcc",
		"firmware_version": "5.18",
		"api_version": "v1"
	}`)

	c := NewClient(2 * time.Second)
	ident, err := c.Identify(context.Background(), addr)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if ident.Serial != "3c39e7aabbcc" {
		t.Errorf("Serial = %q, want 3c39e7aabbcc", ident.Serial)
	}
	if ident.ProductType != device.ProductP1Meter {
		t.Errorf("ProductType = %q, want HWE-P1", ident.ProductType)
	}
}

func TestIdentify_MissingSerial(t *testing.T) {
	addr := testServer(t, "/api", `{"product_type": "HWE-P1"}`)

	c := NewClient(2 * time.Second)
	_, err := c.Identify(context.Background(), addr)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestIdentify_Unreachable(t *testing.T) {
	// Reserved TEST-NET-1 address, nothing listens there.
	c := NewClient(100 * time.Millisecond)
	_, err := c.Identify(context.Background(), "192.0.2.1")
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("err = %v, want ErrUnreachable", err)
	}
}

func TestMeasure_P1Meter(t *testing.T) {
	addr := testServer(t, "/api/v1/data", `{
		"active_power_w": 412.5,
		"total_power_import_t1_kwh": 1234.567,
		"total_power_import_t2_kwh": 890.123,
		"total_power_export_t1_kwh": 0.0,
		"total_gas_m3": 456.789,
		"wifi_strength": 74
	}`)

	c := NewClient(2 * time.Second)
	m, err := c.Measure(context.Background(), addr, device.ProductP1Meter)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if got := m.ActivePowerW.Float(); got == nil || *got != 412.5 {
		t.Errorf("ActivePowerW = %v, want 412.5", got)
	}
	if got := m.ImportT2KWh.Float(); got == nil || *got != 890.123 {
		t.Errorf("ImportT2KWh = %v, want 890.123", got)
	}
	if m.ExportT2KWh != nil {
		t.Errorf("ExportT2KWh = %v, want nil (absent field)", *m.ExportT2KWh)
	}
	if got := m.WifiStrengthPct.Int(); got == nil || *got != 74 {
		t.Errorf("WifiStrengthPct = %v, want 74", got)
	}
}

func TestMeasure_StringEncodedNumbers(t *testing.T) {
	// Some firmware revisions quote numeric fields.
	addr := testServer(t, "/api/v1/data", `{
		"active_power_w": "87.3",
		"total_power_import_t1_kwh": "42",
		"wifi_strength": "88.6"
	}`)

	c := NewClient(2 * time.Second)
	m, err := c.Measure(context.Background(), addr, device.ProductEnergySocket)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if got := m.ActivePowerW.Float(); got == nil || *got != 87.3 {
		t.Errorf("ActivePowerW = %v, want 87.3", got)
	}
	if got := m.WifiStrengthPct.Int(); got == nil || *got != 89 {
		t.Errorf("WifiStrengthPct = %v, want 89 (rounded)", got)
	}
}

func TestMeasure_UnsupportedProduct(t *testing.T) {
	c := NewClient(2 * time.Second)
	_, err := c.Measure(context.Background(), "192.0.2.1", device.ProductWaterMeter)

	var unsupported *UnsupportedProductError
	if !errors.As(err, &unsupported) {
		t.Fatalf("err = %v, want UnsupportedProductError", err)
	}
	if unsupported.ProductType != device.ProductWaterMeter {
		t.Errorf("ProductType = %q, want HWE-WTR", unsupported.ProductType)
	}
}

func TestMeasure_MalformedBody(t *testing.T) {
	addr := testServer(t, "/api/v1/data", `{"active_power_w": "not a number"}`)

	c := NewClient(2 * time.Second)
	_, err := c.Measure(context.Background(), addr, device.ProductP1Meter)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestMeasure_EmptyStringField(t *testing.T) {
	// An empty-string value must not decode as a 0 W reading.
	addr := testServer(t, "/api/v1/data", `{"active_power_w": ""}`)

	c := NewClient(2 * time.Second)
	_, err := c.Measure(context.Background(), addr, device.ProductP1Meter)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed for empty-string field", err)
	}
}

func TestMeasure_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	addr := strings.TrimPrefix(srv.URL, "http://")

	c := NewClient(2 * time.Second)
	_, err := c.Measure(context.Background(), addr, device.ProductP1Meter)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed for non-200 status", err)
	}
}
