// Package homewizard implements the client side of the HomeWizard Energy
// local HTTP API: device identification via GET /api and measurement
// retrieval via GET /api/v1/data.
package homewizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/HerbHall/homewatt/internal/device"
)

// Identity is the device self-description returned by GET /api.
type Identity struct {
	ProductName     string             `json:"product_name"`
	ProductType     device.ProductType `json:"product_type"`
	Serial          string             `json:"serial"`
	FirmwareVersion string             `json:"firmware_version"`
	APIVersion      string             `json:"api_version"`
}

// Measurement is the energy snapshot returned by GET /api/v1/data. P1
// meters, sockets, and kWh meters share field names; fields a product does
// not report stay nil.
type Measurement struct {
	ActivePowerW    *FlexFloat `json:"active_power_w"`
	ImportT1KWh     *FlexFloat `json:"total_power_import_t1_kwh"`
	ImportT2KWh     *FlexFloat `json:"total_power_import_t2_kwh"`
	ExportT1KWh     *FlexFloat `json:"total_power_export_t1_kwh"`
	ExportT2KWh     *FlexFloat `json:"total_power_export_t2_kwh"`
	GasM3           *FlexFloat `json:"total_gas_m3"`
	WifiStrengthPct *FlexInt   `json:"wifi_strength"`
}

// Client talks to HomeWizard devices over their local HTTP API.
type Client struct {
	http *http.Client
}

// NewClient creates a Client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Identify fetches the device self-description from the given IP address.
func (c *Client) Identify(ctx context.Context, address string) (*Identity, error) {
	var ident Identity
	if err := c.getJSON(ctx, address, "/api", &ident); err != nil {
		return nil, err
	}
	if ident.Serial == "" {
		return nil, fmt.Errorf("%w: identity missing serial", ErrMalformed)
	}
	return &ident, nil
}

// Measure fetches the current energy snapshot from a device. The product
// type must be one HomeWatt can poll; for other products an
// *UnsupportedProductError is returned without a request being made.
func (c *Client) Measure(ctx context.Context, address string, product device.ProductType) (*Measurement, error) {
	if !product.Supported() {
		return nil, &UnsupportedProductError{ProductType: product}
	}
	var m Measurement
	if err := c.getJSON(ctx, address, "/api/v1/data", &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) getJSON(ctx context.Context, address, path string, out any) error {
	u := url.URL{Scheme: "http", Host: address, Path: path}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: unexpected status %d from %s%s", ErrMalformed, resp.StatusCode, address, path)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return classifyTransportError(err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// classifyTransportError folds timeouts and connection failures into
// ErrUnreachable so callers can route them to liveness tracking instead of
// the error log.
func classifyTransportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
