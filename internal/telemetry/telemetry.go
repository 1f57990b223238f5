// Package telemetry stores the energy readings collected from HomeWizard
// devices and serves time-windowed queries for the dashboard and API.
package telemetry

import "time"

// Reading is a single energy measurement taken from a device. Counter
// fields are nil when the device does not report them (sockets have no
// gas counter, P1 meters behind a single-tariff contract report no T2).
type Reading struct {
	ID              int64     `json:"id"`
	DeviceSerial    string    `json:"device_serial"`
	PowerW          float64   `json:"power_w"`
	EnergyImportT1  *float64  `json:"energy_import_t1_kwh,omitempty"`
	EnergyImportT2  *float64  `json:"energy_import_t2_kwh,omitempty"`
	EnergyExportT1  *float64  `json:"energy_export_t1_kwh,omitempty"`
	EnergyExportT2  *float64  `json:"energy_export_t2_kwh,omitempty"`
	GasM3           *float64  `json:"gas_m3,omitempty"`
	WifiStrengthPct *int      `json:"wifi_strength_pct,omitempty"`
	TakenAt         time.Time `json:"taken_at"`
}

// TotalImport returns the sum of both import tariff counters, or nil when
// the device reports neither.
func (r *Reading) TotalImport() *float64 {
	if r.EnergyImportT1 == nil && r.EnergyImportT2 == nil {
		return nil
	}
	var sum float64
	if r.EnergyImportT1 != nil {
		sum += *r.EnergyImportT1
	}
	if r.EnergyImportT2 != nil {
		sum += *r.EnergyImportT2
	}
	return &sum
}

// PowerPoint is a (timestamp, watts) pair for dashboard charts.
type PowerPoint struct {
	TakenAt time.Time `json:"taken_at"`
	PowerW  float64   `json:"power_w"`
}
