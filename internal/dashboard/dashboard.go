// Package dashboard builds periodic overview snapshots of all devices:
// current power, energy counters, and a short power history per device.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/homewatt/internal/device"
	"github.com/HerbHall/homewatt/internal/event"
	"github.com/HerbHall/homewatt/internal/telemetry"
)

// TopicSnapshot carries a *Snapshot payload on the event bus.
const TopicSnapshot = "dashboard.snapshot"

// DeviceCard is one device's tile on the dashboard.
type DeviceCard struct {
	Serial         string                 `json:"serial"`
	Name           string                 `json:"name"`
	ProductType    device.ProductType     `json:"product_type"`
	ProductName    string                 `json:"product_name"`
	Address        string                 `json:"address"`
	Online         bool                   `json:"online"`
	LastSeen       time.Time              `json:"last_seen"`
	CurrentPowerW  *float64               `json:"current_power_w,omitempty"`
	TotalImportKWh *float64               `json:"total_import_kwh,omitempty"`
	GasM3          *float64               `json:"gas_m3,omitempty"`
	Chart          []telemetry.PowerPoint `json:"chart"`
}

// Snapshot is a full dashboard refresh.
type Snapshot struct {
	ID          string       `json:"id"`
	GeneratedAt time.Time    `json:"generated_at"`
	TotalPowerW float64      `json:"total_power_w"`
	Online      int          `json:"online"`
	Offline     int          `json:"offline"`
	Devices     []DeviceCard `json:"devices"`
}

// Aggregator periodically assembles snapshots and publishes them on the
// bus for the websocket hub and MQTT bridge to fan out.
type Aggregator struct {
	cfg      Config
	devices  *device.Store
	readings *telemetry.Store
	bus      *event.Bus
	logger   *zap.Logger
	now      func() time.Time
}

// NewAggregator creates a dashboard aggregator.
func NewAggregator(cfg Config, devices *device.Store, readings *telemetry.Store, bus *event.Bus, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		cfg:      cfg,
		devices:  devices,
		readings: readings,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
	}
}

// Run publishes a snapshot immediately and then on every tick until the
// context is cancelled.
func (a *Aggregator) Run(ctx context.Context) {
	a.refresh(ctx)

	ticker := time.NewTicker(a.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("dashboard aggregator stopped")
			return
		case <-ticker.C:
			a.refresh(ctx)
		}
	}
}

func (a *Aggregator) refresh(ctx context.Context) {
	snap, err := a.Build(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Error("failed to build dashboard snapshot", zap.Error(err))
		}
		return
	}
	if a.bus != nil {
		a.bus.PublishAsync(ctx, event.Event{
			Topic:     TopicSnapshot,
			Source:    "dashboard",
			Timestamp: snap.GeneratedAt,
			Payload:   snap,
		})
	}
}

// Build assembles a snapshot of all enabled devices.
func (a *Aggregator) Build(ctx context.Context) (*Snapshot, error) {
	devices, err := a.devices.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enabled devices: %w", err)
	}

	now := a.now().UTC()
	snap := &Snapshot{
		ID:          uuid.NewString(),
		GeneratedAt: now,
		Devices:     make([]DeviceCard, 0, len(devices)),
	}

	for i := range devices {
		card, err := a.buildCard(ctx, &devices[i], now)
		if err != nil {
			a.logger.Warn("failed to build device card",
				zap.String("serial", devices[i].Serial), zap.Error(err))
			continue
		}
		if card.Online {
			snap.Online++
			if card.CurrentPowerW != nil {
				snap.TotalPowerW += *card.CurrentPowerW
			}
		} else {
			snap.Offline++
		}
		snap.Devices = append(snap.Devices, *card)
	}

	return snap, nil
}

func (a *Aggregator) buildCard(ctx context.Context, d *device.Device, now time.Time) (*DeviceCard, error) {
	card := &DeviceCard{
		Serial:      d.Serial,
		Name:        d.Name,
		ProductType: d.ProductType,
		ProductName: d.ProductType.DisplayName(),
		Address:     d.Address,
		Online:      now.Sub(d.LastSeen) <= a.cfg.OfflineThreshold,
		LastSeen:    d.LastSeen,
	}

	latest, err := a.readings.Latest(ctx, d.Serial)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		power := latest.PowerW
		card.CurrentPowerW = &power
		card.GasM3 = latest.GasM3

		// The latest reading is a fresher signal than the registry row.
		if latest.TakenAt.After(card.LastSeen) {
			card.LastSeen = latest.TakenAt
		}

		// A zero total means the meter reports no import counters worth
		// showing; leave the field off the card.
		if total := latest.TotalImport(); total != nil && *total != 0 {
			card.TotalImportKWh = total
		}
	}

	chart, err := a.readings.PowerSince(ctx, d.Serial, now.Add(-a.cfg.ChartWindow))
	if err != nil {
		return nil, err
	}
	card.Chart = chart

	return card, nil
}
