// Package monitor polls enabled HomeWizard devices for energy readings
// and tracks device liveness against their last-seen timestamps.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/homewatt/internal/device"
	"github.com/HerbHall/homewatt/internal/event"
	"github.com/HerbHall/homewatt/internal/homewizard"
	"github.com/HerbHall/homewatt/internal/telemetry"
)

// MeasureSource fetches an energy snapshot from a device.
// *homewizard.Client satisfies this.
type MeasureSource interface {
	Measure(ctx context.Context, address string, product device.ProductType) (*homewizard.Measurement, error)
}

// Coordinator polls all enabled devices on a fixed interval using a
// bounded worker pool and stores the readings.
type Coordinator struct {
	cfg      Config
	devices  *device.Store
	readings *telemetry.Store
	client   MeasureSource
	bus      *event.Bus
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoordinator creates a polling coordinator.
func NewCoordinator(cfg Config, devices *device.Store, readings *telemetry.Store, client MeasureSource, bus *event.Bus, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		devices:  devices,
		readings: readings,
		client:   client,
		bus:      bus,
		logger:   logger,
	}
}

// Start begins the polling loop. Returns immediately; use Stop to halt
// and wait for in-flight polls.
func (c *Coordinator) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.cfg.PollInterval)
		defer ticker.Stop()

		// Poll immediately on start, then on each tick.
		c.tick()

		for {
			select {
			case <-c.ctx.Done():
				return
			case <-ticker.C:
				c.tick()
			}
		}
	}()
}

// Stop signals the coordinator to stop and waits for completion.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// tick polls every enabled device through the worker pool. Devices whose
// stored kind turns out to be unsupported are not filtered here: polling
// them costs nothing (Measure rejects the kind before any request) and it
// is what gets them disabled.
func (c *Coordinator) tick() {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.PollInterval)
	defer cancel()

	devices, err := c.devices.ListEnabled(ctx)
	if err != nil {
		c.logger.Warn("coordinator: failed to load devices", zap.Error(err))
		return
	}

	sem := make(chan struct{}, c.cfg.MaxWorkers)
	var wg sync.WaitGroup

dispatch:
	for i := range devices {
		select {
		case <-c.ctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(d device.Device) {
			defer wg.Done()
			defer func() { <-sem }()
			c.Poll(ctx, &d)
		}(devices[i])
	}

	wg.Wait()
}

// Poll fetches one reading from a device and stores it. Unreachable
// devices are routine (the liveness tracker picks them up via the stale
// last-seen timestamp); malformed responses drop the reading; an
// unsupported product disables the device.
func (c *Coordinator) Poll(ctx context.Context, d *device.Device) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	m, err := c.client.Measure(reqCtx, d.Address, d.ProductType)
	pollDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		c.handlePollError(ctx, d, err)
		return
	}

	now := time.Now().UTC()
	reading := measurementToReading(d.Serial, m, now)

	if err := c.readings.Insert(ctx, reading); err != nil {
		c.logger.Error("failed to store reading",
			zap.String("serial", d.Serial), zap.Error(err))
		deviceErrors.WithLabelValues("store").Inc()
		return
	}
	if err := c.devices.TouchLastSeen(ctx, d.Serial, now); err != nil {
		c.logger.Error("failed to update last seen",
			zap.String("serial", d.Serial), zap.Error(err))
	}

	readingsCollected.Inc()
	c.publish(ctx, TopicReadingStored, reading)
}

func (c *Coordinator) handlePollError(ctx context.Context, d *device.Device, err error) {
	var unsupported *homewizard.UnsupportedProductError
	switch {
	case errors.Is(err, homewizard.ErrUnreachable):
		// Expected for devices that are off or out of range. The last-seen
		// timestamp stays put so the liveness tracker notices.
		c.logger.Debug("device unreachable",
			zap.String("serial", d.Serial),
			zap.String("ip", d.Address),
		)
		deviceErrors.WithLabelValues("unreachable").Inc()

	case errors.As(err, &unsupported):
		c.logger.Warn("disabling device with unsupported product type",
			zap.String("serial", d.Serial),
			zap.String("product", unsupported.ProductType.String()),
		)
		deviceErrors.WithLabelValues("unsupported").Inc()
		if err := c.devices.SetEnabled(ctx, d.Serial, false); err != nil {
			c.logger.Error("failed to disable device",
				zap.String("serial", d.Serial), zap.Error(err))
		}

	default:
		// Malformed response or another decode problem: drop the reading.
		c.logger.Error("device poll failed",
			zap.String("serial", d.Serial),
			zap.String("ip", d.Address),
			zap.Error(err),
		)
		deviceErrors.WithLabelValues("malformed").Inc()
	}
}

func (c *Coordinator) publish(ctx context.Context, topic string, payload any) {
	if c.bus == nil {
		return
	}
	c.bus.PublishAsync(ctx, event.Event{
		Topic:     topic,
		Source:    "monitor",
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

// measurementToReading projects an API measurement onto a stored reading.
func measurementToReading(serial string, m *homewizard.Measurement, takenAt time.Time) *telemetry.Reading {
	r := &telemetry.Reading{
		DeviceSerial:    serial,
		EnergyImportT1:  m.ImportT1KWh.Float(),
		EnergyImportT2:  m.ImportT2KWh.Float(),
		EnergyExportT1:  m.ExportT1KWh.Float(),
		EnergyExportT2:  m.ExportT2KWh.Float(),
		GasM3:           m.GasM3.Float(),
		WifiStrengthPct: m.WifiStrengthPct.Int(),
		TakenAt:         takenAt,
	}
	if p := m.ActivePowerW.Float(); p != nil {
		r.PowerW = *p
	}
	return r
}
