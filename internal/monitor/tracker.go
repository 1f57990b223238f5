package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/homewatt/internal/device"
	"github.com/HerbHall/homewatt/internal/event"
)

// deviceState is the in-memory liveness state for one device.
type deviceState struct {
	offline      bool
	offlineSince time.Time
	lastReminder time.Time
}

// Tracker watches device last-seen timestamps and publishes offline,
// back-online, and still-offline reminder alerts. State lives in memory:
// after a restart the first check re-seeds it from the database, emitting
// a fresh offline alert for devices that are already stale.
type Tracker struct {
	cfg     Config
	devices *device.Store
	bus     *event.Bus
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	state map[string]*deviceState // serial -> liveness state
}

// NewTracker creates a liveness tracker.
func NewTracker(cfg Config, devices *device.Store, bus *event.Bus, logger *zap.Logger) *Tracker {
	return &Tracker{
		cfg:     cfg,
		devices: devices,
		bus:     bus,
		logger:  logger,
		now:     time.Now,
		state:   make(map[string]*deviceState),
	}
}

// Run checks liveness immediately and then on every tick until the
// context is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	if err := t.Check(ctx); err != nil && ctx.Err() == nil {
		t.logger.Error("liveness check failed", zap.Error(err))
	}

	ticker := time.NewTicker(t.cfg.LivenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("liveness tracker stopped")
			return
		case <-ticker.C:
			if err := t.Check(ctx); err != nil && ctx.Err() == nil {
				t.logger.Error("liveness check failed", zap.Error(err))
			}
		}
	}
}

// Check evaluates every enabled device against the offline threshold and
// publishes transition alerts. Devices no longer enabled are dropped from
// the in-memory state.
func (t *Tracker) Check(ctx context.Context) error {
	devices, err := t.devices.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list enabled devices: %w", err)
	}

	now := t.now().UTC()

	t.mu.Lock()
	defer t.mu.Unlock()

	enabled := make(map[string]bool, len(devices))
	var online, offline int
	for i := range devices {
		d := &devices[i]
		enabled[d.Serial] = true
		t.evaluate(ctx, d, now)
		if t.state[d.Serial].offline {
			offline++
		} else {
			online++
		}
	}

	// Prune state for devices that were disabled or deleted.
	for serial := range t.state {
		if !enabled[serial] {
			delete(t.state, serial)
		}
	}

	devicesOnline.Set(float64(online))
	devicesOffline.Set(float64(offline))
	return nil
}

// Offline reports whether a device is currently considered offline, and
// since when. The second result is the zero time for online devices.
func (t *Tracker) Offline(serial string) (bool, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.state[serial]
	if !ok || !st.offline {
		return false, time.Time{}
	}
	return true, st.offlineSince
}

// evaluate applies the liveness transition table for one device.
// Must be called with t.mu held.
func (t *Tracker) evaluate(ctx context.Context, d *device.Device, now time.Time) {
	stale := now.Sub(d.LastSeen) > t.cfg.OfflineThreshold

	st, tracked := t.state[d.Serial]
	if !tracked {
		// First check for this device: seed current state. A device that is
		// already stale gets one offline alert so a restart cannot silently
		// swallow an outage.
		st = &deviceState{}
		t.state[d.Serial] = st
		if stale {
			st.offline = true
			st.offlineSince = d.LastSeen
			st.lastReminder = now
			t.alertOffline(ctx, d, now)
		}
		return
	}

	switch {
	case !st.offline && stale:
		// Online -> offline. The outage started when the device was last
		// seen, not when we noticed.
		st.offline = true
		st.offlineSince = d.LastSeen
		st.lastReminder = now
		t.alertOffline(ctx, d, now)

	case st.offline && !stale:
		// Offline -> online.
		downtime := now.Sub(st.offlineSince)
		t.alertOnline(ctx, d, st.offlineSince, downtime)
		st.offline = false
		st.offlineSince = time.Time{}
		st.lastReminder = time.Time{}

	case st.offline && stale:
		// Still offline: remind at most once per reminder interval.
		if now.Sub(st.lastReminder) >= t.cfg.ReminderInterval {
			st.lastReminder = now
			t.alertReminder(ctx, d, st.offlineSince, now)
		}
	}
}

func (t *Tracker) alertOffline(ctx context.Context, d *device.Device, now time.Time) {
	since := d.LastSeen
	t.logger.Warn("device offline",
		zap.String("serial", d.Serial),
		zap.String("name", d.Name),
		zap.Time("last_seen", d.LastSeen),
	)
	t.publish(ctx, TopicDeviceOffline, &Alert{
		ID:           uuid.NewString(),
		Serial:       d.Serial,
		Name:         d.Name,
		Address:      d.Address,
		Message:      fmt.Sprintf("%s has gone offline (last seen %s)", d.Name, since.Format(time.RFC3339)),
		OfflineSince: &since,
	})
}

func (t *Tracker) alertOnline(ctx context.Context, d *device.Device, since time.Time, downtime time.Duration) {
	t.logger.Info("device back online",
		zap.String("serial", d.Serial),
		zap.String("name", d.Name),
		zap.Duration("downtime", downtime),
	)
	t.publish(ctx, TopicDeviceOnline, &Alert{
		ID:           uuid.NewString(),
		Serial:       d.Serial,
		Name:         d.Name,
		Address:      d.Address,
		Message:      fmt.Sprintf("%s is back online after %s", d.Name, downtime.Round(time.Second)),
		OfflineSince: &since,
		Downtime:     &downtime,
	})
}

func (t *Tracker) alertReminder(ctx context.Context, d *device.Device, since, now time.Time) {
	downtime := now.Sub(since)
	t.logger.Warn("device still offline",
		zap.String("serial", d.Serial),
		zap.String("name", d.Name),
		zap.Duration("downtime", downtime),
	)
	t.publish(ctx, TopicDeviceReminder, &Alert{
		ID:           uuid.NewString(),
		Serial:       d.Serial,
		Name:         d.Name,
		Address:      d.Address,
		Message:      fmt.Sprintf("%s is still offline (down %s)", d.Name, downtime.Round(time.Minute)),
		OfflineSince: &since,
		Downtime:     &downtime,
	})
}

func (t *Tracker) publish(ctx context.Context, topic string, alert *Alert) {
	if t.bus == nil {
		return
	}
	t.bus.PublishAsync(ctx, event.Event{
		Topic:     topic,
		Source:    "monitor",
		Timestamp: t.now(),
		Payload:   alert,
	})
}
