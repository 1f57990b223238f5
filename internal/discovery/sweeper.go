// Package discovery finds HomeWizard devices on the local network by
// sweeping a /24 with ICMP probes followed by identity requests, and
// records what it finds in the device registry.
package discovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/homewatt/internal/device"
	"github.com/HerbHall/homewatt/internal/event"
	"github.com/HerbHall/homewatt/internal/homewizard"
)

// IdentityProber fetches a device self-description from an IP address.
// *homewizard.Client satisfies this.
type IdentityProber interface {
	Identify(ctx context.Context, address string) (*homewizard.Identity, error)
}

// Sweeper periodically scans the local subnet for HomeWizard devices.
type Sweeper struct {
	cfg     Config
	devices *device.Store
	bus     *event.Bus
	prober  IdentityProber
	pinger  Pinger
	logger  *zap.Logger
}

// NewSweeper creates a Sweeper.
func NewSweeper(cfg Config, devices *device.Store, bus *event.Bus, prober IdentityProber, pinger Pinger, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		cfg:     cfg,
		devices: devices,
		bus:     bus,
		prober:  prober,
		pinger:  pinger,
		logger:  logger,
	}
}

// Run sweeps immediately and then on every tick until the context is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("initial discovery sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("discovery stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("discovery sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep probes every host in the configured (or inferred) /24. Hosts that
// answer a ping are asked for a HomeWizard identity; responders are
// upserted into the registry. Per-host failures are expected and only
// logged at debug level.
func (s *Sweeper) Sweep(ctx context.Context) error {
	subnet, err := s.subnet()
	if err != nil {
		return err
	}

	hosts := expandSubnet(subnet)
	if len(hosts) == 0 {
		return fmt.Errorf("no hosts in subnet %s", subnet)
	}

	s.logger.Info("starting discovery sweep",
		zap.String("subnet", subnet.String()),
		zap.Int("hosts", len(hosts)),
	)
	start := time.Now()

	concurrency := s.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = len(hosts)
	}
	sem := make(chan struct{}, concurrency)

	type hit struct {
		address string
		ident   *homewizard.Identity
	}
	hits := make(chan hit, len(hosts))

	for _, ip := range hosts {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sem <- struct{}{}:
		}

		go func(ip string) {
			defer func() { <-sem }()

			if !s.pinger.Ping(ctx, ip) {
				return
			}
			ident, err := s.prober.Identify(ctx, ip)
			if err != nil {
				// Most alive hosts are not HomeWizard devices.
				s.logger.Debug("identity probe failed", zap.String("ip", ip), zap.Error(err))
				return
			}
			select {
			case hits <- hit{address: ip, ident: ident}:
			case <-ctx.Done():
			}
		}(ip)
	}

	// Fan-in barrier: refill the semaphore to wait for all workers.
	for i := 0; i < concurrency; i++ {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	close(hits)

	var alive, discovered, updated int
	for h := range hits {
		alive++
		if !h.ident.ProductType.Supported() {
			// Known-but-unpollable products are not worth a registry row.
			s.logger.Info("skipping unsupported device",
				zap.String("ip", h.address),
				zap.String("serial", h.ident.Serial),
				zap.String("product", h.ident.ProductType.String()),
			)
			continue
		}
		created, err := s.Register(ctx, h.address, h.ident)
		if err != nil {
			s.logger.Error("failed to register device",
				zap.String("ip", h.address), zap.Error(err))
			continue
		}
		if created {
			discovered++
		} else {
			updated++
		}
	}

	result := &SweepResult{
		Subnet:     subnet.String(),
		HostsAlive: alive,
		Discovered: discovered,
		Updated:    updated,
	}
	s.publish(ctx, TopicSweepCompleted, result)

	s.logger.Info("discovery sweep completed",
		zap.String("subnet", subnet.String()),
		zap.Int("alive", alive),
		zap.Int("discovered", discovered),
		zap.Int("updated", updated),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Register upserts an identified device. Callers filter out unsupported
// product types first. On updates the stored Enabled flag is left alone;
// if a known device's reported type changed to an unsupported one, the
// polling coordinator disables it on the next tick. Returns true when the
// device was new.
func (s *Sweeper) Register(ctx context.Context, address string, ident *homewizard.Identity) (created bool, err error) {
	now := time.Now().UTC()
	d := &device.Device{
		Serial:       ident.Serial,
		Name:         ident.ProductName,
		Address:      address,
		ProductType:  ident.ProductType,
		ProductName:  ident.ProductName,
		Firmware:     ident.FirmwareVersion,
		Enabled:      ident.ProductType.Supported(),
		DiscoveredAt: now,
		LastSeen:     now,
	}

	created, err = s.devices.Upsert(ctx, d)
	if err != nil {
		return false, err
	}

	stored, err := s.devices.Get(ctx, ident.Serial)
	if err != nil {
		return created, err
	}

	if created {
		s.logger.Info("device discovered",
			zap.String("serial", ident.Serial),
			zap.String("ip", address),
			zap.String("product", ident.ProductType.String()),
			zap.Bool("supported", ident.ProductType.Supported()),
		)
		s.publish(ctx, TopicDeviceDiscovered, &DeviceEvent{Device: stored})
	} else {
		s.publish(ctx, TopicDeviceUpdated, &DeviceEvent{Device: stored})
	}
	return created, nil
}

func (s *Sweeper) subnet() (*net.IPNet, error) {
	if s.cfg.Subnet != "" {
		_, ipNet, err := net.ParseCIDR(s.cfg.Subnet)
		if err != nil {
			return nil, fmt.Errorf("parse configured subnet %q: %w", s.cfg.Subnet, err)
		}
		return ipNet, nil
	}
	return localSubnet()
}

func (s *Sweeper) publish(ctx context.Context, topic string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.PublishAsync(ctx, event.Event{
		Topic:     topic,
		Source:    "discovery",
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
