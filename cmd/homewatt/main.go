package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/HerbHall/homewatt/internal/config"
	"github.com/HerbHall/homewatt/internal/dashboard"
	"github.com/HerbHall/homewatt/internal/device"
	"github.com/HerbHall/homewatt/internal/discovery"
	"github.com/HerbHall/homewatt/internal/event"
	"github.com/HerbHall/homewatt/internal/homewizard"
	"github.com/HerbHall/homewatt/internal/monitor"
	"github.com/HerbHall/homewatt/internal/mqtt"
	"github.com/HerbHall/homewatt/internal/notify"
	"github.com/HerbHall/homewatt/internal/server"
	"github.com/HerbHall/homewatt/internal/store"
	"github.com/HerbHall/homewatt/internal/telemetry"
	"github.com/HerbHall/homewatt/internal/version"
	"github.com/HerbHall/homewatt/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	v, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("HomeWatt starting", zap.String("version", version.Short()))

	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("source", f))
	} else {
		logger.Warn("no configuration file found, using defaults")
	}

	// Open database and run component migrations.
	dbPath := v.GetString("database.path")
	db, err := store.New(dbPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := device.Migrate(ctx, db); err != nil {
		logger.Fatal("device migrations failed", zap.Error(err))
	}
	if err := telemetry.Migrate(ctx, db); err != nil {
		logger.Fatal("telemetry migrations failed", zap.Error(err))
	}
	logger.Info("database initialized", zap.String("path", dbPath))

	devices := device.NewStore(db.DB())
	readings := telemetry.NewStore(db.DB())

	bus := event.NewBus(logger.Named("event"))

	// Module configurations: defaults overlaid with file/env values.
	discoveryCfg := discovery.DefaultConfig()
	monitorCfg := monitor.DefaultConfig()
	dashboardCfg := dashboard.DefaultConfig()
	mqttCfg := mqtt.DefaultConfig()
	serverCfg := server.DefaultConfig()
	for key, target := range map[string]any{
		"discovery": &discoveryCfg,
		"monitor":   &monitorCfg,
		"dashboard": &dashboardCfg,
		"mqtt":      &mqttCfg,
		"server":    &serverCfg,
	} {
		if err := v.UnmarshalKey(key, target); err != nil {
			logger.Fatal("invalid configuration section",
				zap.String("section", key), zap.Error(err))
		}
	}

	validateIntervals(logger, monitorCfg)

	// Discovery sweeps the local subnet for HomeWizard devices.
	discoveryClient := homewizard.NewClient(discoveryCfg.RequestTimeout)
	pinger := discovery.NewICMPPinger(discoveryCfg.PingTimeout, logger.Named("discovery"))
	sweeper := discovery.NewSweeper(discoveryCfg, devices, bus, discoveryClient, pinger, logger.Named("discovery"))

	// Monitoring polls enabled devices and evaluates liveness.
	monitorClient := homewizard.NewClient(monitorCfg.RequestTimeout)
	coordinator := monitor.NewCoordinator(monitorCfg, devices, readings, monitorClient, bus, logger.Named("monitor"))
	tracker := monitor.NewTracker(monitorCfg, devices, bus, logger.Named("monitor"))

	// Dashboard snapshots fan out over the bus.
	aggregator := dashboard.NewAggregator(dashboardCfg, devices, readings, bus, logger.Named("dashboard"))

	// Notification channels. The log notifier is always on; the webhook
	// joins when a URL is configured.
	notifiers := []notify.Notifier{notify.NewLogNotifier(logger.Named("notify"))}
	if url := v.GetString("notify.webhook.url"); url != "" {
		webhookCfg := notify.WebhookConfig{
			URL:     url,
			Secret:  v.GetString("notify.webhook.secret"),
			Timeout: v.GetDuration("notify.webhook.timeout"),
		}
		notifiers = append(notifiers, notify.NewWebhookNotifier(webhookCfg))
		logger.Info("webhook notifier enabled", zap.String("url", url))
	}
	dispatcher := notify.NewDispatcher(notifiers, logger.Named("notify"))
	unsubNotify := dispatcher.Register(bus)
	defer unsubNotify()

	// Optional MQTT bridge.
	bridge := mqtt.NewBridge(mqttCfg, logger.Named("mqtt"))
	if err := bridge.Start(ctx); err != nil {
		logger.Error("mqtt bridge failed to start", zap.Error(err))
	}
	unsubMQTT := bridge.Register(bus)
	defer unsubMQTT()
	defer func() { _ = bridge.Stop(context.Background()) }()

	// WebSocket fan-out for the live dashboard.
	wsHandler := ws.NewHandler(bus, logger.Named("ws"))

	// REST API.
	api := server.NewAPI(devices, readings, aggregator, discoveryClient, sweeper, logger.Named("api"))

	readyCheck := server.ReadinessChecker(func(ctx context.Context) error {
		return db.DB().PingContext(ctx)
	})
	srv := server.New(serverCfg, logger.Named("server"), readyCheck, api, wsHandler)

	// Background loops.
	var wg sync.WaitGroup
	for _, run := range []func(context.Context){sweeper.Run, tracker.Run, aggregator.Run} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(run)
	}
	coordinator.Start(ctx)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("HomeWatt ready", zap.String("addr", serverCfg.Addr()))

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer shutdownCancel()

	cancel()
	coordinator.Stop()
	wg.Wait()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("HomeWatt stopped")
}

// validateIntervals warns when an operator sets a poll interval shorter
// than the request timeout, which can only produce overlapping timeouts.
func validateIntervals(logger *zap.Logger, cfg monitor.Config) {
	if cfg.PollInterval < cfg.RequestTimeout {
		logger.Warn("poll interval is shorter than request timeout",
			zap.Duration("poll_interval", cfg.PollInterval),
			zap.Duration("request_timeout", cfg.RequestTimeout),
		)
	}
}
