// Package config loads HomeWatt configuration and builds the logger.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment variables.
// When configPath is empty, homewatt.yaml is searched in the working
// directory, ./configs, and /etc/homewatt. A missing file is not an
// error; defaults apply.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit_rps", 50)
	v.SetDefault("server.rate_limit_burst", 100)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "./data/homewatt.db")

	// Polling coordinator and liveness evaluation
	v.SetDefault("monitor.poll_interval", "30s")
	v.SetDefault("monitor.liveness_interval", "5m")
	v.SetDefault("monitor.offline_threshold", "30m")
	v.SetDefault("monitor.reminder_interval", "24h")
	v.SetDefault("monitor.max_workers", 8)
	v.SetDefault("monitor.request_timeout", "5s")

	// Discovery sweep
	v.SetDefault("discovery.interval", "1h")
	v.SetDefault("discovery.ping_timeout", "100ms")
	v.SetDefault("discovery.request_timeout", "5s")
	v.SetDefault("discovery.subnet", "")
	v.SetDefault("discovery.concurrency", 254)

	// Dashboard aggregator
	v.SetDefault("dashboard.update_interval", "30s")
	v.SetDefault("dashboard.chart_window", "10m")
	v.SetDefault("dashboard.offline_threshold", "5m")

	// Notification channels
	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.webhook.secret", "")
	v.SetDefault("notify.webhook.timeout", "10s")

	// MQTT bridge
	v.SetDefault("mqtt.broker_url", "")
	v.SetDefault("mqtt.client_id", "homewatt")
	v.SetDefault("mqtt.topic_prefix", "homewatt")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.retain", false)
	v.SetDefault("mqtt.timeout", "10s")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("homewatt")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/homewatt")
	}

	// Environment variable support: HW_SERVER_PORT=9090
	v.SetEnvPrefix("HW")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
