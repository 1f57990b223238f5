package dashboard

import "time"

// Config holds the dashboard aggregation configuration.
type Config struct {
	UpdateInterval   time.Duration `mapstructure:"update_interval"`
	ChartWindow      time.Duration `mapstructure:"chart_window"`
	OfflineThreshold time.Duration `mapstructure:"offline_threshold"`
}

// DefaultConfig returns the default dashboard configuration. The offline
// threshold here is deliberately tighter than the monitor's: the dashboard
// shows "offline" quickly, while alerting waits for a sustained outage.
func DefaultConfig() Config {
	return Config{
		UpdateInterval:   30 * time.Second,
		ChartWindow:      10 * time.Minute,
		OfflineThreshold: 5 * time.Minute,
	}
}
