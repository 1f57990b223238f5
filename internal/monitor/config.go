package monitor

import "time"

// Config holds the polling and liveness configuration.
type Config struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	LivenessInterval time.Duration `mapstructure:"liveness_interval"`
	OfflineThreshold time.Duration `mapstructure:"offline_threshold"`
	ReminderInterval time.Duration `mapstructure:"reminder_interval"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	MaxWorkers       int           `mapstructure:"max_workers"`
}

// DefaultConfig returns the default monitor configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval:     30 * time.Second,
		LivenessInterval: 5 * time.Minute,
		OfflineThreshold: 30 * time.Minute,
		ReminderInterval: 24 * time.Hour,
		RequestTimeout:   5 * time.Second,
		MaxWorkers:       8,
	}
}
