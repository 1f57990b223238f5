package discovery

import "time"

// Config holds the discovery sweep configuration.
type Config struct {
	Interval       time.Duration `mapstructure:"interval"`
	PingTimeout    time.Duration `mapstructure:"ping_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Subnet         string        `mapstructure:"subnet"`
	Concurrency    int           `mapstructure:"concurrency"`
}

// DefaultConfig returns the default discovery configuration. An empty
// Subnet means the local /24 is inferred at sweep time.
func DefaultConfig() Config {
	return Config{
		Interval:       1 * time.Hour,
		PingTimeout:    100 * time.Millisecond,
		RequestTimeout: 5 * time.Second,
		Subnet:         "",
		Concurrency:    254,
	}
}
