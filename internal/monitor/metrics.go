package monitor

import "github.com/prometheus/client_golang/prometheus"

// Prometheus polling metrics.
var (
	readingsCollected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "homewatt_readings_collected_total",
			Help: "Total number of energy readings collected from devices.",
		},
	)
	deviceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homewatt_device_errors_total",
			Help: "Total number of device poll failures by reason.",
		},
		[]string{"reason"},
	)
	pollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "homewatt_poll_duration_seconds",
			Help:    "Duration of a single device poll in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	devicesOnline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "homewatt_devices_online",
			Help: "Number of enabled devices currently considered online.",
		},
	)
	devicesOffline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "homewatt_devices_offline",
			Help: "Number of enabled devices currently considered offline.",
		},
	)
)

func init() {
	prometheus.MustRegister(readingsCollected)
	prometheus.MustRegister(deviceErrors)
	prometheus.MustRegister(pollDuration)
	prometheus.MustRegister(devicesOnline)
	prometheus.MustRegister(devicesOffline)
}
