package storage

import "github.com/prometheus/client_golang/prometheus"

var (
	metricsRecordingGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "syncaudio",
		Subsystem: "recorder",
		Name:      "recording",
		Help:      "Count of active stream recorders currently recording.",
	})
	metricsEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "syncaudio",
		Subsystem: "recorder",
		Name:      "events_total",
		Help:      "Count of recorded packet events.",
	})
	metricsErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "syncaudio",
		Subsystem: "recorder",
		Name:      "errors_total",
		Help:      "Count of errors encountered while recording.",
	})
)

// RegisterMonitoring registers the storage package's metrics with reg.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(metricsRecordingGauge, metricsEvents, metricsErrors)
}
