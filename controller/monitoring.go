package controller

import "github.com/prometheus/client_golang/prometheus"

var (
	metricsTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "syncaudio",
		Subsystem: "controller",
		Name:      "ticks_total",
		Help:      "Total tick cycles dispatched to registered channels.",
	})
	metricsRegistered = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "syncaudio",
		Subsystem: "controller",
		Name:      "channels_registered",
		Help:      "Current number of channels registered with the controller.",
	})
)

// RegisterMonitoring registers the controller package's metrics with reg.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(metricsTicks, metricsRegistered)
}
