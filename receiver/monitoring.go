package receiver

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsJoined = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "syncaudio_receiver_joined",
		Help: "Count of receivers that have joined a channel.",
	})

	metricsLeft = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "syncaudio_receiver_left",
		Help: "Count of receivers that have left a channel.",
	})

	metricsConverged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "syncaudio_receiver_sync_converged",
		Help: "Count of sync batches that produced a usable latency estimate.",
	})

	metricsDegenerate = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "syncaudio_receiver_sync_degenerate",
		Help: "Count of sync batches where every sample was discarded.",
	})

	metricsOffline = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "syncaudio_receiver_marked_offline",
		Help: "Count of times a receiver was marked offline after missed sync batches.",
	})

	metricsTransportErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "syncaudio_receiver_sync_transport_errors",
		Help: "Count of sync exchange transport errors.",
	})
)

// RegisterMonitoring registers all of this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		metricsJoined,
		metricsLeft,
		metricsConverged,
		metricsDegenerate,
		metricsOffline,
		metricsTransportErrors,
	)
}
