package emitter

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "syncaudio_emitter_sent_packets",
		Help: "Count of packets successfully handed to the transport.",
	})

	metricsSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "syncaudio_emitter_send_errors",
		Help: "Count of transport send failures encountered by emitters.",
	})

	metricsStopped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "syncaudio_emitter_stopped",
		Help: "Count of emitters that have been stopped.",
	})
)

// RegisterMonitoring registers all of this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		metricsSent,
		metricsSendErrors,
		metricsStopped,
	)
}
