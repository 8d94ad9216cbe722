package broadcaster

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "syncaudio_broadcaster_packets_emitted",
		Help: "Count of packets handed to the Emitter across all broadcasters.",
	})

	metricsPlayed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "syncaudio_broadcaster_packets_played",
		Help: "Count of in-flight packets pruned after their playback_at elapsed.",
	})

	metricsTerminated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "syncaudio_broadcaster_terminated",
		Help: "Count of broadcasters that have reached the Terminated state.",
	})

	metricsInFlightGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "syncaudio_broadcaster_in_flight",
		Help: "Current size of the most recently updated broadcaster's in-flight window.",
	})
)

// RegisterMonitoring registers all of this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		metricsEmitted,
		metricsPlayed,
		metricsTerminated,
		metricsInFlightGauge,
	)
}
