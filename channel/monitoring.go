package channel

import "github.com/prometheus/client_golang/prometheus"

var (
	metricsAttached = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "syncaudio",
		Subsystem: "channel",
		Name:      "receivers_attached_total",
		Help:      "Total receivers successfully attached to a channel.",
	})
	metricsDetached = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "syncaudio",
		Subsystem: "channel",
		Name:      "receivers_detached_total",
		Help:      "Total receivers detached from a channel.",
	})
	metricsPlayPause = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "syncaudio",
		Subsystem: "channel",
		Name:      "play_pause_total",
		Help:      "Total play_pause commands processed.",
	})
	metricsSkips = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "syncaudio",
		Subsystem: "channel",
		Name:      "skips_total",
		Help:      "Total skip commands processed, successful or not.",
	})
	metricsSkipFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "syncaudio",
		Subsystem: "channel",
		Name:      "skip_failed_total",
		Help:      "Total skip commands that failed to resolve a source id.",
	})
	metricsStreamFinished = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "syncaudio",
		Subsystem: "channel",
		Name:      "stream_finished_total",
		Help:      "Total times a channel's source stream drained naturally.",
	})
)

// RegisterMonitoring registers the channel package's metrics with reg.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		metricsAttached,
		metricsDetached,
		metricsPlayPause,
		metricsSkips,
		metricsSkipFailed,
		metricsStreamFinished,
	)
}
