// Package metrics provides Prometheus instrumentation for pollnet. It exposes
// gauges for tracked sockets and live reactor tasks, counters for message
// throughput and drops, and a histogram for dial latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SocketsOpen tracks the number of records in every context's arena.
	SocketsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pollnet_sockets_open",
		Help: "Current number of tracked sockets",
	})

	// TasksRunning tracks the number of tasks hosted by the reactor.
	TasksRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pollnet_reactor_tasks_running",
		Help: "Current number of reactor tasks",
	})

	// MessagesTotal counts frames moved across the bridge, labeled by
	// direction ("in" = network to host, "out" = host to network) and kind.
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pollnet_messages_total",
		Help: "Total number of frames forwarded",
	}, []string{"direction", "kind"})

	// DroppedTotal counts frames discarded because a queue was full.
	DroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pollnet_dropped_total",
		Help: "Total number of frames dropped on a full queue",
	}, []string{"direction"})

	// DialLatency records the time to establish outbound connections.
	DialLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pollnet_dial_latency_seconds",
		Help:    "WebSocket dial and handshake latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
	})
)

func init() {
	prometheus.MustRegister(
		SocketsOpen,
		TasksRunning,
		MessagesTotal,
		DroppedTotal,
		DialLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
