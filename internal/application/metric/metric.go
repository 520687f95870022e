package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request handling time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	activeRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_active_rooms",
			Help: "Number of rooms with at least one member",
		},
	)

	envelopesRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_envelopes_total",
			Help: "Signaling envelopes processed by the relay",
		},
		[]string{"type"},
	)

	joinsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_joins_rejected_total",
			Help: "Join attempts rejected because the room was full",
		},
	)
)

func RecordHTTPMetrics(method, endpoint string, status int, duration time.Duration) {
	strStatus := strconv.Itoa(status)

	httpRequestsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, strStatus).Observe(duration.Seconds())
}

func IncrementWSActiveConnections() {
	wsActiveConnections.Inc()
}

func DecrementWSActiveConnections() {
	wsActiveConnections.Dec()
}

func SetActiveRooms(count int) {
	activeRooms.Set(float64(count))
}

func RecordEnvelope(eventType string) {
	envelopesRelayed.WithLabelValues(eventType).Inc()
}

func RecordJoinRejected() {
	joinsRejected.Inc()
}
