package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for replika
var (
	// ConnectAttemptsTotal counts connection attempts to the source server
	ConnectAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replika_connect_attempts_total",
			Help: "Total number of connection attempts to the source server",
		},
		[]string{"status"}, // labels: success, error
	)

	// HandshakeDuration tracks how long the full handshake takes
	HandshakeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "replika_handshake_duration_seconds",
			Help:    "Duration of the connection handshake in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ConnectionState tracks whether the connector believes it is connected
	ConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "replika_connection_state",
			Help: "Connection state (1 = connected, 0 = disconnected)",
		},
	)

	// ErrorsTotal counts errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replika_errors_total",
			Help: "Total number of errors by type",
		},
		[]string{"type"}, // labels: connect, disconnect, api
	)

	// APIRequestsTotal counts management API requests
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replika_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "method", "status"},
	)
)

// Helper functions for common operations

// RecordConnectAttempt records a connection attempt
func RecordConnectAttempt(success bool) {
	if success {
		ConnectAttemptsTotal.WithLabelValues("success").Inc()
	} else {
		ConnectAttemptsTotal.WithLabelValues("error").Inc()
	}
}

// ObserveHandshakeDuration records how long a handshake took
func ObserveHandshakeDuration(durationSeconds float64) {
	HandshakeDuration.Observe(durationSeconds)
}

// SetConnectionState sets the connection state gauge
func SetConnectionState(connected bool) {
	if connected {
		ConnectionState.Set(1)
	} else {
		ConnectionState.Set(0)
	}
}

// RecordError records an error by type
func RecordError(errorType string) {
	ErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordAPIRequest records a management API request
func RecordAPIRequest(endpoint, method, status string) {
	APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}
