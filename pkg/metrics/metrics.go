package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts requests by method, route pattern and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haatbari_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "haatbari_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	checkoutOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haatbari_checkout_operations_total",
			Help: "Checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haatbari_payment_webhook_events_total",
			Help: "Provider callbacks by disposition",
		},
		[]string{"disposition"},
	)

	sweeperCancellations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "haatbari_sweeper_cancellations_total",
			Help: "Stale pending orders cancelled by the sweeper",
		},
	)
)

// RecordCheckout tallies one checkout attempt.
func RecordCheckout(outcome string) {
	checkoutOperations.WithLabelValues(outcome).Inc()
}

// RecordWebhook tallies one provider callback disposition
// (applied, duplicate, unknown_session, rejected, error).
func RecordWebhook(disposition string) {
	webhookEvents.WithLabelValues(disposition).Inc()
}

// RecordSweeperCancellation tallies one abandoned-checkout cancellation.
func RecordSweeperCancellation() {
	sweeperCancellations.Inc()
}
