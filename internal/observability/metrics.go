package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	WebhookOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_webhook_outcomes_total",
			Help: "Webhook reconciliation outcomes by counter name",
		},
		[]string{"outcome"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "booking_db_tx_seconds",
			Help:    "Duration of reconciliation transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_outbox_publish_retries_total",
			Help: "Total outbox publish retries",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_rate_limit_exceeded_total",
			Help: "Total requests rejected by the rate limiter",
		},
	)
)
