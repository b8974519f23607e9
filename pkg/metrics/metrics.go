package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrderTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_order_transitions_total",
			Help: "Order status transitions by event and outcome",
		},
		[]string{"event", "outcome"},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_webhook_events_total",
			Help: "Payment webhook deliveries by event type and outcome",
		},
		[]string{"type", "outcome"},
	)

	PaymentIntentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_payment_intents_total",
			Help: "Payment intents requested from the processor",
		},
		[]string{"outcome"},
	)

	LoyaltyPointsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_loyalty_points_total",
			Help: "Loyalty points moved by transaction type",
		},
		[]string{"type"},
	)

	SideEffectFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_side_effect_failures_total",
			Help: "Best effort writes (activity logs, notifications) that failed",
		},
		[]string{"kind"},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketplace_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

var once sync.Once

// Register registers all collectors with the default registry. Safe to call more than once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			OrderTransitionsTotal,
			WebhookEventsTotal,
			PaymentIntentsTotal,
			LoyaltyPointsTotal,
			SideEffectFailuresTotal,
			RateLimited,
			HTTPRequestDuration,
		)
	})
}
