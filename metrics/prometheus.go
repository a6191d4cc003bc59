package metrics

import "github.com/prometheus/client_golang/prometheus"

var HttpRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests received",
	},
	[]string{"endpoint", "status", "method"},
)

var HttpRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"endpoint", "method"},
)

var NotificationsScheduledTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "notifications_scheduled_total",
		Help: "Total number of notification timers armed",
	},
)

var NotificationsSupersededTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "notifications_superseded_total",
		Help: "Total number of pending timers replaced by a newer schedule for the same key",
	},
)

var NotificationsDroppedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "notifications_dropped_total",
		Help: "Total number of schedule requests dropped because the fire-time had already passed",
	},
)

var NotificationsDeliveredTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "notifications_delivered_total",
		Help: "Total number of notifications presented successfully",
	},
)

var NotificationRetriesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "notification_retries_total",
		Help: "Total number of delivery retries after a failed attempt",
	},
)

var NotificationFailuresTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "notification_failures_total",
		Help: "Total number of notifications abandoned after retry exhaustion",
	},
)

func Init() {
	prometheus.MustRegister(HttpRequestsTotal)
	prometheus.MustRegister(HttpRequestDuration)
	prometheus.MustRegister(NotificationsScheduledTotal)
	prometheus.MustRegister(NotificationsSupersededTotal)
	prometheus.MustRegister(NotificationsDroppedTotal)
	prometheus.MustRegister(NotificationsDeliveredTotal)
	prometheus.MustRegister(NotificationRetriesTotal)
	prometheus.MustRegister(NotificationFailuresTotal)
}
