// Package metrics exposes the marketplace Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "marketplace",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketplace",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	ordersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Total number of orders placed.",
		},
		[]string{"promo"},
	)

	orderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "orders",
			Name:      "transitions_total",
			Help:      "Total number of order status transitions.",
		},
		[]string{"to"},
	)

	quotaRefusals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "catalog",
			Name:      "quota_refusals_total",
			Help:      "Product activations refused by the subscription quota.",
		},
	)

	remindersSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "reminders",
			Name:      "sent_total",
			Help:      "Total number of reminders dispatched.",
		},
	)

	subscriptionsLapsed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "subscriptions",
			Name:      "lapsed_total",
			Help:      "Total number of subscriptions deactivated on expiry.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		ordersPlaced,
		orderTransitions,
		quotaRefusals,
		remindersSent,
		subscriptionsLapsed,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts, durations and in-flight gauge for every
// route except /metrics itself.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := strings.ToUpper(c.Request.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordOrderPlaced counts a placed order, split by promo usage.
func RecordOrderPlaced(withPromo bool) {
	label := "none"
	if withPromo {
		label = "applied"
	}
	ordersPlaced.WithLabelValues(label).Inc()
}

// RecordOrderTransition counts a status change by its target status.
func RecordOrderTransition(to string) {
	orderTransitions.WithLabelValues(to).Inc()
}

// RecordQuotaRefusal counts a product activation blocked by the quota.
func RecordQuotaRefusal() { quotaRefusals.Inc() }

// RecordRemindersSent counts dispatched reminders.
func RecordRemindersSent(n int) {
	if n > 0 {
		remindersSent.Add(float64(n))
	}
}

// RecordSubscriptionsLapsed counts expired subscriptions deactivated by the
// lapser.
func RecordSubscriptionsLapsed(n int) {
	if n > 0 {
		subscriptionsLapsed.Add(float64(n))
	}
}
