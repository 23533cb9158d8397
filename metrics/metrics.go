// Package metrics holds the Prometheus collectors of the API.
package metrics

import (
	"net/http"
	"strconv"
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
			Namespace: "cropverse",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cropverse",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cropverse",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	Purchases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cropverse",
			Name:      "purchases_total",
			Help:      "Purchase attempts by result.",
		},
		[]string{"result"},
	)

	ChatMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cropverse",
			Name:      "chat_messages_total",
			Help:      "Chat messages stored by type.",
		},
		[]string{"type"},
	)

	Signups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cropverse",
			Name:      "signups_total",
			Help:      "Accepted signups by role.",
		},
		[]string{"role"},
	)
)

func init() {
	Registry.MustRegister(httpInFlight, httpRequests, httpDuration, Purchases, ChatMessages, Signups)
}

// Middleware records request counts and latencies keyed by the matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordPurchase(result string) {
	Purchases.WithLabelValues(result).Inc()
}

func RecordChatMessage(messageType string) {
	ChatMessages.WithLabelValues(messageType).Inc()
}

func RecordSignup(role string) {
	Signups.WithLabelValues(role).Inc()
}
