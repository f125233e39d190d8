package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total number of HTTP requests processed by the relay service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_sent_total",
			Help: "Total number of messages accepted by the relay.",
		},
		[]string{"sender"},
	)
	pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_polls_total",
			Help: "Total number of poll requests served.",
		},
		[]string{"participant"},
	)
	receiptsMarkedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_read_receipts_marked_total",
			Help: "Total number of messages newly marked read.",
		},
	)
	typingUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_typing_updates_total",
			Help: "Total number of typing state updates.",
		},
		[]string{"participant"},
	)
	purgesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_purges_total",
			Help: "Total number of conversation purges.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		messagesSentTotal,
		pollsTotal,
		receiptsMarkedTotal,
		typingUpdatesTotal,
		purgesTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncMessageSent(sender string) {
	messagesSentTotal.WithLabelValues(sender).Inc()
}

func IncPoll(participant string) {
	pollsTotal.WithLabelValues(participant).Inc()
}

func AddReceiptsMarked(n int) {
	receiptsMarkedTotal.Add(float64(n))
}

func IncTypingUpdate(participant string) {
	typingUpdatesTotal.WithLabelValues(participant).Inc()
}

func IncPurge() {
	purgesTotal.Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
