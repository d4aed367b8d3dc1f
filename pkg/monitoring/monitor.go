package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 离线同步相关指标
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_queue_depth",
			Help: "Number of pending mutations waiting for remote delivery",
		},
	)

	DispatchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_dispatch_total",
			Help: "Remote dispatches of pending mutations by outcome",
		},
		[]string{"kind", "outcome"},
	)

	DrainDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_drain_duration_seconds",
			Help:    "Duration of a pending queue drain",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 30},
		},
	)

	EvictedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_evicted_total",
			Help: "Pending mutations dropped as poison entries",
		},
		[]string{"reason"},
	)

	CachePersistCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_persist_total",
			Help: "Durable writes of offline module content by outcome",
		},
		[]string{"outcome"},
	)

	OnlineGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "connectivity_online",
			Help: "1 when the agent considers the gateway reachable",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			QueueDepth,
			DispatchCounter,
			DrainDuration,
			EvictedCounter,
			CachePersistCounter,
			OnlineGauge,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
