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
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 教程进度写入，result: ok | rejected | failed
	ProgressWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_writes_total",
			Help: "Tutorial progress writes by course and result",
		},
		[]string{"course", "result"},
	)

	VariantMounts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selector_variant_mounts_total",
			Help: "Page variant mounts by page and variant",
		},
		[]string{"page", "variant"},
	)

	DeviceClassifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_classifications_total",
			Help: "Resolved device classes for page requests",
		},
		[]string{"class"},
	)

	ViewportSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "viewport_sessions_active",
			Help: "Open live viewport connections",
		},
	)

	ViewportMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewport_messages_total",
			Help: "Live viewport messages by type and direction",
		},
		[]string{"type", "direction"},
	)

	GatewayErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_errors_total",
			Help: "Remote data gateway failures by collection and operation",
		},
		[]string{"collection", "op"},
	)
)

var initOnce sync.Once

// Init 可重复调用
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			ProgressWrites,
			VariantMounts,
			DeviceClassifications,
			ViewportSessions,
			ViewportMessages,
			GatewayErrors,
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
