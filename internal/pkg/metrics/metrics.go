package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ankora",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ankora",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Positioning metrics
	FixesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ankora",
		Subsystem: "positioning",
		Name:      "fixes_ingested_total",
		Help:      "Total raw GPS fixes ingested",
	}, []string{"source"})

	FixesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ankora",
		Subsystem: "positioning",
		Name:      "fixes_rejected_total",
		Help:      "Total fixes excluded as outliers",
	})

	PositionQualityObserved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ankora",
		Subsystem: "positioning",
		Name:      "quality_total",
		Help:      "Stabilized position updates by quality tier",
	}, []string{"quality"})

	StableDevices = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ankora",
		Subsystem: "positioning",
		Name:      "stable_devices",
		Help:      "Devices whose filtered position is currently stable",
	})

	// Session metrics
	SessionsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ankora",
		Subsystem: "session",
		Name:      "opened_total",
		Help:      "Total experience sessions opened",
	}, []string{"experience"})

	SessionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ankora",
		Subsystem: "session",
		Name:      "completed_total",
		Help:      "Total sessions closed with the engagement gate met",
	}, []string{"experience"})

	SessionsAbandoned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ankora",
		Subsystem: "session",
		Name:      "abandoned_total",
		Help:      "Total sessions closed before minimum engagement",
	}, []string{"experience"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ankora",
		Subsystem: "session",
		Name:      "active",
		Help:      "Currently open experience sessions",
	})

	GestureEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ankora",
		Subsystem: "session",
		Name:      "gesture_events_total",
		Help:      "Gesture events routed to content modules",
	}, []string{"kind"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ankora",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ankora",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ankora",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ankora",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ankora",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ankora",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool metrics from pgx pool stats.
// Takes an interface so this package stays independent of pgxpool.
func UpdateDBPoolMetrics(stat interface{}) {
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
