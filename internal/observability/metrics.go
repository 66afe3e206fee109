package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMetricsRegistry creates a registry with Go and process collectors.
func NewMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

type HTTPMetrics struct {
	registry    *prometheus.Registry
	reqTotal    *prometheus.CounterVec
	reqDuration *prometheus.HistogramVec
}

func NewHTTPMetrics(registry *prometheus.Registry, serviceName string) *HTTPMetrics {
	constLabels := prometheus.Labels{"service": serviceName}
	reqTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "http",
		Subsystem:   "server",
		Name:        "requests_total",
		Help:        "Total number of HTTP requests.",
		ConstLabels: constLabels,
	}, []string{"method", "path", "status"})
	reqDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   "http",
		Subsystem:   "server",
		Name:        "request_duration_seconds",
		Help:        "HTTP request duration in seconds.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"method", "path", "status"})
	registry.MustRegister(reqTotal, reqDuration)
	return &HTTPMetrics{registry: registry, reqTotal: reqTotal, reqDuration: reqDuration}
}

func (m *HTTPMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.reqTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.reqDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// FollowMetrics 统计关注状态机的迁移次数
type FollowMetrics struct {
	transitions *prometheus.CounterVec
}

func NewFollowMetrics(registry prometheus.Registerer) *FollowMetrics {
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "social",
		Subsystem: "follow",
		Name:      "transitions_total",
		Help:      "Follow state machine transitions by event.",
	}, []string{"event"})
	registry.MustRegister(transitions)
	return &FollowMetrics{transitions: transitions}
}

// Observe 记录一次迁移；nil 接收者直接忽略，方便未开启指标时注入
func (m *FollowMetrics) Observe(event string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(event).Inc()
}
