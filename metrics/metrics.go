package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 应用的 Prometheus 指标
// 所有方法对 nil 接收者安全，未启用指标时可直接传 nil
type Metrics struct {
	registry prometheus.Gatherer

	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	ExternalCalls       *prometheus.CounterVec
	ExternalDuration    *prometheus.HistogramVec
	RecommendationCache *prometheus.CounterVec
	BreakerState        *prometheus.GaugeVec
	SyncRuns            *prometheus.CounterVec
	ExportsGenerated    *prometheus.CounterVec
}

// New 在给定注册表上创建并注册全部指标
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wiley_http_requests_total",
			Help: "HTTP 请求总数",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wiley_http_request_duration_seconds",
			Help:    "HTTP 请求耗时",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ExternalCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wiley_external_calls_total",
			Help: "外部服务调用次数（quickbooks、grok）",
		}, []string{"service", "outcome"}),
		ExternalDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wiley_external_call_duration_seconds",
			Help:    "外部服务调用耗时",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"service"}),
		RecommendationCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wiley_recommendation_cache_total",
			Help: "费率建议缓存命中情况",
		}, []string{"result"}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wiley_circuit_breaker_open",
			Help: "熔断器状态，1 为打开",
		}, []string{"name"}),
		SyncRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wiley_budget_sync_runs_total",
			Help: "QuickBooks 预算同步次数",
		}, []string{"outcome"}),
		ExportsGenerated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wiley_exports_total",
			Help: "生成的导出文件数",
		}, []string{"format"}),
	}
}

// NewDefault 使用独立注册表并附带 Go 运行时与进程指标
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

// ObserveExternal 记录一次外部调用
func (m *Metrics) ObserveExternal(service, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ExternalCalls.WithLabelValues(service, outcome).Inc()
	m.ExternalDuration.WithLabelValues(service).Observe(elapsed.Seconds())
}

// CacheHit 记录缓存命中
func (m *Metrics) CacheHit(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.RecommendationCache.WithLabelValues("hit").Inc()
		return
	}
	m.RecommendationCache.WithLabelValues("miss").Inc()
}

// SetBreakerOpen 更新熔断器状态
func (m *Metrics) SetBreakerOpen(name string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerState.WithLabelValues(name).Set(v)
}

// IncSync 记录一次同步
func (m *Metrics) IncSync(outcome string) {
	if m == nil {
		return
	}
	m.SyncRuns.WithLabelValues(outcome).Inc()
}

// IncExport 记录一次导出
func (m *Metrics) IncExport(format string) {
	if m == nil {
		return
	}
	m.ExportsGenerated.WithLabelValues(format).Inc()
}

// GinMiddleware 统计请求数量和耗时，路由使用注册时的模板路径
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
