package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveExternal("grok", "success", 120*time.Millisecond)
	m.ObserveExternal("grok", "success", 80*time.Millisecond)
	m.CacheHit(true)
	m.CacheHit(false)
	m.CacheHit(false)
	m.SetBreakerOpen("grok", true)
	m.IncSync("success")
	m.IncExport("xlsx")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExternalCalls.WithLabelValues("grok", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecommendationCache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("grok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncRuns.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExportsGenerated.WithLabelValues("xlsx")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveExternal("qb", "error", time.Second)
		m.CacheHit(true)
		m.SetBreakerOpen("x", false)
		m.IncSync("error")
		m.IncExport("csv")
	})
}

func TestMetrics_GinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/v1/funds/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/funds/7", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/v1/funds/:id", "200")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "wiley_http_requests_total"))
}
