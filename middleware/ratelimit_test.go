package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(LoginRateLimit(2, 200*time.Millisecond))
	router.POST("/login", func(c *gin.Context) {
		c.String(200, "ok")
	})

	doReq := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/login", nil)
		req.RemoteAddr = ip + ":12345"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, 200, doReq("10.0.0.1").Code)
	assert.Equal(t, 200, doReq("10.0.0.1").Code)
	w := doReq("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "频繁")
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// 不同 IP 互不影响
	assert.Equal(t, 200, doReq("10.0.0.2").Code)

	// 窗口过后恢复
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, 200, doReq("10.0.0.1").Code)
}

func TestRateLimitByUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if c.GetHeader("X-User") == "7" {
			c.Set(ctxUserID, uint(7))
		}
		c.Next()
	})
	router.Use(RateLimit(1, time.Minute, ByUser, "请求过于频繁"))
	router.GET("/x", func(c *gin.Context) { c.String(200, "ok") })

	do := func(user string) int {
		req := httptest.NewRequest("GET", "/x", nil)
		req.RemoteAddr = "10.0.0.9:1"
		if user != "" {
			req.Header.Set("X-User", user)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, 200, do("7"))
	assert.Equal(t, http.StatusTooManyRequests, do("7"))
	// 匿名请求按 IP 计数，与用户 7 分开
	assert.Equal(t, 200, do(""))
}

func TestSlidingWindowRetryAfter(t *testing.T) {
	w := newSlidingWindow(1, time.Minute)
	now := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)

	ok, _ := w.allow("k", now)
	require.True(t, ok)
	ok, wait := w.allow("k", now.Add(20*time.Second))
	assert.False(t, ok)
	assert.Equal(t, 40*time.Second, wait)

	w.sweep(now.Add(2 * time.Minute))
	assert.Empty(t, w.hits)
}

func TestSlidingWindowPrunesIdleKeysOnAllow(t *testing.T) {
	w := newSlidingWindow(5, time.Minute)
	now := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 50; i++ {
		ok, _ := w.allow("ip:10.0.0."+strconv.Itoa(i), now)
		require.True(t, ok)
	}
	assert.Len(t, w.hits, 50)

	// 一个窗口之后，任意 key 的请求都会顺带清掉过期的 key
	ok, _ := w.allow("ip:10.0.1.1", now.Add(61*time.Second))
	require.True(t, ok)
	assert.Len(t, w.hits, 1)
	assert.Contains(t, w.hits, "ip:10.0.1.1")
}

func TestRateLimitStartsNoGoroutines(t *testing.T) {
	before := runtime.NumGoroutine()
	for i := 0; i < 100; i++ {
		RateLimit(1, time.Minute, ByClientIP, "x")
	}
	assert.LessOrEqual(t, runtime.NumGoroutine(), before+5)
}
