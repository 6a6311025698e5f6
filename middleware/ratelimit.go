package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// KeyFunc 从请求中提取限流维度
type KeyFunc func(c *gin.Context) string

// ByClientIP 按客户端 IP 限流
func ByClientIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// ByUser 按登录用户限流，未认证时退回到 IP
func ByUser(c *gin.Context) string {
	if id := GetCurrentUserID(c); id != 0 {
		return "user:" + strconv.FormatUint(uint64(id), 10)
	}
	return ByClientIP(c)
}

// slidingWindow 滑动窗口计数器
type slidingWindow struct {
	mu        sync.Mutex
	max       int
	window    time.Duration
	hits      map[string][]time.Time
	lastSweep time.Time
}

func newSlidingWindow(max int, window time.Duration) *slidingWindow {
	return &slidingWindow{max: max, window: window, hits: make(map[string][]time.Time)}
}

// prune 丢弃窗口外的时间戳，调用方持有锁
func (w *slidingWindow) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-w.window)
	ts := w.hits[key]
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(w.hits, key)
		return nil
	}
	w.hits[key] = kept
	return kept
}

// allow 记录一次请求；超限时返回 false 和需要等待的时长
func (w *slidingWindow) allow(key string, now time.Time) (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// 每个窗口最多整体清理一次，不依赖后台 goroutine
	if now.Sub(w.lastSweep) >= w.window {
		w.sweepLocked(now)
	}
	ts := w.prune(key, now)
	if len(ts) >= w.max {
		return false, ts[0].Add(w.window).Sub(now)
	}
	w.hits[key] = append(ts, now)
	return true, 0
}

func (w *slidingWindow) sweep(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sweepLocked(now)
}

func (w *slidingWindow) sweepLocked(now time.Time) {
	for key := range w.hits {
		w.prune(key, now)
	}
	w.lastSweep = now
}

// RateLimit 通用限流中间件，每个 key 在 window 内最多 max 次请求，超过返回 429
func RateLimit(max int, window time.Duration, key KeyFunc, message string) gin.HandlerFunc {
	w := newSlidingWindow(max, window)
	return func(c *gin.Context) {
		ok, wait := w.allow(key(c), time.Now())
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": message,
			})
			return
		}
		c.Next()
	}
}

// LoginRateLimit 登录接口按 IP 限流
func LoginRateLimit(maxAttempts int, window time.Duration) gin.HandlerFunc {
	return RateLimit(maxAttempts, window, ByClientIP, "登录尝试过于频繁，请稍后再试")
}
