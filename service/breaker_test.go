package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestBreaker(threshold int, cooldown time.Duration) (*CircuitBreaker, *time.Time) {
	b := NewCircuitBreaker("test", threshold, cooldown)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	var events []bool
	b.OnChange(func(open bool) { events = append(events, open) })

	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow())
	assert.Equal(t, BreakerClosed, b.State())

	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.Allow())
	assert.Equal(t, []bool{true}, events)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenTrial(t *testing.T) {
	b, now := newTestBreaker(1, 30*time.Second)
	b.RecordFailure()
	assert.False(t, b.Allow())

	*now = now.Add(31 * time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, BreakerHalfOpen, b.State())
	// 探测期间不再放行
	assert.False(t, b.Allow())

	// 探测失败重新打开并重新计时
	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.Allow())

	*now = now.Add(31 * time.Second)
	assert.True(t, b.Allow())
	b.RecordSuccess()
	assert.Equal(t, BreakerClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker(1, time.Hour)
	b.RecordFailure()
	b.Reset()
	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, "test", b.Name())
}

func TestBreaker_ReleaseReturnsHalfOpenSlot(t *testing.T) {
	b, now := newTestBreaker(1, 30*time.Second)
	b.RecordFailure()
	*now = now.Add(31 * time.Second)
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())

	// 被取消的探测既不关闭也不重新打开熔断器
	b.Release()
	assert.Equal(t, BreakerHalfOpen, b.State())
	assert.True(t, b.Allow())

	b.RecordSuccess()
	assert.Equal(t, BreakerClosed, b.State())
}
