package service

import (
	"sync"
	"time"
)

// BreakerState 熔断器状态
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// CircuitBreaker 连续失败达到阈值后打开，冷却期结束后放行一个探测请求
type CircuitBreaker struct {
	mu sync.Mutex

	name      string
	threshold int
	cooldown  time.Duration

	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool

	now      func() time.Time
	onChange func(open bool)
}

// NewCircuitBreaker 创建熔断器
func NewCircuitBreaker(name string, threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		state:     BreakerClosed,
		now:       time.Now,
	}
}

// Name 名称
func (b *CircuitBreaker) Name() string {
	return b.name
}

// OnChange 设置打开/关闭时的回调
func (b *CircuitBreaker) OnChange(fn func(open bool)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Allow 是否放行本次调用
// 半开状态下同一时间只放行一个探测请求
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = BreakerHalfOpen
		b.probing = true
		return true
	default:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
}

// RecordSuccess 记录成功，关闭熔断器
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	wasOpen := b.state != BreakerClosed
	b.state = BreakerClosed
	b.failures = 0
	b.probing = false
	fn := b.onChange
	b.mu.Unlock()
	if wasOpen && fn != nil {
		fn(false)
	}
}

// RecordFailure 记录失败，探测失败或达到阈值时打开
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	opened := false
	switch b.state {
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.openedAt = b.now()
		b.probing = false
	case BreakerClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.state = BreakerOpen
			b.openedAt = b.now()
			opened = true
		}
	}
	fn := b.onChange
	b.mu.Unlock()
	if opened && fn != nil {
		fn(true)
	}
}

// Release 调用被本地取消时使用：不计成功也不计失败，只归还半开探测名额
func (b *CircuitBreaker) Release() {
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

// State 当前状态
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset 强制关闭
func (b *CircuitBreaker) Reset() {
	b.RecordSuccess()
}
