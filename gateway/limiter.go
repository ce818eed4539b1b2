package gateway

import (
	"sync"
	"time"
)

// RateLimiter 控制请求速率，避免触发行情源的公共接口限流。
type RateLimiter interface {
	Wait()
}

// TokenBucketLimiter 令牌桶：按 perSec 速率补充，容量 capacity。
// 桶空时 Wait 在锁外睡眠，不阻塞其他调用方的补充计算。
type TokenBucketLimiter struct {
	mu       sync.Mutex
	perSec   float64
	capacity float64
	level    float64
	updated  time.Time
}

func NewTokenBucketLimiter(perSec float64, burst int) *TokenBucketLimiter {
	if perSec <= 0 {
		perSec = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucketLimiter{
		perSec:   perSec,
		capacity: float64(burst),
		level:    float64(burst),
		updated:  time.Now(),
	}
}

// Wait 取走一个令牌，必要时睡到下一个令牌可用。
func (l *TokenBucketLimiter) Wait() {
	l.mu.Lock()
	l.refill()
	if l.level >= 1 {
		l.level--
		l.mu.Unlock()
		return
	}
	wait := time.Duration((1 - l.level) / l.perSec * float64(time.Second))
	l.level = 0
	l.updated = l.updated.Add(wait)
	l.mu.Unlock()

	time.Sleep(wait)
}

// refill 按经过的时间补充令牌，封顶到容量。调用方必须持有锁。
func (l *TokenBucketLimiter) refill() {
	now := time.Now()
	l.level += now.Sub(l.updated).Seconds() * l.perSec
	if l.level > l.capacity {
		l.level = l.capacity
	}
	l.updated = now
}
