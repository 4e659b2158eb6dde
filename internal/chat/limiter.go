// Package chat implements a token bucket limiter that caps how fast one
// connection may feed frames into the coordinator.
package chat

import (
	"sync"
	"time"
)

type frameLimiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens per second
	last     time.Time
}

func newFrameLimiter(burst int, refill time.Duration) *frameLimiter {
	if burst <= 0 {
		burst = 1
	}
	if refill <= 0 {
		refill = time.Second
	}

	return &frameLimiter{
		tokens:   float64(burst),
		capacity: float64(burst),
		rate:     float64(burst) / refill.Seconds(),
		last:     time.Now(),
	}
}

func (fl *frameLimiter) allow() bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(fl.last).Seconds(); elapsed > 0 {
		fl.tokens += elapsed * fl.rate
		if fl.tokens > fl.capacity {
			fl.tokens = fl.capacity
		}
	}
	fl.last = now

	if fl.tokens < 1 {
		return false
	}

	fl.tokens--
	return true
}
