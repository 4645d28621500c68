package http

import (
	"sync"
	"time"

	"github.com/dkeye/WatchParty/internal/app"
)

// SendRateLimiter is a sliding-window limit on outbound chat sends per client.
type SendRateLimiter struct {
	mu       sync.Mutex
	history  map[app.ClientToken][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

// NewSendRateLimiter allows limit sends per interval. A limit <= 0 disables it.
func NewSendRateLimiter(limit int, interval time.Duration) *SendRateLimiter {
	return &SendRateLimiter{
		history:  make(map[app.ClientToken][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *SendRateLimiter) Allow(token app.ClientToken) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[token]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[token] = fresh
		return false
	}
	rl.history[token] = append(fresh, now)
	return true
}

// Forget drops the history of token.
func (rl *SendRateLimiter) Forget(token app.ClientToken) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, token)
}
