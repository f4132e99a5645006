package orch

import (
	"context"
	"sync"
	"time"
)

// LoginLimiter allows at most limit attempts per key inside a sliding window.
type LoginLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewLoginLimiter(limit int, interval time.Duration) *LoginLimiter {
	return &LoginLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *LoginLimiter) Allow(key string) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	fresh := rl.freshLocked(key, now)
	if len(fresh) >= rl.limit {
		rl.history[key] = fresh
		return false
	}
	rl.history[key] = append(fresh, now)
	return true
}

// Reset forgets key, e.g. after a successful login.
func (rl *LoginLimiter) Reset(key string) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	delete(rl.history, key)
	rl.mu.Unlock()
}

// Prune drops keys without attempts in the current window.
func (rl *LoginLimiter) Prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key := range rl.history {
		if fresh := rl.freshLocked(key, now); len(fresh) == 0 {
			delete(rl.history, key)
		} else {
			rl.history[key] = fresh
		}
	}
}

func (rl *LoginLimiter) freshLocked(key string, now time.Time) []time.Time {
	windowStart := now.Add(-rl.interval)
	attempts := rl.history[key]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}

// Run prunes stale keys once per window until ctx is done.
func (rl *LoginLimiter) Run(ctx context.Context) {
	if rl.interval <= 0 {
		return
	}
	t := time.NewTicker(rl.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rl.Prune()
		}
	}
}
