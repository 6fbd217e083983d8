// Package ratelimit admits or rejects requests against a fixed quota per
// fixed time window. Each caller key owns its own window; the Limiter
// interface lets the counter live in process memory or in Redis.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// GlobalKey is the bucket shared by callers without a resolvable identity.
const GlobalKey = "global"

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed. A non-nil
// error means the quota backend failed and no decision was made.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Config holds rate limiter configuration
type Config struct {
	Requests        int
	Window          time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Requests:        100,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.Requests <= 0 {
		c.Requests = d.Requests
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	return c
}

// MemoryLimiter keeps one fixed-window counter per key in process memory.
type MemoryLimiter struct {
	mu           sync.Mutex
	clients      map[string]*window
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	now          func() time.Time

	limit           int
	window          time.Duration
	cleanupInterval time.Duration
}

type window struct {
	start time.Time
	count int
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter creates a limiter and starts its cleanup goroutine.
// Call Stop to release it.
func NewMemoryLimiter(config Config) *MemoryLimiter {
	config = config.normalized()
	rl := &MemoryLimiter{
		clients:         make(map[string]*window),
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
		limit:           config.Requests,
		window:          config.Window,
		cleanupInterval: config.CleanupInterval,
	}
	go rl.startCleanup()
	return rl
}

// Allow counts one request for key. Check and increment happen under one
// lock, so concurrent callers never admit more than the quota per window.
func (rl *MemoryLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, exists := rl.clients[key]
	if !exists || now.Sub(w.start) >= rl.window {
		w = &window{start: now}
		rl.clients[key] = w
	}

	reset := w.start.Add(rl.window).Sub(now)
	if w.count >= rl.limit {
		return Decision{Allowed: false, Limit: rl.limit, Remaining: 0, ResetAfter: reset}, nil
	}
	w.count++
	return Decision{Allowed: true, Limit: rl.limit, Remaining: rl.limit - w.count, ResetAfter: reset}, nil
}

// startCleanup runs periodic cleanup to remove expired windows
func (rl *MemoryLimiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *MemoryLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, w := range rl.clients {
		if now.Sub(w.start) >= rl.window {
			delete(rl.clients, key)
		}
	}
}

// ActiveClients returns the number of currently tracked keys
func (rl *MemoryLimiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop gracefully shuts down the cleanup goroutine
func (rl *MemoryLimiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}
