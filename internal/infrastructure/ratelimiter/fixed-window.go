package ratelimiter

import (
	"sync"
	"time"
)

const (
	DefaultWindow      = 60 * time.Second
	DefaultWindowLimit = 100
)

// FixedWindowRateLimiter counts events per key in fixed windows that open on
// the first event after the previous window closed.
type FixedWindowRateLimiter struct {
	counts      sync.Map // string -> *clientData
	limit       int
	window      time.Duration
	now         func() time.Time
	cleanupTick *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

type clientData struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

type FixedWindowOption func(*FixedWindowRateLimiter)

// WithClock replaces time.Now, used by tests to drive window boundaries.
func WithClock(now func() time.Time) FixedWindowOption {
	return func(rl *FixedWindowRateLimiter) {
		rl.now = now
	}
}

func NewFixedWindowRateLimiter(limit int, window time.Duration, opts ...FixedWindowOption) *FixedWindowRateLimiter {
	if limit <= 0 {
		limit = DefaultWindowLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}

	rl := &FixedWindowRateLimiter{
		limit:       limit,
		window:      window,
		now:         time.Now,
		cleanupTick: time.NewTicker(window),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rl)
	}

	go rl.startCleanup()
	return rl
}

// Allow records one event for key. When the window is exhausted it returns
// false together with the time left until the window resets.
func (rl *FixedWindowRateLimiter) Allow(key string) (bool, time.Duration) {
	now := rl.now()

	val, _ := rl.counts.LoadOrStore(key, &clientData{})
	data := val.(*clientData)

	data.mu.Lock()
	defer data.mu.Unlock()

	if data.resetAt.IsZero() || now.After(data.resetAt) {
		data.count = 0
		data.resetAt = now.Add(rl.window)
	}

	if data.count >= rl.limit {
		return false, data.resetAt.Sub(now)
	}

	data.count++
	return true, 0
}

// Forget drops all state for key. Safe to call for unknown keys.
func (rl *FixedWindowRateLimiter) Forget(key string) {
	rl.counts.Delete(key)
}

func (rl *FixedWindowRateLimiter) Limit() int {
	return rl.limit
}

func (rl *FixedWindowRateLimiter) startCleanup() {
	for {
		select {
		case <-rl.cleanupTick.C:
			rl.cleanup()
		case <-rl.done:
			return
		}
	}
}

func (rl *FixedWindowRateLimiter) cleanup() {
	now := rl.now()
	rl.counts.Range(func(key, value any) bool {
		data := value.(*clientData)
		data.mu.Lock()
		expired := !data.resetAt.IsZero() && now.After(data.resetAt)
		data.mu.Unlock()
		if expired {
			rl.counts.Delete(key)
		}
		return true
	})
}

func (rl *FixedWindowRateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.done)
		rl.cleanupTick.Stop()
	})
}
