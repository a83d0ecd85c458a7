package ratelimiter

import (
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	bucketKeyPrefix   = "rl:bucket:"
	lastFillKeyPrefix = "rl:fill:"
)

// Limiter guards the REST surface. Websocket events use FixedWindowRateLimiter.
type Limiter interface {
	Allow(sourceKey string) bool
	GetSourceKey(r *http.Request) string
	Remaining(sourceKey string) int
	GetMaxBurst() int
}

type TokenBucket struct {
	maxRatePerMillisecond float64
	maxBurst              int
	cache                 GetterSetter
	cacheTTL              time.Duration
	sourceHeaderKey       string
	now                   func() time.Time
	locks                 sync.Map // map[string]*sync.Mutex
}

type bucketState struct {
	tokens   int
	lastFill int64 // Unix milliseconds
}

type Options struct {
	MaxRatePerSecond int
	MaxBurst         int
	Cache            GetterSetter
	CacheTTL         time.Duration
	// SourceHeaderKey names a header set by a trusted proxy. Empty keys on the
	// remote address only.
	SourceHeaderKey string
	Now             func() time.Time
}

func New(options Options) *TokenBucket {
	if options.Now == nil {
		options.Now = time.Now
	}
	if options.Cache == nil {
		options.Cache = newInMemory(options.Now, time.Minute)
	}
	if options.CacheTTL == 0 {
		options.CacheTTL = 10 * time.Second
	}
	if options.MaxBurst <= 0 {
		options.MaxBurst = options.MaxRatePerSecond
	}

	return &TokenBucket{
		maxRatePerMillisecond: float64(options.MaxRatePerSecond) / 1000.0,
		maxBurst:              options.MaxBurst,
		cache:                 options.Cache,
		cacheTTL:              options.CacheTTL,
		sourceHeaderKey:       options.SourceHeaderKey,
		now:                   options.Now,
	}
}

func (tb *TokenBucket) getLock(sourceKey string) *sync.Mutex {
	lock, _ := tb.locks.LoadOrStore(sourceKey, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (tb *TokenBucket) getState(sourceKey string, now int64) bucketState {
	bucket, bucketErr := tb.cache.Get(bucketKeyPrefix + sourceKey)
	lastFill, fillErr := tb.cache.Get(lastFillKeyPrefix + sourceKey)

	// a miss starts a full bucket, other cache errors fail open the same way
	if bucketErr != nil || fillErr != nil {
		return bucketState{tokens: tb.maxBurst, lastFill: now}
	}

	return bucketState{tokens: int(bucket), lastFill: lastFill}
}

func (tb *TokenBucket) setState(sourceKey string, state bucketState) {
	_ = tb.cache.SetWithExpiration(bucketKeyPrefix+sourceKey, int64(state.tokens), tb.cacheTTL)
	_ = tb.cache.SetWithExpiration(lastFillKeyPrefix+sourceKey, state.lastFill, tb.cacheTTL)
}

// refillTokens adds whole tokens for the elapsed time. lastFill only advances by
// the time those tokens account for, so fractional progress is not lost.
func (tb *TokenBucket) refillTokens(state bucketState, now int64) bucketState {
	elapsed := now - state.lastFill
	if elapsed <= 0 || tb.maxRatePerMillisecond <= 0 {
		return state
	}

	added := int(float64(elapsed) * tb.maxRatePerMillisecond)
	if added <= 0 {
		return state
	}

	if state.tokens+added >= tb.maxBurst {
		return bucketState{tokens: tb.maxBurst, lastFill: now}
	}

	consumed := int64(float64(added) / tb.maxRatePerMillisecond)
	return bucketState{
		tokens:   state.tokens + added,
		lastFill: state.lastFill + consumed,
	}
}

func (tb *TokenBucket) Remaining(sourceKey string) int {
	lock := tb.getLock(sourceKey)
	lock.Lock()
	defer lock.Unlock()

	now := tb.now().UnixMilli()
	state := tb.getState(sourceKey, now)
	newState := tb.refillTokens(state, now)

	if newState != state {
		tb.setState(sourceKey, newState)
	}

	return newState.tokens
}

func (tb *TokenBucket) GetMaxBurst() int {
	return tb.maxBurst
}

func (tb *TokenBucket) Allow(sourceKey string) bool {
	lock := tb.getLock(sourceKey)
	lock.Lock()
	defer lock.Unlock()

	now := tb.now().UnixMilli()
	state := tb.getState(sourceKey, now)
	newState := tb.refillTokens(state, now)

	if newState.tokens > 0 {
		newState.tokens--
		tb.setState(sourceKey, newState)
		return true
	}

	if newState != state {
		tb.setState(sourceKey, newState)
	}

	return false
}

func (tb *TokenBucket) GetSourceKey(r *http.Request) string {
	if tb.sourceHeaderKey != "" {
		if key := r.Header.Get(tb.sourceHeaderKey); key != "" {
			return key
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (tb *TokenBucket) Close() error {
	return tb.cache.Close()
}
