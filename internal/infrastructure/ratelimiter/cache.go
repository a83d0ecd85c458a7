package ratelimiter

import (
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// GetterSetter is the storage behind the token bucket limiter.
type GetterSetter interface {
	Get(key string) (int64, error)
	SetWithExpiration(key string, value int64, expiration time.Duration) error
	Close() error
}
