package ratelimiter

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketBurstThenRefill(t *testing.T) {
	clock := newFakeClock()
	tb := New(Options{MaxRatePerSecond: 10, MaxBurst: 3, CacheTTL: time.Hour, Now: clock.Now})
	defer tb.Close()

	for i := 0; i < 3; i++ {
		require.True(t, tb.Allow("k"))
	}
	assert.False(t, tb.Allow("k"))

	// 10/s refills one token every 100ms
	clock.Advance(50 * time.Millisecond)
	assert.False(t, tb.Allow("k"))

	clock.Advance(50 * time.Millisecond)
	assert.True(t, tb.Allow("k"))
	assert.False(t, tb.Allow("k"))
}

func TestTokenBucketRefillCapsAtBurst(t *testing.T) {
	clock := newFakeClock()
	tb := New(Options{MaxRatePerSecond: 10, MaxBurst: 3, CacheTTL: time.Hour, Now: clock.Now})
	defer tb.Close()

	tb.Allow("k")
	clock.Advance(time.Minute)

	assert.Equal(t, 3, tb.Remaining("k"))
	assert.Equal(t, 3, tb.GetMaxBurst())
}

func TestTokenBucketDefaults(t *testing.T) {
	tb := New(Options{MaxRatePerSecond: 5})
	defer tb.Close()

	assert.Equal(t, 5, tb.GetMaxBurst())
	assert.Equal(t, 5, tb.Remaining("fresh"))
}

func TestTokenBucketSourceKey(t *testing.T) {
	tb := New(Options{MaxRatePerSecond: 1})
	defer tb.Close()

	r := httptest.NewRequest("GET", "/api/rooms", nil)
	r.RemoteAddr = "10.0.0.7:5555"
	assert.Equal(t, "10.0.0.7", tb.GetSourceKey(r))

	// untrusted headers are ignored unless configured
	r.Header.Set("X-Client-Key", "client-42")
	assert.Equal(t, "10.0.0.7", tb.GetSourceKey(r))

	proxied := New(Options{MaxRatePerSecond: 1, SourceHeaderKey: "X-Client-Key"})
	defer proxied.Close()
	assert.Equal(t, "client-42", proxied.GetSourceKey(r))
}

func TestInMemoryExpiry(t *testing.T) {
	clock := newFakeClock()
	im := newInMemory(clock.Now, time.Hour)
	defer im.Close()

	require.NoError(t, im.SetWithExpiration("a", 7, time.Second))
	v, err := im.Get("a")
	require.NoError(t, err)
	assert.EqualValues(t, 7, v)

	clock.Advance(2 * time.Second)
	_, err = im.Get("a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	im.removeExpired()
	assert.Empty(t, im.cache)
}
