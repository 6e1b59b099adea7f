package oauth

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	pkgoauth "nebula-gateway/pkg/oauth"
)

func tokenExpiringIn(clock *fakeClock, d time.Duration) *pkgoauth.Token {
	return &pkgoauth.Token{
		AccessToken: "tok",
		TokenType:   "Bearer",
		AcquiredAt:  clock.Now(),
		ExpiresIn:   int(d / time.Second),
	}
}

func TestTokenStore_PutGetRoundTrip(t *testing.T) {
	clock := newFakeClock()
	ts := NewTokenStore(WithClock(clock.Now))

	token := tokenExpiringIn(clock, time.Hour)
	ts.Put("sso:tenant-A:1", token)

	assert.Equal(t, token, ts.Get("sso:tenant-A:1"))
	assert.Equal(t, 1, ts.Count())
}

func TestTokenStore_InsideBufferIsAbsent(t *testing.T) {
	clock := newFakeClock()
	ts := NewTokenStore(WithClock(clock.Now))

	ts.Put("k", tokenExpiringIn(clock, 30*time.Second))

	assert.Nil(t, ts.Get("k"))
	assert.Equal(t, 0, ts.Count(), "expiring token should be evicted on read")
}

func TestTokenStore_BufferBoundary(t *testing.T) {
	clock := newFakeClock()
	ts := NewTokenStore(WithClock(clock.Now))

	ts.Put("k", tokenExpiringIn(clock, 120*time.Second))

	clock.Advance(59 * time.Second)
	assert.NotNil(t, ts.Get("k"), "61s left is outside the buffer")

	clock.Advance(time.Second)
	assert.Nil(t, ts.Get("k"), "60s left is inside the buffer")
}

func TestTokenStore_CustomBuffer(t *testing.T) {
	clock := newFakeClock()
	ts := NewTokenStore(WithClock(clock.Now), WithExpiryBuffer(0))

	ts.Put("k", tokenExpiringIn(clock, 30*time.Second))
	assert.NotNil(t, ts.Get("k"))
}

func TestTokenStore_PeekIgnoresExpiry(t *testing.T) {
	clock := newFakeClock()
	ts := NewTokenStore(WithClock(clock.Now))

	token := tokenExpiringIn(clock, 10*time.Second)
	ts.Put("k", token)

	assert.Equal(t, token, ts.Peek("k"))
	assert.Equal(t, 1, ts.Count())
}

func TestTokenStore_DeleteAndMissing(t *testing.T) {
	clock := newFakeClock()
	ts := NewTokenStore(WithClock(clock.Now))

	assert.Nil(t, ts.Get("missing"))

	ts.Put("k", tokenExpiringIn(clock, time.Hour))
	ts.Delete("k")
	assert.Nil(t, ts.Get("k"))

	ts.Put("nil", nil)
	assert.Equal(t, 0, ts.Count())
}

func TestTokenStore_Keys(t *testing.T) {
	clock := newFakeClock()
	ts := NewTokenStore(WithClock(clock.Now))

	ts.Put("sso:b:2", tokenExpiringIn(clock, time.Hour))
	ts.Put("sso:a:1", tokenExpiringIn(clock, time.Hour))
	ts.Put("cc:a", tokenExpiringIn(clock, time.Hour))

	assert.Equal(t, []string{"sso:a:1", "sso:b:2"}, ts.Keys("sso:"))
	assert.Len(t, ts.Keys(""), 3)
}

func TestTokenStore_Concurrent(t *testing.T) {
	clock := newFakeClock()
	ts := NewTokenStore(WithClock(clock.Now))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ts.Put("shared", tokenExpiringIn(clock, time.Hour))
		}()
		go func() {
			defer wg.Done()
			_ = ts.Get("shared")
		}()
	}
	wg.Wait()

	assert.NotNil(t, ts.Get("shared"))
}
