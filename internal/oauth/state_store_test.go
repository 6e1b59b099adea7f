package oauth

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgoauth "nebula-gateway/pkg/oauth"
)

func TestStateStore_CreateAndConsume(t *testing.T) {
	clock := newFakeClock()
	ss := NewStateStore(0, WithClock(clock.Now))
	defer ss.Stop()

	assert.Equal(t, DefaultStateTTL, ss.TTL())

	p, err := ss.Create("tenant-A", "verifier-123")
	require.NoError(t, err)
	assert.Len(t, p.State, 43)
	assert.Equal(t, clock.Now().Add(15*time.Minute), p.ExpiresAt)
	assert.Equal(t, 1, ss.Count())

	got, err := ss.Consume(p.State)
	require.NoError(t, err)
	assert.Equal(t, "tenant-A", got.TenantID)
	assert.Equal(t, "verifier-123", got.CodeVerifier)
	assert.Equal(t, 0, ss.Count())
}

func TestStateStore_ConsumeIsSingleUse(t *testing.T) {
	ss := NewStateStore(DefaultStateTTL)
	defer ss.Stop()

	p, err := ss.Create("tenant-A", "")
	require.NoError(t, err)

	_, err = ss.Consume(p.State)
	require.NoError(t, err)

	_, err = ss.Consume(p.State)
	assert.ErrorIs(t, err, pkgoauth.ErrInvalidState)
}

func TestStateStore_UnknownState(t *testing.T) {
	ss := NewStateStore(DefaultStateTTL)
	defer ss.Stop()

	for _, state := range []string{"never-issued", "", "a-much-longer-state-value-nobody-generated"} {
		_, err := ss.Consume(state)
		assert.ErrorIs(t, err, pkgoauth.ErrInvalidState, "state %q", state)
	}
}

func TestStateStore_Expiry(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr error
	}{
		{"well within window", time.Minute, nil},
		{"one second before window closes", 14*time.Minute + 59*time.Second, nil},
		{"exactly at expiry", 15 * time.Minute, nil},
		{"one second past window", 15*time.Minute + time.Second, pkgoauth.ErrExpiredState},
		{"long after", 2 * time.Hour, pkgoauth.ErrExpiredState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			ss := NewStateStore(DefaultStateTTL, WithClock(clock.Now))
			defer ss.Stop()

			p, err := ss.Create("tenant-A", "v")
			require.NoError(t, err)

			clock.Advance(tt.elapsed)
			_, err = ss.Consume(p.State)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			// Either way the entry is gone.
			assert.Equal(t, 0, ss.Count())
			_, err = ss.Consume(p.State)
			assert.ErrorIs(t, err, pkgoauth.ErrInvalidState)
		})
	}
}

func TestStateStore_ConcurrentConsumeHasOneWinner(t *testing.T) {
	ss := NewStateStore(DefaultStateTTL)
	defer ss.Stop()

	for round := 0; round < 20; round++ {
		p, err := ss.Create("tenant-A", "v")
		require.NoError(t, err)

		const workers = 16
		var (
			wg      sync.WaitGroup
			start   = make(chan struct{})
			wins    atomic.Int32
			invalid atomic.Int32
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := ss.Consume(p.State)
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, pkgoauth.ErrInvalidState):
					invalid.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(workers-1), invalid.Load())
	}
}

func TestStateStore_UniqueStates(t *testing.T) {
	ss := NewStateStore(DefaultStateTTL)
	defer ss.Stop()

	const n = 10000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		p, err := ss.Create("tenant-A", "")
		require.NoError(t, err)
		_, dup := seen[p.State]
		require.False(t, dup, "duplicate state after %d calls", i)
		seen[p.State] = struct{}{}
	}
	assert.Equal(t, n, ss.Count())
}

func TestStateStore_PutFillsTimestamps(t *testing.T) {
	clock := newFakeClock()
	ss := NewStateStore(5*time.Minute, WithClock(clock.Now))
	defer ss.Stop()

	p := &PendingAuthorization{State: "s1", TenantID: "tenant-A"}
	ss.Put(p)

	assert.Equal(t, clock.Now(), p.CreatedAt)
	assert.Equal(t, clock.Now().Add(5*time.Minute), p.ExpiresAt)
}

func TestStateStore_Cleanup(t *testing.T) {
	clock := newFakeClock()
	ss := NewStateStore(DefaultStateTTL, WithClock(clock.Now))
	defer ss.Stop()

	_, err := ss.Create("tenant-A", "")
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)
	fresh, err := ss.Create("tenant-B", "")
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, ss.cleanup())
	assert.Equal(t, 1, ss.Count())

	_, err = ss.Consume(fresh.State)
	assert.NoError(t, err)
}

func TestStateStore_StartCleanupAndStop(t *testing.T) {
	clock := newFakeClock()
	ss := NewStateStore(time.Minute, WithClock(clock.Now))

	_, err := ss.Create("tenant-A", "")
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	ss.StartCleanup(10 * time.Millisecond)
	ss.StartCleanup(10 * time.Millisecond)

	assert.Eventually(t, func() bool { return ss.Count() == 0 }, time.Second, 10*time.Millisecond)

	ss.Stop()
	ss.Stop()
}
