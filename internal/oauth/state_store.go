package oauth

import (
	"sync"
	"time"

	"nebula-gateway/pkg/logging"
	pkgoauth "nebula-gateway/pkg/oauth"
	pkgstrings "nebula-gateway/pkg/strings"
)

// DefaultStateTTL is how long a pending authorization waits for its callback.
const DefaultStateTTL = 15 * time.Minute

// PendingAuthorization is an authorization request that has been handed to
// the browser and not yet completed. It is removed exactly once.
type PendingAuthorization struct {
	State string
	// CodeVerifier is empty when PKCE is disabled.
	CodeVerifier string
	TenantID     string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// StoreOption configures StateStore and TokenStore.
type StoreOption func(*storeOptions)

type storeOptions struct {
	now    func() time.Time
	buffer time.Duration
}

// WithClock sets the time source. Tests use it to move time forward.
func WithClock(now func() time.Time) StoreOption {
	return func(o *storeOptions) {
		o.now = now
	}
}

// WithExpiryBuffer sets how long before expiry a cached token stops being
// returned. Only TokenStore uses it.
func WithExpiryBuffer(buffer time.Duration) StoreOption {
	return func(o *storeOptions) {
		o.buffer = buffer
	}
}

func applyStoreOptions(opts []StoreOption) storeOptions {
	o := storeOptions{
		now:    time.Now,
		buffer: pkgoauth.DefaultExpiryBuffer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// StateStore provides thread-safe storage for pending authorizations keyed
// by their state parameter.
type StateStore struct {
	mu      sync.Mutex
	pending map[string]*PendingAuthorization

	ttl time.Duration
	now func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
	cleanupOnce sync.Once
}

// NewStateStore creates a state store whose entries live for ttl.
// A non-positive ttl means DefaultStateTTL.
func NewStateStore(ttl time.Duration, opts ...StoreOption) *StateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	o := applyStoreOptions(opts)

	return &StateStore{
		pending:     make(map[string]*PendingAuthorization),
		ttl:         ttl,
		now:         o.now,
		stopCleanup: make(chan struct{}),
	}
}

// TTL returns the authorization window.
func (ss *StateStore) TTL() time.Duration {
	return ss.ttl
}

// Create generates a fresh state for tenantID, stores it with codeVerifier,
// and returns the stored record.
func (ss *StateStore) Create(tenantID, codeVerifier string) (*PendingAuthorization, error) {
	state, err := pkgoauth.GenerateState()
	if err != nil {
		return nil, err
	}

	now := ss.now()
	p := &PendingAuthorization{
		State:        state,
		CodeVerifier: codeVerifier,
		TenantID:     tenantID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ss.ttl),
	}

	ss.Put(p)
	return p, nil
}

// Put stores p under p.State. Missing timestamps are filled in from the
// store's clock and TTL.
func (ss *StateStore) Put(p *PendingAuthorization) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = ss.now()
	}
	if p.ExpiresAt.IsZero() {
		p.ExpiresAt = p.CreatedAt.Add(ss.ttl)
	}

	ss.mu.Lock()
	ss.pending[p.State] = p
	ss.mu.Unlock()

	logging.Debug("OAuth", "Stored pending authorization state=%s tenant=%s", pkgstrings.TruncateID(p.State), p.TenantID)
}

// Consume removes and returns the pending authorization for state.
//
// Lookup and removal happen under one lock, so when several callers race on
// the same state exactly one receives it; the rest get ErrInvalidState. An
// entry found past its expiry is removed and reported as ErrExpiredState.
func (ss *StateStore) Consume(state string) (*PendingAuthorization, error) {
	ss.mu.Lock()
	p, ok := ss.pending[state]
	if ok {
		delete(ss.pending, state)
	}
	ss.mu.Unlock()

	if !ok {
		logging.Warn("OAuth", "Unknown or already used state=%s", pkgstrings.TruncateID(state))
		return nil, pkgoauth.ErrInvalidState
	}

	if ss.now().After(p.ExpiresAt) {
		logging.Warn("OAuth", "State expired state=%s age=%v", pkgstrings.TruncateID(state), ss.now().Sub(p.CreatedAt))
		return nil, pkgoauth.ErrExpiredState
	}

	return p, nil
}

// Count returns the number of pending authorizations, expired ones included.
func (ss *StateStore) Count() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.pending)
}

// StartCleanup removes expired entries every interval until Stop is called.
// Expiry is enforced by Consume regardless; this only bounds memory.
func (ss *StateStore) StartCleanup(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ss.cleanupOnce.Do(func() {
		go ss.cleanupLoop(interval)
	})
}

// Stop stops the background cleanup goroutine. It is safe to call more than once.
func (ss *StateStore) Stop() {
	ss.stopOnce.Do(func() {
		close(ss.stopCleanup)
	})
}

func (ss *StateStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ss.cleanup()
		case <-ss.stopCleanup:
			return
		}
	}
}

// cleanup removes all expired entries and returns how many were removed.
func (ss *StateStore) cleanup() int {
	now := ss.now()

	ss.mu.Lock()
	defer ss.mu.Unlock()

	count := 0
	for state, p := range ss.pending {
		if now.After(p.ExpiresAt) {
			delete(ss.pending, state)
			count++
		}
	}

	if count > 0 {
		logging.Debug("OAuth", "Cleaned up %d expired authorization states", count)
	}
	return count
}
