package oauth

import (
	"sort"
	"strings"
	"sync"
	"time"

	"nebula-gateway/pkg/logging"
	pkgoauth "nebula-gateway/pkg/oauth"
	pkgstrings "nebula-gateway/pkg/strings"
)

// TokenStore is a thread-safe in-memory token cache keyed by session key.
//
// A token is treated as absent once now >= ExpiresAt - buffer; Get evicts it
// on the spot. There is no background sweep.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*pkgoauth.Token

	buffer time.Duration
	now    func() time.Time
}

// NewTokenStore creates an empty token store with a DefaultExpiryBuffer
// unless WithExpiryBuffer says otherwise.
func NewTokenStore(opts ...StoreOption) *TokenStore {
	o := applyStoreOptions(opts)
	return &TokenStore{
		tokens: make(map[string]*pkgoauth.Token),
		buffer: o.buffer,
		now:    o.now,
	}
}

// Put stores token under key, replacing any previous token.
func (ts *TokenStore) Put(key string, token *pkgoauth.Token) {
	if token == nil {
		return
	}

	ts.mu.Lock()
	ts.tokens[key] = token
	ts.mu.Unlock()

	logging.Debug("OAuth", "Cached token session=%s expires=%s", pkgstrings.TruncateID(key), token.ExpiresAt().Format(time.RFC3339))
}

// Get returns the token for key, or nil when there is none or it is inside
// the expiry buffer.
func (ts *TokenStore) Get(key string) *pkgoauth.Token {
	ts.mu.RLock()
	token, ok := ts.tokens[key]
	ts.mu.RUnlock()

	if !ok {
		return nil
	}

	if token.IsExpiredAt(ts.now(), ts.buffer) {
		ts.mu.Lock()
		// Only evict if no fresher token was stored meanwhile.
		if ts.tokens[key] == token {
			delete(ts.tokens, key)
		}
		ts.mu.Unlock()

		logging.Debug("OAuth", "Evicted expiring token session=%s", pkgstrings.TruncateID(key))
		return nil
	}

	return token
}

// Peek returns the stored token for key without checking expiry.
func (ts *TokenStore) Peek(key string) *pkgoauth.Token {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.tokens[key]
}

// Delete removes the token for key.
func (ts *TokenStore) Delete(key string) {
	ts.mu.Lock()
	delete(ts.tokens, key)
	ts.mu.Unlock()
}

// Count returns the number of stored tokens, expired ones included.
func (ts *TokenStore) Count() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.tokens)
}

// Keys returns the stored keys starting with prefix, sorted.
func (ts *TokenStore) Keys(prefix string) []string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	var keys []string
	for key := range ts.tokens {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
