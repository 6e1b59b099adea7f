package oauth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgoauth "nebula-gateway/pkg/oauth"
)

const (
	ssoKeyPrefix = "sso:"
	ccKeyPrefix  = "cc:"

	sessionIDBytes = 6
)

// Session is a cached token together with the key it is stored under.
type Session struct {
	Key      string          `json:"sessionKey"`
	TenantID string          `json:"tenantId"`
	Token    *pkgoauth.Token `json:"-"`
}

// SessionInfo describes a cached session without exposing its token. The
// session key is a bearer capability and is never serialized; ID identifies
// the session in listings instead.
type SessionInfo struct {
	Key         string    `json:"-" yaml:"-"`
	ID          string    `json:"id" yaml:"id"`
	TenantID    string    `json:"tenantId" yaml:"tenantId"`
	Kind        string    `json:"kind" yaml:"kind"`
	ExpiresAt   time.Time `json:"expiresAt" yaml:"expiresAt"`
	Scope       string    `json:"scope,omitempty" yaml:"scope,omitempty"`
	Refreshable bool      `json:"refreshable" yaml:"refreshable"`
}

// NewSSOSessionKey returns a fresh key for an interactive login. It always
// contains the tenant id so logs and status output can attribute it.
func NewSSOSessionKey(tenantID string) string {
	return ssoKeyPrefix + tenantID + ":" + uuid.NewString()
}

// SessionID returns a short fingerprint of key that can be shown in listings
// without granting access to the session.
func SessionID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:sessionIDBytes])
}

// ClientCredentialsKey is the cache key for a tenant's client_credentials token.
func ClientCredentialsKey(tenantID string) string {
	return ccKeyPrefix + tenantID
}

// ParseSessionKey returns the kind ("sso" or "cc") and tenant id encoded in key.
func ParseSessionKey(key string) (kind, tenantID string, ok bool) {
	switch {
	case strings.HasPrefix(key, ssoKeyPrefix):
		rest := strings.TrimPrefix(key, ssoKeyPrefix)
		idx := strings.LastIndex(rest, ":")
		if idx <= 0 {
			return "", "", false
		}
		return "sso", rest[:idx], true
	case strings.HasPrefix(key, ccKeyPrefix):
		return "cc", strings.TrimPrefix(key, ccKeyPrefix), true
	default:
		return "", "", false
	}
}
