package oauth

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenSource returns an oauth2.TokenSource backed by the tenant's cached
// client_credentials token, so HTTP clients can use oauth2.Transport.
func (m *Manager) TokenSource(ctx context.Context, tenantID string) oauth2.TokenSource {
	return &clientCredentialsSource{ctx: ctx, manager: m, tenantID: tenantID}
}

// SessionTokenSource returns an oauth2.TokenSource for a cached session,
// refreshing it when it nears expiry.
func (m *Manager) SessionTokenSource(ctx context.Context, key string) oauth2.TokenSource {
	return &sessionSource{ctx: ctx, manager: m, key: key}
}

type clientCredentialsSource struct {
	ctx      context.Context
	manager  *Manager
	tenantID string
}

func (s *clientCredentialsSource) Token() (*oauth2.Token, error) {
	token, err := s.manager.ClientCredentialsToken(s.ctx, s.tenantID)
	if err != nil {
		return nil, err
	}
	return token.ToOAuth2Token(), nil
}

type sessionSource struct {
	ctx     context.Context
	manager *Manager
	key     string
}

func (s *sessionSource) Token() (*oauth2.Token, error) {
	token, err := s.manager.SessionToken(s.ctx, s.key)
	if err != nil {
		return nil, err
	}
	return token.ToOAuth2Token(), nil
}

var (
	_ oauth2.TokenSource = (*clientCredentialsSource)(nil)
	_ oauth2.TokenSource = (*sessionSource)(nil)
)
