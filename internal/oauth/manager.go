package oauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"nebula-gateway/internal/config"
	"nebula-gateway/pkg/logging"
	pkgoauth "nebula-gateway/pkg/oauth"
	pkgstrings "nebula-gateway/pkg/strings"
)

// TenantHeader carries the tenant id on requests to the identity provider and
// the Fenergo API.
const TenantHeader = "X-Tenant-Id"

// Manager is the auth session manager. It acquires tokens with the
// client_credentials and password grants, drives the authorization code flow
// with PKCE, refreshes tokens, and caches the results in memory.
type Manager struct {
	credentials pkgoauth.ClientCredentials
	ssoScopes   []string
	redirectURI string
	usePKCE     bool
	endpoints   Endpoints

	client *pkgoauth.Client
	states *StateStore
	tokens *TokenStore
	now    func() time.Time

	// ccGroup collapses concurrent client_credentials fetches per tenant.
	ccGroup singleflight.Group

	auditHook func(logging.AuditEvent)
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClient sets the token endpoint client.
func WithClient(client *pkgoauth.Client) ManagerOption {
	return func(m *Manager) {
		m.client = client
	}
}

// WithEndpoints overrides the endpoints derived from configuration, for
// example with the result of ResolveEndpoints.
func WithEndpoints(endpoints Endpoints) ManagerOption {
	return func(m *Manager) {
		m.endpoints = endpoints
	}
}

// WithStateStore sets the pending authorization store.
func WithStateStore(states *StateStore) ManagerOption {
	return func(m *Manager) {
		m.states = states
	}
}

// WithTokenStore sets the token cache.
func WithTokenStore(tokens *TokenStore) ManagerOption {
	return func(m *Manager) {
		m.tokens = tokens
	}
}

// WithManagerClock sets the time source used for authorization expiry reports.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// WithAuditHook registers fn to receive every audit event after it is logged.
func WithAuditHook(fn func(logging.AuditEvent)) ManagerOption {
	return func(m *Manager) {
		m.auditHook = fn
	}
}

// NewManager creates a manager from cfg. Stores and the HTTP client default
// to fresh instances configured from cfg.
func NewManager(cfg config.OAuthConfig, opts ...ManagerOption) *Manager {
	m := &Manager{
		credentials: pkgoauth.ClientCredentials{
			ClientID:     cfg.ClientID,
			ClientSecret: pkgoauth.NewRedactedToken(cfg.ClientSecret),
			Scopes:       cfg.Scopes,
		},
		ssoScopes:   cfg.SSOScopeList(),
		redirectURI: cfg.RedirectURI,
		usePKCE:     cfg.UsePKCE,
		endpoints:   StaticEndpoints(cfg),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.client == nil {
		m.client = pkgoauth.NewClient(pkgoauth.WithTimeout(cfg.HTTPTimeout), pkgoauth.WithLogger(logging.Logger()))
	}
	if m.states == nil {
		m.states = NewStateStore(cfg.StateTTL, WithClock(m.now))
	}
	if m.tokens == nil {
		m.tokens = NewTokenStore(WithClock(m.now))
	}

	logging.Info("OAuth", "Auth session manager initialized (clientID=%s, token=%s, pkce=%t, secret=%t)",
		m.credentials.ClientID, m.endpoints.Token, m.usePKCE, !m.credentials.ClientSecret.IsEmpty())

	return m
}

// Endpoints returns the identity provider endpoints in use.
func (m *Manager) Endpoints() Endpoints {
	return m.endpoints
}

// States returns the pending authorization store.
func (m *Manager) States() *StateStore {
	return m.states
}

// Tokens returns the token cache.
func (m *Manager) Tokens() *TokenStore {
	return m.tokens
}

// AcquireRequest asks for a token by a non-interactive grant.
type AcquireRequest struct {
	Grant    pkgoauth.GrantType
	TenantID string
	// Username and Password are used by the password grant only. They are
	// sent once and never stored.
	Username string
	Password string
}

// AcquireToken requests a token with the client_credentials or password
// grant. The result is not cached; see ClientCredentialsToken.
func (m *Manager) AcquireToken(ctx context.Context, req AcquireRequest) (*pkgoauth.Token, error) {
	form := url.Values{}

	switch req.Grant {
	case pkgoauth.GrantClientCredentials:
	case pkgoauth.GrantPassword:
		if req.Username == "" {
			return nil, pkgoauth.NewValidationError("username", "is required for the password grant")
		}
		if req.Password == "" {
			return nil, pkgoauth.NewValidationError("password", "is required for the password grant")
		}
		form.Set("username", req.Username)
		form.Set("password", req.Password)
	default:
		return nil, pkgoauth.NewValidationError("grant", "must be client_credentials or password, got "+string(req.Grant))
	}

	if scope := m.credentials.Scope(); scope != "" {
		form.Set("scope", scope)
	}
	m.addClientAuth(form)

	token, err := m.client.RequestToken(ctx, m.endpoints.Token, req.Grant, form, tenantHeader(req.TenantID))
	if err != nil {
		logging.Error("OAuth", err, "Token acquisition failed grant=%s tenant=%s", req.Grant, req.TenantID)
		m.audit(logging.AuditEvent{
			Action:   "token_acquire",
			Outcome:  "failure",
			TenantID: req.TenantID,
			Grant:    string(req.Grant),
			Detail:   pkgoauth.ErrorKind(err),
		})
		return nil, err
	}

	m.audit(logging.AuditEvent{
		Action:   "token_acquire",
		Outcome:  "success",
		TenantID: req.TenantID,
		Grant:    string(req.Grant),
	})
	return token, nil
}

// ClientCredentialsToken returns the cached client_credentials token for
// tenantID, acquiring and caching a new one when there is none or it is
// about to expire. Concurrent callers for one tenant share a single request,
// which is not cancelled when the caller that started it goes away.
func (m *Manager) ClientCredentialsToken(ctx context.Context, tenantID string) (*pkgoauth.Token, error) {
	key := ClientCredentialsKey(tenantID)
	if token := m.tokens.Get(key); token != nil {
		return token, nil
	}

	flightCtx := context.WithoutCancel(ctx)
	result, err, shared := m.ccGroup.Do(key, func() (interface{}, error) {
		if token := m.tokens.Get(key); token != nil {
			return token, nil
		}

		token, err := m.AcquireToken(flightCtx, AcquireRequest{
			Grant:    pkgoauth.GrantClientCredentials,
			TenantID: tenantID,
		})
		if err != nil {
			return nil, err
		}

		m.tokens.Put(key, token)
		return token, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		logging.Debug("OAuth", "Shared in-flight client_credentials request tenant=%s", tenantID)
	}
	return result.(*pkgoauth.Token), nil
}

// AuthorizationRequest is what BeginAuthorization hands back: the URL to open
// in a browser and the values needed to complete the login.
type AuthorizationRequest struct {
	AuthorizationURL string    `json:"authorizationUrl"`
	State            string    `json:"state"`
	CodeVerifier     string    `json:"-"`
	CodeChallenge    string    `json:"-"`
	TenantID         string    `json:"tenantId"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

// BeginAuthorization starts an interactive login for tenantID. The returned
// URL always carries prompt=login so the identity provider re-authenticates.
func (m *Manager) BeginAuthorization(tenantID string) (*AuthorizationRequest, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, pkgoauth.NewValidationError("tenantId", "is required")
	}

	var pkce *pkgoauth.PKCEChallenge
	if m.usePKCE {
		var err error
		pkce, err = pkgoauth.GeneratePKCE()
		if err != nil {
			return nil, err
		}
	}

	verifier := ""
	if pkce != nil {
		verifier = pkce.CodeVerifier
	}

	pending, err := m.states.Create(tenantID, verifier)
	if err != nil {
		return nil, err
	}

	authURL, err := pkgoauth.BuildAuthorizationURL(pkgoauth.AuthorizationURLParams{
		Endpoint:    m.endpoints.Authorization,
		ClientID:    m.credentials.ClientID,
		RedirectURI: m.redirectURI,
		Scopes:      m.ssoScopes,
		State:       pending.State,
		PKCE:        pkce,
		Prompt:      "login",
	})
	if err != nil {
		// Drop the pending entry; the caller never saw its state.
		_, _ = m.states.Consume(pending.State)
		return nil, err
	}

	req := &AuthorizationRequest{
		AuthorizationURL: authURL,
		State:            pending.State,
		CodeVerifier:     verifier,
		TenantID:         tenantID,
		ExpiresAt:        pending.ExpiresAt,
	}
	if pkce != nil {
		req.CodeChallenge = pkce.CodeChallenge
	}

	logging.Info("OAuth", "Started authorization tenant=%s state=%s", tenantID, pkgstrings.TruncateID(pending.State))
	return req, nil
}

// Callback holds the parameters the identity provider redirected back with.
type Callback struct {
	Code  string
	State string
	// CodeVerifier, when set, is sent instead of the stored verifier.
	CodeVerifier     string
	Error            string
	ErrorDescription string
}

// CompleteAuthorization finishes a login started by BeginAuthorization. It
// consumes the state, exchanges the code, and caches the token under a new
// session key.
//
// An identity provider error is returned before the state is looked up, so
// the pending entry stays until it expires.
func (m *Manager) CompleteAuthorization(ctx context.Context, cb Callback) (*Session, error) {
	if cb.Error != "" {
		logging.Warn("OAuth", "Identity provider returned error=%s", cb.Error)
		return nil, &pkgoauth.IdentityProviderError{Code: cb.Error, Description: cb.ErrorDescription}
	}
	if cb.Code == "" {
		return nil, pkgoauth.NewValidationError("code", "is required")
	}
	if cb.State == "" {
		return nil, pkgoauth.NewValidationError("state", "is required")
	}
	if cb.CodeVerifier != "" && !pkgoauth.ValidVerifier(cb.CodeVerifier) {
		return nil, pkgoauth.NewValidationError("codeVerifier", "must be 43-128 unreserved characters")
	}

	pending, err := m.states.Consume(cb.State)
	if err != nil {
		m.audit(logging.AuditEvent{
			Action:  "login_complete",
			Outcome: "failure",
			Grant:   string(pkgoauth.GrantAuthorizationCode),
			Detail:  pkgoauth.ErrorKind(err),
		})
		return nil, err
	}

	verifier := pending.CodeVerifier
	if cb.CodeVerifier != "" {
		verifier = cb.CodeVerifier
	}

	form := url.Values{}
	form.Set("code", cb.Code)
	form.Set("redirect_uri", m.redirectURI)
	if verifier != "" {
		form.Set("code_verifier", verifier)
	}
	m.addClientAuth(form)

	token, err := m.client.RequestToken(ctx, m.endpoints.Token, pkgoauth.GrantAuthorizationCode, form, tenantHeader(pending.TenantID))
	if err != nil {
		logging.Error("OAuth", err, "Code exchange failed tenant=%s", pending.TenantID)
		m.audit(logging.AuditEvent{
			Action:   "login_complete",
			Outcome:  "failure",
			TenantID: pending.TenantID,
			Grant:    string(pkgoauth.GrantAuthorizationCode),
			Detail:   pkgoauth.ErrorKind(err),
		})
		return nil, err
	}

	session := &Session{
		Key:      NewSSOSessionKey(pending.TenantID),
		TenantID: pending.TenantID,
		Token:    token,
	}
	m.tokens.Put(session.Key, token)

	m.audit(logging.AuditEvent{
		Action:     "login_complete",
		Outcome:    "success",
		TenantID:   pending.TenantID,
		SessionKey: session.Key,
		Grant:      string(pkgoauth.GrantAuthorizationCode),
	})
	return session, nil
}

// RefreshToken exchanges refreshToken for a new token. If the identity
// provider does not rotate the refresh token, the old one is kept on the
// result.
func (m *Manager) RefreshToken(ctx context.Context, refreshToken string) (*pkgoauth.Token, error) {
	return m.refresh(ctx, refreshToken, "")
}

func (m *Manager) refresh(ctx context.Context, refreshToken, tenantID string) (*pkgoauth.Token, error) {
	if refreshToken == "" {
		return nil, pkgoauth.NewValidationError("refreshToken", "is required")
	}

	form := url.Values{}
	form.Set("refresh_token", refreshToken)
	m.addClientAuth(form)

	token, err := m.client.RequestToken(ctx, m.endpoints.Token, pkgoauth.GrantRefreshToken, form, tenantHeader(tenantID))
	if err != nil {
		logging.Error("OAuth", err, "Token refresh failed tenant=%s", tenantID)
		return nil, err
	}

	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	return token, nil
}

// RefreshSession refreshes the token cached under key, even one already
// inside the expiry buffer, and replaces the cache entry.
func (m *Manager) RefreshSession(ctx context.Context, key string) (*Session, error) {
	current := m.tokens.Peek(key)
	if current == nil {
		return nil, pkgoauth.NewValidationError("sessionKey", "does not name a cached session")
	}
	return m.refreshSession(ctx, key, current)
}

func (m *Manager) refreshSession(ctx context.Context, key string, current *pkgoauth.Token) (*Session, error) {
	if current.RefreshToken == "" {
		return nil, pkgoauth.NewValidationError("sessionKey", "session has no refresh token")
	}

	_, tenantID, _ := ParseSessionKey(key)

	token, err := m.refresh(ctx, current.RefreshToken, tenantID)
	if err != nil {
		var oauthErr *pkgoauth.OAuthError
		if errors.As(err, &oauthErr) {
			// The refresh token was rejected; the session cannot recover.
			m.tokens.Delete(key)
		}
		m.audit(logging.AuditEvent{
			Action:     "session_refresh",
			Outcome:    "failure",
			TenantID:   tenantID,
			SessionKey: key,
			Grant:      string(pkgoauth.GrantRefreshToken),
			Detail:     pkgoauth.ErrorKind(err),
		})
		return nil, err
	}

	m.tokens.Put(key, token)
	m.audit(logging.AuditEvent{
		Action:     "session_refresh",
		Outcome:    "success",
		TenantID:   tenantID,
		SessionKey: key,
		Grant:      string(pkgoauth.GrantRefreshToken),
	})

	return &Session{Key: key, TenantID: tenantID, Token: token}, nil
}

// SessionToken returns a usable token for key. A token inside the expiry
// buffer is refreshed first when it carries a refresh token.
func (m *Manager) SessionToken(ctx context.Context, key string) (*pkgoauth.Token, error) {
	stale := m.tokens.Peek(key)
	if token := m.tokens.Get(key); token != nil {
		return token, nil
	}

	if stale == nil || stale.RefreshToken == "" {
		return nil, pkgoauth.NewValidationError("sessionKey", "session expired or unknown; log in again")
	}

	session, err := m.refreshSession(ctx, key, stale)
	if err != nil {
		return nil, err
	}
	return session.Token, nil
}

// VerifySession checks that accessToken is the token currently cached under
// key. An unknown key and a wrong token both yield ErrSessionNotOwned.
func (m *Manager) VerifySession(key, accessToken string) error {
	current := m.tokens.Peek(key)
	if current == nil || accessToken == "" ||
		subtle.ConstantTimeCompare([]byte(current.AccessToken), []byte(accessToken)) != 1 {
		_, tenantID, _ := ParseSessionKey(key)
		m.audit(logging.AuditEvent{
			Action:     "session_verify",
			Outcome:    "failure",
			TenantID:   tenantID,
			SessionKey: key,
			Detail:     "unauthorized",
		})
		return pkgoauth.ErrSessionNotOwned
	}
	return nil
}

// Session reports the cached session for key without refreshing it.
func (m *Manager) Session(key string) (SessionInfo, bool) {
	token := m.tokens.Get(key)
	if token == nil {
		return SessionInfo{}, false
	}
	return sessionInfo(key, token), true
}

// Sessions lists the cached sessions, optionally limited to one tenant.
// Expired entries are evicted along the way.
func (m *Manager) Sessions(tenantID string) []SessionInfo {
	var infos []SessionInfo
	for _, key := range m.tokens.Keys("") {
		_, tenant, ok := ParseSessionKey(key)
		if !ok || (tenantID != "" && tenant != tenantID) {
			continue
		}
		if token := m.tokens.Get(key); token != nil {
			infos = append(infos, sessionInfo(key, token))
		}
	}
	return infos
}

// Logout forgets the session stored under key.
func (m *Manager) Logout(key string) {
	m.tokens.Delete(key)
	m.audit(logging.AuditEvent{Action: "logout", Outcome: "success", SessionKey: key})
}

// Stop stops background work started on the stores.
func (m *Manager) Stop() {
	m.states.Stop()
	logging.Info("OAuth", "Auth session manager stopped")
}

func (m *Manager) audit(event logging.AuditEvent) {
	logging.Audit(event)
	if m.auditHook != nil {
		m.auditHook(event)
	}
}

func (m *Manager) addClientAuth(form url.Values) {
	form.Set("client_id", m.credentials.ClientID)
	if !m.credentials.ClientSecret.IsEmpty() {
		form.Set("client_secret", m.credentials.ClientSecret.Value())
	}
}

func tenantHeader(tenantID string) http.Header {
	if tenantID == "" {
		return nil
	}
	header := http.Header{}
	header.Set(TenantHeader, tenantID)
	return header
}

func sessionInfo(key string, token *pkgoauth.Token) SessionInfo {
	kind, tenantID, _ := ParseSessionKey(key)
	return SessionInfo{
		Key:         key,
		ID:          SessionID(key),
		TenantID:    tenantID,
		Kind:        kind,
		ExpiresAt:   token.ExpiresAt(),
		Scope:       token.Scope,
		Refreshable: token.RefreshToken != "",
	}
}
