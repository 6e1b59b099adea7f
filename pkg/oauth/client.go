package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultHTTPTimeout is the fixed ceiling for one token endpoint request.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultMetadataCacheTTL is the default TTL for cached discovery metadata.
	DefaultMetadataCacheTTL = 30 * time.Minute

	// DefaultUserAgent is sent on every request to the identity provider.
	DefaultUserAgent = "nebula-gateway-oauth/1.0"

	// maxResponseBytes bounds how much of a token response is read.
	maxResponseBytes = 1 << 20
)

// metadataCacheEntry holds cached OAuth metadata with its timestamp.
type metadataCacheEntry struct {
	metadata  *Metadata
	fetchedAt time.Time
}

// Client speaks the token endpoint side of OAuth 2.0: it posts grant forms,
// classifies failures, and parses token responses. It holds no tokens.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
	now        func() time.Time

	// Metadata cache with mutex for thread safety
	metadataMu    sync.RWMutex
	metadataCache map[string]*metadataCacheEntry
	metadataTTL   time.Duration

	// singleflight group to deduplicate concurrent metadata fetches
	metadataGroup singleflight.Group
}

// ClientOption configures the OAuth client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client. Its Timeout is the per-request
// ceiling; zero means DefaultHTTPTimeout is applied.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			clone := *c.httpClient
			clone.Timeout = timeout
			c.httpClient = &clone
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithClock overrides the time source used for Token.AcquiredAt.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new OAuth client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: DefaultHTTPTimeout},
		logger:        slog.Default(),
		userAgent:     DefaultUserAgent,
		now:           time.Now,
		metadataCache: make(map[string]*metadataCacheEntry),
		metadataTTL:   DefaultMetadataCacheTTL,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient.Timeout <= 0 {
		clone := *c.httpClient
		clone.Timeout = DefaultHTTPTimeout
		c.httpClient = &clone
	}

	return c
}

// Timeout returns the per-request timeout in effect.
func (c *Client) Timeout() time.Duration {
	return c.httpClient.Timeout
}

// RequestToken posts form to tokenEndpoint using the given grant and returns
// the issued token. grant_type is set from grant. Extra headers (for example
// X-Tenant-Id) are added to the request.
//
// Errors are *TransportError, *TimeoutError, or *OAuthError. Nothing is retried.
func (c *Client) RequestToken(ctx context.Context, tokenEndpoint string, grant GrantType, form url.Values, header http.Header) (*Token, error) {
	body := url.Values{}
	for k, v := range form {
		body[k] = v
	}
	body.Set("grant_type", string(grant))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(body.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s token request: %w", grant, err)
	}

	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifyError(ctx, grant, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.classifyError(ctx, grant, err)
	}

	c.logger.Debug("Token endpoint responded",
		"grant", string(grant),
		"status", resp.StatusCode,
		"duration", c.now().Sub(start))

	var parsed tokenResponse
	parseErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		oauthErr := &OAuthError{
			Grant:      grant,
			StatusCode: resp.StatusCode,
			Body:       string(raw),
		}
		if parseErr == nil {
			oauthErr.ErrorCode = parsed.Error
			oauthErr.Description = parsed.ErrorDescription
		}
		return nil, oauthErr
	}

	if parseErr != nil {
		return nil, &OAuthError{
			Grant:       grant,
			StatusCode:  resp.StatusCode,
			Description: "malformed token response",
			Body:        string(raw),
		}
	}

	if parsed.AccessToken == "" {
		return nil, &OAuthError{
			Grant:       grant,
			StatusCode:  resp.StatusCode,
			ErrorCode:   parsed.Error,
			Description: "response missing access_token",
			Body:        string(raw),
		}
	}

	return parsed.toToken(c.now()), nil
}

// classifyError turns a failed round trip into a TimeoutError or TransportError.
// A request abandoned by its caller is reported as the context's error.
func (c *Client) classifyError(ctx context.Context, grant GrantType, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s canceled by caller: %w", requestName(grant), ctx.Err())
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Grant: grant, Timeout: c.httpClient.Timeout, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Grant: grant, Timeout: c.httpClient.Timeout, Err: err}
	}

	return &TransportError{Grant: grant, Err: err}
}

// AuthorizationURLParams are the inputs to BuildAuthorizationURL.
type AuthorizationURLParams struct {
	Endpoint    string
	ClientID    string
	RedirectURI string
	Scopes      []string
	State       string
	// PKCE adds code_challenge and code_challenge_method when set.
	PKCE *PKCEChallenge
	// Prompt is sent as prompt= when non-empty ("login" forces re-authentication).
	Prompt string
}

// BuildAuthorizationURL constructs an RFC 6749 §4.1.1 authorization request URL.
// Query parameters already present on Endpoint are kept.
func BuildAuthorizationURL(p AuthorizationURLParams) (string, error) {
	authURL, err := url.Parse(p.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid authorization endpoint: %w", err)
	}
	if authURL.Scheme == "" || authURL.Host == "" {
		return "", fmt.Errorf("invalid authorization endpoint: %q is not absolute", p.Endpoint)
	}

	query := authURL.Query()
	query.Set("client_id", p.ClientID)
	query.Set("response_type", "code")
	query.Set("redirect_uri", p.RedirectURI)
	query.Set("state", p.State)

	if len(p.Scopes) > 0 {
		query.Set("scope", strings.Join(p.Scopes, " "))
	}

	if p.PKCE != nil {
		query.Set("code_challenge", p.PKCE.CodeChallenge)
		query.Set("code_challenge_method", p.PKCE.CodeChallengeMethod)
	}

	if p.Prompt != "" {
		query.Set("prompt", p.Prompt)
	}

	authURL.RawQuery = query.Encode()
	return authURL.String(), nil
}

// DiscoverMetadata fetches metadata from the issuer's well-known endpoint.
// It tries OpenID Connect discovery (/.well-known/openid-configuration)
// first, then RFC 8414 (/.well-known/oauth-authorization-server).
//
// Results are cached with a TTL to reduce network requests.
func (c *Client) DiscoverMetadata(ctx context.Context, issuer string) (*Metadata, error) {
	issuer = strings.TrimSuffix(issuer, "/")

	if m := c.cachedMetadata(issuer); m != nil {
		return m, nil
	}

	result, err, _ := c.metadataGroup.Do(issuer, func() (interface{}, error) {
		// Double-check cache after acquiring singleflight lock
		if m := c.cachedMetadata(issuer); m != nil {
			return m, nil
		}
		return c.doDiscoverMetadata(ctx, issuer)
	})
	if err != nil {
		return nil, err
	}

	return result.(*Metadata), nil
}

func (c *Client) cachedMetadata(issuer string) *Metadata {
	c.metadataMu.RLock()
	defer c.metadataMu.RUnlock()

	if entry, ok := c.metadataCache[issuer]; ok && c.now().Sub(entry.fetchedAt) < c.metadataTTL {
		return entry.metadata
	}
	return nil
}

func (c *Client) doDiscoverMetadata(ctx context.Context, issuer string) (*Metadata, error) {
	metadata, err := c.fetchMetadata(ctx, issuer+"/.well-known/openid-configuration")
	if err != nil {
		c.logger.Debug("OIDC discovery failed, trying RFC 8414",
			"issuer", issuer,
			"error", err)

		metadata, err = c.fetchMetadata(ctx, issuer+"/.well-known/oauth-authorization-server")
		if err != nil {
			return nil, fmt.Errorf("failed to discover OAuth metadata for %s: %w", issuer, err)
		}
	}

	if metadata.AuthorizationEndpoint == "" || metadata.TokenEndpoint == "" {
		return nil, fmt.Errorf("metadata for %s is missing authorization or token endpoint", issuer)
	}

	c.metadataMu.Lock()
	c.metadataCache[issuer] = &metadataCacheEntry{
		metadata:  metadata,
		fetchedAt: c.now(),
	}
	c.metadataMu.Unlock()

	c.logger.Debug("Cached OAuth metadata",
		"issuer", issuer,
		"authorization_endpoint", metadata.AuthorizationEndpoint,
		"token_endpoint", metadata.TokenEndpoint)

	return metadata, nil
}

func (c *Client) fetchMetadata(ctx context.Context, metadataURL string) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata request failed with status %d", resp.StatusCode)
	}

	var metadata Metadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	return &metadata, nil
}
