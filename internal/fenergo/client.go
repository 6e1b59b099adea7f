package fenergo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"nebula-gateway/pkg/logging"
	pkgoauth "nebula-gateway/pkg/oauth"
	pkgstrings "nebula-gateway/pkg/strings"
)

const (
	// DefaultTimeout bounds one insights request.
	DefaultTimeout = 60 * time.Second

	// DefaultUserAgent is sent on every request to the Fenergo API.
	DefaultUserAgent = "nebula-gateway/1.0"

	// TenantHeader names the tenant on every Fenergo request.
	TenantHeader = "X-Tenant-Id"

	maxResponseBytes = 4 << 20
)

// Credentials authorizes a request to the Fenergo API. Build one with
// TokenSourceCredentials or HeaderCredentials.
type Credentials struct {
	source oauth2.TokenSource
	header string
}

// TokenSourceCredentials authorizes requests with tokens from ts.
func TokenSourceCredentials(ts oauth2.TokenSource) Credentials {
	return Credentials{source: ts}
}

// HeaderCredentials forwards an Authorization header supplied by a caller.
// A bare token gets the default token type as its scheme.
func HeaderCredentials(header string) Credentials {
	header = strings.TrimSpace(header)
	if header != "" && !strings.Contains(header, " ") {
		header = (&pkgoauth.Token{AccessToken: header}).AuthorizationHeader()
	}
	return Credentials{header: header}
}

// IsZero reports whether c carries no credentials at all.
func (c Credentials) IsZero() bool {
	return c.source == nil && c.header == ""
}

// APIError is a non-2xx answer from the Fenergo API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("fenergo API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("fenergo API returned status %d: %s", e.StatusCode, pkgstrings.TruncateBody(e.Body, 200))
}

// Client calls the Fenergo document management insights API.
type Client struct {
	apiURL     string
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			clone := *c.httpClient
			clone.Timeout = timeout
			c.httpClient = &clone
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// NewClient creates a client for the insights endpoint at apiURL.
func NewClient(apiURL string, opts ...Option) *Client {
	c := &Client{
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIURL returns the insights endpoint.
func (c *Client) APIURL() string {
	return c.apiURL
}

// Investigate posts req to the insights endpoint on behalf of tenantID.
func (c *Client) Investigate(ctx context.Context, tenantID string, creds Credentials, req InsightsRequest) (*InsightsResponse, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, pkgoauth.NewValidationError("tenantId", "is required")
	}
	if creds.IsZero() {
		return nil, pkgoauth.NewValidationError("authorization", "is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(envelope{Data: req})
	if err != nil {
		return nil, fmt.Errorf("failed to encode insights request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create insights request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(TenantHeader, tenantID)

	httpClient := c.httpClient
	if creds.source != nil {
		httpClient = &http.Client{
			Transport: &oauth2.Transport{Source: creds.source, Base: c.httpClient.Transport},
			Timeout:   c.httpClient.Timeout,
		}
	} else {
		httpReq.Header.Set("Authorization", creds.header)
	}

	start := time.Now()
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, c.classifyError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.classifyError(ctx, err)
	}

	logging.Debug("Fenergo", "Insights request tenant=%s status=%d duration=%s", tenantID, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	out := &InsightsResponse{StatusCode: resp.StatusCode}
	if json.Valid(raw) {
		out.Body = raw
	} else {
		quoted, _ := json.Marshal(string(raw))
		out.Body = quoted
		out.Raw = true
	}
	return out, nil
}

// classifyError keeps errors from the token source as they are and maps
// network failures onto the shared timeout and transport errors.
func (c *Client) classifyError(ctx context.Context, err error) error {
	var (
		oauthErr   *pkgoauth.OAuthError
		validErr   *pkgoauth.ValidationError
		timeoutErr *pkgoauth.TimeoutError
		transErr   *pkgoauth.TransportError
	)
	if errors.As(err, &oauthErr) || errors.As(err, &validErr) || errors.As(err, &timeoutErr) || errors.As(err, &transErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &pkgoauth.TimeoutError{Timeout: c.httpClient.Timeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &pkgoauth.TimeoutError{Timeout: c.httpClient.Timeout, Err: err}
	}
	return &pkgoauth.TransportError{Err: err}
}
