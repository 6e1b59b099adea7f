package config

import (
	"strings"
	"time"
)

// GatewayConfig is the top-level configuration structure for nebula-gateway.
type GatewayConfig struct {
	Server  ServerConfig  `yaml:"server"`
	OAuth   OAuthConfig   `yaml:"oauth"`
	Fenergo FenergoConfig `yaml:"fenergo"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host,omitempty"`            // Host to bind to (default: 0.0.0.0)
	Port            int           `yaml:"port,omitempty"`            // Port to listen on (default: 8080, env PORT)
	MCPPath         string        `yaml:"mcpPath,omitempty"`         // Mount point of the MCP endpoint (default: /mcp)
	RequestTimeout  time.Duration `yaml:"requestTimeout,omitempty"`  // Per-request handler timeout (default: 60s)
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty"` // Graceful shutdown window (default: 10s)
}

// OAuthConfig configures the identity provider and the client registration
// used to obtain tokens.
type OAuthConfig struct {
	// ClientID is the OAuth client identifier (env FENERGO_CLIENT_ID).
	ClientID string `yaml:"clientId"`

	// ClientSecret is optional for public clients. Prefer the
	// FENERGO_CLIENT_SECRET environment variable over the file.
	ClientSecret string `yaml:"clientSecret,omitempty"`

	// Scopes are requested by the client_credentials and password grants.
	Scopes []string `yaml:"scopes,omitempty"`

	// SSOScopes are requested by the interactive login. Scopes is used when empty.
	SSOScopes []string `yaml:"ssoScopes,omitempty"`

	// AuthorityURL is the identity provider base URL (env FENERGO_AUTHORITY_URL).
	AuthorityURL string `yaml:"authorityUrl"`

	// AuthorizationEndpoint overrides the derived authorize URL.
	AuthorizationEndpoint string `yaml:"authorizationEndpoint,omitempty"`

	// TokenEndpoint overrides the derived token URL (env FENERGO_OAUTH_ENDPOINT).
	TokenEndpoint string `yaml:"tokenEndpoint,omitempty"`

	// Discovery looks up endpoints from the authority's well-known metadata
	// when they are not set explicitly.
	Discovery bool `yaml:"discovery,omitempty"`

	// RedirectURI is registered with the identity provider (env FENERGO_REDIRECT_URI).
	RedirectURI string `yaml:"redirectUri"`

	// UsePKCE adds an S256 code challenge to the authorization request.
	UsePKCE bool `yaml:"usePkce"`

	// StateTTL is how long a pending login may wait for its callback.
	StateTTL time.Duration `yaml:"stateTtl,omitempty"`

	// HTTPTimeout bounds every request to the token endpoint.
	HTTPTimeout time.Duration `yaml:"httpTimeout,omitempty"`
}

// SSOScopeList returns the scopes for the interactive login.
func (c OAuthConfig) SSOScopeList() []string {
	if len(c.SSOScopes) > 0 {
		return c.SSOScopes
	}
	return c.Scopes
}

// GetEffectiveAuthorizationEndpoint returns the configured authorization
// endpoint, or the IdentityServer default under AuthorityURL.
func (c OAuthConfig) GetEffectiveAuthorizationEndpoint() string {
	if c.AuthorizationEndpoint != "" {
		return c.AuthorizationEndpoint
	}
	if c.AuthorityURL == "" {
		return ""
	}
	return strings.TrimSuffix(c.AuthorityURL, "/") + DefaultAuthorizePath
}

// GetEffectiveTokenEndpoint returns the configured token endpoint, or the
// IdentityServer default under AuthorityURL.
func (c OAuthConfig) GetEffectiveTokenEndpoint() string {
	if c.TokenEndpoint != "" {
		return c.TokenEndpoint
	}
	if c.AuthorityURL == "" {
		return ""
	}
	return strings.TrimSuffix(c.AuthorityURL, "/") + DefaultTokenPath
}

// HasExplicitEndpoints reports whether both endpoints were configured.
func (c OAuthConfig) HasExplicitEndpoints() bool {
	return c.AuthorizationEndpoint != "" && c.TokenEndpoint != ""
}

// FenergoConfig configures the Fenergo Nebula API.
type FenergoConfig struct {
	// APIURL is the insights endpoint (env FENERGO_API_URL).
	APIURL string `yaml:"apiUrl"`

	// TenantID is used when a request does not name one (env FENERGO_TENANT_ID).
	TenantID string `yaml:"tenantId,omitempty"`

	// Timeout bounds each insights request.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text or json
}
