package config

import "time"

const (
	// DefaultAuthorityURL is the Fenergo identity provider.
	DefaultAuthorityURL = "https://identity.fenxstable.com"

	// DefaultAuthorizePath and DefaultTokenPath are the IdentityServer
	// endpoint paths appended to the authority URL.
	DefaultAuthorizePath = "/connect/authorize"
	DefaultTokenPath     = "/connect/token"

	// DefaultClientID is the sandbox client registration.
	DefaultClientID = "quasar-sandbox"

	// DefaultAPIURL is the Fenergo document management insights endpoint.
	DefaultAPIURL = "https://api.fenxstable.com/documentmanagementquery/api/documentmanagement/insights"

	// DefaultCallbackPath is where the identity provider redirects after login.
	DefaultCallbackPath = "/auth/callback"

	DefaultPort    = 8080
	DefaultMCPPath = "/mcp"

	DefaultStateTTL        = 15 * time.Minute
	DefaultHTTPTimeout     = 30 * time.Second
	DefaultRequestTimeout  = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() GatewayConfig {
	return GatewayConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            DefaultPort,
			MCPPath:         DefaultMCPPath,
			RequestTimeout:  DefaultRequestTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		OAuth: OAuthConfig{
			ClientID:     DefaultClientID,
			Scopes:       []string{"fenx.all"},
			SSOScopes:    []string{"openid", "profile", "email"},
			AuthorityURL: DefaultAuthorityURL,
			RedirectURI:  "http://localhost:8080" + DefaultCallbackPath,
			UsePKCE:      true,
			StateTTL:     DefaultStateTTL,
			HTTPTimeout:  DefaultHTTPTimeout,
		},
		Fenergo: FenergoConfig{
			APIURL:  DefaultAPIURL,
			Timeout: DefaultHTTPTimeout,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
