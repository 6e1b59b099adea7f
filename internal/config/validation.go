package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration and returns every problem found.
func Validate(cfg GatewayConfig) ConfigurationErrorCollection {
	var errs ConfigurationErrorCollection

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs.AddField("server.port", fmt.Sprintf("must be between 1 and 65535, got %d", cfg.Server.Port))
	}
	if cfg.Server.MCPPath != "" && !strings.HasPrefix(cfg.Server.MCPPath, "/") {
		errs.AddField("server.mcpPath", "must start with /")
	}

	if strings.TrimSpace(cfg.OAuth.ClientID) == "" {
		errs.AddField("oauth.clientId", "is required", "Set "+EnvClientID+" or oauth.clientId")
	}
	if len(cfg.OAuth.Scopes) == 0 && len(cfg.OAuth.SSOScopes) == 0 {
		errs.AddField("oauth.scopes", "must list at least one scope")
	}

	if cfg.OAuth.AuthorityURL == "" && !cfg.OAuth.HasExplicitEndpoints() {
		errs.AddField("oauth.authorityUrl", "is required unless both endpoints are set",
			"Set "+EnvAuthorityURL+" or oauth.authorizationEndpoint and oauth.tokenEndpoint")
	}

	validateURL(&errs, "oauth.authorityUrl", cfg.OAuth.AuthorityURL)
	validateURL(&errs, "oauth.authorizationEndpoint", cfg.OAuth.AuthorizationEndpoint)
	validateURL(&errs, "oauth.tokenEndpoint", cfg.OAuth.TokenEndpoint)
	validateURL(&errs, "oauth.redirectUri", cfg.OAuth.RedirectURI)
	validateURL(&errs, "fenergo.apiUrl", cfg.Fenergo.APIURL)

	if cfg.OAuth.RedirectURI == "" {
		errs.AddField("oauth.redirectUri", "is required", "Set "+EnvRedirectURI+" or oauth.redirectUri")
	}
	if cfg.OAuth.StateTTL <= 0 {
		errs.AddField("oauth.stateTtl", "must be positive")
	}
	if cfg.OAuth.HTTPTimeout <= 0 {
		errs.AddField("oauth.httpTimeout", "must be positive")
	}

	switch cfg.Logging.Format {
	case "", "text", "json":
	default:
		errs.AddField("logging.format", fmt.Sprintf("must be text or json, got %q", cfg.Logging.Format))
	}

	return errs
}

// validateURL adds an error when raw is set but not an absolute http(s) URL.
func validateURL(errs *ConfigurationErrorCollection, field, raw string) {
	if raw == "" {
		return
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs.AddField(field, fmt.Sprintf("must be an absolute http(s) URL, got %q", raw))
	}
}
