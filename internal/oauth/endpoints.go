package oauth

import (
	"context"
	"fmt"

	"nebula-gateway/internal/config"
	"nebula-gateway/pkg/logging"
	pkgoauth "nebula-gateway/pkg/oauth"
)

// Endpoints are the identity provider URLs the manager talks to.
type Endpoints struct {
	Authorization string
	Token         string
}

// StaticEndpoints returns the configured endpoints, deriving missing ones
// from the authority URL.
func StaticEndpoints(cfg config.OAuthConfig) Endpoints {
	return Endpoints{
		Authorization: cfg.GetEffectiveAuthorizationEndpoint(),
		Token:         cfg.GetEffectiveTokenEndpoint(),
	}
}

// ResolveEndpoints returns the endpoints to use. Explicitly configured
// endpoints always win. When discovery is enabled the rest come from the
// authority's metadata; otherwise they are derived from the authority URL.
func ResolveEndpoints(ctx context.Context, cfg config.OAuthConfig, client *pkgoauth.Client) (Endpoints, error) {
	static := StaticEndpoints(cfg)
	if !cfg.Discovery || cfg.HasExplicitEndpoints() {
		return static, nil
	}

	metadata, err := client.DiscoverMetadata(ctx, cfg.AuthorityURL)
	if err != nil {
		return Endpoints{}, fmt.Errorf("endpoint discovery failed: %w", err)
	}

	if cfg.UsePKCE && !metadata.SupportsPKCE() {
		logging.Warn("OAuth", "Authority %s does not advertise S256 PKCE support", cfg.AuthorityURL)
	}

	resolved := Endpoints{
		Authorization: metadata.AuthorizationEndpoint,
		Token:         metadata.TokenEndpoint,
	}
	if cfg.AuthorizationEndpoint != "" {
		resolved.Authorization = cfg.AuthorizationEndpoint
	}
	if cfg.TokenEndpoint != "" {
		resolved.Token = cfg.TokenEndpoint
	}

	logging.Info("OAuth", "Discovered endpoints authorize=%s token=%s", resolved.Authorization, resolved.Token)
	return resolved, nil
}
