// Package config provides configuration management for nebula-gateway.
//
// Configuration is read from a single config.yaml. The default location is
// ~/.config/nebula-gateway/config.yaml; commands accept --config-path to use
// another directory. A missing file is not an error: built-in defaults point
// at the Fenergo sandbox identity provider and API.
//
// # Environment Overrides
//
// After the file is read, these variables replace the matching fields:
//
//	FENERGO_CLIENT_ID       oauth.clientId
//	FENERGO_CLIENT_SECRET   oauth.clientSecret
//	FENERGO_OAUTH_ENDPOINT  oauth.tokenEndpoint
//	FENERGO_AUTHORITY_URL   oauth.authorityUrl
//	FENERGO_REDIRECT_URI    oauth.redirectUri
//	FENERGO_TENANT_ID       fenergo.tenantId
//	FENERGO_API_URL         fenergo.apiUrl
//	PORT                    server.port
//
// The client secret should come from the environment rather than the file.
// It is never logged.
//
// # Validation
//
// LoadConfig validates the merged result and returns a
// ConfigurationErrorCollection listing every problem at once.
//
// # Example
//
//	server:
//	  port: 8080
//	oauth:
//	  clientId: quasar-sandbox
//	  authorityUrl: https://identity.fenxstable.com
//	  redirectUri: https://gateway.example.com/auth/callback
//	  scopes: [fenx.all]
//	  ssoScopes: [openid, profile, email]
//	  stateTtl: 15m
//	fenergo:
//	  tenantId: f488cdba-2122-448d-952c-7a2a47f78f1b
package config
