package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_Defaults(t *testing.T) {
	errs := Validate(GetDefaultConfig())
	assert.False(t, errs.HasErrors(), errs.GetDetailedReport())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GatewayConfig)
		field  string
	}{
		{"missing client id", func(c *GatewayConfig) { c.OAuth.ClientID = " " }, "oauth.clientId"},
		{"no scopes", func(c *GatewayConfig) { c.OAuth.Scopes = nil; c.OAuth.SSOScopes = nil }, "oauth.scopes"},
		{"no authority", func(c *GatewayConfig) { c.OAuth.AuthorityURL = "" }, "oauth.authorityUrl"},
		{"relative token endpoint", func(c *GatewayConfig) { c.OAuth.TokenEndpoint = "/connect/token" }, "oauth.tokenEndpoint"},
		{"missing redirect", func(c *GatewayConfig) { c.OAuth.RedirectURI = "" }, "oauth.redirectUri"},
		{"zero state ttl", func(c *GatewayConfig) { c.OAuth.StateTTL = 0 }, "oauth.stateTtl"},
		{"bad port", func(c *GatewayConfig) { c.Server.Port = 0 }, "server.port"},
		{"bad mcp path", func(c *GatewayConfig) { c.Server.MCPPath = "mcp" }, "server.mcpPath"},
		{"bad log format", func(c *GatewayConfig) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(&cfg)

			errs := Validate(cfg)
			if assert.True(t, errs.HasErrors()) {
				assert.Equal(t, tt.field, errs.Errors[0].Field)
			}
		})
	}
}

func TestValidate_ExplicitEndpointsWithoutAuthority(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.OAuth.AuthorityURL = ""
	cfg.OAuth.AuthorizationEndpoint = "https://idp.example.com/authorize"
	cfg.OAuth.TokenEndpoint = "https://idp.example.com/token"

	errs := Validate(cfg)
	assert.False(t, errs.HasErrors(), errs.GetDetailedReport())
}

func TestOAuthConfig_SSOScopeList(t *testing.T) {
	cfg := OAuthConfig{Scopes: []string{"fenx.all"}}
	assert.Equal(t, []string{"fenx.all"}, cfg.SSOScopeList())

	cfg.SSOScopes = []string{"openid"}
	assert.Equal(t, []string{"openid"}, cfg.SSOScopeList())
}

func TestConfigurationError_Error(t *testing.T) {
	err := ConfigurationError{FileName: "config.yaml", LineNumber: 4, Field: "oauth.clientId", Message: "is required"}
	assert.Equal(t, "config.yaml:4: oauth.clientId is required", err.Error())

	var errs ConfigurationErrorCollection
	assert.Equal(t, "no configuration errors", errs.Error())
	errs.AddField("a", "x")
	errs.AddField("b", "y")
	assert.Equal(t, "2 configuration errors: a x (and 1 more)", errs.Error())
}
