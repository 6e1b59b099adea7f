package oauth

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// GrantType is an OAuth 2.0 grant_type value.
type GrantType string

const (
	GrantClientCredentials GrantType = "client_credentials"
	GrantPassword          GrantType = "password"
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantRefreshToken      GrantType = "refresh_token"
)

const (
	// DefaultTokenType is used when the token endpoint omits token_type.
	DefaultTokenType = "Bearer"

	// DefaultExpiresIn is the lifetime in seconds assumed when the token
	// endpoint omits expires_in.
	DefaultExpiresIn = 3600

	// MaxExpiresIn caps the lifetime accepted from a token response at ten
	// years.
	MaxExpiresIn = 10 * 365 * 24 * 60 * 60

	// DefaultExpiryBuffer is subtracted from a token's expiry when deciding
	// whether it is still usable.
	DefaultExpiryBuffer = 60 * time.Second
)

// ClientCredentials identifies this application to the identity provider.
type ClientCredentials struct {
	ClientID string
	// ClientSecret is optional for public clients using PKCE.
	ClientSecret RedactedToken
	Scopes       []string
}

// Scope returns the scopes joined with spaces, as sent on the wire.
func (c ClientCredentials) Scope() string {
	return strings.Join(c.Scopes, " ")
}

// Token is an access token issued by the token endpoint together with the
// time it was acquired. A Token is never modified after creation; refreshing
// produces a new Token.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	Scope        string    `json:"scope,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	AcquiredAt   time.Time `json:"acquired_at"`
	// ExpiresIn is the lifetime in seconds counted from AcquiredAt.
	ExpiresIn int `json:"expires_in"`
}

// ExpiresAt is AcquiredAt plus ExpiresIn.
func (t *Token) ExpiresAt() time.Time {
	return t.AcquiredAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// IsExpiredAt reports whether the token is expired at now, or will expire
// within buffer.
func (t *Token) IsExpiredAt(now time.Time, buffer time.Duration) bool {
	return !now.Before(t.ExpiresAt().Add(-buffer))
}

// Scopes returns the granted scope as a slice.
func (t *Token) Scopes() []string {
	if t.Scope == "" {
		return nil
	}
	return strings.Fields(t.Scope)
}

// AuthorizationHeader returns the value for an HTTP Authorization header.
func (t *Token) AuthorizationHeader() string {
	tokenType := t.TokenType
	if tokenType == "" {
		tokenType = DefaultTokenType
	}
	return tokenType + " " + t.AccessToken
}

// ToOAuth2Token converts the Token for use with golang.org/x/oauth2.
func (t *Token) ToOAuth2Token() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt(),
	}

	if t.IDToken != "" {
		token = token.WithExtra(map[string]interface{}{
			"id_token": t.IDToken,
		})
	}

	return token
}

// tokenResponse is the JSON body returned by the token endpoint, success or error.
type tokenResponse struct {
	AccessToken      string      `json:"access_token"`
	TokenType        string      `json:"token_type"`
	RefreshToken     string      `json:"refresh_token"`
	ExpiresIn        flexSeconds `json:"expires_in"`
	Scope            string      `json:"scope"`
	IDToken          string      `json:"id_token"`
	Error            string      `json:"error"`
	ErrorDescription string      `json:"error_description"`
}

// toToken builds a Token from a successful response.
func (r *tokenResponse) toToken(acquiredAt time.Time) *Token {
	token := &Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		Scope:        r.Scope,
		IDToken:      r.IDToken,
		AcquiredAt:   acquiredAt,
		ExpiresIn:    int(r.ExpiresIn),
	}
	if token.TokenType == "" {
		token.TokenType = DefaultTokenType
	}
	if token.ExpiresIn <= 0 {
		token.ExpiresIn = DefaultExpiresIn
	}
	return token
}

// flexSeconds accepts expires_in as either a JSON number or a numeric string;
// some identity providers send the latter.
type flexSeconds int

func (s *flexSeconds) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		v, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return err
		}
		*s = clampSeconds(v)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if str == "" {
		return nil
	}
	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return err
	}
	*s = clampSeconds(v)
	return nil
}

// clampSeconds bounds v to [0, MaxExpiresIn]. Non-positive values fall back
// to DefaultExpiresIn in toToken.
func clampSeconds(v float64) flexSeconds {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v > MaxExpiresIn:
		return MaxExpiresIn
	default:
		return flexSeconds(v)
	}
}

// Metadata is the subset of OpenID Connect discovery / RFC 8414 metadata
// used to locate the authorization and token endpoints.
type Metadata struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	UserinfoEndpoint              string   `json:"userinfo_endpoint,omitempty"`
	ScopesSupported               []string `json:"scopes_supported,omitempty"`
	GrantTypesSupported           []string `json:"grant_types_supported,omitempty"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
}

// SupportsPKCE returns true if the server supports S256 PKCE.
func (m *Metadata) SupportsPKCE() bool {
	for _, method := range m.CodeChallengeMethodsSupported {
		if method == CodeChallengeMethodS256 {
			return true
		}
	}
	// Not advertised: assume support, as OAuth 2.1 requires it.
	return len(m.CodeChallengeMethodsSupported) == 0
}
