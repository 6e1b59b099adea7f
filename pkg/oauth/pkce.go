package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// CodeChallengeMethodS256 is the only PKCE method this package produces.
	CodeChallengeMethodS256 = "S256"

	// pkceVerifierBytes is the number of random bytes for the PKCE code verifier.
	// 32 bytes encode to a 43 character verifier, the RFC 7636 minimum.
	pkceVerifierBytes = 32

	// stateBytes is the number of random bytes for the OAuth state parameter.
	stateBytes = 32

	minVerifierLen = 43
	maxVerifierLen = 128
)

// PKCEChallenge is a PKCE (RFC 7636) verifier and its derived challenge.
type PKCEChallenge struct {
	// CodeVerifier is kept by the client and sent only to the token endpoint.
	CodeVerifier string

	// CodeChallenge is BASE64URL(SHA256(CodeVerifier)) without padding and is
	// sent in the authorization request.
	CodeChallenge string

	CodeChallengeMethod string
}

// GeneratePKCE generates a new PKCE code verifier and S256 challenge.
func GeneratePKCE() (*PKCEChallenge, error) {
	verifierBytes := make([]byte, pkceVerifierBytes)
	if _, err := rand.Read(verifierBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes for PKCE: %w", err)
	}

	verifier := base64.RawURLEncoding.EncodeToString(verifierBytes)

	return &PKCEChallenge{
		CodeVerifier:        verifier,
		CodeChallenge:       ChallengeS256(verifier),
		CodeChallengeMethod: CodeChallengeMethodS256,
	}, nil
}

// ChallengeS256 derives the S256 code challenge for a verifier.
func ChallengeS256(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// ValidVerifier reports whether v is a syntactically valid PKCE verifier:
// 43 to 128 characters from the unreserved set [A-Za-z0-9-._~].
func ValidVerifier(v string) bool {
	if len(v) < minVerifierLen || len(v) > maxVerifierLen {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '.', c == '_', c == '~':
		default:
			return false
		}
	}
	return true
}

// GenerateState generates a random state parameter for OAuth.
// The state correlates the authorization response with the request that
// started it and defends the callback against CSRF.
//
// Returns a base64url-encoded random string.
func GenerateState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
