package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePKCE(t *testing.T) {
	pkce, err := GeneratePKCE()
	require.NoError(t, err)

	assert.Len(t, pkce.CodeVerifier, 43)
	assert.Equal(t, CodeChallengeMethodS256, pkce.CodeChallengeMethod)
	assert.True(t, ValidVerifier(pkce.CodeVerifier))
	assert.NotContains(t, pkce.CodeChallenge, "=")

	hash := sha256.Sum256([]byte(pkce.CodeVerifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(hash[:]), pkce.CodeChallenge)
}

func TestGeneratePKCE_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		pkce, err := GeneratePKCE()
		require.NoError(t, err)
		assert.False(t, seen[pkce.CodeVerifier], "verifier repeated")
		seen[pkce.CodeVerifier] = true
	}
}

func TestChallengeS256_RFC7636Vector(t *testing.T) {
	// Appendix B of RFC 7636.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", ChallengeS256(verifier))
}

func TestValidVerifier(t *testing.T) {
	tests := []struct {
		name     string
		verifier string
		want     bool
	}{
		{"minimum length", strings.Repeat("a", 43), true},
		{"maximum length", strings.Repeat("Z", 128), true},
		{"unreserved punctuation", strings.Repeat("-._~", 11), true},
		{"too short", strings.Repeat("a", 42), false},
		{"too long", strings.Repeat("a", 129), false},
		{"plus sign", strings.Repeat("a", 42) + "+", false},
		{"slash", strings.Repeat("a", 42) + "/", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidVerifier(tt.verifier))
		})
	}
}

func TestGenerateState(t *testing.T) {
	state, err := GenerateState()
	require.NoError(t, err)
	assert.Len(t, state, 43)

	_, err = base64.RawURLEncoding.DecodeString(state)
	assert.NoError(t, err)
}

func TestGenerateState_TenThousandUnique(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		state, err := GenerateState()
		require.NoError(t, err)
		_, dup := seen[state]
		require.False(t, dup, "state repeated after %d draws", i)
		seen[state] = struct{}{}
	}
}
