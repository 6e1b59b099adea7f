package oauth

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactedToken(t *testing.T) {
	secret := NewRedactedToken("s3cret")

	assert.Equal(t, "s3cret", secret.Value())
	assert.False(t, secret.IsEmpty())
	assert.Equal(t, "[REDACTED]", secret.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", secret))
	assert.NotContains(t, fmt.Sprintf("%#v", secret), "s3cret")
	assert.NotContains(t, fmt.Sprintf("%+v", struct{ S RedactedToken }{secret}), "s3cret")
}

func TestRedactedToken_Empty(t *testing.T) {
	var empty RedactedToken
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, "", empty.String())
}

func TestRedactedToken_JSON(t *testing.T) {
	out, err := json.Marshal(struct {
		Secret RedactedToken `json:"secret"`
	}{NewRedactedToken("s3cret")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"secret":"[REDACTED]"}`, string(out))
}
