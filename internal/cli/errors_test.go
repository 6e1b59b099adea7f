package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	pkgoauth "nebula-gateway/pkg/oauth"
)

func TestClassifyAuthError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantAs  interface{}
		wantErr bool
	}{
		{"oauth rejection", &pkgoauth.OAuthError{StatusCode: 401, ErrorCode: "invalid_client"}, &AuthFailedError{}, true},
		{"provider error", &pkgoauth.IdentityProviderError{Code: "access_denied"}, &AuthFailedError{}, true},
		{"expired state", fmt.Errorf("complete: %w", pkgoauth.ErrExpiredState), &AuthFailedError{}, true},
		{"transport", &pkgoauth.TransportError{Err: errors.New("connection refused")}, &UnreachableError{}, true},
		{"timeout", &pkgoauth.TimeoutError{}, &UnreachableError{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyAuthError(tt.err, "tenant-A", "https://idp/token")
			assert.ErrorIs(t, got, tt.err)
			switch tt.wantAs.(type) {
			case *AuthFailedError:
				var target *AuthFailedError
				assert.ErrorAs(t, got, &target)
				assert.Contains(t, got.Error(), "tenant-A")
			case *UnreachableError:
				var target *UnreachableError
				assert.ErrorAs(t, got, &target)
				assert.Contains(t, got.Error(), "https://idp/token")
			}
		})
	}
}

func TestClassifyAuthError_PassThrough(t *testing.T) {
	assert.NoError(t, ClassifyAuthError(nil, "t", "e"))

	validation := pkgoauth.NewValidationError("tenantId", "is required")
	assert.Same(t, validation, ClassifyAuthError(validation, "t", "e"))
}

func TestAuthFailedError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &AuthFailedError{Tenant: "x", Reason: errors.New("boom")})
	assert.ErrorIs(t, err, &AuthFailedError{})
}
