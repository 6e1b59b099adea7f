package cli

import (
	"errors"
	"fmt"

	pkgoauth "nebula-gateway/pkg/oauth"
)

// AuthFailedError indicates the identity provider refused a grant or a login.
type AuthFailedError struct {
	// Tenant is the tenant the token was requested for.
	Tenant string
	// Reason is the underlying error.
	Reason error
}

// Error returns a user-friendly error message with actionable guidance.
func (e *AuthFailedError) Error() string {
	return fmt.Sprintf(`Authentication failed for tenant %s: %v

Check the client id and secret (FENERGO_CLIENT_ID, FENERGO_CLIENT_SECRET),
or log in interactively:
  nebula-gateway login --tenant %s`, e.Tenant, e.Reason, e.Tenant)
}

// Unwrap returns the underlying error.
func (e *AuthFailedError) Unwrap() error {
	return e.Reason
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthFailedError) Is(target error) bool {
	_, ok := target.(*AuthFailedError)
	return ok
}

// UnreachableError indicates the identity provider could not be reached or
// did not answer in time.
type UnreachableError struct {
	Endpoint string
	Reason   error
}

// Error returns a user-friendly error message.
func (e *UnreachableError) Error() string {
	return fmt.Sprintf("Could not reach %s: %v", e.Endpoint, e.Reason)
}

// Unwrap returns the underlying error.
func (e *UnreachableError) Unwrap() error {
	return e.Reason
}

// ClassifyAuthError wraps err from the auth session manager in the CLI error
// that matches it. Validation errors are returned unchanged.
func ClassifyAuthError(err error, tenant, endpoint string) error {
	if err == nil {
		return nil
	}

	var (
		oauthErr   *pkgoauth.OAuthError
		idpErr     *pkgoauth.IdentityProviderError
		transErr   *pkgoauth.TransportError
		timeoutErr *pkgoauth.TimeoutError
	)
	switch {
	case errors.As(err, &oauthErr), errors.As(err, &idpErr), pkgoauth.IsStateError(err):
		return &AuthFailedError{Tenant: tenant, Reason: err}
	case errors.As(err, &transErr), errors.As(err, &timeoutErr):
		return &UnreachableError{Endpoint: endpoint, Reason: err}
	default:
		return err
	}
}
