package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrInvalidState is returned when a callback's state is unknown, was
	// already consumed, or was never issued. The cases are deliberately
	// indistinguishable to callers.
	ErrInvalidState = errors.New("invalid or unknown authorization state")

	// ErrExpiredState is returned when the state was found but its
	// authorization window has passed. The pending authorization is removed.
	ErrExpiredState = errors.New("authorization state expired")

	// ErrSessionNotOwned is returned when a caller acting on a cached session
	// cannot present that session's current access token. Unknown sessions
	// report the same error.
	ErrSessionNotOwned = errors.New("access token does not match the session")
)

// StatusClientClosedRequest is reported for requests whose caller went away
// before the identity provider answered.
const StatusClientClosedRequest = 499

// ValidationError reports bad caller input. Nothing was sent to the
// identity provider.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// TransportError is a network or TLS failure before any response was received.
// Grant is empty for requests that are not token requests.
type TransportError struct {
	Grant GrantType
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: %v", requestName(e.Grant), e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TimeoutError means the request exceeded its deadline. The identity
// provider may still have processed it, so the outcome is unknown rather than
// failed.
type TimeoutError struct {
	Grant   GrantType
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("%s timed out after %s", requestName(e.Grant), e.Timeout)
	}
	return fmt.Sprintf("%s timed out", requestName(e.Grant))
}

func requestName(grant GrantType) string {
	if grant == "" {
		return "request"
	}
	return string(grant) + " token request"
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// OAuthError is returned when the token endpoint answered but refused the
// grant or returned a malformed body. Body holds the raw response for
// diagnostics and may contain provider hints; it is not part of Error().
type OAuthError struct {
	Grant       GrantType
	StatusCode  int
	ErrorCode   string
	Description string
	Body        string
}

func (e *OAuthError) Error() string {
	msg := fmt.Sprintf("%s token request failed with status %d", e.Grant, e.StatusCode)
	if e.ErrorCode != "" {
		msg += ": " + e.ErrorCode
	}
	if e.Description != "" {
		msg += " (" + e.Description + ")"
	}
	return msg
}

// IdentityProviderError carries the error and error_description parameters
// the identity provider put on the redirect back to us. It means the
// browser-side login failed, not that our request was malformed.
type IdentityProviderError struct {
	Code        string
	Description string
}

func (e *IdentityProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("identity provider returned %s: %s", e.Code, e.Description)
	}
	return "identity provider returned " + e.Code
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStateError reports whether err is ErrInvalidState or ErrExpiredState.
func IsStateError(err error) bool {
	return errors.Is(err, ErrInvalidState) || errors.Is(err, ErrExpiredState)
}

// HTTPStatus maps an error from this package to the status an HTTP service
// wrapping it should return.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var (
		oauthErr     *OAuthError
		idpErr       *IdentityProviderError
		timeoutErr   *TimeoutError
		transportErr *TransportError
	)

	switch {
	case IsValidation(err), IsStateError(err):
		return http.StatusBadRequest
	case errors.As(err, &oauthErr), errors.As(err, &idpErr), errors.Is(err, ErrSessionNotOwned):
		return http.StatusUnauthorized
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	case errors.As(err, &transportErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorKind returns a short machine-readable name for err, used in JSON error
// bodies and MCP tool results.
func ErrorKind(err error) string {
	var (
		oauthErr     *OAuthError
		idpErr       *IdentityProviderError
		timeoutErr   *TimeoutError
		transportErr *TransportError
	)

	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return "validation_error"
	case errors.Is(err, ErrExpiredState):
		return "expired_state"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrSessionNotOwned):
		return "unauthorized"
	case errors.As(err, &idpErr):
		return "identity_provider_error"
	case errors.As(err, &oauthErr):
		return "oauth_error"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &transportErr):
		return "transport_error"
	default:
		return "internal_error"
	}
}
