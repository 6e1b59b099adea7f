// Package oauth contains the protocol-level pieces of nebula-gateway's OAuth
// 2.0 / OpenID Connect support.
//
// It is stateless: nothing here remembers tokens or pending logins. The
// stateful session manager built on top of it lives in internal/oauth.
//
//   - Client posts grant forms to the token endpoint, enforces a per-request
//     timeout, and classifies failures.
//   - BuildAuthorizationURL builds the browser URL for the authorization code flow.
//   - GeneratePKCE and GenerateState produce RFC 7636 verifiers and CSRF state.
//   - Token is the immutable record of an issued access token.
//   - RedactedToken keeps secrets out of logs.
//
// # Errors
//
// Every failure is one of ValidationError, TransportError, TimeoutError,
// OAuthError, IdentityProviderError, ErrInvalidState or ErrExpiredState.
// HTTPStatus maps them to the status code an HTTP service should return.
// No operation retries on its own; callers decide.
package oauth
