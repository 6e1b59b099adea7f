// Package oauth is the auth session manager behind nebula-gateway.
//
// It obtains access tokens for the Fenergo Nebula API from the Fenergo
// identity provider and keeps them in memory.
//
// # Flows
//
// Non-interactive: AcquireToken performs the client_credentials or password
// grant. ClientCredentialsToken adds caching per tenant and collapses
// concurrent requests into one.
//
// Interactive: BeginAuthorization returns an authorization URL (with an S256
// PKCE challenge and prompt=login) and records a PendingAuthorization under a
// random state. CompleteAuthorization consumes that state exactly once,
// exchanges the code, and stores the token under a session key of the form
// sso:<tenant>:<uuid>.
//
// Refresh: RefreshToken runs the refresh_token grant; RefreshSession does the
// same for a cached session and replaces it.
//
// # Components
//
//   - StateStore: pending authorizations, 15 minute window, single use
//   - TokenStore: token cache; entries within 60s of expiry read as absent
//   - Manager: the flows above
//   - Handler: HTTP endpoints under /auth and /authenticate
//
// # Security
//
// Everything lives in process memory and is lost on restart. Tokens, codes,
// verifiers, passwords and the client secret are never logged; state values
// and session keys are logged truncated. The tenant id travels to the
// identity provider as the X-Tenant-Id header.
//
// Nothing here retries. A TimeoutError means the outcome at the identity
// provider is unknown.
package oauth
