// Package server is the HTTP face of nebula-gateway.
//
// Routes:
//
//	GET  /health          liveness and cache counters
//	GET  /metrics         Prometheus metrics (with WithMetrics)
//	POST /authenticate    client_credentials or password grant
//	POST /auth/login      start an SSO login
//	GET  /auth/callback   identity provider redirect target (HTML)
//	POST /auth/callback   complete an SSO login (JSON)
//	POST /auth/refresh    refresh a cached session (bearer: its access token)
//	POST /auth/logout     drop a cached session (bearer: its access token)
//	GET  /auth/sessions   list cached session ids
//	POST /execute         forward an insights query to Fenergo
//	     /mcp             MCP streamable HTTP endpoint (path is configurable)
//
// Errors are JSON bodies whose status follows oauth.HTTPStatus: 400 for
// invalid input or login state, 401 for identity provider refusals and for
// session calls without the session's access token, 502 for unreachable
// upstreams and 504 for timeouts.
package server
