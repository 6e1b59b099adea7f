// Package mcpserver exposes nebula-gateway to AI assistants as an MCP server.
//
// The tools mirror the two ways of obtaining Fenergo credentials:
//
//   - authenticate_fenergo uses the client_credentials grant for a tenant.
//   - authenticate_fenergo_sso_initiate and authenticate_fenergo_sso_complete
//     drive an interactive login with PKCE.
//
// Credentials are bound to the MCP client session that obtained them and
// are used by investigate_journey. session_status and logout_fenergo inspect
// and drop the binding.
//
// The server runs over stdio (ServeStdio) or is mounted on the HTTP service
// as a streamable HTTP handler (HTTPHandler).
package mcpserver
