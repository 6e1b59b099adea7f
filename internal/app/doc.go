// Package app bootstraps nebula-gateway: it loads configuration, sets up
// logging, and wires the auth session manager, the Fenergo client, the MCP
// server and the HTTP service together.
//
// Commands in cmd/ create an Application and pick a mode: RunServer for the
// HTTP service (which also serves MCP over streamable HTTP) or RunMCPStdio
// for assistants that launch the gateway as a subprocess.
package app
