package cmd

import (
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Long: `Starts the HTTP gateway. It serves:

  GET  /health          liveness and cache counters
  GET  /metrics         Prometheus metrics
  POST /authenticate    client credentials or password grant
  POST /auth/login      begin an interactive login (authorization code + PKCE)
  GET  /auth/callback   identity provider redirect target
  POST /auth/callback   complete a login from JSON
  POST /auth/refresh    refresh a cached session (bearer: its access token)
  POST /auth/logout     drop a cached session (bearer: its access token)
  GET  /auth/sessions   list cached session ids
  POST /execute         forward a request to the Nebula insights API
  /mcp                  MCP streamable HTTP transport

The listener, identity provider and API URL come from config.yaml and the
FENERGO_* environment variables. The server stops gracefully on SIGINT or
SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication(cmd, opts)
			if err != nil {
				return err
			}
			return application.RunServer(cmd.Context())
		},
	}
}
