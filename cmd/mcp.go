package cmd

import (
	"github.com/spf13/cobra"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdio",
		Long: `Runs the MCP server on stdin and stdout so an AI assistant can launch
nebula-gateway as a local tool provider. Logs are written to stderr.

Tools: authenticate_fenergo, authenticate_fenergo_sso_initiate,
authenticate_fenergo_sso_complete, investigate_journey, session_status,
logout_fenergo.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication(cmd, opts)
			if err != nil {
				return err
			}
			return application.RunMCPStdio(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
