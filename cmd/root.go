package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nebula-gateway/internal/app"
	"nebula-gateway/internal/cli"
	pkgoauth "nebula-gateway/pkg/oauth"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeUnreachable indicates the identity provider could not be reached.
	ExitCodeUnreachable = 2
	// ExitCodeAuthFailed indicates the identity provider refused the grant.
	ExitCodeAuthFailed = 3
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// version is injected by main at build time.
var version = "dev"

// rootCmd is the entry point when the binary is called without subcommands.
var rootCmd = newRootCmd()

// newRootCmd builds the full command tree.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "nebula-gateway",
		Short: "OAuth session gateway for the Fenergo Nebula API",
		Long: `nebula-gateway obtains and caches Fenergo identity tokens and uses them
to call the Nebula insights API on behalf of AI assistants.

It can run as an HTTP service (serve), as an MCP server over stdio (mcp),
or be used directly from the terminal to request tokens and log in.`,
		// SilenceUsage keeps usage text out of runtime failures.
		SilenceUsage: true,
		Version:      version,
	}
	cmd.SetVersionTemplate(`{{printf "nebula-gateway version %s\n" .Version}}`)

	cmd.PersistentFlags().StringVar(&opts.configPath, "config-path", "", "Directory holding config.yaml (default ~/.config/nebula-gateway)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: text or json (overrides config)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newMCPCmd(opts))
	cmd.AddCommand(newTokenCmd(opts))
	cmd.AddCommand(newLoginCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// SetVersion sets the version reported by --version and the version command.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return version
}

// Execute runs the root command and exits with a code describing the failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the exit code for err so scripts can tell a refused
// credential from an unreachable identity provider.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var authFailed *cli.AuthFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}

	var oauthErr *pkgoauth.OAuthError
	var idpErr *pkgoauth.IdentityProviderError
	if errors.As(err, &oauthErr) || errors.As(err, &idpErr) {
		return ExitCodeAuthFailed
	}

	var unreachable *cli.UnreachableError
	if errors.As(err, &unreachable) {
		return ExitCodeUnreachable
	}

	return ExitCodeError
}

// newApplication loads configuration and builds services for a subcommand.
// Logs go to the command's stderr.
func newApplication(cmd *cobra.Command, opts *rootOptions) (*app.Application, error) {
	cfg := app.NewConfig(opts.configPath, opts.logLevel, opts.logFormat, version)
	cfg.LogOutput = cmd.ErrOrStderr()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	application, err := app.NewApplication(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return application, nil
}
