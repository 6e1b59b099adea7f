package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"nebula-gateway/internal/cli"
	"nebula-gateway/internal/oauth"
	"nebula-gateway/pkg/logging"
	pkgoauth "nebula-gateway/pkg/oauth"
)

// openBrowser is replaced in tests.
var openBrowser = cli.OpenBrowser

type loginOptions struct {
	tenant    string
	noBrowser bool
	output    string
	showToken bool
}

func newLoginCmd(root *rootOptions) *cobra.Command {
	opts := &loginOptions{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in interactively with the authorization code flow",
		Long: `Starts an interactive login against the identity provider using the
authorization code grant with PKCE, then prints the resulting token.

When the configured redirect URI points at localhost the redirect is received
by a temporary local listener. Otherwise paste the URL the browser was sent
to, or just the code, when prompted.

The session only lives for the duration of the command. Use it to verify
SSO configuration or to obtain a token for manual calls.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.tenant, "tenant", "", "Tenant id (default from config or FENERGO_TENANT_ID)")
	cmd.Flags().BoolVar(&opts.noBrowser, "no-browser", false, "Print the login URL instead of opening a browser")
	cmd.Flags().StringVarP(&opts.output, "output", "o", string(cli.OutputFormatTable), "Output format: table, json or yaml")
	cmd.Flags().BoolVar(&opts.showToken, "show-token", false, "Print the access token")

	return cmd
}

func runLogin(cmd *cobra.Command, root *rootOptions, opts *loginOptions) error {
	format, err := cli.ParseOutputFormat(opts.output)
	if err != nil {
		return err
	}

	application, err := newApplication(cmd, root)
	if err != nil {
		return err
	}
	defer application.Close()

	services := application.Services()
	tenant := opts.tenant
	if tenant == "" {
		tenant = services.Config.Fenergo.TenantID
	}

	authReq, err := services.Manager.BeginAuthorization(tenant)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithDeadline(cmd.Context(), earliest(authReq.ExpiresAt, time.Now().Add(cli.CallbackTimeout)))
	defer cancel()

	redirectURI := services.Config.OAuth.RedirectURI
	var callbackServer *cli.CallbackServer
	if cli.IsLoopback(redirectURI) {
		callbackServer, err = cli.NewCallbackServer(redirectURI)
		if err == nil {
			err = callbackServer.Start(ctx)
		}
		if err != nil {
			logging.Warn("CLI", "Cannot listen for the redirect, falling back to manual entry: %v", err)
			callbackServer = nil
		} else {
			defer callbackServer.Stop()
		}
	}

	errOut := cmd.ErrOrStderr()
	fmt.Fprintln(errOut, text.FgHiCyan.Sprintf("Log in to tenant %s:", tenant))
	fmt.Fprintf(errOut, "\n  %s\n\n", authReq.AuthorizationURL)
	if !opts.noBrowser {
		if err := openBrowser(authReq.AuthorizationURL); err != nil {
			logging.Debug("CLI", "Could not open browser: %v", err)
			fmt.Fprintln(errOut, "Open the URL above in your browser.")
		}
	}

	var result *cli.CallbackResult
	if callbackServer != nil {
		spinner := cli.NewSpinner(errOut, "Waiting for the identity provider redirect...", format == cli.OutputFormatTable)
		spinner.Start()
		result, err = callbackServer.WaitForCallback(ctx)
		spinner.Stop()
		if err != nil {
			return fmt.Errorf("login did not complete: %w", err)
		}
	} else {
		input, err := newPrompter(cmd).ReadLine("Paste the redirected URL or code: ")
		if err != nil {
			return err
		}
		if result, err = cli.ParseCallbackInput(input, authReq.State); err != nil {
			return err
		}
	}

	session, err := services.Manager.CompleteAuthorization(ctx, oauth.Callback{
		Code:             result.Code,
		State:            result.State,
		Error:            result.Error,
		ErrorDescription: result.ErrorDescription,
	})
	if err != nil {
		return cli.ClassifyAuthError(err, tenant, services.Manager.Endpoints().Token)
	}

	fmt.Fprintln(errOut, text.FgGreen.Sprint("Login successful"))
	view := cli.NewTokenView(session.Key, session.TenantID, pkgoauth.GrantAuthorizationCode, session.Token, opts.showToken)
	return cli.NewPrinter(cmd.OutOrStdout(), format).PrintToken(view)
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
