package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"nebula-gateway/internal/cli"
	"nebula-gateway/internal/oauth"
	pkgoauth "nebula-gateway/pkg/oauth"
)

// newPrompter is replaced in tests.
var newPrompter = func(cmd *cobra.Command) cli.Prompter {
	return cli.NewReadlinePrompter(nil, cmd.ErrOrStderr())
}

type tokenOptions struct {
	tenant    string
	grant     string
	username  string
	password  string
	output    string
	showToken bool
}

func newTokenCmd(root *rootOptions) *cobra.Command {
	opts := &tokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Request an access token with the client credentials or password grant",
		Long: `Requests an access token from the configured identity provider and prints
its metadata. The token itself is redacted unless --show-token is given.

With --grant password the username and password are prompted for when not
passed as flags. The password is never echoed or logged.

Examples:
  nebula-gateway token --tenant 7f1c...
  nebula-gateway token --grant password --username alice -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.tenant, "tenant", "", "Tenant id (default from config or FENERGO_TENANT_ID)")
	cmd.Flags().StringVar(&opts.grant, "grant", string(pkgoauth.GrantClientCredentials), "Grant type: client_credentials or password")
	cmd.Flags().StringVar(&opts.username, "username", "", "Username for the password grant")
	cmd.Flags().StringVar(&opts.password, "password", "", "Password for the password grant (prompted when empty)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", string(cli.OutputFormatTable), "Output format: table, json or yaml")
	cmd.Flags().BoolVar(&opts.showToken, "show-token", false, "Print the access token")

	return cmd
}

func runToken(cmd *cobra.Command, root *rootOptions, opts *tokenOptions) error {
	format, err := cli.ParseOutputFormat(opts.output)
	if err != nil {
		return err
	}

	grant := pkgoauth.GrantType(opts.grant)
	if grant != pkgoauth.GrantClientCredentials && grant != pkgoauth.GrantPassword {
		return pkgoauth.NewValidationError("grant", "must be client_credentials or password, got "+opts.grant)
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

	username, password := opts.username, opts.password
	if grant == pkgoauth.GrantPassword {
		prompter := newPrompter(cmd)
		if username == "" {
			if username, err = prompter.ReadLine("Username: "); err != nil {
				return err
			}
		}
		if password == "" {
			if password, err = prompter.ReadPassword("Password: "); err != nil {
				return err
			}
		}
	}

	spinner := cli.NewSpinner(cmd.ErrOrStderr(), "Requesting token...", format == cli.OutputFormatTable)
	spinner.Start()

	var (
		token      *pkgoauth.Token
		sessionKey string
	)
	if grant == pkgoauth.GrantClientCredentials {
		sessionKey = oauth.ClientCredentialsKey(tenant)
		token, err = services.Manager.ClientCredentialsToken(cmd.Context(), tenant)
	} else {
		token, err = services.Manager.AcquireToken(cmd.Context(), oauth.AcquireRequest{
			Grant:    grant,
			TenantID: tenant,
			Username: username,
			Password: password,
		})
	}
	spinner.Stop()

	if err != nil {
		return cli.ClassifyAuthError(err, tenant, services.Manager.Endpoints().Token)
	}

	view := cli.NewTokenView(sessionKey, tenant, grant, token, opts.showToken)
	if err := cli.NewPrinter(cmd.OutOrStdout(), format).PrintToken(view); err != nil {
		return fmt.Errorf("failed to print token: %w", err)
	}
	return nil
}
