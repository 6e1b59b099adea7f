// Package cli holds the terminal helpers used by the nebula-gateway
// commands: result printing in table, json and yaml form, progress
// spinners, readline prompts, and the browser and loopback callback
// plumbing for interactive login.
//
// Errors returned by the auth session manager are wrapped by
// ClassifyAuthError so the root command can pick an exit code:
//
//	token, err := manager.ClientCredentialsToken(ctx, tenant)
//	if err != nil {
//	    return cli.ClassifyAuthError(err, tenant, endpoints.Token)
//	}
package cli
