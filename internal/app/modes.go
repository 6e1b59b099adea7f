package app

import (
	"context"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"nebula-gateway/internal/config"
	"nebula-gateway/pkg/logging"
)

// RunServer serves HTTP until ctx is cancelled or SIGINT/SIGTERM arrives,
// then shuts down gracefully. Logging changes in config.yaml are applied
// while running.
func (a *Application) RunServer(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer a.Close()

	watcher := config.NewWatcher(a.configPath, a.applyConfigChange)
	if err := watcher.Start(); err != nil {
		logging.Warn("Bootstrap", "Not watching %s for changes: %v", a.configPath, err)
	} else {
		defer watcher.Stop()
	}

	logging.Info("CLI", "Starting nebula-gateway on %s (MCP at %s)",
		a.services.HTTP.Addr(), a.services.Config.Server.MCPPath)
	return a.services.HTTP.Run(ctx)
}

// RunMCPStdio serves MCP over in and out until ctx is cancelled, a signal
// arrives, or in is closed.
func (a *Application) RunMCPStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer a.Close()

	return a.services.MCP.ServeStdio(ctx, in, out)
}

// applyConfigChange re-applies logging from a reloaded config.yaml. Other
// settings are bound into running services and need a restart.
func (a *Application) applyConfigChange(cfg config.GatewayConfig) {
	initLogging(cfg.Logging, a.config, a.logOutput)
	logging.Info("Bootstrap", "Reloaded logging settings level=%s format=%s", cfg.Logging.Level, cfg.Logging.Format)

	if cfg.Server != a.services.Config.Server || !sameOAuth(cfg.OAuth, a.services.Config.OAuth) || cfg.Fenergo != a.services.Config.Fenergo {
		logging.Warn("Bootstrap", "Configuration changed; restart to apply settings other than logging")
	}
}

func sameOAuth(a, b config.OAuthConfig) bool {
	return a.ClientID == b.ClientID &&
		a.ClientSecret == b.ClientSecret &&
		a.AuthorityURL == b.AuthorityURL &&
		a.AuthorizationEndpoint == b.AuthorizationEndpoint &&
		a.TokenEndpoint == b.TokenEndpoint &&
		a.RedirectURI == b.RedirectURI &&
		a.UsePKCE == b.UsePKCE &&
		a.Discovery == b.Discovery &&
		a.StateTTL == b.StateTTL &&
		a.HTTPTimeout == b.HTTPTimeout &&
		strings.Join(a.Scopes, " ") == strings.Join(b.Scopes, " ") &&
		strings.Join(a.SSOScopes, " ") == strings.Join(b.SSOScopes, " ")
}
