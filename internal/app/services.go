package app

import (
	"context"
	"fmt"
	"time"

	"nebula-gateway/internal/config"
	"nebula-gateway/internal/fenergo"
	"nebula-gateway/internal/mcpserver"
	"nebula-gateway/internal/metrics"
	"nebula-gateway/internal/oauth"
	"nebula-gateway/internal/server"
	"nebula-gateway/pkg/logging"
	pkgoauth "nebula-gateway/pkg/oauth"
)

// stateCleanupInterval is how often expired pending logins are swept.
const stateCleanupInterval = time.Minute

// Services are the long-lived components of the gateway.
type Services struct {
	Config      config.GatewayConfig
	OAuthClient *pkgoauth.Client
	Manager     *oauth.Manager
	Fenergo     *fenergo.Client
	MCP         *mcpserver.Server
	HTTP        *server.Server
	Metrics     *metrics.Metrics
}

// InitializeServices wires the gateway together:
//
//  1. the token endpoint client
//  2. identity provider endpoints (discovered when configured)
//  3. the auth session manager with its stores
//  4. the Fenergo client
//  5. metrics fed by the manager's audit events
//  6. the MCP server and the HTTP service
func InitializeServices(ctx context.Context, cfg config.GatewayConfig, version string) (*Services, error) {
	oauthClient := pkgoauth.NewClient(
		pkgoauth.WithTimeout(cfg.OAuth.HTTPTimeout),
		pkgoauth.WithLogger(logging.Logger()),
		pkgoauth.WithUserAgent("nebula-gateway/"+version),
	)

	endpoints, err := oauth.ResolveEndpoints(ctx, cfg.OAuth, oauthClient)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identity provider endpoints: %w", err)
	}

	states := oauth.NewStateStore(cfg.OAuth.StateTTL)
	states.StartCleanup(stateCleanupInterval)

	gatewayMetrics := metrics.New()

	manager := oauth.NewManager(cfg.OAuth,
		oauth.WithClient(oauthClient),
		oauth.WithEndpoints(endpoints),
		oauth.WithStateStore(states),
		oauth.WithAuditHook(gatewayMetrics.ObserveAuthEvent),
	)
	gatewayMetrics.RegisterGauges(manager.Tokens().Count, manager.States().Count)

	fenergoClient := fenergo.NewClient(cfg.Fenergo.APIURL,
		fenergo.WithTimeout(cfg.Fenergo.Timeout),
		fenergo.WithUserAgent("nebula-gateway/"+version),
	)

	mcpServer := mcpserver.NewServer(manager, fenergoClient, version)

	httpServer := server.New(cfg, manager, fenergoClient,
		server.WithMCPHandler(mcpServer.HTTPHandler(cfg.Server.MCPPath)),
		server.WithMetrics(gatewayMetrics),
		server.WithLifecycleHooks(notifyReady, notifyStopping),
	)

	return &Services{
		Config:      cfg,
		OAuthClient: oauthClient,
		Manager:     manager,
		Fenergo:     fenergoClient,
		MCP:         mcpServer,
		HTTP:        httpServer,
		Metrics:     gatewayMetrics,
	}, nil
}
