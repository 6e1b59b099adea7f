package mcpserver

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"nebula-gateway/internal/fenergo"
	"nebula-gateway/internal/oauth"
	"nebula-gateway/pkg/logging"
	pkgstrings "nebula-gateway/pkg/strings"
)

// ServerName is reported to MCP clients during initialization.
const ServerName = "nebula-gateway"

// binding ties one MCP client session to the credentials it authenticated
// with. sessionKey is empty for client credentials, which are looked up by
// tenant so an expired token is re-acquired transparently.
type binding struct {
	tenantID   string
	sessionKey string
}

// Server exposes the auth session manager and the Fenergo client as MCP
// tools. Each MCP client session keeps its own credentials.
type Server struct {
	manager *oauth.Manager
	fenergo *fenergo.Client

	mcpServer *server.MCPServer

	mu       sync.RWMutex
	bindings map[string]binding
}

// NewServer creates the MCP server and registers its tools.
func NewServer(manager *oauth.Manager, fenergoClient *fenergo.Client, version string) *Server {
	s := &Server{
		manager:  manager,
		fenergo:  fenergoClient,
		bindings: make(map[string]binding),
	}

	hooks := &server.Hooks{}
	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		s.unbind(session.SessionID())
	})

	s.mcpServer = server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(false),
		server.WithHooks(hooks),
		server.WithRecovery(),
	)
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves MCP over in and out until ctx is cancelled or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	logging.Info("MCP", "Serving MCP over stdio")
	return server.NewStdioServer(s.mcpServer).Listen(ctx, in, out)
}

// HTTPHandler returns a streamable HTTP handler to be mounted at endpointPath.
func (s *Server) HTTPHandler(endpointPath string) http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer, server.WithEndpointPath(endpointPath))
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("authenticate_fenergo",
		mcp.WithDescription("Authenticate with the Fenergo Nebula API using the OAuth client_credentials grant. Must be called before investigate_journey unless SSO is used. The token is cached for this session."),
		mcp.WithString("tenantId",
			mcp.Required(),
			mcp.Description("Fenergo tenant ID (GUID format)"),
		),
	), s.handleAuthenticate)

	s.mcpServer.AddTool(mcp.NewTool("authenticate_fenergo_sso_initiate",
		mcp.WithDescription("Start Single Sign-On with Fenergo. Returns a login URL the user must visit, and a state token. Call authenticate_fenergo_sso_complete afterwards."),
		mcp.WithString("tenantId",
			mcp.Required(),
			mcp.Description("Fenergo tenant ID (GUID format)"),
		),
	), s.handleSSOInitiate)

	s.mcpServer.AddTool(mcp.NewTool("authenticate_fenergo_sso_complete",
		mcp.WithDescription("Complete Single Sign-On with the authorization code from the callback URL. Must be called after authenticate_fenergo_sso_initiate and after the user has logged in."),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("Authorization code from the SSO callback URL (code parameter)"),
		),
		mcp.WithString("state",
			mcp.Required(),
			mcp.Description("State token returned by authenticate_fenergo_sso_initiate"),
		),
	), s.handleSSOComplete)

	s.mcpServer.AddTool(mcp.NewTool("investigate_journey",
		mcp.WithDescription("Ask a question about the documents or requirements of a Fenergo journey. Requires prior authentication with authenticate_fenergo or SSO."),
		mcp.WithString("journeyId",
			mcp.Required(),
			mcp.Description("Journey ID (GUID format)"),
			mcp.Pattern(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language question about the journey"),
		),
		mcp.WithString("scope",
			mcp.Required(),
			mcp.Description("Investigation scope: documents or requirements"),
			mcp.Enum(fenergo.ScopeDocuments, fenergo.ScopeRequirements),
		),
		mcp.WithString("sessionKey",
			mcp.Description("Session key of an SSO login to use instead of this session's credentials"),
		),
	), s.handleInvestigateJourney)

	s.mcpServer.AddTool(mcp.NewTool("session_status",
		mcp.WithDescription("Show which Fenergo credentials this session uses and when its token expires"),
	), s.handleSessionStatus)

	s.mcpServer.AddTool(mcp.NewTool("logout_fenergo",
		mcp.WithDescription("Forget the Fenergo credentials of this session"),
	), s.handleLogout)
}

// sessionID identifies the MCP client session behind ctx. Callers outside a
// session (tests, single-client stdio) share the empty id.
func sessionID(ctx context.Context) string {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		return session.SessionID()
	}
	return ""
}

func (s *Server) bind(ctx context.Context, b binding) {
	id := sessionID(ctx)
	s.mu.Lock()
	s.bindings[id] = b
	s.mu.Unlock()
	logging.Debug("MCP", "Bound session=%s tenant=%s", pkgstrings.TruncateID(id), b.tenantID)
}

func (s *Server) binding(ctx context.Context) (binding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bindings[sessionID(ctx)]
	return b, ok
}

func (s *Server) unbind(id string) {
	s.mu.Lock()
	delete(s.bindings, id)
	s.mu.Unlock()
}
