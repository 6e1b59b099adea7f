package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"nebula-gateway/internal/fenergo"
	"nebula-gateway/internal/oauth"
	"nebula-gateway/pkg/logging"
	pkgoauth "nebula-gateway/pkg/oauth"
)

// handleAuthenticate acquires (or reuses) the tenant's client_credentials
// token and binds it to the calling session.
func (s *Server) handleAuthenticate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, err := request.RequireString("tenantId")
	if err != nil || strings.TrimSpace(tenantID) == "" {
		return mcp.NewToolResultError("Missing required parameter: tenantId"), nil
	}

	if _, err := s.manager.ClientCredentialsToken(ctx, tenantID); err != nil {
		logging.Error("MCP", err, "authenticate_fenergo failed tenant=%s", tenantID)
		return mcp.NewToolResultError(fmt.Sprintf("Authentication failed: %v", err)), nil
	}

	s.bind(ctx, binding{tenantID: tenantID})
	return mcp.NewToolResultText(fmt.Sprintf(
		"Successfully authenticated with client credentials for tenant %s. Token cached for session. You can now use the investigate_journey tool.",
		tenantID)), nil
}

func (s *Server) handleSSOInitiate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, err := request.RequireString("tenantId")
	if err != nil || strings.TrimSpace(tenantID) == "" {
		return mcp.NewToolResultError("Missing required parameter: tenantId"), nil
	}

	authReq, err := s.manager.BeginAuthorization(tenantID)
	if err != nil {
		logging.Error("MCP", err, "SSO initiation failed tenant=%s", tenantID)
		return mcp.NewToolResultError(fmt.Sprintf("SSO login initiation failed: %v", err)), nil
	}

	var b strings.Builder
	b.WriteString("SSO login initiated.\n\n")
	b.WriteString("Visit the following URL to log in with your Fenergo credentials:\n\n")
	b.WriteString(authReq.AuthorizationURL)
	b.WriteString("\n\nAfter logging in you are redirected to the callback page, which shows an authorization code. ")
	b.WriteString("Then call authenticate_fenergo_sso_complete with:\n")
	b.WriteString("- code: the authorization code from the callback page\n")
	fmt.Fprintf(&b, "- state: %s\n\n", authReq.State)
	fmt.Fprintf(&b, "Tenant ID: %s\n", tenantID)
	fmt.Fprintf(&b, "The login must be completed before %s.", authReq.ExpiresAt.UTC().Format(time.RFC3339))

	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleSSOComplete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code := request.GetString("code", "")
	state := request.GetString("state", "")
	if code == "" || state == "" {
		return mcp.NewToolResultError("Missing required parameters: code or state"), nil
	}

	session, err := s.manager.CompleteAuthorization(ctx, oauth.Callback{Code: code, State: state})
	switch {
	case errors.Is(err, pkgoauth.ErrInvalidState):
		return mcp.NewToolResultError("Invalid state token: SSO session not found. Please initiate SSO login again with authenticate_fenergo_sso_initiate."), nil
	case errors.Is(err, pkgoauth.ErrExpiredState):
		return mcp.NewToolResultError("State token expired: the SSO login took too long. Please initiate SSO login again with authenticate_fenergo_sso_initiate."), nil
	case err != nil:
		return mcp.NewToolResultError(fmt.Sprintf("SSO authentication failed: %v", err)), nil
	}

	s.bind(ctx, binding{tenantID: session.TenantID, sessionKey: session.Key})
	return mcp.NewToolResultText(fmt.Sprintf(
		"Successfully authenticated via SSO for tenant %s. Token cached for session. You can now use the investigate_journey tool.\n\nSession key: %s",
		session.TenantID, session.Key)), nil
}

func (s *Server) handleInvestigateJourney(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	journeyID := request.GetString("journeyId", "")
	query := request.GetString("query", "")
	scope := request.GetString("scope", "")
	if journeyID == "" || query == "" || scope == "" {
		return mcp.NewToolResultError("Missing required parameters: journeyId, query, or scope"), nil
	}

	insightsReq, err := fenergo.JourneyRequest(journeyID, query, scope)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}

	b, ok := s.credentialsFor(ctx, request.GetString("sessionKey", ""))
	if !ok {
		return mcp.NewToolResultError("No authentication token available. Please call authenticate_fenergo or authenticate_fenergo_sso_initiate first."), nil
	}

	var creds fenergo.Credentials
	if b.sessionKey != "" {
		creds = fenergo.TokenSourceCredentials(s.manager.SessionTokenSource(ctx, b.sessionKey))
	} else {
		creds = fenergo.TokenSourceCredentials(s.manager.TokenSource(ctx, b.tenantID))
	}

	resp, err := s.fenergo.Investigate(ctx, b.tenantID, creds, insightsReq)
	if err != nil {
		logging.Error("MCP", err, "investigate_journey failed tenant=%s", b.tenantID)
		return mcp.NewToolResultError(fmt.Sprintf("Error investigating journey: %v", err)), nil
	}

	return mcp.NewToolResultText(resp.Text()), nil
}

// credentialsFor picks the credentials for a call: an explicit SSO session
// key wins over the session's binding.
func (s *Server) credentialsFor(ctx context.Context, sessionKey string) (binding, bool) {
	if sessionKey != "" {
		kind, tenantID, ok := oauth.ParseSessionKey(sessionKey)
		if !ok || kind != "sso" {
			return binding{}, false
		}
		return binding{tenantID: tenantID, sessionKey: sessionKey}, true
	}
	return s.binding(ctx)
}

func (s *Server) handleSessionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, ok := s.binding(ctx)
	if !ok {
		return mcp.NewToolResultText("Not authenticated. Call authenticate_fenergo or authenticate_fenergo_sso_initiate."), nil
	}

	key := b.sessionKey
	method := "SSO"
	if key == "" {
		key = oauth.ClientCredentialsKey(b.tenantID)
		method = "client credentials"
	}

	info, found := s.manager.Session(key)
	if !found {
		if b.sessionKey == "" {
			return mcp.NewToolResultText(fmt.Sprintf(
				"Authenticated with client credentials for tenant %s. The cached token has expired and will be renewed on the next call.",
				b.tenantID)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf(
			"The SSO session for tenant %s has expired. Please log in again with authenticate_fenergo_sso_initiate.",
			b.tenantID)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Authenticated via %s for tenant %s. Token expires at %s (refreshable: %t).",
		method, info.TenantID, info.ExpiresAt.UTC().Format(time.RFC3339), info.Refreshable)), nil
}

func (s *Server) handleLogout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, ok := s.binding(ctx)
	if !ok {
		return mcp.NewToolResultText("Not authenticated."), nil
	}

	if b.sessionKey != "" {
		s.manager.Logout(b.sessionKey)
	}
	s.unbind(sessionID(ctx))
	return mcp.NewToolResultText(fmt.Sprintf("Logged out of tenant %s.", b.tenantID)), nil
}
