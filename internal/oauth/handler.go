package oauth

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"nebula-gateway/pkg/logging"
	pkgoauth "nebula-gateway/pkg/oauth"
)

// maxRequestBody bounds JSON request bodies on the auth endpoints.
const maxRequestBody = 64 << 10

// Handler exposes the manager over HTTP.
type Handler struct {
	manager *Manager
	// defaultTenant is used by /authenticate when the body names none.
	defaultTenant string
}

// NewHandler creates a new auth HTTP handler.
func NewHandler(manager *Manager, defaultTenant string) *Handler {
	return &Handler{
		manager:       manager,
		defaultTenant: defaultTenant,
	}
}

// Routes registers the auth endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
	r.Get("/auth/callback", h.HandleCallbackRedirect)
	r.Post("/auth/callback", h.HandleCallbackJSON)
	r.Post("/auth/refresh", h.HandleRefresh)
	r.Post("/auth/logout", h.HandleLogout)
	r.Get("/auth/sessions", h.HandleSessions)
	r.Post("/authenticate", h.HandleAuthenticate)
}

type loginRequest struct {
	TenantID string `json:"tenantId"`
}

type loginResponse struct {
	AuthorizationURL string    `json:"authorizationUrl"`
	State            string    `json:"state"`
	TenantID         string    `json:"tenantId"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

// HandleLogin starts an interactive login. The code verifier stays on the server.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	authReq, err := h.manager.BeginAuthorization(req.TenantID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, loginResponse{
		AuthorizationURL: authReq.AuthorizationURL,
		State:            authReq.State,
		TenantID:         authReq.TenantID,
		ExpiresAt:        authReq.ExpiresAt,
	})
}

type callbackRequest struct {
	Code         string `json:"code"`
	State        string `json:"state"`
	CodeVerifier string `json:"codeVerifier,omitempty"`
}

// TokenResponse is the JSON shape returned for an issued token.
type TokenResponse struct {
	Success      bool   `json:"success"`
	SessionKey   string `json:"sessionKey,omitempty"`
	TenantID     string `json:"tenantId,omitempty"`
	AccessToken  string `json:"accessToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"`
	Scope        string `json:"scope,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// NewTokenResponse builds a TokenResponse. The refresh token is never included.
func NewTokenResponse(sessionKey, tenantID string, token *pkgoauth.Token) TokenResponse {
	return TokenResponse{
		Success:     true,
		SessionKey:  sessionKey,
		TenantID:    tenantID,
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   token.ExpiresIn,
		Scope:       token.Scope,
	}
}

// HandleCallbackJSON completes a login for API clients that captured the
// redirect themselves.
func (h *Handler) HandleCallbackJSON(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	session, err := h.manager.CompleteAuthorization(r.Context(), Callback{
		Code:         req.Code,
		State:        req.State,
		CodeVerifier: req.CodeVerifier,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, NewTokenResponse(session.Key, session.TenantID, session.Token))
}

// HandleCallbackRedirect is the redirect target registered with the identity
// provider. It answers the browser with an HTML page.
func (h *Handler) HandleCallbackRedirect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	session, err := h.manager.CompleteAuthorization(r.Context(), Callback{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})
	if err != nil {
		renderPage(w, pkgoauth.HTTPStatus(err), page{
			Title:   "Authentication Failed",
			Failed:  true,
			Message: callbackErrorMessage(err),
		})
		return
	}

	renderPage(w, http.StatusOK, page{
		Title:      "Authentication Successful",
		Message:    "You are signed in to Fenergo tenant " + session.TenantID + ".",
		SessionKey: session.Key,
	})
}

// callbackErrorMessage turns an error into text that is safe to show a user.
func callbackErrorMessage(err error) string {
	var idpErr *pkgoauth.IdentityProviderError
	switch {
	case errors.As(err, &idpErr):
		if idpErr.Description != "" {
			return "Authentication failed: " + idpErr.Description
		}
		return "Authentication failed: " + idpErr.Code
	case pkgoauth.IsValidation(err):
		return "Invalid callback: missing required parameters"
	case errors.Is(err, pkgoauth.ErrExpiredState):
		return "Authentication session expired. Please try again."
	case errors.Is(err, pkgoauth.ErrInvalidState):
		return "Authentication session invalid or already used. Please try again."
	default:
		return "Failed to complete authentication. Please try again."
	}
}

type authenticateRequest struct {
	TenantID string `json:"tenantId"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// HandleAuthenticate issues a token by the password grant when a username is
// given, otherwise by client credentials.
func (h *Handler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	tenantID := req.TenantID
	if tenantID == "" {
		tenantID = h.defaultTenant
	}

	var (
		token *pkgoauth.Token
		key   string
		err   error
	)
	if req.Username != "" || req.Password != "" {
		token, err = h.manager.AcquireToken(r.Context(), AcquireRequest{
			Grant:    pkgoauth.GrantPassword,
			TenantID: tenantID,
			Username: req.Username,
			Password: req.Password,
		})
	} else {
		token, err = h.manager.ClientCredentialsToken(r.Context(), tenantID)
		key = ClientCredentialsKey(tenantID)
	}
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, NewTokenResponse(key, tenantID, token))
}

type sessionRequest struct {
	SessionKey string `json:"sessionKey"`
}

// HandleRefresh refreshes a cached session. The caller must present the
// session's current access token as a bearer token.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	req, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	session, err := h.manager.RefreshSession(r.Context(), req.SessionKey)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, NewTokenResponse(session.Key, session.TenantID, session.Token))
}

// HandleLogout forgets a cached session. Like HandleRefresh it requires the
// session's current access token.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	req, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	h.manager.Logout(req.SessionKey)
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ownedSession decodes a sessionRequest and checks the Authorization header
// against the session's current access token. It writes the error reply
// itself and reports false when the request must stop.
func (h *Handler) ownedSession(w http.ResponseWriter, r *http.Request) (sessionRequest, bool) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return req, false
	}
	if req.SessionKey == "" {
		WriteError(w, pkgoauth.NewValidationError("sessionKey", "is required"))
		return req, false
	}
	if err := h.manager.VerifySession(req.SessionKey, bearerToken(r)); err != nil {
		w.Header().Set("WWW-Authenticate", `Bearer realm="nebula-gateway"`)
		WriteError(w, err)
		return req, false
	}
	return req, true
}

// bearerToken returns the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// HandleSessions lists cached sessions, filtered by ?tenantId= when given.
// Listings carry session ids, never session keys.
func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.manager.Sessions(r.URL.Query().Get("tenantId"))
	if sessions == nil {
		sessions = []SessionInfo{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessions":       sessions,
		"pendingLogins":  h.manager.States().Count(),
		"cachedSessions": h.manager.Tokens().Count(),
	})
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	// Status is the identity provider's HTTP status for OAuth errors.
	Status int `json:"status,omitempty"`
	// Details is the identity provider's raw error body, for diagnostics.
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WriteError writes err as JSON with the status from pkgoauth.HTTPStatus.
func WriteError(w http.ResponseWriter, err error) {
	status := pkgoauth.HTTPStatus(err)
	resp := ErrorResponse{
		Error:     pkgoauth.ErrorKind(err),
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	}

	var oauthErr *pkgoauth.OAuthError
	if errors.As(err, &oauthErr) {
		resp.Status = oauthErr.StatusCode
		resp.Details = oauthErr.Body
	}

	if status >= http.StatusInternalServerError {
		logging.Error("Server", err, "Request failed with status %d", status)
	}

	WriteJSON(w, status, resp)
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Server", "Failed to encode response: %v", err)
	}
}

// decodeJSON reads a JSON body into v. Malformed input is a ValidationError.
func decodeJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return pkgoauth.NewValidationError("body", "could not be read")
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return pkgoauth.NewValidationError("body", "is not valid JSON")
	}
	return nil
}

type page struct {
	Title      string
	Message    string
	SessionKey string
	Failed     bool
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}} - Nebula Gateway</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; background: #0f2438; color: #e8e8e8; display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; }
        .container { text-align: center; padding: 3rem; background: rgba(255, 255, 255, 0.05); border-radius: 16px; max-width: 520px; margin: 1rem; }
        .icon { font-size: 2.5rem; margin-bottom: 1rem; color: {{if .Failed}}#ff6b6b{{else}}#00d4aa{{end}}; }
        code { background: rgba(255, 255, 255, 0.1); padding: 0.2rem 0.4rem; border-radius: 4px; word-break: break-all; }
        p { color: #a0a0a0; line-height: 1.6; }
    </style>
</head>
<body>
    <div class="container">
        <div class="icon">{{if .Failed}}✕{{else}}✓{{end}}</div>
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
        {{if .SessionKey}}<p>Session: <code>{{.SessionKey}}</code></p>{{end}}
        <p>{{if .Failed}}Return to your assistant and start the login again.{{else}}You can close this window and return to your assistant.{{end}}</p>
    </div>
</body>
</html>`))

// setSecurityHeaders sets recommended security headers for HTML responses.
func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
}

func renderPage(w http.ResponseWriter, status int, p page) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, p); err != nil {
		logging.Warn("Server", "Failed to render page: %v", err)
	}
}
