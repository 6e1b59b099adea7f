package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nebula-gateway/internal/fenergo"
	"nebula-gateway/internal/oauth"
	"nebula-gateway/pkg/logging"
	pkgoauth "nebula-gateway/pkg/oauth"
)

const maxExecuteBody = 256 << 10

type executeRequest struct {
	Data *fenergo.InsightsRequest `json:"data"`
}

// ExecuteResponse is the reply of POST /execute.
type ExecuteResponse struct {
	Result   json.RawMessage `json:"result"`
	Raw      bool            `json:"raw,omitempty"`
	Metadata ExecuteMetadata `json:"metadata"`
}

// ExecuteMetadata describes how the upstream call went.
type ExecuteMetadata struct {
	Timestamp     time.Time `json:"timestamp"`
	TenantID      string    `json:"tenantId"`
	FenergoStatus int       `json:"fenergoStatus"`
}

// handleExecute forwards an insights query to Fenergo with the caller's
// Authorization header. There is no fallback credential: a request without
// one is rejected.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if strings.TrimSpace(authHeader) == "" {
		oauth.WriteJSON(w, http.StatusUnauthorized, oauth.ErrorResponse{
			Error:     "unauthorized",
			Message:   "no authentication token provided; call /authenticate or complete an SSO login first",
			Timestamp: s.now().UTC(),
		})
		return
	}

	tenantID := r.Header.Get(fenergo.TenantHeader)
	if tenantID == "" {
		tenantID = s.cfg.Fenergo.TenantID
	}
	if tenantID == "" {
		oauth.WriteError(w, pkgoauth.NewValidationError(fenergo.TenantHeader, "header is required when no default tenant is configured"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxExecuteBody))
	if err != nil {
		oauth.WriteError(w, pkgoauth.NewValidationError("body", "could not be read"))
		return
	}

	var req executeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		oauth.WriteError(w, pkgoauth.NewValidationError("body", "is not valid JSON"))
		return
	}
	if req.Data == nil {
		oauth.WriteError(w, pkgoauth.NewValidationError("data", "is required"))
		return
	}

	resp, err := s.fenergo.Investigate(r.Context(), tenantID, fenergo.HeaderCredentials(authHeader), *req.Data)
	s.observeFenergo(resp, err)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}

	oauth.WriteJSON(w, http.StatusOK, ExecuteResponse{
		Result: resp.Result(),
		Raw:    resp.Raw,
		Metadata: ExecuteMetadata{
			Timestamp:     s.now().UTC(),
			TenantID:      tenantID,
			FenergoStatus: resp.StatusCode,
		},
	})
}

func (s *Server) observeFenergo(resp *fenergo.InsightsResponse, err error) {
	if s.metrics == nil {
		return
	}
	var apiErr *fenergo.APIError
	switch {
	case err == nil:
		s.metrics.ObserveFenergo(strconv.Itoa(resp.StatusCode))
	case errors.As(err, &apiErr):
		s.metrics.ObserveFenergo(strconv.Itoa(apiErr.StatusCode))
	default:
		s.metrics.ObserveFenergo(pkgoauth.ErrorKind(err))
	}
}

// writeUpstreamError passes authentication failures from Fenergo through and
// reports every other upstream status as a bad gateway.
func (s *Server) writeUpstreamError(w http.ResponseWriter, err error) {
	var apiErr *fenergo.APIError
	if !errors.As(err, &apiErr) {
		oauth.WriteError(w, err)
		return
	}

	status := http.StatusBadGateway
	if apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden {
		status = apiErr.StatusCode
	}
	logging.Warn("Server", "Fenergo API returned status %d", apiErr.StatusCode)

	oauth.WriteJSON(w, status, oauth.ErrorResponse{
		Error:     "fenergo_error",
		Message:   apiErr.Error(),
		Status:    apiErr.StatusCode,
		Timestamp: s.now().UTC(),
	})
}

// HealthResponse is the reply of GET /health.
type HealthResponse struct {
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	Sessions        int       `json:"sessions"`
	PendingLogins   int       `json:"pendingLogins"`
	TokenEndpoint   string    `json:"tokenEndpoint"`
	FenergoEndpoint string    `json:"fenergoEndpoint"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	oauth.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:          "ok",
		Timestamp:       s.now().UTC(),
		Sessions:        s.manager.Tokens().Count(),
		PendingLogins:   s.manager.States().Count(),
		TokenEndpoint:   s.manager.Endpoints().Token,
		FenergoEndpoint: s.fenergo.APIURL(),
	})
}
