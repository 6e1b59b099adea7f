package oauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, m *Manager) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(m, "default-tenant").Routes(r)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHandler_LoginAndJSONCallback(t *testing.T) {
	idp := newFakeIdP(t)
	m := newTestManager(t, idp, newFakeClock())
	router := newTestRouter(t, m)

	rr := doJSON(t, router, http.MethodPost, "/auth/login", `{"tenantId":"tenant-A"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	login := decodeBody(t, rr)
	state, _ := login["state"].(string)
	require.NotEmpty(t, state)
	assert.Contains(t, login["authorizationUrl"], "state="+url.QueryEscape(state))
	assert.NotContains(t, rr.Body.String(), "codeVerifier")

	rr = doJSON(t, router, http.MethodPost, "/auth/callback", `{"code":"abc123","state":"`+state+`"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := decodeBody(t, rr)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "tok1", body["accessToken"])
	assert.Equal(t, "tenant-A", body["tenantId"])
	assert.Contains(t, body["sessionKey"], "sso:tenant-A:")
	assert.NotContains(t, body, "refreshToken")

	// Replay is rejected.
	rr = doJSON(t, router, http.MethodPost, "/auth/callback", `{"code":"abc123","state":"`+state+`"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_state", decodeBody(t, rr)["error"])
}

func TestHandler_Login_Errors(t *testing.T) {
	m := newTestManager(t, newFakeIdP(t), newFakeClock())
	router := newTestRouter(t, m)

	rr := doJSON(t, router, http.MethodPost, "/auth/login", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation_error", decodeBody(t, rr)["error"])

	rr = doJSON(t, router, http.MethodPost, "/auth/login", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_CallbackRedirect(t *testing.T) {
	idp := newFakeIdP(t)
	m := newTestManager(t, idp, newFakeClock())
	router := newTestRouter(t, m)

	authReq, err := m.BeginAuthorization("tenant-A")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc123&state="+url.QueryEscape(authReq.State), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Contains(t, rr.Body.String(), "Authentication Successful")
	assert.Contains(t, rr.Body.String(), "tenant-A")
	assert.NotContains(t, rr.Body.String(), "tok1")
}

func TestHandler_CallbackRedirect_Errors(t *testing.T) {
	m := newTestManager(t, newFakeIdP(t), newFakeClock())
	router := newTestRouter(t, m)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantInBody string
	}{
		{"missing code", "state=s", http.StatusBadRequest, "missing required parameters"},
		{"missing both", "", http.StatusBadRequest, "missing required parameters"},
		{"unknown state", "code=c&state=unknown", http.StatusBadRequest, "invalid or already used"},
		{"provider error", "error=access_denied&error_description=%3Cscript%3Ealert(1)%3C%2Fscript%3E", http.StatusUnauthorized, "&lt;script&gt;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/callback?"+tt.query, nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantInBody)
			assert.Contains(t, rr.Body.String(), "Authentication Failed")
			assert.NotContains(t, rr.Body.String(), "<script>alert")
		})
	}
}

func TestHandler_Authenticate(t *testing.T) {
	idp := newFakeIdP(t)
	m := newTestManager(t, idp, newFakeClock())
	router := newTestRouter(t, m)

	rr := doJSON(t, router, http.MethodPost, "/authenticate", `{"tenantId":"tenant-A"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "client_credentials", idp.lastRequest(t).Form.Get("grant_type"))
	assert.Equal(t, "cc:tenant-A", decodeBody(t, rr)["sessionKey"])

	rr = doJSON(t, router, http.MethodPost, "/authenticate", `{"tenantId":"tenant-A","username":"alice","password":"pw"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "password", idp.lastRequest(t).Form.Get("grant_type"))

	rr = doJSON(t, router, http.MethodPost, "/authenticate", `{"username":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Default tenant applies when the body names none.
	m.Logout("cc:default-tenant")
	rr = doJSON(t, router, http.MethodPost, "/authenticate", ``)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "default-tenant", idp.lastRequest(t).Header.Get(TenantHeader))
}

func TestHandler_Authenticate_ProviderRejects(t *testing.T) {
	idp := newFakeIdP(t)
	idp.setResponse(respondError(http.StatusUnauthorized, "invalid_client"))
	m := newTestManager(t, idp, newFakeClock())

	rr := doJSON(t, newTestRouter(t, m), http.MethodPost, "/authenticate", `{"tenantId":"tenant-A"}`)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "oauth_error", body["error"])
	assert.Equal(t, float64(http.StatusUnauthorized), body["status"])
	assert.NotContains(t, rr.Body.String(), "s3cret")
}

func doAuthorized(t *testing.T, h http.Handler, path, body, accessToken string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandler_RefreshLogoutSessions(t *testing.T) {
	idp := newFakeIdP(t)
	idp.setResponse(respondToken("tok1", 3600, "rt-1"))
	m := newTestManager(t, idp, newFakeClock())
	router := newTestRouter(t, m)

	authReq, err := m.BeginAuthorization("tenant-A")
	require.NoError(t, err)
	session, err := m.CompleteAuthorization(t.Context(), Callback{Code: "abc123", State: authReq.State})
	require.NoError(t, err)

	idp.setResponse(respondToken("tok2", 3600, "rt-2"))
	rr := doAuthorized(t, router, "/auth/refresh", `{"sessionKey":"`+session.Key+`"}`, "tok1")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "refresh_token", idp.lastRequest(t).Form.Get("grant_type"))
	assert.Equal(t, "tok2", decodeBody(t, rr)["accessToken"])

	// The replaced token no longer proves possession.
	rr = doAuthorized(t, router, "/auth/refresh", `{"sessionKey":"`+session.Key+`"}`, "tok1")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doAuthorized(t, router, "/auth/refresh", `{}`, "tok2")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/sessions?tenantId=tenant-A", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	sessions, _ := decodeBody(t, rr)["sessions"].([]interface{})
	require.Len(t, sessions, 1)
	assert.Equal(t, SessionID(session.Key), sessions[0].(map[string]interface{})["id"])
	assert.NotContains(t, rr.Body.String(), "tok2")
	assert.NotContains(t, rr.Body.String(), session.Key)

	rr = doAuthorized(t, router, "/auth/logout", `{"sessionKey":"`+session.Key+`"}`, "tok2")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, m.Tokens().Peek(session.Key))
}

func TestHandler_SessionEndpointsRequireAccessToken(t *testing.T) {
	idp := newFakeIdP(t)
	idp.setResponse(respondToken("victim-tok", 3600, "rt-1"))
	m := newTestManager(t, idp, newFakeClock())
	router := newTestRouter(t, m)

	authReq, err := m.BeginAuthorization("tenant-A")
	require.NoError(t, err)
	session, err := m.CompleteAuthorization(t.Context(), Callback{Code: "abc123", State: authReq.State})
	require.NoError(t, err)
	idp.setResponse(respondToken("fresh-victim-tok", 3600, "rt-2"))

	// Nothing in the listing can be replayed as a session key.
	req := httptest.NewRequest(http.MethodGet, "/auth/sessions", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "sso:")
	assert.NotContains(t, rr.Body.String(), "sessionKey")

	body := `{"sessionKey":"` + session.Key + `"}`
	tests := []struct {
		name  string
		path  string
		token string
	}{
		{"refresh without token", "/auth/refresh", ""},
		{"refresh with wrong token", "/auth/refresh", "guess"},
		{"logout without token", "/auth/logout", ""},
		{"logout with wrong token", "/auth/logout", "guess"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doAuthorized(t, router, tt.path, body, tt.token)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, "unauthorized", decodeBody(t, rr)["error"])
			assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Bearer")
			assert.NotContains(t, rr.Body.String(), "fresh-victim-tok")
		})
	}

	// Unknown keys are indistinguishable from wrong tokens.
	rr = doAuthorized(t, router, "/auth/refresh", `{"sessionKey":"sso:tenant-A:unknown"}`, "victim-tok")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	assert.Equal(t, "victim-tok", m.Tokens().Peek(session.Key).AccessToken, "session untouched")
	assert.Equal(t, "authorization_code", idp.lastRequest(t).Form.Get("grant_type"), "no refresh was sent")
}
