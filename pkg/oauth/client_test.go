package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_RequestToken_Success(t *testing.T) {
	var gotForm url.Values
	var gotTenant string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		gotTenant = r.Header.Get("X-Tenant-Id")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "T1",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"scope":        "fenergo.all",
		})
	}))
	defer server.Close()

	acquired := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	client := NewClient(WithClock(func() time.Time { return acquired }))

	header := http.Header{}
	header.Set("X-Tenant-Id", "tenant-A")

	token, err := client.RequestToken(context.Background(), server.URL, GrantClientCredentials, url.Values{
		"client_id":     {"app"},
		"client_secret": {"secret"},
	}, header)
	require.NoError(t, err)

	assert.Equal(t, "T1", token.AccessToken)
	assert.Equal(t, 3600, token.ExpiresIn)
	assert.Equal(t, acquired, token.AcquiredAt)
	assert.Equal(t, "client_credentials", gotForm.Get("grant_type"))
	assert.Equal(t, "app", gotForm.Get("client_id"))
	assert.Equal(t, "tenant-A", gotTenant)
	assert.Empty(t, gotForm.Get("tenant_id"), "tenant travels as a header")
}

func TestClient_RequestToken_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"bad password"}`))
	}))
	defer server.Close()

	_, err := NewClient().RequestToken(context.Background(), server.URL, GrantPassword, url.Values{}, nil)
	require.Error(t, err)

	var oauthErr *OAuthError
	require.True(t, errors.As(err, &oauthErr))
	assert.Equal(t, http.StatusBadRequest, oauthErr.StatusCode)
	assert.Equal(t, "invalid_grant", oauthErr.ErrorCode)
	assert.Equal(t, "bad password", oauthErr.Description)
	assert.Contains(t, oauthErr.Body, "invalid_grant")
}

func TestClient_RequestToken_NonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("<html>down</html>"))
	}))
	defer server.Close()

	_, err := NewClient().RequestToken(context.Background(), server.URL, GrantClientCredentials, nil, nil)

	var oauthErr *OAuthError
	require.True(t, errors.As(err, &oauthErr))
	assert.Equal(t, http.StatusServiceUnavailable, oauthErr.StatusCode)
	assert.Empty(t, oauthErr.ErrorCode)
	assert.Equal(t, "<html>down</html>", oauthErr.Body)
}

func TestClient_RequestToken_MalformedSuccess(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json"},
		{"missing access token", `{"token_type":"Bearer"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient().RequestToken(context.Background(), server.URL, GrantClientCredentials, nil, nil)

			var oauthErr *OAuthError
			require.True(t, errors.As(err, &oauthErr))
			assert.Equal(t, http.StatusOK, oauthErr.StatusCode)
		})
	}
}

func TestClient_RequestToken_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(WithTimeout(50 * time.Millisecond))
	assert.Equal(t, 50*time.Millisecond, client.Timeout())

	_, err := client.RequestToken(context.Background(), server.URL, GrantClientCredentials, nil, nil)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr), "got %T: %v", err, err)
	assert.Equal(t, 50*time.Millisecond, timeoutErr.Timeout)
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(err))
}

func TestClient_RequestToken_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient().RequestToken(ctx, server.URL, GrantPassword, nil, nil)

	var timeoutErr *TimeoutError
	assert.True(t, errors.As(err, &timeoutErr), "got %T: %v", err, err)
}

func TestClient_RequestToken_CallerCanceled(t *testing.T) {
	arrived := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-arrived
		cancel()
	}()

	_, err := NewClient().RequestToken(ctx, server.URL, GrantClientCredentials, nil, nil)
	require.Error(t, err)

	var transportErr *TransportError
	assert.False(t, errors.As(err, &transportErr), "caller cancellation is not a transport failure")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "canceled", ErrorKind(err))
	assert.Equal(t, StatusClientClosedRequest, HTTPStatus(err))
}

func TestClient_UserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"T1","expires_in":60}`))
	}))
	defer server.Close()

	_, err := NewClient(WithUserAgent("nebula-gateway/1.2.3")).RequestToken(context.Background(), server.URL, GrantClientCredentials, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "nebula-gateway/1.2.3", got)
}

func TestClient_RequestToken_Transport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	_, err := NewClient().RequestToken(context.Background(), endpoint, GrantClientCredentials, nil, nil)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr), "got %T: %v", err, err)
	assert.Equal(t, GrantClientCredentials, transportErr.Grant)
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(err))
}

func TestBuildAuthorizationURL(t *testing.T) {
	pkce := &PKCEChallenge{
		CodeVerifier:        "verifier",
		CodeChallenge:       "challenge",
		CodeChallengeMethod: CodeChallengeMethodS256,
	}

	authURL, err := BuildAuthorizationURL(AuthorizationURLParams{
		Endpoint:    "https://identity.example.com/connect/authorize?acr_values=tenant:A",
		ClientID:    "app",
		RedirectURI: "https://gw.example.com/auth/callback",
		Scopes:      []string{"openid", "profile"},
		State:       "xyz",
		PKCE:        pkce,
		Prompt:      "login",
	})
	require.NoError(t, err)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "identity.example.com", parsed.Host)
	assert.Equal(t, "/connect/authorize", parsed.Path)

	q := parsed.Query()
	assert.Equal(t, "app", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "https://gw.example.com/auth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "openid profile", q.Get("scope"))
	assert.Equal(t, "xyz", q.Get("state"))
	assert.Equal(t, "challenge", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, "login", q.Get("prompt"))
	assert.Equal(t, "tenant:A", q.Get("acr_values"))
	assert.NotContains(t, authURL, "verifier")
}

func TestBuildAuthorizationURL_RejectsRelative(t *testing.T) {
	_, err := BuildAuthorizationURL(AuthorizationURLParams{Endpoint: "/connect/authorize"})
	assert.Error(t, err)
}

func TestClient_DiscoverMetadata(t *testing.T) {
	var requests atomic.Int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(Metadata{
			Issuer:                server.URL,
			AuthorizationEndpoint: server.URL + "/connect/authorize",
			TokenEndpoint:         server.URL + "/connect/token",
		})
	}))
	defer server.Close()

	client := NewClient()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metadata, err := client.DiscoverMetadata(context.Background(), server.URL+"/")
			assert.NoError(t, err)
			assert.Equal(t, server.URL+"/connect/token", metadata.TokenEndpoint)
		}()
	}
	wg.Wait()

	_, err := client.DiscoverMetadata(context.Background(), server.URL)
	require.NoError(t, err)
	assert.LessOrEqual(t, requests.Load(), int32(10))

	before := requests.Load()
	_, err = client.DiscoverMetadata(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, before, requests.Load(), "cached metadata should not refetch")
}

func TestClient_DiscoverMetadata_FallsBackToRFC8414(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/oauth-authorization-server" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(Metadata{
			AuthorizationEndpoint: server.URL + "/authorize",
			TokenEndpoint:         server.URL + "/token",
		})
	}))
	defer server.Close()

	metadata, err := NewClient().DiscoverMetadata(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/authorize", metadata.AuthorizationEndpoint)
}

func TestClient_DiscoverMetadata_Failure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := NewClient().DiscoverMetadata(context.Background(), server.URL)
	assert.Error(t, err)
}
