package cli

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"nebula-gateway/pkg/logging"
)

// CallbackTimeout is how long login waits for the browser redirect.
const CallbackTimeout = 10 * time.Minute

// CallbackResult holds the query parameters of an authorization redirect.
type CallbackResult struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// IsError reports whether the identity provider returned an error.
func (r *CallbackResult) IsError() bool {
	return r.Error != ""
}

// IsLoopback reports whether redirectURI points at this machine, in which
// case login can receive the redirect itself.
func IsLoopback(redirectURI string) bool {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Scheme != "http" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// CallbackServer is a temporary local HTTP server that waits for a single
// authorization redirect on the configured redirect URI.
type CallbackServer struct {
	addr     string
	path     string
	server   *http.Server
	listener net.Listener
	resultCh chan *CallbackResult
	errorCh  chan error
	once     sync.Once
	stopOnce sync.Once
}

// NewCallbackServer creates a callback server for redirectURI, which must be
// a loopback http URI.
func NewCallbackServer(redirectURI string) (*CallbackServer, error) {
	if !IsLoopback(redirectURI) {
		return nil, fmt.Errorf("redirect URI %s is not a loopback address", redirectURI)
	}
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, err
	}

	port := u.Port()
	if port == "" {
		port = "80"
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	return &CallbackServer{
		addr:     net.JoinHostPort(u.Hostname(), port),
		path:     path,
		resultCh: make(chan *CallbackResult, 1),
		errorCh:  make(chan error, 1),
	}, nil
}

// Start begins listening. The server stops when ctx is cancelled.
func (s *CallbackServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start callback server on %s: %w", s.addr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	logging.Debug("CLI", "Callback server listening on %s%s", listener.Addr(), s.path)
	return nil
}

// Addr returns the address the server listens on.
func (s *CallbackServer) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// WaitForCallback blocks until the redirect arrives or ctx is done.
func (s *CallbackServer) WaitForCallback(ctx context.Context) (*CallbackResult, error) {
	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	handled := false
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})

	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

func (s *CallbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	query := r.URL.Query()
	result := &CallbackResult{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := callbackPage.Execute(w, result); err != nil {
		logging.Warn("CLI", "Failed to render callback page: %v", err)
	}

	select {
	case s.resultCh <- result:
	default:
	}
}

// Stop shuts the server down. It is safe to call more than once.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.server.Shutdown(ctx)
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

// ParseCallbackInput reads what a user pasted after logging in: either the
// full redirected URL or the bare authorization code. A bare code is paired
// with expectedState.
func ParseCallbackInput(input, expectedState string) (*CallbackResult, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errors.New("no authorization code entered")
	}

	if !strings.Contains(input, "code=") && !strings.Contains(input, "error=") {
		return &CallbackResult{Code: input, State: expectedState}, nil
	}

	raw := input
	if i := strings.Index(input, "?"); i >= 0 {
		raw = input[i+1:]
	}
	if i := strings.Index(raw, "#"); i >= 0 {
		raw = raw[:i]
	}
	query, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("could not parse redirected URL: %w", err)
	}

	return &CallbackResult{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}, nil
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Nebula Gateway</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; background: #0f2438; color: #e8e8e8; display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; }
        .container { text-align: center; padding: 3rem; background: rgba(255, 255, 255, 0.05); border-radius: 16px; max-width: 520px; }
        p { color: #a0a0a0; }
    </style>
</head>
<body>
    <div class="container">
    {{if .Error}}
        <h1>Authentication Failed</h1>
        <p>{{.Error}}{{if .ErrorDescription}}: {{.ErrorDescription}}{{end}}</p>
    {{else}}
        <h1>Authorization Received</h1>
        <p>Return to your terminal to finish logging in.</p>
    {{end}}
    </div>
</body>
</html>`))
