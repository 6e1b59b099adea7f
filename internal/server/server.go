package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"nebula-gateway/internal/config"
	"nebula-gateway/internal/fenergo"
	"nebula-gateway/internal/metrics"
	"nebula-gateway/internal/oauth"
	"nebula-gateway/pkg/logging"
)

const (
	// DefaultReadHeaderTimeout is the default timeout for reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultIdleTimeout is the default idle timeout for keepalive connections.
	DefaultIdleTimeout = 120 * time.Second
)

// Server is the gateway's HTTP service.
type Server struct {
	cfg        config.GatewayConfig
	manager    *oauth.Manager
	fenergo    *fenergo.Client
	mcpHandler http.Handler

	httpServer *http.Server
	now        func() time.Time
	onReady    func(net.Addr)
	onStopping func()
	metrics    *metrics.Metrics
}

// Option configures a Server.
type Option func(*Server)

// WithMCPHandler mounts an MCP streamable HTTP handler at the configured path.
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) {
		s.mcpHandler = h
	}
}

// WithClock sets the time source used in response metadata.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithMetrics records request metrics and serves them at GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLifecycleHooks registers callbacks run once the listener accepts
// connections and when graceful shutdown begins. Either may be nil.
func WithLifecycleHooks(onReady func(net.Addr), onStopping func()) Option {
	return func(s *Server) {
		s.onReady = onReady
		s.onStopping = onStopping
	}
}

// New creates the HTTP service.
func New(cfg config.GatewayConfig, manager *oauth.Manager, fenergoClient *fenergo.Client, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		manager: manager,
		fenergo: fenergoClient,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/health", s.handleHealth)

	// MCP streams responses, so it is kept out of the request timeout.
	if s.mcpHandler != nil {
		r.Handle(s.cfg.Server.MCPPath, s.mcpHandler)
		logging.Info("Server", "Mounted MCP endpoint at %s", s.cfg.Server.MCPPath)
	}

	r.Group(func(r chi.Router) {
		if s.cfg.Server.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
		}
		oauth.NewHandler(s.manager, s.cfg.Fenergo.TenantID).Routes(r)
		r.Post("/execute", s.handleExecute)
	})

	return r
}

// Addr is the listen address from configuration.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Server.Host, fmt.Sprintf("%d", s.cfg.Server.Port))
}

// Run serves until ctx is cancelled, then shuts down gracefully within the
// configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	ready := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		logging.Info("Server", "Listening on %s", listener.Addr())
		rl := &readyListener{Listener: listener, ready: func() { close(ready) }}
		if err := s.httpServer.Serve(rl); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// onReady only runs once Serve is accepting connections.
	select {
	case <-ready:
		if s.onReady != nil {
			s.onReady(listener.Addr())
		}
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logging.Info("Server", "Shutting down")
	if s.onStopping != nil {
		s.onStopping()
	}
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return <-errCh
}

// requestLogger logs one debug line per request. Query strings are left out
// because the OAuth callback carries the authorization code there.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.Debug("Server", "%s %s status=%d duration=%s request_id=%s",
			r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}
