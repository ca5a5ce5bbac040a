// Package gateway hosts the tool server over streamable HTTP and publishes
// agent events to websocket subscribers.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mark3labs/mcp-go/server"
	"github.com/soyeahso/subagents/internal/config"
	"github.com/soyeahso/subagents/internal/hooks"
	"github.com/soyeahso/subagents/internal/logging"
	"github.com/soyeahso/subagents/internal/store"
	"github.com/soyeahso/subagents/internal/tools"
)

var (
	ErrClientClosed = errors.New("client connection closed")
	ErrSlowClient   = errors.New("client send queue full")
)

// MCPPath is where the streamable HTTP transport is mounted.
const MCPPath = "/mcp"

const shutdownTimeout = 10 * time.Second

// Server is the subagents HTTP + websocket gateway.
type Server struct {
	cfg     config.GatewayConfig
	token   string
	log     *logging.Logger
	tools   *tools.Server
	mcpHTTP *server.StreamableHTTPServer
	clients *ClientRegistry
	hooks   *hooks.Manager
	journal *store.Journal

	mu         sync.Mutex
	addr       string
	startedAt  time.Time
	httpServer *http.Server

	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithHooks subscribes the websocket feed to every event on hm.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// WithJournal exposes recent tool calls on the status endpoint.
func WithJournal(j *store.Journal) ServerOption {
	return func(s *Server) {
		s.journal = j
	}
}

// New creates a gateway serving ts.
func New(cfg config.Config, ts *tools.Server, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg.Gateway,
		token:       cfg.Gateway.Auth.Token,
		log:         log.Sub("gateway"),
		tools:       ts,
		mcpHTTP:     server.NewStreamableHTTPServer(ts.MCP(), server.WithEndpointPath(MCPPath)),
		clients:     NewClientRegistry(log.Sub("feed")),
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.Gateway.AllowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.hooks != nil {
		s.hooks.OnAny("gateway.feed", s.publish)
	}
	return s
}

// checkWebSocketOrigin returns a function that validates websocket Origin headers.
// Requests without an Origin (non-browser clients) are always allowed; otherwise
// the Origin must match one of the allowed entries.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return isOriginAllowed(origin, allowed)
	}
}

// publish forwards a hook event to every feed subscriber.
func (s *Server) publish(_ context.Context, p hooks.Payload) error {
	s.clients.Broadcast(p.Event, p.Data)
	return nil
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Handler returns the gateway's routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.AllowedOrigins)
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. It closes ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler: s.Handler(),
		// No write timeout: event streams and websockets are long-lived.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.startedAt = time.Now()
	s.httpServer = httpServer
	s.mu.Unlock()

	if s.token == "" && s.cfg.Bind != "" && s.cfg.Bind != "loopback" {
		s.log.Warn().Msg("gateway is reachable off-host without a token")
	}
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Bool("auth", s.token != "").
		Str("mcp", MCPPath).
		Msg("gateway server ready")
	s.hooks.Emit(ctx, hooks.EventServerStart, map[string]any{
		"transport": "http",
		"addr":      ln.Addr().String(),
	})

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.shutdown(httpServer)
	}()

	err := httpServer.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-stopped
	return nil
}

func (s *Server) shutdown(httpServer *http.Server) {
	s.log.Info().Msg("shutting down gateway server")
	s.hooks.Emit(context.Background(), hooks.EventServerStop, map[string]any{"transport": "http"})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.clients.CloseAll()
	if err := s.mcpHTTP.Shutdown(shutdownCtx); err != nil {
		s.log.Warn().Err(err).Msg("closing MCP sessions")
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Warn().Err(err).Msg("graceful shutdown timed out, closing connections")
		httpServer.Close()
	}
	s.authLimiter.stop()
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Subscribers returns the number of connected websocket clients.
func (s *Server) Subscribers() int {
	return s.clients.Count()
}

func (s *Server) uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}
