package gateway

import "net/http"

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /status", s.requireAuth(http.HandlerFunc(s.handleStatus)))
	mux.Handle("GET /ws", s.requireAuth(http.HandlerFunc(s.handleWebSocket)))
	mux.Handle(MCPPath, s.requireAuth(s.mcpHTTP))

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}
