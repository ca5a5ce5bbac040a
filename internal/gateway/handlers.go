package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/subagents/internal/hooks"
	"github.com/soyeahso/subagents/internal/store"
	"github.com/soyeahso/subagents/internal/version"
)

// maxInboundMessage caps what subscribers may send; the feed is one-way.
const maxInboundMessage = 64 * 1024

const statusRecentCalls = 20

// HealthResponse is returned by the public health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is returned by the authenticated status endpoint.
type StatusResponse struct {
	Status      string       `json:"status"`
	Name        string       `json:"name"`
	Version     string       `json:"version"`
	UptimeMs    int64        `json:"uptimeMs"`
	Agents      int          `json:"agents"`
	MaxDepth    int          `json:"maxDepth"`
	Subscribers int          `json:"subscribers"`
	RecentCalls []store.Call `json:"recentCalls,omitempty"`
}

// handleHealth reports liveness only; details live behind /status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	reg := s.tools.Registry()
	resp := StatusResponse{
		Status:      "ok",
		Name:        s.tools.Name(),
		Version:     version.Version,
		UptimeMs:    s.uptime().Milliseconds(),
		Agents:      reg.Len(),
		MaxDepth:    reg.MaxDepth(),
		Subscribers: s.clients.Count(),
	}
	if s.journal != nil {
		calls, err := s.journal.Recent(r.Context(), statusRecentCalls)
		if err != nil {
			s.log.Error().Err(err).Msg("reading journal")
			writeError(w, http.StatusInternalServerError, "journal unavailable")
			return
		}
		resp.RecentCalls = calls
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleWebSocket upgrades to a websocket and streams events until the
// subscriber disconnects or the server shuts down.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxInboundMessage)

	client := NewClient(conn, r.RemoteAddr)
	hello := Hello{
		Server: ServerInfo{
			Name:    s.tools.Name(),
			Version: version.Version,
			Commit:  version.Commit,
			ConnID:  client.ConnID,
		},
		Events: hooks.AllEvents,
	}
	if err := client.SendEvent(EventHello, hello, 0); err != nil {
		s.log.Warn().Err(err).Str("connId", client.ConnID).Msg("sending hello")
		client.Close()
		return
	}
	client.Start()

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
	}()

	s.readLoop(client)
}

// readLoop drains the connection so control frames are processed and a
// disconnect is noticed. Data frames from subscribers are ignored.
func (s *Server) readLoop(client *Client) {
	for {
		if _, _, err := client.Socket.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ConnID).Msg("subscriber closed connection")
			} else {
				s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("read error")
			}
			return
		}
	}
}
