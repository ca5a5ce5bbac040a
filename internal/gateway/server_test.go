package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mark3labs/mcp-go/mcp"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/soyeahso/subagents/internal/agenttree"
	"github.com/soyeahso/subagents/internal/config"
	"github.com/soyeahso/subagents/internal/hooks"
	"github.com/soyeahso/subagents/internal/store"
	"github.com/soyeahso/subagents/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token-123"

type fixture struct {
	srv   *Server
	tools *tools.Server
	hooks *hooks.Manager
	http  *httptest.Server
}

func newFixture(t *testing.T, token string, opts ...ServerOption) *fixture {
	t.Helper()
	cfg := config.Defaults()
	cfg.Gateway.Auth.Token = token

	log := testLog()
	hm := hooks.NewManager(log)
	ts := tools.New(agenttree.New(), log, tools.WithName("gw-test"), tools.WithHooks(hm))
	srv := New(cfg, ts, log, append([]ServerOption{WithHooks(hm)}, opts...)...)

	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	t.Cleanup(srv.authLimiter.stop)
	return &fixture{srv: srv, tools: ts, hooks: hm, http: hs}
}

func (f *fixture) get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest("GET", f.http.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) wsURL(query string) string {
	u := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

// dialFeed connects to the event feed and consumes the hello frame.
func (f *fixture) dialFeed(t *testing.T, token string) (*websocket.Conn, Frame) {
	t.Helper()
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL(""), header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var hello Frame
	require.NoError(t, conn.ReadJSON(&hello))

	require.Eventually(t, func() bool { return f.srv.Subscribers() > 0 }, 2*time.Second, 10*time.Millisecond)
	return conn, hello
}

func (f *fixture) createAgent(t *testing.T, parent, id string) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = tools.ToolCreate
	req.Params.Arguments = map[string]any{"parent_agent_id": parent, "new_agent_id": id}
	result, err := f.tools.MCP().GetTool(tools.ToolCreate).Handler(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)
}

// bearerTransport adds an Authorization header to every request.
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (b *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+b.token)
	return b.base.RoundTrip(req)
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t, testToken)

	resp := f.get(t, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
}

func TestNotFoundEndpoint(t *testing.T) {
	f := newFixture(t, "")

	resp := f.get(t, "/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "/nope", body["path"])
}

func TestStatus_RequiresToken(t *testing.T) {
	f := newFixture(t, testToken)

	resp := f.get(t, "/status", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")

	resp = f.get(t, "/status", "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.get(t, "/status", testToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatus_Body(t *testing.T) {
	f := newFixture(t, "")
	f.createAgent(t, "root", "a")

	resp := f.get(t, "/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "gw-test", status.Name)
	assert.Equal(t, 2, status.Agents)
	assert.Equal(t, agenttree.DefaultMaxDepth, status.MaxDepth)
	assert.Equal(t, 0, status.Subscribers)
	assert.Empty(t, status.RecentCalls)
}

func TestStatus_RecentCalls(t *testing.T) {
	db, err := store.Open(":memory:", testLog())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	journal := store.NewJournal(db)
	require.NoError(t, journal.Record(context.Background(), store.Call{Tool: tools.ToolRun, AgentID: "a", OK: true}))

	f := newFixture(t, "", WithJournal(journal))

	resp := f.get(t, "/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Len(t, status.RecentCalls, 1)
	assert.Equal(t, tools.ToolRun, status.RecentCalls[0].Tool)
	assert.Equal(t, "a", status.RecentCalls[0].AgentID)
}

func TestMCP_RequiresToken(t *testing.T) {
	f := newFixture(t, testToken)

	body := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	resp, err := http.Post(f.http.URL+MCPPath, "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMCP_StreamableClient(t *testing.T) {
	f := newFixture(t, testToken)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "gw-client", Version: "1.0.0"}, nil)
	transport := &sdkmcp.StreamableClientTransport{
		Endpoint:   f.http.URL + MCPPath,
		HTTPClient: &http.Client{Transport: &bearerTransport{token: testToken, base: http.DefaultTransport}},
	}
	session, err := client.Connect(ctx, transport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	assert.Equal(t, "gw-test", session.InitializeResult().ServerInfo.Name)

	result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      tools.ToolCreate,
		Arguments: map[string]any{"parent_agent_id": "root", "new_agent_id": "a", "config": map[string]any{"behavior": "uppercase"}},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	result, err = session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      tools.ToolRun,
		Arguments: map[string]any{"agent_id": "a", "input": map[string]any{"message": "over http"}},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	tc, ok := result.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	assert.JSONEq(t, `{"output":"OVER HTTP"}`, tc.Text)

	// The tree behind the gateway is the same one the tools server owns.
	assert.Equal(t, []string{"a"}, mustChildren(t, f.tools.Registry(), "root"))
}

func mustChildren(t *testing.T, reg *agenttree.Registry, id string) []string {
	t.Helper()
	children, err := reg.Children(id)
	require.NoError(t, err)
	return children
}

func TestWebSocket_HelloAndEvents(t *testing.T) {
	f := newFixture(t, testToken)
	conn, hello := f.dialFeed(t, testToken)

	assert.Equal(t, FrameTypeEvent, hello.Type)
	assert.Equal(t, EventHello, hello.Event)
	assert.Equal(t, int64(0), hello.Seq)

	var h Hello
	require.NoError(t, json.Unmarshal(hello.Payload, &h))
	assert.Equal(t, "gw-test", h.Server.Name)
	assert.NotEmpty(t, h.Server.ConnID)
	assert.ElementsMatch(t, hooks.AllEvents, h.Events)

	f.createAgent(t, "root", "a")

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev Frame
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, hooks.EventAgentCreated, ev.Event)
	assert.Equal(t, int64(1), ev.Seq)
	assert.JSONEq(t, `{"id":"a","parent":"root","name":"a","behavior":"echo"}`, string(ev.Payload))

	f.hooks.Emit(context.Background(), hooks.EventAgentRun, map[string]any{"id": "a", "output": "x"})
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, hooks.EventAgentRun, ev.Event)
	assert.Equal(t, int64(2), ev.Seq)
}

func TestWebSocket_StalledSubscriberDoesNotBlockTools(t *testing.T) {
	f := newFixture(t, testToken)
	f.dialFeed(t, testToken) // never read again
	f.createAgent(t, "root", "a")

	run := f.tools.MCP().GetTool(tools.ToolRun)
	msg := strings.Repeat("x", 64<<10)

	start := time.Now()
	for range 1000 {
		req := mcp.CallToolRequest{}
		req.Params.Name = tools.ToolRun
		req.Params.Arguments = map[string]any{"agent_id": "a", "input": map[string]any{"message": msg}}
		result, err := run.Handler(context.Background(), req)
		require.NoError(t, err)
		require.False(t, result.IsError)
	}
	assert.Less(t, time.Since(start), 5*time.Second)

	require.Eventually(t, func() bool { return f.srv.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_QueryToken(t *testing.T) {
	f := newFixture(t, testToken)

	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL("token="+testToken), nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello Frame
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, EventHello, hello.Event)
}

func TestWebSocket_Unauthorized(t *testing.T) {
	f := newFixture(t, testToken)

	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL(""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(f.wsURL("token=wrong"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	f := newFixture(t, "")

	header := http.Header{}
	header.Set("Origin", "http://evil.com")
	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL(""), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocket_DisconnectUnregisters(t *testing.T) {
	f := newFixture(t, "")
	conn, _ := f.dialFeed(t, "")
	assert.Equal(t, 1, f.srv.Subscribers())

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	conn.Close()

	assert.Eventually(t, func() bool { return f.srv.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestAuth_RateLimited(t *testing.T) {
	f := newFixture(t, testToken)

	for i := 0; i < authRateMaxFails; i++ {
		resp := f.get(t, "/status", "wrong")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	// Even the right token is refused while the address is blocked.
	resp := f.get(t, "/status", testToken)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Public endpoints are unaffected.
	resp = f.get(t, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServe_Lifecycle(t *testing.T) {
	cfg := config.Defaults()
	log := testLog()
	hm := hooks.NewManager(log)

	var mu sync.Mutex
	var events []hooks.Payload
	hm.OnAny("recorder", func(_ context.Context, p hooks.Payload) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, p)
		return nil
	})

	srv := New(cfg, tools.New(agenttree.New(), log), log, WithHooks(hm))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ctx, ln)
	}()

	require.Eventually(t, func() bool { return srv.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	var hello Frame
	require.NoError(t, conn.ReadJSON(&hello))

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("gateway did not shut down")
	}

	// Subscribers see server_stop and are then disconnected.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err = conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, hooks.EventServerStart, events[0].Event)
	assert.Equal(t, "http", events[0].Data["transport"])
	assert.Equal(t, hooks.EventServerStop, events[len(events)-1].Event)
}

func TestStart_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := config.Defaults()
	cfg.Gateway.Port = ln.Addr().(*net.TCPAddr).Port
	log := testLog()
	srv := New(cfg, tools.New(agenttree.New(), log), log)
	t.Cleanup(srv.authLimiter.stop)

	err = srv.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}
