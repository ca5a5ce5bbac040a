package cli

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/soyeahso/subagents/internal/config"
	"github.com/soyeahso/subagents/internal/gateway"
	"github.com/soyeahso/subagents/internal/version"
	"github.com/spf13/cobra"
)

// remoteFlags selects the gateway a client command talks to.
type remoteFlags struct {
	url     string
	token   string
	timeout time.Duration
}

func (f *remoteFlags) register(cmd *cobra.Command, timeout time.Duration) {
	cmd.Flags().StringVar(&f.url, "url", "", "gateway base URL (default from gateway.port)")
	cmd.Flags().StringVar(&f.token, "token", "", "gateway token (default gateway.auth.token)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", timeout, "request timeout")
}

// baseURL returns the gateway root, without a trailing slash.
func (f *remoteFlags) baseURL(cfg config.Config) string {
	if f.url != "" {
		return strings.TrimSuffix(f.url, "/")
	}
	return fmt.Sprintf("http://127.0.0.1:%d", cfg.Gateway.Port)
}

func (f *remoteFlags) httpClient(cfg config.Config) *http.Client {
	token := f.token
	if token == "" {
		token = cfg.Gateway.Auth.Token
	}
	return httpClientWithHeaders(nil, authHeaders(token))
}

// connectRemote opens an MCP session with the gateway's streamable endpoint.
func connectRemote(ctx context.Context, cfg config.Config, f *remoteFlags) (*sdkmcp.ClientSession, error) {
	endpoint := f.baseURL(cfg)
	if !strings.HasSuffix(endpoint, gateway.MCPPath) {
		endpoint += gateway.MCPPath
	}

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "subagents-cli", Version: version.Version}, nil)
	transport := &sdkmcp.StreamableClientTransport{
		Endpoint:   endpoint,
		HTTPClient: f.httpClient(cfg),
	}
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", endpoint, err)
	}
	return session, nil
}

func authHeaders(token string) map[string]string {
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func httpClientWithHeaders(base *http.Client, headers map[string]string) *http.Client {
	if base == nil {
		base = &http.Client{}
	}

	// Copy to avoid mutating caller-provided client
	client := *base
	client.Timeout = 0 // per-request contexts bound each call

	if len(headers) == 0 {
		return &client
	}

	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client.Transport = &headerRoundTripper{headers: headers, next: transport}
	return &client
}

type headerRoundTripper struct {
	headers map[string]string
	next    http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	for k, v := range h.headers {
		cloned.Header.Set(k, v)
	}
	return h.next.RoundTrip(cloned)
}
