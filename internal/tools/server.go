// Package tools exposes the agent tree as MCP tools.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/soyeahso/subagents/internal/agenttree"
	"github.com/soyeahso/subagents/internal/hooks"
	"github.com/soyeahso/subagents/internal/logging"
	"github.com/soyeahso/subagents/internal/store"
	"github.com/soyeahso/subagents/internal/version"
)

// Tool names.
const (
	ToolCreate = "create_subagent"
	ToolList   = "list_subagents"
	ToolRun    = "run_subagent"
)

// Names lists the registered tools in registration order.
var Names = []string{ToolCreate, ToolList, ToolRun}

// Server binds an agent registry to an MCP server.
type Server struct {
	name         string
	instructions string
	registry     *agenttree.Registry
	log          *logging.Logger
	hooks        *hooks.Manager
	journal      *store.Journal
	mcp          *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithName sets the server name advertised during initialization.
func WithName(name string) Option {
	return func(s *Server) {
		if name != "" {
			s.name = name
		}
	}
}

// WithInstructions sets the instructions advertised during initialization.
func WithInstructions(text string) Option {
	return func(s *Server) {
		s.instructions = text
	}
}

// WithHooks emits agent and tool events to hm.
func WithHooks(hm *hooks.Manager) Option {
	return func(s *Server) {
		s.hooks = hm
	}
}

// WithJournal records every tool call in j.
func WithJournal(j *store.Journal) Option {
	return func(s *Server) {
		s.journal = j
	}
}

// New creates the MCP server over reg.
func New(reg *agenttree.Registry, log *logging.Logger, opts ...Option) *Server {
	s := &Server{
		name:     "Subagent Server",
		registry: reg,
		log:      log.Sub("tools"),
	}
	for _, opt := range opts {
		opt(s)
	}

	serverOpts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(s.middleware),
	}
	if s.instructions != "" {
		serverOpts = append(serverOpts, server.WithInstructions(s.instructions))
	}
	s.mcp = server.NewMCPServer(s.name, version.Version, serverOpts...)

	s.mcp.AddTool(createTool(), s.handleCreate)
	s.mcp.AddTool(listTool(), s.handleList)
	s.mcp.AddTool(runTool(), s.handleRun)
	return s
}

// MCP returns the underlying mcp-go server, for mounting on other transports.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// Name returns the server name advertised during initialization.
func (s *Server) Name() string { return s.name }

// Registry returns the agent registry the tools operate on.
func (s *Server) Registry() *agenttree.Registry { return s.registry }

// ServeStdio serves newline-delimited JSON-RPC on in/out until ctx is
// cancelled or in reaches EOF.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(s.log.Std())

	s.log.Info().Str("name", s.name).Int("maxDepth", s.registry.MaxDepth()).Msg("serving MCP over stdio")
	s.hooks.Emit(ctx, hooks.EventServerStart, map[string]any{"transport": "stdio"})
	defer s.hooks.Emit(context.Background(), hooks.EventServerStop, map[string]any{"transport": "stdio"})

	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("stdio transport: %w", err)
	}
	return nil
}

// middleware logs, journals and publishes every tool call.
func (s *Server) middleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		tool := req.Params.Name
		agentID := targetAgent(req)

		result, err := next(ctx, req)

		ok := err == nil && result != nil && !result.IsError
		errText := ""
		switch {
		case err != nil:
			errText = err.Error()
		case result != nil && result.IsError:
			errText = resultText(result)
		}
		elapsed := time.Since(start)

		ev := s.log.Debug()
		if !ok {
			ev = s.log.Warn().Str("error", errText)
		}
		ev.Str("tool", tool).Str("agent", agentID).Dur("duration", elapsed).Msg("tool call")

		if s.journal != nil {
			if jerr := s.journal.Record(ctx, store.Call{
				Tool:     tool,
				AgentID:  agentID,
				OK:       ok,
				Error:    errText,
				Duration: elapsed,
			}); jerr != nil {
				s.log.Error().Err(jerr).Str("tool", tool).Msg("journal write failed")
			}
		}

		s.hooks.Emit(ctx, hooks.EventToolCalled, map[string]any{
			"tool":  tool,
			"agent": agentID,
			"ok":    ok,
			"error": errText,
		})
		return result, err
	}
}

// targetAgent picks the agent a call is about, for logs and the journal.
func targetAgent(req mcp.CallToolRequest) string {
	switch req.Params.Name {
	case ToolCreate:
		return req.GetString(argNewAgentID, "")
	case ToolList:
		return req.GetString(argParentAgentID, agenttree.RootID)
	case ToolRun:
		return req.GetString(argAgentID, "")
	}
	return ""
}

func resultText(r *mcp.CallToolResult) string {
	for _, c := range r.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			return tc.Text
		}
	}
	return ""
}

// structured returns v as structured content with its JSON as the text block.
func structured(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultStructured(v, string(data)), nil
}
