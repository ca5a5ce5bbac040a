package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/soyeahso/subagents/internal/agenttree"
	"github.com/soyeahso/subagents/internal/hooks"
)

// Argument names.
const (
	argParentAgentID = "parent_agent_id"
	argNewAgentID    = "new_agent_id"
	argConfig        = "config"
	argAgentID       = "agent_id"
	argInput         = "input"
)

// ListResult is the structured result of list_subagents.
type ListResult struct {
	Children []string `json:"children"`
}

func createTool() mcp.Tool {
	return mcp.NewTool(ToolCreate,
		mcp.WithDescription("Create a new sub-agent under a parent, enforcing max depth and no cycles."),
		mcp.WithString(argParentAgentID,
			mcp.Required(),
			mcp.Description("ID of the existing agent that will own the new sub-agent"),
		),
		mcp.WithString(argNewAgentID,
			mcp.Required(),
			mcp.Description("Unique ID for the new sub-agent"),
		),
		mcp.WithObject(argConfig,
			mcp.Description(`Agent configuration. "name" sets the display name, "behavior" selects what run_subagent does ("echo" or "uppercase"); other keys are stored as-is.`),
		),
	)
}

func listTool() mcp.Tool {
	return mcp.NewTool(ToolList,
		mcp.WithDescription("List direct children of a given agent."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString(argParentAgentID,
			mcp.Description("Agent whose children to list"),
			mcp.DefaultString(agenttree.RootID),
		),
	)
}

func runTool() mcp.Tool {
	return mcp.NewTool(ToolRun,
		mcp.WithDescription("Run the specified sub-agent with the given input and return its output."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString(argAgentID,
			mcp.Required(),
			mcp.Description("ID of the agent to run"),
		),
		mcp.WithObject(argInput,
			mcp.Description(`Input payload; "message" is the text the agent responds to`),
		),
	)
}

func (s *Server) handleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	parentID, err := req.RequireString(argParentAgentID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newID, err := req.RequireString(argNewAgentID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cfg, err := objectArg(req, argConfig)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	msg, err := s.registry.Create(parentID, newID, agenttree.Config(cfg))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	node, _ := s.registry.Get(newID)
	s.log.Info().Str("id", newID).Str("parent", parentID).Str("name", node.Name).Msg("sub-agent created")
	s.hooks.Emit(ctx, hooks.EventAgentCreated, map[string]any{
		"id":       newID,
		"parent":   parentID,
		"name":     node.Name,
		"behavior": node.Config.Behavior(),
	})
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) handleList(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	parentID := req.GetString(argParentAgentID, agenttree.RootID)

	children, err := s.registry.Children(parentID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return structured(ListResult{Children: children})
}

func (s *Server) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agentID, err := req.RequireString(argAgentID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	input, err := objectArg(req, argInput)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := s.registry.Run(agentID, agenttree.Input(input))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.hooks.Emit(ctx, hooks.EventAgentRun, map[string]any{
		"id":     agentID,
		"output": out.Output,
	})
	return structured(out)
}

// objectArg reads an optional object argument. Absent or null yields an
// empty map; any other non-object value is rejected.
func objectArg(req mcp.CallToolRequest, name string) (map[string]any, error) {
	v, ok := req.GetArguments()[name]
	if !ok || v == nil {
		return map[string]any{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("argument %q must be an object, got %T", name, v)
	}
	return m, nil
}
