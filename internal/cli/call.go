package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

func newCallCmd() *cobra.Command {
	var (
		remote  remoteFlags
		rawJSON bool
	)

	cmd := &cobra.Command{
		Use:   "call <tool> [json-args|-]",
		Short: "Call a tool on a running gateway",
		Example: `  subagents call create_subagent '{"parent_agent_id":"root","new_agent_id":"a"}'
  subagents call list_subagents
  echo '{"agent_id":"a","input":{"message":"hi"}}' | subagents call run_subagent -`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var raw string
			if len(args) == 2 {
				raw = args[1]
			}
			if raw == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading arguments: %w", err)
				}
				raw = string(data)
			}
			toolArgs, err := parseToolArgs(raw)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), remote.timeout)
			defer cancel()

			session, err := connectRemote(ctx, cfg, &remote)
			if err != nil {
				return err
			}
			defer session.Close()

			result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: args[0], Arguments: toolArgs})
			if err != nil {
				return fmt.Errorf("calling %s: %w", args[0], err)
			}
			return printToolResult(cmd.OutOrStdout(), result, rawJSON)
		},
	}

	remote.register(cmd, 30*time.Second)
	cmd.Flags().BoolVar(&rawJSON, "json", false, "print the full tool result as JSON")
	return cmd
}

// parseToolArgs decodes a JSON object of tool arguments. Empty input means
// no arguments.
func parseToolArgs(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("tool arguments must be a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// printToolResult writes the text content of result. A tool-level error
// becomes the command's error.
func printToolResult(w io.Writer, result *sdkmcp.CallToolResult, rawJSON bool) error {
	if rawJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	}

	var texts []string
	for _, c := range result.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	text := strings.Join(texts, "\n")

	if result.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return errors.New(text)
	}
	if !rawJSON {
		fmt.Fprintln(w, text)
	}
	return nil
}
