package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/soyeahso/subagents/internal/agenttree"
	"github.com/soyeahso/subagents/internal/config"
	"github.com/soyeahso/subagents/internal/gateway"
	"github.com/soyeahso/subagents/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var remote remoteFlags

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration and, if one is running, gateway status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "subagents %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:  %s\n", paths.Config)
			fmt.Fprintf(out, "Data:    %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:    %s\n", paths.Logs)
			fmt.Fprintln(out)

			cfg, err := loadConfig()
			if err != nil {
				fmt.Fprintf(out, "Config:  error loading: %v\n", err)
				return nil
			}

			fmt.Fprintf(out, "Server:  name=%q maxDepth=%d\n", cfg.Server.Name, cfg.MaxDepth(agenttree.DefaultMaxDepth))
			auth := "none"
			if cfg.Gateway.Auth.Token != "" {
				auth = "token"
			}
			fmt.Fprintf(out, "Gateway: port=%d bind=%s auth=%s\n", cfg.Gateway.Port, cfg.Gateway.Bind, auth)
			if cfg.Journal.Enabled {
				fmt.Fprintf(out, "Journal: %s\n", paths.JournalPath(cfg.Journal))
			} else {
				fmt.Fprintln(out, "Journal: (disabled)")
			}

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), remote.timeout)
			defer cancel()
			st, err := fetchStatus(ctx, cfg, &remote)
			fmt.Fprintln(out)
			if err != nil {
				fmt.Fprintf(out, "Running: no (%v)\n", err)
				return nil
			}
			printStatus(out, st)
			return nil
		},
	}

	remote.register(cmd, 3*time.Second)
	return cmd
}

func fetchStatus(ctx context.Context, cfg config.Config, f *remoteFlags) (*gateway.StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL(cfg)+"/status", nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient(cfg).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned %s", resp.Status)
	}
	var st gateway.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decoding status: %w", err)
	}
	return &st, nil
}

func printStatus(out io.Writer, st *gateway.StatusResponse) {
	uptime := (time.Duration(st.UptimeMs) * time.Millisecond).Round(time.Second)
	fmt.Fprintf(out, "Running: %s %s, up %s\n", st.Name, st.Version, uptime)
	fmt.Fprintf(out, "Agents:  %d (maxDepth %d)\n", st.Agents, st.MaxDepth)
	fmt.Fprintf(out, "Feed:    %d subscriber(s)\n", st.Subscribers)
	if len(st.RecentCalls) == 0 {
		return
	}
	fmt.Fprintln(out, "Recent calls:")
	for _, c := range st.RecentCalls {
		result := "ok"
		if !c.OK {
			result = "error: " + c.Error
		}
		fmt.Fprintf(out, "  %s  %-16s %-12s %s\n", c.CreatedAt.Format(time.RFC3339), c.Tool, c.AgentID, result)
	}
}
