package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newToolsCmd() *cobra.Command {
	var remote remoteFlags

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools a running gateway offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
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

			if info := session.InitializeResult(); info != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n\n", info.ServerInfo.Name, info.ServerInfo.Version)
			}

			result, err := session.ListTools(ctx, nil)
			if err != nil {
				return fmt.Errorf("listing tools: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, tool := range result.Tools {
				fmt.Fprintf(tw, "%s\t%s\n", tool.Name, tool.Description)
			}
			return tw.Flush()
		},
	}

	remote.register(cmd, 30*time.Second)
	return cmd
}
