package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var maxDepth int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the sub-agent tools over stdio",
		Long: "Serve speaks newline-delimited JSON-RPC on stdin/stdout, the transport MCP clients " +
			"use when they launch a server as a subprocess. Logs go to stderr and the log file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-depth") {
				cfg.Tree.MaxDepth = &maxDepth
			}
			if err := validateConfig(cfg); err != nil {
				return err
			}

			logCloser, err := startLogging(cfg, "serve")
			if err != nil {
				return err
			}
			defer logCloser.Close()

			rt, err := newRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return rt.tools.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "override tree.maxDepth")
	return cmd
}
