package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/soyeahso/subagents/internal/gateway"
	"github.com/spf13/cobra"
	"github.com/tillberg/autorestart"
)

func newGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Manage the subagents HTTP gateway",
	}

	cmd.AddCommand(newGatewayRunCmd())
	return cmd
}

func newGatewayRunCmd() *cobra.Command {
	var (
		port     int
		bind     string
		maxDepth int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Serve the tools over streamable HTTP with a websocket event feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}
			if cmd.Flags().Changed("max-depth") {
				cfg.Tree.MaxDepth = &maxDepth
			}

			if err := validateConfig(cfg); err != nil {
				return err
			}

			logCloser, err := startLogging(cfg, "gateway")
			if err != nil {
				return err
			}
			defer logCloser.Close()

			if cfg.Dev.AutoRestart {
				log.Info().Msg("restarting when the binary changes")
				go autorestart.RestartOnChange()
			}

			rt, err := newRuntime(cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			opts := []gateway.ServerOption{gateway.WithHooks(rt.hooks)}
			if rt.journal != nil {
				opts = append(opts, gateway.WithJournal(rt.journal))
			}
			srv := gateway.New(cfg, rt.tools, log, opts...)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "override tree.maxDepth")

	return cmd
}
