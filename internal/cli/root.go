// Package cli implements the subagents command tree.
package cli

import (
	"fmt"
	"io"

	"github.com/soyeahso/subagents/internal/config"
	"github.com/soyeahso/subagents/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// loaded at init time
	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subagents",
		Short: "Subagent Server, an MCP server over a bounded tree of sub-agents",
		Long: "subagents exposes create_subagent, list_subagents and run_subagent as MCP tools. " +
			"Serve them over stdio with \"serve\" or over HTTP with \"gateway run\".",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			level := logLevel
			if level == "" {
				level = "info"
			}
			log = logging.New(cmd.ErrOrStderr(), level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.subagents/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newGatewayCmd())
	cmd.AddCommand(newCallCmd())
	cmd.AddCommand(newToolsCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// loadConfig reads the config file and applies the --log-level flag.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// validateConfig logs every issue and fails if there were any.
func validateConfig(cfg config.Config) error {
	issues := config.Validate(&cfg)
	if len(issues) == 0 {
		return nil
	}
	for _, issue := range issues {
		log.Error().Str("path", issue.Path).Msg(issue.Message)
	}
	return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
}

// startLogging replaces the bootstrap logger with one built from cfg,
// writing to stderr and the per-command log file.
func startLogging(cfg config.Config, name string) (io.Closer, error) {
	l, closer, err := logging.Open(logging.Options{
		Level: cfg.Logging.Level,
		Style: cfg.Logging.ConsoleStyle,
		File:  paths.LogFile(cfg.Logging, name),
	})
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}
	log = l
	return closer, nil
}
