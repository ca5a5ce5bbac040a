package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultServerName  = "Subagent Server"
	DefaultGatewayPort = 18790
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Name: DefaultServerName,
		},
		Gateway: GatewayConfig{
			Port: DefaultGatewayPort,
			Bind: "loopback",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

// MaxDepth returns the configured tree depth limit, or def when unset.
func (c Config) MaxDepth(def int) int {
	if c.Tree.MaxDepth == nil {
		return def
	}
	return *c.Tree.MaxDepth
}
