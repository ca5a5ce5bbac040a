package config

// Config is the root configuration for the subagents server.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Tree    TreeConfig    `yaml:"tree,omitempty"`
	Gateway GatewayConfig `yaml:"gateway,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Journal JournalConfig `yaml:"journal,omitempty"`
	Dev     DevConfig     `yaml:"dev,omitempty"`
}

// ServerConfig describes the MCP server identity advertised to clients.
type ServerConfig struct {
	Name         string `yaml:"name,omitempty"`
	Instructions string `yaml:"instructions,omitempty"`
}

// TreeConfig controls the agent hierarchy.
type TreeConfig struct {
	MaxDepth *int `yaml:"maxDepth,omitempty"` // nil means the built-in limit of 2
}

// GatewayConfig controls the HTTP host for the streamable MCP endpoint and
// the websocket event feed.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
}

// GatewayAuth configures bearer-token authentication. An empty token
// leaves the gateway open, which Validate only allows on loopback.
type GatewayAuth struct {
	Token string `yaml:"token,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}

// JournalConfig controls the SQLite audit trail of tool calls.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"` // defaults to <base>/data/journal.db; ":memory:" allowed
}

// DevConfig holds developer conveniences.
type DevConfig struct {
	AutoRestart bool `yaml:"autoRestart,omitempty"`
}
