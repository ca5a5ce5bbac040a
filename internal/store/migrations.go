package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create tool call journal",
		SQL: `
			CREATE TABLE tool_calls (
				seq         INTEGER PRIMARY KEY AUTOINCREMENT,
				id          TEXT NOT NULL UNIQUE,
				tool        TEXT NOT NULL,
				agent_id    TEXT NOT NULL DEFAULT '',
				ok          INTEGER NOT NULL,
				error       TEXT NOT NULL DEFAULT '',
				duration_ms INTEGER NOT NULL DEFAULT 0,
				created_at  TEXT NOT NULL
			);

			CREATE INDEX idx_tool_calls_agent ON tool_calls (agent_id);
			CREATE INDEX idx_tool_calls_tool ON tool_calls (tool);
		`,
	},
}
