package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Call is one journaled tool invocation.
type Call struct {
	ID        string        `json:"id"`
	Tool      string        `json:"tool"`
	AgentID   string        `json:"agentId"`
	OK        bool          `json:"ok"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"durationNs"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Journal is an append-only audit trail of tool calls. It records that
// calls happened; the agent tree itself is never written here.
type Journal struct {
	db *DB
}

// NewJournal creates a journal on an open database.
func NewJournal(db *DB) *Journal {
	return &Journal{db: db}
}

// Record appends a call. Missing ID and CreatedAt are filled in.
func (j *Journal) Record(ctx context.Context, c Call) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	_, err := j.db.sql.ExecContext(ctx,
		`INSERT INTO tool_calls (id, tool, agent_id, ok, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Tool, c.AgentID, c.OK, c.Error, c.Duration.Milliseconds(),
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording %s call: %w", c.Tool, err)
	}
	return nil
}

// Recent returns up to limit calls, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.sql.QueryContext(ctx,
		`SELECT id, tool, agent_id, ok, error, duration_ms, created_at
		 FROM tool_calls ORDER BY seq DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var calls []Call
	for rows.Next() {
		var (
			c          Call
			durationMs int64
			createdAt  string
		)
		if err := rows.Scan(&c.ID, &c.Tool, &c.AgentID, &c.OK, &c.Error, &durationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		c.Duration = time.Duration(durationMs) * time.Millisecond
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// Count returns the number of journaled calls, optionally for one agent.
func (j *Journal) Count(ctx context.Context, agentID string) (int, error) {
	query := "SELECT COUNT(*) FROM tool_calls"
	var args []any
	if agentID != "" {
		query += " WHERE agent_id = ?"
		args = append(args, agentID)
	}

	var n int
	if err := j.db.sql.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting journal: %w", err)
	}
	return n, nil
}
