package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/soyeahso/subagents/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db)
	assert.NotNil(t, db.SQL())
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	db, err := Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening runs no migrations twice.
	db, err = Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)

	err := db.migrate()
	require.NoError(t, err)

	var count int
	err = db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)

	var name string
	err := db.sql.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", "tool_calls",
	).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "tool_calls", name)
}

// --- Journal tests ---

func TestJournal_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(testDB(t))

	require.NoError(t, j.Record(ctx, Call{Tool: "create_subagent", AgentID: "a", OK: true, Duration: 3 * time.Millisecond}))
	require.NoError(t, j.Record(ctx, Call{Tool: "run_subagent", AgentID: "ghost", OK: false, Error: "No such agent: 'ghost'"}))

	calls, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, calls, 2)

	// newest first
	assert.Equal(t, "run_subagent", calls[0].Tool)
	assert.False(t, calls[0].OK)
	assert.Equal(t, "No such agent: 'ghost'", calls[0].Error)
	assert.NotEmpty(t, calls[0].ID)
	assert.False(t, calls[0].CreatedAt.IsZero())

	assert.Equal(t, "create_subagent", calls[1].Tool)
	assert.True(t, calls[1].OK)
	assert.Equal(t, 3*time.Millisecond, calls[1].Duration)
}

func TestJournal_RecentLimit(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(testDB(t))

	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(ctx, Call{Tool: "list_subagents", AgentID: "root", OK: true}))
	}

	calls, err := j.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, calls, 3)

	calls, err = j.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, calls, 5)
}

func TestJournal_DuplicateID(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(testDB(t))

	require.NoError(t, j.Record(ctx, Call{ID: "fixed", Tool: "run_subagent"}))
	assert.Error(t, j.Record(ctx, Call{ID: "fixed", Tool: "run_subagent"}))
}

func TestJournal_Count(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(testDB(t))

	require.NoError(t, j.Record(ctx, Call{Tool: "run_subagent", AgentID: "a", OK: true}))
	require.NoError(t, j.Record(ctx, Call{Tool: "run_subagent", AgentID: "a", OK: true}))
	require.NoError(t, j.Record(ctx, Call{Tool: "run_subagent", AgentID: "b", OK: true}))

	n, err := j.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = j.Count(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
