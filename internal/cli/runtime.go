package cli

import (
	"fmt"

	"github.com/soyeahso/subagents/internal/agenttree"
	"github.com/soyeahso/subagents/internal/config"
	"github.com/soyeahso/subagents/internal/hooks"
	"github.com/soyeahso/subagents/internal/store"
	"github.com/soyeahso/subagents/internal/tools"
)

// runtime is the in-process object graph shared by serve and gateway run.
type runtime struct {
	registry *agenttree.Registry
	hooks    *hooks.Manager
	db       *store.DB
	journal  *store.Journal
	tools    *tools.Server
}

func newRuntime(cfg config.Config) (*runtime, error) {
	rt := &runtime{
		registry: agenttree.New(agenttree.WithMaxDepth(cfg.MaxDepth(agenttree.DefaultMaxDepth))),
		hooks:    hooks.NewManager(log),
	}

	opts := []tools.Option{
		tools.WithName(cfg.Server.Name),
		tools.WithInstructions(cfg.Server.Instructions),
		tools.WithHooks(rt.hooks),
	}

	if cfg.Journal.Enabled {
		path := paths.JournalPath(cfg.Journal)
		db, err := store.Open(path, log)
		if err != nil {
			return nil, fmt.Errorf("opening journal: %w", err)
		}
		rt.db = db
		rt.journal = store.NewJournal(db)
		opts = append(opts, tools.WithJournal(rt.journal))
		log.Info().Str("path", path).Msg("journaling tool calls")
	}

	rt.tools = tools.New(rt.registry, log, opts...)
	return rt, nil
}

func (rt *runtime) Close() error {
	if rt.db == nil {
		return nil
	}
	return rt.db.Close()
}
