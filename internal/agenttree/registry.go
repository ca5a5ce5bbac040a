// Package agenttree holds the in-memory hierarchy of sub-agents: creation
// under a depth limit, child listing, and canned behavior dispatch.
package agenttree

import (
	"fmt"
	"sync"
)

const (
	// RootID names the node every registry starts with.
	RootID = "root"

	// DefaultMaxDepth is the deepest a parent may sit and still accept children.
	DefaultMaxDepth = 2
)

// Registry owns every agent node. All methods are safe for concurrent use;
// a single mutex serializes them so id uniqueness and acyclicity hold under
// transports that dispatch tool calls in parallel.
type Registry struct {
	mu        sync.Mutex
	nodes     map[string]*Node
	maxDepth  int
	behaviors map[string]BehaviorFunc
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxDepth overrides the nesting limit. Values below zero are ignored.
func WithMaxDepth(n int) Option {
	return func(r *Registry) {
		if n >= 0 {
			r.maxDepth = n
		}
	}
}

// WithBehavior registers an additional canned behavior, or replaces a
// built-in one of the same name.
func WithBehavior(name string, fn BehaviorFunc) Option {
	return func(r *Registry) {
		if fn != nil {
			r.behaviors[name] = fn
		}
	}
}

// New creates a registry holding only the root node.
func New(opts ...Option) *Registry {
	r := &Registry{
		nodes: map[string]*Node{
			RootID: {ID: RootID, Name: RootID, Config: Config{}, Children: []string{}},
		},
		maxDepth:  DefaultMaxDepth,
		behaviors: defaultBehaviors(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxDepth returns the configured nesting limit.
func (r *Registry) MaxDepth() int { return r.maxDepth }

// Create adds newID as the last child of parentID. Preconditions are checked
// in order (parent exists, parent depth, id uniqueness) before anything is
// mutated, so a failed call leaves the registry untouched.
func (r *Registry) Create(parentID, newID string, cfg Config) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	parent, ok := r.nodes[parentID]
	if !ok {
		return "", parentNotFound(parentID)
	}
	depth, err := r.depthLocked(parentID)
	if err != nil {
		return "", err
	}
	if depth >= r.maxDepth {
		return "", depthExceeded(parentID, r.maxDepth)
	}
	if _, exists := r.nodes[newID]; exists {
		return "", alreadyExists(newID)
	}

	if cfg == nil {
		cfg = Config{}
	} else {
		cfg = cfg.clone()
	}
	name, ok := cfg.Name()
	if !ok {
		name = newID
	}
	p := parentID
	r.nodes[newID] = &Node{
		ID:       newID,
		Name:     name,
		Parent:   &p,
		Config:   cfg,
		Children: []string{},
	}
	parent.Children = append(parent.Children, newID)

	return fmt.Sprintf("Created sub-agent '%s' under '%s'.", newID, parentID), nil
}

// Children returns a copy of the ordered child ids of id.
func (r *Registry) Children(id string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[id]
	if !ok {
		return nil, noSuchAgent(id)
	}
	out := make([]string, len(node.Children))
	copy(out, node.Children)
	return out, nil
}

// Run produces the canned response selected by the agent's behavior. It never
// touches the agent's children and never mutates the registry.
func (r *Registry) Run(id string, in Input) (Output, error) {
	r.mu.Lock()
	node, ok := r.nodes[id]
	var behavior string
	if ok {
		behavior = node.Config.Behavior()
	}
	fn, known := r.behaviors[behavior]
	r.mu.Unlock()

	if !ok {
		return Output{}, noSuchAgent(id)
	}
	if !known {
		return Output{Output: unknownBehavior(id)}, nil
	}
	return Output{Output: fn(id, in)}, nil
}

// Get returns a snapshot of the node; mutating it does not affect the registry.
func (r *Registry) Get(id string) (Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[id]
	if !ok {
		return Node{}, false
	}
	return node.snapshot(), true
}

// Depth returns the number of parent hops from id to the root.
func (r *Registry) Depth(id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[id]; !ok {
		return 0, noSuchAgent(id)
	}
	return r.depthLocked(id)
}

// Len returns the number of nodes, root included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}

// depthLocked walks parent links from id up to the root. The visited set
// turns a corrupted (cyclic) tree into an error instead of an endless walk.
func (r *Registry) depthLocked(id string) (int, error) {
	seen := make(map[string]bool)
	depth := 0
	current := id
	for {
		if seen[current] {
			return 0, cycleAt(id)
		}
		seen[current] = true

		node, ok := r.nodes[current]
		if !ok || node.Parent == nil {
			return depth, nil
		}
		depth++
		current = *node.Parent
	}
}
