package agenttree

import "fmt"

// Recognized config keys. Every other key is stored but never read.
const (
	ConfigKeyName     = "name"
	ConfigKeyBehavior = "behavior"
)

// Config is the caller-supplied, otherwise opaque, configuration of an agent.
type Config map[string]any

// Name returns the configured display name, if any. Non-string values are
// rendered with fmt so a numeric name still displays.
func (c Config) Name() (string, bool) {
	v, ok := c[ConfigKeyName]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Behavior returns the configured behavior tag, or DefaultBehavior when the
// key is absent. A non-string value never matches a registered behavior.
func (c Config) Behavior() string {
	v, ok := c[ConfigKeyBehavior]
	if !ok {
		return DefaultBehavior
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func (c Config) clone() Config {
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Node is one agent in the hierarchy. Parent is nil for the root only.
type Node struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Parent   *string  `json:"parent"`
	Config   Config   `json:"config"`
	Children []string `json:"children"`
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool { return n.Parent == nil }

// ParentID returns the parent id, or "" for the root.
func (n *Node) ParentID() string {
	if n.Parent == nil {
		return ""
	}
	return *n.Parent
}

func (n *Node) snapshot() Node {
	children := make([]string, len(n.Children))
	copy(children, n.Children)
	var parent *string
	if n.Parent != nil {
		p := *n.Parent
		parent = &p
	}
	return Node{
		ID:       n.ID,
		Name:     n.Name,
		Parent:   parent,
		Config:   n.Config.clone(),
		Children: children,
	}
}
