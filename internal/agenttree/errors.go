package agenttree

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("agent not found")
	ErrDepthExceeded = errors.New("max depth exceeded")
	ErrAlreadyExists = errors.New("agent already exists")
	ErrCycle         = errors.New("agent tree contains a cycle")
)

// Error is returned by Registry operations. Kind is one of the sentinel
// errors above, so callers can match with errors.Is.
type Error struct {
	Kind  error
	ID    string
	Limit int
	msg   string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.Kind }

func parentNotFound(id string) *Error {
	return &Error{Kind: ErrNotFound, ID: id, msg: fmt.Sprintf("Parent '%s' not found.", id)}
}

func noSuchAgent(id string) *Error {
	return &Error{Kind: ErrNotFound, ID: id, msg: fmt.Sprintf("No such agent: '%s'", id)}
}

func depthExceeded(parent string, limit int) *Error {
	return &Error{
		Kind:  ErrDepthExceeded,
		ID:    parent,
		Limit: limit,
		msg:   fmt.Sprintf("Max depth (%d) exceeded at parent '%s'.", limit, parent),
	}
}

func alreadyExists(id string) *Error {
	return &Error{Kind: ErrAlreadyExists, ID: id, msg: fmt.Sprintf("Agent ID '%s' already exists.", id)}
}

func cycleAt(id string) *Error {
	return &Error{Kind: ErrCycle, ID: id, msg: fmt.Sprintf("cycle detected while walking ancestors of '%s'", id)}
}
