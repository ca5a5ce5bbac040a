package agenttree

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	BehaviorEcho      = "echo"
	BehaviorUppercase = "uppercase"

	// DefaultBehavior applies when an agent's config has no behavior key.
	DefaultBehavior = BehaviorEcho
)

// InputKeyMessage is the only input field the built-in behaviors read.
const InputKeyMessage = "message"

// Input is the caller-supplied payload of a run.
type Input map[string]any

// Message returns input["message"], or "" when absent or null.
func (in Input) Message() string {
	v, ok := in[InputKeyMessage]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Output is the result of running an agent.
type Output struct {
	Output string `json:"output"`
}

// BehaviorFunc produces the canned response of an agent.
type BehaviorFunc func(agentID string, in Input) string

func echo(agentID string, in Input) string {
	return fmt.Sprintf("[%s] Echo: %s", agentID, in.Message())
}

// uppercase applies full Unicode case mapping, so "ß" becomes "SS".
// A Caser is stateful and is not shared between calls.
func uppercase(_ string, in Input) string {
	return cases.Upper(language.Und).String(in.Message())
}

func unknownBehavior(agentID string) string {
	return fmt.Sprintf("[%s] Unknown behavior", agentID)
}

func defaultBehaviors() map[string]BehaviorFunc {
	return map[string]BehaviorFunc{
		BehaviorEcho:      echo,
		BehaviorUppercase: uppercase,
	}
}
