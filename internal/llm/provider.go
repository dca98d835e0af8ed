// Package llm abstracts the language model used for intent classification,
// slot extraction and reply generation.
package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyResponse is returned when the model produced no choices.
var ErrEmptyResponse = errors.New("llm: empty response")

// Role is the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation passed to the model.
type Message struct {
	Role    Role
	Content string
}

// Request is a single completion call.
type Request struct {
	System    string
	Messages  []Message
	MaxTokens int
	// JSONMode asks the provider for a single JSON object.
	JSONMode bool
}

// Provider is implemented by every model backend.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// DefaultMaxTokens caps replies when a Request does not.
const DefaultMaxTokens = 1024

// ExtractJSON returns the outermost JSON object in s, dropping Markdown code
// fences and any prose around it. It returns s unchanged when no object is
// found.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return strings.TrimSpace(s)
	}
	return s[start : end+1]
}
