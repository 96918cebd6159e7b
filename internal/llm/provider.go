package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// Provider is the text-generation collaborator.
// Every consumer treats the returned content as untrusted text and parses it
// defensively; no provider guarantees a schema-conforming reply.
type Provider interface {
	// Generate sends a prompt and returns the completion.
	// When req.Schema is set the provider asks for structured output using its
	// native mechanism and validates the reply before returning it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the LLM.
type Request struct {
	// System carries the instructions half of the collaborator request.
	System string

	// Messages carries the content half. Single-turn in querywise.
	Messages []Message

	// Schema is the JSON Schema the response must conform to.
	// When nil the response Content is the raw completion text.
	Schema *Schema

	MaxTokens int

	// Temperature controls randomness. Range: 0.0 - 1.0.
	Temperature float64
}

// UserRequest builds a single-turn request.
func UserRequest(system, content string) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: content}},
	}
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the LLM.
type Schema struct {
	// Name identifies this schema (tool name for Anthropic, schema name for
	// OpenAI). Kebab-case, e.g. "explanation-decision".
	Name string

	Description string

	// Definition is the JSON Schema definition as a map.
	Definition map[string]any
}

// Response holds the LLM's output.
type Response struct {
	// Content is the completion. Raw text when no Schema was requested.
	Content json.RawMessage

	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason is one of StopEnd, StopMaxTokens or StopFiltered.
	StopReason string
}

// Text returns the completion as a plain string.
// A reply that arrives as a JSON string literal is unquoted.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	s := strings.TrimSpace(string(r.Content))
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal([]byte(s), &unquoted); err == nil {
			return unquoted
		}
	}
	return string(r.Content)
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
