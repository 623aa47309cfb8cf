// Package llmeffect is an example effect-registry extension wiring an
// `llm:complete` effect to real chat-completion providers. The
// operator/effect registry is an external collaborator to the core
// evaluator; this package is a reference implementation
// of one, living outside the core so the core never imports a concrete
// LLM SDK directly.
package llmeffect

import "context"

// ChatModel is the provider-agnostic interface adapters implement.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is one turn in a conversation.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool the model may call.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// ChatOut is a completion result: text and/or tool calls.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	Name  string
	Input map[string]interface{}
}
