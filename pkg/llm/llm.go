// Package llm defines the chat-completion surface the assistant drives and an
// OpenAI-compatible implementation of it built on go-openai.
package llm

import (
	"context"
	"encoding/json"
)

// Role identifies the author of a completion message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the conversation sent to the model. Tool results
// carry the ToolCallID of the call they answer.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolCall is a structured request from the model to run a catalog tool.
// Arguments is the raw JSON text exactly as the model produced it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDefinition advertises one tool and its JSON schema to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Request is a single completion round.
type Request struct {
	Messages []Message
	Tools    []ToolDefinition
}

// Response carries the assistant message of one round. It holds either text
// or tool calls.
type Response struct {
	Message Message
}

// HasToolCalls reports whether the model asked for tool execution.
func (r *Response) HasToolCalls() bool {
	return r != nil && len(r.Message.ToolCalls) > 0
}

// Client completes one round of a conversation.
// Implementations must be safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
