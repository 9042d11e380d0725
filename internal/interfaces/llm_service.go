package interfaces

import (
	"context"
	"encoding/json"
)

// StopReason is why the model stopped producing content.
type StopReason string

const (
	StopToolUse StopReason = "tool_use"
	StopEnd     StopReason = "end"
)

// ContentBlock is one block of a completion response: either text or a
// tool-use request, never both.
type ContentBlock struct {
	Text    string
	ToolUse *ToolUseBlock
}

// ToolUseBlock is a tool call requested by the model.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResult correlates a tool execution back to its request id.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// Message is one conversation turn sent upstream. Exactly one of Content,
// ToolUses, or ToolResults is populated.
type Message struct {
	Role        string
	Content     string
	ToolUses    []ToolUseBlock
	ToolResults []ToolResult
}

// ToolSchema describes one tool exposed to the model. The schema list must
// stay byte-stable across a conversation for prompt-cache reuse.
type ToolSchema struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// CompletionRequest is the minimal upstream contract: model selection, token
// budgets, a cacheable system prompt, messages, and tool schemas with the
// last entry marked cacheable.
type CompletionRequest struct {
	Model           string
	MaxOutputTokens int
	ThinkingBudget  int // extended reasoning tokens; 0 disables
	System          string
	Messages        []Message
	Tools           []ToolSchema
}

// CompletionResponse carries the stop reason and ordered content blocks.
type CompletionResponse struct {
	StopReason StopReason
	Content    []ContentBlock
}

// LLMService is the consumed language-model backend.
type LLMService interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	HealthCheck(ctx context.Context) error
	Close() error
}
