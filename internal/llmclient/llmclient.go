// Package llmclient implements the LLM client external interface spec.md
// §6 describes: a chat(messages, tools?) -> response call, self-healing a
// single known backend bug (HTTP 400 "Failed to process regex": retry once
// without optional extras), and normalizing inbound history with tool-call
// scaffolding into a plain alternating system/user/assistant sequence when
// no tools are offered. Grounded on the teacher's provider error
// classification (internal/agent/providers/errors.go's FailoverReason) and
// its Anthropic/OpenAI adapters (internal/agent/providers/anthropic.go,
// openai.go), rebuilt around pkg/models.ChatMessage instead of the
// teacher's CompletionMessage/ToolCall/ToolResult shapes.
package llmclient

import (
	"context"
	"strings"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Response is the normalized LLM response shape spec.md §6 names.
type Response struct {
	IsComplete   bool
	Content      string
	ToolCalls    []models.ToolCallRequest
	FinishReason string
}

const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
	FinishLength    = "length"
)

// Extras are the optional generation parameters the self-healing retry
// drops on its second attempt.
type Extras struct {
	StopSequences     []string
	RepetitionPenalty float64
}

// Backend is the per-provider transport this package wraps. Each call
// receives the already-normalized history/tools/extras and returns a raw
// provider error the Client classifies.
type Backend interface {
	Send(ctx context.Context, messages []models.ChatMessage, tools []models.ToolDefinition, extras Extras) (Response, error)
}

// Client is the LLM client external interface.
type Client struct {
	backend Backend
}

// New builds a Client over a concrete provider backend (Anthropic, OpenAI,
// or any other Backend implementation).
func New(backend Backend) *Client {
	return &Client{backend: backend}
}

// Chat sends messages and optional tools, self-healing the single known
// "Failed to process regex" HTTP 400 bug class by retrying once without
// optional extras. Any other error is surfaced unchanged.
func (c *Client) Chat(ctx context.Context, messages []models.ChatMessage, tools []models.ToolDefinition, extras Extras) (Response, error) {
	history := messages
	if len(tools) == 0 {
		history = NormalizeWithoutTools(messages)
	}

	resp, err := c.backend.Send(ctx, history, tools, extras)
	if err == nil {
		return resp, nil
	}

	if isRegexProcessingBug(err) {
		return c.backend.Send(ctx, history, tools, Extras{})
	}
	return Response{}, err
}

// isRegexProcessingBug recognizes the single backend bug class spec.md §6
// names: an HTTP 400 whose body contains "Failed to process regex".
func isRegexProcessingBug(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "400") && strings.Contains(msg, "Failed to process regex")
}

// NormalizeWithoutTools collapses a history that contains tool-call
// scaffolding (assistant_tool_calls / tool messages) into a plain
// alternating system/user/assistant sequence, used whenever the current
// call offers no tools — the teacher's providers never need this because
// they always have a live tool_calls channel; this path exists because a
// turn can transition from a tool-loop round into a chat-only call within
// the same session history.
func NormalizeWithoutTools(messages []models.ChatMessage) []models.ChatMessage {
	normalized := make([]models.ChatMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case models.TurnRoleAssistantToolCall:
			if m.Content != "" {
				normalized = append(normalized, models.ChatMessage{Role: models.TurnRoleAssistant, Content: m.Content})
			}
		case models.TurnRoleTool:
			if m.Content != "" {
				normalized = append(normalized, models.ChatMessage{Role: models.TurnRoleUser, Content: "[tool result] " + m.Content})
			}
		default:
			normalized = append(normalized, m)
		}
	}
	return collapseConsecutiveSameRole(normalized)
}

// collapseConsecutiveSameRole merges adjacent messages of the same role
// (e.g. two user messages produced by normalizing two tool results in a
// row) so the sequence stays strictly alternating.
func collapseConsecutiveSameRole(messages []models.ChatMessage) []models.ChatMessage {
	if len(messages) == 0 {
		return messages
	}
	out := make([]models.ChatMessage, 0, len(messages))
	out = append(out, messages[0])
	for _, m := range messages[1:] {
		last := &out[len(out)-1]
		if last.Role == m.Role {
			last.Content = strings.TrimSpace(last.Content + "\n" + m.Content)
			continue
		}
		out = append(out, m)
	}
	return out
}
